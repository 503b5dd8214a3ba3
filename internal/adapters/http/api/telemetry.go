// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/okian/warden/internal/adapters/mq/queue"
	"github.com/okian/warden/internal/domain/dedupe"
	"github.com/okian/warden/internal/domain/model"
)

// TelemetryDependencies defines the interface for telemetry ingestion.
type TelemetryDependencies interface {
	dedupe.Deduper
	Enqueue(ctx context.Context, e queue.Event) error
}

// TelemetryHandler handles telemetry submissions.
type TelemetryHandler struct {
	deps TelemetryDependencies
}

// NewTelemetryHandler creates a new telemetry handler.
func NewTelemetryHandler(deps TelemetryDependencies) *TelemetryHandler {
	return &TelemetryHandler{deps: deps}
}

// telemetryRequest mirrors the POST /telemetry schema.
type telemetryRequest struct {
	EventID    string         `json:"event_id"`
	UserID     string         `json:"user_id"`
	WarrantyID string         `json:"warranty_id"`
	EventType  string         `json:"event_type"`
	Payload    map[string]any `json:"payload"`
	TS         string         `json:"ts"`
}

func (t telemetryRequest) validate() error {
	switch {
	case strings.TrimSpace(t.UserID) == "":
		return errors.New("missing user_id")
	case strings.TrimSpace(t.WarrantyID) == "":
		return errors.New("missing warranty_id")
	case strings.TrimSpace(t.EventType) == "":
		return errors.New("missing event_type")
	}
	if t.TS != "" {
		if _, err := time.Parse(time.RFC3339, t.TS); err != nil {
			return errors.New("invalid ts; must be RFC3339")
		}
	}
	return nil
}

type ackResponse struct {
	EventID   string `json:"event_id"`
	Status    string `json:"status"`
	Duplicate bool   `json:"duplicate"`
}

// HandlePostTelemetry handles POST /telemetry requests. Submissions without
// an event_id get one assigned; submissions reusing an id are acknowledged
// as duplicates without re-processing.
func (h *TelemetryHandler) HandlePostTelemetry(w http.ResponseWriter, r *http.Request) {
	const op = "api.post_telemetry"
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	var req telemetryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	if err := req.validate(); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	if strings.TrimSpace(req.EventID) == "" {
		req.EventID = uuid.NewString()
	}

	// Idempotency check before touching the queue.
	if h.deps.SeenAndRecord(r.Context(), req.EventID) {
		writeJSON(w, http.StatusOK, ackResponse{EventID: req.EventID, Status: "duplicate", Duplicate: true})
		return
	}

	ts := time.Now().UTC()
	if req.TS != "" {
		ts, _ = time.Parse(time.RFC3339, req.TS)
	}
	event := model.TelemetryEvent{
		ID:         req.EventID,
		UserID:     req.UserID,
		WarrantyID: req.WarrantyID,
		EventType:  req.EventType,
		Payload:    req.Payload,
		Timestamp:  ts,
	}
	if err := h.deps.Enqueue(r.Context(), event); err != nil {
		// Roll back the seen mark so the client can retry.
		h.deps.Unrecord(r.Context(), req.EventID)
		writeError(w, http.StatusTooManyRequests, "backpressure", WrapKind(op, ErrBackpressure, err))
		return
	}
	writeJSON(w, http.StatusAccepted, ackResponse{EventID: req.EventID, Status: "accepted", Duplicate: false})
}
