package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/okian/warden/internal/domain/feature"
	"github.com/okian/warden/internal/domain/model"
)

// SQLiteStore implements Store over a SQLite database. An empty path opens an
// in-process memory database, which is what the test suite uses.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) the database at path and applies the
// schema. SQLite works best with a single writer, so the pool is capped at
// one connection.
func NewSQLiteStore(ctx context.Context, path string) (*SQLiteStore, error) {
	dsn := path
	if dsn == "" {
		dsn = ":memory:"
	}
	db, err := sql.Open("sqlite", dsn+"?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := InitSchema(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	return &SQLiteStore{db: db}, nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Warranty resolves a warranty by id.
func (s *SQLiteStore) Warranty(ctx context.Context, warrantyID string) (model.Warranty, bool, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, product_name, brand, model_code, serial_no, purchase_date,
		       coverage_months, expiry_date, region_code, climate_zone, power_quality_band
		FROM warranties WHERE id = ?`, warrantyID)

	var (
		w                    model.Warranty
		purchase, expiry     sql.NullString
		brand, modelCode     sql.NullString
		serial, region       sql.NullString
		climate, powerBand   sql.NullString
	)
	err := row.Scan(&w.ID, &w.ProductName, &brand, &modelCode, &serial, &purchase,
		&w.CoverageMonths, &expiry, &region, &climate, &powerBand)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Warranty{}, false, nil
	}
	if err != nil {
		return model.Warranty{}, false, fmt.Errorf("failed to read warranty: %w", err)
	}
	w.Brand = brand.String
	w.ModelCode = modelCode.String
	w.SerialNo = serial.String
	w.RegionCode = region.String
	w.ClimateZone = climate.String
	w.PowerQualityBand = powerBand.String
	w.PurchaseDate = parseTimePtr(purchase)
	w.ExpiryDate = parseTimePtr(expiry)
	return w, true, nil
}

// UpsertWarranty inserts or replaces a warranty record.
func (s *SQLiteStore) UpsertWarranty(ctx context.Context, w model.Warranty) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO warranties
			(id, product_name, brand, model_code, serial_no, purchase_date,
			 coverage_months, expiry_date, region_code, climate_zone, power_quality_band)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			product_name = excluded.product_name,
			brand = excluded.brand,
			model_code = excluded.model_code,
			serial_no = excluded.serial_no,
			purchase_date = excluded.purchase_date,
			coverage_months = excluded.coverage_months,
			expiry_date = excluded.expiry_date,
			region_code = excluded.region_code,
			climate_zone = excluded.climate_zone,
			power_quality_band = excluded.power_quality_band`,
		w.ID, w.ProductName, w.Brand, w.ModelCode, w.SerialNo, formatTimePtr(w.PurchaseDate),
		w.CoverageMonths, formatTimePtr(w.ExpiryDate), w.RegionCode, w.ClimateZone, w.PowerQualityBand)
	if err != nil {
		return fmt.Errorf("failed to upsert warranty: %w", err)
	}
	return nil
}

// Events returns the telemetry history ordered by timestamp ascending.
func (s *SQLiteStore) Events(ctx context.Context, userID, warrantyID string) ([]model.TelemetryEvent, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, warranty_id, event_type, payload, ts
		FROM telemetry_events
		WHERE user_id = ? AND warranty_id = ?
		ORDER BY ts ASC, id ASC`, userID, warrantyID)
	if err != nil {
		return nil, fmt.Errorf("failed to read events: %w", err)
	}
	defer rows.Close()

	var events []model.TelemetryEvent
	for rows.Next() {
		var (
			ev      model.TelemetryEvent
			payload sql.NullString
			ts      string
		)
		if err := rows.Scan(&ev.ID, &ev.UserID, &ev.WarrantyID, &ev.EventType, &payload, &ts); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		if payload.Valid && payload.String != "" {
			if err := json.Unmarshal([]byte(payload.String), &ev.Payload); err != nil {
				ev.Payload = nil
			}
		}
		if t, err := time.Parse(time.RFC3339Nano, ts); err == nil {
			ev.Timestamp = t
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

// InsertEvent appends a telemetry event.
func (s *SQLiteStore) InsertEvent(ctx context.Context, ev model.TelemetryEvent) error {
	var payload any
	if ev.Payload != nil {
		raw, err := json.Marshal(ev.Payload)
		if err != nil {
			return fmt.Errorf("failed to encode payload: %w", err)
		}
		payload = string(raw)
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO telemetry_events (id, user_id, warranty_id, event_type, payload, ts)
		VALUES (?, ?, ?, ?, ?, ?)`,
		ev.ID, ev.UserID, ev.WarrantyID, ev.EventType, payload, ev.Timestamp.UTC().Format(time.RFC3339Nano))
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint") {
			return fmt.Errorf("%w: %s", ErrDuplicateEvent, ev.ID)
		}
		return fmt.Errorf("failed to insert event: %w", err)
	}
	return nil
}

// Scores returns the profile scores, falling back to the neutral defaults
// when no profile row exists.
func (s *SQLiteStore) Scores(ctx context.Context, userID, productType, warrantyID string) (float64, float64, float64, error) {
	p, found, err := s.Profile(ctx, userID, productType, warrantyID)
	if err != nil {
		return 0, 0, 0, err
	}
	if !found {
		p = model.NewBehaviourProfile(userID, productType, warrantyID)
	}
	return p.BehaviourScore, p.CareScore, p.ResponsivenessScore, nil
}

// Profile fetches the behaviour profile for the exact key.
func (s *SQLiteStore) Profile(ctx context.Context, userID, productType, warrantyID string) (model.BehaviourProfile, bool, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT user_id, product_type, warranty_id, behaviour_score, care_score,
		       responsiveness_score, last_question_at, last_updated_at
		FROM behaviour_profiles
		WHERE user_id = ? AND product_type = ? AND warranty_id = ?`,
		userID, productType, warrantyID)

	var (
		p                 model.BehaviourProfile
		question, updated sql.NullString
	)
	err := row.Scan(&p.UserID, &p.ProductType, &p.WarrantyID, &p.BehaviourScore,
		&p.CareScore, &p.ResponsivenessScore, &question, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return model.BehaviourProfile{}, false, nil
	}
	if err != nil {
		return model.BehaviourProfile{}, false, fmt.Errorf("failed to read profile: %w", err)
	}
	p.LastQuestionAt = parseTimePtr(question)
	p.LastUpdatedAt = parseTimePtr(updated)
	return p, true, nil
}

// SaveProfile inserts or replaces a behaviour profile.
func (s *SQLiteStore) SaveProfile(ctx context.Context, p model.BehaviourProfile) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO behaviour_profiles
			(user_id, product_type, warranty_id, behaviour_score, care_score,
			 responsiveness_score, last_question_at, last_updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id, product_type, warranty_id) DO UPDATE SET
			behaviour_score = excluded.behaviour_score,
			care_score = excluded.care_score,
			responsiveness_score = excluded.responsiveness_score,
			last_question_at = excluded.last_question_at,
			last_updated_at = excluded.last_updated_at`,
		p.UserID, p.ProductType, p.WarrantyID, p.BehaviourScore, p.CareScore,
		p.ResponsivenessScore, formatTimePtr(p.LastQuestionAt), formatTimePtr(p.LastUpdatedAt))
	if err != nil {
		return fmt.Errorf("failed to save profile: %w", err)
	}
	return nil
}

// RecordAnswer appends a questionnaire answer.
func (s *SQLiteStore) RecordAnswer(ctx context.Context, a model.BehaviourAnswer) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO behaviour_answers (user_id, warranty_id, question_id, answer_value, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		a.UserID, a.WarrantyID, a.QuestionID, a.AnswerValue, a.CreatedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("failed to record answer: %w", err)
	}
	return nil
}

// NudgeStats aggregates nudge outcomes for a (user, warranty).
func (s *SQLiteStore) NudgeStats(ctx context.Context, userID, warrantyID string) (feature.NudgeStats, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
		       COALESCE(SUM(CASE WHEN outcome = 'acted' THEN 1 ELSE 0 END), 0),
		       COALESCE(SUM(CASE WHEN outcome = 'ignored' THEN 1 ELSE 0 END), 0)
		FROM nudge_events
		WHERE user_id = ? AND warranty_id = ?`, userID, warrantyID)

	var stats feature.NudgeStats
	if err := row.Scan(&stats.Shown, &stats.Acted, &stats.Ignored); err != nil {
		return feature.NudgeStats{}, fmt.Errorf("failed to aggregate nudges: %w", err)
	}
	if stats.Shown > 0 {
		stats.ActedRate = float64(stats.Acted) / float64(stats.Shown)
	}
	return stats, nil
}

// InsertNudge appends a nudge event.
func (s *SQLiteStore) InsertNudge(ctx context.Context, n model.NudgeEvent) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO nudge_events (user_id, warranty_id, nudge_type, outcome, shown_at, acted_at, ignored_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		n.UserID, n.WarrantyID, n.NudgeType, n.Outcome,
		n.ShownAt.UTC().Format(time.RFC3339Nano), formatTimePtr(n.ActedAt), formatTimePtr(n.IgnoredAt))
	if err != nil {
		return 0, fmt.Errorf("failed to insert nudge: %w", err)
	}
	return res.LastInsertId()
}

// PeerStats prefers the warranty-keyed aggregate, falling back to the
// (brand, model) row.
func (s *SQLiteStore) PeerStats(ctx context.Context, warrantyID, brand, modelCode string) (feature.PeerStats, error) {
	stats, found, err := s.peerRow(ctx, `warranty_id = ?`, warrantyID)
	if err != nil {
		return feature.PeerStats{}, err
	}
	if !found && brand != "" && modelCode != "" {
		stats, _, err = s.peerRow(ctx, `brand = ? AND model = ?`, brand, modelCode)
		if err != nil {
			return feature.PeerStats{}, err
		}
	}
	return stats, nil
}

func (s *SQLiteStore) peerRow(ctx context.Context, where string, args ...any) (feature.PeerStats, bool, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT avg_rating, review_sentiment, failure_keywords
		FROM peer_review_signals WHERE `+where+`
		ORDER BY last_updated_at DESC LIMIT 1`, args...)

	var (
		stats    feature.PeerStats
		keywords sql.NullString
	)
	err := row.Scan(&stats.AvgRating, &stats.Sentiment, &keywords)
	if errors.Is(err, sql.ErrNoRows) {
		return feature.PeerStats{}, false, nil
	}
	if err != nil {
		return feature.PeerStats{}, false, fmt.Errorf("failed to read peer signal: %w", err)
	}
	if keywords.Valid && keywords.String != "" {
		var list []string
		if json.Unmarshal([]byte(keywords.String), &list) == nil {
			stats.KeywordCount = len(list)
		}
	}
	return stats, true, nil
}

// UpsertPeerReview updates the aggregate row for its key in place.
func (s *SQLiteStore) UpsertPeerReview(ctx context.Context, sig model.PeerReviewSignal) error {
	keywords, err := json.Marshal(sig.FailureKeywords)
	if err != nil {
		return fmt.Errorf("failed to encode keywords: %w", err)
	}
	updated := sig.LastUpdatedAt
	if updated.IsZero() {
		updated = time.Now()
	}

	if sig.WarrantyID != "" {
		_, err = s.db.ExecContext(ctx, `
			INSERT INTO peer_review_signals
				(warranty_id, product_type, brand, model, avg_rating, review_sentiment,
				 failure_keywords, symptom_keyword, severity_hint, source, last_updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(warranty_id) WHERE warranty_id <> '' DO UPDATE SET
				product_type = excluded.product_type,
				brand = excluded.brand,
				model = excluded.model,
				avg_rating = excluded.avg_rating,
				review_sentiment = excluded.review_sentiment,
				failure_keywords = excluded.failure_keywords,
				symptom_keyword = excluded.symptom_keyword,
				severity_hint = excluded.severity_hint,
				source = excluded.source,
				last_updated_at = excluded.last_updated_at`,
			sig.WarrantyID, sig.ProductType, sig.Brand, sig.Model, sig.AvgRating, sig.ReviewSentiment,
			string(keywords), sig.SymptomKeyword, sig.SeverityHint, sig.Source,
			updated.UTC().Format(time.RFC3339Nano))
	} else {
		// Brand/model keyed rows are replaced manually; SQLite partial
		// unique indexes only cover the warranty key.
		_, err = s.db.ExecContext(ctx, `DELETE FROM peer_review_signals WHERE warranty_id = '' AND brand = ? AND model = ?`,
			sig.Brand, sig.Model)
		if err == nil {
			_, err = s.db.ExecContext(ctx, `
				INSERT INTO peer_review_signals
					(warranty_id, product_type, brand, model, avg_rating, review_sentiment,
					 failure_keywords, symptom_keyword, severity_hint, source, last_updated_at)
				VALUES ('', ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				sig.ProductType, sig.Brand, sig.Model, sig.AvgRating, sig.ReviewSentiment,
				string(keywords), sig.SymptomKeyword, sig.SeverityHint, sig.Source,
				updated.UTC().Format(time.RFC3339Nano))
		}
	}
	if err != nil {
		return fmt.Errorf("failed to upsert peer signal: %w", err)
	}
	return nil
}

// SearchStats aggregates symptom searches for a (user, warranty).
func (s *SQLiteStore) SearchStats(ctx context.Context, userID, warrantyID string) (feature.SearchStats, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT matched_component FROM symptom_searches
		WHERE user_id = ? AND warranty_id = ?`, userID, warrantyID)
	if err != nil {
		return feature.SearchStats{}, fmt.Errorf("failed to read searches: %w", err)
	}
	defer rows.Close()

	stats := feature.SearchStats{Components: map[string]int{}}
	for rows.Next() {
		var component sql.NullString
		if err := rows.Scan(&component); err != nil {
			return feature.SearchStats{}, fmt.Errorf("failed to scan search: %w", err)
		}
		stats.Count++
		name := component.String
		if name == "" {
			stats.Unresolved++
			name = "other"
		}
		stats.Components[name]++
	}
	return stats, rows.Err()
}

// InsertSearch appends a symptom search.
func (s *SQLiteStore) InsertSearch(ctx context.Context, q model.SymptomSearch) (int64, error) {
	created := q.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO symptom_searches
			(user_id, warranty_id, product_type, brand, model, query_text, matched_component, region, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		q.UserID, q.WarrantyID, q.ProductType, q.Brand, q.Model, q.QueryText,
		q.MatchedComponent, q.Region, created.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return 0, fmt.Errorf("failed to insert search: %w", err)
	}
	return res.LastInsertId()
}

func formatTimePtr(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTimePtr(s sql.NullString) *time.Time {
	if !s.Valid || s.String == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339Nano, s.String)
	if err != nil {
		return nil
	}
	return &t
}
