// Command smoke drives a running service end to end: it submits synthetic
// telemetry, waits for ingestion, then fetches scores and the at-risk list.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"
)

const (
	defaultUsers    = 5
	defaultEvents   = 40
	defaultTimeout  = 10 * time.Second
	defaultSettle   = 2 * time.Second
	defaultRunLimit = 2 * time.Minute
)

var eventTypes = []string{"usage", "error", "failure", "maintenance"}

func main() {
	var (
		baseURL = flag.String("url", "http://localhost:9090", "Base URL of the service")
		users   = flag.Int("users", defaultUsers, "Number of synthetic users")
		events  = flag.Int("events", defaultEvents, "Telemetry events per user")
		timeout = flag.Duration("timeout", defaultTimeout, "HTTP request timeout")
		settle  = flag.Duration("settle", defaultSettle, "Wait before reading scores")
		seed    = flag.Int64("seed", time.Now().UnixNano(), "Random seed")
	)
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), defaultRunLimit)
	defer cancel()

	client := &http.Client{Timeout: *timeout}
	rng := rand.New(rand.NewSource(*seed))

	submitted := 0
	for u := 0; u < *users; u++ {
		userID := fmt.Sprintf("smoke-user-%d", u)
		warrantyID := fmt.Sprintf("smoke-warranty-%d", u)
		for i := 0; i < *events; i++ {
			eventType := eventTypes[rng.Intn(len(eventTypes))]
			payload := map[string]any{}
			switch eventType {
			case "usage":
				payload["hours"] = float64(rng.Intn(12) + 1)
			case "error":
				payload["code"] = fmt.Sprintf("E%02d", rng.Intn(5))
			case "failure":
				payload["reason"] = "compressor_stall"
			}
			body := map[string]any{
				"event_id":    uuid.NewString(),
				"user_id":     userID,
				"warranty_id": warrantyID,
				"event_type":  eventType,
				"payload":     payload,
				"ts":          time.Now().UTC().Format(time.RFC3339),
			}
			if err := post(ctx, client, *baseURL+"/telemetry", body); err != nil {
				os.Stderr.WriteString("telemetry submit failed: " + err.Error() + "\n")
				os.Exit(1)
			}
			submitted++
		}
	}
	fmt.Printf("submitted %d events for %d users\n", submitted, *users)

	time.Sleep(*settle)

	for u := 0; u < *users; u++ {
		userID := fmt.Sprintf("smoke-user-%d", u)
		warrantyID := fmt.Sprintf("smoke-warranty-%d", u)
		var result map[string]any
		url := fmt.Sprintf("%s/score?user_id=%s&warranty_id=%s", *baseURL, userID, warrantyID)
		if err := get(ctx, client, url, &result); err != nil {
			os.Stderr.WriteString("score fetch failed: " + err.Error() + "\n")
			os.Exit(1)
		}
		fmt.Printf("%s: label=%v score=%v\n", userID, result["risk_label"], result["risk_score"])
	}

	var top []map[string]any
	if err := get(ctx, client, fmt.Sprintf("%s/risk/top?limit=%d", *baseURL, *users), &top); err != nil {
		os.Stderr.WriteString("risk top fetch failed: " + err.Error() + "\n")
		os.Exit(1)
	}
	fmt.Printf("top at-risk entries: %d\n", len(top))
}

func post(ctx context.Context, client *http.Client, url string, body any) error {
	raw, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(raw))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("unexpected status %d from %s", resp.StatusCode, url)
	}
	return nil
}

func get(ctx context.Context, client *http.Client, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d from %s", resp.StatusCode, url)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
