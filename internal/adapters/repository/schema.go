package repository

import (
	"context"
	"database/sql"
	"fmt"
)

// SchemaVersion is the current schema version.
const SchemaVersion = 1

const schemaV1 = `
CREATE TABLE IF NOT EXISTS warranties (
    id TEXT PRIMARY KEY,
    product_name TEXT NOT NULL,
    brand TEXT,
    model_code TEXT,
    serial_no TEXT,
    purchase_date TEXT,
    coverage_months INTEGER DEFAULT 0,
    expiry_date TEXT,
    region_code TEXT,
    climate_zone TEXT,
    power_quality_band TEXT
);

CREATE TABLE IF NOT EXISTS telemetry_events (
    id TEXT PRIMARY KEY,
    user_id TEXT NOT NULL,
    warranty_id TEXT NOT NULL,
    event_type TEXT NOT NULL,
    payload TEXT,             -- JSON
    ts TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_events_user_warranty ON telemetry_events(user_id, warranty_id, ts);

CREATE TABLE IF NOT EXISTS behaviour_profiles (
    user_id TEXT NOT NULL,
    product_type TEXT NOT NULL DEFAULT '',
    warranty_id TEXT NOT NULL DEFAULT '',
    behaviour_score REAL NOT NULL DEFAULT 0.5,
    care_score REAL NOT NULL DEFAULT 0.5,
    responsiveness_score REAL NOT NULL DEFAULT 0.5,
    last_question_at TEXT,
    last_updated_at TEXT,
    PRIMARY KEY (user_id, product_type, warranty_id)
);

CREATE TABLE IF NOT EXISTS behaviour_answers (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    user_id TEXT NOT NULL,
    warranty_id TEXT,
    question_id TEXT,
    answer_value TEXT,
    created_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS nudge_events (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    user_id TEXT NOT NULL,
    warranty_id TEXT,
    nudge_type TEXT,
    outcome TEXT DEFAULT '',
    shown_at TEXT NOT NULL,
    acted_at TEXT,
    ignored_at TEXT
);
CREATE INDEX IF NOT EXISTS idx_nudges_user_warranty ON nudge_events(user_id, warranty_id);

CREATE TABLE IF NOT EXISTS peer_review_signals (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    warranty_id TEXT,
    product_type TEXT,
    brand TEXT,
    model TEXT,
    avg_rating REAL DEFAULT 0,
    review_sentiment REAL DEFAULT 0,
    failure_keywords TEXT,    -- JSON array
    symptom_keyword TEXT,
    severity_hint TEXT,
    source TEXT,
    last_updated_at TEXT NOT NULL
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_peer_warranty ON peer_review_signals(warranty_id) WHERE warranty_id <> '';
CREATE INDEX IF NOT EXISTS idx_peer_brand_model ON peer_review_signals(brand, model);

CREATE TABLE IF NOT EXISTS symptom_searches (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    user_id TEXT NOT NULL,
    warranty_id TEXT,
    product_type TEXT,
    brand TEXT,
    model TEXT,
    query_text TEXT NOT NULL,
    matched_component TEXT DEFAULT '',
    region TEXT,
    created_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_searches_user_warranty ON symptom_searches(user_id, warranty_id);
`

// InitSchema creates the tables when missing.
func InitSchema(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, schemaV1); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}
