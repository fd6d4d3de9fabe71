// Package ledger provides an append-only history of control loop events
// for auditing: watering cycles, light changes, sync and telemetry failures.
package ledger

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/plantboxd/internal/eventbus"
)

// Entry represents a single event in the ledger
type Entry struct {
	ID        int64          `json:"-"`
	EventID   string         `json:"id"`
	EventType string         `json:"type"`
	Timestamp time.Time      `json:"timestamp"`
	Payload   map[string]any `json:"payload,omitempty"`
	Source    string         `json:"source,omitempty"`
}

// Ledger provides append-only event logging
type Ledger struct {
	db     *sql.DB
	source string
}

// New creates a new Ledger using the provided database connection.
// source is recorded on every entry (the device id).
func New(db *sql.DB, source string) *Ledger {
	return &Ledger{db: db, source: source}
}

// Append adds a new event to the ledger and returns its id
func (l *Ledger) Append(eventType string, at time.Time, payload map[string]any) (string, error) {
	var payloadJSON []byte
	var err error

	if payload != nil {
		payloadJSON, err = json.Marshal(payload)
		if err != nil {
			return "", fmt.Errorf("failed to marshal payload: %w", err)
		}
	}

	eventID := uuid.NewString()
	_, err = l.db.Exec(
		`INSERT INTO event_ledger (event_id, event_type, timestamp, payload, source) VALUES (?, ?, ?, ?, ?)`,
		eventID, eventType, at.UTC().UnixMilli(), string(payloadJSON), l.source,
	)
	if err != nil {
		return "", err
	}
	return eventID, nil
}

// Record is an eventbus.Handler that appends every bus event
func (l *Ledger) Record(e eventbus.Event) {
	if _, err := l.Append(string(e.Type), e.Time, e.Data); err != nil {
		log.Error().Err(err).Str("event_type", string(e.Type)).Msg("Failed to append ledger entry")
	}
}

// Recent returns the newest entries, optionally filtered by event type
func (l *Ledger) Recent(eventType string, limit int) ([]*Entry, error) {
	query := `
		SELECT id, event_id, event_type, timestamp, payload, source
		FROM event_ledger
		ORDER BY timestamp DESC, id DESC
		LIMIT ?`
	args := []any{limit}
	if eventType != "" {
		query = `
		SELECT id, event_id, event_type, timestamp, payload, source
		FROM event_ledger
		WHERE event_type = ?
		ORDER BY timestamp DESC, id DESC
		LIMIT ?`
		args = []any{eventType, limit}
	}

	rows, err := l.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return l.scanEntries(rows)
}

// GetByTimeRange returns entries within a time range
func (l *Ledger) GetByTimeRange(start, end time.Time, limit int) ([]*Entry, error) {
	rows, err := l.db.Query(`
		SELECT id, event_id, event_type, timestamp, payload, source
		FROM event_ledger
		WHERE timestamp >= ? AND timestamp <= ?
		ORDER BY timestamp DESC, id DESC
		LIMIT ?
	`, start.UTC().UnixMilli(), end.UTC().UnixMilli(), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return l.scanEntries(rows)
}

// DeleteOlderThan removes entries older than the cutoff (retention policy)
func (l *Ledger) DeleteOlderThan(cutoff time.Time) (int64, error) {
	result, err := l.db.Exec(`
		DELETE FROM event_ledger WHERE timestamp < ?
	`, cutoff.UTC().UnixMilli())
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func (l *Ledger) scanEntries(rows *sql.Rows) ([]*Entry, error) {
	var entries []*Entry
	for rows.Next() {
		var entry Entry
		var payloadStr, source sql.NullString
		var timestamp int64

		err := rows.Scan(&entry.ID, &entry.EventID, &entry.EventType, &timestamp, &payloadStr, &source)
		if err != nil {
			return nil, err
		}

		entry.Timestamp = time.UnixMilli(timestamp).UTC()
		if source.Valid {
			entry.Source = source.String
		}

		if payloadStr.Valid && payloadStr.String != "" {
			entry.Payload = make(map[string]any)
			if err := json.Unmarshal([]byte(payloadStr.String), &entry.Payload); err != nil {
				return nil, fmt.Errorf("failed to unmarshal payload: %w", err)
			}
		}

		entries = append(entries, &entry)
	}

	return entries, rows.Err()
}
