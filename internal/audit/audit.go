// Package audit records every event that crosses the internal bus into
// sqlite, giving operators a queryable trail of what was pushed to whom
// without adding durability semantics to the delivery path.
package audit

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/akontos/sirena/internal/natsbus"
	"github.com/nats-io/nats.go"
	_ "modernc.org/sqlite"
)

type Store struct {
	db *sql.DB
}

func New(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	// WAL for concurrent read/write, busy timeout so writers retry
	// instead of immediately returning SQLITE_BUSY.
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return nil, fmt.Errorf("exec %s: %w", p, err)
		}
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS events (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			event_id    TEXT NOT NULL,
			topic       TEXT NOT NULL,
			type        TEXT NOT NULL,
			request_id  TEXT,
			payload     TEXT NOT NULL,
			created_at  DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_events_created ON events(created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_events_request ON events(request_id)`,
	}

	for _, m := range migrations {
		if _, err := s.db.Exec(m); err != nil {
			return fmt.Errorf("exec migration: %w", err)
		}
	}
	return nil
}

type Entry struct {
	ID        int64     `json:"id"`
	EventID   string    `json:"event_id"`
	Topic     string    `json:"topic"`
	Type      string    `json:"type"`
	RequestID string    `json:"request_id,omitempty"`
	Payload   string    `json:"payload"`
	CreatedAt time.Time `json:"created_at"`
}

func (s *Store) Record(topic string, payload []byte) error {
	var envelope struct {
		ID        string `json:"id"`
		Type      string `json:"type"`
		RequestID string `json:"request_id"`
	}
	// Payload is stored even when it does not parse; the trail must
	// not lose frames because a producer misbehaved.
	_ = json.Unmarshal(payload, &envelope)

	_, err := s.db.Exec(
		`INSERT INTO events (event_id, topic, type, request_id, payload) VALUES (?, ?, ?, ?, ?)`,
		envelope.ID, topic, envelope.Type, envelope.RequestID, string(payload),
	)
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

// Recent returns the newest entries, most recent first.
func (s *Store) Recent(limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := s.db.Query(
		`SELECT id, event_id, topic, type, COALESCE(request_id, ''), payload, created_at
		 FROM events ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.EventID, &e.Topic, &e.Type, &e.RequestID, &e.Payload, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// ByRequest returns the trail for one emergency request, oldest first.
func (s *Store) ByRequest(requestID string, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := s.db.Query(
		`SELECT id, event_id, topic, type, COALESCE(request_id, ''), payload, created_at
		 FROM events WHERE request_id = ? ORDER BY id ASC LIMIT ?`, requestID, limit)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.EventID, &e.Topic, &e.Type, &e.RequestID, &e.Payload, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// AttachBus consumes the event firehose and records everything.
func (s *Store) AttachBus(client *natsbus.Client) error {
	_, err := client.Subscribe(natsbus.TopicEventsAll, func(msg *nats.Msg) {
		if err := s.Record(msg.Subject, msg.Data); err != nil {
			slog.Warn("audit record failed", "topic", msg.Subject, "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("subscribe firehose: %w", err)
	}
	return nil
}
