package audit

import (
	"path/filepath"
	"testing"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "audit.db"))
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestRecordAndRecent(t *testing.T) {
	s := newTestStore(t)

	frames := []string{
		`{"id":"ev-1","type":"request_status_update","request_id":"req-1"}`,
		`{"id":"ev-2","type":"location_update","request_id":"req-1"}`,
		`{"id":"ev-3","type":"silent_mode_command"}`,
	}
	for _, f := range frames {
		if err := s.Record("events.request.req-1", []byte(f)); err != nil {
			t.Fatalf("record: %v", err)
		}
	}

	entries, err := s.Recent(10)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}

	// Most recent first
	if entries[0].EventID != "ev-3" {
		t.Errorf("expected ev-3 first, got %s", entries[0].EventID)
	}
	if entries[1].Type != "location_update" {
		t.Errorf("expected location_update, got %s", entries[1].Type)
	}
}

func TestRecentLimit(t *testing.T) {
	s := newTestStore(t)

	for i := 0; i < 5; i++ {
		if err := s.Record("events.user.u", []byte(`{"id":"x","type":"pong"}`)); err != nil {
			t.Fatalf("record: %v", err)
		}
	}

	entries, err := s.Recent(2)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(entries) != 2 {
		t.Errorf("expected 2 entries, got %d", len(entries))
	}
}

func TestByRequest(t *testing.T) {
	s := newTestStore(t)

	_ = s.Record("events.request.req-1", []byte(`{"id":"a","type":"request_status_update","request_id":"req-1"}`))
	_ = s.Record("events.request.req-2", []byte(`{"id":"b","type":"request_status_update","request_id":"req-2"}`))
	_ = s.Record("events.request.req-1", []byte(`{"id":"c","type":"provider_arrived","request_id":"req-1"}`))

	entries, err := s.ByRequest("req-1", 0)
	if err != nil {
		t.Fatalf("by request: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries for req-1, got %d", len(entries))
	}
	// Oldest first for a request trail
	if entries[0].EventID != "a" || entries[1].EventID != "c" {
		t.Errorf("unexpected order: %s, %s", entries[0].EventID, entries[1].EventID)
	}
}

func TestRecordKeepsUnparseablePayload(t *testing.T) {
	s := newTestStore(t)

	if err := s.Record("events.user.u", []byte("not json")); err != nil {
		t.Fatalf("record: %v", err)
	}

	entries, err := s.Recent(1)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(entries) != 1 || entries[0].Payload != "not json" {
		t.Errorf("expected raw payload kept, got %+v", entries)
	}
}
