package tasklog

import (
	"path/filepath"
	"testing"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(filepath.Join(t.TempDir(), "tasks.db"))
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestLogAndGet(t *testing.T) {
	s := newTestStore(t)

	rec := &TaskRecord{
		TurnID:      "turn-1",
		Channel:     "http",
		Customer:    "42",
		Message:     "show my recent invoices",
		Reply:       "You have two open invoices.",
		Tool:        "get_customer_invoices",
		ToolStatus:  "ok",
		Generations: 2,
		DurationMs:  1200,
		Model:       "ollama/deepseek-r1",
	}
	if err := s.Log(rec); err != nil {
		t.Fatalf("log: %v", err)
	}
	if rec.ID == 0 {
		t.Fatal("expected ID to be set")
	}

	got, err := s.Get(rec.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got == nil {
		t.Fatal("expected record")
	}
	if got.Action != ActionChat || got.Status != StatusSuccess {
		t.Fatalf("expected defaults chat/success, got %s/%s", got.Action, got.Status)
	}
	if got.Tool != "get_customer_invoices" || got.Generations != 2 || got.Customer != "42" {
		t.Fatalf("unexpected record: %+v", got)
	}

	missing, err := s.Get(9999)
	if err != nil || missing != nil {
		t.Fatalf("expected nil for missing record, got %+v, %v", missing, err)
	}
}

func TestQueryFiltersAndStats(t *testing.T) {
	s := newTestStore(t)

	records := []TaskRecord{
		{Customer: "1", Channel: "http", Message: "hi there", Reply: "Hello!", Generations: 1, DurationMs: 100},
		{Customer: "1", Channel: "ws", Message: "invoices please", Tool: "get_customer_invoices", ToolStatus: "ok", Generations: 2, DurationMs: 300},
		{Customer: "2", Channel: "http", Message: "what about croissants", Status: StatusError, ErrorMessage: "no response from language model", DurationMs: 200},
	}
	for i := range records {
		if err := s.Log(&records[i]); err != nil {
			t.Fatalf("log %d: %v", i, err)
		}
	}

	got, total, err := s.Query(QueryParams{Customer: "1"})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if total != 2 || len(got) != 2 {
		t.Fatalf("expected 2 records for customer 1, got total=%d len=%d", total, len(got))
	}

	got, total, err = s.Query(QueryParams{Status: StatusError})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if total != 1 || got[0].Customer != "2" {
		t.Fatalf("expected the error record, got %+v", got)
	}

	got, _, err = s.Query(QueryParams{Search: "croissants"})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(got) != 1 || got[0].Customer != "2" {
		t.Fatalf("expected full-text match, got %+v", got)
	}

	st, err := s.GetStats()
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if st.TotalRecords != 3 || st.ToolTurns != 1 {
		t.Fatalf("unexpected totals: %+v", st)
	}
	if st.ByStatus[StatusSuccess] != 2 || st.ByStatus[StatusError] != 1 {
		t.Fatalf("unexpected status breakdown: %+v", st.ByStatus)
	}
	if st.ByTool["get_customer_invoices"] != 1 {
		t.Fatalf("unexpected tool breakdown: %+v", st.ByTool)
	}
	if st.AvgDurationMs != 200 {
		t.Fatalf("expected avg 200ms, got %v", st.AvgDurationMs)
	}
}

func TestCleanupKeepsNewest(t *testing.T) {
	s := newTestStore(t)
	for _, ts := range []string{"2026-01-01T00:00:00Z", "2026-01-02T00:00:00Z", "2026-01-03T00:00:00Z"} {
		if err := s.Log(&TaskRecord{Customer: "1", CreatedAt: ts}); err != nil {
			t.Fatalf("log: %v", err)
		}
	}

	deleted, err := s.Cleanup(0, 2)
	if err != nil {
		t.Fatalf("cleanup: %v", err)
	}
	if deleted != 1 {
		t.Fatalf("expected 1 deleted, got %d", deleted)
	}
	got, _, err := s.Query(QueryParams{})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(got) != 2 || got[len(got)-1].CreatedAt != "2026-01-02T00:00:00Z" {
		t.Fatalf("expected the two newest to remain, got %+v", got)
	}
}
