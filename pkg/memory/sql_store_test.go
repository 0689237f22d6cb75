package memory

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"
)

func newStore(t *testing.T) *SQLStore {
	t.Helper()
	s, err := NewSQLStore(filepath.Join(t.TempDir(), "sessions.db"))
	if err != nil {
		t.Fatalf("NewSQLStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestHistory_Empty(t *testing.T) {
	s := newStore(t)

	entries, err := s.History(context.Background(), "nobody")
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected empty history, got %v", entries)
	}
}

func TestAppendAndHistory(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	if err := s.Append(ctx, "sess-1",
		Entry{Role: "User", Text: "how many projects?"},
		Entry{Role: "AI", Text: "There are 5 projects."},
	); err != nil {
		t.Fatalf("Append: %v", err)
	}

	entries, err := s.History(ctx, "sess-1")
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].Role != "User" || entries[1].Role != "AI" {
		t.Errorf("history out of order: %v", entries)
	}
}

func TestAppend_TrimsToCap(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	// 5 exchanges of 2 entries each; only the newest 6 entries survive.
	for i := 0; i < 5; i++ {
		err := s.Append(ctx, "sess-1",
			Entry{Role: "User", Text: fmt.Sprintf("question %d", i)},
			Entry{Role: "AI", Text: fmt.Sprintf("answer %d", i)},
		)
		if err != nil {
			t.Fatalf("Append: %v", err)
		}
	}

	entries, err := s.History(ctx, "sess-1")
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(entries) != MaxEntries {
		t.Fatalf("expected %d entries, got %d", MaxEntries, len(entries))
	}
	if entries[0].Text != "question 2" {
		t.Errorf("expected oldest surviving entry to be question 2, got %q", entries[0].Text)
	}
	if entries[len(entries)-1].Text != "answer 4" {
		t.Errorf("expected newest entry last, got %q", entries[len(entries)-1].Text)
	}
}

func TestHistory_SessionsAreIsolated(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	if err := s.Append(ctx, "sess-a", Entry{Role: "User", Text: "a"}); err != nil {
		t.Fatal(err)
	}
	if err := s.Append(ctx, "sess-b", Entry{Role: "User", Text: "b"}); err != nil {
		t.Fatal(err)
	}

	entries, err := s.History(ctx, "sess-a")
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Text != "a" {
		t.Fatalf("session isolation broken: %v", entries)
	}
}

func TestAppend_RefreshesSessionExpiry(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	base := time.Now()
	s.now = func() time.Time { return base }
	if err := s.Append(ctx, "sess-1",
		Entry{Role: "User", Text: "q1"},
		Entry{Role: "AI", Text: "a1"},
		Entry{Role: "User", Text: "q2"},
		Entry{Role: "AI", Text: "a2"},
	); err != nil {
		t.Fatal(err)
	}

	// A write 23h later keeps the whole session alive, including the
	// entries from the first exchange.
	s.now = func() time.Time { return base.Add(23 * time.Hour) }
	if err := s.Append(ctx, "sess-1",
		Entry{Role: "User", Text: "q3"},
		Entry{Role: "AI", Text: "a3"},
	); err != nil {
		t.Fatal(err)
	}

	s.now = func() time.Time { return base.Add(25 * time.Hour) }
	entries, err := s.History(ctx, "sess-1")
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 6 {
		t.Fatalf("expected 6 live entries 2h after last write, got %d: %v", len(entries), entries)
	}
	if entries[0].Text != "q1" || entries[5].Text != "a3" {
		t.Errorf("unexpected history window: %v", entries)
	}
}

func TestHistory_Expiry(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	base := time.Now()
	s.now = func() time.Time { return base.Add(-25 * time.Hour) }
	if err := s.Append(ctx, "sess-1", Entry{Role: "User", Text: "old"}); err != nil {
		t.Fatal(err)
	}

	s.now = func() time.Time { return base }
	entries, err := s.History(ctx, "sess-1")
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected expired history to be hidden, got %v", entries)
	}
}
