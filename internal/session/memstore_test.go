package session

import (
	"context"
	"fmt"
	"sync"
	"testing"
)

func TestMemStoreAppendAndRecent(t *testing.T) {
	s := NewMemStore()
	ctx := context.Background()

	err := s.Append(ctx, "sess-1",
		Entry{Role: "user", Content: "hello"},
		Entry{Role: "assistant", Content: "hi there"},
	)
	if err != nil {
		t.Fatalf("Append() error = %v", err)
	}

	got, err := s.Recent(ctx, "sess-1", 0)
	if err != nil {
		t.Fatalf("Recent() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("entry count = %d, want 2", len(got))
	}
	if got[0].Content != "hello" || got[1].Content != "hi there" {
		t.Errorf("entries out of order: %+v", got)
	}
	if got[0].CreatedAt.IsZero() {
		t.Error("CreatedAt not assigned on append")
	}
}

func TestMemStoreRecentLimit(t *testing.T) {
	s := NewMemStore()
	ctx := context.Background()

	for i := range 6 {
		s.Append(ctx, "sess-1", Entry{Role: "user", Content: fmt.Sprintf("turn %d", i)})
	}

	got, err := s.Recent(ctx, "sess-1", 4)
	if err != nil {
		t.Fatalf("Recent() error = %v", err)
	}
	if len(got) != 4 {
		t.Fatalf("entry count = %d, want 4", len(got))
	}
	if got[0].Content != "turn 2" || got[3].Content != "turn 5" {
		t.Errorf("wrong window kept: first=%q last=%q", got[0].Content, got[3].Content)
	}
}

func TestMemStoreSessionsIsolated(t *testing.T) {
	s := NewMemStore()
	ctx := context.Background()

	s.Append(ctx, "a", Entry{Role: "user", Content: "for a"})
	s.Append(ctx, "b", Entry{Role: "user", Content: "for b"})

	got, _ := s.Recent(ctx, "a", 0)
	if len(got) != 1 || got[0].Content != "for a" {
		t.Errorf("session a entries = %+v", got)
	}

	got, _ = s.Recent(ctx, "missing", 0)
	if len(got) != 0 {
		t.Errorf("unknown session entries = %+v, want none", got)
	}
}

func TestMemStoreConcurrentAppend(t *testing.T) {
	s := NewMemStore()
	ctx := context.Background()

	var wg sync.WaitGroup
	for w := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range 50 {
				s.Append(ctx, "shared", Entry{Role: "user", Content: fmt.Sprintf("w%d-%d", w, i)})
			}
		}()
	}
	wg.Wait()

	got, _ := s.Recent(ctx, "shared", 0)
	if len(got) != 400 {
		t.Errorf("entry count = %d, want 400", len(got))
	}
}
