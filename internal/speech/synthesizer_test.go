package speech

import (
	"context"
	"encoding/base64"
	"errors"
	"testing"

	"github.com/lumen-edu/jarvis/internal/cache"
	ttsmock "github.com/lumen-edu/jarvis/pkg/provider/tts/mock"
)

func TestSynthesizeEncodesBase64(t *testing.T) {
	p := &ttsmock.Provider{Audio: []byte{0x01, 0x02, 0x03}}
	s := New(p)

	got, err := s.Synthesize(context.Background(), "Hello there.")
	if err != nil {
		t.Fatalf("Synthesize() error = %v", err)
	}
	want := base64.StdEncoding.EncodeToString([]byte{0x01, 0x02, 0x03})
	if got != want {
		t.Errorf("Synthesize() = %q, want %q", got, want)
	}
}

func TestSynthesizeCacheHitSkipsProvider(t *testing.T) {
	p := &ttsmock.Provider{Audio: []byte("mp3-bytes")}
	s := New(p, WithCache(cache.NewLRU(10)))
	ctx := context.Background()

	first, err := s.Synthesize(ctx, "Top politics news:")
	if err != nil {
		t.Fatalf("first Synthesize() error = %v", err)
	}
	second, err := s.Synthesize(ctx, "Top politics news:")
	if err != nil {
		t.Fatalf("second Synthesize() error = %v", err)
	}

	if first != second {
		t.Error("cached audio differs from first synthesis")
	}
	if calls := len(p.Calls()); calls != 1 {
		t.Errorf("provider calls = %d, want 1 (second call must hit the cache)", calls)
	}
}

func TestSynthesizeDistinctTextsMiss(t *testing.T) {
	p := &ttsmock.Provider{AudioFn: func(text string) []byte { return []byte(text) }}
	s := New(p, WithCache(cache.NewLRU(10)))
	ctx := context.Background()

	a, _ := s.Synthesize(ctx, "First sentence.")
	b, _ := s.Synthesize(ctx, "Second sentence.")

	if a == b {
		t.Error("different texts produced identical audio")
	}
	if calls := len(p.Calls()); calls != 2 {
		t.Errorf("provider calls = %d, want 2", calls)
	}
}

func TestSynthesizeProviderFailure(t *testing.T) {
	p := &ttsmock.Provider{Err: errors.New("engine offline")}
	s := New(p, WithCache(cache.NewLRU(10)))

	got, err := s.Synthesize(context.Background(), "Anything.")
	if err == nil {
		t.Fatal("Synthesize() error = nil, want failure")
	}
	if got != "" {
		t.Errorf("Synthesize() = %q, want empty on failure", got)
	}
}

func TestSynthesizeFailureNotCached(t *testing.T) {
	p := &ttsmock.Provider{Err: errors.New("engine offline")}
	c := cache.NewLRU(10)
	s := New(p, WithCache(c))
	ctx := context.Background()

	s.Synthesize(ctx, "Will fail.")
	if c.Len() != 0 {
		t.Errorf("cache entries = %d, want 0 after failed synthesis", c.Len())
	}

	// Provider recovers; the next call must reach it and then cache.
	p.Err = nil
	p.Audio = []byte("ok")
	if _, err := s.Synthesize(ctx, "Will fail."); err != nil {
		t.Fatalf("Synthesize() after recovery error = %v", err)
	}
	if c.Len() != 1 {
		t.Errorf("cache entries = %d, want 1 after recovery", c.Len())
	}
}

func TestSynthesizeRejectsEmptyText(t *testing.T) {
	p := &ttsmock.Provider{Audio: []byte("x")}
	s := New(p)

	if _, err := s.Synthesize(context.Background(), "   "); err == nil {
		t.Error("Synthesize() with blank text should return an error")
	}
	if len(p.Calls()) != 0 {
		t.Error("provider must not be called for blank text")
	}
}

func TestSynthesizeEmptyAudioIsError(t *testing.T) {
	p := &ttsmock.Provider{Audio: nil}
	s := New(p)

	if _, err := s.Synthesize(context.Background(), "Hello."); err == nil {
		t.Error("Synthesize() with empty provider audio should return an error")
	}
}
