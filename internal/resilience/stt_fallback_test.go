package resilience

import (
	"context"
	"errors"
	"testing"

	"github.com/lumen-edu/jarvis/pkg/provider/stt"
	sttmock "github.com/lumen-edu/jarvis/pkg/provider/stt/mock"
)

func TestSTTFallbackPrimarySucceeds(t *testing.T) {
	primary := &sttmock.Provider{Result: &stt.Transcript{Text: "from primary"}}
	backup := &sttmock.Provider{Result: &stt.Transcript{Text: "from backup"}}

	f := NewSTTFallback(primary, "primary", FallbackConfig{})
	f.AddFallback("backup", backup)

	tr, err := f.Transcribe(context.Background(), []byte{0, 0}, stt.Config{SampleRate: 16000})
	if err != nil {
		t.Fatalf("Transcribe() error = %v", err)
	}
	if tr.Text != "from primary" {
		t.Errorf("text = %q, want primary result", tr.Text)
	}
	if backup.Calls() != 0 {
		t.Errorf("backup calls = %d, want 0", backup.Calls())
	}
}

func TestSTTFallbackFailsOver(t *testing.T) {
	primary := &sttmock.Provider{Err: errors.New("primary down")}
	backup := &sttmock.Provider{Result: &stt.Transcript{Text: "from backup"}}

	f := NewSTTFallback(primary, "primary", FallbackConfig{})
	f.AddFallback("backup", backup)

	tr, err := f.Transcribe(context.Background(), []byte{0, 0}, stt.Config{})
	if err != nil {
		t.Fatalf("Transcribe() error = %v", err)
	}
	if tr.Text != "from backup" {
		t.Errorf("text = %q, want backup result", tr.Text)
	}
	if primary.Calls() != 1 {
		t.Errorf("primary calls = %d, want 1", primary.Calls())
	}
}

func TestSTTFallbackAllFail(t *testing.T) {
	primary := &sttmock.Provider{Err: errors.New("primary down")}
	backup := &sttmock.Provider{Err: errors.New("backup down")}

	f := NewSTTFallback(primary, "primary", FallbackConfig{})
	f.AddFallback("backup", backup)

	_, err := f.Transcribe(context.Background(), []byte{0, 0}, stt.Config{})
	if !errors.Is(err, ErrAllFailed) {
		t.Errorf("error = %v, want ErrAllFailed", err)
	}
}

func TestSTTFallbackOpenBreakerSkipsPrimary(t *testing.T) {
	primary := &sttmock.Provider{Err: errors.New("primary down")}
	backup := &sttmock.Provider{Result: &stt.Transcript{Text: "ok"}}

	cfg := FallbackConfig{CircuitBreaker: CircuitBreakerConfig{MaxFailures: 2}}
	f := NewSTTFallback(primary, "primary", cfg)
	f.AddFallback("backup", backup)

	ctx := context.Background()
	for range 3 {
		f.Transcribe(ctx, []byte{0, 0}, stt.Config{})
	}

	// Breaker tripped after 2 failures; the third call must not reach primary.
	if calls := primary.Calls(); calls != 2 {
		t.Errorf("primary calls = %d, want 2 (breaker open after that)", calls)
	}
}
