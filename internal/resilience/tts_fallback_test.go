package resilience

import (
	"context"
	"errors"
	"testing"

	"github.com/lumen-edu/jarvis/pkg/provider/tts"
	ttsmock "github.com/lumen-edu/jarvis/pkg/provider/tts/mock"
)

func TestTTSFallbackPrimarySucceeds(t *testing.T) {
	primary := &ttsmock.Provider{Audio: []byte("primary-audio")}
	backup := &ttsmock.Provider{Audio: []byte("backup-audio")}

	f := NewTTSFallback(primary, "openai", FallbackConfig{})
	f.AddFallback("gtrans", backup)

	audio, err := f.Synthesize(context.Background(), "Hello.", tts.Voice{ID: "alloy"})
	if err != nil {
		t.Fatalf("Synthesize() error = %v", err)
	}
	if string(audio) != "primary-audio" {
		t.Errorf("audio = %q, want primary audio", audio)
	}
	if len(backup.Calls()) != 0 {
		t.Errorf("backup calls = %d, want 0", len(backup.Calls()))
	}
}

func TestTTSFallbackFailsOver(t *testing.T) {
	primary := &ttsmock.Provider{Err: errors.New("synthesis failed")}
	backup := &ttsmock.Provider{Audio: []byte("backup-audio")}

	f := NewTTSFallback(primary, "openai", FallbackConfig{})
	f.AddFallback("gtrans", backup)

	audio, err := f.Synthesize(context.Background(), "Hello.", tts.Voice{})
	if err != nil {
		t.Fatalf("Synthesize() error = %v", err)
	}
	if string(audio) != "backup-audio" {
		t.Errorf("audio = %q, want backup audio", audio)
	}

	calls := backup.Calls()
	if len(calls) != 1 || calls[0].Text != "Hello." {
		t.Errorf("backup calls = %+v, want one call with original text", calls)
	}
}

func TestTTSFallbackAllFail(t *testing.T) {
	primary := &ttsmock.Provider{Err: errors.New("down")}
	backup := &ttsmock.Provider{Err: errors.New("also down")}

	f := NewTTSFallback(primary, "openai", FallbackConfig{})
	f.AddFallback("gtrans", backup)

	_, err := f.Synthesize(context.Background(), "Hello.", tts.Voice{})
	if !errors.Is(err, ErrAllFailed) {
		t.Errorf("error = %v, want ErrAllFailed", err)
	}
}
