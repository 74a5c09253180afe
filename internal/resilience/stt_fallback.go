package resilience

import (
	"context"

	"github.com/lumen-edu/jarvis/pkg/provider/stt"
)

// STTFallback implements [stt.Provider] with automatic failover across multiple
// transcription backends. Each backend has its own circuit breaker.
type STTFallback struct {
	group *FallbackGroup[stt.Provider]
}

// Compile-time interface assertion.
var _ stt.Provider = (*STTFallback)(nil)

// NewSTTFallback creates an [STTFallback] with primary as the preferred backend.
func NewSTTFallback(primary stt.Provider, primaryName string, cfg FallbackConfig) *STTFallback {
	return &STTFallback{
		group: NewFallbackGroup(primary, primaryName, cfg),
	}
}

// AddFallback registers an additional STT provider as a fallback.
func (f *STTFallback) AddFallback(name string, provider stt.Provider) {
	f.group.AddFallback(name, provider)
}

// Transcribe runs the transcription against the first healthy provider. If the
// primary fails or its breaker is open, subsequent fallbacks are tried.
func (f *STTFallback) Transcribe(ctx context.Context, pcm []byte, cfg stt.Config) (*stt.Transcript, error) {
	return ExecuteWithResult(f.group, func(p stt.Provider) (*stt.Transcript, error) {
		return p.Transcribe(ctx, pcm, cfg)
	})
}
