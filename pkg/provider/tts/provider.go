// Package tts defines the Provider interface for text-to-speech backends.
//
// A TTS provider wraps a speech synthesis service (OpenAI speech, or the
// Google Translate TTS endpoint) and presents a uniform batch interface:
// the pipeline synthesizes sentence-bounded chunks independently so it can
// cache and parallelise them, so Synthesize is one call per chunk rather
// than a streaming session.
//
// Implementations must be safe for concurrent use; multiple chunks are
// synthesized in parallel.
package tts

import "context"

// Voice describes the synthesis voice configuration.
type Voice struct {
	// ID is the provider-specific voice identifier (e.g., "alloy" for
	// OpenAI, a language code for gtrans). Empty means provider default.
	ID string

	// Language is the BCP-47 language tag (e.g., "en"). Providers that
	// encode language in the voice ID may ignore it.
	Language string

	// Speed adjusts speaking rate (0.5–2.0, 0 or 1.0 = default).
	Speed float64
}

// Provider is the abstraction over any TTS backend.
type Provider interface {
	// Synthesize converts text to encoded audio bytes (typically MP3).
	// An empty text input returns an error rather than empty audio.
	// Implementations must respect context cancellation.
	Synthesize(ctx context.Context, text string, voice Voice) ([]byte, error)
}
