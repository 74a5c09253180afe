// Package stt defines the Provider interface for speech-to-text backends.
//
// An STT provider wraps a transcription engine (a local whisper.cpp model, a
// whisper-server instance, or the OpenAI transcription API) and exposes a
// uniform batch interface: the voice-query pipeline records one complete
// utterance per request, so transcription is a single call rather than a
// streaming session.
//
// Implementations must be safe for concurrent use; the pipeline may transcribe
// several requests in parallel.
package stt

import (
	"context"
	"time"
)

// Config describes the audio format and recognition hints for a transcription
// call. The pipeline always delivers 16 kHz mono 16-bit little-endian PCM;
// the fields exist so tests and alternative callers can state other formats.
type Config struct {
	// SampleRate is the audio sample rate in Hz. Zero means 16000.
	SampleRate int

	// Language is the BCP-47 language tag for recognition (e.g., "en").
	// An empty string lets the provider auto-detect, if supported.
	Language string
}

// Transcript is the result of a transcription call.
type Transcript struct {
	// Text is the transcribed speech, whitespace-trimmed. Empty when the
	// provider heard nothing intelligible.
	Text string

	// Confidence is the overall confidence score (0.0–1.0). Zero when the
	// provider does not report confidence.
	Confidence float64

	// Duration is the length of the submitted audio.
	Duration time.Duration
}

// Provider is the abstraction over any STT backend.
//
// Transcribe submits one complete utterance of raw PCM audio and blocks until
// the provider returns text or fails. Implementations must respect context
// cancellation and must be safe for concurrent use.
type Provider interface {
	// Transcribe converts pcm (16-bit little-endian signed PCM matching cfg)
	// to text. A successful call with unintelligible audio returns a
	// Transcript with an empty Text rather than an error; errors indicate the
	// provider itself failed (network, model, authentication).
	Transcribe(ctx context.Context, pcm []byte, cfg Config) (*Transcript, error)
}
