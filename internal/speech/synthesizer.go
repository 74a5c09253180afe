// Package speech converts response chunks to audio through a TTS provider,
// with a bounded cache keyed by a hash of the exact chunk text. Short
// assistant phrases repeat constantly ("Sorry, something went wrong...",
// news intros), so the cache saves a full TTS round trip on every repeat.
package speech

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strings"

	"github.com/lumen-edu/jarvis/internal/cache"
	"github.com/lumen-edu/jarvis/pkg/provider/tts"
)

// Option is a functional option for configuring a [Synthesizer].
type Option func(*Synthesizer)

// WithCache attaches an audio cache. Without one every call hits the TTS
// provider.
func WithCache(c cache.Cache) Option {
	return func(s *Synthesizer) { s.cache = c }
}

// WithVoice sets the voice parameters passed to the provider.
func WithVoice(v tts.Voice) Option {
	return func(s *Synthesizer) { s.voice = v }
}

// WithLogger sets the structured logger. Defaults to [slog.Default].
func WithLogger(l *slog.Logger) Option {
	return func(s *Synthesizer) { s.log = l }
}

// Synthesizer converts text chunks to base64-encoded audio. Safe for
// concurrent use.
type Synthesizer struct {
	ttsP  tts.Provider
	cache cache.Cache
	voice tts.Voice
	log   *slog.Logger
}

// New constructs a [Synthesizer] backed by the given TTS provider.
func New(ttsP tts.Provider, opts ...Option) *Synthesizer {
	s := &Synthesizer{
		ttsP: ttsP,
		log:  slog.Default(),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Synthesize converts text to base64-encoded audio. Cache hits skip the TTS
// provider entirely and return byte-identical audio.
//
// A provider failure returns an empty string and a non-nil error; callers
// treat the chunk as text-only rather than failing the request.
func (s *Synthesizer) Synthesize(ctx context.Context, text string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", fmt.Errorf("speech: empty chunk text")
	}

	key := textKey(text)
	if s.cache != nil {
		if audio, ok := s.cache.Get(ctx, key); ok {
			return base64.StdEncoding.EncodeToString(audio), nil
		}
	}

	if s.ttsP == nil {
		return "", fmt.Errorf("speech: no TTS provider configured")
	}
	audio, err := s.ttsP.Synthesize(ctx, text, s.voice)
	if err != nil {
		s.log.Warn("speech synthesis failed", "chars", len(text), "error", err)
		return "", fmt.Errorf("speech: synthesize: %w", err)
	}
	if len(audio) == 0 {
		return "", fmt.Errorf("speech: provider returned no audio")
	}

	if s.cache != nil {
		s.cache.Set(ctx, key, audio)
	}
	return base64.StdEncoding.EncodeToString(audio), nil
}

// textKey returns the cache key for a chunk: the hex SHA-256 of its exact
// text.
func textKey(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}
