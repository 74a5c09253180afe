// Package mock provides a test double for [tts.Provider] that records calls
// and returns configurable results.
package mock

import (
	"context"
	"sync"

	"github.com/lumen-edu/jarvis/pkg/provider/tts"
)

// Compile-time interface assertion.
var _ tts.Provider = (*Provider)(nil)

// SynthesizeCall records the arguments of one Synthesize invocation.
type SynthesizeCall struct {
	Text  string
	Voice tts.Voice
}

// Provider is a configurable mock implementation of [tts.Provider].
// The zero value is usable; set Audio and Err to control behavior.
type Provider struct {
	mu sync.Mutex

	// Audio is returned from Synthesize when Err is nil. When AudioFn is
	// set it takes precedence and is invoked per call.
	Audio   []byte
	AudioFn func(text string) []byte

	// Err, when non-nil, is returned from every Synthesize call.
	Err error

	// SynthesizeCalls records every invocation in order.
	SynthesizeCalls []SynthesizeCall
}

// Synthesize implements tts.Provider.
func (p *Provider) Synthesize(ctx context.Context, text string, voice tts.Voice) ([]byte, error) {
	p.mu.Lock()
	p.SynthesizeCalls = append(p.SynthesizeCalls, SynthesizeCall{Text: text, Voice: voice})
	p.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if p.Err != nil {
		return nil, p.Err
	}
	if p.AudioFn != nil {
		return p.AudioFn(text), nil
	}
	return p.Audio, nil
}

// Calls returns a snapshot of the recorded invocations.
func (p *Provider) Calls() []SynthesizeCall {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]SynthesizeCall, len(p.SynthesizeCalls))
	copy(out, p.SynthesizeCalls)
	return out
}

// Reset clears all recorded calls.
func (p *Provider) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.SynthesizeCalls = nil
}
