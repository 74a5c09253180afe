// Package mock provides a test double for the stt.Provider interface.
//
// Use Provider to feed controlled transcription results and to verify which
// audio payloads the pipeline submits.
//
// Example:
//
//	p := &mock.Provider{Result: &stt.Transcript{Text: "hello"}}
//	t, _ := p.Transcribe(ctx, pcm, stt.Config{})
package mock

import (
	"context"
	"sync"

	"github.com/lumen-edu/jarvis/pkg/provider/stt"
)

// TranscribeCall records a single invocation of Provider.Transcribe.
type TranscribeCall struct {
	// Ctx is the context passed to Transcribe.
	Ctx context.Context
	// PCM is a copy of the audio bytes passed to Transcribe.
	PCM []byte
	// Cfg is the Config passed to Transcribe.
	Cfg stt.Config
}

// Provider is a mock implementation of stt.Provider.
// Zero values for response fields cause Transcribe to return an empty
// Transcript. Set Err to inject an error.
type Provider struct {
	mu sync.Mutex

	// Result is returned by Transcribe. When nil, an empty Transcript is
	// returned instead.
	Result *stt.Transcript

	// Err, if non-nil, is returned as the error from Transcribe.
	Err error

	// Delay, when set via SetDelayFn, allows tests to block Transcribe.
	// DelayFn is called (if non-nil) before the result is returned.
	DelayFn func(ctx context.Context)

	// TranscribeCalls records every call to Transcribe.
	TranscribeCalls []TranscribeCall
}

// Compile-time interface assertion.
var _ stt.Provider = (*Provider)(nil)

// Transcribe records the call and returns Result, Err.
func (p *Provider) Transcribe(ctx context.Context, pcm []byte, cfg stt.Config) (*stt.Transcript, error) {
	p.mu.Lock()
	cp := make([]byte, len(pcm))
	copy(cp, pcm)
	p.TranscribeCalls = append(p.TranscribeCalls, TranscribeCall{Ctx: ctx, PCM: cp, Cfg: cfg})
	delay := p.DelayFn
	result := p.Result
	err := p.Err
	p.mu.Unlock()

	if delay != nil {
		delay(ctx)
	}
	if err != nil {
		return nil, err
	}
	if result != nil {
		return result, nil
	}
	return &stt.Transcript{}, nil
}

// Calls returns the number of recorded Transcribe calls. Thread-safe.
func (p *Provider) Calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.TranscribeCalls)
}

// Reset clears all recorded calls. Thread-safe.
func (p *Provider) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.TranscribeCalls = nil
}
