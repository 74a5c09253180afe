// Package mock provides a test double for [realtime.NewsFetcher].
package mock

import (
	"context"
	"sync"
	"time"

	"github.com/lumen-edu/jarvis/internal/realtime"
)

// Compile-time interface assertion.
var _ realtime.NewsFetcher = (*Fetcher)(nil)

// FetchCall records the arguments of one FetchHeadlines invocation.
type FetchCall struct {
	Query    string
	Category string
	Count    int
}

// Fetcher is a configurable mock implementation of [realtime.NewsFetcher].
// The zero value returns an empty success result.
type Fetcher struct {
	mu sync.Mutex

	// Result is returned from every FetchHeadlines call.
	Result realtime.Result

	// Delay, when non-zero, blocks each call for the duration or until the
	// context is done, whichever comes first. A context expiry yields a
	// timeout result, mirroring the real client.
	Delay time.Duration

	// FetchCalls records every invocation in order.
	FetchCalls []FetchCall
}

// FetchHeadlines implements realtime.NewsFetcher.
func (f *Fetcher) FetchHeadlines(ctx context.Context, query, category string, count int) realtime.Result {
	f.mu.Lock()
	f.FetchCalls = append(f.FetchCalls, FetchCall{Query: query, Category: category, Count: count})
	f.mu.Unlock()

	if f.Delay > 0 {
		select {
		case <-time.After(f.Delay):
		case <-ctx.Done():
			return realtime.Result{Status: realtime.StatusTimeout, Timestamp: time.Now()}
		}
	}
	return f.Result
}

// Calls returns a snapshot of the recorded invocations.
func (f *Fetcher) Calls() []FetchCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]FetchCall, len(f.FetchCalls))
	copy(out, f.FetchCalls)
	return out
}
