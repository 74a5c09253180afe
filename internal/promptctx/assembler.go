// Package promptctx assembles the prompt context for one assistant response:
// request-scoped real-time fragments (news headlines, current date/time) plus
// a bounded slice of the caller-supplied conversation history. Use
// [FormatPrompt] to render an assembled [Context] into the final prompt
// string.
package promptctx

import (
	"context"
	"time"
	"unicode/utf8"

	"github.com/lumen-edu/jarvis/internal/intent"
	"github.com/lumen-edu/jarvis/internal/realtime"
)

// Turn is one prior conversation exchange supplied by the caller. The
// pipeline does not own persistence of this history.
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Context is the assembled per-request prompt context. All fields are
// request-scoped and discarded with the response.
type Context struct {
	// Fragments are real-time text fragments in injection order.
	Fragments []string

	// News holds the headline fetch result when the intent was a news query,
	// nil otherwise.
	News *realtime.Result

	// NewsFailed is set when a news fetch was attempted but produced no
	// usable articles, so the response can acknowledge the gap.
	NewsFailed bool

	// AssemblyDuration records how long [Assembler.Assemble] took.
	AssemblyDuration time.Duration
}

const (
	defaultMaxTurns     = 4
	defaultTurnBudget   = 100
	defaultArticleCount = 5
)

// Option is a functional option for [NewAssembler].
type Option func(*Assembler)

// WithMaxTurns caps how many of the most recent conversation turns are kept
// when formatting the prompt. Defaults to 4.
func WithMaxTurns(n int) Option {
	return func(a *Assembler) { a.maxTurns = n }
}

// WithTurnBudget caps each history turn's content at n characters to bound
// prompt size. Defaults to 100.
func WithTurnBudget(n int) Option {
	return func(a *Assembler) { a.turnBudget = n }
}

// WithClock overrides the time source. Used in tests to pin the clock.
func WithClock(c realtime.Clock) Option {
	return func(a *Assembler) { a.clock = c }
}

// Assembler builds a [Context] from a classified intent. Safe for concurrent
// use.
type Assembler struct {
	news       realtime.NewsFetcher
	clock      realtime.Clock
	maxTurns   int
	turnBudget int
}

// NewAssembler creates an [Assembler]. news may be nil when no news source is
// configured; news intents then degrade to a failed fetch.
func NewAssembler(news realtime.NewsFetcher, opts ...Option) *Assembler {
	a := &Assembler{
		news:       news,
		clock:      time.Now,
		maxTurns:   defaultMaxTurns,
		turnBudget: defaultTurnBudget,
	}
	for _, o := range opts {
		o(a)
	}
	return a
}

// Assemble gathers real-time fragments for the classified intent.
//
// For a time/date intent it renders the current clock fragment. For a news
// intent it invokes the headline fetcher; a failed or empty fetch yields no
// fragment and sets [Context.NewsFailed] so the response generator can
// acknowledge the degradation. General intents produce an empty context.
//
// The news fetch respects ctx; callers enforce their wait bound through the
// context deadline.
func (a *Assembler) Assemble(ctx context.Context, it intent.Intent) *Context {
	start := time.Now()
	pc := &Context{}

	switch it.Kind {
	case intent.KindTimeDate:
		pc.Fragments = append(pc.Fragments, realtime.FormatTimeDate(a.clock()))

	case intent.KindNews:
		res := a.fetchNews(ctx, it)
		pc.News = &res
		if res.Status == realtime.StatusSuccess {
			pc.Fragments = append(pc.Fragments,
				"Latest news headlines:\n"+realtime.FormatHeadlines(res.Articles))
		} else {
			pc.NewsFailed = true
		}
	}

	pc.AssemblyDuration = time.Since(start)
	return pc
}

func (a *Assembler) fetchNews(ctx context.Context, it intent.Intent) realtime.Result {
	if a.news == nil {
		return realtime.Result{Status: realtime.StatusError, Timestamp: a.clock()}
	}
	return a.news.FetchHeadlines(ctx, it.SearchTerm, it.Category, defaultArticleCount)
}

// MaxTurns returns the most-recent turn cap applied by [TruncateHistory].
func (a *Assembler) MaxTurns() int {
	return a.maxTurns
}

// TruncateHistory bounds history to the assembler's most-recent turn count
// and per-turn character budget. The input slice is not modified.
func (a *Assembler) TruncateHistory(history []Turn) []Turn {
	if len(history) > a.maxTurns {
		history = history[len(history)-a.maxTurns:]
	}
	out := make([]Turn, len(history))
	for i, t := range history {
		t.Content = truncateAtRune(t.Content, a.turnBudget)
		out[i] = t
	}
	return out
}

// truncateAtRune cuts s to at most limit bytes without splitting a multi-byte
// rune, so the prompt never carries invalid UTF-8.
func truncateAtRune(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	for limit > 0 && !utf8.RuneStart(s[limit]) {
		limit--
	}
	return s[:limit]
}
