// Package generate turns an assembled prompt into response text segmented
// into sentence-bounded chunks, the unit of incremental speech synthesis.
//
// Two code paths produce a response:
//
//  1. The streaming LLM path: one prompt is sent to the model and incoming
//     deltas are segmented into chunks at sentence boundaries as they arrive.
//  2. The news template path: when the utterance is a news query and a
//     successful headline fetch is available, a deterministic templated
//     response is built without calling the model at all. This is a distinct,
//     cheaper path, not a fallback.
//
// A generation run moves through the states IDLE → STREAMING → {COMPLETE,
// FAILED}. On FAILED a single fixed apology chunk is substituted so speech
// synthesis always has at least one chunk to render.
package generate

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/lumen-edu/jarvis/internal/intent"
	"github.com/lumen-edu/jarvis/internal/promptctx"
	"github.com/lumen-edu/jarvis/internal/realtime"
	"github.com/lumen-edu/jarvis/pkg/provider/llm"
)

// State is the lifecycle phase of one generation run.
type State string

const (
	StateIdle      State = "idle"
	StateStreaming State = "streaming"
	StateComplete  State = "complete"
	StateFailed    State = "failed"
)

// DefaultApology is the fixed chunk substituted when generation fails.
const DefaultApology = "Sorry, something went wrong while processing your request."

// Result is the outcome of one generation run. Chunks partition Text: their
// concatenation is exactly the full response text.
type Result struct {
	Text         string
	Chunks       []string
	State        State
	FromTemplate bool

	// Err holds the underlying failure when State is [StateFailed]. The
	// apology chunk already stands in for it; Err exists for logging.
	Err error
}

// Request carries everything one generation run needs.
type Request struct {
	// Prompt is the fully formatted prompt string.
	Prompt string

	// Intent is the classified utterance intent; it selects the template
	// path together with Context.
	Intent intent.Intent

	// Context is the assembled real-time context, may be nil.
	Context *promptctx.Context

	// OnChunk, when set, is invoked synchronously for every chunk as it is
	// closed, in order, in addition to any listener registered with
	// [WithChunkListener]. It lets one caller stream this run's chunks
	// without affecting other users of the generator.
	OnChunk func(index int, text string)
}

// Option is a functional option for configuring a [Generator].
type Option func(*Generator)

// WithApology overrides the fixed apology chunk used on failure.
func WithApology(s string) Option {
	return func(g *Generator) { g.apology = s }
}

// WithTemperature sets the sampling temperature passed to the model.
func WithTemperature(t float64) Option {
	return func(g *Generator) { g.temperature = t }
}

// WithMaxTokens caps the completion length passed to the model.
func WithMaxTokens(n int) Option {
	return func(g *Generator) { g.maxTokens = n }
}

// WithTopP sets the nucleus-sampling cutoff passed to the model. Zero leaves
// the provider default in place.
func WithTopP(p float64) Option {
	return func(g *Generator) { g.topP = p }
}

// WithTopK limits sampling to the K most likely tokens. Zero leaves the
// provider default in place.
func WithTopK(k int) Option {
	return func(g *Generator) { g.topK = k }
}

// WithChunkListener registers a callback invoked synchronously for every
// chunk as it is closed, in order. Used to stream text chunks to clients
// before the full response is done.
func WithChunkListener(fn func(index int, text string)) Option {
	return func(g *Generator) { g.onChunk = fn }
}

// WithLogger sets the structured logger. Defaults to [slog.Default].
func WithLogger(l *slog.Logger) Option {
	return func(g *Generator) { g.log = l }
}

// Generator produces chunked response text. Safe for concurrent use; each
// Generate call tracks its own run state.
type Generator struct {
	llmP        llm.Provider
	apology     string
	temperature float64
	topP        float64
	topK        int
	maxTokens   int
	onChunk     func(int, string)
	log         *slog.Logger

	mu    sync.Mutex
	state State
}

// New constructs a [Generator] backed by the given LLM provider.
func New(llmP llm.Provider, opts ...Option) *Generator {
	g := &Generator{
		llmP:    llmP,
		apology: DefaultApology,
		log:     slog.Default(),
		state:   StateIdle,
	}
	for _, o := range opts {
		o(g)
	}
	return g
}

// State returns the state of the most recent generation run.
func (g *Generator) State() State {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

func (g *Generator) setState(s State) {
	g.mu.Lock()
	g.state = s
	g.mu.Unlock()
}

// Generate runs one generation for req. It never returns an error: failures
// transition the run to [StateFailed] and substitute the apology chunk so the
// pipeline always has something to speak.
func (g *Generator) Generate(ctx context.Context, req Request) *Result {
	notify := g.chunkNotifier(req)
	if res := g.tryTemplate(req, notify); res != nil {
		g.setState(StateComplete)
		return res
	}
	return g.generateStreaming(ctx, req, notify)
}

// chunkNotifier combines the generator-level listener with the per-request
// one. Either or both may be nil; the result may be nil.
func (g *Generator) chunkNotifier(req Request) func(int, string) {
	switch {
	case g.onChunk == nil:
		return req.OnChunk
	case req.OnChunk == nil:
		return g.onChunk
	default:
		return func(i int, text string) {
			g.onChunk(i, text)
			req.OnChunk(i, text)
		}
	}
}

// tryTemplate builds the deterministic news response when the intent is a
// news query backed by a successful fetch with at least one article. Returns
// nil when the template path does not apply.
func (g *Generator) tryTemplate(req Request, notify func(int, string)) *Result {
	if !req.Intent.IsNews() || req.Context == nil || req.Context.News == nil {
		return nil
	}
	news := req.Context.News
	if news.Status != realtime.StatusSuccess || len(news.Articles) == 0 {
		return nil
	}

	res := &Result{State: StateComplete, FromTemplate: true}
	emit := func(chunk string) {
		if notify != nil {
			notify(len(res.Chunks), chunk)
		}
		res.Chunks = append(res.Chunks, chunk)
	}

	emit(templateIntro(req.Intent))
	for _, a := range news.Articles {
		if a.Source != "" {
			emit(fmt.Sprintf(" %s, from %s.", a.Title, a.Source))
		} else {
			emit(fmt.Sprintf(" %s.", a.Title))
		}
	}
	emit(" Would you like to hear more about any of these?")

	res.Text = strings.Join(res.Chunks, "")
	return res
}

// templateIntro renders the introductory line for the template path, e.g.
// "Top politics news:" or "Top news about ukraine:".
func templateIntro(it intent.Intent) string {
	switch {
	case it.Category != "" && (it.SearchTerm == "" || it.SearchTerm == it.Category):
		return fmt.Sprintf("Top %s news:", it.Category)
	case it.SearchTerm != "":
		return fmt.Sprintf("Top news about %s:", it.SearchTerm)
	default:
		return "Top news headlines:"
	}
}

// generateStreaming runs the LLM path: stream the completion, segment deltas
// into sentence-bounded chunks, and guarantee at least one chunk whenever the
// stream produced any text.
func (g *Generator) generateStreaming(ctx context.Context, req Request, notify func(int, string)) *Result {
	g.setState(StateStreaming)

	llmReq := llm.CompletionRequest{
		Messages:    []llm.Message{{Role: "user", Content: req.Prompt}},
		Temperature: g.temperature,
		TopP:        g.topP,
		TopK:        g.topK,
		MaxTokens:   g.maxTokens,
	}

	ch, err := g.llmP.StreamCompletion(ctx, llmReq)
	if err != nil {
		return g.fail(notify, fmt.Errorf("generate: start stream: %w", err))
	}

	res := &Result{}
	chunker := newChunker(func(chunk string) {
		if notify != nil {
			notify(len(res.Chunks), chunk)
		}
		res.Chunks = append(res.Chunks, chunk)
	})

	for {
		select {
		case <-ctx.Done():
			go drainChunks(ch)
			return g.fail(notify, fmt.Errorf("generate: stream cancelled: %w", ctx.Err()))

		case chunk, ok := <-ch:
			if !ok {
				chunker.flush()
				return g.finish(res, chunker, notify)
			}

			if chunk.FinishReason == "error" {
				go drainChunks(ch)
				return g.fail(notify, fmt.Errorf("generate: stream error: %s", chunk.Text))
			}

			chunker.write(chunk.Text)

			if chunk.FinishReason != "" {
				go drainChunks(ch)
				chunker.flush()
				return g.finish(res, chunker, notify)
			}
		}
	}
}

// finish closes a successful run, enforcing the at-least-one-chunk guarantee.
func (g *Generator) finish(res *Result, c *chunker, notify func(int, string)) *Result {
	res.Text = c.total()
	if len(res.Chunks) == 0 && res.Text != "" {
		// No boundary was ever seen; the whole text becomes the one chunk.
		res.Chunks = []string{res.Text}
		if notify != nil {
			notify(0, res.Text)
		}
	}
	res.State = StateComplete
	g.setState(StateComplete)
	return res
}

// fail closes a failed run with the fixed apology chunk.
func (g *Generator) fail(notify func(int, string), err error) *Result {
	g.log.Warn("generation failed, substituting apology", "error", err)
	g.setState(StateFailed)
	res := &Result{
		Text:   g.apology,
		Chunks: []string{g.apology},
		State:  StateFailed,
		Err:    err,
	}
	if notify != nil {
		notify(0, g.apology)
	}
	return res
}

// drainChunks discards remaining chunks so the provider's goroutine can exit.
func drainChunks(ch <-chan llm.Chunk) {
	for range ch {
	}
}
