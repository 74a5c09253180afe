// Package pipeline coordinates one audio query end to end: transcription,
// transcript selection, intent classification, context assembly, response
// generation, and speech synthesis.
//
// The [Coordinator] owns the stage ordering and the concurrency between
// stages. Individual stages stay ignorant of each other; the coordinator is
// the only place that knows a news fetch is bounded by a wait deadline or
// that the second and third response chunks are synthesized in the
// background.
package pipeline

import (
	"context"
	"log/slog"
	"sync"
	"time"
	"unicode"

	"golang.org/x/sync/errgroup"

	"github.com/lumen-edu/jarvis/internal/generate"
	"github.com/lumen-edu/jarvis/internal/intent"
	"github.com/lumen-edu/jarvis/internal/observe"
	"github.com/lumen-edu/jarvis/internal/promptctx"
	"github.com/lumen-edu/jarvis/internal/realtime"
	"github.com/lumen-edu/jarvis/internal/session"
	"github.com/lumen-edu/jarvis/internal/speech"
	"github.com/lumen-edu/jarvis/internal/transcript"
	"github.com/lumen-edu/jarvis/pkg/provider/stt"
)

const (
	// defaultNewsWait bounds how long a request waits for live headlines
	// before degrading to a response without them.
	defaultNewsWait = 3 * time.Second

	// defaultWorkerLimit caps concurrent background synthesis work per
	// request.
	defaultWorkerLimit = 4

	// browserSkipThreshold is the minimum number of non-whitespace
	// characters a browser transcript needs before hosted transcription is
	// skipped entirely.
	browserSkipThreshold = 5

	// backgroundChunks is how many chunks after the first are synthesized
	// before the response is returned.
	backgroundChunks = 2
)

// Input is one audio query to process.
type Input struct {
	// PCM is the decoded utterance audio, 16 kHz mono 16-bit little-endian.
	// May be empty when BrowserTranscript carries the utterance.
	PCM []byte

	// BrowserTranscript is the client-side speech recognition result, may be
	// empty.
	BrowserTranscript string

	// History is the prior conversation supplied by the client, oldest
	// first.
	History []promptctx.Turn

	// SessionID identifies the conversation for persistence. Empty disables
	// persistence for this request.
	SessionID string
}

// Result is the outcome of one pipeline run.
type Result struct {
	// Utterance is the selected transcript the response answers.
	Utterance transcript.Utterance

	// HostedText and BrowserText are the raw transcripts both recognizers
	// produced, before selection.
	HostedText  string
	BrowserText string

	// Intent is the classified intent of the utterance.
	Intent intent.Intent

	// Text is the full response text. Chunks partition it in order.
	Text   string
	Chunks []string

	// Voice is the base64-encoded audio for Chunks[0], nil when synthesis
	// failed or produced nothing.
	Voice *string

	// AdditionalVoices holds base64 audio for Chunks[1:], index-aligned.
	// Entries are nil where synthesis failed. [Coordinator.Run] stops after
	// the background synthesis window; [Coordinator.RunStream] covers every
	// chunk.
	AdditionalVoices []*string

	// NewsQueried reports whether a headline fetch was attempted.
	NewsQueried bool

	// News is the headline fetch outcome, nil when no fetch was attempted.
	News *realtime.Result

	// FromTemplate reports whether the response came from the deterministic
	// news template instead of the model.
	FromTemplate bool

	// Failed reports whether generation failed and Text is the apology.
	Failed bool

	// ProcessingTime is the wall-clock duration of the whole run.
	ProcessingTime time.Duration
}

// Option is a functional option for [NewCoordinator].
type Option func(*Coordinator)

// WithNewsWait bounds how long a request waits for live headlines. Defaults
// to 3 seconds.
func WithNewsWait(d time.Duration) Option {
	return func(c *Coordinator) { c.newsWait = d }
}

// WithWorkerLimit caps concurrent background work per request. Defaults to 4.
func WithWorkerLimit(n int) Option {
	return func(c *Coordinator) { c.workerLimit = n }
}

// WithPersona overrides the system persona used in prompts.
func WithPersona(p string) Option {
	return func(c *Coordinator) { c.persona = p }
}

// WithSessionStore enables conversation persistence.
func WithSessionStore(s session.Store) Option {
	return func(c *Coordinator) { c.sessions = s }
}

// WithMetrics overrides the metrics instance. Defaults to
// [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(c *Coordinator) { c.metrics = m }
}

// WithLogger overrides the logger. Defaults to [slog.Default].
func WithLogger(l *slog.Logger) Option {
	return func(c *Coordinator) { c.log = l }
}

// Coordinator runs the audio-query pipeline. Safe for concurrent use; all
// per-request state lives on the stack of [Coordinator.Run].
type Coordinator struct {
	sttP      stt.Provider
	selector  *transcript.Selector
	assembler *promptctx.Assembler
	generator *generate.Generator
	speech    *speech.Synthesizer
	sessions  session.Store

	mu          sync.RWMutex // guards persona and newsWait, updated on config reload
	persona     string
	newsWait    time.Duration
	workerLimit int

	metrics *observe.Metrics
	log     *slog.Logger
}

// NewCoordinator wires the pipeline stages together. sttP may be nil when
// every request is expected to carry a browser transcript.
func NewCoordinator(
	sttP stt.Provider,
	selector *transcript.Selector,
	assembler *promptctx.Assembler,
	generator *generate.Generator,
	synth *speech.Synthesizer,
	opts ...Option,
) *Coordinator {
	c := &Coordinator{
		sttP:        sttP,
		selector:    selector,
		assembler:   assembler,
		generator:   generator,
		speech:      synth,
		persona:     promptctx.DefaultPersona,
		newsWait:    defaultNewsWait,
		workerLimit: defaultWorkerLimit,
		metrics:     observe.DefaultMetrics(),
		log:         slog.Default(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Persona returns the current system persona.
func (c *Coordinator) Persona() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.persona
}

// SetPersona replaces the system persona used for subsequent requests.
// Called by the config watcher when the persona changes at runtime.
func (c *Coordinator) SetPersona(p string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.persona = p
}

// SetNewsWait replaces the headline-fetch deadline used for subsequent
// requests. Called by the config watcher on reload.
func (c *Coordinator) SetNewsWait(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.newsWait = d
}

func (c *Coordinator) currentNewsWait() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.newsWait
}

// ChunkEvent is one response chunk handed to a [Coordinator.RunStream]
// callback as soon as its synthesis finished. Events arrive in index order.
type ChunkEvent struct {
	// Index is the chunk's position in the response, starting at 0.
	Index int

	// Text is the chunk text.
	Text string

	// Voice is the base64-encoded chunk audio, nil when synthesis failed.
	Voice *string
}

// Run processes one audio query. When neither recognizer produced usable
// text it returns a partial Result (raw transcripts filled in) together with
// [transcript.ErrNoTranscript]; any other error is a pipeline failure.
func (c *Coordinator) Run(ctx context.Context, in Input) (*Result, error) {
	return c.run(ctx, in, nil)
}

// RunStream processes one audio query and delivers each response chunk
// through emit as soon as its audio is ready, in index order, while later
// chunks are still being generated and synthesized. emit is called from a
// single goroutine and has returned for every chunk by the time RunStream
// returns; the Result summarizes the same chunks and voices. A nil emit makes
// RunStream equivalent to [Coordinator.Run].
func (c *Coordinator) RunStream(ctx context.Context, in Input, emit func(ChunkEvent)) (*Result, error) {
	return c.run(ctx, in, emit)
}

func (c *Coordinator) run(ctx context.Context, in Input, emit func(ChunkEvent)) (*Result, error) {
	start := time.Now()
	ctx, span := observe.StartSpan(ctx, "pipeline.Run")
	defer span.End()

	c.metrics.ActiveRequests.Add(ctx, 1)
	defer c.metrics.ActiveRequests.Add(ctx, -1)

	res := &Result{BrowserText: in.BrowserTranscript}

	// A confident browser transcript makes hosted transcription redundant.
	if !browserCoversUtterance(in.BrowserTranscript) && len(in.PCM) > 0 && c.sttP != nil {
		sttStart := time.Now()
		tr, err := c.sttP.Transcribe(ctx, in.PCM, stt.Config{})
		c.metrics.STTDuration.Record(ctx, time.Since(sttStart).Seconds())
		if err != nil {
			// Transcription failure degrades to the browser transcript
			// rather than failing the request.
			c.log.WarnContext(ctx, "transcription failed", "error", err)
		} else {
			res.HostedText = tr.Text
		}
	}

	utt, err := c.selector.Select(res.HostedText, in.BrowserTranscript)
	if err != nil {
		res.ProcessingTime = time.Since(start)
		return res, err
	}
	res.Utterance = utt

	res.Intent = intent.Classify(utt.Text)
	c.metrics.RecordIntent(ctx, string(res.Intent.Kind))

	pc := c.assembleContext(ctx, res.Intent)
	if res.Intent.IsNews() {
		res.NewsQueried = true
		res.News = pc.News
	}

	history := c.assembler.TruncateHistory(c.loadHistory(ctx, in))
	prompt := promptctx.FormatPrompt(c.Persona(), pc, history, utt.Text)

	genReq := generate.Request{
		Prompt:  prompt,
		Intent:  res.Intent,
		Context: pc,
	}

	genStart := time.Now()
	var gen *generate.Result
	if emit == nil {
		gen = c.generator.Generate(ctx, genReq)
	} else {
		gen = c.streamChunks(ctx, res, genReq, emit)
	}
	c.metrics.GenerationDuration.Record(ctx, time.Since(genStart).Seconds())

	res.Text = gen.Text
	res.Chunks = gen.Chunks
	res.FromTemplate = gen.FromTemplate
	res.Failed = gen.State == generate.StateFailed

	if emit == nil {
		c.synthesizeChunks(ctx, res)
	}
	c.persistTurns(ctx, in, res)

	res.ProcessingTime = time.Since(start)
	c.metrics.PipelineDuration.Record(ctx, res.ProcessingTime.Seconds())
	return res, nil
}

// loadHistory resolves the conversation history for one request.
// Client-supplied history always wins; when the client sends none but names a
// session, the most recent persisted turns are recalled so a returning caller
// keeps their context. A load failure degrades to an empty history.
func (c *Coordinator) loadHistory(ctx context.Context, in Input) []promptctx.Turn {
	if len(in.History) > 0 || in.SessionID == "" || c.sessions == nil {
		return in.History
	}

	entries, err := c.sessions.Recent(ctx, in.SessionID, c.assembler.MaxTurns())
	if err != nil {
		c.log.WarnContext(ctx, "session history load failed",
			"session_id", in.SessionID, "error", err)
		return nil
	}
	turns := make([]promptctx.Turn, len(entries))
	for i, e := range entries {
		turns[i] = promptctx.Turn{Role: e.Role, Content: e.Content}
	}
	return turns
}

// assembleContext runs context assembly in the background and bounds the
// wait. On timeout the request proceeds with a degraded context so a slow
// headline fetch never stalls the response.
func (c *Coordinator) assembleContext(ctx context.Context, it intent.Intent) *promptctx.Context {
	wait := c.currentNewsWait()
	waitCtx, cancel := context.WithTimeout(ctx, wait)

	done := make(chan *promptctx.Context, 1)
	go func() {
		defer cancel()
		done <- c.assembler.Assemble(waitCtx, it)
	}()

	newsStart := time.Now()
	select {
	case pc := <-done:
		if it.IsNews() {
			c.metrics.NewsDuration.Record(ctx, time.Since(newsStart).Seconds())
		}
		return pc
	case <-waitCtx.Done():
		if it.IsNews() {
			c.metrics.NewsDuration.Record(ctx, time.Since(newsStart).Seconds())
		}
		c.log.WarnContext(ctx, "context assembly timed out", "wait", wait)
		pc := &promptctx.Context{AssemblyDuration: time.Since(newsStart)}
		if it.IsNews() {
			pc.NewsFailed = true
			pc.News = &realtime.Result{Status: realtime.StatusTimeout, Timestamp: newsStart}
		}
		return pc
	}
}

// synthesizeChunks produces audio for the response. The first chunk is
// synthesized synchronously so the caller always leaves with speakable audio
// when synthesis works at all; the next chunks run concurrently in a bounded
// group and are resequenced by chunk index before Run returns.
func (c *Coordinator) synthesizeChunks(ctx context.Context, res *Result) {
	if c.speech == nil || len(res.Chunks) == 0 {
		return
	}

	res.Voice = c.synthesizeOne(ctx, res.Chunks[0])

	rest := res.Chunks[1:]
	if len(rest) > backgroundChunks {
		rest = rest[:backgroundChunks]
	}
	if len(rest) == 0 {
		return
	}

	res.AdditionalVoices = make([]*string, len(rest))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.workerLimit)
	for i, chunk := range rest {
		g.Go(func() error {
			res.AdditionalVoices[i] = c.synthesizeOne(gctx, chunk)
			return nil
		})
	}
	// Workers never return errors; failures become nil slots.
	_ = g.Wait()
}

// streamChunks runs generation with a live per-request chunk listener. Each
// chunk is queued for synthesis the moment the generator closes it and handed
// to emit once its audio is ready, so the client hears the first sentence
// while later ones are still streaming in from the model. Synthesis runs
// sequentially on one goroutine, which keeps delivery in index order.
func (c *Coordinator) streamChunks(ctx context.Context, res *Result, req generate.Request, emit func(ChunkEvent)) *generate.Result {
	pending := make(chan ChunkEvent, 16)
	voicesCh := make(chan []*string, 1)

	go func() {
		var voices []*string
		for ev := range pending {
			if c.speech != nil {
				ev.Voice = c.synthesizeOne(ctx, ev.Text)
			}
			voices = append(voices, ev.Voice)
			emit(ev)
		}
		voicesCh <- voices
	}()

	req.OnChunk = func(i int, text string) {
		pending <- ChunkEvent{Index: i, Text: text}
	}
	gen := c.generator.Generate(ctx, req)
	close(pending)

	voices := <-voicesCh
	if len(voices) > 0 {
		res.Voice = voices[0]
		res.AdditionalVoices = voices[1:]
	}
	return gen
}

// synthesizeOne returns base64 audio for text, or nil on failure. A missing
// chunk voice is tolerated; the text response still carries the content.
func (c *Coordinator) synthesizeOne(ctx context.Context, text string) *string {
	ttsStart := time.Now()
	audio, err := c.speech.Synthesize(ctx, text)
	c.metrics.TTSDuration.Record(ctx, time.Since(ttsStart).Seconds())
	if err != nil {
		c.log.WarnContext(ctx, "chunk synthesis failed", "error", err)
		return nil
	}
	return &audio
}

// persistTurns appends the exchange to the session store, best effort. The
// write is detached from the request context so a client disconnect does not
// lose the turn.
func (c *Coordinator) persistTurns(ctx context.Context, in Input, res *Result) {
	if c.sessions == nil || in.SessionID == "" || res.Failed {
		return
	}
	bg := context.WithoutCancel(ctx)
	go func() {
		err := c.sessions.Append(bg, in.SessionID,
			session.Entry{Role: "user", Content: res.Utterance.Text},
			session.Entry{Role: "assistant", Content: res.Text},
		)
		if err != nil {
			c.log.WarnContext(bg, "session persistence failed",
				"session_id", in.SessionID, "error", err)
		}
	}()
}

// browserCoversUtterance reports whether the browser transcript alone is
// substantial enough to skip hosted transcription.
func browserCoversUtterance(text string) bool {
	n := 0
	for _, r := range text {
		if !unicode.IsSpace(r) {
			n++
			if n >= browserSkipThreshold {
				return true
			}
		}
	}
	return false
}

// NonEmptyChunks reports whether any synthesized voice made it into res.
func (r *Result) NonEmptyChunks() bool {
	if r.Voice != nil {
		return true
	}
	for _, v := range r.AdditionalVoices {
		if v != nil {
			return true
		}
	}
	return false
}
