// Command jarvisd is the main entry point for the Jarvis voice assistant server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	anyllmlib "github.com/mozilla-ai/any-llm-go"

	"github.com/lumen-edu/jarvis/internal/cache"
	"github.com/lumen-edu/jarvis/internal/config"
	"github.com/lumen-edu/jarvis/internal/generate"
	"github.com/lumen-edu/jarvis/internal/health"
	"github.com/lumen-edu/jarvis/internal/observe"
	"github.com/lumen-edu/jarvis/internal/pipeline"
	"github.com/lumen-edu/jarvis/internal/promptctx"
	"github.com/lumen-edu/jarvis/internal/realtime"
	"github.com/lumen-edu/jarvis/internal/resilience"
	"github.com/lumen-edu/jarvis/internal/server"
	"github.com/lumen-edu/jarvis/internal/session"
	"github.com/lumen-edu/jarvis/internal/speech"
	"github.com/lumen-edu/jarvis/internal/transcript"
	"github.com/lumen-edu/jarvis/pkg/provider/llm"
	"github.com/lumen-edu/jarvis/pkg/provider/llm/anyllm"
	llmopenai "github.com/lumen-edu/jarvis/pkg/provider/llm/openai"
	"github.com/lumen-edu/jarvis/pkg/provider/stt"
	sttopenai "github.com/lumen-edu/jarvis/pkg/provider/stt/openai"
	"github.com/lumen-edu/jarvis/pkg/provider/stt/whisper"
	"github.com/lumen-edu/jarvis/pkg/provider/tts"
	"github.com/lumen-edu/jarvis/pkg/provider/tts/gtrans"
	ttsopenai "github.com/lumen-edu/jarvis/pkg/provider/tts/openai"
)

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	flag.Parse()

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "jarvisd: config file %q not found — copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "jarvisd: %v\n", err)
		}
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	logLevel := new(slog.LevelVar)
	logLevel.Set(slogLevel(cfg.Server.LogLevel))
	handlerOpts := &slog.HandlerOptions{Level: logLevel}
	var handler slog.Handler
	if cfg.Server.LogFormat == config.LogJSON {
		handler = slog.NewJSONHandler(os.Stderr, handlerOpts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, handlerOpts)
	}
	logger := slog.New(handler)
	slog.SetDefault(logger)

	slog.Info("jarvisd starting",
		"config", *configPath,
		"listen_addr", cfg.Server.ListenAddr,
		"log_level", cfg.Server.LogLevel,
	)

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Telemetry ─────────────────────────────────────────────────────────────
	otelShutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{ServiceName: "jarvis"})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		sdCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := otelShutdown(sdCtx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()

	// ── Provider registry ─────────────────────────────────────────────────────
	reg := config.NewRegistry()
	registerBuiltinProviders(reg)

	// ── Instantiate providers ─────────────────────────────────────────────────
	providers, err := buildProviders(cfg, reg)
	if err != nil {
		slog.Error("failed to build providers", "err", err)
		return 1
	}
	if providers.llm == nil {
		slog.Error("no LLM provider available; cannot start")
		return 1
	}

	// ── Audio cache ───────────────────────────────────────────────────────────
	var audioCache cache.Cache
	var readyChecks []health.Checker
	if cfg.Cache.RedisURL != "" {
		redisCache, err := cache.NewRedis(ctx, cfg.Cache.RedisURL)
		if err != nil {
			slog.Error("failed to connect to Redis", "err", err)
			return 1
		}
		defer redisCache.Close()
		audioCache = redisCache
		readyChecks = append(readyChecks, health.Checker{Name: "redis", Check: redisCache.Ping})
		slog.Info("audio cache", "backend", "redis")
	} else {
		audioCache = cache.NewLRU(cfg.Cache.Capacity)
		slog.Info("audio cache", "backend", "lru", "capacity", cfg.Cache.Capacity)
	}

	// ── Session store ─────────────────────────────────────────────────────────
	var sessions session.Store
	if cfg.Sessions.PostgresDSN != "" {
		pgStore, err := session.NewPostgresStore(ctx, cfg.Sessions.PostgresDSN)
		if err != nil {
			slog.Error("failed to connect to Postgres", "err", err)
			return 1
		}
		defer pgStore.Close()
		sessions = pgStore
		readyChecks = append(readyChecks, health.Checker{Name: "postgres", Check: pgStore.Ping})
		slog.Info("session store", "backend", "postgres")
	} else {
		sessions = session.NewMemStore()
		slog.Info("session store", "backend", "memory")
	}

	// ── Pipeline assembly ─────────────────────────────────────────────────────
	selector := transcript.NewSelector()
	assembler := newAssembler(cfg)
	generator := generate.New(providers.llm)
	synth := speech.New(providers.tts, speechOptions(cfg, audioCache)...)

	pipeOpts := []pipeline.Option{pipeline.WithLogger(logger)}
	if cfg.Assistant.Persona != "" {
		pipeOpts = append(pipeOpts, pipeline.WithPersona(cfg.Assistant.Persona))
	}
	if cfg.Assistant.NewsWait > 0 {
		pipeOpts = append(pipeOpts, pipeline.WithNewsWait(cfg.Assistant.NewsWait))
	}
	if cfg.Assistant.WorkerLimit > 0 {
		pipeOpts = append(pipeOpts, pipeline.WithWorkerLimit(cfg.Assistant.WorkerLimit))
	}
	if sessions != nil {
		pipeOpts = append(pipeOpts, pipeline.WithSessionStore(sessions))
	}
	pipe := pipeline.NewCoordinator(providers.stt, selector, assembler, generator, synth, pipeOpts...)

	// ── Config hot reload ─────────────────────────────────────────────────────
	watcher, err := config.NewWatcher(*configPath, func(old, new *config.Config) {
		applyReload(config.Diff(old, new), logLevel, pipe)
	})
	if err != nil {
		slog.Warn("config watcher disabled", "err", err)
	} else {
		defer watcher.Stop()
	}

	// ── HTTP server ───────────────────────────────────────────────────────────
	srv := server.New(pipe,
		server.WithLogger(logger),
		server.WithHealth(health.New(readyChecks...)),
	)

	httpServer := &http.Server{
		Addr:              cfg.Server.ListenAddr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	printStartupSummary(cfg)

	errCh := make(chan error, 1)
	go func() {
		var err error
		if cfg.Server.TLS != nil {
			err = httpServer.ListenAndServeTLS(cfg.Server.TLS.CertFile, cfg.Server.TLS.KeyFile)
		} else {
			err = httpServer.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	slog.Info("server ready — press Ctrl+C to shut down", "addr", cfg.Server.ListenAddr)

	select {
	case err := <-errCh:
		slog.Error("server error", "err", err)
		return 1
	case <-ctx.Done():
	}

	// ── Graceful shutdown ─────────────────────────────────────────────────────
	slog.Info("shutdown signal received, stopping…")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "err", err)
		return 1
	}
	slog.Info("goodbye")
	return 0
}

// ── Provider wiring ───────────────────────────────────────────────────────────

// providerSet holds the instantiated pipeline providers. stt and tts may be
// nil; the pipeline degrades to text-only operation without them.
type providerSet struct {
	stt stt.Provider
	llm llm.Provider
	tts tts.Provider
}

// registerBuiltinProviders wires all built-in provider factories into reg.
// Each factory receives a [config.ProviderEntry] and constructs the provider
// from the real implementation packages.
func registerBuiltinProviders(reg *config.Registry) {
	// ── STT ───────────────────────────────────────────────────────────────────

	reg.RegisterSTT("whisper", func(entry config.ProviderEntry) (stt.Provider, error) {
		var opts []whisper.Option
		if entry.Model != "" {
			opts = append(opts, whisper.WithModel(entry.Model))
		}
		if lang := optString(entry.Options, "language"); lang != "" {
			opts = append(opts, whisper.WithLanguage(lang))
		}
		return whisper.New(entry.BaseURL, opts...), nil
	})

	reg.RegisterSTT("whisper-native", func(entry config.ProviderEntry) (stt.Provider, error) {
		modelPath := entry.Model
		if modelPath == "" {
			modelPath = optString(entry.Options, "model_path")
		}
		var opts []whisper.NativeOption
		if lang := optString(entry.Options, "language"); lang != "" {
			opts = append(opts, whisper.WithNativeLanguage(lang))
		}
		return whisper.NewNative(modelPath, opts...)
	})

	reg.RegisterSTT("openai", func(entry config.ProviderEntry) (stt.Provider, error) {
		var opts []sttopenai.Option
		if entry.Model != "" {
			opts = append(opts, sttopenai.WithModel(entry.Model))
		}
		if entry.BaseURL != "" {
			opts = append(opts, sttopenai.WithBaseURL(entry.BaseURL))
		}
		return sttopenai.New(entry.APIKey, opts...)
	})

	// ── LLM ───────────────────────────────────────────────────────────────────

	reg.RegisterLLM("openai", func(entry config.ProviderEntry) (llm.Provider, error) {
		var opts []llmopenai.Option
		if entry.BaseURL != "" {
			opts = append(opts, llmopenai.WithBaseURL(entry.BaseURL))
		}
		return llmopenai.New(entry.APIKey, entry.Model, opts...)
	})

	reg.RegisterLLM("gemini", func(entry config.ProviderEntry) (llm.Provider, error) {
		var opts []anyllmlib.Option
		if entry.APIKey != "" {
			opts = append(opts, anyllmlib.WithAPIKey(entry.APIKey))
		}
		if entry.BaseURL != "" {
			opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
		}
		return anyllm.NewGemini(entry.Model, opts...)
	})

	// ollama is a local server; it uses BaseURL for the address, not an API key.
	reg.RegisterLLM("ollama", func(entry config.ProviderEntry) (llm.Provider, error) {
		var opts []anyllmlib.Option
		if entry.BaseURL != "" {
			opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
		}
		return anyllm.NewOllama(entry.Model, opts...)
	})

	// ── TTS ───────────────────────────────────────────────────────────────────

	reg.RegisterTTS("openai", func(entry config.ProviderEntry) (tts.Provider, error) {
		var opts []ttsopenai.Option
		if entry.Model != "" {
			opts = append(opts, ttsopenai.WithModel(entry.Model))
		}
		if entry.BaseURL != "" {
			opts = append(opts, ttsopenai.WithBaseURL(entry.BaseURL))
		}
		return ttsopenai.New(entry.APIKey, opts...)
	})

	reg.RegisterTTS("gtrans", func(entry config.ProviderEntry) (tts.Provider, error) {
		var opts []gtrans.Option
		if entry.BaseURL != "" {
			opts = append(opts, gtrans.WithBaseURL(entry.BaseURL))
		}
		if lang := optString(entry.Options, "language"); lang != "" {
			opts = append(opts, gtrans.WithLanguage(lang))
		}
		return gtrans.New(opts...), nil
	})
}

// buildProviders instantiates all providers named in cfg using the registry.
// When a fallback entry is configured, the primary is wrapped in a
// circuit-breaking fallback group so a failing backend degrades instead of
// taking the pipeline down.
func buildProviders(cfg *config.Config, reg *config.Registry) (*providerSet, error) {
	ps := &providerSet{}

	if name := cfg.Providers.STT.Name; name != "" {
		p, err := reg.CreateSTT(cfg.Providers.STT)
		if errors.Is(err, config.ErrProviderNotRegistered) {
			slog.Debug("provider not yet implemented — skipping", "kind", "stt", "name", name)
		} else if err != nil {
			return nil, fmt.Errorf("create stt provider %q: %w", name, err)
		} else {
			ps.stt = p
			slog.Info("provider created", "kind", "stt", "name", name)
		}
	}
	if fb := cfg.Providers.STTFallback; ps.stt != nil && fb.Name != "" {
		p, err := reg.CreateSTT(fb)
		if err != nil {
			return nil, fmt.Errorf("create stt fallback %q: %w", fb.Name, err)
		}
		group := resilience.NewSTTFallback(ps.stt, cfg.Providers.STT.Name, resilience.FallbackConfig{})
		group.AddFallback(fb.Name, p)
		ps.stt = group
		slog.Info("provider fallback configured", "kind", "stt", "name", fb.Name)
	}

	if name := cfg.Providers.LLM.Name; name != "" {
		p, err := reg.CreateLLM(cfg.Providers.LLM)
		if errors.Is(err, config.ErrProviderNotRegistered) {
			slog.Debug("provider not yet implemented — skipping", "kind", "llm", "name", name)
		} else if err != nil {
			return nil, fmt.Errorf("create llm provider %q: %w", name, err)
		} else {
			ps.llm = p
			slog.Info("provider created", "kind", "llm", "name", name)
		}
	}
	if fb := cfg.Providers.LLMFallback; ps.llm != nil && fb.Name != "" {
		p, err := reg.CreateLLM(fb)
		if err != nil {
			return nil, fmt.Errorf("create llm fallback %q: %w", fb.Name, err)
		}
		group := resilience.NewLLMFallback(ps.llm, cfg.Providers.LLM.Name, resilience.FallbackConfig{})
		group.AddFallback(fb.Name, p)
		ps.llm = group
		slog.Info("provider fallback configured", "kind", "llm", "name", fb.Name)
	}

	if name := cfg.Providers.TTS.Name; name != "" {
		p, err := reg.CreateTTS(cfg.Providers.TTS)
		if errors.Is(err, config.ErrProviderNotRegistered) {
			slog.Debug("provider not yet implemented — skipping", "kind", "tts", "name", name)
		} else if err != nil {
			return nil, fmt.Errorf("create tts provider %q: %w", name, err)
		} else {
			ps.tts = p
			slog.Info("provider created", "kind", "tts", "name", name)
		}
	}
	if fb := cfg.Providers.TTSFallback; ps.tts != nil && fb.Name != "" {
		p, err := reg.CreateTTS(fb)
		if err != nil {
			return nil, fmt.Errorf("create tts fallback %q: %w", fb.Name, err)
		}
		group := resilience.NewTTSFallback(ps.tts, cfg.Providers.TTS.Name, resilience.FallbackConfig{})
		group.AddFallback(fb.Name, p)
		ps.tts = group
		slog.Info("provider fallback configured", "kind", "tts", "name", fb.Name)
	}

	return ps, nil
}

// ── Pipeline assembly helpers ─────────────────────────────────────────────────

func newAssembler(cfg *config.Config) *promptctx.Assembler {
	var news realtime.NewsFetcher
	if cfg.News.BaseURL != "" {
		news = realtime.NewNewsClient(cfg.News.BaseURL, cfg.News.APIKey)
	}
	var opts []promptctx.Option
	if cfg.Assistant.History.MaxTurns > 0 {
		opts = append(opts, promptctx.WithMaxTurns(cfg.Assistant.History.MaxTurns))
	}
	if cfg.Assistant.History.TurnBudget > 0 {
		opts = append(opts, promptctx.WithTurnBudget(cfg.Assistant.History.TurnBudget))
	}
	return promptctx.NewAssembler(news, opts...)
}

func speechOptions(cfg *config.Config, audioCache cache.Cache) []speech.Option {
	opts := []speech.Option{speech.WithCache(audioCache)}
	if id := optString(cfg.Providers.TTS.Options, "voice"); id != "" {
		opts = append(opts, speech.WithVoice(tts.Voice{ID: id}))
	}
	return opts
}

// applyReload applies the runtime-adjustable parts of a config change.
// Fields outside the diff (providers, listen address, cache backend) require
// a restart.
func applyReload(diff config.ConfigDiff, logLevel *slog.LevelVar, pipe *pipeline.Coordinator) {
	if !diff.Changed() {
		return
	}
	if diff.LogLevelChanged {
		logLevel.Set(slogLevel(diff.NewLogLevel))
		slog.Info("log level updated", "level", diff.NewLogLevel)
	}
	if diff.PersonaChanged {
		pipe.SetPersona(diff.NewPersona)
		slog.Info("persona updated")
	}
	if diff.NewsWaitChanged {
		pipe.SetNewsWait(diff.NewNewsWait)
		slog.Info("news wait updated", "wait", diff.NewNewsWait)
	}
	if diff.HistoryChanged {
		slog.Warn("history limits changed; restart required to apply")
	}
}

// ── Startup summary ───────────────────────────────────────────────────────────

func printStartupSummary(cfg *config.Config) {
	fmt.Println("╔═══════════════════════════════════════╗")
	fmt.Println("║          Jarvis — startup summary     ║")
	fmt.Println("╠═══════════════════════════════════════╣")
	printProvider("STT", cfg.Providers.STT.Name, cfg.Providers.STT.Model)
	printProvider("LLM", cfg.Providers.LLM.Name, cfg.Providers.LLM.Model)
	printProvider("TTS", cfg.Providers.TTS.Name, cfg.Providers.TTS.Model)
	if cfg.News.BaseURL != "" {
		fmt.Printf("║  News            : %-19s ║\n", "configured")
	} else {
		fmt.Printf("║  News            : %-19s ║\n", "(disabled)")
	}
	if cfg.Cache.RedisURL != "" {
		fmt.Printf("║  Audio cache     : %-19s ║\n", "redis")
	} else {
		fmt.Printf("║  Audio cache     : %-19s ║\n", "in-memory LRU")
	}
	if cfg.Sessions.PostgresDSN != "" {
		fmt.Printf("║  Sessions        : %-19s ║\n", "postgres")
	} else {
		fmt.Printf("║  Sessions        : %-19s ║\n", "in-memory")
	}
	if cfg.Server.ListenAddr != "" {
		fmt.Printf("║  Listen addr     : %-19s ║\n", cfg.Server.ListenAddr)
	}
	fmt.Println("╚═══════════════════════════════════════╝")
}

func printProvider(kind, name, model string) {
	value := name
	if value == "" {
		value = "(not configured)"
	} else if model != "" {
		value = name + " / " + model
	}
	if len(value) > 19 {
		value = value[:16] + "…"
	}
	fmt.Printf("║  %-12s    : %-19s ║\n", kind, value)
}

// ── Helpers ───────────────────────────────────────────────────────────────────

func slogLevel(level config.LogLevel) slog.Level {
	switch level {
	case config.LogDebug:
		return slog.LevelDebug
	case config.LogWarn:
		return slog.LevelWarn
	case config.LogError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// optString extracts a string value from a provider Options map[string]any.
// Returns "" if the map is nil, the key is absent, or the value is not a string.
func optString(opts map[string]any, key string) string {
	if opts == nil {
		return ""
	}
	v, ok := opts[key]
	if !ok {
		return ""
	}
	s, ok := v.(string)
	if !ok {
		return ""
	}
	return s
}
