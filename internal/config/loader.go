package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"time"

	"gopkg.in/yaml.v3"
)

// ValidProviderNames lists known provider names per provider kind.
// Used by [Validate] to warn about unrecognised provider names.
var ValidProviderNames = map[string][]string{
	"stt": {"whisper", "whisper-native", "openai"},
	"llm": {"openai", "gemini", "ollama"},
	"tts": {"openai", "gtrans"},
}

// Load reads the YAML configuration file at path and returns a validated [Config].
// It is a convenience wrapper around [LoadFromReader] and [Validate].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r and validates the result.
// Useful in tests where configs are constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}
	if cfg.Server.LogFormat != "" && !cfg.Server.LogFormat.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_format %q is invalid; valid values: text, json", cfg.Server.LogFormat))
	}
	if cfg.Server.TLS != nil {
		if cfg.Server.TLS.CertFile == "" || cfg.Server.TLS.KeyFile == "" {
			errs = append(errs, errors.New("server.tls requires both cert_file and key_file"))
		}
	}

	// Provider name validation — warn for unknown provider names.
	validateProviderName("stt", cfg.Providers.STT.Name)
	validateProviderName("llm", cfg.Providers.LLM.Name)
	validateProviderName("tts", cfg.Providers.TTS.Name)
	validateProviderName("stt", cfg.Providers.STTFallback.Name)
	validateProviderName("llm", cfg.Providers.LLMFallback.Name)
	validateProviderName("tts", cfg.Providers.TTSFallback.Name)

	// Provider availability warnings.
	if cfg.Providers.LLM.Name == "" {
		errs = append(errs, errors.New("providers.llm is required; the assistant cannot generate responses without a model"))
	}
	if cfg.Providers.STT.Name == "" {
		slog.Warn("no STT provider configured; only requests with a browser transcript can be answered")
	}
	if cfg.Providers.TTS.Name == "" {
		slog.Warn("no TTS provider configured; responses will be text-only")
	}

	// News
	if cfg.News.BaseURL != "" && cfg.News.APIKey == "" {
		slog.Warn("news.base_url is set but news.api_key is empty; headline fetches will likely be rejected")
	}

	// Cache
	if cfg.Cache.Capacity < 0 {
		errs = append(errs, fmt.Errorf("cache.capacity %d must not be negative", cfg.Cache.Capacity))
	}
	if cfg.Cache.RedisURL != "" && cfg.Cache.Capacity != 0 {
		slog.Warn("cache.capacity is ignored when cache.redis_url is set")
	}

	// Assistant
	if cfg.Assistant.NewsWait < 0 {
		errs = append(errs, fmt.Errorf("assistant.news_wait %v must not be negative", cfg.Assistant.NewsWait))
	}
	if cfg.Assistant.NewsWait > 30*time.Second {
		errs = append(errs, fmt.Errorf("assistant.news_wait %v is out of range (max 30s)", cfg.Assistant.NewsWait))
	}
	if cfg.Assistant.WorkerLimit < 0 {
		errs = append(errs, fmt.Errorf("assistant.worker_limit %d must not be negative", cfg.Assistant.WorkerLimit))
	}
	if cfg.Assistant.History.MaxTurns < 0 {
		errs = append(errs, fmt.Errorf("assistant.history.max_turns %d must not be negative", cfg.Assistant.History.MaxTurns))
	}
	if cfg.Assistant.History.TurnBudget < 0 {
		errs = append(errs, fmt.Errorf("assistant.history.turn_budget %d must not be negative", cfg.Assistant.History.TurnBudget))
	}

	return errors.Join(errs...)
}

// validateProviderName logs a warning if name is non-empty and not found in
// the [ValidProviderNames] list for the given kind.
func validateProviderName(kind, name string) {
	if name == "" {
		return
	}
	known, ok := ValidProviderNames[kind]
	if !ok {
		return
	}
	if slices.Contains(known, name) {
		return
	}
	slog.Warn("unknown provider name — may be a typo or third-party provider",
		"kind", kind,
		"name", name,
		"known", known,
	)
}
