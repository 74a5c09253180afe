package config

import (
	"testing"
	"time"
)

func baseConfig() *Config {
	return &Config{
		Server: ServerConfig{LogLevel: LogInfo},
		Assistant: AssistantConfig{
			Persona:  "You are a patient tutor.",
			NewsWait: 3 * time.Second,
			History:  HistoryConfig{MaxTurns: 4, TurnBudget: 100},
		},
	}
}

func TestDiff_NoChanges(t *testing.T) {
	old, new := baseConfig(), baseConfig()
	d := Diff(old, new)
	if d.Changed() {
		t.Errorf("Diff of identical configs reports changes: %+v", d)
	}
}

func TestDiff_LogLevel(t *testing.T) {
	old, new := baseConfig(), baseConfig()
	new.Server.LogLevel = LogDebug

	d := Diff(old, new)
	if !d.LogLevelChanged {
		t.Fatal("LogLevelChanged = false, want true")
	}
	if d.NewLogLevel != LogDebug {
		t.Errorf("NewLogLevel = %q, want %q", d.NewLogLevel, LogDebug)
	}
	if d.PersonaChanged || d.HistoryChanged || d.NewsWaitChanged {
		t.Errorf("unrelated fields flagged: %+v", d)
	}
}

func TestDiff_Persona(t *testing.T) {
	old, new := baseConfig(), baseConfig()
	new.Assistant.Persona = "You are a strict examiner."

	d := Diff(old, new)
	if !d.PersonaChanged {
		t.Fatal("PersonaChanged = false, want true")
	}
	if d.NewPersona != "You are a strict examiner." {
		t.Errorf("NewPersona = %q", d.NewPersona)
	}
}

func TestDiff_History(t *testing.T) {
	old, new := baseConfig(), baseConfig()
	new.Assistant.History.MaxTurns = 8

	d := Diff(old, new)
	if !d.HistoryChanged {
		t.Fatal("HistoryChanged = false, want true")
	}
	if d.NewHistory.MaxTurns != 8 {
		t.Errorf("NewHistory.MaxTurns = %d, want 8", d.NewHistory.MaxTurns)
	}
}

func TestDiff_NewsWait(t *testing.T) {
	old, new := baseConfig(), baseConfig()
	new.Assistant.NewsWait = 5 * time.Second

	d := Diff(old, new)
	if !d.NewsWaitChanged {
		t.Fatal("NewsWaitChanged = false, want true")
	}
	if d.NewNewsWait != 5*time.Second {
		t.Errorf("NewNewsWait = %v, want 5s", d.NewNewsWait)
	}
}

func TestDiff_IgnoresRestartOnlyFields(t *testing.T) {
	old, new := baseConfig(), baseConfig()
	new.Providers.LLM.Model = "gpt-4o"
	new.Cache.RedisURL = "redis://localhost:6379/0"
	new.Sessions.PostgresDSN = "postgres://localhost/jarvis"

	if d := Diff(old, new); d.Changed() {
		t.Errorf("restart-only fields reported as hot-reloadable: %+v", d)
	}
}
