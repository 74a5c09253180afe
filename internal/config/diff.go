package config

import "time"

// ConfigDiff describes what changed between two configs.
// Only fields that can be safely hot-reloaded are tracked.
type ConfigDiff struct {
	LogLevelChanged bool
	NewLogLevel     LogLevel

	PersonaChanged bool
	NewPersona     string

	// HistoryChanged is set when the history window bounds changed.
	HistoryChanged bool
	NewHistory     HistoryConfig

	// NewsWaitChanged is set when the headline wait bound changed.
	NewsWaitChanged bool
	NewNewsWait     time.Duration
}

// Changed reports whether the diff carries any change at all.
func (d ConfigDiff) Changed() bool {
	return d.LogLevelChanged || d.PersonaChanged || d.HistoryChanged || d.NewsWaitChanged
}

// Diff compares old and new configs and returns what changed.
// Only tracks changes that are safe to apply without restart; provider,
// cache, and session store changes require a restart and are ignored here.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}

	if old.Assistant.Persona != new.Assistant.Persona {
		d.PersonaChanged = true
		d.NewPersona = new.Assistant.Persona
	}

	if old.Assistant.History != new.Assistant.History {
		d.HistoryChanged = true
		d.NewHistory = new.Assistant.History
	}

	if old.Assistant.NewsWait != new.Assistant.NewsWait {
		d.NewsWaitChanged = true
		d.NewNewsWait = new.Assistant.NewsWait
	}

	return d
}
