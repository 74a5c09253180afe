package promptctx

import (
	"fmt"
	"strings"
)

// DefaultPersona is the base instruction block for the assistant. Real-time
// fragments are injected after it and the model is told to prefer them for
// factual grounding, so section order in [FormatPrompt] matters.
const DefaultPersona = "You are Jarvis, a helpful voice assistant for education. " +
	"Answer clearly and concisely in a tone suitable for being read aloud. " +
	"When real-time information is provided below, prioritize it over your " +
	"own knowledge for factual answers."

// FormatPrompt renders the final prompt string. Section order is fixed:
// persona instructions, then real-time fragments, then conversation history,
// then the current utterance. Empty sections are omitted entirely.
//
// The formatter is pure: no I/O, no side effects, safe for concurrent use.
func FormatPrompt(persona string, pc *Context, history []Turn, utterance string) string {
	var sb strings.Builder

	if persona == "" {
		persona = DefaultPersona
	}
	sb.WriteString(persona)

	if pc != nil {
		for _, frag := range pc.Fragments {
			sb.WriteString("\n\n")
			sb.WriteString(frag)
		}
		if pc.NewsFailed {
			sb.WriteString("\n\nA live news lookup was attempted but did not return " +
				"results. Briefly acknowledge that current headlines are unavailable.")
		}
	}

	if histSection := formatHistorySection(history); histSection != "" {
		sb.WriteString("\n\nRecent conversation:\n")
		sb.WriteString(histSection)
	}

	sb.WriteString("\n\nUser: ")
	sb.WriteString(strings.TrimSpace(utterance))

	return sb.String()
}

// formatHistorySection renders history turns as speaker-labelled lines.
func formatHistorySection(history []Turn) string {
	if len(history) == 0 {
		return ""
	}
	lines := make([]string, 0, len(history))
	for _, t := range history {
		content := strings.TrimSpace(t.Content)
		if content == "" {
			continue
		}
		label := "User"
		if t.Role == "assistant" {
			label = "Assistant"
		}
		lines = append(lines, fmt.Sprintf("%s: %s", label, content))
	}
	return strings.Join(lines, "\n")
}
