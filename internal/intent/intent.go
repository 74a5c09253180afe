// Package intent classifies a user utterance as a live-news request, a
// time/date request, or a general conversational query, and extracts an
// optional news category and search term. Classification is pure keyword and
// regex matching so it costs nothing compared to a model call and is fully
// deterministic.
package intent

import (
	"regexp"
	"strings"
)

// Kind is the classified purpose of an utterance.
type Kind string

const (
	// KindNews is a request for live news headlines.
	KindNews Kind = "news"
	// KindTimeDate is a request for the current time or date.
	KindTimeDate Kind = "time_date"
	// KindGeneral is any other conversational query.
	KindGeneral Kind = "general"
)

// Intent is the classification result. Category and SearchTerm are empty
// unless the utterance is a news query that matched a category keyword or an
// explicit search phrase.
type Intent struct {
	Kind       Kind
	Category   string
	SearchTerm string
}

// IsNews reports whether the utterance asks for live news.
func (i Intent) IsNews() bool { return i.Kind == KindNews }

var newsKeywords = []string{
	"news", "headlines", "headline", "latest", "breaking",
	"what's happening", "whats happening", "current events",
	"top stories", "updates on", "update on",
}

var timeKeywords = []string{
	"what time", "current time", "time is it", "the time",
	"what date", "current date", "the date", "what day",
	"today's date", "todays date",
}

// categoryOrder fixes the iteration order for category resolution; the first
// group with a keyword hit wins, so ordering is part of the contract.
var categoryOrder = []string{
	"world", "business", "technology", "science",
	"health", "sports", "entertainment", "politics",
}

var categoryKeywords = map[string][]string{
	"world":         {"world", "international", "global", "foreign"},
	"business":      {"business", "economy", "economic", "market", "stocks", "finance", "financial"},
	"technology":    {"technology", "tech", "software", "gadget", "artificial intelligence", "startup", "computer"},
	"science":       {"science", "scientific", "research", "space", "nasa", "discovery"},
	"health":        {"health", "medical", "medicine", "disease", "covid", "vaccine"},
	"sports":        {"sports", "sport", "football", "cricket", "basketball", "tennis", "olympics"},
	"entertainment": {"entertainment", "movie", "film", "music", "celebrity", "hollywood", "bollywood"},
	"politics":      {"politics", "political", "election", "government", "parliament", "senate"},
}

// searchPatterns are tried in order; the first capture wins.
var searchPatterns = []*regexp.Regexp{
	regexp.MustCompile(`news (?:about|on|regarding) (.+)`),
	regexp.MustCompile(`latest on (.+)`),
	regexp.MustCompile(`updates? (?:about|on) (.+)`),
	regexp.MustCompile(`headlines (?:about|on|for|from) (.+)`),
	regexp.MustCompile(`what's happening (?:with|in) (.+)`),
	regexp.MustCompile(`whats happening (?:with|in) (.+)`),
	regexp.MustCompile(`tell me about (.+?) news`),
}

// genericTrailers are stripped from the end of a captured search term.
var genericTrailers = []string{
	"news", "updates", "update", "headlines", "stories",
	"today", "now", "please",
}

// Classify derives an [Intent] from raw utterance text. It is a pure
// function: the same text always yields the same result.
func Classify(text string) Intent {
	norm := strings.ToLower(strings.TrimSpace(text))
	if norm == "" {
		return Intent{Kind: KindGeneral}
	}

	if containsAny(norm, newsKeywords) {
		category := resolveCategory(norm)
		term := extractSearchTerm(norm)
		if term == "" {
			// A categorized news query without an explicit phrase still
			// needs something to search for.
			term = category
		}
		return Intent{Kind: KindNews, Category: category, SearchTerm: term}
	}

	if containsAny(norm, timeKeywords) {
		return Intent{Kind: KindTimeDate}
	}

	return Intent{Kind: KindGeneral}
}

func containsAny(text string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}

// resolveCategory returns the first category (in declared order) with a
// keyword hit, or "" when none match.
func resolveCategory(text string) string {
	for _, cat := range categoryOrder {
		if containsAny(text, categoryKeywords[cat]) {
			return cat
		}
	}
	return ""
}

// extractSearchTerm applies the ordered pattern list and strips trailing
// generic words from the first capture.
func extractSearchTerm(text string) string {
	for _, pat := range searchPatterns {
		m := pat.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		return stripTrailers(m[1])
	}
	return ""
}

func stripTrailers(term string) string {
	term = strings.TrimSpace(term)
	for changed := true; changed; {
		changed = false
		for _, tr := range genericTrailers {
			if strings.HasSuffix(term, " "+tr) {
				term = strings.TrimSpace(strings.TrimSuffix(term, " "+tr))
				changed = true
			} else if term == tr {
				return ""
			}
		}
	}
	return term
}
