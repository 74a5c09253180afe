package promptctx

import (
	"context"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/lumen-edu/jarvis/internal/intent"
	"github.com/lumen-edu/jarvis/internal/realtime"
	newsmock "github.com/lumen-edu/jarvis/internal/realtime/mock"
)

func fixedClock() time.Time {
	return time.Date(2026, time.March, 9, 15, 4, 0, 0, time.UTC)
}

func TestAssembleGeneralIntentIsEmpty(t *testing.T) {
	a := NewAssembler(nil)
	pc := a.Assemble(context.Background(), intent.Intent{Kind: intent.KindGeneral})

	if len(pc.Fragments) != 0 {
		t.Errorf("fragments = %v, want none", pc.Fragments)
	}
	if pc.News != nil || pc.NewsFailed {
		t.Errorf("news fields set for general intent: %+v", pc)
	}
}

func TestAssembleTimeDateFragment(t *testing.T) {
	a := NewAssembler(nil, WithClock(fixedClock))
	pc := a.Assemble(context.Background(), intent.Intent{Kind: intent.KindTimeDate})

	if len(pc.Fragments) != 1 {
		t.Fatalf("fragment count = %d, want 1", len(pc.Fragments))
	}
	want := "It is 3:04 PM on Monday, March 9, 2026."
	if pc.Fragments[0] != want {
		t.Errorf("fragment = %q, want %q", pc.Fragments[0], want)
	}
}

func TestAssembleNewsSuccess(t *testing.T) {
	fetcher := &newsmock.Fetcher{
		Result: realtime.Result{
			Status: realtime.StatusSuccess,
			Articles: []realtime.Article{
				{Title: "A wins election", Source: "BBC"},
			},
		},
	}
	a := NewAssembler(fetcher)

	it := intent.Intent{Kind: intent.KindNews, Category: "politics", SearchTerm: "politics"}
	pc := a.Assemble(context.Background(), it)

	if pc.NewsFailed {
		t.Error("NewsFailed = true, want false")
	}
	if len(pc.Fragments) != 1 || !strings.Contains(pc.Fragments[0], "A wins election (BBC)") {
		t.Errorf("fragments = %v, want one headline fragment", pc.Fragments)
	}

	calls := fetcher.Calls()
	if len(calls) != 1 {
		t.Fatalf("fetch calls = %d, want 1", len(calls))
	}
	if calls[0].Query != "politics" || calls[0].Category != "politics" || calls[0].Count != 5 {
		t.Errorf("fetch call = %+v", calls[0])
	}
}

func TestAssembleNewsFailureFlagsDegradation(t *testing.T) {
	fetcher := &newsmock.Fetcher{
		Result: realtime.Result{Status: realtime.StatusError},
	}
	a := NewAssembler(fetcher)

	pc := a.Assemble(context.Background(), intent.Intent{Kind: intent.KindNews})

	if !pc.NewsFailed {
		t.Error("NewsFailed = false, want true")
	}
	if len(pc.Fragments) != 0 {
		t.Errorf("fragments = %v, want none on failed fetch", pc.Fragments)
	}
}

func TestAssembleNewsWithoutFetcher(t *testing.T) {
	a := NewAssembler(nil)
	pc := a.Assemble(context.Background(), intent.Intent{Kind: intent.KindNews})

	if !pc.NewsFailed {
		t.Error("NewsFailed = false, want true when no fetcher is configured")
	}
}

func TestTruncateHistory(t *testing.T) {
	a := NewAssembler(nil)

	long := strings.Repeat("x", 250)
	history := []Turn{
		{Role: "user", Content: "turn one"},
		{Role: "assistant", Content: "turn two"},
		{Role: "user", Content: "turn three"},
		{Role: "assistant", Content: "turn four"},
		{Role: "user", Content: long},
		{Role: "assistant", Content: "turn six"},
	}

	got := a.TruncateHistory(history)
	if len(got) != 4 {
		t.Fatalf("turn count = %d, want 4", len(got))
	}
	if got[0].Content != "turn three" {
		t.Errorf("first kept turn = %q, want %q (most recent 4)", got[0].Content, "turn three")
	}
	if len(got[2].Content) != 100 {
		t.Errorf("truncated content length = %d, want 100", len(got[2].Content))
	}
	// Input slice must not be mutated.
	if len(history[4].Content) != 250 {
		t.Error("TruncateHistory modified the input slice")
	}
}

func TestTruncateHistoryKeepsRunesWhole(t *testing.T) {
	a := NewAssembler(nil)

	// 99 ASCII bytes followed by a 3-byte rune straddling the 100-byte budget.
	straddling := strings.Repeat("x", 99) + "日本"
	got := a.TruncateHistory([]Turn{{Role: "user", Content: straddling}})

	content := got[0].Content
	if !utf8.ValidString(content) {
		t.Fatalf("truncated content is invalid UTF-8: %q", content)
	}
	if len(content) != 99 {
		t.Errorf("truncated length = %d, want 99 (cut back to the rune boundary)", len(content))
	}

	// A budget landing exactly on a rune boundary keeps the full rune.
	whole := strings.Repeat("x", 97) + "日本"
	got = a.TruncateHistory([]Turn{{Role: "user", Content: whole}})
	if content := got[0].Content; content != strings.Repeat("x", 97)+"日" {
		t.Errorf("truncated content = %q, want the first rune kept", content)
	}
}

func TestFormatPromptSectionOrder(t *testing.T) {
	pc := &Context{Fragments: []string{"Latest news headlines:\n- A wins election (BBC)"}}
	history := []Turn{
		{Role: "user", Content: "hello"},
		{Role: "assistant", Content: "hi there"},
	}

	got := FormatPrompt("", pc, history, "what is new today")

	personaIdx := strings.Index(got, "You are Jarvis")
	newsIdx := strings.Index(got, "Latest news headlines:")
	histIdx := strings.Index(got, "Recent conversation:")
	uttIdx := strings.Index(got, "User: what is new today")

	for name, idx := range map[string]int{
		"persona": personaIdx, "news": newsIdx, "history": histIdx, "utterance": uttIdx,
	} {
		if idx < 0 {
			t.Fatalf("section %q missing from prompt:\n%s", name, got)
		}
	}
	if !(personaIdx < newsIdx && newsIdx < histIdx && histIdx < uttIdx) {
		t.Errorf("section order wrong: persona=%d news=%d history=%d utterance=%d",
			personaIdx, newsIdx, histIdx, uttIdx)
	}
}

func TestFormatPromptAcknowledgesNewsFailure(t *testing.T) {
	pc := &Context{NewsFailed: true}
	got := FormatPrompt("", pc, nil, "any news")
	if !strings.Contains(got, "did not return") {
		t.Errorf("prompt missing failure acknowledgement:\n%s", got)
	}
}

func TestFormatPromptOmitsEmptySections(t *testing.T) {
	got := FormatPrompt("Custom persona.", nil, nil, "hello")
	if strings.Contains(got, "Recent conversation:") {
		t.Error("empty history should omit the history header")
	}
	if !strings.HasPrefix(got, "Custom persona.") {
		t.Errorf("prompt should start with the persona, got %q", got)
	}
	if !strings.HasSuffix(got, "User: hello") {
		t.Errorf("prompt should end with the utterance, got %q", got)
	}
}
