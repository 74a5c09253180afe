// Package gtrans provides a TTS provider backed by the Google Translate
// text-to-speech endpoint — the same wire format the gTTS library uses. It
// needs no API key, returns MP3 audio, and caps input at 200 characters per
// request, so longer texts are split on whitespace and the resulting MP3
// segments concatenated (MP3 frames are self-delimiting, so simple
// concatenation yields a playable stream).
package gtrans

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/lumen-edu/jarvis/pkg/provider/tts"
)

const (
	defaultBaseURL  = "https://translate.google.com/translate_tts"
	defaultLanguage = "en"
	defaultTimeout  = 15 * time.Second

	// maxChars is the longest text fragment the endpoint accepts.
	maxChars = 200
)

// Compile-time interface assertion.
var _ tts.Provider = (*Provider)(nil)

// Option is a functional option for configuring a Provider.
type Option func(*Provider)

// WithBaseURL overrides the translate_tts endpoint URL. Used in tests to
// point the provider at a local server.
func WithBaseURL(u string) Option {
	return func(p *Provider) { p.baseURL = strings.TrimRight(u, "/") }
}

// WithLanguage sets the default synthesis language. Defaults to "en".
func WithLanguage(lang string) Option {
	return func(p *Provider) { p.language = lang }
}

// WithTimeout sets the per-request HTTP timeout. Defaults to 15 s.
func WithTimeout(d time.Duration) Option {
	return func(p *Provider) { p.httpClient.Timeout = d }
}

// Provider implements tts.Provider against the Google Translate TTS endpoint.
// It is safe for concurrent use.
type Provider struct {
	baseURL    string
	language   string
	httpClient *http.Client
}

// New creates a Provider with the supplied options.
func New(opts ...Option) *Provider {
	p := &Provider{
		baseURL:    defaultBaseURL,
		language:   defaultLanguage,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Synthesize implements tts.Provider.
func (p *Provider) Synthesize(ctx context.Context, text string, voice tts.Voice) ([]byte, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, errors.New("gtrans: text must not be empty")
	}

	lang := voice.Language
	if lang == "" {
		lang = p.language
	}

	var audio []byte
	for _, part := range splitText(text, maxChars) {
		b, err := p.fetch(ctx, part, lang)
		if err != nil {
			return nil, err
		}
		audio = append(audio, b...)
	}
	return audio, nil
}

// fetch performs one translate_tts request for a single text fragment.
func (p *Provider) fetch(ctx context.Context, text, lang string) ([]byte, error) {
	q := url.Values{}
	q.Set("ie", "UTF-8")
	q.Set("client", "tw-ob")
	q.Set("tl", lang)
	q.Set("q", text)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("gtrans: build request: %w", err)
	}
	// The endpoint rejects requests without a browser-like user agent.
	req.Header.Set("User-Agent", "Mozilla/5.0 (X11; Linux x86_64)")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("gtrans: request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("gtrans: endpoint returned %d", resp.StatusCode)
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("gtrans: read response: %w", err)
	}
	if len(audio) == 0 {
		return nil, errors.New("gtrans: response was empty")
	}
	return audio, nil
}

// splitText breaks text into fragments no longer than limit, splitting on
// whitespace where possible. A single word longer than limit is split mid-word.
func splitText(text string, limit int) []string {
	if len(text) <= limit {
		return []string{text}
	}

	var parts []string
	words := strings.Fields(text)
	var sb strings.Builder

	flush := func() {
		if sb.Len() > 0 {
			parts = append(parts, sb.String())
			sb.Reset()
		}
	}

	for _, w := range words {
		for len(w) > limit {
			flush()
			parts = append(parts, w[:limit])
			w = w[limit:]
		}
		if sb.Len() > 0 && sb.Len()+1+len(w) > limit {
			flush()
		}
		if sb.Len() > 0 {
			sb.WriteByte(' ')
		}
		sb.WriteString(w)
	}
	flush()
	return parts
}
