// Package transcript picks the more trustworthy of two competing transcripts
// of the same utterance: the hosted speech model's output (primary) and the
// browser's built-in recognizer output (secondary). Hosted transcription is
// usually more accurate overall but underperforms on jargon, so the selector
// prefers the browser transcript when it is meaningfully longer or carries
// domain vocabulary the hosted transcript missed.
package transcript

import (
	"errors"
	"strings"

	"github.com/antzucaro/matchr"
)

// Source identifies which recognizer produced a transcript.
type Source string

const (
	// SourceHosted is the hosted speech-recognition model.
	SourceHosted Source = "hosted"
	// SourceBrowser is the client-side browser recognizer.
	SourceBrowser Source = "browser"
)

// Utterance is a selected transcript with its provenance. Immutable once
// returned from [Selector.Select].
type Utterance struct {
	Text   string
	Source Source
}

// ErrNoTranscript is returned when both candidate transcripts are empty.
var ErrNoTranscript = errors.New("transcript: no usable transcript")

const (
	defaultLengthRatio  = 1.3
	defaultMinLength    = 10
	defaultAgreementBar = 0.95
)

// defaultDomainKeywords are terms the hosted model routinely garbles. A
// browser transcript containing one of these where the hosted transcript does
// not is taken as evidence the browser heard the utterance better.
var defaultDomainKeywords = []string{
	"algorithm", "derivative", "quadratic", "logarithm", "theorem",
	"photosynthesis", "mitochondria", "chromosome", "osmosis",
	"quantum", "relativity", "thermodynamics",
	"javascript", "python", "kubernetes", "blockchain", "neural network",
	"machine learning", "artificial intelligence",
	"headlines", "breaking news", "geopolitics", "inflation", "parliament",
}

// Option is a functional option for configuring a [Selector].
type Option func(*Selector)

// WithLengthRatio sets the factor by which the browser transcript must exceed
// the hosted transcript in length before length alone prefers it. Default 1.3.
func WithLengthRatio(r float64) Option {
	return func(s *Selector) { s.lengthRatio = r }
}

// WithMinLength sets the minimum browser-transcript length in characters for
// the length rule to apply. Default 10.
func WithMinLength(n int) Option {
	return func(s *Selector) { s.minLength = n }
}

// WithDomainKeywords replaces the built-in domain keyword set.
func WithDomainKeywords(keywords []string) Option {
	return func(s *Selector) {
		s.keywords = make([]string, len(keywords))
		for i, k := range keywords {
			s.keywords[i] = strings.ToLower(k)
		}
	}
}

// WithAgreementThreshold sets the Jaro-Winkler similarity above which the two
// transcripts are treated as the same utterance and the hosted transcript is
// kept without further heuristics. Default 0.95.
func WithAgreementThreshold(t float64) Option {
	return func(s *Selector) { s.agreementBar = t }
}

// Selector implements the transcript-selection heuristics. Safe for
// concurrent use.
type Selector struct {
	lengthRatio  float64
	minLength    int
	agreementBar float64
	keywords     []string
}

// NewSelector constructs a [Selector] with the supplied options.
func NewSelector(opts ...Option) *Selector {
	s := &Selector{
		lengthRatio:  defaultLengthRatio,
		minLength:    defaultMinLength,
		agreementBar: defaultAgreementBar,
		keywords:     defaultDomainKeywords,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Select picks between the hosted transcript (primary) and the browser
// transcript (secondary). The result is always one of the two inputs, never
// synthesized text.
//
// Rules, in order:
//  1. Both empty: [ErrNoTranscript].
//  2. Exactly one present: that one.
//  3. Near-identical transcripts (Jaro-Winkler above the agreement
//     threshold): the hosted transcript.
//  4. Browser transcript longer than the hosted one by more than the length
//     ratio AND at least the minimum length: the browser transcript.
//  5. Browser transcript contains a domain keyword the hosted transcript
//     lacks: the browser transcript.
//  6. Otherwise: the hosted transcript.
func (s *Selector) Select(primary, secondary string) (Utterance, error) {
	primary = strings.TrimSpace(primary)
	secondary = strings.TrimSpace(secondary)

	switch {
	case primary == "" && secondary == "":
		return Utterance{}, ErrNoTranscript
	case primary == "":
		return Utterance{Text: secondary, Source: SourceBrowser}, nil
	case secondary == "":
		return Utterance{Text: primary, Source: SourceHosted}, nil
	}

	pLower := strings.ToLower(primary)
	sLower := strings.ToLower(secondary)

	if matchr.JaroWinkler(pLower, sLower, false) >= s.agreementBar {
		return Utterance{Text: primary, Source: SourceHosted}, nil
	}

	if len(secondary) >= s.minLength &&
		float64(len(secondary)) > s.lengthRatio*float64(len(primary)) {
		return Utterance{Text: secondary, Source: SourceBrowser}, nil
	}

	for _, kw := range s.keywords {
		if strings.Contains(sLower, kw) && !strings.Contains(pLower, kw) {
			return Utterance{Text: secondary, Source: SourceBrowser}, nil
		}
	}

	return Utterance{Text: primary, Source: SourceHosted}, nil
}
