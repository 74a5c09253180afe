// Package realtime gathers request-scoped factual data for prompt grounding:
// live news headlines from an external news API and a formatted current
// date/time fragment. Everything here is fetched per request and discarded
// with it.
package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Status reports the outcome of a headline fetch.
type Status string

const (
	StatusSuccess   Status = "success"
	StatusNoResults Status = "no_results"
	StatusError     Status = "error"
	StatusTimeout   Status = "timeout"
)

// Article is one fetched headline.
type Article struct {
	Title  string `json:"title"`
	Source string `json:"source"`
	Time   string `json:"time,omitempty"`
}

// Result is the outcome of one headline fetch. Articles is empty unless
// Status is [StatusSuccess].
type Result struct {
	Status    Status    `json:"status"`
	Articles  []Article `json:"articles,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// NewsFetcher fetches live headlines. Implementations must honor ctx
// cancellation and never return more than count articles.
type NewsFetcher interface {
	FetchHeadlines(ctx context.Context, query, category string, count int) Result
}

// maxArticles caps how many headlines a fetch may return regardless of the
// requested count.
const maxArticles = 5

const defaultNewsTimeout = 10 * time.Second

// NewsClientOption is a functional option for configuring a [NewsClient].
type NewsClientOption func(*NewsClient)

// WithHTTPTimeout sets the HTTP client timeout. Defaults to 10 s.
func WithHTTPTimeout(d time.Duration) NewsClientOption {
	return func(c *NewsClient) { c.httpClient.Timeout = d }
}

// NewsClient fetches headlines from a NewsAPI-compatible endpoint
// (GET /v2/top-headlines with q, category, pageSize and apiKey parameters).
// Safe for concurrent use.
type NewsClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// Compile-time interface assertion.
var _ NewsFetcher = (*NewsClient)(nil)

// NewNewsClient creates a client for the given API base URL and key.
func NewNewsClient(baseURL, apiKey string, opts ...NewsClientOption) *NewsClient {
	c := &NewsClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: defaultNewsTimeout},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// apiResponse mirrors the NewsAPI top-headlines payload.
type apiResponse struct {
	Status   string `json:"status"`
	Message  string `json:"message"`
	Articles []struct {
		Title  string `json:"title"`
		Source struct {
			Name string `json:"name"`
		} `json:"source"`
		PublishedAt string `json:"publishedAt"`
	} `json:"articles"`
}

// FetchHeadlines implements [NewsFetcher]. Errors are folded into the Result
// status rather than returned: the pipeline treats a failed fetch as degraded
// context, not a request failure.
func (c *NewsClient) FetchHeadlines(ctx context.Context, query, category string, count int) Result {
	if count <= 0 || count > maxArticles {
		count = maxArticles
	}

	q := url.Values{}
	if query != "" {
		q.Set("q", query)
	}
	if category != "" {
		q.Set("category", category)
	}
	q.Set("pageSize", strconv.Itoa(count))
	q.Set("apiKey", c.apiKey)

	now := time.Now()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+"/v2/top-headlines?"+q.Encode(), nil)
	if err != nil {
		return Result{Status: StatusError, Timestamp: now}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return Result{Status: StatusTimeout, Timestamp: now}
		}
		return Result{Status: StatusError, Timestamp: now}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Result{Status: StatusError, Timestamp: now}
	}

	var payload apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return Result{Status: StatusError, Timestamp: now}
	}
	if payload.Status != "ok" {
		return Result{Status: StatusError, Timestamp: now}
	}
	if len(payload.Articles) == 0 {
		return Result{Status: StatusNoResults, Timestamp: now}
	}

	articles := make([]Article, 0, count)
	for _, a := range payload.Articles {
		if a.Title == "" {
			continue
		}
		articles = append(articles, Article{
			Title:  a.Title,
			Source: a.Source.Name,
			Time:   a.PublishedAt,
		})
		if len(articles) == count {
			break
		}
	}
	if len(articles) == 0 {
		return Result{Status: StatusNoResults, Timestamp: now}
	}
	return Result{Status: StatusSuccess, Articles: articles, Timestamp: now}
}

// FormatHeadlines renders up to maxArticles headlines as "title (source)"
// lines for prompt injection.
func FormatHeadlines(articles []Article) string {
	var sb strings.Builder
	for i, a := range articles {
		if i == maxArticles {
			break
		}
		if i > 0 {
			sb.WriteByte('\n')
		}
		if a.Source != "" {
			fmt.Fprintf(&sb, "- %s (%s)", a.Title, a.Source)
		} else {
			fmt.Fprintf(&sb, "- %s", a.Title)
		}
	}
	return sb.String()
}
