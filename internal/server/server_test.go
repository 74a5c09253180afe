package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/lumen-edu/jarvis/internal/generate"
	"github.com/lumen-edu/jarvis/internal/pipeline"
	"github.com/lumen-edu/jarvis/internal/promptctx"
	"github.com/lumen-edu/jarvis/internal/realtime"
	newsmock "github.com/lumen-edu/jarvis/internal/realtime/mock"
	"github.com/lumen-edu/jarvis/internal/speech"
	"github.com/lumen-edu/jarvis/internal/transcript"
	"github.com/lumen-edu/jarvis/pkg/provider/llm"
	llmmock "github.com/lumen-edu/jarvis/pkg/provider/llm/mock"
	"github.com/lumen-edu/jarvis/pkg/provider/stt"
	sttmock "github.com/lumen-edu/jarvis/pkg/provider/stt/mock"
	ttsmock "github.com/lumen-edu/jarvis/pkg/provider/tts/mock"
)

// testFixtures bundles the mocks behind a server under test.
type testFixtures struct {
	stt  *sttmock.Provider
	llm  *llmmock.Provider
	tts  *ttsmock.Provider
	news *newsmock.Fetcher
}

func newTestServer(t *testing.T) (*Server, *testFixtures) {
	t.Helper()
	f := &testFixtures{
		stt: &sttmock.Provider{Result: &stt.Transcript{Text: "what is photosynthesis"}},
		llm: &llmmock.Provider{StreamChunks: []llm.Chunk{
			{Text: "Photosynthesis is how plants make food. "},
			{Text: "It uses sunlight.", FinishReason: "stop"},
		}},
		tts:  &ttsmock.Provider{Audio: []byte("fake-mp3")},
		news: &newsmock.Fetcher{},
	}
	pipe := pipeline.NewCoordinator(
		f.stt,
		transcript.NewSelector(),
		promptctx.NewAssembler(f.news),
		generate.New(f.llm),
		speech.New(f.tts),
	)
	return New(pipe), f
}

func postQuery(t *testing.T, h http.Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest("POST", "/api/assistant/query", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeResponse(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("response is not valid JSON: %v\n%s", err, rec.Body.String())
	}
	return out
}

func TestQuery_MalformedJSON(t *testing.T) {
	s, _ := newTestServer(t)
	rec := postQuery(t, s.Handler(), `{"audio": `)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestQuery_Success(t *testing.T) {
	s, _ := newTestServer(t)
	rec := postQuery(t, s.Handler(), `{"browserTranscript": "what is photosynthesis"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d\n%s", rec.Code, http.StatusOK, rec.Body.String())
	}

	out := decodeResponse(t, rec)
	if out["status"] != "success" {
		t.Errorf("status field = %v, want success", out["status"])
	}
	if out["text"] != "what is photosynthesis" {
		t.Errorf("text = %v, want transcript", out["text"])
	}
	if out["browser_text"] != "what is photosynthesis" {
		t.Errorf("browser_text = %v", out["browser_text"])
	}
	if out["response"] == "" {
		t.Error("response is empty")
	}
	if out["voice_response"] == nil {
		t.Error("voice_response is null")
	}
	if _, ok := out["additional_chunks"].([]any); !ok {
		t.Errorf("additional_chunks = %T, want array", out["additional_chunks"])
	}
	if pt, ok := out["processing_time"].(float64); !ok || pt < 0 {
		t.Errorf("processing_time = %v", out["processing_time"])
	}
}

func TestQuery_UninterpretableAudioIsSoftFailure(t *testing.T) {
	s, f := newTestServer(t)
	f.stt.Result = &stt.Transcript{Text: ""}

	rec := postQuery(t, s.Handler(), `{"audio": "AAAA"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 for soft failure", rec.Code)
	}
	out := decodeResponse(t, rec)
	if out["status"] != "fail" {
		t.Errorf("status field = %v, want fail", out["status"])
	}
	if out["response"] != couldNotUnderstand {
		t.Errorf("response = %v, want %q", out["response"], couldNotUnderstand)
	}
}

func TestQuery_NewsInfoIncluded(t *testing.T) {
	s, f := newTestServer(t)
	f.news.Result = realtime.Result{
		Status: realtime.StatusSuccess,
		Articles: []realtime.Article{
			{Title: "Mars rover finds ice", Source: "BBC"},
		},
		Timestamp: time.Now(),
	}

	rec := postQuery(t, s.Handler(), `{"browserTranscript": "tell me the latest science news"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d\n%s", rec.Code, rec.Body.String())
	}
	out := decodeResponse(t, rec)
	if out["news_queried"] != true {
		t.Error("news_queried = false, want true")
	}
	info, ok := out["news_info"].(map[string]any)
	if !ok {
		t.Fatalf("news_info = %T, want object", out["news_info"])
	}
	if info["status"] != "success" {
		t.Errorf("news_info.status = %v", info["status"])
	}
	articles, ok := info["articles"].([]any)
	if !ok || len(articles) != 1 {
		t.Errorf("news_info.articles = %v, want 1 article", info["articles"])
	}
}

func TestQuery_ConversationReachesPrompt(t *testing.T) {
	s, f := newTestServer(t)

	body, _ := json.Marshal(map[string]any{
		"browserTranscript": "what about the second law",
		"conversation": []promptctx.Turn{
			{Role: "user", Content: "explain thermodynamics"},
			{Role: "assistant", Content: "Thermodynamics studies heat and energy."},
		},
	})
	rec := postQuery(t, s.Handler(), string(body))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d\n%s", rec.Code, rec.Body.String())
	}

	prompt := f.llm.LastStreamRequest().Messages[0].Content
	if !strings.Contains(prompt, "explain thermodynamics") {
		t.Errorf("prompt missing conversation history:\n%s", prompt)
	}
}

func TestRecoverer(t *testing.T) {
	s, _ := newTestServer(t)
	h := s.recoverer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/panic", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
	if !bytes.Contains(rec.Body.Bytes(), []byte("internal server error")) {
		t.Errorf("body = %s", rec.Body.String())
	}
}

func TestOperationalEndpoints(t *testing.T) {
	s, _ := newTestServer(t)
	h := s.Handler()

	for _, path := range []string{"/healthz", "/readyz", "/metrics"} {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest("GET", path, nil))
		if rec.Code != http.StatusOK {
			t.Errorf("GET %s = %d, want 200", path, rec.Code)
		}
	}
}

func TestWS_EveryChunkCarriesAudio(t *testing.T) {
	s, f := newTestServer(t)
	// Four sentences: more chunks than the POST endpoint's background
	// synthesis window, all of which must still arrive voiced because the
	// websocket path synthesizes each chunk as it is generated.
	f.llm.StreamChunks = []llm.Chunk{
		{Text: "First sentence. Second sentence. Third sentence. Fourth sentence."},
		{FinishReason: "stop"},
	}

	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/assistant"
	conn, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	start := wsStart{Type: "start", BrowserTranscript: "tell me four things"}
	if err := wsjson.Write(ctx, conn, start); err != nil {
		t.Fatalf("write start: %v", err)
	}
	if err := wsjson.Write(ctx, conn, wsControl{Type: "end"}); err != nil {
		t.Fatalf("write end: %v", err)
	}

	var chunks int
	for {
		var raw map[string]any
		if err := wsjson.Read(ctx, conn, &raw); err != nil {
			t.Fatalf("read frame: %v (chunks so far: %d)", err, chunks)
		}
		switch raw["type"] {
		case "chunk":
			if int(raw["index"].(float64)) != chunks {
				t.Errorf("chunk %d has index %v", chunks, raw["index"])
			}
			if raw["audio"] == nil {
				t.Errorf("chunk %d has null audio", chunks)
			}
			chunks++
		case "done":
			if chunks != 4 {
				t.Errorf("chunk frames = %d, want 4", chunks)
			}
			return
		case "error":
			t.Fatalf("server sent error frame: %v", raw["error"])
		}
	}
}

func TestWS_BrowserTranscriptExchange(t *testing.T) {
	s, _ := newTestServer(t)
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/assistant"
	conn, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	start := wsStart{Type: "start", BrowserTranscript: "what is photosynthesis"}
	if err := wsjson.Write(ctx, conn, start); err != nil {
		t.Fatalf("write start: %v", err)
	}
	if err := wsjson.Write(ctx, conn, wsControl{Type: "end"}); err != nil {
		t.Fatalf("write end: %v", err)
	}

	// Chunks arrive in order, then the done frame.
	var chunks []wsChunk
	for {
		var raw map[string]any
		if err := wsjson.Read(ctx, conn, &raw); err != nil {
			t.Fatalf("read frame: %v (chunks so far: %d)", err, len(chunks))
		}
		switch raw["type"] {
		case "chunk":
			idx := int(raw["index"].(float64))
			chunks = append(chunks, wsChunk{Index: idx, Text: raw["text"].(string)})
		case "done":
			if raw["text"] != "what is photosynthesis" {
				t.Errorf("done.text = %v", raw["text"])
			}
			if len(chunks) == 0 {
				t.Fatal("no chunks received before done")
			}
			for i, c := range chunks {
				if c.Index != i {
					t.Errorf("chunk %d has index %d", i, c.Index)
				}
			}
			return
		case "error":
			t.Fatalf("server sent error frame: %v", raw["error"])
		}
	}
}
