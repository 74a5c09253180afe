package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/lumen-edu/jarvis/internal/pipeline"
	"github.com/lumen-edu/jarvis/internal/promptctx"
	"github.com/lumen-edu/jarvis/internal/realtime"
	"github.com/lumen-edu/jarvis/internal/transcript"
	"github.com/lumen-edu/jarvis/pkg/audio"
)

// couldNotUnderstand is the caller-facing message when neither recognizer
// produced usable text.
const couldNotUnderstand = "Could not understand audio."

// queryRequest is the body of POST /api/assistant/query.
type queryRequest struct {
	// Audio is the recorded utterance, base64-encoded (optionally a data
	// URL). WAV containers and raw 16 kHz mono PCM are accepted.
	Audio string `json:"audio"`

	// BrowserTranscript is the client-side recognition result, optional.
	BrowserTranscript string `json:"browserTranscript"`

	// Conversation is the prior exchange history, oldest first, optional.
	Conversation []promptctx.Turn `json:"conversation"`

	// SessionID identifies the conversation for persistence, optional.
	SessionID string `json:"sessionId"`
}

// queryResponse is the body of a query response.
type queryResponse struct {
	Status           string    `json:"status"`
	Text             string    `json:"text"`
	WhisperText      string    `json:"whisper_text"`
	BrowserText      string    `json:"browser_text"`
	Response         string    `json:"response"`
	VoiceResponse    *string   `json:"voice_response"`
	AdditionalChunks []*string `json:"additional_chunks"`
	Streaming        bool      `json:"streaming"`
	NewsQueried      bool      `json:"news_queried"`
	NewsInfo         *newsInfo `json:"news_info,omitempty"`
	ProcessingTime   float64   `json:"processing_time"`
}

// newsInfo mirrors the headline fetch outcome for the client.
type newsInfo struct {
	Status   string        `json:"status"`
	Articles []newsArticle `json:"articles"`
}

type newsArticle struct {
	Title  string `json:"title"`
	Source string `json:"source,omitempty"`
	Time   string `json:"time,omitempty"`
}

// handleQuery processes one complete audio query. Malformed JSON is a 400;
// an utterance nobody could transcribe is a soft failure with HTTP 200 so
// clients can distinguish "you mumbled" from "the server broke".
func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"status": "error",
			"error":  "malformed request body",
		})
		return
	}

	var pcm []byte
	if req.Audio != "" {
		clip, err := audio.DecodePayload(req.Audio)
		if err != nil {
			// Undecodable audio is treated like silence; the browser
			// transcript may still carry the utterance.
			s.log.WarnContext(r.Context(), "audio decode failed", "error", err)
		} else {
			pcm = clip.PCM
		}
	}

	res, err := s.pipe.Run(r.Context(), pipeline.Input{
		PCM:               pcm,
		BrowserTranscript: req.BrowserTranscript,
		History:           req.Conversation,
		SessionID:         req.SessionID,
	})
	switch {
	case errors.Is(err, transcript.ErrNoTranscript):
		writeJSON(w, http.StatusOK, queryResponse{
			Status:         "fail",
			WhisperText:    res.HostedText,
			BrowserText:    res.BrowserText,
			Response:       couldNotUnderstand,
			ProcessingTime: res.ProcessingTime.Seconds(),
		})
		return
	case err != nil:
		s.log.ErrorContext(r.Context(), "pipeline failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"status": "error",
			"error":  "internal server error",
		})
		return
	}

	writeJSON(w, http.StatusOK, toQueryResponse(res))
}

// toQueryResponse maps a pipeline result onto the wire contract.
func toQueryResponse(res *pipeline.Result) queryResponse {
	out := queryResponse{
		Status:           "success",
		Text:             res.Utterance.Text,
		WhisperText:      res.HostedText,
		BrowserText:      res.BrowserText,
		Response:         res.Text,
		VoiceResponse:    res.Voice,
		AdditionalChunks: res.AdditionalVoices,
		Streaming:        len(res.Chunks) > 1,
		NewsQueried:      res.NewsQueried,
		ProcessingTime:   res.ProcessingTime.Seconds(),
	}
	if out.AdditionalChunks == nil {
		out.AdditionalChunks = []*string{}
	}
	if res.News != nil {
		out.NewsInfo = toNewsInfo(res.News)
	}
	return out
}

func toNewsInfo(n *realtime.Result) *newsInfo {
	info := &newsInfo{
		Status:   string(n.Status),
		Articles: make([]newsArticle, 0, len(n.Articles)),
	}
	for _, a := range n.Articles {
		info.Articles = append(info.Articles, newsArticle{
			Title:  a.Title,
			Source: a.Source,
			Time:   a.Time,
		})
	}
	return info
}
