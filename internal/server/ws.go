package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/lumen-edu/jarvis/internal/pipeline"
	"github.com/lumen-edu/jarvis/internal/promptctx"
	"github.com/lumen-edu/jarvis/internal/transcript"
	"github.com/lumen-edu/jarvis/pkg/audio"
)

// wsSessionTimeout bounds a whole websocket exchange, from accept to the
// final response frame.
const wsSessionTimeout = 2 * time.Minute

// wsStart is the first frame a client sends: metadata for the utterance
// whose Opus packets follow as binary frames.
type wsStart struct {
	Type              string           `json:"type"`
	BrowserTranscript string           `json:"browserTranscript"`
	Conversation      []promptctx.Turn `json:"conversation"`
	SessionID         string           `json:"sessionId"`
}

// wsControl is any later client text frame; "end" closes the utterance.
type wsControl struct {
	Type string `json:"type"`
}

// wsChunk is one response chunk pushed to the client, in generation order.
type wsChunk struct {
	Type  string  `json:"type"`
	Index int     `json:"index"`
	Text  string  `json:"text"`
	Audio *string `json:"audio"`
}

// wsDone is the final frame of a successful exchange.
type wsDone struct {
	Type           string  `json:"type"`
	Text           string  `json:"text"`
	Response       string  `json:"response"`
	NewsQueried    bool    `json:"news_queried"`
	ProcessingTime float64 `json:"processing_time"`
}

// wsError is sent before closing when the exchange cannot produce a response.
type wsError struct {
	Type  string `json:"type"`
	Error string `json:"error"`
}

// handleWS serves a streaming audio query: a "start" text frame, binary Opus
// packets, an "end" text frame, then response chunks pushed back in order.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		s.log.WarnContext(r.Context(), "websocket accept failed", "error", err)
		return
	}
	defer conn.Close(websocket.StatusInternalError, "unexpected close")

	ctx, cancel := context.WithTimeout(r.Context(), wsSessionTimeout)
	defer cancel()

	var start wsStart
	if err := wsjson.Read(ctx, conn, &start); err != nil {
		conn.Close(websocket.StatusInvalidFramePayloadData, "expected start frame")
		return
	}
	if start.Type != "start" {
		conn.Close(websocket.StatusInvalidFramePayloadData, "expected start frame")
		return
	}

	pcm, err := s.readUtterance(ctx, conn)
	if err != nil {
		s.log.WarnContext(ctx, "websocket utterance read failed", "error", err)
		conn.Close(websocket.StatusInvalidFramePayloadData, "bad audio stream")
		return
	}

	// Chunks are pushed live: the pipeline hands each one over as soon as its
	// audio is synthesized, while later chunks are still being generated.
	var pushErr error
	res, err := s.pipe.RunStream(ctx, pipeline.Input{
		PCM:               pcm,
		BrowserTranscript: start.BrowserTranscript,
		History:           start.Conversation,
		SessionID:         start.SessionID,
	}, func(ev pipeline.ChunkEvent) {
		if pushErr != nil {
			return
		}
		msg := wsChunk{Type: "chunk", Index: ev.Index, Text: ev.Text, Audio: ev.Voice}
		pushErr = wsjson.Write(ctx, conn, msg)
	})
	switch {
	case errors.Is(err, transcript.ErrNoTranscript):
		_ = wsjson.Write(ctx, conn, wsError{Type: "error", Error: couldNotUnderstand})
		conn.Close(websocket.StatusNormalClosure, "")
		return
	case err != nil:
		s.log.ErrorContext(ctx, "pipeline failed", "error", err)
		_ = wsjson.Write(ctx, conn, wsError{Type: "error", Error: "internal server error"})
		conn.Close(websocket.StatusInternalError, "")
		return
	case pushErr != nil:
		s.log.WarnContext(ctx, "websocket push failed", "error", pushErr)
		return
	}

	if err := s.pushDone(ctx, conn, res); err != nil {
		s.log.WarnContext(ctx, "websocket push failed", "error", err)
		return
	}
	conn.Close(websocket.StatusNormalClosure, "")
}

// readUtterance consumes binary Opus frames until the "end" control frame and
// returns the decoded utterance as 16 kHz mono PCM.
func (s *Server) readUtterance(ctx context.Context, conn *websocket.Conn) ([]byte, error) {
	dec, err := audio.NewOpusDecoder()
	if err != nil {
		return nil, err
	}

	for {
		typ, data, err := conn.Read(ctx)
		if err != nil {
			return nil, err
		}
		switch typ {
		case websocket.MessageBinary:
			if err := dec.Decode(data); err != nil {
				return nil, err
			}
		case websocket.MessageText:
			var ctl wsControl
			if err := unmarshalControl(data, &ctl); err != nil {
				return nil, err
			}
			if ctl.Type == "end" {
				return dec.Clip().PCM, nil
			}
		}
	}
}

func unmarshalControl(data []byte, ctl *wsControl) error {
	return json.Unmarshal(data, ctl)
}

// pushDone sends the final summary frame after every chunk has been pushed.
func (s *Server) pushDone(ctx context.Context, conn *websocket.Conn, res *pipeline.Result) error {
	return wsjson.Write(ctx, conn, wsDone{
		Type:           "done",
		Text:           res.Utterance.Text,
		Response:       res.Text,
		NewsQueried:    res.NewsQueried,
		ProcessingTime: res.ProcessingTime.Seconds(),
	})
}
