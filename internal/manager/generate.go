package manager

import (
	"context"
	"encoding/json"
	"io"
	"strings"

	"github.com/google/uuid"

	"tutord/internal/llm"
	"tutord/pkg/types"
)

// NDJSON lines written by Generate.
type chunkLine struct {
	Chunk string `json:"chunk"`
}

type doneLine struct {
	Done           bool   `json:"done"`
	ConversationID string `json:"conversation_id,omitempty"`
}

type errorLine struct {
	Error string `json:"error"`
}

// Generate streams a reply to req.Prompt as NDJSON lines: one {"chunk":...}
// per chunk, then {"done":true} or {"error":...}. Errors returned before any
// line was written (not ready, busy, canceled while queued) leave w
// untouched; later failures are reported in-band and returned as
// *StreamError.
func (m *Manager) Generate(ctx context.Context, req types.GenerateRequest, w io.Writer, flusher func()) error {
	release, err := m.admit(ctx)
	if err != nil {
		return err
	}
	defer release()

	eng := m.current()
	if eng == nil || eng.State().Kind != llm.StateReady {
		return llm.ErrNotReady
	}
	conv := req.ConversationID
	if conv == "" {
		conv = uuid.NewString()
	}
	gctx, done := m.opContext(ctx)
	defer done()

	s := eng.GenerateResponse(gctx, req.Prompt, conv, req.TargetLanguage)
	defer s.Close()
	flush := func() {
		if flusher != nil {
			flusher()
		}
	}
	enc := json.NewEncoder(w)
	wrote := false
	for chunk := range s.Chunks() {
		if err := enc.Encode(chunkLine{Chunk: chunk}); err != nil {
			s.Close()
			<-s.Done()
			return err
		}
		wrote = true
		flush()
	}
	if err := s.Err(); err != nil {
		if !wrote {
			return err
		}
		m.log.Warn().Err(err).Str("conversation", conv).Msg("generation failed mid-stream")
		_ = enc.Encode(errorLine{Error: err.Error()})
		flush()
		return &StreamError{Err: err}
	}
	if err := enc.Encode(doneLine{Done: true, ConversationID: conv}); err != nil {
		return err
	}
	flush()
	return nil
}

// Chat collects a full reply. It is the non-streaming form of Generate.
func (m *Manager) Chat(ctx context.Context, req types.GenerateRequest) (string, error) {
	var b strings.Builder
	err := m.Generate(ctx, req, lineCollector{&b}, nil)
	return b.String(), err
}

// lineCollector decodes Generate's NDJSON output back into text.
type lineCollector struct{ b *strings.Builder }

func (c lineCollector) Write(p []byte) (int, error) {
	var line chunkLine
	if err := json.Unmarshal(p, &line); err == nil {
		c.b.WriteString(line.Chunk)
	}
	return len(p), nil
}

// Greeting returns an opening line for req.Topic. Without an active engine
// the fallback greeting is returned; only admission failures are errors.
func (m *Manager) Greeting(ctx context.Context, req types.GreetingRequest) (string, error) {
	release, err := m.admit(ctx)
	if err != nil {
		return "", err
	}
	defer release()
	eng := m.current()
	if eng == nil {
		return llm.FallbackGreeting(req.Topic, req.TargetLanguage), nil
	}
	gctx, done := m.opContext(ctx)
	defer done()
	return eng.InitialGreeting(gctx, req.Topic, req.TargetLanguage), nil
}
