package llm

import (
	"context"
	"sync"

	"tutord/pkg/types"
)

// SessionEngine drives engine + session style runtimes: the model weights
// are loaded once and cheap sessions are created on top of them. Tokens are
// streamed to the caller as the session produces them.
type SessionEngine struct {
	*lifecycle
	runtime SessionRuntime

	mu      sync.Mutex
	model   SessionModel
	session Session
}

// NewSessionEngine returns an Idle engine for d.
func NewSessionEngine(d types.ModelDescriptor, deps Deps) *SessionEngine {
	return &SessionEngine{
		lifecycle: newLifecycle(d, deps, string(types.RuntimeSession)),
		runtime:   deps.Sessions,
	}
}

func (e *SessionEngine) Initialize(ctx context.Context) {
	e.Close()
	e.set(Initializing())
	path, err := e.acquire(ctx)
	if err != nil {
		e.fail(err)
		return
	}
	model, err := e.runtime.Load(path, e.desc)
	if err != nil {
		loadsTotal.WithLabelValues(string(types.RuntimeSession), "error").Inc()
		e.fail(&ConstructionError{Model: e.desc.ID, Stage: "load", Err: err})
		return
	}
	sess, err := model.NewSession(e.desc.Params)
	if err != nil {
		loadsTotal.WithLabelValues(string(types.RuntimeSession), "error").Inc()
		e.release("model", model)
		e.fail(&ConstructionError{Model: e.desc.ID, Stage: "session", Err: err})
		return
	}
	e.mu.Lock()
	e.model, e.session = model, sess
	e.mu.Unlock()
	loadsTotal.WithLabelValues(string(types.RuntimeSession), "ok").Inc()
	e.log.Info().Str("path", path).Msg("engine ready")
	e.set(Ready())
}

func (e *SessionEngine) GenerateResponse(ctx context.Context, prompt, conversationID, targetLanguage string) *Stream {
	e.mu.Lock()
	sess := e.session
	e.mu.Unlock()
	if sess == nil || e.State().Kind != StateReady {
		return failedStream(ErrNotReady)
	}
	e.log.Debug().Str("conversation", conversationID).Str("language", targetLanguage).Msg("generate")
	s, sctx := e.openStream(ctx)
	chunks := chunksTotal.WithLabelValues(string(types.RuntimeSession))
	go func() {
		err := sess.Generate(sctx, FormatPrompt(prompt), func(tok string) error {
			if !s.send(sctx, tok) {
				return context.Cause(sctx)
			}
			chunks.Inc()
			return nil
		})
		e.closeStream(s, sctx, err)
	}()
	return s
}

func (e *SessionEngine) InitialGreeting(ctx context.Context, topic, targetLanguage string) string {
	return greet(ctx, e, e.log, topic, targetLanguage)
}

// ResetSession keeps the loaded weights and swaps in a fresh session. If the
// new session cannot be created the engine stays in Error with the weights
// still resident until Close or Initialize.
func (e *SessionEngine) ResetSession(ctx context.Context) {
	e.mu.Lock()
	model := e.model
	e.mu.Unlock()
	if model == nil {
		e.fail(ErrNoEngine)
		return
	}
	e.stopStreams()
	e.mu.Lock()
	old := e.session
	e.session = nil
	e.mu.Unlock()
	if old != nil {
		e.release("session", old)
	}
	sess, err := model.NewSession(e.desc.Params)
	if err != nil {
		e.fail(&ConstructionError{Model: e.desc.ID, Stage: "session", Err: err})
		return
	}
	e.mu.Lock()
	e.session = sess
	e.mu.Unlock()
	e.log.Info().Msg("session reset")
	e.set(Ready())
}

// Close releases the session, then the model, and moves to Idle.
func (e *SessionEngine) Close() {
	e.stopStreams()
	e.mu.Lock()
	sess, model := e.session, e.model
	e.session, e.model = nil, nil
	e.mu.Unlock()
	if sess != nil {
		e.release("session", sess)
	}
	if model != nil {
		e.release("model", model)
	}
	e.set(Idle())
}
