package llm

import (
	"context"
	"sync"

	"tutord/internal/llm/tokenizer"
	"tutord/pkg/types"
)

// InterpreterEngine drives raw-tensor runtimes. Text is tokenized by hand
// with the vocabulary embedded in the model file, a single forward pass
// produces the whole reply, and the reply is emitted as one chunk.
type InterpreterEngine struct {
	*lifecycle
	runtime InterpreterRuntime

	mu      sync.Mutex
	program Program
	interp  Interpreter
	tok     *tokenizer.Tokenizer

	// runMu serializes forward passes; interpreters are not reentrant.
	runMu sync.Mutex
}

// NewInterpreterEngine returns an Idle engine for d. d.Tokenizer must be set.
func NewInterpreterEngine(d types.ModelDescriptor, deps Deps) *InterpreterEngine {
	return &InterpreterEngine{
		lifecycle: newLifecycle(d, deps, string(types.RuntimeInterpreter)),
		runtime:   deps.Interpreters,
	}
}

func (e *InterpreterEngine) Initialize(ctx context.Context) {
	e.Close()
	e.set(Initializing())
	path, err := e.acquire(ctx)
	if err != nil {
		e.fail(err)
		return
	}
	prog, err := e.runtime.Load(path, e.desc)
	if err != nil {
		loadsTotal.WithLabelValues(string(types.RuntimeInterpreter), "error").Inc()
		e.fail(&ConstructionError{Model: e.desc.ID, Stage: "load", Err: err})
		return
	}
	interp, err := prog.NewInterpreter()
	if err != nil {
		loadsTotal.WithLabelValues(string(types.RuntimeInterpreter), "error").Inc()
		e.release("program", prog)
		e.fail(&ConstructionError{Model: e.desc.ID, Stage: "interpreter", Err: err})
		return
	}
	spec := e.desc.Tokenizer
	vocab := tokenizer.LoadVocabulary(path, spec.VocabFile, e.log)
	e.mu.Lock()
	e.program, e.interp = prog, interp
	e.tok = tokenizer.New(vocab, specialIDs(spec))
	e.mu.Unlock()
	loadsTotal.WithLabelValues(string(types.RuntimeInterpreter), "ok").Inc()
	e.log.Info().Str("path", path).Int("vocab", vocab.Len()).Msg("interpreter ready")
	e.set(Ready())
}

func (e *InterpreterEngine) GenerateResponse(ctx context.Context, prompt, conversationID, targetLanguage string) *Stream {
	e.mu.Lock()
	interp, tok := e.interp, e.tok
	e.mu.Unlock()
	if interp == nil || e.State().Kind != StateReady {
		return failedStream(ErrNotReady)
	}
	e.log.Debug().Str("conversation", conversationID).Str("language", targetLanguage).Msg("generate")
	maxLen := e.desc.Tokenizer.MaxLen
	s, sctx := e.openStream(ctx)
	go func() {
		e.runMu.Lock()
		out, err := interp.Run(sctx, tok.Tokenize(FormatPrompt(prompt), maxLen))
		e.runMu.Unlock()
		if err == nil {
			if s.send(sctx, tok.Detokenize(out)) {
				chunksTotal.WithLabelValues(string(types.RuntimeInterpreter)).Inc()
			} else {
				err = context.Cause(sctx)
			}
		}
		e.closeStream(s, sctx, err)
	}()
	return s
}

func (e *InterpreterEngine) InitialGreeting(ctx context.Context, topic, targetLanguage string) string {
	return greet(ctx, e, e.log, topic, targetLanguage)
}

// ResetSession reallocates the interpreter from the loaded program. The
// program and vocabulary are kept.
func (e *InterpreterEngine) ResetSession(ctx context.Context) {
	e.mu.Lock()
	prog := e.program
	e.mu.Unlock()
	if prog == nil {
		e.fail(ErrNoEngine)
		return
	}
	e.stopStreams()
	e.mu.Lock()
	old := e.interp
	e.interp = nil
	e.mu.Unlock()
	if old != nil {
		e.release("interpreter", old)
	}
	interp, err := prog.NewInterpreter()
	if err != nil {
		e.fail(&ConstructionError{Model: e.desc.ID, Stage: "interpreter", Err: err})
		return
	}
	e.mu.Lock()
	e.interp = interp
	e.mu.Unlock()
	e.log.Info().Msg("interpreter reset")
	e.set(Ready())
}

// Close releases the interpreter, then the program, drops the vocabulary and
// moves to Idle.
func (e *InterpreterEngine) Close() {
	e.stopStreams()
	e.mu.Lock()
	interp, prog := e.interp, e.program
	e.interp, e.program, e.tok = nil, nil, nil
	e.mu.Unlock()
	if interp != nil {
		e.release("interpreter", interp)
	}
	if prog != nil {
		e.release("program", prog)
	}
	e.set(Idle())
}

func specialIDs(spec *types.TokenizerSpec) tokenizer.Special {
	conv := func(p *int) *int32 {
		if p == nil {
			return nil
		}
		v := int32(*p)
		return &v
	}
	return tokenizer.Special{Pad: conv(spec.PadID), Bos: conv(spec.BosID), Eos: conv(spec.EosID)}
}
