package llm

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"tutord/pkg/types"
)

// Orchestrator is the contract conversation code depends on. Every backend
// variant implements it; callers never need the concrete type.
//
// Calls on one Orchestrator must be serialized by the caller. State and
// Subscribe are safe to use concurrently with anything.
type Orchestrator interface {
	// Descriptor returns the managed model.
	Descriptor() types.ModelDescriptor
	// State returns the current lifecycle state.
	State() State
	// Subscribe observes state changes, starting with the current state.
	Subscribe() (<-chan State, func())
	// Initialize closes any loaded model, acquires the model file (downloading
	// it when absent) and builds the backend. It never fails directly: the
	// outcome is the resulting Ready or Error state. Calling it again is the
	// retry path.
	Initialize(ctx context.Context)
	// GenerateResponse streams a reply to prompt. Outside Ready the stream
	// fails immediately with ErrNotReady.
	GenerateResponse(ctx context.Context, prompt, conversationID, targetLanguage string) *Stream
	// InitialGreeting returns an opening line for topic. It never fails;
	// errors degrade to FallbackGreeting.
	InitialGreeting(ctx context.Context, topic, targetLanguage string) string
	// ResetSession rebuilds the per-conversation session from the loaded
	// model. Without a loaded model the engine moves to Error.
	ResetSession(ctx context.Context)
	// Close releases every resource and moves to Idle. It is idempotent.
	Close()
}

// Deps are the collaborators shared by the engine variants.
type Deps struct {
	Store        ModelStore
	Fetcher      ModelFetcher
	Sessions     SessionRuntime
	Interpreters InterpreterRuntime
	Logger       zerolog.Logger
}

// New returns the Orchestrator variant selected by d.Runtime.
func New(d types.ModelDescriptor, deps Deps) (Orchestrator, error) {
	if deps.Store == nil || deps.Fetcher == nil {
		return nil, fmt.Errorf("llm: store and fetcher are required")
	}
	switch rt := d.RuntimeOrDefault(); rt {
	case types.RuntimeSession:
		if deps.Sessions == nil {
			return nil, fmt.Errorf("llm: no session runtime for %s", d.ID)
		}
		return NewSessionEngine(d, deps), nil
	case types.RuntimeInterpreter:
		if deps.Interpreters == nil {
			return nil, fmt.Errorf("llm: no interpreter runtime for %s", d.ID)
		}
		if d.Tokenizer == nil || d.Tokenizer.MaxLen <= 0 {
			return nil, fmt.Errorf("llm: %s needs a tokenizer with max_len", d.ID)
		}
		return NewInterpreterEngine(d, deps), nil
	default:
		return nil, fmt.Errorf("llm: unknown runtime %q", rt)
	}
}

var (
	_ Orchestrator = (*SessionEngine)(nil)
	_ Orchestrator = (*InterpreterEngine)(nil)
)

// availability is implemented by runtimes that may be compiled out.
type availability interface {
	Available() error
}

// Preflight reports whether the runtime selected by d can serve it in this
// binary. Runtimes that do not implement Available are assumed usable.
func Preflight(d types.ModelDescriptor, deps Deps) error {
	var rt any
	switch d.RuntimeOrDefault() {
	case types.RuntimeSession:
		rt = deps.Sessions
	case types.RuntimeInterpreter:
		rt = deps.Interpreters
	}
	if a, ok := rt.(availability); ok {
		return a.Available()
	}
	return nil
}
