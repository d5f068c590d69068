package llm

import (
	"context"

	"tutord/pkg/types"
)

// SessionRuntime loads models for engine + session style backends.
// Concrete implementations (e.g., llama.cpp) should satisfy this interface.
type SessionRuntime interface {
	// Load reads the model weights at modelPath.
	Load(modelPath string, d types.ModelDescriptor) (SessionModel, error)
}

// SessionModel owns loaded weights and spawns lightweight sessions.
type SessionModel interface {
	// NewSession creates a per-conversation context over the loaded weights.
	NewSession(params types.GenerationParams) (Session, error)
	// Close releases the weights.
	Close() error
}

// Session is one per-conversation generation context.
type Session interface {
	// Generate streams text for prompt. onToken is invoked for every piece of
	// text as it is produced; a non-nil return stops generation and is
	// returned. Implementations must return when ctx is canceled.
	Generate(ctx context.Context, prompt string, onToken func(string) error) error
	// Close releases the session.
	Close() error
}

// InterpreterRuntime loads raw-tensor models.
type InterpreterRuntime interface {
	Load(modelPath string, d types.ModelDescriptor) (Program, error)
}

// Program is a loaded raw-tensor model.
type Program interface {
	// NewInterpreter allocates an interpreter and its tensors.
	NewInterpreter() (Interpreter, error)
	Close() error
}

// Interpreter runs one forward pass from input ids to output ids.
type Interpreter interface {
	Run(ctx context.Context, input []int32) ([]int32, error)
	Close() error
}

// ModelStore resolves local model files.
type ModelStore interface {
	LocalPath(d types.ModelDescriptor) string
	Exists(d types.ModelDescriptor) bool
}

// BuiltRuntimes reports which native runtimes were compiled in.
func BuiltRuntimes() map[string]bool {
	return map[string]bool{"llama": llamaBuilt, "tflite": tfliteBuilt}
}
