package types

import (
	"errors"
	"fmt"
	"strings"
)

// Backend is the hardware preference passed to the inference runtime.
type Backend string

const (
	BackendNone Backend = "none"
	BackendCPU  Backend = "cpu"
	BackendGPU  Backend = "gpu"
)

// Runtime selects which orchestrator variant drives a model.
type Runtime string

const (
	// RuntimeSession is the engine + session style runtime with streamed tokens.
	RuntimeSession Runtime = "session"
	// RuntimeInterpreter is the raw-tensor interpreter runtime with a manual tokenizer.
	RuntimeInterpreter Runtime = "interpreter"
)

// GenerationParams are the sampling hyperparameters of a model.
type GenerationParams struct {
	// Sampling temperature in [0,1].
	// example: 0.8
	Temperature float32 `json:"temperature" yaml:"temperature" toml:"temperature" example:"0.8"`
	// Top-K sampling, at least 1.
	// example: 40
	TopK int `json:"top_k" yaml:"top_k" toml:"top_k" example:"40"`
	// Nucleus sampling probability in (0,1].
	// example: 0.95
	TopP float32 `json:"top_p" yaml:"top_p" toml:"top_p" example:"0.95"`
	// Maximum number of tokens (prompt + generated) per call.
	// example: 1024
	MaxTokens int `json:"max_tokens" yaml:"max_tokens" toml:"max_tokens" example:"1024"`
}

// TokenizerSpec describes the manual tokenizer used by interpreter models.
// Unset special ids are nil.
type TokenizerSpec struct {
	PadID *int `json:"pad_id,omitempty" yaml:"pad_id,omitempty" toml:"pad_id,omitempty"`
	BosID *int `json:"bos_id,omitempty" yaml:"bos_id,omitempty" toml:"bos_id,omitempty"`
	EosID *int `json:"eos_id,omitempty" yaml:"eos_id,omitempty" toml:"eos_id,omitempty"`
	// Name of the vocabulary file embedded in the model metadata.
	VocabFile string `json:"vocab_file,omitempty" yaml:"vocab_file,omitempty" toml:"vocab_file,omitempty"`
	// Fixed input sequence length of the interpreter.
	MaxLen int `json:"max_len,omitempty" yaml:"max_len,omitempty" toml:"max_len,omitempty"`
}

// ModelDescriptor is the static configuration of a downloadable model.
// Descriptors are built once at startup and treated as values afterwards.
type ModelDescriptor struct {
	// Human-friendly name.
	// example: Gemma 3 1B (int4)
	Name string `json:"name" yaml:"name" toml:"name" example:"Gemma 3 1B (int4)"`
	// Stable identifier, also used as the local file name.
	// example: tinyllama-1.1b-chat-v1.0.Q4_K_M.gguf
	ID string `json:"id" yaml:"id" toml:"id" example:"tinyllama-1.1b-chat-v1.0.Q4_K_M.gguf"`
	// Download location of the model file.
	URL string `json:"url" yaml:"url" toml:"url"`
	// License of the model weights.
	LicenseURL string `json:"license_url,omitempty" yaml:"license_url,omitempty" toml:"license_url,omitempty"`
	// Reserved: downloads never send credentials yet.
	NeedsAuth bool `json:"needs_auth,omitempty" yaml:"needs_auth,omitempty" toml:"needs_auth,omitempty"`
	// Preferred hardware backend.
	// example: gpu
	Backend Backend `json:"backend,omitempty" yaml:"backend,omitempty" toml:"backend,omitempty" example:"gpu"`
	// Orchestrator variant.
	// example: session
	Runtime Runtime `json:"runtime,omitempty" yaml:"runtime,omitempty" toml:"runtime,omitempty" example:"session"`
	Params  GenerationParams `json:"params" yaml:"params" toml:"params"`
	// Only used by interpreter models.
	Tokenizer *TokenizerSpec `json:"tokenizer,omitempty" yaml:"tokenizer,omitempty" toml:"tokenizer,omitempty"`
}

// RuntimeOrDefault returns the runtime, defaulting to RuntimeSession.
func (d ModelDescriptor) RuntimeOrDefault() Runtime {
	if d.Runtime == "" {
		return RuntimeSession
	}
	return d.Runtime
}

// PartialSuffix marks an in-progress download next to its final file name.
const PartialSuffix = ".part"

// Validate reports missing fields and runtime/backend mismatches.
func (d ModelDescriptor) Validate() error {
	var errs []error
	id := strings.TrimSpace(d.ID)
	switch {
	case id == "":
		errs = append(errs, errors.New("id is required"))
	case id != d.ID, strings.ContainsAny(id, `/\`), id == ".", id == "..":
		errs = append(errs, fmt.Errorf("id %q is not a valid file name", d.ID))
	case strings.HasSuffix(id, PartialSuffix):
		errs = append(errs, fmt.Errorf("id %q uses the reserved %s suffix of partial downloads", d.ID, PartialSuffix))
	}
	if strings.TrimSpace(d.URL) == "" {
		errs = append(errs, errors.New("url is required"))
	}
	switch d.Backend {
	case "", BackendNone, BackendCPU, BackendGPU:
	default:
		errs = append(errs, fmt.Errorf("unknown backend %q", d.Backend))
	}
	switch d.RuntimeOrDefault() {
	case RuntimeSession:
	case RuntimeInterpreter:
		if d.Tokenizer == nil || d.Tokenizer.MaxLen <= 0 {
			errs = append(errs, errors.New("interpreter models need tokenizer.max_len > 0"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown runtime %q", d.Runtime))
	}
	p := d.Params
	if p.Temperature < 0 || p.Temperature > 1 {
		errs = append(errs, fmt.Errorf("temperature %v out of [0,1]", p.Temperature))
	}
	if p.TopK < 1 {
		errs = append(errs, fmt.Errorf("top_k %d must be >= 1", p.TopK))
	}
	if p.TopP <= 0 || p.TopP > 1 {
		errs = append(errs, fmt.Errorf("top_p %v out of (0,1]", p.TopP))
	}
	if p.MaxTokens <= 0 {
		errs = append(errs, fmt.Errorf("max_tokens %d must be > 0", p.MaxTokens))
	}
	if len(errs) > 0 {
		return fmt.Errorf("model %q: %w", d.ID, errors.Join(errs...))
	}
	return nil
}

// IntPtr is a small helper for optional token ids.
func IntPtr(v int) *int { return &v }
