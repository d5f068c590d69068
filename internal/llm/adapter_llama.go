//go:build llama

package llm

import (
	"context"
	"errors"
	"strings"
	"sync"

	llama "github.com/go-skynet/go-llama.cpp"

	"tutord/pkg/types"
)

// llamaBuilt indicates this binary was compiled with real llama support.
var llamaBuilt = true

// maxTranscript bounds the conversation history replayed into each prompt.
const maxTranscript = 8 << 10

// llamaRuntime holds global config used to load models.
type llamaRuntime struct {
	ctxSize   int
	threads   int
	gpuLayers int
}

// NewLlamaRuntime returns the in-process llama.cpp session runtime.
func NewLlamaRuntime(ctxSize, threads, gpuLayers int) SessionRuntime {
	return &llamaRuntime{ctxSize: ctxSize, threads: threads, gpuLayers: gpuLayers}
}

// llamaModel owns the loaded weights.
type llamaModel struct {
	llm     *llama.LLama
	threads int
	// generation uses the shared llama context; one session runs at a time
	mu sync.Mutex
}

func (r *llamaRuntime) Available() error { return nil }

func (r *llamaRuntime) Load(modelPath string, d types.ModelDescriptor) (SessionModel, error) {
	if strings.TrimSpace(modelPath) == "" {
		return nil, errors.New("model path is empty")
	}
	mo := []llama.ModelOption{
		llama.SetContext(max(r.ctxSize, 512)),
	}
	if d.Backend == types.BackendGPU && r.gpuLayers > 0 {
		mo = append(mo, llama.SetGPULayers(r.gpuLayers))
	}
	m, err := llama.New(modelPath, mo...)
	if err != nil {
		return nil, err
	}
	return &llamaModel{llm: m, threads: r.threads}, nil
}

func (m *llamaModel) NewSession(params types.GenerationParams) (Session, error) {
	if m.llm == nil {
		return nil, errors.New("llama model released")
	}
	return &llamaSession{model: m, params: params}, nil
}

func (m *llamaModel) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.llm != nil {
		m.llm.Free()
		m.llm = nil
	}
	return nil
}

// llamaSession keeps the transcript of one conversation. llama.cpp has no
// separate session object, so the transcript is replayed in front of each
// prompt and dropped on reset.
type llamaSession struct {
	model      *llamaModel
	params     types.GenerationParams
	transcript strings.Builder
}

func (s *llamaSession) Generate(ctx context.Context, prompt string, onToken func(string) error) error {
	s.model.mu.Lock()
	defer s.model.mu.Unlock()
	if s.model.llm == nil {
		return errors.New("llama model not initialized")
	}

	var cbErr error
	// Bridge token streaming to onToken and respect cancellation
	s.model.llm.SetTokenCallback(func(tok string) bool {
		select {
		case <-ctx.Done():
			return false
		default:
		}
		if err := onToken(tok); err != nil {
			cbErr = err
			return false
		}
		return true
	})
	full := s.transcript.String() + prompt
	text, err := s.model.llm.Predict(full, predictOptions(s.params, s.model.threads)...)
	if cbErr != nil {
		return cbErr
	}
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return err
	}
	s.remember(prompt + text + "\n")
	return nil
}

func (s *llamaSession) remember(turn string) {
	s.transcript.WriteString(turn)
	if s.transcript.Len() > maxTranscript {
		keep := tailUTF8(s.transcript.String(), maxTranscript)
		s.transcript.Reset()
		s.transcript.WriteString(keep)
	}
}

func (s *llamaSession) Close() error {
	s.transcript.Reset()
	return nil
}

// predictOptions converts descriptor params into go-llama.cpp options.
func predictOptions(params types.GenerationParams, threads int) []llama.PredictOption {
	sp := resolveSampling(params, sampling{
		TopK:      llama.DefaultOptions.TopK,
		TopP:      llama.DefaultOptions.TopP,
		MaxTokens: llama.DefaultOptions.Tokens,
	})
	return []llama.PredictOption{
		llama.SetTokens(sp.MaxTokens),
		llama.SetThreads(max(1, threads)),
		llama.SetTopP(sp.TopP),
		llama.SetTopK(sp.TopK),
		llama.SetTemperature(sp.Temperature),
		llama.SetStopWords("\nUser:"),
	}
}
