package llm

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/rs/zerolog"

	"tutord/internal/fetch"
	"tutord/pkg/types"
)

type dirStore struct{ dir string }

func (s dirStore) LocalPath(d types.ModelDescriptor) string { return filepath.Join(s.dir, d.ID) }

func (s dirStore) Exists(d types.ModelDescriptor) bool {
	fi, err := os.Stat(s.LocalPath(d))
	return err == nil && fi.Mode().IsRegular()
}

// fakeFetcher writes body to dest after reporting progress, or fails with err.
type fakeFetcher struct {
	calls    atomic.Int32
	progress []int
	body     []byte
	err      error
}

func (f *fakeFetcher) Fetch(ctx context.Context, d types.ModelDescriptor, dest string, onProgress fetch.ProgressFunc) (string, error) {
	f.calls.Add(1)
	for _, p := range f.progress {
		onProgress(p)
	}
	if f.err != nil {
		return "", &fetch.FetchError{Model: d.ID, URL: d.URL, Err: f.err}
	}
	if err := os.WriteFile(dest, f.body, 0o644); err != nil {
		return "", err
	}
	return dest, nil
}

// fakeSessionRuntime counts constructions and releases. Sessions emit tokens
// and then either return or, when hang is set, block until canceled.
type fakeSessionRuntime struct {
	tokens  []string
	hang    bool
	genErr  error
	loadErr error

	mu          sync.Mutex
	sessionErrs []error // consumed in order by NewSession

	loads, modelCloses, sessions, sessionCloses atomic.Int32
	prompts                                     chan string
}

func (r *fakeSessionRuntime) Load(path string, d types.ModelDescriptor) (SessionModel, error) {
	if r.loadErr != nil {
		return nil, r.loadErr
	}
	r.loads.Add(1)
	return &fakeModel{rt: r}, nil
}

type fakeModel struct{ rt *fakeSessionRuntime }

func (m *fakeModel) NewSession(params types.GenerationParams) (Session, error) {
	m.rt.mu.Lock()
	var err error
	if len(m.rt.sessionErrs) > 0 {
		err, m.rt.sessionErrs = m.rt.sessionErrs[0], m.rt.sessionErrs[1:]
	}
	m.rt.mu.Unlock()
	if err != nil {
		return nil, err
	}
	m.rt.sessions.Add(1)
	return &fakeSession{rt: m.rt}, nil
}

func (m *fakeModel) Close() error {
	m.rt.modelCloses.Add(1)
	return nil
}

type fakeSession struct{ rt *fakeSessionRuntime }

func (s *fakeSession) Generate(ctx context.Context, prompt string, onToken func(string) error) error {
	if s.rt.prompts != nil {
		s.rt.prompts <- prompt
	}
	for _, tok := range s.rt.tokens {
		if err := onToken(tok); err != nil {
			return err
		}
	}
	if s.rt.hang {
		<-ctx.Done()
		return ctx.Err()
	}
	return s.rt.genErr
}

func (s *fakeSession) Close() error {
	s.rt.sessionCloses.Add(1)
	return nil
}

// fakeInterpreterRuntime returns a fixed output for every forward pass.
type fakeInterpreterRuntime struct {
	output []int32
	runErr error
	inputs chan []int32

	loads, programCloses, interps, interpCloses atomic.Int32
}

func (r *fakeInterpreterRuntime) Load(path string, d types.ModelDescriptor) (Program, error) {
	r.loads.Add(1)
	return &fakeProgram{rt: r}, nil
}

type fakeProgram struct{ rt *fakeInterpreterRuntime }

func (p *fakeProgram) NewInterpreter() (Interpreter, error) {
	p.rt.interps.Add(1)
	return &fakeInterpreter{rt: p.rt}, nil
}

func (p *fakeProgram) Close() error {
	p.rt.programCloses.Add(1)
	return nil
}

type fakeInterpreter struct{ rt *fakeInterpreterRuntime }

func (i *fakeInterpreter) Run(ctx context.Context, input []int32) ([]int32, error) {
	if i.rt.inputs != nil {
		i.rt.inputs <- append([]int32(nil), input...)
	}
	if i.rt.runErr != nil {
		return nil, i.rt.runErr
	}
	return i.rt.output, nil
}

func (i *fakeInterpreter) Close() error {
	i.rt.interpCloses.Add(1)
	return nil
}

var errBoom = errors.New("boom")

func sessionDesc() types.ModelDescriptor {
	return types.ModelDescriptor{
		Name:    "Test",
		ID:      "test-model.gguf",
		URL:     "http://127.0.0.1:1/test-model.gguf",
		Runtime: types.RuntimeSession,
		Backend: types.BackendCPU,
		Params:  types.GenerationParams{Temperature: 0.8, TopK: 40, TopP: 0.95, MaxTokens: 256},
	}
}

func interpreterDesc() types.ModelDescriptor {
	d := sessionDesc()
	d.ID = "test-seq2seq.tflite"
	d.Runtime = types.RuntimeInterpreter
	d.Tokenizer = &types.TokenizerSpec{
		PadID:     types.IntPtr(0),
		BosID:     types.IntPtr(1),
		EosID:     types.IntPtr(2),
		VocabFile: "vocab.txt",
		MaxLen:    8,
	}
	return d
}

func testDeps(t *testing.T, f *fakeFetcher) (Deps, dirStore) {
	t.Helper()
	st := dirStore{dir: t.TempDir()}
	return Deps{
		Store:        st,
		Fetcher:      f,
		Sessions:     &fakeSessionRuntime{},
		Interpreters: &fakeInterpreterRuntime{},
		Logger:       zerolog.Nop(),
	}, st
}

func writeModel(t *testing.T, st dirStore, d types.ModelDescriptor, body []byte) {
	t.Helper()
	if err := os.WriteFile(st.LocalPath(d), body, 0o644); err != nil {
		t.Fatal(err)
	}
}

// drain returns every state already buffered on ch.
func drain(ch <-chan State) []State {
	var out []State
	for {
		select {
		case st, ok := <-ch:
			if !ok {
				return out
			}
			out = append(out, st)
		default:
			return out
		}
	}
}

func kinds(states []State) []StateKind {
	out := make([]StateKind, len(states))
	for i, st := range states {
		out[i] = st.Kind
	}
	return out
}
