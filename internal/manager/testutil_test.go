package manager

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"tutord/internal/catalog"
	"tutord/internal/fetch"
	"tutord/internal/llm"
	"tutord/pkg/types"
)

func model(id string) types.ModelDescriptor {
	return types.ModelDescriptor{
		Name:    id,
		ID:      id,
		URL:     "http://127.0.0.1:1/" + id,
		Runtime: types.RuntimeSession,
		Params:  types.GenerationParams{Temperature: 0.5, TopK: 10, TopP: 0.9, MaxTokens: 64},
	}
}

type dirStore struct{ dir string }

func (s dirStore) LocalPath(d types.ModelDescriptor) string { return filepath.Join(s.dir, d.ID) }

func (s dirStore) Exists(d types.ModelDescriptor) bool {
	_, err := os.Stat(s.LocalPath(d))
	return err == nil
}

// failingFetcher never downloads anything.
type failingFetcher struct{}

func (failingFetcher) Fetch(ctx context.Context, d types.ModelDescriptor, dest string, onProgress fetch.ProgressFunc) (string, error) {
	return "", &fetch.FetchError{Model: d.ID, URL: d.URL, Err: context.DeadlineExceeded}
}

// fakeRuntime is a lightweight in-memory session runtime used for tests.
type fakeRuntime struct {
	tokens      []string
	hang        bool
	unavailable error
}

func (f *fakeRuntime) Load(modelPath string, d types.ModelDescriptor) (llm.SessionModel, error) {
	return fakeModel{f: f}, nil
}

func (f *fakeRuntime) Available() error { return f.unavailable }

type fakeModel struct{ f *fakeRuntime }

func (m fakeModel) NewSession(types.GenerationParams) (llm.Session, error) { return fakeSession{f: m.f}, nil }
func (m fakeModel) Close() error                                          { return nil }

type fakeSession struct{ f *fakeRuntime }

func (s fakeSession) Generate(ctx context.Context, prompt string, onToken func(string) error) error {
	for _, t := range s.f.tokens {
		if err := onToken(t); err != nil {
			return err
		}
	}
	if s.f.hang {
		<-ctx.Done()
		return ctx.Err()
	}
	return nil
}

func (s fakeSession) Close() error { return nil }

type fixture struct {
	m     *Manager
	store dirStore
	rt    *fakeRuntime
	pub   *MemoryPublisher
}

// newFixture builds a manager over models "a" and "b" (both present on disk)
// and "remote" (absent; downloads fail).
func newFixture(t *testing.T, rt *fakeRuntime, mutate func(*Config)) *fixture {
	t.Helper()
	cat, err := catalog.New([]types.ModelDescriptor{model("a"), model("b"), model("remote")}, "a")
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}
	st := dirStore{dir: t.TempDir()}
	for _, id := range []string{"a", "b"} {
		if err := os.WriteFile(filepath.Join(st.dir, id), []byte("weights"), 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	if rt == nil {
		rt = &fakeRuntime{tokens: []string{"Hello", ",", " world"}}
	}
	pub := NewMemoryPublisher()
	cfg := Config{
		Catalog:   cat,
		Store:     st,
		Fetcher:   failingFetcher{},
		Sessions:  rt,
		Logger:    zerolog.Nop(),
		Publisher: pub,
	}
	if mutate != nil {
		mutate(&cfg)
	}
	m, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = m.Shutdown(context.Background()) })
	return &fixture{m: m, store: st, rt: rt, pub: pub}
}

// testCtx returns a context with a short timeout, canceled on test cleanup.
func testCtx(t *testing.T) context.Context {
	t.Helper()
	c, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	t.Cleanup(cancel)
	return c
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

// signalWriter records writes and closes first on the first one.
type signalWriter struct {
	mu    sync.Mutex
	buf   bytes.Buffer
	once  sync.Once
	first chan struct{}
}

func newSignalWriter() *signalWriter { return &signalWriter{first: make(chan struct{})} }

func (w *signalWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	n, err := w.buf.Write(p)
	w.mu.Unlock()
	w.once.Do(func() { close(w.first) })
	return n, err
}

func (w *signalWriter) String() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.buf.String()
}
