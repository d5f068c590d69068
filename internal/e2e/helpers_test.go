package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"tutord/internal/catalog"
	"tutord/internal/fetch"
	"tutord/internal/httpapi"
	"tutord/internal/llm"
	"tutord/internal/manager"
	"tutord/internal/store"
	"tutord/pkg/types"
)

// modelServer serves model bytes. The first failFirst requests get a 500.
type modelServer struct {
	*httptest.Server
	body      []byte
	failFirst int32
	hits      atomic.Int32
}

func newModelServer(t *testing.T, body []byte, failFirst int32) *modelServer {
	t.Helper()
	ms := &modelServer{body: body, failFirst: failFirst}
	ms.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ms.hits.Add(1) <= ms.failFirst {
			http.Error(w, "upstream down", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Length", strconv.Itoa(len(ms.body)))
		_, _ = w.Write(ms.body)
	}))
	t.Cleanup(ms.Close)
	return ms
}

// fakeRuntime streams fixed tokens. With gate set, generation blocks after
// signalling started until gate is closed.
type fakeRuntime struct {
	tokens  []string
	gate    chan struct{}
	started chan struct{}
}

func (f *fakeRuntime) Load(modelPath string, d types.ModelDescriptor) (llm.SessionModel, error) {
	return fakeModel{f}, nil
}

type fakeModel struct{ f *fakeRuntime }

func (m fakeModel) NewSession(types.GenerationParams) (llm.Session, error) { return fakeSession{m.f}, nil }
func (m fakeModel) Close() error                                          { return nil }

type fakeSession struct{ f *fakeRuntime }

func (s fakeSession) Generate(ctx context.Context, prompt string, onToken func(string) error) error {
	if s.f.gate != nil {
		select {
		case s.f.started <- struct{}{}:
		default:
		}
		select {
		case <-s.f.gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	for _, t := range s.f.tokens {
		if err := onToken(t); err != nil {
			return err
		}
	}
	return nil
}

func (s fakeSession) Close() error { return nil }

type stack struct {
	srv   *httptest.Server
	mgr   *manager.Manager
	store *store.Store
	cat   *catalog.Catalog
}

func descriptor(id, url string) types.ModelDescriptor {
	return types.ModelDescriptor{
		Name:    id,
		ID:      id,
		URL:     url,
		Runtime: types.RuntimeSession,
		Params:  types.GenerationParams{Temperature: 0.5, TopK: 10, TopP: 0.9, MaxTokens: 32},
	}
}

// newStack wires the real catalog, store, fetcher, manager and HTTP API
// around rt. The catalog holds one model "remote.gguf" served by ms.
func newStack(t *testing.T, ms *modelServer, rt *fakeRuntime, mutate func(*manager.Config)) *stack {
	t.Helper()
	cat, err := catalog.New([]types.ModelDescriptor{descriptor("remote.gguf", ms.URL+"/remote.gguf")}, "")
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}
	st, err := store.New(t.TempDir())
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	cfg := manager.Config{
		Catalog:  cat,
		Store:    st,
		Fetcher:  fetch.New(fetch.WithChunkSize(4)),
		Sessions: rt,
		Logger:   zerolog.Nop(),
	}
	if mutate != nil {
		mutate(&cfg)
	}
	mgr, err := manager.New(cfg)
	if err != nil {
		t.Fatalf("manager: %v", err)
	}
	srv := httptest.NewServer(httpapi.NewMux(mgr))
	t.Cleanup(func() {
		srv.Close()
		_ = mgr.Shutdown(context.Background())
	})
	return &stack{srv: srv, mgr: mgr, store: st, cat: cat}
}

func httpGet(t *testing.T, url string) (*http.Response, []byte) {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("get %s: %v", url, err)
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	return resp, b
}

func httpPostJSON(t *testing.T, url string, payload string) (*http.Response, []byte) {
	t.Helper()
	resp, err := http.Post(url, "application/json", bytes.NewBufferString(payload))
	if err != nil {
		t.Fatalf("post %s: %v", url, err)
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	return resp, b
}

// waitState polls /status until the engine reaches state name.
func waitState(t *testing.T, base, name string) types.StatusResponse {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	var last types.StatusResponse
	for time.Now().Before(deadline) {
		_, body := httpGet(t, base+"/status")
		if err := json.Unmarshal(body, &last); err != nil {
			t.Fatalf("status json: %v body=%s", err, body)
		}
		if last.State.Name == name {
			return last
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("state %q not reached; last=%+v", name, last.State)
	return last
}
