package e2e

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"os"
	"strings"
	"testing"
	"time"

	"tutord/internal/manager"
	"tutord/pkg/types"
)

func TestE2E_SwitchDownloadsThenGenerates(t *testing.T) {
	ms := newModelServer(t, []byte("gguf-weights"), 0)
	s := newStack(t, ms, &fakeRuntime{tokens: []string{"Hola", ",", " amigo"}}, nil)

	resp, body := httpGet(t, s.srv.URL+"/readyz")
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("/readyz before switch: %d %s", resp.StatusCode, body)
	}

	resp, body = httpPostJSON(t, s.srv.URL+"/switch", `{"model":"remote.gguf"}`)
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("/switch: %d %s", resp.StatusCode, body)
	}
	st := waitState(t, s.srv.URL, "ready")
	if st.Model != "remote.gguf" || !st.Downloaded {
		t.Fatalf("unexpected status after switch: %+v", st)
	}
	d, _ := s.cat.Get("remote.gguf")
	b, err := os.ReadFile(s.store.LocalPath(d))
	if err != nil || string(b) != "gguf-weights" {
		t.Fatalf("model file: %q %v", b, err)
	}

	resp, body = httpPostJSON(t, s.srv.URL+"/generate", `{"prompt":"hello","conversation_id":"conv-1"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("/generate: %d %s", resp.StatusCode, body)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/x-ndjson" {
		t.Fatalf("/generate content-type=%s", ct)
	}
	lines := strings.Split(strings.TrimSpace(string(body)), "\n")
	var text strings.Builder
	for _, l := range lines[:len(lines)-1] {
		var c struct {
			Chunk string `json:"chunk"`
		}
		if err := json.Unmarshal([]byte(l), &c); err != nil {
			t.Fatalf("chunk line %q: %v", l, err)
		}
		text.WriteString(c.Chunk)
	}
	if text.String() != "Hola, amigo" {
		t.Fatalf("text=%q", text.String())
	}
	var done struct {
		Done           bool   `json:"done"`
		ConversationID string `json:"conversation_id"`
	}
	if err := json.Unmarshal([]byte(lines[len(lines)-1]), &done); err != nil || !done.Done || done.ConversationID != "conv-1" {
		t.Fatalf("done line %q (%v)", lines[len(lines)-1], err)
	}

	resp, _ = httpGet(t, s.srv.URL+"/readyz")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("/readyz after switch: %d", resp.StatusCode)
	}
}

func TestE2E_DownloadFailureThenInitializeRetry(t *testing.T) {
	ms := newModelServer(t, []byte("weights"), 1)
	s := newStack(t, ms, &fakeRuntime{tokens: []string{"ok"}}, nil)

	resp, body := httpPostJSON(t, s.srv.URL+"/switch", `{"model":"remote.gguf"}`)
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("/switch: %d %s", resp.StatusCode, body)
	}
	st := waitState(t, s.srv.URL, "error")
	if st.State.Model != "remote.gguf" || st.State.Message == "" || st.Downloaded {
		t.Fatalf("unexpected error state: %+v", st)
	}

	resp, body = httpPostJSON(t, s.srv.URL+"/generate", `{"prompt":"hi"}`)
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("/generate in error state: %d %s", resp.StatusCode, body)
	}

	resp, body = httpPostJSON(t, s.srv.URL+"/initialize", `{}`)
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("/initialize: %d %s", resp.StatusCode, body)
	}
	waitState(t, s.srv.URL, "ready")
	if hits := ms.hits.Load(); hits != 2 {
		t.Fatalf("expected 2 download attempts, got %d", hits)
	}
}

func TestE2E_Backpressure429(t *testing.T) {
	ms := newModelServer(t, []byte("weights"), 0)
	rt := &fakeRuntime{tokens: []string{"slow"}, gate: make(chan struct{}), started: make(chan struct{}, 1)}
	s := newStack(t, ms, rt, func(c *manager.Config) {
		c.MaxQueueDepth = 1
		c.MaxWait = 50 * time.Millisecond
	})
	httpPostJSON(t, s.srv.URL+"/switch", `{"model":"remote.gguf"}`)
	waitState(t, s.srv.URL, "ready")

	first := make(chan int, 1)
	go func() {
		resp, err := http.Post(s.srv.URL+"/generate", "application/json", strings.NewReader(`{"prompt":"one"}`))
		if err != nil {
			first <- 0
			return
		}
		resp.Body.Close()
		first <- resp.StatusCode
	}()
	select {
	case <-rt.started:
	case <-time.After(5 * time.Second):
		t.Fatalf("first generation never started")
	}

	resp, body := httpPostJSON(t, s.srv.URL+"/generate", `{"prompt":"two"}`)
	if resp.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("expected 429 while the engine is busy, got %d %s", resp.StatusCode, body)
	}

	close(rt.gate)
	if code := <-first; code != http.StatusOK {
		t.Fatalf("first request: %d", code)
	}
}

func TestE2E_EventsFollowSwitch(t *testing.T) {
	ms := newModelServer(t, []byte(strings.Repeat("w", 64)), 0)
	s := newStack(t, ms, &fakeRuntime{tokens: []string{"x"}}, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, s.srv.URL+"/events", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("/events: %v", err)
	}
	defer resp.Body.Close()

	names := make(chan string, 256)
	go func() {
		defer close(names)
		sc := bufio.NewScanner(resp.Body)
		for sc.Scan() {
			data, ok := strings.CutPrefix(sc.Text(), "data: ")
			if !ok {
				continue
			}
			var sv types.StateView
			if json.Unmarshal([]byte(data), &sv) == nil {
				names <- sv.Name
			}
		}
	}()
	if first := <-names; first != "idle" {
		t.Fatalf("first event should be idle, got %q", first)
	}

	httpPostJSON(t, s.srv.URL+"/switch", `{"model":"remote.gguf"}`)
	var seen []string
	for name := range names {
		seen = append(seen, name)
		if name == "ready" {
			break
		}
	}
	joined := strings.Join(seen, ",")
	if !strings.Contains(joined, "downloading") || !strings.HasSuffix(joined, "ready") {
		t.Fatalf("unexpected event sequence: %s", joined)
	}
	if i, j := strings.Index(joined, "downloading"), strings.LastIndex(joined, "ready"); i > j {
		t.Fatalf("downloading must precede ready: %s", joined)
	}
}
