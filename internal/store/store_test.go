package store

import (
	"os"
	"path/filepath"
	"testing"

	"tutord/pkg/types"
)

func TestLocalPathDeterministicAndDistinct(t *testing.T) {
	s, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	ids := []string{"a.task", "b.task", "a.tflite", "A.task"}
	seen := map[string]string{}
	for _, id := range ids {
		d := types.ModelDescriptor{ID: id}
		p1, p2 := s.LocalPath(d), s.LocalPath(d)
		if p1 != p2 {
			t.Fatalf("path for %q not deterministic: %q vs %q", id, p1, p2)
		}
		if prev, ok := seen[p1]; ok {
			t.Fatalf("ids %q and %q collide at %q", prev, id, p1)
		}
		seen[p1] = id
		if filepath.Dir(p1) != s.Dir() {
			t.Fatalf("path %q escapes %q", p1, s.Dir())
		}
	}
}

func TestExistsAndRemove(t *testing.T) {
	dir := t.TempDir()
	s, err := New(filepath.Join(dir, "models"))
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	d := types.ModelDescriptor{ID: "m.bin"}
	if s.Exists(d) {
		t.Fatalf("expected absent before download")
	}
	if err := s.EnsureDir(); err != nil {
		t.Fatalf("ensure dir: %v", err)
	}
	if err := os.WriteFile(s.LocalPath(d), []byte("weights"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if !s.Exists(d) {
		t.Fatalf("expected present")
	}
	if err := s.Remove(d); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if s.Exists(d) {
		t.Fatalf("expected absent after remove")
	}
	if err := s.Remove(d); err != nil {
		t.Fatalf("second remove: %v", err)
	}
}

func TestNewRejectsEmptyDir(t *testing.T) {
	if _, err := New(""); err == nil {
		t.Fatalf("expected error for empty dir")
	}
}

func TestFilesSkipsPartialsAndDirs(t *testing.T) {
	dir := t.TempDir()
	s, err := New(dir)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	for _, n := range []string{"b.gguf", "a.task", "c.gguf.part"} {
		if err := os.WriteFile(filepath.Join(dir, n), []byte("x"), 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	if err := os.Mkdir(filepath.Join(dir, "sub"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	got, err := s.Files()
	if err != nil {
		t.Fatalf("files: %v", err)
	}
	if len(got) != 2 || got[0] != "a.task" || got[1] != "b.gguf" {
		t.Fatalf("unexpected files: %v", got)
	}

	missing, err := New(filepath.Join(dir, "nope"))
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if got, err := missing.Files(); err != nil || len(got) != 0 {
		t.Fatalf("missing dir: %v %v", got, err)
	}
}
