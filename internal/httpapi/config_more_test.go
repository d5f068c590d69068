package httpapi

import (
	"testing"
	"time"
)

func TestSetMaxBodyBytes_DefaultWhenNonPositive(t *testing.T) {
	defer SetMaxBodyBytes(0)
	SetMaxBodyBytes(-1)
	if opts.MaxBodyBytes != 1<<20 {
		t.Fatalf("expected default 1MiB, got %d", opts.MaxBodyBytes)
	}
	SetMaxBodyBytes(1234)
	if opts.MaxBodyBytes != 1234 {
		t.Fatalf("expected 1234, got %d", opts.MaxBodyBytes)
	}
}

func TestSetGenerateTimeoutSeconds_NormalizesNegativeToZero(t *testing.T) {
	defer SetGenerateTimeoutSeconds(0)
	SetGenerateTimeoutSeconds(-5)
	if opts.GenerateTimeout != 0 {
		t.Fatalf("expected 0, got %s", opts.GenerateTimeout)
	}
	SetGenerateTimeoutSeconds(3)
	if opts.GenerateTimeout != 3*time.Second {
		t.Fatalf("expected 3s, got %s", opts.GenerateTimeout)
	}
}

func TestConfigure_CopiesCORSAndNormalizes(t *testing.T) {
	defer Configure(Options{})
	origins := []string{"http://a.example"}
	Configure(Options{
		MaxBodyBytes:    0,
		GenerateTimeout: -time.Second,
		CORS:            CORSOptions{Enabled: true, Origins: origins},
	})
	origins[0] = "mutated"
	if opts.MaxBodyBytes != defaultMaxBodyBytes {
		t.Fatalf("max body: %d", opts.MaxBodyBytes)
	}
	if opts.GenerateTimeout != 0 {
		t.Fatalf("timeout: %s", opts.GenerateTimeout)
	}
	if !opts.CORS.Enabled || opts.CORS.Origins[0] != "http://a.example" {
		t.Fatalf("cors: %+v", opts.CORS)
	}
}
