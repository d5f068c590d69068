//go:build !llama

package llm

// This file provides a no-CGO stub for the llama runtime. It is compiled when
// the 'llama' build tag is NOT set, keeping default builds and CI CGO-free.
// The real runtime lives in adapter_llama.go (tagged 'llama').

import "tutord/pkg/types"

var llamaBuilt = false

type llamaRuntime struct {
	ctxSize   int
	threads   int
	gpuLayers int
}

// NewLlamaRuntime returns a runtime that refuses to load models.
func NewLlamaRuntime(ctxSize, threads, gpuLayers int) SessionRuntime {
	return &llamaRuntime{ctxSize: ctxSize, threads: threads, gpuLayers: gpuLayers}
}

func (r *llamaRuntime) Load(modelPath string, d types.ModelDescriptor) (SessionModel, error) {
	return nil, r.Available()
}

func (r *llamaRuntime) Available() error {
	return ErrDependencyUnavailable("llama support not built (missing 'llama' build tag)")
}
