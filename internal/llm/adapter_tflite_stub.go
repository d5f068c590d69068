//go:build !tflite

package llm

import "tutord/pkg/types"

var tfliteBuilt = false

type tfliteRuntime struct {
	threads int
}

// NewTFLiteRuntime returns a runtime that refuses to load models. Build with
// -tags=tflite for the real interpreter.
func NewTFLiteRuntime(threads int) InterpreterRuntime {
	return &tfliteRuntime{threads: threads}
}

func (r *tfliteRuntime) Load(modelPath string, d types.ModelDescriptor) (Program, error) {
	return nil, r.Available()
}

func (r *tfliteRuntime) Available() error {
	return ErrDependencyUnavailable("tflite support not built (missing 'tflite' build tag)")
}
