//go:build tflite

package llm

import (
	"context"
	"errors"
	"fmt"

	"github.com/mattn/go-tflite"

	"tutord/pkg/types"
)

var tfliteBuilt = true

type tfliteRuntime struct {
	threads int
}

// NewTFLiteRuntime returns the TensorFlow Lite interpreter runtime.
func NewTFLiteRuntime(threads int) InterpreterRuntime {
	return &tfliteRuntime{threads: threads}
}

func (r *tfliteRuntime) Available() error { return nil }

type tfliteProgram struct {
	model   *tflite.Model
	threads int
}

func (r *tfliteRuntime) Load(modelPath string, d types.ModelDescriptor) (Program, error) {
	m := tflite.NewModelFromFile(modelPath)
	if m == nil {
		return nil, fmt.Errorf("tflite: cannot load %s", modelPath)
	}
	return &tfliteProgram{model: m, threads: r.threads}, nil
}

func (p *tfliteProgram) NewInterpreter() (Interpreter, error) {
	if p.model == nil {
		return nil, errors.New("tflite: program released")
	}
	opts := tflite.NewInterpreterOptions()
	opts.SetNumThread(max(1, p.threads))
	ip := tflite.NewInterpreter(p.model, opts)
	if ip == nil {
		opts.Delete()
		return nil, errors.New("tflite: cannot create interpreter")
	}
	if st := ip.AllocateTensors(); st != tflite.OK {
		ip.Delete()
		opts.Delete()
		return nil, fmt.Errorf("tflite: allocate tensors: status %v", st)
	}
	return &tfliteInterpreter{ip: ip, opts: opts}, nil
}

func (p *tfliteProgram) Close() error {
	if p.model != nil {
		p.model.Delete()
		p.model = nil
	}
	return nil
}

type tfliteInterpreter struct {
	ip   *tflite.Interpreter
	opts *tflite.InterpreterOptions
}

func (t *tfliteInterpreter) Run(ctx context.Context, input []int32) ([]int32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	in := t.ip.GetInputTensor(0)
	if in == nil {
		return nil, errors.New("tflite: model has no input tensor")
	}
	if err := in.SetInt32s(input); err != nil {
		return nil, fmt.Errorf("tflite: set input: %w", err)
	}
	if st := t.ip.Invoke(); st != tflite.OK {
		return nil, fmt.Errorf("tflite: invoke: status %v", st)
	}
	out := t.ip.GetOutputTensor(0)
	if out == nil {
		return nil, errors.New("tflite: model has no output tensor")
	}
	return append([]int32(nil), out.Int32s()...), nil
}

func (t *tfliteInterpreter) Close() error {
	if t.ip != nil {
		t.ip.Delete()
		t.ip = nil
	}
	if t.opts != nil {
		t.opts.Delete()
		t.opts = nil
	}
	return nil
}
