//go:build tinygo || !cgo

package gleval

import (
	"io"

	"github.com/soypat/geometry/ms2"
)

// Init1x1GLFW returns [ErrNoCGO].
func Init1x1GLFW() (terminate func(), err error) {
	return func() {}, ErrNoCGO
}

// NewComputeGPUFragment instantiates a [Fragment] that runs on the GPU.
// Without CGo it always returns [ErrNoCGO].
func NewComputeGPUFragment(glglSourceCode io.Reader, invocX int) (*FragmentCompute, error) {
	return nil, ErrNoCGO
}

type FragmentCompute struct{}

func (fc *FragmentCompute) Exclusive() bool { return true }

func (fc *FragmentCompute) Evaluate(uv []ms2.Vec, dst [][4]float32, userData any) error {
	return ErrNoCGO
}

func (fc *FragmentCompute) Delete() {}
