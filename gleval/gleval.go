package gleval

import (
	"errors"
	"fmt"

	"github.com/soypat/geometry/ms2"
	"github.com/soypat/geometry/ms3"
	"github.com/soypat/gshade/glbuild"
)

// Field3 implements a 3D scalar field in vectorized
// form suitable for running on GPU.
type Field3 interface {
	// Evaluate evaluates the scalar field over pos positions.
	// dst and pos must be of same length. Resulting values are stored
	// in dst.
	//
	// userData facilitates getting data to the evaluators for use in processing.
	Evaluate(pos []ms3.Vec, dst []float32, userData any) error
}

// Fragment implements a color function over texture coordinates in vectorized form.
type Fragment interface {
	// Evaluate shades each texture coordinate of uv and stores the RGBA
	// result in dst. uv and dst must be of same length.
	Evaluate(uv []ms2.Vec, dst [][4]float32, userData any) error
}

// ExclusiveEvaluator is implemented by evaluators that must only be called
// from a single goroutine, such as those bound to a GL context.
type ExclusiveEvaluator interface {
	// Exclusive reports whether calls to Evaluate must be serialized on the calling goroutine.
	Exclusive() bool
}

// IsExclusive reports whether e requires single goroutine evaluation. See [ExclusiveEvaluator].
func IsExclusive(e any) bool {
	ex, ok := e.(ExclusiveEvaluator)
	return ok && ex.Exclusive()
}

var (
	ErrEmptyBuffers         = errors.New("empty buffers")
	ErrMismatchBufferLength = errors.New("input and output buffer length mismatch")
	ErrNoCGO                = errors.New("GPU evaluation requires CGo and is not supported on TinyGo")
)

// NewCPUFragment checks if the shader implements CPU evaluation and returns a [Fragment]
// ready for evaluation.
func NewCPUFragment(s glbuild.Fragment) (Fragment, error) {
	if s == nil {
		return nil, errors.New("nil Fragment")
	}
	frag, ok := s.(Fragment)
	if !ok {
		return nil, fmt.Errorf("%T does not implement gleval.Fragment", s)
	}
	return frag, nil
}

// NewCPUField3 checks if the shader implements CPU evaluation and returns a [Field3]
// ready for evaluation.
func NewCPUField3(s glbuild.Scalar3) (Field3, error) {
	if s == nil {
		return nil, errors.New("nil Scalar3")
	}
	f, ok := s.(Field3)
	if !ok {
		return nil, fmt.Errorf("%T does not implement gleval.Field3", s)
	}
	return f, nil
}

// GradientCentralDiff uses central differences algorithm for gradient calculation, which are stored in grads for each position.
// step is the full distance between the two samples of each axis.
func GradientCentralDiff(f Field3, pos []ms3.Vec, grads []ms3.Vec, step float32, userData any) error {
	step *= 0.5
	if step <= 0 {
		return errors.New("invalid step")
	} else if len(pos) != len(grads) {
		return errors.New("length of position must match length of gradients")
	} else if f == nil {
		return errors.New("nil Field3")
	} else if len(pos) == 0 {
		return ErrEmptyBuffers
	}
	d1 := make([]float32, len(pos))
	d2 := make([]float32, len(pos))
	auxPos := make([]ms3.Vec, len(pos))
	inv := 1 / (2 * step)
	var vecs = [3]ms3.Vec{{X: step}, {Y: step}, {Z: step}}
	for dim := 0; dim < 3; dim++ {
		h := vecs[dim]
		for i, p := range pos {
			auxPos[i] = ms3.Add(p, h)
		}
		err := f.Evaluate(auxPos, d1, userData)
		if err != nil {
			return err
		}
		for i, p := range pos {
			auxPos[i] = ms3.Sub(p, h)
		}
		err = f.Evaluate(auxPos, d2, userData)
		if err != nil {
			return err
		}

		switch dim {
		case 0:
			for i, d := range d1 {
				grads[i].X = (d - d2[i]) * inv
			}
		case 1:
			for i, d := range d1 {
				grads[i].Y = (d - d2[i]) * inv
			}
		case 2:
			for i, d := range d1 {
				grads[i].Z = (d - d2[i]) * inv
			}
		}
	}
	return nil
}
