//go:build !tinygo && cgo

package gleval

import (
	"errors"
	"fmt"
	"io"
	"runtime"
	"unsafe"

	"github.com/go-gl/gl/v4.6-core/gl"
	"github.com/soypat/geometry/ms2"
	"github.com/soypat/glgl/v4.6-core/glgl"
)

// Init1x1GLFW starts a 1x1 sized GLFW so that user can start working with GPU.
// It returns a termination function that should be called when user is done running loads on GPU.
func Init1x1GLFW() (terminate func(), err error) {
	_, terminate, err = glgl.InitWithCurrentWindow33(glgl.WindowConfig{
		Title:   "compute",
		Version: [2]int{4, 6},
		Width:   1,
		Height:  1,
	})
	return terminate, err
}

// NewComputeGPUFragment instantiates a [Fragment] that runs on the GPU.
// glglSourceCode is a compute program as written by [glbuild.Programmer.WriteComputeFragment].
// A GL context must be current on the calling goroutine, see [Init1x1GLFW].
func NewComputeGPUFragment(glglSourceCode io.Reader, invocX int) (*FragmentCompute, error) {
	if invocX < 1 {
		return nil, errors.New("zero or negative invocation size")
	}
	combinedSource, err := glgl.ParseCombined(glglSourceCode)
	if err != nil {
		return nil, err
	}
	glprog, err := glgl.CompileProgram(combinedSource)
	if err != nil {
		return nil, errors.New(string(combinedSource.Compute) + "\n" + err.Error())
	}
	return &FragmentCompute{prog: glprog, invocX: invocX}, nil
}

// FragmentCompute evaluates a compiled fragment compute program. It is bound
// to the GL context it was created on.
type FragmentCompute struct {
	prog   glgl.Program
	invocX int
}

// Exclusive implements [ExclusiveEvaluator]. GL calls must happen on the context's goroutine.
func (fc *FragmentCompute) Exclusive() bool { return true }

// Evaluate implements [Fragment].
func (fc *FragmentCompute) Evaluate(uv []ms2.Vec, dst [][4]float32, userData any) error {
	if len(uv) != len(dst) {
		return ErrMismatchBufferLength
	} else if len(uv) == 0 {
		return ErrEmptyBuffers
	} else if fc.prog.ID() == 0 {
		return errors.New("program id is 0, did you create FragmentCompute with NewComputeGPUFragment?")
	}
	fc.prog.Bind()
	defer fc.prog.Unbind()

	var p runtime.Pinner
	var uvSSBO, colorSSBO uint32
	p.Pin(&uvSSBO)
	p.Pin(&colorSSBO)
	defer p.Unpin()

	uvSSBO = loadSSBO(uv, 0, gl.STATIC_DRAW)
	if uvSSBO == 0 {
		return glErrOrMessage("zero SSBO id set by GL during uv loading")
	}
	defer gl.DeleteBuffers(1, &uvSSBO)
	colorSSBO = createSSBO(elemSize[[4]float32]()*len(dst), 1, gl.DYNAMIC_READ)
	if colorSSBO == 0 {
		return glErrOrMessage("zero id SSBO creating color buffer")
	}
	defer gl.DeleteBuffers(1, &colorSSBO)

	nWorkX := (len(dst) + fc.invocX - 1) / fc.invocX
	gl.DispatchCompute(uint32(nWorkX), 1, 1)
	gl.MemoryBarrier(gl.SHADER_STORAGE_BARRIER_BIT)
	err := copySSBO(dst, colorSSBO)
	if err != nil {
		return err
	}
	return glgl.Err()
}

// Delete releases the GL program.
func (fc *FragmentCompute) Delete() {
	fc.prog.Delete()
}

func loadSSBO[T any](slice []T, base, usage uint32) (ssbo uint32) {
	var p runtime.Pinner
	p.Pin(&ssbo)
	gl.GenBuffers(1, &ssbo)
	p.Unpin()
	gl.BindBuffer(gl.SHADER_STORAGE_BUFFER, ssbo)
	size := len(slice) * elemSize[T]()
	gl.BufferData(gl.SHADER_STORAGE_BUFFER, size, unsafe.Pointer(&slice[0]), usage)
	gl.BindBufferBase(gl.SHADER_STORAGE_BUFFER, base, ssbo)
	return ssbo
}

func createSSBO(size int, base, usage uint32) (ssbo uint32) {
	gl.GenBuffers(1, &ssbo)
	gl.BindBuffer(gl.SHADER_STORAGE_BUFFER, ssbo)
	gl.BufferData(gl.SHADER_STORAGE_BUFFER, size, nil, usage)
	gl.BindBufferBase(gl.SHADER_STORAGE_BUFFER, base, ssbo)
	return ssbo
}

func copySSBO[T any](dst []T, ssbo uint32) error {
	singleSize := elemSize[T]()
	bufSize := singleSize * len(dst)
	gl.BindBuffer(gl.SHADER_STORAGE_BUFFER, ssbo)
	ptr := gl.MapBufferRange(gl.SHADER_STORAGE_BUFFER, 0, bufSize, gl.MAP_READ_BIT)
	if ptr == nil {
		return glErrOrMessage("failed to map SSBO buffer during copy")
	}
	defer gl.UnmapBuffer(gl.SHADER_STORAGE_BUFFER)
	gpuBytes := unsafe.Slice((*byte)(ptr), bufSize)
	bufBytes := unsafe.Slice((*byte)(unsafe.Pointer(&dst[0])), bufSize)
	copy(bufBytes, gpuBytes)
	return nil
}

func elemSize[T any]() int {
	var z T
	return int(unsafe.Sizeof(z))
}

func glErrOrMessage(defaultMsg string) (err error) {
	err = glgl.Err()
	if err == nil {
		err = errors.New(defaultMsg)
	} else {
		err = fmt.Errorf("%s: %w", defaultMsg, err)
	}
	return err
}
