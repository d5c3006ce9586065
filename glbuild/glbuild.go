package glbuild

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"reflect"
	"strconv"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/soypat/geometry/ms2"
	"github.com/soypat/geometry/ms3"
)

// Shader stores information for generating GLSL functions and the shader
// objects (uniforms, helper functions) they depend on.
type Shader interface {
	// AppendShaderName appends the name of the GL shader function
	// to the buffer and returns the result. It should be unique to that shader.
	AppendShaderName(b []byte) []byte
	// AppendShaderBody appends the body of the shader function to the
	// buffer and returns the result.
	AppendShaderBody(b []byte) []byte
	// AppendShaderObjects appends the uniforms and helper functions needed to
	// evaluate the shader correctly. See [ShaderObject].
	AppendShaderObjects(objs []ShaderObject) []ShaderObject
}

// Scalar3 generates a scalar field over 3D space:
//
//	float <name>(vec3 p)
type Scalar3 interface {
	Shader
	// ForEachChild iterates over the Scalar3's direct Scalar3 children.
	ForEachChild(userData any, fn func(userData any, s *Scalar3) error) error
}

// Fragment generates a color function over texture coordinates:
//
//	vec4 <name>(vec2 uv)
type Fragment interface {
	Shader
	// ForEachFieldChild iterates over the scalar fields sampled by the Fragment.
	ForEachFieldChild(userData any, fn func(userData any, s *Scalar3) error) error
}

// ShaderObject is a handle to data needed to evaluate a [Shader] correctly.
// A ShaderObject represents one of:
//   - Shader uniform. A single value set by the host, or baked as a constant.
//   - Shader function. A helper GLSL function definition.
type ShaderObject struct {
	// NamePtr is the name of the uniform or function inside the [Shader].
	NamePtr []byte
	// Element is the Go type of the uniform value. Nil for functions.
	Element reflect.Type
	value   any
	// for function shaders.
	funcSource []byte
}

// MakeShaderFunction parses the name of a single GLSL function definition.
func MakeShaderFunction(shaderDef []byte) (sf ShaderObject, err error) {
	shaderDef = bytes.TrimSpace(shaderDef)
	fnNameEnd := bytes.IndexByte(shaderDef, '(')
	fnNameStart := bytes.IndexByte(shaderDef, ' ')
	if fnNameEnd < 0 || fnNameStart < 0 || fnNameStart > fnNameEnd {
		return ShaderObject{}, errors.New("unable to parse function name")
	}
	name := shaderDef[fnNameStart:fnNameEnd]
	name = bytes.TrimSpace(name)
	if len(name) == 0 {
		return ShaderObject{}, errors.New("empty function name")
	}
	sf = ShaderObject{
		NamePtr:    name,
		funcSource: shaderDef,
	}
	return sf, nil
}

// MakeShaderUniform creates a uniform object of the given name. The value's
// type determines the GLSL type and the value is used when uniforms are baked.
func MakeShaderUniform(name string, value any) (ShaderObject, error) {
	obj := ShaderObject{
		NamePtr: []byte(name),
		Element: reflect.TypeOf(value),
		value:   value,
	}
	err := obj.Validate()
	if err != nil {
		return ShaderObject{}, err
	}
	return obj, nil
}

func (obj ShaderObject) IsFunction() bool { return len(obj.funcSource) > 0 }
func (obj ShaderObject) IsUniform() bool  { return !obj.IsFunction() }

// Value returns the uniform value the object was created with.
func (obj ShaderObject) Value() any { return obj.value }

// Validate checks the object has a usable name and, for uniforms, a supported type.
func (obj ShaderObject) Validate() error {
	if len(obj.NamePtr) == 0 {
		return errors.New("shader object requires name")
	}
	for i, c := range obj.NamePtr {
		ok := c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (i > 0 && c >= '0' && c <= '9')
		if !ok {
			return fmt.Errorf("invalid character %q in shader object name %q", c, obj.NamePtr)
		}
	}
	if obj.IsFunction() {
		return nil
	}
	_, err := glTypename(obj.Element)
	return err
}

func glTypename(tp reflect.Type) (typename string, err error) {
	switch tp {
	case reflect.TypeOf(float32(0)):
		typename = "float"
	case reflect.TypeOf(int32(0)):
		typename = "int"
	case reflect.TypeOf(ms2.Vec{}):
		typename = "vec2"
	case reflect.TypeOf(ms3.Vec{}):
		typename = "vec3"
	case reflect.TypeOf([4]float32{}):
		typename = "vec4"
	case reflect.TypeOf(mgl32.Mat4{}):
		typename = "mat4"
	case nil:
		err = errors.New("nil element type")
	default:
		err = fmt.Errorf("equivalent type not implemented for %s", tp.String())
	}
	return typename, err
}

// AppendUniformDecl appends a uniform declaration for obj:
//
//	uniform <type> <name>;
func AppendUniformDecl(dst []byte, obj ShaderObject) ([]byte, error) {
	if obj.IsFunction() {
		return dst, fmt.Errorf("%q is a function, not a uniform", obj.NamePtr)
	}
	typename, err := glTypename(obj.Element)
	if err != nil {
		return dst, fmt.Errorf("typename failed for %q: %w", obj.NamePtr, err)
	}
	dst = append(dst, "uniform "...)
	dst = append(dst, typename...)
	dst = append(dst, ' ')
	dst = append(dst, obj.NamePtr...)
	dst = append(dst, ";\n"...)
	return dst, nil
}

// AppendConstDecl appends obj's value baked into a constant declaration:
//
//	const <type> <name> = <value>;
func AppendConstDecl(dst []byte, obj ShaderObject) ([]byte, error) {
	if obj.IsFunction() {
		return dst, fmt.Errorf("%q is a function, not a uniform", obj.NamePtr)
	}
	dst = append(dst, "const "...)
	switch v := obj.value.(type) {
	case float32:
		dst = AppendFloatDecl(dst, string(obj.NamePtr), v)
	case int32:
		dst = AppendIntDecl(dst, string(obj.NamePtr), int(v))
	case ms2.Vec:
		dst = AppendVec2Decl(dst, string(obj.NamePtr), v)
	case ms3.Vec:
		dst = AppendVec3Decl(dst, string(obj.NamePtr), v)
	case [4]float32:
		dst = AppendVec4Decl(dst, string(obj.NamePtr), v)
	case mgl32.Mat4:
		dst = AppendMat4Decl(dst, string(obj.NamePtr), v)
	default:
		return dst, fmt.Errorf("cannot bake %q of type %T", obj.NamePtr, obj.value)
	}
	return dst, nil
}

// Dialect selects the GLSL flavor of generated vertex and fragment programs.
type Dialect uint8

const (
	// DialectThreeJS is GLSL ES 1.00 as consumed by a three.js ShaderMaterial.
	// Attributes position and uv and the matrix uniforms are declared by three.js.
	DialectThreeJS Dialect = iota
	// DialectWebGL2 is GLSL ES 3.00 for a bare WebGL2 context.
	DialectWebGL2
	// DialectGL330 is desktop OpenGL 3.3 core.
	DialectGL330
)

func (d Dialect) String() string {
	switch d {
	case DialectThreeJS:
		return "threejs"
	case DialectWebGL2:
		return "webgl2"
	case DialectGL330:
		return "gl330"
	}
	return "Dialect(" + strconv.Itoa(int(d)) + ")"
}

// ParseDialect parses the String form of a Dialect.
func ParseDialect(s string) (Dialect, error) {
	for _, d := range [...]Dialect{DialectThreeJS, DialectWebGL2, DialectGL330} {
		if d.String() == s {
			return d, nil
		}
	}
	return 0, fmt.Errorf("unknown GLSL dialect %q", s)
}

func (d Dialect) header() string {
	switch d {
	case DialectWebGL2:
		return "#version 300 es\nprecision highp float;\n"
	case DialectGL330:
		return "#version 330 core\n"
	}
	return "precision highp float;\n"
}

func (d Dialect) legacy() bool { return d == DialectThreeJS }

// Programmer implements shader generation logic for Shader type.
type Programmer struct {
	scratchNodes []Shader
	scratch      []byte
	objsScratch  []ShaderObject
	// names maps shader names to body hashes for checking duplicates.
	names map[uint64]uint64
	// Invocations size in X (local group size) to give each compute work group.
	invocX int
}

const computeVersionStr = "#version 430\n"

// NewDefaultProgrammer returns a Programmer with reasonable default parameters for use with glgl package on the local machine.
func NewDefaultProgrammer() *Programmer {
	return &Programmer{
		scratchNodes: make([]Shader, 0, 8),
		scratch:      make([]byte, 0, 4096),
		names:        make(map[uint64]uint64),
		invocX:       32,
	}
}

// SetComputeInvocations sets the work group local-sizes. x*y*z must be less than maximum number of invocations.
func (p *Programmer) SetComputeInvocations(x, y, z int) {
	if y != 1 || z != 1 {
		panic("unsupported")
	} else if x < 1 {
		panic("zero or negative X invocation size")
	}
	p.invocX = x
}

// ComputeInvocations returns the worker group invocation size in x y and z.
func (p *Programmer) ComputeInvocations() (int, int, int) {
	return p.invocX, 1, 1
}

// WriteVertex writes the pass-through vertex program. It forwards uv to the
// vUv varying and computes projectionMatrix * viewMatrix * modelMatrix * vec4(position,1).
func (p *Programmer) WriteVertex(w io.Writer, d Dialect) (int, error) {
	b := p.scratch[:0]
	if d.legacy() {
		// three.js prepends precision, attributes and matrix uniforms.
		b = append(b, "varying vec2 vUv;\n\nvoid main() {\n"...)
	} else {
		b = append(b, d.header()...)
		b = append(b, `in vec3 position;
in vec2 uv;
uniform mat4 modelMatrix;
uniform mat4 viewMatrix;
uniform mat4 projectionMatrix;
out vec2 vUv;

void main() {
`...)
	}
	b = append(b, "\tvUv = uv;\n\tgl_Position = projectionMatrix * viewMatrix * modelMatrix * vec4(position, 1.0);\n}\n"...)
	p.scratch = b
	return w.Write(b)
}

// WriteFragment writes a complete fragment program for frag in the given
// dialect. Uniforms are declared, not baked, so the host sets them per frame.
// The returned objects are the uniforms and functions found in the shader tree.
func (p *Programmer) WriteFragment(w io.Writer, d Dialect, frag Fragment) (n int, objs []ShaderObject, err error) {
	ngot, err := io.WriteString(w, d.header())
	n += ngot
	if err != nil {
		return n, nil, err
	}
	if d.legacy() {
		ngot, err = io.WriteString(w, "varying vec2 vUv;\n\n")
	} else {
		ngot, err = io.WriteString(w, "in vec2 vUv;\nout vec4 fragColor;\n\n")
	}
	n += ngot
	if err != nil {
		return n, nil, err
	}
	baseName, ngot, objs, err := p.writeFragmentDecl(w, frag, false)
	n += ngot
	if err != nil {
		return n, objs, err
	}
	out := "fragColor"
	if d.legacy() {
		out = "gl_FragColor"
	}
	ngot, err = fmt.Fprintf(w, "\nvoid main() {\n\t%s = %s(vUv);\n}\n", out, baseName)
	n += ngot
	return n, objs, err
}

// WriteProgram writes the vertex and fragment programs for frag in the given dialect.
func (p *Programmer) WriteProgram(vertex, fragment io.Writer, d Dialect, frag Fragment) (objs []ShaderObject, err error) {
	_, err = p.WriteVertex(vertex, d)
	if err != nil {
		return nil, fmt.Errorf("writing vertex program: %w", err)
	}
	_, objs, err = p.WriteFragment(fragment, d, frag)
	if err != nil {
		return objs, fmt.Errorf("writing fragment program: %w", err)
	}
	return objs, nil
}

// WriteComputeFragment creates a compute program that evaluates frag over a
// buffer of texture coordinates. Uniforms are baked into constants.
//
//   - binding 0: vec2 texture coordinates, read.
//   - binding 1: vec4 output colors, written.
func (p *Programmer) WriteComputeFragment(w io.Writer, frag Fragment) (n int, objs []ShaderObject, err error) {
	n, err = io.WriteString(w, "#shader compute\n"+computeVersionStr)
	if err != nil {
		return n, nil, err
	}
	baseName, ngot, objs, err := p.writeFragmentDecl(w, frag, true)
	n += ngot
	if err != nil {
		return n, objs, err
	}
	ngot, err = fmt.Fprintf(w, `
layout(local_size_x = %d, local_size_y = 1, local_size_z = 1) in;

// Input: texture coordinates at which to shade.
layout(std430, binding = 0) buffer UVBuffer {
    vec2 vbo_uv[];
};

// Output: RGBA color for each texture coordinate.
layout(std430, binding = 1) buffer ColorBuffer {
    vec4 vbo_color[];
};

void main() {
	int idx = int( gl_GlobalInvocationID.x );
	if (idx >= vbo_uv.length()) {
		return;
	}
	vbo_color[idx] = %s(vbo_uv[idx]);
}
`, p.invocX, baseName)
	n += ngot
	return n, objs, err
}

// WriteFragmentDecl writes the uniform declarations and function definitions
// of frag's shader tree and returns the top-level function name.
func (p *Programmer) WriteFragmentDecl(w io.Writer, frag Fragment, bakeUniforms bool) (baseName string, n int, objs []ShaderObject, err error) {
	return p.writeFragmentDecl(w, frag, bakeUniforms)
}

func (p *Programmer) writeFragmentDecl(w io.Writer, frag Fragment, bake bool) (baseName string, n int, objs []ShaderObject, err error) {
	baseName, nodes, err := ParseAppendNodes(p.scratchNodes[:0], frag)
	if err != nil {
		return "", 0, nil, err
	}
	p.scratchNodes = nodes[:0]
	n, objs, err = p.writeShaders(w, nodes, bake)
	if err != nil {
		return "", n, objs, err
	}
	return baseName, n, objs, nil
}

func (p *Programmer) writeShaders(w io.Writer, nodes []Shader, bake bool) (n int, objs []ShaderObject, err error) {
	clear(p.names)
	p.scratch = p.scratch[:0]
	p.objsScratch = p.objsScratch[:0]
	var funcs []byte
	objIdx := 0
	for i := len(nodes) - 1; i >= 0; i-- {
		node := nodes[i]
		p.objsScratch = node.AppendShaderObjects(p.objsScratch)
		newObjs := p.objsScratch[objIdx:]
	OBJWRITE:
		for j := range newObjs {
			obj := &newObjs[j]
			if err = obj.Validate(); err != nil {
				return n, nil, fmt.Errorf("%T: %w", node, err)
			}
			nameHash := hash(obj.NamePtr, 0)
			if _, nameConflict := p.names[nameHash]; nameConflict {
				for _, old := range p.objsScratch[:objIdx+j] {
					if !bytes.Equal(old.NamePtr, obj.NamePtr) {
						continue
					}
					if obj.IsFunction() && bytes.Equal(obj.funcSource, old.funcSource) {
						continue OBJWRITE // Identical function already written.
					} else if obj.IsUniform() && old.IsUniform() && obj.Element == old.Element && (!bake || obj.value == old.value) {
						continue OBJWRITE // Same uniform shared by several shaders.
					}
					break
				}
				return n, nil, fmt.Errorf("shader object name conflict: %T has object with conflicting name %q", node, obj.NamePtr)
			}
			p.names[nameHash] = nameHash
			switch {
			case obj.IsFunction():
				funcs = append(funcs, obj.funcSource...)
				funcs = append(funcs, "\n\n"...)
			case bake:
				p.scratch, err = AppendConstDecl(p.scratch, *obj)
			default:
				p.scratch, err = AppendUniformDecl(p.scratch, *obj)
			}
			if err != nil {
				return n, nil, err
			}
		}
		objIdx = len(p.objsScratch)
	}
	if len(p.scratch) > 0 {
		p.scratch = append(p.scratch, '\n')
	}
	p.scratch = append(p.scratch, funcs...)
	ngot, err := w.Write(p.scratch)
	n += ngot
	if err != nil {
		return n, nil, err
	}

	for i := len(nodes) - 1; i >= 0; i-- {
		node := nodes[i]
		var name, body []byte
		p.scratch, name, body = AppendShaderSource(p.scratch[:0], node)
		nameHash := hash(name, 0)
		bodyHash := hash(body, nameHash) // Body hash mixes name as well.
		gotBodyHash, nameConflict := p.names[nameHash]
		if nameConflict {
			if bodyHash == gotBodyHash {
				continue // Shader already written and is identical, skip.
			}
			return n, nil, fmt.Errorf("duplicate %T shader name %q w/ body:\n%s", node, name, body)
		}
		p.names[nameHash] = bodyHash
		ngot, err := w.Write(p.scratch)
		n += ngot
		if err != nil {
			return n, nil, err
		}
	}
	objs = append(objs[:0], p.objsScratch...) // Clone slice and return it.
	return n, objs, nil
}

// ParseAppendNodes parses the shader object tree and appends all nodes in Breadth First order
// to the dst Shader argument buffer and returns the result.
func ParseAppendNodes(dst []Shader, root Shader) (baseName string, nodes []Shader, err error) {
	if root == nil {
		return "", nil, errors.New("nil shader object")
	}
	baseName = string(root.AppendShaderName([]byte{}))
	if baseName == "" {
		return "", nil, errors.New("empty shader name")
	}
	dst, err = AppendAllNodes(dst, root)
	if err != nil {
		return "", nil, err
	}
	return baseName, dst, nil
}

// AppendAllNodes BFS iterates over all of root's descendants and appends all nodes
// found to dst.
//
// To generate shaders one must iterate over nodes in reverse order to ensure
// the first iterated nodes are the nodes with no dependencies on other nodes.
func AppendAllNodes(dst []Shader, root Shader) ([]Shader, error) {
	var userData any
	nilChild := errors.New("got nil child in AppendAllNodes")
	collect := func(userData any, s *Scalar3) error {
		if s == nil || *s == nil {
			return nilChild
		}
		dst = append(dst, *s)
		return nil
	}
	start := len(dst)
	dst = append(dst, root)
	for next := start; next < len(dst); next++ {
		var err error
		switch obj := dst[next].(type) {
		case Fragment:
			if next != start {
				return nil, fmt.Errorf("fragment shader %T must be root of shader tree", obj)
			}
			err = obj.ForEachFieldChild(userData, collect)
		case Scalar3:
			err = obj.ForEachChild(userData, collect)
		default:
			return nil, fmt.Errorf("found shader %T that does not implement Fragment nor Scalar3", obj)
		}
		if err != nil {
			return nil, err
		}
	}
	return dst, nil
}

// AppendShaderSource appends the GL code of a single shader to the dst byte buffer.  If dst's
// capacity is grown during the writing the buffer with augmented capacity is returned. If not the same input dst is returned.
// name and body byte slices pointing to the result buffer are also returned for convenience.
func AppendShaderSource(dst []byte, s Shader) (result, name, body []byte) {
	_, isFrag := s.(Fragment)
	if isFrag {
		dst = append(dst, "vec4 "...)
	} else {
		dst = append(dst, "float "...)
	}
	nameStart := len(dst)
	dst = s.AppendShaderName(dst)
	nameEnd := len(dst)
	if isFrag {
		dst = append(dst, "(vec2 uv) {\n"...)
	} else {
		dst = append(dst, "(vec3 p) {\n"...)
	}
	bodyStart := len(dst)
	dst = s.AppendShaderBody(dst)
	bodyEnd := len(dst)
	dst = append(dst, "\n}\n\n"...)
	return dst, dst[nameStart:nameEnd], dst[bodyStart:bodyEnd]
}

func AppendFloatDecl(b []byte, floatVarname string, v float32) []byte {
	b = append(b, "float "...)
	b = append(b, floatVarname...)
	b = append(b, '=')
	b = AppendFloat(b, '-', '.', v)
	b = append(b, ";\n"...)
	return b
}

func AppendIntDecl(b []byte, intVarname string, v int) []byte {
	b = append(b, "int "...)
	b = append(b, intVarname...)
	b = append(b, '=')
	b = strconv.AppendInt(b, int64(v), 10)
	b = append(b, ";\n"...)
	return b
}

func AppendVec2Decl(b []byte, vec2Varname string, v ms2.Vec) []byte {
	b = append(b, "vec2 "...)
	b = append(b, vec2Varname...)
	b = append(b, "=vec2("...)
	b = AppendFloats(b, ',', '-', '.', v.X, v.Y)
	b = append(b, ");\n"...)
	return b
}

func AppendVec3Decl(b []byte, vec3Varname string, v ms3.Vec) []byte {
	b = append(b, "vec3 "...)
	b = append(b, vec3Varname...)
	b = append(b, "=vec3("...)
	b = AppendFloats(b, ',', '-', '.', v.X, v.Y, v.Z)
	b = append(b, ");\n"...)
	return b
}

func AppendVec4Decl(b []byte, vec4Varname string, v [4]float32) []byte {
	b = append(b, "vec4 "...)
	b = append(b, vec4Varname...)
	b = append(b, "=vec4("...)
	b = AppendFloats(b, ',', '-', '.', v[:]...)
	b = append(b, ");\n"...)
	return b
}

// AppendMat4Decl appends a mat4 declaration. mgl32 matrices are already column major as GLSL expects.
func AppendMat4Decl(b []byte, mat4Varname string, m44 mgl32.Mat4) []byte {
	b = append(b, "mat4 "...)
	b = append(b, mat4Varname...)
	b = append(b, "=mat4("...)
	b = AppendFloats(b, ',', '-', '.', m44[:]...)
	b = append(b, ");\n"...)
	return b
}

const decimalDigits = 9

// AppendFloat appends v formatted as a GLSL float literal. The neg and
// decimal bytes replace the minus sign and decimal point, which lets callers
// build identifiers from values, e.g. AppendFloat(b, 'n', 'p', -1.5) appends "n1p5".
func AppendFloat(b []byte, neg, decimal byte, v float32) []byte {
	start := len(b)
	b = strconv.AppendFloat(b, float64(v), 'f', decimalDigits, 32)
	idx := bytes.IndexByte(b[start:], '.')
	if decimal != '.' && idx >= 0 {
		b[start+idx] = decimal
	}
	if b[start] == '-' {
		b[start] = neg
	}
	// Finally trim zeroes.
	end := len(b)
	for i := len(b) - 1; idx >= 0 && i > idx+start && b[i] == '0'; i-- {
		end--
	}
	return b[:end]
}

func AppendFloats(b []byte, sep, neg, decimal byte, s ...float32) []byte {
	for i, v := range s {
		b = AppendFloat(b, neg, decimal, v)
		if sep != 0 && i != len(s)-1 {
			b = append(b, sep)
		}
	}
	return b
}

func hash(b []byte, in uint64) uint64 {
	x := in
	for len(b) >= 8 {
		x ^= binary.LittleEndian.Uint64(b)
		x = (x ^ (x >> 30)) * 0xbf58476d1ce4e5b9
		x = (x ^ (x >> 27)) * 0x94d049bb133111eb
		x ^= x >> 31
		b = b[8:]
	}
	if len(b) > 0 {
		var buf [8]byte
		copy(buf[:], b)
		x ^= binary.LittleEndian.Uint64(buf[:])
		x = (x ^ (x >> 30)) * 0xbf58476d1ce4e5b9
		x = (x ^ (x >> 27)) * 0x94d049bb133111eb
		x ^= x >> 31
	}
	return x
}
