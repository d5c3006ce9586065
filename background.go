package gshade

import (
	"github.com/soypat/geometry/ms1"
	"github.com/soypat/geometry/ms2"
	"github.com/soypat/geometry/ms3"
	"github.com/soypat/gshade/glbuild"
	"github.com/soypat/gshade/gleval"
)

// AspectCorrect scales uv about the center of the unit square by aspect.
// An aspect of (1,1) leaves uv unchanged.
func AspectCorrect(uv, aspect ms2.Vec) ms2.Vec {
	return ms2.Vec{
		X: (uv.X-0.5)*aspect.X + 0.5,
		Y: (uv.Y-0.5)*aspect.Y + 0.5,
	}
}

// NoiseDomain maps an aspect corrected uv in [0,1] to the noise sampling
// domain [-2.5,2.5] and pans it by offset.
func NoiseDomain(uv, offset ms2.Vec) ms2.Vec {
	return ms2.Vec{
		X: (uv.X*5.0 - 2.5) + offset.X,
		Y: (uv.Y*5.0 - 2.5) + offset.Y,
	}
}

// Distortion returns the noise mask value at a point of the noise domain.
// The animation phase Time*Speed is added to all three sample coordinates.
func (u Uniforms) Distortion(domainUV ms2.Vec) float32 {
	t := u.Time * u.Speed
	p := ms3.Vec{
		X: noiseSampleScale*domainUV.X*u.NoiseDensity + t,
		Y: noiseSampleScale*domainUV.Y*u.NoiseDensity + t,
		Z: t,
	}
	return distortionScale * Noise(p)
}

// Gradient returns the undistorted two color horizontal gradient at a point of the noise domain.
// It saturates to Color1 for x <= -3 and to Color2 for x >= 3.
func (u Uniforms) Gradient(domainUV ms2.Vec) ms3.Vec {
	return mix3(u.Color1, u.Color2, ms1.SmoothStep(-gradientEdge, gradientEdge, domainUV.X))
}

// Shade computes the RGBA color of the background at the interpolated
// texture coordinate uv. Color is not premultiplied by alpha.
func (u Uniforms) Shade(uv ms2.Vec) [4]float32 {
	uv = NoiseDomain(AspectCorrect(uv, u.AspectRatio), u.Offset)
	distortion := u.Distortion(uv)
	color := u.Gradient(uv)
	color = mix3(color, u.Color3, distortion*u.NoiseStrength)
	color = ms3.Scale(u.Brightness*brightnessScale, color)
	return [4]float32{color.X, color.Y, color.Z, u.Alpha}
}

// Background is the per-pixel compositor. It evaluates [Uniforms.Shade] over
// slices of texture coordinates and generates the equivalent GLSL function.
type Background struct {
	Uniforms Uniforms
}

// NewBackground returns a Background with validated uniforms.
func NewBackground(u Uniforms) (*Background, error) {
	err := u.Validate()
	if err != nil {
		return nil, err
	}
	return &Background{Uniforms: u}, nil
}

var (
	_ gleval.Fragment  = (*Background)(nil)
	_ glbuild.Fragment = (*Background)(nil)
)

// Evaluate implements [gleval.Fragment].
func (bg *Background) Evaluate(uv []ms2.Vec, dst [][4]float32, userData any) error {
	if len(uv) != len(dst) {
		return gleval.ErrMismatchBufferLength
	} else if len(uv) == 0 {
		return gleval.ErrEmptyBuffers
	}
	u := bg.Uniforms
	for i, p := range uv {
		dst[i] = u.Shade(p)
	}
	return nil
}

// AppendShaderName implements [glbuild.Shader].
func (bg *Background) AppendShaderName(b []byte) []byte {
	return append(b, "background"...)
}

// AppendShaderBody implements [glbuild.Shader]. The body reads the uniforms
// declared by [Background.AppendShaderObjects] and samples cnoise.
func (bg *Background) AppendShaderBody(b []byte) []byte {
	return append(b, `uv = (uv - 0.5) * uAspectRatio + 0.5;
uv = uv * 5.0 - 2.5;
uv += uOffset;
float t = uTime * uSpeed;
float distortion = 0.75 * cnoise(0.43 * vec3(uv, 0.0) * uNoiseDensity + t);
vec3 color = mix(uColor1, uColor2, smoothstep(-3.0, 3.0, uv.x));
color = mix(color, uColor3, distortion * uNoiseStrength);
color *= uBrightness * 0.8;
return vec4(color, uAlpha);`...)
}

// Uniform names of the background shader as declared in GLSL.
const (
	UniformTime          = "uTime"
	UniformSpeed         = "uSpeed"
	UniformNoiseDensity  = "uNoiseDensity"
	UniformNoiseStrength = "uNoiseStrength"
	UniformBrightness    = "uBrightness"
	UniformColor1        = "uColor1"
	UniformColor2        = "uColor2"
	UniformColor3        = "uColor3"
	UniformAspectRatio   = "uAspectRatio"
	UniformOffset        = "uOffset"
	UniformAlpha         = "uAlpha"
)

// AppendShaderObjects implements [glbuild.Shader]. Uniform values are the
// Background's current Uniforms so a baked program renders the same frame.
func (bg *Background) AppendShaderObjects(objs []glbuild.ShaderObject) []glbuild.ShaderObject {
	u := bg.Uniforms
	return append(objs,
		mustUniform(UniformTime, u.Time),
		mustUniform(UniformSpeed, u.Speed),
		mustUniform(UniformNoiseDensity, u.NoiseDensity),
		mustUniform(UniformNoiseStrength, u.NoiseStrength),
		mustUniform(UniformBrightness, u.Brightness),
		mustUniform(UniformColor1, u.Color1),
		mustUniform(UniformColor2, u.Color2),
		mustUniform(UniformColor3, u.Color3),
		mustUniform(UniformAspectRatio, u.AspectRatio),
		mustUniform(UniformOffset, u.Offset),
		mustUniform(UniformAlpha, u.Alpha),
	)
}

// ForEachFieldChild implements [glbuild.Fragment]. The only field sampled is [NoiseField].
func (bg *Background) ForEachFieldChild(userData any, fn func(userData any, s *glbuild.Scalar3) error) error {
	var noise glbuild.Scalar3 = NoiseField{}
	return fn(userData, &noise)
}

func mustUniform(name string, v any) glbuild.ShaderObject {
	obj, err := glbuild.MakeShaderUniform(name, v)
	if err != nil {
		panic(err)
	}
	return obj
}
