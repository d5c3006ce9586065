// Package glsllib holds GLSL helper functions shared by gshade shaders.
package glsllib

import (
	_ "embed"

	"github.com/soypat/gshade/glbuild"
)

var (
	//go:embed mod289v3.glsl
	mod289v3Src []byte
	//go:embed mod289v4.glsl
	mod289v4Src []byte
	//go:embed permute.glsl
	permuteSrc []byte
	//go:embed taylorinvsqrt.glsl
	taylorInvSqrtSrc []byte
	//go:embed fade.glsl
	fadeSrc []byte
)

// Mod289v3 reduces each component modulo 289 without integer arithmetic:
//
//	vec3 mod289v3(vec3 x)
func Mod289v3() glbuild.ShaderObject {
	return mustFunction(mod289v3Src)
}

// Mod289v4 is the vec4 form of [Mod289v3]:
//
//	vec4 mod289v4(vec4 x)
func Mod289v4() glbuild.ShaderObject {
	return mustFunction(mod289v4Src)
}

// Permute is the polynomial permutation hash mod289((34x+1)x). Requires [Mod289v4]:
//
//	vec4 permute(vec4 x)
func Permute() glbuild.ShaderObject {
	return mustFunction(permuteSrc)
}

// TaylorInvSqrt is a first order approximation of 1/sqrt(r) around r=0.7:
//
//	vec4 taylorInvSqrt(vec4 r)
func TaylorInvSqrt() glbuild.ShaderObject {
	return mustFunction(taylorInvSqrtSrc)
}

// Fade is the quintic interpolation curve 6t⁵-15t⁴+10t³:
//
//	vec3 fade(vec3 t)
func Fade() glbuild.ShaderObject {
	return mustFunction(fadeSrc)
}

// ClassicNoiseDeps returns the functions needed by classic Perlin noise in dependency order.
func ClassicNoiseDeps(dst []glbuild.ShaderObject) []glbuild.ShaderObject {
	return append(dst, Mod289v3(), Mod289v4(), Permute(), TaylorInvSqrt(), Fade())
}

func mustFunction(src []byte) glbuild.ShaderObject {
	obj, err := glbuild.MakeShaderFunction(src)
	if err != nil {
		panic(err)
	}
	return obj
}
