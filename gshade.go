// Package gshade implements an animated noise-distorted gradient background.
//
// The same kernel can be evaluated on the CPU through the [gleval] interfaces
// or emitted as GLSL through [glbuild] for a GPU host. The CPU path reproduces
// the GPU output up to float32 rounding.
package gshade

import (
	"errors"
	"fmt"

	"github.com/chewxy/math32"
	"github.com/soypat/geometry/ms2"
	"github.com/soypat/geometry/ms3"
)

const (
	// noiseOutputScale is the empirical output scaling applied to the classic Perlin result.
	noiseOutputScale = 2.2
	// noiseSampleScale scales the noise domain coordinate before density.
	noiseSampleScale = 0.43
	// distortionScale scales the raw noise value into the distortion mask.
	distortionScale = 0.75
	// brightnessScale is the fixed factor applied after uBrightness.
	brightnessScale = 0.8
	// gradientEdge is the half width of the horizontal gradient in noise domain units.
	gradientEdge = 3.0
	// hashPeriod is the period of the permutation hash domain.
	hashPeriod = 289.0
)

// Uniforms is the read-only configuration shared by every invocation of the
// background shader. It mirrors the uniform block of the GLSL program.
type Uniforms struct {
	// Time is seconds elapsed, uTime.
	Time float32
	// Speed scales Time into the animation phase, uSpeed.
	Speed float32
	// NoiseDensity scales the noise sampling coordinate, uNoiseDensity.
	NoiseDensity float32
	// NoiseStrength scales the distortion mask toward Color3, uNoiseStrength.
	NoiseStrength float32
	// Brightness multiplies the final color, uBrightness. 1 in dark mode, 1.25 in light mode.
	Brightness float32
	// Alpha is written unmodified to the output alpha channel, uAlpha.
	Alpha float32
	// Color1 and Color2 are the left and right ends of the horizontal gradient.
	Color1, Color2 ms3.Vec
	// Color3 is the color the distortion mask blends toward.
	Color3 ms3.Vec
	// AspectRatio corrects the UV square to the viewport, usually (width/height, 1).
	AspectRatio ms2.Vec
	// Offset pans the noise domain.
	Offset ms2.Vec
}

// DefaultUniforms returns the uniforms of the default preset with a square aspect ratio at time zero.
func DefaultUniforms() Uniforms {
	p, _ := LookupPreset(PresetDefault)
	return p.Uniforms(ms2.Vec{X: 1, Y: 1})
}

// AtTime returns a copy of u with Time set to t.
func (u Uniforms) AtTime(t float32) Uniforms {
	u.Time = t
	return u
}

// Validate checks all uniform values are finite. All shading functions are
// total over finite inputs so this is the only failure mode of the kernel.
func (u Uniforms) Validate() error {
	var errs []error
	check := func(name string, v float32) {
		if math32.IsNaN(v) || math32.IsInf(v, 0) {
			errs = append(errs, fmt.Errorf("uniform %s is not finite: %v", name, v))
		}
	}
	check("uTime", u.Time)
	check("uSpeed", u.Speed)
	check("uNoiseDensity", u.NoiseDensity)
	check("uNoiseStrength", u.NoiseStrength)
	check("uBrightness", u.Brightness)
	check("uAlpha", u.Alpha)
	for i, c := range [3]ms3.Vec{u.Color1, u.Color2, u.Color3} {
		name := fmt.Sprintf("uColor%d", i+1)
		check(name+".r", c.X)
		check(name+".g", c.Y)
		check(name+".b", c.Z)
	}
	check("uAspectRatio.x", u.AspectRatio.X)
	check("uAspectRatio.y", u.AspectRatio.Y)
	check("uOffset.x", u.Offset.X)
	check("uOffset.y", u.Offset.Y)
	return errors.Join(errs...)
}

// AspectRatio returns the aspect ratio uniform for a viewport of the given size.
func AspectRatio(width, height int) ms2.Vec {
	if height <= 0 {
		return ms2.Vec{X: 1, Y: 1}
	}
	return ms2.Vec{X: float32(width) / float32(height), Y: 1}
}

func fract(x float32) float32 {
	return x - math32.Floor(x)
}

// step is GLSL's step: 0 if x < edge, else 1.
func step(edge, x float32) float32 {
	if x < edge {
		return 0
	}
	return 1
}

func mixf(x, y, a float32) float32 {
	return x*(1-a) + y*a
}

func mix3(x, y ms3.Vec, a float32) ms3.Vec {
	return ms3.Vec{
		X: mixf(x.X, y.X, a),
		Y: mixf(x.Y, y.Y, a),
		Z: mixf(x.Z, y.Z, a),
	}
}

// dot3 keeps GLSL's summation order so CPU and GPU agree on rounding.
func dot3(a, b ms3.Vec) float32 {
	return a.X*b.X + a.Y*b.Y + a.Z*b.Z
}

func absf(a float32) float32 {
	return math32.Abs(a)
}
