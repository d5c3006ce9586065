package gshade

import (
	"github.com/chewxy/math32"
	"github.com/soypat/geometry/ms3"
	"github.com/soypat/gshade/glbuild"
	"github.com/soypat/gshade/glbuild/glsllib"
	"github.com/soypat/gshade/gleval"
)

// Noise evaluates 3D classic Perlin noise at p. The result is continuous with
// continuous first derivative, exactly zero at integer lattice points and lies
// roughly within [-2.2, 2.2]. The hash is periodic with period 289 on each axis.
//
// The computation follows Stefan Gustavson's GLSL classic noise lane by lane so
// results agree with the GPU version up to float32 rounding.
func Noise(p ms3.Vec) float32 {
	pi0 := ms3.Vec{X: math32.Floor(p.X), Y: math32.Floor(p.Y), Z: math32.Floor(p.Z)}
	pi1 := ms3.Vec{X: pi0.X + 1, Y: pi0.Y + 1, Z: pi0.Z + 1}
	pi0 = mod289Vec(pi0)
	pi1 = mod289Vec(pi1)
	pf0 := ms3.Vec{X: fract(p.X), Y: fract(p.Y), Z: fract(p.Z)}
	pf1 := ms3.Vec{X: pf0.X - 1, Y: pf0.Y - 1, Z: pf0.Z - 1}

	// Lanes are the four xy corners of a z-slab: (0,0), (1,0), (0,1), (1,1).
	ix := [4]float32{pi0.X, pi1.X, pi0.X, pi1.X}
	iy := [4]float32{pi0.Y, pi0.Y, pi1.Y, pi1.Y}
	var ixy0, ixy1 [4]float32
	for i := range ix {
		ixy := permute(permute(ix[i]) + iy[i])
		ixy0[i] = permute(ixy + pi0.Z)
		ixy1[i] = permute(ixy + pi1.Z)
	}
	g0 := gradients(ixy0)
	g1 := gradients(ixy1)

	var n0, n1 [4]float32
	for i := range n0 {
		off := pf0
		if i&1 != 0 {
			off.X = pf1.X
		}
		if i&2 != 0 {
			off.Y = pf1.Y
		}
		n0[i] = dot3(g0[i], off)
		off.Z = pf1.Z
		n1[i] = dot3(g1[i], off)
	}

	fz := fade(pf0.Z)
	var nz [4]float32
	for i := range nz {
		nz[i] = mixf(n0[i], n1[i], fz)
	}
	fy := fade(pf0.Y)
	nyz0 := mixf(nz[0], nz[2], fy)
	nyz1 := mixf(nz[1], nz[3], fy)
	nxyz := mixf(nyz0, nyz1, fade(pf0.X))
	return noiseOutputScale * nxyz
}

// gradients converts four corner hashes to normalized pseudo-random gradients.
func gradients(h [4]float32) (g [4]ms3.Vec) {
	for i, hv := range h {
		gx := hv * (1.0 / 7.0)
		gy := fract(math32.Floor(gx)*(1.0/7.0)) - 0.5
		gx = fract(gx)
		gz := 0.5 - absf(gx) - absf(gy)
		sz := step(gz, 0)
		gx -= sz * (step(0, gx) - 0.5)
		gy -= sz * (step(0, gy) - 0.5)
		v := ms3.Vec{X: gx, Y: gy, Z: gz}
		norm := taylorInvSqrt(dot3(v, v))
		g[i] = ms3.Vec{X: v.X * norm, Y: v.Y * norm, Z: v.Z * norm}
	}
	return g
}

func mod289(x float32) float32 {
	return x - math32.Floor(x*(1.0/hashPeriod))*hashPeriod
}

func mod289Vec(v ms3.Vec) ms3.Vec {
	return ms3.Vec{X: mod289(v.X), Y: mod289(v.Y), Z: mod289(v.Z)}
}

func permute(x float32) float32 {
	return mod289((x*34.0 + 1.0) * x)
}

// taylorInvSqrt approximates 1/sqrt(r) for r near 0.7.
func taylorInvSqrt(r float32) float32 {
	return 1.79284291400159 - 0.85373472095314*r
}

// fade is the smootherstep curve 6t⁵-15t⁴+10t³.
func fade(t float32) float32 {
	return t * t * t * (t*(t*6.0-15.0) + 10.0)
}

// NoiseField is the vectorized form of [Noise]. It has no parameters: the zero
// value is ready to use and emits the GLSL function cnoise.
type NoiseField struct{}

var _ gleval.Field3 = NoiseField{}

// Evaluate implements [gleval.Field3] by storing Noise(pos[i]) in dst[i].
func (NoiseField) Evaluate(pos []ms3.Vec, dst []float32, userData any) error {
	if len(pos) != len(dst) {
		return gleval.ErrMismatchBufferLength
	} else if len(pos) == 0 {
		return gleval.ErrEmptyBuffers
	}
	for i, p := range pos {
		dst[i] = Noise(p)
	}
	return nil
}

var _ glbuild.Scalar3 = NoiseField{}

// AppendShaderName implements [glbuild.Shader].
func (NoiseField) AppendShaderName(b []byte) []byte {
	return append(b, "cnoise"...)
}

// AppendShaderBody implements [glbuild.Shader].
func (NoiseField) AppendShaderBody(b []byte) []byte {
	return append(b, cnoiseBody...)
}

// AppendShaderObjects implements [glbuild.Shader].
func (NoiseField) AppendShaderObjects(objs []glbuild.ShaderObject) []glbuild.ShaderObject {
	return glsllib.ClassicNoiseDeps(objs)
}

// ForEachChild implements [glbuild.Scalar3]. NoiseField is a leaf.
func (NoiseField) ForEachChild(userData any, fn func(userData any, s *glbuild.Scalar3) error) error {
	return nil
}

const cnoiseBody = `vec3 Pi0 = mod289v3(floor(p));
vec3 Pi1 = mod289v3(floor(p) + vec3(1.0));
vec3 Pf0 = fract(p);
vec3 Pf1 = Pf0 - vec3(1.0);
vec4 ix = vec4(Pi0.x, Pi1.x, Pi0.x, Pi1.x);
vec4 iy = vec4(Pi0.yy, Pi1.yy);
vec4 ixy = permute(permute(ix) + iy);
vec4 ixy0 = permute(ixy + Pi0.zzzz);
vec4 ixy1 = permute(ixy + Pi1.zzzz);

vec4 gx0 = ixy0 * (1.0 / 7.0);
vec4 gy0 = fract(floor(gx0) * (1.0 / 7.0)) - 0.5;
gx0 = fract(gx0);
vec4 gz0 = vec4(0.5) - abs(gx0) - abs(gy0);
vec4 sz0 = step(gz0, vec4(0.0));
gx0 -= sz0 * (step(0.0, gx0) - 0.5);
gy0 -= sz0 * (step(0.0, gy0) - 0.5);

vec4 gx1 = ixy1 * (1.0 / 7.0);
vec4 gy1 = fract(floor(gx1) * (1.0 / 7.0)) - 0.5;
gx1 = fract(gx1);
vec4 gz1 = vec4(0.5) - abs(gx1) - abs(gy1);
vec4 sz1 = step(gz1, vec4(0.0));
gx1 -= sz1 * (step(0.0, gx1) - 0.5);
gy1 -= sz1 * (step(0.0, gy1) - 0.5);

vec3 g000 = vec3(gx0.x, gy0.x, gz0.x);
vec3 g100 = vec3(gx0.y, gy0.y, gz0.y);
vec3 g010 = vec3(gx0.z, gy0.z, gz0.z);
vec3 g110 = vec3(gx0.w, gy0.w, gz0.w);
vec3 g001 = vec3(gx1.x, gy1.x, gz1.x);
vec3 g101 = vec3(gx1.y, gy1.y, gz1.y);
vec3 g011 = vec3(gx1.z, gy1.z, gz1.z);
vec3 g111 = vec3(gx1.w, gy1.w, gz1.w);

vec4 norm0 = taylorInvSqrt(vec4(dot(g000, g000), dot(g100, g100), dot(g010, g010), dot(g110, g110)));
g000 *= norm0.x;
g100 *= norm0.y;
g010 *= norm0.z;
g110 *= norm0.w;
vec4 norm1 = taylorInvSqrt(vec4(dot(g001, g001), dot(g101, g101), dot(g011, g011), dot(g111, g111)));
g001 *= norm1.x;
g101 *= norm1.y;
g011 *= norm1.z;
g111 *= norm1.w;

float n000 = dot(g000, Pf0);
float n100 = dot(g100, vec3(Pf1.x, Pf0.yz));
float n010 = dot(g010, vec3(Pf0.x, Pf1.y, Pf0.z));
float n110 = dot(g110, vec3(Pf1.xy, Pf0.z));
float n001 = dot(g001, vec3(Pf0.xy, Pf1.z));
float n101 = dot(g101, vec3(Pf1.x, Pf0.y, Pf1.z));
float n011 = dot(g011, vec3(Pf0.x, Pf1.yz));
float n111 = dot(g111, Pf1);

vec3 fade_xyz = fade(Pf0);
vec4 n_z = mix(vec4(n000, n100, n010, n110), vec4(n001, n101, n011, n111), fade_xyz.z);
vec2 n_yz = mix(n_z.xy, n_z.zw, fade_xyz.y);
float n_xyz = mix(n_yz.x, n_yz.y, fade_xyz.x);
return 2.2 * n_xyz;`
