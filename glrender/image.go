package glrender

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"runtime"
	"time"

	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/soypat/geometry/ms1"
	"github.com/soypat/geometry/ms2"
	"github.com/soypat/gshade"
	"github.com/soypat/gshade/gleval"
	xdraw "golang.org/x/image/draw"
	"golang.org/x/sync/errgroup"
)

// ImageConfig configures an [ImageRenderer].
type ImageConfig struct {
	Width, Height int
	// Workers is the number of goroutines shading row bands.
	// Zero uses runtime.NumCPU(). Exclusive evaluators always use one.
	Workers int
	// Supersample renders at Supersample times the resolution and downscales
	// with Catmull-Rom filtering. Zero or one disables supersampling.
	Supersample int
	// Transform places Mesh in clip space. The zero value is replaced by [gshade.IdentityTransform].
	Transform gshade.Transform
	// Mesh is the geometry rasterized. Empty Mesh is replaced by gshade.NewPlane(2,2),
	// which covers the whole image under the identity transform.
	Mesh gshade.Mesh
	// UserData is passed to all [gleval.Fragment.Evaluate] calls.
	UserData any
}

// ImageRenderer rasterizes a mesh and shades each covered pixel with a [gleval.Fragment].
// Pixels not covered by the mesh stay transparent.
type ImageRenderer struct {
	cfg ImageConfig
	// Rasterized fragment texture coordinates, one per sample. Computed once in NewImageRenderer.
	uv      []ms2.Vec
	covered []bool
	sw, sh  int
}

// NewImageRenderer validates cfg and rasterizes its mesh. The returned renderer
// can render any number of frames of the same geometry.
func NewImageRenderer(cfg ImageConfig) (*ImageRenderer, error) {
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, fmt.Errorf("invalid image size %dx%d", cfg.Width, cfg.Height)
	} else if cfg.Workers < 0 {
		return nil, errors.New("negative worker count")
	} else if cfg.Supersample < 0 || cfg.Supersample > 8 {
		return nil, fmt.Errorf("supersample %d outside [0,8]", cfg.Supersample)
	}
	if cfg.Supersample == 0 {
		cfg.Supersample = 1
	}
	if cfg.Workers == 0 {
		cfg.Workers = runtime.NumCPU()
	}
	if cfg.Transform == (gshade.Transform{}) {
		cfg.Transform = gshade.IdentityTransform()
	}
	if len(cfg.Mesh.Indices) == 0 {
		cfg.Mesh = gshade.NewPlane(2, 2)
	}
	if len(cfg.Mesh.Indices)%3 != 0 {
		return nil, errors.New("mesh indices not a multiple of 3")
	}
	for _, idx := range cfg.Mesh.Indices {
		if int(idx) >= len(cfg.Mesh.Vertices) {
			return nil, fmt.Errorf("mesh index %d out of range of %d vertices", idx, len(cfg.Mesh.Vertices))
		}
	}
	ir := &ImageRenderer{
		cfg: cfg,
		sw:  cfg.Width * cfg.Supersample,
		sh:  cfg.Height * cfg.Supersample,
	}
	ir.uv = make([]ms2.Vec, ir.sw*ir.sh)
	ir.covered = make([]bool, ir.sw*ir.sh)
	ir.rasterize()
	return ir, nil
}

// Coverage returns the fraction of samples covered by the mesh.
func (ir *ImageRenderer) Coverage() float32 {
	n := 0
	for _, c := range ir.covered {
		if c {
			n++
		}
	}
	return float32(n) / float32(len(ir.covered))
}

// Render shades frag into a new image of the configured size.
func (ir *ImageRenderer) Render(ctx context.Context, frag gleval.Fragment) (*image.NRGBA, error) {
	img := image.NewNRGBA(image.Rect(0, 0, ir.cfg.Width, ir.cfg.Height))
	err := ir.RenderInto(ctx, frag, img)
	if err != nil {
		return nil, err
	}
	return img, nil
}

// RenderInto shades frag into dst which must have the configured size.
func (ir *ImageRenderer) RenderInto(ctx context.Context, frag gleval.Fragment, dst *image.NRGBA) error {
	if frag == nil {
		return errors.New("nil fragment")
	}
	bb := dst.Bounds()
	if bb.Dx() != ir.cfg.Width || bb.Dy() != ir.cfg.Height {
		return fmt.Errorf("destination size %dx%d does not match renderer %dx%d", bb.Dx(), bb.Dy(), ir.cfg.Width, ir.cfg.Height)
	}
	start := time.Now()
	target := dst
	if ir.cfg.Supersample > 1 {
		target = image.NewNRGBA(image.Rect(0, 0, ir.sw, ir.sh))
	}
	err := ir.shade(ctx, frag, target)
	if err != nil {
		return err
	}
	if ir.cfg.Supersample > 1 {
		xdraw.CatmullRom.Scale(dst, bb, target, target.Bounds(), xdraw.Src, nil)
	}
	gshade.Logger().Debug("rendered image", "width", ir.cfg.Width, "height", ir.cfg.Height,
		"supersample", ir.cfg.Supersample, "elapsed", time.Since(start))
	return nil
}

func (ir *ImageRenderer) shade(ctx context.Context, frag gleval.Fragment, img *image.NRGBA) error {
	workers := ir.cfg.Workers
	if gleval.IsExclusive(frag) {
		workers = 1
	}
	workers = min(workers, ir.sh)
	rowsPerBand := (ir.sh + workers - 1) / workers
	if workers == 1 {
		return ir.shadeRows(ctx, frag, img, 0, ir.sh)
	}
	g, ctx := errgroup.WithContext(ctx)
	for y0 := 0; y0 < ir.sh; y0 += rowsPerBand {
		y1 := min(y0+rowsPerBand, ir.sh)
		g.Go(func() error {
			return ir.shadeRows(ctx, frag, img, y0, y1)
		})
	}
	return g.Wait()
}

// shadeRows evaluates covered samples of rows [y0,y1) one row per Evaluate call.
func (ir *ImageRenderer) shadeRows(ctx context.Context, frag gleval.Fragment, img *image.NRGBA, y0, y1 int) error {
	uvbuf := make([]ms2.Vec, 0, ir.sw)
	colbuf := make([][4]float32, ir.sw)
	xbuf := make([]int, 0, ir.sw)
	for y := y0; y < y1; y++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		uvbuf = uvbuf[:0]
		xbuf = xbuf[:0]
		row := y * ir.sw
		for x := 0; x < ir.sw; x++ {
			if ir.covered[row+x] {
				uvbuf = append(uvbuf, ir.uv[row+x])
				xbuf = append(xbuf, x)
			}
		}
		if len(uvbuf) == 0 {
			continue
		}
		cols := colbuf[:len(uvbuf)]
		err := frag.Evaluate(uvbuf, cols, ir.cfg.UserData)
		if err != nil {
			return fmt.Errorf("row %d: %w", y, err)
		}
		for i, x := range xbuf {
			img.SetNRGBA(x, y, ToNRGBA(cols[i]))
		}
	}
	return nil
}

// ToNRGBA converts a non-premultiplied float color to 8 bit channels with rounding.
// Channels are clamped to [0,1] and NaN maps to zero.
func ToNRGBA(c [4]float32) color.NRGBA {
	return color.NRGBA{
		R: unorm8(c[0]),
		G: unorm8(c[1]),
		B: unorm8(c[2]),
		A: unorm8(c[3]),
	}
}

func unorm8(v float32) uint8 {
	if math32.IsNaN(v) {
		return 0
	}
	return uint8(ms1.Clamp(v, 0, 1)*255 + 0.5)
}

type screenVertex struct {
	x, y, z float32
	invW    float32
	uv      ms2.Vec
}

// rasterize computes the perspective correct texture coordinate of every
// sample center covered by the mesh. The nearest triangle wins.
func (ir *ImageRenderer) rasterize() {
	depth := make([]float32, len(ir.uv))
	for i := range depth {
		depth[i] = math32.Inf(1)
	}
	proj := ir.cfg.Transform
	mesh := ir.cfg.Mesh
	var tri [3]screenVertex
TRIANGLES:
	for i := 0; i < len(mesh.Indices); i += 3 {
		for j := range tri {
			clip, uv := proj.Vertex(mesh.Vertices[mesh.Indices[i+j]])
			if clip.W() <= 0 {
				// Behind the camera. Near plane clipping is not implemented.
				continue TRIANGLES
			}
			tri[j] = ir.toScreen(clip, uv)
		}
		ir.rasterizeTriangle(tri, depth)
	}
}

func (ir *ImageRenderer) toScreen(clip mgl32.Vec4, uv ms2.Vec) screenVertex {
	invW := 1 / clip.W()
	ndcX, ndcY, ndcZ := clip.X()*invW, clip.Y()*invW, clip.Z()*invW
	return screenVertex{
		x:    (ndcX + 1) * 0.5 * float32(ir.sw),
		y:    (1 - ndcY) * 0.5 * float32(ir.sh), // Image rows grow downward.
		z:    ndcZ,
		invW: invW,
		uv:   uv,
	}
}

func (ir *ImageRenderer) rasterizeTriangle(t [3]screenVertex, depth []float32) {
	area := edge(t[0].x, t[0].y, t[1].x, t[1].y, t[2].x, t[2].y)
	if area == 0 {
		return // Degenerate.
	}
	minX := max(0, int(math32.Floor(min(t[0].x, t[1].x, t[2].x))))
	maxX := min(ir.sw-1, int(math32.Ceil(max(t[0].x, t[1].x, t[2].x))))
	minY := max(0, int(math32.Floor(min(t[0].y, t[1].y, t[2].y))))
	maxY := min(ir.sh-1, int(math32.Ceil(max(t[0].y, t[1].y, t[2].y))))
	invArea := 1 / area
	for y := minY; y <= maxY; y++ {
		py := float32(y) + 0.5
		for x := minX; x <= maxX; x++ {
			px := float32(x) + 0.5
			b0 := edge(t[1].x, t[1].y, t[2].x, t[2].y, px, py) * invArea
			b1 := edge(t[2].x, t[2].y, t[0].x, t[0].y, px, py) * invArea
			b2 := edge(t[0].x, t[0].y, t[1].x, t[1].y, px, py) * invArea
			if b0 < 0 || b1 < 0 || b2 < 0 {
				continue
			}
			z := b0*t[0].z + b1*t[1].z + b2*t[2].z
			idx := y*ir.sw + x
			if z < -1 || z > 1 || z >= depth[idx] {
				continue
			}
			depth[idx] = z
			// Perspective correct interpolation: interpolate attribute/w and 1/w linearly in screen space.
			w0, w1, w2 := b0*t[0].invW, b1*t[1].invW, b2*t[2].invW
			invSum := 1 / (w0 + w1 + w2)
			ir.uv[idx] = ms2.Vec{
				X: (w0*t[0].uv.X + w1*t[1].uv.X + w2*t[2].uv.X) * invSum,
				Y: (w0*t[0].uv.Y + w1*t[1].uv.Y + w2*t[2].uv.Y) * invSum,
			}
			ir.covered[idx] = true
		}
	}
}

// edge is the signed doubled area of triangle (a,b,p).
func edge(ax, ay, bx, by, px, py float32) float32 {
	return (bx-ax)*(py-ay) - (by-ay)*(px-ax)
}
