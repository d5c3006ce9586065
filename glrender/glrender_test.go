package glrender

import (
	"context"
	"errors"
	"image/color"
	"sync/atomic"
	"testing"

	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/soypat/geometry/ms2"
	"github.com/soypat/gshade"
)

// uvFragment writes the texture coordinate into the red and green channels.
type uvFragment struct {
	calls atomic.Int32
}

func (f *uvFragment) Evaluate(uv []ms2.Vec, dst [][4]float32, userData any) error {
	f.calls.Add(1)
	for i, p := range uv {
		dst[i] = [4]float32{p.X, p.Y, 0, 1}
	}
	return nil
}

type exclusiveUV struct{ uvFragment }

func (*exclusiveUV) Exclusive() bool { return true }

func TestImageRendererFullscreenPlane(t *testing.T) {
	ir, err := NewImageRenderer(ImageConfig{Width: 2, Height: 2, Workers: 1})
	if err != nil {
		t.Fatal(err)
	}
	if cov := ir.Coverage(); cov != 1 {
		t.Fatalf("fullscreen plane coverage %v, want 1", cov)
	}
	img, err := ir.Render(context.Background(), &uvFragment{})
	if err != nil {
		t.Fatal(err)
	}
	// Pixel centers map to uv 0.25 and 0.75. Image row 0 is the top (uv.y=0.75).
	tests := []struct {
		x, y int
		want color.NRGBA
	}{
		{x: 0, y: 0, want: color.NRGBA{R: 64, G: 191, A: 255}},
		{x: 1, y: 0, want: color.NRGBA{R: 191, G: 191, A: 255}},
		{x: 0, y: 1, want: color.NRGBA{R: 64, G: 64, A: 255}},
		{x: 1, y: 1, want: color.NRGBA{R: 191, G: 64, A: 255}},
	}
	for _, test := range tests {
		got := img.NRGBAAt(test.x, test.y)
		if !nrgbaClose(got, test.want, 1) {
			t.Errorf("pixel (%d,%d) got %v, want %v", test.x, test.y, got, test.want)
		}
	}
}

func TestImageRendererPerspective(t *testing.T) {
	const size = 8
	tf := gshade.IdentityTransform()
	tf.View = mgl32.Translate3D(0, 0, -2)
	tf.Projection = mgl32.Perspective(math32.Pi/2, 1, 0.1, 10)
	ir, err := NewImageRenderer(ImageConfig{
		Width:     size,
		Height:    size,
		Transform: tf,
		Mesh:      gshade.NewPlane(1, 1),
	})
	if err != nil {
		t.Fatal(err)
	}
	img, err := ir.Render(context.Background(), &uvFragment{})
	if err != nil {
		t.Fatal(err)
	}
	// A unit plane at distance 2 with a 90 degree field of view spans ndc [-0.25,0.25].
	corner := img.NRGBAAt(0, 0)
	if corner.A != 0 {
		t.Errorf("uncovered pixel should be transparent, got %v", corner)
	}
	// Pixel center x=4.5 is ndc 0.125 which is plane x=0.25, uv.x=0.75.
	got := img.NRGBAAt(4, 4)
	want := color.NRGBA{R: 191, G: 64, A: 255}
	if !nrgbaClose(got, want, 1) {
		t.Errorf("center pixel got %v, want %v", got, want)
	}
	if cov := ir.Coverage(); cov <= 0 || cov >= 0.5 {
		t.Errorf("unexpected coverage %v", cov)
	}
}

func TestImageRendererMatchesShade(t *testing.T) {
	u := gshade.DefaultUniforms().AtTime(1.5)
	bg, err := gshade.NewBackground(u)
	if err != nil {
		t.Fatal(err)
	}
	const w, h = 16, 8
	for _, workers := range []int{1, 3} {
		ir, err := NewImageRenderer(ImageConfig{Width: w, Height: h, Workers: workers})
		if err != nil {
			t.Fatal(err)
		}
		img, err := ir.Render(context.Background(), bg)
		if err != nil {
			t.Fatal(err)
		}
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				uv := ms2.Vec{X: (float32(x) + 0.5) / w, Y: 1 - (float32(y)+0.5)/h}
				want := ToNRGBA(u.Shade(uv))
				if got := img.NRGBAAt(x, y); !nrgbaClose(got, want, 1) {
					t.Fatalf("workers=%d pixel (%d,%d) got %v, want %v", workers, x, y, got, want)
				}
			}
		}
	}
}

func TestImageRendererSupersample(t *testing.T) {
	ir, err := NewImageRenderer(ImageConfig{Width: 4, Height: 3, Supersample: 2})
	if err != nil {
		t.Fatal(err)
	}
	img, err := ir.Render(context.Background(), &uvFragment{})
	if err != nil {
		t.Fatal(err)
	}
	if img.Bounds().Dx() != 4 || img.Bounds().Dy() != 3 {
		t.Fatalf("got image size %v", img.Bounds())
	}
	for y := 0; y < 3; y++ {
		for x := 0; x < 4; x++ {
			if a := img.NRGBAAt(x, y).A; a < 250 {
				t.Errorf("pixel (%d,%d) alpha %d, want opaque", x, y, a)
			}
		}
	}
}

func TestImageRendererExclusive(t *testing.T) {
	ir, err := NewImageRenderer(ImageConfig{Width: 4, Height: 4, Workers: 4})
	if err != nil {
		t.Fatal(err)
	}
	frag := &exclusiveUV{}
	_, err = ir.Render(context.Background(), frag)
	if err != nil {
		t.Fatal(err)
	}
	if calls := frag.calls.Load(); calls != 4 {
		t.Errorf("want one evaluation per row, got %d", calls)
	}
}

func TestImageRendererCanceled(t *testing.T) {
	ir, err := NewImageRenderer(ImageConfig{Width: 4, Height: 4})
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = ir.Render(ctx, &uvFragment{})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("want context.Canceled, got %v", err)
	}
}

func TestImageConfigInvalid(t *testing.T) {
	for _, cfg := range []ImageConfig{
		{Width: 0, Height: 1},
		{Width: 1, Height: -1},
		{Width: 1, Height: 1, Workers: -1},
		{Width: 1, Height: 1, Supersample: 9},
		{Width: 1, Height: 1, Mesh: gshade.Mesh{Vertices: make([]gshade.Vertex, 2), Indices: []uint16{0, 1, 2}}},
		{Width: 1, Height: 1, Mesh: gshade.Mesh{Vertices: make([]gshade.Vertex, 3), Indices: []uint16{0, 1}}},
	} {
		_, err := NewImageRenderer(cfg)
		if err == nil {
			t.Errorf("expected error for config %+v", cfg)
		}
	}
}

func TestToNRGBA(t *testing.T) {
	got := ToNRGBA([4]float32{-1, 0.5, 2, math32.NaN()})
	want := color.NRGBA{R: 0, G: 128, B: 255, A: 0}
	if got != want {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestFrames(t *testing.T) {
	n, err := FrameCount(30, 2)
	if err != nil {
		t.Fatal(err)
	} else if n != 60 {
		t.Errorf("want 60 frames, got %d", n)
	}
	n, _ = FrameCount(24, 0.5)
	if n != 12 {
		t.Errorf("want 12 frames, got %d", n)
	}
	if _, err := FrameCount(0, 1); err == nil {
		t.Error("expected error for zero fps")
	}
	if _, err := FrameCount(10, -1); err == nil {
		t.Error("expected error for negative duration")
	}

	u := gshade.DefaultUniforms().AtTime(1)
	var count int
	for i, fu := range Frames(u, 4, 1) {
		want := 1 + float32(i)/4
		if fu.Time != want {
			t.Errorf("frame %d time %v, want %v", i, fu.Time, want)
		}
		if fu.Speed != u.Speed || fu.Color1 != u.Color1 {
			t.Errorf("frame %d altered uniforms other than time", i)
		}
		count++
	}
	if count != 4 {
		t.Errorf("want 4 frames, got %d", count)
	}
	for range Frames(u, 4, 10) {
		break // early stop must not panic.
	}
}

func TestVideoConfigInvalid(t *testing.T) {
	for _, cfg := range []VideoConfig{
		{Width: 0, Height: 2, FPS: 30},
		{Width: 2, Height: 2, FPS: 0},
		{Width: 3, Height: 2, FPS: 30},
	} {
		_, err := NewVideoEncoder("out.mp4", cfg)
		if err == nil {
			t.Errorf("expected error for %+v", cfg)
		}
	}
	_, err := NewVideoEncoder("", VideoConfig{Width: 2, Height: 2, FPS: 1})
	if err == nil {
		t.Error("expected error for empty filename")
	}
}

func TestVideoConfigArgs(t *testing.T) {
	in, out := VideoConfig{Width: 640, Height: 360, FPS: 30, Codec: "libvpx-vp9", PixelFormat: "yuva420p"}.args()
	if in["s"] != "640x360" || in["r"] != "30" || in["pix_fmt"] != "rgba" || in["format"] != "rawvideo" {
		t.Errorf("bad input args %v", in)
	}
	if out["c:v"] != "libvpx-vp9" || out["pix_fmt"] != "yuva420p" {
		t.Errorf("bad output args %v", out)
	}
}

func nrgbaClose(a, b color.NRGBA, tol int) bool {
	d := func(x, y uint8) bool {
		diff := int(x) - int(y)
		return diff <= tol && diff >= -tol
	}
	return d(a.R, b.R) && d(a.G, b.G) && d(a.B, b.B) && d(a.A, b.A)
}
