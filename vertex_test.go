package gshade

import (
	"testing"

	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/soypat/geometry/ms2"
	"github.com/soypat/geometry/ms3"
)

func TestIdentityTransformVertex(t *testing.T) {
	tf := IdentityTransform()
	v := Vertex{Position: ms3.Vec{X: 0.25, Y: -0.5, Z: 0.75}, UV: ms2.Vec{X: 0.1, Y: 0.9}}
	clip, uv := tf.Vertex(v)
	want := mgl32.Vec4{0.25, -0.5, 0.75, 1}
	if clip != want {
		t.Errorf("clip %v, want %v", clip, want)
	}
	if uv != v.UV {
		t.Errorf("uv must pass through unchanged, got %v", uv)
	}
}

func TestTransformOrder(t *testing.T) {
	// Model scales, view translates. Projection*View*Model applies scale first.
	tf := Transform{
		Model:      mgl32.Scale3D(2, 2, 2),
		View:       mgl32.Translate3D(1, 0, 0),
		Projection: mgl32.Ident4(),
	}
	clip, _ := tf.Vertex(Vertex{Position: ms3.Vec{X: 1, Y: 1}})
	want := mgl32.Vec4{3, 2, 0, 1}
	if !clip.ApproxEqual(want) {
		t.Errorf("clip %v, want %v", clip, want)
	}
	viaMVP := tf.MVP().Mul4x1(mgl32.Vec4{1, 1, 0, 1})
	if !viaMVP.ApproxEqual(clip) {
		t.Errorf("MVP %v disagrees with Vertex %v", viaMVP, clip)
	}
}

func TestNewPlane(t *testing.T) {
	plane := NewPlane(2, 2)
	if len(plane.Vertices) != 4 || len(plane.Indices) != 6 {
		t.Fatalf("plane has %d vertices and %d indices", len(plane.Vertices), len(plane.Indices))
	}
	tf := IdentityTransform()
	for _, v := range plane.Vertices {
		clip, uv := tf.Vertex(v)
		// Full viewport: NDC corners map to UV corners.
		if math32.Abs(clip.X()) != 1 || math32.Abs(clip.Y()) != 1 {
			t.Errorf("vertex %v not at NDC corner", clip)
		}
		wantUV := ms2.Vec{X: (clip.X() + 1) / 2, Y: (clip.Y() + 1) / 2}
		if uv != wantUV {
			t.Errorf("vertex %v has uv %v, want %v", clip, uv, wantUV)
		}
	}
	// Counter-clockwise winding seen from +Z.
	for i := 0; i < len(plane.Indices); i += 3 {
		a := plane.Vertices[plane.Indices[i]].Position
		b := plane.Vertices[plane.Indices[i+1]].Position
		c := plane.Vertices[plane.Indices[i+2]].Position
		n := ms3.Cross(ms3.Sub(b, a), ms3.Sub(c, a))
		if n.Z <= 0 {
			t.Errorf("triangle %d is not counter-clockwise: normal %v", i/3, n)
		}
	}
}
