package gshade

import (
	"github.com/go-gl/mathgl/mgl32"
	"github.com/soypat/geometry/ms2"
	"github.com/soypat/geometry/ms3"
)

// Vertex is a per-vertex input of the vertex stage.
type Vertex struct {
	Position ms3.Vec
	UV       ms2.Vec
}

// Transform holds the model, view and projection matrices supplied by the host.
// Matrices are column-major, following the GL convention.
type Transform struct {
	Model      mgl32.Mat4
	View       mgl32.Mat4
	Projection mgl32.Mat4
}

// IdentityTransform returns a Transform that maps model space directly to clip space.
func IdentityTransform() Transform {
	return Transform{
		Model:      mgl32.Ident4(),
		View:       mgl32.Ident4(),
		Projection: mgl32.Ident4(),
	}
}

// MVP returns the combined Projection*View*Model matrix.
func (t Transform) MVP() mgl32.Mat4 {
	return t.Projection.Mul4(t.View).Mul4(t.Model)
}

// Vertex computes the clip space position of v and forwards its texture coordinate unchanged.
func (t Transform) Vertex(v Vertex) (clip mgl32.Vec4, uv ms2.Vec) {
	p := mgl32.Vec4{v.Position.X, v.Position.Y, v.Position.Z, 1}
	return t.Projection.Mul4x1(t.View.Mul4x1(t.Model.Mul4x1(p))), v.UV
}

// Mesh is an indexed triangle list.
type Mesh struct {
	Vertices []Vertex
	// Indices holds three vertex indices per triangle, counter-clockwise.
	Indices []uint16
}

// NewPlane returns a single segment plane of the given size centered at the
// origin on the XY plane, facing +Z. UV (0,0) is the bottom left corner and (1,1) top right.
// NewPlane(2,2) under [IdentityTransform] covers the whole viewport.
func NewPlane(width, height float32) Mesh {
	hw, hh := width/2, height/2
	return Mesh{
		Vertices: []Vertex{
			{Position: ms3.Vec{X: -hw, Y: hh}, UV: ms2.Vec{X: 0, Y: 1}},
			{Position: ms3.Vec{X: hw, Y: hh}, UV: ms2.Vec{X: 1, Y: 1}},
			{Position: ms3.Vec{X: -hw, Y: -hh}, UV: ms2.Vec{X: 0, Y: 0}},
			{Position: ms3.Vec{X: hw, Y: -hh}, UV: ms2.Vec{X: 1, Y: 0}},
		},
		Indices: []uint16{0, 2, 1, 2, 3, 1},
	}
}
