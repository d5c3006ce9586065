//go:build !tinygo && cgo

package gshadeaux

import (
	"bytes"
	"fmt"
	"time"

	"github.com/go-gl/gl/v4.6-core/gl"
	"github.com/go-gl/glfw/v3.3/glfw"
	"github.com/soypat/glgl/v4.6-core/glgl"
	"github.com/soypat/gshade"
	"github.com/soypat/gshade/glbuild"
)

func ui(bg *gshade.Background, cfg PreviewConfig) error {
	window, term, err := startGLFW(cfg.Width, cfg.Height, cfg.Title)
	if err != nil {
		return err
	}
	defer term()
	vertexSrc, fragSrc, rename, err := previewSources(bg, cfg)
	if err != nil {
		return err
	}
	prog, err := glgl.CompileProgram(glgl.ShaderSource{
		Vertex:   vertexSrc + "\x00",
		Fragment: fragSrc + "\x00",
	})
	if err != nil {
		return fmt.Errorf("%s\n\n%w", fragSrc, err)
	}
	defer prog.Delete()
	prog.Bind()

	// Interleaved position (xyz) and uv of the full viewport plane.
	plane := gshade.NewPlane(2, 2)
	vertices := make([]float32, 0, 5*len(plane.Vertices))
	for _, v := range plane.Vertices {
		vertices = append(vertices, v.Position.X, v.Position.Y, v.Position.Z, v.UV.X, v.UV.Y)
	}
	var vao, vbo, ebo uint32
	gl.GenVertexArrays(1, &vao)
	gl.BindVertexArray(vao)
	gl.GenBuffers(1, &vbo)
	gl.BindBuffer(gl.ARRAY_BUFFER, vbo)
	gl.BufferData(gl.ARRAY_BUFFER, 4*len(vertices), gl.Ptr(vertices), gl.STATIC_DRAW)
	gl.GenBuffers(1, &ebo)
	gl.BindBuffer(gl.ELEMENT_ARRAY_BUFFER, ebo)
	gl.BufferData(gl.ELEMENT_ARRAY_BUFFER, 2*len(plane.Indices), gl.Ptr(plane.Indices), gl.STATIC_DRAW)
	defer func() {
		gl.DeleteBuffers(1, &ebo)
		gl.DeleteBuffers(1, &vbo)
		gl.DeleteVertexArrays(1, &vao)
	}()

	const stride = 5 * 4
	posAttrib, err := prog.AttribLocation(rename("position") + "\x00")
	if err != nil {
		return err
	}
	gl.EnableVertexAttribArray(posAttrib)
	gl.VertexAttribPointer(posAttrib, 3, gl.FLOAT, false, stride, gl.PtrOffset(0))
	uvAttrib, err := prog.AttribLocation(rename("uv") + "\x00")
	if err != nil {
		return err
	}
	gl.EnableVertexAttribArray(uvAttrib)
	gl.VertexAttribPointer(uvAttrib, 2, gl.FLOAT, false, stride, gl.PtrOffset(3*4))

	loc := make(map[string]int32)
	for _, name := range []string{
		"modelMatrix", "viewMatrix", "projectionMatrix",
		gshade.UniformTime, gshade.UniformSpeed, gshade.UniformNoiseDensity,
		gshade.UniformNoiseStrength, gshade.UniformBrightness, gshade.UniformColor1,
		gshade.UniformColor2, gshade.UniformColor3, gshade.UniformAspectRatio,
		gshade.UniformOffset, gshade.UniformAlpha,
	} {
		loc[name], err = prog.UniformLocation(rename(name) + "\x00")
		if err != nil {
			return fmt.Errorf("uniform %s: %w", name, err)
		}
	}
	tf := gshade.IdentityTransform()
	gl.UniformMatrix4fv(loc["modelMatrix"], 1, false, &tf.Model[0])
	gl.UniformMatrix4fv(loc["viewMatrix"], 1, false, &tf.View[0])
	gl.UniformMatrix4fv(loc["projectionMatrix"], 1, false, &tf.Projection[0])

	u := bg.Uniforms
	startTime := u.Time
	ctx := cfg.Context
	log := gshade.Logger()
	frames := 0
	glfw.SetTime(0)
	for !window.ShouldClose() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		width, height := window.GetFramebufferSize()
		gl.Viewport(0, 0, int32(width), int32(height))
		gl.ClearColor(0, 0, 0, 1)
		gl.Clear(gl.COLOR_BUFFER_BIT)

		u.Time = startTime + float32(glfw.GetTime())
		u.AspectRatio = gshade.AspectRatio(width, height)
		prog.Bind()
		gl.Uniform1f(loc[gshade.UniformTime], u.Time)
		gl.Uniform1f(loc[gshade.UniformSpeed], u.Speed)
		gl.Uniform1f(loc[gshade.UniformNoiseDensity], u.NoiseDensity)
		gl.Uniform1f(loc[gshade.UniformNoiseStrength], u.NoiseStrength)
		gl.Uniform1f(loc[gshade.UniformBrightness], u.Brightness)
		gl.Uniform3f(loc[gshade.UniformColor1], u.Color1.X, u.Color1.Y, u.Color1.Z)
		gl.Uniform3f(loc[gshade.UniformColor2], u.Color2.X, u.Color2.Y, u.Color2.Z)
		gl.Uniform3f(loc[gshade.UniformColor3], u.Color3.X, u.Color3.Y, u.Color3.Z)
		gl.Uniform2f(loc[gshade.UniformAspectRatio], u.AspectRatio.X, u.AspectRatio.Y)
		gl.Uniform2f(loc[gshade.UniformOffset], u.Offset.X, u.Offset.Y)
		gl.Uniform1f(loc[gshade.UniformAlpha], u.Alpha)

		gl.BindVertexArray(vao)
		gl.DrawElements(gl.TRIANGLES, int32(len(plane.Indices)), gl.UNSIGNED_SHORT, gl.PtrOffset(0))
		window.SwapBuffers()
		glfw.PollEvents()
		frames++
		time.Sleep(time.Second / 60)
	}
	log.Info("preview closed", "frames", frames, "elapsed", time.Duration(glfw.GetTime()*float64(time.Second)))
	return nil
}

// previewSources returns the vertex and fragment program of bg and the
// function mapping declared names to the names in the programs.
func previewSources(bg *gshade.Background, cfg PreviewConfig) (vertex, fragment string, rename func(string) string, err error) {
	var vbuf, fbuf bytes.Buffer
	programmer := glbuild.NewDefaultProgrammer()
	dialect := glbuild.DialectGL330
	if cfg.Translate {
		dialect = glbuild.DialectWebGL2
	}
	_, err = programmer.WriteProgram(&vbuf, &fbuf, dialect, bg)
	if err != nil {
		return "", "", nil, err
	}
	if !cfg.Translate {
		return vbuf.String(), fbuf.String(), func(s string) string { return s }, nil
	}
	vts, err := Translate(cfg.Context, vbuf.String(), "vertex", TargetGLSL410)
	if err != nil {
		return "", "", nil, err
	}
	fts, err := Translate(cfg.Context, fbuf.String(), "fragment", TargetGLSL410)
	if err != nil {
		return "", "", nil, err
	}
	rename = func(name string) string {
		if _, ok := fts.Uniforms[name]; ok {
			return fts.UniformName(name)
		}
		return vts.UniformName(name)
	}
	return vts.Code, fts.Code, rename, nil
}

func startGLFW(width, height int, title string) (window *glfw.Window, term func(), err error) {
	err = glfw.Init()
	if err != nil {
		return nil, nil, fmt.Errorf("initializing GLFW: %w", err)
	}
	glfw.WindowHint(glfw.ContextVersionMajor, 4)
	glfw.WindowHint(glfw.ContextVersionMinor, 6)
	glfw.WindowHint(glfw.OpenGLProfile, glfw.OpenGLCoreProfile)
	glfw.WindowHint(glfw.Resizable, glfw.True)

	window, err = glfw.CreateWindow(width, height, title, nil, nil)
	if err != nil {
		glfw.Terminate()
		return nil, nil, fmt.Errorf("creating GLFW window: %w", err)
	}
	window.MakeContextCurrent()
	err = gl.Init()
	if err != nil {
		glfw.Terminate()
		return nil, nil, fmt.Errorf("initializing OpenGL: %w", err)
	}
	return window, glfw.Terminate, nil
}
