package glbuild_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/soypat/geometry/ms2"
	"github.com/soypat/geometry/ms3"
	"github.com/soypat/gshade/glbuild"
)

type testField struct {
	name     string
	body     string
	fn       string
	uniforms []glbuild.ShaderObject
	children []glbuild.Scalar3
}

func (f *testField) AppendShaderName(b []byte) []byte { return append(b, f.name...) }
func (f *testField) AppendShaderBody(b []byte) []byte { return append(b, f.body...) }
func (f *testField) AppendShaderObjects(objs []glbuild.ShaderObject) []glbuild.ShaderObject {
	if f.fn != "" {
		obj, err := glbuild.MakeShaderFunction([]byte(f.fn))
		if err != nil {
			panic(err)
		}
		objs = append(objs, obj)
	}
	return append(objs, f.uniforms...)
}
func (f *testField) ForEachChild(userData any, fn func(userData any, s *glbuild.Scalar3) error) error {
	for i := range f.children {
		err := fn(userData, &f.children[i])
		if err != nil {
			return err
		}
	}
	return nil
}

type testFrag struct {
	fields   []glbuild.Scalar3
	uniforms []glbuild.ShaderObject
}

func (f *testFrag) AppendShaderName(b []byte) []byte { return append(b, "frag"...) }
func (f *testFrag) AppendShaderBody(b []byte) []byte {
	return append(b, "return vec4(a(vec3(uv,0.0)), b(vec3(uv,1.0)), 0.0, 1.0);"...)
}
func (f *testFrag) AppendShaderObjects(objs []glbuild.ShaderObject) []glbuild.ShaderObject {
	return append(objs, f.uniforms...)
}
func (f *testFrag) ForEachFieldChild(userData any, fn func(userData any, s *glbuild.Scalar3) error) error {
	for i := range f.fields {
		err := fn(userData, &f.fields[i])
		if err != nil {
			return err
		}
	}
	return nil
}

const helperFn = "float helper(float x) {\n\treturn x * 2.0;\n}"

func mustUniform(t *testing.T, name string, v any) glbuild.ShaderObject {
	t.Helper()
	obj, err := glbuild.MakeShaderUniform(name, v)
	if err != nil {
		t.Fatal(err)
	}
	return obj
}

func TestShaderNameDeduplication(t *testing.T) {
	// s1 and s2 are identical in name and body but different instances sharing a helper and a uniform.
	scale := mustUniform(t, "uScale", float32(2))
	s1 := &testField{name: "leaf", body: "return helper(p.x) * uScale;", fn: helperFn, uniforms: []glbuild.ShaderObject{scale}}
	s2 := &testField{name: "leaf", body: "return helper(p.x) * uScale;", fn: helperFn, uniforms: []glbuild.ShaderObject{scale}}
	a := &testField{name: "a", body: "return leaf(p);", children: []glbuild.Scalar3{s1}}
	b := &testField{name: "b", body: "return leaf(p) + 1.0;", children: []glbuild.Scalar3{s2}}
	frag := &testFrag{fields: []glbuild.Scalar3{a, b}}

	programmer := glbuild.NewDefaultProgrammer()
	for _, d := range []glbuild.Dialect{glbuild.DialectThreeJS, glbuild.DialectWebGL2, glbuild.DialectGL330} {
		var source bytes.Buffer
		n, objs, err := programmer.WriteFragment(&source, d, frag)
		if err != nil {
			t.Fatal(err)
		} else if n != source.Len() {
			t.Fatal("written length mismatch")
		} else if len(objs) == 0 {
			t.Fatal("expected shader objects")
		}
		src := source.String()
		for _, decl := range []string{"float leaf(vec3 p)", "float helper(float x)", "uniform float uScale;", "vec4 frag(vec2 uv)"} {
			if c := strings.Count(src, decl); c != 1 {
				t.Errorf("%s: want one %q, got %d in\n%s", d, decl, c, src)
			}
		}
		// Dependencies are declared before dependents.
		if !(strings.Index(src, "float helper(") < strings.Index(src, "float leaf(") &&
			strings.Index(src, "float leaf(") < strings.Index(src, "float a(") &&
			strings.Index(src, "float a(") < strings.Index(src, "vec4 frag(")) {
			t.Errorf("%s: bad declaration order\n%s", d, src)
		}
	}
	var source bytes.Buffer
	_, _, err := programmer.WriteComputeFragment(&source, frag)
	if err != nil {
		t.Fatal(err)
	}
	src := source.String()
	if c := strings.Count(src, "const float uScale=2.;"); c != 1 {
		t.Errorf("compute: want one baked uScale, got %d in\n%s", c, src)
	}
	if !strings.Contains(src, "layout(local_size_x = 32, local_size_y = 1, local_size_z = 1) in;") {
		t.Error("compute: missing default local size")
	}
}

func TestShaderNameConflict(t *testing.T) {
	s1 := &testField{name: "leaf", body: "return p.x;"}
	s2 := &testField{name: "leaf", body: "return p.y;"}
	frag := &testFrag{fields: []glbuild.Scalar3{s1, s2}}
	programmer := glbuild.NewDefaultProgrammer()
	_, _, err := programmer.WriteFragment(new(bytes.Buffer), glbuild.DialectGL330, frag)
	if err == nil {
		t.Error("expected error for same name with different body")
	}

	// Same function name with different source.
	f1 := &testField{name: "x1", body: "return helper(p.x);", fn: helperFn}
	f2 := &testField{name: "x2", body: "return helper(p.y);", fn: "float helper(float x) {\n\treturn x;\n}"}
	frag = &testFrag{fields: []glbuild.Scalar3{f1, f2}}
	_, _, err = programmer.WriteFragment(new(bytes.Buffer), glbuild.DialectGL330, frag)
	if err == nil {
		t.Error("expected error for conflicting function definitions")
	}

	// Same uniform name with different types.
	u1 := &testField{name: "u1", body: "return uK;", uniforms: []glbuild.ShaderObject{mustUniform(t, "uK", float32(1))}}
	u2 := &testField{name: "u2", body: "return uK.x;", uniforms: []glbuild.ShaderObject{mustUniform(t, "uK", ms2.Vec{})}}
	frag = &testFrag{fields: []glbuild.Scalar3{u1, u2}}
	_, _, err = programmer.WriteFragment(new(bytes.Buffer), glbuild.DialectGL330, frag)
	if err == nil {
		t.Error("expected error for conflicting uniform types")
	}

	// Baking requires equal values for a shared uniform.
	k1 := &testField{name: "k1", body: "return uK;", uniforms: []glbuild.ShaderObject{mustUniform(t, "uK", float32(1))}}
	k2 := &testField{name: "k2", body: "return uK;", uniforms: []glbuild.ShaderObject{mustUniform(t, "uK", float32(2))}}
	frag = &testFrag{fields: []glbuild.Scalar3{k1, k2}}
	_, _, err = programmer.WriteFragment(new(bytes.Buffer), glbuild.DialectGL330, frag)
	if err != nil {
		t.Errorf("declared uniforms with different values should share declaration: %v", err)
	}
	_, _, err = programmer.WriteComputeFragment(new(bytes.Buffer), frag)
	if err == nil {
		t.Error("expected error baking conflicting uniform values")
	}
}

func TestWriteVertex(t *testing.T) {
	programmer := glbuild.NewDefaultProgrammer()
	const mvp = "gl_Position = projectionMatrix * viewMatrix * modelMatrix * vec4(position, 1.0);"
	for _, test := range []struct {
		d       glbuild.Dialect
		want    []string
		notWant []string
	}{
		{d: glbuild.DialectThreeJS, want: []string{"varying vec2 vUv;", "vUv = uv;", mvp}, notWant: []string{"#version", "in vec3 position;"}},
		{d: glbuild.DialectWebGL2, want: []string{"#version 300 es", "in vec3 position;", "in vec2 uv;", "out vec2 vUv;", "uniform mat4 projectionMatrix;", mvp}},
		{d: glbuild.DialectGL330, want: []string{"#version 330 core", "in vec3 position;", "out vec2 vUv;", mvp}},
	} {
		var buf bytes.Buffer
		n, err := programmer.WriteVertex(&buf, test.d)
		if err != nil {
			t.Fatal(err)
		} else if n != buf.Len() {
			t.Fatal("written length mismatch")
		}
		src := buf.String()
		for _, want := range test.want {
			if !strings.Contains(src, want) {
				t.Errorf("%s: missing %q in\n%s", test.d, want, src)
			}
		}
		for _, notWant := range test.notWant {
			if strings.Contains(src, notWant) {
				t.Errorf("%s: unexpected %q in\n%s", test.d, notWant, src)
			}
		}
	}
}

func TestWriteProgram(t *testing.T) {
	frag := &testFrag{fields: []glbuild.Scalar3{
		&testField{name: "a", body: "return p.x;"},
		&testField{name: "b", body: "return p.y;"},
	}, uniforms: []glbuild.ShaderObject{mustUniform(t, "uColor", ms3.Vec{X: 1})}}
	var vert, fragSrc bytes.Buffer
	objs, err := glbuild.NewDefaultProgrammer().WriteProgram(&vert, &fragSrc, glbuild.DialectWebGL2, frag)
	if err != nil {
		t.Fatal(err)
	}
	if len(objs) != 1 || string(objs[0].NamePtr) != "uColor" {
		t.Errorf("unexpected objects %v", objs)
	}
	if vert.Len() == 0 || !strings.Contains(fragSrc.String(), "uniform vec3 uColor;") {
		t.Errorf("bad program output:\n%s\n%s", vert.String(), fragSrc.String())
	}
}

func TestParseDialect(t *testing.T) {
	for _, d := range []glbuild.Dialect{glbuild.DialectThreeJS, glbuild.DialectWebGL2, glbuild.DialectGL330} {
		got, err := glbuild.ParseDialect(d.String())
		if err != nil || got != d {
			t.Errorf("ParseDialect(%q)=%v,%v", d.String(), got, err)
		}
	}
	if _, err := glbuild.ParseDialect("hlsl"); err == nil {
		t.Error("expected error for unknown dialect")
	}
}

func TestMakeShaderObjects(t *testing.T) {
	fn, err := glbuild.MakeShaderFunction([]byte("  vec3 fade(vec3 t) { return t; }\n"))
	if err != nil {
		t.Fatal(err)
	}
	if string(fn.NamePtr) != "fade" || !fn.IsFunction() || fn.IsUniform() {
		t.Errorf("bad function object %q", fn.NamePtr)
	}
	if _, err := glbuild.MakeShaderFunction([]byte("garbage")); err == nil {
		t.Error("expected error for unparsable function")
	}
	if _, err := glbuild.MakeShaderUniform("uBad", "string values unsupported"); err == nil {
		t.Error("expected error for unsupported uniform type")
	}
	if _, err := glbuild.MakeShaderUniform("1bad", float32(0)); err == nil {
		t.Error("expected error for invalid identifier")
	}
	u := mustUniform(t, "uOffset", ms2.Vec{X: 1, Y: -2})
	decl, err := glbuild.AppendUniformDecl(nil, u)
	if err != nil || string(decl) != "uniform vec2 uOffset;\n" {
		t.Errorf("AppendUniformDecl=%q, %v", decl, err)
	}
	decl, err = glbuild.AppendConstDecl(nil, u)
	if err != nil || string(decl) != "const vec2 uOffset=vec2(1.,-2.);\n" {
		t.Errorf("AppendConstDecl=%q, %v", decl, err)
	}
}

func TestAppendFloat(t *testing.T) {
	tests := []struct {
		v    float32
		neg  byte
		dec  byte
		want string
	}{
		{v: 1, neg: '-', dec: '.', want: "1."},
		{v: -1.5, neg: '-', dec: '.', want: "-1.5"},
		{v: 0.25, neg: '-', dec: '.', want: "0.25"},
		{v: -1.5, neg: 'n', dec: 'p', want: "n1p5"},
		{v: 289, neg: '-', dec: '.', want: "289."},
	}
	for _, test := range tests {
		got := string(glbuild.AppendFloat(nil, test.neg, test.dec, test.v))
		if got != test.want {
			t.Errorf("AppendFloat(%v)=%q, want %q", test.v, got, test.want)
		}
	}
	got := string(glbuild.AppendVec3Decl(nil, "c", ms3.Vec{X: 0.5, Y: 1, Z: 0}))
	if got != "vec3 c=vec3(0.5,1.,0.);\n" {
		t.Errorf("AppendVec3Decl=%q", got)
	}
}
