package gshade

import (
	"strings"
	"testing"

	"github.com/chewxy/math32"
	"github.com/soypat/geometry/ms2"
	"github.com/soypat/geometry/ms3"
	"gopkg.in/yaml.v3"
)

func TestLookupPreset(t *testing.T) {
	for _, name := range PresetNames() {
		p, ok := LookupPreset(name)
		if !ok {
			t.Errorf("preset %q not found", name)
		}
		if err := p.Validate(); err != nil {
			t.Errorf("preset %q invalid: %v", name, err)
		}
	}
	p, ok := LookupPreset("does-not-exist")
	def, _ := LookupPreset(PresetDefault)
	if ok {
		t.Error("unknown preset reported as found")
	}
	if p != def {
		t.Errorf("unknown preset should fall back to default, got %+v", p)
	}
	names := PresetNames()
	want := []string{"default", "energetic", "lavender", "professional", "subtle"}
	if strings.Join(names, ",") != strings.Join(want, ",") {
		t.Errorf("got preset names %v, want %v", names, want)
	}
}

func TestParseColor(t *testing.T) {
	const tol = 1e-6
	tests := []struct {
		s    string
		want ColorValue
	}{
		{s: "#ff0000", want: ColorValue{X: 1}},
		{s: "rgb(0, 255, 0)", want: ColorValue{Y: 1}},
		{s: "blue", want: ColorValue{Z: 1}},
		{s: "#6d00e6", want: ColorValue{X: 109.0 / 255, Z: 230.0 / 255}},
	}
	for _, test := range tests {
		got, err := ParseColor(test.s)
		if err != nil {
			t.Errorf("ParseColor(%q): %v", test.s, err)
			continue
		}
		if !colorClose(got, test.want, tol) {
			t.Errorf("ParseColor(%q)=%v, want %v", test.s, got, test.want)
		}
	}
	if _, err := ParseColor("not-a-color"); err == nil {
		t.Error("expected error for invalid color")
	}
}

func TestColorValueFormat(t *testing.T) {
	c := MustParseColor("#830ed8")
	if hex := c.Hex(); hex != "#830ed8" {
		t.Errorf("Hex()=%q, want #830ed8", hex)
	}
	r, g, b := c.RGB255()
	if r != 0x83 || g != 0x0e || b != 0xd8 {
		t.Errorf("RGB255()=%d,%d,%d", r, g, b)
	}
	// Out of range channels clamp when formatting.
	if hex := (ColorValue{X: 2, Y: -1, Z: 0.5}).Hex(); hex != "#ff0080" {
		t.Errorf("clamped Hex()=%q, want #ff0080", hex)
	}
	lin := ColorValue{X: 1, Y: 0.5, Z: 0}.Linear()
	if lin.X != 1 || lin.Z != 0 || math32.Abs(lin.Y-0.21404) > 1e-4 {
		t.Errorf("Linear()=%v", lin)
	}
}

func TestPresetYAML(t *testing.T) {
	const doc = `
name: Custom
speed: 0.5
noiseDensity: 3
noiseStrength: 0.75
brightness: 1.1
colors:
  color1: "#ff0000"
  color2: [0, 1, 0]
  color3: blue
offset: [0.25, -0.5]
alpha: 0.9
`
	var p Preset
	err := yaml.Unmarshal([]byte(doc), &p)
	if err != nil {
		t.Fatal(err)
	}
	want := Preset{
		Name:          "Custom",
		Speed:         0.5,
		NoiseDensity:  3,
		NoiseStrength: 0.75,
		Brightness:    1.1,
		Colors: Palette{
			Color1: ColorValue{X: 1},
			Color2: ColorValue{Y: 1},
			Color3: ColorValue{Z: 1},
		},
		Offset: [2]float32{0.25, -0.5},
		Alpha:  0.9,
	}
	if p != want {
		t.Errorf("got %+v\nwant %+v", p, want)
	}

	// Round trip through marshal keeps exact float colors.
	out, err := yaml.Marshal(p)
	if err != nil {
		t.Fatal(err)
	}
	var back Preset
	err = yaml.Unmarshal(out, &back)
	if err != nil {
		t.Fatal(err)
	}
	if back != p {
		t.Errorf("round trip mismatch:\n%s\ngot %+v", out, back)
	}
}

func TestColorValueYAMLErrors(t *testing.T) {
	for _, doc := range []string{
		`color1: [1, 0]`,
		`color1: "#zzzzzz"`,
		`color1: {r: 1}`,
	} {
		var palette Palette
		if err := yaml.Unmarshal([]byte(doc), &palette); err == nil {
			t.Errorf("expected error for %q", doc)
		}
	}
}

func TestPresetMerge(t *testing.T) {
	base, _ := LookupPreset(PresetLavender)
	const doc = `
brightness: 1.25
colors:
  color2: "#000000"
offset: [1, 2]
`
	var o PresetOverrides
	err := yaml.Unmarshal([]byte(doc), &o)
	if err != nil {
		t.Fatal(err)
	}
	got := base.Merge(o)
	if got.Brightness != 1.25 {
		t.Errorf("brightness %v, want 1.25", got.Brightness)
	}
	if got.Colors.Color2 != (ColorValue{}) {
		t.Errorf("color2 %v, want black", got.Colors.Color2)
	}
	if got.Colors.Color1 != base.Colors.Color1 || got.Colors.Color3 != base.Colors.Color3 {
		t.Error("merge must keep colors not overridden")
	}
	if got.Offset != [2]float32{1, 2} {
		t.Errorf("offset %v", got.Offset)
	}
	if got.Speed != base.Speed || got.Name != base.Name || got.Alpha != base.Alpha {
		t.Error("merge altered fields not overridden")
	}
	if empty := base.Merge(PresetOverrides{}); empty != base {
		t.Error("empty overrides must leave preset unchanged")
	}
}

func TestPresetUniforms(t *testing.T) {
	p, _ := LookupPreset(PresetEnergetic)
	u := p.Uniforms(AspectRatio(1920, 1080))
	if u.Time != 0 || u.Speed != p.Speed || u.NoiseDensity != p.NoiseDensity ||
		u.NoiseStrength != p.NoiseStrength || u.Brightness != p.Brightness || u.Alpha != p.Alpha {
		t.Errorf("scalar uniforms do not match preset: %+v", u)
	}
	if u.Color1 != ms3.Vec(p.Colors.Color1) || u.Color3 != p.Colors.Color3.Vec() {
		t.Error("colors do not match preset")
	}
	if want := (ms2.Vec{X: 1920.0 / 1080.0, Y: 1}); u.AspectRatio != want {
		t.Errorf("aspect %v, want %v", u.AspectRatio, want)
	}
	if got := AspectRatio(100, 0); got != (ms2.Vec{X: 1, Y: 1}) {
		t.Errorf("zero height aspect %v, want (1,1)", got)
	}
}

func TestPresetValidate(t *testing.T) {
	p, _ := LookupPreset(PresetDefault)
	p.Alpha = 2
	p.Brightness = -1
	p.Colors.Color1.X = 1.5
	err := p.Validate()
	if err == nil {
		t.Fatal("expected error")
	}
	for _, want := range []string{"alpha", "brightness", "color1"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not mention %s", err, want)
		}
	}
}

func TestLinearColors(t *testing.T) {
	p, _ := LookupPreset(PresetProfessional)
	lin := p.LinearColors()
	for i, pair := range [][2]ColorValue{
		{p.Colors.Color1, lin.Colors.Color1},
		{p.Colors.Color2, lin.Colors.Color2},
		{p.Colors.Color3, lin.Colors.Color3},
	} {
		srgb, linear := pair[0], pair[1]
		// Linear values of mid-range sRGB colors are darker.
		if linear.X >= srgb.X || linear.Y >= srgb.Y || linear.Z >= srgb.Z {
			t.Errorf("color%d linear %v not darker than %v", i+1, linear, srgb)
		}
	}
	if lin.Speed != p.Speed {
		t.Error("LinearColors must only touch colors")
	}
}

func colorClose(a, b ColorValue, tol float32) bool {
	return math32.Abs(a.X-b.X) <= tol && math32.Abs(a.Y-b.Y) <= tol && math32.Abs(a.Z-b.Z) <= tol
}
