package gshade

import (
	"errors"
	"fmt"
	"sort"

	"github.com/chewxy/math32"
	"github.com/lucasb-eyer/go-colorful"
	"github.com/mazznoer/csscolorparser"
	"github.com/soypat/geometry/ms2"
	"github.com/soypat/geometry/ms3"
	"gopkg.in/yaml.v3"
)

// ColorValue is an RGB color in [0,1]. In YAML it is either a CSS color
// string such as "#6d00e6", "rgb(109,0,230)" or "rebeccapurple", or a
// sequence of three floats.
type ColorValue ms3.Vec

// ParseColor parses a CSS color string. Alpha is discarded.
func ParseColor(s string) (ColorValue, error) {
	c, err := csscolorparser.Parse(s)
	if err != nil {
		return ColorValue{}, fmt.Errorf("parsing color %q: %w", s, err)
	}
	return ColorValue{X: float32(c.R), Y: float32(c.G), Z: float32(c.B)}, nil
}

// MustParseColor is like [ParseColor] but panics on error.
func MustParseColor(s string) ColorValue {
	c, err := ParseColor(s)
	if err != nil {
		panic(err)
	}
	return c
}

// Vec returns the color as a uniform vector.
func (c ColorValue) Vec() ms3.Vec { return ms3.Vec(c) }

// Hex returns the color formatted as #rrggbb.
func (c ColorValue) Hex() string {
	return c.colorful().Clamped().Hex()
}

// RGB255 returns the color channels scaled to bytes with rounding.
func (c ColorValue) RGB255() (r, g, b uint8) {
	return c.colorful().Clamped().RGB255()
}

// Linear converts the color from sRGB to linear RGB.
func (c ColorValue) Linear() ColorValue {
	r, g, b := c.colorful().LinearRgb()
	return ColorValue{X: float32(r), Y: float32(g), Z: float32(b)}
}

func (c ColorValue) colorful() colorful.Color {
	return colorful.Color{R: float64(c.X), G: float64(c.Y), B: float64(c.Z)}
}

// UnmarshalYAML implements [yaml.Unmarshaler].
func (c *ColorValue) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		got, err := ParseColor(node.Value)
		if err != nil {
			return err
		}
		*c = got
		return nil
	case yaml.SequenceNode:
		var rgb []float32
		err := node.Decode(&rgb)
		if err != nil {
			return err
		}
		if len(rgb) != 3 {
			return fmt.Errorf("line %d: color sequence must have 3 elements, got %d", node.Line, len(rgb))
		}
		*c = ColorValue{X: rgb[0], Y: rgb[1], Z: rgb[2]}
		return nil
	}
	return fmt.Errorf("line %d: color must be a string or a sequence of 3 floats", node.Line)
}

// MarshalYAML implements [yaml.Marshaler]. Colors are written as float triples
// so values round trip without 8 bit quantization.
func (c ColorValue) MarshalYAML() (any, error) {
	node := &yaml.Node{Kind: yaml.SequenceNode, Style: yaml.FlowStyle}
	for _, v := range [3]float32{c.X, c.Y, c.Z} {
		var elem yaml.Node
		err := elem.Encode(v)
		if err != nil {
			return nil, err
		}
		node.Content = append(node.Content, &elem)
	}
	return node, nil
}

// Palette holds the three colors of a preset.
type Palette struct {
	Color1 ColorValue `yaml:"color1"`
	Color2 ColorValue `yaml:"color2"`
	Color3 ColorValue `yaml:"color3"`
}

// Preset is a named gradient configuration. It is the host facing
// configuration from which [Uniforms] are derived.
type Preset struct {
	Name          string     `yaml:"name,omitempty"`
	Speed         float32    `yaml:"speed"`
	NoiseDensity  float32    `yaml:"noiseDensity"`
	NoiseStrength float32    `yaml:"noiseStrength"`
	Brightness    float32    `yaml:"brightness"`
	Colors        Palette    `yaml:"colors"`
	Offset        [2]float32 `yaml:"offset"`
	Alpha         float32    `yaml:"alpha"`
}

// Built-in preset names.
const (
	PresetDefault      = "default"
	PresetLavender     = "lavender"
	PresetProfessional = "professional"
	PresetEnergetic    = "energetic"
	PresetSubtle       = "subtle"
)

var presets = map[string]Preset{
	PresetDefault: {
		Name:          "Default",
		Speed:         0.3,
		NoiseDensity:  2.5,
		NoiseStrength: 0.6,
		Brightness:    1.0,
		Colors: Palette{
			Color1: ColorValue{X: 0.15, Y: 0.25, Z: 0.85},
			Color2: ColorValue{X: 0.85, Y: 0.2, Z: 0.6},
			Color3: ColorValue{X: 0.4, Y: 0.75, Z: 0.9},
		},
		Alpha: 1.0,
	},
	PresetLavender: {
		Name:          "Lavender",
		Speed:         0.3,
		NoiseDensity:  2.5,
		NoiseStrength: 0.6,
		Brightness:    1.0,
		Colors: Palette{
			Color1: MustParseColor("#6d00e6"),
			Color2: MustParseColor("#830ed8"),
			Color3: MustParseColor("#af00e6"),
		},
		Alpha: 1.0,
	},
	PresetProfessional: {
		Name:          "Professional",
		Speed:         0.3,
		NoiseDensity:  2.5,
		NoiseStrength: 0.6,
		Brightness:    1.25,
		Colors: Palette{
			Color1: ColorValue{X: 0.95, Y: 0.85, Z: 0.75},
			Color2: ColorValue{X: 0.85, Y: 0.7, Z: 0.85},
			Color3: ColorValue{X: 0.9, Y: 0.8, Z: 0.7},
		},
		Alpha: 1.0,
	},
	PresetEnergetic: {
		Name:          "Energetic",
		Speed:         0.5,
		NoiseDensity:  3.0,
		NoiseStrength: 0.75,
		Brightness:    1.0,
		Colors: Palette{
			Color1: ColorValue{X: 0.9, Y: 0.2, Z: 0.3},
			Color2: ColorValue{X: 0.3, Y: 0.1, Z: 0.9},
			Color3: ColorValue{X: 0.95, Y: 0.6, Z: 0.1},
		},
		Alpha: 1.0,
	},
	PresetSubtle: {
		Name:          "Subtle",
		Speed:         0.2,
		NoiseDensity:  2.0,
		NoiseStrength: 0.4,
		Brightness:    1.1,
		Colors: Palette{
			Color1: ColorValue{X: 0.85, Y: 0.87, Z: 0.9},
			Color2: ColorValue{X: 0.9, Y: 0.88, Z: 0.92},
			Color3: ColorValue{X: 0.88, Y: 0.9, Z: 0.91},
		},
		Alpha: 1.0,
	},
}

// LookupPreset returns the built-in preset with the given name. Unknown names
// return the default preset and ok=false.
func LookupPreset(name string) (p Preset, ok bool) {
	p, ok = presets[name]
	if !ok {
		return presets[PresetDefault], false
	}
	return p, true
}

// PresetNames returns the names of all built-in presets in sorted order.
func PresetNames() []string {
	names := make([]string, 0, len(presets))
	for name := range presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// PresetOverrides holds optional replacements for preset fields. Nil fields keep the preset value.
type PresetOverrides struct {
	Name          *string     `yaml:"name,omitempty"`
	Speed         *float32    `yaml:"speed,omitempty"`
	NoiseDensity  *float32    `yaml:"noiseDensity,omitempty"`
	NoiseStrength *float32    `yaml:"noiseStrength,omitempty"`
	Brightness    *float32    `yaml:"brightness,omitempty"`
	Colors        *struct {
		Color1 *ColorValue `yaml:"color1,omitempty"`
		Color2 *ColorValue `yaml:"color2,omitempty"`
		Color3 *ColorValue `yaml:"color3,omitempty"`
	} `yaml:"colors,omitempty"`
	Offset *[2]float32 `yaml:"offset,omitempty"`
	Alpha  *float32    `yaml:"alpha,omitempty"`
}

// Merge returns p with the non-nil fields of o applied. Colors merge per key
// so overriding color2 keeps the preset's color1 and color3.
func (p Preset) Merge(o PresetOverrides) Preset {
	setf := func(dst *float32, src *float32) {
		if src != nil {
			*dst = *src
		}
	}
	if o.Name != nil {
		p.Name = *o.Name
	}
	setf(&p.Speed, o.Speed)
	setf(&p.NoiseDensity, o.NoiseDensity)
	setf(&p.NoiseStrength, o.NoiseStrength)
	setf(&p.Brightness, o.Brightness)
	setf(&p.Alpha, o.Alpha)
	if o.Offset != nil {
		p.Offset = *o.Offset
	}
	if o.Colors != nil {
		if o.Colors.Color1 != nil {
			p.Colors.Color1 = *o.Colors.Color1
		}
		if o.Colors.Color2 != nil {
			p.Colors.Color2 = *o.Colors.Color2
		}
		if o.Colors.Color3 != nil {
			p.Colors.Color3 = *o.Colors.Color3
		}
	}
	return p
}

// LinearColors returns p with its palette converted from sRGB to linear RGB.
func (p Preset) LinearColors() Preset {
	p.Colors.Color1 = p.Colors.Color1.Linear()
	p.Colors.Color2 = p.Colors.Color2.Linear()
	p.Colors.Color3 = p.Colors.Color3.Linear()
	return p
}

// Uniforms returns the shader uniforms for p at time zero.
func (p Preset) Uniforms(aspect ms2.Vec) Uniforms {
	return Uniforms{
		Speed:         p.Speed,
		NoiseDensity:  p.NoiseDensity,
		NoiseStrength: p.NoiseStrength,
		Brightness:    p.Brightness,
		Alpha:         p.Alpha,
		Color1:        p.Colors.Color1.Vec(),
		Color2:        p.Colors.Color2.Vec(),
		Color3:        p.Colors.Color3.Vec(),
		AspectRatio:   aspect,
		Offset:        ms2.Vec{X: p.Offset[0], Y: p.Offset[1]},
	}
}

// Validate reports out of range preset values.
func (p Preset) Validate() error {
	var errs []error
	if p.Alpha < 0 || p.Alpha > 1 {
		errs = append(errs, fmt.Errorf("alpha %v outside [0,1]", p.Alpha))
	}
	if p.Brightness < 0 {
		errs = append(errs, errors.New("negative brightness"))
	}
	if p.NoiseDensity < 0 {
		errs = append(errs, errors.New("negative noise density"))
	}
	for i, c := range [3]ColorValue{p.Colors.Color1, p.Colors.Color2, p.Colors.Color3} {
		for _, v := range [3]float32{c.X, c.Y, c.Z} {
			if math32.IsNaN(v) || v < 0 || v > 1 {
				errs = append(errs, fmt.Errorf("color%d channel %v outside [0,1]", i+1, v))
				break
			}
		}
	}
	err := p.Uniforms(ms2.Vec{X: 1, Y: 1}).Validate()
	if err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
