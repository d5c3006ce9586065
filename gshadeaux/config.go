package gshadeaux

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/soypat/gshade"
	"gopkg.in/yaml.v3"
)

// RenderConfig configures the rendering helpers of this package. It is
// usually loaded from a YAML file with [LoadConfig]:
//
//	preset: lavender
//	overrides:
//	  brightness: 1.25
//	  colors:
//	    color2: "#ff8800"
//	width: 1280
//	height: 720
//	fps: 30
//	duration: 4
type RenderConfig struct {
	// Preset is the built-in preset name. Unknown names fall back to the default preset.
	Preset string `yaml:"preset"`
	// Overrides replace individual preset fields.
	Overrides gshade.PresetOverrides `yaml:"overrides"`
	Width     int                    `yaml:"width"`
	Height    int                    `yaml:"height"`
	// Time is the animation time in seconds of still images and the first video frame.
	Time float32 `yaml:"time"`
	// FPS and Duration in seconds control video output.
	FPS      int     `yaml:"fps"`
	Duration float32 `yaml:"duration"`
	// Workers and Supersample are passed to [glrender.ImageConfig].
	Workers     int `yaml:"workers"`
	Supersample int `yaml:"supersample"`
	// UseGPU evaluates the background with a compute shader. Requires CGo.
	UseGPU bool `yaml:"gpu"`
	// LinearColors converts preset colors from sRGB to linear before shading.
	LinearColors bool `yaml:"linearColors"`
	// Video encoder options, see [glrender.VideoConfig].
	Codec       string `yaml:"codec"`
	PixelFormat string `yaml:"pixelFormat"`
	FFmpegPath  string `yaml:"ffmpegPath"`
}

// DefaultRenderConfig returns a 1280x720 configuration of the default preset.
func DefaultRenderConfig() RenderConfig {
	return RenderConfig{
		Preset:   gshade.PresetDefault,
		Width:    1280,
		Height:   720,
		FPS:      30,
		Duration: 4,
	}
}

// LoadConfig reads a YAML render configuration from filename. Fields absent
// from the file keep their [DefaultRenderConfig] value.
func LoadConfig(filename string) (RenderConfig, error) {
	fp, err := os.Open(filename)
	if err != nil {
		return RenderConfig{}, err
	}
	defer fp.Close()
	cfg, err := DecodeConfig(fp)
	if err != nil {
		return RenderConfig{}, fmt.Errorf("%s: %w", filename, err)
	}
	return cfg, nil
}

// DecodeConfig decodes a YAML render configuration. Unknown fields are an error.
func DecodeConfig(r io.Reader) (RenderConfig, error) {
	cfg := DefaultRenderConfig()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	err := dec.Decode(&cfg)
	if err != nil && !errors.Is(err, io.EOF) {
		return RenderConfig{}, err
	}
	return cfg, cfg.Validate()
}

// EncodeConfig writes cfg as YAML.
func EncodeConfig(w io.Writer, cfg RenderConfig) error {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	err := enc.Encode(cfg)
	if err != nil {
		return err
	}
	err = enc.Close()
	if err != nil {
		return err
	}
	_, err = w.Write(buf.Bytes())
	return err
}

// Validate checks sizes and rates.
func (cfg RenderConfig) Validate() error {
	var errs []error
	if cfg.Width <= 0 || cfg.Height <= 0 {
		errs = append(errs, fmt.Errorf("invalid size %dx%d", cfg.Width, cfg.Height))
	}
	if cfg.FPS <= 0 {
		errs = append(errs, errors.New("fps must be positive"))
	}
	if cfg.Duration < 0 {
		errs = append(errs, errors.New("negative duration"))
	}
	if cfg.Workers < 0 || cfg.Supersample < 0 {
		errs = append(errs, errors.New("negative workers or supersample"))
	}
	return errors.Join(errs...)
}

// ResolvePreset looks up the configured preset and applies overrides.
// An unknown preset name logs a warning and uses the default preset.
func (cfg RenderConfig) ResolvePreset() (gshade.Preset, error) {
	p, ok := gshade.LookupPreset(cfg.Preset)
	if !ok && cfg.Preset != "" {
		gshade.Logger().Warn("unknown preset, using default", "preset", cfg.Preset)
	}
	p = p.Merge(cfg.Overrides)
	err := p.Validate()
	if err != nil {
		return gshade.Preset{}, fmt.Errorf("preset %q: %w", p.Name, err)
	}
	if cfg.LinearColors {
		p = p.LinearColors()
	}
	return p, nil
}

// Uniforms returns the uniforms of the resolved preset for the configured size and time.
func (cfg RenderConfig) Uniforms() (gshade.Uniforms, error) {
	p, err := cfg.ResolvePreset()
	if err != nil {
		return gshade.Uniforms{}, err
	}
	return p.Uniforms(gshade.AspectRatio(cfg.Width, cfg.Height)).AtTime(cfg.Time), nil
}
