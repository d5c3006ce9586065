package gshadeaux

import (
	"context"
	"fmt"
	"sync"

	gst "github.com/richinsley/goshadertranslator"
	"github.com/soypat/gshade"
)

// Target is an output language of [Translate].
type Target int

const (
	TargetGLSL330 Target = iota
	TargetGLSL410
	TargetESSL
)

func (t Target) String() string {
	switch t {
	case TargetGLSL330:
		return "glsl330"
	case TargetGLSL410:
		return "glsl410"
	case TargetESSL:
		return "essl"
	}
	return fmt.Sprintf("Target(%d)", int(t))
}

// ParseTarget parses the names returned by [Target.String].
func ParseTarget(s string) (Target, error) {
	for _, t := range [...]Target{TargetGLSL330, TargetGLSL410, TargetESSL} {
		if t.String() == s {
			return t, nil
		}
	}
	return 0, fmt.Errorf("unknown translation target %q", s)
}

// TranslatedShader is the output of [Translate].
type TranslatedShader struct {
	Code string
	// Uniforms maps declared uniform names to the names in Code.
	Uniforms map[string]string
}

// UniformName returns the translated name of a uniform declared in the source.
// Names the translator did not report are returned unchanged.
func (ts TranslatedShader) UniformName(name string) string {
	if mapped, ok := ts.Uniforms[name]; ok && mapped != "" {
		return mapped
	}
	return name
}

var (
	translatorMu sync.Mutex
	translator   *gst.ShaderTranslator
)

// Translate converts WebGL2 (ESSL 3.00) source of the given stage, "vertex" or
// "fragment", to target. Source written with glbuild.DialectWebGL2 is valid input.
// The translator is created on first use and shared by later calls.
func Translate(ctx context.Context, src, stage string, target Target) (TranslatedShader, error) {
	if stage != "vertex" && stage != "fragment" {
		return TranslatedShader{}, fmt.Errorf("unsupported shader stage %q", stage)
	}
	format := gst.OutputFormatGLSL330
	switch target {
	case TargetGLSL330:
	case TargetGLSL410:
		format = gst.OutputFormatGLSL410
	case TargetESSL:
		format = gst.OutputFormatESSL
	default:
		return TranslatedShader{}, fmt.Errorf("unsupported translation target %v", target)
	}
	translatorMu.Lock()
	defer translatorMu.Unlock()
	if translator == nil {
		t, err := gst.NewShaderTranslator(ctx)
		if err != nil {
			return TranslatedShader{}, fmt.Errorf("starting shader translator: %w", err)
		}
		translator = t
	}
	res, err := translator.TranslateShader(src, stage, gst.ShaderSpecWebGL2, format)
	if err != nil {
		return TranslatedShader{}, fmt.Errorf("translating %s shader to %v: %w", stage, target, err)
	}
	ts := TranslatedShader{
		Code:     res.Code,
		Uniforms: make(map[string]string, len(res.Variables)),
	}
	for name, v := range res.Variables {
		ts.Uniforms[name] = v.MappedName
	}
	gshade.Logger().Debug("translated shader", "stage", stage, "target", target, "variables", len(ts.Uniforms))
	return ts, nil
}
