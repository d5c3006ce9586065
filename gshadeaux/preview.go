package gshadeaux

import (
	"context"
	"errors"

	"github.com/soypat/gshade"
)

// PreviewConfig configures [Preview].
type PreviewConfig struct {
	Width, Height int
	// Title of the window. Defaults to "gshade".
	Title string
	// Translate compiles the WebGL2 program through [Translate] instead of
	// the desktop GLSL 3.30 program generated directly.
	Translate bool
	// Context ends the preview when done. The preview also ends when the window is closed.
	Context context.Context
}

// Preview opens a window animating bg in real time. uTime advances with the
// wall clock starting at bg.Uniforms.Time and the aspect ratio follows the
// window size. Preview must be called from the main goroutine and requires CGo.
func Preview(bg *gshade.Background, cfg PreviewConfig) error {
	if bg == nil {
		return errors.New("nil background")
	} else if cfg.Width <= 0 || cfg.Height <= 0 {
		return errors.New("invalid preview window size")
	}
	if cfg.Title == "" {
		cfg.Title = "gshade"
	}
	if cfg.Context == nil {
		cfg.Context = context.Background()
	}
	return ui(bg, cfg)
}
