package gshadeaux

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"math"
	"sync"

	"github.com/golang/freetype/truetype"
	"github.com/soypat/gshade"
	"github.com/soypat/gshade/glrender"
	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/math/fixed"
)

const (
	labelHeight   = 22
	labelFontSize = 13
)

var (
	labelFontOnce sync.Once
	labelFont     *truetype.Font
	labelFontErr  error
)

// SwatchSheet renders one tile per preset, arranged in a grid as square as
// possible. Each tile carries the preset name below it.
func SwatchSheet(ctx context.Context, presets []gshade.Preset, cellW, cellH int) (*image.NRGBA, error) {
	if len(presets) == 0 {
		return nil, errors.New("no presets to render")
	} else if cellW <= 0 || cellH <= 0 {
		return nil, fmt.Errorf("invalid cell size %dx%d", cellW, cellH)
	}
	face, err := newLabelFace()
	if err != nil {
		return nil, err
	}
	defer face.Close()
	cols := int(math.Ceil(math.Sqrt(float64(len(presets)))))
	rows := (len(presets) + cols - 1) / cols
	tileH := cellH + labelHeight
	sheet := image.NewNRGBA(image.Rect(0, 0, cols*cellW, rows*tileH))
	draw.Draw(sheet, sheet.Bounds(), image.White, image.Point{}, draw.Src)

	renderer, err := glrender.NewImageRenderer(glrender.ImageConfig{Width: cellW, Height: cellH})
	if err != nil {
		return nil, err
	}
	aspect := gshade.AspectRatio(cellW, cellH)
	tile := image.NewNRGBA(image.Rect(0, 0, cellW, cellH))
	for i, p := range presets {
		bg, err := gshade.NewBackground(p.Uniforms(aspect))
		if err != nil {
			return nil, fmt.Errorf("preset %q: %w", p.Name, err)
		}
		err = renderer.RenderInto(ctx, bg, tile)
		if err != nil {
			return nil, fmt.Errorf("preset %q: %w", p.Name, err)
		}
		x0, y0 := (i%cols)*cellW, (i/cols)*tileH
		draw.Draw(sheet, image.Rect(x0, y0, x0+cellW, y0+cellH), tile, image.Point{}, draw.Over)
		d := font.Drawer{
			Dst:  sheet,
			Src:  image.NewUniform(color.Black),
			Face: face,
			Dot:  fixed.P(x0+4, y0+cellH+labelHeight-6),
		}
		d.DrawString(p.Name)
	}
	return sheet, nil
}

// WriteSwatchSheet writes the [SwatchSheet] of presets to w as PNG.
func WriteSwatchSheet(ctx context.Context, w io.Writer, presets []gshade.Preset, cellW, cellH int) error {
	sheet, err := SwatchSheet(ctx, presets, cellW, cellH)
	if err != nil {
		return err
	}
	return png.Encode(w, sheet)
}

// BuiltinPresets returns all built-in presets sorted by name.
func BuiltinPresets() []gshade.Preset {
	names := gshade.PresetNames()
	presets := make([]gshade.Preset, len(names))
	for i, name := range names {
		presets[i], _ = gshade.LookupPreset(name)
	}
	return presets
}

func newLabelFace() (font.Face, error) {
	labelFontOnce.Do(func() {
		labelFont, labelFontErr = truetype.Parse(goregular.TTF)
	})
	if labelFontErr != nil {
		return nil, labelFontErr
	}
	return truetype.NewFace(labelFont, &truetype.Options{
		Size:    labelFontSize,
		DPI:     72,
		Hinting: font.HintingFull,
	}), nil
}
