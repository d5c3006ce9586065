package gshadeaux

import (
	"strconv"
	"strings"

	"github.com/soypat/gshade"
)

// CSSFallback is a static approximation of a preset for hosts without WebGL
// or users preferring reduced motion.
type CSSFallback struct {
	// Background is a CSS linear-gradient through the three preset colors.
	Background string
	// Opacity is the preset brightness clamped to 1.
	Opacity float32
}

// FallbackCSS returns the static CSS fallback of p.
func FallbackCSS(p gshade.Preset) CSSFallback {
	var b strings.Builder
	b.WriteString("linear-gradient(135deg, ")
	for i, c := range [3]gshade.ColorValue{p.Colors.Color1, p.Colors.Color2, p.Colors.Color3} {
		if i > 0 {
			b.WriteString(", ")
		}
		r, g, bl := c.RGB255()
		b.WriteString("rgb(")
		b.WriteString(strconv.Itoa(int(r)))
		b.WriteByte(',')
		b.WriteString(strconv.Itoa(int(g)))
		b.WriteByte(',')
		b.WriteString(strconv.Itoa(int(bl)))
		b.WriteString(") ")
		b.WriteString(strconv.Itoa(50 * i))
		b.WriteByte('%')
	}
	b.WriteByte(')')
	return CSSFallback{
		Background: b.String(),
		Opacity:    min(1, p.Brightness),
	}
}

// String returns the fallback as CSS declarations.
func (f CSSFallback) String() string {
	return "background: " + f.Background + "; opacity: " + strconv.FormatFloat(float64(f.Opacity), 'f', -1, 32) + ";"
}
