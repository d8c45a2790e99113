package imaging

import (
	"fmt"
	"image/color"

	"github.com/lucasb-eyer/go-colorful"
)

// Palette holds the overlay colors used when rendering wall visualizations.
type Palette struct {
	// SegmentFill tints wall masks in the segmentation overlay.
	SegmentFill colorful.Color

	// MeasureFill tints wall masks in the measurement overlay.
	MeasureFill colorful.Color

	// Accent draws measurement lines, arrows and label borders.
	Accent colorful.Color

	// Text is the label foreground; TextOutline and TextBackground sit behind it.
	Text           colorful.Color
	TextOutline    colorful.Color
	TextBackground colorful.Color

	// WallTag is the background of the "Wall N" tag in the measurement overlay.
	WallTag colorful.Color
}

// DefaultPalette returns the dark-green-on-photo palette.
func DefaultPalette() Palette {
	return Palette{
		SegmentFill:    MustHex("#006400"),
		MeasureFill:    MustHex("#002800"),
		Accent:         MustHex("#FFFF00"),
		Text:           MustHex("#FFFFFF"),
		TextOutline:    MustHex("#000000"),
		TextBackground: MustHex("#000000"),
		WallTag:        MustHex("#006400"),
	}
}

// ParseHex parses "#RRGGBB" into a color.
func ParseHex(hex string) (colorful.Color, error) {
	c, err := colorful.Hex(hex)
	if err != nil {
		return colorful.Color{}, fmt.Errorf("invalid hex color %q: %w", hex, err)
	}
	return c, nil
}

// MustHex is ParseHex for compile-time constants; it panics on malformed input.
func MustHex(hex string) colorful.Color {
	c, err := ParseHex(hex)
	if err != nil {
		panic(err)
	}
	return c
}

// Tint mixes tint into c in RGB space: the result is c*(1-weight) + tint*weight.
// The alpha channel is forced opaque.
func Tint(c color.Color, tint colorful.Color, weight float64) color.RGBA {
	base, ok := colorful.MakeColor(c)
	if !ok {
		// Fully transparent source pixels carry no color to preserve.
		base = colorful.Color{}
	}
	r, g, b := base.BlendRgb(tint, weight).Clamped().RGB255()
	return color.RGBA{R: r, G: g, B: b, A: 255}
}

// RGBA converts a palette color to an opaque color.RGBA.
func RGBA(c colorful.Color) color.RGBA {
	r, g, b := c.Clamped().RGB255()
	return color.RGBA{R: r, G: g, B: b, A: 255}
}
