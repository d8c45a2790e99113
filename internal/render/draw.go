package render

import (
	"image"
	"image/color"
	"image/draw"
	"math"

	"github.com/disintegration/imaging"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// labelFace is the bitmap face used for every label; it is scaled up with
// nearest-neighbor resampling so that glyph edges stay crisp.
var labelFace = basicfont.Face7x13

// textImage renders text in c on a transparent background, magnified by scale.
func textImage(text string, c color.Color, scale int) *image.NRGBA {
	if scale < 1 {
		scale = 1
	}
	metrics := labelFace.Metrics()
	width := font.MeasureString(labelFace, text).Ceil()
	height := metrics.Height.Ceil()
	if width == 0 {
		width = 1
	}

	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(c),
		Face: labelFace,
		Dot:  fixed.Point26_6{X: 0, Y: metrics.Ascent},
	}
	d.DrawString(text)

	if scale == 1 {
		return img
	}
	return imaging.Resize(img, width*scale, height*scale, imaging.NearestNeighbor)
}

// textSize returns the pixel size of text at the given scale.
func textSize(text string, scale int) (int, int) {
	if scale < 1 {
		scale = 1
	}
	return font.MeasureString(labelFace, text).Ceil() * scale, labelFace.Metrics().Height.Ceil() * scale
}

// drawText composites text with its top-left corner at (x, y).
func drawText(dst draw.Image, x, y int, text string, c color.Color, scale int) {
	glyphs := textImage(text, c, scale)
	r := glyphs.Bounds().Add(image.Pt(x, y))
	draw.Draw(dst, r, glyphs, image.Point{}, draw.Over)
}

// drawOutlinedText draws text in fg over a thick outline in outline, so it
// reads on both light and dark backgrounds.
func drawOutlinedText(dst draw.Image, x, y int, text string, fg, outline color.Color, scale, thickness int) {
	shadow := textImage(text, outline, scale)
	for dy := -thickness; dy <= thickness; dy++ {
		for dx := -thickness; dx <= thickness; dx++ {
			if dx == 0 && dy == 0 {
				continue
			}
			r := shadow.Bounds().Add(image.Pt(x+dx, y+dy))
			draw.Draw(dst, r, shadow, image.Point{}, draw.Over)
		}
	}
	drawText(dst, x, y, text, fg, scale)
}

// boxedLabel describes a label drawn on a filled, optionally bordered box.
type boxedLabel struct {
	Text       string
	Foreground color.Color
	Background color.Color
	Border     color.Color // nil for no border
	Scale      int
	Padding    int
	BorderSize int
}

// bounds returns the rectangle the label occupies when its text starts at
// (x, y).
func (l boxedLabel) bounds(x, y int) image.Rectangle {
	w, h := textSize(l.Text, l.Scale)
	return image.Rect(x-l.Padding, y-l.Padding, x+w+l.Padding, y+h+l.Padding)
}

// draw renders the label with its text starting at (x, y).
func (l boxedLabel) draw(dst draw.Image, x, y int) {
	box := l.bounds(x, y)
	fillRect(dst, box, l.Background)
	if l.Border != nil && l.BorderSize > 0 {
		strokeRect(dst, box, l.Border, l.BorderSize)
	}
	drawText(dst, x, y, l.Text, l.Foreground, l.Scale)
}

func fillRect(dst draw.Image, r image.Rectangle, c color.Color) {
	draw.Draw(dst, r.Intersect(dst.Bounds()), image.NewUniform(c), image.Point{}, draw.Src)
}

func strokeRect(dst draw.Image, r image.Rectangle, c color.Color, width int) {
	fillRect(dst, image.Rect(r.Min.X, r.Min.Y, r.Max.X, r.Min.Y+width), c)
	fillRect(dst, image.Rect(r.Min.X, r.Max.Y-width, r.Max.X, r.Max.Y), c)
	fillRect(dst, image.Rect(r.Min.X, r.Min.Y, r.Min.X+width, r.Max.Y), c)
	fillRect(dst, image.Rect(r.Max.X-width, r.Min.Y, r.Max.X, r.Max.Y), c)
}

// drawLine draws a straight segment with a square brush of the given
// thickness (Bresenham stepping).
func drawLine(dst draw.Image, x0, y0, x1, y1, thickness int, c color.Color) {
	if thickness < 1 {
		thickness = 1
	}
	half := thickness / 2
	brush := image.NewUniform(c)
	bounds := dst.Bounds()
	stamp := func(x, y int) {
		r := image.Rect(x-half, y-half, x-half+thickness, y-half+thickness).Intersect(bounds)
		draw.Draw(dst, r, brush, image.Point{}, draw.Src)
	}

	dx := abs(x1 - x0)
	dy := -abs(y1 - y0)
	sx, sy := 1, 1
	if x0 > x1 {
		sx = -1
	}
	if y0 > y1 {
		sy = -1
	}
	errAcc := dx + dy
	for {
		stamp(x0, y0)
		if x0 == x1 && y0 == y1 {
			return
		}
		e2 := 2 * errAcc
		if e2 >= dy {
			errAcc += dy
			x0 += sx
		}
		if e2 <= dx {
			errAcc += dx
			y0 += sy
		}
	}
}

// drawArrow draws a line from (x0, y0) to the tip (x1, y1) with two barbs
// whose length is tipFraction of the line length.
func drawArrow(dst draw.Image, x0, y0, x1, y1, thickness int, tipFraction float64, c color.Color) {
	drawLine(dst, x0, y0, x1, y1, thickness, c)

	length := math.Hypot(float64(x1-x0), float64(y1-y0))
	if length == 0 {
		return
	}
	tip := length * tipFraction
	angle := math.Atan2(float64(y0-y1), float64(x0-x1))
	for _, side := range []float64{-math.Pi / 4, math.Pi / 4} {
		bx := x1 + int(math.Round(tip*math.Cos(angle+side)))
		by := y1 + int(math.Round(tip*math.Sin(angle+side)))
		drawLine(dst, x1, y1, bx, by, thickness, c)
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
