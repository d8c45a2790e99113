// Package render draws the two wall visualizations returned to callers: the
// segmentation overlay (tinted masks with "Wall N" labels) and the
// measurement overlay (tinted masks, dimension lines and metric labels).
//
// Both renderers copy the source image and never modify it. Label sizes scale
// with the image so that they stay readable on full-resolution photographs.
package render

import (
	"fmt"
	"image"
	"image/draw"

	"github.com/anthonynsimon/bild/blend"
	"github.com/disintegration/imaging"
	"github.com/lucasb-eyer/go-colorful"

	wimaging "github.com/ironsheep/wall-measure/internal/imaging"
	"github.com/ironsheep/wall-measure/internal/measure"
)

const (
	// segmentTintWeight is the share of the fill color in a segmented pixel.
	segmentTintWeight = 0.5

	// measureTintWeight is the fill share in the measurement overlay layer.
	measureTintWeight = 0.7

	// measureLayerOpacity is how strongly the tinted layer covers the photo.
	measureLayerOpacity = 0.6

	// arrowLength and arrowTip follow the dimension line ends, in base pixels.
	arrowLength = 20
	arrowTip    = 0.3
)

// Renderer draws wall overlays and returns them as base64 PNG strings.
type Renderer struct {
	palette wimaging.Palette
}

// New returns a Renderer using the given palette.
func New(palette wimaging.Palette) *Renderer {
	return &Renderer{palette: palette}
}

// Segmentation tints every segment mask and labels it "Wall N" at the mask
// centroid.
func (r *Renderer) Segmentation(img image.Image, segments []measure.Segment) (string, error) {
	canvas := imaging.Clone(img)
	scale := labelScale(canvas.Bounds())

	for _, seg := range segments {
		tintMask(canvas, seg.Mask, r.palette.SegmentFill, segmentTintWeight)
	}

	text := wimaging.RGBA(r.palette.Text)
	outline := wimaging.RGBA(r.palette.TextOutline)
	for _, seg := range segments {
		if seg.Mask == nil {
			continue
		}
		cx, cy, ok := seg.Mask.Centroid()
		if !ok {
			continue
		}
		label := fmt.Sprintf("Wall %d", seg.ID)
		w, h := textSize(label, scale)
		drawOutlinedText(canvas, int(cx)-w/2, int(cy)-h/2, label, text, outline, scale, scale)
	}

	return wimaging.EncodePNGBase64(canvas)
}

// Measurements tints every measured wall, blends that layer over the photo,
// then draws width and height lines through each wall's center with labels
// for width, length, area and the wall ID. Walls without dimensions are
// tinted but not annotated.
func (r *Renderer) Measurements(img image.Image, walls []measure.WallMeasurement) (string, error) {
	base := imaging.Clone(img)
	layer := imaging.Clone(img)
	for _, w := range walls {
		tintMask(layer, w.Mask, r.palette.MeasureFill, measureTintWeight)
	}

	canvas := blend.Opacity(base, layer, measureLayerOpacity)
	scale := labelScale(canvas.Bounds())

	for _, w := range walls {
		if !w.Corners.Valid() || w.Measurements.Dimensions == nil {
			continue
		}
		r.annotate(canvas, w, scale)
	}

	return wimaging.EncodePNGBase64(canvas)
}

func (r *Renderer) annotate(dst draw.Image, w measure.WallMeasurement, scale int) {
	accent := wimaging.RGBA(r.palette.Accent)
	textColor := wimaging.RGBA(r.palette.Text)
	background := wimaging.RGBA(r.palette.TextBackground)
	dims := w.Measurements.Dimensions

	var sumX, sumY float64
	minX, minY := w.Corners[0].X, w.Corners[0].Y
	maxX, maxY := minX, minY
	for _, p := range w.Corners {
		sumX += p.X
		sumY += p.Y
		minX, maxX = min(minX, p.X), max(maxX, p.X)
		minY, maxY = min(minY, p.Y), max(maxY, p.Y)
	}
	cx, cy := int(sumX/4), int(sumY/4)
	x0, x1, y0, y1 := int(minX), int(maxX), int(minY), int(maxY)

	thickness := 3 * scale / 2
	arrow := arrowLength * scale / 2

	drawLine(dst, x0, cy, x1, cy, thickness, accent)
	drawArrow(dst, x0+arrow, cy, x0, cy, thickness, arrowTip, accent)
	drawArrow(dst, x1-arrow, cy, x1, cy, thickness, arrowTip, accent)

	drawLine(dst, cx, y0, cx, y1, thickness, accent)
	drawArrow(dst, cx, y0+arrow, cx, y0, thickness, arrowTip, accent)
	drawArrow(dst, cx, y1-arrow, cx, y1, thickness, arrowTip, accent)

	big := scale * 2
	pad := 4 * scale
	offset := 20 * scale

	widthLabel := boxedLabel{
		Text:       fmt.Sprintf("Width = %.2f m", dims.WidthMeters),
		Foreground: textColor, Background: background, Border: accent,
		Scale: big, Padding: pad, BorderSize: scale,
	}
	ww, wh := textSize(widthLabel.Text, big)
	widthLabel.draw(dst, cx-ww/2, cy-offset-wh)

	heightLabel := widthLabel
	heightLabel.Text = fmt.Sprintf("Height = %.2f m", dims.LengthMeters)
	_, hh := textSize(heightLabel.Text, big)
	heightLabel.draw(dst, cx+offset, cy-hh/2)

	areaLabel := widthLabel
	areaLabel.Text = fmt.Sprintf("Area = %.2f m^2", w.Measurements.AreaSquareMeters)
	areaLabel.Padding = pad / 2
	aw, _ := textSize(areaLabel.Text, big)
	areaLabel.draw(dst, x1-aw-pad*2, y0+pad*2)

	tag := boxedLabel{
		Text:       fmt.Sprintf("Wall %d", w.WallID),
		Foreground: textColor,
		Background: wimaging.RGBA(r.palette.WallTag),
		Scale:      scale,
		Padding:    pad / 2,
	}
	tag.draw(dst, x0+pad*2, y0+pad*2)
}

// tintMask blends every foreground pixel of m in dst toward tint.
func tintMask(dst *image.NRGBA, m *wimaging.Mask, tint colorful.Color, weight float64) {
	if m == nil {
		return
	}
	b := dst.Bounds()
	for y := 0; y < m.Height && y < b.Dy(); y++ {
		for x := 0; x < m.Width && x < b.Dx(); x++ {
			if !m.Pix[y*m.Width+x] {
				continue
			}
			px, py := b.Min.X+x, b.Min.Y+y
			dst.Set(px, py, wimaging.Tint(dst.At(px, py), tint, weight))
		}
	}
}

// labelScale picks an integer magnification for the 7x13 label font so that
// labels are legible on the given image size.
func labelScale(b image.Rectangle) int {
	longest := b.Dx()
	if b.Dy() > longest {
		longest = b.Dy()
	}
	s := longest / 640
	if s < 1 {
		return 1
	}
	if s > 6 {
		return 6
	}
	return s
}
