package imaging

import (
	"image"
	"image/color"
)

// Mask is a binary pixel grid, one cell per image pixel, stored row-major.
//
// A Mask produced by the segmenter has the same shape as the source image.
// Masks are treated as immutable once handed to the measurement pipeline;
// operations such as ResizeNearest return new masks.
type Mask struct {
	Width  int
	Height int
	Pix    []bool
}

// NewMask creates an empty (all background) mask of the given shape.
func NewMask(width, height int) *Mask {
	if width < 0 {
		width = 0
	}
	if height < 0 {
		height = 0
	}
	return &Mask{
		Width:  width,
		Height: height,
		Pix:    make([]bool, width*height),
	}
}

// MaskFromRect creates a mask of the given shape with r filled as foreground.
// The rectangle is clipped to the mask bounds.
func MaskFromRect(width, height int, r image.Rectangle) *Mask {
	m := NewMask(width, height)
	r = r.Intersect(image.Rect(0, 0, width, height))
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			m.Pix[y*width+x] = true
		}
	}
	return m
}

// MaskFromImage converts a mask image into a Mask. Any pixel with a non-zero
// gray level is foreground, which accepts both 0/1 and 0/255 encodings.
func MaskFromImage(img image.Image) *Mask {
	bounds := img.Bounds()
	m := NewMask(bounds.Dx(), bounds.Dy())
	for y := 0; y < m.Height; y++ {
		for x := 0; x < m.Width; x++ {
			g := color.GrayModel.Convert(img.At(x+bounds.Min.X, y+bounds.Min.Y)).(color.Gray)
			m.Pix[y*m.Width+x] = g.Y > 0
		}
	}
	return m
}

// At reports whether (x, y) is foreground. Out-of-range coordinates are background.
func (m *Mask) At(x, y int) bool {
	if x < 0 || y < 0 || x >= m.Width || y >= m.Height {
		return false
	}
	return m.Pix[y*m.Width+x]
}

// Set marks (x, y) as foreground or background. Out-of-range writes are ignored.
func (m *Mask) Set(x, y int, v bool) {
	if x < 0 || y < 0 || x >= m.Width || y >= m.Height {
		return
	}
	m.Pix[y*m.Width+x] = v
}

// SameShape reports whether the mask has the given grid shape.
func (m *Mask) SameShape(width, height int) bool {
	return m.Width == width && m.Height == height
}

// Count returns the number of foreground pixels.
func (m *Mask) Count() int {
	n := 0
	for _, v := range m.Pix {
		if v {
			n++
		}
	}
	return n
}

// Empty reports whether the mask has no foreground pixels.
func (m *Mask) Empty() bool {
	for _, v := range m.Pix {
		if v {
			return false
		}
	}
	return true
}

// Bounds returns the smallest rectangle containing every foreground pixel.
// An empty mask returns the zero rectangle.
func (m *Mask) Bounds() image.Rectangle {
	minX, minY := m.Width, m.Height
	maxX, maxY := -1, -1
	for y := 0; y < m.Height; y++ {
		row := m.Pix[y*m.Width : (y+1)*m.Width]
		for x, v := range row {
			if !v {
				continue
			}
			if x < minX {
				minX = x
			}
			if x > maxX {
				maxX = x
			}
			if y < minY {
				minY = y
			}
			if y > maxY {
				maxY = y
			}
		}
	}
	if maxX < 0 {
		return image.Rectangle{}
	}
	return image.Rect(minX, minY, maxX+1, maxY+1)
}

// Centroid returns the mean foreground coordinate.
// ok is false for an empty mask.
func (m *Mask) Centroid() (cx, cy float64, ok bool) {
	var sumX, sumY float64
	n := 0
	for y := 0; y < m.Height; y++ {
		for x := 0; x < m.Width; x++ {
			if m.Pix[y*m.Width+x] {
				sumX += float64(x)
				sumY += float64(y)
				n++
			}
		}
	}
	if n == 0 {
		return 0, 0, false
	}
	return sumX / float64(n), sumY / float64(n), true
}

// ResizeNearest resamples the mask to width x height with nearest-neighbor
// interpolation. Destination cell (x, y) takes the source cell
// (floor(x*W/width), floor(y*H/height)), so the result stays strictly binary.
// If the shape already matches, a copy is returned.
func (m *Mask) ResizeNearest(width, height int) *Mask {
	out := NewMask(width, height)
	if m.Width == 0 || m.Height == 0 {
		return out
	}
	if m.SameShape(width, height) {
		copy(out.Pix, m.Pix)
		return out
	}

	srcX := make([]int, width)
	for x := range srcX {
		sx := x * m.Width / width
		if sx >= m.Width {
			sx = m.Width - 1
		}
		srcX[x] = sx
	}

	for y := 0; y < height; y++ {
		sy := y * m.Height / height
		if sy >= m.Height {
			sy = m.Height - 1
		}
		src := m.Pix[sy*m.Width : (sy+1)*m.Width]
		dst := out.Pix[y*width : (y+1)*width]
		for x, sx := range srcX {
			dst[x] = src[sx]
		}
	}
	return out
}

// Gray renders the mask as an 8-bit image with foreground 255 and background 0.
func (m *Mask) Gray() *image.Gray {
	img := image.NewGray(image.Rect(0, 0, m.Width, m.Height))
	for i, v := range m.Pix {
		if v {
			img.Pix[i] = 255
		}
	}
	return img
}
