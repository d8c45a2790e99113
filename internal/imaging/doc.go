// Package imaging provides the image plumbing shared by the wall measurement
// pipeline: decoding uploads, caching decoded files, binary masks, PNG encoding
// and the overlay palette.
//
// # Coordinate System
//
// All pixel coordinates in this package are 0-based:
//   - X: horizontal position (0 = leftmost pixel)
//   - Y: vertical position (0 = topmost pixel)
//   - For regions, (x1,y1) is inclusive (top-left), (x2,y2) is exclusive (bottom-right)
//
// # Orientation
//
// Images are decoded with their EXIF orientation applied. Every downstream
// coordinate (detection boxes, mask pixels, corners) refers to the upright
// image, and the focal length estimate uses its upright dimensions.
//
// # Masks
//
// A Mask is a row-major boolean grid. Segmenter masks have the shape of the
// source image; depth fields may come back at another resolution, in which case
// the mask is resampled with ResizeNearest so that no blended values appear.
//
// # Thread Safety
//
// The ImageCache type is safe for concurrent use. Masks and decoded images are
// not mutated after construction and can be shared between goroutines.
package imaging
