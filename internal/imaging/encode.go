package imaging

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/png"
)

// EncodePNG encodes an image as PNG bytes.
func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}
	return buf.Bytes(), nil
}

// EncodePNGBase64 encodes an image as a base64 PNG string, the format used for
// every image returned to callers.
func EncodePNGBase64(img image.Image) (string, error) {
	b, err := EncodePNG(img)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(b), nil
}

// EncodeMaskBase64 encodes a mask as a base64 grayscale PNG (0 or 255).
func EncodeMaskBase64(m *Mask) (string, error) {
	if m == nil || m.Width == 0 || m.Height == 0 {
		return "", fmt.Errorf("failed to encode mask: empty grid")
	}
	return EncodePNGBase64(m.Gray())
}

// DecodeMaskBase64 decodes a base64 PNG mask back into a Mask.
func DecodeMaskBase64(s string) (*Mask, error) {
	raw, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("failed to decode mask: %w", err)
	}
	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("failed to decode mask: %w", err)
	}
	return MaskFromImage(img), nil
}
