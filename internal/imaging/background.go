// Package imaging prepares uploaded logos for embedding: decoding, background
// removal and PNG encoding.
package imaging

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"  // register GIF decoder
	_ "image/jpeg" // register JPEG decoder
	"image/png"

	_ "golang.org/x/image/bmp"  // register BMP decoder
	_ "golang.org/x/image/webp" // register WebP decoder
)

// DefaultTolerance is the per-channel distance used when callers have no
// better estimate of the logo's background noise.
const DefaultTolerance = 50

// DefaultMaxPixels bounds width*height of a decoded logo (4096x4096).
const DefaultMaxPixels = 4096 * 4096

// ErrTooLarge is returned by Decode when the image header declares more
// pixels than allowed.
var ErrTooLarge = errors.New("imaging: image dimensions too large")

var transparent = color.NRGBA{R: 255, G: 255, B: 255, A: 0}

// RemoveBackground returns a copy of img in which every pixel whose R, G and
// B channels are each within tolerance of the top-left pixel is replaced by
// fully transparent white. The input is not modified.
//
// The top-left pixel is assumed to be background. Logos that touch the
// corner get a wrong mask; that is accepted.
func RemoveBackground(img image.Image, tolerance int) *image.NRGBA {
	if tolerance < 0 {
		tolerance = 0
	}

	b := img.Bounds()
	out := image.NewNRGBA(b)
	if b.Empty() {
		return out
	}

	ref := nrgbaAt(img, b.Min.X, b.Min.Y)

	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			px := nrgbaAt(img, x, y)
			if within(px.R, ref.R, tolerance) && within(px.G, ref.G, tolerance) && within(px.B, ref.B, tolerance) {
				px = transparent
			}
			out.SetNRGBA(x, y, px)
		}
	}

	return out
}

// nrgbaAt reads a pixel as non-premultiplied 8-bit color. NRGBA sources are
// read directly so fully transparent pixels keep their RGB values.
func nrgbaAt(img image.Image, x, y int) color.NRGBA {
	if n, ok := img.(*image.NRGBA); ok {
		return n.NRGBAAt(x, y)
	}
	return color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA)
}

func within(a, b uint8, tolerance int) bool {
	d := int(a) - int(b)
	if d < 0 {
		d = -d
	}
	return d <= tolerance
}

// Decode reads an image in any registered format (PNG, JPEG, GIF, BMP, WebP).
// The header is checked first: an image of more than maxPixels pixels is
// rejected with ErrTooLarge before any pixel buffer is allocated.
// maxPixels <= 0 uses DefaultMaxPixels.
func Decode(data []byte, maxPixels int) (image.Image, string, error) {
	if maxPixels <= 0 {
		maxPixels = DefaultMaxPixels
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("imaging: decode config: %w", err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, "", fmt.Errorf("imaging: decode: empty image %dx%d", cfg.Width, cfg.Height)
	}
	if int64(cfg.Width)*int64(cfg.Height) > int64(maxPixels) {
		return nil, "", fmt.Errorf("%w: %dx%d exceeds %d pixels", ErrTooLarge, cfg.Width, cfg.Height, maxPixels)
	}

	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("imaging: decode: %w", err)
	}
	return img, format, nil
}

// EncodePNG encodes img as PNG, preserving its alpha channel.
func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("imaging: encode png: %w", err)
	}
	return buf.Bytes(), nil
}
