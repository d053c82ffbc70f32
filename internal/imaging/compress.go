package imaging

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png"
	"io"

	"golang.org/x/image/draw"
)

// ErrTooManyPixels rejects captures whose declared size exceeds Options.MaxPixels.
var ErrTooManyPixels = errors.New("image has too many pixels")

// DefaultMaxPixels is used when Options.MaxPixels is zero.
const DefaultMaxPixels = 50_000_000

type Options struct {
	MaxWidth  int // 0 keeps the original width
	Quality   int // JPEG quality 1..100
	MaxPixels int // decode limit, width*height; 0 means DefaultMaxPixels
}

// Result is the encoded JPEG ready for upload.
type Result struct {
	Data   []byte
	Width  int
	Height int
	SHA256 string
}

// Resize scales img down so it is at most maxWidth wide, keeping the aspect ratio.
// Images already narrow enough are returned unchanged.
func Resize(img image.Image, maxWidth int) image.Image {
	b := img.Bounds()
	if maxWidth <= 0 || b.Dx() <= maxWidth {
		return img
	}
	h := int(float64(b.Dy())*float64(maxWidth)/float64(b.Dx()) + 0.5)
	if h < 1 {
		h = 1
	}
	dst := image.NewRGBA(image.Rect(0, 0, maxWidth, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Over, nil)
	return dst
}

// Encode writes img as JPEG at the given quality.
func Encode(img image.Image, quality int) (*Result, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, fmt.Errorf("failed to encode jpeg: %w", err)
	}
	sum := sha256.Sum256(buf.Bytes())
	b := img.Bounds()
	return &Result{Data: buf.Bytes(), Width: b.Dx(), Height: b.Dy(), SHA256: hex.EncodeToString(sum[:])}, nil
}

// Process decodes a JPEG or PNG capture, crops it to guide when one is given,
// scales it down and re-encodes it. The header is checked against
// opts.MaxPixels before any pixel buffer is allocated.
func Process(r io.Reader, guide *Guide, opts Options) (*Result, error) {
	var header bytes.Buffer
	cfg, _, err := image.DecodeConfig(io.TeeReader(r, &header))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	maxPixels := opts.MaxPixels
	if maxPixels <= 0 {
		maxPixels = DefaultMaxPixels
	}
	if cfg.Width <= 0 || cfg.Height <= 0 || int64(cfg.Width)*int64(cfg.Height) > int64(maxPixels) {
		return nil, fmt.Errorf("%dx%d: %w", cfg.Width, cfg.Height, ErrTooManyPixels)
	}

	img, _, err := image.Decode(io.MultiReader(&header, r))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	if guide != nil {
		b := img.Bounds()
		rect, err := CropRect(*guide, b.Dx(), b.Dy())
		if err != nil {
			return nil, err
		}
		img = Crop(img, rect)
	}
	quality := opts.Quality
	if quality <= 0 || quality > 100 {
		quality = jpeg.DefaultQuality
	}
	return Encode(Resize(img, opts.MaxWidth), quality)
}
