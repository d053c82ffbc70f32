// Package imaging turns camera captures into the stored inspection photos:
// crop to the on-screen guide, scale down, re-encode as JPEG.
package imaging

import (
	"errors"
	"fmt"
	"image"
	"image/draw"
	"math"
)

var (
	ErrInvalidPreview = errors.New("preview size must be positive")
	ErrEmptyCrop      = errors.New("crop region does not overlap the image")
	ErrInvalidGuide   = errors.New("guide must have a positive finite size and finite position")
)

// ScaleMode describes how the camera preview maps the sensor image onto the screen.
type ScaleMode string

const (
	// ScaleCover fills the preview and trims the overflow evenly on both sides.
	ScaleCover ScaleMode = "cover"
	// ScaleStretch maps each axis independently, preview edge to image edge.
	ScaleStretch ScaleMode = "stretch"
)

// Guide is the cropping-guide overlay in preview (screen) coordinates.
type Guide struct {
	PreviewWidth  float64
	PreviewHeight float64
	X             float64
	Y             float64
	Width         float64
	Height        float64
	Mode          ScaleMode
}

// CropRect maps the guide onto an image of the given size. The result always
// lies inside image.Rect(0, 0, imgW, imgH).
func CropRect(g Guide, imgW, imgH int) (image.Rectangle, error) {
	for _, v := range []float64{g.PreviewWidth, g.PreviewHeight, g.X, g.Y, g.Width, g.Height} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return image.Rectangle{}, ErrInvalidGuide
		}
	}
	if g.PreviewWidth <= 0 || g.PreviewHeight <= 0 {
		return image.Rectangle{}, ErrInvalidPreview
	}
	if g.Width <= 0 || g.Height <= 0 {
		return image.Rectangle{}, ErrInvalidGuide
	}
	if imgW <= 0 || imgH <= 0 {
		return image.Rectangle{}, fmt.Errorf("invalid image size %dx%d", imgW, imgH)
	}

	var sx, sy, offX, offY float64
	switch g.Mode {
	case ScaleStretch:
		sx = float64(imgW) / g.PreviewWidth
		sy = float64(imgH) / g.PreviewHeight
	case ScaleCover, "":
		// Screen pixels per image pixel; the larger factor wins so the preview is filled.
		display := math.Max(g.PreviewWidth/float64(imgW), g.PreviewHeight/float64(imgH))
		offX = (float64(imgW)*display - g.PreviewWidth) / 2
		offY = (float64(imgH)*display - g.PreviewHeight) / 2
		sx, sy = 1/display, 1/display
	default:
		return image.Rectangle{}, fmt.Errorf("unknown scale mode %q", g.Mode)
	}

	x0 := int(math.Round((g.X + offX) * sx))
	y0 := int(math.Round((g.Y + offY) * sy))
	x1 := int(math.Round((g.X + g.Width + offX) * sx))
	y1 := int(math.Round((g.Y + g.Height + offY) * sy))

	r := image.Rect(x0, y0, x1, y1).Intersect(image.Rect(0, 0, imgW, imgH))
	if r.Empty() {
		return image.Rectangle{}, ErrEmptyCrop
	}
	return r, nil
}

// Crop returns the part of img inside r, where r is relative to img's origin.
func Crop(img image.Image, r image.Rectangle) image.Image {
	b := img.Bounds()
	r = r.Add(b.Min).Intersect(b)
	if si, ok := img.(interface {
		SubImage(image.Rectangle) image.Image
	}); ok {
		return si.SubImage(r)
	}
	dst := image.NewRGBA(image.Rect(0, 0, r.Dx(), r.Dy()))
	draw.Draw(dst, dst.Bounds(), img, r.Min, draw.Src)
	return dst
}
