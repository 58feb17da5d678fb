//go:build linux

package drmoutput

import (
	"bytes"
	"fmt"
	"image"
	"image/png"

	"golang.org/x/image/draw"
)

// EncodeFramePNG packs a tightly packed RGBA frame into a PNG,
// following the same x/image-based conversion idiom the clipboard
// package uses for its own screenshot/paste path (bmp there, png
// here) — convert the raw RGBA readback into an image.Image, then let
// the standard encoder do the framing. Exported standalone (rather
// than only a DrmOutput method) so callers that only hold the bytes
// coming back over the bus, such as the driftd SIGUSR1 frame dumper,
// can reuse the same conversion.
func EncodeFramePNG(pixels []byte, width, height int) ([]byte, error) {
	if len(pixels) < width*height*4 {
		return nil, fmt.Errorf("screenshot buffer too small: have %d bytes, want %d", len(pixels), width*height*4)
	}

	img := &image.RGBA{
		Pix:    pixels,
		Stride: width * 4,
		Rect:   image.Rect(0, 0, width, height),
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode screenshot png: %w", err)
	}
	return buf.Bytes(), nil
}

// EncodePNG packs the output's last composited frame into a PNG.
func (o *DrmOutput) EncodePNG() ([]byte, error) {
	pixels, width, height := o.Screenshot()
	return EncodeFramePNG(pixels, width, height)
}

// ResizeFrame scales a tightly packed RGBA frame to width x height
// using x/image/draw's bilinear scaler, for screenshooter clients (or
// the frame dumper) that want a thumbnail rather than a 1:1 capture.
func ResizeFrame(pixels []byte, w, h, width, height int) image.Image {
	src := &image.RGBA{Pix: pixels, Stride: w * 4, Rect: image.Rect(0, 0, w, h)}
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.BiLinear.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Over, nil)
	return dst
}

// Resize scales the output's last composited frame to width x height.
func (o *DrmOutput) Resize(width, height int) image.Image {
	pixels, w, h := o.Screenshot()
	return ResizeFrame(pixels, w, h, width, height)
}
