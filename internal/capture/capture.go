// Package capture provides the screen sources the renderer samples in
// monitor mode. Every source yields frames as tightly packed BGRA rows of
// exactly width*height*4 bytes.
package capture

import (
	"errors"
	"image"

	"golang.org/x/image/draw"
)

// ErrCaptureTimeout is returned when no frame arrived in time. Callers skip
// the iteration rather than treating it as a fault.
var ErrCaptureTimeout = errors.New("screen capture timed out")

// ErrSourceFailed is returned when the capture source stopped unexpectedly.
var ErrSourceFailed = errors.New("screen capture source failed")

// FrameSize is the byte length of a BGRA frame.
func FrameSize(width, height int) int {
	return width * height * 4
}

// ImageToBGRA scales img to width x height and packs it as BGRA.
func ImageToBGRA(img image.Image, width, height int) []byte {
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Src, nil)
	return RGBAToBGRA(dst)
}

// RGBAToBGRA swaps the red and blue channels of an RGBA image into a new
// buffer.
func RGBAToBGRA(img *image.RGBA) []byte {
	w, h := img.Rect.Dx(), img.Rect.Dy()
	out := make([]byte, FrameSize(w, h))
	for y := 0; y < h; y++ {
		row := img.Pix[y*img.Stride : y*img.Stride+w*4]
		o := out[y*w*4:]
		for x := 0; x < w*4; x += 4 {
			o[x] = row[x+2]
			o[x+1] = row[x+1]
			o[x+2] = row[x]
			o[x+3] = row[x+3]
		}
	}
	return out
}
