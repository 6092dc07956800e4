package analysis

import (
	"image"

	"golang.org/x/image/draw"
)

// DefaultDecodeSize is the requested edge length decoded images are sampled towards.
const DefaultDecodeSize = 640

// SampleSize returns the largest power-of-two divisor that keeps both halves of the
// image at least as large as the requested size.
func SampleSize(width, height, reqWidth, reqHeight int) int {
	sample := 1
	if height > reqHeight || width > reqWidth {
		halfHeight := height / 2
		halfWidth := width / 2
		for halfHeight/sample >= reqHeight && halfWidth/sample >= reqWidth {
			sample *= 2
		}
	}
	return sample
}

// Downsample shrinks img by its SampleSize for a reqSize x reqSize request.
// Images that need no sampling are returned unchanged.
func Downsample(img image.Image, reqSize int) image.Image {
	if reqSize <= 0 {
		reqSize = DefaultDecodeSize
	}
	b := img.Bounds()
	sample := SampleSize(b.Dx(), b.Dy(), reqSize, reqSize)
	if sample == 1 {
		return img
	}

	dst := image.NewRGBA(image.Rect(0, 0, b.Dx()/sample, b.Dy()/sample))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
	return dst
}
