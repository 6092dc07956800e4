package gallery

import (
	"context"
	"fmt"
	"image"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp" // register WebP with image.Decode

	"github.com/kozaktomas/photo-dedup/internal/analysis"
)

// Decoder opens local photos, applies their EXIF orientation and downsamples
// them towards Size x Size.
type Decoder struct {
	Size int
}

// NewDecoder returns a decoder with the default request size.
func NewDecoder() *Decoder {
	return &Decoder{Size: analysis.DefaultDecodeSize}
}

// Decode implements analysis.Decoder. The uri is a file path.
func (d *Decoder) Decode(ctx context.Context, uri string) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	img, err := imaging.Open(uri, imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", uri, err)
	}
	return analysis.Downsample(img, d.Size), nil
}
