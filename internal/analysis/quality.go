package analysis

import (
	"context"
	"fmt"
	"image"

	"golang.org/x/image/draw"
	"golang.org/x/sync/errgroup"
)

// Sharpness constants.
const (
	// DefaultBlurThreshold is the Laplacian variance below which a photo counts as blurry
	DefaultBlurThreshold = 500.0
	// sharpnessSide is the square size images are rescaled to before measuring sharpness
	sharpnessSide = 256
)

// laplacian is the 3x3 edge detection kernel.
var laplacian = [9]int{
	0, 1, 0,
	1, -4, 1,
	0, 1, 0,
}

// LaplacianVariance measures edge sharpness: high values mean crisp edges,
// low values a blurred or shaken photo.
func LaplacianVariance(img image.Image) float64 {
	if img == nil || img.Bounds().Empty() {
		return 0
	}

	scaled := image.NewNRGBA(image.Rect(0, 0, sharpnessSide, sharpnessSide))
	draw.NearestNeighbor.Scale(scaled, scaled.Bounds(), img, img.Bounds(), draw.Src, nil)

	gray := make([]int, sharpnessSide*sharpnessSide)
	for y := range sharpnessSide {
		for x := range sharpnessSide {
			c := scaled.NRGBAAt(x, y)
			gray[y*sharpnessSide+x] = (int(c.R) + int(c.G) + int(c.B)) / 3
		}
	}

	var sum, sqSum float64
	var count int
	for y := 1; y < sharpnessSide-1; y++ {
		for x := 1; x < sharpnessSide-1; x++ {
			v := 0
			for ky := -1; ky <= 1; ky++ {
				for kx := -1; kx <= 1; kx++ {
					v += gray[(y+ky)*sharpnessSide+(x+kx)] * laplacian[(ky+1)*3+(kx+1)]
				}
			}
			value := float64(v)
			sum += value
			sqSum += value * value
			count++
		}
	}

	mean := sum / float64(count)
	return sqSum/float64(count) - mean*mean
}

// IsBlurry reports whether the Laplacian variance of img is below threshold.
func IsBlurry(img image.Image, threshold float64) bool {
	return LaplacianVariance(img) < threshold
}

// KeepPolicy selects which member of a duplicate group survives deletion.
type KeepPolicy string

// Keep policies.
const (
	KeepFirst    KeepPolicy = "first"
	KeepSharpest KeepPolicy = "sharpest"
)

// Keeper chooses the URI to keep for a group.
type Keeper interface {
	ChooseKeep(ctx context.Context, group DuplicateGroup) (string, error)
}

// NewKeeper returns the Keeper for a policy. KeepSharpest needs a decoder.
func NewKeeper(policy KeepPolicy, decoder Decoder, concurrency int, blurThreshold float64) (Keeper, error) {
	switch policy {
	case KeepFirst, "":
		return FirstKeeper{}, nil
	case KeepSharpest:
		if decoder == nil {
			return nil, fmt.Errorf("keep policy %q requires a decoder", policy)
		}
		return &SharpestKeeper{Decoder: decoder, Concurrency: concurrency, BlurThreshold: blurThreshold}, nil
	default:
		return nil, fmt.Errorf("unknown keep policy %q", policy)
	}
}

// FirstKeeper keeps the earliest photo of a group.
type FirstKeeper struct{}

// ChooseKeep implements Keeper.
func (FirstKeeper) ChooseKeep(_ context.Context, group DuplicateGroup) (string, error) {
	if len(group) == 0 {
		return "", ErrUnknownGroup
	}
	return group[0], nil
}

// MemberQuality is the sharpness assessment of one group member.
type MemberQuality struct {
	URI       string  `json:"uri"`
	Sharpness float64 `json:"sharpness"` // -1 when the photo could not be decoded
	Blurry    bool    `json:"blurry"`
}

// SharpestKeeper keeps the group member with the highest Laplacian variance.
// Members that fail to decode score -1; ties go to the earlier member.
type SharpestKeeper struct {
	Decoder     Decoder
	Concurrency int
	// BlurThreshold defaults to DefaultBlurThreshold when <= 0.
	BlurThreshold float64
}

// Assess scores every member of group, preserving group order.
func (k *SharpestKeeper) Assess(ctx context.Context, group DuplicateGroup) ([]MemberQuality, error) {
	threshold := k.BlurThreshold
	if threshold <= 0 {
		threshold = DefaultBlurThreshold
	}

	out := make([]MemberQuality, len(group))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(k.Concurrency, 1))
	for i, uri := range group {
		g.Go(func() error {
			out[i] = MemberQuality{URI: uri, Sharpness: -1, Blurry: true}
			img, err := k.Decoder.Decode(gctx, uri)
			if err != nil {
				return gctx.Err()
			}
			v := LaplacianVariance(img)
			out[i].Sharpness = v
			out[i].Blurry = v < threshold
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("scoring sharpness: %w", err)
	}
	return out, nil
}

// ChooseKeep implements Keeper.
func (k *SharpestKeeper) ChooseKeep(ctx context.Context, group DuplicateGroup) (string, error) {
	if len(group) == 0 {
		return "", ErrUnknownGroup
	}

	scores, err := k.Assess(ctx, group)
	if err != nil {
		return "", err
	}

	best := 0
	for i := 1; i < len(scores); i++ {
		if scores[i].Sharpness > scores[best].Sharpness {
			best = i
		}
	}
	return group[best], nil
}
