package analysis

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"sync"
)

var errDecode = errors.New("decode failed")

func solidImage(w, h int, c color.Color) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := range h {
		for x := range w {
			img.Set(x, y, c)
		}
	}
	return img
}

func checkerImage(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := range h {
		for x := range w {
			if (x+y)%2 == 0 {
				img.Set(x, y, color.White)
			} else {
				img.Set(x, y, color.Black)
			}
		}
	}
	return img
}

func histogramDescriptor(uri string, dateTaken int64, vector ...float32) ImageDescriptor {
	return ImageDescriptor{URI: uri, Vector: vector, DateTaken: dateTaken}
}

// fakeSource serves a fixed newest-first list.
type fakeSource struct {
	items []ImageChunkItem
	err   error

	mu    sync.Mutex
	calls []int
}

func (s *fakeSource) GetChunk(ctx context.Context, limit, offset int) ([]ImageChunkItem, error) {
	s.mu.Lock()
	s.calls = append(s.calls, offset)
	s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.err != nil {
		return nil, s.err
	}
	if offset >= len(s.items) {
		return []ImageChunkItem{}, nil
	}
	end := min(offset+limit, len(s.items))
	return s.items[offset:end], nil
}

// fakeDecoder returns images by URI; unknown URIs fail to decode.
type fakeDecoder struct {
	images map[string]image.Image
	// fallback is returned for URIs missing from images when set.
	fallback image.Image
}

func (d *fakeDecoder) Decode(_ context.Context, uri string) (image.Image, error) {
	if img, ok := d.images[uri]; ok {
		return img, nil
	}
	if d.fallback != nil {
		return d.fallback, nil
	}
	return nil, errDecode
}

// fakeDetector finds a person on images listed in persons.
type fakeDetector struct {
	persons   map[image.Image]bool
	landmarks []Landmark
	err       error
}

func (d *fakeDetector) Detect(_ context.Context, img image.Image) ([]Detection, error) {
	if d.err != nil {
		return nil, d.err
	}
	if d.persons[img] {
		return []Detection{{Labels: []Label{{Text: PersonLabel, Confidence: 0.9}}}}, nil
	}
	return []Detection{{Labels: []Label{{Text: "Plant", Confidence: 0.8}}}}, nil
}

func (d *fakeDetector) DetectPose(_ context.Context, _ image.Image) ([]Landmark, error) {
	return d.landmarks, nil
}

func chunkItems(n int) []ImageChunkItem {
	items := make([]ImageChunkItem, n)
	for i := range n {
		items[i] = ImageChunkItem{
			ID:        int64(i + 1),
			URI:       uriFor(i),
			DateTaken: int64(n-i) * 1000,
		}
	}
	return items
}

func uriFor(i int) string {
	return fmt.Sprintf("content://media/external/images/media/%d", i)
}
