package analysis

import (
	"image"
	"testing"
)

func TestSampleSize(t *testing.T) {
	tests := []struct {
		name          string
		width, height int
		expected      int
	}{
		{"smaller than request", 320, 240, 1},
		{"equal to request", 640, 640, 1},
		{"one side larger", 800, 600, 1},
		{"twice the request", 1280, 1280, 2},
		{"12MP landscape", 4000, 3000, 4},
		{"12MP portrait", 3000, 4000, 4},
		{"very large", 12000, 9000, 8},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SampleSize(tt.width, tt.height, DefaultDecodeSize, DefaultDecodeSize); got != tt.expected {
				t.Errorf("SampleSize(%d, %d) = %d, want %d", tt.width, tt.height, got, tt.expected)
			}
		})
	}
}

func TestDownsample(t *testing.T) {
	small := image.NewRGBA(image.Rect(0, 0, 100, 100))
	if Downsample(small, 0) != image.Image(small) {
		t.Error("small image should be returned unchanged")
	}

	large := image.NewRGBA(image.Rect(0, 0, 4000, 3000))
	b := Downsample(large, DefaultDecodeSize).Bounds()
	if b.Dx() != 1000 || b.Dy() != 750 {
		t.Errorf("Downsample bounds = %v, want 1000x750", b)
	}
}
