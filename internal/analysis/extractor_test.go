package analysis

import (
	"context"
	"errors"
	"image"
	"image/color"
	"math"
	"testing"
)

func TestPoseVector(t *testing.T) {
	tests := []struct {
		name      string
		landmarks []Landmark
		check     func(t *testing.T, v []float32)
	}{
		{
			name:      "no landmarks",
			landmarks: nil,
			check: func(t *testing.T, v []float32) {
				for i, x := range v {
					if x != 0 {
						t.Fatalf("v[%d] = %v, want 0", i, x)
					}
				}
			},
		},
		{
			name:      "pairs in order",
			landmarks: []Landmark{{X: 1, Y: 2}, {X: 3, Y: 4}},
			check: func(t *testing.T, v []float32) {
				want := []float32{1, 2, 3, 4, 0}
				for i, w := range want {
					if v[i] != w {
						t.Errorf("v[%d] = %v, want %v", i, v[i], w)
					}
				}
			},
		},
		{
			name:      "extra landmarks ignored",
			landmarks: make([]Landmark, PoseLandmarkCount+5),
			check:     func(*testing.T, []float32) {},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := PoseVector(tt.landmarks)
			if len(v) != PoseVectorLen {
				t.Fatalf("len = %d, want %d", len(v), PoseVectorLen)
			}
			tt.check(t, v)
		})
	}
}

func TestHasPerson(t *testing.T) {
	tests := []struct {
		name       string
		detections []Detection
		expected   bool
	}{
		{"no detections", nil, false},
		{"other labels", []Detection{{Labels: []Label{{Text: "Dog"}, {Text: "Food"}}}}, false},
		{"person among labels", []Detection{{Labels: []Label{{Text: "Dog"}}}, {Labels: []Label{{Text: "Person"}}}}, true},
		{"case sensitive", []Detection{{Labels: []Label{{Text: "person"}}}}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := HasPerson(tt.detections); got != tt.expected {
				t.Errorf("HasPerson() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestColorHistogram(t *testing.T) {
	red := solidImage(100, 60, color.RGBA{R: 255, A: 255})
	v := ColorHistogram{}.Histogram(red)

	if len(v) != HistogramVectorLen {
		t.Fatalf("len = %d, want %d", len(v), HistogramVectorLen)
	}
	for i := 0; i < len(v); i += 3 {
		if v[i] != 1 || v[i+1] != 0 || v[i+2] != 0 {
			t.Fatalf("pixel %d = (%v, %v, %v), want (1, 0, 0)", i/3, v[i], v[i+1], v[i+2])
		}
	}
}

func TestColorHistogramRowMajor(t *testing.T) {
	// Left half black, right half white.
	img := image.NewRGBA(image.Rect(0, 0, HistogramSide, HistogramSide))
	for y := range HistogramSide {
		for x := HistogramSide / 2; x < HistogramSide; x++ {
			img.Set(x, y, color.White)
		}
	}

	v := ColorHistogram{}.Histogram(img)
	if v[0] != 0 {
		t.Errorf("first pixel = %v, want 0", v[0])
	}
	last := (HistogramSide - 1) * 3
	if v[last] != 1 {
		t.Errorf("last pixel of first row = %v, want 1", v[last])
	}
}

func TestColorHistogramEmptyImage(t *testing.T) {
	v := ColorHistogram{}.Histogram(image.NewRGBA(image.Rectangle{}))
	if len(v) != HistogramVectorLen {
		t.Fatalf("len = %d, want %d", len(v), HistogramVectorLen)
	}
	if CosineSimilarity(v, v) != 0 {
		t.Error("empty image histogram should have zero norm")
	}
}

func TestExtract(t *testing.T) {
	personImg := solidImage(10, 10, color.White)
	sceneImg := solidImage(10, 10, color.RGBA{G: 255, A: 255})
	landmarks := []Landmark{{X: 12, Y: 34}}

	detector := &fakeDetector{persons: map[image.Image]bool{personImg: true}, landmarks: landmarks}
	e := NewFeatureExtractor(detector, detector, nil)
	item := ImageChunkItem{ID: 1, URI: "file:///a.jpg", DateTaken: 1700000000000}

	t.Run("person", func(t *testing.T) {
		d, err := e.Extract(context.Background(), item, personImg)
		if err != nil {
			t.Fatalf("Extract failed: %v", err)
		}
		if !d.HasPerson {
			t.Error("expected pose descriptor")
		}
		if len(d.Vector) != PoseVectorLen || d.Vector[0] != 12 || d.Vector[1] != 34 {
			t.Errorf("unexpected pose vector prefix %v", d.Vector[:2])
		}
		if d.URI != item.URI || d.DateTaken != item.DateTaken {
			t.Errorf("descriptor metadata = %s/%d", d.URI, d.DateTaken)
		}
	})

	t.Run("scenery", func(t *testing.T) {
		d, err := e.Extract(context.Background(), item, sceneImg)
		if err != nil {
			t.Fatalf("Extract failed: %v", err)
		}
		if d.HasPerson {
			t.Error("expected histogram descriptor")
		}
		if len(d.Vector) != HistogramVectorLen || d.Vector[1] != 1 {
			t.Errorf("unexpected histogram")
		}
		for _, x := range d.Vector {
			if x < 0 || x > 1 || math.IsNaN(float64(x)) {
				t.Fatalf("histogram value %v out of range", x)
			}
		}
	})

	t.Run("detector error", func(t *testing.T) {
		failing := &fakeDetector{err: errors.New("model not loaded")}
		_, err := NewFeatureExtractor(failing, failing, nil).Extract(context.Background(), item, sceneImg)
		if err == nil {
			t.Fatal("expected error")
		}
	})
}
