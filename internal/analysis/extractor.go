package analysis

import (
	"context"
	"fmt"
	"image"

	"golang.org/x/image/draw"
)

// FeatureExtractor turns a decoded image into an ImageDescriptor. Photos with a
// person are described by pose landmarks, all others by a color histogram.
type FeatureExtractor struct {
	persons    PersonDetector
	poses      PoseDetector
	histograms HistogramExtractor
}

// NewFeatureExtractor creates an extractor. A nil histograms falls back to ColorHistogram.
func NewFeatureExtractor(persons PersonDetector, poses PoseDetector, histograms HistogramExtractor) *FeatureExtractor {
	if histograms == nil {
		histograms = ColorHistogram{}
	}
	return &FeatureExtractor{
		persons:    persons,
		poses:      poses,
		histograms: histograms,
	}
}

// Extract runs person detection and, when a person is found, pose detection.
// Detector errors are returned so the caller can skip the image.
func (e *FeatureExtractor) Extract(ctx context.Context, item ImageChunkItem, img image.Image) (ImageDescriptor, error) {
	detections, err := e.persons.Detect(ctx, img)
	if err != nil {
		return ImageDescriptor{}, fmt.Errorf("person detection: %w", err)
	}

	if !HasPerson(detections) {
		return Describe(item, img, nil, nil, e.histograms), nil
	}

	landmarks, err := e.poses.DetectPose(ctx, img)
	if err != nil {
		return ImageDescriptor{}, fmt.Errorf("pose detection: %w", err)
	}

	return Describe(item, img, detections, landmarks, e.histograms), nil
}

// Describe builds a descriptor from already computed detector outputs.
func Describe(item ImageChunkItem, img image.Image, detections []Detection, landmarks []Landmark, histograms HistogramExtractor) ImageDescriptor {
	if HasPerson(detections) {
		return ImageDescriptor{
			URI:       item.URI,
			HasPerson: true,
			Vector:    PoseVector(landmarks),
			DateTaken: item.DateTaken,
		}
	}
	return ImageDescriptor{
		URI:       item.URI,
		HasPerson: false,
		Vector:    histograms.Histogram(img),
		DateTaken: item.DateTaken,
	}
}

// HasPerson reports whether any detection carries the "Person" label.
func HasPerson(detections []Detection) bool {
	for _, d := range detections {
		for _, l := range d.Labels {
			if l.Text == PersonLabel {
				return true
			}
		}
	}
	return false
}

// PoseVector flattens landmarks into (x, y) pairs in detector order.
// No landmarks yields an all-zero vector; the result is always PoseVectorLen long.
func PoseVector(landmarks []Landmark) []float32 {
	vector := make([]float32, PoseVectorLen)
	for i, lm := range landmarks {
		if i >= PoseLandmarkCount {
			break
		}
		vector[i*2] = lm.X
		vector[i*2+1] = lm.Y
	}
	return vector
}

// ColorHistogram samples an image down to HistogramSide x HistogramSide pixels
// (nearest neighbour, no filtering) and emits normalized R, G, B per pixel in row-major order.
type ColorHistogram struct{}

// Histogram implements HistogramExtractor.
func (ColorHistogram) Histogram(img image.Image) []float32 {
	vector := make([]float32, HistogramVectorLen)
	if img == nil || img.Bounds().Empty() {
		return vector
	}

	scaled := image.NewNRGBA(image.Rect(0, 0, HistogramSide, HistogramSide))
	draw.NearestNeighbor.Scale(scaled, scaled.Bounds(), img, img.Bounds(), draw.Src, nil)

	for y := range HistogramSide {
		for x := range HistogramSide {
			c := scaled.NRGBAAt(x, y)
			i := (y*HistogramSide + x) * 3
			vector[i] = float32(c.R) / 255
			vector[i+1] = float32(c.G) / 255
			vector[i+2] = float32(c.B) / 255
		}
	}
	return vector
}
