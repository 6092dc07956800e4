package detector

import (
	"context"
	"image"

	"github.com/kozaktomas/photo-dedup/internal/analysis"
)

// None never finds anything, so every photo is described by its color histogram.
// Used when no detection server is configured.
type None struct{}

// Detect implements analysis.PersonDetector.
func (None) Detect(context.Context, image.Image) ([]analysis.Detection, error) {
	return nil, nil
}

// DetectPose implements analysis.PoseDetector.
func (None) DetectPose(context.Context, image.Image) ([]analysis.Landmark, error) {
	return nil, nil
}
