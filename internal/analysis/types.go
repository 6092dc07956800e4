// Package analysis implements near-duplicate photo detection: feature extraction,
// similarity scoring, batch analysis over a chunked gallery and time-windowed clustering.
package analysis

import (
	"context"
	"fmt"
	"image"
	"slices"
)

// Descriptor dimensions.
const (
	// PoseLandmarkCount is the number of landmarks a pose detector reports (ML Kit topology)
	PoseLandmarkCount = 33
	// PoseVectorLen is the length of a pose descriptor (x, y per landmark)
	PoseVectorLen = PoseLandmarkCount * 2
	// HistogramSide is the edge length of the thumbnail a color histogram is sampled from
	HistogramSide = 32
	// HistogramVectorLen is the length of a color histogram descriptor (RGB per pixel)
	HistogramVectorLen = HistogramSide * HistogramSide * 3
)

// PersonLabel is the detection label that switches extraction to pose landmarks.
const PersonLabel = "Person"

// ImageDescriptor is the comparable feature vector of one photo.
// Pose descriptors (HasPerson) hold PoseVectorLen values, histogram
// descriptors hold HistogramVectorLen values in [0,1].
type ImageDescriptor struct {
	URI       string    `json:"uri"`
	HasPerson bool      `json:"has_person"`
	Vector    []float32 `json:"vector"`
	DateTaken int64     `json:"date_taken"` // epoch milliseconds
}

// ImageChunkItem is one entry returned by a gallery metadata source.
type ImageChunkItem struct {
	ID        int64  `json:"id"`
	URI       string `json:"uri"`
	DateTaken int64  `json:"date_taken"` // epoch milliseconds
}

// DuplicateGroup is an ordered list of 2+ URIs believed to depict the same moment.
// The first URI belongs to the earliest photo of the group.
type DuplicateGroup []string

// Contains reports whether uri is a member of the group.
func (g DuplicateGroup) Contains(uri string) bool {
	return slices.Contains(g, uri)
}

// Without returns the group members except keep, preserving order.
func (g DuplicateGroup) Without(keep string) []string {
	out := make([]string, 0, len(g))
	for _, uri := range g {
		if uri != keep {
			out = append(out, uri)
		}
	}
	return out
}

// Label is a single classification attached to a detected object.
type Label struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
}

// Detection is one object reported by a PersonDetector.
type Detection struct {
	Labels []Label `json:"labels"`
}

// Landmark is a detected anatomical keypoint in image pixel coordinates.
type Landmark struct {
	X float32 `json:"x"`
	Y float32 `json:"y"`
}

// ChunkSource provides gallery metadata ordered by capture time, newest first.
// It returns fewer than limit items only when the gallery is exhausted.
type ChunkSource interface {
	GetChunk(ctx context.Context, limit, offset int) ([]ImageChunkItem, error)
}

// Decoder loads an image by URI, downsampled to bound memory.
type Decoder interface {
	Decode(ctx context.Context, uri string) (image.Image, error)
}

// PersonDetector reports labeled objects found in an image.
type PersonDetector interface {
	Detect(ctx context.Context, img image.Image) ([]Detection, error)
}

// PoseDetector reports pose landmarks in a stable order, up to PoseLandmarkCount points.
type PoseDetector interface {
	DetectPose(ctx context.Context, img image.Image) ([]Landmark, error)
}

// HistogramExtractor converts an image without people into a color descriptor.
type HistogramExtractor interface {
	Histogram(img image.Image) []float32
}

// Deleter performs the destructive removal of photos. An error means none of the
// URIs were removed, unless it wraps a *PartialDeleteError listing those that were.
type Deleter interface {
	Delete(ctx context.Context, uris []string) error
}

// PartialDeleteError reports a deletion where only Deleted were removed.
type PartialDeleteError struct {
	Deleted []string
	Err     error
}

func (e *PartialDeleteError) Error() string {
	return fmt.Sprintf("%d photos deleted before failure: %v", len(e.Deleted), e.Err)
}

func (e *PartialDeleteError) Unwrap() error {
	return e.Err
}

// DeletionRecorder keeps an audit trail of deletion requests.
type DeletionRecorder interface {
	RecordDeletion(ctx context.Context, keep string, deleted []string) error
}
