package analysis

import "math"

// DefaultPoseDistanceScale is the weighted landmark distance at which pose similarity reaches 0.
const DefaultPoseDistanceScale = 150.0

// Scorer computes a bounded similarity between two descriptors of the same kind.
type Scorer struct {
	// PoseDistanceScale maps weighted Euclidean distance to similarity: 1 - d/scale.
	PoseDistanceScale float64
}

// DefaultScorer uses DefaultPoseDistanceScale.
var DefaultScorer = Scorer{PoseDistanceScale: DefaultPoseDistanceScale}

// Similarity scores a and b with DefaultScorer.
func Similarity(a, b ImageDescriptor) float32 {
	return DefaultScorer.Similarity(a, b)
}

// Similarity returns a value in [0,1]. Descriptors of different kinds score 0.
func (s Scorer) Similarity(a, b ImageDescriptor) float32 {
	if a.HasPerson != b.HasPerson {
		return 0
	}

	if a.HasPerson {
		scale := s.PoseDistanceScale
		if scale <= 0 {
			scale = DefaultPoseDistanceScale
		}
		distance := WeightedEuclideanDistance(a.Vector, b.Vector)
		return float32(clamp01(1 - distance/scale))
	}

	return float32(clamp01(CosineSimilarity(a.Vector, b.Vector)))
}

// landmarkWeight returns the distance weight for a pose landmark index.
// Arm movement dominates, facial jitter around the nose is damped.
func landmarkWeight(i int) float64 {
	switch i {
	case 13, 14, 15, 16: // elbows, wrists
		return 10.0
	case 11, 12: // shoulders
		return 2.0
	case 0: // nose
		return 0.5
	default:
		return 1.0
	}
}

// WeightedEuclideanDistance compares two pose vectors point by point.
// Only the points present in both vectors contribute.
func WeightedEuclideanDistance(v1, v2 []float32) float64 {
	points := min(len(v1), len(v2)) / 2

	var sum float64
	for i := range points {
		dx := float64(v1[i*2]) - float64(v2[i*2])
		dy := float64(v1[i*2+1]) - float64(v2[i*2+1])
		sum += landmarkWeight(i) * (dx*dx + dy*dy)
	}
	return math.Sqrt(sum)
}

// CosineSimilarity computes the cosine similarity of two histogram vectors.
// Mismatched lengths and zero-norm vectors (flat black frames) return 0.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
