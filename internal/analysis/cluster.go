package analysis

import (
	"cmp"
	"slices"
)

// Clustering defaults.
const (
	// DefaultSimilarityThreshold is the minimum similarity for two photos to be duplicates
	DefaultSimilarityThreshold float32 = 0.994
	// DefaultTimeWindowMillis is how far apart (ms) two duplicates may have been taken
	DefaultTimeWindowMillis int64 = 10 * 60 * 1000
)

// Clusterer partitions descriptors into duplicate groups with a time-windowed
// single-pass scan over the capture-time order.
type Clusterer struct {
	Threshold        float32
	TimeWindowMillis int64
	Scorer           Scorer
}

// NewClusterer returns a clusterer with the default threshold, window and scorer.
func NewClusterer() *Clusterer {
	return &Clusterer{
		Threshold:        DefaultSimilarityThreshold,
		TimeWindowMillis: DefaultTimeWindowMillis,
		Scorer:           DefaultScorer,
	}
}

// FindGroups groups descriptors using NewClusterer defaults.
func FindGroups(descriptors []ImageDescriptor) []DuplicateGroup {
	return NewClusterer().FindGroups(descriptors)
}

// FindGroups returns duplicate groups ordered by the capture time of their first member.
// Each photo joins at most one group and every group has at least two members.
// The input is not modified.
func (c *Clusterer) FindGroups(descriptors []ImageDescriptor) []DuplicateGroup {
	sorted := slices.Clone(descriptors)
	slices.SortStableFunc(sorted, func(a, b ImageDescriptor) int {
		return cmp.Compare(a.DateTaken, b.DateTaken)
	})

	groups := make([]DuplicateGroup, 0)
	visited := make([]bool, len(sorted))

	for i := range sorted {
		if visited[i] {
			continue
		}

		group := DuplicateGroup{sorted[i].URI}
		visited[i] = true

		for j := i + 1; j < len(sorted); j++ {
			if visited[j] {
				continue
			}
			// Sorted by time: everything after j is even further away.
			if sorted[j].DateTaken-sorted[i].DateTaken > c.TimeWindowMillis {
				break
			}
			if c.Scorer.Similarity(sorted[i], sorted[j]) >= c.Threshold {
				group = append(group, sorted[j].URI)
				visited[j] = true
			}
		}

		if len(group) > 1 {
			groups = append(groups, group)
		}
	}

	return groups
}
