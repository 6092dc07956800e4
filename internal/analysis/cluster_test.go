package analysis

import (
	"math/rand/v2"
	"reflect"
	"testing"
)

func TestFindGroups(t *testing.T) {
	tests := []struct {
		name        string
		descriptors []ImageDescriptor
		expected    []DuplicateGroup
	}{
		{
			name:        "empty input",
			descriptors: nil,
			expected:    []DuplicateGroup{},
		},
		{
			name: "single photo",
			descriptors: []ImageDescriptor{
				histogramDescriptor("a", 0, 1, 1, 1),
			},
			expected: []DuplicateGroup{},
		},
		{
			name: "two identical photos within window",
			descriptors: []ImageDescriptor{
				histogramDescriptor("b", 60_000, 1, 1, 1),
				histogramDescriptor("a", 0, 1, 1, 1),
			},
			expected: []DuplicateGroup{{"a", "b"}},
		},
		{
			name: "identical photos outside window",
			descriptors: []ImageDescriptor{
				histogramDescriptor("a", 0, 1, 1, 1),
				histogramDescriptor("b", 600_001, 1, 1, 1),
			},
			expected: []DuplicateGroup{},
		},
		{
			name: "window boundary is inclusive",
			descriptors: []ImageDescriptor{
				histogramDescriptor("a", 0, 1, 1, 1),
				histogramDescriptor("b", 600_000, 1, 1, 1),
			},
			expected: []DuplicateGroup{{"a", "b"}},
		},
		{
			name: "dissimilar photos",
			descriptors: []ImageDescriptor{
				histogramDescriptor("a", 0, 1, 0, 0),
				histogramDescriptor("b", 1000, 0, 1, 0),
			},
			expected: []DuplicateGroup{},
		},
		{
			name: "person photo never groups with scenery",
			descriptors: []ImageDescriptor{
				{URI: "a", HasPerson: true, Vector: make([]float32, PoseVectorLen), DateTaken: 0},
				histogramDescriptor("b", 1000, 1, 1, 1),
			},
			expected: []DuplicateGroup{},
		},
		{
			name: "three photos, two similar pairs",
			descriptors: []ImageDescriptor{
				histogramDescriptor("a", 0, 1, 0, 0),
				histogramDescriptor("b", 1000, 0, 1, 0),
				histogramDescriptor("c", 2000, 1, 0, 0),
				histogramDescriptor("d", 3000, 0, 1, 0),
				histogramDescriptor("e", 4000, 0, 0, 1),
			},
			expected: []DuplicateGroup{{"a", "c"}, {"b", "d"}},
		},
		{
			name: "grouping is anchored on the earliest member",
			descriptors: []ImageDescriptor{
				// a~b and b~c pass, a~c does not: c is compared only to a.
				histogramDescriptor("a", 0, 1, 0),
				histogramDescriptor("b", 1000, 1, 0.08),
				histogramDescriptor("c", 2000, 1, 0.16),
			},
			expected: []DuplicateGroup{{"a", "b"}},
		},
		{
			name: "equal timestamps keep input order",
			descriptors: []ImageDescriptor{
				histogramDescriptor("x", 5000, 1, 1, 1),
				histogramDescriptor("y", 5000, 1, 1, 1),
				histogramDescriptor("z", 5000, 1, 1, 1),
			},
			expected: []DuplicateGroup{{"x", "y", "z"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := FindGroups(tt.descriptors)
			if !reflect.DeepEqual(result, tt.expected) {
				t.Errorf("FindGroups() = %v, want %v", result, tt.expected)
			}
		})
	}
}

func TestFindGroupsBurst(t *testing.T) {
	// Three near-identical shots of a cat at t=0, 2s, 5s and an unrelated
	// landscape at t=3s.
	cat := func(uri string, at int64) ImageDescriptor {
		return histogramDescriptor(uri, at, 0.5, 0.4, 0.3, 0.2, 0.1)
	}
	descriptors := []ImageDescriptor{
		cat("cat3", 5000),
		histogramDescriptor("landscape", 3000, 0.1, 0.2, 0.9, 0.9, 0.9),
		cat("cat2", 2000),
		cat("cat1", 0),
	}

	result := FindGroups(descriptors)
	expected := []DuplicateGroup{{"cat1", "cat2", "cat3"}}
	if !reflect.DeepEqual(result, expected) {
		t.Errorf("FindGroups() = %v, want %v", result, expected)
	}
}

func TestFindGroupsDoesNotModifyInput(t *testing.T) {
	descriptors := []ImageDescriptor{
		histogramDescriptor("b", 2000, 1, 1, 1),
		histogramDescriptor("a", 1000, 1, 1, 1),
	}
	FindGroups(descriptors)

	if descriptors[0].URI != "b" || descriptors[1].URI != "a" {
		t.Errorf("input order changed: %s, %s", descriptors[0].URI, descriptors[1].URI)
	}
}

func TestFindGroupsDeterministic(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	descriptors := make([]ImageDescriptor, 200)
	for i := range descriptors {
		v := float32(rng.IntN(4))
		descriptors[i] = histogramDescriptor(uriFor(i), int64(rng.IntN(3_600_000)), 1, v, 1-v/4)
	}

	first := FindGroups(descriptors)
	for range 5 {
		if again := FindGroups(descriptors); !reflect.DeepEqual(first, again) {
			t.Fatalf("FindGroups is not deterministic")
		}
	}
}

func TestFindGroupsInvariants(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 11))
	descriptors := make([]ImageDescriptor, 150)
	byURI := make(map[string]ImageDescriptor, len(descriptors))
	for i := range descriptors {
		v := float32(rng.IntN(3))
		descriptors[i] = histogramDescriptor(uriFor(i), int64(rng.IntN(1_800_000)), 1, v, 2-v)
		byURI[descriptors[i].URI] = descriptors[i]
	}

	c := NewClusterer()
	groups := c.FindGroups(descriptors)

	seen := make(map[string]bool)
	for _, g := range groups {
		if len(g) < 2 {
			t.Errorf("group %v has fewer than 2 members", g)
		}
		head := byURI[g[0]]
		for i, uri := range g {
			if seen[uri] {
				t.Errorf("%s appears in more than one group", uri)
			}
			seen[uri] = true

			member := byURI[uri]
			if i == 0 {
				continue
			}
			if member.DateTaken < head.DateTaken {
				t.Errorf("member %s taken before group head %s", uri, g[0])
			}
			if member.DateTaken-head.DateTaken > c.TimeWindowMillis {
				t.Errorf("member %s outside time window of %s", uri, g[0])
			}
			if s := c.Scorer.Similarity(head, member); s < c.Threshold {
				t.Errorf("member %s similarity %v below threshold", uri, s)
			}
		}
	}
}
