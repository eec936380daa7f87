// Package keyframe selects representative frames for a shot by clustering
// its feature vectors and picking the member nearest each cluster centroid.
package keyframe

import (
	"sort"

	"gonum.org/v1/gonum/floats"

	"github.com/duongtq7/CapstoneProject/internal/core/cluster"
)

const DefaultMinClusterSize = 60

type Selector struct {
	minClusterSize int
	clusterer      cluster.Clusterer
}

// NewSelector builds a selector clustering with HDBSCAN at the given minimum
// cluster size (minSamples fixed at 1). Non-positive size falls back to the
// default.
func NewSelector(minClusterSize int) *Selector {
	if minClusterSize <= 0 {
		minClusterSize = DefaultMinClusterSize
	}
	return &Selector{
		minClusterSize: minClusterSize,
		clusterer: cluster.NewHDBSCAN(cluster.Options{
			MinClusterSize: minClusterSize,
			MinSamples:     1,
		}),
	}
}

// NewSelectorWithClusterer is NewSelector with an injected clusterer.
func NewSelectorWithClusterer(minClusterSize int, c cluster.Clusterer) *Selector {
	s := NewSelector(minClusterSize)
	s.clusterer = c
	return s
}

// Select returns the ascending, duplicate-free global frame indices chosen to
// represent one shot.
//
// Shots shorter than the minimum cluster size are too small to cluster
// reliably and are treated as a single cluster, as is a shot where every
// frame comes back as noise. A shot that reduces to exactly one noise-free
// cluster (or a single frame) is represented by its first frame without a
// centroid computation. Otherwise each cluster contributes the member nearest
// its centroid, ties going to the lowest frame index.
func (s *Selector) Select(frameIndices []int, features [][]float32) []int {
	n := len(frameIndices)
	if n == 0 {
		return []int{}
	}

	var labels []int
	if n < s.minClusterSize {
		labels = make([]int, n)
	} else {
		labels = s.clusterer.Labels(features)
		if allNoise(labels) {
			labels = make([]int, n)
		}
	}

	clusters := distinctLabels(labels)
	if n == 1 || (len(clusters) == 1 && !hasNoise(labels)) {
		return []int{frameIndices[0]}
	}

	selected := make([]int, 0, len(clusters))
	for _, lab := range clusters {
		members := make([]int, 0, n)
		for i, l := range labels {
			if l == lab {
				members = append(members, i)
			}
		}
		selected = append(selected, frameIndices[nearestToCentroid(features, members)])
	}

	sort.Ints(selected)
	return selected
}

// nearestToCentroid returns the member position whose vector is closest in
// Euclidean distance to the members' mean; the first (lowest index) wins ties.
func nearestToCentroid(features [][]float32, members []int) int {
	dim := len(features[members[0]])
	centroid := make([]float64, dim)
	vec := make([]float64, dim)
	for _, m := range members {
		for j, x := range features[m] {
			vec[j] = float64(x)
		}
		floats.Add(centroid, vec)
	}
	floats.Scale(1/float64(len(members)), centroid)

	best := members[0]
	bestDist := 0.0
	for i, m := range members {
		for j, x := range features[m] {
			vec[j] = float64(x)
		}
		d := floats.Distance(vec, centroid, 2)
		if i == 0 || d < bestDist {
			best = m
			bestDist = d
		}
	}
	return best
}

func allNoise(labels []int) bool {
	for _, l := range labels {
		if l != cluster.Noise {
			return false
		}
	}
	return true
}

func hasNoise(labels []int) bool {
	for _, l := range labels {
		if l == cluster.Noise {
			return true
		}
	}
	return false
}

// distinctLabels returns the sorted distinct non-noise labels.
func distinctLabels(labels []int) []int {
	seen := map[int]bool{}
	out := []int{}
	for _, l := range labels {
		if l != cluster.Noise && !seen[l] {
			seen[l] = true
			out = append(out, l)
		}
	}
	sort.Ints(out)
	return out
}
