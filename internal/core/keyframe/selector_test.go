package keyframe

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/duongtq7/CapstoneProject/internal/core/cluster"
)

// fixedClusterer returns canned labels and records whether it ran.
type fixedClusterer struct {
	labels []int
	called bool
}

func (f *fixedClusterer) Labels(_ [][]float32) []int {
	f.called = true
	return f.labels
}

func vectors1D(values ...float32) [][]float32 {
	out := make([][]float32, len(values))
	for i, v := range values {
		out[i] = []float32{v}
	}
	return out
}

func indicesFrom(start, n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = start + i
	}
	return out
}

func TestSelectEmptyShot(t *testing.T) {
	s := NewSelector(0)
	assert.Empty(t, s.Select(nil, nil))
}

func TestSelectSingleFrame(t *testing.T) {
	s := NewSelector(0)
	assert.Equal(t, []int{42}, s.Select([]int{42}, vectors1D(7)))
}

func TestSelectShotBelowMinClusterSizeSkipsClustering(t *testing.T) {
	fc := &fixedClusterer{}
	s := NewSelectorWithClusterer(60, fc)

	got := s.Select(indicesFrom(30, 10), vectors1D(0, 1, 2, 3, 4, 5, 6, 7, 8, 9))
	assert.Equal(t, []int{30}, got, "small shot is one cluster, first frame wins")
	assert.False(t, fc.called, "clustering below min cluster size is unreliable")
}

func TestSelectAllNoiseFallsBackToFirstFrame(t *testing.T) {
	fc := &fixedClusterer{labels: []int{-1, -1, -1, -1}}
	s := NewSelectorWithClusterer(4, fc)

	got := s.Select(indicesFrom(100, 4), vectors1D(0, 50, 100, 150))
	assert.Equal(t, []int{100}, got)
	assert.True(t, fc.called)
}

func TestSelectNoiseFreeSingleClusterShortcut(t *testing.T) {
	fc := &fixedClusterer{labels: []int{0, 0, 0, 0}}
	s := NewSelectorWithClusterer(4, fc)

	// First frame, not the centroid-nearest member.
	got := s.Select(indicesFrom(10, 4), vectors1D(0, 5, 5, 5))
	assert.Equal(t, []int{10}, got)
}

func TestSelectSingleClusterWithNoiseUsesCentroid(t *testing.T) {
	// One cluster plus noise does not take the first-frame shortcut: the
	// representative is the member nearest the cluster mean.
	fc := &fixedClusterer{labels: []int{0, 0, 0, -1}}
	s := NewSelectorWithClusterer(4, fc)

	// Members 0,10,4 -> centroid 14/3, nearest member is 4 (index 102).
	got := s.Select(indicesFrom(100, 4), vectors1D(0, 10, 4, 900))
	assert.Equal(t, []int{102}, got)
}

func TestSelectOneKeyframePerCluster(t *testing.T) {
	fc := &fixedClusterer{labels: []int{0, 0, 0, 1, 1, 1, 2, 2, 2}}
	s := NewSelectorWithClusterer(3, fc)

	// Cluster 0: 0,2,10 -> centroid 4, nearest 2 (idx 201).
	// Cluster 1: 100,104,120 -> centroid 108, nearest 104 (idx 204).
	// Cluster 2: 300,301,330 -> centroid ~310.3, nearest 301 (idx 207).
	got := s.Select(indicesFrom(200, 9), vectors1D(0, 2, 10, 100, 104, 120, 300, 301, 330))
	require.Equal(t, []int{201, 204, 207}, got)

	// Strictly increasing, duplicate-free.
	for i := 1; i < len(got); i++ {
		assert.Greater(t, got[i], got[i-1])
	}
}

func TestSelectCentroidTieBreaksToLowestIndex(t *testing.T) {
	fc := &fixedClusterer{labels: []int{0, 0, 1, 1}}
	s := NewSelectorWithClusterer(2, fc)

	// Cluster 0 members 1 and 3 are equidistant from centroid 2.
	got := s.Select([]int{50, 51, 60, 61}, vectors1D(1, 3, 100, 102))
	assert.Equal(t, []int{50, 60}, got)
}

func TestSelectUsesRealClustererEndToEnd(t *testing.T) {
	// Two tight groups of 5, min cluster size 4: HDBSCAN splits them and each
	// contributes its centroid-nearest member.
	vals := vectors1D(0, 0.1, 0.2, 0.3, 0.4, 100, 100.1, 100.2, 100.3, 100.4)
	s := NewSelector(4)
	got := s.Select(indicesFrom(0, 10), vals)
	assert.Equal(t, []int{2, 7}, got)
}

func TestNewSelectorDefault(t *testing.T) {
	s := NewSelector(0)
	assert.Equal(t, DefaultMinClusterSize, s.minClusterSize)
	assert.IsType(t, &cluster.HDBSCAN{}, s.clusterer)
}
