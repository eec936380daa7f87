// Package shot partitions a video's frame range into contiguous shots.
package shot

import "github.com/duongtq7/CapstoneProject/internal/domain/entity"

// Segment converts sorted boundary indices into half-open shot ranges
// covering [0, totalFrameCount) exactly once. The sentinels 0 and
// totalFrameCount are added here, so a boundary equal to 0 produces a
// zero-length leading shot; callers skip empty shots.
func Segment(boundaries []int, totalFrameCount int) []entity.Shot {
	edges := make([]int, 0, len(boundaries)+2)
	edges = append(edges, 0)
	edges = append(edges, boundaries...)
	edges = append(edges, totalFrameCount)

	shots := make([]entity.Shot, 0, len(edges)-1)
	for i := 0; i < len(edges)-1; i++ {
		shots = append(shots, entity.Shot{Start: edges[i], End: edges[i+1]})
	}
	return shots
}
