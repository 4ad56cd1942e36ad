package routing

import (
	"testing"

	"github.com/streetmap/roadcore/internal/models"
	"github.com/streetmap/roadcore/internal/roadgraph"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// twoComponentGraph lays out two disjoint chains, each seeded from its own
// source: 0 -> 1 -> 2 (segments 0,1) and 10 -> 11 -> 12 (segments 2,3).
// Node 20 has no edges at all and is never reachable from either source.
func twoComponentGraph() *roadgraph.Index {
	intersections := make([]models.Intersection, 21)
	intersections[0].Outgoing = []models.OutgoingEdge{{Target: 1, SegmentID: 0, TimeSec: 10}}
	intersections[1].Outgoing = []models.OutgoingEdge{{Target: 2, SegmentID: 1, TimeSec: 10}}
	intersections[10].Outgoing = []models.OutgoingEdge{{Target: 11, SegmentID: 2, TimeSec: 5}}
	intersections[11].Outgoing = []models.OutgoingEdge{{Target: 12, SegmentID: 3, TimeSec: 5}}

	return &roadgraph.Index{
		Intersections: intersections,
		Segments: []models.Segment{
			{From: 0, To: 1, StreetID: 0, TimeSec: 10},
			{From: 1, To: 2, StreetID: 0, TimeSec: 10},
			{From: 10, To: 11, StreetID: 1, TimeSec: 5},
			{From: 11, To: 12, StreetID: 1, TimeSec: 5},
		},
	}
}

func TestMultiSourcePathsPerSourceResults(t *testing.T) {
	idx := twoComponentGraph()
	results := MultiSourcePaths(idx, []int32{0, 10}, []int32{2, 12}, 0, 0)

	require.Contains(t, results, int32(2))
	got2 := results[2]
	assert.EqualValues(t, 0, got2.Source)
	assert.Equal(t, []int32{0, 1}, got2.Segments)
	assert.Equal(t, 20.0, got2.TimeSec)

	require.Contains(t, results, int32(12))
	got12 := results[12]
	assert.EqualValues(t, 10, got12.Source)
	assert.Equal(t, []int32{2, 3}, got12.Segments)
	assert.Equal(t, 10.0, got12.TimeSec)
}

func TestMultiSourcePathsUnreachableDestinationOmitted(t *testing.T) {
	idx := twoComponentGraph()
	results := MultiSourcePaths(idx, []int32{0}, []int32{2, 20}, 0, 0)

	assert.Contains(t, results, int32(2))
	assert.NotContains(t, results, int32(20))
}

func TestMultiSourcePathsTerminatesOnceDestinationsSettled(t *testing.T) {
	idx := twoComponentGraph()
	// destination 1 settles well before the search would otherwise reach
	// node 2 or the second component at all; only 1 should be present.
	results := MultiSourcePaths(idx, []int32{0}, []int32{1}, 0, 0)

	require.Contains(t, results, int32(1))
	assert.Equal(t, []int32{0}, results[1].Segments)
	assert.Len(t, results, 1)
}

func TestTracebackFromNoPath(t *testing.T) {
	idx := twoComponentGraph()
	reachingEdge := make([]int32, len(idx.Intersections))
	for i := range reachingEdge {
		reachingEdge[i] = noEdge
	}
	got := tracebackFrom(idx, reachingEdge, 0, 5)
	assert.Empty(t, got)
}
