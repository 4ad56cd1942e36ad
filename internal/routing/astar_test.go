package routing

import (
	"container/heap"
	"context"
	"math"
	"testing"

	"github.com/streetmap/roadcore/internal/models"
	"github.com/streetmap/roadcore/internal/roadgraph"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// turnIndex builds a minimal three-node index for exercising TurnType-aware
// relaxation: segment 0 heads east into node 1, segment 1 turns south out
// of node 1 onto a different street — the same geometry that classifies as
// a right turn in the roadgraph package's own tests.
func turnIndex() *roadgraph.Index {
	return &roadgraph.Index{
		Intersections: []models.Intersection{
			{Position: models.Point{Lat: 0, Lon: 0}},
			{Position: models.Point{Lat: 0, Lon: 1}},
			{Position: models.Point{Lat: -1, Lon: 1}},
		},
		Segments: []models.Segment{
			{From: 0, To: 1, StreetID: 0, TimeSec: 60},
			{From: 1, To: 2, StreetID: 1, TimeSec: 60},
		},
	}
}

func TestRelaxForbidsImmediateUTurn(t *testing.T) {
	r := &Router{idx: turnIndex()}
	sc := newScratch(3)
	sc.bestTime[1] = 60
	sc.reachingEdge[1] = 0 // arrived at node 1 via segment 0

	open := &priorityQueue{}
	heap.Init(open)
	heuristic := func(int32) float64 { return 0 }

	// same segment back the way we came: forbidden regardless of cost
	out := models.OutgoingEdge{Target: 0, SegmentID: 0, TimeSec: 10}
	r.relax(sc, 1, out, 0, 0, open, heuristic)

	assert.True(t, math.IsInf(sc.bestTime[0], 1))
	assert.Equal(t, 0, open.Len())
}

func TestRelaxAppliesTurnPenalty(t *testing.T) {
	r := &Router{idx: turnIndex()}
	sc := newScratch(3)
	sc.bestTime[1] = 60
	sc.reachingEdge[1] = 0

	open := &priorityQueue{}
	heap.Init(open)
	heuristic := func(int32) float64 { return 0 }

	out := models.OutgoingEdge{Target: 2, SegmentID: 1, TimeSec: 60}
	r.relax(sc, 1, out, 5, 2, open, heuristic) // rightPenalty=5, leftPenalty=2

	require.False(t, math.IsInf(sc.bestTime[2], 1))
	assert.Equal(t, 60.0+60.0+5.0, sc.bestTime[2]) // straight-east-to-south is a right turn
	assert.EqualValues(t, 1, sc.reachingEdge[2])
	require.Equal(t, 1, open.Len())
}

func TestRelaxKeepsBetterOfTwoCandidates(t *testing.T) {
	r := &Router{idx: turnIndex()}
	sc := newScratch(3)
	sc.bestTime[1] = 100
	sc.reachingEdge[1] = noEdge

	open := &priorityQueue{}
	heap.Init(open)
	heuristic := func(int32) float64 { return 0 }

	worse := models.OutgoingEdge{Target: 2, SegmentID: 1, TimeSec: 50}
	r.relax(sc, 1, worse, 0, 0, open, heuristic)
	assert.Equal(t, 150.0, sc.bestTime[2])

	// a later, cheaper arrival from the same node must overwrite it
	sc.bestTime[1] = 10
	better := models.OutgoingEdge{Target: 2, SegmentID: 1, TimeSec: 50}
	r.relax(sc, 1, better, 0, 0, open, heuristic)
	assert.Equal(t, 60.0, sc.bestTime[2])

	// a candidate no better than the current best must be dropped
	sc.bestTime[1] = 100
	r.relax(sc, 1, worse, 0, 0, open, heuristic)
	assert.Equal(t, 60.0, sc.bestTime[2])
}

// lineGraph builds a graph where node 1 is first reached by a slow direct
// edge from node 0, then re-reached more cheaply via a detour through node
// 2, and the true shortest path to node 3 requires discovering that the
// slow queue entry for node 1 has gone stale. FindPath must pop and
// discard it rather than trust it.
func lineGraph() *roadgraph.Index {
	idx := &roadgraph.Index{
		Intersections: []models.Intersection{
			{Position: models.Point{Lat: 0, Lon: 0}},
			{Position: models.Point{Lat: 0, Lon: 1}},
			{Position: models.Point{Lat: 0, Lon: 2}},
			{Position: models.Point{Lat: 0, Lon: 3}},
		},
		Segments: []models.Segment{
			{From: 0, To: 1, StreetID: 0, TimeSec: 100}, // 0 -> 1, slow direct
			{From: 0, To: 2, StreetID: 1, TimeSec: 1},    // 0 -> 2
			{From: 2, To: 1, StreetID: 2, TimeSec: 1},    // 2 -> 1, cheap detour
			{From: 1, To: 3, StreetID: 3, TimeSec: 99},   // 1 -> 3
		},
	}
	idx.Intersections[0].Outgoing = []models.OutgoingEdge{
		{Target: 1, SegmentID: 0, TimeSec: 100},
		{Target: 2, SegmentID: 1, TimeSec: 1},
	}
	idx.Intersections[1].Outgoing = []models.OutgoingEdge{{Target: 3, SegmentID: 3, TimeSec: 99}}
	idx.Intersections[2].Outgoing = []models.OutgoingEdge{{Target: 1, SegmentID: 2, TimeSec: 1}}
	return idx
}

func TestFindPathSkipsStaleQueueEntries(t *testing.T) {
	r := NewRouter(lineGraph())
	path, err := r.FindPath(context.Background(), 0, 3, 0, 0)
	require.NoError(t, err)
	// 0->2 (seg 1), 2->1 (seg 2), 1->3 (seg 3): the detour, not the slow
	// direct edge whose queue entry goes stale once the detour improves
	// node 1's best time.
	assert.Equal(t, []int32{1, 2, 3}, path)
}

func TestFindPathSameStartEnd(t *testing.T) {
	r := NewRouter(lineGraph())
	path, err := r.FindPath(context.Background(), 0, 0, 0, 0)
	require.NoError(t, err)
	assert.Empty(t, path)
}

func TestFindPathNoRoute(t *testing.T) {
	idx := &roadgraph.Index{
		Intersections: []models.Intersection{{}, {}},
		Segments:      []models.Segment{},
	}
	r := NewRouter(idx)
	path, err := r.FindPath(context.Background(), 0, 1, 0, 0)
	require.NoError(t, err)
	assert.Empty(t, path)
}

func TestFindPathCancelledContext(t *testing.T) {
	r := NewRouter(lineGraph())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := r.FindPath(ctx, 0, 3, 0, 0)
	assert.Error(t, err)
}
