package roadgraph

import (
	"testing"

	"github.com/streetmap/roadcore/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// buildTestIndex lays out a simple three-way intersection plus two disjoint
// two-node streets with no connection to the rest of the graph: segment 0
// runs east into node 1, segment 1 continues east out of node 1 (same
// street, straight through), segment 2 turns south out of node 1 onto a
// different street, segment 3 sits on Main St but out at nodes 4-5 (same
// StreetID as segment 0, no shared endpoint), and segment 4 is its own,
// wholly unrelated street out at nodes 6-7 (different StreetID, no shared
// endpoint).
//
//	0 --seg0--> 1 --seg1--> 2           4 --seg3--> 5           6 --seg4--> 7
//	            |
//	          seg2
//	            v
//	            3
func buildTestIndex() *Index {
	positions := []models.Point{
		{Lat: 0, Lon: 0},
		{Lat: 0, Lon: 1},
		{Lat: 0, Lon: 2},
		{Lat: -1, Lon: 1},
		{Lat: 5, Lon: 5},
		{Lat: 5, Lon: 6},
		{Lat: 9, Lon: 9},
		{Lat: 9, Lon: 10},
	}
	segments := []models.Segment{
		{From: 0, To: 1, StreetID: 0, LengthM: 1000, TimeSec: 60, SpeedMS: 16.6},
		{From: 1, To: 2, StreetID: 0, LengthM: 1000, TimeSec: 60, SpeedMS: 16.6},
		{From: 1, To: 3, StreetID: 1, LengthM: 1000, TimeSec: 60, SpeedMS: 16.6},
		{From: 4, To: 5, StreetID: 0, LengthM: 1000, TimeSec: 60, SpeedMS: 16.6},
		{From: 6, To: 7, StreetID: 2, LengthM: 1000, TimeSec: 60, SpeedMS: 16.6},
	}
	intersections := make([]models.Intersection, len(positions))
	for i, p := range positions {
		intersections[i] = models.Intersection{Position: p}
	}
	intersections[0].Outgoing = []models.OutgoingEdge{{Target: 1, SegmentID: 0, TimeSec: 60}}
	intersections[1].Outgoing = []models.OutgoingEdge{
		{Target: 2, SegmentID: 1, TimeSec: 60},
		{Target: 3, SegmentID: 2, TimeSec: 60},
	}
	intersections[4].Outgoing = []models.OutgoingEdge{{Target: 5, SegmentID: 3, TimeSec: 60}}
	intersections[6].Outgoing = []models.OutgoingEdge{{Target: 7, SegmentID: 4, TimeSec: 60}}

	streets := []models.Street{
		{Name: "Main St", SegmentIDs: []int32{0, 1, 3}, Intersections: map[int32]struct{}{0: {}, 1: {}, 2: {}, 4: {}, 5: {}}, LengthM: 3000},
		{Name: "Side St", SegmentIDs: []int32{2}, Intersections: map[int32]struct{}{1: {}, 3: {}}, LengthM: 1000},
		{Name: "Far St", SegmentIDs: []int32{4}, Intersections: map[int32]struct{}{6: {}, 7: {}}, LengthM: 1000},
	}

	trie := newNameTrie()
	trie.Insert("Main St", 0)
	trie.Insert("Side St", 1)
	trie.Insert("Far St", 2)

	return &Index{
		Intersections: intersections,
		Segments:      segments,
		Streets:       streets,
		trie:          trie,
		maxSpeedMS:    16.6,
		referenceLat:  0,
	}
}

func TestIndexBasics(t *testing.T) {
	idx := buildTestIndex()

	assert.EqualValues(t, 8, idx.NumIntersections())
	assert.EqualValues(t, 5, idx.NumSegments())
	assert.EqualValues(t, 3, idx.NumStreets())

	assert.True(t, idx.Connected(0, 1))
	assert.False(t, idx.Connected(0, 2))
	assert.True(t, idx.Connected(1, 1))

	adj := idx.Adjacent(1)
	assert.ElementsMatch(t, []int32{2, 3}, adj)
}

func TestTurnTypeStraightThrough(t *testing.T) {
	idx := buildTestIndex()
	// segments 0 and 1 are the same street: always STRAIGHT
	assert.Equal(t, models.TurnStraight, idx.TurnType(0, 1))
}

func TestTurnTypeNoSharedEndpoint(t *testing.T) {
	idx := buildTestIndex()
	// segment 0 (Main St) and segment 4 (Far St) share no endpoint and are
	// on different streets: no turn relationship exists between them.
	assert.Equal(t, models.TurnNone, idx.TurnType(0, 4))
}

func TestTurnTypeSameStreetNoSharedEndpoint(t *testing.T) {
	idx := buildTestIndex()
	// segment 0 and segment 3 are both on Main St but don't touch: a
	// same-street pair is always STRAIGHT regardless of adjacency.
	assert.Equal(t, models.TurnStraight, idx.TurnType(0, 3))
}

func TestTurnTypeDivergingStreet(t *testing.T) {
	idx := buildTestIndex()
	// segment 0 arrives heading east; segment 2 heads south. Turning from
	// east into south is a right turn.
	got := idx.TurnType(0, 2)
	assert.Equal(t, models.TurnRight, got)
}

func TestFindStreetsByPrefix(t *testing.T) {
	idx := buildTestIndex()
	got := idx.FindStreetsByPrefix("Ma")
	require.NotEmpty(t, got)
	assert.Contains(t, got, int32(0))

	assert.Nil(t, idx.FindStreetsByPrefix(""))
	assert.Nil(t, idx.FindStreetsByPrefix("Zzz"))
}

func TestIntersectionOf(t *testing.T) {
	idx := buildTestIndex()
	got := idx.IntersectionOf(0, 1)
	assert.Equal(t, []int32{1}, got)
}

func TestClosestIntersection(t *testing.T) {
	idx := buildTestIndex()
	got, ok := idx.ClosestIntersection(models.Point{Lat: 0, Lon: 0.1})
	require.True(t, ok)
	assert.EqualValues(t, 0, got)
}
