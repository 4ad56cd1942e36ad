package roadgraph

import (
	"context"
	"testing"

	"github.com/streetmap/roadcore/internal/streetdb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeReader backs streetdb.Reader with an in-memory fixture: a one-way
// segment 0->1 followed by a bidirectional segment 1->2, both on the same
// street. No curve points and no POIs, so Build's curve-point and POI
// passes are no-ops.
type fakeReader struct {
	positions [][2]float64 // lat, lon
	segments  []streetdb.SegmentInfo
	streetIDs [][]int32 // per-intersection, the segment ids touching it
	names     []string
}

func (f *fakeReader) NumIntersections(context.Context) (int32, error) { return int32(len(f.positions)), nil }
func (f *fakeReader) NumStreetSegments(context.Context) (int32, error) { return int32(len(f.segments)), nil }
func (f *fakeReader) NumStreets(context.Context) (int32, error)        { return int32(len(f.names)), nil }
func (f *fakeReader) NumPointsOfInterest(context.Context) (int32, error) { return 0, nil }

func (f *fakeReader) IntersectionPosition(_ context.Context, i int32) (float64, float64, error) {
	return f.positions[i][0], f.positions[i][1], nil
}
func (f *fakeReader) IntersectionName(context.Context, int32) (string, error) { return "", nil }
func (f *fakeReader) IntersectionStreetSegmentCount(_ context.Context, i int32) (int, error) {
	return len(f.streetIDs[i]), nil
}
func (f *fakeReader) IntersectionStreetSegment(_ context.Context, k int, i int32) (int32, error) {
	return f.streetIDs[i][k], nil
}

func (f *fakeReader) InfoStreetSegment(_ context.Context, s int32) (streetdb.SegmentInfo, error) {
	return f.segments[s], nil
}
func (f *fakeReader) StreetSegmentCurvePoint(context.Context, int, int32) (float64, float64, error) {
	return 0, 0, nil
}
func (f *fakeReader) StreetName(_ context.Context, street int32) (string, error) {
	return f.names[street], nil
}

func (f *fakeReader) PointOfInterestPosition(context.Context, int32) (float64, float64, error) {
	return 0, 0, nil
}
func (f *fakeReader) PointOfInterestName(context.Context, int32) (string, error) { return "", nil }
func (f *fakeReader) PointOfInterestType(context.Context, int32) (string, error) { return "", nil }

func (f *fakeReader) Close() error { return nil }

func oneWayThenTwoWayReader() *fakeReader {
	return &fakeReader{
		positions: [][2]float64{{0, 0}, {0, 0.01}, {0, 0.02}},
		segments: []streetdb.SegmentInfo{
			{From: 0, To: 1, OneWay: true, StreetID: 0, SpeedLimitKMH: 36},
			{From: 1, To: 2, OneWay: false, StreetID: 0, SpeedLimitKMH: 36},
		},
		streetIDs: [][]int32{
			{0},    // intersection 0 touches segment 0
			{0, 1}, // intersection 1 touches both
			{1},    // intersection 2 touches segment 1
		},
		names: []string{"Main St"},
	}
}

func TestBuildOneWayOmitsReverseEdge(t *testing.T) {
	idx, err := Build(context.Background(), oneWayThenTwoWayReader())
	require.NoError(t, err)

	assert.EqualValues(t, 3, idx.NumIntersections())
	assert.EqualValues(t, 2, idx.NumSegments())

	// segment 0 is one-way: only the forward 0->1 edge exists, node 1 gets
	// no edge back over it.
	out0 := idx.Outgoing(0)
	require.Len(t, out0, 1)
	assert.EqualValues(t, 1, out0[0].Target)
	assert.EqualValues(t, 0, out0[0].SegmentID)

	out1 := idx.Outgoing(1)
	require.Len(t, out1, 1)
	assert.EqualValues(t, 2, out1[0].Target)
	assert.EqualValues(t, 1, out1[0].SegmentID)

	// segment 1 is bidirectional: node 2 gets an edge back to node 1.
	out2 := idx.Outgoing(2)
	require.Len(t, out2, 1)
	assert.EqualValues(t, 1, out2[0].Target)
	assert.EqualValues(t, 1, out2[0].SegmentID)
}

func TestBuildAccumulatesStreetLengthOnce(t *testing.T) {
	idx, err := Build(context.Background(), oneWayThenTwoWayReader())
	require.NoError(t, err)

	segIDs := idx.StreetSegments(0)
	assert.ElementsMatch(t, []int32{0, 1}, segIDs)

	want := idx.SegmentLength(0) + idx.SegmentLength(1)
	assert.Equal(t, want, idx.Streets[0].LengthM)
}
