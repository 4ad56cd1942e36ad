package courier

import (
	"testing"

	"github.com/streetmap/roadcore/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// gridTable builds a symmetric distance table over nodes, taking the cost
// between a and b from costs (in either key order); pairs missing from
// costs get no entry, so they read as unreachable.
func gridTable(nodes []int32, costs map[[2]int32]float64) distTable {
	T := make(distTable, len(nodes))
	for _, a := range nodes {
		T[a] = make(map[int32]distEntry)
		for _, b := range nodes {
			if a == b {
				continue
			}
			c, ok := costs[[2]int32{a, b}]
			if !ok {
				c, ok = costs[[2]int32{b, a}]
			}
			if !ok {
				continue
			}
			T[a][b] = distEntry{TimeSec: c, Segments: []int32{a*100 + b}}
		}
	}
	return T
}

func TestSequenceFeasible(t *testing.T) {
	deliveries := []models.Delivery{
		{Pickup: 1, Dropoff: 2, Weight: 5},
		{Pickup: 3, Dropoff: 4, Weight: 5},
	}

	t.Run("pickup before dropoff is feasible under capacity", func(t *testing.T) {
		stops := []stopRef{
			{deliveryIdx: 0, pickup: true},
			{deliveryIdx: 0, pickup: false},
			{deliveryIdx: 1, pickup: true},
			{deliveryIdx: 1, pickup: false},
		}
		assert.True(t, sequenceFeasible(deliveries, stops, 10))
	})

	t.Run("dropoff before pickup is infeasible", func(t *testing.T) {
		stops := []stopRef{
			{deliveryIdx: 0, pickup: false},
			{deliveryIdx: 0, pickup: true},
		}
		assert.False(t, sequenceFeasible(deliveries, stops, 10))
	})

	t.Run("exceeding capacity is infeasible", func(t *testing.T) {
		stops := []stopRef{
			{deliveryIdx: 0, pickup: true},
			{deliveryIdx: 1, pickup: true},
			{deliveryIdx: 0, pickup: false},
			{deliveryIdx: 1, pickup: false},
		}
		assert.False(t, sequenceFeasible(deliveries, stops, 9))
		assert.True(t, sequenceFeasible(deliveries, stops, 10))
	})
}

func TestBuildSeedDropoffWinsTies(t *testing.T) {
	deliveries := []models.Delivery{
		{Pickup: 0, Dropoff: 1, Weight: 1},
		{Pickup: 2, Dropoff: 3, Weight: 1},
	}
	// From node 0 (pickup of delivery 0), the dropoff of delivery 0 (node 1)
	// and the pickup of delivery 1 (node 2) are both 0 away: the tie must
	// go to the dropoff. Had the pickup won, the seed would continue
	// P0, P1, D1, D0 instead.
	T := gridTable([]int32{0, 1, 2, 3}, map[[2]int32]float64{
		{0, 1}: 0,
		{0, 2}: 0,
		{1, 2}: 5,
		{2, 3}: 0,
	})

	seed, ok := buildSeed(deliveries, 0, T, 10)
	require.True(t, ok)
	assert.Equal(t, []stopRef{
		{deliveryIdx: 0, pickup: true},
		{deliveryIdx: 0, pickup: false},
		{deliveryIdx: 1, pickup: true},
		{deliveryIdx: 1, pickup: false},
	}, seed)
}

func TestBuildSeedInfeasibleWhenUnreachable(t *testing.T) {
	deliveries := []models.Delivery{
		{Pickup: 0, Dropoff: 1, Weight: 1},
		{Pickup: 2, Dropoff: 3, Weight: 1},
	}
	// no edges at all in T: nothing is reachable
	T := make(distTable)
	_, ok := buildSeed(deliveries, 0, T, 10)
	assert.False(t, ok)
}

func TestSequenceCost(t *testing.T) {
	deliveries := []models.Delivery{
		{Pickup: 0, Dropoff: 1, Weight: 1},
	}
	T := gridTable([]int32{0, 1}, map[[2]int32]float64{{0, 1}: 42})
	stops := []stopRef{
		{deliveryIdx: 0, pickup: true},
		{deliveryIdx: 0, pickup: false},
	}
	cost, ok := sequenceCost(stops, deliveries, T)
	require.True(t, ok)
	assert.Equal(t, 42.0, cost)
}

func TestAttachDepots(t *testing.T) {
	deliveries := []models.Delivery{
		{Pickup: 10, Dropoff: 11, Weight: 1},
	}
	depots := []models.Depot{20, 21}
	stops := []stopRef{
		{deliveryIdx: 0, pickup: true},
		{deliveryIdx: 0, pickup: false},
	}
	T := gridTable([]int32{10, 11, 20, 21}, map[[2]int32]float64{
		{10, 11}: 30,
		{11, 20}: 100,
		{11, 21}: 5,
	})
	TDepot := map[int32]depotEntry{
		10: {StartDepot: 20, TimeSec: 7, Segments: []int32{999}},
	}

	elements, cost, ok := attachDepots(stops, deliveries, depots, T, TDepot)
	require.True(t, ok)
	require.Len(t, elements, 3)

	assert.EqualValues(t, 20, elements[0].Start)
	assert.EqualValues(t, 10, elements[0].End)

	assert.EqualValues(t, 10, elements[1].Start)
	assert.EqualValues(t, 11, elements[1].End)
	assert.Equal(t, []int{0}, elements[1].PickupIndices)

	assert.EqualValues(t, 11, elements[2].Start)
	assert.EqualValues(t, 21, elements[2].End) // cheaper depot wins over 20
	assert.Equal(t, 7.0+30.0+5.0, cost)
}

func TestAttachDepotsFailsWhenNoDepotReachable(t *testing.T) {
	deliveries := []models.Delivery{{Pickup: 10, Dropoff: 11, Weight: 1}}
	depots := []models.Depot{20}
	stops := []stopRef{
		{deliveryIdx: 0, pickup: true},
		{deliveryIdx: 0, pickup: false},
	}
	T := gridTable([]int32{10, 11}, map[[2]int32]float64{{10, 11}: 30})
	TDepot := map[int32]depotEntry{10: {StartDepot: 20, TimeSec: 7}}

	_, _, ok := attachDepots(stops, deliveries, depots, T, TDepot)
	assert.False(t, ok)
}
