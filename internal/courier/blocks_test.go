package courier

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBlockPermutationsAreDistinctNonIdentityPermutations(t *testing.T) {
	seen := make(map[[4]int]bool)
	identity := [4]int{0, 1, 2, 3}

	for _, order := range blockPermutations {
		assert.NotEqual(t, identity, order, "identity must not appear among the 23 explicit orderings")

		counts := map[int]int{}
		for _, b := range order {
			counts[b]++
		}
		for b := 0; b < 4; b++ {
			assert.Equal(t, 1, counts[b], "order %v is not a permutation of {0,1,2,3}", order)
		}

		assert.False(t, seen[order], "duplicate ordering %v", order)
		seen[order] = true
	}

	assert.Len(t, blockPermutations, 23)

	// together with the identity, the 23 orderings cover every permutation
	// of 4 elements
	assert.Len(t, seen, 23)
}

func TestApplyBlockOrder(t *testing.T) {
	stops := []stopRef{
		{deliveryIdx: 0, pickup: true},
		{deliveryIdx: 1, pickup: true},
		{deliveryIdx: 1, pickup: false},
		{deliveryIdx: 0, pickup: false},
	}

	// cut into 4 single-element blocks, reverse them
	got := applyBlockOrder(stops, 1, 2, 3, [4]int{3, 2, 1, 0})
	want := []stopRef{stops[3], stops[2], stops[1], stops[0]}
	assert.Equal(t, want, got)

	// identity order reproduces the original sequence
	got = applyBlockOrder(stops, 1, 2, 3, [4]int{0, 1, 2, 3})
	assert.Equal(t, stops, got)
}
