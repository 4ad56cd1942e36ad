package routing

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetPenaltyProfile(t *testing.T) {
	cases := []struct {
		name string
		want PenaltyProfile
	}{
		{"none", NoPenalty},
		{"standard", StandardPenalty},
		{"avoid_turns", AvoidTurnsPenalty},
		{"unrecognized", StandardPenalty},
		{"", StandardPenalty},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, GetPenaltyProfile(tc.name))
	}
}

func TestAllPenaltyProfilesNamed(t *testing.T) {
	all := AllPenaltyProfiles()
	require := assert.New(t)
	require.Len(all, 3)
	for _, p := range all {
		require.NotEmpty(p.Name())
	}
}
