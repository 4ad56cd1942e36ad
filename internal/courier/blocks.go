package courier

// blockPermutations enumerates the 23 non-identity permutations of four
// blocks produced by cutting a stop sequence at three interior points
// (i < j < k), hand-unrolled rather than generated at runtime. The
// current, unmodified order is tried separately as the baseline, so the
// identity permutation {0,1,2,3} is deliberately excluded here — a full
// pass over this table plus the untouched sequence covers all 24
// arrangements.
var blockPermutations = [23][4]int{
	{0, 1, 3, 2},
	{0, 2, 1, 3},
	{0, 2, 3, 1},
	{0, 3, 1, 2},
	{0, 3, 2, 1},
	{1, 0, 2, 3},
	{1, 0, 3, 2},
	{1, 2, 0, 3},
	{1, 2, 3, 0},
	{1, 3, 0, 2},
	{1, 3, 2, 0},
	{2, 0, 1, 3},
	{2, 0, 3, 1},
	{2, 1, 0, 3},
	{2, 1, 3, 0},
	{2, 3, 0, 1},
	{2, 3, 1, 0},
	{3, 0, 1, 2},
	{3, 0, 2, 1},
	{3, 1, 0, 2},
	{3, 1, 2, 0},
	{3, 2, 0, 1},
	{3, 2, 1, 0},
}

// applyBlockOrder cuts stops at i<j<k into four blocks
// [0,i) [i,j) [j,k) [k,n) and reassembles them in the order given, relabeled
// 0..3 against those four blocks.
func applyBlockOrder(stops []stopRef, i, j, k int, order [4]int) []stopRef {
	blocks := [4][]stopRef{
		stops[0:i],
		stops[i:j],
		stops[j:k],
		stops[k:],
	}
	out := make([]stopRef, 0, len(stops))
	for _, b := range order {
		out = append(out, blocks[b]...)
	}
	return out
}
