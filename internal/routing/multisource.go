package routing

import (
	"container/heap"
	"math"

	"github.com/streetmap/roadcore/internal/roadgraph"
)

// SubPath is one entry of a multi-source search result: the path from
// whichever source actually reached a destination, the source itself, and
// the total travel time.
type SubPath struct {
	Source   int32
	Segments []int32
	TimeSec  float64
}

// MultiSourcePaths runs a single Dijkstra (no heuristic) seeded from every
// source at once, terminating once every destination has been settled.
// Unlike Router.FindPath, this allocates its own scratch region per call —
// it is explicitly NOT backed by a shared/pooled arena, so it is safe to
// invoke concurrently with other calls to itself or to FindPath.
func MultiSourcePaths(idx *roadgraph.Index, sources, destinations []int32, rightPenalty, leftPenalty float64) map[int32]SubPath {
	n := int(idx.NumIntersections())
	bestTime := make([]float64, n)
	reachingEdge := make([]int32, n)
	reachedFrom := make([]int32, n) // which source's tree this node belongs to
	for i := range bestTime {
		bestTime[i] = math.Inf(1)
		reachingEdge[i] = noEdge
		reachedFrom[i] = -1
	}

	needed := make(map[int32]bool, len(destinations))
	for _, d := range destinations {
		needed[d] = true
	}
	settled := make(map[int32]bool, len(destinations))

	open := &priorityQueue{}
	heap.Init(open)

	for _, src := range sources {
		if bestTime[src] > 0 {
			bestTime[src] = 0
			reachingEdge[src] = noEdge
			reachedFrom[src] = src
			heap.Push(open, &pqEntry{node: src, g: 0, f: 0})
		}
	}

	results := make(map[int32]SubPath)

	for open.Len() > 0 && len(settled) < len(needed) {
		cur := heap.Pop(open).(*pqEntry)
		if cur.g != bestTime[cur.node] {
			continue
		}
		if needed[cur.node] && !settled[cur.node] {
			settled[cur.node] = true
			src := reachedFrom[cur.node]
			results[cur.node] = SubPath{
				Source:   src,
				Segments: tracebackFrom(idx, reachingEdge, src, cur.node),
				TimeSec:  cur.g,
			}
		}

		for _, out := range idx.Outgoing(cur.node) {
			v := out.Target
			s := out.SegmentID
			reaching := reachingEdge[cur.node]
			if reaching == s {
				continue
			}
			t := bestTime[cur.node] + out.TimeSec
			if reaching != noEdge {
				t += turnPenalty(idx.TurnType(reaching, s), rightPenalty, leftPenalty)
			}
			if t >= bestTime[v] {
				continue
			}
			bestTime[v] = t
			reachingEdge[v] = s
			reachedFrom[v] = reachedFrom[cur.node]
			heap.Push(open, &pqEntry{node: v, g: t, f: t})
		}
	}

	return results
}

func tracebackFrom(idx *roadgraph.Index, reachingEdge []int32, start, end int32) []int32 {
	var segments []int32
	node := end
	for node != start {
		seg := reachingEdge[node]
		if seg == noEdge {
			return []int32{}
		}
		segments = append(segments, seg)
		s := idx.Segments[seg]
		if s.To == node {
			node = s.From
		} else {
			node = s.To
		}
	}
	for i, j := 0, len(segments)-1; i < j; i, j = i+1, j-1 {
		segments[i], segments[j] = segments[j], segments[i]
	}
	return segments
}
