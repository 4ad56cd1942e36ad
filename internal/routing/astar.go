// Package routing implements the single-pair A* shortest-time search and
// the many-to-many Dijkstra over a roadgraph.Index. The open-set/
// stale-entry-skip search shape is heap-based; edge relaxation is
// turn-penalty-aware and the per-call scratch state is a pooled arena
// rather than path-copying search nodes.
package routing

import (
	"container/heap"
	"context"
	"fmt"
	"math"
	"sync"

	"github.com/streetmap/roadcore/internal/geo"
	"github.com/streetmap/roadcore/internal/models"
	"github.com/streetmap/roadcore/internal/roadgraph"
)

const noEdge int32 = -1

// scratch is the per-call search state: best_time and reaching_edge for
// every intersection, plus the "modified" list that makes reset O(touched)
// instead of O(N). Drawn from Router.scratchPool and returned after use.
type scratch struct {
	bestTime     []float64
	reachingEdge []int32
	modified     []int32
}

func newScratch(n int) *scratch {
	s := &scratch{
		bestTime:     make([]float64, n),
		reachingEdge: make([]int32, n),
	}
	s.reset()
	return s
}

func (s *scratch) reset() {
	for i := range s.bestTime {
		s.bestTime[i] = math.Inf(1)
		s.reachingEdge[i] = noEdge
	}
	s.modified = s.modified[:0]
}

// clear restores only the touched entries to their initial state, an
// O(touched) reset instead of reinitializing the whole arena on every call.
func (s *scratch) clear() {
	for _, i := range s.modified {
		s.bestTime[i] = math.Inf(1)
		s.reachingEdge[i] = noEdge
	}
	s.modified = s.modified[:0]
}

// Router runs single-pair shortest-time searches over idx.
type Router struct {
	idx         *roadgraph.Index
	scratchPool sync.Pool
}

// NewRouter builds a Router over idx, sizing its scratch pool to idx's
// intersection count.
func NewRouter(idx *roadgraph.Index) *Router {
	r := &Router{idx: idx}
	n := int(idx.NumIntersections())
	r.scratchPool.New = func() interface{} { return newScratch(n) }
	return r
}

// pqEntry is one open-set entry: a candidate (node, g, f) at the time it
// was pushed. Stale entries (superseded by a later, better relaxation) are
// discarded cheaply on pop by comparing g against the scratch's current
// best_time for that node.
type pqEntry struct {
	node  int32
	g     float64
	f     float64
	index int
}

type priorityQueue []*pqEntry

func (pq priorityQueue) Len() int            { return len(pq) }
func (pq priorityQueue) Less(i, j int) bool  { return pq[i].f < pq[j].f }
func (pq priorityQueue) Swap(i, j int) {
	pq[i], pq[j] = pq[j], pq[i]
	pq[i].index = i
	pq[j].index = j
}
func (pq *priorityQueue) Push(x interface{}) {
	e := x.(*pqEntry)
	e.index = len(*pq)
	*pq = append(*pq, e)
}
func (pq *priorityQueue) Pop() interface{} {
	old := *pq
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	e.index = -1
	*pq = old[:n-1]
	return e
}

// FindPath returns an ordered list of segment ids forming a shortest-time
// walk from start to end, or an empty slice if none exists.
func (r *Router) FindPath(ctx context.Context, start, end int32, rightPenalty, leftPenalty float64) ([]int32, error) {
	sc := r.scratchPool.Get().(*scratch)
	defer func() {
		sc.clear()
		r.scratchPool.Put(sc)
	}()

	if start == end {
		return []int32{}, nil
	}

	endPos := r.idx.IntersectionPosition(end)
	maxSpeed := r.idx.MaxSpeedMS()
	refLat := r.idx.ReferenceLat()

	heuristic := func(node int32) float64 {
		if maxSpeed <= 0 {
			return 0
		}
		return geo.Distance(r.idx.IntersectionPosition(node), endPos, refLat) / maxSpeed
	}

	open := &priorityQueue{}
	heap.Init(open)

	sc.bestTime[start] = 0
	sc.modified = append(sc.modified, start)
	heap.Push(open, &pqEntry{node: start, g: 0, f: heuristic(start)})

	explored := 0
	for open.Len() > 0 {
		if explored%2048 == 0 {
			select {
			case <-ctx.Done():
				return nil, fmt.Errorf("path search: %w", ctx.Err())
			default:
			}
		}
		explored++

		cur := heap.Pop(open).(*pqEntry)
		if cur.g != sc.bestTime[cur.node] {
			continue // stale entry, already improved
		}
		if cur.node == end {
			return traceback(r.idx, sc, start, end), nil
		}

		for _, out := range r.idx.Outgoing(cur.node) {
			r.relax(sc, cur.node, out, rightPenalty, leftPenalty, open, heuristic)
		}
	}

	return []int32{}, nil
}

// relax implements the edge-relaxation rule: forbid an immediate
// U-turn back over the reaching edge, add a turn penalty unless the move
// continues straight, and push an improved candidate.
func (r *Router) relax(sc *scratch, u int32, out models.OutgoingEdge, rightPenalty, leftPenalty float64, open *priorityQueue, heuristic func(int32) float64) {
	v := out.Target
	s := out.SegmentID

	reaching := sc.reachingEdge[u]
	if reaching == s {
		return // immediate U-turn over the same segment
	}

	t := sc.bestTime[u] + out.TimeSec
	if reaching != noEdge {
		t += turnPenalty(r.idx.TurnType(reaching, s), rightPenalty, leftPenalty)
	}

	if t >= sc.bestTime[v] {
		return
	}
	if math.IsInf(sc.bestTime[v], 1) {
		sc.modified = append(sc.modified, v)
	}
	sc.bestTime[v] = t
	sc.reachingEdge[v] = s
	heap.Push(open, &pqEntry{node: v, g: t, f: t + heuristic(v)})
}

func turnPenalty(t models.TurnType, rightPenalty, leftPenalty float64) float64 {
	switch t {
	case models.TurnRight:
		return rightPenalty
	case models.TurnLeft:
		return leftPenalty
	default:
		return 0
	}
}

// traceback walks reaching_edge from end back to start and reverses it.
func traceback(idx *roadgraph.Index, sc *scratch, start, end int32) []int32 {
	var segments []int32
	node := end
	for node != start {
		seg := sc.reachingEdge[node]
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

// ComputePathTravelTime sums segment times plus turn penalties along path,
// matching the relaxation rule's accounting exactly so it agrees with
// whatever FindPath reports for the same path.
func ComputePathTravelTime(idx *roadgraph.Index, path []int32, rightPenalty, leftPenalty float64) float64 {
	var total float64
	for i, seg := range path {
		total += idx.SegmentTime(seg)
		if i+1 < len(path) {
			total += turnPenalty(idx.TurnType(seg, path[i+1]), rightPenalty, leftPenalty)
		}
	}
	return total
}
