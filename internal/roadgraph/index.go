// Package roadgraph implements the map index: the in-memory structure
// built once from the street database and consumed read-only by every
// search and the courier planner — an intersection/segment road network
// with turn penalties.
package roadgraph

import (
	"sync"

	"github.com/streetmap/roadcore/internal/geo"
	"github.com/streetmap/roadcore/internal/models"
)

// Index is the built map: dense-id intersections, segments, and streets,
// plus the derived name trie and admissible-heuristic bound. It is
// immutable after Build returns — callers only ever read it, so readers
// here take no lock at all; a reload produces a brand new *Index instead
// of mutating one in place, leaving no references to the previous index
// alive once it is replaced.
type Index struct {
	Intersections []models.Intersection
	Segments      []models.Segment
	Streets       []models.Street
	POIs          []models.PointOfInterest

	trie         *nameTrie
	maxSpeedMS   float64
	referenceLat float64
}

var (
	current   *Index
	currentMu sync.RWMutex
)

// SetCurrent installs idx as the process-wide default handle, an optional
// convenience over holding an explicit mapcore.Map; mapcore.Map carries
// its own handle and does not depend on this global.
func SetCurrent(idx *Index) {
	currentMu.Lock()
	defer currentMu.Unlock()
	current = idx
}

// Current returns the process-wide default handle, or nil if none has been
// installed.
func Current() *Index {
	currentMu.RLock()
	defer currentMu.RUnlock()
	return current
}

// ClearCurrent drops the process-wide default handle so nothing keeps the
// old index reachable after a reload.
func ClearCurrent() {
	currentMu.Lock()
	defer currentMu.Unlock()
	current = nil
}

// NumIntersections, NumSegments, NumStreets report index sizes.
func (idx *Index) NumIntersections() int32 { return int32(len(idx.Intersections)) }
func (idx *Index) NumSegments() int32      { return int32(len(idx.Segments)) }
func (idx *Index) NumStreets() int32       { return int32(len(idx.Streets)) }

// MaxSpeedMS returns the global maximum segment speed in m/s, the bound the
// A* heuristic divides straight-line distance by.
func (idx *Index) MaxSpeedMS() float64 { return idx.maxSpeedMS }

// ReferenceLat returns the map-global reference latitude used for distance
// projection.
func (idx *Index) ReferenceLat() float64 { return idx.referenceLat }

// Outgoing returns intersection i's outgoing edges.
func (idx *Index) Outgoing(i int32) []models.OutgoingEdge {
	return idx.Intersections[i].Outgoing
}

// SegmentLength returns segment s's precomputed length in meters.
func (idx *Index) SegmentLength(s int32) float64 { return idx.Segments[s].LengthM }

// SegmentTime returns segment s's precomputed travel time in seconds.
func (idx *Index) SegmentTime(s int32) float64 { return idx.Segments[s].TimeSec }

// StreetSegments returns street's segment ids.
func (idx *Index) StreetSegments(street int32) []int32 { return idx.Streets[street].SegmentIDs }

// StreetIntersections returns street's intersection ids.
func (idx *Index) StreetIntersections(street int32) []int32 {
	out := make([]int32, 0, len(idx.Streets[street].Intersections))
	for i := range idx.Streets[street].Intersections {
		out = append(out, i)
	}
	return out
}

// StreetLength returns street's total length in meters.
func (idx *Index) StreetLength(street int32) float64 { return idx.Streets[street].LengthM }

// IntersectionPosition returns intersection i's geographic position.
func (idx *Index) IntersectionPosition(i int32) models.Point {
	return idx.Intersections[i].Position
}

// IntersectionStreetNames returns the distinct street names of i's
// outgoing edges. A street whose only segment at i is one-way into i is
// not listed.
func (idx *Index) IntersectionStreetNames(i int32) []string {
	seen := make(map[int32]bool)
	var names []string
	for _, e := range idx.Intersections[i].Outgoing {
		st := idx.Segments[e.SegmentID].StreetID
		if !seen[st] {
			seen[st] = true
			names = append(names, idx.Streets[st].Name)
		}
	}
	return names
}

// Adjacent returns the unique set of targets reachable directly from i.
func (idx *Index) Adjacent(i int32) []int32 {
	seen := make(map[int32]bool)
	var out []int32
	for _, e := range idx.Intersections[i].Outgoing {
		if !seen[e.Target] {
			seen[e.Target] = true
			out = append(out, e.Target)
		}
	}
	return out
}

// Connected reports whether j is i itself or a direct successor of i.
func (idx *Index) Connected(i, j int32) bool {
	if i == j {
		return true
	}
	for _, e := range idx.Intersections[i].Outgoing {
		if e.Target == j {
			return true
		}
	}
	return false
}

// IntersectionOf returns the set intersection of two streets' intersection
// sets, as a slice (order unspecified, and symmetric in a and b — callers
// needing set semantics should treat it as a set).
func (idx *Index) IntersectionOf(a, b int32) []int32 {
	var out []int32
	bSet := idx.Streets[b].Intersections
	for i := range idx.Streets[a].Intersections {
		if _, ok := bSet[i]; ok {
			out = append(out, i)
		}
	}
	return out
}

// FindStreetsByPrefix is the case-insensitive trie lookup.
func (idx *Index) FindStreetsByPrefix(prefix string) []int32 {
	return idx.trie.Lookup(prefix)
}

// ClosestIntersection does a linear scan over intersection positions; no
// spatial index is required at this scale.
func (idx *Index) ClosestIntersection(p models.Point) (int32, bool) {
	best := int32(-1)
	bestDist := 0.0
	for i := range idx.Intersections {
		d := geo.Distance(p, idx.Intersections[i].Position, idx.referenceLat)
		if best == -1 || d < bestDist {
			best = int32(i)
			bestDist = d
		}
	}
	return best, best != -1
}

// ClosestPOI does a linear scan over POI positions.
func (idx *Index) ClosestPOI(p models.Point) (int32, bool) {
	best := int32(-1)
	bestDist := 0.0
	for i := range idx.POIs {
		d := geo.Distance(p, idx.POIs[i].Position, idx.referenceLat)
		if best == -1 || d < bestDist {
			best = int32(i)
			bestDist = d
		}
	}
	return best, best != -1
}

// TurnType classifies the turn a vehicle makes crossing from segment r into
// segment s at their shared intersection. See geo.ClassifyByCrossProduct
// for the tie-break rule; this method resolves the actual direction
// vectors from intersection and curve-point positions, which only the
// index (not the geo package) has access to.
func (idx *Index) TurnType(r, s int32) models.TurnType {
	rSeg, sSeg := idx.Segments[r], idx.Segments[s]

	if rSeg.StreetID == sSeg.StreetID {
		return models.TurnStraight
	}

	shared, ok := sharedEndpoint(rSeg, sSeg)
	if !ok {
		return models.TurnNone
	}

	arriveFrom, arriveTo := idx.lastStepInto(rSeg, shared)
	leaveFrom, leaveTo := idx.firstStepOutOf(sSeg, shared)

	refLat := geo.PairReferenceLat(arriveFrom, leaveTo)
	adx, ady := geo.DirectionVector(arriveFrom, arriveTo, refLat)
	ldx, ldy := geo.DirectionVector(leaveFrom, leaveTo, refLat)

	return geo.ClassifyByCrossProduct(adx, ady, ldx, ldy)
}

// sharedEndpoint returns the node id shared by two segments, oriented
// without regard to direction — i.e. any of {r.From,r.To} ∩ {s.From,s.To}.
// If more than one node matches (the segments are parallel duplicates),
// the first found is used; which one is picked is unspecified.
func sharedEndpoint(r, s models.Segment) (int32, bool) {
	rEnds := [2]int32{r.From, r.To}
	sEnds := [2]int32{s.From, s.To}
	for _, re := range rEnds {
		for _, se := range sEnds {
			if re == se {
				return re, true
			}
		}
	}
	return 0, false
}

// lastStepInto returns the two points bounding the final step of segment r
// as it arrives at sharedNode: the point just before sharedNode, and
// sharedNode's own position.
func (idx *Index) lastStepInto(r models.Segment, sharedNode int32) (from, to models.Point) {
	to = idx.Intersections[sharedNode].Position
	if r.To == sharedNode {
		if n := len(r.CurvePts); n > 0 {
			return r.CurvePts[n-1], to
		}
		return idx.Intersections[r.From].Position, to
	}
	// r.From == sharedNode: the vehicle is conceptually arriving from the
	// far end of r toward sharedNode for the purpose of continuing through
	// the turn (the turn is evaluated at whichever node the search is
	// currently relaxing through).
	if n := len(r.CurvePts); n > 0 {
		return r.CurvePts[0], to
	}
	return idx.Intersections[r.To].Position, to
}

// firstStepOutOf returns the two points bounding the first step of segment
// s as it leaves sharedNode: sharedNode's own position, and the next point
// along s.
func (idx *Index) firstStepOutOf(s models.Segment, sharedNode int32) (from, to models.Point) {
	from = idx.Intersections[sharedNode].Position
	if s.From == sharedNode {
		if len(s.CurvePts) > 0 {
			return from, s.CurvePts[0]
		}
		return from, idx.Intersections[s.To].Position
	}
	if n := len(s.CurvePts); n > 0 {
		return from, s.CurvePts[n-1]
	}
	return from, idx.Intersections[s.From].Position
}
