// Package mapcore exposes the public handle for a loaded map: load/close
// lifecycle plus the full public query surface, wired on top of
// roadgraph.Index, routing.Router, and courier.Planner (which builds its
// distance tables with routing.MultiSourcePaths).
package mapcore

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/streetmap/roadcore/internal/courier"
	"github.com/streetmap/roadcore/internal/geo"
	"github.com/streetmap/roadcore/internal/models"
	"github.com/streetmap/roadcore/internal/roadgraph"
	"github.com/streetmap/roadcore/internal/routing"
	"github.com/streetmap/roadcore/internal/streetdb"
)

// Map is an explicit handle over one loaded map, avoiding the correctness
// hazard of a process-wide global when running two maps in one process.
// roadgraph.SetCurrent/Current is offered only as an optional convenience
// default for single-map callers; cmd/server holds a Map and does not use it.
type Map struct {
	streetDB streetdb.Reader
	osmTags  streetdb.OSMTagReader
	index    *roadgraph.Index
	router   *routing.Router
	planner  *courier.Planner
}

// Load takes already-open readers rather than a DSN — resolving the
// street database connection is the caller's job, keeping Load storage-
// backend agnostic. On either reader's failure, any state already
// allocated is released before returning false.
func Load(ctx context.Context, streetDB streetdb.Reader, osmTags streetdb.OSMTagReader) (*Map, bool) {
	idx, err := roadgraph.Build(ctx, streetDB)
	if err != nil {
		streetDB.Close()
		if osmTags != nil {
			osmTags.Close()
		}
		return nil, false
	}

	if osmTags == nil {
		// Companion database unavailable: release the just-built index and
		// the primary street database before reporting failure.
		streetDB.Close()
		return nil, false
	}

	m := &Map{
		streetDB: streetDB,
		osmTags:  osmTags,
		index:    idx,
		router:   routing.NewRouter(idx),
		planner:  courier.NewPlanner(idx),
	}
	return m, true
}

// CompanionPath derives the OSM-tag companion filename from a street
// database path by replacing the extension after the first '.' with
// ".osm.bin".
func CompanionPath(mapPath string) string {
	base := filepath.Base(mapPath)
	if idx := strings.Index(base, "."); idx >= 0 {
		base = base[:idx]
	}
	return filepath.Join(filepath.Dir(mapPath), base+".osm.bin")
}

// Close releases the index and both databases. Idempotent only across
// well-formed load/close pairs — calling it twice, or without a prior
// successful Load, is undefined behavior.
func (m *Map) Close() {
	m.streetDB.Close()
	m.osmTags.Close()
}

func (m *Map) FindIntersectionStreetSegments(i int32) []int32 {
	out := make([]int32, 0, len(m.index.Outgoing(i)))
	for _, e := range m.index.Outgoing(i) {
		out = append(out, e.SegmentID)
	}
	return out
}

func (m *Map) FindIntersectionStreetNames(i int32) []string {
	return m.index.IntersectionStreetNames(i)
}

func (m *Map) FindAdjacentIntersections(i int32) []int32 { return m.index.Adjacent(i) }

func (m *Map) AreDirectlyConnected(a, b int32) bool { return m.index.Connected(a, b) }

func (m *Map) FindStreetStreetSegments(street int32) []int32 {
	return m.index.StreetSegments(street)
}

func (m *Map) FindAllStreetIntersections(street int32) []int32 {
	return m.index.StreetIntersections(street)
}

func (m *Map) FindIntersectionIDsFromStreetIDs(a, b int32) []int32 {
	return m.index.IntersectionOf(a, b)
}

func (m *Map) FindDistanceBetweenTwoPoints(p, q models.Point) float64 {
	return geo.Distance(p, q, m.index.ReferenceLat())
}

func (m *Map) FindStreetSegmentLength(s int32) float64 { return m.index.SegmentLength(s) }

func (m *Map) FindStreetLength(street int32) float64 { return m.index.StreetLength(street) }

func (m *Map) FindStreetSegmentTravelTime(s int32) float64 { return m.index.SegmentTime(s) }

func (m *Map) FindClosestIntersection(p models.Point) (int32, bool) {
	return m.index.ClosestIntersection(p)
}

func (m *Map) FindClosestPointOfInterest(p models.Point) (int32, bool) {
	return m.index.ClosestPOI(p)
}

func (m *Map) FindStreetIDsFromPartialStreetName(prefix string) []int32 {
	return m.index.FindStreetsByPrefix(prefix)
}

func (m *Map) FindTurnType(segmentA, segmentB int32) models.TurnType {
	return m.index.TurnType(segmentA, segmentB)
}

func (m *Map) ComputePathTravelTime(path []int32, rightPenalty, leftPenalty float64) float64 {
	return routing.ComputePathTravelTime(m.index, path, rightPenalty, leftPenalty)
}

func (m *Map) FindPathBetweenIntersections(ctx context.Context, start, end int32, rightPenalty, leftPenalty float64) ([]int32, error) {
	return m.router.FindPath(ctx, start, end, rightPenalty, leftPenalty)
}

func (m *Map) TravelingCourier(ctx context.Context, deliveries []models.Delivery, depots []models.Depot, rightPenalty, leftPenalty float64, capacity float64) ([]models.RouteElement, error) {
	return m.planner.Plan(ctx, deliveries, depots, rightPenalty, leftPenalty, capacity)
}
