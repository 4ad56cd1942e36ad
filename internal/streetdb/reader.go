// Package streetdb defines the narrow, read-only query interface the map
// index is built from, and two concrete backings for it: a PostgreSQL/
// PostGIS store for the primary street database, and an embedded SQLite
// store for the companion OSM-tag database. Both are treated as external
// collaborators by the rest of the core — nothing downstream of Reader
// mutates through it.
package streetdb

import "context"

// SegmentInfo mirrors info_street_segment(s) from the external contract.
type SegmentInfo struct {
	From            int32
	To              int32
	OneWay          bool
	StreetID        int32
	CurvePointCount int
	SpeedLimitKMH   float64
	WayOSMID        int64
}

// Reader is the query surface the map index is built from. Every method is
// read-only; an implementation backs it with whatever storage it likes.
type Reader interface {
	NumIntersections(ctx context.Context) (int32, error)
	NumStreetSegments(ctx context.Context) (int32, error)
	NumStreets(ctx context.Context) (int32, error)
	NumPointsOfInterest(ctx context.Context) (int32, error)

	IntersectionPosition(ctx context.Context, i int32) (lat, lon float64, err error)
	IntersectionName(ctx context.Context, i int32) (string, error)
	IntersectionStreetSegmentCount(ctx context.Context, i int32) (int, error)
	IntersectionStreetSegment(ctx context.Context, k int, i int32) (int32, error)

	InfoStreetSegment(ctx context.Context, s int32) (SegmentInfo, error)
	StreetSegmentCurvePoint(ctx context.Context, k int, s int32) (lat, lon float64, err error)
	StreetName(ctx context.Context, street int32) (string, error)

	PointOfInterestPosition(ctx context.Context, p int32) (lat, lon float64, err error)
	PointOfInterestName(ctx context.Context, p int32) (string, error)
	PointOfInterestType(ctx context.Context, p int32) (string, error)

	// Close releases whatever handle backs this reader (a DB pool, an open
	// file). Safe to call once per successful construction.
	Close() error
}

// OSMTagReader is the companion database's narrow surface: way/node tag
// lookup by OSM id. The map index does not consume this directly — it is
// meant for map-rendering feature queries — but Load/Close still manage
// its lifecycle, and the courier/search core never reaches into it.
type OSMTagReader interface {
	TagsForWay(ctx context.Context, wayOSMID int64) (map[string]string, error)
	Close() error
}
