// Package geo implements the projection and distance primitives the map
// index and search routines are built on, plus the low-level cross-product
// turn classifier. Resolving segment geometry into the two direction
// vectors a turn decision needs requires intersection positions, which live
// in the map index — see roadgraph.Index.TurnType for that resolution step.
package geo

import (
	"math"

	"github.com/streetmap/roadcore/internal/models"
)

// EarthRadiusM is the sphere radius used to convert projected planar
// distance back into meters.
const EarthRadiusM = 6372797.560856

// Project maps a (lat, lon) pair to planar (x, y) using referenceLat as the
// projection's reference latitude φ₀. Two callers use two different
// conventions for referenceLat — see ReferenceLatitude and PairReferenceLat.
func Project(p models.Point, referenceLat float64) (x, y float64) {
	x = p.Lon * math.Pi / 180 * math.Cos(referenceLat*math.Pi/180)
	y = p.Lat * math.Pi / 180
	return x, y
}

// ReferenceLatitude is the map-global reference latitude: the mean of the
// minimum and maximum latitude across the whole loaded map. Used by the map
// index at build time; stable for the life of the load.
func ReferenceLatitude(minLat, maxLat float64) float64 {
	return (minLat + maxLat) / 2
}

// PairReferenceLat is the per-pair reference latitude used only for turn
// classification: the mean of the two points in question. Acceptable there
// because the two vectors being compared are immediately adjacent and only
// the cross product's sign matters, not the absolute projected distance.
func PairReferenceLat(a, b models.Point) float64 {
	return (a.Lat + b.Lat) / 2
}

// Distance returns the metric distance in meters between two points,
// projected with referenceLat.
func Distance(a, b models.Point, referenceLat float64) float64 {
	ax, ay := Project(a, referenceLat)
	bx, by := Project(b, referenceLat)
	dx := bx - ax
	dy := by - ay
	return EarthRadiusM * math.Sqrt(dx*dx+dy*dy)
}

// PolylineLength sums projected segment lengths over from -> curvePoints ->
// to, using the map-global reference latitude.
func PolylineLength(from models.Point, curvePoints []models.Point, to models.Point, referenceLat float64) float64 {
	prev := from
	var total float64
	for _, p := range curvePoints {
		total += Distance(prev, p, referenceLat)
		prev = p
	}
	total += Distance(prev, to, referenceLat)
	return total
}

// DirectionVector returns the projected vector from p0 to p1 using
// referenceLat.
func DirectionVector(p0, p1 models.Point, referenceLat float64) (dx, dy float64) {
	x0, y0 := Project(p0, referenceLat)
	x1, y1 := Project(p1, referenceLat)
	return x1 - x0, y1 - y0
}

// ClassifyByCrossProduct decides left/right from two already-projected 2D
// direction vectors: the vector arriving at the shared point, and the
// vector leaving it. sign <= 0 is RIGHT, sign > 0 is LEFT. This is the only
// place the tie-break lives; callers must not special-case cross == 0
// themselves. The co-linear case (cross == 0) is classified RIGHT.
func ClassifyByCrossProduct(arriveDX, arriveDY, leaveDX, leaveDY float64) models.TurnType {
	cross := arriveDX*leaveDY - arriveDY*leaveDX
	if cross <= 0 {
		return models.TurnRight
	}
	return models.TurnLeft
}
