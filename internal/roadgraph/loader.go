package roadgraph

import (
	"context"
	"fmt"
	"log"
	"math"
	"time"

	"github.com/streetmap/roadcore/internal/geo"
	"github.com/streetmap/roadcore/internal/models"
	"github.com/streetmap/roadcore/internal/streetdb"
)

const kmhToMS = 1000.0 / 3600.0

// Build constructs the map index from reader in two passes: segments
// first (geometry, length, time, max speed), then intersections and
// streets (adjacency, per-street aggregates, the name trie) — the
// two-pass shape a road network's geometry-dependent construction needs.
func Build(ctx context.Context, reader streetdb.Reader) (*Index, error) {
	start := time.Now()
	log.Println("Building map index...")

	numIntersections, err := reader.NumIntersections(ctx)
	if err != nil {
		return nil, fmt.Errorf("map index: count intersections: %w", err)
	}
	numSegments, err := reader.NumStreetSegments(ctx)
	if err != nil {
		return nil, fmt.Errorf("map index: count segments: %w", err)
	}
	numStreets, err := reader.NumStreets(ctx)
	if err != nil {
		return nil, fmt.Errorf("map index: count streets: %w", err)
	}
	numPOIs, err := reader.NumPointsOfInterest(ctx)
	if err != nil {
		return nil, fmt.Errorf("map index: count pois: %w", err)
	}

	positions := make([]models.Point, numIntersections)
	minLat, maxLat := math.Inf(1), math.Inf(-1)
	for i := int32(0); i < numIntersections; i++ {
		lat, lon, err := reader.IntersectionPosition(ctx, i)
		if err != nil {
			return nil, fmt.Errorf("map index: position of intersection %d: %w", i, err)
		}
		positions[i] = models.Point{Lat: lat, Lon: lon}
		if lat < minLat {
			minLat = lat
		}
		if lat > maxLat {
			maxLat = lat
		}
	}
	referenceLat := geo.ReferenceLatitude(minLat, maxLat)

	// Pass 1 — segments: geometry, length, time, running max speed.
	segments := make([]models.Segment, numSegments)
	streetNames := make([]string, numStreets)
	knownStreetName := make([]bool, numStreets)
	var maxSpeedMS float64

	for s := int32(0); s < numSegments; s++ {
		info, err := reader.InfoStreetSegment(ctx, s)
		if err != nil {
			return nil, fmt.Errorf("map index: info for segment %d: %w", s, err)
		}

		curvePts := make([]models.Point, info.CurvePointCount)
		for k := 0; k < info.CurvePointCount; k++ {
			lat, lon, err := reader.StreetSegmentCurvePoint(ctx, k, s)
			if err != nil {
				return nil, fmt.Errorf("map index: curve point %d of segment %d: %w", k, s, err)
			}
			curvePts[k] = models.Point{Lat: lat, Lon: lon}
		}

		speedMS := info.SpeedLimitKMH * kmhToMS
		if speedMS > maxSpeedMS {
			maxSpeedMS = speedMS
		}

		length := geo.PolylineLength(positions[info.From], curvePts, positions[info.To], referenceLat)
		var timeSec float64
		if speedMS > 0 {
			timeSec = length / speedMS
		}

		segments[s] = models.Segment{
			From:     info.From,
			To:       info.To,
			OneWay:   info.OneWay,
			StreetID: info.StreetID,
			CurvePts: curvePts,
			SpeedMS:  speedMS,
			LengthM:  length,
			TimeSec:  timeSec,
			WayOSMID: info.WayOSMID,
		}

		if !knownStreetName[info.StreetID] {
			name, err := reader.StreetName(ctx, info.StreetID)
			if err != nil {
				return nil, fmt.Errorf("map index: name for street %d: %w", info.StreetID, err)
			}
			streetNames[info.StreetID] = name
			knownStreetName[info.StreetID] = true
		}
	}

	// Pass 2 — intersections and streets: adjacency registration and
	// per-street aggregation, plus the name trie.
	intersections := make([]models.Intersection, numIntersections)
	for i := range intersections {
		intersections[i].Position = positions[i]
	}
	streets := make([]models.Street, numStreets)
	for st := range streets {
		streets[st].Name = streetNames[st]
		streets[st].Intersections = make(map[int32]struct{})
	}
	trie := newNameTrie()
	trieSeeded := make([]bool, numStreets)

	for i := int32(0); i < numIntersections; i++ {
		n, err := reader.IntersectionStreetSegmentCount(ctx, i)
		if err != nil {
			return nil, fmt.Errorf("map index: segment count for intersection %d: %w", i, err)
		}
		for k := 0; k < n; k++ {
			segID, err := reader.IntersectionStreetSegment(ctx, k, i)
			if err != nil {
				return nil, fmt.Errorf("map index: segment %d of intersection %d: %w", k, i, err)
			}
			seg := segments[segID]

			outgoing := seg.From == i || (seg.To == i && !seg.OneWay)
			if outgoing {
				target := seg.To
				if seg.To == i {
					target = seg.From
				}
				intersections[i].Outgoing = append(intersections[i].Outgoing, models.OutgoingEdge{
					Target:    target,
					SegmentID: segID,
					TimeSec:   seg.TimeSec,
				})
			}

			st := seg.StreetID
			streets[st].Intersections[i] = struct{}{}
			if !containsInt32(streets[st].SegmentIDs, segID) {
				streets[st].SegmentIDs = append(streets[st].SegmentIDs, segID)
				streets[st].LengthM += seg.LengthM
			}
			if !trieSeeded[st] {
				trie.Insert(streetNames[st], st)
				trieSeeded[st] = true
			}
		}
	}

	pois := make([]models.PointOfInterest, numPOIs)
	for p := int32(0); p < numPOIs; p++ {
		lat, lon, err := reader.PointOfInterestPosition(ctx, p)
		if err != nil {
			return nil, fmt.Errorf("map index: position for poi %d: %w", p, err)
		}
		name, err := reader.PointOfInterestName(ctx, p)
		if err != nil {
			return nil, fmt.Errorf("map index: name for poi %d: %w", p, err)
		}
		ptype, err := reader.PointOfInterestType(ctx, p)
		if err != nil {
			return nil, fmt.Errorf("map index: type for poi %d: %w", p, err)
		}
		pois[p] = models.PointOfInterest{Position: models.Point{Lat: lat, Lon: lon}, Name: name, Type: ptype}
	}

	idx := &Index{
		Intersections: intersections,
		Segments:      segments,
		Streets:       streets,
		POIs:          pois,
		trie:          trie,
		maxSpeedMS:    maxSpeedMS,
		referenceLat:  referenceLat,
	}

	log.Printf("Map index built in %v (%d intersections, %d segments, %d streets, %d pois)",
		time.Since(start), numIntersections, numSegments, numStreets, numPOIs)

	return idx, nil
}

func containsInt32(haystack []int32, needle int32) bool {
	for _, v := range haystack {
		if v == needle {
			return true
		}
	}
	return false
}
