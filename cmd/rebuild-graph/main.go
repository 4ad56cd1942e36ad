// Command rebuild-graph builds the routing index from the street database
// and reports its statistics, without starting the HTTP server. There is
// no separate node/edge table to truncate and repopulate — the index is
// derived fresh from intersections/street_segments on every run, so this
// tool exists to validate that data and catch problems before cmd/server
// builds the same index at startup.
package main

import (
	"context"
	"log"
	"time"

	"github.com/streetmap/roadcore/internal/roadgraph"
	"github.com/streetmap/roadcore/internal/streetdb"
)

func main() {
	log.Println("roadcore graph build check")

	ctx := context.Background()

	streetDB, err := streetdb.OpenPostgresReader(ctx, streetdb.LoadConfigFromEnv())
	if err != nil {
		log.Fatalf("failed to connect to street database: %v", err)
	}
	defer streetDB.Close()

	partnerPool, err := streetdb.OpenPartnerPool(ctx, streetdb.LoadConfigFromEnv())
	if err != nil {
		log.Fatalf("failed to connect to street database: %v", err)
	}
	defer partnerPool.Close()

	var intersectionCount, segmentCount, streetCount int
	if err := partnerPool.QueryRow(ctx, "SELECT COUNT(*) FROM intersections").Scan(&intersectionCount); err != nil {
		log.Fatalf("failed to count intersections: %v", err)
	}
	if err := partnerPool.QueryRow(ctx, "SELECT COUNT(*) FROM street_segments").Scan(&segmentCount); err != nil {
		log.Fatalf("failed to count street_segments: %v", err)
	}
	if err := partnerPool.QueryRow(ctx, "SELECT COUNT(*) FROM streets").Scan(&streetCount); err != nil {
		log.Fatalf("failed to count streets: %v", err)
	}

	log.Printf("database rows: %d intersections, %d segments, %d streets", intersectionCount, segmentCount, streetCount)
	if intersectionCount == 0 || segmentCount == 0 {
		log.Fatal("no street data found; run cmd/importer first")
	}

	log.Println("building routing index...")
	start := time.Now()

	idx, err := roadgraph.Build(ctx, streetDB)
	if err != nil {
		log.Fatalf("failed to build graph: %v", err)
	}

	log.Printf("build completed in %s", time.Since(start))
	log.Printf("index: %d intersections, %d segments, %d streets", idx.NumIntersections(), idx.NumSegments(), idx.NumStreets())

	unreachable := 0
	for i := int32(0); i < idx.NumIntersections(); i++ {
		if len(idx.Adjacent(i)) == 0 {
			unreachable++
		}
	}
	if unreachable > 0 {
		log.Printf("warning: %d intersections have no outgoing segments", unreachable)
	}

	log.Println("graph build check passed; cmd/server will rebuild this index at startup")
}
