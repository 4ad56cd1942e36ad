// Command importer loads a directory of street-network CSV extracts into
// the primary database via streetdb.Import.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/streetmap/roadcore/internal/streetdb"
)

func main() {
	dataDir := flag.String("data", "", "Path to a directory containing intersections.csv, streets.csv, segments.csv, curve_points.csv, and optionally pois.csv (required)")
	flag.Parse()

	if *dataDir == "" {
		fmt.Println("Usage: roadcore-import --data=<dir>")
		flag.PrintDefaults()
		os.Exit(1)
	}

	if info, err := os.Stat(*dataDir); err != nil || !info.IsDir() {
		log.Fatalf("data directory not found: %s", *dataDir)
	}

	ctx := context.Background()

	pool, err := streetdb.OpenPartnerPool(ctx, streetdb.LoadConfigFromEnv())
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	defer pool.Close()

	log.Println("Starting street database import...")
	log.Printf("Source directory: %s", *dataDir)

	start := time.Now()
	if err := streetdb.Import(ctx, pool, *dataDir); err != nil {
		log.Fatalf("import failed: %v", err)
	}

	log.Printf("Import completed in %s", time.Since(start))
	log.Println("Run cmd/rebuild-graph to build the routing index before starting the server.")
}
