package streetdb

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Import loads a directory of CSV files into the primary street database's
// schema (intersections, streets, street_segments, curve_points, pois),
// using a column-map/trimmed-field CSV reading style against five tables.
//
// Expected files, all with a header row:
//
//	intersections.csv: id,lat,lon
//	streets.csv:        id,name
//	segments.csv:       id,from_id,to_id,one_way,street_id,speed_limit_kmh,way_osm_id
//	curve_points.csv:   segment_id,seq,lat,lon
//	pois.csv:           id,lat,lon,name,type
func Import(ctx context.Context, pool *pgxpool.Pool, dir string) error {
	steps := []struct {
		file string
		fn   func(context.Context, *pgxpool.Pool, string) (int, error)
	}{
		{"intersections.csv", importIntersections},
		{"streets.csv", importStreets},
		{"segments.csv", importSegments},
		{"curve_points.csv", importCurvePoints},
		{"pois.csv", importPOIs},
	}

	for _, step := range steps {
		path := filepath.Join(dir, step.file)
		n, err := step.fn(ctx, pool, path)
		if err != nil {
			return fmt.Errorf("import %s: %w", step.file, err)
		}
		log.Printf("street database import: loaded %d rows from %s", n, step.file)
	}
	return nil
}

func importIntersections(ctx context.Context, pool *pgxpool.Pool, path string) (int, error) {
	rows, colMap, err := openCSV(path)
	if err != nil {
		return 0, err
	}
	defer rows.Close()

	batch := &pgxBatchWriter{pool: pool}
	n := 0
	for {
		record, err := rows.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			log.Printf("warning: skipping malformed intersection row: %v", err)
			continue
		}
		id, err := strconv.ParseInt(getField(record, colMap, "id"), 10, 32)
		if err != nil {
			continue
		}
		lat, latErr := strconv.ParseFloat(getField(record, colMap, "lat"), 64)
		lon, lonErr := strconv.ParseFloat(getField(record, colMap, "lon"), 64)
		if latErr != nil || lonErr != nil {
			log.Printf("warning: skipping intersection %d with invalid position", id)
			continue
		}
		batch.Queue(`INSERT INTO intersections (id, lat, lon) VALUES ($1, $2, $3)
			ON CONFLICT (id) DO UPDATE SET lat = excluded.lat, lon = excluded.lon`, id, lat, lon)
		n++
	}
	return n, batch.Flush(ctx)
}

func importStreets(ctx context.Context, pool *pgxpool.Pool, path string) (int, error) {
	rows, colMap, err := openCSV(path)
	if err != nil {
		return 0, err
	}
	defer rows.Close()

	batch := &pgxBatchWriter{pool: pool}
	n := 0
	for {
		record, err := rows.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			log.Printf("warning: skipping malformed street row: %v", err)
			continue
		}
		id, err := strconv.ParseInt(getField(record, colMap, "id"), 10, 32)
		if err != nil {
			continue
		}
		name := getField(record, colMap, "name")
		batch.Queue(`INSERT INTO streets (id, name) VALUES ($1, $2)
			ON CONFLICT (id) DO UPDATE SET name = excluded.name`, id, name)
		n++
	}
	return n, batch.Flush(ctx)
}

func importSegments(ctx context.Context, pool *pgxpool.Pool, path string) (int, error) {
	rows, colMap, err := openCSV(path)
	if err != nil {
		return 0, err
	}
	defer rows.Close()

	batch := &pgxBatchWriter{pool: pool}
	n := 0
	for {
		record, err := rows.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			log.Printf("warning: skipping malformed segment row: %v", err)
			continue
		}

		id, err := strconv.ParseInt(getField(record, colMap, "id"), 10, 32)
		if err != nil {
			continue
		}
		fromID, fromErr := strconv.ParseInt(getField(record, colMap, "from_id"), 10, 32)
		toID, toErr := strconv.ParseInt(getField(record, colMap, "to_id"), 10, 32)
		if fromErr != nil || toErr != nil {
			log.Printf("warning: skipping segment %d with invalid endpoints", id)
			continue
		}
		streetID, err := strconv.ParseInt(getField(record, colMap, "street_id"), 10, 32)
		if err != nil {
			continue
		}
		oneWay := strings.EqualFold(getField(record, colMap, "one_way"), "true") ||
			getField(record, colMap, "one_way") == "1"
		speedLimit, _ := strconv.ParseFloat(getField(record, colMap, "speed_limit_kmh"), 64)
		wayOSMID, _ := strconv.ParseInt(getField(record, colMap, "way_osm_id"), 10, 64)

		batch.Queue(`
			INSERT INTO street_segments (id, from_id, to_id, one_way, street_id, curve_point_count, speed_limit_kmh, way_osm_id)
			VALUES ($1, $2, $3, $4, $5, 0, $6, $7)
			ON CONFLICT (id) DO UPDATE SET from_id = excluded.from_id, to_id = excluded.to_id,
				one_way = excluded.one_way, street_id = excluded.street_id,
				speed_limit_kmh = excluded.speed_limit_kmh, way_osm_id = excluded.way_osm_id
		`, id, fromID, toID, oneWay, streetID, speedLimit, wayOSMID)
		n++
	}
	return n, batch.Flush(ctx)
}

func importCurvePoints(ctx context.Context, pool *pgxpool.Pool, path string) (int, error) {
	rows, colMap, err := openCSV(path)
	if err != nil {
		return 0, err
	}
	defer rows.Close()

	counts := make(map[int64]int)
	batch := &pgxBatchWriter{pool: pool}
	n := 0
	for {
		record, err := rows.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			log.Printf("warning: skipping malformed curve point row: %v", err)
			continue
		}
		segmentID, err := strconv.ParseInt(getField(record, colMap, "segment_id"), 10, 64)
		if err != nil {
			continue
		}
		seq, err := strconv.Atoi(getField(record, colMap, "seq"))
		if err != nil {
			continue
		}
		lat, latErr := strconv.ParseFloat(getField(record, colMap, "lat"), 64)
		lon, lonErr := strconv.ParseFloat(getField(record, colMap, "lon"), 64)
		if latErr != nil || lonErr != nil {
			continue
		}
		batch.Queue(`INSERT INTO curve_points (segment_id, seq, lat, lon) VALUES ($1, $2, $3, $4)
			ON CONFLICT (segment_id, seq) DO UPDATE SET lat = excluded.lat, lon = excluded.lon`,
			segmentID, seq, lat, lon)
		counts[segmentID]++
		n++
	}
	if err := batch.Flush(ctx); err != nil {
		return n, err
	}

	countBatch := &pgxBatchWriter{pool: pool}
	for segmentID, count := range counts {
		countBatch.Queue(`UPDATE street_segments SET curve_point_count = $2 WHERE id = $1`, segmentID, count)
	}
	return n, countBatch.Flush(ctx)
}

func importPOIs(ctx context.Context, pool *pgxpool.Pool, path string) (int, error) {
	rows, colMap, err := openCSV(path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil // pois.csv is optional
		}
		return 0, err
	}
	defer rows.Close()

	batch := &pgxBatchWriter{pool: pool}
	n := 0
	for {
		record, err := rows.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			log.Printf("warning: skipping malformed poi row: %v", err)
			continue
		}
		id, err := strconv.ParseInt(getField(record, colMap, "id"), 10, 32)
		if err != nil {
			continue
		}
		lat, latErr := strconv.ParseFloat(getField(record, colMap, "lat"), 64)
		lon, lonErr := strconv.ParseFloat(getField(record, colMap, "lon"), 64)
		if latErr != nil || lonErr != nil {
			continue
		}
		batch.Queue(`INSERT INTO pois (id, lat, lon, name, type) VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (id) DO UPDATE SET lat = excluded.lat, lon = excluded.lon,
				name = excluded.name, type = excluded.type`,
			id, lat, lon, getField(record, colMap, "name"), getField(record, colMap, "type"))
		n++
	}
	return n, batch.Flush(ctx)
}

// openCSV opens path and returns a csv.Reader positioned after the header
// row, plus a column-name-to-index map.
func openCSV(path string) (*csvRows, map[string]int, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	reader := csv.NewReader(file)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		file.Close()
		return nil, nil, fmt.Errorf("failed to read header: %w", err)
	}

	return &csvRows{file: file, reader: reader}, makeColumnMap(header), nil
}

type csvRows struct {
	file   *os.File
	reader *csv.Reader
}

func (r *csvRows) Read() ([]string, error) { return r.reader.Read() }
func (r *csvRows) Close() error            { return r.file.Close() }

func makeColumnMap(header []string) map[string]int {
	colMap := make(map[string]int)
	for i, col := range header {
		colMap[strings.TrimSpace(col)] = i
	}
	return colMap
}

func getField(record []string, colMap map[string]int, fieldName string) string {
	if idx, ok := colMap[fieldName]; ok && idx < len(record) {
		return strings.TrimSpace(record[idx])
	}
	return ""
}

// pgxBatchWriter accumulates statements and flushes them as one pgx.Batch,
// avoiding a round trip per row.
type pgxBatchWriter struct {
	pool  *pgxpool.Pool
	sqls  []string
	args  [][]interface{}
}

func (w *pgxBatchWriter) Queue(sql string, args ...interface{}) {
	w.sqls = append(w.sqls, sql)
	w.args = append(w.args, args)
}

func (w *pgxBatchWriter) Flush(ctx context.Context) error {
	const chunkSize = 500
	for start := 0; start < len(w.sqls); start += chunkSize {
		end := start + chunkSize
		if end > len(w.sqls) {
			end = len(w.sqls)
		}
		batch := &pgx.Batch{}
		for i := start; i < end; i++ {
			batch.Queue(w.sqls[i], w.args[i]...)
		}
		br := w.pool.SendBatch(ctx, batch)
		for range w.sqls[start:end] {
			if _, err := br.Exec(); err != nil {
				br.Close()
				return err
			}
		}
		if err := br.Close(); err != nil {
			return err
		}
	}
	return nil
}
