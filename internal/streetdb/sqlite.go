package streetdb

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "modernc.org/sqlite"
)

// SQLiteOSMTags backs OSMTagReader with a local embedded SQLite file — the
// Go-native analogue of the original ".osm.bin" companion database that
// sits next to the primary street database and is derived from the same
// map file stem.
type SQLiteOSMTags struct {
	db *sql.DB
}

// OpenSQLiteOSMTags opens the companion database at path. The caller must
// Close it; a failure here must not leave any primary-database state
// allocated (see mapcore.Load).
func OpenSQLiteOSMTags(path string) (*SQLiteOSMTags, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("osm tag database: open %s: %w", path, err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("osm tag database: ping %s: %w", path, err)
	}
	return &SQLiteOSMTags{db: db}, nil
}

func (s *SQLiteOSMTags) Close() error {
	return s.db.Close()
}

func (s *SQLiteOSMTags) TagsForWay(ctx context.Context, wayOSMID int64) (map[string]string, error) {
	var blob string
	err := s.db.QueryRowContext(ctx, `SELECT tags_json FROM way_tags WHERE way_osm_id = ?`, wayOSMID).Scan(&blob)
	if err == sql.ErrNoRows {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("osm tag database: query way %d: %w", wayOSMID, err)
	}
	tags := make(map[string]string)
	if err := json.Unmarshal([]byte(blob), &tags); err != nil {
		return nil, fmt.Errorf("osm tag database: decode tags for way %d: %w", wayOSMID, err)
	}
	return tags, nil
}
