package streetdb

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Config holds PostgreSQL connection configuration for the primary street
// database.
type Config struct {
	Host     string
	Port     int
	Database string
	User     string
	Password string
	SSLMode  string
	MinConns int32
	MaxConns int32
}

// LoadConfigFromEnv loads PostgreSQL configuration from environment
// variables using this package's getEnv convention.
func LoadConfigFromEnv() *Config {
	port, _ := strconv.Atoi(getEnv("STREETDB_PORT", "5432"))
	minConns, _ := strconv.Atoi(getEnv("STREETDB_MIN_CONNS", "2"))
	maxConns, _ := strconv.Atoi(getEnv("STREETDB_MAX_CONNS", "10"))

	return &Config{
		Host:     getEnv("STREETDB_HOST", "localhost"),
		Port:     port,
		Database: getEnv("STREETDB_NAME", "streetmap"),
		User:     getEnv("STREETDB_USER", "postgres"),
		Password: getEnv("STREETDB_PASSWORD", ""),
		SSLMode:  getEnv("STREETDB_SSLMODE", "disable"),
		MinConns: int32(minConns),
		MaxConns: int32(maxConns),
	}
}

// PostgresReader backs Reader with a PostGIS-enabled schema of
// intersections, street_segments, streets, curve_points, and pois.
type PostgresReader struct {
	pool *pgxpool.Pool
}

// OpenPostgresReader connects to PostgreSQL and returns a Reader. The
// caller owns the returned Reader and must Close it.
func OpenPostgresReader(ctx context.Context, cfg *Config) (*PostgresReader, error) {
	connString := fmt.Sprintf(
		"host=%s port=%d dbname=%s user=%s password=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.Database, cfg.User, cfg.Password, cfg.SSLMode,
	)

	poolConfig, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("street database: unable to parse connection string: %w", err)
	}
	poolConfig.MinConns = cfg.MinConns
	poolConfig.MaxConns = cfg.MaxConns
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute

	dialCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(dialCtx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("street database: unable to create connection pool: %w", err)
	}
	if err := pool.Ping(dialCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("street database: unable to ping: %w", err)
	}

	return &PostgresReader{pool: pool}, nil
}

// OpenPartnerPool opens a raw connection pool against the same database for
// the partner/api_key/usage_log tables that internal/middleware reads and
// writes. Kept separate from OpenPostgresReader's *PostgresReader so
// middleware isn't coupled to the Reader interface it has no use for.
func OpenPartnerPool(ctx context.Context, cfg *Config) (*pgxpool.Pool, error) {
	connString := fmt.Sprintf(
		"host=%s port=%d dbname=%s user=%s password=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.Database, cfg.User, cfg.Password, cfg.SSLMode,
	)

	poolConfig, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("partner database: unable to parse connection string: %w", err)
	}
	poolConfig.MinConns = cfg.MinConns
	poolConfig.MaxConns = cfg.MaxConns

	dialCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(dialCtx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("partner database: unable to create connection pool: %w", err)
	}
	if err := pool.Ping(dialCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("partner database: unable to ping: %w", err)
	}

	return pool, nil
}

func (r *PostgresReader) Close() error {
	r.pool.Close()
	return nil
}

func (r *PostgresReader) NumIntersections(ctx context.Context) (int32, error) {
	var n int32
	err := r.pool.QueryRow(ctx, `SELECT count(*) FROM intersections`).Scan(&n)
	return n, err
}

func (r *PostgresReader) NumStreetSegments(ctx context.Context) (int32, error) {
	var n int32
	err := r.pool.QueryRow(ctx, `SELECT count(*) FROM street_segments`).Scan(&n)
	return n, err
}

func (r *PostgresReader) NumStreets(ctx context.Context) (int32, error) {
	var n int32
	err := r.pool.QueryRow(ctx, `SELECT count(*) FROM streets`).Scan(&n)
	return n, err
}

func (r *PostgresReader) NumPointsOfInterest(ctx context.Context) (int32, error) {
	var n int32
	err := r.pool.QueryRow(ctx, `SELECT count(*) FROM pois`).Scan(&n)
	return n, err
}

func (r *PostgresReader) IntersectionPosition(ctx context.Context, i int32) (float64, float64, error) {
	var lat, lon float64
	err := r.pool.QueryRow(ctx, `SELECT lat, lon FROM intersections WHERE id = $1`, i).Scan(&lat, &lon)
	return lat, lon, err
}

func (r *PostgresReader) IntersectionName(ctx context.Context, i int32) (string, error) {
	var name string
	err := r.pool.QueryRow(ctx, `SELECT name FROM intersections WHERE id = $1`, i).Scan(&name)
	return name, err
}

func (r *PostgresReader) IntersectionStreetSegmentCount(ctx context.Context, i int32) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `
		SELECT count(*) FROM street_segments WHERE from_id = $1 OR to_id = $1
	`, i).Scan(&n)
	return n, err
}

func (r *PostgresReader) IntersectionStreetSegment(ctx context.Context, k int, i int32) (int32, error) {
	var id int32
	err := r.pool.QueryRow(ctx, `
		SELECT id FROM street_segments WHERE from_id = $1 OR to_id = $1
		ORDER BY id OFFSET $2 LIMIT 1
	`, i, k).Scan(&id)
	return id, err
}

func (r *PostgresReader) InfoStreetSegment(ctx context.Context, s int32) (SegmentInfo, error) {
	var info SegmentInfo
	var curvePointCount int
	err := r.pool.QueryRow(ctx, `
		SELECT from_id, to_id, one_way, street_id, curve_point_count, speed_limit_kmh, way_osm_id
		FROM street_segments WHERE id = $1
	`, s).Scan(&info.From, &info.To, &info.OneWay, &info.StreetID, &curvePointCount,
		&info.SpeedLimitKMH, &info.WayOSMID)
	info.CurvePointCount = curvePointCount
	return info, err
}

func (r *PostgresReader) StreetSegmentCurvePoint(ctx context.Context, k int, s int32) (float64, float64, error) {
	var lat, lon float64
	err := r.pool.QueryRow(ctx, `
		SELECT lat, lon FROM curve_points WHERE segment_id = $1 ORDER BY seq OFFSET $2 LIMIT 1
	`, s, k).Scan(&lat, &lon)
	return lat, lon, err
}

func (r *PostgresReader) StreetName(ctx context.Context, street int32) (string, error) {
	var name string
	err := r.pool.QueryRow(ctx, `SELECT name FROM streets WHERE id = $1`, street).Scan(&name)
	return name, err
}

func (r *PostgresReader) PointOfInterestPosition(ctx context.Context, p int32) (float64, float64, error) {
	var lat, lon float64
	err := r.pool.QueryRow(ctx, `SELECT lat, lon FROM pois WHERE id = $1`, p).Scan(&lat, &lon)
	return lat, lon, err
}

func (r *PostgresReader) PointOfInterestName(ctx context.Context, p int32) (string, error) {
	var name string
	err := r.pool.QueryRow(ctx, `SELECT name FROM pois WHERE id = $1`, p).Scan(&name)
	return name, err
}

func (r *PostgresReader) PointOfInterestType(ctx context.Context, p int32) (string, error) {
	var t string
	err := r.pool.QueryRow(ctx, `SELECT type FROM pois WHERE id = $1`, p).Scan(&t)
	return t, err
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
