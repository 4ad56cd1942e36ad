// Package cache provides a Redis-backed cache for path and courier-route
// results, plus a distributed lock so concurrent identical queries collapse
// into one search instead of stampeding the router.
package cache

import (
	"context"
	"crypto/sha256"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/streetmap/roadcore/internal/models"
)

var (
	client     *redis.Client
	clientOnce sync.Once
	clientErr  error
)

// Config holds Redis configuration.
type Config struct {
	Host     string
	Port     int
	Password string
	DB       int
	TTL      time.Duration
	MutexTTL time.Duration
}

// LoadConfigFromEnv loads Redis configuration from environment variables.
func LoadConfigFromEnv() *Config {
	port, _ := strconv.Atoi(getEnv("REDIS_PORT", "6379"))
	db, _ := strconv.Atoi(getEnv("REDIS_DB", "0"))
	ttl, _ := time.ParseDuration(getEnv("CACHE_TTL", "10m"))
	mutexTTL, _ := time.ParseDuration(getEnv("CACHE_MUTEX_TTL", "5s"))

	return &Config{
		Host:     getEnv("REDIS_HOST", "localhost"),
		Port:     port,
		Password: getEnv("REDIS_PASSWORD", ""),
		DB:       db,
		TTL:      ttl,
		MutexTTL: mutexTTL,
	}
}

// GetClient returns the global Redis client (singleton pattern).
func GetClient() (*redis.Client, error) {
	clientOnce.Do(func() {
		config := LoadConfigFromEnv()

		opts := &redis.Options{
			Addr:         fmt.Sprintf("%s:%d", config.Host, config.Port),
			Password:     config.Password,
			DB:           config.DB,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
			PoolSize:     10,
			MinIdleConns: 2,
		}

		if getEnv("REDIS_TLS_ENABLED", "false") == "true" {
			opts.TLSConfig = &tls.Config{
				MinVersion: tls.VersionTLS12,
			}
		}

		client = redis.NewClient(opts)

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := client.Ping(ctx).Err(); err != nil {
			clientErr = fmt.Errorf("failed to connect to Redis: %w", err)
			return
		}
	})

	return client, clientErr
}

// Close closes the Redis client.
func Close() {
	if client != nil {
		client.Close()
	}
}

// PathResult is the cached shape of a find_path_between_intersections call.
type PathResult struct {
	Segments []int32 `json:"segments"`
	TimeSec  float64 `json:"time_sec"`
}

// PathKey generates a cache key for a single-pair path query. Right/left
// penalties are part of the key because they change the result.
func PathKey(start, end int32, rightPenalty, leftPenalty float64) string {
	data := fmt.Sprintf("%d,%d,%.2f,%.2f", start, end, rightPenalty, leftPenalty)
	hash := sha256.Sum256([]byte(data))
	return fmt.Sprintf("path:%x", hash[:8])
}

// CourierKey generates a cache key for a courier plan. The deliveries and
// depots are hashed in request order since reordering them can change the
// greedy seed the planner starts from.
func CourierKey(deliveries []models.Delivery, depots []models.Depot, rightPenalty, leftPenalty, capacity float64) string {
	data, _ := json.Marshal(struct {
		Deliveries []models.Delivery
		Depots     []models.Depot
		Right      float64
		Left       float64
		Capacity   float64
	}{deliveries, depots, rightPenalty, leftPenalty, capacity})
	hash := sha256.Sum256(data)
	return fmt.Sprintf("courier:%x", hash[:8])
}

// LockKey generates a mutex lock key for a cache key.
func LockKey(key string) string {
	return fmt.Sprintf("lock:%s", key)
}

// GetPath retrieves a cached path result.
func GetPath(ctx context.Context, key string) (*PathResult, error) {
	client, err := GetClient()
	if err != nil {
		return nil, err
	}

	data, err := client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, nil // cache miss
	}
	if err != nil {
		return nil, err
	}

	var result PathResult
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cached path: %w", err)
	}

	return &result, nil
}

// SetPath caches a path result.
func SetPath(ctx context.Context, key string, result *PathResult, ttl time.Duration) error {
	client, err := GetClient()
	if err != nil {
		return err
	}

	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to marshal path: %w", err)
	}

	return client.Set(ctx, key, data, ttl).Err()
}

// GetCourierPlan retrieves a cached courier route.
func GetCourierPlan(ctx context.Context, key string) ([]models.RouteElement, error) {
	client, err := GetClient()
	if err != nil {
		return nil, err
	}

	data, err := client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var elements []models.RouteElement
	if err := json.Unmarshal(data, &elements); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cached courier plan: %w", err)
	}
	return elements, nil
}

// SetCourierPlan caches a courier route.
func SetCourierPlan(ctx context.Context, key string, elements []models.RouteElement, ttl time.Duration) error {
	client, err := GetClient()
	if err != nil {
		return err
	}

	data, err := json.Marshal(elements)
	if err != nil {
		return fmt.Errorf("failed to marshal courier plan: %w", err)
	}

	return client.Set(ctx, key, data, ttl).Err()
}

// AcquireLock attempts to acquire a distributed lock. Returns true if the
// lock was acquired, false if it is already held.
func AcquireLock(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	client, err := GetClient()
	if err != nil {
		return false, err
	}

	ok, err := client.SetNX(ctx, key, "1", ttl).Result()
	if err != nil {
		return false, err
	}

	return ok, nil
}

// ReleaseLock releases a distributed lock.
func ReleaseLock(ctx context.Context, key string) error {
	client, err := GetClient()
	if err != nil {
		return err
	}

	return client.Del(ctx, key).Err()
}

// WaitForPath waits for a concurrent identical query's lock to be released,
// then retrieves its cached result, avoiding a thundering herd on an
// expensive search.
func WaitForPath(ctx context.Context, key string, maxWait time.Duration) (*PathResult, error) {
	client, err := GetClient()
	if err != nil {
		return nil, err
	}

	lockKey := LockKey(key)
	deadline := time.Now().Add(maxWait)

	for time.Now().Before(deadline) {
		exists, err := client.Exists(ctx, lockKey).Result()
		if err != nil {
			return nil, err
		}

		if exists == 0 {
			return GetPath(ctx, key)
		}

		time.Sleep(100 * time.Millisecond)
	}

	return nil, fmt.Errorf("timeout waiting for lock")
}

// HealthCheck performs a health check on the Redis connection.
func HealthCheck(ctx context.Context) error {
	client, err := GetClient()
	if err != nil {
		return fmt.Errorf("redis client not initialized: %w", err)
	}

	if err := client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}

	return nil
}

// Stats returns Redis connection pool stats.
func Stats(ctx context.Context) (map[string]interface{}, error) {
	client, err := GetClient()
	if err != nil {
		return nil, err
	}

	info, err := client.Info(ctx, "stats").Result()
	if err != nil {
		return nil, err
	}

	poolStats := client.PoolStats()

	return map[string]interface{}{
		"info":        info,
		"hits":        poolStats.Hits,
		"misses":      poolStats.Misses,
		"timeouts":    poolStats.Timeouts,
		"total_conns": poolStats.TotalConns,
		"idle_conns":  poolStats.IdleConns,
		"stale_conns": poolStats.StaleConns,
	}, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
