// Package api implements the HTTP surface over a mapcore.Map: path search,
// courier planning, and street-name lookup. Path search fans out one
// goroutine per turn-penalty profile, each going through cache+lock, and
// reconciles results on a buffered channel.
package api

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/streetmap/roadcore/internal/cache"
	"github.com/streetmap/roadcore/internal/mapcore"
	"github.com/streetmap/roadcore/internal/models"
	"github.com/streetmap/roadcore/internal/routing"
)

// Server bundles the dependencies every handler needs. Registered via a
// closure when cmd/server wires routes, keeping handlers as methods rather
// than package-level globals reaching for a singleton.
type Server struct {
	Map *mapcore.Map
}

// PathSearchResponse is the /v1/path response: one result per named
// turn-penalty profile.
type PathSearchResponse struct {
	Paths map[string]*PathResult `json:"paths"`
}

// PathResult is one profile's path result.
type PathResult struct {
	DurationSeconds float64 `json:"duration_seconds"`
	Segments        []int32 `json:"segments"`
}

// Path handles GET /v1/path?start=<id>&end=<id>[&profile=<name>]. With no
// profile query param it computes every named profile in parallel.
func (s *Server) Path(c *fiber.Ctx) error {
	startStr := c.Query("start")
	endStr := c.Query("end")
	if startStr == "" || endStr == "" {
		return c.Status(400).JSON(fiber.Map{
			"error": "missing required parameters: start and end",
		})
	}

	start, err := parseIntersectionID(startStr)
	if err != nil {
		return c.Status(400).JSON(fiber.Map{"error": fmt.Sprintf("invalid 'start': %v", err)})
	}
	end, err := parseIntersectionID(endStr)
	if err != nil {
		return c.Status(400).JSON(fiber.Map{"error": fmt.Sprintf("invalid 'end': %v", err)})
	}

	ctx := c.Context()
	profiles := routing.AllPenaltyProfiles()
	if name := c.Query("profile"); name != "" {
		profiles = []routing.PenaltyProfile{routing.GetPenaltyProfile(name)}
	}

	type profileResult struct {
		name string
		res  *PathResult
		err  error
	}

	resultChan := make(chan profileResult, len(profiles))
	var wg sync.WaitGroup

	for _, profile := range profiles {
		wg.Add(1)
		go func(p routing.PenaltyProfile) {
			defer wg.Done()
			res, err := s.computePath(ctx, start, end, p)
			resultChan <- profileResult{name: p.Name(), res: res, err: err}
		}(profile)
	}

	go func() {
		wg.Wait()
		close(resultChan)
	}()

	paths := make(map[string]*PathResult)
	for r := range resultChan {
		if r.err != nil {
			log.Printf("path search failed for profile %s: %v", r.name, r.err)
			continue
		}
		if r.res != nil {
			paths[r.name] = r.res
		}
	}

	if len(paths) == 0 {
		return c.Status(404).JSON(fiber.Map{"error": "no path found between the specified intersections"})
	}

	return c.JSON(PathSearchResponse{Paths: paths})
}

// computePath runs one profile's search with cache/lock: check cache, try
// to take the lock, wait for a concurrent identical query if someone else
// holds it, else compute and cache.
func (s *Server) computePath(ctx context.Context, start, end int32, profile routing.PenaltyProfile) (*PathResult, error) {
	cacheKey := cache.PathKey(start, end, profile.RightPenalty(), profile.LeftPenalty())
	lockKey := cache.LockKey(cacheKey)

	if cached, err := cache.GetPath(ctx, cacheKey); err == nil && cached != nil {
		return &PathResult{DurationSeconds: cached.TimeSec, Segments: cached.Segments}, nil
	}

	acquired, err := cache.AcquireLock(ctx, lockKey, 5*time.Second)
	if err != nil {
		log.Printf("failed to acquire path lock: %v", err)
	} else if !acquired {
		if cached, err := cache.WaitForPath(ctx, cacheKey, 3*time.Second); err == nil && cached != nil {
			return &PathResult{DurationSeconds: cached.TimeSec, Segments: cached.Segments}, nil
		}
	}
	defer func() {
		if acquired {
			cache.ReleaseLock(ctx, lockKey)
		}
	}()

	segments, err := s.Map.FindPathBetweenIntersections(ctx, start, end, profile.RightPenalty(), profile.LeftPenalty())
	if err != nil {
		return nil, err
	}

	duration := s.Map.ComputePathTravelTime(segments, profile.RightPenalty(), profile.LeftPenalty())

	if err := cache.SetPath(ctx, cacheKey, &cache.PathResult{Segments: segments, TimeSec: duration}, 10*time.Minute); err != nil {
		log.Printf("failed to cache path: %v", err)
	}

	return &PathResult{DurationSeconds: duration, Segments: segments}, nil
}

// CourierRequest is the /v1/courier request body.
type CourierRequest struct {
	Deliveries   []models.Delivery `json:"deliveries"`
	Depots       []models.Depot    `json:"depots"`
	RightPenalty float64           `json:"right_turn_penalty"`
	LeftPenalty  float64           `json:"left_turn_penalty"`
	Capacity     float64           `json:"capacity"`
}

// CourierResponse is the /v1/courier response body.
type CourierResponse struct {
	Route []models.RouteElement `json:"route"`
}

// Courier handles POST /v1/courier.
func (s *Server) Courier(c *fiber.Ctx) error {
	var req CourierRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": fmt.Sprintf("invalid request body: %v", err)})
	}
	if len(req.Deliveries) == 0 {
		return c.Status(400).JSON(fiber.Map{"error": "deliveries must not be empty"})
	}
	if len(req.Depots) == 0 {
		return c.Status(400).JSON(fiber.Map{"error": "depots must not be empty"})
	}

	ctx := c.Context()
	cacheKey := cache.CourierKey(req.Deliveries, req.Depots, req.RightPenalty, req.LeftPenalty, req.Capacity)

	if cached, err := cache.GetCourierPlan(ctx, cacheKey); err == nil && cached != nil {
		return c.JSON(CourierResponse{Route: cached})
	}

	route, err := s.Map.TravelingCourier(ctx, req.Deliveries, req.Depots, req.RightPenalty, req.LeftPenalty, req.Capacity)
	if err != nil {
		log.Printf("courier planning failed: %v", err)
		return c.Status(500).JSON(fiber.Map{"error": "internal server error"})
	}

	if err := cache.SetCourierPlan(ctx, cacheKey, route, 5*time.Minute); err != nil {
		log.Printf("failed to cache courier plan: %v", err)
	}

	return c.JSON(CourierResponse{Route: route})
}

// StreetSearchResponse is the /v1/streets/search response.
type StreetSearchResponse struct {
	StreetIDs []int32 `json:"street_ids"`
}

// StreetSearch handles GET /v1/streets/search?prefix=<text>.
func (s *Server) StreetSearch(c *fiber.Ctx) error {
	prefix := c.Query("prefix")
	if prefix == "" {
		return c.Status(400).JSON(fiber.Map{"error": "missing required parameter: prefix"})
	}
	ids := s.Map.FindStreetIDsFromPartialStreetName(prefix)
	if ids == nil {
		ids = []int32{}
	}
	return c.JSON(StreetSearchResponse{StreetIDs: ids})
}

// Health handles GET /health.
func (s *Server) Health(c *fiber.Ctx) error {
	ctx := c.Context()

	redisErr := cache.HealthCheck(ctx)
	redisStatus := "ok"
	if redisErr != nil {
		redisStatus = redisErr.Error()
	}

	status := "healthy"
	httpStatus := 200
	if redisErr != nil {
		status = "unhealthy"
		httpStatus = 503
	}

	return c.Status(httpStatus).JSON(fiber.Map{
		"status": status,
		"checks": fiber.Map{
			"redis": redisStatus,
		},
	})
}

func parseIntersectionID(s string) (int32, error) {
	v, err := strconv.ParseInt(strings.TrimSpace(s), 10, 32)
	if err != nil {
		return 0, err
	}
	return int32(v), nil
}
