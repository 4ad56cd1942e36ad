// Command server runs the HTTP surface over a loaded road map: path
// search, courier planning, and street-name lookup. Authentication, rate
// limiting, and analytics each have an environment flag so the same binary
// runs open for local development or gated for a partner deployment; rate
// limiting and analytics only take effect when authentication is enabled.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/streetmap/roadcore/internal/api"
	"github.com/streetmap/roadcore/internal/cache"
	"github.com/streetmap/roadcore/internal/mapcore"
	"github.com/streetmap/roadcore/internal/middleware"
	"github.com/streetmap/roadcore/internal/streetdb"
)

func main() {
	log.Println("Starting roadcore server...")

	ctx := context.Background()

	streetDB, err := streetdb.OpenPostgresReader(ctx, streetdb.LoadConfigFromEnv())
	if err != nil {
		log.Fatalf("Failed to connect to street database: %v", err)
	}
	log.Println("✓ Street database connection established")

	companionPath := mapcore.CompanionPath(getEnv("STREETDB_COMPANION_PATH", "map.osm.bin"))
	osmTags, err := streetdb.OpenSQLiteOSMTags(companionPath)
	if err != nil {
		log.Fatalf("Failed to open companion OSM-tag database %s: %v", companionPath, err)
	}

	m, ok := mapcore.Load(ctx, streetDB, osmTags)
	if !ok {
		log.Fatal("Failed to load road map")
	}
	log.Println("✓ Road map index built")

	rdb, err := cache.GetClient()
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	log.Println("✓ Redis connection established")

	enableAuth := getEnvBool("ENABLE_AUTH", true)
	enableRateLimit := getEnvBool("ENABLE_RATE_LIMIT", true)
	enableAnalytics := getEnvBool("ENABLE_ANALYTICS", true)
	log.Printf("Configuration: Auth=%v, RateLimit=%v, Analytics=%v", enableAuth, enableRateLimit, enableAnalytics)

	srv := &api.Server{Map: m}

	app := fiber.New(fiber.Config{
		AppName:      "roadcore",
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
		ErrorHandler: customErrorHandler,
	})

	app.Use(recover.New())
	app.Use(logger.New(logger.Config{
		Format:     "${time} | ${status} | ${latency} | ${method} ${path} | ${ip}\n",
		TimeFormat: "15:04:05",
		TimeZone:   "Local",
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,OPTIONS",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
	}))

	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"name":    "roadcore",
			"version": "1.0.0",
			"status":  "operational",
			"authentication": map[string]interface{}{
				"enabled": enableAuth,
				"type":    "Bearer Token (API Key)",
				"format":  "Authorization: Bearer pk_live_...",
			},
		})
	})
	app.Get("/health", srv.Health)

	v1 := app.Group("/v1")
	if enableAuth {
		partnerPool, dbErr := streetdb.OpenPartnerPool(ctx, streetdb.LoadConfigFromEnv())
		if dbErr != nil {
			log.Fatalf("Failed to open partner database for auth: %v", dbErr)
		}
		v1.Use(middleware.AuthMiddleware(partnerPool))
		log.Println("✓ Authentication middleware enabled")

		if enableRateLimit {
			v1.Use(middleware.RateLimitMiddleware(rdb))
			log.Println("✓ Rate limiting middleware enabled")
		}
		if enableAnalytics {
			v1.Use(middleware.AnalyticsMiddleware(partnerPool))
			log.Println("✓ Analytics middleware enabled")
		}
	}

	v1.Get("/path", srv.Path)
	v1.Post("/courier", srv.Courier)
	v1.Get("/streets/search", srv.StreetSearch)

	app.Use(func(c *fiber.Ctx) error {
		return c.Status(404).JSON(fiber.Map{
			"error":   "not_found",
			"message": "The requested endpoint does not exist",
			"path":    c.Path(),
		})
	})

	port := getEnv("API_PORT", "8080")
	addr := fmt.Sprintf(":%s", port)

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		<-sigChan

		log.Println("Received shutdown signal, closing connections...")
		m.Close()
		cache.Close()
		if err := app.ShutdownWithTimeout(30 * time.Second); err != nil {
			log.Printf("Error during shutdown: %v", err)
		}
		log.Println("✓ Server shut down gracefully")
	}()

	log.Printf("Listening on http://localhost%s", addr)
	log.Printf("  GET  /v1/path?start=<id>&end=<id>")
	log.Printf("  POST /v1/courier")
	log.Printf("  GET  /v1/streets/search?prefix=<text>")
	log.Printf("  GET  /health")

	if err := app.Listen(addr); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}

func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
	}

	log.Printf("error [%s %s]: %v", c.Method(), c.Path(), err)

	return c.Status(code).JSON(fiber.Map{
		"error":   "internal_error",
		"message": err.Error(),
	})
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
