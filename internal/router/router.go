package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4" // Echo web framework used for routing
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/ticket-checkin/internal/config"
	"github.com/iliyamo/ticket-checkin/internal/handler"
	"github.com/iliyamo/ticket-checkin/internal/middleware"
)

// RegisterRoutes registers routes that are not scoped to an event on the
// provided Echo instance: the health check used by load balancers and the
// Prometheus metrics endpoint.
func RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", handler.Health)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
}

// RegisterCheckinAPI registers the per-event check-in endpoints and their
// middleware.  Every route lives under /api/v1/:organizer/:event and runs
// EventKeyAuth first, so an unknown event answers 404 and a bad key 403
// before any check-in logic executes.  The token-bucket rate limiter
// shields the scan endpoints; the Redis response cache only ever applies
// to the read-only views, since redeem must reach the ledger every time.
// rdb may be nil, which disables caching and rate limiting.
func RegisterCheckinAPI(e *echo.Echo, h *handler.CheckinHandler, events middleware.EventResolver, rdb *redis.Client) {
	g := e.Group("/api/v1/:organizer/:event")
	g.Use(middleware.EventKeyAuth(events))
	g.Use(middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb))

	cached := middleware.NewRedisCache(config.LoadCacheConfig(), rdb)

	g.POST("/redeem", h.Redeem)
	g.GET("/search", h.Search, cached)
	g.GET("/download", h.Download, cached)
	g.GET("/status", h.StatusView, cached)
}
