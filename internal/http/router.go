// Package httpapi wires the HTTP transport (Gin) in front of the bot: the
// Telegram webhook, liveness and Prometheus metrics. It centralizes tracing,
// correlation ids, redacted access logs, panic recovery, metrics, security
// headers and rate limiting.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"gorm.io/gorm"

	"github.com/tbourn/go-order-bot/internal/config"
	"github.com/tbourn/go-order-bot/internal/http/handlers"
	"github.com/tbourn/go-order-bot/internal/http/middleware"
	"github.com/tbourn/go-order-bot/internal/repo"
)

// maxUpdateBytes caps webhook bodies. Telegram updates are a few KiB.
const maxUpdateBytes = 1 << 20

// Deps are the collaborators behind the routes.
type Deps struct {
	// Updates receives webhook updates; nil disables the webhook route.
	Updates handlers.Receiver
	// DB backs update dedup; nil disables it.
	DB *gorm.DB
}

// dedupShim adapts repo.MarkUpdate to handlers.Deduper.
type dedupShim struct {
	db  *gorm.DB
	ttl time.Duration
}

// Seen proxies repo.MarkUpdate.
func (s dedupShim) Seen(ctx context.Context, updateID, chatID int64) (bool, error) {
	err := repo.MarkUpdate(ctx, s.db, updateID, chatID, s.ttl)
	if errors.Is(err, repo.ErrDuplicate) {
		return true, nil
	}
	return false, err
}

// RegisterRoutes attaches middleware and endpoints to r.
//
// Middleware order matters:
//  1. OpenTelemetry: trace everything
//  2. RequestID: generate/propagate correlation id
//  3. AccessLog: structured logs with redaction
//  4. Recovery: capture panics after logger
//  5. Body size limiter
//  6. Metrics
//  7. Security headers
//
// The rate limiter guards the webhook only, so scrapes and probes are
// never throttled.
func RegisterRoutes(r *gin.Engine, deps Deps, cfg config.Config) {
	r.HandleMethodNotAllowed = true

	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))
	r.Use(middleware.RequestID())
	r.Use(middleware.AccessLog(middleware.RedactOptions{}))
	r.Use(middleware.Recovery())
	r.Use(limitBody(maxUpdateBytes))
	r.Use(middleware.Metrics())
	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		EnableHSTS: !cfg.Polling(),
	}))

	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "method not allowed")
	})

	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	if deps.Updates == nil || cfg.Telegram.Token == "" {
		return
	}
	wh := &handlers.Webhook{
		Token:   cfg.Telegram.Token,
		Secret:  cfg.Telegram.WebhookSecret,
		Updates: deps.Updates,
	}
	if deps.DB != nil {
		wh.Dedup = dedupShim{db: deps.DB, ttl: cfg.UpdateDedupTTL}
	}
	rl := middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst, middleware.KeyByIP())
	r.POST("/webhook/:token", rl.Handler(), wh.Handle)
}

// limitBody caps the request body at maxBytes; reads past it fail.
func limitBody(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}
