package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"offer-wallet-service/internal/service"
	"offer-wallet-service/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// IdempotencyStore claims request keys so a replayed mutation is rejected
type IdempotencyStore interface {
	ClaimIdempotencyKey(ctx context.Context, key string, ttl time.Duration) (bool, error)
	ReleaseIdempotencyKey(ctx context.Context, key string) error
}

// Pinger is a dependency checked by the readiness probe
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler contains HTTP handlers
type Handler struct {
	offerService   *service.OfferService
	walletService  *service.WalletService
	idempotency    IdempotencyStore
	idempotencyTTL time.Duration
	dependencies   map[string]Pinger
	logger         *zap.Logger
}

// NewHandler creates a new HTTP handler. idempotency may be nil, which
// disables Idempotency-Key checks.
func NewHandler(
	offerService *service.OfferService,
	walletService *service.WalletService,
	idempotency IdempotencyStore,
	idempotencyTTL time.Duration,
	dependencies map[string]Pinger,
) *Handler {
	return &Handler{
		offerService:   offerService,
		walletService:  walletService,
		idempotency:    idempotency,
		idempotencyTTL: idempotencyTTL,
		dependencies:   dependencies,
		logger:         util.GetLogger(),
	}
}

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.Use(gin.Recovery())
	router.Use(prometheusMiddleware())
	router.Use(h.requestLogger())

	router.GET("/health", h.healthCheck)
	router.GET("/ready", h.readinessCheck)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")
	{
		offers := v1.Group("/offers")
		offers.POST("", h.createOffer)
		offers.GET("", h.listOffers)
		offers.GET("/active", h.getActiveOffers)
		offers.POST("/applicable", h.findApplicableOffers)
		offers.GET("/code/:code", h.getOfferByCode)
		offers.GET("/:id", h.getOffer)
		offers.PUT("/:id", h.updateOffer)
		offers.DELETE("/:id", h.disableOffer)
		offers.POST("/:id/validate", h.validateOffer)
		offers.GET("/:id/usage", h.getUserUsage)
		offers.POST("/:id/usage", h.recordUsage)
		offers.POST("/:id/redeem", h.redeemOffer)

		wallet := v1.Group("/shops/:shopId/wallet")
		wallet.GET("", h.getWallet)
		wallet.GET("/transactions", h.listTransactions)
		wallet.GET("/verify", h.verifyWallet)
		wallet.POST("/credit", h.idempotent(), h.addCredit)
		wallet.POST("/debit", h.idempotent(), h.deductCredit)
		wallet.POST("/adjust", h.idempotent(), h.adjustBalance)
		wallet.PUT("/status", h.setWalletStatus)
	}
}

// healthCheck handles health check requests
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

// readinessCheck pings every dependency
func (h *Handler) readinessCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	failed := gin.H{}
	for name, dep := range h.dependencies {
		if err := dep.Ping(ctx); err != nil {
			failed[name] = err.Error()
		}
	}

	if len(failed) > 0 {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":  "not ready",
			"details": failed,
			"time":    time.Now().Unix(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
		"time":   time.Now().Unix(),
	})
}

// idempotent rejects a replayed Idempotency-Key for the same route and shop.
// The key is released when the request does not succeed.
func (h *Handler) idempotent() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.GetHeader("Idempotency-Key")
		if key == "" || h.idempotency == nil {
			c.Next()
			return
		}

		scoped := c.Request.Method + ":" + c.FullPath() + ":" + c.Param("shopId") + ":" + key
		ctx := c.Request.Context()

		claimed, err := h.idempotency.ClaimIdempotencyKey(ctx, scoped, h.idempotencyTTL)
		if err != nil {
			h.logger.Error("Failed to claim idempotency key", zap.Error(err))
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{
				"error": "Idempotency check unavailable",
			})
			return
		}
		if !claimed {
			c.AbortWithStatusJSON(http.StatusConflict, gin.H{
				"error":          "Duplicate request",
				"idempotencyKey": key,
			})
			return
		}

		c.Next()

		if c.Writer.Status() >= http.StatusBadRequest {
			if err := h.idempotency.ReleaseIdempotencyKey(ctx, scoped); err != nil {
				h.logger.Warn("Failed to release idempotency key", zap.Error(err))
			}
		}
	}
}

// requestLogger logs each request through zap
func (h *Handler) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		h.logger.Debug("HTTP request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)))
	}
}

// prometheusMiddleware collects HTTP metrics
func prometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())

		util.HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Observe(duration)

		util.HTTPRequestsTotal.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Inc()
	}
}

// userID reads the caller identity from the body value or the X-User-ID header
func userID(c *gin.Context, fromBody string) string {
	if fromBody != "" {
		return fromBody
	}
	return c.GetHeader("X-User-ID")
}
