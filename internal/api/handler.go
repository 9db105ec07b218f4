package api

import (
	"context"
	"io"
	"net/http"
	"strconv"
	"time"

	"registration-service/internal/service"
	"registration-service/internal/stripeclient"
	"registration-service/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/stripe/stripe-go/v79"
	"go.uber.org/zap"
)

// Verifier authenticates inbound webhook payloads.
// *stripeclient.Client satisfies it.
type Verifier interface {
	VerifyEvent(payload []byte, sigHeader string, channel stripeclient.Channel) (*stripe.Event, error)
}

// WebhookProcessor reconciles a verified event.
// *service.WebhookService satisfies it.
type WebhookProcessor interface {
	HandleEvent(ctx context.Context, event *stripe.Event, connectedAccountID string) error
}

// BoardLoader loads the admin status board bundle.
// *service.StatusBoardService satisfies it.
type BoardLoader interface {
	StatusBoard(ctx context.Context) (*service.StatusBoardData, error)
}

// Handler contains HTTP handlers
type Handler struct {
	verifier Verifier
	webhooks WebhookProcessor
	board    BoardLoader
	logger   *zap.Logger
}

// NewHandler creates a new HTTP handler
func NewHandler(verifier Verifier, webhooks WebhookProcessor, board BoardLoader) *Handler {
	return &Handler{
		verifier: verifier,
		webhooks: webhooks,
		board:    board,
		logger:   util.GetLogger(),
	}
}

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.Use(gin.Recovery())
	router.Use(prometheusMiddleware())
	router.Use(gin.Logger())

	router.GET("/health", h.healthCheck)
	router.GET("/ready", h.readinessCheck)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	webhooks := router.Group("/webhooks")
	{
		webhooks.POST("/stripe", h.stripeWebhook)
		webhooks.POST("/stripe/connected", h.stripeConnectedWebhook)
	}

	v1 := router.Group("/api/v1")
	{
		v1.GET("/status-board", h.statusBoard)
	}
}

// healthCheck handles health check requests
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

// readinessCheck handles readiness check requests
func (h *Handler) readinessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
		"time":   time.Now().Unix(),
	})
}

// stripeWebhook handles events for the primary account
func (h *Handler) stripeWebhook(c *gin.Context) {
	h.handleWebhook(c, stripeclient.ChannelDirect)
}

// stripeConnectedWebhook handles events for connected sub-accounts
func (h *Handler) stripeConnectedWebhook(c *gin.Context) {
	h.handleWebhook(c, stripeclient.ChannelConnect)
}

// handleWebhook verifies a raw event body against the channel's secret and
// runs reconciliation. Once the signature verifies, the provider always
// gets a 200 acknowledgment: internal reconciliation failures land in the
// audit log, never in the response, so the provider does not redeliver
// events we already accepted.
func (h *Handler) handleWebhook(c *gin.Context, channel stripeclient.Channel) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.String(http.StatusBadRequest, "Webhook Error: could not read request body")
		return
	}

	event, err := h.verifier.VerifyEvent(body, c.GetHeader("Stripe-Signature"), channel)
	if err != nil {
		h.logger.Warn("Webhook verification failed", zap.Error(err))
		c.String(http.StatusBadRequest, "Webhook Error: %v", err)
		return
	}

	connectedAccountID := ""
	if channel == stripeclient.ChannelConnect {
		connectedAccountID = event.Account
	}

	if err := h.webhooks.HandleEvent(c.Request.Context(), event, connectedAccountID); err != nil {
		h.logger.Error("Webhook reconciliation failed",
			zap.String("event_id", event.ID),
			zap.String("type", string(event.Type)),
			zap.Error(err))
	}

	c.Status(http.StatusOK)
}

// statusBoard serves the admin status board bundle; filtering happens
// client-side
func (h *Handler) statusBoard(c *gin.Context) {
	data, err := h.board.StatusBoard(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to load status board",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, data)
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
