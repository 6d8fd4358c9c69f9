// Package sse streams shelf events to signed-in staff.
package sse

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kasuganosora/gildedrose/cache"
	"github.com/kasuganosora/gildedrose/config"
	mw "github.com/kasuganosora/gildedrose/middleware"
	"github.com/kasuganosora/gildedrose/shop"
	"go.uber.org/zap"
)

// Handler handles the SSE endpoint.
type Handler struct {
	pubsub    cache.PubSub
	sec       config.SecurityConfig
	c         cache.Cache
	logger    *zap.Logger
	keepalive time.Duration
	origins   map[string]bool
}

// NewHandler creates a new SSE Handler.
func NewHandler(pubsub cache.PubSub, c cache.Cache, sec config.SecurityConfig, logger *zap.Logger) *Handler {
	origins := make(map[string]bool, len(sec.AllowedOrigins))
	for _, o := range sec.AllowedOrigins {
		origins[o] = true
	}
	return &Handler{
		pubsub:    pubsub,
		c:         c,
		sec:       sec,
		logger:    logger,
		keepalive: 30 * time.Second,
		origins:   origins,
	}
}

// SetKeepalive overrides the keepalive comment interval.
func (h *Handler) SetKeepalive(d time.Duration) { h.keepalive = d }

func (h *Handler) originAllowed(origin string) bool {
	return origin == "" || len(h.origins) == 0 || h.origins[origin]
}

// ServeSSE handles GET /sse?token=<jwt>.
// Every committed aging run is delivered as a "stock_aged" event.
func (h *Handler) ServeSSE(c *gin.Context) {
	origin := c.GetHeader("Origin")
	if !h.originAllowed(origin) {
		c.JSON(http.StatusForbidden, gin.H{"error": "origin not allowed"})
		return
	}

	tokenStr := c.Query("token")
	if tokenStr == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
		return
	}
	claims, err := mw.Authenticate(c.Request.Context(), h.sec, h.c, tokenStr)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired session"})
		return
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	if origin != "" {
		c.Header("Access-Control-Allow-Origin", origin)
	}

	subCtx, subCancel := context.WithCancel(c.Request.Context())
	defer subCancel()

	msgCh, unsub, err := h.pubsub.Subscribe(subCtx, shop.ChannelStockAged)
	if err != nil {
		h.logger.Error("sse subscribe failed", zap.Error(err))
		c.Status(http.StatusInternalServerError)
		return
	}
	defer unsub()

	h.logger.Debug("sse client connected", zap.Int64("account_id", claims.AccountID))
	fmt.Fprintf(c.Writer, "event: connected\ndata: {}\n\n")
	c.Writer.Flush()

	ticker := time.NewTicker(h.keepalive)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-msgCh:
			if !ok {
				return
			}
			fmt.Fprintf(c.Writer, "event: %s\ndata: %s\n\n", shop.ChannelStockAged, msg.Payload)
			c.Writer.Flush()

		case <-ticker.C:
			// Keepalive comment to prevent proxy timeouts.
			fmt.Fprintf(c.Writer, ": keepalive\n\n")
			c.Writer.Flush()

		case <-c.Request.Context().Done():
			return
		}
	}
}
