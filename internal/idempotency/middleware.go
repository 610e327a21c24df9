package idempotency

import (
	"context"
	"net/http"
	"strings"
	"time"

	"invoice-bookkeeping-backend/internal/apperror"
	"invoice-bookkeeping-backend/internal/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	Header = "Idempotency-Key"

	maxKeyLen = 255
)

// Middleware answers 409 when a key was already used on the same route
// within ttl. Requests without the header pass through. A request that
// fails (status >= 400) releases its key so the client may retry.
// Store errors fail open.
func Middleware(store Store, ttl time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := strings.TrimSpace(c.GetHeader(Header))
		if raw == "" {
			c.Next()
			return
		}
		if len(raw) > maxKeyLen {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
				"success": false,
				"code":    apperror.CodeValidation,
				"message": Header + " is too long",
				"field":   Header,
			})
			return
		}

		log := logger.FromGin(c)
		key := c.Request.Method + " " + c.FullPath() + " " + raw
		ctx := c.Request.Context()

		claimed, err := store.Claim(ctx, key, ttl)
		if err != nil {
			log.Warn("idempotency store unavailable", zap.Error(err))
			c.Next()
			return
		}
		if !claimed {
			log.Info("duplicate request rejected", zap.String("idempotency_key", raw))
			c.AbortWithStatusJSON(http.StatusConflict, gin.H{
				"success": false,
				"code":    apperror.CodeConflict,
				"message": "a request with this " + Header + " was already processed",
			})
			return
		}

		c.Next()

		if c.Writer.Status() >= http.StatusBadRequest {
			// the client may be gone by now
			if err := store.Release(context.WithoutCancel(ctx), key); err != nil {
				log.Warn("release idempotency key", zap.Error(err))
			}
		}
	}
}
