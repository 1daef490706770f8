// Package middleware contains the HTTP middleware chain.
//
// In gin a middleware runs before/after the handlers; this package covers
// the cross-cutting concerns: request ids, logging, CORS, panic recovery,
// and Prometheus metrics.
package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/Haleralex/walletledger/internal/adapters/http/common"
	"github.com/Haleralex/walletledger/internal/pkg/logger"
)

// RequestID assigns every request a unique id, echoed back as X-Request-ID
// and attached to the error envelope and all log lines for that request.
// A client-supplied X-Request-ID is kept so callers can correlate retries.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(common.RequestIDHeader)
		if requestID == "" {
			requestID = uuid.New().String()
		}

		common.SetRequestID(c, requestID)

		// Stamp the id into the request context too, so log records
		// written below the handler carry it.
		ctx := logger.WithRequestID(c.Request.Context(), requestID)
		c.Request = c.Request.WithContext(ctx)

		c.Next()
	}
}

// GetRequestID extracts the request id from the gin context.
func GetRequestID(c *gin.Context) string {
	return common.GetRequestID(c)
}
