package api

import (
	"errors"
	"net/http"

	"relayum/file-api/internal/service"
	"relayum/file-api/pkg/apperr"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// abortErr translates a core error into the standard JSON error body.
// Internal failures are logged and flattened to a generic message so
// nothing about disk or database state leaks.
func abortErr(c *gin.Context, err error) {
	requestID := c.GetString("requestID")
	status := apperr.Status(err)

	var q *apperr.QuotaExceeded
	if errors.As(err, &q) {
		c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, gin.H{
			"error":           "Disk quota exceeded",
			"requestID":       requestID,
			"quota_bytes":     q.QuotaBytes,
			"used_bytes":      q.UsedBytes,
			"available_bytes": q.Available(),
		})
		return
	}

	msg := err.Error()
	if status == http.StatusInternalServerError {
		msg = "Internal server error"
		zap.L().Error("Request failed", zap.String("requestID", requestID), zap.Error(err))
	}

	c.AbortWithStatusJSON(status, gin.H{
		"error":     msg,
		"requestID": requestID,
	})
}

// abortResolve maps a share resolution verdict onto the wire. Missing,
// expired and exhausted shares share one message so probing a token reveals
// only that it does not work.
func abortResolve(c *gin.Context, reason service.ResolveReason) {
	requestID := c.GetString("requestID")

	switch reason {
	case service.ResolveNotFound:
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{
			"error":     "Share not found or expired",
			"requestID": requestID,
		})
	case service.ResolveExpired, service.ResolveAccessLimitReached:
		c.AbortWithStatusJSON(http.StatusGone, gin.H{
			"error":     "Share not found or expired",
			"requestID": requestID,
		})
	case service.ResolvePasswordRequired:
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
			"error":     "Password required",
			"requestID": requestID,
		})
	case service.ResolveBadPassword:
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
			"error":     "Invalid password",
			"requestID": requestID,
		})
	}
}
