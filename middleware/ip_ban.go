package middleware

import (
	"net/http"
	"time"

	"relayum/file-api/model"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// NewIPBanMiddleware rejects requests from banned addresses. Expired bans
// are treated as absent.
func NewIPBanMiddleware(d *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := c.ClientIP()

		var ban model.IPBan
		err := d.Where("ip = ?", ip).First(&ban).Error
		if err != nil {
			if err != gorm.ErrRecordNotFound {
				zap.L().Error("Failed to check ip ban", zap.Error(err))
			}

			c.Next()
			return
		}

		if ban.ExpiresAt != nil && *ban.ExpiresAt < time.Now().Unix() {
			c.Next()
			return
		}

		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
			"error": "Forbidden",
		})
	}
}
