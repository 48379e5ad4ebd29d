package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func (a *API) UserQuota(c *gin.Context) {
	userID := c.MustGet("userID").(string)

	used, limit, override, err := a.Quota.Snapshot(userID)
	if err != nil {
		abortErr(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"used_bytes":         used,
		"quota_bytes":        limit,
		"available_bytes":    max(limit-used, 0),
		"has_admin_override": override,
	})
}
