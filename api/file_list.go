package api

import (
	"net/http"
	"relayum/file-api/model"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// FileList returns the caller's files in one folder. Without a folder_id
// query parameter it lists the root.
func (a *API) FileList(c *gin.Context) {
	requestID := c.MustGet("requestID").(string)
	userID := c.MustGet("userID").(string)

	q := a.DB.Where("user_id = ?", userID)

	if v := c.Query("folder_id"); v != "" {
		id, err := strconv.ParseUint(v, 10, 32)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
				"error":     "Invalid folder ID",
				"requestID": requestID,
			})
			return
		}

		q = q.Where("folder_id = ?", uint(id))
	} else {
		q = q.Where("folder_id IS NULL")
	}

	var files []model.File
	if err := q.Order("created_at DESC").Find(&files).Error; err != nil {
		zap.L().Error("Failed to list files", zap.Error(err), zap.String("requestID", requestID))
		abortErr(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"files": files,
	})
}
