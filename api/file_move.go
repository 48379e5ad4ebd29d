package api

import (
	"errors"
	"net/http"
	"relayum/file-api/model"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type fileMoveBody struct {
	FolderID *uint `json:"folder_id"`
}

// FileMove re-homes a file into another folder, or to the root when
// folder_id is null. Both the file and the destination must belong to the
// caller.
func (a *API) FileMove(c *gin.Context) {
	requestID := c.MustGet("requestID").(string)
	userID := c.MustGet("userID").(string)

	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
			"error":     "Invalid file ID",
			"requestID": requestID,
		})
		return
	}

	var data fileMoveBody
	if err := c.ShouldBind(&data); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
			"error":     "Invalid request body",
			"requestID": requestID,
		})
		return
	}

	err = a.DB.Transaction(func(tx *gorm.DB) error {
		var file model.File
		if err := tx.Where("id = ? AND user_id = ?", uint(id), userID).First(&file).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return gorm.ErrRecordNotFound
			}
			return err
		}

		if data.FolderID != nil {
			var n int64
			if err := tx.Model(model.Folder{}).
				Where("id = ? AND user_id = ?", *data.FolderID, userID).
				Count(&n).Error; err != nil {
				return err
			}

			if n == 0 {
				return gorm.ErrRecordNotFound
			}
		}

		return tx.Model(model.File{}).
			Where("id = ?", file.ID).
			Update("folder_id", data.FolderID).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{
				"error":     "File or folder not found",
				"requestID": requestID,
			})
			return
		}

		zap.L().Error("Failed to move file", zap.Error(err), zap.String("requestID", requestID))
		abortErr(c, err)
		return
	}

	c.Status(http.StatusOK)
}
