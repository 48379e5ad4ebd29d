package api

import (
	"net/http"
	"relayum/file-api/internal/service"
	"relayum/file-api/internal/storage"
	"relayum/file-api/model"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// FileValidate re-reads every stored blob of the caller and reports any
// header or integrity damage without decrypting the payloads.
func (a *API) FileValidate(c *gin.Context) {
	requestID := c.MustGet("requestID").(string)
	userID := c.MustGet("userID").(string)

	var user model.User
	if err := a.DB.First(&user, "id = ?", userID).Error; err != nil {
		zap.L().Error("Failed to load user", zap.Error(err), zap.String("requestID", requestID))
		abortErr(c, err)
		return
	}

	masterKey, err := service.UnsealUserKey(&user, a.MetadataKey)
	if err != nil {
		abortErr(c, err)
		return
	}

	results, err := a.Store.ValidateUserStorage(userID, masterKey)
	if err != nil {
		abortErr(c, err)
		return
	}

	healthy := true
	for _, r := range results {
		if r.Status != storage.BlobValid {
			healthy = false
			break
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"healthy": healthy,
		"results": results,
	})
}
