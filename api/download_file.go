package api

import (
	"fmt"
	"io"
	"net/http"
	"relayum/file-api/internal/storage"
	"relayum/file-api/model"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func (a *API) DownloadFile(c *gin.Context) {
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

	blob, file, err := a.Egress.OpenOwnerFile(userID, uint(id))
	if err != nil {
		abortErr(c, err)
		return
	}
	defer blob.Close()

	a.streamBlob(c, blob, file)
}

// streamBlob writes one decrypted file to the response. The blob is opened
// and its header verified before any byte or status line goes out, so an
// unreadable file still gets a clean error response. A failure mid-copy can
// only tear the connection down.
func (a *API) streamBlob(c *gin.Context, blob *storage.Blob, file *model.File) {
	c.Header("Content-Type", file.Mime)
	c.Header("Content-Length", strconv.FormatInt(blob.Size, 10))
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", file.OriginalName))
	c.Status(http.StatusOK)

	if _, err := io.Copy(c.Writer, blob); err != nil {
		zap.L().Error("Download stream aborted",
			zap.String("fileID", file.FileID),
			zap.Error(err),
		)
		c.Abort()
		return
	}

	a.Egress.RecordDownload(file)
}
