package api

import (
	"fmt"
	"net/http"
	"relayum/file-api/internal/service"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// DownloadFolder streams an owned folder as a ZIP archive. A folder holding
// exactly one file skips the archive and serves the file directly.
func (a *API) DownloadFolder(c *gin.Context) {
	requestID := c.MustGet("requestID").(string)
	userID := c.MustGet("userID").(string)

	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
			"error":     "Invalid folder ID",
			"requestID": requestID,
		})
		return
	}

	files, err := a.Folders.FilesRecursive(userID, uint(id))
	if err != nil {
		abortErr(c, err)
		return
	}

	if len(files) == 0 {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{
			"error":     "Folder is empty",
			"requestID": requestID,
		})
		return
	}

	if err := a.Egress.GuardSize(files); err != nil {
		abortErr(c, err)
		return
	}

	if len(files) == 1 {
		blob, file, err := a.Egress.OpenOwnerFile(userID, files[0].File.ID)
		if err != nil {
			abortErr(c, err)
			return
		}
		defer blob.Close()

		a.streamBlob(c, blob, file)
		return
	}

	a.streamZip(c, userID, "folder", files)
}

// streamZip serves a multi-file selection as one streaming archive. The
// archive is built on the fly, so a blob failing mid-way truncates the
// download instead of producing a late error status.
func (a *API) streamZip(c *gin.Context, ownerID, name string, files []service.FileWithPath) {
	c.Header("Content-Type", "application/zip")
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name+".zip"))
	c.Status(http.StatusOK)

	if err := a.Egress.StreamZip(c.Writer, ownerID, files); err != nil {
		zap.L().Error("ZIP stream aborted", zap.Error(err))
		c.Abort()
		return
	}

	for i := range files {
		a.Egress.RecordDownload(&files[i].File)
	}
}
