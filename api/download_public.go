package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

// DownloadPublic streams everything behind a share token. Single-file
// selections are served directly; anything larger becomes a ZIP.
func (a *API) DownloadPublic(c *gin.Context) {
	requestID := c.MustGet("requestID").(string)

	share, ok := a.resolveShare(c)
	if !ok {
		return
	}

	files, err := a.Egress.ShareSelection(share)
	if err != nil {
		abortErr(c, err)
		return
	}

	if len(files) == 0 {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{
			"error":     "Share is empty",
			"requestID": requestID,
		})
		return
	}

	if err := a.Egress.GuardSize(files); err != nil {
		abortErr(c, err)
		return
	}

	if len(files) == 1 {
		blob, file, err := a.Egress.OpenSharedFile(share, files[0].File.ID)
		if err != nil {
			abortErr(c, err)
			return
		}
		defer blob.Close()

		if err := a.Shares.RecordAccess(share.ID); err != nil {
			abortErr(c, err)
			return
		}

		a.streamBlob(c, blob, file)
		return
	}

	if err := a.Shares.RecordAccess(share.ID); err != nil {
		abortErr(c, err)
		return
	}

	a.streamZip(c, share.SharedBy, "share", files)
}

// DownloadPublicFile streams one file out of a share's selection.
func (a *API) DownloadPublicFile(c *gin.Context) {
	requestID := c.MustGet("requestID").(string)

	share, ok := a.resolveShare(c)
	if !ok {
		return
	}

	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
			"error":     "Invalid file ID",
			"requestID": requestID,
		})
		return
	}

	blob, file, err := a.Egress.OpenSharedFile(share, uint(id))
	if err != nil {
		abortErr(c, err)
		return
	}
	defer blob.Close()

	if err := a.Shares.RecordAccess(share.ID); err != nil {
		abortErr(c, err)
		return
	}

	a.streamBlob(c, blob, file)
}
