package api

import (
	"fmt"
	"io"
	"net/http"
	"relayum/file-api/internal/service"
	"relayum/file-api/model"
	"relayum/file-api/validators"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// AnonymousUpload accepts files without an account and answers with a share
// token. The blobs are keyed like any other upload and expire on a fixed
// schedule.
func (a *API) AnonymousUpload(c *gin.Context) {
	requestID := c.MustGet("requestID").(string)

	if !strings.HasPrefix(c.Request.Header.Get("Content-Type"), "multipart/form-data") {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
			"error":     "Invalid request",
			"requestID": requestID,
		})
		return
	}

	form, err := c.MultipartForm()
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
			"error":     "Internal server error",
			"requestID": requestID,
		})

		zap.L().Error("Failed to parse multipart form", zap.Error(err), zap.String("requestID", requestID))
		return
	}

	files := form.File["file"]
	if len(files) == 0 {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
			"error":     "No file provided",
			"requestID": requestID,
		})
		return
	}

	uploads := make([]*service.Upload, 0, len(files))
	opened := make([]io.Closer, 0, len(files))
	defer func() {
		for _, f := range opened {
			f.Close()
		}
	}()

	for _, fh := range files {
		code, mime, f, err := validators.FileValidator(fh)
		if err != nil {
			if code == http.StatusInternalServerError {
				zap.L().Error("Failed to validate file", zap.Error(err), zap.String("requestID", requestID))
				abortErr(c, err)
				return
			}

			c.AbortWithStatusJSON(code, gin.H{
				"error":     err.Error(),
				"requestID": requestID,
			})
			return
		}

		opened = append(opened, f)
		uploads = append(uploads, &service.Upload{
			Filename:     fh.Filename,
			Mime:         mime,
			DeclaredSize: fh.Size,
			Src:          f,
		})
	}

	share, err := a.Anon.Upload(c.Request.Context(), uploads, c.PostForm("password"))
	if err != nil {
		abortErr(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"token":      share.Token,
		"expires_at": share.ExpiresAt,
	})
}

// AnonymousFetch returns the descriptor and file list behind an anonymous
// token.
func (a *API) AnonymousFetch(c *gin.Context) {
	share, ok := a.resolveAnonymous(c)
	if !ok {
		return
	}

	var files []model.AnonymousFile
	if err := a.DB.Where("share_id = ?", share.ID).Find(&files).Error; err != nil {
		zap.L().Error("Failed to list anonymous files", zap.Error(err))
		abortErr(c, err)
		return
	}

	out := make([]gin.H, 0, len(files))
	for _, f := range files {
		out = append(out, gin.H{
			"id":   f.ID,
			"name": f.OriginalName,
			"mime": f.Mime,
			"size": f.Size,
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"expires_at":   share.ExpiresAt,
		"has_password": share.PasswordHash != nil,
		"files":        out,
	})
}

// AnonymousDownload streams one file behind an anonymous token.
func (a *API) AnonymousDownload(c *gin.Context) {
	requestID := c.MustGet("requestID").(string)

	share, ok := a.resolveAnonymous(c)
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

	blob, file, err := a.Anon.Open(share, uint(id))
	if err != nil {
		abortErr(c, err)
		return
	}
	defer blob.Close()

	if err := a.Anon.RecordAccess(share.ID); err != nil {
		abortErr(c, err)
		return
	}

	c.Header("Content-Type", file.Mime)
	c.Header("Content-Length", strconv.FormatInt(blob.Size, 10))
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", file.OriginalName))
	c.Status(http.StatusOK)

	if _, err := io.Copy(c.Writer, blob); err != nil {
		zap.L().Error("Anonymous download aborted", zap.Error(err), zap.String("requestID", requestID))
		c.Abort()
	}
}

func (a *API) resolveAnonymous(c *gin.Context) (*model.AnonymousShare, bool) {
	share, reason, err := a.Anon.Resolve(c.Param("token"), c.Query("password"))
	if err != nil {
		abortErr(c, err)
		return nil, false
	}

	if reason != service.ResolveOK {
		abortResolve(c, reason)
		return nil, false
	}

	return share, true
}
