package api

import (
	"net/http"
	"relayum/file-api/internal/service"
	"relayum/file-api/model"
	"relayum/file-api/validators"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func (a *API) FileUpload(c *gin.Context) {
	requestID := c.MustGet("requestID").(string)
	userID := c.MustGet("userID").(string)

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

	var folderID *uint
	if v := c.PostForm("folder_id"); v != "" {
		id, err := strconv.ParseUint(v, 10, 32)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
				"error":     "Invalid folder ID",
				"requestID": requestID,
			})
			return
		}

		u := uint(id)
		folderID = &u
	}

	// Relative paths line up with the file parts by index. Missing entries
	// mean the file lands directly in the target folder.
	relPaths := form.Value["paths"]

	var user model.User
	if err := a.DB.First(&user, "id = ?", userID).Error; err != nil {
		zap.L().Error("Failed to load user", zap.Error(err), zap.String("requestID", requestID))
		abortErr(c, err)
		return
	}

	results := make([]*model.File, 0, len(files))

	for i, fh := range files {
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

		up := &service.Upload{
			Filename:     fh.Filename,
			Mime:         mime,
			DeclaredSize: fh.Size,
			Src:          f,
		}
		if i < len(relPaths) {
			up.RelPath = relPaths[i]
		}

		row, err := a.Ingest.IngestOne(c.Request.Context(), &user, up, folderID)
		f.Close()
		if err != nil {
			abortErr(c, err)
			return
		}

		results = append(results, row)
	}

	used, limit, _, err := a.Quota.Snapshot(userID)
	if err != nil {
		zap.L().Warn("Failed to read quota after upload", zap.Error(err), zap.String("requestID", requestID))
	}

	c.JSON(http.StatusCreated, gin.H{
		"files":       results,
		"used_bytes":  used,
		"quota_bytes": limit,
	})
}
