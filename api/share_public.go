package api

import (
	"net/http"
	"relayum/file-api/internal/service"
	"relayum/file-api/model"

	"github.com/gin-gonic/gin"
)

// SharePublicFetch returns the descriptor behind a share token: what kind of
// thing is shared and how big it is, but never where it lives on disk.
func (a *API) SharePublicFetch(c *gin.Context) {
	share, ok := a.resolveShare(c)
	if !ok {
		return
	}

	files, err := a.Egress.ShareSelection(share)
	if err != nil {
		abortErr(c, err)
		return
	}

	var total int64
	for _, fw := range files {
		total += fw.File.Size
	}

	kind := "file"
	if share.FolderID != nil {
		kind = "folder"
	}

	c.JSON(http.StatusOK, gin.H{
		"kind":         kind,
		"file_count":   len(files),
		"total_bytes":  total,
		"expires_at":   share.ExpiresAt,
		"has_password": share.PasswordHash != nil,
	})
}

// SharePublicContents lists the files a share serves, with paths relative to
// the shared folder.
func (a *API) SharePublicContents(c *gin.Context) {
	share, ok := a.resolveShare(c)
	if !ok {
		return
	}

	files, err := a.Egress.ShareSelection(share)
	if err != nil {
		abortErr(c, err)
		return
	}

	out := make([]gin.H, 0, len(files))
	for _, fw := range files {
		out = append(out, gin.H{
			"id":   fw.File.ID,
			"path": fw.RelPath,
			"mime": fw.File.Mime,
			"size": fw.File.Size,
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"files": out,
	})
}

// resolveShare authorizes a token from the URL plus an optional password
// query parameter. On failure the response is already written.
func (a *API) resolveShare(c *gin.Context) (*model.Share, bool) {
	share, reason, err := a.Shares.Resolve(c.Param("token"), c.Query("password"))
	if err != nil {
		// Infra failure, not a verdict about the token
		abortErr(c, err)
		return nil, false
	}

	if reason != service.ResolveOK {
		abortResolve(c, reason)
		return nil, false
	}

	// A private token only works for its authenticated recipient. Everyone
	// else gets the not-found shape so the token's existence stays hidden.
	if share.Kind() == model.ShareKindPrivateToUser {
		uid := c.GetString("userID")
		if uid == "" || share.SharedWith == nil || uid != *share.SharedWith {
			abortResolve(c, service.ResolveNotFound)
			return nil, false
		}
	}

	return share, true
}
