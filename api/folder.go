package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

type folderCreateBody struct {
	Name     string `json:"name"`
	ParentID *uint  `json:"parent_id"`
}

func (a *API) FolderCreate(c *gin.Context) {
	requestID := c.MustGet("requestID").(string)
	userID := c.MustGet("userID").(string)

	var data folderCreateBody
	if err := c.ShouldBind(&data); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
			"error":     "Invalid request body",
			"requestID": requestID,
		})
		return
	}

	folder, err := a.Folders.Create(userID, data.Name, data.ParentID)
	if err != nil {
		abortErr(c, err)
		return
	}

	c.JSON(http.StatusCreated, folder)
}

func (a *API) FolderTree(c *gin.Context) {
	userID := c.MustGet("userID").(string)

	tree, err := a.Folders.Tree(userID)
	if err != nil {
		abortErr(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"folders": tree,
	})
}

func (a *API) FolderBreadcrumb(c *gin.Context) {
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

	crumbs, err := a.Folders.Breadcrumb(userID, uint(id))
	if err != nil {
		abortErr(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"breadcrumb": crumbs,
	})
}

type folderMoveBody struct {
	ParentID *uint `json:"parent_id"`
}

func (a *API) FolderMove(c *gin.Context) {
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

	var data folderMoveBody
	if err := c.ShouldBind(&data); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
			"error":     "Invalid request body",
			"requestID": requestID,
		})
		return
	}

	if err := a.Folders.Move(userID, uint(id), data.ParentID); err != nil {
		abortErr(c, err)
		return
	}

	c.Status(http.StatusOK)
}

func (a *API) FolderDelete(c *gin.Context) {
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

	if err := a.Folders.Delete(userID, uint(id), a.Ingest); err != nil {
		abortErr(c, err)
		return
	}

	c.Status(http.StatusOK)
}
