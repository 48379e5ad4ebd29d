package api

import (
	"net/http"
	"relayum/file-api/internal/service"
	"relayum/file-api/model"
	"strconv"

	"github.com/gin-gonic/gin"
)

// shareView is a share row plus its capability token. The model redacts
// tokens everywhere else; the create response and the recipient's received
// list are the only places one crosses the wire.
type shareView struct {
	model.Share
	Token string `json:"token,omitempty"`
}

func shareToken(s *model.Share) string {
	switch {
	case s.PublicToken != nil:
		return *s.PublicToken
	case s.PrivateToken != nil:
		return *s.PrivateToken
	default:
		return ""
	}
}

type shareCreateBody struct {
	FileID     *uint    `json:"file_id"`
	FolderID   *uint    `json:"folder_id"`
	Recipients []string `json:"recipients"`
	Public     bool     `json:"public"`
	Password   string   `json:"password"`
	ExpiresAt  *int64   `json:"expires_at"`
}

func (a *API) ShareCreate(c *gin.Context) {
	requestID := c.MustGet("requestID").(string)
	userID := c.MustGet("userID").(string)

	var data shareCreateBody
	if err := c.ShouldBind(&data); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
			"error":     "Invalid request body",
			"requestID": requestID,
		})
		return
	}

	rows, err := a.Shares.Create(&service.CreateOpts{
		SharedBy:    userID,
		FileRowID:   data.FileID,
		FolderRowID: data.FolderID,
		Recipients:  data.Recipients,
		Public:      data.Public,
		Password:    data.Password,
		ExpiresAt:   data.ExpiresAt,
	})
	if err != nil {
		abortErr(c, err)
		return
	}

	out := make([]shareView, 0, len(rows))
	for i := range rows {
		out = append(out, shareView{Share: rows[i], Token: shareToken(&rows[i])})
	}

	c.JSON(http.StatusCreated, gin.H{
		"shares": out,
	})
}

func (a *API) ShareList(c *gin.Context) {
	userID := c.MustGet("userID").(string)

	created, received, err := a.Shares.ListForUser(userID)
	if err != nil {
		abortErr(c, err)
		return
	}

	// The creator keeps access to public tokens, the recipient to their
	// private one. Private tokens of outgoing shares stay hidden: the
	// recipient's authentication is the gate, not the creator's copy.
	createdOut := make([]shareView, 0, len(created))
	for i := range created {
		view := shareView{Share: created[i]}
		if created[i].PublicToken != nil {
			view.Token = *created[i].PublicToken
		}

		createdOut = append(createdOut, view)
	}

	receivedOut := make([]shareView, 0, len(received))
	for i := range received {
		view := shareView{Share: received[i]}
		if received[i].PrivateToken != nil {
			view.Token = *received[i].PrivateToken
		}

		receivedOut = append(receivedOut, view)
	}

	c.JSON(http.StatusOK, gin.H{
		"created":  createdOut,
		"received": receivedOut,
	})
}

func (a *API) ShareMarkViewed(c *gin.Context) {
	userID := c.MustGet("userID").(string)

	if err := a.Shares.MarkReceivedViewed(userID); err != nil {
		abortErr(c, err)
		return
	}

	c.Status(http.StatusOK)
}

func (a *API) ShareDelete(c *gin.Context) {
	requestID := c.MustGet("requestID").(string)
	userID := c.MustGet("userID").(string)

	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
			"error":     "Invalid share ID",
			"requestID": requestID,
		})
		return
	}

	if err := a.Shares.Delete(userID, uint(id)); err != nil {
		abortErr(c, err)
		return
	}

	c.Status(http.StatusOK)
}
