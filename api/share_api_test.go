package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"testing"

	"relayum/file-api/internal/service"
	"relayum/file-api/model"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type shareListOut struct {
	Created  []shareView `json:"created"`
	Received []shareView `json:"received"`
}

func TestShareCreateReturnsCapabilityToken(t *testing.T) {
	a := newTestAPI(t)
	u1 := addUser(t, a, "u1", "alice")
	file := ingestFile(t, a, u1, "a.txt", "share me", nil)

	r := gin.New()
	r.Use(reqID(), asUser("u1"))
	r.POST("/shares", a.ShareCreate)

	body := fmt.Sprintf(`{"file_id": %d, "public": true}`, file.ID)
	w := doRequest(r, "POST", "/shares", strings.NewReader(body))
	require.Equal(t, http.StatusCreated, w.Code)

	var out struct {
		Shares []shareView `json:"shares"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	require.Len(t, out.Shares, 1)
	assert.Len(t, out.Shares[0].Token, 64)

	var row model.Share
	require.NoError(t, a.DB.First(&row, out.Shares[0].ID).Error)
	require.NotNil(t, row.PublicToken)
	assert.Equal(t, *row.PublicToken, out.Shares[0].Token)

	// The bare row still redacts its token
	raw, err := json.Marshal(row)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), *row.PublicToken)
}

func TestShareListHandsRecipientTheToken(t *testing.T) {
	a := newTestAPI(t)
	u1 := addUser(t, a, "u1", "alice")
	addUser(t, a, "u2", "bob")
	file := ingestFile(t, a, u1, "a.txt", "for bob", nil)

	rows, err := a.Shares.Create(&service.CreateOpts{
		SharedBy:   "u1",
		FileRowID:  &file.ID,
		Recipients: []string{"u2"},
	})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.NotNil(t, rows[0].PrivateToken)

	list := func(uid string) shareListOut {
		r := gin.New()
		r.Use(reqID(), asUser(uid))
		r.GET("/shares", a.ShareList)

		w := doRequest(r, "GET", "/shares", nil)
		require.Equal(t, http.StatusOK, w.Code)

		var out shareListOut
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
		return out
	}

	bob := list("u2")
	require.Len(t, bob.Received, 1)
	assert.Equal(t, *rows[0].PrivateToken, bob.Received[0].Token)

	// The creator's listing does not repeat the private token
	alice := list("u1")
	require.Len(t, alice.Created, 1)
	assert.Empty(t, alice.Created[0].Token)
}

func TestPrivateShareNeedsAuthenticatedRecipient(t *testing.T) {
	a := newTestAPI(t)
	u1 := addUser(t, a, "u1", "alice")
	addUser(t, a, "u2", "bob")
	addUser(t, a, "u3", "carol")
	file := ingestFile(t, a, u1, "a.txt", "for bob only", nil)

	rows, err := a.Shares.Create(&service.CreateOpts{
		SharedBy:   "u1",
		FileRowID:  &file.ID,
		Recipients: []string{"u2"},
	})
	require.NoError(t, err)
	token := *rows[0].PrivateToken

	fetch := func(principal string) *gin.Engine {
		r := gin.New()
		if principal == "" {
			r.Use(reqID())
		} else {
			r.Use(reqID(), asUser(principal))
		}

		r.GET("/shares/public/:token", a.SharePublicFetch)
		return r
	}

	// No principal and the wrong principal both see the not-found shape
	w := doRequest(fetch(""), "GET", "/shares/public/"+token, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doRequest(fetch("u3"), "GET", "/shares/public/"+token, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doRequest(fetch("u2"), "GET", "/shares/public/"+token, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var out struct {
		Kind      string `json:"kind"`
		FileCount int    `json:"file_count"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	assert.Equal(t, "file", out.Kind)
	assert.Equal(t, 1, out.FileCount)
}
