package api

import (
	"context"
	"crypto/rand"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"relayum/file-api/internal"
	"relayum/file-api/internal/quota"
	"relayum/file-api/internal/service"
	"relayum/file-api/internal/storage"
	"relayum/file-api/model"
	"relayum/file-api/pkg/crypto"
	"relayum/file-api/pkg/security"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// newTestAPI wires the handlers against an in-memory database and a temp
// blob root, sidestepping the viper-backed constructors.
func newTestAPI(t *testing.T) *API {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	// In-memory sqlite exists per connection
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(
		&model.User{}, &model.Stats{}, &model.Folder{}, &model.File{},
		&model.Share{}, &model.AnonymousShare{}, &model.AnonymousFile{},
		&model.AuditEvent{}, &model.LoginEvent{}, &model.IPBan{},
	))

	metadataKey := make([]byte, crypto.KeyLen)
	_, err = rand.Read(metadataKey)
	require.NoError(t, err)

	store := &storage.Store{
		Root:            t.TempDir(),
		ChunkSize:       4 << 10,
		MaxBufferedSize: 1 << 20,
		MetadataKey:     metadataKey,
	}

	acct := &quota.Accountant{DB: db, Base: 1 << 20}
	folders := service.NewFolders(db)
	argon := security.New()

	d := &internal.Deps{
		DB:          db,
		Argon:       argon,
		Store:       store,
		Quota:       acct,
		Folders:     folders,
		MetadataKey: metadataKey,
	}

	d.Ingest = &service.Ingestor{
		DB:          db,
		Store:       store,
		Quota:       acct,
		Folders:     folders,
		Scanner:     service.NewScanner(db, nil),
		MetadataKey: metadataKey,
	}

	d.Egress = &service.Egress{
		DB:              db,
		Store:           store,
		Folders:         folders,
		MetadataKey:     metadataKey,
		MaxDownloadSize: 1 << 20,
	}

	d.Shares = service.NewShares(db, argon)

	return &API{Deps: d}
}

func addUser(t *testing.T, a *API, id, username string) *model.User {
	t.Helper()

	sealed, salt, err := service.SealUserKey(username+"-password", a.MetadataKey)
	require.NoError(t, err)

	user := &model.User{
		ID:           id,
		Username:     username,
		Email:        username + "@example.com",
		PasswordHash: "unused",
		Role:         model.RoleUser,
		KeySalt:      salt,
		SealedKey:    sealed,
		Stats:        model.Stats{UserID: id},
	}

	require.NoError(t, a.DB.Create(user).Error)
	return user
}

func ingestFile(t *testing.T, a *API, user *model.User, name, content string, folderID *uint) *model.File {
	t.Helper()

	file, err := a.Ingest.IngestOne(context.Background(), user, &service.Upload{
		Filename:     name,
		Mime:         "text/plain",
		DeclaredSize: int64(len(content)),
		Src:          strings.NewReader(content),
	}, folderID)
	require.NoError(t, err)

	return file
}

// reqID replaces the request-id middleware, asUser the JWT one.
func reqID() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set("requestID", "test")
	}
}

func asUser(id string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set("userID", id)
	}
}

func doRequest(r *gin.Engine, method, target string, body io.Reader) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()

	req := httptest.NewRequest(method, target, body)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	r.ServeHTTP(w, req)
	return w
}
