package service

import (
	"crypto/rand"
	"testing"

	"relayum/file-api/internal/quota"
	"relayum/file-api/internal/storage"
	"relayum/file-api/model"
	"relayum/file-api/pkg/crypto"
	"relayum/file-api/pkg/security"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// testEnv wires the full core against an in-memory database and a temp blob
// root.
type testEnv struct {
	DB          *gorm.DB
	Store       *storage.Store
	Quota       *quota.Accountant
	Folders     *Folders
	Ingest      *Ingestor
	Egress      *Egress
	Shares      *Shares
	Anon        *Anonymous
	MetadataKey []byte
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

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
	folders := NewFolders(db)
	scanner := NewScanner(db, nil)
	argon := security.New()

	env := &testEnv{
		DB:          db,
		Store:       store,
		Quota:       acct,
		Folders:     folders,
		MetadataKey: metadataKey,
	}

	env.Ingest = &Ingestor{
		DB:          db,
		Store:       store,
		Quota:       acct,
		Folders:     folders,
		Scanner:     scanner,
		MetadataKey: metadataKey,
	}

	env.Egress = &Egress{
		DB:              db,
		Store:           store,
		Folders:         folders,
		MetadataKey:     metadataKey,
		MaxDownloadSize: 1 << 20,
	}

	env.Shares = NewShares(db, argon)

	env.Anon = &Anonymous{
		DB:             db,
		Store:          store,
		Argon:          argon,
		MetadataKey:    metadataKey,
		MaxFileSize:    1 << 20,
		ExpirationDays: 7,
		MaxAccesses:    3,
	}

	return env
}

// addUser registers a user with a derived, sealed master key and an empty
// quota ledger.
func (env *testEnv) addUser(t *testing.T, id, username string) *model.User {
	t.Helper()

	sealed, salt, err := SealUserKey(username+"-password", env.MetadataKey)
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

	require.NoError(t, env.DB.Create(user).Error)
	return user
}
