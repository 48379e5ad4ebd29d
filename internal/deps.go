package internal

import (
	"relayum/file-api/internal/quota"
	"relayum/file-api/internal/service"
	"relayum/file-api/internal/storage"
	"relayum/file-api/pkg/security"

	"gorm.io/gorm"
)

// Deps wires the storage core together once at startup; handlers receive it
// through the API struct.
type Deps struct {
	DB    *gorm.DB
	Argon *security.ArgonHash

	Store   *storage.Store
	Quota   *quota.Accountant
	Folders *service.Folders
	Ingest  *service.Ingestor
	Egress  *service.Egress
	Shares  *service.Shares
	Anon    *service.Anonymous
	Janitor *service.Janitor

	MetadataKey []byte
}
