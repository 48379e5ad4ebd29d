// Package config contains code to set the default values and read
// config files to be used throughout the whole application
package config

import (
	"errors"
	"fmt"
	"slices"

	"relayum/file-api/pkg/crypto"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	v "github.com/spf13/viper"
)

var (
	recomputeQuotas = pflag.Bool("recompute-quotas", false, "Recompute every user's used_bytes from file rows on startup")
	validLogLevels  = []string{"debug", "info", "warn", "error", "fatal"}
	validDrivers    = []string{"sqlite", "postgres"}
)

// RecomputeQuotas reports whether the operator asked for a startup quota
// recompute pass.
func RecomputeQuotas() bool {
	return *recomputeQuotas
}

// Setup prepares everything config-related so that the app can
// start working. Function will return an error if something
// is critically wrong and the application can't run because of
// that. A missing or malformed metadata encryption key is such
// a case: the process must refuse to start.
func Setup() error {
	_ = godotenv.Load()

	pflag.Parse()
	v.BindPFlags(pflag.CommandLine)

	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(".")

	v.AutomaticEnv()

	//
	// ENVS
	//
	v.BindEnv("app.log_level", "app_log_level")

	v.BindEnv("host.port", "host_port")
	v.BindEnv("host.trust_proxy_headers", "host_trust_proxy_headers")
	v.BindEnv("host.cors_origins", "host_cors_origins")

	v.BindEnv("database.driver", "database_driver")
	v.BindEnv("database.dsn", "database_dsn")

	v.BindEnv("security.jwt_secret", "security_jwt_secret")
	v.BindEnv("security.metadata_key", "metadata_encryption_key")

	v.BindEnv("ssl.enabled", "ssl_enabled")

	v.BindEnv("storage.root", "storage_root")
	v.BindEnv("storage.chunk_size", "storage_chunk_size")
	v.BindEnv("storage.max_buffered_size", "storage_max_buffered_size")
	v.BindEnv("storage.secure_delete", "storage_secure_delete")
	v.BindEnv("storage.max_secure_delete_size", "storage_max_secure_delete_size")

	v.BindEnv("upload.max_size", "upload_max_size")
	v.BindEnv("upload.concurrency", "upload_concurrency")

	v.BindEnv("download.max_size", "download_max_size")

	v.BindEnv("quota.base", "quota_base")
	v.BindEnv("quota.expiration_days", "quota_expiration_days")

	v.BindEnv("anonymous.max_file_size", "anonymous_max_file_size")
	v.BindEnv("anonymous.expiration_days", "anonymous_expiration_days")
	v.BindEnv("anonymous.max_accesses", "anonymous_max_accesses")

	v.BindEnv("ratelimit.rps", "ratelimit_rps")
	v.BindEnv("ratelimit.burst", "ratelimit_burst")

	//
	// Defaults
	//
	v.SetDefault("app.log_level", "info")

	v.SetDefault("host.port", 8080)
	v.SetDefault("host.trust_proxy_headers", []string{"X-Forwarded-For"})
	v.SetDefault("host.cors_origins", []string{"http://localhost:5173"})

	v.SetDefault("ssl.enabled", false)

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "database.db")

	v.SetDefault("storage.root", "storage")
	v.SetDefault("storage.chunk_size", 64<<10)
	v.SetDefault("storage.max_buffered_size", 1<<20)
	v.SetDefault("storage.secure_delete", false)
	v.SetDefault("storage.max_secure_delete_size", 100<<20)

	v.SetDefault("upload.max_size", 512) // MiB, shifted below
	v.SetDefault("upload.concurrency", 4)

	v.SetDefault("download.max_size", 1024) // MiB, shifted below

	v.SetDefault("quota.base", 10240) // MiB, shifted below
	v.SetDefault("quota.expiration_days", 0)

	v.SetDefault("anonymous.max_file_size", 100) // MiB, shifted below
	v.SetDefault("anonymous.expiration_days", 7)
	v.SetDefault("anonymous.max_accesses", 100)

	v.SetDefault("ratelimit.rps", 10)
	v.SetDefault("ratelimit.burst", 20)

	if err := v.ReadInConfig(); err != nil {
		// The config file is optional; env vars alone are a valid setup
		if _, ok := err.(v.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("failed to read config file, %w", err)
		}
	}

	if !slices.Contains(validLogLevels, v.GetString("app.log_level")) {
		return errors.New("invalid log level provided")
	}

	if v.GetInt("host.port") <= 0 {
		return errors.New("invalid port provided")
	}

	if !slices.Contains(validDrivers, v.GetString("database.driver")) {
		return errors.New("invalid database driver provided")
	}

	if v.GetString("security.jwt_secret") == "" {
		return errors.New("security.jwt_secret is missing")
	}

	// The metadata key seals every blob sidecar. Validate it eagerly so a
	// misconfigured deployment dies at startup, not on the first upload.
	if _, err := crypto.MetadataKeyFromHex(v.GetString("security.metadata_key")); err != nil {
		return fmt.Errorf("security.metadata_key: %w", err)
	}

	if v.GetInt("storage.chunk_size") <= 0 {
		return errors.New("storage.chunk_size must be bigger than 0")
	}

	if v.GetInt("upload.max_size") <= 0 {
		return errors.New("upload.max_size must be bigger than 0")
	}

	if v.GetInt("upload.concurrency") <= 0 {
		return errors.New("upload.concurrency must be bigger than 0")
	}

	if v.GetInt("quota.base") <= 0 {
		return errors.New("quota.base must be bigger than 0")
	}

	if v.GetInt("anonymous.expiration_days") <= 0 {
		return errors.New("anonymous.expiration_days must be bigger than 0")
	}

	// MiB -> bytes
	v.Set("upload.max_size", v.GetInt64("upload.max_size")<<20)
	v.Set("download.max_size", v.GetInt64("download.max_size")<<20)
	v.Set("quota.base", v.GetInt64("quota.base")<<20)
	v.Set("anonymous.max_file_size", v.GetInt64("anonymous.max_file_size")<<20)

	return nil
}

// MetadataKey returns the validated 32-byte sidecar sealing key. Setup must
// have succeeded first.
func MetadataKey() []byte {
	key, err := crypto.MetadataKeyFromHex(v.GetString("security.metadata_key"))
	if err != nil {
		panic(err)
	}

	return key
}
