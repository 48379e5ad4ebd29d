// Package api contains all endpoints available
package api

import (
	"fmt"
	"relayum/file-api/config"
	"relayum/file-api/db"
	"relayum/file-api/internal"
	"relayum/file-api/internal/quota"
	"relayum/file-api/internal/service"
	"relayum/file-api/internal/storage"
	"relayum/file-api/middleware"
	"relayum/file-api/pkg/security"
	"time"

	cache "github.com/chenyahui/gin-cache"
	"github.com/chenyahui/gin-cache/persist"
	ginzap "github.com/gin-contrib/zap"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	gray  = "\x1b[90m"
	reset = "\x1b[0m"
)

var cacheStore = persist.NewMemoryStore(time.Minute)

type API struct {
	Router *gin.Engine
	*internal.Deps
}

func NewRouter() (*API, error) {
	gormDB, err := db.New()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database, %w", err)
	}

	makeLogger()

	metadataKey := config.MetadataKey()

	d := &internal.Deps{
		DB:          gormDB,
		Argon:       security.New(),
		MetadataKey: metadataKey,
	}
	d.Store = storage.New(metadataKey)
	d.Quota = quota.New(gormDB)
	d.Folders = service.NewFolders(gormDB)
	scanner := service.NewScanner(gormDB, nil)
	d.Ingest = service.NewIngestor(gormDB, d.Store, d.Quota, d.Folders, scanner, metadataKey)
	d.Egress = service.NewEgress(gormDB, d.Store, d.Folders, metadataKey)
	d.Shares = service.NewShares(gormDB, d.Argon)
	d.Anon = service.NewAnonymous(gormDB, d.Store, d.Argon, metadataKey)
	d.Janitor = service.NewJanitor(gormDB, d.Anon, d.Ingest)

	a := &API{Deps: d}

	router := gin.New()
	a.Router = router

	router.Use(
		cors.New(cors.Config{
			AllowOrigins:     viper.GetStringSlice("host.cors_origins"),
			AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
			ExposeHeaders:    []string{"Content-Length", "Content-Disposition"},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}),
		gin.Recovery(),
		middleware.NewRequestIDMiddleware(),
		ginzap.GinzapWithConfig(zap.L(), &ginzap.Config{
			TimeFormat: "15:04:05.000",
			UTC:        true,
			Skipper: func(c *gin.Context) bool {
				return c.Request.Method == "HEAD"
			},
			Context: func(c *gin.Context) []zapcore.Field {
				fields := []zapcore.Field{}

				if v := c.GetString("requestID"); v != "" {
					fields = append(fields, zap.String("request_id", v))
				}

				if v := c.GetString("userID"); v != "" {
					fields = append(fields, zap.String("userID", v))
				}

				return fields
			},
		}),
	)

	router.HandleMethodNotAllowed = true
	router.RedirectFixedPath = true
	a.Router.MaxMultipartMemory = 5 << 20

	jwt := middleware.NewJWTMiddleware(gormDB)
	optionalJWT := middleware.NewOptionalJWTMiddleware(gormDB)
	ipBan := middleware.NewIPBanMiddleware(gormDB)
	publicLimit := middleware.RateLimiterMiddleware(middleware.RateLimiterConfig{
		RequestsPerSecond: viper.GetInt("ratelimit.rps"),
		Burst:             viper.GetInt("ratelimit.burst"),
	})
	maxUploadSize := viper.GetInt64("upload.max_size")
	maxAnonSize := viper.GetInt64("anonymous.max_file_size")

	main := router.Group("/api")
	{
		// HEAD /api/heartbeat 		-> Used to check if the server is alive
		main.HEAD("/heartbeat", a.Heartbeat)

		// HEAD /api/validate		-> Validates a JWT token
		main.HEAD("/validate", jwt, a.Validate)
	}

	users := main.Group("/users", middleware.BodySizeLimiter(1<<20))
	{
		// POST /api/users 		-> Registers a new user
		users.POST("", a.UserRegister)

		// POST /api/users/login 	-> Logs in a user and sets a JWT cookie
		users.POST("/login", a.UserLogin)

		// GET /api/users/quota 	-> Returns the caller's disk usage and limit
		users.GET("/quota", jwt, a.UserQuota)
	}

	files := main.Group("/files", jwt)
	{
		// GET /api/files 		-> Lists files in a folder (root by default)
		files.GET("", a.FileList)

		// POST /api/files		-> Uploads one or more files
		files.POST("", middleware.BodySizeLimiter(maxUploadSize), a.FileUpload)

		// GET /api/files/validate	-> Checks every stored blob of the caller
		files.GET("/validate", a.FileValidate)

		// PUT /api/files/:id/move	-> Moves a file to another folder
		files.PUT("/:id/move", a.FileMove)

		// DELETE /api/files/:id	-> Deletes a file owned by the caller
		files.DELETE("/:id", a.FileDelete)
	}

	folders := main.Group("/folders", jwt)
	{
		// POST /api/folders		-> Creates a folder
		folders.POST("", a.FolderCreate)

		// GET /api/folders/tree	-> Returns the caller's full folder tree
		folders.GET("/tree", a.FolderTree)

		// GET /api/folders/:id/breadcrumb -> Path from root to the folder
		folders.GET("/:id/breadcrumb", a.FolderBreadcrumb)

		// PUT /api/folders/:id/move	-> Re-parents a folder
		folders.PUT("/:id/move", a.FolderMove)

		// DELETE /api/folders/:id	-> Deletes a folder and its subtree
		folders.DELETE("/:id", a.FolderDelete)
	}

	shares := main.Group("/shares", jwt)
	{
		// POST /api/shares		-> Shares a file or folder
		shares.POST("", a.ShareCreate)

		// GET /api/shares		-> Lists shares created by and received by the caller
		shares.GET("", a.ShareList)

		// POST /api/shares/viewed	-> Marks all received shares as seen
		shares.POST("/viewed", a.ShareMarkViewed)

		// DELETE /api/shares/:id	-> Revokes a share
		shares.DELETE("/:id", a.ShareDelete)
	}

	public := main.Group("/shares/public", ipBan, publicLimit, optionalJWT)
	{
		// GET /api/shares/public/:token 	  -> Share descriptor, no contents
		public.GET("/:token", cacheFor(10), a.SharePublicFetch)

		// GET /api/shares/public/:token/contents -> File listing behind the share
		public.GET("/:token/contents", a.SharePublicContents)
	}

	dl := main.Group("/download")
	{
		// GET /api/download/file/:id	-> Streams a single owned file
		dl.GET("/file/:id", jwt, a.DownloadFile)

		// GET /api/download/folder/:id	-> Streams an owned folder as a ZIP
		dl.GET("/folder/:id", jwt, a.DownloadFolder)

		// GET /api/download/public/:token		-> Streams a shared selection
		dl.GET("/public/:token", ipBan, publicLimit, optionalJWT, a.DownloadPublic)

		// GET /api/download/public/:token/file/:id	-> One file out of a shared selection
		dl.GET("/public/:token/file/:id", ipBan, publicLimit, optionalJWT, a.DownloadPublicFile)
	}

	anon := main.Group("/anonymous", ipBan, publicLimit)
	{
		// POST /api/anonymous		-> Uploads files without an account
		anon.POST("", middleware.BodySizeLimiter(maxAnonSize), a.AnonymousUpload)

		// GET /api/anonymous/:token	-> Anonymous share descriptor and file list
		anon.GET("/:token", a.AnonymousFetch)

		// GET /api/anonymous/:token/file/:id -> Streams one anonymous file
		anon.GET("/:token/file/:id", a.AnonymousDownload)
	}

	if err := d.Janitor.Start(); err != nil {
		return nil, fmt.Errorf("failed to start cleanup scheduler, %w", err)
	}

	return a, nil
}

func makeLogger() {
	cfg := zap.NewDevelopmentConfig()
	cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	cfg.EncoderConfig.EncodeTime = func(t time.Time, pae zapcore.PrimitiveArrayEncoder) {
		pae.AppendString(gray + t.Format("15:04:05.000") + reset)
	}
	cfg.EncoderConfig.EncodeCaller = func(ec zapcore.EntryCaller, pae zapcore.PrimitiveArrayEncoder) {
		pae.AppendString(gray + ec.TrimmedPath() + reset)
	}

	cfg.DisableStacktrace = true

	log, _ := cfg.Build()
	zap.ReplaceGlobals(log)
}

func cacheFor(sec int) gin.HandlerFunc {
	return cache.Cache(cacheStore, time.Second*time.Duration(sec),
		cache.WithCacheStrategyByRequest(func(c *gin.Context) (bool, cache.Strategy) {
			// Private-token responses depend on the logged-in principal,
			// so a request carrying an auth cookie is never cached.
			if _, err := c.Cookie("auth_token"); err == nil {
				return false, cache.Strategy{}
			}

			return true, cache.Strategy{CacheKey: c.Request.RequestURI}
		}))
}
