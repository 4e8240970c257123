package main

import (
	"context"
	"flag"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"quill/internal/config"
	"quill/internal/db"
	"quill/internal/logger"
	"quill/internal/router"
	"quill/internal/services"
	"quill/internal/storage"
	"quill/internal/storage/inmemory"
	"quill/internal/storage/postgres"
)

func main() {
	storageKind := flag.String("storage", "postgres", "datastore backend: postgres or in-memory")
	flag.Parse()

	cfg := config.Load()
	logger.Init(cfg.App.Environment)
	if cfg.App.Environment != "development" {
		gin.SetMode(gin.ReleaseMode)
	}

	var store storage.Storage
	switch *storageKind {
	case "postgres":
		conn, err := db.Init(cfg.Database.URL)
		if err != nil {
			log.Fatal().Err(err).Msg("database init failed")
		}
		store = postgres.New(conn)
	case "in-memory":
		log.Warn().Msg("using in-memory storage, data is lost on restart")
		store = inmemory.New()
	default:
		log.Fatal().Str("storage", *storageKind).Msg("unknown storage backend")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	var images services.ImageStore = services.NewLocalImageStore(cfg.Media)
	if cfg.MinIO.Enabled() {
		minioStore, err := services.NewMinIOImageStore(ctx, cfg.MinIO)
		if err != nil {
			log.Fatal().Err(err).Msg("minio init failed")
		}
		images = minioStore
		log.Info().Str("bucket", cfg.MinIO.Bucket).Msg("storing images in minio")
	}

	accounts := services.NewAccountService(store)
	if err := accounts.EnsureSuperuser(ctx, cfg.Admin.Username, cfg.Admin.Email, cfg.Admin.Password); err != nil {
		log.Fatal().Err(err).Msg("failed to create admin user")
	}

	r := gin.Default()
	r.HTMLRender = loadTemplates(cfg.App.Templates)

	mediaDir := ""
	if !cfg.MinIO.Enabled() {
		mediaDir = cfg.Media.Root
	}
	router.RegisterRoutes(r, router.Deps{
		Accounts:      accounts,
		Blog:          services.NewBlogService(store, images),
		Comments:      services.NewCommentService(store),
		Dispatcher:    services.NewDispatcher(services.NewMailService(cfg.SMTP), true),
		Captcha:       services.NewCaptchaService(),
		SessionName:   cfg.Session.Name,
		SessionSecret: cfg.Session.Secret,
		SecureCookies: cfg.App.Environment == "production",
		StaticDir:     cfg.App.Static,
		MediaDir:      mediaDir,
		MediaURL:      cfg.Media.URLPrefix,
	})

	log.Info().Str("port", cfg.App.Port).Str("storage", *storageKind).Msg("quill server starting")
	if err := r.Run(":" + cfg.App.Port); err != nil {
		log.Fatal().Err(err).Msg("server stopped")
	}
}
