package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

// Config is populated from environment variables, optionally seeded from a
// .env file in the working directory.
type Config struct {
	App      AppConfig
	Database DatabaseConfig
	Session  SessionConfig
	SMTP     SMTPConfig
	Media    MediaConfig
	MinIO    MinIOConfig
	Admin    AdminConfig
}

type AppConfig struct {
	Environment string // development, production
	Port        string
	SiteURL     string
	Templates   string
	Static      string
}

type DatabaseConfig struct {
	URL string
}

type SessionConfig struct {
	Name   string
	Secret string
}

type SMTPConfig struct {
	Host     string
	Port     string
	Username string
	Password string
	From     string
}

// Enabled reports whether every SMTP setting needed to send mail is present.
func (c SMTPConfig) Enabled() bool {
	return c.Host != "" && c.Port != "" && c.From != ""
}

type MediaConfig struct {
	Root      string
	URLPrefix string
}

type MinIOConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

func (c MinIOConfig) Enabled() bool {
	return c.Endpoint != ""
}

// AdminConfig describes an optional superuser created at startup.
type AdminConfig struct {
	Username string
	Email    string
	Password string
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Debug().Msg("no .env file found, reading configuration from the environment")
	}

	return &Config{
		App: AppConfig{
			Environment: getEnv("APP_ENV", "development"),
			Port:        getEnv("PORT", "8080"),
			SiteURL:     getEnv("SITE_URL", "http://localhost:8080"),
			Templates:   getEnv("TEMPLATES_DIR", "./web/templates"),
			Static:      getEnv("STATIC_DIR", "./web/static"),
		},
		Database: DatabaseConfig{
			URL: getEnv("DATABASE_URL", "host=localhost user=postgres password=postgres dbname=quill port=5432 sslmode=disable"),
		},
		Session: SessionConfig{
			Name:   getEnv("SESSION_NAME", "quill_session"),
			Secret: getEnv("SESSION_SECRET", "secret_key_change_me"),
		},
		SMTP: SMTPConfig{
			Host:     os.Getenv("SMTP_HOST"),
			Port:     os.Getenv("SMTP_PORT"),
			Username: os.Getenv("SMTP_USER"),
			Password: os.Getenv("SMTP_PASS"),
			From:     os.Getenv("SMTP_FROM"),
		},
		Media: MediaConfig{
			Root:      getEnv("MEDIA_ROOT", "./media"),
			URLPrefix: getEnv("MEDIA_URL", "/media"),
		},
		MinIO: MinIOConfig{
			Endpoint:  os.Getenv("MINIO_ENDPOINT"),
			AccessKey: os.Getenv("MINIO_ACCESS_KEY"),
			SecretKey: os.Getenv("MINIO_SECRET_KEY"),
			Bucket:    getEnv("MINIO_BUCKET", "quill"),
			UseSSL:    getEnvBool("MINIO_USE_SSL", false),
		},
		Admin: AdminConfig{
			Username: os.Getenv("ADMIN_USERNAME"),
			Email:    os.Getenv("ADMIN_EMAIL"),
			Password: os.Getenv("ADMIN_PASSWORD"),
		},
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}
