package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/noah-isme/nilai-go-api/internal/grading"
)

// Config holds runtime configuration values for the API service.
type Config struct {
	AppName string
	AppEnv  string
	AppPort string

	DatabaseURL string
	RedisURL    string
	NATSURL     string

	JWTSecret string

	CloudinaryCloudName string
	CloudinaryAPIKey    string
	CloudinaryAPISecret string
	ReportUploadFolder  string

	MaxArchiveMB          int
	GradingWorkers        int
	LongLineLimit         int
	PartialCreditFraction float64
	AnalyticsCacheTTL     time.Duration
	ProgressKeepAlive     time.Duration
}

// HTTPAddress returns the address the HTTP server should listen on.
func (c Config) HTTPAddress() string {
	if strings.HasPrefix(c.AppPort, ":") {
		return c.AppPort
	}

	return fmt.Sprintf(":%s", c.AppPort)
}

// Heuristics builds the scoring knobs from configuration overrides on top of
// the built-in defaults.
func (c Config) Heuristics() grading.Heuristics {
	h := grading.DefaultHeuristics()
	if c.LongLineLimit > 0 {
		h.LongLineLimit = c.LongLineLimit
	}
	if c.PartialCreditFraction > 0 && c.PartialCreditFraction <= 1 {
		h.PartialCreditFraction = c.PartialCreditFraction
	}

	return h
}

// MaxArchiveBytes returns the upload size cap in bytes.
func (c Config) MaxArchiveBytes() int64 {
	return int64(c.MaxArchiveMB) * 1024 * 1024
}

// Load reads configuration values from environment variables and optional .env file.
func Load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("NILAI")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("app.name", "NILAI API")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", "8080")
	v.SetDefault("nats.url", "nats://127.0.0.1:4222")
	v.SetDefault("cloudinary.folder", "nilai/reports")
	v.SetDefault("upload.max_archive_mb", 100)
	v.SetDefault("grading.workers", 4)
	v.SetDefault("grading.long_line_limit", 0)
	v.SetDefault("grading.partial_credit", 0.0)
	v.SetDefault("analytics.cache_ttl", "5m")
	v.SetDefault("progress.keepalive", "15s")

	cacheTTL, err := parseDuration(v.GetString("analytics.cache_ttl"), 5*time.Minute)
	if err != nil {
		return Config{}, fmt.Errorf("invalid analytics cache ttl: %w", err)
	}

	keepAlive, err := parseDuration(v.GetString("progress.keepalive"), 15*time.Second)
	if err != nil {
		return Config{}, fmt.Errorf("invalid progress keepalive: %w", err)
	}

	cfg := Config{
		AppName:               v.GetString("app.name"),
		AppEnv:                v.GetString("app.env"),
		AppPort:               v.GetString("app.port"),
		DatabaseURL:           v.GetString("database.url"),
		RedisURL:              v.GetString("redis.url"),
		NATSURL:               v.GetString("nats.url"),
		JWTSecret:             v.GetString("jwt.secret"),
		CloudinaryCloudName:   v.GetString("cloudinary.cloud_name"),
		CloudinaryAPIKey:      v.GetString("cloudinary.api_key"),
		CloudinaryAPISecret:   v.GetString("cloudinary.api_secret"),
		ReportUploadFolder:    v.GetString("cloudinary.folder"),
		MaxArchiveMB:          v.GetInt("upload.max_archive_mb"),
		GradingWorkers:        v.GetInt("grading.workers"),
		LongLineLimit:         v.GetInt("grading.long_line_limit"),
		PartialCreditFraction: v.GetFloat64("grading.partial_credit"),
		AnalyticsCacheTTL:     cacheTTL,
		ProgressKeepAlive:     keepAlive,
	}

	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("jwt secret must be provided")
	}

	if cfg.MaxArchiveMB <= 0 {
		cfg.MaxArchiveMB = 100
	}

	if cfg.GradingWorkers <= 0 {
		cfg.GradingWorkers = 4
	}

	return cfg, nil
}

func parseDuration(value string, fallback time.Duration) (time.Duration, error) {
	if value == "" {
		return fallback, nil
	}

	return time.ParseDuration(value)
}
