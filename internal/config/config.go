// Package config loads settings for the pa CLI and the development backend
// from the environment, plus screen overrides from TOML.
package config

import (
	"fmt"
	"os"
	"time"
)

// Config is the development backend's configuration.
type Config struct {
	DatabaseURL string // PORTAL_DATABASE_URL (optional, empty = in-memory store)
	GRPCAddr    string // PORTAL_LISTEN_GRPC (default ":9090")
	HTTPAddr    string // PORTAL_HTTP_ADDR (default ":8080")
	NATSURL     string // PORTAL_NATS_URL (optional, empty = no events)
	AuthToken   string // PORTAL_AUTH_TOKEN (optional, empty = auth disabled)
	Seed        bool   // PORTAL_SEED (load sample records into an empty store)

	PresenceAwayAfter time.Duration // PORTAL_PRESENCE_AWAY (default 10m)

	// Export settings
	ExportInterval   time.Duration // PORTAL_EXPORT_INTERVAL (default 0 = disabled)
	ExportFile       string        // PORTAL_EXPORT_FILE (enables file export when set)
	ExportS3Bucket   string        // PORTAL_EXPORT_S3_BUCKET (enables S3 when set)
	ExportS3Endpoint string        // PORTAL_EXPORT_S3_ENDPOINT (custom endpoint for MinIO)
	ExportS3Region   string        // PORTAL_EXPORT_S3_REGION (default "us-east-1")
	ExportS3Key      string        // PORTAL_EXPORT_S3_KEY (default "portal/snapshot.jsonl")
}

// Load reads the backend configuration from the environment.
func Load() (*Config, error) {
	c := &Config{
		DatabaseURL:      os.Getenv("PORTAL_DATABASE_URL"),
		GRPCAddr:         envOrDefault("PORTAL_LISTEN_GRPC", ":9090"),
		HTTPAddr:         envOrDefault("PORTAL_HTTP_ADDR", ":8080"),
		NATSURL:          os.Getenv("PORTAL_NATS_URL"),
		AuthToken:        os.Getenv("PORTAL_AUTH_TOKEN"),
		ExportFile:       os.Getenv("PORTAL_EXPORT_FILE"),
		ExportS3Bucket:   os.Getenv("PORTAL_EXPORT_S3_BUCKET"),
		ExportS3Endpoint: os.Getenv("PORTAL_EXPORT_S3_ENDPOINT"),
		ExportS3Region:   envOrDefault("PORTAL_EXPORT_S3_REGION", "us-east-1"),
		ExportS3Key:      envOrDefault("PORTAL_EXPORT_S3_KEY", "portal/snapshot.jsonl"),
	}

	if v := os.Getenv("PORTAL_SEED"); v != "" {
		c.Seed = v == "1" || v == "true"
	}

	c.PresenceAwayAfter = 10 * time.Minute
	if s := os.Getenv("PORTAL_PRESENCE_AWAY"); s != "" {
		d, err := time.ParseDuration(s)
		if err != nil || d <= 0 {
			return nil, fmt.Errorf("PORTAL_PRESENCE_AWAY: must be a positive duration, got %q", s)
		}
		c.PresenceAwayAfter = d
	}

	if s := os.Getenv("PORTAL_EXPORT_INTERVAL"); s != "" {
		d, err := time.ParseDuration(s)
		if err != nil {
			return nil, fmt.Errorf("PORTAL_EXPORT_INTERVAL: %w", err)
		}
		c.ExportInterval = d
	}
	if c.ExportInterval > 0 && c.ExportFile == "" && c.ExportS3Bucket == "" {
		return nil, fmt.Errorf("PORTAL_EXPORT_INTERVAL is set but neither PORTAL_EXPORT_FILE nor PORTAL_EXPORT_S3_BUCKET is")
	}

	return c, nil
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
