package config

import (
	_ "embed"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

//go:embed recognizer.yaml
var recognizerYAML []byte

type Config struct {
	Database   DatabaseConfig
	Legacy     LegacyConfig
	Storage    StorageConfig
	Recognizer RecognizerConfig
}

type DatabaseConfig struct {
	URL          string // PostgreSQL connection URL
	MaxOpenConns int    // Maximum open connections (default 25)
	MaxIdleConns int    // Maximum idle connections (default 5)
}

// LegacyConfig points at the original marketplace MySQL database. When set
// and no PostgreSQL URL is configured, the recognizer reads candidates from
// the legacy schema directly (read-only; admin endpoints are disabled).
type LegacyConfig struct {
	DSN string // MySQL DSN (e.g., marketplace:secret@tcp(db:3306)/marketplace)
}

type StorageConfig struct {
	Endpoint  string // MinIO/S3 endpoint host:port; empty means in-memory storage
	AccessKey string
	SecretKey string
	Bucket    string // defaults to "placelens"
	Prefix    string // key prefix inside the bucket (e.g., "media/")
	UseSSL    bool
}

type RecognizerConfig struct {
	// Threshold is the match acceptance threshold in differing bits out of 64.
	// Candidates at this distance or further are rejected.
	Threshold int
	// MaxUploadBytes caps multipart uploads on the web API.
	MaxUploadBytes int64
}

// recognizerDefaults mirrors the embedded recognizer.yaml.
type recognizerDefaults struct {
	Recognizer struct {
		Threshold   int `yaml:"threshold"`
		MaxUploadMB int `yaml:"max_upload_mb"`
	} `yaml:"recognizer"`
}

// envInt reads an environment variable and parses it as a positive integer.
// Returns the default value if the env var is unset, empty, or invalid.
func envInt(key string, defaultVal int) int {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return n
	}
	return defaultVal
}

// envBool reads an environment variable as a boolean flag.
func envBool(key string) bool {
	v, err := strconv.ParseBool(os.Getenv(key))
	return err == nil && v
}

func Load() *Config {
	var defaults recognizerDefaults
	if err := yaml.Unmarshal(recognizerYAML, &defaults); err != nil {
		// This is an embedded file so this error should never happen in practice
		panic("failed to unmarshal embedded recognizer.yaml: " + err.Error())
	}

	bucket := os.Getenv("STORAGE_BUCKET")
	if bucket == "" {
		bucket = "placelens"
	}

	return &Config{
		Database: DatabaseConfig{
			URL:          os.Getenv("DATABASE_URL"),
			MaxOpenConns: envInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns: envInt("DATABASE_MAX_IDLE_CONNS", 5),
		},
		Legacy: LegacyConfig{
			DSN: os.Getenv("LEGACY_DATABASE_DSN"),
		},
		Storage: StorageConfig{
			Endpoint:  os.Getenv("STORAGE_ENDPOINT"),
			AccessKey: os.Getenv("STORAGE_ACCESS_KEY"),
			SecretKey: os.Getenv("STORAGE_SECRET_KEY"),
			Bucket:    bucket,
			Prefix:    os.Getenv("STORAGE_PREFIX"),
			UseSSL:    envBool("STORAGE_USE_SSL"),
		},
		Recognizer: RecognizerConfig{
			Threshold:      envInt("RECOGNIZER_THRESHOLD", defaults.Recognizer.Threshold),
			MaxUploadBytes: int64(envInt("RECOGNIZER_MAX_UPLOAD_MB", defaults.Recognizer.MaxUploadMB)) << 20,
		},
	}
}
