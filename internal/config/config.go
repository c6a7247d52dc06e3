package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds runtime settings read from the environment.
type Config struct {
	ListenAddr   string
	DatabasePath string
	LogLevel     string
	Env          string
	MaxUploadMB  int

	// EnvFileLoaded is set when a .env file was found and applied.
	EnvFileLoaded bool
}

// Production reports whether logs should be emitted as JSON lines.
func (c Config) Production() bool {
	return c.Env == "production"
}

// MaxUploadBytes is the request body limit for the HTTP server.
func (c Config) MaxUploadBytes() int {
	return c.MaxUploadMB * 1024 * 1024
}

// Load reads an optional .env file from the working directory, then the
// process environment. Variables already set in the environment win over
// the file.
func Load() (Config, error) {
	loaded := godotenv.Load() == nil
	cfg, err := FromEnv()
	cfg.EnvFileLoaded = loaded
	return cfg, err
}

// FromEnv builds a Config from the current environment only.
func FromEnv() (Config, error) {
	cfg := Config{
		ListenAddr:   GetEnvWithDefault("LISTEN_ADDR", ":8080"),
		DatabasePath: os.Getenv("DATABASE_PATH"),
		LogLevel:     strings.ToLower(GetEnvWithDefault("LOGLEVEL", "info")),
		Env:          strings.ToLower(GetEnvWithDefault("APP_ENV", "development")),
		MaxUploadMB:  32,
	}

	if raw := os.Getenv("MAX_UPLOAD_MB"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return cfg, fmt.Errorf("MAX_UPLOAD_MB must be a positive integer, got %q", raw)
		}
		cfg.MaxUploadMB = n
	}
	return cfg, nil
}

// GetEnvWithDefault returns the variable or def when it is unset or empty.
func GetEnvWithDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
