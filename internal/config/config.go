package config

import (
	"errors"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds the server's runtime settings.
type Config struct {
	Port    int
	DataDir string
	AuditDB string
}

// Load reads configuration from a .env file when present, then from the
// environment, falling back to defaults. A missing .env file is not an
// error.
func Load() (Config, error) {
	godotenv.Load()

	cfg := Config{
		Port:    8000,
		DataDir: "./submissions",
		AuditDB: "./moderation.db",
	}

	if portStr := os.Getenv("PORT"); portStr != "" {
		port, err := strconv.Atoi(portStr)
		if err != nil {
			return Config{}, errors.New("invalid PORT env variable")
		}
		cfg.Port = port
	}
	if dir := os.Getenv("DATA_DIR"); dir != "" {
		cfg.DataDir = dir
	}
	if path := os.Getenv("AUDIT_DB"); path != "" {
		cfg.AuditDB = path
	}

	return cfg, nil
}
