package config

import (
	"errors"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
)

const (
	EnvHistoryDB = "LLMEA_HISTORY_DB"
	EnvAddr      = "LLMEA_ADDR"
	EnvLogLevel  = "LLMEA_LOG_LEVEL"
)

// LoadDotEnv loads the given env files, skipping files that do not exist.
// Variables already set in the process environment win.
func LoadDotEnv(paths ...string) error {
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return err
		}
	}
	return nil
}

func EnvOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
