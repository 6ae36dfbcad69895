package config

import (
	"os"
	"strconv"
)

// getEnvWithFallback checks primary then fallback env var names before
// returning defaultValue, matching shared/config/env.go's
// GetEnvWithFallback idiom.
func getEnvWithFallback(primary, fallback, defaultValue string) string {
	if v := os.Getenv(primary); v != "" {
		return v
	}
	if v := os.Getenv(fallback); v != "" {
		return v
	}
	return defaultValue
}

func getEnvIntWithFallback(primary, fallback string, defaultValue int) int {
	for _, key := range []string{primary, fallback} {
		if v := os.Getenv(key); v != "" {
			if i, err := strconv.Atoi(v); err == nil {
				return i
			}
		}
	}
	return defaultValue
}
