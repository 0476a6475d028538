package utils

import (
	"os"
	"strconv"
)

// GetEnv try to get an environment variable from process envs and if not found use a fallback value
func GetEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

// GetEnvBool parses a boolean environment variable, returning fallback when unset or malformed.
func GetEnvBool(key string, fallback bool) bool {
	ret, err := strconv.ParseBool(GetEnv(key, ""))
	if err != nil {
		return fallback
	}
	return ret
}
