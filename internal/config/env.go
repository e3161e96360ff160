package config

import (
	"os"
	"strings"
	"time"
)

func envOrDefault(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	return def
}

func durationEnvOrDefault(key string, def time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return def
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil || parsed <= 0 {
		return def
	}
	return parsed
}

func boolEnvOrDefault(key string, def bool) bool {
	raw := strings.TrimSpace(os.Getenv(key))
	switch {
	case raw == "":
		return def
	case raw == "1", strings.EqualFold(raw, "true"), strings.EqualFold(raw, "yes"):
		return true
	case raw == "0", strings.EqualFold(raw, "false"), strings.EqualFold(raw, "no"):
		return false
	}
	return def
}

// listEnv splits a comma-separated variable, dropping blanks.
func listEnv(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
