package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	StorePostgres = "postgres"
	StoreMemory   = "memory"
)

// Config holds runtime configuration for the match API.
type Config struct {
	Port  string
	Store string
	DBDSN string

	LogLevel  string
	LogFormat string

	TurnPolicy string
	FirstThrow string

	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration

	MetricsEnabled   bool
	WSAllowedOrigins []string
}

// Load reads an optional .env file and then the environment.
func Load() (Config, error) {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	cfg := Config{
		Port:             envOrDefault(envPort, defaultPort),
		Store:            strings.ToLower(envOrDefault(envStore, defaultStore)),
		DBDSN:            envOrDefault(envDBDSN, defaultDBDSN),
		LogLevel:         envOrDefault(envLogLevel, defaultLogLevel),
		LogFormat:        envOrDefault(envLogFormat, defaultLogFormat),
		TurnPolicy:       envOrDefault(envTurnPolicy, defaultTurnPolicy),
		FirstThrow:       envOrDefault(envFirstThrow, defaultFirstThrow),
		RequestTimeout:   durationEnvOrDefault(envRequestTimeout, defaultRequestTimeout),
		ShutdownTimeout:  durationEnvOrDefault(envShutdownTimeout, defaultShutdownTimeout),
		MetricsEnabled:   boolEnvOrDefault(envMetricsEnabled, true),
		WSAllowedOrigins: listEnv(envWSAllowedOrigins),
	}

	switch cfg.Store {
	case StorePostgres:
		if cfg.DBDSN == "" {
			return Config{}, fmt.Errorf("%s must be set when %s=%s", envDBDSN, envStore, StorePostgres)
		}
	case StoreMemory:
	default:
		return Config{}, fmt.Errorf("unknown %s %q", envStore, cfg.Store)
	}
	return cfg, nil
}
