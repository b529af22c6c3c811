package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
// ⭐ SSOT: 모든 환경변수는 여기서만 읽음
type Config struct {
	Env string // development, staging, production

	// Search
	Darwin DarwinConfig

	// Database (optional result store)
	Database DatabaseConfig

	// Redis (optional leaderboard + checkpoint mirror)
	Redis RedisConfig

	// Status server
	Status StatusConfig

	// Logging
	LogLevel  string
	LogFormat string

	// Monitoring
	MetricsEnabled bool
}

// DarwinConfig holds the generation loop and evaluator settings
type DarwinConfig struct {
	ZenbotBin         string        // evaluator executable, empty = ./zenbot.sh (zenbot.bat on Windows)
	OutputDir         string        // CSV + checkpoint artifacts
	Workers           int           // 0 = runtime.NumCPU()
	SpawnRate         float64       // evaluator processes per second, 0 = unlimited
	Seed              int64         // 0 = time based
	StrategiesFile    string        // YAML strategies override
	ArtifactRetention time.Duration // 0 = keep forever
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
	Enabled  bool
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	Host     string
	Port     string
	Name     string
	User     string
	Password string
	URL      string

	// Connection Pool
	MaxConns        int
	MinConns        int
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// StatusConfig holds the status HTTP server configuration
type StatusConfig struct {
	Enabled bool
	Port    string
}

// Enabled reports whether a result database is configured
func (d DatabaseConfig) Enabled() bool {
	return d.URL != ""
}

// Load reads configuration from environment variables.
// A malformed value (DARWIN_WORKERS=abc) is an error, not a silent default.
// ⭐ SSOT: 이 함수만 os.Getenv()를 호출함
func Load() (*Config, error) {
	loadEnvFile()

	var e env
	cfg := &Config{
		Env: e.str("ENV", "development"),

		Darwin: DarwinConfig{
			ZenbotBin:         e.str("ZENBOT_BIN", ""),
			OutputDir:         e.str("DARWIN_OUTPUT_DIR", "."),
			Workers:           e.int("DARWIN_WORKERS", 0),
			SpawnRate:         e.float("DARWIN_SPAWN_RATE", 0),
			Seed:              e.int64("DARWIN_SEED", 0),
			StrategiesFile:    e.str("DARWIN_STRATEGIES_FILE", ""),
			ArtifactRetention: e.duration("ARTIFACT_RETENTION", 0),
		},

		Database: DatabaseConfig{
			Host:            e.str("DB_HOST", "localhost"),
			Port:            e.str("DB_PORT", "5432"),
			Name:            e.str("DB_NAME", "zenbot"),
			User:            e.str("DB_USER", "zenbot"),
			Password:        e.str("DB_PASSWORD", ""),
			URL:             e.str("DATABASE_URL", ""),
			MaxConns:        e.int("DB_MAX_CONNS", 10),
			MinConns:        e.int("DB_MIN_CONNS", 1),
			MaxConnLifetime: e.duration("DB_MAX_CONN_LIFETIME", time.Hour),
			MaxConnIdleTime: e.duration("DB_MAX_CONN_IDLE_TIME", 30*time.Minute),
		},

		Redis: RedisConfig{
			Host:     e.str("REDIS_HOST", "localhost"),
			Port:     e.str("REDIS_PORT", "6379"),
			Password: e.str("REDIS_PASSWORD", ""),
			DB:       e.int("REDIS_DB", 0),
			Enabled:  e.bool("REDIS_ENABLED", false),
		},

		Status: StatusConfig{
			Enabled: e.bool("STATUS_ENABLED", false),
			Port:    e.str("STATUS_PORT", "8089"),
		},

		LogLevel:  strings.ToLower(e.str("LOG_LEVEL", "info")),
		LogFormat: strings.ToLower(e.str("LOG_FORMAT", "console")),

		MetricsEnabled: e.bool("METRICS_ENABLED", true),
	}

	if err := errors.Join(e.errs...); err != nil {
		return nil, fmt.Errorf("invalid environment: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// validate checks configuration values
func (c *Config) validate() error {
	switch c.Env {
	case "development", "staging", "production":
	default:
		return fmt.Errorf("ENV must be one of: development, staging, production")
	}

	switch c.LogFormat {
	case "json", "console", "pretty":
	default:
		return fmt.Errorf("LOG_FORMAT must be json or console, got %q", c.LogFormat)
	}

	if c.Darwin.Workers < 0 {
		return fmt.Errorf("DARWIN_WORKERS must be >= 0")
	}
	if c.Darwin.SpawnRate < 0 {
		return fmt.Errorf("DARWIN_SPAWN_RATE must be >= 0")
	}
	if c.Darwin.ArtifactRetention < 0 {
		return fmt.Errorf("ARTIFACT_RETENTION must be >= 0")
	}
	if c.Database.MinConns > c.Database.MaxConns {
		return fmt.Errorf("DB_MIN_CONNS (%d) exceeds DB_MAX_CONNS (%d)", c.Database.MinConns, c.Database.MaxConns)
	}
	return nil
}

// loadEnvFile loads the first .env found in the working directory or next to the executable.
// Variables already set in the process win over the file.
func loadEnvFile() {
	paths := []string{".env"}
	if exe, err := os.Executable(); err == nil {
		dir := filepath.Dir(exe)
		paths = append(paths, filepath.Join(dir, ".env"), filepath.Join(dir, "..", ".env"))
	}

	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			_ = godotenv.Load(path)
			return
		}
	}
}

// env reads typed variables and collects parse errors
type env struct {
	errs []error
}

func (e *env) str(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}

// parsed applies parse to a set variable; unset or empty keeps def
func parsed[T any](e *env, key string, def T, parse func(string) (T, error)) T {
	raw := e.str(key, "")
	if raw == "" {
		return def
	}
	v, err := parse(strings.TrimSpace(raw))
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s=%q: %w", key, raw, err))
		return def
	}
	return v
}

func (e *env) int(key string, def int) int {
	return parsed(e, key, def, strconv.Atoi)
}

func (e *env) int64(key string, def int64) int64 {
	return parsed(e, key, def, func(s string) (int64, error) { return strconv.ParseInt(s, 10, 64) })
}

func (e *env) float(key string, def float64) float64 {
	return parsed(e, key, def, func(s string) (float64, error) { return strconv.ParseFloat(s, 64) })
}

func (e *env) bool(key string, def bool) bool {
	return parsed(e, key, def, strconv.ParseBool)
}

func (e *env) duration(key string, def time.Duration) time.Duration {
	return parsed(e, key, def, time.ParseDuration)
}
