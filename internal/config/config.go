package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	defaultHTTPAddr    = ":8080"
	defaultAPIURL      = "http://localhost:3001"
	defaultAPITimeout  = 10 * time.Second
	defaultGuardWait   = 2 * time.Second
	defaultVisitorTTL  = 24 * time.Hour
	defaultRedisPrefix = "ecolearn:"

	defaultStorageBackend = "file"
	defaultStateFile      = "state.json"
)

type Config struct {
	HTTPAddr         string
	MetricsAddr      string
	APIURL           string
	APITimeout       time.Duration
	DemoMode         bool
	HashCredentials  bool
	StorageBackend   string
	StoragePath      string
	RedisURL         string
	RedisPrefix      string
	DatabaseURL      string
	AuthCookieSecure bool
	GuardWait        time.Duration
	VisitorTTL       time.Duration
}

type LoadOptions struct {
	RequireDatabaseURL bool
}

func Load() (Config, error) {
	return LoadWithOptions(LoadOptions{})
}

func LoadRequireDB() (Config, error) {
	return LoadWithOptions(LoadOptions{RequireDatabaseURL: true})
}

func LoadWithOptions(opts LoadOptions) (Config, error) {
	if err := godotenv.Load(); err != nil {
		var pathErr *os.PathError
		if !errors.As(err, &pathErr) {
			return Config{}, err
		}
	}

	cfg := Config{
		HTTPAddr:         getenvDefault("HTTP_ADDR", defaultHTTPAddr),
		MetricsAddr:      strings.TrimSpace(os.Getenv("METRICS_ADDR")),
		APIURL:           strings.TrimSpace(getenvDefault("API_URL", defaultAPIURL)),
		APITimeout:       getenvDurationDefault("API_TIMEOUT", defaultAPITimeout),
		DemoMode:         getenvBoolDefault("DEMO_MODE", true),
		HashCredentials:  getenvBoolDefault("DIRECTORY_HASH_CREDENTIALS", true),
		StorageBackend:   strings.ToLower(strings.TrimSpace(getenvDefault("STORAGE_BACKEND", defaultStorageBackend))),
		StoragePath:      strings.TrimSpace(os.Getenv("STORAGE_PATH")),
		RedisURL:         strings.TrimSpace(os.Getenv("REDIS_URL")),
		RedisPrefix:      getenvDefault("REDIS_PREFIX", defaultRedisPrefix),
		DatabaseURL:      os.Getenv("DATABASE_URL"),
		AuthCookieSecure: getenvBoolDefault("AUTH_COOKIE_SECURE", false),
		GuardWait:        getenvDurationDefault("GUARD_WAIT", defaultGuardWait),
		VisitorTTL:       getenvDurationDefault("VISITOR_TTL", defaultVisitorTTL),
	}

	if cfg.StoragePath == "" {
		cfg.StoragePath = defaultStoragePath()
	}

	if opts.RequireDatabaseURL && cfg.DatabaseURL == "" {
		return cfg, errors.New("DATABASE_URL is required")
	}

	return cfg, nil
}

func defaultStoragePath() string {
	dir, err := os.UserConfigDir()
	if err != nil || dir == "" {
		return filepath.Join(".ecolearn", defaultStateFile)
	}
	return filepath.Join(dir, "ecolearn", defaultStateFile)
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvDurationDefault(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return def
	}
	return d
}

func getenvBoolDefault(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	switch v {
	case "1":
		return true
	case "0":
		return false
	default:
		return def
	}
}
