// Package config reads server settings from the environment, optionally
// seeded from a .env file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/korjavin/nomnom/internal/auth"
	"github.com/korjavin/nomnom/internal/resolver"
)

// Config holds everything cmd/server needs to start.
type Config struct {
	Port        string
	DataDir     string
	OverrideDir string
	// CachePath selects the SQLite cache. Empty means an in-memory cache.
	CachePath string

	APIKeys        []string
	CORSOrigins    string
	RateLimitRPS   float64
	RateLimitBurst int

	LogLevel slog.Level
	CacheTTL resolver.TTLPolicy
}

// LoadDotEnv loads variables from the given files (default ".env") without
// overriding ones already set. Missing files are ignored.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	return nil
}

// Load reads the configuration from the process environment.
func Load() (*Config, error) {
	return FromLookup(os.LookupEnv)
}

// FromLookup builds a Config from an arbitrary lookup function.
func FromLookup(lookup func(string) (string, bool)) (*Config, error) {
	get := func(key, def string) string {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
		return def
	}

	c := &Config{
		Port:        get("PORT", "8080"),
		DataDir:     get("DATA_DIR", ""),
		CachePath:   get("CACHE_PATH", ""),
		APIKeys:     auth.ParseAPIKeys(get("API_KEYS", "")),
		CORSOrigins: get("CORS_ORIGINS", "*"),
		CacheTTL:    resolver.DefaultTTL,
	}
	if c.DataDir == "" {
		return nil, errors.New("DATA_DIR environment variable is required")
	}
	c.OverrideDir = get("OVERRIDE_DIR", c.DataDir+"-overrides")

	var errs []error
	var err error
	if c.RateLimitRPS, err = strconv.ParseFloat(get("RATE_LIMIT_RPS", "100"), 64); err != nil {
		errs = append(errs, fmt.Errorf("RATE_LIMIT_RPS: %w", err))
	}
	if c.RateLimitBurst, err = strconv.Atoi(get("RATE_LIMIT_BURST", "20")); err != nil {
		errs = append(errs, fmt.Errorf("RATE_LIMIT_BURST: %w", err))
	}
	if err := c.LogLevel.UnmarshalText([]byte(get("LOG_LEVEL", "INFO"))); err != nil {
		errs = append(errs, fmt.Errorf("LOG_LEVEL: %w", err))
	}

	ttls := []struct {
		key string
		dst *time.Duration
	}{
		{"CACHE_TTL_COMPLETE", &c.CacheTTL.Complete},
		{"CACHE_TTL_PARTIAL", &c.CacheTTL.Partial},
		{"CACHE_TTL_MINIMAL", &c.CacheTTL.Minimal},
	}
	for _, ttl := range ttls {
		raw := get(ttl.key, "")
		if raw == "" {
			continue
		}
		d, err := ParseTTL(raw)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", ttl.key, err))
			continue
		}
		*ttl.dst = d
	}

	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return c, nil
}

// ParseTTL accepts Go durations ("36h") and whole days ("30d").
func ParseTTL(s string) (time.Duration, error) {
	if days, ok := strings.CutSuffix(s, "d"); ok {
		n, err := strconv.Atoi(days)
		if err != nil || n <= 0 {
			return 0, fmt.Errorf("invalid day count %q", s)
		}
		return time.Duration(n) * 24 * time.Hour, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return 0, fmt.Errorf("ttl must be positive, got %s", s)
	}
	return d, nil
}
