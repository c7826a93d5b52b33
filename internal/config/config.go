// Package config loads settings from defaults, an optional YAML file and
// RATECODE_* environment variables. Command-line flags are applied on top
// by the caller.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"

	"github.com/rshade/aws-ratecode-checker/internal/pricing"
	"github.com/rshade/aws-ratecode-checker/internal/render"
)

// EnvConfigFile names the config file when no path is given explicitly.
const EnvConfigFile = "RATECODE_CONFIG"

// Pricing sources.
const (
	SourcePublic = "public"
	SourceAPI    = "api"
)

// Config is the complete runtime configuration.
type Config struct {
	BaseURL         string        `yaml:"base_url"`
	Timeout         time.Duration `yaml:"timeout"`
	RegionNamesFile string        `yaml:"region_names_file"`
	Source          string        `yaml:"source"`
	QueryRegion     string        `yaml:"query_region"`
	Output          string        `yaml:"output"`

	Cache  CacheConfig  `yaml:"cache"`
	Log    LogConfig    `yaml:"log"`
	Server ServerConfig `yaml:"server"`
}

// CacheConfig bounds the in-process pricing cache used by catalog lookups.
type CacheConfig struct {
	TTL          time.Duration `yaml:"ttl"`
	MaxDocuments int           `yaml:"max_documents"`
}

// LogConfig selects the logger.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// ServerConfig configures `ratecode serve`.
type ServerConfig struct {
	HTTPAddr        string        `yaml:"http_addr"`
	GRPCAddr        string        `yaml:"grpc_addr"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	CORS            CORSConfig    `yaml:"cors"`
}

// CORSConfig controls cross-origin access to the HTTP API.
type CORSConfig struct {
	AllowedOrigins   []string `yaml:"allowed_origins"`
	AllowCredentials bool     `yaml:"allow_credentials"`
	MaxAge           int      `yaml:"max_age"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		BaseURL:     pricing.DefaultBaseURL,
		Timeout:     pricing.DefaultTimeout,
		Source:      SourcePublic,
		QueryRegion: pricing.QueryAPIRegion,
		Output:      string(render.FormatText),
		Cache: CacheConfig{
			TTL:          time.Hour,
			MaxDocuments: 4,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
		Server: ServerConfig{
			HTTPAddr:        ":8080",
			GRPCAddr:        ":9090",
			ShutdownTimeout: 10 * time.Second,
			CORS: CORSConfig{
				MaxAge: 86400,
			},
		},
	}
}

// Load reads path (or $RATECODE_CONFIG when path is empty) from fs over
// the defaults, then applies the environment. Without either, only
// defaults and environment are used.
func Load(fs afero.Fs, path string, logger zerolog.Logger) (Config, error) {
	cfg := Default()

	if path == "" {
		path = os.Getenv(EnvConfigFile)
	}
	if path != "" {
		raw, err := afero.ReadFile(fs, path)
		if err != nil {
			return Config{}, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := decode(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("config file %s: %w", path, err)
		}
		logger.Debug().Str("path", path).Msg("config file loaded")
	}

	applyEnv(&cfg, logger)

	for _, o := range cfg.Server.CORS.AllowedOrigins {
		if o == "*" {
			logger.Warn().Msg("CORS wildcard origin (*) is insecure; use specific origins in production")
			break
		}
	}
	return cfg, nil
}

func decode(raw []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// applyEnv overlays RATECODE_* variables. Malformed values are logged and
// ignored.
func applyEnv(cfg *Config, logger zerolog.Logger) {
	setString(&cfg.BaseURL, "RATECODE_BASE_URL")
	setString(&cfg.RegionNamesFile, "RATECODE_REGION_NAMES_FILE")
	setString(&cfg.Source, "RATECODE_SOURCE")
	setString(&cfg.QueryRegion, "RATECODE_QUERY_REGION")
	setString(&cfg.Output, "RATECODE_OUTPUT")
	setString(&cfg.Log.Level, "RATECODE_LOG_LEVEL")
	setString(&cfg.Log.Format, "RATECODE_LOG_FORMAT")
	setString(&cfg.Server.HTTPAddr, "RATECODE_HTTP_ADDR")
	setString(&cfg.Server.GRPCAddr, "RATECODE_GRPC_ADDR")

	setDuration(&cfg.Timeout, "RATECODE_TIMEOUT", logger)
	setDuration(&cfg.Cache.TTL, "RATECODE_CACHE_TTL", logger)
	setDuration(&cfg.Server.ShutdownTimeout, "RATECODE_SHUTDOWN_TIMEOUT", logger)

	if v := os.Getenv("RATECODE_CACHE_MAX_DOCUMENTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Cache.MaxDocuments = n
		} else {
			logger.Warn().Str("value", v).Msg("invalid RATECODE_CACHE_MAX_DOCUMENTS, using default")
		}
	}

	if origins := os.Getenv("RATECODE_CORS_ALLOWED_ORIGINS"); origins != "" {
		cfg.Server.CORS.AllowedOrigins = nil
		for _, o := range strings.Split(origins, ",") {
			if trimmed := strings.TrimSpace(o); trimmed != "" {
				cfg.Server.CORS.AllowedOrigins = append(cfg.Server.CORS.AllowedOrigins, trimmed)
			}
		}
	}
	if v := os.Getenv("RATECODE_CORS_ALLOW_CREDENTIALS"); v != "" {
		cfg.Server.CORS.AllowCredentials = strings.ToLower(v) == "true"
	}
	if v := os.Getenv("RATECODE_CORS_MAX_AGE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			cfg.Server.CORS.MaxAge = n
		} else {
			logger.Warn().Str("value", v).Msg("invalid RATECODE_CORS_MAX_AGE, using default")
		}
	}
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setDuration(dst *time.Duration, key string, logger zerolog.Logger) {
	v := os.Getenv(key)
	if v == "" {
		return
	}
	d, err := time.ParseDuration(v)
	if err != nil || d < 0 {
		logger.Warn().Str("value", v).Msgf("invalid %s, using default", key)
		return
	}
	*dst = d
}

// Validate checks cross-field constraints.
func (c Config) Validate() error {
	u, err := url.Parse(c.BaseURL)
	if err != nil {
		return fmt.Errorf("invalid base_url %q: %w", c.BaseURL, err)
	}
	switch u.Scheme {
	case "http", "https", "file":
	default:
		return fmt.Errorf("invalid base_url %q: scheme must be http, https or file", c.BaseURL)
	}
	if c.Timeout < 0 {
		return fmt.Errorf("timeout must not be negative")
	}
	switch c.Source {
	case SourcePublic, SourceAPI:
	default:
		return fmt.Errorf("invalid source %q (want %s or %s)", c.Source, SourcePublic, SourceAPI)
	}
	if _, err := render.ParseFormat(c.Output); err != nil {
		return err
	}
	if c.Cache.MaxDocuments < 1 {
		return fmt.Errorf("cache.max_documents must be at least 1")
	}

	hasWildcard := false
	for _, o := range c.Server.CORS.AllowedOrigins {
		if o == "*" {
			hasWildcard = true
		}
	}
	if hasWildcard && c.Server.CORS.AllowCredentials {
		return fmt.Errorf("cannot enable credentials with wildcard origin (*); security risk")
	}
	return nil
}

// RegionNames returns the contents of the configured region-name file, or
// nil when the embedded table should be used.
func (c Config) RegionNames(fs afero.Fs) ([]byte, error) {
	if c.RegionNamesFile == "" {
		return nil, nil
	}
	raw, err := afero.ReadFile(fs, c.RegionNamesFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read region names file: %w", err)
	}
	if _, err := pricing.ParseRegionNames(raw); err != nil {
		return nil, fmt.Errorf("region names file %s: %w", c.RegionNamesFile, err)
	}
	return raw, nil
}
