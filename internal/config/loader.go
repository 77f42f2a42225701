package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Loader builds a Config from, lowest priority first:
//  1. defaults in code
//  2. <dir>/base.yaml
//  3. <dir>/<environment>.yaml
//  4. environment variables
type Loader struct {
	dir         string
	environment Environment
	getenv      func(string) string
}

// NewLoader creates a loader reading files from dir. The environment comes from
// ENVIRONMENT and defaults to development.
func NewLoader(dir string) *Loader {
	if dir == "" {
		dir = "config"
	}
	env := Environment(strings.ToLower(os.Getenv("ENVIRONMENT")))
	if env == "" {
		env = Development
	}
	return &Loader{dir: dir, environment: env, getenv: os.Getenv}
}

// Dir returns the directory the loader reads files from.
func (l *Loader) Dir() string {
	return l.dir
}

// Load reads every source and validates the result.
func (l *Loader) Load() (*Config, error) {
	cfg := Defaults(l.environment)
	cfg.LoadedFrom = []string{"defaults"}

	for _, name := range []string{"base", string(l.environment)} {
		path, err := l.loadFile(name, cfg)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, err
		}
		cfg.LoadedFrom = append(cfg.LoadedFrom, path)
	}

	if err := l.applyEnv(cfg); err != nil {
		return nil, err
	}
	cfg.LoadedFrom = append(cfg.LoadedFrom, "environment")
	cfg.Environment = l.environment

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

func (l *Loader) loadFile(name string, cfg *Config) (string, error) {
	for _, ext := range []string{".yaml", ".yml"} {
		path := filepath.Join(l.dir, name+ext)
		data, err := os.ReadFile(path)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return "", fmt.Errorf("read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return "", fmt.Errorf("parse %s: %w", path, err)
		}
		return path, nil
	}
	return "", fs.ErrNotExist
}

// applyEnv overlays environment variables. Malformed numbers are errors rather than
// silently ignored.
func (l *Loader) applyEnv(cfg *Config) error {
	str := func(name string, dst *string) {
		if v := l.getenv(name); v != "" {
			*dst = v
		}
	}
	str("RECIPES_TABLE_NAME", &cfg.Storage.Tables.Recipes)
	str("CATEGORIES_TABLE_NAME", &cfg.Storage.Tables.Categories)
	str("META_TABLE_NAME", &cfg.Storage.Tables.Meta)
	str("SHARE_TABLE_NAME", &cfg.Storage.Tables.Share)
	str("IMAGES_BUCKET_NAME", &cfg.Images.Bucket)
	str("AWS_REGION", &cfg.Storage.Region)
	str("DYNAMODB_ENDPOINT", &cfg.Storage.Endpoint)
	str("STORAGE_DRIVER", &cfg.Storage.Driver)
	str("AUTH_MODE", &cfg.Auth.Mode)
	str("JWT_SECRET", &cfg.Auth.JWTSecret)
	str("JWT_ISSUER", &cfg.Auth.JWTIssuer)
	str("EVENT_BUS_NAME", &cfg.Events.BusName)
	str("TRACING_ENDPOINT", &cfg.Tracing.Endpoint)
	str("LOG_LEVEL", &cfg.Logging.Level)

	if v := l.getenv("SERVER_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("SERVER_PORT: %w", err)
		}
		cfg.Server.Port = port
	}
	if v := l.getenv("BATCH_MAX_CONCURRENCY"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("BATCH_MAX_CONCURRENCY: %w", err)
		}
		cfg.Batch.MaxConcurrency = n
	}
	if v := l.getenv("REQUEST_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("REQUEST_TIMEOUT: %w", err)
		}
		cfg.Server.RequestTimeout = d
	}
	return nil
}

// Defaults returns the configuration used when no file or variable overrides it.
func Defaults(env Environment) *Config {
	cfg := &Config{
		Environment: env,
		Server: Server{
			Port:            8080,
			Host:            "0.0.0.0",
			RequestTimeout:  25 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			AllowedOrigins:  []string{"*"},
		},
		Storage: Storage{
			Driver: DriverDynamoDB,
			Region: "us-west-2",
			Tables: Tables{
				Recipes:    "savethespice-recipes",
				Categories: "savethespice-categories",
				Meta:       "savethespice-meta",
				Share:      "savethespice-share",
			},
		},
		Batch:   Batch{MaxConcurrency: 4},
		Auth:    Auth{Mode: AuthAPIGateway},
		Events:  Events{Source: "savethespice.backend"},
		Tracing: Tracing{SampleRate: 0},
		Logging: Logging{Level: "info"},
		Metrics: Metrics{Namespace: "savethespice"},
	}
	if env == Development || env == Test {
		cfg.Storage.Driver = DriverMemory
		cfg.Auth.Mode = AuthNone
		cfg.Logging.Level = "debug"
	}
	return cfg
}
