// Package config loads application configuration from YAML files and environment
// variables, and hot-reloads the tunable parts of it.
package config

import (
	"time"

	"savethespice-backend/internal/repository"
	"savethespice-backend/pkg/utils"
)

// Environment is the deployment environment.
type Environment string

const (
	Development Environment = "development"
	Test        Environment = "test"
	Staging     Environment = "staging"
	Production  Environment = "production"
)

// Storage drivers.
const (
	DriverDynamoDB = "dynamodb"
	DriverMemory   = "memory"
)

// Auth modes.
const (
	// AuthAPIGateway trusts the user id placed in the request context by API Gateway.
	AuthAPIGateway = "apigateway"
	// AuthJWT verifies HS256 bearer tokens itself.
	AuthJWT = "jwt"
	// AuthNone reads the user id from the X-User-Id header. Development only.
	AuthNone = "none"
)

// Config is the full application configuration.
type Config struct {
	Environment Environment `yaml:"environment" validate:"oneof=development test staging production"`

	Server  Server  `yaml:"server"`
	Storage Storage `yaml:"storage"`
	Batch   Batch   `yaml:"batch"`
	Images  Images  `yaml:"images"`
	Auth    Auth    `yaml:"auth"`
	Events  Events  `yaml:"events"`
	Tracing Tracing `yaml:"tracing"`
	Logging Logging `yaml:"logging"`
	Metrics Metrics `yaml:"metrics"`

	// LoadedFrom lists the sources applied, lowest priority first.
	LoadedFrom []string `yaml:"-"`
}

// Server configures the HTTP server.
type Server struct {
	Port            int           `yaml:"port" validate:"min=1,max=65535"`
	Host            string        `yaml:"host"`
	RequestTimeout  time.Duration `yaml:"request_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	AllowedOrigins  []string      `yaml:"allowed_origins"`
}

// Storage configures the entity store.
type Storage struct {
	Driver   string `yaml:"driver" validate:"oneof=dynamodb memory"`
	Region   string `yaml:"region" validate:"required_if=Driver dynamodb"`
	Endpoint string `yaml:"endpoint"`
	Tables   Tables `yaml:"tables"`
}

// Tables holds the physical table names.
type Tables struct {
	Recipes    string `yaml:"recipes" validate:"required"`
	Categories string `yaml:"categories" validate:"required"`
	Meta       string `yaml:"meta" validate:"required"`
	Share      string `yaml:"share" validate:"required"`
}

// Batch configures batch endpoints.
type Batch struct {
	// MaxConcurrency bounds the items of one batch request processed at once. 1 is
	// sequential.
	MaxConcurrency int `yaml:"max_concurrency" validate:"min=1,max=64"`
}

// Images configures image re-hosting. Re-hosting is off when Bucket is empty.
type Images struct {
	Bucket string `yaml:"bucket"`
	Prefix string `yaml:"prefix"`
}

// Auth configures request authentication.
type Auth struct {
	Mode      string `yaml:"mode" validate:"oneof=apigateway jwt none"`
	JWTSecret string `yaml:"jwt_secret" validate:"required_if=Mode jwt"`
	JWTIssuer string `yaml:"jwt_issuer"`
}

// Events configures event publishing. Events are only logged when BusName is empty.
type Events struct {
	BusName string `yaml:"bus_name"`
	Source  string `yaml:"source"`
}

// Tracing configures OpenTelemetry.
type Tracing struct {
	Endpoint   string  `yaml:"endpoint"`
	SampleRate float64 `yaml:"sample_rate" validate:"min=0,max=1"`
}

// Logging configures zap.
type Logging struct {
	Level string `yaml:"level" validate:"oneof=debug info warn error"`
}

// Metrics configures Prometheus.
type Metrics struct {
	Namespace string `yaml:"namespace" validate:"required"`
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	return utils.ValidateStruct(c)
}

// RepositoryTables converts the table names for the store layer.
func (c *Config) RepositoryTables() repository.Tables {
	return repository.Tables{
		Recipes:    c.Storage.Tables.Recipes,
		Categories: c.Storage.Tables.Categories,
		Meta:       c.Storage.Tables.Meta,
		Share:      c.Storage.Tables.Share,
	}
}

// IsProduction reports whether c targets production.
func (c *Config) IsProduction() bool {
	return c.Environment == Production
}
