package config

import (
	"fmt"
	"strconv"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Server        ServerConfig        `envconfig:"SERVER"`
	Redis         RedisConfig         `envconfig:"REDIS"`
	JWT           JWTConfig           `envconfig:"JWT"`
	DynamoDB      DynamoDBConfig      `envconfig:"DYNAMODB"`
	Docker        DockerConfig        `envconfig:"DOCKER"`
	RateLimit     RateLimitConfig     `envconfig:"RATE_LIMIT"`
	Observability ObservabilityConfig `envconfig:"OBSERVABILITY"`
	CORS          CORSConfig          `envconfig:"CORS"`
	Log           LogConfig           `envconfig:"LOG"`
	AWS           AWSConfig           `envconfig:"AWS"`
}

type AWSConfig struct {
	Region     string `envconfig:"REGION" default:"us-east-1"`
	Profile    string `envconfig:"PROFILE" default:""`
	SecretName string `envconfig:"SECRET_NAME" default:""`
}

type ServerConfig struct {
	Port         string        `envconfig:"PORT" default:"8000"`
	Environment  string        `envconfig:"ENVIRONMENT" default:"development"`
	ReadTimeout  time.Duration `envconfig:"READ_TIMEOUT" default:"30s"`
	WriteTimeout time.Duration `envconfig:"WRITE_TIMEOUT" default:"30s"`
	IdleTimeout  time.Duration `envconfig:"IDLE_TIMEOUT" default:"120s"`
}

type RedisConfig struct {
	Address             string        `envconfig:"ADDRESS" default:"localhost:6379"`
	Password            string        `envconfig:"PASSWORD" default:""`
	Database            int           `envconfig:"DATABASE" default:"0"`
	MaxRetries          int           `envconfig:"MAX_RETRIES" default:"3"`
	PoolSize            int           `envconfig:"POOL_SIZE" default:"100"`
	PoolTimeout         time.Duration `envconfig:"POOL_TIMEOUT" default:"4s"`
	TLSEnabled          bool          `envconfig:"TLS_ENABLED" default:"false"`
	PasswordFromSecrets bool          `envconfig:"PASSWORD_FROM_SECRETS" default:"false"`
}

type JWTConfig struct {
	Secret string        `envconfig:"SECRET" default:"change-me-in-production"`
	TTL    time.Duration `envconfig:"TTL" default:"60m"`
}

type DynamoDBConfig struct {
	UsersTableName      string `envconfig:"USERS_TABLE_NAME" default:"dockpilot-users"`
	ContainersTableName string `envconfig:"CONTAINERS_TABLE_NAME" default:"dockpilot-user-containers"`
	Region              string `envconfig:"REGION" default:"us-east-1"`
}

type DockerConfig struct {
	Host        string        `envconfig:"HOST" default:""`
	CallTimeout time.Duration `envconfig:"CALL_TIMEOUT" default:"60s"`
}

// MissingRecordPolicy controls what the rate limiter does when a user has no
// provisioned record: create one from the defaults, or reject until an admin
// sets one.
type MissingRecordPolicy string

const (
	MissingRecordDefault MissingRecordPolicy = "default"
	MissingRecordReject  MissingRecordPolicy = "reject"
)

type RateLimitConfig struct {
	Enabled       bool                `envconfig:"ENABLED" default:"true"`
	DefaultLimit  int                 `envconfig:"DEFAULT_LIMIT" default:"10"`
	DefaultWindow time.Duration       `envconfig:"DEFAULT_WINDOW" default:"60s"`
	OnMissing     MissingRecordPolicy `envconfig:"ON_MISSING" default:"default"`
}

type ObservabilityConfig struct {
	MetricsPath    string  `envconfig:"METRICS_PATH" default:"/metrics"`
	OTLPEndpoint   string  `envconfig:"OTLP_ENDPOINT" default:"http://localhost:4318"`
	TracingEnabled bool    `envconfig:"TRACING_ENABLED" default:"true"`
	SampleRate     float64 `envconfig:"SAMPLE_RATE" default:"0.1"`
}

type CORSConfig struct {
	AllowOrigins string `envconfig:"ALLOW_ORIGINS" default:"*"`
}

type LogConfig struct {
	Level  string `envconfig:"LEVEL" default:"info"`
	Format string `envconfig:"FORMAT" default:"json"`
}

func Load() (*Config, error) {
	var cfg Config

	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process environment config: %w", err)
	}

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

func validateConfig(cfg *Config) error {
	if port, err := strconv.Atoi(cfg.Server.Port); err != nil || port < 1 || port > 65535 {
		return fmt.Errorf("invalid server port: %s", cfg.Server.Port)
	}

	if cfg.JWT.TTL <= 0 {
		return fmt.Errorf("invalid JWT TTL: %s", cfg.JWT.TTL)
	}

	switch cfg.RateLimit.OnMissing {
	case MissingRecordDefault, MissingRecordReject:
	default:
		return fmt.Errorf("invalid rate limit missing-record policy: %s", cfg.RateLimit.OnMissing)
	}

	if cfg.RateLimit.DefaultLimit < 1 {
		return fmt.Errorf("invalid rate limit default limit: %d", cfg.RateLimit.DefaultLimit)
	}

	if cfg.Observability.SampleRate < 0 || cfg.Observability.SampleRate > 1 {
		return fmt.Errorf("invalid tracing sample rate: %f", cfg.Observability.SampleRate)
	}

	return nil
}
