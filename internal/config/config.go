// Package config loads the recognized "aws.*" SASL client options that
// drive the SigV4 signing engine and credential lifecycle manager.
package config

import (
	"fmt"
	"os"

	"github.com/brightloop/mskiamauth/internal/apperrors"
	"gopkg.in/yaml.v3"
)

// ErrConfig is the sentinel wrapped by every configuration validation failure.
var ErrConfig = apperrors.ErrConfig

// Config mirrors the recognized configuration options from spec.md §6.
// The YAML keys are not the dotted option names: each option is a
// snake_case key under its section (aws.access.key.id is access_key_id
// under aws).
type Config struct {
	AWS AWSConfig `yaml:"aws"`
	TLS TLSConfig `yaml:"tls"`

	Metrics MetricsConfig `yaml:"metrics"`
	Logging LoggingConfig `yaml:"logging"`
}

// AWSConfig holds the "aws.*" options.
type AWSConfig struct {
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
	Region          string `yaml:"region"`
	SessionToken    string `yaml:"session_token,omitempty"`

	EnableSTS bool `yaml:"enable_sts"`

	RoleARN         string `yaml:"role_arn,omitempty"`
	RoleSessionName string `yaml:"role_session_name,omitempty"`
	ExternalID      string `yaml:"external_id,omitempty"`
	DurationSec     int    `yaml:"duration_sec,omitempty"`
}

// TLSConfig holds the client cert/key/CA material passed through to the
// STS HTTPS client. Each field may hold either a filesystem path or an
// inline PEM blob; the sts package tells them apart by trying to parse
// the value as PEM first.
type TLSConfig struct {
	ClientCert string `yaml:"client_cert,omitempty"`
	ClientKey  string `yaml:"client_key,omitempty"`
	CABundle   string `yaml:"ca_bundle,omitempty"`
}

// MetricsConfig holds metrics server configuration.
type MetricsConfig struct {
	Port int    `yaml:"port"`
	Path string `yaml:"path"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// Validate checks the mandatory/combination rules from spec.md §6 and
// returns a wrapped ErrConfig describing the first violation found.
func (c *Config) Validate() error {
	if c.AWS.AccessKeyID == "" {
		return fmt.Errorf("%w: aws.access.key.id is required", ErrConfig)
	}
	if c.AWS.SecretAccessKey == "" {
		return fmt.Errorf("%w: aws.secret.access.key is required", ErrConfig)
	}
	if c.AWS.Region == "" {
		return fmt.Errorf("%w: aws.region is required", ErrConfig)
	}

	if c.AWS.EnableSTS {
		if c.AWS.RoleARN == "" {
			return fmt.Errorf("%w: aws.role.arn is required when aws.enable.sts is true", ErrConfig)
		}
		if c.AWS.RoleSessionName == "" {
			return fmt.Errorf("%w: aws.role.session.name is required when aws.enable.sts is true", ErrConfig)
		}
		if c.AWS.DurationSec <= 0 {
			return fmt.Errorf("%w: aws.duration.sec must be positive when aws.enable.sts is true", ErrConfig)
		}
	}

	return nil
}

// Load reads and parses a configuration file, expanding ${VAR}-style
// environment references, filling in defaults, and validating the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfig, err)
	}

	if cfg.Metrics.Port == 0 {
		cfg.Metrics.Port = 8080
	}
	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = "/metrics"
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}
