package config

import (
	"fmt"
	"net/url"

	"github.com/caarlos0/env/v11"
)

// Config contains application configuration parameters.
type Config struct {
	LogLevel  int     `env:"LOG_LEVEL" envDefault:"0"`
	LogFormat string  `env:"LOG_FORMAT" envDefault:"text"`
	Backend   Backend `envPrefix:"BACKEND_"`
	HTTP      HTTP    `envPrefix:"HTTP_"`
	Storage   Storage `envPrefix:"MINIO_"`
}

// Backend describes the users REST backend.
type Backend struct {
	BaseURL string `env:"BASE_URL" envDefault:"http://localhost:8080"`
}

// HTTP contains view server parameters.
type HTTP struct {
	Port               string `env:"PORT" envDefault:"3000"`
	EnableHTTPS        bool   `env:"ENABLE_HTTPS" envDefault:"false"`
	CertFileName       string `env:"CERT_FILE_NAME" envDefault:"cert.pem"`
	PrivateKeyFileName string `env:"PRIVATE_KEY_FILE_NAME" envDefault:"key.pem"`
}

// Storage contains the optional photo cache parameters.
type Storage struct {
	Enabled   bool   `env:"ENABLED" envDefault:"false"`
	Endpoint  string `env:"ENDPOINT" envDefault:"localhost:9000"`
	AccessKey string `env:"ACCESS_KEY" envDefault:"userdir-access-key"`
	SecretKey string `env:"SECRET_KEY" envDefault:"userdir-secret-key"`
	Bucket    string `env:"BUCKET_NAME" envDefault:"userdir-photos"`
	UseSSL    bool   `env:"USE_SSL" envDefault:"false"`
}

// NewConfig loads configuration from environment variables.
func NewConfig() (*Config, error) {
	cfg := Config{}
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) validate() error {
	u, err := url.Parse(c.Backend.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid BACKEND_BASE_URL %q: must be an absolute URL", c.Backend.BaseURL)
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("invalid LOG_FORMAT %q: must be text or json", c.LogFormat)
	}
	return nil
}
