package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. GELATO_HTTP_ADDR.
const EnvPrefix = "GELATO"

// Config holds all application configuration.
type Config struct {
	HTTP      HTTPConfig      `mapstructure:"http"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Blob      BlobConfig      `mapstructure:"blob"`
	Templates TemplatesConfig `mapstructure:"templates"`
	Prices    PricesConfig    `mapstructure:"prices"`
	Logger    LoggerConfig    `mapstructure:"logger"`
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	Addr         string        `mapstructure:"addr"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// DatabaseConfig holds the record store connection.
type DatabaseConfig struct {
	URL             string        `mapstructure:"url"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// AuthConfig holds the JWT verification secret.
type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret"`
}

// BlobConfig holds the document store location.
type BlobConfig struct {
	BaseDir   string `mapstructure:"base_dir"`
	PublicURL string `mapstructure:"public_url"`
}

// TemplatesConfig points at the template seed file.
type TemplatesConfig struct {
	SeedPath string `mapstructure:"seed_path"`
}

// PricesConfig bounds concurrent custom price writes.
type PricesConfig struct {
	BatchLimit int `mapstructure:"batch_limit"`
}

// LoggerConfig holds logger configuration.
type LoggerConfig struct {
	Level      string `mapstructure:"level"`
	OutputPath string `mapstructure:"output_path"`
	Format     string `mapstructure:"format"`
}

// Load reads configPath when it is not empty, then applies environment
// overrides.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := bindEnvVars(v); err != nil {
		return nil, err
	}

	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("http.addr", ":8080")
	v.SetDefault("http.read_timeout", 15*time.Second)
	v.SetDefault("http.write_timeout", 60*time.Second)

	v.SetDefault("database.url", "")
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", 5*time.Minute)

	v.SetDefault("auth.jwt_secret", "")

	v.SetDefault("blob.base_dir", "data/blobs")
	v.SetDefault("blob.public_url", "")

	v.SetDefault("templates.seed_path", "configs/templates.yaml")

	v.SetDefault("prices.batch_limit", 4)

	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.output_path", "stdout")
	v.SetDefault("logger.format", "json")
}

// bindEnvVars binds the unprefixed variables deployments already set.
func bindEnvVars(v *viper.Viper) error {
	bindings := map[string][]string{
		"database.url":    {"GELATO_DATABASE_URL", "DATABASE_URL"},
		"auth.jwt_secret": {"GELATO_AUTH_JWT_SECRET", "AUTH_JWT_SECRET"},
		"http.addr":       {"GELATO_HTTP_ADDR", "HTTP_ADDR"},
	}
	for key, envs := range bindings {
		if err := v.BindEnv(append([]string{key}, envs...)...); err != nil {
			return fmt.Errorf("bind %s: %w", key, err)
		}
	}
	return nil
}

// Validate checks required settings.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Database.URL) == "" {
		return errors.New("database url is required (DATABASE_URL)")
	}
	if strings.TrimSpace(c.Auth.JWTSecret) == "" {
		return errors.New("jwt secret is required (AUTH_JWT_SECRET)")
	}
	if c.HTTP.Addr == "" {
		return errors.New("http addr is required")
	}
	if c.HTTP.ReadTimeout <= 0 || c.HTTP.WriteTimeout <= 0 {
		return errors.New("http timeouts must be positive")
	}
	if c.Prices.BatchLimit < 1 {
		return fmt.Errorf("prices batch limit must be at least 1, got %d", c.Prices.BatchLimit)
	}
	if strings.TrimSpace(c.Blob.BaseDir) == "" {
		return errors.New("blob base dir is required")
	}
	switch c.Logger.Format {
	case "json", "console":
	default:
		return fmt.Errorf("logger format must be json or console, got %q", c.Logger.Format)
	}
	return nil
}
