// Package config loads server settings from defaults, an optional YAML file,
// a .env file and OPREMA_* environment variables, in increasing precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. OPREMA_HTTP_ADDR.
const EnvPrefix = "OPREMA"

// Environments.
const (
	EnvDev  = "dev"
	EnvProd = "prod"
)

// Config holds runtime configuration.
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	HTTP      HTTPConfig      `mapstructure:"http"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Log       LogConfig       `mapstructure:"log"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
	Kafka     KafkaConfig     `mapstructure:"kafka"`
	Inventory InventoryConfig `mapstructure:"inventory"`
	Admin     AdminConfig     `mapstructure:"admin"`
}

type AppConfig struct {
	Env string `mapstructure:"env"`
}

type HTTPConfig struct {
	Addr string `mapstructure:"addr"`
}

type DatabaseConfig struct {
	// Driver is "sqlite" or "postgres".
	Driver string `mapstructure:"driver"`
	// DSN is a file path for SQLite and a connection URL for Postgres.
	DSN          string        `mapstructure:"dsn"`
	LockTimeout  time.Duration `mapstructure:"lock_timeout"`
	MaxOpenConns int           `mapstructure:"max_open_conns"`
}

type LogConfig struct {
	Path string `mapstructure:"path"`
}

type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

type KafkaConfig struct {
	Enabled  bool     `mapstructure:"enabled"`
	Brokers  []string `mapstructure:"brokers"`
	Topic    string   `mapstructure:"topic"`
	ClientID string   `mapstructure:"client_id"`
	Retries  int      `mapstructure:"retries"`
}

type InventoryConfig struct {
	LowStockThreshold int `mapstructure:"low_stock_threshold"`
}

// AdminConfig names the bootstrap admin created on an empty database.
type AdminConfig struct {
	Email string `mapstructure:"email"`
	Name  string `mapstructure:"name"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.env", EnvProd)
	v.SetDefault("http.addr", ":8080")
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "oprema.sqlite3")
	v.SetDefault("database.lock_timeout", 5*time.Second)
	v.SetDefault("database.max_open_conns", 0)
	v.SetDefault("log.path", "")
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("kafka.enabled", false)
	v.SetDefault("kafka.brokers", []string{})
	v.SetDefault("kafka.topic", "oprema.events")
	v.SetDefault("kafka.client_id", "oprema")
	v.SetDefault("kafka.retries", 3)
	v.SetDefault("inventory.low_stock_threshold", 3)
	v.SetDefault("admin.email", "admin@localhost")
	v.SetDefault("admin.name", "Administrator")
}

// Load reads configuration. path may be empty; a missing .env file is not an
// error.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}

	cfg.Kafka.Brokers = splitList(cfg.Kafka.Brokers)
	return cfg, nil
}

// splitList flattens comma-separated entries and drops empty ones.
func splitList(in []string) []string {
	var out []string
	for _, s := range in {
		for _, part := range strings.Split(s, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	switch c.App.Env {
	case EnvDev, EnvProd:
	default:
		return fmt.Errorf("app.env must be %q or %q, got %q", EnvDev, EnvProd, c.App.Env)
	}
	switch c.Database.Driver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("unsupported database.driver %q", c.Database.Driver)
	}
	if c.Database.DSN == "" {
		return errors.New("database.dsn is required")
	}
	if c.Database.LockTimeout <= 0 {
		return errors.New("database.lock_timeout must be positive")
	}
	if c.HTTP.Addr == "" {
		return errors.New("http.addr is required")
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return errors.New("kafka.brokers is required when kafka is enabled")
	}
	if c.Kafka.Enabled && c.Kafka.Topic == "" {
		return errors.New("kafka.topic is required when kafka is enabled")
	}
	if c.Inventory.LowStockThreshold < 0 {
		return errors.New("inventory.low_stock_threshold must not be negative")
	}
	return nil
}

// IsDev reports whether the server runs in development mode.
func (c *Config) IsDev() bool { return c.App.Env == EnvDev }
