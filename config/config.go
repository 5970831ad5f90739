package config

import (
	"errors"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Events   EventsConfig   `mapstructure:"events"`
	Tickers  TickersConfig  `mapstructure:"tickers"`
	Names    NamesConfig    `mapstructure:"names"`
	Verbose  bool           `mapstructure:"verbose"`
}

type ServerConfig struct {
	HTTPAddress    string        `mapstructure:"http_address"`
	RPCAddress     string        `mapstructure:"rpc_address"`
	MetricsAddress string        `mapstructure:"metrics_address"`
	SecureCookies  bool          `mapstructure:"secure_cookies"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
}

type DatabaseConfig struct {
	Driver   string         `mapstructure:"driver"`
	SQLite   SQLiteConfig   `mapstructure:"sqlite"`
	Postgres PostgresConfig `mapstructure:"postgres"`
}

type SQLiteConfig struct {
	Path string `mapstructure:"path"`
}

type PostgresConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
}

type EventsConfig struct {
	HeartbeatInterval time.Duration `mapstructure:"heartbeat_interval"`
	TimerResolution   time.Duration `mapstructure:"timer_resolution"`
}

// TickersConfig keeps the sampling and uniqueness budgets separate on purpose:
// they guard different failure modes and are tuned independently.
type TickersConfig struct {
	SamplingAttempts   int           `mapstructure:"sampling_attempts"`
	UniquenessAttempts int           `mapstructure:"uniqueness_attempts"`
	ActiveWindow       time.Duration `mapstructure:"active_window"`
}

type NamesConfig struct {
	MinLength int `mapstructure:"min_length"`
	MaxLength int `mapstructure:"max_length"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.http_address", ":8080")
	v.SetDefault("server.rpc_address", "127.0.0.1:8081")
	v.SetDefault("server.metrics_address", "127.0.0.1:9090")
	v.SetDefault("server.secure_cookies", true)
	v.SetDefault("server.write_timeout", 10*time.Second)

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.sqlite.path", "boomberg.db")
	v.SetDefault("database.postgres.host", "localhost")
	v.SetDefault("database.postgres.port", 5432)
	v.SetDefault("database.postgres.user", "boomberg")
	v.SetDefault("database.postgres.dbname", "boomberg")

	v.SetDefault("events.heartbeat_interval", 20*time.Second)
	v.SetDefault("events.timer_resolution", 100*time.Millisecond)

	v.SetDefault("tickers.sampling_attempts", 15)
	v.SetDefault("tickers.uniqueness_attempts", 10)
	v.SetDefault("tickers.active_window", 24*time.Hour)

	v.SetDefault("names.min_length", 3)
	v.SetDefault("names.max_length", 15)
}

// LoadConfig reads config.yaml from path (a missing file is fine), then applies
// BOOMBERG_* environment overrides and any flags that were set explicitly.
func LoadConfig(path string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.AddConfigPath(path)
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	v.SetEnvPrefix("BOOMBERG")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return nil, err
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	return &cfg, cfg.validate()
}

func (c *Config) validate() error {
	switch c.Database.Driver {
	case "sqlite", "postgres", "gorm", "memory":
	default:
		return errors.New("database.driver must be one of sqlite, postgres, gorm, memory")
	}
	if c.Events.HeartbeatInterval <= 0 {
		return errors.New("events.heartbeat_interval must be positive")
	}
	if c.Tickers.SamplingAttempts < 1 || c.Tickers.UniquenessAttempts < 1 {
		return errors.New("ticker attempt budgets must be at least 1")
	}
	if c.Names.MinLength < 1 || c.Names.MaxLength < c.Names.MinLength {
		return errors.New("names.min_length/max_length are inconsistent")
	}
	return nil
}
