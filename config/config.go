package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds the service configuration
type Config struct {
	Server        ServerConfig        `mapstructure:"server"`
	Logging       LoggingConfig       `mapstructure:"logging"`
	Database      DatabaseConfig      `mapstructure:"database"`
	Redis         RedisConfig         `mapstructure:"redis"`
	MessageBus    MessageBusConfig    `mapstructure:"messagebus"`
	Elasticsearch ElasticsearchConfig `mapstructure:"elasticsearch"`
	NewRelic      NewRelicConfig      `mapstructure:"newrelic"`
	Store         StoreConfig         `mapstructure:"store"`
	Yard          YardConfig          `mapstructure:"yard"`
}

// ServerConfig holds the HTTP server configuration
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	CorsWhiteList   []string      `mapstructure:"cors_white_list"`
}

// LoggingConfig holds the logger configuration
type LoggingConfig struct {
	Level string `mapstructure:"level"`
	JSON  bool   `mapstructure:"json"`
}

// DatabaseConfig holds the database configuration
type DatabaseConfig struct {
	Driver   string        `mapstructure:"driver"` // postgres, sqlite
	Host     string        `mapstructure:"host"`
	Port     int           `mapstructure:"port"`
	User     string        `mapstructure:"user"`
	Password string        `mapstructure:"password"`
	Name     string        `mapstructure:"name"`
	SSLMode  string        `mapstructure:"ssl_mode"`
	Path     string        `mapstructure:"path"` // sqlite file
	Debug    bool          `mapstructure:"debug"`
	MaxConn  int           `mapstructure:"max_conn"`
	MaxIdle  int           `mapstructure:"max_idle"`
	MaxLife  time.Duration `mapstructure:"max_life"`
}

// RedisConfig holds the Redis configuration
type RedisConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Host     string        `mapstructure:"host"`
	Port     int           `mapstructure:"port"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	TTL      time.Duration `mapstructure:"ttl"`
}

// MessageBusConfig holds the Azure Service Bus configuration
type MessageBusConfig struct {
	Enabled           bool   `mapstructure:"enabled"`
	ConnectionString  string `mapstructure:"connection_string"`
	Prefix            string `mapstructure:"prefix"`
	EventsQueue       string `mapstructure:"events_queue"`
	RegistrationQueue string `mapstructure:"registration_queue"`
}

// ElasticsearchConfig holds the Elasticsearch configuration
type ElasticsearchConfig struct {
	Enabled  bool     `mapstructure:"enabled"`
	URLs     []string `mapstructure:"urls"`
	Username string   `mapstructure:"username"`
	Password string   `mapstructure:"password"`
	Index    string   `mapstructure:"index"`
}

// NewRelicConfig holds the New Relic configuration
type NewRelicConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	AppName    string `mapstructure:"app_name"`
	LicenseKey string `mapstructure:"license_key"`
}

// StoreConfig bounds the conditional update retry loop
type StoreConfig struct {
	MaxAttempts int           `mapstructure:"max_attempts"`
	BaseBackoff time.Duration `mapstructure:"base_backoff"`
	MaxBackoff  time.Duration `mapstructure:"max_backoff"`
}

// YardConfig holds the master data and policies consumed by the journey engine
type YardConfig struct {
	TimeZone     string       `mapstructure:"time_zone"`
	Depots       []string     `mapstructure:"depots"`
	Transporters []string     `mapstructure:"transporters"`
	Suppliers    []string     `mapstructure:"suppliers"`
	TAT          TATConfig    `mapstructure:"tat"`
	Weight       WeightConfig `mapstructure:"weight"`
}

// TATConfig holds the turn-around time targets
type TATConfig struct {
	IdealMinutes             map[string]int `mapstructure:"ideal_minutes"`
	WarningThresholdPercent  int            `mapstructure:"warning_threshold_percent"`
	CriticalThresholdPercent int            `mapstructure:"critical_threshold_percent"`
}

// WeightConfig holds the reconciliation tolerance
type WeightConfig struct {
	TolerancePercent float64 `mapstructure:"tolerance_percent"`
}

// Load reads configuration from an optional file, then the environment.
// Environment keys use the YARD_ prefix, e.g. YARD_DATABASE_HOST.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	v.SetEnvPrefix("YARD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the policy values the engine relies on
func (c *Config) Validate() error {
	if c.Yard.TAT.IdealMinutes["default"] <= 0 {
		return errors.New("yard.tat.ideal_minutes.default must be positive")
	}
	if c.Yard.TAT.WarningThresholdPercent > c.Yard.TAT.CriticalThresholdPercent {
		return errors.New("yard.tat warning threshold must not exceed the critical threshold")
	}
	if c.Yard.Weight.TolerancePercent < 0 {
		return errors.New("yard.weight.tolerance_percent must not be negative")
	}
	if _, err := time.LoadLocation(c.Yard.TimeZone); err != nil {
		return fmt.Errorf("yard.time_zone: %w", err)
	}
	switch c.Database.Driver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("database.driver must be postgres or sqlite, got %q", c.Database.Driver)
	}
	return nil
}

// setDefaults sets default values for configuration
func setDefaults(v *viper.Viper) {
	// Server
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8095)
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "15s")
	v.SetDefault("server.shutdown_timeout", "10s")
	v.SetDefault("server.cors_white_list", []string{"*"})

	// Logging
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.json", false)

	// Database
	v.SetDefault("database.driver", "postgres")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "postgres")
	v.SetDefault("database.name", "yard_db")
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.path", "yard.db")
	v.SetDefault("database.debug", false)
	v.SetDefault("database.max_conn", 20)
	v.SetDefault("database.max_idle", 5)
	v.SetDefault("database.max_life", "30m")

	// Redis
	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.ttl", "1h")

	// Message bus
	v.SetDefault("messagebus.enabled", false)
	v.SetDefault("messagebus.connection_string", "")
	v.SetDefault("messagebus.prefix", "")
	v.SetDefault("messagebus.events_queue", "yard-journey-events")
	v.SetDefault("messagebus.registration_queue", "yard-gate-registrations")

	// Elasticsearch
	v.SetDefault("elasticsearch.enabled", false)
	v.SetDefault("elasticsearch.urls", []string{"http://localhost:9200"})
	v.SetDefault("elasticsearch.username", "")
	v.SetDefault("elasticsearch.password", "")
	v.SetDefault("elasticsearch.index", "yard-journeys")

	// New Relic
	v.SetDefault("newrelic.enabled", false)
	v.SetDefault("newrelic.app_name", "Yard Checkpoint Service")
	v.SetDefault("newrelic.license_key", "")

	// Store
	v.SetDefault("store.max_attempts", 5)
	v.SetDefault("store.base_backoff", "20ms")
	v.SetDefault("store.max_backoff", "1s")

	// Yard
	v.SetDefault("yard.time_zone", "Asia/Kolkata")
	v.SetDefault("yard.depots", []string{})
	v.SetDefault("yard.transporters", []string{})
	v.SetDefault("yard.suppliers", []string{})
	v.SetDefault("yard.tat.ideal_minutes", map[string]int{
		"default": 180,
		"FG":      180,
		"RM":      240,
		"PM":      150,
	})
	v.SetDefault("yard.tat.warning_threshold_percent", 20)
	v.SetDefault("yard.tat.critical_threshold_percent", 50)
	v.SetDefault("yard.weight.tolerance_percent", 2.0)
}
