package config

import (
	"fmt"
	"net/url"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// MinPort is the minimum valid port number
	MinPort = 1
	// MaxPort is the maximum valid port number
	MaxPort = 65535
)

// Config represents the complete application configuration. The api-service
// reads every section except Client; tracker-cli reads Client and Logging.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	RabbitMQ RabbitMQConfig `yaml:"rabbitmq"`
	Auth     AuthConfig     `yaml:"auth"`
	Sentry   SentryConfig   `yaml:"sentry"`
	Logging  LoggingConfig  `yaml:"logging"`
	App      AppConfig      `yaml:"app"`
	Client   ClientConfig   `yaml:"client"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// DatabaseConfig holds PostgreSQL connection configuration
type DatabaseConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	Database        string        `yaml:"database"`
	SSLMode         string        `yaml:"sslmode"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `yaml:"conn_max_idle_time"`
	// MigrationsDir is applied on startup when set
	MigrationsDir string `yaml:"migrations_dir"`
}

// RedisConfig holds the session store connection
type RedisConfig struct {
	Addr      string `yaml:"addr"`
	Password  string `yaml:"password"`
	DB        int    `yaml:"db"`
	KeyPrefix string `yaml:"key_prefix"`
}

// RabbitMQConfig holds RabbitMQ connection and exchange/queue configuration
type RabbitMQConfig struct {
	Enabled    bool             `yaml:"enabled"`
	Host       string           `yaml:"host"`
	Port       int              `yaml:"port"`
	User       string           `yaml:"user"`
	Password   string           `yaml:"password"`
	VHost      string           `yaml:"vhost"`
	Exchange   ExchangeConfig   `yaml:"exchange"`
	Queue      QueueConfig      `yaml:"queue"`
	RoutingKey string           `yaml:"routing_key"`
	Connection ConnectionConfig `yaml:"connection"`
	Publish    PublishConfig    `yaml:"publish"`
}

// ExchangeConfig holds RabbitMQ exchange configuration
type ExchangeConfig struct {
	Name       string `yaml:"name"`
	Type       string `yaml:"type"`
	Durable    bool   `yaml:"durable"`
	AutoDelete bool   `yaml:"auto_delete"`
}

// QueueConfig holds RabbitMQ queue configuration
type QueueConfig struct {
	Name       string `yaml:"name"`
	Durable    bool   `yaml:"durable"`
	AutoDelete bool   `yaml:"auto_delete"`
}

// ConnectionConfig holds RabbitMQ connection settings
type ConnectionConfig struct {
	RetryAttempts int           `yaml:"retry_attempts"`
	RetryInterval time.Duration `yaml:"retry_interval"`
	Heartbeat     time.Duration `yaml:"heartbeat"`
}

// PublishConfig holds RabbitMQ publish retry settings
type PublishConfig struct {
	RetryAttempts     int           `yaml:"retry_attempts"`
	RetryInterval     time.Duration `yaml:"retry_interval"`
	BackoffMultiplier float64       `yaml:"backoff_multiplier"`
}

// AuthConfig controls session issuance
type AuthConfig struct {
	// AdminToken guards session provisioning; empty disables the endpoint
	AdminToken string        `yaml:"admin_token"`
	SessionTTL time.Duration `yaml:"session_ttl"`
}

// SentryConfig holds error tracking settings; an empty DSN disables capture
type SentryConfig struct {
	DSN        string  `yaml:"dsn"`
	SampleRate float64 `yaml:"sample_rate"`
	Debug      bool    `yaml:"debug"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level        string `yaml:"level"`
	Format       string `yaml:"format"`
	Output       string `yaml:"output"`
	EnableCaller bool   `yaml:"enable_caller"`
	NoColor      bool   `yaml:"no_color"`
}

// AppConfig holds application metadata
type AppConfig struct {
	Name        string `yaml:"name"`
	Version     string `yaml:"version"`
	Environment string `yaml:"environment"`
}

// ClientConfig holds tracker-cli settings
type ClientConfig struct {
	ServerURL      string        `yaml:"server_url"`
	Token          string        `yaml:"token"`
	KeyStorePath   string        `yaml:"key_store_path"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	PollInterval   time.Duration `yaml:"poll_interval"`
	// Local keeps tasks in process memory instead of the api-service
	Local bool `yaml:"local"`
}

// Default returns a configuration with every default applied
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// Load reads the configuration file, expanding ${VAR} references from the
// environment before parsing
func Load(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	config.applyDefaults()
	return &config, nil
}

func (c *Config) applyDefaults() {
	if c.Server.ShutdownTimeout <= 0 {
		c.Server.ShutdownTimeout = 10 * time.Second
	}
	if c.Database.SSLMode == "" {
		c.Database.SSLMode = "disable"
	}
	if c.Redis.KeyPrefix == "" {
		c.Redis.KeyPrefix = "session"
	}
	if c.RabbitMQ.Exchange.Type == "" {
		c.RabbitMQ.Exchange.Type = "topic"
	}
	if c.RabbitMQ.RoutingKey == "" {
		c.RabbitMQ.RoutingKey = "task.created"
	}
	if c.Auth.SessionTTL <= 0 {
		c.Auth.SessionTTL = 24 * time.Hour
	}
	if c.Sentry.SampleRate <= 0 {
		c.Sentry.SampleRate = 1.0
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.App.Environment == "" {
		c.App.Environment = "development"
	}
	if c.Client.ServerURL == "" {
		c.Client.ServerURL = "http://localhost:8080"
	}
	if c.Client.RequestTimeout <= 0 {
		c.Client.RequestTimeout = 10 * time.Second
	}
	if c.Client.PollInterval <= 0 {
		c.Client.PollInterval = 5 * time.Second
	}
}

// ValidateAPIConfig checks the sections the api-service depends on
func (c *Config) ValidateAPIConfig() error {
	if c.Server.Port < MinPort || c.Server.Port > MaxPort {
		return fmt.Errorf("invalid server port: %d (must be between %d and %d)", c.Server.Port, MinPort, MaxPort)
	}

	if c.Database.Host == "" {
		return fmt.Errorf("database host is required")
	}

	if c.Database.Port < MinPort || c.Database.Port > MaxPort {
		return fmt.Errorf("invalid database port: %d (must be between %d and %d)", c.Database.Port, MinPort, MaxPort)
	}

	if c.Database.Database == "" {
		return fmt.Errorf("database name is required")
	}

	if c.Redis.Addr == "" {
		return fmt.Errorf("redis addr is required")
	}

	if c.RabbitMQ.Enabled {
		if c.RabbitMQ.Host == "" {
			return fmt.Errorf("rabbitmq host is required")
		}

		if c.RabbitMQ.Port < MinPort || c.RabbitMQ.Port > MaxPort {
			return fmt.Errorf("invalid rabbitmq port: %d (must be between %d and %d)", c.RabbitMQ.Port, MinPort, MaxPort)
		}

		if c.RabbitMQ.Exchange.Name == "" {
			return fmt.Errorf("rabbitmq exchange name is required")
		}
	}

	if c.Sentry.SampleRate > 1 {
		return fmt.Errorf("sentry sample_rate must be between 0 and 1")
	}

	return nil
}

// ValidateClientConfig checks the settings tracker-cli depends on
func (c *Config) ValidateClientConfig() error {
	if c.Client.PollInterval <= 0 {
		return fmt.Errorf("client poll_interval must be greater than 0")
	}

	if c.Client.RequestTimeout <= 0 {
		return fmt.Errorf("client request_timeout must be greater than 0")
	}

	if c.Client.Local {
		return nil
	}

	u, err := url.Parse(c.Client.ServerURL)
	if err != nil {
		return fmt.Errorf("invalid client server_url: %w", err)
	}

	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("client server_url must use http or https, got %q", c.Client.ServerURL)
	}

	if u.Host == "" {
		return fmt.Errorf("client server_url must include a host")
	}

	return nil
}
