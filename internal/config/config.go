package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	Auth     AuthConfig     `yaml:"auth"`
	Mailer   MailerConfig   `yaml:"mailer"`
	Import   ImportConfig   `yaml:"import"`
	Segments SegmentsConfig `yaml:"segments"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port int    `yaml:"port"`
	Host string `yaml:"host"`
}

// GetHost returns the server host, with container detection.
func (c ServerConfig) GetHost() string {
	// In a container, listen on all interfaces.
	if os.Getenv("ECS_CONTAINER_METADATA_URI") != "" || os.Getenv("AWS_EXECUTION_ENV") != "" {
		return "0.0.0.0"
	}
	if host := os.Getenv("SERVER_HOST"); host != "" {
		return host
	}
	return c.Host
}

// DatabaseConfig holds the Postgres record store configuration.
type DatabaseConfig struct {
	URL             string `yaml:"url"`
	MaxOpenConns    int    `yaml:"max_open_conns"`
	MaxIdleConns    int    `yaml:"max_idle_conns"`
	ConnMaxLifetime int    `yaml:"conn_max_lifetime_seconds"`
}

// Lifetime returns the connection max lifetime as a duration.
func (c DatabaseConfig) Lifetime() time.Duration {
	return time.Duration(c.ConnMaxLifetime) * time.Second
}

// RedisConfig holds the import job tracker configuration. Redis is optional:
// with no address configured, job history is simply not recorded.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Enabled  bool   `yaml:"enabled"`
}

// AuthConfig holds the admin bearer token. The back office uses a single
// static token compared in constant time; there is no user model.
type AuthConfig struct {
	AdminToken string `yaml:"admin_token"`
}

// MailerConfig holds welcome email settings (AWS SES v2). Disabled unless a
// from address and region are configured.
type MailerConfig struct {
	Enabled      bool   `yaml:"enabled"`
	Region       string `yaml:"region"`
	AccessKey    string `yaml:"access_key"`
	SecretKey    string `yaml:"secret_key"`
	FromAddress  string `yaml:"from_address"`
	FromName     string `yaml:"from_name"`
	TemplatePath string `yaml:"template_path"`
}

// ImportConfig holds import pipeline tuning.
type ImportConfig struct {
	// Concurrency bounds in-flight store operations per run. The default of 1
	// keeps imports strictly sequential as backpressure against the store.
	Concurrency int `yaml:"concurrency"`
	// MaxPayloadBytes caps the request body accepted by the import endpoint.
	MaxPayloadBytes int64 `yaml:"max_payload_bytes"`
}

// SegmentsConfig carries the alias table as configuration so new aliases ship
// without touching pipeline code. Entries extend the built-in table.
type SegmentsConfig struct {
	Aliases map[string]string `yaml:"aliases"`
}

// Load reads and parses the configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	applyDefaults(&cfg)
	return &cfg, nil
}

func defaults() (*Config, error) {
	var cfg Config
	applyDefaults(&cfg)
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 10
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 5
	}
	if cfg.Database.ConnMaxLifetime == 0 {
		cfg.Database.ConnMaxLifetime = 300
	}
	if cfg.Redis.Addr == "" {
		cfg.Redis.Addr = "localhost:6379"
	}
	if cfg.Import.Concurrency == 0 {
		cfg.Import.Concurrency = 1
	}
	if cfg.Import.MaxPayloadBytes == 0 {
		cfg.Import.MaxPayloadBytes = 32 << 20 // 32MB
	}
	if cfg.Mailer.Region == "" {
		cfg.Mailer.Region = "us-east-1"
	}
}

// LoadFromEnv loads configuration with environment variable overrides.
// It automatically loads a .env file (if present) before reading env vars,
// so secrets can live in .env locally and in real env vars in production.
func LoadFromEnv(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg, err := Load(path)
	if os.IsNotExist(err) {
		// Env-only deployments carry no config file; defaults plus env
		// overrides are enough.
		cfg, err = defaults()
	}
	if err != nil {
		return nil, err
	}

	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		cfg.Database.URL = dbURL
	}
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		cfg.Redis.Addr = addr
		cfg.Redis.Enabled = true
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("ADMIN_TOKEN"); v != "" {
		cfg.Auth.AdminToken = v
	}
	if v := os.Getenv("MAILER_FROM_ADDRESS"); v != "" {
		cfg.Mailer.FromAddress = v
	}
	if v := os.Getenv("AWS_SES_ACCESS_KEY"); v != "" {
		cfg.Mailer.AccessKey = v
	}
	if v := os.Getenv("AWS_SES_SECRET_KEY"); v != "" {
		cfg.Mailer.SecretKey = v
	}
	if v := os.Getenv("AWS_SES_REGION"); v != "" {
		cfg.Mailer.Region = v
	}
	if v := os.Getenv("IMPORT_CONCURRENCY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Import.Concurrency = n
		}
	}

	return cfg, nil
}
