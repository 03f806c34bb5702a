package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const Version = "1.0.0"

type ServerConfig struct {
	Port            string        `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// DatabaseConfig selects the ledger store. Driver is "mongo" or "memory".
type DatabaseConfig struct {
	Driver         string        `yaml:"driver"`
	URI            string        `yaml:"uri"`
	Name           string        `yaml:"name"`
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // text or json
}

type AuthConfig struct {
	JWTSecret string        `yaml:"jwt_secret"`
	TokenTTL  time.Duration `yaml:"token_ttl"`
}

// DonationConfig controls the stale pending donation sweeper.
type DonationConfig struct {
	PendingTTL    time.Duration `yaml:"pending_ttl"`
	SweepInterval time.Duration `yaml:"sweep_interval"`
}

// KafkaConfig enables event publishing when Brokers is non-empty.
type KafkaConfig struct {
	Brokers      []string      `yaml:"brokers"`
	Topic        string        `yaml:"topic"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	// BatchTimeout bounds how long Publish waits to fill a batch.
	BatchTimeout time.Duration `yaml:"batch_timeout"`
}

type CoinflowConfig struct {
	BaseURL      string        `yaml:"base_url"`
	APIKey       string        `yaml:"api_key"`
	MerchantID   string        `yaml:"merchant_id"`
	WebhookToken string        `yaml:"webhook_token"`
	Blockchain   string        `yaml:"blockchain"`
	Timeout      time.Duration `yaml:"timeout"`
}

type RateLimitConfig struct {
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	Burst             int     `yaml:"burst"`
}

// Config is the ledger API server configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Log       LogConfig       `yaml:"log"`
	Auth      AuthConfig      `yaml:"auth"`
	Donations DonationConfig  `yaml:"donations"`
	Kafka     KafkaConfig     `yaml:"kafka"`
	Coinflow  CoinflowConfig  `yaml:"coinflow"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`

	// Warnings collects defaulted or unparsable settings so they can be
	// logged once a logger exists.
	Warnings []string `yaml:"-"`
}

// Load reads the optional YAML file at path, applies environment overrides,
// fills defaults and validates the result.
func Load(path string) (*Config, error) {
	var cfg Config
	if err := readYAML(path, &cfg); err != nil {
		return nil, err
	}
	cfg.applyEnv()
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration error: %w", err)
	}
	return &cfg, nil
}

func (c *Config) applyEnv() {
	e := envReader{warnings: &c.Warnings}
	e.str("PORT", &c.Server.Port)
	e.str("STORE", &c.Database.Driver)
	e.str("MONGOURI", &c.Database.URI)
	e.str("MONGO_DATABASE", &c.Database.Name)
	e.str("LOG_LEVEL", &c.Log.Level)
	e.str("LOG_FORMAT", &c.Log.Format)
	e.str("JWT_SECRET", &c.Auth.JWTSecret)
	e.duration("TOKEN_TTL", &c.Auth.TokenTTL)
	e.duration("PENDING_DONATION_TTL", &c.Donations.PendingTTL)
	e.duration("SWEEP_INTERVAL", &c.Donations.SweepInterval)
	e.list("KAFKA_BROKERS", &c.Kafka.Brokers)
	e.str("KAFKA_TOPIC", &c.Kafka.Topic)
	e.duration("KAFKA_BATCH_TIMEOUT", &c.Kafka.BatchTimeout)
	e.str("COINFLOW_BASE_URL", &c.Coinflow.BaseURL)
	e.str("COINFLOW_API_KEY", &c.Coinflow.APIKey)
	e.str("COINFLOW_MERCHANT_ID", &c.Coinflow.MerchantID)
	e.str("COINFLOW_WEBHOOK_TOKEN", &c.Coinflow.WebhookToken)
	e.float("RATE_LIMIT_RPS", &c.RateLimit.RequestsPerSecond)
	e.integer("RATE_LIMIT_BURST", &c.RateLimit.Burst)
}

// SetDefaults sets reasonable default values for unset fields
func (c *Config) SetDefaults() {
	d := defaulter{warnings: &c.Warnings}
	d.str("server.port", &c.Server.Port, "8080")
	d.duration("server.read_timeout", &c.Server.ReadTimeout, 10*time.Second)
	d.duration("server.write_timeout", &c.Server.WriteTimeout, 10*time.Second)
	d.duration("server.idle_timeout", &c.Server.IdleTimeout, 60*time.Second)
	d.duration("server.shutdown_timeout", &c.Server.ShutdownTimeout, 15*time.Second)
	d.str("database.driver", &c.Database.Driver, "mongo")
	d.str("database.name", &c.Database.Name, "globalfunddb")
	d.duration("database.connect_timeout", &c.Database.ConnectTimeout, 10*time.Second)
	d.str("log.level", &c.Log.Level, "info")
	d.str("log.format", &c.Log.Format, "text")
	d.duration("auth.token_ttl", &c.Auth.TokenTTL, 24*time.Hour)
	d.duration("donations.pending_ttl", &c.Donations.PendingTTL, 24*time.Hour)
	d.duration("donations.sweep_interval", &c.Donations.SweepInterval, 10*time.Minute)
	d.str("kafka.topic", &c.Kafka.Topic, "donation-events")
	d.duration("kafka.write_timeout", &c.Kafka.WriteTimeout, 10*time.Second)
	d.duration("kafka.batch_timeout", &c.Kafka.BatchTimeout, 10*time.Millisecond)
	d.str("coinflow.base_url", &c.Coinflow.BaseURL, "https://api-sandbox.coinflow.cash")
	d.str("coinflow.blockchain", &c.Coinflow.Blockchain, "base")
	d.duration("coinflow.timeout", &c.Coinflow.Timeout, 10*time.Second)
	if c.RateLimit.RequestsPerSecond <= 0 {
		c.RateLimit.RequestsPerSecond = 5
		d.warn("rate_limit.requests_per_second", c.RateLimit.RequestsPerSecond)
	}
	if c.RateLimit.Burst <= 0 {
		c.RateLimit.Burst = 10
		d.warn("rate_limit.burst", c.RateLimit.Burst)
	}
}

func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "mongo":
		if c.Database.URI == "" {
			return errors.New("MONGOURI must be set when database.driver is mongo")
		}
	case "memory":
	default:
		return fmt.Errorf("unknown database.driver %q, must be mongo or memory", c.Database.Driver)
	}
	if c.Auth.JWTSecret == "" {
		return errors.New("JWT_SECRET must be set")
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		return fmt.Errorf("unknown log.format %q, must be text or json", c.Log.Format)
	}
	if c.Donations.PendingTTL <= 0 || c.Donations.SweepInterval <= 0 {
		return errors.New("donations.pending_ttl and donations.sweep_interval must be positive")
	}
	return nil
}

func readYAML(path string, out interface{}) error {
	if path == "" {
		return nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read config file '%s': %w", path, err)
	}
	if err := yaml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to parse YAML config file '%s': %w", path, err)
	}
	return nil
}

type envReader struct {
	warnings *[]string
}

func (e envReader) str(key string, dst *string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		*dst = v
	}
}

func (e envReader) list(key string, dst *[]string) {
	v := os.Getenv(key)
	if v == "" {
		return
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	*dst = out
}

func (e envReader) duration(key string, dst *time.Duration) {
	v := os.Getenv(key)
	if v == "" {
		return
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		*e.warnings = append(*e.warnings, fmt.Sprintf("ignoring %s=%q: %v", key, v, err))
		return
	}
	*dst = d
}

func (e envReader) integer(key string, dst *int) {
	v := os.Getenv(key)
	if v == "" {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		*e.warnings = append(*e.warnings, fmt.Sprintf("ignoring %s=%q: %v", key, v, err))
		return
	}
	*dst = n
}

func (e envReader) float(key string, dst *float64) {
	v := os.Getenv(key)
	if v == "" {
		return
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		*e.warnings = append(*e.warnings, fmt.Sprintf("ignoring %s=%q: %v", key, v, err))
		return
	}
	*dst = f
}

type defaulter struct {
	warnings *[]string
}

func (d defaulter) warn(name string, value interface{}) {
	*d.warnings = append(*d.warnings, fmt.Sprintf("%s not set, defaulting to %v", name, value))
}

func (d defaulter) str(name string, dst *string, def string) {
	if *dst == "" {
		*dst = def
		d.warn(name, def)
	}
}

func (d defaulter) duration(name string, dst *time.Duration, def time.Duration) {
	if *dst == 0 {
		*dst = def
		d.warn(name, def)
	}
}
