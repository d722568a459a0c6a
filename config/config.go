package config

import (
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Storage drivers.
const (
	StoragePostgres = "postgres"
	StorageMemory   = "memory"
)

// Config holds all application configuration.
type Config struct {
	Server       ServerConfig        `mapstructure:"server"`
	Storage      StorageConfig       `mapstructure:"storage"`
	Database     DatabaseConfig      `mapstructure:"database"`
	Redis        RedisConfig         `mapstructure:"redis"`
	RabbitMQ     RabbitMQConfig      `mapstructure:"rabbitmq"`
	JWT          JWTConfig           `mapstructure:"jwt"`
	OTP          OTPConfig           `mapstructure:"otp"`
	Ledger       LedgerConfig        `mapstructure:"ledger"`
	Notification NotificationConfig  `mapstructure:"notification"`
	Idempotency  IdempotencyConfig   `mapstructure:"idempotency"`
	RateLimit    map[string]RateRule `mapstructure:"ratelimit"`
	Log          LogConfig           `mapstructure:"log"`
}

type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	Mode            string        `mapstructure:"mode"` // debug, release, test
	MaxBodyBytes    int64         `mapstructure:"max_body_bytes"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	// TrustedProxies lists IPs or CIDRs whose X-Forwarded-For is honoured.
	// Empty means client IPs always come from the socket.
	TrustedProxies []string `mapstructure:"trusted_proxies"`
}

type StorageConfig struct {
	Driver string `mapstructure:"driver"` // postgres, memory
}

type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"dbname"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	LockTimeout     time.Duration `mapstructure:"lock_timeout"`
}

// DSN returns the PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Prefix   string `mapstructure:"prefix"`
}

// Addr returns the Redis address string.
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// RabbitMQConfig configures notification publishing. An empty URL selects the log-only sender.
// BodyKey (64 hex chars) seals message bodies; SigningKey adds an HMAC header. Both are optional.
type RabbitMQConfig struct {
	URL        string `mapstructure:"url"`
	Exchange   string `mapstructure:"exchange"`
	RoutingKey string `mapstructure:"routing_key"`
	BodyKey    string `mapstructure:"body_key"`
	SigningKey string `mapstructure:"signing_key"`
}

type JWTConfig struct {
	Secret string        `mapstructure:"secret"`
	Expiry time.Duration `mapstructure:"expiry"`
	Issuer string        `mapstructure:"issuer"`
}

// OTPConfig holds the one canonical validity window for password-reset codes.
type OTPConfig struct {
	TTL time.Duration `mapstructure:"ttl"`
}

type LedgerConfig struct {
	AccountNumberMin      int64 `mapstructure:"account_number_min"`
	AccountNumberMax      int64 `mapstructure:"account_number_max"`
	MaxAllocationAttempts int   `mapstructure:"max_allocation_attempts"`
	HistoryLimit          int   `mapstructure:"history_limit"`
}

type NotificationConfig struct {
	QueueSize   int           `mapstructure:"queue_size"`
	Workers     int           `mapstructure:"workers"`
	MaxAttempts int           `mapstructure:"max_attempts"`
	Backoff     time.Duration `mapstructure:"backoff"`
	SendTimeout time.Duration `mapstructure:"send_timeout"`
}

// IdempotencyConfig controls Idempotency-Key replay on POST /transactions.
// It is active only when Redis is enabled.
type IdempotencyConfig struct {
	TTL        time.Duration `mapstructure:"ttl"`
	PendingTTL time.Duration `mapstructure:"pending_ttl"`
	Prefix     string        `mapstructure:"prefix"`
}

// RateRule is the quota for one rate-limit scope.
type RateRule struct {
	Limit  int64         `mapstructure:"limit"`
	Window time.Duration `mapstructure:"window"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Pretty bool   `mapstructure:"pretty"` // human-readable output (dev only)
}

var defaultRateRules = map[string]RateRule{
	"otp":           {Limit: 5, Window: time.Hour},
	"transaction":   {Limit: 20, Window: time.Minute},
	"password":      {Limit: 5, Window: time.Hour},
	"auth_login":    {Limit: 10, Window: time.Minute},
	"auth_register": {Limit: 5, Window: time.Hour},
	"account":       {Limit: 60, Window: time.Minute},
}

// Load reads configuration from file and environment variables.
// Environment variables override file values. Prefix: VBANK_, nested keys
// joined with underscores (VBANK_DATABASE_HOST, VBANK_OTP_TTL).
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.max_body_bytes", 1<<20)
	v.SetDefault("server.shutdown_timeout", "10s")
	v.SetDefault("server.trusted_proxies", []string{})
	v.SetDefault("storage.driver", StoragePostgres)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "postgres")
	v.SetDefault("database.dbname", "village_bank")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_conns", 20)
	v.SetDefault("database.min_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("database.lock_timeout", "5s")
	v.SetDefault("redis.enabled", true)
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.prefix", "vbank:ratelimit")
	v.SetDefault("rabbitmq.url", "")
	v.SetDefault("rabbitmq.exchange", "notifications")
	v.SetDefault("rabbitmq.routing_key", "notification.email")
	v.SetDefault("rabbitmq.body_key", "")
	v.SetDefault("rabbitmq.signing_key", "")
	v.SetDefault("jwt.secret", "")
	v.SetDefault("jwt.expiry", "24h")
	v.SetDefault("jwt.issuer", "village-bank")
	v.SetDefault("otp.ttl", "5m")
	v.SetDefault("ledger.account_number_min", 100000)
	v.SetDefault("ledger.account_number_max", 999999)
	v.SetDefault("ledger.max_allocation_attempts", 32)
	v.SetDefault("ledger.history_limit", 50)
	v.SetDefault("notification.queue_size", 256)
	v.SetDefault("notification.workers", 2)
	v.SetDefault("notification.max_attempts", 3)
	v.SetDefault("notification.backoff", "2s")
	v.SetDefault("notification.send_timeout", "10s")
	v.SetDefault("idempotency.ttl", "24h")
	v.SetDefault("idempotency.pending_ttl", "30s")
	v.SetDefault("idempotency.prefix", "vbank:idempotency")
	for scope, rule := range defaultRateRules {
		v.SetDefault("ratelimit."+scope+".limit", rule.Limit)
		v.SetDefault("ratelimit."+scope+".window", rule.Window.String())
	}
	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	v.SetEnvPrefix("VBANK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects configurations the services cannot run with.
func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case StoragePostgres, StorageMemory:
	default:
		return fmt.Errorf("storage.driver must be %q or %q, got %q", StoragePostgres, StorageMemory, c.Storage.Driver)
	}
	for _, p := range c.Server.TrustedProxies {
		if net.ParseIP(p) == nil {
			if _, _, err := net.ParseCIDR(p); err != nil {
				return fmt.Errorf("server.trusted_proxies: %q is not an IP or CIDR", p)
			}
		}
	}
	if c.Ledger.AccountNumberMin <= 0 || c.Ledger.AccountNumberMax < c.Ledger.AccountNumberMin {
		return fmt.Errorf("invalid account number range [%d, %d]", c.Ledger.AccountNumberMin, c.Ledger.AccountNumberMax)
	}
	if c.Ledger.MaxAllocationAttempts <= 0 {
		return errors.New("ledger.max_allocation_attempts must be positive")
	}
	if c.OTP.TTL <= 0 {
		return errors.New("otp.ttl must be positive")
	}
	if c.RabbitMQ.BodyKey != "" && len(c.RabbitMQ.BodyKey) != 64 {
		return errors.New("rabbitmq.body_key must be 64 hex characters")
	}
	if c.Idempotency.TTL < c.Idempotency.PendingTTL {
		return errors.New("idempotency.ttl must not be shorter than idempotency.pending_ttl")
	}
	if c.Notification.QueueSize <= 0 || c.Notification.Workers <= 0 {
		return errors.New("notification.queue_size and notification.workers must be positive")
	}
	return nil
}
