package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Store   StoreConfig   `mapstructure:"store"`
	Log     LogConfig     `mapstructure:"log"`
	Access  AccessConfig  `mapstructure:"access"`
	Devices DevicesConfig `mapstructure:"devices"`
	Audit   AuditConfig   `mapstructure:"audit"`
	Admin   AdminConfig   `mapstructure:"admin"`
	Email   EmailConfig   `mapstructure:"email"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host        string   `mapstructure:"host"`
	Port        int      `mapstructure:"port"`
	CORSOrigins []string `mapstructure:"cors_origins"`
	TLS         struct {
		Enabled  bool   `mapstructure:"enabled"`
		CertFile string `mapstructure:"cert_file"`
		KeyFile  string `mapstructure:"key_file"`
	} `mapstructure:"tls"`
}

// StoreConfig selects and configures the durable store backend
type StoreConfig struct {
	// Backend is one of "postgres", "redis", "memory"
	Backend  string         `mapstructure:"backend"`
	Postgres PostgresConfig `mapstructure:"postgres"`
	Redis    RedisConfig    `mapstructure:"redis"`
}

// PostgresConfig holds PostgreSQL configuration
type PostgresConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Name           string `mapstructure:"name"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	SSLMode        string `mapstructure:"ssl_mode"`
	MaxConnections int    `mapstructure:"max_connections"`
}

// DSN returns the PostgreSQL connection string
func (c PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// Addr returns the Redis address
func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// AccessConfig holds access-request and session configuration
type AccessConfig struct {
	// MaxCustomDurationMinutes bounds custom-duration requests; preset
	// durations only need to be positive.
	MaxCustomDurationMinutes int           `mapstructure:"max_custom_duration_minutes"`
	SessionCacheTTL          time.Duration `mapstructure:"session_cache_ttl"`
	SessionSweepInterval     time.Duration `mapstructure:"session_sweep_interval"`
}

// DevicesConfig holds device registry configuration
type DevicesConfig struct {
	HeartbeatInterval time.Duration `mapstructure:"heartbeat_interval"`
	RemovalThreshold  time.Duration `mapstructure:"removal_threshold"`
	SweepInterval     time.Duration `mapstructure:"sweep_interval"`
	// SelfReactivate controls whether a heartbeat from a removed device
	// restores it to active. When false the heartbeat only advances
	// lastSeen and the device stays removed.
	SelfReactivate bool `mapstructure:"self_reactivate"`
}

// AuditConfig holds audit log batching and retention configuration
type AuditConfig struct {
	BatchSize     int           `mapstructure:"batch_size"`
	FlushInterval time.Duration `mapstructure:"flush_interval"`
	RetentionCap  int           `mapstructure:"retention_cap"`
}

// AdminConfig holds administrator authentication configuration
type AdminConfig struct {
	Username string `mapstructure:"username"`
	// PasswordHash is an argon2id encoded hash. Password is a plaintext
	// fallback hashed at boot, intended for development only.
	PasswordHash string        `mapstructure:"password_hash"`
	Password     string        `mapstructure:"password"`
	TokenSecret  string        `mapstructure:"token_secret"`
	TokenTTL     time.Duration `mapstructure:"token_ttl"`
	TokenIssuer  string        `mapstructure:"token_issuer"`
	// TOTPSecret enables a second factor for login when set. Generate one
	// with the /admin/totp/setup endpoint and confirm the first code.
	TOTPSecret string `mapstructure:"totp_secret"`

	RateLimiting RateLimitingConfig `mapstructure:"rate_limiting"`
}

// RateLimitingConfig holds rate limiting configuration
type RateLimitingConfig struct {
	Enabled       bool   `mapstructure:"enabled"`
	DefaultLimit  int    `mapstructure:"default_limit"`
	DefaultWindow string `mapstructure:"default_window"`
}

// EmailConfig holds outbound notification email configuration
type EmailConfig struct {
	// Enabled turns notification emails on. The Gmail sender must be
	// configured when set.
	Enabled bool `mapstructure:"enabled"`
	// AppName is the application name shown in emails
	AppName string `mapstructure:"app_name"`
	// NotifyAddress receives new-request notifications, typically the
	// approver's mailbox.
	NotifyAddress string `mapstructure:"notify_address"`

	Gmail GmailEmailConfig `mapstructure:"gmail"`
}

// GmailEmailConfig configures the Gmail API sender. CredentialsJSON
// selects the service-account path with domain-wide delegation; the
// client id, secret, and refresh token triple selects the personal
// mailbox path. One of the two must be set when email is enabled.
type GmailEmailConfig struct {
	CredentialsJSON string `mapstructure:"credentials_json"`
	ClientID        string `mapstructure:"client_id"`
	ClientSecret    string `mapstructure:"client_secret"`
	RefreshToken    string `mapstructure:"refresh_token"`
	// SenderAddress is the mailbox mail goes out as, SenderName the
	// display name next to it.
	SenderAddress string `mapstructure:"sender_address"`
	SenderName    string `mapstructure:"sender_name"`
}

// Load reads configuration from file and environment variables
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/gatepass")

	setDefaults(v)

	// A missing config file is fine, defaults plus GATEPASS_* env vars
	// carry a full configuration on their own
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("config: reading file: %w", err)
		}
	}

	v.SetEnvPrefix("GATEPASS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: decoding: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.cors_origins", []string{"http://localhost:3000", "http://localhost:5173"})

	v.SetDefault("store.backend", "postgres")
	v.SetDefault("store.postgres.host", "localhost")
	v.SetDefault("store.postgres.port", 5432)
	v.SetDefault("store.postgres.name", "gatepass")
	v.SetDefault("store.postgres.user", "gatepass")
	v.SetDefault("store.postgres.password", "")
	v.SetDefault("store.postgres.ssl_mode", "disable")
	v.SetDefault("store.postgres.max_connections", 25)
	v.SetDefault("store.redis.host", "localhost")
	v.SetDefault("store.redis.port", 6379)
	v.SetDefault("store.redis.password", "")
	v.SetDefault("store.redis.db", 0)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("access.max_custom_duration_minutes", 1440)
	v.SetDefault("access.session_cache_ttl", "5s")
	v.SetDefault("access.session_sweep_interval", "1m")

	v.SetDefault("devices.heartbeat_interval", "5m")
	v.SetDefault("devices.removal_threshold", "1h")
	v.SetDefault("devices.sweep_interval", "5m")
	v.SetDefault("devices.self_reactivate", true)

	v.SetDefault("audit.batch_size", 50)
	v.SetDefault("audit.flush_interval", "2s")
	v.SetDefault("audit.retention_cap", 10000)

	v.SetDefault("admin.username", "admin")
	v.SetDefault("admin.password_hash", "")
	v.SetDefault("admin.password", "")
	v.SetDefault("admin.token_secret", "")
	v.SetDefault("admin.token_ttl", "1h")
	v.SetDefault("admin.token_issuer", "gatepass")
	v.SetDefault("admin.totp_secret", "")
	v.SetDefault("admin.rate_limiting.enabled", true)
	v.SetDefault("admin.rate_limiting.default_limit", 100)
	v.SetDefault("admin.rate_limiting.default_window", "1m")

	v.SetDefault("email.enabled", false)
	v.SetDefault("email.app_name", "Gatepass")
	v.SetDefault("email.notify_address", "")
	v.SetDefault("email.gmail.sender_name", "Gatepass")
}
