package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	App         AppConfig
	Database    DatabaseConfig
	Redis       RedisConfig
	Marketplace MarketplaceConfig
	Token       TokenConfig
	Sync        SyncConfig
	Webhook     WebhookConfig
	Log         LogConfig
	HTTP        HTTPConfig
	Telemetry   TelemetryConfig
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, console
	Output string // stdout, stderr, or file path
}

// AppConfig holds application-specific settings
type AppConfig struct {
	Name string
	Env  string
	Port string
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	DBName          string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime int // in minutes
	ConnMaxIdleTime int // in minutes
}

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// MarketplaceConfig holds the platform API credentials and endpoints
type MarketplaceConfig struct {
	APIBaseURL     string
	TokenURL       string
	ClientID       string
	ClientSecret   string
	RedirectURI    string
	TimeoutSeconds int
}

// TokenConfig holds token lifecycle settings
type TokenConfig struct {
	// EncryptionKey is a 64-char hex string (32 bytes) for token encryption
	// at rest.
	EncryptionKey string
	SafetyWindow  time.Duration
}

// SyncConfig holds catalog sync pipeline tunables
type SyncConfig struct {
	PageSize  int
	BatchSize int
	MaxItems  int
	Workers   int
}

// WebhookConfig holds webhook ingestion settings
type WebhookConfig struct {
	// DedupTTL bounds the Redis fast-path duplicate window.
	DedupTTL time.Duration
	// VerifyToken is echoed back on the platform's GET subscription check.
	VerifyToken string
}

// HTTPConfig holds HTTP server configuration
type HTTPConfig struct {
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	MaxHeaderBytes int
	MaxBodySize    int64
	TrustedProxies []string
}

// TelemetryConfig holds OpenTelemetry configuration
type TelemetryConfig struct {
	Enabled           bool
	CollectorEndpoint string // OTEL Collector endpoint (e.g., "localhost:4317")
	ServiceName       string
	Insecure          bool // Use insecure (non-TLS) connection (development only)
}

// Load loads configuration from TOML file and environment variables
// Priority (highest to lowest):
// 1. Environment variables with SELLERBRIDGE_ prefix (e.g., SELLERBRIDGE_DATABASE_PASSWORD)
// 2. config.toml
// 3. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	v.AddConfigPath("/app")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found is OK, we'll use defaults and env vars
	}

	v.SetEnvPrefix("SELLERBRIDGE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{
		App: AppConfig{
			Name: v.GetString("app.name"),
			Env:  v.GetString("app.env"),
			Port: v.GetString("app.port"),
		},
		Database: DatabaseConfig{
			Host:            v.GetString("database.host"),
			Port:            v.GetInt("database.port"),
			User:            v.GetString("database.user"),
			Password:        v.GetString("database.password"),
			DBName:          v.GetString("database.dbname"),
			SSLMode:         v.GetString("database.sslmode"),
			MaxOpenConns:    v.GetInt("database.max_open_conns"),
			MaxIdleConns:    v.GetInt("database.max_idle_conns"),
			ConnMaxLifetime: v.GetInt("database.conn_max_lifetime"),
			ConnMaxIdleTime: v.GetInt("database.conn_max_idle_time"),
		},
		Redis: RedisConfig{
			Host:     v.GetString("redis.host"),
			Port:     v.GetInt("redis.port"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		Marketplace: MarketplaceConfig{
			APIBaseURL:     v.GetString("marketplace.api_base_url"),
			TokenURL:       v.GetString("marketplace.token_url"),
			ClientID:       v.GetString("marketplace.client_id"),
			ClientSecret:   v.GetString("marketplace.client_secret"),
			RedirectURI:    v.GetString("marketplace.redirect_uri"),
			TimeoutSeconds: v.GetInt("marketplace.timeout_seconds"),
		},
		Token: TokenConfig{
			EncryptionKey: v.GetString("token.encryption_key"),
			SafetyWindow:  v.GetDuration("token.safety_window"),
		},
		Sync: SyncConfig{
			PageSize:  v.GetInt("sync.page_size"),
			BatchSize: v.GetInt("sync.batch_size"),
			MaxItems:  v.GetInt("sync.max_items"),
			Workers:   v.GetInt("sync.workers"),
		},
		Webhook: WebhookConfig{
			DedupTTL:    v.GetDuration("webhook.dedup_ttl"),
			VerifyToken: v.GetString("webhook.verify_token"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
		HTTP: HTTPConfig{
			ReadTimeout:    v.GetDuration("http.read_timeout"),
			WriteTimeout:   v.GetDuration("http.write_timeout"),
			IdleTimeout:    v.GetDuration("http.idle_timeout"),
			MaxHeaderBytes: v.GetInt("http.max_header_bytes"),
			MaxBodySize:    v.GetInt64("http.max_body_size"),
			TrustedProxies: v.GetStringSlice("http.trusted_proxies"),
		},
		Telemetry: TelemetryConfig{
			Enabled:           v.GetBool("telemetry.enabled"),
			CollectorEndpoint: v.GetString("telemetry.collector_endpoint"),
			ServiceName:       v.GetString("telemetry.service_name"),
			Insecure:          v.GetBool("telemetry.insecure"),
		},
	}

	applyDefaults(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// applyDefaults sets default values for any empty config fields
func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "sellerbridge-backend"
	}
	if cfg.App.Env == "" {
		cfg.App.Env = "development"
	}
	if cfg.App.Port == "" {
		cfg.App.Port = "8080"
	}
	if cfg.Database.Host == "" {
		cfg.Database.Host = "localhost"
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.Database.User == "" {
		cfg.Database.User = "postgres"
	}
	if cfg.Database.DBName == "" {
		cfg.Database.DBName = "sellerbridge"
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 25
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 5
	}
	if cfg.Database.ConnMaxLifetime == 0 {
		cfg.Database.ConnMaxLifetime = 60
	}
	if cfg.Database.ConnMaxIdleTime == 0 {
		cfg.Database.ConnMaxIdleTime = 30
	}
	if cfg.Redis.Host == "" {
		cfg.Redis.Host = "localhost"
	}
	if cfg.Redis.Port == 0 {
		cfg.Redis.Port = 6379
	}
	if cfg.Marketplace.APIBaseURL == "" {
		cfg.Marketplace.APIBaseURL = "https://api.mercadolibre.com"
	}
	if cfg.Marketplace.TokenURL == "" {
		cfg.Marketplace.TokenURL = "https://api.mercadolibre.com/oauth/token"
	}
	if cfg.Marketplace.TimeoutSeconds == 0 {
		cfg.Marketplace.TimeoutSeconds = 30
	}
	if cfg.Token.SafetyWindow == 0 {
		cfg.Token.SafetyWindow = 5 * time.Minute
	}
	if cfg.Sync.PageSize == 0 {
		cfg.Sync.PageSize = 50
	}
	if cfg.Sync.BatchSize == 0 {
		cfg.Sync.BatchSize = 20
	}
	if cfg.Sync.MaxItems == 0 {
		cfg.Sync.MaxItems = 10000
	}
	if cfg.Sync.Workers == 0 {
		cfg.Sync.Workers = 4
	}
	if cfg.Webhook.DedupTTL == 0 {
		cfg.Webhook.DedupTTL = 24 * time.Hour
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "console"
	}
	if cfg.Log.Output == "" {
		cfg.Log.Output = "stdout"
	}
	if cfg.HTTP.ReadTimeout == 0 {
		cfg.HTTP.ReadTimeout = 15 * time.Second
	}
	if cfg.HTTP.WriteTimeout == 0 {
		cfg.HTTP.WriteTimeout = 15 * time.Second
	}
	if cfg.HTTP.IdleTimeout == 0 {
		cfg.HTTP.IdleTimeout = 60 * time.Second
	}
	if cfg.HTTP.MaxHeaderBytes == 0 {
		cfg.HTTP.MaxHeaderBytes = 1 << 20 // 1MB
	}
	if cfg.HTTP.MaxBodySize == 0 {
		cfg.HTTP.MaxBodySize = 1 << 20 // webhooks and dashboard calls are small
	}
	if cfg.Telemetry.CollectorEndpoint == "" {
		cfg.Telemetry.CollectorEndpoint = "localhost:4317"
	}
	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = "sellerbridge-backend"
	}
}

// validate performs validation on the configuration
func (c *Config) validate() error {
	if c.Database.MaxOpenConns <= 0 {
		return fmt.Errorf("database.max_open_conns must be positive")
	}
	if c.Database.MaxIdleConns < 0 {
		return fmt.Errorf("database.max_idle_conns cannot be negative")
	}
	if c.Database.MaxIdleConns > c.Database.MaxOpenConns {
		return fmt.Errorf("database.max_idle_conns (%d) cannot exceed database.max_open_conns (%d)",
			c.Database.MaxIdleConns, c.Database.MaxOpenConns)
	}

	if c.Token.EncryptionKey != "" && len(c.Token.EncryptionKey) != 64 {
		return fmt.Errorf("token.encryption_key must be 64 hex characters (32 bytes)")
	}

	if c.App.Env == "production" {
		if c.Token.EncryptionKey == "" {
			return fmt.Errorf("token.encryption_key is required in production")
		}
		if c.Marketplace.ClientID == "" || c.Marketplace.ClientSecret == "" {
			return fmt.Errorf("marketplace.client_id and marketplace.client_secret are required in production")
		}
		if c.Database.Password == "" {
			return fmt.Errorf("database.password is required in production")
		}
		if c.Database.SSLMode == "disable" {
			return fmt.Errorf("database.sslmode cannot be 'disable' in production")
		}
	}

	return nil
}

// DSN returns the database connection string with properly escaped values
func (d *DatabaseConfig) DSN() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(d.User, d.Password),
		Host:   fmt.Sprintf("%s:%d", d.Host, d.Port),
		Path:   d.DBName,
	}
	q := u.Query()
	q.Set("sslmode", d.SSLMode)
	u.RawQuery = q.Encode()
	return u.String()
}

// Addr returns the Redis address in host:port form
func (r *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}
