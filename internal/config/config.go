package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"golang.org/x/crypto/bcrypt"
)

type Config struct {
	Environment string          `mapstructure:"environment"`
	LogLevel    string          `mapstructure:"log_level"`
	Server      ServerConfig    `mapstructure:"server"`
	Database    DatabaseConfig  `mapstructure:"database"`
	Redis       RedisConfig     `mapstructure:"redis"`
	Cache       CacheConfig     `mapstructure:"cache"`
	Analysis    AnalysisConfig  `mapstructure:"analysis"`
	Security    SecurityConfig  `mapstructure:"security"`
	MQTT        MQTTConfig      `mapstructure:"mqtt"`
	Telemetry   TelemetryConfig `mapstructure:"telemetry"`
}

type ServerConfig struct {
	Port           int      `mapstructure:"port"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	UploadLimitMB  int      `mapstructure:"upload_limit_mb"`
}

type DatabaseConfig struct {
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	User            string `mapstructure:"user"`
	Password        string `mapstructure:"password"`
	DBName          string `mapstructure:"dbname"`
	SSLMode         string `mapstructure:"sslmode"`
	DatabaseURL     string `mapstructure:"database_url"`
	MaxConns        int    `mapstructure:"max_conns"`
	MinConns        int    `mapstructure:"min_conns"`
	ConnMaxLifetime string `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime string `mapstructure:"conn_max_idle_time"`
}

// DSN returns DatabaseURL when set, otherwise a keyword/value connection
// string built from the individual fields.
func (c DatabaseConfig) DSN() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
	)
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// Addr returns host:port.
func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// CacheConfig selects where precomputed plot and statistics payloads live.
type CacheConfig struct {
	Driver   string `mapstructure:"driver"`
	TTL      string `mapstructure:"ttl"`
	BoltPath string `mapstructure:"bolt_path"`
}

// TTLDuration parses TTL. An empty TTL means entries never expire.
func (c CacheConfig) TTLDuration() time.Duration {
	d, err := time.ParseDuration(c.TTL)
	if err != nil {
		return 0
	}
	return d
}

// AnalysisConfig tunes the engine. An empty Timezone reads each timestamp
// in its own offset.
type AnalysisConfig struct {
	StartHour       int     `mapstructure:"start_hour"`
	EndHour         int     `mapstructure:"end_hour"`
	DistToCheck     int     `mapstructure:"dist_to_check"`
	MinSlope        float64 `mapstructure:"min_slope"`
	Timezone        string  `mapstructure:"timezone"`
	SmoothingPeriod int     `mapstructure:"smoothing_period"`
	Workers         int     `mapstructure:"workers"`
}

type SecurityConfig struct {
	JWTSecret   string `mapstructure:"jwt_secret" json:"-" yaml:"-"`
	JWTExpiry   string `mapstructure:"jwt_expiry"`
	BcryptCost  int    `mapstructure:"bcrypt_cost"`
	RequireAuth bool   `mapstructure:"require_auth"`
	// AdminAPIKey guards the cache administration routes. Empty disables
	// them.
	AdminAPIKey string `mapstructure:"admin_api_key" json:"-" yaml:"-"`
}

// JWTExpiryDuration parses JWTExpiry, falling back to 24 hours.
func (c SecurityConfig) JWTExpiryDuration() time.Duration {
	d, err := time.ParseDuration(c.JWTExpiry)
	if err != nil || d <= 0 {
		return 24 * time.Hour
	}
	return d
}

type MQTTConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Broker   string `mapstructure:"broker"`
	Topic    string `mapstructure:"topic"`
	ClientID string `mapstructure:"client_id"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password" json:"-" yaml:"-"`
	QoS      byte   `mapstructure:"qos"`
}

type TelemetryConfig struct {
	Enabled        bool    `mapstructure:"enabled"`
	Exporter       string  `mapstructure:"exporter"`
	OTLPEndpoint   string  `mapstructure:"otlp_endpoint"`
	ServiceName    string  `mapstructure:"service_name"`
	ServiceVersion string  `mapstructure:"service_version"`
	SampleRatio    float64 `mapstructure:"sample_ratio"`
	LogsEnabled    bool    `mapstructure:"logs_enabled"`
}

func Load() (*Config, error) {
	return LoadFrom(viper.New())
}

// LoadFrom reads configuration into v. A .env file in the working directory
// is applied to the process environment first when present.
func LoadFrom(v *viper.Viper) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./configs")
	v.AddConfigPath(".")

	setDefaults(v)

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.BindEnv("security.jwt_secret", "JWT_SECRET"); err != nil {
		return nil, fmt.Errorf("failed to bind JWT_SECRET environment variable: %w", err)
	}
	if err := v.BindEnv("database.database_url", "DATABASE_URL"); err != nil {
		return nil, fmt.Errorf("failed to bind DATABASE_URL environment variable: %w", err)
	}
	if err := v.BindEnv("security.admin_api_key", "ADMIN_API_KEY"); err != nil {
		return nil, fmt.Errorf("failed to bind ADMIN_API_KEY environment variable: %w", err)
	}

	if err := v.ReadInConfig(); err != nil {
		// Config file not found, use defaults and environment variables
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	config.Environment = strings.ToLower(config.Environment)
	config.Cache.Driver = strings.ToLower(config.Cache.Driver)

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

// Validate checks cross-field constraints that defaults cannot express.
func (c *Config) Validate() error {
	if c.Environment != "development" && c.Security.JWTSecret == "" {
		return errors.New("JWT_SECRET environment variable is required in non-development environments")
	}

	if c.Security.JWTExpiry != "" {
		if _, err := time.ParseDuration(c.Security.JWTExpiry); err != nil {
			return fmt.Errorf("invalid JWT expiry duration: %w", err)
		}
	}

	if c.Security.BcryptCost < bcrypt.MinCost || c.Security.BcryptCost > bcrypt.MaxCost {
		return fmt.Errorf("bcrypt cost must be between %d and %d, got %d",
			bcrypt.MinCost, bcrypt.MaxCost, c.Security.BcryptCost)
	}

	switch c.Cache.Driver {
	case "redis", "bolt", "none":
	default:
		return fmt.Errorf("unknown cache driver %q", c.Cache.Driver)
	}
	if c.Cache.TTL != "" {
		if _, err := time.ParseDuration(c.Cache.TTL); err != nil {
			return fmt.Errorf("invalid cache ttl: %w", err)
		}
	}

	if c.Analysis.StartHour < 0 || c.Analysis.StartHour > 23 {
		return fmt.Errorf("analysis.start_hour must be between 0 and 23, got %d", c.Analysis.StartHour)
	}
	if c.Analysis.EndHour < 0 || c.Analysis.EndHour > 23 {
		return fmt.Errorf("analysis.end_hour must be between 0 and 23, got %d", c.Analysis.EndHour)
	}
	if c.Analysis.DistToCheck < 0 {
		return fmt.Errorf("analysis.dist_to_check must not be negative, got %d", c.Analysis.DistToCheck)
	}
	if _, err := time.LoadLocation(c.Analysis.Timezone); err != nil {
		return fmt.Errorf("invalid analysis timezone: %w", err)
	}

	if c.MQTT.Enabled && c.MQTT.Broker == "" {
		return errors.New("mqtt.broker is required when mqtt is enabled")
	}
	if c.MQTT.QoS > 2 {
		return fmt.Errorf("mqtt.qos must be 0, 1 or 2, got %d", c.MQTT.QoS)
	}

	switch c.Telemetry.Exporter {
	case "stdout", "otlp":
	default:
		return fmt.Errorf("unknown telemetry exporter %q", c.Telemetry.Exporter)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	// Environment
	v.SetDefault("environment", "development")
	v.SetDefault("log_level", "info")

	// Server
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"http://localhost:3000"})
	v.SetDefault("server.upload_limit_mb", 16)

	// Database
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "postgres")
	v.SetDefault("database.dbname", "prism")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.database_url", "")
	v.SetDefault("database.max_conns", 25)
	v.SetDefault("database.min_conns", 2)
	v.SetDefault("database.conn_max_lifetime", "300s")
	v.SetDefault("database.conn_max_idle_time", "60s")

	// Redis
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	// Cache
	v.SetDefault("cache.driver", "redis")
	v.SetDefault("cache.ttl", "")
	v.SetDefault("cache.bolt_path", "prism-cache.db")

	// Analysis
	v.SetDefault("analysis.start_hour", 20)
	v.SetDefault("analysis.end_hour", 6)
	v.SetDefault("analysis.dist_to_check", 5)
	v.SetDefault("analysis.min_slope", 1.0)
	v.SetDefault("analysis.timezone", "")
	v.SetDefault("analysis.smoothing_period", 0)
	v.SetDefault("analysis.workers", 4)

	// Security
	v.SetDefault("security.jwt_secret", "")
	v.SetDefault("security.jwt_expiry", "24h")
	v.SetDefault("security.bcrypt_cost", 12)
	v.SetDefault("security.require_auth", true)
	v.SetDefault("security.admin_api_key", "")

	// MQTT
	v.SetDefault("mqtt.enabled", false)
	v.SetDefault("mqtt.broker", "tcp://localhost:1883")
	v.SetDefault("mqtt.topic", "prism/readings")
	v.SetDefault("mqtt.client_id", "prism-dashboard")
	v.SetDefault("mqtt.qos", 1)

	// Telemetry
	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.exporter", "stdout")
	v.SetDefault("telemetry.otlp_endpoint", "http://localhost:4318")
	v.SetDefault("telemetry.service_name", "prism-dashboard")
	v.SetDefault("telemetry.service_version", "1.0.0")
	v.SetDefault("telemetry.sample_ratio", 1.0)
	v.SetDefault("telemetry.logs_enabled", false)
}
