package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := LoadFrom(viper.New())
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "prism", cfg.Database.DBName)
	assert.Equal(t, "redis", cfg.Cache.Driver)
	assert.Equal(t, 20, cfg.Analysis.StartHour)
	assert.Equal(t, 6, cfg.Analysis.EndHour)
	assert.Equal(t, 5, cfg.Analysis.DistToCheck)
	assert.Equal(t, 1.0, cfg.Analysis.MinSlope)
	assert.Empty(t, cfg.Analysis.Timezone)
	assert.Equal(t, 12, cfg.Security.BcryptCost)
	assert.True(t, cfg.Security.RequireAuth)
	assert.False(t, cfg.MQTT.Enabled)
	assert.Equal(t, byte(1), cfg.MQTT.QoS)
	assert.Equal(t, "stdout", cfg.Telemetry.Exporter)
	assert.False(t, cfg.Telemetry.LogsEnabled)
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	t.Setenv("ENVIRONMENT", "PRODUCTION")
	t.Setenv("JWT_SECRET", "super-secret")
	t.Setenv("ANALYSIS_MIN_SLOPE", "2.5")
	t.Setenv("CACHE_DRIVER", "BOLT")
	t.Setenv("DATABASE_URL", "postgres://u:p@db:5432/prism")
	t.Setenv("ADMIN_API_KEY", "admin-key")

	cfg, err := LoadFrom(viper.New())
	require.NoError(t, err)

	assert.Equal(t, "production", cfg.Environment)
	assert.Equal(t, "super-secret", cfg.Security.JWTSecret)
	assert.Equal(t, 2.5, cfg.Analysis.MinSlope)
	assert.Equal(t, "bolt", cfg.Cache.Driver)
	assert.Equal(t, "postgres://u:p@db:5432/prism", cfg.Database.DSN())
	assert.Equal(t, "admin-key", cfg.Security.AdminAPIKey)
}

func TestLoad_RequiresSecretOutsideDevelopment(t *testing.T) {
	t.Setenv("ENVIRONMENT", "staging")
	t.Setenv("JWT_SECRET", "")

	_, err := LoadFrom(viper.New())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "JWT_SECRET")
}

func TestConfig_Validate(t *testing.T) {
	base := func() *Config {
		cfg, err := LoadFrom(viper.New())
		require.NoError(t, err)
		return cfg
	}

	tests := []struct {
		name    string
		modify  func(c *Config)
		wantErr string
	}{
		{name: "valid", modify: func(c *Config) {}},
		{name: "bcrypt cost too low", modify: func(c *Config) { c.Security.BcryptCost = 1 }, wantErr: "bcrypt cost"},
		{name: "bad jwt expiry", modify: func(c *Config) { c.Security.JWTExpiry = "forever" }, wantErr: "JWT expiry"},
		{name: "unknown cache driver", modify: func(c *Config) { c.Cache.Driver = "memcached" }, wantErr: "cache driver"},
		{name: "bad cache ttl", modify: func(c *Config) { c.Cache.TTL = "soon" }, wantErr: "cache ttl"},
		{name: "start hour out of range", modify: func(c *Config) { c.Analysis.StartHour = 24 }, wantErr: "start_hour"},
		{name: "end hour out of range", modify: func(c *Config) { c.Analysis.EndHour = -1 }, wantErr: "end_hour"},
		{name: "negative distance", modify: func(c *Config) { c.Analysis.DistToCheck = -1 }, wantErr: "dist_to_check"},
		{name: "unknown timezone", modify: func(c *Config) { c.Analysis.Timezone = "Mars/Olympus" }, wantErr: "timezone"},
		{name: "mqtt without broker", modify: func(c *Config) { c.MQTT.Enabled = true; c.MQTT.Broker = "" }, wantErr: "mqtt.broker"},
		{name: "mqtt qos", modify: func(c *Config) { c.MQTT.QoS = 3 }, wantErr: "mqtt.qos"},
		{name: "unknown exporter", modify: func(c *Config) { c.Telemetry.Exporter = "jaeger" }, wantErr: "exporter"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := base()
			tc.modify(cfg)
			err := cfg.Validate()
			if tc.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

func TestDatabaseConfig_DSN(t *testing.T) {
	cfg := DatabaseConfig{Host: "db", Port: 5433, User: "u", Password: "p", DBName: "prism", SSLMode: "require"}
	assert.Equal(t, "host=db port=5433 user=u password=p dbname=prism sslmode=require", cfg.DSN())
}

func TestDurations(t *testing.T) {
	assert.Equal(t, 2*time.Hour, SecurityConfig{JWTExpiry: "2h"}.JWTExpiryDuration())
	assert.Equal(t, 24*time.Hour, SecurityConfig{}.JWTExpiryDuration())
	assert.Equal(t, 10*time.Minute, CacheConfig{TTL: "10m"}.TTLDuration())
	assert.Equal(t, time.Duration(0), CacheConfig{}.TTLDuration())
	assert.Equal(t, "cache:6380", RedisConfig{Host: "cache", Port: 6380}.Addr())
}
