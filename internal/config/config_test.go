package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConfig_Defaults(t *testing.T) {
	cfg := NewConfig()

	assert.Equal(t, int32(8080), cfg.HTTP.Port)
	assert.Equal(t, DriverSQLite, cfg.Database.Driver)
	assert.Equal(t, DefaultDatabasePath, cfg.Database.Path)
	assert.True(t, cfg.Database.Transactional)
	assert.Equal(t, DefaultCourseImageURL, cfg.Catalog.DefaultImageURL)
	assert.Equal(t, 4, cfg.Catalog.FeaturedLimit)
	assert.Equal(t, 24*time.Hour, cfg.Auth.SessionLifetime)
	assert.Equal(t, 5, cfg.Auth.MaxLoginAttempts)
	assert.NoError(t, cfg.Validate())
}

func TestNewConfig_Environment(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("DATABASE_DRIVER", "Postgres")
	t.Setenv("DATABASE_DSN", "host=localhost user=market dbname=market")
	t.Setenv("DATABASE_TRANSACTIONAL", "false")
	t.Setenv("CATALOG_FEATURED_LIMIT", "8")

	cfg := NewConfig()

	assert.Equal(t, int32(9090), cfg.HTTP.Port)
	assert.Equal(t, DriverPostgres, cfg.Database.Driver)
	assert.False(t, cfg.Database.Transactional)
	assert.Equal(t, 8, cfg.Catalog.FeaturedLimit)
	require.NoError(t, cfg.Validate())
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{
			name:    "unknown driver",
			mutate:  func(c *Config) { c.Database.Driver = "oracle" },
			wantErr: "unsupported DATABASE_DRIVER",
		},
		{
			name: "postgres without dsn",
			mutate: func(c *Config) {
				c.Database.Driver = DriverPostgres
				c.Database.DSN = ""
			},
			wantErr: "DATABASE_DSN is required",
		},
		{
			name:    "mysql without dsn",
			mutate:  func(c *Config) { c.Database.Driver = DriverMySQL },
			wantErr: "DATABASE_DSN is required for the mysql driver",
		},
		{
			name:    "sqlite without path",
			mutate:  func(c *Config) { c.Database.Path = " " },
			wantErr: "DATABASE_PATH is required",
		},
		{
			name:    "zero port",
			mutate:  func(c *Config) { c.HTTP.Port = 0 },
			wantErr: "PORT must be positive",
		},
		{
			name:    "bcrypt cost out of range",
			mutate:  func(c *Config) { c.Auth.BcryptCost = 2 },
			wantErr: "AUTH_BCRYPT_COST",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
