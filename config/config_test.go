package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "memory", cfg.Storage.Driver)
	assert.EqualValues(t, 5<<20, cfg.Upload.MaxBytes)
	assert.Equal(t, 24*time.Hour, cfg.Stories.TTL)
	assert.True(t, cfg.UsesDefaultSecret())
	assert.False(t, cfg.Storage.Seed, "demo data must be opt-in")
	assert.Empty(t, cfg.HTTP.TrustedProxies)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "unknown driver",
			mutate:  func(c *Config) { c.Storage.Driver = "oracle" },
			wantErr: "storage.driver",
		},
		{
			name:    "sql driver without dsn",
			mutate:  func(c *Config) { c.Storage.Driver = "postgres" },
			wantErr: "storage.dsn",
		},
		{
			name: "sqlite with dsn",
			mutate: func(c *Config) {
				c.Storage.Driver = "sqlite"
				c.Storage.DSN = "socialhub.db"
				c.Auth.JWTSecret = "a-real-secret"
			},
		},
		{
			name: "persistent backend with default secret",
			mutate: func(c *Config) {
				c.Storage.Driver = "postgres"
				c.Storage.DSN = "postgres://localhost/socialhub"
			},
			wantErr: "jwt_secret",
		},
		{
			name:    "empty secret",
			mutate:  func(c *Config) { c.Auth.JWTSecret = "" },
			wantErr: "jwt_secret",
		},
		{
			name:    "zero upload limit",
			mutate:  func(c *Config) { c.Upload.MaxBytes = 0 },
			wantErr: "max_bytes",
		},
		{
			name:    "minio without bucket",
			mutate:  func(c *Config) { c.MinIO.Endpoint = "localhost:9000"; c.MinIO.Bucket = "" },
			wantErr: "minio.bucket",
		},
		{
			name:    "bad trusted proxy",
			mutate:  func(c *Config) { c.HTTP.TrustedProxies = []string{"10.0.0.0/8", "not-an-ip"} },
			wantErr: "trusted_proxies",
		},
		{
			name:   "trusted proxy ip and cidr",
			mutate: func(c *Config) { c.HTTP.TrustedProxies = []string{"10.0.0.1", "172.16.0.0/12"} },
		},
		{
			name:    "negative rate limit",
			mutate:  func(c *Config) { c.HTTP.RateLimitRPS = -1 },
			wantErr: "rate limits",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadFromFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "socialhub.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
http:
  addr: ":8080"
storage:
  driver: sqlite
  dsn: data.db
stories:
  ttl: 12h
`), 0o644))

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.HTTP.Addr)
	assert.Equal(t, "sqlite", cfg.Storage.Driver)
	assert.Equal(t, 12*time.Hour, cfg.Stories.TTL)
	assert.Equal(t, time.Minute, cfg.Stories.SweepInterval)
	assert.Equal(t, "/uploads", cfg.Upload.PublicURL)
}

func TestLoadFromFileErrors(t *testing.T) {
	_, err := LoadFromFile(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("http: [unclosed"), 0o644))
	_, err = LoadFromFile(bad)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse")
}

func TestApplyEnvOverridesOnlySetVariables(t *testing.T) {
	t.Setenv("STORAGE_DRIVER", "postgres")
	t.Setenv("DATABASE_DSN", "postgres://localhost/socialhub")
	t.Setenv("STORY_TTL", "6h")
	t.Setenv("RATE_LIMIT_RPS", "2.5")

	cfg := DefaultConfig()
	require.NoError(t, cfg.ApplyEnv())
	assert.Equal(t, "postgres", cfg.Storage.Driver)
	assert.Equal(t, "postgres://localhost/socialhub", cfg.Storage.DSN)
	assert.Equal(t, 6*time.Hour, cfg.Stories.TTL)
	assert.InDelta(t, 2.5, cfg.HTTP.RateLimitRPS, 0.0001)
	assert.Equal(t, ":5000", cfg.HTTP.Addr)
}

func TestSlogLevel(t *testing.T) {
	cfg := DefaultConfig()
	for level, want := range map[string]slog.Level{
		"debug": slog.LevelDebug,
		"WARN":  slog.LevelWarn,
		"error": slog.LevelError,
		"":      slog.LevelInfo,
	} {
		cfg.Log.Level = level
		assert.Equal(t, want, cfg.SlogLevel(), level)
	}
}
