// Package config loads socialhub settings: defaults, then an optional YAML
// file, then environment variables (a .env file is honoured).
package config

import (
	"fmt"
	"log/slog"
	"net"
	"os"
	"strings"
	"time"

	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

type Config struct {
	HTTP     HTTPConfig     `yaml:"http"`
	Storage  StorageConfig  `yaml:"storage"`
	Auth     AuthConfig     `yaml:"auth"`
	Upload   UploadConfig   `yaml:"upload"`
	MinIO    MinIOConfig    `yaml:"minio"`
	Redis    RedisConfig    `yaml:"redis"`
	Spotify  SpotifyConfig  `yaml:"spotify"`
	Stories  StoriesConfig  `yaml:"stories"`
	Presence PresenceConfig `yaml:"presence"`
	Log      LogConfig      `yaml:"log"`
}

type HTTPConfig struct {
	Addr string `yaml:"addr" env:"HTTP_ADDR"`
	// CORSOrigins lists allowed browser origins; "*" allows any.
	CORSOrigins    []string `yaml:"cors_origins" env:"CORS_ORIGINS"`
	RateLimitRPS   float64  `yaml:"rate_limit_rps" env:"RATE_LIMIT_RPS"`
	RateLimitBurst int      `yaml:"rate_limit_burst" env:"RATE_LIMIT_BURST"`
	// TrustedProxies lists the IPs or CIDRs whose X-Forwarded-For is
	// believed. Empty means the client IP is always the socket peer.
	TrustedProxies []string `yaml:"trusted_proxies" env:"TRUSTED_PROXIES"`
}

type StorageConfig struct {
	// Driver is one of memory, sqlite, postgres, mysql.
	Driver string `yaml:"driver" env:"STORAGE_DRIVER"`
	DSN    string `yaml:"dsn" env:"DATABASE_DSN"`
	Seed   bool   `yaml:"seed" env:"SEED_DEMO_DATA"`
	// SeedAdminPassword is the seeded admin's password. When empty a random
	// one is generated and logged once.
	SeedAdminPassword string `yaml:"seed_admin_password" env:"SEED_ADMIN_PASSWORD"`
}

type AuthConfig struct {
	JWTSecret string        `yaml:"jwt_secret" env:"JWT_SECRET"`
	TokenTTL  time.Duration `yaml:"token_ttl" env:"TOKEN_TTL"`
}

type UploadConfig struct {
	Dir       string `yaml:"dir" env:"UPLOAD_DIR"`
	PublicURL string `yaml:"public_url" env:"UPLOAD_PUBLIC_URL"`
	MaxBytes  int64  `yaml:"max_bytes" env:"UPLOAD_MAX_BYTES"`
}

// MinIOConfig switches uploads to object storage when Endpoint is set.
type MinIOConfig struct {
	Endpoint  string `yaml:"endpoint" env:"MINIO_ENDPOINT"`
	AccessKey string `yaml:"access_key" env:"MINIO_ACCESS_KEY"`
	SecretKey string `yaml:"secret_key" env:"MINIO_SECRET_KEY"`
	Bucket    string `yaml:"bucket" env:"MINIO_BUCKET"`
	UseSSL    bool   `yaml:"use_ssl" env:"MINIO_USE_SSL"`
	PublicURL string `yaml:"public_url" env:"MINIO_PUBLIC_URL"`
}

// RedisConfig backs the Spotify token cache and presence when Addr is set.
type RedisConfig struct {
	Addr     string `yaml:"addr" env:"REDIS_ADDR"`
	Password string `yaml:"password" env:"REDIS_PASSWORD"`
	DB       int    `yaml:"db" env:"REDIS_DB"`
}

type SpotifyConfig struct {
	ClientID     string        `yaml:"client_id" env:"SPOTIFY_CLIENT_ID"`
	ClientSecret string        `yaml:"client_secret" env:"SPOTIFY_CLIENT_SECRET"`
	Timeout      time.Duration `yaml:"timeout" env:"SPOTIFY_TIMEOUT"`
}

type StoriesConfig struct {
	TTL           time.Duration `yaml:"ttl" env:"STORY_TTL"`
	SweepInterval time.Duration `yaml:"sweep_interval" env:"SWEEP_INTERVAL"`
}

type PresenceConfig struct {
	TTL time.Duration `yaml:"ttl" env:"PRESENCE_TTL"`
}

type LogConfig struct {
	Level string `yaml:"level" env:"LOG_LEVEL"`
}

const defaultJWTSecret = "change-me-in-production"

func DefaultConfig() *Config {
	return &Config{
		HTTP: HTTPConfig{
			Addr:           ":5000",
			CORSOrigins:    []string{"*"},
			RateLimitRPS:   20,
			RateLimitBurst: 40,
		},
		Storage: StorageConfig{
			Driver: "memory",
		},
		Auth: AuthConfig{
			JWTSecret: defaultJWTSecret,
			TokenTTL:  24 * time.Hour,
		},
		Upload: UploadConfig{
			Dir:       "uploads",
			PublicURL: "/uploads",
			MaxBytes:  5 << 20,
		},
		MinIO: MinIOConfig{
			Bucket: "socialhub",
		},
		Spotify: SpotifyConfig{
			Timeout: 5 * time.Second,
		},
		Stories: StoriesConfig{
			TTL:           24 * time.Hour,
			SweepInterval: time.Minute,
		},
		Presence: PresenceConfig{
			TTL: 2 * time.Minute,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load builds the effective configuration. path may be empty.
func Load(path string) (*Config, error) {
	// A missing .env is normal outside development.
	_ = godotenv.Load()

	cfg := DefaultConfig()
	if path != "" {
		fromFile, err := LoadFromFile(path)
		if err != nil {
			return nil, err
		}
		cfg = fromFile
	}
	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	return cfg, cfg.Validate()
}

// LoadFromFile reads a YAML file over the defaults.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	return cfg, nil
}

// ApplyEnv overrides fields whose environment variable is set. Unset
// variables leave the current value alone.
func (c *Config) ApplyEnv() error {
	err := envdecode.Decode(c)
	if err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return errors.Wrap(err, "decode environment")
	}
	return nil
}

func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case "memory":
	case "sqlite", "postgres", "mysql":
		if c.Storage.DSN == "" {
			return fmt.Errorf("storage.dsn is required for driver %q", c.Storage.Driver)
		}
	default:
		return fmt.Errorf("storage.driver %q is not one of memory, sqlite, postgres, mysql", c.Storage.Driver)
	}
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret is required")
	}
	if c.UsesDefaultSecret() && c.Storage.Driver != "memory" {
		return fmt.Errorf("auth.jwt_secret must be changed from the development default for driver %q", c.Storage.Driver)
	}
	if c.Auth.TokenTTL <= 0 {
		return fmt.Errorf("auth.token_ttl must be positive")
	}
	if c.Upload.MaxBytes <= 0 {
		return fmt.Errorf("upload.max_bytes must be positive")
	}
	if c.Stories.TTL <= 0 || c.Stories.SweepInterval <= 0 {
		return fmt.Errorf("stories.ttl and stories.sweep_interval must be positive")
	}
	if c.HTTP.RateLimitRPS < 0 || c.HTTP.RateLimitBurst < 0 {
		return fmt.Errorf("http rate limits cannot be negative")
	}
	for _, proxy := range c.HTTP.TrustedProxies {
		if net.ParseIP(proxy) == nil {
			if _, _, err := net.ParseCIDR(proxy); err != nil {
				return fmt.Errorf("http.trusted_proxies: %q is neither an IP nor a CIDR", proxy)
			}
		}
	}
	if c.MinIO.Endpoint != "" && c.MinIO.Bucket == "" {
		return fmt.Errorf("minio.bucket is required when minio.endpoint is set")
	}
	return nil
}

// UsesDefaultSecret reports whether the JWT secret was never changed.
func (c *Config) UsesDefaultSecret() bool {
	return c.Auth.JWTSecret == defaultJWTSecret
}

// SlogLevel maps Log.Level onto slog levels, defaulting to info.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.Log.Level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}
