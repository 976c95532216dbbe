package config

import (
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	SessionBackendFile   = "file"
	SessionBackendMemory = "memory"
	SessionBackendRedis  = "redis"

	SourceAPI   = "api"
	SourceLocal = "local"
)

type Config struct {
	APIBaseURL        string        `mapstructure:"API_BASE_URL"`
	Env               string        `mapstructure:"ENV"`
	LogLevel          string        `mapstructure:"LOG_LEVEL"`
	HTTPTimeout       time.Duration `mapstructure:"HTTP_TIMEOUT"`
	SessionBackend    string        `mapstructure:"SESSION_BACKEND"`
	SessionFile       string        `mapstructure:"SESSION_FILE"`
	SessionKey        string        `mapstructure:"SESSION_KEY"`
	SessionTTL        time.Duration `mapstructure:"SESSION_TTL"`
	RememberTTL       time.Duration `mapstructure:"REMEMBER_TTL"`
	RedisURL          string        `mapstructure:"REDIS_URL"`
	ScorePolicy       string        `mapstructure:"SCORE_POLICY"`
	RecordSource      string        `mapstructure:"RECORD_SOURCE"`
	SandboxPort       string        `mapstructure:"SANDBOX_PORT"`
	SandboxSigningKey string        `mapstructure:"SANDBOX_SIGNING_KEY"`
	CORSOrigins       []string      `mapstructure:"CORS_ORIGINS"`
}

var keys = []string{
	"API_BASE_URL",
	"ENV",
	"LOG_LEVEL",
	"HTTP_TIMEOUT",
	"SESSION_BACKEND",
	"SESSION_FILE",
	"SESSION_KEY",
	"SESSION_TTL",
	"REMEMBER_TTL",
	"REDIS_URL",
	"SCORE_POLICY",
	"RECORD_SOURCE",
	"SANDBOX_PORT",
	"SANDBOX_SIGNING_KEY",
	"CORS_ORIGINS",
}

// Load reads .env (optional) and the environment, applies defaults and
// validates the result.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()

	v.SetDefault("API_BASE_URL", "http://localhost:8080/api")
	v.SetDefault("ENV", "production")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("HTTP_TIMEOUT", "15s")
	v.SetDefault("SESSION_BACKEND", SessionBackendFile)
	v.SetDefault("SESSION_TTL", "168h")
	v.SetDefault("REMEMBER_TTL", "720h")
	v.SetDefault("SCORE_POLICY", SourceAPI)
	v.SetDefault("RECORD_SOURCE", SourceAPI)
	v.SetDefault("SANDBOX_PORT", "8080")
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")

	// Bind env vars explicitly so Unmarshal picks them up
	for _, k := range keys {
		v.BindEnv(k)
	}

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if origins := v.GetString("CORS_ORIGINS"); origins != "" {
		cfg.CORSOrigins = splitList(origins)
	}
	if cfg.SessionFile == "" {
		cfg.SessionFile = DefaultSessionFile()
	}
	cfg.SessionBackend = strings.ToLower(strings.TrimSpace(cfg.SessionBackend))
	cfg.ScorePolicy = strings.ToLower(strings.TrimSpace(cfg.ScorePolicy))
	cfg.RecordSource = strings.ToLower(strings.TrimSpace(cfg.RecordSource))

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// DefaultSessionFile is <user config dir>/healthtrack/session.json, falling
// back to the working directory.
func DefaultSessionFile() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "healthtrack-session.json"
	}
	return filepath.Join(dir, "healthtrack", "session.json")
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// Validate checks the values that cannot be defaulted.
func (c *Config) Validate() error {
	if !strings.HasPrefix(c.APIBaseURL, "http://") && !strings.HasPrefix(c.APIBaseURL, "https://") {
		return fmt.Errorf("API_BASE_URL must be an http(s) URL, got %q", c.APIBaseURL)
	}
	if c.HTTPTimeout <= 0 {
		return fmt.Errorf("HTTP_TIMEOUT must be positive, got %s", c.HTTPTimeout)
	}
	if c.SessionTTL <= 0 || c.RememberTTL <= 0 {
		return fmt.Errorf("SESSION_TTL and REMEMBER_TTL must be positive")
	}

	switch c.SessionBackend {
	case SessionBackendFile, SessionBackendMemory:
	case SessionBackendRedis:
		if c.RedisURL == "" {
			return fmt.Errorf("REDIS_URL is required when SESSION_BACKEND is \"redis\"")
		}
	default:
		return fmt.Errorf("SESSION_BACKEND must be \"file\", \"memory\", or \"redis\", got %q", c.SessionBackend)
	}

	if c.SessionKey != "" {
		keyBytes, err := hex.DecodeString(c.SessionKey)
		if err != nil {
			return fmt.Errorf("SESSION_KEY is not valid hex: %w", err)
		}
		if len(keyBytes) != 32 {
			return fmt.Errorf("SESSION_KEY must be 32 bytes (64 hex chars), got %d bytes", len(keyBytes))
		}
	}

	if c.ScorePolicy != SourceAPI && c.ScorePolicy != SourceLocal {
		return fmt.Errorf("SCORE_POLICY must be \"api\" or \"local\", got %q", c.ScorePolicy)
	}
	if c.RecordSource != SourceAPI && c.RecordSource != SourceLocal {
		return fmt.Errorf("RECORD_SOURCE must be \"api\" or \"local\", got %q", c.RecordSource)
	}
	return nil
}

// SandboxKey returns the signing key for sandbox tokens. Outside development
// a key must be configured.
func (c *Config) SandboxKey() ([]byte, error) {
	if c.SandboxSigningKey != "" {
		return []byte(c.SandboxSigningKey), nil
	}
	if c.IsDev() {
		return []byte("healthtrack-development-signing-key"), nil
	}
	return nil, fmt.Errorf("SANDBOX_SIGNING_KEY is required unless ENV=development")
}
