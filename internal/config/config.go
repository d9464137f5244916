// Package config loads the server's settings.
//
// LOAD ORDER (later wins):
//  1. Default() values
//  2. an optional TOML file (-config flag or CONFIG_PATH)
//  3. a .env file in the working directory, if present (it never overrides
//     variables already set in the real environment)
//  4. environment variables such as PORT or DB_PATH
//
// Validate runs last and fills in what can be derived (a random session
// secret when none is configured).
package config

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Upload backends.
const (
	BackendLocal = "local"
	BackendS3    = "s3"
)

// DefaultMaxUploadBytes caps a request body at 40 MiB.
const DefaultMaxUploadBytes int64 = 40 << 20

// Config is the full server configuration.
type Config struct {
	Server   ServerConfig   `toml:"server"`
	Database DatabaseConfig `toml:"database"`
	Session  SessionConfig  `toml:"session"`
	Auth     AuthConfig     `toml:"auth"`
	Uploads  UploadsConfig  `toml:"uploads"`
	GitHub   GitHubConfig   `toml:"github"`
	Log      LogConfig      `toml:"log"`
}

// ServerConfig contains HTTP listener settings.
type ServerConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	Path string `toml:"path"`
}

// SessionConfig controls the login cookie and its server-side record.
type SessionConfig struct {
	// Secret signs session tokens. Empty means a random per-process secret,
	// so every restart signs everyone out.
	Secret       string   `toml:"secret"`
	TTL          Duration `toml:"ttl"`
	SecureCookie bool     `toml:"secure_cookie"`

	// SecretGenerated is set by Validate when Secret was filled in randomly.
	SecretGenerated bool `toml:"-"`
}

// AuthConfig tunes password hashing.
type AuthConfig struct {
	PasswordCost int `toml:"password_cost"`
}

// UploadsConfig selects where PDF uploads are kept.
type UploadsConfig struct {
	Backend    string `toml:"backend"`
	Dir        string `toml:"dir"`
	MaxBytes   int64  `toml:"max_bytes"`
	S3Bucket   string `toml:"s3_bucket"`
	S3Region   string `toml:"s3_region"`
	S3Prefix   string `toml:"s3_prefix"`
	S3Endpoint string `toml:"s3_endpoint"`
}

// GitHubConfig enables sign-in with GitHub when both ID and secret are set.
type GitHubConfig struct {
	ClientID     string `toml:"client_id"`
	ClientSecret string `toml:"client_secret"`
	CallbackURL  string `toml:"callback_url"`
}

// LogConfig selects the slog handler.
type LogConfig struct {
	Level  string `toml:"level"`  // debug | info | warn | error
	Format string `toml:"format"` // text | json
}

// Duration lets TOML and env values be written as "168h" or "30m".
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler, which BurntSushi/toml
// uses for string values.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", text, err)
	}
	d.Duration = v
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// Default returns the configuration used when nothing is overridden.
func Default() *Config {
	return &Config{
		Server:   ServerConfig{Host: "", Port: 8080},
		Database: DatabaseConfig{Path: "data/shelf.db"},
		Session:  SessionConfig{TTL: Duration{7 * 24 * time.Hour}},
		Auth:     AuthConfig{PasswordCost: 12},
		Uploads: UploadsConfig{
			Backend:  BackendLocal,
			Dir:      "data/uploads",
			MaxBytes: DefaultMaxUploadBytes,
		},
		Log: LogConfig{Level: "info", Format: "text"},
	}
}

// Load builds the configuration from path (may be empty), envFile (may be
// missing) and the process environment, then validates it.
func Load(path, envFile string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, fmt.Errorf("config: reading %s: %w", path, err)
		}
	}

	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("config: loading %s: %w", envFile, err)
		}
	}

	if err := cfg.applyEnv(os.Getenv); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv overrides fields from environment variables that are set and non-empty.
func (c *Config) applyEnv(getenv func(string) string) error {
	str := func(key string, dst *string) {
		if v := getenv(key); v != "" {
			*dst = v
		}
	}

	if v := getenv("PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("config: invalid PORT %q", v)
		}
		c.Server.Port = port
	}
	str("HOST", &c.Server.Host)
	str("DB_PATH", &c.Database.Path)

	str("SESSION_SECRET", &c.Session.Secret)
	if v := getenv("SESSION_TTL"); v != "" {
		if err := c.Session.TTL.UnmarshalText([]byte(v)); err != nil {
			return fmt.Errorf("config: SESSION_TTL: %w", err)
		}
	}
	if v := getenv("SESSION_SECURE_COOKIE"); v != "" {
		secure, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("config: invalid SESSION_SECURE_COOKIE %q", v)
		}
		c.Session.SecureCookie = secure
	}
	if v := getenv("PASSWORD_COST"); v != "" {
		cost, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("config: invalid PASSWORD_COST %q", v)
		}
		c.Auth.PasswordCost = cost
	}

	str("UPLOAD_BACKEND", &c.Uploads.Backend)
	str("UPLOAD_DIR", &c.Uploads.Dir)
	if v := getenv("UPLOAD_MAX_BYTES"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("config: invalid UPLOAD_MAX_BYTES %q", v)
		}
		c.Uploads.MaxBytes = n
	}
	str("S3_BUCKET", &c.Uploads.S3Bucket)
	str("S3_REGION", &c.Uploads.S3Region)
	str("S3_PREFIX", &c.Uploads.S3Prefix)
	str("S3_ENDPOINT", &c.Uploads.S3Endpoint)

	str("GITHUB_CLIENT_ID", &c.GitHub.ClientID)
	str("GITHUB_CLIENT_SECRET", &c.GitHub.ClientSecret)
	str("GITHUB_CALLBACK_URL", &c.GitHub.CallbackURL)

	str("LOG_LEVEL", &c.Log.Level)
	str("LOG_FORMAT", &c.Log.Format)

	return nil
}

// Validate rejects settings the server cannot start with and fills in
// derived values.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("config: port %d out of range", c.Server.Port)
	}
	if c.Database.Path == "" {
		return errors.New("config: database path is required")
	}
	if c.Session.TTL.Duration <= 0 {
		return fmt.Errorf("config: session ttl must be positive, got %s", c.Session.TTL)
	}
	if c.Uploads.MaxBytes <= 0 {
		return fmt.Errorf("config: upload max_bytes must be positive, got %d", c.Uploads.MaxBytes)
	}

	c.Uploads.Backend = strings.ToLower(c.Uploads.Backend)
	switch c.Uploads.Backend {
	case BackendLocal:
		if c.Uploads.Dir == "" {
			return errors.New("config: uploads dir is required for the local backend")
		}
	case BackendS3:
		if c.Uploads.S3Bucket == "" || c.Uploads.S3Region == "" {
			return errors.New("config: s3 backend needs s3_bucket and s3_region")
		}
	default:
		return fmt.Errorf("config: unknown upload backend %q", c.Uploads.Backend)
	}

	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("config: unknown log format %q", c.Log.Format)
	}

	if c.Session.Secret == "" {
		secret, err := randomSecret()
		if err != nil {
			return err
		}
		c.Session.Secret = secret
		c.Session.SecretGenerated = true
	}
	if len(c.Session.Secret) < 16 {
		return errors.New("config: session secret must be at least 16 characters")
	}

	if c.GitHubEnabled() && c.GitHub.CallbackURL == "" {
		c.GitHub.CallbackURL = fmt.Sprintf("http://localhost:%d/auth/github/callback", c.Server.Port)
	}

	return nil
}

// Addr is the listen address, e.g. ":8080".
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// GitHubEnabled reports whether GitHub sign-in is configured.
func (c *Config) GitHubEnabled() bool {
	return c.GitHub.ClientID != "" && c.GitHub.ClientSecret != ""
}

func randomSecret() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("config: generating session secret: %w", err)
	}
	return hex.EncodeToString(b), nil
}
