package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the full Hermes runtime configuration. Values come from an
// optional YAML file and are then overridden by environment variables.
type Config struct {
	Port              string   `yaml:"port"`
	LogMode           string   `yaml:"log_mode"`
	Database          Database `yaml:"database"`
	RedisURL          string   `yaml:"redis_url"`
	AI                AI       `yaml:"ai"`
	HTTP              HTTP     `yaml:"http"`
	DiscordWebhookURL string   `yaml:"discord_webhook_url"`
}

// Database selects the report store backend.
type Database struct {
	Driver     string `yaml:"driver"`
	MySQLDSN   string `yaml:"mysql_dsn"`
	SQLitePath string `yaml:"sqlite_path"`
}

// HTTP holds web server knobs.
type HTTP struct {
	CORSOrigin      string `yaml:"cors_origin"`
	RateLimitGlobal int    `yaml:"rate_limit_global"`
	RateLimitVerify int    `yaml:"rate_limit_verify"`
	StaticDir       string `yaml:"static_dir"`
	// PublicURL is where the dashboard is reachable; linked from notices.
	PublicURL   string `yaml:"public_url"`
	TLSCertFile string `yaml:"tls_cert_file"`
	TLSKeyFile  string `yaml:"tls_key_file"`
}

// TLSEnabled reports whether both certificate and key are configured.
func (h HTTP) TLSEnabled() bool { return h.TLSCertFile != "" && h.TLSKeyFile != "" }

// Load reads HERMES_CONFIG (default config.yaml) when present, then applies
// env overrides and defaults.
func Load() (Config, error) {
	path := "config.yaml"
	if envPath := os.Getenv("HERMES_CONFIG"); envPath != "" {
		path = envPath
	}
	return LoadFrom(path)
}

// LoadFrom is Load with an explicit file path. A missing file is not an error.
func LoadFrom(path string) (Config, error) {
	var cfg Config

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return Config{}, fmt.Errorf("config: parsing %s: %w", path, err)
			}
		case !os.IsNotExist(err):
			return Config{}, fmt.Errorf("config: reading %s: %w", path, err)
		}
	}

	envOverride(&cfg.Port, "PORT")
	envOverride(&cfg.LogMode, "LOG_MODE")
	envOverride(&cfg.Database.Driver, "DB_DRIVER")
	envOverride(&cfg.Database.MySQLDSN, "MYSQL_DSN")
	envOverride(&cfg.Database.SQLitePath, "SQLITE_PATH")
	envOverride(&cfg.RedisURL, "REDIS_URL")
	envOverride(&cfg.HTTP.CORSOrigin, "CORS_ORIGIN")
	envOverride(&cfg.HTTP.StaticDir, "STATIC_DIR")
	envOverride(&cfg.HTTP.PublicURL, "PUBLIC_URL")
	envOverride(&cfg.HTTP.TLSCertFile, "TLS_CERT_FILE")
	envOverride(&cfg.HTTP.TLSKeyFile, "TLS_KEY_FILE")
	envOverride(&cfg.DiscordWebhookURL, "DISCORD_WEBHOOK_URL")
	if err := envOverrideInt(&cfg.HTTP.RateLimitGlobal, "RATE_LIMIT_GLOBAL"); err != nil {
		return Config{}, err
	}
	if err := envOverrideInt(&cfg.HTTP.RateLimitVerify, "RATE_LIMIT_VERIFY"); err != nil {
		return Config{}, err
	}
	applyAIEnv(&cfg.AI)

	if cfg.Port == "" {
		cfg.Port = "4000"
	}
	if cfg.LogMode == "" {
		cfg.LogMode = "dev"
	}
	cfg.Database.Driver = strings.ToLower(strings.TrimSpace(cfg.Database.Driver))
	if cfg.Database.Driver == "" {
		cfg.Database.Driver = "mysql"
	}
	if cfg.Database.Driver != "mysql" && cfg.Database.Driver != "sqlite" {
		return Config{}, fmt.Errorf("config: database driver must be 'mysql' or 'sqlite', got %q", cfg.Database.Driver)
	}
	if IsPlaceholder(cfg.RedisURL) {
		cfg.RedisURL = ""
	}
	if IsPlaceholder(cfg.DiscordWebhookURL) {
		cfg.DiscordWebhookURL = ""
	}
	if cfg.HTTP.CORSOrigin == "" {
		cfg.HTTP.CORSOrigin = "http://localhost:5173"
	}
	if cfg.HTTP.RateLimitGlobal <= 0 {
		cfg.HTTP.RateLimitGlobal = 100
	}
	if cfg.HTTP.RateLimitVerify <= 0 {
		cfg.HTTP.RateLimitVerify = 20
	}
	applyAIDefaults(&cfg.AI)

	return cfg, nil
}

// DSN returns the connection string for the configured driver, or "" when it
// is unset or still a placeholder.
func (d Database) DSN() string {
	dsn := d.MySQLDSN
	if d.Driver == "sqlite" {
		dsn = d.SQLitePath
	}
	if IsPlaceholder(dsn) {
		return ""
	}
	return strings.TrimSpace(dsn)
}

// IsPlaceholder reports whether a credential is unset or still carries a
// template value such as "your_mysql_dsn".
func IsPlaceholder(v string) bool {
	v = strings.ToLower(strings.TrimSpace(v))
	if v == "" {
		return true
	}
	return strings.Contains(v, "your_") || strings.Contains(v, "changeme") || strings.HasPrefix(v, "<")
}

func envOverride(field *string, envKey string) {
	if val := os.Getenv(envKey); val != "" {
		*field = val
	}
}

func envOverrideInt(field *int, envKey string) error {
	val := os.Getenv(envKey)
	if val == "" {
		return nil
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fmt.Errorf("config: invalid %s %q: %w", envKey, val, err)
	}
	*field = parsed
	return nil
}

func envOverrideDuration(field *time.Duration, envKey string) {
	val := os.Getenv(envKey)
	if val == "" {
		return
	}
	if d, err := time.ParseDuration(val); err == nil {
		*field = d
	}
}
