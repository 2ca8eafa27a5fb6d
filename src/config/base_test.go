package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"PORT", "LOG_MODE", "DB_DRIVER", "MYSQL_DSN", "SQLITE_PATH", "REDIS_URL",
		"CORS_ORIGIN", "STATIC_DIR", "DISCORD_WEBHOOK_URL", "RATE_LIMIT_GLOBAL",
		"RATE_LIMIT_VERIFY", "AI_PRIMARY", "AI_SECONDARY", "AI_MODEL",
		"GEMINI_API_KEY", "GROK_API_KEY", "AI_TIMEOUT", "PUBLIC_URL",
		"TLS_CERT_FILE", "TLS_KEY_FILE",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadFromDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := LoadFrom(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}
	if cfg.Port != "4000" {
		t.Errorf("Port = %q", cfg.Port)
	}
	if cfg.Database.Driver != "mysql" {
		t.Errorf("Driver = %q", cfg.Database.Driver)
	}
	if cfg.HTTP.RateLimitGlobal != 100 || cfg.HTTP.RateLimitVerify != 20 {
		t.Errorf("rate limits = %d/%d", cfg.HTTP.RateLimitGlobal, cfg.HTTP.RateLimitVerify)
	}
	if cfg.AI.Primary != "gemini25" || cfg.AI.Secondary != "grok4" {
		t.Errorf("providers = %q/%q", cfg.AI.Primary, cfg.AI.Secondary)
	}
	if cfg.AI.Timeout != 15*time.Second {
		t.Errorf("AI timeout = %v", cfg.AI.Timeout)
	}
	if cfg.Database.DSN() != "" {
		t.Errorf("expected empty DSN, got %q", cfg.Database.DSN())
	}
}

func TestLoadFromYAMLWithEnvOverride(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := `
port: "8080"
database:
  driver: sqlite
  sqlite_path: /tmp/hermes.db
ai:
  gemini_api_key: your_gemini_api_key
  grok_api_key: xai-real
  timeout: 12s
http:
  rate_limit_verify: 5
`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("PORT", "9090")

	cfg, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}
	if cfg.Port != "9090" {
		t.Errorf("env override lost: Port = %q", cfg.Port)
	}
	if cfg.Database.DSN() != "/tmp/hermes.db" {
		t.Errorf("DSN = %q", cfg.Database.DSN())
	}
	if cfg.AI.GeminiKey != "" {
		t.Errorf("placeholder gemini key kept: %q", cfg.AI.GeminiKey)
	}
	if cfg.AI.GrokKey != "xai-real" {
		t.Errorf("GrokKey = %q", cfg.AI.GrokKey)
	}
	if cfg.AI.Timeout != 12*time.Second {
		t.Errorf("AI timeout = %v", cfg.AI.Timeout)
	}
	if cfg.HTTP.RateLimitVerify != 5 {
		t.Errorf("RateLimitVerify = %d", cfg.HTTP.RateLimitVerify)
	}
}

func TestLoadFromRejectsUnknownDriver(t *testing.T) {
	clearEnv(t)
	t.Setenv("DB_DRIVER", "mongo")
	if _, err := LoadFrom(""); err == nil {
		t.Fatal("expected error for unknown driver")
	}
}

func TestLoadFromRejectsBadInt(t *testing.T) {
	clearEnv(t)
	t.Setenv("RATE_LIMIT_GLOBAL", "lots")
	if _, err := LoadFrom(""); err == nil {
		t.Fatal("expected error for non-numeric rate limit")
	}
}

func TestIsPlaceholder(t *testing.T) {
	cases := map[string]bool{
		"":                          true,
		"   ":                       true,
		"your_mysql_dsn":            true,
		"<set me>":                  true,
		"CHANGEME":                  true,
		"user:pw@tcp(db:3306)/app":  false,
		"redis://localhost:6379/0":  false,
	}
	for in, want := range cases {
		if got := IsPlaceholder(in); got != want {
			t.Errorf("IsPlaceholder(%q) = %v, want %v", in, got, want)
		}
	}
}
