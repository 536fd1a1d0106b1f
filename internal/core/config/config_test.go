package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte(body), 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return p
}

func TestFromEnv_Defaults(t *testing.T) {
	cfg := FromEnv()
	if cfg.Server.Addr != ":8090" || cfg.Dataset.Path != "datum_Sample_data.csv" {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.Dataset.CacheSize != 16 || cfg.Auth.SessionTTL != 12*time.Hour {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
}

func TestFromEnv_Overrides(t *testing.T) {
	t.Setenv("ADDR", ":9999")
	t.Setenv("CACHE_ENABLED", "yes")
	t.Setenv("CACHE_TTL_HOT", "1h")
	t.Setenv("HOT_THRESHOLD", "2.5")
	t.Setenv("KAFKA_BROKERS", " a:9092, b:9092 ,")
	t.Setenv("UPLOAD_MAX_BYTES", "1024")
	t.Setenv("AUTH_USERS", "ana:secret,bo:x:y")
	t.Setenv("DATASET_CACHE_SIZE", "not-a-number")

	cfg := FromEnv()
	if cfg.Server.Addr != ":9999" || !cfg.Cache.Enabled || cfg.Cache.TTLHot != time.Hour {
		t.Fatalf("overrides not applied: %+v", cfg)
	}
	if cfg.Hotness.Threshold != 2.5 || cfg.Dataset.UploadMaxBytes != 1024 {
		t.Fatalf("numeric overrides not applied: %+v", cfg)
	}
	if strings.Join(cfg.Invalidation.Brokers, "|") != "a:9092|b:9092" {
		t.Fatalf("brokers=%v", cfg.Invalidation.Brokers)
	}
	if cfg.Auth.Users["ana"] != "secret" || cfg.Auth.Users["bo"] != "x:y" {
		t.Fatalf("users=%v", cfg.Auth.Users)
	}
	if cfg.Dataset.CacheSize != 16 {
		t.Fatalf("malformed int should keep default, got %d", cfg.Dataset.CacheSize)
	}
}

func TestLoad_TOMLUnderEnv(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "hexselect.toml", `
[server]
addr = ":7000"

[dataset]
path = "/data/hex.csv"

[cache]
enabled = true
ttl_warm = "2m"

[auth.users]
"test@efts-group.com" = "123prueba"
`)
	t.Chdir(dir)
	t.Setenv("ADDR", ":7001")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Addr != ":7001" {
		t.Fatalf("env should win over file, addr=%s", cfg.Server.Addr)
	}
	if cfg.Dataset.Path != "/data/hex.csv" || !cfg.Cache.Enabled || cfg.Cache.TTLWarm != 2*time.Minute {
		t.Fatalf("file values not applied: %+v", cfg)
	}
	if cfg.Cache.TTLHot != 30*time.Minute {
		t.Fatalf("unset file keys should keep defaults, ttl_hot=%v", cfg.Cache.TTLHot)
	}
	if cfg.Auth.Users["test@efts-group.com"] != "123prueba" {
		t.Fatalf("users=%v", cfg.Auth.Users)
	}
}

func TestLoad_DotEnv(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, ".env", "AUTH_USERS=env:pw\nLOG_LEVEL=debug\n")
	t.Chdir(dir)
	t.Setenv("LOG_LEVEL", "warn")
	// godotenv sets AUTH_USERS for the process; clear it afterwards
	t.Setenv("AUTH_USERS", "")
	os.Unsetenv("AUTH_USERS")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Auth.Users["env"] != "pw" {
		t.Fatalf(".env not loaded: %v", cfg.Auth.Users)
	}
	if cfg.Log.Level != "warn" {
		t.Fatalf("process env should win over .env, level=%s", cfg.Log.Level)
	}
}

func TestLoad_Errors(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	if _, err := Load(filepath.Join(dir, "missing.toml")); err == nil {
		t.Fatalf("expected error for missing file")
	}
	bad := writeFile(t, dir, "bad.toml", "[server\naddr=")
	if _, err := Load(bad); err == nil {
		t.Fatalf("expected parse error")
	}

	t.Setenv("AUTH_USERS", "nopassword")
	if _, err := Load(""); err == nil {
		t.Fatalf("expected error for malformed AUTH_USERS")
	}

	t.Setenv("AUTH_USERS", "")
	if _, err := Load(""); err == nil || !strings.Contains(err.Error(), "no users") {
		t.Fatalf("expected validation error for auth without users, got %v", err)
	}

	t.Setenv("AUTH_ENABLED", "false")
	if _, err := Load(""); err != nil {
		t.Fatalf("auth disabled should validate: %v", err)
	}
}

func TestResolve_SkipsValidation(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("AUTH_USERS", "")
	cfg, err := Resolve("")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if !cfg.Auth.Enabled || len(cfg.Auth.Users) != 0 {
		t.Fatalf("unexpected auth config: %+v", cfg.Auth)
	}
}
