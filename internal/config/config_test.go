package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func env(m map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	}
}

func TestLoadFrom_Defaults(t *testing.T) {
	t.Chdir(t.TempDir()) // no config.yaml here

	cfg, err := LoadFrom(env(nil))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.HTTPAddr != ":8080" || cfg.Store.Driver != DriverSQLite || cfg.RequestTimeout != 15*time.Second {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.CORSAllowedOrigin != "http://localhost:5173" {
		t.Errorf("CORSAllowedOrigin = %q", cfg.CORSAllowedOrigin)
	}
	if cfg.RateLimit.RPS != 0 {
		t.Errorf("rate limiting should be off by default")
	}
}

func TestLoadFrom_YAMLThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tasks.yaml")
	yml := `
http_addr: ":9090"
log_level: debug
request_timeout: 3s
store:
  driver: postgres
  postgres_dsn: postgres://tasks:${DB_PASSWORD}@db:5432/tasks
rate_limit:
  rps: 5
  burst: 10
`
	if err := os.WriteFile(path, []byte(yml), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	cfg, err := LoadFrom(env(map[string]string{
		"CONFIG_FILE":      path,
		"DB_PASSWORD":      "s3cret",
		"HTTP_ADDR":        ":7070",
		"RATE_LIMIT_BURST": "3",
	}))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.HTTPAddr != ":7070" {
		t.Errorf("env must override yaml, HTTPAddr = %q", cfg.HTTPAddr)
	}
	if cfg.LogLevel != "debug" || cfg.RequestTimeout != 3*time.Second {
		t.Errorf("yaml values not applied: %+v", cfg)
	}
	if cfg.Store.PostgresDSN != "postgres://tasks:s3cret@db:5432/tasks" {
		t.Errorf("placeholder not expanded: %q", cfg.Store.PostgresDSN)
	}
	if cfg.RateLimit.RPS != 5 || cfg.RateLimit.Burst != 3 {
		t.Errorf("rate limit = %+v", cfg.RateLimit)
	}
}

func TestLoadFrom_Errors(t *testing.T) {
	t.Chdir(t.TempDir())

	cases := map[string]map[string]string{
		"missing explicit file": {"CONFIG_FILE": "/nonexistent/tasks.yaml"},
		"unknown driver":        {"STORE_DRIVER": "oracle"},
		"postgres without dsn":  {"STORE_DRIVER": "postgres"},
		"mongo without uri":     {"STORE_DRIVER": "mongo"},
		"bad timeout":           {"REQUEST_TIMEOUT": "soon"},
		"bad rps":               {"RATE_LIMIT_RPS": "fast"},
		"bad debug flag":        {"DB_DEBUG": "maybe"},
	}
	for name, vars := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := LoadFrom(env(vars)); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
}
