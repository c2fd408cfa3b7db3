package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

var envKeys = []string{"PORT", "JWT_SECRET", "LOG_LEVEL", "RATELIMIT", "RATELIMIT_RATE"}

// clearEnv unsets the override variables for the duration of the test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range envKeys {
		t.Setenv(key, "")
		if err := os.Unsetenv(key); err != nil {
			t.Fatalf("unexpected unsetenv error: %v", err)
		}
	}
}

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("unexpected write error: %v", err)
	}
	return path
}

func mustLoad(t *testing.T, path, envFile string) *AppConfig {
	t.Helper()
	cfg, err := loadAppConfig(path, envFile)
	if err != nil {
		t.Fatalf("unexpected load error: %v", err)
	}
	return cfg
}

func TestLoadAppConfigDefaults(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()

	cfg := mustLoad(t, filepath.Join(dir, "missing.yaml"), filepath.Join(dir, "missing.env"))
	if cfg.Server.Addr != defaultHTTPAddr || cfg.Server.MaxCodeBytes != int64(defaultMaxCodeBytes) {
		t.Fatalf("unexpected server defaults: %+v", cfg.Server)
	}
	if cfg.Auth.JWTSecret != defaultJWTSecret {
		t.Fatalf("unexpected jwt secret: %q", cfg.Auth.JWTSecret)
	}
	if cfg.Sandbox.File != defaultSandboxFile || cfg.Sandbox.PollInterval != defaultPollInterval {
		t.Fatalf("unexpected sandbox defaults: %+v", cfg.Sandbox)
	}
	if cfg.Sandbox.RetryMax == nil || *cfg.Sandbox.RetryMax != defaultRetryMax {
		t.Fatalf("expected retryMax %d, got %v", defaultRetryMax, cfg.Sandbox.RetryMax)
	}
	if cfg.Contest.MinNameLength != 3 || cfg.Contest.MaxNameLength != 64 || cfg.Contest.TickInterval != time.Second {
		t.Fatalf("unexpected contest defaults: %+v", cfg.Contest)
	}
	if cfg.Problems.Dir != defaultProblemsDir {
		t.Fatalf("unexpected problems dir: %q", cfg.Problems.Dir)
	}
	if cfg.RateLimit.Enabled {
		t.Fatal("expected rate limiting disabled by default")
	}
}

func TestLoadAppConfigYAML(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	path := writeFile(t, dir, "server.yaml", `
server:
  addr: "127.0.0.1:9000"
  maxCodeBytes: 1024
sandbox:
  file: nodes.txt
  pollInterval: 5s
  retryMax: 0
contest:
  minNameLength: 1
  tickInterval: 10ms
console:
  enabled: true
  defaultDuration: 600
`)

	cfg := mustLoad(t, path, "")
	if cfg.Server.Addr != "127.0.0.1:9000" || cfg.Server.MaxCodeBytes != 1024 {
		t.Fatalf("unexpected server config: %+v", cfg.Server)
	}
	if cfg.Sandbox.File != "nodes.txt" || cfg.Sandbox.PollInterval != 5*time.Second {
		t.Fatalf("unexpected sandbox config: %+v", cfg.Sandbox)
	}
	if cfg.Sandbox.RetryMax == nil || *cfg.Sandbox.RetryMax != 0 {
		t.Fatalf("expected an explicit retryMax 0 to be kept, got %v", cfg.Sandbox.RetryMax)
	}
	if cfg.Contest.MinNameLength != 1 || cfg.Contest.TickInterval != 10*time.Millisecond {
		t.Fatalf("unexpected contest config: %+v", cfg.Contest)
	}
	if !cfg.Console.Enabled || cfg.Console.DefaultDuration != 600 {
		t.Fatalf("unexpected console config: %+v", cfg.Console)
	}
}

func TestLoadAppConfigEnvOverrides(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	env := writeFile(t, dir, ".env", "PORT=9100\nJWT_SECRET=s3cret\nLOG_LEVEL=debug\nRATELIMIT=50\nRATELIMIT_RATE=2.5\n")

	cfg := mustLoad(t, "", env)
	if cfg.Server.Addr != "0.0.0.0:9100" {
		t.Fatalf("unexpected addr: %q", cfg.Server.Addr)
	}
	if cfg.Auth.JWTSecret != "s3cret" || cfg.Logger.Level != "debug" {
		t.Fatalf("unexpected overrides: secret=%q level=%q", cfg.Auth.JWTSecret, cfg.Logger.Level)
	}
	if !cfg.RateLimit.Enabled || cfg.RateLimit.Burst != 50 || cfg.RateLimit.Rate != 2.5 {
		t.Fatalf("unexpected rate limit: %+v", cfg.RateLimit)
	}
}

func TestLoadAppConfigInvalid(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()

	tests := []struct {
		name    string
		path    string
		env     string
		wantErr string
	}{
		{name: "malformed yaml", path: writeFile(t, dir, "bad.yaml", "server: [")},
		{name: "bad addr", path: writeFile(t, dir, "invalid.yaml", "server:\n  addr: \"no-port\"\n"), wantErr: "invalid config"},
		{name: "retries out of range", path: writeFile(t, dir, "retry.yaml", "sandbox:\n  retryMax: 11\n"), wantErr: "invalid config"},
		{name: "name bounds", path: writeFile(t, dir, "names.yaml", "contest:\n  minNameLength: 10\n  maxNameLength: 5\n"), wantErr: "invalid config"},
		{name: "bad env", env: writeFile(t, dir, "bad.env", "RATELIMIT=lots\n"), wantErr: "RATELIMIT"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := loadAppConfig(tt.path, tt.env)
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}
