package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "0123456789abcdef")
	for _, key := range []string{"PORT", "STORE", "DB_PATH", "JWT_DURATION", "LOCK_TTL", "REDIS_ADDR"} {
		t.Setenv(key, "")
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Port != 8080 || cfg.Store != StoreSQLite || cfg.DBPath != "./data/prepaidrecon.db" {
		t.Errorf("cfg = %+v", cfg)
	}
	if cfg.JWTDuration != 24*time.Hour || cfg.LockTTL != 10*time.Second {
		t.Errorf("durations = %v / %v", cfg.JWTDuration, cfg.LockTTL)
	}
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"missing secret", map[string]string{"JWT_SECRET": ""}},
		{"short secret", map[string]string{"JWT_SECRET": "short"}},
		{"bad port", map[string]string{"PORT": "eighty"}},
		{"port out of range", map[string]string{"PORT": "70000"}},
		{"bad duration", map[string]string{"JWT_DURATION": "forever"}},
		{"unknown store", map[string]string{"STORE": "postgres"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("JWT_SECRET", "0123456789abcdef")
			for _, key := range []string{"PORT", "STORE", "JWT_DURATION", "LOCK_TTL"} {
				t.Setenv(key, "")
			}
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			if _, err := Load(); err == nil {
				t.Error("expected an error")
			}
		})
	}
}

func TestLoad_EnvFile(t *testing.T) {
	t.Setenv("JWT_SECRET", "0123456789abcdef")
	t.Setenv("STORE", "")
	t.Cleanup(func() { os.Unsetenv("SEED_PATH") })

	path := filepath.Join(t.TempDir(), "test.env")
	if err := os.WriteFile(path, []byte("SEED_PATH=/etc/prepaidrecon/seed.yaml\nJWT_SECRET=ignored-because-already-set\n"), 0o600); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.SeedPath != "/etc/prepaidrecon/seed.yaml" {
		t.Errorf("SeedPath = %q", cfg.SeedPath)
	}
	if cfg.JWTSecret != "0123456789abcdef" {
		t.Errorf("existing environment should win, got %q", cfg.JWTSecret)
	}

	if _, err := Load(filepath.Join(t.TempDir(), "missing.env")); err == nil {
		t.Error("expected an error for a missing explicit env file")
	}
}
