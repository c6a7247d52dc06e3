package config

import (
	"os"
	"path/filepath"
	"testing"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{"LISTEN_ADDR", "DATABASE_PATH", "LOGLEVEL", "APP_ENV", "MAX_UPLOAD_MB"} {
		t.Setenv(k, "")
	}
}

func TestFromEnv_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := FromEnv()
	if err != nil {
		t.Fatalf("FromEnv: %v", err)
	}
	if cfg.ListenAddr != ":8080" {
		t.Errorf("ListenAddr = %q", cfg.ListenAddr)
	}
	if cfg.DatabasePath != "" {
		t.Errorf("DatabasePath = %q, want empty", cfg.DatabasePath)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel = %q", cfg.LogLevel)
	}
	if cfg.Production() {
		t.Error("default env should not be production")
	}
	if cfg.MaxUploadBytes() != 32*1024*1024 {
		t.Errorf("MaxUploadBytes = %d", cfg.MaxUploadBytes())
	}
}

func TestFromEnv_Overrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("LISTEN_ADDR", "127.0.0.1:9000")
	t.Setenv("DATABASE_PATH", "/tmp/ops.db")
	t.Setenv("LOGLEVEL", "DEBUG")
	t.Setenv("APP_ENV", "Production")
	t.Setenv("MAX_UPLOAD_MB", "4")

	cfg, err := FromEnv()
	if err != nil {
		t.Fatalf("FromEnv: %v", err)
	}
	if cfg.ListenAddr != "127.0.0.1:9000" || cfg.DatabasePath != "/tmp/ops.db" {
		t.Errorf("unexpected cfg %+v", cfg)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, want lower-cased", cfg.LogLevel)
	}
	if !cfg.Production() {
		t.Error("expected production")
	}
	if cfg.MaxUploadMB != 4 {
		t.Errorf("MaxUploadMB = %d", cfg.MaxUploadMB)
	}
}

func TestFromEnv_InvalidUploadLimit(t *testing.T) {
	for _, v := range []string{"abc", "0", "-3"} {
		clearEnv(t)
		t.Setenv("MAX_UPLOAD_MB", v)
		if _, err := FromEnv(); err == nil {
			t.Errorf("MAX_UPLOAD_MB=%q: expected error", v)
		}
	}
}

func TestLoad_DotEnv(t *testing.T) {
	clearEnv(t)
	os.Unsetenv("LISTEN_ADDR")
	os.Unsetenv("DATABASE_PATH")

	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("DATABASE_PATH=from-file.db\nLISTEN_ADDR=:7000\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.Chdir(wd) })
	t.Cleanup(func() {
		os.Unsetenv("DATABASE_PATH")
		os.Unsetenv("LISTEN_ADDR")
	})

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !cfg.EnvFileLoaded {
		t.Error("expected .env to be loaded")
	}
	if cfg.DatabasePath != "from-file.db" || cfg.ListenAddr != ":7000" {
		t.Errorf("unexpected cfg %+v", cfg)
	}
}
