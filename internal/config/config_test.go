package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), FileName)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadMissingGivesDefaults(t *testing.T) {
	t.Chdir(t.TempDir())
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Listen != "127.0.0.1:9999" {
		t.Fatalf("listen = %q", cfg.Listen)
	}
	if cfg.Timeout.Std() != 5*time.Second {
		t.Fatalf("timeout = %v", cfg.Timeout.Std())
	}
	if cfg.Colors.Accent == "" {
		t.Fatal("accent color empty")
	}
}

func TestLoadOverrides(t *testing.T) {
	path := writeConfig(t, `
listen = "0.0.0.0:4400"
timeout = "1500ms"

[colors]
accent = "#00ff00"
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Listen != "0.0.0.0:4400" {
		t.Fatalf("listen = %q", cfg.Listen)
	}
	if cfg.Timeout.Std() != 1500*time.Millisecond {
		t.Fatalf("timeout = %v", cfg.Timeout.Std())
	}
	if cfg.Colors.Accent != "#00ff00" {
		t.Fatalf("accent = %q", cfg.Colors.Accent)
	}
	// unset keys keep their defaults
	if cfg.Colors.Border != Default().Colors.Border {
		t.Fatalf("border = %q", cfg.Colors.Border)
	}
}

func TestLoadParseError(t *testing.T) {
	path := writeConfig(t, "listen = [broken")
	if _, err := Load(path); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestLoadExplicitMissingPath(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.toml")); err == nil {
		t.Fatal("expected error for explicit missing path")
	}
}

func TestLoadBadDuration(t *testing.T) {
	path := writeConfig(t, `timeout = "soon"`)
	if _, err := Load(path); err == nil {
		t.Fatal("expected duration parse error")
	}
}
