package server

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadConfig_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())

	v, err := LoadConfig("")
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	tests := []struct {
		key  string
		want any
	}{
		{"server.port", 8080},
		{"theme.query_param", "theme"},
		{"theme.default_experience", "standard"},
		{"preferences.backend", "sqlite"},
	}
	for _, tc := range tests {
		if got := v.Get(tc.key); got != tc.want {
			t.Errorf("%s = %v, want %v", tc.key, got, tc.want)
		}
	}
}

func TestLoadConfig_FileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "portal.yaml")
	yaml := "server:\n  port: 9000\ntheme:\n  default_experience: corporate\n"
	if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("PORTAL_PREFERENCES_BACKEND", "redis")

	v, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if got := v.GetInt("server.port"); got != 9000 {
		t.Errorf("server.port = %d, want 9000", got)
	}
	if got := v.GetString("theme.default_experience"); got != "corporate" {
		t.Errorf("theme.default_experience = %q, want corporate", got)
	}
	if got := v.GetString("preferences.backend"); got != "redis" {
		t.Errorf("preferences.backend = %q, want redis (from env)", got)
	}
}

func TestLoadConfig_MissingExplicitFile(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("expected an error for a missing explicit config file")
	}
}

func TestConfigAddr(t *testing.T) {
	c := Config{Host: "127.0.0.1", Port: 8080}
	if got := c.Addr(); got != "127.0.0.1:8080" {
		t.Errorf("Addr() = %q", got)
	}
}
