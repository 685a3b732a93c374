package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestGlobalConfigPath(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/custom/config")
	if got := GlobalConfigPath(); got != "/custom/config/pubsync/config.yml" {
		t.Errorf("GlobalConfigPath() = %q", got)
	}
}

func TestResolve(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv(EnvProfileID, "")
	t.Setenv(EnvDataDir, "")
	t.Setenv(EnvTarget, "")

	t.Run("explicit path", func(t *testing.T) {
		dir := t.TempDir()
		path := writeConfig(t, dir, "profile_id: explicit\n")
		cfg, err := Resolve(path, t.TempDir())
		if err != nil {
			t.Fatalf("Resolve() error = %v", err)
		}
		if cfg.ProfileID != "explicit" || cfg.Path != path {
			t.Errorf("Resolve() = %+v", cfg)
		}
	})

	t.Run("found upwards", func(t *testing.T) {
		root := t.TempDir()
		writeConfig(t, root, "profile_id: project\n")
		nested := filepath.Join(root, "src")
		if err := os.Mkdir(nested, 0755); err != nil {
			t.Fatal(err)
		}
		cfg, err := Resolve("", nested)
		if err != nil {
			t.Fatalf("Resolve() error = %v", err)
		}
		if cfg.ProfileID != "project" || cfg.DataDir != filepath.Join(root, "data") {
			t.Errorf("Resolve() = %+v", cfg)
		}
	})

	t.Run("global fallback", func(t *testing.T) {
		xdg := t.TempDir()
		t.Setenv("XDG_CONFIG_HOME", xdg)
		globalDir := filepath.Join(xdg, GlobalConfigDir)
		if err := os.MkdirAll(globalDir, 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(filepath.Join(globalDir, GlobalConfigFile), []byte("profile_id: global\n"), 0644); err != nil {
			t.Fatal(err)
		}

		cfg, err := Resolve("", t.TempDir())
		if err != nil {
			t.Fatalf("Resolve() error = %v", err)
		}
		if cfg.ProfileID != "global" {
			t.Errorf("Resolve() = %+v, want global config", cfg)
		}
	})

	t.Run("env overrides file", func(t *testing.T) {
		t.Setenv(EnvProfileID, "fromenv")
		path := writeConfig(t, t.TempDir(), "profile_id: file\n")
		cfg, err := Resolve(path, t.TempDir())
		if err != nil {
			t.Fatalf("Resolve() error = %v", err)
		}
		if cfg.ProfileID != "fromenv" {
			t.Errorf("ProfileID = %q, want env override", cfg.ProfileID)
		}
	})
}
