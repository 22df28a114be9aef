package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadResolvesRelativePaths(t *testing.T) {
	path := writeConfig(t, `{
		"basic_config": {"upload_dir": "data/uploads", "max_upload_mb": 5},
		"database": {"driver": "sqlite3", "dsn": "audit.db"}
	}`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	dir := filepath.Dir(path)
	if cfg.BasicConfig.UploadDir != filepath.Join(dir, "data/uploads") {
		t.Fatalf("upload_dir = %q", cfg.BasicConfig.UploadDir)
	}
	if cfg.BasicConfig.StaticDir != filepath.Join(dir, "public") {
		t.Fatalf("static_dir = %q", cfg.BasicConfig.StaticDir)
	}
	if cfg.Database.DSN != filepath.Join(dir, "audit.db") {
		t.Fatalf("dsn = %q", cfg.Database.DSN)
	}
	if cfg.MaxUploadBytes() != 5<<20 {
		t.Fatalf("max upload bytes = %d", cfg.MaxUploadBytes())
	}
	if cfg.BasicConfig.MaxConcurrent != 8 {
		t.Fatalf("defaults not kept: %+v", cfg.BasicConfig)
	}
}

func TestLoadMissingDefaultUsesDefaults(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("PORT", "")
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.BasicConfig.ServerAddress != ":3000" || cfg.MaxUploadBytes() != 30<<20 {
		t.Fatalf("unexpected defaults %+v", cfg.BasicConfig)
	}
}

func TestLoadMissingExplicitPath(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.json")); err == nil {
		t.Fatal("expected error for missing explicit config")
	}
}

func TestLoadPortOverride(t *testing.T) {
	t.Setenv("PORT", "8081")
	cfg, err := Load(writeConfig(t, `{}`))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.BasicConfig.ServerAddress != ":8081" {
		t.Fatalf("server_address = %q", cfg.BasicConfig.ServerAddress)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	cases := map[string]string{
		"driver":   `{"database": {"driver": "postgres"}}`,
		"size":     `{"basic_config": {"max_upload_mb": -1}}`,
		"provider": `{"abstract": {"provider": "openai"}}`,
		"json":     `{"basic_config": `,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := Load(writeConfig(t, body)); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}
