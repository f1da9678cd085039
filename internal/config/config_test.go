package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{"DATABASE_URL", "OLLAMA_HOST", "OPENAI_API_KEY", "BAKEASSIST_CONFIG"} {
		t.Setenv(k, "")
	}
}

func TestDefaultValidates(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
}

func TestLoadFileMissingReturnsDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Port != 5000 {
		t.Fatalf("expected default port 5000, got %d", cfg.Server.Port)
	}
	if cfg.Model.Timeout != 90*time.Second {
		t.Fatalf("expected 90s model timeout, got %s", cfg.Model.Timeout)
	}
	if cfg.Model.Provider != "ollama" || cfg.Model.Name != "deepseek-r1" {
		t.Fatalf("unexpected model defaults: %+v", cfg.Model)
	}
}

func TestLoadFileReadsYAML(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "bakeassist.yaml")
	body := "server:\n  port: 8080\nmodel:\n  timeout: 30s\ntools:\n  timeout: 2s\n"
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Port != 8080 {
		t.Fatalf("expected port 8080, got %d", cfg.Server.Port)
	}
	if cfg.Model.Timeout != 30*time.Second {
		t.Fatalf("expected 30s, got %s", cfg.Model.Timeout)
	}
	if cfg.Tools.Timeout != 2*time.Second {
		t.Fatalf("expected 2s tool timeout, got %s", cfg.Tools.Timeout)
	}
	if cfg.Database.QueryTimeout != 5*time.Second {
		t.Fatalf("unset keys should keep defaults, got %s", cfg.Database.QueryTimeout)
	}
}

func TestLoadFileEnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("BAKEASSIST_MODEL_NAME", "llama3.2")
	t.Setenv("BAKEASSIST_RATE_LIMIT_REQUESTS", "7")
	t.Setenv("DATABASE_URL", "postgres://example/db")
	t.Setenv("OLLAMA_HOST", "gpu-box:11434")

	cfg, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Model.Name != "llama3.2" {
		t.Fatalf("expected env model name, got %s", cfg.Model.Name)
	}
	if cfg.RateLimit.Requests != 7 {
		t.Fatalf("expected 7 requests, got %d", cfg.RateLimit.Requests)
	}
	if cfg.Database.URL != "postgres://example/db" {
		t.Fatalf("expected DATABASE_URL override, got %s", cfg.Database.URL)
	}
	if cfg.Model.BaseURL != "http://gpu-box:11434" {
		t.Fatalf("expected OLLAMA_HOST override, got %s", cfg.Model.BaseURL)
	}
}

func TestLoadFileRejectsInvalid(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "bakeassist.yaml")
	if err := os.WriteFile(path, []byte("rate_limit:\n  backend: memcached\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	_, err := LoadFile(path)
	if err == nil {
		t.Fatal("expected validation error")
	}
	if !strings.Contains(err.Error(), "Backend") {
		t.Fatalf("expected error to name the field, got %v", err)
	}
}

func TestMarshalYAML(t *testing.T) {
	data, err := Marshal(Default())
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	out := string(data)
	for _, want := range []string{"server:", "database:", "rate_limit:", "provider: ollama"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in output:\n%s", want, out)
		}
	}
}
