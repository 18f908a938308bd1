package config

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	warnings, err := Validate(&cfg)
	if err != nil {
		t.Fatalf("default config rejected: %v", err)
	}
	if len(warnings) != 0 {
		t.Fatalf("unexpected warnings %v", warnings)
	}
	if cfg.StaticGeneration() != "static-v1" || cfg.DynamicGeneration() != "dynamic-v1" {
		t.Fatalf("unexpected generation names %q %q", cfg.StaticGeneration(), cfg.DynamicGeneration())
	}
	if !cfg.DeleteForeignGenerations() {
		t.Fatalf("expected delete_foreign to default to true")
	}
}

func TestParseJSONOverlaysDefaults(t *testing.T) {
	cfg, err := ParseJSON([]byte(`{"origin":"https://site.example","version":"2024-06-01","manifest":["/","/offline.css"]}`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cfg.Origin != "https://site.example" {
		t.Fatalf("origin not applied: %q", cfg.Origin)
	}
	if len(cfg.Manifest) != 2 {
		t.Fatalf("manifest should be replaced, got %v", cfg.Manifest)
	}
	if cfg.Generations.StaticRole != DefaultStaticRole {
		t.Fatalf("defaults lost: %q", cfg.Generations.StaticRole)
	}
	if len(cfg.Routes.APIPrefixes) == 0 {
		t.Fatalf("default api prefixes lost")
	}
}

func TestValidateRejects(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"missing origin", func(c *Config) { c.Origin = "" }, "Origin"},
		{"origin scheme", func(c *Config) { c.Origin = "ftp://site.example" }, "http or https"},
		{"origin path", func(c *Config) { c.Origin = "https://site.example/app" }, "must not include a path"},
		{"version with slash", func(c *Config) { c.Version = "v1/evil" }, "Version"},
		{"empty manifest", func(c *Config) { c.Manifest = nil }, "Manifest"},
		{"relative manifest", func(c *Config) { c.Manifest = []string{"icons/a.png"} }, "manifest entry"},
		{"duplicate manifest", func(c *Config) { c.Manifest = []string{"/", "/"} }, "listed twice"},
		{"same roles", func(c *Config) { c.Generations.DynamicRole = c.Generations.StaticRole }, "DynamicRole"},
		{"unknown driver", func(c *Config) { c.Storage.Driver = "sqlite" }, "Driver"},
		{"badger without path", func(c *Config) { c.Storage.Driver = "badger" }, "storage.path"},
		{"redis without addr", func(c *Config) { c.Storage.Driver = "redis" }, "storage.redis_addr"},
		{"bad schedule", func(c *Config) { c.Sync.Schedule = "every so often" }, "sync.schedule"},
		{"relative cdn", func(c *Config) { c.Routes.ImageCDNOrigins = []string{"images"} }, "image_cdn_origins"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(&cfg)
			_, err := Validate(&cfg)
			if err == nil {
				t.Fatalf("expected error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected error containing %q, got %v", tc.want, err)
			}
		})
	}
}

func TestValidateWarnings(t *testing.T) {
	cfg := Default()
	cfg.Routes.APIPrefixes = nil
	cfg.Storage.MaxObjectBytes = 200 * 1024 * 1024
	warnings, err := Validate(&cfg)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if len(warnings) != 2 {
		t.Fatalf("expected 2 warnings, got %v", warnings)
	}
}

func TestLoadFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "worker.yaml")
	data := []byte("origin: https://site.example\nversion: v7\nroutes:\n  api_prefixes:\n    - /graphql\n")
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	t.Setenv("OFFLINE_WORKER_STORAGE_DRIVER", "badger")
	t.Setenv("OFFLINE_WORKER_STORAGE_IN_MEMORY", "true")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Version != "v7" || cfg.Origin != "https://site.example" {
		t.Fatalf("file values not applied: %+v", cfg)
	}
	if len(cfg.Routes.APIPrefixes) != 1 || cfg.Routes.APIPrefixes[0] != "/graphql" {
		t.Fatalf("unexpected api prefixes %v", cfg.Routes.APIPrefixes)
	}
	if cfg.Storage.Driver != "badger" || !cfg.Storage.InMemory {
		t.Fatalf("env overrides not applied: %+v", cfg.Storage)
	}
	if len(cfg.Manifest) != 4 {
		t.Fatalf("default manifest lost: %v", cfg.Manifest)
	}
	if _, err := Validate(cfg); err != nil {
		t.Fatalf("validate: %v", err)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func TestWatchReloadsOnChange(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "worker.json")
	if err := os.WriteFile(path, []byte(`{"origin":"https://site.example","version":"v1"}`), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	versions := make(chan string, 4)
	if err := Watch(ctx, path, func(cfg *Config) { versions <- cfg.Version }); err != nil {
		t.Fatalf("watch: %v", err)
	}

	if err := os.WriteFile(path, []byte(`{"origin":"https://site.example","version":"v2"}`), 0o600); err != nil {
		t.Fatalf("rewrite: %v", err)
	}

	select {
	case version := <-versions:
		if version != "v2" {
			t.Fatalf("expected v2, got %q", version)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("watch callback not invoked")
	}
}
