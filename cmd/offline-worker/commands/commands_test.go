package commands

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestVersionCommand(t *testing.T) {
	var out bytes.Buffer
	root := GetRootCmd()
	root.SetOut(&out)
	root.SetArgs([]string{"version"})
	if err := root.Execute(); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if !strings.HasPrefix(out.String(), "offline-worker ") {
		t.Fatalf("unexpected output %q", out.String())
	}
}

func TestValidateCommand(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "worker.json")
	data := `{"origin":"https://site.test","version":"v7"}`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	var out bytes.Buffer
	root := GetRootCmd()
	root.SetOut(&out)
	root.SetArgs([]string{"validate", "--config", path, "--env-file", filepath.Join(dir, "missing.env")})
	if err := root.Execute(); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if !strings.Contains(out.String(), "version v7") {
		t.Fatalf("unexpected output %q", out.String())
	}
}

func TestValidateCommandRejectsBadConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "worker.json")
	if err := os.WriteFile(path, []byte(`{"origin":"not a url"}`), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	root := GetRootCmd()
	root.SetArgs([]string{"validate", "--config", path, "--env-file", ""})
	if err := root.Execute(); err == nil {
		t.Fatalf("expected validation error")
	}
}
