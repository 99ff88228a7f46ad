package main

import (
	"os"
	"path/filepath"
	"testing"
)

func TestRunMissingConfigFile(t *testing.T) {
	err := run([]string{"-config", filepath.Join(t.TempDir(), "does-not-exist.yaml")})
	if err == nil {
		t.Fatal("expected an error for a missing config file")
	}
}

func TestRunInvalidConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "gateway.yaml")
	if err := os.WriteFile(path, []byte("gateway:\n  addr: \":4000\"\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if err := run([]string{"-config", path}); err == nil {
		t.Fatal("expected an error for a config with no graph source")
	}
}
