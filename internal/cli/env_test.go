package cli

import (
	"flag"
	"os"
	"path/filepath"
	"testing"
)

func TestEnvLoaderLoadsRequestedFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pipeline.env")
	if err := os.WriteFile(path, []byte("ALLBALL_TEST_MAX_PER_SOURCE=7\n"), 0o600); err != nil {
		t.Fatalf("write env file: %v", err)
	}
	t.Setenv(EnvFileOverrideVar, "")
	t.Setenv("ALLBALL_TEST_MAX_PER_SOURCE", "")

	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	loader := AddEnvFlag(fs, ".env", "")
	if err := fs.Parse([]string{"--env", path}); err != nil {
		t.Fatalf("parse flags: %v", err)
	}

	loaded, err := loader.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if loaded != path {
		t.Fatalf("loaded = %q, want %q", loaded, path)
	}
	if got := os.Getenv("ALLBALL_TEST_MAX_PER_SOURCE"); got != "7" {
		t.Fatalf("ALLBALL_TEST_MAX_PER_SOURCE = %q, want 7", got)
	}
}

func TestEnvLoaderReportsMissingFile(t *testing.T) {
	t.Setenv(EnvFileOverrideVar, "")

	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	loader := AddEnvFlag(fs, filepath.Join(t.TempDir(), "missing.env"), "")
	if err := fs.Parse(nil); err != nil {
		t.Fatalf("parse flags: %v", err)
	}
	if _, err := loader.Load(); err == nil {
		t.Fatalf("expected error for missing env file")
	}
}
