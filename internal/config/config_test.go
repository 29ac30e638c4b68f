package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadMissingFileYieldsDefaults(t *testing.T) {
	dir := t.TempDir()

	config, err := LoadMainConfig(filepath.Join(dir, "missing.yaml"))
	if err != nil {
		t.Fatalf("LoadMainConfig: %v", err)
	}

	want := DefaultMainConfig()
	if *config != *want {
		t.Errorf("config = %+v, want defaults %+v", *config, *want)
	}
	if config.Encoding != "latin-1" || config.MaxConcurrency != 4 || config.LogLevel != "info" {
		t.Errorf("unexpected defaults: %+v", *config)
	}
}

func TestLoadMainConfig(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "config.yaml", `
input_dir: /data/sped/in
output_dir: /data/sped/out
log_level: DEBUG
max_concurrency: 2
encoding: cp1252
archive_on_success: true
output_name_format: "{uuid}"
`)

	config, err := LoadMainConfig(path)
	if err != nil {
		t.Fatalf("LoadMainConfig: %v", err)
	}

	if config.InputDir != "/data/sped/in" || config.OutputDir != "/data/sped/out" {
		t.Errorf("dirs = %q, %q", config.InputDir, config.OutputDir)
	}
	if config.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, want normalized debug", config.LogLevel)
	}
	if config.MaxConcurrency != 2 || config.Encoding != "cp1252" || !config.ArchiveOnSuccess {
		t.Errorf("config = %+v", *config)
	}
	if config.LogDir != "./logs" {
		t.Errorf("LogDir default not applied: %q", config.LogDir)
	}
}

func TestLoadMainConfigInvalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{"bad yaml", "input_dir: [unclosed", "parse"},
		{"negative concurrency", "max_concurrency: -1", "max_concurrency"},
		{"unknown level", "log_level: chatty", "log_level"},
		{"unknown encoding", "encoding: ebcdic", "encoding"},
		{"ambiguous names", `output_name_format: "{original}"`, "output_name_format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, t.TempDir(), "config.yaml", tt.content)
			_, err := LoadMainConfig(path)
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("err = %v, want mention of %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "config.yaml", "input_dir: /from/yaml\nmax_concurrency: 8\n")
	envFile := writeFile(t, dir, "test.env", "SPED_OUTPUT_DIR=/from/envfile\nSPED_MAX_CONCURRENCY=3\n")

	t.Setenv(EnvInputDir, "/from/env")
	// godotenv does not override variables that are already set; clear the
	// ones the env file provides so the file wins.
	t.Setenv(EnvOutputDir, "")
	t.Setenv(EnvMaxConcurrency, "")
	os.Unsetenv(EnvOutputDir)
	os.Unsetenv(EnvMaxConcurrency)

	config, err := Load(path, envFile)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if config.InputDir != "/from/env" {
		t.Errorf("InputDir = %q, want environment value", config.InputDir)
	}
	if config.OutputDir != "/from/envfile" {
		t.Errorf("OutputDir = %q, want env file value", config.OutputDir)
	}
	if config.MaxConcurrency != 3 {
		t.Errorf("MaxConcurrency = %d, want 3", config.MaxConcurrency)
	}
}

func TestLoadEnvErrors(t *testing.T) {
	dir := t.TempDir()

	if _, err := Load("", filepath.Join(dir, "missing.env")); err == nil {
		t.Error("missing explicit env file accepted")
	}

	t.Setenv(EnvMaxConcurrency, "many")
	if _, err := Load("", ""); err == nil || !strings.Contains(err.Error(), EnvMaxConcurrency) {
		t.Errorf("bad %s err = %v", EnvMaxConcurrency, err)
	}
}
