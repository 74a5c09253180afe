package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadFromReader_UnknownFieldRejected(t *testing.T) {
	yaml := `
providers:
  llm:
    name: openai
srver:
  listen_addr: ":8080"
`
	_, err := LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("LoadFromReader accepted a misspelled top-level key")
	}
}

func TestLoadFromReader_MalformedYAML(t *testing.T) {
	_, err := LoadFromReader(strings.NewReader("server: [not: a: mapping"))
	if err == nil {
		t.Fatal("LoadFromReader accepted malformed YAML")
	}
}

func TestLoad_File(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "jarvis.yaml")
	if err := os.WriteFile(path, []byte(fullConfigYAML), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.ListenAddr != ":8080" {
		t.Errorf("ListenAddr = %q, want %q", cfg.Server.ListenAddr, ":8080")
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err == nil {
		t.Fatal("Load accepted a missing file")
	}
	if !strings.Contains(err.Error(), "open") {
		t.Errorf("error %q does not mention open failure", err)
	}
}

func TestLoad_InvalidConfigRejected(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "jarvis.yaml")
	yaml := `
providers:
  llm:
    name: openai
server:
  log_level: loud
`
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("Load accepted an invalid config")
	}
}
