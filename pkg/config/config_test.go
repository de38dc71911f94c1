package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

type sample struct {
	Name  string `yaml:"name"`
	Limit int    `yaml:"limit"`
}

func (s *sample) Validate() error {
	if s.Limit < 0 {
		return errors.New("limit must not be negative")
	}
	return nil
}

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadExpandsEnvAndKeepsDefaults(t *testing.T) {
	t.Setenv("SAMPLE_NAME", "board")
	cfg := sample{Limit: 7}
	if err := Load(writeFile(t, "name: ${SAMPLE_NAME}\n"), &cfg); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Name != "board" || cfg.Limit != 7 {
		t.Errorf("cfg = %+v", cfg)
	}
}

func TestLoadValidates(t *testing.T) {
	cfg := sample{}
	if err := Load(writeFile(t, "limit: -1\n"), &cfg); err == nil {
		t.Fatal("expected validation error")
	}
}

func TestLoadMissingFile(t *testing.T) {
	cfg := sample{}
	if err := Load(filepath.Join(t.TempDir(), "nope.yaml"), &cfg); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("err = %v, want ErrNotExist", err)
	}
}

func TestLoadOptional(t *testing.T) {
	cfg := sample{Limit: 3}
	loaded, err := LoadOptional(filepath.Join(t.TempDir(), "nope.yaml"), &cfg)
	if err != nil || loaded {
		t.Fatalf("missing file: loaded=%v err=%v", loaded, err)
	}
	if cfg.Limit != 3 {
		t.Errorf("defaults changed: %+v", cfg)
	}

	loaded, err = LoadOptional(writeFile(t, "limit: 9\n"), &cfg)
	if err != nil || !loaded || cfg.Limit != 9 {
		t.Fatalf("present file: loaded=%v err=%v cfg=%+v", loaded, err, cfg)
	}
}
