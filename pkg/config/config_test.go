package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

type sample struct {
	Name string `yaml:"name"`
	Port int    `yaml:"port"`
}

func (s *sample) Validate() error {
	if s.Port <= 0 {
		return errors.New("port must be positive")
	}
	return nil
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestLoad_ExpandsEnvAndKeepsDefaults(t *testing.T) {
	t.Setenv("SAMPLE_NAME", "from-env")
	p := writeConfig(t, "name: ${SAMPLE_NAME}\n")

	cfg := sample{Port: 8080}
	if err := Load(p, &cfg); err != nil {
		t.Fatal(err)
	}
	if cfg.Name != "from-env" || cfg.Port != 8080 {
		t.Errorf("cfg = %+v", cfg)
	}
}

func TestLoad_ValidationError(t *testing.T) {
	p := writeConfig(t, "port: -1\n")
	cfg := sample{}
	err := Load(p, &cfg)
	if err == nil || !strings.Contains(err.Error(), "config validation failed") {
		t.Errorf("err = %v", err)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	cfg := sample{Port: 1}
	if err := Load(filepath.Join(t.TempDir(), "none.yaml"), &cfg); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("err = %v, want ErrNotExist", err)
	}
}

func TestLoadIfExists_MissingFileKeepsDefaults(t *testing.T) {
	cfg := sample{Name: "default", Port: 9000}
	loaded, err := LoadIfExists(filepath.Join(t.TempDir(), "none.yaml"), &cfg)
	if err != nil || loaded {
		t.Fatalf("loaded = %v, err = %v", loaded, err)
	}
	if cfg.Name != "default" || cfg.Port != 9000 {
		t.Errorf("cfg = %+v", cfg)
	}
}

func TestLoadIfExists_MissingFileStillValidates(t *testing.T) {
	cfg := sample{}
	if _, err := LoadIfExists(filepath.Join(t.TempDir(), "none.yaml"), &cfg); err == nil {
		t.Error("defaults must be validated too")
	}
}

func TestLoadIfExists_ParseError(t *testing.T) {
	p := writeConfig(t, "name: [unterminated\n")
	cfg := sample{Port: 1}
	if loaded, err := LoadIfExists(p, &cfg); err == nil || loaded {
		t.Errorf("loaded = %v, err = %v", loaded, err)
	}
}

func TestLoad_UnknownKeyRejected(t *testing.T) {
	p := writeConfig(t, "port: 80\nprot: 81\n")
	cfg := sample{}
	if err := Load(p, &cfg); err == nil || !strings.Contains(err.Error(), "prot") {
		t.Errorf("err = %v, want unknown field error", err)
	}
}

func TestLoad_EmptyFileKeepsDefaults(t *testing.T) {
	p := writeConfig(t, "")
	cfg := sample{Name: "default", Port: 1}
	if err := Load(p, &cfg); err != nil {
		t.Fatal(err)
	}
	if cfg.Name != "default" {
		t.Errorf("cfg = %+v", cfg)
	}
}

func TestExpandEnv_Fallback(t *testing.T) {
	t.Setenv("SAMPLE_SET", "value")
	t.Setenv("SAMPLE_EMPTY", "")
	cases := map[string]string{
		"${SAMPLE_SET:-other}":      "value",
		"${SAMPLE_EMPTY:-other}":    "other",
		"${SAMPLE_UNSET:-~/org}":    "~/org",
		"$SAMPLE_SET/${SAMPLE_SET}": "value/value",
		"${SAMPLE_UNSET}":           "",
	}
	for in, want := range cases {
		if got := ExpandEnv(in); got != want {
			t.Errorf("ExpandEnv(%q) = %q, want %q", in, got, want)
		}
	}
}
