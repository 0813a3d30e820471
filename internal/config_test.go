package internal

import (
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"

	pkgconfig "github.com/starford/orgstate/pkg/config"
)

func TestAuthConfig_DisabledMode(t *testing.T) {
	cfg := AuthConfig{Mode: "disabled", Token: ""}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("disabled mode should pass: %v", err)
	}
	if cfg.AuthEnabled() {
		t.Error("disabled mode should not be enabled")
	}
}

func TestAuthConfig_EmptyModeDefaultsDisabled(t *testing.T) {
	cfg := AuthConfig{Mode: "", Token: ""}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("empty mode should default to disabled: %v", err)
	}
	if cfg.Mode != AuthModeDisabled {
		t.Errorf("mode = %q, want %q", cfg.Mode, AuthModeDisabled)
	}
}

func TestAuthConfig_TokenModeValid(t *testing.T) {
	cfg := AuthConfig{Mode: "token", Token: "mysecret"}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("token mode with token should pass: %v", err)
	}
	if !cfg.AuthEnabled() {
		t.Error("token mode should be enabled")
	}
}

func TestAuthConfig_TokenModeEmptyToken(t *testing.T) {
	cfg := AuthConfig{Mode: "token", Token: ""}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("token mode with empty token should fail")
	}
	if !strings.Contains(err.Error(), "token is empty") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestAuthConfig_InvalidMode(t *testing.T) {
	cfg := AuthConfig{Mode: "magic", Token: "x"}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("invalid mode should fail validation")
	}
}

func TestFullConfig_AuthValidationCalled(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Auth.Mode = "token"
	cfg.Auth.Token = ""
	err := cfg.Validate()
	if err == nil {
		t.Fatal("full config validate should catch auth error")
	}
}

func TestDefaultConfig_Valid(t *testing.T) {
	cfg := NewDefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
	if cfg.Gate.Protocol != ProtocolJSON || cfg.Hook.StdinTimeout != 2*time.Second {
		t.Errorf("gate = %+v, hook = %+v", cfg.Gate, cfg.Hook)
	}
}

func TestGateConfig_Protocol(t *testing.T) {
	cfg := NewDefaultConfig().Gate
	cfg.Protocol = ""
	if err := cfg.Validate(); err != nil || cfg.Protocol != ProtocolJSON {
		t.Errorf("empty protocol: err = %v, protocol = %q", err, cfg.Protocol)
	}
	cfg.Protocol = "smoke-signal"
	if err := cfg.Validate(); err == nil {
		t.Error("unknown protocol should fail validation")
	}
}

func TestOrgConfig_Extension(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Org.Extension = "md"
	if err := cfg.Validate(); err == nil {
		t.Error("extension without a dot should fail")
	}
}

func TestScanOptions_ExcludesArtifacts(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Generate.TagDir = "generated/tags/"
	cfg.Generate.DashboardPath = "boards/main.md"

	opts := cfg.ScanOptions()
	if !slices.Contains(opts.ExcludeDirs, "generated/tags") {
		t.Errorf("exclude dirs = %v", opts.ExcludeDirs)
	}
	if !slices.Contains(opts.ExcludeFiles, "boards/main.md") {
		t.Errorf("exclude files = %v", opts.ExcludeFiles)
	}
	if slices.Contains(cfg.Org.ExcludeDirs, "generated/tags") {
		t.Error("ScanOptions must not modify the config")
	}
}

func TestLoad_YAMLOverridesDefaults(t *testing.T) {
	t.Setenv("ORG_HOME", "/srv/org")
	p := filepath.Join(t.TempDir(), "config.yaml")
	yaml := `app:
  log_level: debug
org:
  root: ${ORG_HOME}
gate:
  protocol: exit-code
hook:
  stdin_timeout: 500ms
inbox:
  folders:
    letters: email
`
	if err := os.WriteFile(p, []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := NewDefaultConfig()
	if err := pkgconfig.Load(p, cfg); err != nil {
		t.Fatal(err)
	}
	if cfg.App.LogLevel != slog.LevelDebug {
		t.Errorf("log level = %v", cfg.App.LogLevel)
	}
	if cfg.Org.Root != "/srv/org" || cfg.Org.Extension != ".md" {
		t.Errorf("org = %+v", cfg.Org)
	}
	if cfg.Gate.Protocol != ProtocolExitCode || cfg.Gate.Sentinel != "No maintenance needed" {
		t.Errorf("gate = %+v", cfg.Gate)
	}
	if cfg.Hook.StdinTimeout != 500*time.Millisecond {
		t.Errorf("stdin timeout = %v", cfg.Hook.StdinTimeout)
	}
	if cfg.Inbox.Folders["letters"] != "email" {
		t.Errorf("folders = %v", cfg.Inbox.Folders)
	}
}
