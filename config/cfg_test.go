package config

import (
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/rupor-github/gencfg"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}
	return path
}

func TestLoadConfiguration_NoFile(t *testing.T) {
	cfg, err := LoadConfiguration("")
	if err != nil {
		t.Fatalf("LoadConfiguration() with empty path error = %v", err)
	}
	if cfg == nil {
		t.Fatal("LoadConfiguration() returned nil config")
	}
	if cfg.Version != 1 {
		t.Errorf("Default config version = %d, want 1", cfg.Version)
	}
}

func TestConfig_DefaultValues(t *testing.T) {
	cfg, err := LoadConfiguration("")
	if err != nil {
		t.Fatalf("LoadConfiguration() error = %v", err)
	}

	e := cfg.Engine
	if e.SelectorCacheSize != 50 {
		t.Errorf("SelectorCacheSize = %d, want 50", e.SelectorCacheSize)
	}
	if e.ApplyDelay != 100*time.Millisecond {
		t.Errorf("ApplyDelay = %v, want 100ms", e.ApplyDelay)
	}
	if e.ProtectionLimit != 50 || e.RemovalLimit != 50 {
		t.Errorf("limits = %d/%d, want 50/50", e.ProtectionLimit, e.RemovalLimit)
	}
	if e.IgnoredMutations.Timeout != 10*time.Millisecond {
		t.Errorf("IgnoredMutations.Timeout = %v, want 10ms", e.IgnoredMutations.Timeout)
	}
	want := []string{"mouseover", "mouseleave", "mouseenter", "mouseout"}
	if !slices.Equal(e.IgnoredMutations.Events, want) {
		t.Errorf("IgnoredMutations.Events = %v, want %v", e.IgnoredMutations.Events, want)
	}
	if cfg.Logging.FileLogger.Level != "none" {
		t.Errorf("file logger level = %q, want none", cfg.Logging.FileLogger.Level)
	}
}

func TestLoadConfiguration_WithFile(t *testing.T) {
	path := writeConfig(t, `version: 1
engine:
  apply_delay: 250ms
  protection_limit: 5
  ignored_mutations:
    events: [mouseover]
logging:
  console:
    level: debug
reporting:
  destination: /tmp/test-report.zip
`)

	cfg, err := LoadConfiguration(path)
	if err != nil {
		t.Fatalf("LoadConfiguration() error = %v", err)
	}

	if cfg.Engine.ApplyDelay != 250*time.Millisecond {
		t.Errorf("ApplyDelay = %v, want 250ms", cfg.Engine.ApplyDelay)
	}
	if cfg.Engine.ProtectionLimit != 5 {
		t.Errorf("ProtectionLimit = %d, want 5", cfg.Engine.ProtectionLimit)
	}
	if !slices.Equal(cfg.Engine.IgnoredMutations.Events, []string{"mouseover"}) {
		t.Errorf("Events = %v, want [mouseover]", cfg.Engine.IgnoredMutations.Events)
	}
	if cfg.Logging.ConsoleLogger.Level != "debug" {
		t.Errorf("console level = %q, want debug", cfg.Logging.ConsoleLogger.Level)
	}
}

func TestLoadConfiguration_MergeWithDefaults(t *testing.T) {
	path := writeConfig(t, `version: 1
engine:
  removal_limit: 3
`)

	cfg, err := LoadConfiguration(path)
	if err != nil {
		t.Fatalf("LoadConfiguration() error = %v", err)
	}
	if cfg.Engine.RemovalLimit != 3 {
		t.Errorf("RemovalLimit = %d, want 3", cfg.Engine.RemovalLimit)
	}
	// values absent from file keep defaults
	if cfg.Engine.ProtectionLimit != 50 {
		t.Errorf("ProtectionLimit = %d, want default 50", cfg.Engine.ProtectionLimit)
	}
	if cfg.Engine.IgnoredMutations.Timeout != 10*time.Millisecond {
		t.Errorf("Timeout = %v, want default 10ms", cfg.Engine.IgnoredMutations.Timeout)
	}
}

func TestLoadConfiguration_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"invalid yaml", "version: 1\nengine:\n  apply_delay: 1s\n  invalid indent\n"},
		{"unknown field", "version: 1\nunknown_field: value\n"},
		{"unknown engine field", "version: 1\nengine:\n  turbo: true\n"},
		{"invalid version", "version: 2\n"},
		{"zero protection limit", "version: 1\nengine:\n  protection_limit: 0\n"},
		{"negative delay", "version: 1\nengine:\n  apply_delay: -1s\n"},
		{"bad duration", "version: 1\nengine:\n  apply_delay: soon\n"},
		{"empty event", "version: 1\nengine:\n  ignored_mutations:\n    events: [mouseover, '']\n"},
		{"bad console level", "version: 1\nlogging:\n  console:\n    level: loud\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := LoadConfiguration(writeConfig(t, tt.content)); err == nil {
				t.Error("Expected error")
			}
		})
	}
}

func TestLoadConfiguration_NonExistentFile(t *testing.T) {
	_, err := LoadConfiguration("/nonexistent/config.yaml")
	if err == nil {
		t.Error("Expected error for nonexistent file")
	}
}

func TestLoadConfiguration_WithOptions(t *testing.T) {
	option := func(opts *gencfg.ProcessingOptions) {
		// Options are opaque, just test that we can pass them
	}

	cfg, err := LoadConfiguration("", option)
	if err != nil {
		t.Fatalf("LoadConfiguration() with options error = %v", err)
	}
	if cfg == nil {
		t.Fatal("LoadConfiguration() returned nil config")
	}
}

func TestPrepare(t *testing.T) {
	data, err := Prepare()
	if err != nil {
		t.Fatalf("Prepare() error = %v", err)
	}
	if len(data) == 0 {
		t.Error("Prepare() returned empty data")
	}

	// Verify it's valid YAML by trying to unmarshal
	if _, err = unmarshalConfig(data, &Config{}, true); err != nil {
		t.Errorf("Prepared config is not valid: %v", err)
	}
}

func TestDump(t *testing.T) {
	cfg, err := LoadConfiguration("")
	if err != nil {
		t.Fatalf("LoadConfiguration() error = %v", err)
	}
	cfg.Engine.ApplyDelay = 2 * time.Second

	data, err := Dump(cfg)
	if err != nil {
		t.Fatalf("Dump() error = %v", err)
	}
	if !strings.Contains(string(data), "apply_delay: 2s") {
		t.Errorf("durations must be dumped in readable form:\n%s", data)
	}

	// Verify we can load it back
	cfg2, err := unmarshalConfig(data, &Config{}, true)
	if err != nil {
		t.Fatalf("Dumped config cannot be loaded: %v", err)
	}
	if cfg2.Engine.ApplyDelay != cfg.Engine.ApplyDelay {
		t.Errorf("ApplyDelay mismatch after dump/load: got %v, want %v", cfg2.Engine.ApplyDelay, cfg.Engine.ApplyDelay)
	}
}

func TestUnmarshalConfig(t *testing.T) {
	t.Run("valid config without processing", func(t *testing.T) {
		result, err := unmarshalConfig([]byte(`version: 1`), &Config{}, false)
		if err != nil {
			t.Errorf("unmarshalConfig() error = %v", err)
		}
		if result == nil {
			t.Fatal("unmarshalConfig() returned nil")
		}
		if result.Version != 1 {
			t.Errorf("Version = %d, want 1", result.Version)
		}
	})

	t.Run("invalid yaml", func(t *testing.T) {
		if _, err := unmarshalConfig([]byte(`invalid: [yaml`), &Config{}, false); err == nil {
			t.Error("Expected error for invalid YAML")
		}
	})
}

func TestUnmarshalConfig_WrapsValidationError(t *testing.T) {
	_, err := unmarshalConfig([]byte("version: 99\n"), &Config{}, true)
	if err == nil {
		t.Fatal("expected validation error, got nil")
	}
	if !strings.Contains(err.Error(), "validat") {
		t.Errorf("expected error to mention validation, got: %v", err)
	}
	if errors.Unwrap(err) == nil {
		t.Errorf("expected wrapped error (errors.Unwrap non-nil), got bare error: %v", err)
	}
}

func TestCleanFileName(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"page.html", "page.html"},
		{"..hidden", "hidden"},
		{"dir" + string(os.PathSeparator) + "page.html", "dirpage.html"},
		{string(os.PathSeparator), "_bad_file_name_"},
		{"", "_bad_file_name_"},
	}
	for _, tt := range tests {
		if got := CleanFileName(tt.in); got != tt.want {
			t.Errorf("CleanFileName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
