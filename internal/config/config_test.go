package config

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/spf13/cobra"
)

// testOptions mirrors the shape of the CLI options struct.
type testOptions struct {
	Config string

	MaxParallel  int           `toml:"pool.max_parallel" env:"MAX_PARALLEL"`
	Timeout      time.Duration `toml:"pool.timeout" env:"TIMEOUT"`
	PollInterval time.Duration `toml:"pool.poll_interval" env:"POLL_INTERVAL"`
	Strategy     string        `toml:"run.strategy" env:"STRATEGY"`
	Progress     bool          `toml:"run.progress" env:"PROGRESS"`
	Tags         []string      `toml:"run.tags" env:"TAGS"`
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "multirunner.toml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}
	return path
}

func TestLoadConfigFromTOML(t *testing.T) {
	path := writeConfig(t, `
[pool]
max_parallel = 8
timeout = "1m30s"
poll_interval = 0.5

[run]
strategy = "first"
progress = true
tags = ["a", "b"]
`)

	opts := &testOptions{Config: path}
	if err := LoadConfig(opts, nil); err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if opts.MaxParallel != 8 {
		t.Errorf("MaxParallel = %d, want 8", opts.MaxParallel)
	}
	if opts.Timeout != 90*time.Second {
		t.Errorf("Timeout = %v, want 1m30s", opts.Timeout)
	}
	if opts.PollInterval != 500*time.Millisecond {
		t.Errorf("PollInterval = %v, want 500ms", opts.PollInterval)
	}
	if opts.Strategy != "first" {
		t.Errorf("Strategy = %q, want first", opts.Strategy)
	}
	if !opts.Progress {
		t.Error("Progress = false, want true")
	}
	if !reflect.DeepEqual(opts.Tags, []string{"a", "b"}) {
		t.Errorf("Tags = %v", opts.Tags)
	}
}

func TestLoadConfigIntegerSecondsDuration(t *testing.T) {
	path := writeConfig(t, "[pool]\ntimeout = 45\n")

	opts := &testOptions{Config: path}
	if err := LoadConfig(opts, nil); err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if opts.Timeout != 45*time.Second {
		t.Errorf("Timeout = %v, want 45s", opts.Timeout)
	}
}

func TestLoadConfigFromEnvVars(t *testing.T) {
	t.Setenv("MULTIRUNNER_MAX_PARALLEL", "3")
	t.Setenv("MULTIRUNNER_TIMEOUT", "2s")
	t.Setenv("MULTIRUNNER_STRATEGY", "forget")
	t.Setenv("MULTIRUNNER_PROGRESS", "true")
	t.Setenv("MULTIRUNNER_TAGS", " x , y ")

	opts := &testOptions{}
	if err := LoadConfig(opts, nil); err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if opts.MaxParallel != 3 {
		t.Errorf("MaxParallel = %d, want 3", opts.MaxParallel)
	}
	if opts.Timeout != 2*time.Second {
		t.Errorf("Timeout = %v, want 2s", opts.Timeout)
	}
	if opts.Strategy != "forget" {
		t.Errorf("Strategy = %q, want forget", opts.Strategy)
	}
	if !opts.Progress {
		t.Error("Progress = false, want true")
	}
	if !reflect.DeepEqual(opts.Tags, []string{"x", "y"}) {
		t.Errorf("Tags = %v", opts.Tags)
	}
}

func TestLoadConfigEnvOverridesToml(t *testing.T) {
	path := writeConfig(t, `
[pool]
max_parallel = 8
timeout = "10s"
`)
	t.Setenv("MULTIRUNNER_MAX_PARALLEL", "2")

	opts := &testOptions{Config: path}
	if err := LoadConfig(opts, nil); err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if opts.MaxParallel != 2 {
		t.Errorf("MaxParallel = %d, want 2 (env override)", opts.MaxParallel)
	}
	if opts.Timeout != 10*time.Second {
		t.Errorf("Timeout = %v, want 10s (from TOML)", opts.Timeout)
	}
}

func TestLoadConfigFlagsWin(t *testing.T) {
	path := writeConfig(t, "[pool]\nmax_parallel = 8\ntimeout = \"10s\"\n")
	t.Setenv("MULTIRUNNER_MAX_PARALLEL", "2")
	t.Setenv("MULTIRUNNER_TIMEOUT", "20s")

	opts := &testOptions{Config: path}
	cmd := &cobra.Command{Use: "test"}
	cmd.Flags().IntVar(&opts.MaxParallel, "max-parallel", 1, "")
	cmd.Flags().DurationVar(&opts.Timeout, "timeout", time.Minute, "")
	if err := cmd.Flags().Parse([]string{"--max-parallel", "5"}); err != nil {
		t.Fatal(err)
	}

	if err := LoadConfig(opts, cmd); err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if opts.MaxParallel != 5 {
		t.Errorf("MaxParallel = %d, want 5 (flag)", opts.MaxParallel)
	}
	if opts.Timeout != 20*time.Second {
		t.Errorf("Timeout = %v, want 20s (env over default flag)", opts.Timeout)
	}
}

func TestLoadConfigInvalidValues(t *testing.T) {
	t.Run("env int", func(t *testing.T) {
		t.Setenv("MULTIRUNNER_MAX_PARALLEL", "many")
		if err := LoadConfig(&testOptions{}, nil); err == nil {
			t.Error("expected error for non-numeric MULTIRUNNER_MAX_PARALLEL")
		}
	})
	t.Run("env duration", func(t *testing.T) {
		t.Setenv("MULTIRUNNER_TIMEOUT", "soon")
		if err := LoadConfig(&testOptions{}, nil); err == nil {
			t.Error("expected error for invalid MULTIRUNNER_TIMEOUT")
		}
	})
	t.Run("toml duration", func(t *testing.T) {
		path := writeConfig(t, "[pool]\ntimeout = true\n")
		if err := LoadConfig(&testOptions{Config: path}, nil); err == nil {
			t.Error("expected error for boolean timeout")
		}
	})
	t.Run("toml syntax", func(t *testing.T) {
		path := writeConfig(t, "[pool\ninvalid toml syntax\n")
		if err := LoadConfig(&testOptions{Config: path}, nil); err == nil {
			t.Error("expected error for invalid TOML")
		}
	})
}

func TestLoadConfigMissingFile(t *testing.T) {
	opts := &testOptions{Config: filepath.Join(t.TempDir(), "nonexistent.toml"), MaxParallel: 4}
	if err := LoadConfig(opts, nil); err != nil {
		t.Fatalf("LoadConfig should not fail for missing file: %v", err)
	}
	if opts.MaxParallel != 4 {
		t.Errorf("MaxParallel = %d, want default 4", opts.MaxParallel)
	}
}

func TestGetNestedValue(t *testing.T) {
	data := map[string]any{
		"level1": map[string]any{
			"level2": map[string]any{
				"value": "nested_value",
			},
			"simple": "simple_value",
		},
		"root": "root_value",
	}

	tests := []struct {
		path     string
		expected any
	}{
		{"root", "root_value"},
		{"level1.simple", "simple_value"},
		{"level1.level2.value", "nested_value"},
		{"nonexistent", nil},
		{"level1.nonexistent", nil},
		{"root.child", nil},
	}

	for _, test := range tests {
		result := getNestedValue(data, test.path)
		if result != test.expected {
			t.Errorf("getNestedValue(%q) = %v, expected %v", test.path, result, test.expected)
		}
	}
}

func TestFieldNameToFlag(t *testing.T) {
	tests := map[string]string{
		"MaxParallel":     "max-parallel",
		"Timeout":         "timeout",
		"MetricsTextfile": "metrics-textfile",
		"LoggingLevel":    "logging-level",
	}
	for in, want := range tests {
		if got := fieldNameToFlag(in); got != want {
			t.Errorf("fieldNameToFlag(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestLoadLoggingConfig(t *testing.T) {
	path := writeConfig(t, `
[logging]
level = "warn"
format = "json"
journal = true
pool = "debug"

[logging.modules]
runner = "error"
`)

	cfg := LoadLoggingConfig(path)
	if cfg.Level != "warn" || cfg.Format != "json" || !cfg.Journal {
		t.Errorf("Level = %q, Format = %q, Journal = %v", cfg.Level, cfg.Format, cfg.Journal)
	}
	want := map[string]string{"pool": "debug", "runner": "error"}
	if !reflect.DeepEqual(cfg.Modules, want) {
		t.Errorf("Modules = %v, want %v", cfg.Modules, want)
	}

	defaults := LoadLoggingConfig("")
	if defaults.Level != "info" || defaults.Format != "text" || len(defaults.Modules) != 0 {
		t.Errorf("defaults = %+v", defaults)
	}
}
