package config

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/smazurov/v4l2forward/internal/forward"
	"github.com/spf13/cobra"
)

type testOptions struct {
	Config string

	Device       string   `toml:"forward.device" env:"DEVICE"`
	Count        int      `toml:"forward.count" env:"COUNT"`
	TimeoutMs    int      `toml:"forward.timeout_ms" env:"TIMEOUT_MS"`
	Listen       string   `toml:"server.listen" env:"SERVER_LISTEN"`
	Verbose      bool     `toml:"debug.verbose" env:"VERBOSE"`
	Modules      []string `toml:"debug.modules" env:"MODULES"`
	LoggingLevel string   `toml:"logging.level" env:"LOGGING_LEVEL"`
	LoggingAPI   string   `toml:"logging.api" env:"LOGGING_API"`

	unexported string `toml:"forward.device"`
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "v4l2forward.toml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}
	return path
}

const sampleTOML = `
[forward]
device = "usb-046d_HD_Webcam-video-index0"
count = 120
timeout_ms = 500

[server]
listen = ":8090"

[debug]
verbose = true
modules = ["forward", "v4l2"]

[logging]
level = "debug"
api = "warn"
`

func TestLoadConfigFromTOML(t *testing.T) {
	opts := &testOptions{Config: writeConfig(t, sampleTOML), Device: "0", Count: 4}

	if err := LoadConfig(opts, nil); err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	want := testOptions{
		Config:       opts.Config,
		Device:       "usb-046d_HD_Webcam-video-index0",
		Count:        120,
		TimeoutMs:    500,
		Listen:       ":8090",
		Verbose:      true,
		Modules:      []string{"forward", "v4l2"},
		LoggingLevel: "debug",
		LoggingAPI:   "warn",
	}
	if !reflect.DeepEqual(*opts, want) {
		t.Errorf("Expected %+v, got %+v", want, *opts)
	}
}

func TestLoadConfigPrecedence(t *testing.T) {
	path := writeConfig(t, sampleTOML)
	t.Setenv(EnvPrefix+"COUNT", "30")
	t.Setenv(EnvPrefix+"SERVER_LISTEN", "127.0.0.1:9000")
	t.Setenv(EnvPrefix+"MODULES", "api, metrics")
	t.Setenv(EnvPrefix+"DEVICE", "")

	cmd := &cobra.Command{Use: "test"}
	cmd.Flags().Int("count", 4, "")
	cmd.Flags().String("logging-api", "info", "")
	if err := cmd.Flags().Set("logging-api", "error"); err != nil {
		t.Fatal(err)
	}

	opts := &testOptions{Config: path, Count: 4, LoggingAPI: "error"}
	if err := LoadConfig(opts, cmd); err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	tests := []struct {
		name string
		got  any
		want any
	}{
		{"env beats file", opts.Count, 30},
		{"env string", opts.Listen, "127.0.0.1:9000"},
		{"env slice", opts.Modules, []string{"api", "metrics"}},
		{"empty env ignored", opts.Device, "usb-046d_HD_Webcam-video-index0"},
		{"changed flag kept", opts.LoggingAPI, "error"},
		{"file only", opts.TimeoutMs, 500},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !reflect.DeepEqual(tt.got, tt.want) {
				t.Errorf("Expected %v, got %v", tt.want, tt.got)
			}
		})
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "absent.toml")

	t.Run("default path", func(t *testing.T) {
		opts := &testOptions{Config: missing, Device: "0"}
		if err := LoadConfig(opts, nil); err != nil {
			t.Fatalf("Missing default config should be ignored: %v", err)
		}
		if opts.Device != "0" {
			t.Errorf("Defaults changed: %+v", opts)
		}
	})

	t.Run("explicit path", func(t *testing.T) {
		cmd := &cobra.Command{Use: "test"}
		cmd.Flags().String("config", "", "")
		if err := cmd.Flags().Set("config", missing); err != nil {
			t.Fatal(err)
		}
		err := LoadConfig(&testOptions{Config: missing}, cmd)
		var cfgErr *forward.ConfigurationError
		if !errors.As(err, &cfgErr) || cfgErr.Field != "config" {
			t.Fatalf("Missing explicit config should fail with a config error, got %v", err)
		}
	})
}

func TestLoadConfigErrors(t *testing.T) {
	tests := []struct {
		name    string
		toml    string
		env     map[string]string
		wantErr string
	}{
		{name: "invalid toml", toml: "[forward\ncount = ", wantErr: "failed to parse TOML"},
		{name: "wrong type in file", toml: "[forward]\ncount = \"many\"", wantErr: "forward.count"},
		{name: "bad env integer", env: map[string]string{"TIMEOUT_MS": "soon"}, wantErr: EnvPrefix + "TIMEOUT_MS"},
		{name: "bad env bool", env: map[string]string{"VERBOSE": "maybe"}, wantErr: EnvPrefix + "VERBOSE"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(EnvPrefix+k, v)
			}
			opts := &testOptions{}
			if tt.toml != "" {
				opts.Config = writeConfig(t, tt.toml)
			}
			err := LoadConfig(opts, nil)
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestLoadConfigMalformedValues(t *testing.T) {
	tests := []struct {
		name      string
		toml      string
		env       map[string]string
		wantField string
		wantValue string
	}{
		{name: "env integer", env: map[string]string{"COUNT": "abc"}, wantField: EnvPrefix + "COUNT", wantValue: "abc"},
		{name: "env bool", env: map[string]string{"VERBOSE": "maybe"}, wantField: EnvPrefix + "VERBOSE", wantValue: "maybe"},
		{name: "file integer", toml: "[forward]\ncount = \"many\"", wantField: "forward.count", wantValue: "many"},
		{name: "file array", toml: "[debug]\nmodules = [1, 2]", wantField: "debug.modules", wantValue: "[1 2]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(EnvPrefix+k, v)
			}
			opts := &testOptions{Count: 4}
			if tt.toml != "" {
				opts.Config = writeConfig(t, tt.toml)
			}

			err := LoadConfig(opts, nil)

			var cfgErr *forward.ConfigurationError
			if !errors.As(err, &cfgErr) {
				t.Fatalf("Expected *forward.ConfigurationError, got %T: %v", err, err)
			}
			if cfgErr.Field != tt.wantField || cfgErr.Value != tt.wantValue {
				t.Errorf("Expected field %q value %q, got %q %q", tt.wantField, tt.wantValue, cfgErr.Field, cfgErr.Value)
			}
			if opts.Count != 4 {
				t.Errorf("Expected count to keep its default 4, got %d", opts.Count)
			}
		})
	}
}

func TestLoadConfigRejectsNonStruct(t *testing.T) {
	var s string
	if err := LoadConfig(&s, nil); err == nil {
		t.Error("Expected error for non-struct target")
	}
}

func TestFlagName(t *testing.T) {
	tests := map[string]string{
		"Config":           "config",
		"TimeoutMs":        "timeout-ms",
		"WaitDeviceMs":     "wait-device-ms",
		"LoggingAPI":       "logging-api",
		"LoggingStreaming": "logging-streaming",
		"AuthUsername":     "auth-username",
		"APIKey":           "api-key",
	}
	for in, want := range tests {
		if got := FlagName(in); got != want {
			t.Errorf("FlagName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestLookup(t *testing.T) {
	doc := map[string]any{
		"forward": map[string]any{"count": int64(4)},
		"flat":    "x",
	}
	tests := []struct {
		path string
		want any
		ok   bool
	}{
		{"forward.count", int64(4), true},
		{"flat", "x", true},
		{"forward.missing", nil, false},
		{"flat.nested", nil, false},
		{"absent.key", nil, false},
	}
	for _, tt := range tests {
		got, ok := lookup(doc, tt.path)
		if ok != tt.ok || got != tt.want {
			t.Errorf("lookup(%q) = %v, %v; want %v, %v", tt.path, got, ok, tt.want, tt.ok)
		}
	}
}
