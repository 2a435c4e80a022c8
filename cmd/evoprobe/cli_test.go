package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"

	"github.com/tturner/evoprobe/internal/config"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestRootHelpListsCommands(t *testing.T) {
	out, err := execute(t, "--help")
	if err != nil {
		t.Fatalf("help failed: %v", err)
	}
	for _, name := range []string{"dump", "read", "labels", "simulate", "config", "version"} {
		if !strings.Contains(out, name) {
			t.Errorf("help missing %q:\n%s", name, out)
		}
	}
}

func TestDumpHelpDoesNotConnect(t *testing.T) {
	out, err := execute(t, "dump", "help")
	if err != nil {
		t.Fatalf("help failed: %v", err)
	}
	if !strings.Contains(out, "read the configured RAM block") {
		t.Fatalf("expected dump help, got: %s", out)
	}
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version")
	if err != nil {
		t.Fatalf("version failed: %v", err)
	}
	if !strings.Contains(out, "evoprobe version dev") {
		t.Errorf("unexpected output: %s", out)
	}
}

func TestConfigPrintDefaultAndValidate(t *testing.T) {
	out, err := execute(t, "config", "print-default")
	if err != nil {
		t.Fatalf("print-default failed: %v", err)
	}
	var cfg config.Config
	if err := yaml.Unmarshal([]byte(out), &cfg); err != nil {
		t.Fatalf("unmarshal default config: %v", err)
	}
	if cfg.Panel.Port != config.DefaultSoftwarePort {
		t.Errorf("port = %d", cfg.Panel.Port)
	}

	path := filepath.Join(t.TempDir(), "evoprobe.yaml")
	if err := os.WriteFile(path, []byte(out), 0600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	out, err = execute(t, "config", "validate", "--config", path)
	if err != nil {
		t.Fatalf("validate failed: %v", err)
	}
	if !strings.Contains(out, "OK") {
		t.Errorf("unexpected output: %s", out)
	}
}

func TestConfigValidateRequiresPath(t *testing.T) {
	_, err := execute(t, "config", "validate")
	if err == nil || !strings.Contains(err.Error(), "--config") {
		t.Fatalf("expected missing flag error, got %v", err)
	}
}

func TestSimulatePrintImage(t *testing.T) {
	out, err := execute(t, "simulate", "--print-image", "--drop-every", "4")
	if err != nil {
		t.Fatalf("simulate --print-image failed: %v", err)
	}
	var img config.Image
	if err := yaml.Unmarshal([]byte(out), &img); err != nil {
		t.Fatalf("unmarshal image: %v", err)
	}
	if img.DropEvery != 4 {
		t.Errorf("drop_every = %d, want 4", img.DropEvery)
	}
}

func TestReadArgumentErrors(t *testing.T) {
	tests := []struct {
		args []string
		want string
	}{
		{[]string{"read"}, "memory space and an address"},
		{[]string{"read", "flash", "0"}, "invalid memory space"},
		{[]string{"read", "eeprom", "zz"}, "invalid number"},
		{[]string{"read", "eeprom", "0x430", "--length", "65"}, "--length"},
		{[]string{"labels"}, "label kind"},
		{[]string{"labels", "zone", "--first", "5", "--last", "2"}, "--last"},
		{[]string{"simulate", "--drop-every", "-1"}, "--drop-every"},
	}
	for _, tt := range tests {
		_, err := execute(t, tt.args...)
		if err == nil || !strings.Contains(err.Error(), tt.want) {
			t.Errorf("%v: err = %v, want containing %q", tt.args, err, tt.want)
		}
	}
}

func TestParseUint(t *testing.T) {
	for in, want := range map[string]uint64{"0x430": 0x430, "1072": 1072, " 0X3FFFF ": 0x3FFFF} {
		got, err := parseUint(in, 32)
		if err != nil || got != want {
			t.Errorf("parseUint(%q) = %d, %v", in, got, err)
		}
	}
	if _, err := parseUint("-1", 32); err == nil {
		t.Error("expected error for -1")
	}
}
