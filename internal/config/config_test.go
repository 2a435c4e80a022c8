package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/tturner/evoprobe/internal/evo"
)

func TestValidateConfig(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"default", func(*Config) {}, ""},
		{"no address", func(c *Config) { c.Panel.Address = " " }, "panel.address"},
		{"bad port", func(c *Config) { c.Panel.Port = 70000 }, "panel.port"},
		{"long password", func(c *Config) { c.Panel.Password = strings.Repeat("x", 256) }, "password"},
		{"negative timeout", func(c *Config) { c.Timeouts.ReadMs = -1 }, "timeouts"},
		{"negative retries", func(c *Config) { c.Timeouts.MaxRetries = -1 }, "max_retries"},
		{"ram block 17", func(c *Config) { c.Queries.RAMBlock = 17 }, "ram_block"},
		{"ram block skipped", func(c *Config) { c.Queries.RAMBlock = 0 }, ""},
		{"eeprom too long", func(c *Config) { c.Queries.EEPROM[0].Length = 65 }, "eeprom[0]"},
		{"eeprom past end", func(c *Config) { c.Queries.EEPROM[0].Address = 0x40000 }, "eeprom[0]"},
		{"zone 193", func(c *Config) { c.Queries.Zones.Last = 193 }, "queries.zones"},
		{"inverted range", func(c *Config) { c.Queries.Doors = LabelRange{First: 5, Last: 2} }, "queries.doors"},
		{"skipped kind", func(c *Config) { c.Queries.Users = LabelRange{} }, ""},
		{"bad level", func(c *Config) { c.Logging.Level = "loud" }, "logging.level"},
		{"ssh jump", func(c *Config) { c.Panel.SSH = &SSHConfig{Host: "jump", User: "ops"} }, ""},
		{"ssh no host", func(c *Config) { c.Panel.SSH = &SSHConfig{User: "ops"} }, "panel.ssh.host"},
		{"ssh bad port", func(c *Config) { c.Panel.SSH = &SSHConfig{Host: "jump", Port: -1} }, "panel.ssh.port"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := CreateDefaultConfig()
			tt.mutate(cfg)
			err := ValidateConfig(cfg)
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("err = %v, want mention of %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoadConfigAutoCreate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "evoprobe.yaml")

	cfg, err := LoadConfig(path, true)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("default config not written: %v", err)
	}
	if cfg.Panel.Port != DefaultSoftwarePort {
		t.Errorf("port = %d, want %d", cfg.Panel.Port, DefaultSoftwarePort)
	}
	if cfg.Queries.RAMBlock != 1 || len(cfg.Queries.EEPROM) != 1 || cfg.Queries.EEPROM[0].Address != 0x430 {
		t.Errorf("queries = %+v", cfg.Queries)
	}
	if len(cfg.Queries.Labels()) != 5 {
		t.Errorf("label kinds = %d, want 5", len(cfg.Queries.Labels()))
	}
	if cfg.Timeouts.Settle() != DefaultSettleDelay {
		t.Errorf("settle = %v", cfg.Timeouts.Settle())
	}
}

func TestLoadConfigMissing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing.yaml")
	_, err := LoadConfig(path, false)
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "config file not found") {
		t.Errorf("err = %v", err)
	}
	if _, statErr := os.Stat(path); !errors.Is(statErr, os.ErrNotExist) {
		t.Error("file must not be created without autoCreate")
	}
}

func TestLoadConfigDefaultsAndHex(t *testing.T) {
	path := filepath.Join(t.TempDir(), "panel.yaml")
	yml := `panel:
  address: 10.0.0.7
  password: "1234"
queries:
  ram_block: 0
  eeprom:
    - address: 0x62F7
      length: 32
  zones: {first: 97, last: 98}
`
	if err := os.WriteFile(path, []byte(yml), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig(path, false)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Panel.Port != DefaultSoftwarePort {
		t.Errorf("port = %d", cfg.Panel.Port)
	}
	if cfg.Timeouts.Read() != 5*time.Second || cfg.Timeouts.RetryDelay() != 100*time.Millisecond || cfg.Timeouts.MaxRetries != 3 {
		t.Errorf("timeouts = %+v", cfg.Timeouts)
	}
	if cfg.Timeouts.Settle() != 0 {
		t.Errorf("settle = %v, want 0 when unset", cfg.Timeouts.Settle())
	}
	if cfg.Queries.EEPROM[0].Address != 0x62F7 {
		t.Errorf("eeprom address = 0x%X", cfg.Queries.EEPROM[0].Address)
	}
	labels := cfg.Queries.Labels()
	if len(labels) != 1 || labels[evo.KindZone].First != 97 {
		t.Errorf("labels = %+v", labels)
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("level = %q", cfg.Logging.Level)
	}
}

func TestLoadConfigInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("panel: [unclosed"), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadConfig(path, false); err == nil || !strings.Contains(err.Error(), "parse YAML") {
		t.Fatalf("err = %v, want parse error", err)
	}
}
