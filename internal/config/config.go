package config

// Configuration loading and validation for evoprobe

import (
	"encoding/hex"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/tturner/evoprobe/internal/errors"
	"github.com/tturner/evoprobe/internal/evo"
	"github.com/tturner/evoprobe/internal/paradox/client"
)

// DefaultSoftwarePort is the IP150 software port.
const DefaultSoftwarePort = 10000

// DefaultSettleDelay is how long a dump waits before logging out.
const DefaultSettleDelay = 2 * time.Second

// Config is the client configuration.
type Config struct {
	Panel    PanelConfig   `yaml:"panel"`
	Timeouts TimeoutConfig `yaml:"timeouts"`
	Queries  QueryConfig   `yaml:"queries"`
	Logging  LoggingConfig `yaml:"logging"`
}

// PanelConfig locates the IP150 module.
type PanelConfig struct {
	Address  string `yaml:"address"`
	Port     int    `yaml:"port"`
	Password string `yaml:"password,omitempty"` // Module password; prompted for when empty

	// SSH reaches the module through a jump host on the site network.
	SSH *SSHConfig `yaml:"ssh,omitempty"`
}

// SSHConfig configures the jump host.
type SSHConfig struct {
	Host                  string `yaml:"host"`
	Port                  int    `yaml:"port,omitempty"` // default 22
	User                  string `yaml:"user,omitempty"`
	KeyFile               string `yaml:"key_file,omitempty"`
	KeyPassphrase         string `yaml:"key_passphrase,omitempty"`
	Password              string `yaml:"password,omitempty"`
	Agent                 bool   `yaml:"agent,omitempty"`
	KnownHosts            string `yaml:"known_hosts,omitempty"` // default ~/.ssh/known_hosts
	InsecureIgnoreHostKey bool   `yaml:"insecure_ignore_host_key,omitempty"`
	KeepAliveMs           int    `yaml:"keepalive_ms,omitempty"`
}

// TimeoutConfig holds transport and retry timing.
type TimeoutConfig struct {
	DialMs       int `yaml:"dial_ms"`
	ReadMs       int `yaml:"read_ms"`
	RetryDelayMs int `yaml:"retry_delay_ms"`
	MaxRetries   int `yaml:"max_retries"`
	SettleMs     int `yaml:"settle_ms"` // Wait before logout at the end of a dump
}

// Dial returns the dial timeout.
func (t TimeoutConfig) Dial() time.Duration { return time.Duration(t.DialMs) * time.Millisecond }

// Read returns the read timeout.
func (t TimeoutConfig) Read() time.Duration { return time.Duration(t.ReadMs) * time.Millisecond }

// RetryDelay returns the delay between response polls.
func (t TimeoutConfig) RetryDelay() time.Duration {
	return time.Duration(t.RetryDelayMs) * time.Millisecond
}

// Settle returns the pre-logout wait.
func (t TimeoutConfig) Settle() time.Duration { return time.Duration(t.SettleMs) * time.Millisecond }

// QueryConfig selects what a dump reads.
type QueryConfig struct {
	RAMBlock   int           `yaml:"ram_block"` // 0 skips the RAM read and panel clock
	EEPROM     []EEPROMRange `yaml:"eeprom,omitempty"`
	Zones      LabelRange    `yaml:"zones"`
	Partitions LabelRange    `yaml:"partitions"`
	Users      LabelRange    `yaml:"users"`
	Doors      LabelRange    `yaml:"doors"`
	Modules    LabelRange    `yaml:"modules"`
}

// EEPROMRange is one raw EEPROM read.
type EEPROMRange struct {
	Address uint32 `yaml:"address"`
	Length  int    `yaml:"length"`
}

// LabelRange selects label records First..Last. A zero First skips the kind.
type LabelRange struct {
	First int `yaml:"first"`
	Last  int `yaml:"last"`
}

// Empty reports whether the range selects nothing.
func (r LabelRange) Empty() bool {
	return r.First == 0
}

// Labels returns the label ranges keyed by kind, skipping empty ones.
func (q QueryConfig) Labels() map[evo.Kind]LabelRange {
	all := map[evo.Kind]LabelRange{
		evo.KindZone:      q.Zones,
		evo.KindPartition: q.Partitions,
		evo.KindUser:      q.Users,
		evo.KindDoor:      q.Doors,
		evo.KindModule:    q.Modules,
	}
	for k, r := range all {
		if r.Empty() {
			delete(all, k)
		}
	}
	return all
}

// LoggingConfig configures the logger.
type LoggingConfig struct {
	Level   string `yaml:"level"`
	LogFile string `yaml:"log_file,omitempty"`
}

// CreateDefaultConfig returns the configuration of the reference dump:
// RAM block 1, zone 1's EEPROM record and the first two labels of each kind.
func CreateDefaultConfig() *Config {
	return &Config{
		Panel: PanelConfig{
			Address: "192.168.1.250",
			Port:    DefaultSoftwarePort,
		},
		Timeouts: TimeoutConfig{
			DialMs:       int(client.DefaultDialTimeout / time.Millisecond),
			ReadMs:       int(client.DefaultReadTimeout / time.Millisecond),
			RetryDelayMs: int(client.DefaultRetryDelay / time.Millisecond),
			MaxRetries:   client.DefaultMaxRetries,
			SettleMs:     int(DefaultSettleDelay / time.Millisecond),
		},
		Queries: QueryConfig{
			RAMBlock:   evo.ClockBlock,
			EEPROM:     []EEPROMRange{{Address: 0x430, Length: 16}},
			Zones:      LabelRange{First: 1, Last: 2},
			Partitions: LabelRange{First: 1, Last: 2},
			Users:      LabelRange{First: 1, Last: 2},
			Doors:      LabelRange{First: 1, Last: 2},
			Modules:    LabelRange{First: 1, Last: 2},
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// WriteDefaultConfig writes a default configuration to a file
func WriteDefaultConfig(path string) error {
	data, err := yaml.Marshal(CreateDefaultConfig())
	if err != nil {
		return fmt.Errorf("marshal default config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}

// LoadConfig loads a configuration from a YAML file.
// If the file doesn't exist and autoCreate is true, it will create a default config file
func LoadConfig(path string, autoCreate bool) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, errors.WrapConfigError(fmt.Errorf("read config file: %w", err), path)
		}
		if !autoCreate {
			return nil, errors.WrapConfigError(fmt.Errorf("config file not found: %s", path), path)
		}
		if err := WriteDefaultConfig(path); err != nil {
			return nil, fmt.Errorf("create default config: %w", err)
		}
		data, err = os.ReadFile(path)
		if err != nil {
			return nil, errors.WrapConfigError(fmt.Errorf("read created config file: %w", err), path)
		}
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, errors.WrapConfigError(fmt.Errorf("parse YAML: %w", err), path)
	}

	ApplyDefaults(&cfg)
	if err := ValidateConfig(&cfg); err != nil {
		return nil, errors.WrapConfigError(fmt.Errorf("validate config: %w", err), path)
	}

	return &cfg, nil
}

// ApplyDefaults fills zero-valued transport settings.
func ApplyDefaults(cfg *Config) {
	if cfg.Panel.Port == 0 {
		cfg.Panel.Port = DefaultSoftwarePort
	}
	if cfg.Timeouts.DialMs == 0 {
		cfg.Timeouts.DialMs = int(client.DefaultDialTimeout / time.Millisecond)
	}
	if cfg.Timeouts.ReadMs == 0 {
		cfg.Timeouts.ReadMs = int(client.DefaultReadTimeout / time.Millisecond)
	}
	if cfg.Timeouts.RetryDelayMs == 0 {
		cfg.Timeouts.RetryDelayMs = int(client.DefaultRetryDelay / time.Millisecond)
	}
	if cfg.Timeouts.MaxRetries == 0 {
		cfg.Timeouts.MaxRetries = client.DefaultMaxRetries
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
}

// ValidateConfig validates a client configuration
func ValidateConfig(cfg *Config) error {
	if strings.TrimSpace(cfg.Panel.Address) == "" {
		return fmt.Errorf("panel.address is required")
	}
	if cfg.Panel.Port < 1 || cfg.Panel.Port > 65535 {
		return fmt.Errorf("panel.port must be 1-65535, got %d", cfg.Panel.Port)
	}
	if len(cfg.Panel.Password) > 0xFF {
		return fmt.Errorf("panel.password must be at most 255 characters")
	}
	if s := cfg.Panel.SSH; s != nil {
		if strings.TrimSpace(s.Host) == "" {
			return fmt.Errorf("panel.ssh.host is required")
		}
		if s.Port < 0 || s.Port > 65535 {
			return fmt.Errorf("panel.ssh.port must be 0-65535, got %d", s.Port)
		}
		if s.KeepAliveMs < 0 {
			return fmt.Errorf("panel.ssh.keepalive_ms must be >= 0")
		}
	}

	t := cfg.Timeouts
	if t.DialMs < 0 || t.ReadMs < 0 || t.RetryDelayMs < 0 || t.SettleMs < 0 {
		return fmt.Errorf("timeouts must be >= 0")
	}
	if t.MaxRetries < 0 {
		return fmt.Errorf("timeouts.max_retries must be >= 0")
	}

	q := cfg.Queries
	if q.RAMBlock != 0 && (q.RAMBlock < client.MinRAMBlock || q.RAMBlock > client.MaxRAMBlock) {
		return fmt.Errorf("queries.ram_block must be 0 or %d-%d, got %d", client.MinRAMBlock, client.MaxRAMBlock, q.RAMBlock)
	}
	for i, r := range q.EEPROM {
		if r.Address > client.MaxEEPROMAddress {
			return fmt.Errorf("queries.eeprom[%d]: address 0x%X past 0x%X", i, r.Address, client.MaxEEPROMAddress)
		}
		if r.Length < client.MinReadLength || r.Length > client.MaxReadLength {
			return fmt.Errorf("queries.eeprom[%d]: length must be %d-%d, got %d", i, client.MinReadLength, client.MaxReadLength, r.Length)
		}
	}
	for kind, r := range q.Labels() {
		if err := validateLabelRange(kind, r); err != nil {
			return err
		}
	}

	if cfg.Logging.Level != "" {
		switch strings.ToLower(cfg.Logging.Level) {
		case "silent", "error", "info", "verbose", "debug":
		default:
			return fmt.Errorf("logging.level must be one of silent, error, info, verbose, debug")
		}
	}

	return nil
}

func validateLabelRange(kind evo.Kind, r LabelRange) error {
	if r.Last < r.First {
		return fmt.Errorf("queries.%ss: last (%d) must be >= first (%d)", kind, r.Last, r.First)
	}
	if _, err := evo.LabelAddress(kind, r.First); err != nil {
		return fmt.Errorf("queries.%ss: %w", kind, err)
	}
	if _, err := evo.LabelAddress(kind, r.Last); err != nil {
		return fmt.Errorf("queries.%ss: %w", kind, err)
	}
	return nil
}

// decodeHex accepts "AA BB", "aabb" or "AA:BB".
func decodeHex(s string) ([]byte, error) {
	clean := strings.NewReplacer(" ", "", ":", "", "\n", "", "\t", "").Replace(s)
	return hex.DecodeString(clean)
}
