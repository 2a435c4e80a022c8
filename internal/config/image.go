package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/tturner/evoprobe/internal/errors"
	"github.com/tturner/evoprobe/internal/evo"
	"github.com/tturner/evoprobe/internal/paradox/client"
)

// Image is the memory image served by the panel simulator.
type Image struct {
	PanelType string `yaml:"panel_type"`
	Password  string `yaml:"password"`
	// Clock is written to RAM block 1; empty means the wall clock at start.
	Clock  string          `yaml:"clock,omitempty"`
	Serial string          `yaml:"serial,omitempty"` // 8 hex digits
	RAM    []MemoryRecord  `yaml:"ram,omitempty"`
	EEPROM []MemoryRecord  `yaml:"eeprom,omitempty"`
	Labels map[string]Dict `yaml:"labels,omitempty"`
	// DropEvery makes the simulator ignore every Nth memory read; 0 answers all.
	DropEvery int `yaml:"drop_every,omitempty"`
	// EventEvery pushes a live event ahead of every Nth memory read response.
	EventEvery int `yaml:"event_every,omitempty"`
}

// Dict maps record numbers to label text.
type Dict map[int]string

// MemoryRecord places bytes at an address. For RAM the address is the block
// number. Exactly one of Hex and Text is set.
type MemoryRecord struct {
	Address uint32 `yaml:"address"`
	Hex     string `yaml:"hex,omitempty"`
	Text    string `yaml:"text,omitempty"`
}

// Bytes returns the record contents.
func (r MemoryRecord) Bytes() ([]byte, error) {
	if r.Hex != "" {
		return decodeHex(r.Hex)
	}
	return []byte(r.Text), nil
}

// ClockTime parses Clock, returning now when it is empty.
func (img *Image) ClockTime(now time.Time) (time.Time, error) {
	if img.Clock == "" {
		return now, nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02 15:04"} {
		if t, err := time.Parse(layout, img.Clock); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("clock %q: want RFC 3339 or YYYY-MM-DD HH:MM[:SS]", img.Clock)
}

// SerialBytes returns the module serial number. An empty Serial is all zero.
func (img *Image) SerialBytes() ([4]byte, error) {
	var serial [4]byte
	if img.Serial == "" {
		return serial, nil
	}
	b, err := decodeHex(img.Serial)
	if err != nil || len(b) != len(serial) {
		return serial, fmt.Errorf("serial must be 4 bytes of hex")
	}
	copy(serial[:], b)
	return serial, nil
}

// CreateDefaultImage returns an EVO192 image with a few labels.
func CreateDefaultImage() *Image {
	return &Image{
		PanelType: "EVO192",
		Password:  "paradox",
		Serial:    "0A1B2C3D",
		Labels: map[string]Dict{
			"zones":      {1: "Front Door", 2: "Kitchen PIR", 97: "Garage"},
			"partitions": {1: "House", 2: "Garage"},
			"users":      {1: "Master", 2: "Installer"},
			"doors":      {1: "Main Entrance"},
			"modules":    {1: "IP150", 2: "ZX8 Expander"},
		},
	}
}

// LoadImage loads and validates a simulator memory image.
func LoadImage(path string) (*Image, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.WrapConfigError(fmt.Errorf("read image file: %w", err), path)
	}
	var img Image
	if err := yaml.Unmarshal(data, &img); err != nil {
		return nil, errors.WrapConfigError(fmt.Errorf("parse YAML: %w", err), path)
	}
	if img.PanelType == "" {
		img.PanelType = "EVO192"
	}
	if err := ValidateImage(&img); err != nil {
		return nil, errors.WrapConfigError(fmt.Errorf("validate image: %w", err), path)
	}
	return &img, nil
}

// ValidateImage validates a simulator memory image.
func ValidateImage(img *Image) error {
	if len(img.PanelType) > 8 {
		return fmt.Errorf("panel_type must be at most 8 characters")
	}
	if len(img.Password) > 0xFF {
		return fmt.Errorf("password must be at most 255 characters")
	}
	if _, err := img.ClockTime(time.Now()); err != nil {
		return err
	}
	if _, err := img.SerialBytes(); err != nil {
		return err
	}
	if img.DropEvery < 0 || img.EventEvery < 0 {
		return fmt.Errorf("drop_every and event_every must be >= 0")
	}

	for i, r := range img.RAM {
		if r.Address < client.MinRAMBlock || r.Address > client.MaxRAMBlock {
			return fmt.Errorf("ram[%d]: block must be %d-%d", i, client.MinRAMBlock, client.MaxRAMBlock)
		}
		if err := validateRecord(r, client.MaxReadLength); err != nil {
			return fmt.Errorf("ram[%d]: %w", i, err)
		}
	}
	for i, r := range img.EEPROM {
		if r.Address > client.MaxEEPROMAddress {
			return fmt.Errorf("eeprom[%d]: address 0x%X past 0x%X", i, r.Address, client.MaxEEPROMAddress)
		}
		if err := validateRecord(r, client.MaxEEPROMAddress+1-int(r.Address)); err != nil {
			return fmt.Errorf("eeprom[%d]: %w", i, err)
		}
	}
	for name, dict := range img.Labels {
		kind, err := evo.ParseKind(name)
		if err != nil {
			return fmt.Errorf("labels: %w", err)
		}
		for n, text := range dict {
			if _, err := evo.LabelAddress(kind, n); err != nil {
				return fmt.Errorf("labels.%s: %w", name, err)
			}
			if len(text) > evo.LabelLength {
				return fmt.Errorf("labels.%s[%d]: %q longer than %d characters", name, n, text, evo.LabelLength)
			}
		}
	}
	return nil
}

func validateRecord(r MemoryRecord, max int) error {
	if r.Hex != "" && r.Text != "" {
		return fmt.Errorf("set hex or text, not both")
	}
	b, err := r.Bytes()
	if err != nil {
		return fmt.Errorf("hex: %w", err)
	}
	if len(b) > max {
		return fmt.Errorf("%d bytes do not fit (max %d)", len(b), max)
	}
	return nil
}
