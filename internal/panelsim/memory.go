package panelsim

import (
	"fmt"
	"sync"
	"time"

	"github.com/tturner/evoprobe/internal/config"
	"github.com/tturner/evoprobe/internal/evo"
	"github.com/tturner/evoprobe/internal/paradox/client"
	"github.com/tturner/evoprobe/internal/paradox/protocol"
)

// Sizes of the simulated memory spaces.
const (
	EEPROMSize   = client.MaxEEPROMAddress + 1
	RAMBlockSize = client.MaxReadLength
)

// memory is the panel's EEPROM and RAM. The clock in RAM block 1 advances
// with the wall clock from the image's starting time.
type memory struct {
	mu     sync.RWMutex
	eeprom []byte
	ram    [client.MaxRAMBlock][RAMBlockSize]byte

	clockBase  time.Time
	clockStart time.Time
	now        func() time.Time
}

func newMemory(img *config.Image, now func() time.Time) (*memory, error) {
	m := &memory{
		eeprom: make([]byte, EEPROMSize),
		now:    now,
	}

	base, err := img.ClockTime(now())
	if err != nil {
		return nil, err
	}
	m.clockBase = base.Truncate(time.Second)
	m.clockStart = now()

	for i, r := range img.EEPROM {
		data, err := r.Bytes()
		if err != nil {
			return nil, fmt.Errorf("eeprom[%d]: %w", i, err)
		}
		if int(r.Address)+len(data) > EEPROMSize {
			return nil, fmt.Errorf("eeprom[%d]: %d bytes at 0x%05X run past the end", i, len(data), r.Address)
		}
		copy(m.eeprom[r.Address:], data)
	}

	for name, dict := range img.Labels {
		kind, err := evo.ParseKind(name)
		if err != nil {
			return nil, err
		}
		for n, text := range dict {
			address, err := evo.LabelAddress(kind, n)
			if err != nil {
				return nil, fmt.Errorf("labels.%s: %w", name, err)
			}
			copy(m.eeprom[address:], protocol.ASCIIFixedWidth(text, evo.LabelLength, ' '))
		}
	}

	for i, r := range img.RAM {
		data, err := r.Bytes()
		if err != nil {
			return nil, fmt.Errorf("ram[%d]: %w", i, err)
		}
		if r.Address < client.MinRAMBlock || r.Address > client.MaxRAMBlock {
			return nil, fmt.Errorf("ram[%d]: block %d out of range", i, r.Address)
		}
		copy(m.ram[r.Address-1][:], data)
	}

	return m, nil
}

// readEEPROM returns up to length bytes at address. Reads that run past the
// end of EEPROM come back short.
func (m *memory) readEEPROM(address uint32, length int) []byte {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if int(address) >= len(m.eeprom) {
		return nil
	}
	end := int(address) + length
	if end > len(m.eeprom) {
		end = len(m.eeprom)
	}
	out := make([]byte, end-int(address))
	copy(out, m.eeprom[address:end])
	return out
}

// readRAM returns length bytes of a RAM block, or false for an unknown block.
func (m *memory) readRAM(block uint32, length int) ([]byte, bool) {
	if block < client.MinRAMBlock || block > client.MaxRAMBlock {
		return nil, false
	}
	if length > RAMBlockSize {
		length = RAMBlockSize
	}

	m.mu.RLock()
	data := m.ram[block-1]
	m.mu.RUnlock()

	if block == evo.ClockBlock {
		evo.EncodePanelTime(data[:], m.clock())
	}
	out := make([]byte, length)
	copy(out, data[:length])
	return out, true
}

// clock returns the current panel time.
func (m *memory) clock() time.Time {
	return m.clockBase.Add(m.now().Sub(m.clockStart)).Truncate(time.Second)
}
