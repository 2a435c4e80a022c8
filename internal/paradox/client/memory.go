package client

// Memory read commands (EEPROM and RAM)

import (
	"context"
	"fmt"

	"github.com/tturner/evoprobe/internal/paradox/protocol"
)

// Argument ranges for memory reads.
const (
	MaxEEPROMAddress = 0x3FFFF
	MaxEEPROMBlock   = 15
	MinRAMBlock      = 1
	MaxRAMBlock      = 16
	MinReadLength    = 1
	MaxReadLength    = 64
)

// Space selects the memory region of a read.
type Space int

const (
	SpaceEEPROM Space = iota
	SpaceRAM
)

func (s Space) String() string {
	if s == SpaceRAM {
		return "ram"
	}
	return "eeprom"
}

// BuildReadRequest returns the framed read request for an address in space.
// For RAM the address is the block number. Arguments are not range checked.
func BuildReadRequest(space Space, address uint32, length int) []byte {
	lo, mid, hi := protocol.SplitAddress18(address)

	var control byte
	if space == SpaceRAM {
		control = protocol.SetBit(control, protocol.ControlByteRAMBit, true)
	} else {
		control = protocol.SetBit(control, 1, protocol.GetBit(uint32(hi), 1))
		control = protocol.SetBit(control, 0, protocol.GetBit(uint32(hi), 0))
	}

	body := []byte{
		protocol.OpcodeReadMemory,
		protocol.ReadMemoryBodySize,
		control,
		0x00,
		mid,
		lo,
		byte(length),
		0x00,
	}
	protocol.SealChecksum(body)

	h := protocol.NewRequestHeader(len(body), protocol.MessageTypePassthrough, protocol.ModuleCommandPassthrough, protocol.ModeSession)
	return protocol.Encode(h, body)
}

// ReadEEPROM reads length bytes of EEPROM at address. block is validated
// but not sent; the address alone selects the location.
//
// A missing or short response yields ErrNoResponse or ErrIncompleteRead,
// both soft misses (see IsMiss).
func (s *Session) ReadEEPROM(ctx context.Context, address uint32, block uint8, length int) ([]byte, error) {
	if err := checkRange("EEPROM address", int64(address), 0, MaxEEPROMAddress); err != nil {
		return nil, err
	}
	if err := checkRange("block number", int64(block), 0, MaxEEPROMBlock); err != nil {
		return nil, err
	}
	if err := checkRange("bytes to read", int64(length), MinReadLength, MaxReadLength); err != nil {
		return nil, err
	}
	return s.readMemory(ctx, SpaceEEPROM, address, length)
}

// ReadRAM reads length bytes of RAM block.
func (s *Session) ReadRAM(ctx context.Context, block uint32, length int) ([]byte, error) {
	if err := checkRange("block number", int64(block), MinRAMBlock, MaxRAMBlock); err != nil {
		return nil, err
	}
	if err := checkRange("bytes to read", int64(length), MinReadLength, MaxReadLength); err != nil {
		return nil, err
	}
	return s.readMemory(ctx, SpaceRAM, block, length)
}

func (s *Session) readMemory(ctx context.Context, space Space, address uint32, length int) ([]byte, error) {
	name := fmt.Sprintf("read_%s", space)
	body, ok, err := s.command(ctx, name, BuildReadRequest(space, address, length), protocol.CommandReadMemory)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%s 0x%05X: %w", name, address, ErrNoResponse)
	}
	if len(body) < length+protocol.ReadMemoryPayloadOffset+1 {
		return nil, fmt.Errorf("%s 0x%05X: %w: %d byte response for %d bytes", name, address, ErrIncompleteRead, len(body), length)
	}

	out := make([]byte, length)
	copy(out, body[protocol.ReadMemoryPayloadOffset:])
	return out, nil
}
