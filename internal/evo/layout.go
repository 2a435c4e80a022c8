package evo

// EEPROM label layout of the EVO192 panel

import (
	"fmt"
	"strings"

	"github.com/tturner/evoprobe/internal/paradox/client"
)

// LabelLength is the size of every label record.
const LabelLength = 16

// LabelBlock is the EEPROM block number used for label reads.
const LabelBlock = 0

// Kind identifies a label table.
type Kind int

const (
	KindZone Kind = iota
	KindPartition
	KindUser
	KindDoor
	KindModule
)

var kindNames = map[Kind]string{
	KindZone:      "zone",
	KindPartition: "partition",
	KindUser:      "user",
	KindDoor:      "door",
	KindModule:    "module",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Kinds lists every label table in dump order.
func Kinds() []Kind {
	return []Kind{KindZone, KindPartition, KindUser, KindDoor, KindModule}
}

// ParseKind accepts the singular or plural table name.
func ParseKind(s string) (Kind, error) {
	name := strings.TrimSuffix(strings.ToLower(strings.TrimSpace(s)), "s")
	for k, n := range kindNames {
		if n == name {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown label kind %q (valid: zone, partition, user, door, module)", s)
}

// Table describes where one kind of label lives in EEPROM. Records up to and
// including Split start at Base; later records start at SplitBase. A zero
// Split means the table is contiguous.
type Table struct {
	Max       int
	Base      uint32
	Stride    uint32
	Split     int
	SplitBase uint32
}

// EVO192 is the label layout of the EVO192 panel.
var EVO192 = map[Kind]Table{
	KindZone:      {Max: 192, Base: 0x0430, Stride: 16, Split: 96, SplitBase: 0x62F7},
	KindPartition: {Max: 8, Base: 0x3A6B, Stride: 107},
	KindUser:      {Max: 999, Base: 0x3E47, Stride: 16, Split: 256, SplitBase: 0x15190},
	KindDoor:      {Max: 32, Base: 0x345C, Stride: 16},
	KindModule:    {Max: 254, Base: 0x4E47, Stride: 16},
}

// Address returns the EEPROM address of record n (1-based).
func (t Table) Address(n int) uint32 {
	if t.Split > 0 && n > t.Split {
		return t.SplitBase + uint32(n-t.Split-1)*t.Stride
	}
	return t.Base + uint32(n-1)*t.Stride
}

// LabelAddress returns the EVO192 EEPROM address of label n of kind.
func LabelAddress(kind Kind, n int) (uint32, error) {
	t, ok := EVO192[kind]
	if !ok {
		return 0, fmt.Errorf("no label table for %s", kind)
	}
	if n < 1 || n > t.Max {
		return 0, &client.InvalidArgumentError{
			Name:  kind.String() + " number",
			Value: int64(n),
			Min:   1,
			Max:   int64(t.Max),
		}
	}
	return t.Address(n), nil
}
