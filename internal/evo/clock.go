package evo

import (
	"fmt"
	"time"
)

// Offsets of the panel clock in RAM block 1.
const (
	clockCentury = 18
	clockYear    = 19
	clockMonth   = 20
	clockDay     = 21
	clockHour    = 22
	clockMinute  = 23
	clockSecond  = 24
)

// ClockBlock is the RAM block that carries the panel clock.
const ClockBlock = 1

// DecodePanelTime decodes the panel's date and time from RAM block 1. The
// panel has no zone information; the result is in UTC.
func DecodePanelTime(ram []byte) (time.Time, error) {
	if len(ram) <= clockSecond {
		return time.Time{}, fmt.Errorf("panel clock: need %d bytes, got %d", clockSecond+1, len(ram))
	}

	year := int(ram[clockCentury])*100 + int(ram[clockYear])
	month := int(ram[clockMonth])
	day := int(ram[clockDay])
	hour := int(ram[clockHour])
	minute := int(ram[clockMinute])
	second := int(ram[clockSecond])

	if month < 1 || month > 12 || day < 1 || hour > 23 || minute > 59 || second > 59 {
		return time.Time{}, fmt.Errorf("panel clock: invalid date %04d-%02d-%02d %02d:%02d:%02d", year, month, day, hour, minute, second)
	}
	t := time.Date(year, time.Month(month), day, hour, minute, second, 0, time.UTC)
	if t.Day() != day {
		return time.Time{}, fmt.Errorf("panel clock: invalid day %d for %04d-%02d", day, year, month)
	}
	return t, nil
}

// EncodePanelTime writes t into a RAM block 1 image at the clock offsets.
// ram must hold at least 25 bytes.
func EncodePanelTime(ram []byte, t time.Time) {
	ram[clockCentury] = byte(t.Year() / 100)
	ram[clockYear] = byte(t.Year() % 100)
	ram[clockMonth] = byte(t.Month())
	ram[clockDay] = byte(t.Day())
	ram[clockHour] = byte(t.Hour())
	ram[clockMinute] = byte(t.Minute())
	ram[clockSecond] = byte(t.Second())
}
