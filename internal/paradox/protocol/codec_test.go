package protocol

import (
	"bytes"
	"math/rand"
	"testing"
)

func TestNibbles(t *testing.T) {
	if got := HighNibble(0x5A); got != 0x5 {
		t.Errorf("HighNibble(0x5A) = 0x%X, want 0x5", got)
	}
	if got := LowNibble(0x5A); got != 0xA {
		t.Errorf("LowNibble(0x5A) = 0x%X, want 0xA", got)
	}
	if got := HighNibble(0x38); got != 0x3 {
		t.Errorf("HighNibble(0x38) = 0x%X, want 0x3", got)
	}
}

func TestBits(t *testing.T) {
	var b byte
	b = SetBit(b, 7, true)
	b = SetBit(b, 0, true)
	if b != 0x81 {
		t.Fatalf("SetBit result = 0x%02X, want 0x81", b)
	}
	b = SetBit(b, 7, false)
	if b != 0x01 {
		t.Fatalf("SetBit clear result = 0x%02X, want 0x01", b)
	}
	if !GetBit(0x10000, 16) {
		t.Error("GetBit(0x10000, 16) = false, want true")
	}
	if GetBit(0x10000, 17) {
		t.Error("GetBit(0x10000, 17) = true, want false")
	}
}

func TestChecksum(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want byte
	}{
		{"empty", nil, 0x00},
		{"single", []byte{0x72}, 0x72},
		{"wraps", []byte{0xFF, 0x02}, 0x01},
		{"logout", []byte{0x00, 0x07, 0x05, 0x00, 0x00, 0x00}, 0x0C},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Checksum(tt.data); got != tt.want {
				t.Errorf("Checksum = 0x%02X, want 0x%02X", got, tt.want)
			}
		})
	}
}

func TestChecksumOrderIndependent(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 50; i++ {
		data := make([]byte, rng.Intn(300))
		rng.Read(data)

		var sum int
		for _, b := range data {
			sum += int(b)
		}
		want := byte(sum % 256)
		if got := Checksum(data); got != want {
			t.Fatalf("Checksum = 0x%02X, want 0x%02X", got, want)
		}

		shuffled := append([]byte(nil), data...)
		rng.Shuffle(len(shuffled), func(a, b int) { shuffled[a], shuffled[b] = shuffled[b], shuffled[a] })
		if Checksum(shuffled) != want {
			t.Fatal("checksum changed after reordering")
		}
	}
}

func TestSealChecksum(t *testing.T) {
	body := []byte{0x50, 0x08, 0x80, 0x00, 0x00, 0x01, 0x40, 0x00}
	SealChecksum(body)
	if body[7] != 0x19 {
		t.Errorf("checksum byte = 0x%02X, want 0x19", body[7])
	}
}

func TestASCIIFixedWidth(t *testing.T) {
	got := ASCIIFixedWidth("1234", 16, FillByte)
	if len(got) != 16 {
		t.Fatalf("len = %d, want 16", len(got))
	}
	if string(got[:4]) != "1234" {
		t.Errorf("prefix = %q, want %q", got[:4], "1234")
	}
	for i := 4; i < 16; i++ {
		if got[i] != FillByte {
			t.Fatalf("byte %d = 0x%02X, want fill", i, got[i])
		}
	}

	long := ASCIIFixedWidth("ABCDEFGHIJ", 4, 0x00)
	if string(long) != "ABCD" {
		t.Errorf("truncated = %q, want %q", long, "ABCD")
	}

	// One byte per rune, so a multi-byte rune is never split at the width.
	accented := ASCIIFixedWidth("Caf\u00e9 \u00e9t\u00e9", 6, ' ')
	if string(accented) != "Caf? ?" {
		t.Errorf("non-ASCII = %q, want %q", accented, "Caf? ?")
	}
	if got := DecodeASCIITrimmed(accented, 0, len(accented)); got != "Caf? ?" {
		t.Errorf("round trip = %q", got)
	}
}

func TestASCIIBytes(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"1234", "1234"},
		{"p\u00e4ss", "p?ss"},
		{"\u20ac5", "?5"},
		{"a\xffb", "a?b"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := string(ASCIIBytes(tt.in)); got != tt.want {
			t.Errorf("ASCIIBytes(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestDecodeASCIITrimmed(t *testing.T) {
	data := []byte("xxFront Door \x00 \x00yy")
	if got := DecodeASCIITrimmed(data, 2, 15); got != "Front Door" {
		t.Errorf("got %q, want %q", got, "Front Door")
	}
	// Leading whitespace is kept, only the tail is trimmed.
	if got := DecodeASCIITrimmed([]byte("  EVO192  "), 0, 10); got != "  EVO192" {
		t.Errorf("got %q, want %q", got, "  EVO192")
	}
	if got := DecodeASCIITrimmed([]byte{'A', 0xFF}, 0, 2); got != "A?" {
		t.Errorf("got %q, want %q", got, "A?")
	}
}

func TestASCIIRoundTrip(t *testing.T) {
	encoded := ASCIIFixedWidth("ZONE 01", 16, 0x00)
	if got := DecodeASCIITrimmed(encoded, 0, len(encoded)); got != "ZONE 01" {
		t.Errorf("round trip = %q, want %q", got, "ZONE 01")
	}
}

func TestSplitAddress18(t *testing.T) {
	lo, mid, hi := SplitAddress18(0x12345)
	if lo != 0x45 || mid != 0x23 || hi != 0x01 {
		t.Errorf("SplitAddress18(0x12345) = %02X %02X %02X, want 45 23 01", lo, mid, hi)
	}
	// Bits above 17 do not leak into the high field.
	_, _, hi = SplitAddress18(0xFC0000 | 0x20000)
	if hi != 0x02 {
		t.Errorf("high bits = 0x%02X, want 0x02", hi)
	}
}

func TestPadRight(t *testing.T) {
	got := PadRight([]byte{0xAA, 0x00}, 4, FillByte)
	if !bytes.Equal(got, []byte{0xAA, 0x00, 0xEE, 0xEE}) {
		t.Errorf("PadRight = % X", got)
	}
	long := PadRight([]byte{1, 2, 3}, 2, 0)
	if len(long) != 3 {
		t.Errorf("len = %d, want 3", len(long))
	}
}

func TestHexString(t *testing.T) {
	if got := HexString([]byte{0xAA, 0x08, 0x0e}); got != "AA 08 0E" {
		t.Errorf("HexString = %q", got)
	}
	if got := HexString(nil); got != "" {
		t.Errorf("HexString(nil) = %q", got)
	}
}
