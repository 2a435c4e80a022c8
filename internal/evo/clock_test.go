package evo

import (
	"testing"
	"time"
)

func TestDecodePanelTime(t *testing.T) {
	ram := make([]byte, 64)
	copy(ram[18:], []byte{20, 24, 3, 15, 13, 45, 30})

	got, err := DecodePanelTime(ram)
	if err != nil {
		t.Fatalf("DecodePanelTime: %v", err)
	}
	want := time.Date(2024, time.March, 15, 13, 45, 30, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("time = %v, want %v", got, want)
	}
}

func TestDecodePanelTimeErrors(t *testing.T) {
	tests := []struct {
		name string
		ram  []byte
	}{
		{"short", make([]byte, 24)},
		{"zero month", append(make([]byte, 18), 20, 24, 0, 1, 0, 0, 0)},
		{"hour 24", append(make([]byte, 18), 20, 24, 1, 1, 24, 0, 0)},
		{"feb 30", append(make([]byte, 18), 20, 23, 2, 30, 0, 0, 0)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := DecodePanelTime(tt.ram); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestEncodePanelTimeRoundTrip(t *testing.T) {
	ram := make([]byte, 64)
	want := time.Date(2031, time.December, 31, 23, 59, 58, 0, time.UTC)
	EncodePanelTime(ram, want)
	got, err := DecodePanelTime(ram)
	if err != nil {
		t.Fatalf("DecodePanelTime: %v", err)
	}
	if !got.Equal(want) {
		t.Errorf("time = %v, want %v", got, want)
	}
}
