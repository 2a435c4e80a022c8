package evo

import (
	"context"

	"github.com/tturner/evoprobe/internal/paradox/client"
	"github.com/tturner/evoprobe/internal/paradox/protocol"
)

// EEPROMReader reads panel EEPROM. *client.Session implements it.
type EEPROMReader interface {
	ReadEEPROM(ctx context.Context, address uint32, block uint8, length int) ([]byte, error)
}

var _ EEPROMReader = (*client.Session)(nil)

// Label is one decoded label record.
type Label struct {
	Kind    Kind
	Number  int
	Address uint32
	Text    string
	// Missing is set when the panel did not answer the read.
	Missing bool
}

// ReadLabel reads and decodes label n of kind.
func ReadLabel(ctx context.Context, r EEPROMReader, kind Kind, n int) (string, error) {
	address, err := LabelAddress(kind, n)
	if err != nil {
		return "", err
	}
	data, err := r.ReadEEPROM(ctx, address, LabelBlock, LabelLength)
	if err != nil {
		return "", err
	}
	return protocol.DecodeASCIITrimmed(data, 0, len(data)), nil
}

// ReadLabels reads labels first..last of kind. Soft misses are reported as
// Missing entries and do not stop the scan; any other error does. progress,
// if non-nil, is called after every record.
func ReadLabels(ctx context.Context, r EEPROMReader, kind Kind, first, last int, progress func(Label)) ([]Label, error) {
	if _, err := LabelAddress(kind, first); err != nil {
		return nil, err
	}
	if _, err := LabelAddress(kind, last); err != nil {
		return nil, err
	}
	if last < first {
		return nil, &client.InvalidArgumentError{
			Name:  "last " + kind.String() + " number",
			Value: int64(last),
			Min:   int64(first),
			Max:   int64(EVO192[kind].Max),
		}
	}

	labels := make([]Label, 0, last-first+1)
	for n := first; n <= last; n++ {
		address, _ := LabelAddress(kind, n)
		label := Label{Kind: kind, Number: n, Address: address}

		text, err := ReadLabel(ctx, r, kind, n)
		switch {
		case err == nil:
			label.Text = text
		case client.IsMiss(err):
			label.Missing = true
		default:
			return labels, err
		}

		labels = append(labels, label)
		if progress != nil {
			progress(label)
		}
	}
	return labels, nil
}
