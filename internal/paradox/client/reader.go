package client

// Receive loop that waits for a response to a specific command

import (
	"context"
	"fmt"
	"time"

	"github.com/tturner/evoprobe/internal/paradox/protocol"
)

// Reader defaults.
const (
	DefaultMaxRetries = 3
	DefaultRetryDelay = 100 * time.Millisecond
)

// Reader polls a Port for a response carrying a given command.
type Reader struct {
	MaxRetries     int
	RetryDelay     time.Duration
	ReadBufferSize int

	// Sleep waits between polls. Nil uses a context-aware timer.
	Sleep func(ctx context.Context, d time.Duration) error
}

// NewReader returns a Reader with the default retry budget.
func NewReader() *Reader {
	return &Reader{
		MaxRetries:     DefaultMaxRetries,
		RetryDelay:     DefaultRetryDelay,
		ReadBufferSize: protocol.MaxReadSize,
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// AwaitCommand waits for a response whose first body byte carries command in
// its high nibble and returns that body. Commands above 0xF are reduced to
// their high nibble first.
//
// Other responses in the same read are dropped. When the retry budget runs
// out ok is false and err is nil: the caller decides whether a miss matters.
// Framing and transport failures are returned as errors.
func (r *Reader) AwaitCommand(ctx context.Context, port Port, command byte) (body []byte, ok bool, err error) {
	if command > 0xF {
		command = protocol.HighNibble(command)
	}
	sleep := r.Sleep
	if sleep == nil {
		sleep = sleepContext
	}

	retries := 0
	for {
		available := port.DataAvailable()
		if !available && retries >= r.MaxRetries {
			return nil, false, nil
		}

		if available {
			raw, err := port.ReceiveRaw(ctx, r.ReadBufferSize)
			if err != nil {
				return nil, false, fmt.Errorf("receive: %w", err)
			}
			packets, err := protocol.SplitPackets(raw)
			if err != nil {
				return nil, false, err
			}
			for _, pkt := range packets {
				if cmd, has := pkt.Command(); has && cmd == command {
					return pkt.Body, true, nil
				}
			}
			continue
		}

		if err := sleep(ctx, r.RetryDelay); err != nil {
			return nil, false, err
		}
		retries++
	}
}
