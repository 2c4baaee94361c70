package protocol

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// Mode selects how message boundaries are found in the receive buffer.
type Mode string

const (
	// ModeWhole treats the receive buffer as one message: it is complete
	// once the entire buffer parses as a single JSON value. Two messages
	// sent back-to-back without a read gap never parse and stall the
	// connection, so clients must keep at most one request outstanding.
	ModeWhole Mode = "whole"

	// ModeStream decodes the first JSON value in the buffer and keeps the
	// remaining bytes as the start of the next message.
	ModeStream Mode = "stream"

	// ModeNewline expects every message (and every response) to be
	// terminated by '\n'.
	ModeNewline Mode = "newline"
)

// DefaultMaxMessageSize is the receive buffer limit used when none is set.
const DefaultMaxMessageSize = 16 << 20

// ErrMessageTooLarge is returned by Write when the buffered bytes exceed the
// framer's limit. The buffer is discarded; the connection should be dropped.
var ErrMessageTooLarge = errors.New("message exceeds maximum size")

// ParseMode validates a framing mode name. Empty selects ModeWhole.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case "", ModeWhole:
		return ModeWhole, nil
	case ModeStream, ModeNewline:
		return Mode(s), nil
	default:
		return "", fmt.Errorf("unknown framing mode %q (want whole, stream or newline)", s)
	}
}

// Framer accumulates the raw bytes of one connection and recovers command
// envelopes from them. It is not safe for concurrent use; the owning
// connection drives it from the host loop.
type Framer struct {
	mode    Mode
	maxSize int
	buf     []byte
}

// NewFramer creates a framer. maxSize <= 0 selects DefaultMaxMessageSize.
func NewFramer(mode Mode, maxSize int) *Framer {
	if mode == "" {
		mode = ModeWhole
	}
	if maxSize <= 0 {
		maxSize = DefaultMaxMessageSize
	}
	return &Framer{mode: mode, maxSize: maxSize}
}

// Mode returns the framing mode.
func (f *Framer) Mode() Mode {
	return f.mode
}

// Buffered returns the number of bytes waiting for a message boundary.
func (f *Framer) Buffered() int {
	return len(f.buf)
}

// Reset discards any partial message.
func (f *Framer) Reset() {
	f.buf = nil
}

// Write appends received bytes to the buffer.
func (f *Framer) Write(p []byte) error {
	if len(f.buf)+len(p) > f.maxSize {
		f.buf = nil
		return fmt.Errorf("%w (%d bytes)", ErrMessageTooLarge, f.maxSize)
	}
	f.buf = append(f.buf, p...)
	return nil
}

// Next returns the next complete command, or nil when the buffer does not
// yet hold one. An incomplete or unparsable buffer is not an error: it is
// kept and retried after the next Write. A complete JSON value that is not a
// command yields an *EnvelopeError and is consumed.
func (f *Framer) Next() (*Command, error) {
	switch f.mode {
	case ModeStream:
		return f.nextStream()
	case ModeNewline:
		return f.nextLine()
	default:
		return f.nextWhole()
	}
}

func (f *Framer) nextWhole() (*Command, error) {
	trimmed := bytes.TrimSpace(f.buf)
	if len(trimmed) == 0 {
		return nil, nil
	}

	var v any
	if err := json.Unmarshal(trimmed, &v); err != nil {
		return nil, nil
	}

	f.buf = nil
	return commandFromValue(v)
}

func (f *Framer) nextStream() (*Command, error) {
	start := len(f.buf) - len(bytes.TrimLeft(f.buf, " \t\r\n"))
	if start == len(f.buf) {
		f.buf = nil
		return nil, nil
	}

	dec := json.NewDecoder(bytes.NewReader(f.buf[start:]))
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, nil
	}

	rest := f.buf[start+int(dec.InputOffset()):]
	if len(bytes.TrimSpace(rest)) == 0 {
		f.buf = nil
	} else {
		f.buf = append([]byte(nil), rest...)
	}
	return commandFromValue(v)
}

func (f *Framer) nextLine() (*Command, error) {
	for {
		i := bytes.IndexByte(f.buf, '\n')
		if i < 0 {
			return nil, nil
		}

		line := bytes.TrimSpace(f.buf[:i])
		if rest := f.buf[i+1:]; len(rest) > 0 {
			f.buf = append([]byte(nil), rest...)
		} else {
			f.buf = nil
		}
		if len(line) == 0 {
			continue
		}

		var v any
		if err := json.Unmarshal(line, &v); err != nil {
			return nil, &EnvelopeError{Reason: fmt.Sprintf("malformed JSON: %v", err)}
		}
		return commandFromValue(v)
	}
}

// Encode serialises a response for this framer's wire format.
func (f *Framer) Encode(resp Response) ([]byte, error) {
	data, err := json.Marshal(resp)
	if err != nil {
		return nil, fmt.Errorf("failed to encode response: %w", err)
	}
	if f.mode == ModeNewline {
		data = append(data, '\n')
	}
	return data, nil
}
