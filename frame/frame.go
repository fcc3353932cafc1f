// Package frame implements the wire codec and router of component E:
// an opaque envelope around protocol payloads, plus the broadcast/P2P
// selection and duplicate-rejection rules every session's routing
// mirrors internally.
package frame

import (
	"encoding/base64"
	"fmt"

	"github.com/bitshard-io/bitshard-sdk/internal/errs"
	"github.com/bitshard-io/bitshard-sdk/party"
)

// Frame is the wallet core's wire envelope: sender id, optional
// recipient id (nil means broadcast), and an opaque payload. The codec
// never interprets Payload; keygen and sign encode their own round
// messages into it.
type Frame struct {
	From    party.ID
	To      *party.ID
	Payload []byte
}

// Broadcast constructs a frame addressed to every other party.
func Broadcast(from party.ID, payload []byte) Frame {
	return Frame{From: from, Payload: payload}
}

// P2P constructs a frame addressed to a single recipient.
func P2P(from, to party.ID, payload []byte) Frame {
	t := to
	return Frame{From: from, To: &t, Payload: payload}
}

// Clone returns a deep copy of f, so routing to multiple recipients never
// aliases a mutable payload buffer.
func (f Frame) Clone() Frame {
	out := Frame{From: f.From}
	if f.To != nil {
		to := *f.To
		out.To = &to
	}
	if f.Payload != nil {
		out.Payload = append([]byte(nil), f.Payload...)
	}
	return out
}

// IsBroadcast reports whether f has no specific recipient.
func (f Frame) IsBroadcast() bool { return f.To == nil }

// Validate checks f against the session's known party ids: From must be
// a known id, and if To is set it must be a different known id.
func Validate(f Frame, known party.IDSlice) error {
	if !known.Contains(f.From) {
		return fmt.Errorf("frame: sender %d unknown: %w", f.From, errs.ErrFrameFromUnknownParty)
	}
	if f.To != nil {
		if !known.Contains(*f.To) {
			return fmt.Errorf("frame: recipient %d unknown: %w", *f.To, errs.ErrFrameFromUnknownParty)
		}
		if *f.To == f.From {
			return fmt.Errorf("frame: recipient equals sender %d: %w", f.From, errs.ErrFrameMalformed)
		}
	}
	return nil
}

// EncodeTransport renders a frame's payload as base64 text, for string
// transports; binary transports pass Payload through unmodified.
func EncodeTransport(payload []byte) string {
	return base64.StdEncoding.EncodeToString(payload)
}

// DecodeTransport reverses EncodeTransport.
func DecodeTransport(s string) ([]byte, error) {
	b, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("frame: %v: %w", err, errs.ErrFrameMalformed)
	}
	return b, nil
}
