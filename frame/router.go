package frame

import (
	"fmt"

	"github.com/zeebo/blake3"

	"github.com/bitshard-io/bitshard-sdk/internal/errs"
	"github.com/bitshard-io/bitshard-sdk/party"
)

// BroadcastSelect returns the inbound broadcast frames visible to
// party self: every frame with no recipient, excluding self's own.
func BroadcastSelect(frames []Frame, self party.ID) []Frame {
	out := make([]Frame, 0, len(frames))
	for _, f := range frames {
		if f.IsBroadcast() && f.From != self {
			out = append(out, f)
		}
	}
	return out
}

// P2PSelect returns the inbound point-to-point frames addressed to
// party self, excluding self's own.
func P2PSelect(frames []Frame, self party.ID) []Frame {
	out := make([]Frame, 0, len(frames))
	for _, f := range frames {
		if !f.IsBroadcast() && *f.To == self && f.From != self {
			out = append(out, f)
		}
	}
	return out
}

// Digest returns a blake3 digest of a frame's round-identifying
// content (sender plus payload), used by sessions to reject a second
// frame from the same sender within one round.
func Digest(f Frame) [32]byte {
	h := blake3.New()
	h.Write([]byte{byte(f.From)})
	h.Write(f.Payload)
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}

// Deduplicate groups frames by sender and rejects any round in which a
// sender appears more than once with a differing digest, or appears
// more than once at all if strict is true. Returns one frame per
// sender (the first seen) when dedup succeeds.
func Deduplicate(frames []Frame, strict bool) (map[party.ID]Frame, error) {
	out := make(map[party.ID]Frame, len(frames))
	digests := make(map[party.ID][32]byte, len(frames))
	for _, f := range frames {
		d := Digest(f)
		if prev, ok := out[f.From]; ok {
			if strict || digests[f.From] != d {
				return nil, fmt.Errorf("frame: duplicate from party %d: %w", f.From, errs.ErrFrameDuplicate)
			}
			_ = prev
			continue
		}
		out[f.From] = f
		digests[f.From] = d
	}
	return out, nil
}

// IsComplete reports whether got contains a frame from every id in
// expected, with no extras.
func IsComplete(got map[party.ID]Frame, expected party.IDSlice) bool {
	if len(got) != len(expected) {
		return false
	}
	for _, id := range expected {
		if _, ok := got[id]; !ok {
			return false
		}
	}
	return true
}
