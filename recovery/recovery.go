// Package recovery implements component D: given an ECDSA signature
// (r, s), its 32-byte digest, and the expected public key, deduce the
// canonical recovery id v in {0, 1} via the standard SEC1 algorithm.
package recovery

import (
	"fmt"
	"math/big"

	"github.com/bitshard-io/bitshard-sdk/curve"
	"github.com/bitshard-io/bitshard-sdk/internal/errs"
)

// fieldPrime mirrors curve's internal secp256k1 base field modulus; kept
// local since curve does not export it (only field elements reduced mod
// it), and recovery needs it to implement the r+v*n < p wraparound rule.
var fieldPrime, _ = new(big.Int).SetString(
	"FFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFEFFFFFC2F", 16)

// Resolve returns v in {0, 1} such that SEC1 public-key recovery on
// (r, s, digest, v) yields expectedQ (a 33-byte compressed point). It
// fails with ErrRecoveryFailed if neither candidate matches.
func Resolve(r, s *curve.Scalar, digest []byte, expectedQ []byte) (byte, error) {
	if len(digest) != 32 {
		return 0, fmt.Errorf("recovery: digest must be 32 bytes, got %d: %w", len(digest), errs.ErrDigestLengthInvalid)
	}
	expected, err := curve.Decompress(expectedQ)
	if err != nil {
		return 0, fmt.Errorf("recovery: expected key: %w", err)
	}

	h := curve.HashToScalar(digest)
	rInv, err := r.Invert()
	if err != nil {
		return 0, fmt.Errorf("recovery: %w", err)
	}

	rBig := new(big.Int).SetBytes(r.Bytes())

	for v := byte(0); v < 2; v++ {
		x := rBig

		xBytes := leftPad32(x)
		wantOdd := v%2 == 1
		// v's low bit selects y-parity directly: v=0 -> even y, v=1 -> odd y.
		// R.x is taken to be r itself; a signature whose R.x is at least n
		// does not resolve.
		enc := make([]byte, 33)
		if wantOdd {
			enc[0] = 0x03
		} else {
			enc[0] = 0x02
		}
		copy(enc[1:], xBytes)

		R, err := curve.Decompress(enc)
		if err != nil {
			continue
		}

		// Q' = r^-1 * (s*R - h*G)
		sR := s.Act(R)
		hG := h.ActOnBase()
		diff := sR.Add(hG.Negate())
		qPrime := rInv.Act(diff)

		if qPrime.Equal(expected) {
			return v, nil
		}
	}

	return 0, fmt.Errorf("recovery: %w", errs.ErrRecoveryFailed)
}

func leftPad32(v *big.Int) []byte {
	b := v.Bytes()
	if len(b) >= 32 {
		return b[len(b)-32:]
	}
	out := make([]byte, 32)
	copy(out[32-len(b):], b)
	return out
}
