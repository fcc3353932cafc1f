package ot

import (
	"crypto/rand"
	"fmt"

	"github.com/bitshard-io/bitshard-sdk/curve"
)

// Gilboa's OT-based multiplicative-to-additive conversion: the sender
// holds a scalar a, the receiver holds a scalar b, and the protocol
// below produces alpha (sender's share) and beta (receiver's share)
// such that alpha + beta = a*b mod n, without either side learning the
// other's secret. This backs the sign engine's cross-term conversion
// for k_i*gamma_j and k_i*w_j.

// SenderCorrections is the sender's private state between preparing its
// OT messages and learning its additive share.
type SenderCorrections struct {
	alpha *curve.Scalar
}

// MtASenderPrepare builds the per-bit OT sender messages for a. For bit
// k, the two candidate messages are (r_k, r_k + a*2^k); whichever the
// receiver's bit selects, summing the chosen messages telescopes to
// a*b once the receiver's bits are weighted by their position.
func MtASenderPrepare(a *curve.Scalar) (SenderCorrections, [][2][]byte, error) {
	messages := make([][2][]byte, NumBits)
	sumR := curve.NewScalar()
	twoPow := curve.OneScalar()
	two := curve.ScalarFromUint64(2)

	for k := 0; k < NumBits; k++ {
		r, err := curve.RandomScalar(rand.Reader)
		if err != nil {
			return SenderCorrections{}, nil, err
		}
		sumR = sumR.Add(r)
		weighted := a.Mul(twoPow)
		m1 := r.Add(weighted)
		messages[k] = [2][]byte{r.Bytes(), m1.Bytes()}
		twoPow = twoPow.Mul(two)
	}

	alpha := sumR.Negate()
	return SenderCorrections{alpha: alpha}, messages, nil
}

// Alpha returns the sender's additive share, valid once MtASenderPrepare
// has produced it.
func (s SenderCorrections) Alpha() *curve.Scalar { return s.alpha }

// MtAReceiverPrepare runs the receiver's OT round for b against the
// pairwise trapdoor point c (derived from the two parties' shared
// base-OT seed).
func MtAReceiverPrepare(b *curve.Scalar, c *curve.Point) (ReceiverState, []PKPair) {
	return ReceiverRound1(bitsOf(b), c)
}

// MtASenderRespond is the sender's second message: the OT ciphertexts
// encrypting the per-bit message pairs under the receiver's public keys.
func MtASenderRespond(pairs []PKPair, messages [][2][]byte) ([]Ciphertext, error) {
	return SenderRound(pairs, messages)
}

// MtAReceiverFinish decodes the chosen OT messages and sums them into
// the receiver's additive share beta.
func MtAReceiverFinish(st ReceiverState, cts []Ciphertext) (*curve.Scalar, error) {
	decoded, err := ReceiverDecode(st, cts)
	if err != nil {
		return nil, fmt.Errorf("ot: mta receiver finish: %w", err)
	}
	beta := curve.NewScalar()
	for _, d := range decoded {
		chosen, err := curve.ScalarFromBytes(d)
		if err != nil {
			return nil, fmt.Errorf("ot: mta decoded message out of range: %w", err)
		}
		beta = beta.Add(chosen)
	}
	return beta, nil
}
