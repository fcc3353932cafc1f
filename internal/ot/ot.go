// Package ot implements the bit-level 1-out-of-2 oblivious transfer the
// sign engine's multiplicative-to-additive (MtA) conversion is built on,
// in the Bellare-Micali style: a common dlog-unknown curve point stands
// in for the "trapdoor predicate" every bit-OT instance reuses.
//
// This is the simplified, non-extended form: each MtA instance runs a
// fresh batch of per-bit OTs rather than amortizing a single base OT
// across many future signing sessions via IKNP-style OT extension. The
// per-party base-OT seed recorded in Keyshare.BaseOT seeds the random
// point C below, so the same pair of signers reuses the same trapdoor
// across every signing session their keyshare is used in.
package ot

import (
	"crypto/rand"
	"fmt"

	"github.com/cronokirby/saferith"
	"github.com/zeebo/blake3"

	"github.com/bitshard-io/bitshard-sdk/curve"
)

// NumBits is the number of bits decomposed for each MtA scalar, covering
// the full secp256k1 scalar range.
const NumBits = 256

// HashToPoint derives a curve point from seed whose discrete log is
// unknown to any party, using try-and-increment: hash seed||counter to a
// candidate x-coordinate and accept the first one that decompresses.
func HashToPoint(seed []byte) *curve.Point {
	for counter := uint32(0); ; counter++ {
		h := blake3.New()
		h.Write(seed)
		h.Write([]byte{byte(counter), byte(counter >> 8), byte(counter >> 16), byte(counter >> 24)})
		digest := h.Sum(nil)

		enc := make([]byte, 33)
		enc[0] = 0x02
		copy(enc[1:], digest[:32])
		if p, err := curve.Decompress(enc); err == nil {
			return p
		}
	}
}

// ReceiverState is a batch OT receiver's per-bit secret state, kept
// until the sender's reply arrives.
type ReceiverState struct {
	bits []int
	k    []*curve.Scalar
}

// PKPair is one bit-OT instance's pair of public keys, (pk0, pk1), sent
// sender-ward.
type PKPair struct {
	PK0, PK1 *curve.Point
}

// ReceiverRound1 runs the receiver side of len(bits) independent 1-of-2
// OTs against the common point c: for bit b, pk_b is a fresh DH key and
// pk_{1-b} = c - pk_b, whose discrete log the receiver (and everyone
// else) does not know.
func ReceiverRound1(bits []int, c *curve.Point) (ReceiverState, []PKPair) {
	st := ReceiverState{bits: append([]int(nil), bits...), k: make([]*curve.Scalar, len(bits))}
	pairs := make([]PKPair, len(bits))
	for i, b := range bits {
		k, err := curve.RandomScalar(rand.Reader)
		if err != nil {
			panic(err) // crypto/rand failure is unrecoverable
		}
		st.k[i] = k
		pk := k.ActOnBase()
		other := c.Add(pk.Negate())
		if b == 0 {
			pairs[i] = PKPair{PK0: pk, PK1: other}
		} else {
			pairs[i] = PKPair{PK0: other, PK1: pk}
		}
	}
	return st, pairs
}

// Ciphertext is one bit-OT instance's sender reply.
type Ciphertext struct {
	U0, U1 *curve.Point
	C0, C1 []byte
}

// SenderRound runs the sender side: given the receiver's public key
// pairs and, for each bit index, the two candidate messages (m0, m1),
// produces the encrypted replies.
func SenderRound(pairs []PKPair, messages [][2][]byte) ([]Ciphertext, error) {
	out := make([]Ciphertext, len(pairs))
	for i, pair := range pairs {
		r0, err := curve.RandomScalar(rand.Reader)
		if err != nil {
			return nil, err
		}
		r1, err := curve.RandomScalar(rand.Reader)
		if err != nil {
			return nil, err
		}
		pad0, err := padFromShared(r0.Act(pair.PK0))
		if err != nil {
			return nil, err
		}
		pad1, err := padFromShared(r1.Act(pair.PK1))
		if err != nil {
			return nil, err
		}
		m0, m1 := messages[i][0], messages[i][1]
		if len(m0) != len(pad0) || len(m1) != len(pad1) {
			return nil, fmt.Errorf("ot: message length must be 32 bytes")
		}
		out[i] = Ciphertext{
			U0: r0.ActOnBase(),
			U1: r1.ActOnBase(),
			C0: xor(m0, pad0),
			C1: xor(m1, pad1),
		}
	}
	return out, nil
}

// ReceiverDecode recovers each chosen message from the sender's reply.
func ReceiverDecode(st ReceiverState, cts []Ciphertext) ([][]byte, error) {
	if len(cts) != len(st.bits) {
		return nil, fmt.Errorf("ot: ciphertext count mismatch")
	}
	out := make([][]byte, len(cts))
	for i, ct := range cts {
		u := ct.U0
		c := ct.C0
		if st.bits[i] == 1 {
			u = ct.U1
			c = ct.C1
		}
		pad, err := padFromShared(st.k[i].Act(u))
		if err != nil {
			return nil, err
		}
		out[i] = xor(c, pad)
	}
	return out, nil
}

func padFromShared(p *curve.Point) ([]byte, error) {
	enc, err := p.Compress()
	if err != nil {
		return nil, fmt.Errorf("ot: degenerate shared point: %w", err)
	}
	h := blake3.New()
	h.Write(enc)
	return h.Sum(nil)[:32], nil
}

func xor(a, b []byte) []byte {
	out := make([]byte, len(a))
	for i := range a {
		out[i] = a[i] ^ b[i]
	}
	return out
}

// bitsOf returns the NumBits little-endian bits of s's canonical
// representative. The byte buffer is produced via saferith.Nat before
// the per-bit mask is applied.
func bitsOf(s *curve.Scalar) []int {
	nat := new(saferith.Nat).SetBytes(s.Bytes())
	be := nat.Bytes()
	bits := make([]int, NumBits)
	for i := 0; i < NumBits; i++ {
		byteIdx := len(be) - 1 - i/8
		if byteIdx < 0 {
			bits[i] = 0
			continue
		}
		bits[i] = int((be[byteIdx] >> uint(i%8)) & 1)
	}
	return bits
}
