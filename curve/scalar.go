// Package curve implements the secp256k1 field and group arithmetic the
// rest of the core is built on: scalar and field element operations,
// point addition/doubling/scalar multiplication, and the compressed-point
// codec described by the wallet core's point format.
//
// All arithmetic is delegated to github.com/decred/dcrd/dcrec/secp256k1/v4;
// this package only adds the byte-level framing and the
// compression/decompression algorithm the core needs at its boundaries.
// Scalar and field addition and multiplication use that library's
// constant-time primitives; point multiplication (ActOnBase, Act) and
// scalar inversion use its variable-time (NonConst) routines.
package curve

import (
	"crypto/rand"
	"errors"
	"io"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
)

// ErrFieldInvalid is returned when a byte string does not represent a
// valid field element or scalar for the operation being attempted.
var ErrFieldInvalid = errors.New("curve: invalid field element")

// ErrScalarOutOfRange is returned when 32 bytes do not encode an integer
// in [0, n).
var ErrScalarOutOfRange = errors.New("curve: scalar out of range")

// Scalar is an integer modulo the secp256k1 group order n.
type Scalar struct {
	v secp256k1.ModNScalar
}

// NewScalar returns the zero scalar.
func NewScalar() *Scalar {
	return &Scalar{}
}

// OneScalar returns the multiplicative identity.
func OneScalar() *Scalar {
	s := new(Scalar)
	s.v.SetInt(1)
	return s
}

// RandomScalar draws a uniformly random non-zero scalar from r.
func RandomScalar(r io.Reader) (*Scalar, error) {
	if r == nil {
		r = rand.Reader
	}
	var buf [32]byte
	for {
		if _, err := io.ReadFull(r, buf[:]); err != nil {
			return nil, err
		}
		s := new(Scalar)
		overflow := s.v.SetBytes(&buf)
		if overflow == 0 && !s.v.IsZero() {
			return s, nil
		}
	}
}

// ScalarFromBytes decodes 32 big-endian bytes as a scalar, requiring the
// value to already be reduced modulo n.
func ScalarFromBytes(b []byte) (*Scalar, error) {
	if len(b) != 32 {
		return nil, ErrScalarOutOfRange
	}
	var arr [32]byte
	copy(arr[:], b)
	s := new(Scalar)
	if overflow := s.v.SetBytes(&arr); overflow != 0 {
		return nil, ErrScalarOutOfRange
	}
	return s, nil
}

// ScalarFromUint64 embeds a small non-negative integer as a scalar; used
// to turn a PartyID into the x-coordinate it is evaluated at.
func ScalarFromUint64(v uint64) *Scalar {
	s := new(Scalar)
	var buf [32]byte
	for i := 0; i < 8; i++ {
		buf[31-i] = byte(v >> (8 * i))
	}
	s.v.SetBytes(&buf)
	return s
}

// HashToScalar reduces an arbitrary-length digest modulo n, the same
// reduction ECDSA itself applies to the message digest.
func HashToScalar(digest []byte) *Scalar {
	s := new(Scalar)
	s.v.SetByteSlice(digest)
	return s
}

// Bytes serializes the scalar as 32 big-endian bytes.
func (s *Scalar) Bytes() []byte {
	b := s.v.Bytes()
	out := make([]byte, 32)
	copy(out, b[:])
	return out
}

// Clone returns an independent copy of s.
func (s *Scalar) Clone() *Scalar {
	out := new(Scalar)
	out.v.Set(&s.v)
	return out
}

// IsZero reports whether s is the additive identity.
func (s *Scalar) IsZero() bool { return s.v.IsZero() }

// Equal reports whether s and o represent the same residue.
func (s *Scalar) Equal(o *Scalar) bool {
	if o == nil {
		return false
	}
	return s.v.Equals(&o.v)
}

// Add returns s + o mod n as a new scalar.
func (s *Scalar) Add(o *Scalar) *Scalar {
	out := new(Scalar)
	out.v.Set(&s.v)
	out.v.Add(&o.v)
	return out
}

// Sub returns s - o mod n as a new scalar.
func (s *Scalar) Sub(o *Scalar) *Scalar {
	neg := new(secp256k1.ModNScalar)
	neg.Set(&o.v)
	neg.Negate()
	out := new(Scalar)
	out.v.Set(&s.v)
	out.v.Add(neg)
	return out
}

// Mul returns s * o mod n as a new scalar.
func (s *Scalar) Mul(o *Scalar) *Scalar {
	out := new(Scalar)
	out.v.Mul2(&s.v, &o.v)
	return out
}

// Negate returns -s mod n as a new scalar.
func (s *Scalar) Negate() *Scalar {
	out := new(Scalar)
	out.v.Set(&s.v)
	out.v.Negate()
	return out
}

// Invert returns s^-1 mod n and fails with ErrFieldInvalid if s is zero.
func (s *Scalar) Invert() (*Scalar, error) {
	if s.v.IsZero() {
		return nil, ErrFieldInvalid
	}
	out := new(Scalar)
	out.v.InverseValNonConst(&s.v)
	return out, nil
}

// Bit returns the i-th least-significant bit of the scalar's canonical
// representative.
func (s *Scalar) Bit(i int) int {
	b := s.Bytes()
	byteIdx := 31 - i/8
	if byteIdx < 0 || byteIdx > 31 {
		return 0
	}
	return int((b[byteIdx] >> uint(i%8)) & 1)
}

// ActOnBase returns s*G, the scalar's action on the base point.
func (s *Scalar) ActOnBase() *Point {
	var j secp256k1.JacobianPoint
	secp256k1.ScalarBaseMultNonConst(&s.v, &j)
	return &Point{j: j}
}

// Act returns s*P.
func (s *Scalar) Act(p *Point) *Point {
	var j secp256k1.JacobianPoint
	secp256k1.ScalarMultNonConst(&s.v, &p.j, &j)
	return &Point{j: j}
}
