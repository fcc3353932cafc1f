package curve

import (
	"errors"
	"math/big"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
)

// fieldPrime is p = 2^256 - 2^32 - 977, the secp256k1 base field modulus.
var fieldPrime, _ = new(big.Int).SetString(
	"FFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFEFFFFFC2F", 16)

// fieldSqrtExp is (p+1)/4, the exponent used by the p = 3 mod 4 square
// root shortcut.
var fieldSqrtExp = new(big.Int).Div(new(big.Int).Add(fieldPrime, big.NewInt(1)), big.NewInt(4))

// ErrFieldOutOfRange is returned when bytes do not encode an integer in
// [0, p) for the field prime p.
var ErrFieldOutOfRange = errors.New("curve: field element out of range")

// FieldElement is an element of the base field GF(p), p = 2^256 - 2^32 - 977.
// It backs point coordinates and the sqrt-based decompression algorithm;
// it is distinct from Scalar, which lives modulo the group order n.
type FieldElement struct {
	v secp256k1.FieldVal
}

// NewFieldElement returns the zero field element.
func NewFieldElement() *FieldElement {
	return &FieldElement{}
}

// FieldElementFromBytes decodes 32 big-endian bytes, rejecting values
// that are not already reduced modulo p.
func FieldElementFromBytes(b []byte) (*FieldElement, error) {
	if len(b) != 32 {
		return nil, ErrFieldOutOfRange
	}
	f := new(FieldElement)
	if overflow := f.v.SetByteSlice(b); overflow {
		return nil, ErrFieldOutOfRange
	}
	f.v.Normalize()
	return f, nil
}

// Bytes serializes the field element as 32 big-endian bytes.
func (f *FieldElement) Bytes() []byte {
	var out [32]byte
	v := f.v
	v.Normalize()
	v.PutBytes(&out)
	return out[:]
}

// IsZero reports whether f is zero.
func (f *FieldElement) IsZero() bool {
	v := f.v
	v.Normalize()
	return v.IsZero()
}

// IsOdd reports the parity of the field element's canonical representative.
func (f *FieldElement) IsOdd() bool {
	v := f.v
	v.Normalize()
	return v.IsOdd()
}

// Equal reports whether f and o represent the same residue mod p.
func (f *FieldElement) Equal(o *FieldElement) bool {
	a, b := f.v, o.v
	a.Normalize()
	b.Normalize()
	return a.Equals(&b)
}

// Add returns f + o mod p.
func (f *FieldElement) Add(o *FieldElement) *FieldElement {
	out := new(FieldElement)
	out.v.Set(&f.v)
	out.v.Add(&o.v)
	out.v.Normalize()
	return out
}

// Mul returns f * o mod p.
func (f *FieldElement) Mul(o *FieldElement) *FieldElement {
	out := new(FieldElement)
	out.v.Mul2(&f.v, &o.v)
	out.v.Normalize()
	return out
}

// Square returns f^2 mod p.
func (f *FieldElement) Square() *FieldElement {
	out := new(FieldElement)
	out.v.SquareVal(&f.v)
	out.v.Normalize()
	return out
}

// sqrtCandidate computes f^((p+1)/4) mod p, the classical shortcut valid
// because secp256k1's prime is 3 mod 4. Used only by Point decompression;
// the caller must verify the result squares back to f.
func (f *FieldElement) sqrtCandidate() *FieldElement {
	result := NewFieldElement()
	result.v.SetInt(1)
	base := new(FieldElement)
	base.v.Set(&f.v)
	base.v.Normalize()
	for i := fieldSqrtExp.BitLen() - 1; i >= 0; i-- {
		result.v.SquareVal(&result.v)
		result.v.Normalize()
		if fieldSqrtExp.Bit(i) == 1 {
			result.v.Mul2(&result.v, &base.v)
			result.v.Normalize()
		}
	}
	return result
}
