package curve

import (
	"errors"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
)

// ErrPointNotOnCurve is returned when a candidate (x, parity) pair does
// not decompress to a point on the curve.
var ErrPointNotOnCurve = errors.New("curve: point not on curve")

// ErrPointEncoding is returned for a malformed compressed point.
var ErrPointEncoding = errors.New("curve: malformed point encoding")

// curveB is the secp256k1 curve constant b in y^2 = x^3 + b.
var curveB = func() *FieldElement {
	f := new(FieldElement)
	f.v.SetInt(7)
	return f
}()

// Point is a point on the secp256k1 curve, held internally in Jacobian
// coordinates to avoid an inversion on every group operation.
type Point struct {
	j secp256k1.JacobianPoint
}

// Generator returns the secp256k1 base point G.
func Generator() *Point {
	one := NewScalar()
	one.v.SetInt(1)
	return one.ActOnBase()
}

// Identity returns the point at infinity.
func Identity() *Point {
	p := new(Point)
	p.j.Z.SetInt(0)
	return p
}

// IsIdentity reports whether p is the point at infinity.
func (p *Point) IsIdentity() bool {
	a := p.affine()
	return a.Z.IsZero()
}

func (p *Point) affine() secp256k1.JacobianPoint {
	a := p.j
	a.ToAffine()
	return a
}

// X returns the point's affine x-coordinate as a field element.
func (p *Point) X() *FieldElement {
	a := p.affine()
	f := new(FieldElement)
	f.v.Set(&a.X)
	return f
}

// Y returns the point's affine y-coordinate as a field element.
func (p *Point) Y() *FieldElement {
	a := p.affine()
	f := new(FieldElement)
	f.v.Set(&a.Y)
	return f
}

// Add returns p + o.
func (p *Point) Add(o *Point) *Point {
	out := new(Point)
	secp256k1.AddNonConst(&p.j, &o.j, &out.j)
	return out
}

// Negate returns -p.
func (p *Point) Negate() *Point {
	a := p.affine()
	out := new(Point)
	out.j.X.Set(&a.X)
	out.j.Y.Set(&a.Y)
	out.j.Y.Negate(1)
	out.j.Y.Normalize()
	out.j.Z.SetInt(1)
	return out
}

// Equal reports whether p and o are the same point.
func (p *Point) Equal(o *Point) bool {
	if p.IsIdentity() || o.IsIdentity() {
		return p.IsIdentity() == o.IsIdentity()
	}
	a, b := p.affine(), o.affine()
	return a.X.Equals(&b.X) && a.Y.Equals(&b.Y)
}

// Compress encodes p in SEC1 compressed form: a parity-tagged x-coordinate,
// 33 bytes total. The identity has no compressed encoding and is
// rejected with ErrPointNotOnCurve.
func (p *Point) Compress() ([]byte, error) {
	if p.IsIdentity() {
		return nil, ErrPointNotOnCurve
	}
	a := p.affine()
	out := make([]byte, 33)
	if a.Y.IsOdd() {
		out[0] = 0x03
	} else {
		out[0] = 0x02
	}
	xBytes := a.X
	xBytes.Normalize()
	var xb [32]byte
	xBytes.PutBytes(&xb)
	copy(out[1:], xb[:])
	return out, nil
}

// Decompress accepts any of the three standard point encodings: 33-byte
// SEC1 compressed (tag 0x02/0x03 + x), 65-byte SEC1 uncompressed (tag
// 0x04 + x + y), or a bare 64-byte x||y pair as a convenience form. The
// compressed path recomputes y from x via the p = 3 mod 4 square-root
// shortcut; the other two carry y explicitly and are instead validated
// directly against the curve equation.
func Decompress(data []byte) (*Point, error) {
	switch len(data) {
	case 33:
		return decompressTagged(data)
	case 65:
		if data[0] != 0x04 {
			return nil, ErrPointEncoding
		}
		return decodeExplicit(data[1:33], data[33:65])
	case 64:
		return decodeExplicit(data[0:32], data[32:64])
	default:
		return nil, ErrPointEncoding
	}
}

// decompressTagged implements the SEC1 compressed-point decoding
// algorithm: reject x >= p, compute alpha = x^3 + 7 mod p, beta =
// alpha^((p+1)/4) mod p, verify beta^2 == alpha, then choose the root
// whose parity matches the tag byte.
func decompressTagged(data []byte) (*Point, error) {
	tag := data[0]
	if tag != 0x02 && tag != 0x03 {
		return nil, ErrPointEncoding
	}
	wantOdd := tag == 0x03

	x, err := FieldElementFromBytes(data[1:])
	if err != nil {
		return nil, ErrPointEncoding
	}

	alpha := x.Square().Mul(x).Add(curveB)
	beta := alpha.sqrtCandidate()
	if !beta.Square().Equal(alpha) {
		return nil, ErrPointNotOnCurve
	}

	y := beta
	if y.IsOdd() != wantOdd {
		y = negateField(y)
	}

	out := new(Point)
	out.j.X.Set(&x.v)
	out.j.Y.Set(&y.v)
	out.j.Y.Normalize()
	out.j.Z.SetInt(1)
	return out, nil
}

// decodeExplicit builds a point from an explicit (x, y) pair, rejecting
// it unless it satisfies the curve equation.
func decodeExplicit(xb, yb []byte) (*Point, error) {
	x, err := FieldElementFromBytes(xb)
	if err != nil {
		return nil, ErrPointEncoding
	}
	y, err := FieldElementFromBytes(yb)
	if err != nil {
		return nil, ErrPointEncoding
	}
	if !IsOnCurve(x, y) {
		return nil, ErrPointNotOnCurve
	}
	out := new(Point)
	out.j.X.Set(&x.v)
	out.j.Y.Set(&y.v)
	out.j.Z.SetInt(1)
	return out, nil
}

func negateField(f *FieldElement) *FieldElement {
	out := new(FieldElement)
	out.v.Set(&f.v)
	out.v.Negate(1)
	out.v.Normalize()
	return out
}
