// Package poly implements the Shamir polynomial evaluation and Lagrange
// interpolation shared by the keygen and sign engines: Feldman-VSS
// commitment generation and t-of-n share reconstruction.
package poly

import (
	"github.com/bitshard-io/bitshard-sdk/curve"
	"github.com/bitshard-io/bitshard-sdk/party"
)

// Polynomial is a degree-(len(Coeffs)-1) polynomial over the scalar
// field, Coeffs[0] being the constant term (the shared secret, for a
// keygen polynomial).
type Polynomial struct {
	Coeffs []*curve.Scalar
}

// Eval computes p(x) via Horner's method.
func (p *Polynomial) Eval(x *curve.Scalar) *curve.Scalar {
	acc := curve.NewScalar()
	for i := len(p.Coeffs) - 1; i >= 0; i-- {
		acc = acc.Mul(x).Add(p.Coeffs[i])
	}
	return acc
}

// Commit returns the Feldman commitment vector C_k = Coeffs[k]*G.
func (p *Polynomial) Commit() []*curve.Point {
	out := make([]*curve.Point, len(p.Coeffs))
	for i, c := range p.Coeffs {
		out[i] = c.ActOnBase()
	}
	return out
}

// VerifyShare checks that share*G equals Σ_k commitments[k] * (x^k),
// the Feldman consistency check a recipient runs against the sender's
// published commitments before trusting a received share.
func VerifyShare(share *curve.Scalar, x *curve.Scalar, commitments []*curve.Point) bool {
	lhs := share.ActOnBase()

	rhs := curve.Identity()
	xPow := curve.OneScalar()
	for _, ck := range commitments {
		rhs = rhs.Add(xPow.Act(ck))
		xPow = xPow.Mul(x)
	}
	return lhs.Equal(rhs)
}

// Lagrange computes the Lagrange coefficients lambda_j for
// reconstructing f(target) from {f(j) : j in ids}, the standard t-of-n
// Shamir reconstruction weights. target is typically the zero scalar
// (reconstructing the secret) but PartyID-keyed evaluation points are
// also supported for derived-point arithmetic.
func Lagrange(ids party.IDSlice, target *curve.Scalar) map[party.ID]*curve.Scalar {
	out := make(map[party.ID]*curve.Scalar, len(ids))
	for _, j := range ids {
		xj := curve.ScalarFromUint64(uint64(j))
		num := curve.OneScalar()
		den := curve.OneScalar()
		for _, m := range ids {
			if m == j {
				continue
			}
			xm := curve.ScalarFromUint64(uint64(m))
			num = num.Mul(target.Sub(xm))
			den = den.Mul(xj.Sub(xm))
		}
		denInv, err := den.Invert()
		if err != nil {
			// ids contains a duplicate; callers are expected to pass a
			// distinct party id set, as party.Config guarantees.
			out[j] = curve.NewScalar()
			continue
		}
		out[j] = num.Mul(denInv)
	}
	return out
}
