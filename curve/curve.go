package curve

import (
	"math/big"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
)

// Order returns n, the order of the secp256k1 base point, as a big-endian
// 32-byte encoding.
func Order() []byte {
	return leftPad32(secp256k1.Params().N)
}

// OrderBigInt returns n as a *big.Int, for callers that need big-integer
// arithmetic on the order that the Scalar type does not expose.
func OrderBigInt() *big.Int {
	return new(big.Int).Set(secp256k1.Params().N)
}

func leftPad32(n *big.Int) []byte {
	b := n.Bytes()
	if len(b) >= 32 {
		return b[len(b)-32:]
	}
	out := make([]byte, 32)
	copy(out[32-len(b):], b)
	return out
}

// IsOnCurve reports whether (x, y) satisfies y^2 = x^3 + 7 mod p.
func IsOnCurve(x, y *FieldElement) bool {
	lhs := y.Square()
	rhs := x.Square().Mul(x).Add(curveB)
	return lhs.Equal(rhs)
}
