package curve_test

import (
	"crypto/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bitshard-io/bitshard-sdk/curve"
)

func TestScalarArithmetic(t *testing.T) {
	a, err := curve.RandomScalar(rand.Reader)
	require.NoError(t, err)
	b, err := curve.RandomScalar(rand.Reader)
	require.NoError(t, err)

	sum := a.Add(b)
	back := sum.Sub(b)
	require.True(t, back.Equal(a))

	prod := a.Mul(b)
	inv, err := b.Invert()
	require.NoError(t, err)
	recovered := prod.Mul(inv)
	require.True(t, recovered.Equal(a))
}

func TestScalarInvertZero(t *testing.T) {
	z := curve.NewScalar()
	_, err := z.Invert()
	require.ErrorIs(t, err, curve.ErrFieldInvalid)
}

func TestPointCompressDecompressRoundTrip(t *testing.T) {
	s, err := curve.RandomScalar(rand.Reader)
	require.NoError(t, err)
	p := s.ActOnBase()

	enc, err := p.Compress()
	require.NoError(t, err)
	require.Len(t, enc, 33)

	dec, err := curve.Decompress(enc)
	require.NoError(t, err)
	require.True(t, p.Equal(dec))
}

func TestDecompressRejectsInvalidX(t *testing.T) {
	bad := make([]byte, 33)
	bad[0] = 0x02
	for i := range bad[1:] {
		bad[1+i] = 0xFF
	}
	_, err := curve.Decompress(bad)
	require.Error(t, err)
}

func TestDecompressAcceptsUncompressedForm(t *testing.T) {
	s, err := curve.RandomScalar(rand.Reader)
	require.NoError(t, err)
	p := s.ActOnBase()

	enc := make([]byte, 65)
	enc[0] = 0x04
	copy(enc[1:33], p.X().Bytes())
	copy(enc[33:65], p.Y().Bytes())

	dec, err := curve.Decompress(enc)
	require.NoError(t, err)
	require.True(t, p.Equal(dec))
}

func TestDecompressAcceptsBareXYForm(t *testing.T) {
	s, err := curve.RandomScalar(rand.Reader)
	require.NoError(t, err)
	p := s.ActOnBase()

	enc := make([]byte, 64)
	copy(enc[0:32], p.X().Bytes())
	copy(enc[32:64], p.Y().Bytes())

	dec, err := curve.Decompress(enc)
	require.NoError(t, err)
	require.True(t, p.Equal(dec))
}

func TestDecompressRejectsMismatchedXY(t *testing.T) {
	s, err := curve.RandomScalar(rand.Reader)
	require.NoError(t, err)
	p := s.ActOnBase()

	enc := make([]byte, 64)
	copy(enc[0:32], p.X().Bytes())
	copy(enc[32:64], p.X().Bytes()) // wrong: y replaced with x
	_, err = curve.Decompress(enc)
	require.ErrorIs(t, err, curve.ErrPointNotOnCurve)
}

func TestDecompressRejectsWrongLength(t *testing.T) {
	_, err := curve.Decompress(make([]byte, 10))
	require.ErrorIs(t, err, curve.ErrPointEncoding)
}

func TestDecompressRejectsBadTag(t *testing.T) {
	g := curve.Generator()
	enc, err := g.Compress()
	require.NoError(t, err)
	enc[0] = 0x04
	_, err = curve.Decompress(enc)
	require.ErrorIs(t, err, curve.ErrPointEncoding)
}

func TestGeneratorOnCurve(t *testing.T) {
	g := curve.Generator()
	require.True(t, curve.IsOnCurve(g.X(), g.Y()))
}

func TestPointAddAssociatesWithScalarMult(t *testing.T) {
	a, err := curve.RandomScalar(rand.Reader)
	require.NoError(t, err)
	b, err := curve.RandomScalar(rand.Reader)
	require.NoError(t, err)

	lhs := a.ActOnBase().Add(b.ActOnBase())
	rhs := a.Add(b).ActOnBase()
	require.True(t, lhs.Equal(rhs))
}

func TestHashToScalarDeterministic(t *testing.T) {
	digest := []byte("same input every time")
	a := curve.HashToScalar(digest)
	b := curve.HashToScalar(digest)
	require.True(t, a.Equal(b))
}
