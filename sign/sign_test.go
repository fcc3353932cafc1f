package sign_test

import (
	"crypto/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bitshard-io/bitshard-sdk/curve"
	"github.com/bitshard-io/bitshard-sdk/frame"
	"github.com/bitshard-io/bitshard-sdk/keygen"
	"github.com/bitshard-io/bitshard-sdk/keyshare"
	"github.com/bitshard-io/bitshard-sdk/party"
	"github.com/bitshard-io/bitshard-sdk/recovery"
	"github.com/bitshard-io/bitshard-sdk/sign"
)

// keygenAll runs a full n-of-t DKG and returns the resulting keyshares.
func keygenAll(t *testing.T, n, th int, ids []party.ID) map[party.ID]*keyshare.Keyshare {
	t.Helper()
	cfg, err := party.NewConfig(n, th, ids...)
	require.NoError(t, err)

	sessions := make(map[party.ID]*keygen.Session, n)
	for _, id := range ids {
		s, err := keygen.New(cfg, id)
		require.NoError(t, err)
		sessions[id] = s
	}

	r1 := make([]frame.Frame, 0, n)
	for _, s := range sessions {
		f, err := s.FirstMessage()
		require.NoError(t, err)
		r1 = append(r1, f)
	}
	r2 := make([]frame.Frame, 0)
	for _, s := range sessions {
		out, err := s.Handle(r1)
		require.NoError(t, err)
		r2 = append(r2, out...)
	}
	ccs := make(map[party.ID]keygen.RoundCommitments, n)
	for id, s := range sessions {
		cc, err := s.ChainCodeCommitment()
		require.NoError(t, err)
		ccs[id] = cc
	}
	r3 := make([]frame.Frame, 0)
	for id, s := range sessions {
		out, err := s.Handle(r2, ccs[id])
		require.NoError(t, err)
		r3 = append(r3, out...)
	}
	r4 := make([]frame.Frame, 0)
	for _, s := range sessions {
		out, err := s.Handle(r3)
		require.NoError(t, err)
		r4 = append(r4, out...)
	}
	for _, s := range sessions {
		out, err := s.Handle(r4)
		require.NoError(t, err)
		require.Empty(t, out)
	}

	out := make(map[party.ID]*keyshare.Keyshare, n)
	for id, s := range sessions {
		ks, err := s.Finalize()
		require.NoError(t, err)
		out[id] = ks
	}
	return out
}

// runSign drives a full presignature plus online round for signers over
// digest, returning the final (r, s) every signer computed (they must
// all agree).
func runSign(t *testing.T, shares map[party.ID]*keyshare.Keyshare, signers party.IDSlice, digest []byte) (*curve.Scalar, *curve.Scalar) {
	t.Helper()

	sessions := make(map[party.ID]*sign.Session, len(signers))
	for _, id := range signers {
		s, err := sign.New(shares[id], sign.IdentityDerivationPath, signers)
		require.NoError(t, err)
		sessions[id] = s
	}

	r1 := make([]frame.Frame, 0, 2*len(signers))
	for _, s := range sessions {
		f, err := s.FirstMessage()
		require.NoError(t, err)
		r1 = append(r1, f)
		r1 = append(r1, s.PendingP2P()...)
	}

	r2 := make([]frame.Frame, 0)
	for _, s := range sessions {
		out, err := s.Handle(r1)
		require.NoError(t, err)
		r2 = append(r2, out...)
	}

	r3 := make([]frame.Frame, 0)
	for _, s := range sessions {
		out, err := s.Handle(r2)
		require.NoError(t, err)
		r3 = append(r3, out...)
	}

	for _, s := range sessions {
		out, err := s.Handle(r3)
		require.NoError(t, err)
		require.Empty(t, out)
	}

	online := make([]frame.Frame, 0, len(signers))
	for _, s := range sessions {
		f, err := s.LastMessage(digest)
		require.NoError(t, err)
		online = append(online, f)
	}

	var r, sig *curve.Scalar
	for _, s := range sessions {
		gotR, gotS, err := s.Combine(online)
		require.NoError(t, err)
		if r == nil {
			r, sig = gotR, gotS
			continue
		}
		require.True(t, r.Equal(gotR))
		require.True(t, sig.Equal(gotS))
	}
	return r, sig
}

func digestOf(b byte) []byte {
	d := make([]byte, 32)
	for i := range d {
		d[i] = b
	}
	return d
}

func TestTwoOfThreeKeygenThenSign(t *testing.T) {
	ids := []party.ID{0, 1, 2}
	shares := keygenAll(t, 3, 2, ids)

	digest := digestOf(0x42)
	r, s := runSign(t, shares, party.IDSlice{0, 1}, digest)
	require.False(t, r.IsZero())
	require.False(t, s.IsZero())

	v, err := recovery.Resolve(r, s, digest, shares[0].PublicKey)
	require.NoError(t, err)
	require.LessOrEqual(t, v, byte(1))
}

func TestSignerSubsetEquivalence(t *testing.T) {
	ids := []party.ID{0, 1, 2}
	shares := keygenAll(t, 3, 2, ids)
	digest := digestOf(0x7)

	subsets := []party.IDSlice{{0, 1}, {0, 2}, {1, 2}}
	for _, subset := range subsets {
		r, s := runSign(t, shares, subset, digest)
		v, err := recovery.Resolve(r, s, digest, shares[0].PublicKey)
		require.NoError(t, err, "subset %v", subset)
		require.LessOrEqual(t, v, byte(1))
	}
}

func TestOneShotEnforcement(t *testing.T) {
	ids := []party.ID{0, 1}
	shares := keygenAll(t, 2, 2, ids)
	signers := party.IDSlice{0, 1}

	sessions := make(map[party.ID]*sign.Session, 2)
	for _, id := range signers {
		s, err := sign.New(shares[id], sign.IdentityDerivationPath, signers)
		require.NoError(t, err)
		sessions[id] = s
	}

	r1 := make([]frame.Frame, 0)
	for _, s := range sessions {
		f, err := s.FirstMessage()
		require.NoError(t, err)
		r1 = append(r1, f)
		r1 = append(r1, s.PendingP2P()...)
	}
	r2 := make([]frame.Frame, 0)
	for _, s := range sessions {
		out, err := s.Handle(r1)
		require.NoError(t, err)
		r2 = append(r2, out...)
	}
	r3 := make([]frame.Frame, 0)
	for _, s := range sessions {
		out, err := s.Handle(r2)
		require.NoError(t, err)
		r3 = append(r3, out...)
	}
	for _, s := range sessions {
		_, err := s.Handle(r3)
		require.NoError(t, err)
	}

	digest := digestOf(0x99)
	s0 := sessions[0]
	_, err := s0.LastMessage(digest)
	require.NoError(t, err)

	_, err = s0.LastMessage(digest)
	require.Error(t, err)
}

func TestRecoveryParityVariesAcrossSignatures(t *testing.T) {
	ids := []party.ID{0, 1, 2}
	shares := keygenAll(t, 3, 2, ids)
	signers := party.IDSlice{0, 1}

	seenOdd, seenEven := false, false
	for i := byte(0); i < 40 && !(seenOdd && seenEven); i++ {
		digest := digestOf(i + 1)
		r, s := runSign(t, shares, signers, digest)
		v, err := recovery.Resolve(r, s, digest, shares[0].PublicKey)
		require.NoError(t, err)
		if v%2 == 0 {
			seenEven = true
		} else {
			seenOdd = true
		}
	}
	require.True(t, seenOdd && seenEven)
}

func TestRejectsUnsupportedDerivationPath(t *testing.T) {
	ids := []party.ID{0, 1, 2}
	shares := keygenAll(t, 3, 2, ids)
	_, err := sign.New(shares[0], "m/0", party.IDSlice{0, 1})
	require.Error(t, err)
}

func TestRejectsSignerNotInSet(t *testing.T) {
	ids := []party.ID{0, 1, 2}
	shares := keygenAll(t, 3, 2, ids)
	_, err := sign.New(shares[0], sign.IdentityDerivationPath, party.IDSlice{1, 2})
	require.Error(t, err)
}

func TestRandomScalarSanity(t *testing.T) {
	s, err := curve.RandomScalar(rand.Reader)
	require.NoError(t, err)
	require.False(t, s.IsZero())
}
