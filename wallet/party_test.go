package wallet_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bitshard-io/bitshard-sdk/frame"
	"github.com/bitshard-io/bitshard-sdk/keygen"
	"github.com/bitshard-io/bitshard-sdk/party"
	"github.com/bitshard-io/bitshard-sdk/wallet"
)

// runKeygen drives every wallet.Party in parties through a full DKG and
// returns once every party has a keyshare loaded.
func runKeygen(t *testing.T, parties map[party.ID]*wallet.Party) {
	t.Helper()

	r1 := make([]frame.Frame, 0, len(parties))
	for _, p := range parties {
		f, err := p.StartKeygen()
		require.NoError(t, err)
		r1 = append(r1, f)
	}

	r2, err := wallet.FanOut(parties, func(p *wallet.Party) ([]frame.Frame, error) {
		return p.HandleKeygen(r1)
	})
	require.NoError(t, err)

	ccs := make(map[party.ID]keygen.RoundCommitments, len(parties))
	for id, p := range parties {
		cc, err := p.ChainCodeCommitment()
		require.NoError(t, err)
		ccs[id] = cc
	}

	r3, err := wallet.FanOut(parties, func(p *wallet.Party) ([]frame.Frame, error) {
		return p.HandleKeygen(r2, ccs[p.ID()])
	})
	require.NoError(t, err)

	r4, err := wallet.FanOut(parties, func(p *wallet.Party) ([]frame.Frame, error) {
		return p.HandleKeygen(r3)
	})
	require.NoError(t, err)

	_, err = wallet.FanOut(parties, func(p *wallet.Party) ([]frame.Frame, error) {
		out, err := p.HandleKeygen(r4)
		if err != nil {
			return nil, err
		}
		if _, err := p.FinishKeygen(); err != nil {
			return nil, err
		}
		return out, nil
	})
	require.NoError(t, err)
}

// runSign drives the presignature and online rounds for signers over
// digest and returns the resulting (r, s, v) agreed upon by every
// signer.
func runSign(t *testing.T, parties map[party.ID]*wallet.Party, signers party.IDSlice, digest []byte) ([]byte, []byte, byte) {
	t.Helper()

	active := make(map[party.ID]*wallet.Party, len(signers))
	for _, id := range signers {
		active[id] = parties[id]
	}

	r1 := make([]frame.Frame, 0)
	for _, p := range active {
		bcast, p2p, err := p.StartSign(signers)
		require.NoError(t, err)
		r1 = append(r1, bcast)
		r1 = append(r1, p2p...)
	}

	r2, err := wallet.FanOut(active, func(p *wallet.Party) ([]frame.Frame, error) {
		return p.HandleSign(r1)
	})
	require.NoError(t, err)

	r3, err := wallet.FanOut(active, func(p *wallet.Party) ([]frame.Frame, error) {
		return p.HandleSign(r2)
	})
	require.NoError(t, err)

	_, err = wallet.FanOut(active, func(p *wallet.Party) ([]frame.Frame, error) {
		return p.HandleSign(r3)
	})
	require.NoError(t, err)

	online := make([]frame.Frame, 0, len(active))
	for _, p := range active {
		f, err := p.LastMessage(digest)
		require.NoError(t, err)
		online = append(online, f)
	}

	var r, s []byte
	var v byte
	for _, p := range active {
		gotR, gotS, gotV, err := p.Combine(online, digest)
		require.NoError(t, err)
		if r == nil {
			r, s, v = gotR, gotS, gotV
			continue
		}
		require.Equal(t, r, gotR)
		require.Equal(t, s, gotS)
		require.Equal(t, v, gotV)
	}
	return r, s, v
}

func newParties(t *testing.T, n, th int, ids []party.ID) map[party.ID]*wallet.Party {
	t.Helper()
	cfg, err := party.NewConfig(n, th, ids...)
	require.NoError(t, err)
	out := make(map[party.ID]*wallet.Party, n)
	for _, id := range ids {
		p, err := wallet.New(cfg, id)
		require.NoError(t, err)
		out[id] = p
	}
	return out
}

func TestPartyKeygenThenSignEndToEnd(t *testing.T) {
	ids := []party.ID{0, 1, 2}
	parties := newParties(t, 3, 2, ids)
	runKeygen(t, parties)

	digest := make([]byte, 32)
	for i := range digest {
		digest[i] = byte(i)
	}
	r, s, v := runSign(t, parties, party.IDSlice{0, 2}, digest)
	require.Len(t, r, 32)
	require.Len(t, s, 32)
	require.LessOrEqual(t, v, byte(1))
}

func TestPartyRejectsSignBeforeKeygen(t *testing.T) {
	cfg, err := party.NewConfig(2, 2, 0, 1)
	require.NoError(t, err)
	p, err := wallet.New(cfg, 0)
	require.NoError(t, err)
	_, _, err = p.StartSign(party.IDSlice{0, 1})
	require.Error(t, err)
}

func TestPartyRotationPreservesPublicKey(t *testing.T) {
	ids := []party.ID{0, 1, 2}
	parties := newParties(t, 3, 2, ids)
	runKeygen(t, parties)

	original := make(map[party.ID][]byte, len(ids))
	for id, p := range parties {
		original[id] = p.Keyshare().PublicKey
	}

	r1 := make([]frame.Frame, 0, len(parties))
	for _, p := range parties {
		f, err := p.StartRotation()
		require.NoError(t, err)
		r1 = append(r1, f)
	}
	r2 := make([]frame.Frame, 0)
	for _, p := range parties {
		out, err := p.HandleKeygen(r1)
		require.NoError(t, err)
		r2 = append(r2, out...)
	}
	ccs := make(map[party.ID]keygen.RoundCommitments, len(parties))
	for id, p := range parties {
		cc, err := p.ChainCodeCommitment()
		require.NoError(t, err)
		ccs[id] = cc
	}
	r3 := make([]frame.Frame, 0)
	for id, p := range parties {
		out, err := p.HandleKeygen(r2, ccs[id])
		require.NoError(t, err)
		r3 = append(r3, out...)
	}
	r4 := make([]frame.Frame, 0)
	for _, p := range parties {
		out, err := p.HandleKeygen(r3)
		require.NoError(t, err)
		r4 = append(r4, out...)
	}
	for id, p := range parties {
		out, err := p.HandleKeygen(r4)
		require.NoError(t, err)
		require.Empty(t, out)
		ks, err := p.FinishKeygen()
		require.NoError(t, err)
		require.Equal(t, original[id], ks.PublicKey)
	}
}
