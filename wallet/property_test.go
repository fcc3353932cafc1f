package wallet_test

import (
	"fmt"
	"testing/quick"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/bitshard-io/bitshard-sdk/curve"
	"github.com/bitshard-io/bitshard-sdk/frame"
	"github.com/bitshard-io/bitshard-sdk/keygen"
	"github.com/bitshard-io/bitshard-sdk/party"
	"github.com/bitshard-io/bitshard-sdk/recovery"
	"github.com/bitshard-io/bitshard-sdk/wallet"
)

// driveKeygen runs a full DKG across parties without any *testing.T
// dependency, returning the first error encountered.
func driveKeygen(parties map[party.ID]*wallet.Party) error {
	r1 := make([]frame.Frame, 0, len(parties))
	for _, p := range parties {
		f, err := p.StartKeygen()
		if err != nil {
			return err
		}
		r1 = append(r1, f)
	}

	r2, err := wallet.FanOut(parties, func(p *wallet.Party) ([]frame.Frame, error) {
		return p.HandleKeygen(r1)
	})
	if err != nil {
		return err
	}

	ccs := make(map[party.ID]keygen.RoundCommitments, len(parties))
	for id, p := range parties {
		cc, err := p.ChainCodeCommitment()
		if err != nil {
			return err
		}
		ccs[id] = cc
	}

	r3, err := wallet.FanOut(parties, func(p *wallet.Party) ([]frame.Frame, error) {
		return p.HandleKeygen(r2, ccs[p.ID()])
	})
	if err != nil {
		return err
	}

	r4, err := wallet.FanOut(parties, func(p *wallet.Party) ([]frame.Frame, error) {
		return p.HandleKeygen(r3)
	})
	if err != nil {
		return err
	}

	_, err = wallet.FanOut(parties, func(p *wallet.Party) ([]frame.Frame, error) {
		if _, err := p.HandleKeygen(r4); err != nil {
			return nil, err
		}
		if _, err := p.FinishKeygen(); err != nil {
			return nil, err
		}
		return nil, nil
	})
	return err
}

func driveSign(parties map[party.ID]*wallet.Party, signers party.IDSlice, digest []byte) (r, s []byte, v byte, err error) {
	active := make(map[party.ID]*wallet.Party, len(signers))
	for _, id := range signers {
		active[id] = parties[id]
	}

	r1 := make([]frame.Frame, 0)
	for _, p := range active {
		bcast, p2p, e := p.StartSign(signers)
		if e != nil {
			return nil, nil, 0, e
		}
		r1 = append(r1, bcast)
		r1 = append(r1, p2p...)
	}

	r2, err := wallet.FanOut(active, func(p *wallet.Party) ([]frame.Frame, error) {
		return p.HandleSign(r1)
	})
	if err != nil {
		return nil, nil, 0, err
	}

	r3, err := wallet.FanOut(active, func(p *wallet.Party) ([]frame.Frame, error) {
		return p.HandleSign(r2)
	})
	if err != nil {
		return nil, nil, 0, err
	}

	if _, err := wallet.FanOut(active, func(p *wallet.Party) ([]frame.Frame, error) {
		return p.HandleSign(r3)
	}); err != nil {
		return nil, nil, 0, err
	}

	online := make([]frame.Frame, 0, len(active))
	for _, p := range active {
		f, e := p.LastMessage(digest)
		if e != nil {
			return nil, nil, 0, e
		}
		online = append(online, f)
	}

	for _, p := range active {
		gotR, gotS, gotV, e := p.Combine(online, digest)
		if e != nil {
			return nil, nil, 0, e
		}
		r, s, v = gotR, gotS, gotV
	}
	return r, s, v, nil
}

func newPropertyParties(n, th int, ids []party.ID) (map[party.ID]*wallet.Party, error) {
	cfg, err := party.NewConfig(n, th, ids...)
	if err != nil {
		return nil, err
	}
	out := make(map[party.ID]*wallet.Party, n)
	for _, id := range ids {
		p, err := wallet.New(cfg, id)
		if err != nil {
			return nil, err
		}
		out[id] = p
	}
	return out, nil
}

func idsUpTo(n int) []party.ID {
	out := make([]party.ID, n)
	for i := range out {
		out[i] = party.ID(i)
	}
	return out
}

var _ = Describe("Wallet Property-Based Tests", func() {
	Describe("threshold configurations of varying size", func() {
		It("produces a verifiable signature for any valid (n, t) pair", func() {
			property := func(nRaw, tRaw, digestByte uint8) bool {
				n := int(nRaw%5) + 2     // n in [2, 6]
				t := int(tRaw%uint8(n)) + 1 // t in [1, n]
				if t < 2 {
					t = 2
				}
				if t > n {
					return true
				}

				ids := idsUpTo(n)
				parties, err := newPropertyParties(n, t, ids)
				if err != nil {
					return true // invalid config, skip
				}
				if err := driveKeygen(parties); err != nil {
					return false
				}

				digest := make([]byte, 32)
				for i := range digest {
					digest[i] = digestByte
				}
				signers := party.IDSlice(ids[:t])
				r, s, v, err := driveSign(parties, signers, digest)
				if err != nil {
					return false
				}

				rScalar, err := curve.ScalarFromBytes(r)
				if err != nil {
					return false
				}
				sScalar, err := curve.ScalarFromBytes(s)
				if err != nil {
					return false
				}
				got, err := recovery.Resolve(rScalar, sScalar, digest, parties[ids[0]].Keyshare().PublicKey)
				return err == nil && got == v
			}

			cfg := &quick.Config{MaxCount: 12}
			Expect(quick.Check(property, cfg)).To(Succeed())
		})
	})

	Describe("signer subset independence", func() {
		It("produces the identical public key for any qualifying subset", func() {
			n, t := 5, 3
			ids := idsUpTo(n)
			parties, err := newPropertyParties(n, t, ids)
			Expect(err).NotTo(HaveOccurred())
			Expect(driveKeygen(parties)).To(Succeed())

			digest := make([]byte, 32)
			for i := range digest {
				digest[i] = 0x11
			}

			subsets := [][]party.ID{
				{0, 1, 2},
				{0, 1, 3},
				{2, 3, 4},
			}
			for _, subset := range subsets {
				_, _, _, err := driveSign(parties, party.IDSlice(subset), digest)
				Expect(err).NotTo(HaveOccurred(), fmt.Sprintf("subset %v", subset))
			}
		})
	})
})
