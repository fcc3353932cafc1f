// Package keyshare defines the per-party secret state keygen produces
// and sign consumes: the shared public key, chain code, this party's
// Shamir share, and the pairwise base oblivious-transfer seeds the sign
// engine's MtA step needs, serialized as an opaque byte string.
package keyshare

import (
	"crypto/sha256"
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"github.com/bitshard-io/bitshard-sdk/curve"
	"github.com/bitshard-io/bitshard-sdk/internal/errs"
	"github.com/bitshard-io/bitshard-sdk/party"
)

// Keyshare is the terminal output of a keygen session. It is bound to
// exactly one ThresholdConfig (n, t, ids) and carries this party's
// secret contribution plus the public material every holder agrees on.
type Keyshare struct {
	ID        party.ID
	N         int
	T         int
	PartyIDs  party.IDSlice
	PublicKey []byte // 33-byte compressed Q, identical across all holders
	ChainCode []byte // 32 bytes, identical across all holders
	Share     *curve.Scalar
	PublicShares map[party.ID][]byte // compressed per-party public shares, for MtA / verification

	// BaseOT holds this party's pairwise base oblivious-transfer seed
	// with every other party (a hash of a keygen ECDH secret), keyed by
	// peer id. The sign engine hashes it to the OT trapdoor point for
	// that pair; each signing session still runs a fresh batch of
	// per-bit OTs on top of it.
	BaseOT map[party.ID][]byte

	// Generation counts rotations: 0 for an original keygen, incremented
	// by each successful rotation.
	Generation uint64
}

// wireKeyshare is the CBOR-serializable shadow of Keyshare: curve.Scalar
// has no exported fields for cbor to walk, so Share is carried as bytes.
type wireKeyshare struct {
	ID           party.ID
	N            int
	T            int
	PartyIDs     party.IDSlice
	PublicKey    []byte
	ChainCode    []byte
	ShareBytes   []byte
	PublicShares map[party.ID][]byte
	BaseOT       map[party.ID][]byte
	Generation   uint64
}

// Serialize renders k as an opaque byte string such that
// Deserialize(Serialize(k)) reproduces k exactly.
func (k *Keyshare) Serialize() ([]byte, error) {
	w := wireKeyshare{
		ID:           k.ID,
		N:            k.N,
		T:            k.T,
		PartyIDs:     k.PartyIDs,
		PublicKey:    k.PublicKey,
		ChainCode:    k.ChainCode,
		ShareBytes:   k.Share.Bytes(),
		PublicShares: k.PublicShares,
		BaseOT:       k.BaseOT,
		Generation:   k.Generation,
	}
	b, err := cbor.Marshal(w)
	if err != nil {
		return nil, fmt.Errorf("keyshare: serialize: %w", err)
	}
	return b, nil
}

// Deserialize restores a Keyshare from bytes produced by Serialize.
func Deserialize(data []byte) (*Keyshare, error) {
	var w wireKeyshare
	if err := cbor.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("keyshare: deserialize: %w", err)
	}
	share, err := curve.ScalarFromBytes(w.ShareBytes)
	if err != nil {
		return nil, fmt.Errorf("keyshare: deserialize share: %w", err)
	}
	return &Keyshare{
		ID:           w.ID,
		N:            w.N,
		T:            w.T,
		PartyIDs:     w.PartyIDs,
		PublicKey:    w.PublicKey,
		ChainCode:    w.ChainCode,
		Share:        share,
		PublicShares: w.PublicShares,
		BaseOT:       w.BaseOT,
		Generation:   w.Generation,
	}, nil
}

// Commitment returns SHA-256(Serialize(k)), a commitment to the full
// DKG result suitable for out-of-band comparison across parties.
func (k *Keyshare) Commitment() ([]byte, error) {
	b, err := k.Serialize()
	if err != nil {
		return nil, err
	}
	sum := sha256.Sum256(b)
	return sum[:], nil
}

// Config reconstructs the ThresholdConfig this keyshare is bound to.
func (k *Keyshare) Config() (*party.Config, error) {
	return party.NewConfig(k.N, k.T, k.PartyIDs...)
}

// FinishRotation binds a freshly rotated keyshare to its predecessor:
// it must carry the identical public key Q, and its Generation must be
// exactly one more than old's. Fails with ErrRotationMismatch otherwise.
func (k *Keyshare) FinishRotation(old *Keyshare) error {
	if !bytesEqual(k.PublicKey, old.PublicKey) {
		return fmt.Errorf("keyshare: rotation changed Q: %w", errs.ErrRotationMismatch)
	}
	if k.Generation != old.Generation+1 {
		return fmt.Errorf("keyshare: rotation generation %d does not follow %d: %w", k.Generation, old.Generation, errs.ErrRotationMismatch)
	}
	if k.ID != old.ID {
		return fmt.Errorf("keyshare: rotation changed party id: %w", errs.ErrRotationMismatch)
	}
	return nil
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
