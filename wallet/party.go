// Package wallet provides a single-facade view over the keygen and sign
// engines: one Keygen/Sign/Rotate entry point over the underlying
// per-round machinery. A Party owns either a keygen session or a sign
// session at a time, never both.
package wallet

import (
	"errors"
	"fmt"

	"github.com/bitshard-io/bitshard-sdk/frame"
	"github.com/bitshard-io/bitshard-sdk/internal/errs"
	"github.com/bitshard-io/bitshard-sdk/keygen"
	"github.com/bitshard-io/bitshard-sdk/keyshare"
	"github.com/bitshard-io/bitshard-sdk/party"
	"github.com/bitshard-io/bitshard-sdk/recovery"
	"github.com/bitshard-io/bitshard-sdk/sign"
)

// ErrNoActiveSession is returned when StartRotation or StartSign is
// called while the Party holds no keyshare.
var ErrNoActiveSession = errors.New("wallet: no active session")

// ErrWrongSessionKind is returned when a keygen-only or sign-only
// operation is called while the Party holds no session of that kind,
// whether it holds the other kind or none at all.
var ErrWrongSessionKind = errors.New("wallet: wrong session kind")

// Party is one participant's handle across the lifetime of a DKG or a
// signature: construct it, drive it through StartKeygen or StartSign,
// and read the result back out once the session reports completion.
type Party struct {
	cfg *party.Config
	id  party.ID

	keygenSession *keygen.Session
	signSession   *sign.Session

	keyshare *keyshare.Keyshare
}

// New constructs a Party bound to cfg with no active session.
func New(cfg *party.Config, id party.ID) (*Party, error) {
	if !cfg.Has(id) {
		return nil, fmt.Errorf("wallet: id %d not a member of config: %w", id, errs.ErrPartyIDUnknown)
	}
	return &Party{cfg: cfg, id: id}, nil
}

// StartKeygen begins a fresh distributed key generation, discarding any
// keyshare this Party previously held.
func (p *Party) StartKeygen() (frame.Frame, error) {
	s, err := keygen.New(p.cfg, p.id)
	if err != nil {
		return frame.Frame{}, err
	}
	p.keygenSession = s
	p.signSession = nil
	p.keyshare = nil
	return s.FirstMessage()
}

// StartRotation begins a key rotation against the Party's current
// keyshare, preserving the public key on completion.
func (p *Party) StartRotation() (frame.Frame, error) {
	if p.keyshare == nil {
		return frame.Frame{}, fmt.Errorf("wallet: no keyshare to rotate: %w", ErrNoActiveSession)
	}
	s, err := keygen.NewRotation(p.cfg, p.id, p.keyshare)
	if err != nil {
		return frame.Frame{}, err
	}
	p.keygenSession = s
	p.signSession = nil
	return s.FirstMessage()
}

// HandleKeygen advances the active keygen session by one round.
func (p *Party) HandleKeygen(frames []frame.Frame, commitments ...keygen.RoundCommitments) ([]frame.Frame, error) {
	if p.keygenSession == nil {
		return nil, fmt.Errorf("wallet: %w", ErrWrongSessionKind)
	}
	return p.keygenSession.Handle(frames, commitments...)
}

// ChainCodeCommitment proxies the keygen session's R2-only call.
func (p *Party) ChainCodeCommitment() (keygen.RoundCommitments, error) {
	if p.keygenSession == nil {
		return keygen.RoundCommitments{}, fmt.Errorf("wallet: %w", ErrWrongSessionKind)
	}
	return p.keygenSession.ChainCodeCommitment()
}

// FinishKeygen finalizes the active keygen session and stores the
// resulting keyshare, ready for signing.
func (p *Party) FinishKeygen() (*keyshare.Keyshare, error) {
	if p.keygenSession == nil {
		return nil, fmt.Errorf("wallet: %w", ErrWrongSessionKind)
	}
	ks, err := p.keygenSession.Finalize()
	if err != nil {
		return nil, err
	}
	p.keyshare = ks
	p.keygenSession = nil
	return ks, nil
}

// Keyshare returns the Party's current keyshare, if any.
func (p *Party) Keyshare() *keyshare.Keyshare { return p.keyshare }

// AdoptKeyshare installs an externally-obtained keyshare (e.g. after
// deserialization), ready for signing.
func (p *Party) AdoptKeyshare(ks *keyshare.Keyshare) { p.keyshare = ks }

// StartSign begins a presignature over signers, consuming the Party's
// current keyshare. Returns the round-1 broadcast plus its accompanying
// per-peer P2P frames (PendingP2P), both of which must be dispatched.
func (p *Party) StartSign(signers party.IDSlice) (frame.Frame, []frame.Frame, error) {
	if p.keyshare == nil {
		return frame.Frame{}, nil, fmt.Errorf("wallet: no keyshare: %w", ErrNoActiveSession)
	}
	s, err := sign.New(p.keyshare, sign.IdentityDerivationPath, signers)
	if err != nil {
		return frame.Frame{}, nil, err
	}
	p.keygenSession = nil
	p.signSession = s
	bcast, err := s.FirstMessage()
	if err != nil {
		return frame.Frame{}, nil, err
	}
	return bcast, s.PendingP2P(), nil
}

// HandleSign advances the active sign session by one presignature round.
func (p *Party) HandleSign(frames []frame.Frame) ([]frame.Frame, error) {
	if p.signSession == nil {
		return nil, fmt.Errorf("wallet: %w", ErrWrongSessionKind)
	}
	return p.signSession.Handle(frames)
}

// LastMessage produces this Party's online-round share of the signature
// over digest. Legal exactly once per sign session.
func (p *Party) LastMessage(digest []byte) (frame.Frame, error) {
	if p.signSession == nil {
		return frame.Frame{}, fmt.Errorf("wallet: %w", ErrWrongSessionKind)
	}
	return p.signSession.LastMessage(digest)
}

// Combine assembles the final (r, s) from the online-round broadcasts
// and resolves the SEC1 recovery id against the Party's public key.
func (p *Party) Combine(frames []frame.Frame, digest []byte) (r, s []byte, v byte, err error) {
	if p.signSession == nil {
		return nil, nil, 0, fmt.Errorf("wallet: %w", ErrWrongSessionKind)
	}
	rScalar, sScalar, err := p.signSession.Combine(frames)
	if err != nil {
		return nil, nil, 0, err
	}
	v, err = recovery.Resolve(rScalar, sScalar, digest, p.keyshare.PublicKey)
	if err != nil {
		return nil, nil, 0, err
	}
	p.signSession = nil
	return rScalar.Bytes(), sScalar.Bytes(), v, nil
}

// ID returns the Party's configured identity.
func (p *Party) ID() party.ID { return p.id }

// Config returns the Party's threshold configuration.
func (p *Party) Config() *party.Config { return p.cfg }
