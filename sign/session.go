// Package sign implements component C: the DKLS23-style signing state
// machine. Three presignature rounds build an MtA-based presignature
// (the almost-all-the-work state that must never sign two digests), one
// online round produces this signer's partial signature, and combine
// assembles the final (r, s).
package sign

import (
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"io"
	"sync"

	"github.com/fxamacker/cbor/v2"

	"github.com/bitshard-io/bitshard-sdk/curve"
	"github.com/bitshard-io/bitshard-sdk/frame"
	"github.com/bitshard-io/bitshard-sdk/internal/errs"
	"github.com/bitshard-io/bitshard-sdk/internal/ot"
	"github.com/bitshard-io/bitshard-sdk/internal/poly"
	"github.com/bitshard-io/bitshard-sdk/keyshare"
	"github.com/bitshard-io/bitshard-sdk/party"
)

// IdentityDerivationPath is the only derivation path the sign engine
// accepts: there is no BIP32-compatible child-key extension yet.
const IdentityDerivationPath = "m"

type roundNum int

const (
	roundNotStarted roundNum = iota
	roundAwaiting1           // waiting for peers' R1 (commitment + OT receiver pubkeys)
	roundAwaiting2           // waiting for peers' R2 (Gamma reveal + OT sender response)
	roundAwaiting3           // waiting for peers' R3 (delta reveal)
	roundPresigReady
	roundOnlineSent
	roundSpent
	roundPoisoned
)

type peerState struct {
	// As receiver of my own gamma/w, against peer's sender role.
	recvGamma ot.ReceiverState
	recvW     ot.ReceiverState

	// As sender of k_i, against peer's receiver role; filled once peer's
	// R1 pubkeys arrive.
	alphaGamma *curve.Scalar
	alphaW     *curve.Scalar

	// Filled once peer's R2 ciphertext response arrives.
	betaGamma *curve.Scalar
	betaW     *curve.Scalar

	gammaCommitment []byte
	gammaRevealed   *curve.Point
}

// Session is one signer's view of one in-progress signature.
type Session struct {
	mu sync.Mutex

	ks      *keyshare.Keyshare
	signers party.IDSlice
	me      party.ID

	round roundNum

	sessionID [16]byte

	k     *curve.Scalar
	gamma *curve.Scalar
	w     *curve.Scalar

	peers map[party.ID]*peerState

	gammaSum  *curve.Point
	deltaSelf *curve.Scalar
	sigmaSelf *curve.Scalar
	deltaSum  *curve.Scalar

	r     *curve.Scalar
	sSelf *curve.Scalar

	pendingP2P   map[party.ID]frame.Frame
	round2P2POut map[party.ID]frame.Frame

	lastMessageCalled bool
}

// New consumes keyshare ks and constructs a signing session over the
// given signer subset (which must include ks's own party id). Only the
// identity derivation path is supported.
func New(ks *keyshare.Keyshare, derivationPath string, signers party.IDSlice) (*Session, error) {
	if derivationPath != IdentityDerivationPath {
		return nil, fmt.Errorf("sign: path %q: %w", derivationPath, errs.ErrDerivationUnsupported)
	}
	cfg, err := ks.Config()
	if err != nil {
		return nil, err
	}
	if err := cfg.ValidateSubset(signers); err != nil {
		return nil, err
	}
	if !signers.Contains(ks.ID) {
		return nil, fmt.Errorf("sign: signer set does not include %d: %w", ks.ID, errs.ErrPartyIDUnknown)
	}

	lagrange := poly.Lagrange(signers, curve.NewScalar())
	w := lagrange[ks.ID].Mul(ks.Share)

	peers := make(map[party.ID]*peerState, len(signers)-1)
	for _, id := range signers {
		if id == ks.ID {
			continue
		}
		peers[id] = &peerState{}
	}

	return &Session{
		ks:      ks,
		signers: signers.Sorted(),
		me:      ks.ID,
		round:   roundNotStarted,
		w:       w,
		peers:   peers,
	}, nil
}

func (s *Session) poison(err error) error {
	s.round = roundPoisoned
	return err
}

func (s *Session) peerIDs() party.IDSlice {
	return s.signers.Without(s.me)
}

func trapdoorFor(ks *keyshare.Keyshare, peer party.ID) (*curve.Point, error) {
	seed, ok := ks.BaseOT[peer]
	if !ok {
		return nil, fmt.Errorf("sign: no base-OT seed for peer %d: %w", peer, errs.ErrConfigInvalid)
	}
	return ot.HashToPoint(seed), nil
}

// FirstMessage emits the presignature round-1 broadcast: a commitment
// to Gamma_i. The accompanying per-peer P2P frames (this signer's
// OT-receiver pubkeys) are produced at the same time and retrievable
// via PendingP2P; both must be dispatched to peers.
func (s *Session) FirstMessage() (frame.Frame, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.round != roundNotStarted {
		return frame.Frame{}, fmt.Errorf("sign: first_message called out of order: %w", errs.ErrFrameForWrongRound)
	}

	if _, err := io.ReadFull(rand.Reader, s.sessionID[:]); err != nil {
		return frame.Frame{}, err
	}

	k, err := curve.RandomScalar(rand.Reader)
	if err != nil {
		return frame.Frame{}, err
	}
	gamma, err := curve.RandomScalar(rand.Reader)
	if err != nil {
		return frame.Frame{}, err
	}
	s.k, s.gamma = k, gamma

	Gamma := gamma.ActOnBase()
	commitBytes, err := Gamma.Compress()
	if err != nil {
		return frame.Frame{}, err
	}
	commit := sha256.Sum256(commitBytes)

	s.pendingP2P = make(map[party.ID]frame.Frame, len(s.peers))
	for peer := range s.peers {
		c, err := trapdoorFor(s.ks, peer)
		if err != nil {
			return frame.Frame{}, err
		}
		recvGamma, gammaPairs := ot.MtAReceiverPrepare(gamma, c)
		recvW, wPairs := ot.MtAReceiverPrepare(s.w, c)
		s.peers[peer].recvGamma = recvGamma
		s.peers[peer].recvW = recvW

		gammaWire, err := encodePairs(gammaPairs)
		if err != nil {
			return frame.Frame{}, err
		}
		wWire, err := encodePairs(wPairs)
		if err != nil {
			return frame.Frame{}, err
		}
		payload, err := cbor.Marshal(round1P2PMessage{GammaPairs: gammaWire, WPairs: wWire})
		if err != nil {
			return frame.Frame{}, err
		}
		s.pendingP2P[peer] = frame.P2P(s.me, peer, payload)
	}

	bcastPayload, err := cbor.Marshal(round1Message{GammaCommitment: commit[:]})
	if err != nil {
		return frame.Frame{}, err
	}

	s.round = roundAwaiting1
	return frame.Broadcast(s.me, bcastPayload), nil
}

// PendingP2P returns the round-1 P2P frames produced alongside the
// broadcast FirstMessage returns; embedders must dispatch both.
func (s *Session) PendingP2P() []frame.Frame {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]frame.Frame, 0, len(s.pendingP2P))
	for _, f := range s.pendingP2P {
		out = append(out, f)
	}
	return out
}

// Handle advances the presignature by one round.
func (s *Session) Handle(frames []frame.Frame) ([]frame.Frame, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.round {
	case roundAwaiting1:
		return s.handleRound1(frames)
	case roundAwaiting2:
		return s.handleRound2(frames)
	case roundAwaiting3:
		return s.handleRound3(frames)
	case roundPoisoned:
		return nil, fmt.Errorf("sign: session poisoned: %w", errs.ErrProtocolAbort)
	default:
		return nil, fmt.Errorf("sign: handle called out of order: %w", errs.ErrFrameForWrongRound)
	}
}

func (s *Session) handleRound1(frames []frame.Frame) ([]frame.Frame, error) {
	bcast := frame.BroadcastSelect(frames, s.me)
	gotB, err := frame.Deduplicate(bcast, true)
	if err != nil {
		return nil, s.poison(err)
	}
	p2p := frame.P2PSelect(frames, s.me)
	gotP, err := frame.Deduplicate(p2p, true)
	if err != nil {
		return nil, s.poison(err)
	}
	expected := s.peerIDs()
	if !frame.IsComplete(gotB, expected) || !frame.IsComplete(gotP, expected) {
		return nil, nil
	}

	for _, peer := range expected {
		var m round1Message
		if err := cbor.Unmarshal(gotB[peer].Payload, &m); err != nil {
			return nil, s.poison(fmt.Errorf("sign: r1 bcast from %d: %v: %w", peer, err, errs.ErrFrameMalformed))
		}
		s.peers[peer].gammaCommitment = m.GammaCommitment

		var pm round1P2PMessage
		if err := cbor.Unmarshal(gotP[peer].Payload, &pm); err != nil {
			return nil, s.poison(fmt.Errorf("sign: r1 p2p from %d: %v: %w", peer, err, errs.ErrFrameMalformed))
		}
		gammaPairs, err := decodePairs(pm.GammaPairs)
		if err != nil {
			return nil, s.poison(err)
		}
		wPairs, err := decodePairs(pm.WPairs)
		if err != nil {
			return nil, s.poison(err)
		}

		corrGamma, msgsGamma, err := ot.MtASenderPrepare(s.k)
		if err != nil {
			return nil, s.poison(err)
		}
		corrW, msgsW, err := ot.MtASenderPrepare(s.k)
		if err != nil {
			return nil, s.poison(err)
		}
		s.peers[peer].alphaGamma = corrGamma.Alpha()
		s.peers[peer].alphaW = corrW.Alpha()

		ctsGamma, err := ot.MtASenderRespond(gammaPairs, msgsGamma)
		if err != nil {
			return nil, s.poison(err)
		}
		ctsW, err := ot.MtASenderRespond(wPairs, msgsW)
		if err != nil {
			return nil, s.poison(err)
		}
		ctsGammaWire, err := encodeCiphertexts(ctsGamma)
		if err != nil {
			return nil, s.poison(err)
		}
		ctsWWire, err := encodeCiphertexts(ctsW)
		if err != nil {
			return nil, s.poison(err)
		}

		p2pPayload, err := cbor.Marshal(round2P2PMessage{GammaCts: ctsGammaWire, WCts: ctsWWire})
		if err != nil {
			return nil, s.poison(err)
		}
		s.pendingP2P2(peer, p2pPayload)
	}

	Gamma := s.gamma.ActOnBase()
	gammaBytes, err := Gamma.Compress()
	if err != nil {
		return nil, s.poison(err)
	}
	bcastPayload, err := cbor.Marshal(round2Message{Gamma: gammaBytes})
	if err != nil {
		return nil, s.poison(err)
	}

	out := make([]frame.Frame, 0, len(expected)+1)
	out = append(out, frame.Broadcast(s.me, bcastPayload))
	for _, peer := range expected {
		out = append(out, s.round2P2POut[peer])
	}

	s.round = roundAwaiting2
	return out, nil
}

func (s *Session) pendingP2P2(peer party.ID, payload []byte) {
	if s.round2P2POut == nil {
		s.round2P2POut = make(map[party.ID]frame.Frame)
	}
	s.round2P2POut[peer] = frame.P2P(s.me, peer, payload)
}

func (s *Session) handleRound2(frames []frame.Frame) ([]frame.Frame, error) {
	bcast := frame.BroadcastSelect(frames, s.me)
	gotB, err := frame.Deduplicate(bcast, true)
	if err != nil {
		return nil, s.poison(err)
	}
	p2p := frame.P2PSelect(frames, s.me)
	gotP, err := frame.Deduplicate(p2p, true)
	if err != nil {
		return nil, s.poison(err)
	}
	expected := s.peerIDs()
	if !frame.IsComplete(gotB, expected) || !frame.IsComplete(gotP, expected) {
		return nil, nil
	}

	s.gammaSum = s.gamma.ActOnBase()
	for _, peer := range expected {
		var m round2Message
		if err := cbor.Unmarshal(gotB[peer].Payload, &m); err != nil {
			return nil, s.poison(fmt.Errorf("sign: r2 bcast from %d: %v: %w", peer, err, errs.ErrFrameMalformed))
		}
		Gamma, err := curve.Decompress(m.Gamma)
		if err != nil {
			return nil, s.poison(err)
		}
		commit := sha256.Sum256(m.Gamma)
		if !bytesEqual(commit[:], s.peers[peer].gammaCommitment) {
			return nil, s.poison(fmt.Errorf("sign: Gamma reveal mismatch from %d: %w", peer, errs.NewAbortError(errs.ErrCommitmentMismatch, int(peer))))
		}
		s.peers[peer].gammaRevealed = Gamma
		s.gammaSum = s.gammaSum.Add(Gamma)

		var pm round2P2PMessage
		if err := cbor.Unmarshal(gotP[peer].Payload, &pm); err != nil {
			return nil, s.poison(fmt.Errorf("sign: r2 p2p from %d: %v: %w", peer, err, errs.ErrFrameMalformed))
		}
		ctsGamma, err := decodeCiphertexts(pm.GammaCts)
		if err != nil {
			return nil, s.poison(err)
		}
		ctsW, err := decodeCiphertexts(pm.WCts)
		if err != nil {
			return nil, s.poison(err)
		}
		betaGamma, err := ot.MtAReceiverFinish(s.peers[peer].recvGamma, ctsGamma)
		if err != nil {
			return nil, s.poison(err)
		}
		betaW, err := ot.MtAReceiverFinish(s.peers[peer].recvW, ctsW)
		if err != nil {
			return nil, s.poison(err)
		}
		s.peers[peer].betaGamma = betaGamma
		s.peers[peer].betaW = betaW
	}

	s.deltaSelf = s.k.Mul(s.gamma)
	s.sigmaSelf = s.k.Mul(s.w)
	for _, peer := range expected {
		p := s.peers[peer]
		s.deltaSelf = s.deltaSelf.Add(p.alphaGamma).Add(p.betaGamma)
		s.sigmaSelf = s.sigmaSelf.Add(p.alphaW).Add(p.betaW)
	}

	payload, err := cbor.Marshal(round3Message{Delta: s.deltaSelf.Bytes()})
	if err != nil {
		return nil, s.poison(err)
	}

	s.round = roundAwaiting3
	return []frame.Frame{frame.Broadcast(s.me, payload)}, nil
}

func (s *Session) handleRound3(frames []frame.Frame) ([]frame.Frame, error) {
	inbound := frame.BroadcastSelect(frames, s.me)
	got, err := frame.Deduplicate(inbound, true)
	if err != nil {
		return nil, s.poison(err)
	}
	expected := s.peerIDs()
	if !frame.IsComplete(got, expected) {
		return nil, nil
	}

	delta := s.deltaSelf.Clone()
	for _, peer := range expected {
		var m round3Message
		if err := cbor.Unmarshal(got[peer].Payload, &m); err != nil {
			return nil, s.poison(fmt.Errorf("sign: r3 from %d: %v: %w", peer, err, errs.ErrFrameMalformed))
		}
		d, err := curve.ScalarFromBytes(m.Delta)
		if err != nil {
			return nil, s.poison(err)
		}
		delta = delta.Add(d)
	}
	if delta.IsZero() {
		return nil, s.poison(fmt.Errorf("sign: delta is zero: %w", errs.ErrProtocolAbort))
	}
	s.deltaSum = delta

	deltaInv, err := delta.Invert()
	if err != nil {
		return nil, s.poison(err)
	}
	R := deltaInv.Act(s.gammaSum)
	if R.IsIdentity() {
		return nil, s.poison(fmt.Errorf("sign: R is identity: %w", errs.ErrProtocolAbort))
	}
	s.r = curve.HashToScalar(R.X().Bytes())

	s.round = roundPresigReady
	return nil, nil
}

// LastMessage performs the online round: given the 32-byte digest to
// sign, computes this signer's partial signature s_i and marks the
// session spent. Legal exactly once.
func (s *Session) LastMessage(digest []byte) (frame.Frame, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(digest) != 32 {
		return frame.Frame{}, fmt.Errorf("sign: digest length %d: %w", len(digest), errs.ErrDigestLengthInvalid)
	}
	if s.round == roundPoisoned {
		return frame.Frame{}, fmt.Errorf("sign: session poisoned: %w", errs.ErrProtocolAbort)
	}
	if s.lastMessageCalled {
		return frame.Frame{}, fmt.Errorf("sign: last_message called twice: %w", errs.ErrSessionSpent)
	}
	if s.round != roundPresigReady {
		return frame.Frame{}, fmt.Errorf("sign: presignature not ready: %w", errs.ErrSessionNotReady)
	}

	if err := markSpent(s.sessionID); err != nil {
		return frame.Frame{}, s.poison(err)
	}
	s.lastMessageCalled = true

	h := curve.HashToScalar(digest)
	s.sSelf = s.k.Mul(h).Add(s.r.Mul(s.sigmaSelf))

	payload, err := cbor.Marshal(onlineMessage{S: s.sSelf.Bytes()})
	if err != nil {
		return frame.Frame{}, s.poison(err)
	}

	s.round = roundOnlineSent
	return frame.Broadcast(s.me, payload), nil
}

// Combine consumes the peers' online-round frames and returns (r, s) as
// 32-byte big-endian scalars. Legal exactly once.
func (s *Session) Combine(frames []frame.Frame) (*curve.Scalar, *curve.Scalar, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.round == roundSpent {
		return nil, nil, fmt.Errorf("sign: combine called twice: %w", errs.ErrSessionSpent)
	}
	if s.round != roundOnlineSent {
		return nil, nil, fmt.Errorf("sign: combine before last_message: %w", errs.ErrSessionNotReady)
	}

	inbound := frame.BroadcastSelect(frames, s.me)
	got, err := frame.Deduplicate(inbound, true)
	if err != nil {
		return nil, nil, s.poison(err)
	}
	expected := s.peerIDs()
	if !frame.IsComplete(got, expected) {
		return nil, nil, fmt.Errorf("sign: combine missing peer shares: %w", errs.ErrSessionNotReady)
	}

	total := s.sSelf.Clone()
	for _, peer := range expected {
		var m onlineMessage
		if err := cbor.Unmarshal(got[peer].Payload, &m); err != nil {
			return nil, nil, s.poison(fmt.Errorf("sign: online from %d: %v: %w", peer, err, errs.ErrFrameMalformed))
		}
		si, err := curve.ScalarFromBytes(m.S)
		if err != nil {
			return nil, nil, s.poison(err)
		}
		total = total.Add(si)
	}

	s.round = roundSpent
	return s.r, total, nil
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
