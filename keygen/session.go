// Package keygen implements component B: the DKLS23-style keygen state
// machine. Four rounds of Feldman-VSS joint Shamir sharing produce a
// Keyshare held identically in shape by every party, differing only in
// each party's own secret share.
package keygen

import (
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"io"
	"sync"

	"github.com/fxamacker/cbor/v2"
	"github.com/zeebo/blake3"
	"golang.org/x/crypto/hkdf"
	"golang.org/x/crypto/sha3"

	"github.com/bitshard-io/bitshard-sdk/curve"
	"github.com/bitshard-io/bitshard-sdk/frame"
	"github.com/bitshard-io/bitshard-sdk/internal/errs"
	"github.com/bitshard-io/bitshard-sdk/internal/poly"
	"github.com/bitshard-io/bitshard-sdk/keyshare"
	"github.com/bitshard-io/bitshard-sdk/party"
)

type roundNum int

const (
	roundNotStarted roundNum = iota
	roundAwaiting1            // waiting for peers' R1 broadcasts
	roundAwaiting2            // waiting for peers' R2 P2P shares (+ RoundCommitments)
	roundAwaiting3            // waiting for peers' R3 echo digests
	roundAwaiting4            // waiting for peers' R4 broadcasts
	roundDone
	roundPoisoned
)

// Session is one party's view of one in-progress keygen.
// It is not safe for concurrent use by multiple goroutines.
type Session struct {
	mu sync.Mutex

	cfg *party.Config
	me  party.ID

	round roundNum

	// This party's own contribution.
	poly          *poly.Polynomial
	commitments   []*curve.Point
	chainCodeSeed [32]byte
	ephScalar     *curve.Scalar

	// Rotation binds the session to an existing public key. existingShare
	// is the Shamir share this party already holds; finalizeState folds
	// it into the rotated share so the joint secret (and Q) survives.
	rotating      bool
	rotationQ     []byte
	rotationGen   uint64
	existingShare *curve.Scalar

	// Collected from peers.
	r1           map[party.ID]round1Message
	sharesRecv   map[party.ID]*curve.Scalar // f_sender(me), verified
	echoesRecv   map[party.ID][]byte
	r4           map[party.ID]round4Message
	chainCodeCommitments map[party.ID][]byte // from RoundCommitments, supplied by caller

	myEchoDigest []byte
	finalShare   *curve.Scalar
	finalQ       []byte
	finalChain   []byte
	baseOT       map[party.ID][]byte
}

// New constructs a fresh keygen session for party me under cfg.
func New(cfg *party.Config, me party.ID) (*Session, error) {
	if !cfg.Has(me) {
		return nil, fmt.Errorf("keygen: %d not a member of config: %w", me, errs.ErrPartyIDUnknown)
	}
	return newSession(cfg, me, false, nil, 0, nil)
}

// NewRotation constructs a keygen session that re-shares an existing
// Keyshare's secret rather than drawing a fresh one: every party's
// round polynomial has a zero constant term, so the joint secret (and
// therefore Q) is unchanged and each party's new Shamir share is its
// old share plus its evaluation of the freshly-dealt zero-constant
// polynomials.
func NewRotation(cfg *party.Config, me party.ID, existing *keyshare.Keyshare) (*Session, error) {
	if existing == nil {
		return nil, fmt.Errorf("keygen: rotation requires an existing keyshare: %w", errs.ErrConfigInvalid)
	}
	if !cfg.Has(me) {
		return nil, fmt.Errorf("keygen: %d not a member of config: %w", me, errs.ErrPartyIDUnknown)
	}
	return newSession(cfg, me, true, existing.PublicKey, existing.Generation+1, existing.Share)
}

func newSession(cfg *party.Config, me party.ID, rotating bool, rotationQ []byte, gen uint64, existingShare *curve.Scalar) (*Session, error) {
	coeffs := make([]*curve.Scalar, cfg.T())
	for i := range coeffs {
		if rotating && i == 0 {
			// Zero constant term: this party contributes nothing to the
			// joint secret during a rotation, only to refreshing shares.
			coeffs[i] = curve.NewScalar()
			continue
		}
		s, err := curve.RandomScalar(rand.Reader)
		if err != nil {
			return nil, err
		}
		coeffs[i] = s
	}
	eph, err := curve.RandomScalar(rand.Reader)
	if err != nil {
		return nil, err
	}
	var seed [32]byte
	if _, err := io.ReadFull(rand.Reader, seed[:]); err != nil {
		return nil, err
	}

	p := &poly.Polynomial{Coeffs: coeffs}
	return &Session{
		cfg:           cfg,
		me:            me,
		round:         roundNotStarted,
		poly:          p,
		commitments:   p.Commit(),
		chainCodeSeed: seed,
		ephScalar:     eph,
		rotating:      rotating,
		rotationQ:     rotationQ,
		rotationGen:   gen,
		existingShare: existingShare,
		r1:            make(map[party.ID]round1Message),
		sharesRecv:    make(map[party.ID]*curve.Scalar),
		echoesRecv:    make(map[party.ID][]byte),
		r4:            make(map[party.ID]round4Message),
		baseOT:        make(map[party.ID][]byte),
	}, nil
}

// FirstMessage emits the round-1 broadcast frame.
func (s *Session) FirstMessage() (frame.Frame, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.round != roundNotStarted {
		return frame.Frame{}, fmt.Errorf("keygen: first_message called out of order: %w", errs.ErrFrameForWrongRound)
	}

	commitBytes := make([][]byte, len(s.commitments))
	for i, c := range s.commitments {
		b, err := c.Compress()
		if err != nil {
			return frame.Frame{}, err
		}
		commitBytes[i] = b
	}
	ccCommit := sha256.Sum256(s.chainCodeSeed[:])
	ephBytes, err := s.ephScalar.ActOnBase().Compress()
	if err != nil {
		return frame.Frame{}, err
	}

	msg := round1Message{
		Commitments:         commitBytes,
		ChainCodeCommitment: ccCommit[:],
		EphPoint:            ephBytes,
	}
	payload, err := cbor.Marshal(msg)
	if err != nil {
		return frame.Frame{}, fmt.Errorf("keygen: encode r1: %w", err)
	}

	s.r1[s.me] = msg // own entry, so echoDigest covers every party's round 1
	s.round = roundAwaiting1
	return frame.Broadcast(s.me, payload), nil
}

// ChainCodeCommitment returns the chain-code commitment vector gathered
// from round 1, indexed by party id. Callable exactly once, after the
// round-1 broadcasts have been processed via Handle and before the
// R2->R3 transition.
func (s *Session) ChainCodeCommitment() (RoundCommitments, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.round != roundAwaiting2 {
		return RoundCommitments{}, fmt.Errorf("keygen: chain_code_commitment called out of order: %w", errs.ErrSessionNotReady)
	}
	if s.chainCodeCommitments != nil {
		return RoundCommitments{}, fmt.Errorf("keygen: chain_code_commitment already produced: %w", errs.ErrSessionNotReady)
	}
	out := make(map[party.ID][]byte, len(s.r1)+1)
	for id, m := range s.r1 {
		out[id] = append([]byte(nil), m.ChainCodeCommitment...)
	}
	ownCommit := sha256.Sum256(s.chainCodeSeed[:])
	out[s.me] = ownCommit[:]
	s.chainCodeCommitments = out
	return RoundCommitments{ChainCode: out}, nil
}

// Handle advances the session by one round. commitments must be supplied
// (exactly one value) only on the call that closes round 2 and opens
// round 3; any other round rejects a non-empty commitments argument.
func (s *Session) Handle(frames []frame.Frame, commitments ...RoundCommitments) ([]frame.Frame, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.round {
	case roundAwaiting1:
		if len(commitments) != 0 {
			return nil, fmt.Errorf("keygen: commitments not expected in round 1->2: %w", errs.ErrFrameForWrongRound)
		}
		return s.handleRound1(frames)
	case roundAwaiting2:
		if len(commitments) != 1 {
			return nil, fmt.Errorf("keygen: round 2->3 requires exactly one RoundCommitments: %w", errs.ErrFrameForWrongRound)
		}
		return s.handleRound2(frames, commitments[0])
	case roundAwaiting3:
		if len(commitments) != 0 {
			return nil, fmt.Errorf("keygen: commitments not expected in round 3->4: %w", errs.ErrFrameForWrongRound)
		}
		return s.handleRound3(frames)
	case roundAwaiting4:
		if len(commitments) != 0 {
			return nil, fmt.Errorf("keygen: commitments not expected closing round 4: %w", errs.ErrFrameForWrongRound)
		}
		return s.handleRound4(frames)
	case roundPoisoned:
		return nil, fmt.Errorf("keygen: session poisoned: %w", errs.ErrProtocolAbort)
	default:
		return nil, fmt.Errorf("keygen: handle called out of order: %w", errs.ErrFrameForWrongRound)
	}
}

func (s *Session) peerIDs() party.IDSlice {
	return s.cfg.IDs().Without(s.me)
}

func (s *Session) poison(err error) error {
	s.round = roundPoisoned
	return err
}

// handleRound1 consumes R1 broadcasts and emits R2 P2P shares.
func (s *Session) handleRound1(frames []frame.Frame) ([]frame.Frame, error) {
	inbound := frame.BroadcastSelect(frames, s.me)
	got, err := frame.Deduplicate(inbound, true)
	if err != nil {
		return nil, s.poison(err)
	}
	expected := s.peerIDs()
	if !frame.IsComplete(got, expected) {
		return nil, nil // round not yet closeable
	}

	for id, f := range got {
		var msg round1Message
		if err := cbor.Unmarshal(f.Payload, &msg); err != nil {
			return nil, s.poison(fmt.Errorf("keygen: r1 from %d: %v: %w", id, err, errs.ErrFrameMalformed))
		}
		if len(msg.Commitments) != s.cfg.T() {
			return nil, s.poison(fmt.Errorf("keygen: r1 from %d has %d commitments, want %d: %w", id, len(msg.Commitments), s.cfg.T(), errs.ErrProtocolAbort))
		}
		s.r1[id] = msg
	}

	out := make([]frame.Frame, 0, len(expected))
	for _, peer := range expected {
		share := s.poly.Eval(curve.ScalarFromUint64(uint64(peer)))
		payload, err := cbor.Marshal(round2Message{Share: share.Bytes()})
		if err != nil {
			return nil, s.poison(err)
		}
		out = append(out, frame.P2P(s.me, peer, payload))

		// Derive this party's base-OT seed with peer via ECDH on the
		// round-1 ephemeral points, the "precomputed OT state" in the
		// eventual Keyshare.
		peerEph, err := curve.Decompress(s.r1[peer].EphPoint)
		if err != nil {
			return nil, s.poison(fmt.Errorf("keygen: bad eph point from %d: %w", peer, err))
		}
		shared := s.ephScalar.Act(peerEph)
		sharedBytes, err := shared.Compress()
		if err != nil {
			return nil, s.poison(err)
		}
		h := blake3.New()
		h.Write(sharedBytes)
		s.baseOT[peer] = h.Sum(nil)
	}

	s.round = roundAwaiting2
	return out, nil
}

// handleRound2 consumes R2 P2P shares and the chain-code commitments
// vector, verifies each inbound share against its sender's Feldman
// commitments, and emits R3 echo-digest frames.
func (s *Session) handleRound2(frames []frame.Frame, rc RoundCommitments) ([]frame.Frame, error) {
	inbound := frame.P2PSelect(frames, s.me)
	got, err := frame.Deduplicate(inbound, true)
	if err != nil {
		return nil, s.poison(err)
	}
	expected := s.peerIDs()
	if !frame.IsComplete(got, expected) {
		return nil, nil
	}

	myX := curve.ScalarFromUint64(uint64(s.me))
	for _, peer := range expected {
		var msg round2Message
		if err := cbor.Unmarshal(got[peer].Payload, &msg); err != nil {
			return nil, s.poison(fmt.Errorf("keygen: r2 from %d: %v: %w", peer, err, errs.ErrFrameMalformed))
		}
		share, err := curve.ScalarFromBytes(msg.Share)
		if err != nil {
			return nil, s.poison(fmt.Errorf("keygen: r2 share from %d: %w", peer, err))
		}
		senderCommitments, err := decompressAll(s.r1[peer].Commitments)
		if err != nil {
			return nil, s.poison(err)
		}
		if !poly.VerifyShare(share, myX, senderCommitments) {
			return nil, s.poison(fmt.Errorf("keygen: share from %d fails Feldman check: %w", peer, errs.NewAbortError(errs.ErrCommitmentMismatch, int(peer))))
		}
		s.sharesRecv[peer] = share
	}

	// Validate the chain-code commitments vector covers everyone and
	// matches what each party broadcast in round 1.
	for id, m := range s.r1 {
		got, ok := rc.ChainCode[id]
		if !ok || !bytesEqual(got, m.ChainCodeCommitment) {
			return nil, s.poison(fmt.Errorf("keygen: chain-code commitment mismatch for %d: %w", id, errs.NewAbortError(errs.ErrCommitmentMismatch, int(id))))
		}
	}
	s.chainCodeCommitments = rc.ChainCode

	digest := s.echoDigest()
	s.myEchoDigest = digest
	payload, err := cbor.Marshal(round3Message{EchoDigest: digest})
	if err != nil {
		return nil, s.poison(err)
	}
	out := make([]frame.Frame, 0, len(expected))
	for _, peer := range expected {
		out = append(out, frame.P2P(s.me, peer, payload))
	}

	s.round = roundAwaiting3
	return out, nil
}

// echoDigest hashes this party's view of every party's round-1
// broadcast (its own included), so peers can detect a rushing adversary
// that equivocated between recipients. Round-2 shares differ per
// recipient and are not part of the digest.
func (s *Session) echoDigest() []byte {
	h := blake3.New()
	for _, id := range s.cfg.IDs() {
		h.Write([]byte{byte(id)})
		if m, ok := s.r1[id]; ok {
			for _, c := range m.Commitments {
				h.Write(c)
			}
			h.Write(m.ChainCodeCommitment)
		}
	}
	return h.Sum(nil)
}

// handleRound3 consumes R3 echo digests, verifies every peer agrees,
// and emits the R4 final broadcast.
func (s *Session) handleRound3(frames []frame.Frame) ([]frame.Frame, error) {
	inbound := frame.P2PSelect(frames, s.me)
	got, err := frame.Deduplicate(inbound, true)
	if err != nil {
		return nil, s.poison(err)
	}
	expected := s.peerIDs()
	if !frame.IsComplete(got, expected) {
		return nil, nil
	}

	for _, peer := range expected {
		var msg round3Message
		if err := cbor.Unmarshal(got[peer].Payload, &msg); err != nil {
			return nil, s.poison(fmt.Errorf("keygen: r3 from %d: %v: %w", peer, err, errs.ErrFrameMalformed))
		}
		s.echoesRecv[peer] = msg.EchoDigest
	}
	// Every honest party computes the identical transcript digest over
	// the round-1 broadcasts; any disagreement means a peer equivocated.
	for peer, digest := range s.echoesRecv {
		if !bytesEqual(digest, s.myEchoDigest) {
			return nil, s.poison(fmt.Errorf("keygen: echo mismatch from %d: %w", peer, errs.NewAbortError(errs.ErrProtocolAbort, int(peer))))
		}
	}

	myShare := s.poly.Eval(curve.ScalarFromUint64(uint64(s.me)))
	myPub, err := myShare.ActOnBase().Compress()
	if err != nil {
		return nil, s.poison(err)
	}
	payload, err := cbor.Marshal(round4Message{
		PublicShare:   myPub,
		ChainCodeSeed: s.chainCodeSeed[:],
	})
	if err != nil {
		return nil, s.poison(err)
	}

	s.round = roundAwaiting4
	return []frame.Frame{frame.Broadcast(s.me, payload)}, nil
}

// handleRound4 consumes peers' R4 broadcasts and assembles the terminal
// state finalize() will consume.
func (s *Session) handleRound4(frames []frame.Frame) ([]frame.Frame, error) {
	inbound := frame.BroadcastSelect(frames, s.me)
	got, err := frame.Deduplicate(inbound, true)
	if err != nil {
		return nil, s.poison(err)
	}
	expected := s.peerIDs()
	if !frame.IsComplete(got, expected) {
		return nil, nil
	}

	for _, peer := range expected {
		var msg round4Message
		if err := cbor.Unmarshal(got[peer].Payload, &msg); err != nil {
			return nil, s.poison(fmt.Errorf("keygen: r4 from %d: %v: %w", peer, err, errs.ErrFrameMalformed))
		}
		cc := sha256.Sum256(msg.ChainCodeSeed)
		if !bytesEqual(cc[:], s.r1[peer].ChainCodeCommitment) {
			return nil, s.poison(fmt.Errorf("keygen: chain-code reveal mismatch from %d: %w", peer, errs.NewAbortError(errs.ErrCommitmentMismatch, int(peer))))
		}
		s.r4[peer] = msg
	}

	if err := s.finalizeState(); err != nil {
		return nil, s.poison(err)
	}

	s.round = roundDone
	return nil, nil
}

// finalizeState assembles the joint public key, chain code, and this
// party's Shamir share from the verified round-1..4 transcript. In a
// rotation, every party's round polynomial has a zero constant term, so
// the commitments sum to the identity and Q is unchanged by
// construction rather than by chance; finalShare then folds in the
// pre-rotation share so the shared secret is preserved too.
func (s *Session) finalizeState() error {
	Q := s.commitments[0] // this party's own C_0
	for _, peer := range s.peerIDs() {
		peerC0, err := curve.Decompress(s.r1[peer].Commitments[0])
		if err != nil {
			return err
		}
		Q = Q.Add(peerC0)
	}

	var qBytes []byte
	if s.rotating {
		if !Q.IsIdentity() {
			return fmt.Errorf("keygen: rotation delta polynomial nonzero at x=0: %w", errs.ErrRotationMismatch)
		}
		qBytes = s.rotationQ
	} else {
		b, err := Q.Compress()
		if err != nil {
			return err
		}
		qBytes = b
	}

	mixed := append([]byte(nil), s.chainCodeSeed[:]...)
	for _, peer := range s.peerIDs() {
		xorInto(mixed, s.r4[peer].ChainCodeSeed)
	}
	chain, err := deriveChainCode(mixed, qBytes)
	if err != nil {
		return err
	}

	finalShare := s.poly.Eval(curve.ScalarFromUint64(uint64(s.me)))
	for _, peer := range s.peerIDs() {
		finalShare = finalShare.Add(s.sharesRecv[peer])
	}
	if s.rotating {
		finalShare = finalShare.Add(s.existingShare)
	}

	s.finalQ = qBytes
	s.finalChain = chain
	s.finalShare = finalShare
	return nil
}

// Finalize produces the terminal Keyshare. Callable exactly once, after
// round 4 has closed.
func (s *Session) Finalize() (*keyshare.Keyshare, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.round != roundDone {
		return nil, fmt.Errorf("keygen: finalize called before round 4 closed: %w", errs.ErrSessionNotReady)
	}

	publicShares := make(map[party.ID][]byte, s.cfg.N())
	myPub, err := s.poly.Eval(curve.ScalarFromUint64(uint64(s.me))).ActOnBase().Compress()
	if err != nil {
		return nil, err
	}
	publicShares[s.me] = myPub
	for peer, msg := range s.r4 {
		publicShares[peer] = msg.PublicShare
	}

	gen := uint64(0)
	if s.rotating {
		gen = s.rotationGen
	}

	ks := &keyshare.Keyshare{
		ID:           s.me,
		N:            s.cfg.N(),
		T:            s.cfg.T(),
		PartyIDs:     s.cfg.IDs(),
		PublicKey:    s.finalQ,
		ChainCode:    s.finalChain,
		Share:        s.finalShare,
		PublicShares: publicShares,
		BaseOT:       s.baseOT,
		Generation:   gen,
	}

	s.round = roundPoisoned // session is single-use; finalize destroys it
	return ks, nil
}

func decompressAll(encoded [][]byte) ([]*curve.Point, error) {
	out := make([]*curve.Point, len(encoded))
	for i, b := range encoded {
		p, err := curve.Decompress(b)
		if err != nil {
			return nil, fmt.Errorf("keygen: decompress commitment %d: %w", i, err)
		}
		out[i] = p
	}
	return out, nil
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

func xorInto(dst, src []byte) {
	for i := 0; i < len(dst) && i < len(src); i++ {
		dst[i] ^= src[i]
	}
}

// deriveChainCode runs the XOR-combined per-party seed contributions
// through an HKDF-SHA3 expansion bound to the joint public key, rather
// than using the raw XOR as the chain code directly: a party that
// contributed its seed last cannot otherwise bias the combined value
// toward a chosen output.
func deriveChainCode(mixed, pubKey []byte) ([]byte, error) {
	r := hkdf.New(sha3.New256, mixed, pubKey, []byte("bitshard-sdk/keygen/chain-code"))
	out := make([]byte, 32)
	if _, err := io.ReadFull(r, out); err != nil {
		return nil, fmt.Errorf("keygen: chain code derivation: %w", err)
	}
	return out, nil
}

