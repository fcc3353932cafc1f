package keygen

import "github.com/bitshard-io/bitshard-sdk/party"

// RoundCommitments carries the chain-code commitment contributed by
// every party in round 1, indexed by party id (never by position, since
// ids need not be contiguous). Handle accepts this exactly once, on the
// call that closes round 2 and opens round 3.
type RoundCommitments struct {
	ChainCode map[party.ID][]byte
}

// round1Message is this party's R1 broadcast: Feldman commitments to its
// secret-sharing polynomial, a commitment to its chain-code contribution,
// and an ephemeral DH point used to derive this party's pairwise base-OT
// seed with every peer (the precomputed oblivious-transfer state a
// Keyshare carries for the sign engine's later use).
type round1Message struct {
	Commitments         [][]byte // t compressed points, degree-(t-1) polynomial
	ChainCodeCommitment []byte   // sha256(chainCodeSeed)
	EphPoint             []byte   // 33-byte compressed point
}

// round2Message is the P2P Shamir share this party sends to one peer:
// f_i(peerID), the evaluation of this party's polynomial at the
// recipient's id.
type round2Message struct {
	Share []byte // 32-byte scalar
}

// round3Message is the echo-broadcast consistency check: a digest of
// every party's round-1 broadcast as this party received it, sent P2P
// so a rushing peer cannot selectively equivocate without detection.
type round3Message struct {
	EchoDigest []byte
}

// round4Message is the final broadcast: this party's public share (its
// own polynomial evaluated at its own id, times G) and the chain-code
// contribution reveal. Recipients check the reveal against the R1
// commitment; the public share is recorded in Keyshare.PublicShares
// without being checked.
type round4Message struct {
	PublicShare    []byte // compressed point f_i(i)*G
	ChainCodeSeed []byte // 32 bytes, must hash to the R1 commitment
}
