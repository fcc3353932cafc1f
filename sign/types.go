package sign

// round1Message is the presignature R1 broadcast: a commitment to this
// signer's blinding point Gamma_i = gamma_i*G.
type round1Message struct {
	GammaCommitment []byte
}

// round1P2PMessage carries this signer's OT-receiver pubkeys for its own
// gamma and w contributions, addressed to one peer, so that peer (as OT
// sender of its instance key) can respond in round 2.
type round1P2PMessage struct {
	GammaPairs []pkPairWire
	WPairs     []pkPairWire
}

// round2Message is the presignature R2 broadcast: the revealed Gamma_i,
// checked against the round-1 commitment.
type round2Message struct {
	Gamma []byte
}

// round2P2PMessage is this signer's OT-sender response to a peer's R1
// receiver pubkeys, for both the gamma and w cross terms.
type round2P2PMessage struct {
	GammaCts []ctWire
	WCts     []ctWire
}

// round3Message is the presignature R3 broadcast: the revealed delta_i,
// safe to publish because gamma blinds k_i.
type round3Message struct {
	Delta []byte
}

// onlineMessage is the single online-round broadcast: this signer's
// partial signature s_i.
type onlineMessage struct {
	S []byte
}

// pkPairWire / ctWire are the CBOR-friendly shadows of ot.PKPair and
// ot.Ciphertext (whose fields are *curve.Point, not directly
// cbor-serializable without custom codecs).
type pkPairWire struct {
	PK0, PK1 []byte
}

type ctWire struct {
	U0, U1 []byte
	C0, C1 []byte
}
