package sign

import (
	"fmt"

	"github.com/bitshard-io/bitshard-sdk/curve"
	"github.com/bitshard-io/bitshard-sdk/internal/ot"
)

func encodePairs(pairs []ot.PKPair) ([]pkPairWire, error) {
	out := make([]pkPairWire, len(pairs))
	for i, p := range pairs {
		pk0, err := p.PK0.Compress()
		if err != nil {
			return nil, err
		}
		pk1, err := p.PK1.Compress()
		if err != nil {
			return nil, err
		}
		out[i] = pkPairWire{PK0: pk0, PK1: pk1}
	}
	return out, nil
}

func decodePairs(wire []pkPairWire) ([]ot.PKPair, error) {
	out := make([]ot.PKPair, len(wire))
	for i, w := range wire {
		pk0, err := curve.Decompress(w.PK0)
		if err != nil {
			return nil, fmt.Errorf("sign: decode pk0: %w", err)
		}
		pk1, err := curve.Decompress(w.PK1)
		if err != nil {
			return nil, fmt.Errorf("sign: decode pk1: %w", err)
		}
		out[i] = ot.PKPair{PK0: pk0, PK1: pk1}
	}
	return out, nil
}

func encodeCiphertexts(cts []ot.Ciphertext) ([]ctWire, error) {
	out := make([]ctWire, len(cts))
	for i, c := range cts {
		u0, err := c.U0.Compress()
		if err != nil {
			return nil, err
		}
		u1, err := c.U1.Compress()
		if err != nil {
			return nil, err
		}
		out[i] = ctWire{U0: u0, U1: u1, C0: c.C0, C1: c.C1}
	}
	return out, nil
}

func decodeCiphertexts(wire []ctWire) ([]ot.Ciphertext, error) {
	out := make([]ot.Ciphertext, len(wire))
	for i, w := range wire {
		u0, err := curve.Decompress(w.U0)
		if err != nil {
			return nil, fmt.Errorf("sign: decode u0: %w", err)
		}
		u1, err := curve.Decompress(w.U1)
		if err != nil {
			return nil, fmt.Errorf("sign: decode u1: %w", err)
		}
		out[i] = ot.Ciphertext{U0: u0, U1: u1, C0: w.C0, C1: w.C1}
	}
	return out, nil
}
