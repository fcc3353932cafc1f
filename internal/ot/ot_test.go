package ot_test

import (
	"crypto/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bitshard-io/bitshard-sdk/curve"
	"github.com/bitshard-io/bitshard-sdk/internal/ot"
)

func TestSingleOTTransfersChosenMessage(t *testing.T) {
	c := ot.HashToPoint([]byte("test-trapdoor"))

	st, pairs := ot.ReceiverRound1([]int{1, 0}, c)
	messages := [][2][]byte{
		{repeat(0xAA), repeat(0xBB)},
		{repeat(0xCC), repeat(0xDD)},
	}
	cts, err := ot.SenderRound(pairs, messages)
	require.NoError(t, err)

	got, err := ot.ReceiverDecode(st, cts)
	require.NoError(t, err)
	require.Equal(t, repeat(0xBB), got[0])
	require.Equal(t, repeat(0xCC), got[1])
}

func repeat(b byte) []byte {
	out := make([]byte, 32)
	for i := range out {
		out[i] = b
	}
	return out
}

func TestMtAProducesAdditiveShares(t *testing.T) {
	a, err := curve.RandomScalar(rand.Reader)
	require.NoError(t, err)
	b, err := curve.RandomScalar(rand.Reader)
	require.NoError(t, err)

	c := ot.HashToPoint([]byte("pairwise-trapdoor"))

	senderState, messages, err := ot.MtASenderPrepare(a)
	require.NoError(t, err)

	recvState, pairs := ot.MtAReceiverPrepare(b, c)
	cts, err := ot.MtASenderRespond(pairs, messages)
	require.NoError(t, err)

	beta, err := ot.MtAReceiverFinish(recvState, cts)
	require.NoError(t, err)

	sum := senderState.Alpha().Add(beta)
	want := a.Mul(b)
	require.True(t, sum.Equal(want))
}
