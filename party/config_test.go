package party_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bitshard-io/bitshard-sdk/internal/errs"
	"github.com/bitshard-io/bitshard-sdk/party"
)

func TestNewConfigValid(t *testing.T) {
	cfg, err := party.NewConfig(3, 2, 0, 2, 5)
	require.NoError(t, err)
	require.Equal(t, 3, cfg.N())
	require.Equal(t, 2, cfg.T())
	require.True(t, cfg.Has(5))
	require.False(t, cfg.Has(1))
}

func TestNewConfigRejectsSmallN(t *testing.T) {
	_, err := party.NewConfig(1, 1, 0)
	require.ErrorIs(t, err, errs.ErrConfigInvalid)
}

func TestNewConfigRejectsBadThreshold(t *testing.T) {
	_, err := party.NewConfig(3, 1, 0, 1, 2)
	require.ErrorIs(t, err, errs.ErrConfigInvalid)

	_, err = party.NewConfig(3, 4, 0, 1, 2)
	require.ErrorIs(t, err, errs.ErrConfigInvalid)
}

func TestNewConfigRejectsDuplicateIDs(t *testing.T) {
	_, err := party.NewConfig(3, 2, 0, 0, 1)
	require.ErrorIs(t, err, errs.ErrPartyIDDuplicate)
}

func TestNewConfigRejectsWrongCount(t *testing.T) {
	_, err := party.NewConfig(3, 2, 0, 1)
	require.ErrorIs(t, err, errs.ErrConfigInvalid)
}

func TestValidateSubset(t *testing.T) {
	cfg, err := party.NewConfig(3, 2, 0, 2, 5)
	require.NoError(t, err)

	require.NoError(t, cfg.ValidateSubset([]party.ID{0, 2}))
	require.Error(t, cfg.ValidateSubset([]party.ID{0, 1}))
	require.Error(t, cfg.ValidateSubset([]party.ID{0, 2, 5}))
	require.Error(t, cfg.ValidateSubset([]party.ID{0, 0}))
}
