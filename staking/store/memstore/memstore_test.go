package memstore

import (
	"testing"

	"github.com/rony4d/opera-stake/staking/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidatorRoundTrip(t *testing.T) {
	s := New()
	v := types.Validator{IdentityKey: types.IdentityKey("val-1"), Name: "first"}
	require.NoError(t, s.PutValidator(v))

	got, ok, err := s.Validator(v.IdentityKey)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "first", got.Name)

	_, ok, err = s.Validator(types.IdentityKey("nope"))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestPenaltyKeyedByEpoch(t *testing.T) {
	s := New()
	id := types.IdentityKey("val-2")
	require.NoError(t, s.PutPenalty(id, 1, types.Penalty{Value: 500}))
	require.NoError(t, s.PutPenalty(id, 2, types.Penalty{Value: 900}))

	p1, ok, err := s.Penalty(id, 1)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, uint64(500), p1.Value)

	p2, ok, err := s.Penalty(id, 2)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, uint64(900), p2.Value)
}

func TestReverseIndexes(t *testing.T) {
	s := New()
	id := types.IdentityKey("val-3")
	ck := types.ConsensusKey("ck-3")
	addr := types.DeriveConsensusAddress(ck)

	require.NoError(t, s.PutConsensusAddressIndex(addr, ck))
	require.NoError(t, s.PutConsensusKeyIndex(ck, id))

	gotKey, ok, err := s.ConsensusKeyByAddress(addr)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, ck, gotKey)

	gotID, ok, err := s.IdentityByConsensusKey(ck)
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, id.Equal(gotID))
}

func TestIterateIdentities(t *testing.T) {
	s := New()
	require.NoError(t, s.PutValidator(types.Validator{IdentityKey: types.IdentityKey("a")}))
	require.NoError(t, s.PutValidator(types.Validator{IdentityKey: types.IdentityKey("b")}))

	seen := map[string]bool{}
	require.NoError(t, s.IterateIdentities(func(id types.IdentityKey) error {
		seen[id.String()] = true
		return nil
	}))
	assert.Len(t, seen, 2)
}

func TestBeginEndWritePanicsOnReentry(t *testing.T) {
	s := New()
	s.BeginWrite()
	defer s.EndWrite()
	assert.Panics(t, func() { s.BeginWrite() })
}

func TestAssertUniqueWriterPanicsWithoutHandle(t *testing.T) {
	s := New()
	assert.Panics(t, func() { s.AssertUniqueWriter() })
	s.BeginWrite()
	assert.NotPanics(t, func() { s.AssertUniqueWriter() })
	s.EndWrite()
}

func TestOverlayClearsAfterEndEpoch(t *testing.T) {
	s := New()
	ov := s.Overlay()
	ov.AddDelegation(types.Delegate{ValidatorIdentity: types.IdentityKey("v"), DelegationAmount: 10})
	ov.SignalEndEpoch()

	assert.False(t, ov.PendingDelegationChanges().IsEmpty())
	assert.True(t, ov.EndEpochSignaled())

	ov.ClearDelegationChanges()
	ov.ClearEndEpochSignal()

	assert.True(t, ov.PendingDelegationChanges().IsEmpty())
	assert.False(t, ov.EndEpochSignaled())
}
