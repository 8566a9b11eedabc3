package uptime_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rony4d/opera-stake/staking/statemachine"
	"github.com/rony4d/opera-stake/staking/store/memstore"
	"github.com/rony4d/opera-stake/staking/types"
	"github.com/rony4d/opera-stake/staking/uptime"
)

func testParams() types.StakeParameters {
	return types.StakeParameters{
		ActiveValidatorLimit:       10,
		SignedBlocksWindowLen:      5,
		MissedBlocksMaximum:        3,
		UnbondingEpochs:            2,
		SlashingPenaltyDowntime:    types.Penalty{Value: 1_000_000},
		SlashingPenaltyMisbehavior: types.Penalty{Value: 50_000_000},
	}
}

func activateValidator(t *testing.T, s interface {
	PutValidator(types.Validator) error
	PutState(types.IdentityKey, types.State) error
	PutBondingState(types.IdentityKey, types.BondingState) error
	PutUptime(types.IdentityKey, types.Uptime) error
}, id types.IdentityKey, ck types.ConsensusKey) {
	require.NoError(t, s.PutValidator(types.Validator{IdentityKey: id, ConsensusKey: ck}))
	require.NoError(t, s.PutState(id, types.StateActive))
	require.NoError(t, s.PutBondingState(id, types.Bonded()))
	require.NoError(t, s.PutUptime(id, types.NewUptime(5, 0)))
}

func TestBeginBlockFirstBlockTreatsAllAsSigned(t *testing.T) {
	s := memstore.New()
	id := types.IdentityKey("v1")
	activateValidator(t, s, id, types.ConsensusKey("ck1"))

	sm := statemachine.New(s, testParams())
	tr := uptime.NewTracker(s, sm, testParams())

	s.BeginWrite()
	require.NoError(t, tr.BeginBlock(1, 0, nil))
	s.EndWrite()

	u, ok, err := s.Uptime(id)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Zero(t, u.Misses)
}

func TestBeginBlockJailsAfterMissedBlocksMaximum(t *testing.T) {
	s := memstore.New()
	id := types.IdentityKey("v1")
	ck := types.ConsensusKey("ck1")
	activateValidator(t, s, id, ck)
	addr := types.DeriveConsensusAddress(ck)

	sm := statemachine.New(s, testParams())
	tr := uptime.NewTracker(s, sm, testParams())

	// Height 1 always counts as signed, so three misses take heights 2..4.
	for h := types.BlockHeight(2); h <= 4; h++ {
		s.BeginWrite()
		votes := []uptime.Vote{{Address: addr, Signed: false}}
		require.NoError(t, tr.BeginBlock(h, 0, votes))
		s.EndWrite()
	}

	st, _, _ := s.State(id)
	assert.Equal(t, types.StateJailed, st)
	assert.True(t, s.Overlay().EndEpochSignaled())
}

func TestBeginBlockPersistsUptimeForNonJailedValidators(t *testing.T) {
	s := memstore.New()
	id := types.IdentityKey("v1")
	ck := types.ConsensusKey("ck1")
	activateValidator(t, s, id, ck)
	addr := types.DeriveConsensusAddress(ck)

	sm := statemachine.New(s, testParams())
	tr := uptime.NewTracker(s, sm, testParams())

	s.BeginWrite()
	votes := []uptime.Vote{{Address: addr, Signed: true}}
	require.NoError(t, tr.BeginBlock(2, 0, votes))
	s.EndWrite()

	u, ok, err := s.Uptime(id)
	require.NoError(t, err)
	require.True(t, ok)
	assert.EqualValues(t, 2, u.Head)
	assert.Zero(t, u.Misses)
}
