package epoch_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rony4d/opera-stake/staking/activeset"
	"github.com/rony4d/opera-stake/staking/collaborators/fake"
	"github.com/rony4d/opera-stake/staking/epoch"
	"github.com/rony4d/opera-stake/staking/statemachine"
	"github.com/rony4d/opera-stake/staking/store"
	"github.com/rony4d/opera-stake/staking/store/memstore"
	"github.com/rony4d/opera-stake/staking/types"
	"github.com/rony4d/opera-stake/staking/validatorupdate"
)

func testParams() types.StakeParameters {
	return types.StakeParameters{
		ActiveValidatorLimit:      10,
		SignedBlocksWindowLen:     100,
		MissedBlocksMaximum:       10,
		UnbondingEpochs:           5,
		SlashingPenaltyDowntime:   types.Penalty{Value: 1_000_000},
		SlashingPenaltyMisbehavior: types.Penalty{Value: 50_000_000},
	}
}

type harness struct {
	store    store.Store
	sm       *statemachine.Machine
	engine   *epoch.Engine
	dist     *fake.Distributions
	shielded *fake.ShieldedPool
	pool     *fake.CommunityPool
	supply   *fake.Supply
}

func newHarness(params types.StakeParameters) *harness {
	s := memstore.New()
	sm := statemachine.New(s, params)
	collabs, dist, shielded, pool, _, supply := fake.Set()
	selector := activeset.NewSelector(s, sm, params)
	builder := validatorupdate.NewBuilder(s)
	eng := epoch.New(s, sm, collabs, selector, builder)
	return &harness{store: s, sm: sm, engine: eng, dist: dist, shielded: shielded, pool: pool, supply: supply}
}

func seedActive(t *testing.T, h *harness, id types.IdentityKey, ck types.ConsensusKey, supply uint64, streams []types.FundingStream) {
	require.NoError(t, h.store.PutValidator(types.Validator{IdentityKey: id, ConsensusKey: ck, FundingStreams: streams}))
	require.NoError(t, h.store.PutState(id, types.StateActive))
	require.NoError(t, h.store.PutBondingState(id, types.Bonded()))
	require.NoError(t, h.store.PutRate(id, types.RateData{EpochIndex: 0, ValidatorExchangeRate: types.ExchangeRateScale}))
	require.NoError(t, h.store.PutVotingPower(id, supply))

	asset := types.DelegationTokenAsset(id)
	require.NoError(t, h.supply.RegisterDenom(asset))
	require.NoError(t, h.supply.UpdateTokenSupply(asset, int64(supply)))
}

func TestEndEpochZeroCommissionAdvancesExchangeRateByBaseRate(t *testing.T) {
	h := newHarness(testParams())
	require.NoError(t, h.store.PutBaseRate(types.BaseRateData{EpochIndex: 0, BaseExchangeRate: types.ExchangeRateScale}))
	require.NoError(t, h.supply.RegisterDenom(types.StakingTokenAsset))

	v1 := types.IdentityKey("v1")
	seedActive(t, h, v1, types.ConsensusKey("ck1"), 1_000_000, nil)

	h.dist.SetBudget(0, 10_000)

	h.store.BeginWrite()
	updates, err := h.engine.EndEpoch(1, 10, 0)
	h.store.EndWrite()
	require.NoError(t, err)
	require.Len(t, updates, 1)

	rate, ok, err := h.store.Rate(v1)
	require.NoError(t, err)
	require.True(t, ok)
	assert.EqualValues(t, 101_000_000, rate.ValidatorExchangeRate)
	assert.EqualValues(t, 1_000_000, rate.ValidatorRewardRate)

	base, ok, err := h.store.BaseRate()
	require.NoError(t, err)
	require.True(t, ok)
	assert.EqualValues(t, 101_000_000, base.BaseExchangeRate)
	assert.EqualValues(t, 1, uint64(base.EpochIndex))
}

func TestEndEpochNetsOutCommissionBeforeGrowth(t *testing.T) {
	h := newHarness(testParams())
	require.NoError(t, h.store.PutBaseRate(types.BaseRateData{EpochIndex: 0, BaseExchangeRate: types.ExchangeRateScale}))
	require.NoError(t, h.supply.RegisterDenom(types.StakingTokenAsset))

	v1 := types.IdentityKey("v1")
	streams := []types.FundingStream{{RateBps: 5_000, Recipient: types.FundingStreamRecipient{Kind: types.RecipientCommunityPool}}}
	seedActive(t, h, v1, types.ConsensusKey("ck1"), 1_000_000, streams)

	h.dist.SetBudget(0, 10_000)

	h.store.BeginWrite()
	_, err := h.engine.EndEpoch(1, 10, 0)
	h.store.EndWrite()
	require.NoError(t, err)

	rate, ok, err := h.store.Rate(v1)
	require.NoError(t, err)
	require.True(t, ok)
	// Half the base reward rate is commission, so the validator's own
	// exchange rate only grows by half as much as the base rate.
	assert.EqualValues(t, 100_500_000, rate.ValidatorExchangeRate)
	assert.Len(t, h.pool.Deposits, 1)
	assert.NotZero(t, h.pool.Deposits[0])
}

func TestEndEpochReleasesCompletedUnbonding(t *testing.T) {
	params := testParams()
	h := newHarness(params)
	require.NoError(t, h.store.PutBaseRate(types.BaseRateData{EpochIndex: 0, BaseExchangeRate: types.ExchangeRateScale}))
	require.NoError(t, h.supply.RegisterDenom(types.StakingTokenAsset))

	v1 := types.IdentityKey("v1")
	seedActive(t, h, v1, types.ConsensusKey("ck1"), 1_000_000, nil)

	v2 := types.IdentityKey("v2")
	require.NoError(t, h.store.PutValidator(types.Validator{IdentityKey: v2, ConsensusKey: types.ConsensusKey("ck2")}))
	require.NoError(t, h.store.PutState(v2, types.StateJailed))
	require.NoError(t, h.store.PutBondingState(v2, types.Unbonding(0)))
	require.NoError(t, h.store.PutRate(v2, types.RateData{ValidatorExchangeRate: types.ExchangeRateScale}))
	require.NoError(t, h.store.PutVotingPower(v2, 0))
	asset2 := types.DelegationTokenAsset(v2)
	require.NoError(t, h.supply.RegisterDenom(asset2))

	h.dist.SetBudget(0, 10_000)

	h.store.BeginWrite()
	_, err := h.engine.EndEpoch(1, 10, 0)
	h.store.EndWrite()
	require.NoError(t, err)

	bs, ok, err := h.store.BondingState(v2)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, types.BondingUnbonded, bs.Kind)
}

func TestEndEpochAggregatesDelegationActivityIntoSupply(t *testing.T) {
	h := newHarness(testParams())
	require.NoError(t, h.store.PutBaseRate(types.BaseRateData{EpochIndex: 0, BaseExchangeRate: types.ExchangeRateScale}))
	require.NoError(t, h.supply.RegisterDenom(types.StakingTokenAsset))

	v1 := types.IdentityKey("v1")
	seedActive(t, h, v1, types.ConsensusKey("ck1"), 1_000_000, nil)
	h.dist.SetBudget(0, 10_000)
	require.NoError(t, h.supply.UpdateTokenSupply(types.StakingTokenAsset, 10_000_000))

	require.NoError(t, h.store.PutDelegationChanges(5, types.DelegationChanges{
		Delegations: []types.Delegate{{ValidatorIdentity: v1, DelegationAmount: 200_000}},
	}))
	require.NoError(t, h.store.PutDelegationChanges(7, types.DelegationChanges{
		Undelegations: []types.Undelegate{{ValidatorIdentity: v1, DelegationAmount: 50_000}},
	}))

	h.store.BeginWrite()
	_, err := h.engine.EndEpoch(1, 10, 0)
	h.store.EndWrite()
	require.NoError(t, err)

	supply, ok, err := h.supply.TokenSupply(types.DelegationTokenAsset(v1))
	require.NoError(t, err)
	require.True(t, ok)
	assert.EqualValues(t, 1_150_000, supply)
}
