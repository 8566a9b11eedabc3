package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBaseRateDataNext(t *testing.T) {
	prev := BaseRateData{EpochIndex: 0, BaseExchangeRate: ExchangeRateScale}
	next := prev.Next(1, 3333)
	assert.Equal(t, EpochIndex(1), next.EpochIndex)
	assert.Equal(t, uint64(3333), next.BaseRewardRate)
	// scenario 2 from spec.md §8: base_exchange_rate advances by
	// (1 + 3333/1e8) exactly.
	assert.Equal(t, uint64(100003333), next.BaseExchangeRate)
}

func TestRateDataNextActiveNoCommission(t *testing.T) {
	base := BaseRateData{EpochIndex: 1, BaseRewardRate: 3333, BaseExchangeRate: 100003333}
	prev := RateData{EpochIndex: 0, ValidatorExchangeRate: ExchangeRateScale}
	next := prev.Next(base, nil, StateActive)
	assert.Equal(t, uint64(3333), next.ValidatorRewardRate)
	assert.Equal(t, uint64(100003333), next.ValidatorExchangeRate)

	v1Power, err := next.VotingPower(1_000_000, base)
	require.NoError(t, err)
	assert.Equal(t, uint64(1_000_033), v1Power)

	v2Power, err := next.VotingPower(2_000_000, base)
	require.NoError(t, err)
	assert.Equal(t, uint64(2_000_066), v2Power)
}

func TestRateDataNextNonActiveDegeneratesToNoGrowth(t *testing.T) {
	base := BaseRateData{EpochIndex: 1, BaseRewardRate: 3333, BaseExchangeRate: 100003333}
	prev := RateData{EpochIndex: 0, ValidatorExchangeRate: ExchangeRateScale}
	for _, st := range []State{StateInactive, StateJailed, StateDisabled, StateTombstoned} {
		next := prev.Next(base, nil, st)
		assert.Equal(t, uint64(0), next.ValidatorRewardRate, st.String())
		assert.Equal(t, prev.ValidatorExchangeRate, next.ValidatorExchangeRate, st.String())
	}
}

func TestRateDataNextWithCommissionNetsOutGrowth(t *testing.T) {
	base := BaseRateData{EpochIndex: 1, BaseRewardRate: 10_000_000, BaseExchangeRate: ExchangeRateScale}
	prev := RateData{EpochIndex: 0, ValidatorExchangeRate: ExchangeRateScale}
	streams := []FundingStream{{RateBps: 1000}} // 10% commission
	next := prev.Next(base, streams, StateActive)
	// net reward rate = 10_000_000 * 9000/10000 = 9_000_000
	assert.Equal(t, uint64(9_000_000), next.ValidatorRewardRate)
}

func TestVotingPowerOverflow(t *testing.T) {
	r := RateData{ValidatorExchangeRate: ExchangeRateScale}
	_, err := r.VotingPower(MaxVotingPower+1, BaseRateData{})
	assert.ErrorIs(t, err, ErrVotingPowerOverflow)
}

func TestPenaltyCompoundAndApply(t *testing.T) {
	downtime := Penalty{Value: 1_000_000}   // 1%
	misbehave := Penalty{Value: 10_000_000} // 10%
	combined := downtime.Compound(misbehave)
	// 1-(1-0.01)(1-0.10) = 1-0.891 = 0.109 -> 10_900_000 parts per 1e8
	assert.Equal(t, uint64(10_900_000), combined.Value)

	slashed := combined.ApplyTo(ExchangeRateScale)
	assert.Equal(t, uint64(89_100_000), slashed)
}

func TestNoPenaltyIsIdentity(t *testing.T) {
	p := NoPenalty()
	assert.True(t, p.IsZero())
	assert.Equal(t, uint64(12345), p.ApplyTo(12345))
}

func TestValidatorFundingStreamCap(t *testing.T) {
	v := Validator{FundingStreams: []FundingStream{{RateBps: 6000}, {RateBps: 5000}}}
	err := v.ValidateFundingStreams()
	assert.Error(t, err)

	v2 := Validator{FundingStreams: []FundingStream{{RateBps: 6000}, {RateBps: 4000}}}
	assert.NoError(t, v2.ValidateFundingStreams())
}

func TestConsensusAddressDerivation(t *testing.T) {
	addr := DeriveConsensusAddress(ConsensusKey("a-consensus-key"))
	assert.Len(t, addr.Bytes(), ConsensusAddressSize)
	// deterministic
	assert.Equal(t, addr, DeriveConsensusAddress(ConsensusKey("a-consensus-key")))
}
