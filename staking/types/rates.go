package types

import (
	"errors"
	"math"
	"math/big"
	"math/bits"
)

// ExchangeRateScale is the fixed-point scale shared by every exchange rate
// and reward rate in this package: a value of 1.0 is represented as
// 1_0000_0000. Picking one scale end-to-end (rather than mixing
// fixed-point and plain integer math, as the source this was distilled
// from did) is a deliberate simplification — see SPEC_FULL.md §10.
const ExchangeRateScale uint64 = 1_0000_0000

// MaxVotingPower is the ceiling voting_power must fit under: i64::MAX/8,
// matching the consensus engine's own limit (SPEC_FULL.md §10).
const MaxVotingPower = uint64(math.MaxInt64) / 8

// ErrVotingPowerOverflow is returned when a computed voting power would
// exceed MaxVotingPower.
var ErrVotingPowerOverflow = errors.New("voting power exceeds maximum")

// mulDivFloor computes floor(a*b/d) using a 128-bit intermediate product so
// that a*b never silently wraps a uint64. It panics if the quotient would
// not fit back into a uint64 (d too small relative to a*b) — an Overflow
// condition that, per SPEC_FULL.md §8, is meant to be fatal rather than
// recovered from.
func mulDivFloor(a, b, d uint64) uint64 {
	hi, lo := bits.Mul64(a, b)
	q, _ := bits.Div64(hi, lo, d)
	return q
}

// MulDivFloor exposes the same 128-bit-intermediate floor(a*b/d) used
// throughout this package's fixed-point math, for callers outside it (the
// epoch engine's base-reward-rate computation, spec.md §4.4 Step 2).
func MulDivFloor(a, b, d uint64) uint64 { return mulDivFloor(a, b, d) }

// RateData is a validator's per-epoch exchange-rate bookkeeping.
type RateData struct {
	EpochIndex            EpochIndex
	ValidatorRewardRate   uint64 // parts per ExchangeRateScale, this epoch's growth
	ValidatorExchangeRate uint64 // fixed point, scale ExchangeRateScale
}

// UnbondedAmount converts an amount of this validator's delegation token
// into staking-token units at the current exchange rate, floored.
func (r RateData) UnbondedAmount(delegationAmount uint64) uint64 {
	return mulDivFloor(delegationAmount, r.ValidatorExchangeRate, ExchangeRateScale)
}

// Slash applies a compounded Penalty to the exchange rate, returning the
// post-slash RateData. The epoch index is left unchanged; callers advance
// it via Next.
func (r RateData) Slash(p Penalty) RateData {
	r.ValidatorExchangeRate = p.ApplyTo(r.ValidatorExchangeRate)
	return r
}

// Next advances the rate by one epoch given the chain-wide next BaseRateData,
// this validator's funding streams (whose bps net out of the growth as
// commission), and the validator's State. Non-Active states degenerate to
// no growth: the exchange rate is carried forward unchanged and the reward
// rate for the epoch is reported as zero.
func (r RateData) Next(base BaseRateData, streams []FundingStream, state State) RateData {
	if state != StateActive {
		return RateData{
			EpochIndex:            base.EpochIndex,
			ValidatorRewardRate:   0,
			ValidatorExchangeRate: r.ValidatorExchangeRate,
		}
	}
	commissionBps := sumFundingStreamBps(streams)
	netBps := uint64(MaxFundingStreamBps)
	if commissionBps < netBps {
		netBps -= commissionBps
	} else {
		netBps = 0
	}
	netRewardRate := mulDivFloor(base.BaseRewardRate, netBps, MaxFundingStreamBps)
	nextExchangeRate := mulDivFloor(r.ValidatorExchangeRate, ExchangeRateScale+netRewardRate, ExchangeRateScale)
	return RateData{
		EpochIndex:            base.EpochIndex,
		ValidatorRewardRate:   netRewardRate,
		ValidatorExchangeRate: nextExchangeRate,
	}
}

// VotingPower derives the validator's consensus voting power from a
// delegation-token supply at the current exchange rate. A power above
// MaxVotingPower is rejected with ErrVotingPowerOverflow rather than
// clamped. The next BaseRateData is accepted to keep parity with
// the source's call shape but the computation only needs the validator's
// own scale — see SPEC_FULL.md §10's numeric-semantics resolution.
func (r RateData) VotingPower(delegationTokenSupply uint64, _ BaseRateData) (uint64, error) {
	power := r.UnbondedAmount(delegationTokenSupply)
	if power > MaxVotingPower {
		return 0, ErrVotingPowerOverflow
	}
	return power, nil
}

// BaseRateData is the chain-wide exchange rate for a given epoch.
type BaseRateData struct {
	EpochIndex       EpochIndex
	BaseRewardRate   uint64 // parts per ExchangeRateScale per epoch
	BaseExchangeRate uint64
}

// Next advances the base rate by one epoch given the freshly computed
// base_reward_rate (parts per ExchangeRateScale).
func (b BaseRateData) Next(epoch EpochIndex, baseRewardRate uint64) BaseRateData {
	return BaseRateData{
		EpochIndex:       epoch,
		BaseRewardRate:   baseRewardRate,
		BaseExchangeRate: mulDivFloor(b.BaseExchangeRate, ExchangeRateScale+baseRewardRate, ExchangeRateScale),
	}
}

// PenaltyScale is shared with ExchangeRateScale: a Penalty of PenaltyScale
// would slash 100% of the exchange rate, a Penalty of 0 slashes nothing.
const PenaltyScale = ExchangeRateScale

// Penalty is a fixed-point slashing multiplier compounded across epochs.
// It is stored only when nonzero (IsZero reports the common case so callers
// can skip a store round-trip).
type Penalty struct {
	Value uint64 // fraction-to-slash, numerator over PenaltyScale
}

// NoPenalty is the identity element: applying it leaves a rate unchanged.
func NoPenalty() Penalty { return Penalty{} }

// IsZero reports whether this penalty would have no effect.
func (p Penalty) IsZero() bool { return p.Value == 0 }

// Compound combines two penalties recorded against the same validator
// before EpochEngine settles the epoch, using the standard multiplicative
// slashing composition 1-(1-p1)(1-p2): two independent slashes never
// simply add, since that could slash more than 100%. Computed in a 128-bit
// domain via math/big and rounded toward zero, per spec.md §6.
func (p Penalty) Compound(other Penalty) Penalty {
	scale := new(big.Int).SetUint64(PenaltyScale)
	remain1 := new(big.Int).Sub(scale, new(big.Int).SetUint64(p.Value))
	remain2 := new(big.Int).Sub(scale, new(big.Int).SetUint64(other.Value))
	remain := remain1.Mul(remain1, remain2)
	remain.Quo(remain, scale)
	return Penalty{Value: PenaltyScale - remain.Uint64()}
}

// ApplyTo multiplies a scale-ExchangeRateScale value by (1 - p), rounded
// toward zero.
func (p Penalty) ApplyTo(value uint64) uint64 {
	if p.Value == 0 {
		return value
	}
	scale := new(big.Int).SetUint64(PenaltyScale)
	remain := new(big.Int).Sub(scale, new(big.Int).SetUint64(p.Value))
	result := new(big.Int).Mul(new(big.Int).SetUint64(value), remain)
	result.Quo(result, scale)
	return result.Uint64()
}
