package types

import "fmt"

// MaxFundingStreamBps is the upper bound on the sum of a validator's funding
// stream rates: a validator may route at most all of its reward (10000 bps),
// never more.
const MaxFundingStreamBps = 10_000

// FundingStreamRecipient names where a funding stream's share of reward is
// routed. It is a tagged union rather than a single "is community pool"
// bool so logging and serialization can describe the destination without a
// side lookup.
type FundingStreamRecipient struct {
	// ToAddress holds a shielded-pool destination when Kind is RecipientAddress.
	ToAddress []byte
	Kind      FundingStreamRecipientKind
}

// FundingStreamRecipientKind discriminates FundingStreamRecipient's union.
type FundingStreamRecipientKind uint8

const (
	// RecipientAddress routes the stream's share to an external shielded address.
	RecipientAddress FundingStreamRecipientKind = iota
	// RecipientCommunityPool routes the stream's share to the community pool.
	RecipientCommunityPool
)

// FundingStream is a basis-point share of a validator's reward, routed to
// one recipient.
type FundingStream struct {
	RateBps   uint32
	Recipient FundingStreamRecipient
}

// Validator is the immutable-by-default metadata record created at genesis
// or via AddValidator. It is never removed; Tombstoned is the sink for
// validators that must stop participating.
type Validator struct {
	IdentityKey    IdentityKey
	ConsensusKey   ConsensusKey
	Name           string
	Enabled        bool
	FundingStreams []FundingStream
}

// sumFundingStreamBps totals a set of funding streams' basis-point rates.
// Shared by ValidateFundingStreams and RateData.Next so the §3 cap check and
// the §4.4 reward-netting math never drift out of sync on what "total
// commission" means.
func sumFundingStreamBps(streams []FundingStream) uint64 {
	var total uint64
	for _, fs := range streams {
		total += uint64(fs.RateBps)
	}
	return total
}

// ValidateFundingStreams checks the §3 invariant that a validator's funding
// stream rates sum to at most 10000 bps.
func (v *Validator) ValidateFundingStreams() error {
	total := sumFundingStreamBps(v.FundingStreams)
	if total > MaxFundingStreamBps {
		return fmt.Errorf("funding streams sum to %d bps, exceeds %d bps cap", total, MaxFundingStreamBps)
	}
	return nil
}

// RewardAmount computes this stream's bps share, in staking-token units, of
// the gross reward the chain-wide base rate grew by this epoch over
// delegationTokenSupply — the commission EpochEngine mints or deposits for
// an Active validator's funding streams (spec.md §4.4 Step 3j).
func (fs FundingStream) RewardAmount(prevBase, nextBase BaseRateData, delegationTokenSupply uint64) uint64 {
	grossGrowth := mulDivFloor(delegationTokenSupply, nextBase.BaseRewardRate, ExchangeRateScale)
	return mulDivFloor(grossGrowth, uint64(fs.RateBps), MaxFundingStreamBps)
}
