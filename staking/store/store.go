// Package store defines the accessor layer every staking component reads
// and writes through: the named records, reverse indexes, and prefix
// iteration spec.md §6 lists, expressed as a Go interface rather than the
// source's ad hoc key-string helpers, the same way go-opera's
// iblockproc package gives block/epoch state a typed shape over a raw
// key-value store.
package store

import (
	"github.com/rony4d/opera-stake/staking/types"
)

// Store is the full accessor surface. A concrete implementation is free to
// keep records in memory (memstore, used by every test) or behind a flat
// byte-string keyed map (kvstore, the shape the real versioned snapshot
// store outside this module's scope would present).
type Store interface {
	Validator(id types.IdentityKey) (types.Validator, bool, error)
	PutValidator(v types.Validator) error

	State(id types.IdentityKey) (types.State, bool, error)
	PutState(id types.IdentityKey, s types.State) error

	BondingState(id types.IdentityKey) (types.BondingState, bool, error)
	PutBondingState(id types.IdentityKey, bs types.BondingState) error

	Rate(id types.IdentityKey) (types.RateData, bool, error)
	PutRate(id types.IdentityKey, r types.RateData) error

	VotingPower(id types.IdentityKey) (uint64, bool, error)
	PutVotingPower(id types.IdentityKey, power uint64) error

	Uptime(id types.IdentityKey) (types.Uptime, bool, error)
	PutUptime(id types.IdentityKey, u types.Uptime) error

	Penalty(id types.IdentityKey, epoch types.EpochIndex) (types.Penalty, bool, error)
	PutPenalty(id types.IdentityKey, epoch types.EpochIndex, p types.Penalty) error

	DelegationChanges(height types.BlockHeight) (types.DelegationChanges, bool, error)
	PutDelegationChanges(height types.BlockHeight, c types.DelegationChanges) error

	BaseRate() (types.BaseRateData, bool, error)
	PutBaseRate(b types.BaseRateData) error

	CurrentConsensusKeys() (types.ConsensusKeySet, error)
	PutCurrentConsensusKeys(set types.ConsensusKeySet) error

	Parameters() (types.StakeParameters, bool, error)
	PutParameters(p types.StakeParameters) error

	// ConsensusKeyByAddress and IdentityByConsensusKey are the reverse
	// indexes spec.md §6 names: ConsensusAddress -> ConsensusKey and
	// ConsensusKey -> IdentityKey.
	ConsensusKeyByAddress(addr types.ConsensusAddress) (types.ConsensusKey, bool, error)
	PutConsensusAddressIndex(addr types.ConsensusAddress, key types.ConsensusKey) error

	IdentityByConsensusKey(key types.ConsensusKey) (types.IdentityKey, bool, error)
	PutConsensusKeyIndex(key types.ConsensusKey, id types.IdentityKey) error

	// IterateIdentities enumerates every validator identity currently
	// known to the validator-record prefix, in the implementation's
	// native order. Callers that need a deterministic order (everyone
	// above the accessor layer) sort the result themselves.
	IterateIdentities(fn func(types.IdentityKey) error) error

	// BeginWrite checks out this store's single writable handle for the
	// duration of one consensus-facing call, panicking if it is already
	// checked out. EndWrite releases it. staking/hooks brackets every
	// entry point with these per spec.md §5's single-writer rule.
	BeginWrite()
	EndWrite()

	// AssertUniqueWriter panics unless the handle BeginWrite checks out is
	// currently checked out. It does not check which goroutine holds it.
	AssertUniqueWriter()

	// Overlay is the object-local, current-block-only side channel
	// spec.md §9 describes: pending delegation changes not yet folded
	// into DelegationChanges-by-height, and the end-of-epoch signal raised
	// by UptimeTracker/MisbehaviorHandler. It is never read from a
	// snapshot older than the current block and must be empty again once
	// EndEpoch returns.
	Overlay() Overlay
}

// Overlay is the reserved-prefix, current-block side channel described in
// spec.md §9. It holds no persistent keys of its own.
type Overlay interface {
	PendingDelegationChanges() types.DelegationChanges
	AddDelegation(types.Delegate)
	AddUndelegation(types.Undelegate)
	ClearDelegationChanges()

	EndEpochSignaled() bool
	SignalEndEpoch()
	ClearEndEpochSignal()
}
