// Package collaborators declares the Go interfaces for every external
// system spec.md §6 names as out of scope: the distributions component's
// issuance budget, the shielded-pool note minter, the community pool, the
// chain/consensus-engine clock, and the supply ledger. staking/epoch and
// staking/hooks depend only on these interfaces; collaborators/fake
// provides the test doubles every other package's tests are written
// against, the same way the teacher's evmcore/apply_fake_genesis.go names
// its own test harness with a "fake" prefix.
package collaborators

import "github.com/rony4d/opera-stake/staking/types"

// DistributionsRead reports the staking-token issuance budget computed by
// the distributions component for the epoch currently ending. EpochEngine
// treats an unset budget as fatal (spec.md §4.4 Step 2).
type DistributionsRead interface {
	StakingTokenIssuanceForEpoch(epoch types.EpochIndex) (uint64, error)
}

// AssetID identifies a registered denom with SupplyReadWrite; it is an
// alias of types.AssetID so staking/types stays the single place the
// delegation/staking asset identifiers are derived.
type AssetID = types.AssetID

// ShieldedPool mints a note of value into a shielded recipient address,
// tagged with a source so the receiving wallet can attribute it.
type ShieldedPool interface {
	MintNote(value uint64, recipient []byte, sourceTag string) error
}

// CommunityPool accepts funding-stream deposits routed to
// RecipientCommunityPool.
type CommunityPool interface {
	Deposit(value uint64) error
}

// Chain is the consensus engine's clock: current height/epoch, the epoch a
// given height belonged to, and the ability to signal that the current
// epoch should end immediately at commit (the "end-of-epoch signal" of
// spec.md §4.1, surfaced here for components driven outside the Overlay).
type Chain interface {
	GetBlockHeight() types.BlockHeight
	GetCurrentEpoch() types.EpochIndex
	EpochByHeight(h types.BlockHeight) types.EpochIndex
	SignalEndEpoch()
}

// SupplyReadWrite is the fungible-token ledger delegation/staking token
// supplies are kept in. RegisterDenom is called once, at genesis, for each
// asset this module mints or burns.
type SupplyReadWrite interface {
	TokenSupply(asset AssetID) (uint64, bool, error)
	UpdateTokenSupply(asset AssetID, signedDelta int64) error
	RegisterDenom(asset AssetID) error
}

// Collaborators bundles every external dependency EpochEngine needs so its
// constructor takes one argument instead of five.
type Collaborators struct {
	Distributions DistributionsRead
	Shielded      ShieldedPool
	Community     CommunityPool
	Chain         Chain
	Supply        SupplyReadWrite
}
