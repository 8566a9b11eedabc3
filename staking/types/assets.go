package types

import "encoding/hex"

// AssetID identifies a fungible denom registered with SupplyReadWrite
// (spec.md §6). Delegation tokens are per-validator; the staking token is
// the single chain-wide unit both scale into via RateData.UnbondedAmount.
type AssetID string

// StakingTokenAsset is the chain-wide staking token every validator's
// delegation token ultimately settles into.
const StakingTokenAsset AssetID = "ustake"

// DelegationTokenAsset derives the per-validator delegation-token asset id
// from its IdentityKey, giving SupplyReadWrite.RegisterDenom a concrete
// identifier to register at genesis/AddValidator time.
func DelegationTokenAsset(id IdentityKey) AssetID {
	return AssetID("udeleg-" + hex.EncodeToString(id))
}
