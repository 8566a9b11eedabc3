// Package types defines the data model shared by every staking component:
// validator identity, funding streams, the State/BondingState machines,
// exchange-rate bookkeeping, uptime records, and the parameters governing
// all of the above. Nothing in this package touches the state store or any
// external collaborator — it is pure data plus the fixed-point arithmetic
// the epoch engine needs.
package types

import (
	"crypto/sha256"
	"encoding/hex"
)

// IdentityKey is the opaque, byte-comparable primary key for a validator.
// It never changes once a validator record is created.
type IdentityKey []byte

// String renders the identity key as a hex string for logging.
func (k IdentityKey) String() string {
	return hex.EncodeToString(k)
}

// Equal reports whether two identity keys refer to the same validator.
func (k IdentityKey) Equal(other IdentityKey) bool {
	if len(k) != len(other) {
		return false
	}
	for i := range k {
		if k[i] != other[i] {
			return false
		}
	}
	return true
}

// ConsensusKey is the public key the consensus engine knows a validator by.
// It is opaque at this layer; only its canonical byte encoding matters for
// deriving a ConsensusAddress.
type ConsensusKey []byte

// ConsensusAddressSize is the length in bytes of a ConsensusAddress.
const ConsensusAddressSize = 20

// ConsensusAddress is the 20-byte form the consensus engine uses when
// reporting votes and evidence: the first 20 bytes of SHA-256 over the
// consensus key's canonical byte encoding.
type ConsensusAddress [ConsensusAddressSize]byte

// DeriveConsensusAddress computes the ConsensusAddress for a ConsensusKey.
func DeriveConsensusAddress(key ConsensusKey) ConsensusAddress {
	sum := sha256.Sum256(key)
	var addr ConsensusAddress
	copy(addr[:], sum[:ConsensusAddressSize])
	return addr
}

// String renders the address as a hex string.
func (a ConsensusAddress) String() string {
	return hex.EncodeToString(a[:])
}

// Bytes returns a copy of the address bytes.
func (a ConsensusAddress) Bytes() []byte {
	out := make([]byte, ConsensusAddressSize)
	copy(out, a[:])
	return out
}
