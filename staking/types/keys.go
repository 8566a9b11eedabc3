package types

import "encoding/hex"

// ConsensusKeySet is the set of consensus keys currently known to the
// consensus engine — CurrentConsensusKeys in spec.md §3 — keyed by the
// key's hex encoding so membership tests don't need a byte-slice-keyed map
// (Go maps can't key on []byte directly).
type ConsensusKeySet map[string]ConsensusKey

// NewConsensusKeySet builds a set from a slice of keys.
func NewConsensusKeySet(keys []ConsensusKey) ConsensusKeySet {
	set := make(ConsensusKeySet, len(keys))
	for _, k := range keys {
		set[hex.EncodeToString(k)] = k
	}
	return set
}

// Contains reports whether the set already knows this key.
func (s ConsensusKeySet) Contains(k ConsensusKey) bool {
	_, ok := s[hex.EncodeToString(k)]
	return ok
}

// Add inserts a key into the set.
func (s ConsensusKeySet) Add(k ConsensusKey) {
	s[hex.EncodeToString(k)] = k
}

// Keys returns the set's members as a slice, in unspecified order.
func (s ConsensusKeySet) Keys() []ConsensusKey {
	out := make([]ConsensusKey, 0, len(s))
	for _, k := range s {
		out = append(out, k)
	}
	return out
}
