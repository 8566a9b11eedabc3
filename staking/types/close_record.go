package types

import (
	"crypto/sha256"
	"encoding/binary"

	"github.com/Fantom-foundation/lachesis-base/hash"
)

// CloseRecordEntry is one (ConsensusKey, power) pair folded into an
// EpochCloseRecord's hash. It mirrors the update-set entries
// ValidatorUpdateBuilder publishes, without this package importing that
// one back (types sits below validatorupdate in the dependency order).
type CloseRecordEntry struct {
	Key   ConsensusKey
	Power uint64
}

// EpochCloseRecord fingerprints what got published at an epoch boundary,
// grounded on go-opera's LlrEpochVote/LlrBlockVotes "hash the published
// record" pattern (inter/inter_llr.go): replaying the same epoch from the
// same prior state must always hash to the same value, the property
// spec.md's replay guarantee depends on.
type EpochCloseRecord struct {
	EpochEnding EpochIndex
	Entries     []CloseRecordEntry
}

// Hash computes the canonical digest of the record. Entries are hashed in
// the order given; callers pass ValidatorUpdateBuilder's already-sorted
// output so the hash is reproducible across replays of the same epoch.
func (r EpochCloseRecord) Hash() hash.Hash {
	hasher := sha256.New()
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(r.EpochEnding))
	hasher.Write(buf[:])
	binary.BigEndian.PutUint64(buf[:], uint64(len(r.Entries)))
	hasher.Write(buf[:])
	for _, e := range r.Entries {
		hasher.Write(e.Key)
		binary.BigEndian.PutUint64(buf[:], e.Power)
		hasher.Write(buf[:])
	}
	return hash.BytesToHash(hasher.Sum(nil))
}
