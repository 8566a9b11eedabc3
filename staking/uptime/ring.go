// Package uptime implements spec.md §4.2: the per-validator signed-window
// ring and the per-block tracking/jailing pass over it. Ring is built
// directly on utils/bits.Array, the byte-packed bit layout the package
// already uses to "compress boolean flags" one bit per height; unlike
// utils/bits.Writer/Reader (sequential append/consume), a signed-window
// ring needs random access by height-modulo-window, so Ring calls
// Array.GetBit/SetBit directly instead of going through the sequential
// bitstream cursor.
package uptime

import (
	"github.com/rony4d/opera-stake/staking/types"
	"github.com/rony4d/opera-stake/utils/bits"
)

// Ring is an immutable view over a types.Uptime record: every mutating
// method returns a new Ring rather than mutating in place, so callers can
// compute a candidate update before deciding whether to persist it (see
// Tracker's fan-out/apply split).
type Ring struct {
	u types.Uptime
}

// FromUptime wraps a stored Uptime record for ring operations.
func FromUptime(u types.Uptime) Ring { return Ring{u: u} }

// Uptime returns the underlying record, e.g. to persist via the accessor.
func (r Ring) Uptime() types.Uptime { return r.u }

// Misses returns the ring's current miss count.
func (r Ring) Misses() uint32 { return r.u.Misses }

func bitPosition(height, windowLen uint64) uint64 {
	return height % windowLen
}

// getBit mirrors Array.GetBit but defaults an out-of-range slot to
// "signed" rather than Array's generic "unset": a slot past the end of the
// stored bytes (a record whose Bits is shorter than its WindowLen needs,
// such as a zero-value Uptime) must not read as a miss.
func getBit(arr *bits.Array, pos uint64) bool {
	if int(pos/8) >= len(arr.Bytes) {
		return true
	}
	return arr.GetBit(pos)
}

// Mark records whether the validator signed at height, overwriting whatever
// bit previously occupied that slot in the ring (height % WindowLen) and
// adjusting Misses incrementally so callers never need to rescan the whole
// window. A window of length 1 means every height shares the same slot:
// one missed block jails on that same block, per spec.md §8's boundary case.
func (r Ring) Mark(height uint64, signed bool) Ring {
	pos := bitPosition(height, r.u.WindowLen)

	arr := &bits.Array{Bytes: append([]byte(nil), r.u.Bits...)}
	wasSigned := getBit(arr, pos)
	arr.SetBit(pos, signed)

	misses := r.u.Misses
	switch {
	case wasSigned && !signed:
		misses++
	case !wasSigned && signed && misses > 0:
		misses--
	}

	return Ring{u: types.Uptime{
		WindowLen: r.u.WindowLen,
		Bits:      arr.Bytes,
		Head:      height,
		Misses:    misses,
	}}
}
