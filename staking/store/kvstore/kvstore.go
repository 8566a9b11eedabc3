// Package kvstore is the accessor-layer adapter over an opaque flat
// byte-string-keyed map — the shape spec.md §6 describes the real
// versioned snapshot store presenting to the core. It builds keys with
// utils/fast.Writer the same way go-opera's lower layers hand-assemble
// fixed-width keys, and encodes values with go-ethereum's rlp package, the
// codec the teacher already uses for its own Hash()-bearing records.
package kvstore

import (
	"encoding/binary"
	"sort"

	"github.com/ethereum/go-ethereum/rlp"
	"github.com/rony4d/opera-stake/staking/stakeerrors"
	"github.com/rony4d/opera-stake/staking/store"
	"github.com/rony4d/opera-stake/staking/types"
	"github.com/rony4d/opera-stake/utils/fast"
)

// KV is the minimal opaque-byte-string contract the real state store would
// hand us; kvstore.Store is the adapter translating typed accessor calls
// into gets/puts/prefix-scans against it.
type KV interface {
	Get(key []byte) ([]byte, bool)
	Put(key []byte, value []byte)
	IteratePrefix(prefix []byte, fn func(key, value []byte))
}

// Prefixes. Each is a short ASCII tag, matching spec.md §6's "ASCII
// prefixes followed by bincode/proto-encoded values" layout note (rlp
// stands in for bincode/proto here, per SPEC_FULL.md's domain-stack
// wiring).
const (
	prefixValidator   = "v"
	prefixState       = "s"
	prefixBonding     = "b"
	prefixRate        = "r"
	prefixPower       = "p"
	prefixUptime      = "u"
	prefixPenalty     = "pen"
	prefixDelegations = "dc"
	prefixBaseRate    = "br"
	prefixConsKeys    = "cck"
	prefixParams      = "params"
	prefixAddrIndex   = "addr"
	prefixKeyIndex    = "key"
)

func idKey(prefix string, id types.IdentityKey) []byte {
	w := fast.NewWriter(make([]byte, 0, len(prefix)+len(id)))
	w.Write([]byte(prefix))
	w.Write(id)
	return w.Bytes()
}

func epochKey(id types.IdentityKey, epoch types.EpochIndex) []byte {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(epoch))
	w := fast.NewWriter(make([]byte, 0, len(prefixPenalty)+len(id)+8))
	w.Write([]byte(prefixPenalty))
	w.Write(id)
	w.Write(buf[:])
	return w.Bytes()
}

func heightKey(height types.BlockHeight) []byte {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(height))
	w := fast.NewWriter(make([]byte, 0, len(prefixDelegations)+8))
	w.Write([]byte(prefixDelegations))
	w.Write(buf[:])
	return w.Bytes()
}

func addrKey(addr types.ConsensusAddress) []byte {
	w := fast.NewWriter(make([]byte, 0, len(prefixAddrIndex)+types.ConsensusAddressSize))
	w.Write([]byte(prefixAddrIndex))
	w.Write(addr.Bytes())
	return w.Bytes()
}

func keyIndexKey(ck types.ConsensusKey) []byte {
	w := fast.NewWriter(make([]byte, 0, len(prefixKeyIndex)+len(ck)))
	w.Write([]byte(prefixKeyIndex))
	w.Write(ck)
	return w.Bytes()
}

func singleton(prefix string) []byte { return []byte(prefix) }

type kvStore struct {
	kv      KV
	writer  writerGuard
	overlay *overlay
}

// New wraps kv as a full accessor-layer Store. The pending-delegation /
// end-epoch-signal overlay spec.md §9 describes is in-memory regardless of
// backend, so New constructs its own rather than taking one as a
// parameter, the same way memstore.New does.
func New(kv KV) store.Store {
	return &kvStore{kv: kv, overlay: newOverlay()}
}

func get[T any](kv KV, key []byte) (T, bool, error) {
	var zero T
	raw, ok := kv.Get(key)
	if !ok {
		return zero, false, nil
	}
	var out T
	if err := rlp.DecodeBytes(raw, &out); err != nil {
		return zero, false, stakeerrors.Wrap(stakeerrors.ErrMissingState, "kvstore", err)
	}
	return out, true, nil
}

func put(kv KV, key []byte, value any) error {
	raw, err := rlp.EncodeToBytes(value)
	if err != nil {
		return stakeerrors.Wrap(stakeerrors.ErrMissingState, "kvstore", err)
	}
	kv.Put(key, raw)
	return nil
}

func (s *kvStore) Validator(id types.IdentityKey) (types.Validator, bool, error) {
	return get[types.Validator](s.kv, idKey(prefixValidator, id))
}

func (s *kvStore) PutValidator(v types.Validator) error {
	return put(s.kv, idKey(prefixValidator, v.IdentityKey), v)
}

func (s *kvStore) State(id types.IdentityKey) (types.State, bool, error) {
	return get[types.State](s.kv, idKey(prefixState, id))
}

func (s *kvStore) PutState(id types.IdentityKey, st types.State) error {
	return put(s.kv, idKey(prefixState, id), st)
}

func (s *kvStore) BondingState(id types.IdentityKey) (types.BondingState, bool, error) {
	return get[types.BondingState](s.kv, idKey(prefixBonding, id))
}

func (s *kvStore) PutBondingState(id types.IdentityKey, bs types.BondingState) error {
	return put(s.kv, idKey(prefixBonding, id), bs)
}

func (s *kvStore) Rate(id types.IdentityKey) (types.RateData, bool, error) {
	return get[types.RateData](s.kv, idKey(prefixRate, id))
}

func (s *kvStore) PutRate(id types.IdentityKey, r types.RateData) error {
	return put(s.kv, idKey(prefixRate, id), r)
}

func (s *kvStore) VotingPower(id types.IdentityKey) (uint64, bool, error) {
	return get[uint64](s.kv, idKey(prefixPower, id))
}

func (s *kvStore) PutVotingPower(id types.IdentityKey, power uint64) error {
	return put(s.kv, idKey(prefixPower, id), power)
}

func (s *kvStore) Uptime(id types.IdentityKey) (types.Uptime, bool, error) {
	return get[types.Uptime](s.kv, idKey(prefixUptime, id))
}

func (s *kvStore) PutUptime(id types.IdentityKey, u types.Uptime) error {
	return put(s.kv, idKey(prefixUptime, id), u)
}

func (s *kvStore) Penalty(id types.IdentityKey, epoch types.EpochIndex) (types.Penalty, bool, error) {
	return get[types.Penalty](s.kv, epochKey(id, epoch))
}

func (s *kvStore) PutPenalty(id types.IdentityKey, epoch types.EpochIndex, p types.Penalty) error {
	return put(s.kv, epochKey(id, epoch), p)
}

func (s *kvStore) DelegationChanges(height types.BlockHeight) (types.DelegationChanges, bool, error) {
	return get[types.DelegationChanges](s.kv, heightKey(height))
}

func (s *kvStore) PutDelegationChanges(height types.BlockHeight, c types.DelegationChanges) error {
	return put(s.kv, heightKey(height), c)
}

func (s *kvStore) BaseRate() (types.BaseRateData, bool, error) {
	return get[types.BaseRateData](s.kv, singleton(prefixBaseRate))
}

func (s *kvStore) PutBaseRate(b types.BaseRateData) error {
	return put(s.kv, singleton(prefixBaseRate), b)
}

// consensusKeySetWire is the RLP-friendly wire form of a ConsensusKeySet:
// rlp cannot encode a map directly, so membership round-trips through a
// sorted slice of raw key bytes.
type consensusKeySetWire struct {
	Keys [][]byte
}

func (s *kvStore) CurrentConsensusKeys() (types.ConsensusKeySet, error) {
	wire, ok, err := get[consensusKeySetWire](s.kv, singleton(prefixConsKeys))
	if err != nil {
		return nil, err
	}
	if !ok {
		return types.NewConsensusKeySet(nil), nil
	}
	keys := make([]types.ConsensusKey, len(wire.Keys))
	for i, k := range wire.Keys {
		keys[i] = types.ConsensusKey(k)
	}
	return types.NewConsensusKeySet(keys), nil
}

func (s *kvStore) PutCurrentConsensusKeys(set types.ConsensusKeySet) error {
	keys := set.Keys()
	sort.Slice(keys, func(i, j int) bool { return string(keys[i]) < string(keys[j]) })
	wire := consensusKeySetWire{Keys: make([][]byte, len(keys))}
	for i, k := range keys {
		wire.Keys[i] = []byte(k)
	}
	return put(s.kv, singleton(prefixConsKeys), wire)
}

func (s *kvStore) Parameters() (types.StakeParameters, bool, error) {
	return get[types.StakeParameters](s.kv, singleton(prefixParams))
}

func (s *kvStore) PutParameters(p types.StakeParameters) error {
	return put(s.kv, singleton(prefixParams), p)
}

func (s *kvStore) ConsensusKeyByAddress(addr types.ConsensusAddress) (types.ConsensusKey, bool, error) {
	return get[types.ConsensusKey](s.kv, addrKey(addr))
}

func (s *kvStore) PutConsensusAddressIndex(addr types.ConsensusAddress, key types.ConsensusKey) error {
	return put(s.kv, addrKey(addr), key)
}

func (s *kvStore) IdentityByConsensusKey(key types.ConsensusKey) (types.IdentityKey, bool, error) {
	return get[types.IdentityKey](s.kv, keyIndexKey(key))
}

func (s *kvStore) PutConsensusKeyIndex(key types.ConsensusKey, id types.IdentityKey) error {
	return put(s.kv, keyIndexKey(key), id)
}

func (s *kvStore) IterateIdentities(fn func(types.IdentityKey) error) error {
	var firstErr error
	s.kv.IteratePrefix([]byte(prefixValidator), func(key, value []byte) {
		if firstErr != nil {
			return
		}
		id := types.IdentityKey(append([]byte(nil), key[len(prefixValidator):]...))
		if err := fn(id); err != nil {
			firstErr = err
		}
	})
	return firstErr
}

func (s *kvStore) Overlay() store.Overlay { return s.overlay }
