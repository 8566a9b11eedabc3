// Package memstore is the in-memory Store reference implementation: every
// record lives in a Go map keyed by its natural Go key rather than an
// encoded byte string. It is what every other component's tests are
// written against; store/kvstore provides the flat byte-string-keyed
// shape spec.md §6 describes for the real deployment.
package memstore

import (
	"errors"
	"fmt"
	"sync"

	"github.com/rony4d/opera-stake/staking/stakeerrors"
	"github.com/rony4d/opera-stake/staking/store"
	"github.com/rony4d/opera-stake/staking/types"
)

var (
	errWriterAlreadyHeld = errors.New("writer handle already checked out")
	errNoWriterHeld      = errors.New("no writer handle checked out")
)

type memStore struct {
	mu sync.Mutex

	validators   map[string]types.Validator
	states       map[string]types.State
	bonding      map[string]types.BondingState
	rates        map[string]types.RateData
	power        map[string]uint64
	uptimes      map[string]types.Uptime
	penalties    map[string]types.Penalty
	delegChanges map[types.BlockHeight]types.DelegationChanges
	baseRate     *types.BaseRateData
	consKeys     types.ConsensusKeySet
	params       *types.StakeParameters

	addrIndex map[types.ConsensusAddress]types.ConsensusKey
	keyIndex  map[string]types.IdentityKey

	writerMu sync.Mutex
	writerOn bool
	overlay  *overlay
}

// New returns an empty Store backed by plain Go maps.
func New() store.Store {
	return &memStore{
		validators:   make(map[string]types.Validator),
		states:       make(map[string]types.State),
		bonding:      make(map[string]types.BondingState),
		rates:        make(map[string]types.RateData),
		power:        make(map[string]uint64),
		uptimes:      make(map[string]types.Uptime),
		penalties:    make(map[string]types.Penalty),
		delegChanges: make(map[types.BlockHeight]types.DelegationChanges),
		consKeys:     types.NewConsensusKeySet(nil),
		addrIndex:    make(map[types.ConsensusAddress]types.ConsensusKey),
		keyIndex:     make(map[string]types.IdentityKey),
		overlay:      newOverlay(),
	}
}

func (s *memStore) Validator(id types.IdentityKey) (types.Validator, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.validators[id.String()]
	return v, ok, nil
}

func (s *memStore) PutValidator(v types.Validator) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.validators[v.IdentityKey.String()] = v
	return nil
}

func (s *memStore) State(id types.IdentityKey) (types.State, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.states[id.String()]
	return st, ok, nil
}

func (s *memStore) PutState(id types.IdentityKey, st types.State) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states[id.String()] = st
	return nil
}

func (s *memStore) BondingState(id types.IdentityKey) (types.BondingState, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	bs, ok := s.bonding[id.String()]
	return bs, ok, nil
}

func (s *memStore) PutBondingState(id types.IdentityKey, bs types.BondingState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bonding[id.String()] = bs
	return nil
}

func (s *memStore) Rate(id types.IdentityKey) (types.RateData, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rates[id.String()]
	return r, ok, nil
}

func (s *memStore) PutRate(id types.IdentityKey, r types.RateData) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rates[id.String()] = r
	return nil
}

func (s *memStore) VotingPower(id types.IdentityKey) (uint64, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.power[id.String()]
	return p, ok, nil
}

func (s *memStore) PutVotingPower(id types.IdentityKey, power uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.power[id.String()] = power
	return nil
}

func (s *memStore) Uptime(id types.IdentityKey) (types.Uptime, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.uptimes[id.String()]
	return u, ok, nil
}

func (s *memStore) PutUptime(id types.IdentityKey, u types.Uptime) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.uptimes[id.String()] = u
	return nil
}

func penaltyKey(id types.IdentityKey, epoch types.EpochIndex) string {
	return fmt.Sprintf("%s#%d", id.String(), uint64(epoch))
}

func (s *memStore) Penalty(id types.IdentityKey, epoch types.EpochIndex) (types.Penalty, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.penalties[penaltyKey(id, epoch)]
	return p, ok, nil
}

func (s *memStore) PutPenalty(id types.IdentityKey, epoch types.EpochIndex, p types.Penalty) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.penalties[penaltyKey(id, epoch)] = p
	return nil
}

func (s *memStore) DelegationChanges(height types.BlockHeight) (types.DelegationChanges, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.delegChanges[height]
	return c, ok, nil
}

func (s *memStore) PutDelegationChanges(height types.BlockHeight, c types.DelegationChanges) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delegChanges[height] = c
	return nil
}

func (s *memStore) BaseRate() (types.BaseRateData, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.baseRate == nil {
		return types.BaseRateData{}, false, nil
	}
	return *s.baseRate, true, nil
}

func (s *memStore) PutBaseRate(b types.BaseRateData) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.baseRate = &b
	return nil
}

func (s *memStore) CurrentConsensusKeys() (types.ConsensusKeySet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(types.ConsensusKeySet, len(s.consKeys))
	for k, v := range s.consKeys {
		out[k] = v
	}
	return out, nil
}

func (s *memStore) PutCurrentConsensusKeys(set types.ConsensusKeySet) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := make(types.ConsensusKeySet, len(set))
	for k, v := range set {
		cp[k] = v
	}
	s.consKeys = cp
	return nil
}

func (s *memStore) Parameters() (types.StakeParameters, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.params == nil {
		return types.StakeParameters{}, false, nil
	}
	return *s.params, true, nil
}

func (s *memStore) PutParameters(p types.StakeParameters) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.params = &p
	return nil
}

func (s *memStore) ConsensusKeyByAddress(addr types.ConsensusAddress) (types.ConsensusKey, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k, ok := s.addrIndex[addr]
	return k, ok, nil
}

func (s *memStore) PutConsensusAddressIndex(addr types.ConsensusAddress, key types.ConsensusKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.addrIndex[addr] = key
	return nil
}

func (s *memStore) IdentityByConsensusKey(key types.ConsensusKey) (types.IdentityKey, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.keyIndex[string(key)]
	return id, ok, nil
}

func (s *memStore) PutConsensusKeyIndex(key types.ConsensusKey, id types.IdentityKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.keyIndex[string(key)] = id
	return nil
}

func (s *memStore) IterateIdentities(fn func(types.IdentityKey) error) error {
	s.mu.Lock()
	snapshot := make([]types.Validator, 0, len(s.validators))
	for _, v := range s.validators {
		snapshot = append(snapshot, v)
	}
	s.mu.Unlock()
	for _, v := range snapshot {
		if err := fn(v.IdentityKey); err != nil {
			return err
		}
	}
	return nil
}

// BeginWrite checks out the single writable handle, panicking if another
// call is already in flight: consensus-facing calls never nest or overlap
// for one store instance.
func (s *memStore) BeginWrite() {
	s.writerMu.Lock()
	defer s.writerMu.Unlock()
	if s.writerOn {
		panic(stakeerrors.Wrap(stakeerrors.ErrMissingState, "memstore", errWriterAlreadyHeld))
	}
	s.writerOn = true
}

func (s *memStore) EndWrite() {
	s.writerMu.Lock()
	defer s.writerMu.Unlock()
	s.writerOn = false
}

func (s *memStore) AssertUniqueWriter() {
	s.writerMu.Lock()
	defer s.writerMu.Unlock()
	if !s.writerOn {
		panic(stakeerrors.Wrap(stakeerrors.ErrMissingState, "memstore", errNoWriterHeld))
	}
}

func (s *memStore) Overlay() store.Overlay {
	return s.overlay
}
