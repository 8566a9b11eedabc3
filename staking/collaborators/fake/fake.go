// Package fake provides test-double implementations of every
// staking/collaborators interface, named the way the teacher's own
// evmcore/apply_fake_genesis.go names its "fake genesis" test harness.
// Every EpochEngine/hooks test in this module is written against these.
package fake

import (
	"errors"
	"sync"

	"github.com/rony4d/opera-stake/staking/collaborators"
	"github.com/rony4d/opera-stake/staking/types"
)

// ErrBudgetUnset is returned by Distributions.StakingTokenIssuanceForEpoch
// when no budget has been set for the requested epoch, modelling the "must
// be set; otherwise fatal" requirement of spec.md §4.4 Step 2.
var ErrBudgetUnset = errors.New("fake: issuance budget not set for epoch")

// Distributions is a settable fake DistributionsRead.
type Distributions struct {
	mu      sync.Mutex
	budgets map[types.EpochIndex]uint64
}

// NewDistributions returns an empty fake distributions collaborator.
func NewDistributions() *Distributions {
	return &Distributions{budgets: make(map[types.EpochIndex]uint64)}
}

// SetBudget records the issuance budget for an epoch, as the real
// distributions component would after computing it.
func (d *Distributions) SetBudget(epoch types.EpochIndex, budget uint64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.budgets[epoch] = budget
}

func (d *Distributions) StakingTokenIssuanceForEpoch(epoch types.EpochIndex) (uint64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	b, ok := d.budgets[epoch]
	if !ok {
		return 0, ErrBudgetUnset
	}
	return b, nil
}

// MintRecord is one call recorded by ShieldedPool.MintNote.
type MintRecord struct {
	Value     uint64
	Recipient []byte
	SourceTag string
}

// ShieldedPool records every mint it is asked to perform.
type ShieldedPool struct {
	mu    sync.Mutex
	Mints []MintRecord
}

func NewShieldedPool() *ShieldedPool { return &ShieldedPool{} }

func (s *ShieldedPool) MintNote(value uint64, recipient []byte, sourceTag string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Mints = append(s.Mints, MintRecord{Value: value, Recipient: append([]byte(nil), recipient...), SourceTag: sourceTag})
	return nil
}

// CommunityPool records every deposit it is asked to perform.
type CommunityPool struct {
	mu       sync.Mutex
	Deposits []uint64
	Total    uint64
}

func NewCommunityPool() *CommunityPool { return &CommunityPool{} }

func (c *CommunityPool) Deposit(value uint64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Deposits = append(c.Deposits, value)
	c.Total += value
	return nil
}

// Chain is a settable fake Chain collaborator.
type Chain struct {
	mu           sync.Mutex
	height       types.BlockHeight
	epoch        types.EpochIndex
	epochByHeight map[types.BlockHeight]types.EpochIndex
	endEpochCalls int
}

func NewChain() *Chain {
	return &Chain{epochByHeight: make(map[types.BlockHeight]types.EpochIndex)}
}

func (c *Chain) SetHeight(h types.BlockHeight) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.height = h
}

func (c *Chain) SetEpoch(e types.EpochIndex) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.epoch = e
}

func (c *Chain) SetEpochForHeight(h types.BlockHeight, e types.EpochIndex) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.epochByHeight[h] = e
}

func (c *Chain) GetBlockHeight() types.BlockHeight {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.height
}

func (c *Chain) GetCurrentEpoch() types.EpochIndex {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.epoch
}

func (c *Chain) EpochByHeight(h types.BlockHeight) types.EpochIndex {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.epochByHeight[h]
}

func (c *Chain) SignalEndEpoch() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.endEpochCalls++
}

func (c *Chain) EndEpochCalls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.endEpochCalls
}

// Supply is a fake in-memory SupplyReadWrite.
type Supply struct {
	mu       sync.Mutex
	balances map[collaborators.AssetID]uint64
	known    map[collaborators.AssetID]bool
}

func NewSupply() *Supply {
	return &Supply{
		balances: make(map[collaborators.AssetID]uint64),
		known:    make(map[collaborators.AssetID]bool),
	}
}

func (s *Supply) RegisterDenom(asset collaborators.AssetID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.known[asset] = true
	if _, ok := s.balances[asset]; !ok {
		s.balances[asset] = 0
	}
	return nil
}

func (s *Supply) TokenSupply(asset collaborators.AssetID) (uint64, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.known[asset] {
		return 0, false, nil
	}
	return s.balances[asset], true, nil
}

func (s *Supply) UpdateTokenSupply(asset collaborators.AssetID, signedDelta int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.known[asset] {
		return errors.New("fake: unknown denom")
	}
	cur := int64(s.balances[asset]) + signedDelta
	if cur < 0 {
		return errors.New("fake: supply would go negative")
	}
	s.balances[asset] = uint64(cur)
	return nil
}

// Set bundles all five fakes into a collaborators.Collaborators for tests.
func Set() (*collaborators.Collaborators, *Distributions, *ShieldedPool, *CommunityPool, *Chain, *Supply) {
	d := NewDistributions()
	sp := NewShieldedPool()
	cp := NewCommunityPool()
	ch := NewChain()
	sup := NewSupply()
	return &collaborators.Collaborators{
		Distributions: d,
		Shielded:      sp,
		Community:     cp,
		Chain:         ch,
		Supply:        sup,
	}, d, sp, cp, ch, sup
}
