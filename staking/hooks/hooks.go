// Package hooks wires every other staking package into the five
// consensus-engine-facing entry points spec.md §6 names: InitChain,
// BeginBlock, EndBlock, EndEpoch, and TendermintValidatorUpdates. It is the
// only package a host binary needs to import to drive this module, the
// same way go-opera's integration package is the single entry point a
// caller drives the rest of the node through.
package hooks

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/rony4d/opera-stake/staking/activeset"
	"github.com/rony4d/opera-stake/staking/collaborators"
	"github.com/rony4d/opera-stake/staking/epoch"
	"github.com/rony4d/opera-stake/staking/misbehavior"
	"github.com/rony4d/opera-stake/staking/stakeerrors"
	"github.com/rony4d/opera-stake/staking/statemachine"
	"github.com/rony4d/opera-stake/staking/store"
	"github.com/rony4d/opera-stake/staking/types"
	"github.com/rony4d/opera-stake/staking/uptime"
	"github.com/rony4d/opera-stake/staking/validatorupdate"
)

var log = logrus.WithField("component", "hooks")

// Hooks bundles every component behind the five entry points the consensus
// engine calls. It holds no state beyond the accessor handle and the last
// computed update set (present only at epoch boundaries and genesis, per
// spec.md §6).
type Hooks struct {
	store   store.Store
	collabs *collaborators.Collaborators

	sm          *statemachine.Machine
	uptimeTrk   *uptime.Tracker
	misbehavior *misbehavior.Handler
	engine      *epoch.Engine
	builder     *validatorupdate.Builder

	lastUpdates []validatorupdate.Update
}

// Store exposes the underlying accessor for read-only inspection by a host
// binary (telemetry, debugging) or by tests asserting on committed state
// directly; every write still goes through the five hooks above.
func (h *Hooks) Store() store.Store { return h.store }

// New wires a full Hooks instance from an accessor, governance parameters,
// and the external collaborators, constructing every component in the
// dependency order spec.md §2 names.
func New(s store.Store, params types.StakeParameters, collabs *collaborators.Collaborators) *Hooks {
	sm := statemachine.New(s, params)
	selector := activeset.NewSelector(s, sm, params)
	builder := validatorupdate.NewBuilder(s)
	return &Hooks{
		store:       s,
		collabs:     collabs,
		sm:          sm,
		uptimeTrk:   uptime.NewTracker(s, sm, params),
		misbehavior: misbehavior.NewHandler(s, sm),
		engine:      epoch.New(s, sm, collabs, selector, builder),
		builder:     builder,
	}
}

// InitChain constructs the genesis validator set (State=Active,
// BondingState=Bonded per spec.md §3), the starting base rate, an empty
// delegation-change log for the starting height, and an empty
// CurrentConsensusKeys priming record, then computes the genesis update
// set.
func (h *Hooks) InitChain(genesis types.Genesis) ([]validatorupdate.Update, error) {
	h.store.BeginWrite()
	defer h.store.EndWrite()

	if err := genesis.Params.Validate(); err != nil {
		return nil, stakeerrors.Configuration("hooks", err)
	}
	if err := h.store.PutParameters(genesis.Params); err != nil {
		return nil, err
	}

	base := types.BaseRateData{EpochIndex: 0, BaseRewardRate: 0, BaseExchangeRate: genesis.InitialBaseExchangeRate}
	if err := h.store.PutBaseRate(base); err != nil {
		return nil, err
	}

	if err := h.collabs.Supply.RegisterDenom(types.StakingTokenAsset); err != nil {
		return nil, stakeerrors.CollaboratorUnavailable("hooks", err)
	}

	for _, gv := range genesis.Validators {
		v := gv.Validator
		if err := v.ValidateFundingStreams(); err != nil {
			return nil, stakeerrors.Configuration("hooks", err)
		}
		if err := h.initGenesisValidator(v, gv.InitialDelegationSupply, base, genesis.Params); err != nil {
			return nil, err
		}
	}

	if err := h.store.PutCurrentConsensusKeys(types.NewConsensusKeySet(nil)); err != nil {
		return nil, err
	}
	if err := h.store.PutDelegationChanges(1, types.DelegationChanges{}); err != nil {
		return nil, err
	}

	updates, err := h.builder.Build()
	if err != nil {
		return nil, err
	}
	h.lastUpdates = updates
	return updates, nil
}

func (h *Hooks) initGenesisValidator(v types.Validator, initialSupply uint64, base types.BaseRateData, params types.StakeParameters) error {
	if err := h.store.PutValidator(v); err != nil {
		return err
	}
	if err := h.store.PutState(v.IdentityKey, types.StateActive); err != nil {
		return err
	}
	if err := h.store.PutBondingState(v.IdentityKey, types.Bonded()); err != nil {
		return err
	}

	asset := types.DelegationTokenAsset(v.IdentityKey)
	if err := h.collabs.Supply.RegisterDenom(asset); err != nil {
		return stakeerrors.CollaboratorUnavailable("hooks", err)
	}
	if err := h.collabs.Supply.UpdateTokenSupply(asset, int64(initialSupply)); err != nil {
		return stakeerrors.CollaboratorUnavailable("hooks", err)
	}

	rate := types.RateData{EpochIndex: 0, ValidatorExchangeRate: base.BaseExchangeRate}
	if err := h.store.PutRate(v.IdentityKey, rate); err != nil {
		return err
	}

	power, err := rate.VotingPower(initialSupply, base)
	if err != nil {
		return stakeerrors.Overflow("hooks", v.IdentityKey, err)
	}
	if err := h.store.PutVotingPower(v.IdentityKey, power); err != nil {
		return err
	}

	if err := h.store.PutUptime(v.IdentityKey, types.NewUptime(params.SignedBlocksWindowLen, 0)); err != nil {
		return err
	}

	return h.indexConsensusKey(v)
}

func (h *Hooks) indexConsensusKey(v types.Validator) error {
	addr := types.DeriveConsensusAddress(v.ConsensusKey)
	if err := h.store.PutConsensusAddressIndex(addr, v.ConsensusKey); err != nil {
		return err
	}
	return h.store.PutConsensusKeyIndex(v.ConsensusKey, v.IdentityKey)
}

// AddValidator is the post-genesis creation path named in spec.md §3: a new
// validator record enters as Inactive/Unbonded with power 0, distinct from
// StateMachine's transition table (there is no "from" state to transition
// out of). Its delegation token is registered so later delegations can
// accumulate supply for it.
func (h *Hooks) AddValidator(v types.Validator) error {
	h.store.BeginWrite()
	defer h.store.EndWrite()

	if err := v.ValidateFundingStreams(); err != nil {
		return stakeerrors.Configuration("hooks", err)
	}

	base, ok, err := h.store.BaseRate()
	if err != nil {
		return err
	}
	if !ok {
		return stakeerrors.MissingState("hooks", v.IdentityKey, fmt.Errorf("no base rate at AddValidator"))
	}

	if err := h.store.PutValidator(v); err != nil {
		return err
	}
	if err := h.store.PutState(v.IdentityKey, types.StateInactive); err != nil {
		return err
	}
	if err := h.store.PutBondingState(v.IdentityKey, types.Unbonded()); err != nil {
		return err
	}
	if err := h.store.PutVotingPower(v.IdentityKey, 0); err != nil {
		return err
	}
	if err := h.store.PutRate(v.IdentityKey, types.RateData{EpochIndex: base.EpochIndex, ValidatorExchangeRate: base.BaseExchangeRate}); err != nil {
		return err
	}

	asset := types.DelegationTokenAsset(v.IdentityKey)
	if err := h.collabs.Supply.RegisterDenom(asset); err != nil {
		return stakeerrors.CollaboratorUnavailable("hooks", err)
	}

	return h.indexConsensusKey(v)
}

// RecordDelegate appends a validated Delegate to the current block's
// pending overlay, for EndBlock to fold into DelegationChanges at that
// height. Transaction execution calls this directly; it is not one of the
// five consensus hooks itself.
func (h *Hooks) RecordDelegate(d types.Delegate) {
	h.store.BeginWrite()
	defer h.store.EndWrite()
	h.store.Overlay().AddDelegation(d)
}

// RecordUndelegate is RecordDelegate's undelegation counterpart.
func (h *Hooks) RecordUndelegate(u types.Undelegate) {
	h.store.BeginWrite()
	defer h.store.EndWrite()
	h.store.Overlay().AddUndelegation(u)
}

// BeginBlock runs MisbehaviorHandler over the block's evidence and then
// UptimeTracker over the last-commit votes, per spec.md §6's begin_block
// description. A new block starts with no update set, so it also clears
// what TendermintValidatorUpdates reports.
func (h *Hooks) BeginBlock(height types.BlockHeight, epoch types.EpochIndex, evidence []misbehavior.Evidence, votes []uptime.Vote) error {
	h.store.BeginWrite()
	defer h.store.EndWrite()
	h.lastUpdates = nil

	if err := h.misbehavior.BeginBlock(height, epoch, evidence); err != nil {
		return err
	}
	return h.uptimeTrk.BeginBlock(height, epoch, votes)
}

// EndBlock persists the block's pending DelegationChanges under its
// height and clears the overlay, per spec.md §6's end_block description.
// If StateMachine raised the end-of-epoch signal earlier in this block
// (an Active-departure transition, spec.md §4.1), this is where it
// surfaces to the consensus engine: spec.md line 93 requires the current
// epoch to end "immediately at block commit", and EndBlock is the hook
// that runs at commit. The core cannot call its own EndEpoch hook — the
// consensus engine drives that sequencing — so it tells the Chain
// collaborator instead, the same way it tells the engine about validator
// updates only through the hooks surface, never by mutating consensus
// state directly.
func (h *Hooks) EndBlock(height types.BlockHeight) error {
	h.store.BeginWrite()
	defer h.store.EndWrite()

	changes := h.store.Overlay().PendingDelegationChanges()
	if err := h.store.PutDelegationChanges(height, changes); err != nil {
		return err
	}
	h.store.Overlay().ClearDelegationChanges()

	if h.store.Overlay().EndEpochSignaled() {
		log.WithField("height", uint64(height)).
			Info("end-of-epoch signal raised this block, notifying chain collaborator")
		h.collabs.Chain.SignalEndEpoch()
	}
	return nil
}

// EndEpoch runs EpochEngine for the epoch ending at epochEnding (whose
// blocks spanned [startHeight, endHeight]) and publishes the resulting
// validator update set. The pending-delegation overlay must be empty by
// construction (every block's EndBlock already folded it into
// DelegationChanges-by-height); this asserts that invariant explicitly
// rather than silently trusting it, closing spec.md §9's open question.
func (h *Hooks) EndEpoch(epochEnding types.EpochIndex, startHeight, endHeight types.BlockHeight) ([]validatorupdate.Update, error) {
	h.store.BeginWrite()
	defer h.store.EndWrite()

	updates, err := h.engine.EndEpoch(startHeight, endHeight, epochEnding)
	if err != nil {
		return nil, err
	}

	if pending := h.store.Overlay().PendingDelegationChanges(); !pending.IsEmpty() {
		return nil, stakeerrors.MissingState("hooks", nil,
			fmt.Errorf("pending delegation changes non-empty at end_epoch: %d delegations, %d undelegations",
				len(pending.Delegations), len(pending.Undelegations)))
	}
	h.store.Overlay().ClearDelegationChanges()
	h.store.Overlay().ClearEndEpochSignal()

	entries := make([]types.CloseRecordEntry, len(updates))
	for i, u := range updates {
		entries[i] = types.CloseRecordEntry{Key: u.Key, Power: u.Power}
	}
	record := types.EpochCloseRecord{EpochEnding: epochEnding, Entries: entries}
	log.WithField("epoch", uint64(epochEnding)).
		WithField("close_hash", fmt.Sprintf("%x", record.Hash().Bytes())).
		Debug("epoch closed")

	h.lastUpdates = updates
	return updates, nil
}

// TendermintValidatorUpdates returns the update set computed by the most
// recent InitChain or EndEpoch call. It is nil on every other block, per
// spec.md §6: "present only at epoch boundaries and at genesis".
func (h *Hooks) TendermintValidatorUpdates() []validatorupdate.Update {
	return h.lastUpdates
}
