// Package statemachine owns every transition of a validator's (State,
// BondingState) pair and the side effects spec.md §4.1's table attaches to
// each one. It is the only package allowed to write State or BondingState;
// every other component asks it to move a validator rather than writing
// those records directly — the same "one authority, one table" discipline
// inter/iblockproc uses for its own Copy()-before-mutate state transitions.
package statemachine

import (
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/rony4d/opera-stake/staking/stakeerrors"
	"github.com/rony4d/opera-stake/staking/store"
	"github.com/rony4d/opera-stake/staking/types"
)

var log = logrus.WithField("component", "statemachine")

// ErrNoOp is returned by no-op self-loops to let callers distinguish "this
// was silently tolerated" from "this mutated state" without treating either
// as a failure — spec.md §7 tolerates self-loops explicitly.
var ErrNoOp = errors.New("statemachine: no-op self-transition")

// Machine is the StateMachine component. It holds no state of its own
// beyond the accessor handle and governance parameters; every transition
// reads the validator's current State/BondingState fresh.
type Machine struct {
	store  store.Store
	params types.StakeParameters
}

// New builds a Machine over the given accessor and parameters.
func New(s store.Store, params types.StakeParameters) *Machine {
	return &Machine{store: s, params: params}
}

// unbondEnd computes "current_unbond_end" per spec.md §4.1: the epoch this
// validator's cooldown ends at. If it is already Unbonding, the earlier of
// the two candidate ends wins, since a later transition must never extend
// an already-running cooldown.
func (m *Machine) unbondEnd(current types.BondingState, currentEpoch types.EpochIndex) types.EpochIndex {
	candidate := currentEpoch + m.params.UnbondingEpochs
	if current.Kind == types.BondingUnbonding && current.UnbondEpoch < candidate {
		return current.UnbondEpoch
	}
	return candidate
}

func (m *Machine) recordPenalty(id types.IdentityKey, epoch types.EpochIndex, add types.Penalty) error {
	if add.IsZero() {
		return nil
	}
	existing, ok, err := m.store.Penalty(id, epoch)
	if err != nil {
		return err
	}
	combined := add
	if ok {
		combined = existing.Compound(add)
	}
	return m.store.PutPenalty(id, epoch, combined)
}

// Transition moves validator id's State to target at the given block
// height / epoch, applying the side effects spec.md §4.1 names for the
// (from, to) cell. ErrNoOp is returned (not a failure) for the self-loop
// cells; any "—" cell fails with stakeerrors.ErrInvalidTransition.
func (m *Machine) Transition(id types.IdentityKey, target types.State, height types.BlockHeight, currentEpoch types.EpochIndex) error {
	m.store.AssertUniqueWriter()

	from, ok, err := m.store.State(id)
	if err != nil {
		return err
	}
	if !ok {
		return stakeerrors.MissingState("statemachine", id, fmt.Errorf("no State record for validator %s", id))
	}

	bonding, ok, err := m.store.BondingState(id)
	if err != nil {
		return err
	}
	if !ok {
		return stakeerrors.MissingState("statemachine", id, fmt.Errorf("no BondingState record for validator %s", id))
	}

	switch from {
	case types.StateInactive:
		switch target {
		case types.StateInactive:
			return ErrNoOp
		case types.StateActive:
			return m.toActiveFromInactive(id, height)
		case types.StateDisabled:
			return m.setState(id, target)
		case types.StateTombstoned:
			return m.toTombstoned(id, currentEpoch, m.params.SlashingPenaltyMisbehavior)
		default:
			return m.illegal(id, from, target)
		}

	case types.StateActive:
		switch target {
		case types.StateInactive:
			return m.leaveActive(id, bonding, currentEpoch, target)
		case types.StateActive:
			return ErrNoOp
		case types.StateJailed:
			if err := m.recordPenalty(id, currentEpoch, m.params.SlashingPenaltyDowntime); err != nil {
				return err
			}
			return m.leaveActive(id, bonding, currentEpoch, target)
		case types.StateDisabled:
			return m.leaveActive(id, bonding, currentEpoch, target)
		case types.StateTombstoned:
			if err := m.recordPenalty(id, currentEpoch, m.params.SlashingPenaltyMisbehavior); err != nil {
				return err
			}
			if err := m.store.PutBondingState(id, types.Unbonded()); err != nil {
				return err
			}
			m.store.Overlay().SignalEndEpoch()
			return m.setState(id, target)
		default:
			return m.illegal(id, from, target)
		}

	case types.StateJailed:
		switch target {
		case types.StateInactive:
			return m.setState(id, target)
		case types.StateDisabled:
			return m.setState(id, target)
		case types.StateTombstoned:
			return m.toTombstoned(id, currentEpoch, m.params.SlashingPenaltyMisbehavior)
		default:
			return m.illegal(id, from, target)
		}

	case types.StateDisabled:
		switch target {
		case types.StateInactive:
			return m.setState(id, target)
		case types.StateDisabled:
			return ErrNoOp
		case types.StateTombstoned:
			return m.toTombstoned(id, currentEpoch, m.params.SlashingPenaltyMisbehavior)
		default:
			return m.illegal(id, from, target)
		}

	case types.StateTombstoned:
		return m.illegal(id, from, target)

	default:
		return m.illegal(id, from, target)
	}
}

// ReleaseUnbonding transitions a validator's BondingState from
// Unbonding{e} to Unbonded once its cooldown epoch has passed (spec.md
// §4.4 Step 4). It only touches BondingState — State is untouched — since
// cooldown expiry runs on its own clock, independent of the State
// transition table. Called by EpochEngine at every epoch boundary so that
// "State and BondingState are written only by StateMachine" (spec.md §3)
// still holds even for this EpochEngine-driven step.
func (m *Machine) ReleaseUnbonding(id types.IdentityKey) error {
	m.store.AssertUniqueWriter()
	return m.store.PutBondingState(id, types.Unbonded())
}

func (m *Machine) illegal(id types.IdentityKey, from, to types.State) error {
	return stakeerrors.InvalidTransition("statemachine", id,
		fmt.Errorf("%s -> %s is not permitted", from, to))
}

func (m *Machine) setState(id types.IdentityKey, target types.State) error {
	return m.store.PutState(id, target)
}

// toActiveFromInactive bonds the validator and initializes a fresh Uptime
// ring anchored at the current height, per spec.md §4.1's Inactive→Active
// cell. "Publish" happens implicitly: ActiveSetSelector and
// ValidatorUpdateBuilder read State fresh at the next epoch boundary.
func (m *Machine) toActiveFromInactive(id types.IdentityKey, height types.BlockHeight) error {
	if err := m.store.PutBondingState(id, types.Bonded()); err != nil {
		return err
	}
	params := m.params
	fresh := types.NewUptime(params.SignedBlocksWindowLen, uint64(height))
	if err := m.store.PutUptime(id, fresh); err != nil {
		return err
	}
	log.WithField("validator", id).Debug("validator bonded and activated")
	return m.setState(id, types.StateActive)
}

// leaveActive is shared by Active→{Inactive,Jailed,Disabled}: all three set
// BondingState to Unbonding{current_unbond_end} and signal end-of-epoch.
func (m *Machine) leaveActive(id types.IdentityKey, bonding types.BondingState, currentEpoch types.EpochIndex, target types.State) error {
	end := m.unbondEnd(bonding, currentEpoch)
	if err := m.store.PutBondingState(id, types.Unbonding(end)); err != nil {
		return err
	}
	m.store.Overlay().SignalEndEpoch()
	return m.setState(id, target)
}

// toTombstoned is shared by every *→Tombstoned cell: record the
// misbehavior penalty, unbond immediately (no cooldown — Tombstoned means
// stake is already forfeit), and mark the terminal state.
func (m *Machine) toTombstoned(id types.IdentityKey, currentEpoch types.EpochIndex, penalty types.Penalty) error {
	if err := m.recordPenalty(id, currentEpoch, penalty); err != nil {
		return err
	}
	if err := m.store.PutBondingState(id, types.Unbonded()); err != nil {
		return err
	}
	return m.setState(id, types.StateTombstoned)
}
