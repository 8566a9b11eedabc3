// Package activeset implements spec.md §4.5: ranking every Active/Inactive
// validator by voting power and partitioning the top active_validator_limit
// into Active, demoting the rest to Inactive. It additionally renders the
// winning partition as a *pos.Validators the same way go-opera's own
// iblockproc.EpochState.Validators holds the epoch's weighted validator
// set — an auxiliary, reporting-only view; the transitions that actually
// move validators between States always go through StateMachine on
// IdentityKey, never through the pos.Validators snapshot.
package activeset

import (
	"errors"
	"sort"

	"github.com/Fantom-foundation/lachesis-base/inter/idx"
	"github.com/Fantom-foundation/lachesis-base/inter/pos"
	"github.com/sirupsen/logrus"

	"github.com/rony4d/opera-stake/staking/statemachine"
	"github.com/rony4d/opera-stake/staking/store"
	"github.com/rony4d/opera-stake/staking/types"
)

var log = logrus.WithField("component", "activeset")

// Selector is the ActiveSetSelector component.
type Selector struct {
	store  store.Store
	sm     *statemachine.Machine
	params types.StakeParameters
}

// NewSelector builds a Selector over the given accessor, StateMachine, and
// governance parameters.
func NewSelector(s store.Store, sm *statemachine.Machine, params types.StakeParameters) *Selector {
	return &Selector{store: s, sm: sm, params: params}
}

type candidate struct {
	id    types.IdentityKey
	power uint64
	state types.State
}

// Result is what the Selector hands back: the ranked weighted validator set
// that made the active partition, for reporting/telemetry.
type Result struct {
	Validators *pos.Validators
}

// Select partitions every Active/Inactive validator by voting power and
// runs the resulting promotions/demotions through StateMachine. Jailed,
// Disabled, and Tombstoned validators are never considered, per spec.md
// §4.5.
func (sel *Selector) Select(height types.BlockHeight, epoch types.EpochIndex) (Result, error) {
	sel.store.AssertUniqueWriter()

	var candidates []candidate
	err := sel.store.IterateIdentities(func(id types.IdentityKey) error {
		st, ok, err := sel.store.State(id)
		if err != nil {
			return err
		}
		if !ok || (st != types.StateActive && st != types.StateInactive) {
			return nil
		}
		power, _, err := sel.store.VotingPower(id)
		if err != nil {
			return err
		}
		candidates = append(candidates, candidate{
			id:    append(types.IdentityKey(nil), id...),
			power: power,
			state: st,
		})
		return nil
	})
	if err != nil {
		return Result{}, err
	}

	var nonzero, zero []candidate
	for _, c := range candidates {
		if c.power == 0 {
			zero = append(zero, c)
		} else {
			nonzero = append(nonzero, c)
		}
	}
	sort.Slice(nonzero, func(i, j int) bool {
		if nonzero[i].power != nonzero[j].power {
			return nonzero[i].power > nonzero[j].power
		}
		return string(nonzero[i].id) < string(nonzero[j].id)
	})
	sort.Slice(zero, func(i, j int) bool { return string(zero[i].id) < string(zero[j].id) })

	limit := int(sel.params.ActiveValidatorLimit)
	builder := pos.NewBuilder()

	for i, c := range nonzero {
		target := types.StateInactive
		if i < limit {
			target = types.StateActive
			builder.Set(idx.ValidatorID(i+1), pos.Weight(c.power))
		}
		if err := sel.transition(c.id, target, height, epoch); err != nil {
			return Result{}, err
		}
	}
	for _, c := range zero {
		if err := sel.transition(c.id, types.StateInactive, height, epoch); err != nil {
			return Result{}, err
		}
	}

	activeCount := limit
	if len(nonzero) < activeCount {
		activeCount = len(nonzero)
	}
	log.WithField("active_count", activeCount).Debug("active set recomputed")
	return Result{Validators: builder.Build()}, nil
}

func (sel *Selector) transition(id types.IdentityKey, target types.State, height types.BlockHeight, epoch types.EpochIndex) error {
	err := sel.sm.Transition(id, target, height, epoch)
	if errors.Is(err, statemachine.ErrNoOp) {
		return nil
	}
	return err
}
