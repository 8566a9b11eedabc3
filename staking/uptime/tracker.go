package uptime

import (
	"context"
	"fmt"
	"sort"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/rony4d/opera-stake/staking/stakeerrors"
	"github.com/rony4d/opera-stake/staking/statemachine"
	"github.com/rony4d/opera-stake/staking/store"
	"github.com/rony4d/opera-stake/staking/types"
)

var log = logrus.WithField("component", "uptime")

// Vote is one entry of the consensus engine's last-commit summary: whether
// the validator at this ConsensusAddress signed the previous block.
type Vote struct {
	Address types.ConsensusAddress
	Signed  bool
}

// Tracker is the UptimeTracker component.
type Tracker struct {
	store  store.Store
	sm     *statemachine.Machine
	params types.StakeParameters
}

// NewTracker builds a Tracker over the given accessor, StateMachine, and
// governance parameters.
func NewTracker(s store.Store, sm *statemachine.Machine, params types.StakeParameters) *Tracker {
	return &Tracker{store: s, sm: sm, params: params}
}

type pendingUpdate struct {
	id        types.IdentityKey
	newUptime types.Uptime
	jail      bool
}

// BeginBlock marks height into every currently Active validator's Uptime
// ring and jails any that cross MissedBlocksMaximum, per spec.md §4.2.
// Per-validator lookups (step 2) are fanned out since they are independent
// reads; the resulting writes are applied afterwards in ascending
// IdentityKey order on this goroutine, so observable state stays a
// deterministic function of the input regardless of fan-out completion
// order (spec.md §5).
func (t *Tracker) BeginBlock(height types.BlockHeight, epoch types.EpochIndex, votes []Vote) error {
	t.store.AssertUniqueWriter()

	// Special case: block 1 has no predecessor to gather signatures from,
	// so every validator is treated as having signed it.
	firstBlock := height == 1

	signedByAddr := make(map[types.ConsensusAddress]bool, len(votes))
	for _, v := range votes {
		signedByAddr[v.Address] = v.Signed
	}

	var ids []types.IdentityKey
	err := t.store.IterateIdentities(func(id types.IdentityKey) error {
		st, ok, err := t.store.State(id)
		if err != nil {
			return err
		}
		if ok && st == types.StateActive {
			ids = append(ids, append(types.IdentityKey(nil), id...))
		}
		return nil
	})
	if err != nil {
		return err
	}
	sort.Slice(ids, func(i, j int) bool { return string(ids[i]) < string(ids[j]) })

	updates := make([]pendingUpdate, len(ids))
	g, _ := errgroup.WithContext(context.Background())
	for i, id := range ids {
		i, id := i, id
		g.Go(func() error {
			v, ok, err := t.store.Validator(id)
			if err != nil {
				return err
			}
			if !ok {
				return stakeerrors.MissingState("uptime", id, fmt.Errorf("validator record missing"))
			}
			addr := types.DeriveConsensusAddress(v.ConsensusKey)

			signed := true
			if !firstBlock {
				signed = signedByAddr[addr] // absent => false (no vote observed for this address)
			}

			u, ok, err := t.store.Uptime(id)
			if err != nil {
				return err
			}
			if !ok {
				return stakeerrors.MissingState("uptime", id, fmt.Errorf("uptime record missing"))
			}

			ring := FromUptime(u).Mark(uint64(height), signed)
			jail := uint64(ring.Misses()) >= t.params.MissedBlocksMaximum
			updates[i] = pendingUpdate{id: id, newUptime: ring.Uptime(), jail: jail}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	for _, u := range updates {
		if u.jail {
			log.WithField("validator", u.id).Warn("missed_blocks_maximum reached, jailing")
			if err := t.sm.Transition(u.id, types.StateJailed, height, epoch); err != nil {
				return err
			}
			continue
		}
		if err := t.store.PutUptime(u.id, u.newUptime); err != nil {
			return err
		}
	}
	return nil
}
