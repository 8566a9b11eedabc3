// Package misbehavior implements spec.md §4.3: resolving evidence reported
// at begin-block into a validator identity and tombstoning it.
package misbehavior

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/rony4d/opera-stake/staking/stakeerrors"
	"github.com/rony4d/opera-stake/staking/statemachine"
	"github.com/rony4d/opera-stake/staking/store"
	"github.com/rony4d/opera-stake/staking/types"
)

var log = logrus.WithField("component", "misbehavior")

// Evidence identifies a validator who committed provable Byzantine
// behavior, by the ConsensusAddress the consensus engine reports it under.
type Evidence struct {
	Address types.ConsensusAddress
}

// Handler is the MisbehaviorHandler component.
type Handler struct {
	store store.Store
	sm    *statemachine.Machine
}

// NewHandler builds a Handler over the given accessor and StateMachine.
func NewHandler(s store.Store, sm *statemachine.Machine) *Handler {
	return &Handler{store: s, sm: sm}
}

// BeginBlock resolves each piece of evidence via the reverse index
// (ConsensusAddress -> ConsensusKey -> IdentityKey) and tombstones the
// validator it names. An address that resolves to nothing is fatal: per
// spec.md §4.3 this must never happen in a correct consensus engine, so it
// is treated as a sign of state-store corruption rather than tolerated.
func (h *Handler) BeginBlock(height types.BlockHeight, epoch types.EpochIndex, evidence []Evidence) error {
	h.store.AssertUniqueWriter()

	for _, e := range evidence {
		ck, ok, err := h.store.ConsensusKeyByAddress(e.Address)
		if err != nil {
			return err
		}
		if !ok {
			return stakeerrors.UnknownValidator("misbehavior",
				fmt.Errorf("no consensus key for address %s", e.Address))
		}
		id, ok, err := h.store.IdentityByConsensusKey(ck)
		if err != nil {
			return err
		}
		if !ok {
			return stakeerrors.UnknownValidator("misbehavior",
				fmt.Errorf("no identity for consensus key derived from address %s", e.Address))
		}

		log.WithField("validator", id).WithField("address", e.Address).
			Warn("evidence received, tombstoning")

		if err := h.sm.Transition(id, types.StateTombstoned, height, epoch); err != nil {
			return err
		}
	}
	return nil
}
