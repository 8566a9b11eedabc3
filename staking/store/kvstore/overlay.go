package kvstore

import (
	"sync"

	"github.com/rony4d/opera-stake/staking/types"
)

// overlay is kvstore's own copy of the reserved-prefix, current-block side
// channel spec.md §9 describes. It is kept local (not shared with
// memstore's identical-shaped overlay) so kvstore has no dependency on the
// memstore package: the overlay is never persisted through the KV, so
// there is nothing backend-specific about it either way.
type overlay struct {
	mu            sync.Mutex
	delegations   []types.Delegate
	undelegations []types.Undelegate
	endEpoch      bool
}

func newOverlay() *overlay {
	return &overlay{}
}

func (o *overlay) PendingDelegationChanges() types.DelegationChanges {
	o.mu.Lock()
	defer o.mu.Unlock()
	return types.DelegationChanges{
		Delegations:   append([]types.Delegate(nil), o.delegations...),
		Undelegations: append([]types.Undelegate(nil), o.undelegations...),
	}
}

func (o *overlay) AddDelegation(d types.Delegate) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.delegations = append(o.delegations, d)
}

func (o *overlay) AddUndelegation(u types.Undelegate) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.undelegations = append(o.undelegations, u)
}

func (o *overlay) ClearDelegationChanges() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.delegations = nil
	o.undelegations = nil
}

func (o *overlay) EndEpochSignaled() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.endEpoch
}

func (o *overlay) SignalEndEpoch() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.endEpoch = true
}

func (o *overlay) ClearEndEpochSignal() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.endEpoch = false
}
