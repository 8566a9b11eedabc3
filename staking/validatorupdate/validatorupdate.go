// Package validatorupdate implements spec.md §4.6: computing the full
// (ConsensusKey, power) set to republish to the consensus engine at every
// epoch boundary. Republishing everything rather than a delta trades
// bandwidth for a trivial correctness proof — there is no possibility of a
// missed delta, the same trade-off spec.md calls out explicitly.
package validatorupdate

import (
	"context"
	"encoding/hex"
	"fmt"
	"math"
	"sort"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/rony4d/opera-stake/staking/stakeerrors"
	"github.com/rony4d/opera-stake/staking/store"
	"github.com/rony4d/opera-stake/staking/types"
)

var log = logrus.WithField("component", "validatorupdate")

// Update is one (ConsensusKey, power) entry to hand back to the consensus
// engine. Power == 0 means "remove this key" when it was previously known.
type Update struct {
	Key   types.ConsensusKey
	Power uint64
}

// Builder is the ValidatorUpdateBuilder component.
type Builder struct {
	store store.Store
}

// NewBuilder builds a Builder over the given accessor.
func NewBuilder(s store.Store) *Builder {
	return &Builder{store: s}
}

type collected struct {
	key   types.ConsensusKey
	power uint64
}

// Build computes the update set per spec.md §4.6 and persists the new
// CurrentConsensusKeys so the next epoch boundary's diff-against-previous
// is correct. Per-validator (ConsensusKey, State, power) lookups (step 1)
// are fanned out since they are independent reads; the set is assembled
// afterward on this goroutine.
func (b *Builder) Build() ([]Update, error) {
	b.store.AssertUniqueWriter()

	current, err := b.store.CurrentConsensusKeys()
	if err != nil {
		return nil, err
	}

	var ids []types.IdentityKey
	err = b.store.IterateIdentities(func(id types.IdentityKey) error {
		ids = append(ids, append(types.IdentityKey(nil), id...))
		return nil
	})
	if err != nil {
		return nil, err
	}

	results := make([]collected, len(ids))
	g, _ := errgroup.WithContext(context.Background())
	for i, id := range ids {
		i, id := i, id
		g.Go(func() error {
			v, ok, err := b.store.Validator(id)
			if err != nil {
				return err
			}
			if !ok {
				return stakeerrors.MissingState("validatorupdate", id, fmt.Errorf("validator record missing"))
			}
			st, ok, err := b.store.State(id)
			if err != nil {
				return err
			}
			if !ok {
				return stakeerrors.MissingState("validatorupdate", id, fmt.Errorf("state record missing"))
			}
			power, _, err := b.store.VotingPower(id)
			if err != nil {
				return err
			}
			effective := power
			if st != types.StateActive {
				effective = 0
			}
			if effective > uint64(math.MaxInt64) {
				return stakeerrors.Overflow("validatorupdate", id, fmt.Errorf("power %d does not fit in i63", effective))
			}
			results[i] = collected{key: v.ConsensusKey, power: effective}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	byHex := make(map[string]collected, len(results))
	for _, r := range results {
		h := hex.EncodeToString(r.key)
		// Drop zero-power entries unless the key is currently published —
		// we must tell the engine it now has 0, but never introduce a key
		// the engine has never heard of at power 0.
		if r.power == 0 && !current.Contains(r.key) {
			continue
		}
		byHex[h] = r
	}
	for _, k := range current.Keys() {
		h := hex.EncodeToString(k)
		if _, ok := byHex[h]; !ok {
			byHex[h] = collected{key: k, power: 0}
		}
	}

	updates := make([]Update, 0, len(byHex))
	for _, c := range byHex {
		updates = append(updates, Update{Key: c.key, Power: c.power})
	}
	sort.Slice(updates, func(i, j int) bool { return string(updates[i].Key) < string(updates[j].Key) })

	newCurrent := types.NewConsensusKeySet(nil)
	for _, u := range updates {
		if u.Power != 0 {
			newCurrent.Add(u.Key)
		}
	}
	if err := b.store.PutCurrentConsensusKeys(newCurrent); err != nil {
		return nil, err
	}

	log.WithField("update_count", len(updates)).Debug("validator update set built")
	return updates, nil
}
