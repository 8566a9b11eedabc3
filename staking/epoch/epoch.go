// Package epoch implements EpochEngine, spec.md §4.4 — the largest single
// component: base/validator exchange-rate rollover, bonded-token supply
// settlement from the epoch's aggregated delegation activity, funding-
// stream reward minting, unbonding release, and the hand-off into
// ActiveSetSelector and ValidatorUpdateBuilder that produces the set
// published at the epoch boundary. Grounded on opera/rules.go's
// rate-per-second-accrual struct shape for the base/validator rate
// rollover, generalized from a per-second schedule to the per-epoch one
// spec.md §4.4 describes.
package epoch

import (
	"fmt"
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/rony4d/opera-stake/staking/activeset"
	"github.com/rony4d/opera-stake/staking/collaborators"
	"github.com/rony4d/opera-stake/staking/stakeerrors"
	"github.com/rony4d/opera-stake/staking/statemachine"
	"github.com/rony4d/opera-stake/staking/store"
	"github.com/rony4d/opera-stake/staking/types"
	"github.com/rony4d/opera-stake/staking/validatorupdate"
)

var log = logrus.WithField("component", "epoch")

// Engine is the EpochEngine component.
type Engine struct {
	store    store.Store
	sm       *statemachine.Machine
	collabs  *collaborators.Collaborators
	selector *activeset.Selector
	builder  *validatorupdate.Builder
}

// New builds an Engine wiring every collaborator it needs: the accessor,
// the StateMachine it drives bonding-state/active-set transitions through,
// the external collaborators (distributions/shielded-pool/community-pool/
// supply), the ActiveSetSelector, and the ValidatorUpdateBuilder — the
// full chain spec.md §4.4 Steps 5 and 6 hand off into.
func New(s store.Store, sm *statemachine.Machine, collabs *collaborators.Collaborators, selector *activeset.Selector, builder *validatorupdate.Builder) *Engine {
	return &Engine{store: s, sm: sm, collabs: collabs, selector: selector, builder: builder}
}

type deltaAgg struct {
	delegated   uint64
	undelegated uint64
}

func (e *Engine) sortedIdentities() ([]types.IdentityKey, error) {
	var ids []types.IdentityKey
	err := e.store.IterateIdentities(func(id types.IdentityKey) error {
		ids = append(ids, append(types.IdentityKey(nil), id...))
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(ids, func(i, j int) bool { return string(ids[i]) < string(ids[j]) })
	return ids, nil
}

// EndEpoch runs EpochEngine for the epoch ending at epochEnding, whose
// blocks spanned [startHeight, endHeight]. It returns the validator update
// set ValidatorUpdateBuilder computed at the tail of Step 6, ready for
// staking/hooks to hand back to the consensus engine.
func (e *Engine) EndEpoch(startHeight, endHeight types.BlockHeight, epochEnding types.EpochIndex) ([]validatorupdate.Update, error) {
	e.store.AssertUniqueWriter()

	// Step 1: aggregate delegation/undelegation activity per validator
	// over every block height the ending epoch spanned.
	deltas := make(map[string]*deltaAgg)
	for h := startHeight; h <= endHeight; h++ {
		changes, ok, err := e.store.DelegationChanges(h)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		for _, d := range changes.Delegations {
			k := d.ValidatorIdentity.String()
			a := deltas[k]
			if a == nil {
				a = &deltaAgg{}
				deltas[k] = a
			}
			a.delegated += d.DelegationAmount
		}
		for _, u := range changes.Undelegations {
			k := u.ValidatorIdentity.String()
			a := deltas[k]
			if a == nil {
				a = &deltaAgg{}
				deltas[k] = a
			}
			a.undelegated += u.DelegationAmount
		}
	}

	ids, err := e.sortedIdentities()
	if err != nil {
		return nil, err
	}

	// Step 2: compute the next BaseRate from the issuance budget and total
	// active stake observed under the *previous* rate.
	prevBase, ok, err := e.store.BaseRate()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, stakeerrors.MissingState("epoch", nil, fmt.Errorf("no current base rate"))
	}

	issuanceBudget, err := e.collabs.Distributions.StakingTokenIssuanceForEpoch(epochEnding)
	if err != nil {
		return nil, stakeerrors.CollaboratorUnavailable("epoch", fmt.Errorf("issuance budget unset for epoch %d: %w", uint64(epochEnding), err))
	}

	var totalActiveStake uint64
	for _, id := range ids {
		st, ok, err := e.store.State(id)
		if err != nil {
			return nil, err
		}
		if !ok || st != types.StateActive {
			continue
		}
		prevRate, ok, err := e.store.Rate(id)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, stakeerrors.MissingState("epoch", id, fmt.Errorf("no rate data"))
		}
		supply, ok, err := e.collabs.Supply.TokenSupply(types.DelegationTokenAsset(id))
		if err != nil {
			return nil, stakeerrors.CollaboratorUnavailable("epoch", err)
		}
		if !ok {
			return nil, stakeerrors.CollaboratorUnavailable("epoch", fmt.Errorf("delegation token supply unknown for %s", id))
		}
		totalActiveStake += prevRate.UnbondedAmount(supply)
	}
	if totalActiveStake == 0 {
		return nil, stakeerrors.Overflow("epoch", nil, fmt.Errorf("total active stake is zero, cannot derive base reward rate"))
	}

	baseRewardRate := types.MulDivFloor(issuanceBudget, types.ExchangeRateScale, totalActiveStake)
	nextEpoch := epochEnding + 1
	nextBase := prevBase.Next(nextEpoch, baseRewardRate)
	if err := e.store.PutBaseRate(nextBase); err != nil {
		return nil, err
	}

	log.WithField("epoch", uint64(epochEnding)).
		WithField("base_reward_rate", baseRewardRate).
		WithField("total_active_stake", totalActiveStake).
		Debug("base rate advanced")

	// Step 3: per-validator rate rollover, supply settlement, and reward
	// distribution, in ascending IdentityKey order.
	for _, id := range ids {
		if err := e.settleValidator(id, epochEnding, prevBase, nextBase, deltas[id.String()]); err != nil {
			return nil, err
		}
	}

	// Step 4: release cooldowns that have completed.
	for _, id := range ids {
		bs, ok, err := e.store.BondingState(id)
		if err != nil {
			return nil, err
		}
		if ok && bs.Kind == types.BondingUnbonding && bs.UnbondEpoch <= epochEnding {
			if err := e.sm.ReleaseUnbonding(id); err != nil {
				return nil, err
			}
		}
	}

	// Step 5: active-set recomputation.
	if _, err := e.selector.Select(endHeight, epochEnding); err != nil {
		return nil, err
	}

	// Step 6: publish the validator update set.
	updates, err := e.builder.Build()
	if err != nil {
		return nil, err
	}
	return updates, nil
}

func (e *Engine) settleValidator(id types.IdentityKey, epochEnding types.EpochIndex, prevBase, nextBase types.BaseRateData, agg *deltaAgg) error {
	st, ok, err := e.store.State(id)
	if err != nil {
		return err
	}
	if !ok {
		return stakeerrors.MissingState("epoch", id, fmt.Errorf("no State record"))
	}
	prevRate, ok, err := e.store.Rate(id)
	if err != nil {
		return err
	}
	if !ok {
		return stakeerrors.MissingState("epoch", id, fmt.Errorf("no rate data"))
	}
	v, ok, err := e.store.Validator(id)
	if err != nil {
		return err
	}
	if !ok {
		return stakeerrors.MissingState("epoch", id, fmt.Errorf("no validator record"))
	}

	penalty, ok, err := e.store.Penalty(id, epochEnding)
	if err != nil {
		return err
	}
	if !ok {
		penalty = types.NoPenalty()
	}
	prevRateAfterSlash := prevRate.Slash(penalty)
	nextRate := prevRateAfterSlash.Next(nextBase, v.FundingStreams, st)

	var delegated, undelegated uint64
	if agg != nil {
		delegated, undelegated = agg.delegated, agg.undelegated
	}
	netDelta := int64(delegated) - int64(undelegated)

	asset := types.DelegationTokenAsset(id)
	if err := e.collabs.Supply.UpdateTokenSupply(asset, netDelta); err != nil {
		return stakeerrors.CollaboratorUnavailable("epoch", err)
	}

	absNet := uint64(netDelta)
	if netDelta < 0 {
		absNet = uint64(-netDelta)
	}
	unbondedAbs := prevRate.UnbondedAmount(absNet)
	var stakingDelta int64
	if netDelta >= 0 {
		stakingDelta = -int64(unbondedAbs)
	} else {
		stakingDelta = int64(unbondedAbs)
	}
	if err := e.collabs.Supply.UpdateTokenSupply(types.StakingTokenAsset, stakingDelta); err != nil {
		return stakeerrors.CollaboratorUnavailable("epoch", err)
	}

	newSupply, ok, err := e.collabs.Supply.TokenSupply(asset)
	if err != nil {
		return stakeerrors.CollaboratorUnavailable("epoch", err)
	}
	if !ok {
		return stakeerrors.CollaboratorUnavailable("epoch", fmt.Errorf("delegation token supply unknown for %s after update", id))
	}

	votingPower, err := nextRate.VotingPower(newSupply, nextBase)
	if err != nil {
		return stakeerrors.Overflow("epoch", id, err)
	}

	if err := e.store.PutRate(id, nextRate); err != nil {
		return err
	}
	if err := e.store.PutVotingPower(id, votingPower); err != nil {
		return err
	}

	if st == types.StateActive {
		for _, stream := range v.FundingStreams {
			reward := stream.RewardAmount(prevBase, nextBase, newSupply)
			if reward == 0 {
				continue
			}
			switch stream.Recipient.Kind {
			case types.RecipientAddress:
				tag := fmt.Sprintf("funding-stream-reward-epoch-%d", uint64(epochEnding))
				if err := e.collabs.Shielded.MintNote(reward, stream.Recipient.ToAddress, tag); err != nil {
					return stakeerrors.CollaboratorUnavailable("epoch", err)
				}
			case types.RecipientCommunityPool:
				if err := e.collabs.Community.Deposit(reward); err != nil {
					return stakeerrors.CollaboratorUnavailable("epoch", err)
				}
			}
		}
	}
	return nil
}
