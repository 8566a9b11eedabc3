// Package stakeerrors defines the error taxonomy shared by every staking
// component. Most of these are fatal: the caller is expected to halt the
// node rather than attempt recovery, the same way go-opera's integration
// package treats a corrupt store as unrecoverable.
package stakeerrors

import (
	"errors"
	"fmt"

	"github.com/rony4d/opera-stake/staking/types"
)

// Sentinel errors identifying the taxonomy. Wrap one of these with Wrap so
// callers can still errors.Is against the category.
var (
	// ErrConfiguration marks a problem in genesis or governance parameters
	// discovered at init_chain or an EndEpoch parameter update.
	ErrConfiguration = errors.New("configuration error")

	// ErrMissingState marks a read that found no record where the caller's
	// invariants guarantee one must exist — a corrupt or partially
	// initialized store.
	ErrMissingState = errors.New("missing state")

	// ErrInvalidTransition marks a StateMachine transition the table in
	// spec.md §4.1 does not allow.
	ErrInvalidTransition = errors.New("invalid state transition")

	// ErrUnknownValidator marks a reverse-index lookup (consensus address
	// or consensus key) that resolved to nothing.
	ErrUnknownValidator = errors.New("unknown validator")

	// ErrOverflow marks a fixed-point computation whose result could not
	// be represented — see types.ErrVotingPowerOverflow and
	// mulDivFloor's panic path.
	ErrOverflow = errors.New("arithmetic overflow")

	// ErrCollaboratorUnavailable marks a call into one of the staking
	// module's external collaborators (DistributionsRead, ShieldedPool,
	// CommunityPool, SupplyReadWrite) that returned an error of its own, or
	// a supply read that reported a needed denom as unknown.
	ErrCollaboratorUnavailable = errors.New("collaborator unavailable")
)

// StakeError carries the category plus the component and validator identity
// (when known) that were in play when the error occurred, formatted the way
// go-opera's integration errors name the failing subsystem.
type StakeError struct {
	Category  error
	Component string
	Identity  types.IdentityKey
	Err       error
}

func (e *StakeError) Error() string {
	if len(e.Identity) == 0 {
		return fmt.Sprintf("%s: %s: %v", e.Component, e.Category, e.Err)
	}
	return fmt.Sprintf("%s: %s: validator %s: %v", e.Component, e.Category, e.Identity, e.Err)
}

func (e *StakeError) Unwrap() error { return e.Category }

// Wrap builds a StakeError for the given category and component.
func Wrap(category error, component string, err error) *StakeError {
	return &StakeError{Category: category, Component: component, Err: err}
}

// WrapValidator is Wrap plus the validator identity in play.
func WrapValidator(category error, component string, identity types.IdentityKey, err error) *StakeError {
	return &StakeError{Category: category, Component: component, Identity: identity, Err: err}
}

// Configuration wraps err under ErrConfiguration.
func Configuration(component string, err error) error {
	return Wrap(ErrConfiguration, component, err)
}

// MissingState wraps err under ErrMissingState.
func MissingState(component string, identity types.IdentityKey, err error) error {
	return WrapValidator(ErrMissingState, component, identity, err)
}

// InvalidTransition wraps err under ErrInvalidTransition.
func InvalidTransition(component string, identity types.IdentityKey, err error) error {
	return WrapValidator(ErrInvalidTransition, component, identity, err)
}

// UnknownValidator wraps err under ErrUnknownValidator.
func UnknownValidator(component string, err error) error {
	return Wrap(ErrUnknownValidator, component, err)
}

// Overflow wraps err under ErrOverflow.
func Overflow(component string, identity types.IdentityKey, err error) error {
	return WrapValidator(ErrOverflow, component, identity, err)
}

// CollaboratorUnavailable wraps err under ErrCollaboratorUnavailable.
func CollaboratorUnavailable(component string, err error) error {
	return Wrap(ErrCollaboratorUnavailable, component, err)
}

// IsFatal reports whether err must be treated as halting. It returns true
// for every non-nil error, including statemachine.ErrNoOp; callers filter
// that no-op self-loop result out before asking.
func IsFatal(err error) bool {
	return err != nil
}
