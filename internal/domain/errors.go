package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation is returned for malformed input such as non-positive amounts or missing fields
	ErrValidation = errors.New("validation failed")

	// ErrNotFound is returned when a token, faucet or airdrop does not exist
	ErrNotFound = errors.New("not found")

	// ErrUnknownToken is returned by the ledger when the token is unknown or inactive
	ErrUnknownToken = errors.New("unknown token")

	// ErrInactiveResource is returned when a token, faucet or airdrop has been deactivated
	ErrInactiveResource = errors.New("resource inactive")

	// ErrWindowClosed is returned outside of a faucet or airdrop start/end window
	ErrWindowClosed = errors.New("claim window closed")

	// ErrNotEligible is returned when a faucet cooldown has not elapsed or a predicate rejects the user
	ErrNotEligible = errors.New("not eligible")

	// ErrCapReached is returned when a user has used all claims of a capped faucet
	ErrCapReached = fmt.Errorf("%w: claim cap reached", ErrNotEligible)

	// ErrAlreadyClaimed is returned on an airdrop double-claim
	ErrAlreadyClaimed = errors.New("already claimed")

	// ErrSupplyExhausted is returned when a grant would exceed the available supply
	ErrSupplyExhausted = errors.New("supply exhausted")
)

// RewardError is an engine error carrying its kind and a human-readable reason
type RewardError struct {
	// Kind is one of the sentinel errors above
	Kind error
	// Reason is safe to show to the end user
	Reason string
	// MinutesRemaining is set for faucet cooldown rejections
	MinutesRemaining *int64
}

func (e *RewardError) Error() string {
	return e.Reason
}

func (e *RewardError) Unwrap() error {
	return e.Kind
}

// NewRewardError creates a RewardError of the given kind
func NewRewardError(kind error, format string, args ...any) *RewardError {
	return &RewardError{
		Kind:   kind,
		Reason: fmt.Sprintf(format, args...),
	}
}

// NewValidationError creates a validation RewardError
func NewValidationError(format string, args ...any) *RewardError {
	return NewRewardError(ErrValidation, format, args...)
}

// NewCooldownError creates a NotEligible error for a faucet whose cooldown is still running
func NewCooldownError(minutesRemaining int64) *RewardError {
	err := NewRewardError(ErrNotEligible, "next claim available in %d minutes", minutesRemaining)
	err.MinutesRemaining = &minutesRemaining
	return err
}

// ErrorCode returns the stable, machine readable code of an engine error.
// Errors outside the taxonomy map to "internal_error".
func ErrorCode(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrValidation):
		return "validation_failed"
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrUnknownToken):
		return "not_found"
	case errors.Is(err, ErrInactiveResource):
		return "inactive_resource"
	case errors.Is(err, ErrWindowClosed):
		return "window_closed"
	case errors.Is(err, ErrCapReached):
		return "cap_reached"
	case errors.Is(err, ErrNotEligible):
		return "not_eligible"
	case errors.Is(err, ErrAlreadyClaimed):
		return "already_claimed"
	case errors.Is(err, ErrSupplyExhausted):
		return "supply_exhausted"
	default:
		return "internal_error"
	}
}
