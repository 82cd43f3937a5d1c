package payout

import (
	"errors"
	"fmt"

	"github.com/xraph/payout/investment"
	"github.com/xraph/payout/notify"
	"github.com/xraph/payout/referral"
	"github.com/xraph/payout/store"
)

// Sentinel errors for common failure scenarios.
var (
	// General errors
	ErrNotFound      = store.ErrNotFound
	ErrAlreadyExists = store.ErrAlreadyExists
	ErrConflict      = store.ErrConflict
	ErrInvalidInput  = errors.New("payout: invalid input")
	ErrInvalidConfig = errors.New("payout: invalid configuration")

	// Investor errors
	ErrInvestorNotFound   = errors.New("payout: investor not found")
	ErrReferrerNotFound   = errors.New("payout: referrer not found")
	ErrReferrerAlreadySet = errors.New("payout: investor already has a referrer")
	ErrSelfReferral       = referral.ErrSelfReferral
	ErrReferralCycle      = referral.ErrCycle

	// Investment errors
	ErrInvestmentNotFound = errors.New("payout: investment not found")
	ErrInvalidAmount      = errors.New("payout: amount must be positive and within limits")
	ErrInvalidPeriod      = errors.New("payout: maturity period not allowed")
	ErrCurrencyMismatch   = errors.New("payout: currency mismatch")
	ErrInvalidTransition  = investment.ErrInvalidTransition

	// Settlement errors
	ErrPairingNotFound = errors.New("payout: pairing not found")
	ErrPairingClosed   = errors.New("payout: pairing is no longer payable")
	ErrNotPayable      = errors.New("payout: investment is not awaiting payment")

	// Side-effect errors
	ErrNotifyBufferFull = notify.ErrBufferFull
)

// ValidationError represents a validation failure with details.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("payout: validation failed for %s: %s", e.Field, e.Message)
}

// Unwrap lets errors.Is match ErrInvalidInput.
func (e ValidationError) Unwrap() error { return ErrInvalidInput }

// MultiError represents multiple errors that occurred.
type MultiError struct {
	Errors []error
}

func (e MultiError) Error() string {
	if len(e.Errors) == 0 {
		return "payout: no errors"
	}
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	return fmt.Sprintf("payout: %d errors occurred: %v", len(e.Errors), e.Errors[0])
}

// Unwrap exposes every collected error to errors.Is and errors.As.
func (e MultiError) Unwrap() []error { return e.Errors }

// Add adds an error to the multi-error.
func (e *MultiError) Add(err error) {
	if err != nil {
		e.Errors = append(e.Errors, err)
	}
}

// HasErrors returns true if there are any errors.
func (e MultiError) HasErrors() bool {
	return len(e.Errors) > 0
}

// First returns the first error or nil.
func (e MultiError) First() error {
	if len(e.Errors) > 0 {
		return e.Errors[0]
	}
	return nil
}

// ErrOrNil returns e when it holds errors and nil otherwise.
func (e MultiError) ErrOrNil() error {
	if e.HasErrors() {
		return e
	}
	return nil
}

// IsNotFound returns true if the error is a not found error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrInvestorNotFound) ||
		errors.Is(err, ErrInvestmentNotFound) ||
		errors.Is(err, ErrPairingNotFound) ||
		errors.Is(err, ErrReferrerNotFound)
}

// IsValidation returns true if the request was rejected before any mutation.
func IsValidation(err error) bool {
	var ve ValidationError
	return errors.As(err, &ve) ||
		errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, ErrInvalidAmount) ||
		errors.Is(err, ErrInvalidPeriod) ||
		errors.Is(err, ErrCurrencyMismatch) ||
		errors.Is(err, ErrSelfReferral) ||
		errors.Is(err, ErrReferralCycle) ||
		errors.Is(err, ErrReferrerAlreadySet)
}

// IsRetryable returns true if the error is temporary and the operation can be retried.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrConflict) ||
		errors.Is(err, ErrNotifyBufferFull)
}

// notFound maps a store miss to the entity-specific sentinel while keeping
// store.ErrNotFound in the chain.
func notFound(err, sentinel error, key fmt.Stringer) error {
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("%w: %s: %w", sentinel, key, err)
	}
	return err
}
