/*
errors.go - Error types for the retention engine and its persistence boundary

PURPOSE:
  Validation failures are values (ValidationResult), not errors. The types
  here are what the Service and stores return: sentinels for errors.Is and
  structured errors that carry context and unwrap to a sentinel.

ERROR CATEGORIES:
  1. Client errors - rejected input (validation, release over balance,
     deleting an account with releases, forfeited account)
  2. Not found - missing account or policy
  3. Retryable - optimistic lock conflicts

SEE ALSO:
  - service.go: returns these errors
  - api/handlers.go: maps them to HTTP status codes
*/
package retention

import (
	"errors"
	"fmt"
	"strings"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrValidation is returned when account or policy input fails validation.
	ErrValidation = errors.New("validation failed")

	// ErrReleaseRejected is returned when a release fails validation,
	// most importantly when it exceeds the account's balance.
	ErrReleaseRejected = errors.New("release rejected")

	// ErrAccountHasReleases is returned when deleting an account would
	// orphan its release history.
	ErrAccountHasReleases = errors.New("account has releases")

	// ErrAccountNotFound is returned when a referenced account doesn't exist.
	ErrAccountNotFound = errors.New("retention account not found")

	// ErrPolicyNotFound is returned when a referenced policy doesn't exist.
	ErrPolicyNotFound = errors.New("retention policy not found")

	// ErrPolicyInactive is returned when applying a deactivated policy.
	ErrPolicyInactive = errors.New("retention policy is inactive")

	// ErrAccountForfeited is returned when acting on a forfeited account.
	ErrAccountForfeited = errors.New("retention account is forfeited")

	// ErrConcurrentModification is returned when optimistic locking detects a conflict.
	ErrConcurrentModification = errors.New("concurrent modification detected")

	// ErrDuplicateReleaseNumber is returned when a release number is reused.
	ErrDuplicateReleaseNumber = errors.New("duplicate release number")

	// ErrDuplicateID is returned when an id is already taken.
	ErrDuplicateID = errors.New("duplicate id")

	// ErrUnsortedTiers is returned when tiers are not strictly ascending by threshold.
	ErrUnsortedTiers = errors.New("tiers must be sorted ascending by threshold without overlap")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// ValidationError wraps a failed ValidationResult.
type ValidationError struct {
	Subject string // "account", "policy"
	Errors  []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Subject, strings.Join(e.Errors, "; "))
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// ReleaseRejectedError provides the reasons a release was refused.
type ReleaseRejectedError struct {
	AccountID AccountID
	Errors    []string
}

func (e *ReleaseRejectedError) Error() string {
	return fmt.Sprintf("release rejected for account %s: %s", e.AccountID, strings.Join(e.Errors, "; "))
}

func (e *ReleaseRejectedError) Unwrap() error { return ErrReleaseRejected }

// AccountHasReleasesError reports how many releases block a deletion.
type AccountHasReleasesError struct {
	AccountID AccountID
	Releases  int
}

func (e *AccountHasReleasesError) Error() string {
	return fmt.Sprintf("cannot delete account %s: %d release(s) recorded", e.AccountID, e.Releases)
}

func (e *AccountHasReleasesError) Unwrap() error { return ErrAccountHasReleases }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsRetryable returns true if the error might succeed on retry.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrConcurrentModification)
}

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrReleaseRejected) ||
		errors.Is(err, ErrAccountForfeited) ||
		errors.Is(err, ErrPolicyInactive) ||
		errors.Is(err, ErrUnsortedTiers)
}

// IsConflict returns true if the request clashes with existing state.
func IsConflict(err error) bool {
	return errors.Is(err, ErrAccountHasReleases) ||
		errors.Is(err, ErrDuplicateReleaseNumber) ||
		errors.Is(err, ErrDuplicateID) ||
		errors.Is(err, ErrConcurrentModification)
}

// IsNotFound returns true if the error indicates a missing resource.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrAccountNotFound) ||
		errors.Is(err, ErrPolicyNotFound)
}
