/*
release.go - Release validation, application and numbering

PURPOSE:
  A release moves money out of an account's balance. The one invariant that
  must never break: no account goes net-negative. Validation therefore
  recomputes the balance from the release list it is handed instead of
  trusting Account.BalanceAmount.

RECOMPUTATION:
  ReleasedAmount = sum of ReleaseAmount over the account's releases
  BalanceAmount  = RetentionAmount - ReleasedAmount
  Status         = ResolveStatus(...)
  Sums, not running deltas: replaying the same releases in any order yields
  the same account.

NUMBERING:
  REL-YYYYMM-NNN, sequence restarts every calendar month and is max+1 of the
  existing numbers carrying the current month's prefix, across all accounts.

SEE ALSO:
  - status.go: status derivation
  - service.go: wraps validate + persist in a store transaction
*/
package retention

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/warp/retention-engine/generic"
)

// =============================================================================
// BALANCE FROM RELEASES
// =============================================================================

// ReleasedTotal sums the releases that belong to accountID.
func ReleasedTotal(accountID AccountID, releases []Release) decimal.Decimal {
	total := decimal.Zero
	for _, r := range releases {
		if r.RetentionAccountID == accountID {
			total = total.Add(r.ReleaseAmount)
		}
	}
	return total
}

// CurrentBalance computes the account's balance from its releases.
func CurrentBalance(account Account, releases []Release) decimal.Decimal {
	return CalculateBalanceAmount(account.RetentionAmount, ReleasedTotal(account.ID, releases))
}

// Recompute returns account with ReleasedAmount, BalanceAmount and Status
// derived from releases.
func Recompute(account Account, releases []Release) Account {
	released := ReleasedTotal(account.ID, releases)
	account.ReleasedAmount = released
	account.BalanceAmount = CalculateBalanceAmount(account.RetentionAmount, released)
	account.Status = ResolveStatus(account.Status, account.RetentionAmount, released, account.BalanceAmount)
	return account
}

// =============================================================================
// VALIDATION
// =============================================================================

// ValidateRetentionRelease checks release against account and the releases
// already recorded for it.
func ValidateRetentionRelease(release Release, account Account, existing []Release) ValidationResult {
	var errs []string

	if !release.ReleaseAmount.IsPositive() {
		errs = append(errs, "Release amount must be greater than 0")
	}
	if release.ReleaseDate.IsZero() {
		errs = append(errs, "Release date is required")
	}
	if release.RetentionAccountID != "" && release.RetentionAccountID != account.ID {
		errs = append(errs, fmt.Sprintf("Release belongs to account %s, not %s", release.RetentionAccountID, account.ID))
	}
	if account.Status == StatusForfeited {
		errs = append(errs, "Retention is forfeited; no further releases are allowed")
	}
	if release.ReleaseType != "" && !release.ReleaseType.IsValid() {
		errs = append(errs, fmt.Sprintf("Unknown release type %q", release.ReleaseType))
	}

	balance := CurrentBalance(account, existing)
	if release.ReleaseAmount.GreaterThan(balance) {
		errs = append(errs, fmt.Sprintf("Release amount %s exceeds available balance %s",
			generic.FormatCurrency(release.ReleaseAmount), generic.FormatCurrency(balance)))
	}

	return newValidationResult(errs)
}

// =============================================================================
// APPLICATION
// =============================================================================

// ApplyRelease validates release and, if valid, returns the recomputed
// account together with the extended release list. On failure the account
// and release list come back unchanged.
func ApplyRelease(account Account, existing []Release, release Release) (Account, []Release, ValidationResult) {
	result := ValidateRetentionRelease(release, account, existing)
	if !result.Valid {
		return account, existing, result
	}

	release.RetentionAccountID = account.ID
	if release.ReleaseType == "" {
		release.ReleaseType = account.ReleaseType
	}

	releases := make([]Release, 0, len(existing)+1)
	releases = append(releases, existing...)
	releases = append(releases, release)

	return Recompute(account, releases), releases, result
}

// Forfeit moves account to the terminal FORFEITED state. Amounts are kept as
// they were: the withheld balance is simply never released.
func Forfeit(account Account, asOf generic.TimePoint, reason string) Account {
	account.Status = StatusForfeited
	account.ForfeitedAt = asOf
	account.ForfeitReason = reason
	return account
}

// =============================================================================
// RELEASE NUMBERING
// =============================================================================

// ReleaseNumberPrefix returns "REL-YYYYMM-" for the month of asOf.
func ReleaseNumberPrefix(asOf generic.TimePoint) string {
	return "REL-" + asOf.MonthKey() + "-"
}

// GenerateReleaseNumber returns the next number for the month of asOf given
// every existing release number. Numbers from other months and malformed
// numbers are ignored.
func GenerateReleaseNumber(existing []string, asOf generic.TimePoint) string {
	prefix := ReleaseNumberPrefix(asOf)
	last := 0
	for _, n := range existing {
		if !strings.HasPrefix(n, prefix) {
			continue
		}
		seq, err := strconv.Atoi(n[len(prefix):])
		if err != nil {
			continue
		}
		if seq > last {
			last = seq
		}
	}
	return fmt.Sprintf("%s%03d", prefix, last+1)
}

// ReleaseNumbers extracts the numbers of releases.
func ReleaseNumbers(releases []Release) []string {
	numbers := make([]string, 0, len(releases))
	for _, r := range releases {
		numbers = append(numbers, r.ReleaseNumber)
	}
	return numbers
}
