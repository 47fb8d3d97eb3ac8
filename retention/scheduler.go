/*
scheduler.go - Release date scheduling

PURPOSE:
  Turns a base date and a release type into the date retention becomes
  releasable, and expands multi-tranche policies into a dated schedule.

RULES:
  ON_COMPLETION   base date, no offset
  TIME_BASED      base + monthsAfter months + daysAfter days
  WARRANTY_END    base + monthsAfter months (12 when unspecified)
  anything else   base + 90 days (MILESTONE_BASED lands here: the engine
                  does not know milestone dates, so it gets a provisional one)

TRANCHES:
  With AnchorPrevious (default) each tranche's base date is the previous
  tranche's release date, so offsets compound:
    [{50%, TIME_BASED, 30}, {50%, TIME_BASED, 60}] from 2024-01-01
    -> 2024-01-31, then 2024-03-31 (not 2024-03-01)
  AnchorOrigin offsets every tranche from the retention date instead.

DUE / OVERDUE:
  due      asOf in [scheduled, scheduled + grace]
  overdue  asOf >  scheduled + grace
*/
package retention

import (
	"github.com/warp/retention-engine/generic"
)

const (
	// DefaultWarrantyMonths applies when WARRANTY_END has no period.
	DefaultWarrantyMonths = 12
	// FallbackReleaseDays applies to release types without a rule.
	FallbackReleaseDays = 90
)

// =============================================================================
// SINGLE RELEASE DATE
// =============================================================================

// CalculateReleaseDate applies the release rule for releaseType to baseDate.
func CalculateReleaseDate(baseDate generic.TimePoint, releaseType ReleaseType, daysAfter, monthsAfter int) generic.TimePoint {
	switch releaseType {
	case ReleaseOnCompletion:
		return baseDate
	case ReleaseTimeBased:
		return baseDate.AddMonths(monthsAfter).AddDays(daysAfter)
	case ReleaseWarrantyEnd:
		if monthsAfter <= 0 {
			monthsAfter = DefaultWarrantyMonths
		}
		return baseDate.AddMonths(monthsAfter)
	default:
		return baseDate.AddDays(FallbackReleaseDays)
	}
}

// releaseOffsets picks which period feeds the rule for a release type.
func releaseOffsets(releaseType ReleaseType, defectLiabilityDays, warrantyMonths int) (days, months int) {
	switch releaseType {
	case ReleaseTimeBased:
		return defectLiabilityDays, 0
	case ReleaseWarrantyEnd:
		return 0, warrantyMonths
	default:
		return 0, 0
	}
}

// ScheduleAccount returns the scheduled release date for an account's own terms.
func ScheduleAccount(a Account) generic.TimePoint {
	days, months := releaseOffsets(a.ReleaseType, a.DefectLiabilityPeriod, a.WarrantyPeriod)
	return CalculateReleaseDate(a.RetentionDate, a.ReleaseType, days, months)
}

// =============================================================================
// MULTI-TRANCHE SCHEDULE
// =============================================================================

// GenerateReleaseSchedule expands policy into dated tranches for account.
//
// Without a tranche list the result is one 100% tranche for the policy's
// release type. A policy with no release type falls back to the account's
// own terms. WARRANTY_END tranches use the account's warranty period when
// it has one, else the policy's.
func GenerateReleaseSchedule(account Account, policy Policy) []ScheduledTranche {
	if len(policy.ReleaseSchedule) == 0 {
		releaseType := policy.ReleaseType
		dlp, warranty := policy.DefectLiabilityPeriod, policy.WarrantyPeriod
		if releaseType == "" {
			releaseType = account.ReleaseType
			dlp, warranty = account.DefectLiabilityPeriod, account.WarrantyPeriod
		}
		days, months := releaseOffsets(releaseType, dlp, warranty)
		return []ScheduledTranche{{
			Sequence:    1,
			Percentage:  generic.Hundred,
			Amount:      account.RetentionAmount,
			EventType:   releaseType,
			ReleaseDate: CalculateReleaseDate(account.RetentionDate, releaseType, days, months),
		}}
	}

	warranty := account.WarrantyPeriod
	if warranty == 0 {
		warranty = policy.WarrantyPeriod
	}

	schedule := make([]ScheduledTranche, 0, len(policy.ReleaseSchedule))
	base := account.RetentionDate
	remaining := account.RetentionAmount
	last := len(policy.ReleaseSchedule) - 1
	for i, tranche := range policy.ReleaseSchedule {
		months := 0
		if tranche.EventType == ReleaseWarrantyEnd {
			months = warranty
		}
		date := CalculateReleaseDate(base, tranche.EventType, tranche.DaysAfter, months)

		// The last tranche takes what rounding left over so the schedule
		// sums to the retention exactly.
		amount := remaining
		if i < last {
			amount = generic.Round2(generic.PercentOf(account.RetentionAmount, tranche.Percentage))
			remaining = remaining.Sub(amount)
		}

		schedule = append(schedule, ScheduledTranche{
			Sequence:    i + 1,
			Percentage:  tranche.Percentage,
			Amount:      amount,
			EventType:   tranche.EventType,
			ReleaseDate: date,
		})

		if policy.anchor() == AnchorPrevious {
			base = date
		}
	}
	return schedule
}

// =============================================================================
// DUE / OVERDUE CLASSIFICATION
// =============================================================================

// IsReleaseDue reports whether asOf falls in [scheduled, scheduled+grace].
func IsReleaseDue(scheduledDate generic.TimePoint, gracePeriodDays int, asOf generic.TimePoint) bool {
	if scheduledDate.IsZero() {
		return false
	}
	return asOf.AfterOrEqual(scheduledDate) && asOf.BeforeOrEqual(scheduledDate.AddDays(gracePeriodDays))
}

// IsReleaseOverdue reports whether asOf is past scheduled+grace.
func IsReleaseOverdue(scheduledDate generic.TimePoint, gracePeriodDays int, asOf generic.TimePoint) bool {
	if scheduledDate.IsZero() {
		return false
	}
	return asOf.After(scheduledDate.AddDays(gracePeriodDays))
}

// GetDaysUntilRelease is negative once the scheduled date has passed.
func GetDaysUntilRelease(scheduledDate, asOf generic.TimePoint) int {
	return generic.DaysBetween(asOf, scheduledDate)
}
