/*
aging.go - Aging buckets, portfolio summary and alerts

PURPOSE:
  Reporting over a whole collection of accounts. Nothing here mutates or
  persists; every call is a single pass over the slice it is given.

AGING:
  Only accounts with a positive balance carry risk. Forfeited accounts are
  left out too: their balance is never going to be released.
    asOf > ScheduledReleaseDate  -> Overdue (regardless of age)
    age <= 30                    -> Current
    age <= 60                    -> ThirtyDays
    age <= 90                    -> SixtyDays
    otherwise                    -> NinetyDays
  where age = days from RetentionDate to asOf.

SUMMARY:
  Totals partitioned by RetentionType and by Status.

ALERTS:
  Derived fresh on every call, never the source of truth:
    OVERDUE            asOf > scheduled + grace
    RELEASE_DUE        asOf in [scheduled, scheduled + grace]
    WARRANTY_EXPIRING  WARRANTY_END account within the notice window
*/
package retention

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
	"github.com/warp/retention-engine/generic"
)

// =============================================================================
// AGING
// =============================================================================

// AgingBucket counts accounts and their outstanding balance.
type AgingBucket struct {
	Count  int
	Amount decimal.Decimal
}

func (b AgingBucket) add(amount decimal.Decimal) AgingBucket {
	return AgingBucket{Count: b.Count + 1, Amount: b.Amount.Add(amount)}
}

// Aging is the bucketed outstanding balance.
type Aging struct {
	Current    AgingBucket // 0-30 days
	ThirtyDays AgingBucket // 31-60 days
	SixtyDays  AgingBucket // 61-90 days
	NinetyDays AgingBucket // over 90 days
	Overdue    AgingBucket // past the scheduled release date
	Total      AgingBucket
}

// GetRetentionAging buckets outstanding balances by age as of asOf.
func GetRetentionAging(accounts []Account, asOf generic.TimePoint) Aging {
	var aging Aging
	for _, a := range accounts {
		if !a.BalanceAmount.IsPositive() || a.Status == StatusForfeited {
			continue
		}

		balance := a.BalanceAmount
		aging.Total = aging.Total.add(balance)

		if !a.ScheduledReleaseDate.IsZero() && asOf.After(a.ScheduledReleaseDate) {
			aging.Overdue = aging.Overdue.add(balance)
			continue
		}

		switch daysSince := generic.DaysBetween(a.RetentionDate, asOf); {
		case daysSince <= 30:
			aging.Current = aging.Current.add(balance)
		case daysSince <= 60:
			aging.ThirtyDays = aging.ThirtyDays.add(balance)
		case daysSince <= 90:
			aging.SixtyDays = aging.SixtyDays.add(balance)
		default:
			aging.NinetyDays = aging.NinetyDays.add(balance)
		}
	}
	return aging
}

// =============================================================================
// SUMMARY
// =============================================================================

// Totals sums one partition of accounts.
type Totals struct {
	Count    int
	Retained decimal.Decimal
	Released decimal.Decimal
	Balance  decimal.Decimal
}

func (t Totals) add(a Account) Totals {
	return Totals{
		Count:    t.Count + 1,
		Retained: t.Retained.Add(a.RetentionAmount),
		Released: t.Released.Add(a.ReleasedAmount),
		Balance:  t.Balance.Add(a.BalanceAmount),
	}
}

// Summary is the portfolio view of retention.
type Summary struct {
	TotalHeld     decimal.Decimal
	TotalReleased decimal.Decimal
	TotalBalance  decimal.Decimal
	Receivables   Totals
	Payables      Totals
	ByStatus      map[Status]Totals
}

// CalculateRetentionSummary totals accounts in a single pass.
func CalculateRetentionSummary(accounts []Account) Summary {
	s := Summary{ByStatus: make(map[Status]Totals, len(AllStatuses))}
	for _, st := range AllStatuses {
		s.ByStatus[st] = Totals{}
	}

	for _, a := range accounts {
		s.TotalHeld = s.TotalHeld.Add(a.RetentionAmount)
		s.TotalReleased = s.TotalReleased.Add(a.ReleasedAmount)
		s.TotalBalance = s.TotalBalance.Add(a.BalanceAmount)

		switch a.RetentionType {
		case Receivable:
			s.Receivables = s.Receivables.add(a)
		case Payable:
			s.Payables = s.Payables.add(a)
		}

		s.ByStatus[a.Status] = s.ByStatus[a.Status].add(a)
	}
	return s
}

// =============================================================================
// ALERTS
// =============================================================================

// AlertOptions tunes alert derivation.
type AlertOptions struct {
	GracePeriodDays    int
	WarrantyNoticeDays int
}

// DeriveAlerts returns the alerts that apply as of asOf, ordered by
// scheduled release date.
func DeriveAlerts(accounts []Account, asOf generic.TimePoint, opts AlertOptions) []Alert {
	var alerts []Alert
	for _, a := range accounts {
		if !a.BalanceAmount.IsPositive() || a.Status == StatusForfeited || a.ScheduledReleaseDate.IsZero() {
			continue
		}

		days := GetDaysUntilRelease(a.ScheduledReleaseDate, asOf)
		var alertType AlertType
		var msg string
		switch {
		case IsReleaseOverdue(a.ScheduledReleaseDate, opts.GracePeriodDays, asOf):
			alertType = AlertOverdue
			msg = fmt.Sprintf("Retention of %s overdue by %d day(s)", generic.FormatCurrency(a.BalanceAmount), -days)
		case IsReleaseDue(a.ScheduledReleaseDate, opts.GracePeriodDays, asOf):
			alertType = AlertReleaseDue
			msg = fmt.Sprintf("Retention of %s is due for release", generic.FormatCurrency(a.BalanceAmount))
		case a.ReleaseType == ReleaseWarrantyEnd && days > 0 && days <= opts.WarrantyNoticeDays:
			alertType = AlertWarrantyExpiring
			msg = fmt.Sprintf("Warranty ends in %d day(s); %s becomes releasable", days, generic.FormatCurrency(a.BalanceAmount))
		default:
			continue
		}

		alerts = append(alerts, Alert{
			AccountID:            a.ID,
			ProjectID:            a.ProjectID,
			PartyID:              a.PartyID,
			RetentionType:        a.RetentionType,
			AlertType:            alertType,
			AlertDate:            asOf,
			ScheduledReleaseDate: a.ScheduledReleaseDate,
			DaysUntilRelease:     days,
			BalanceAmount:        a.BalanceAmount,
			Status:               AlertActive,
			Message:              msg,
		})
	}

	sort.SliceStable(alerts, func(i, j int) bool {
		return alerts[i].ScheduledReleaseDate.Before(alerts[j].ScheduledReleaseDate)
	})
	return alerts
}
