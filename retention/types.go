/*
Package retention implements retention accounting: withholding a percentage
of a contractor's invoice as security until a defect-liability or warranty
period elapses, then releasing it in whole or in part.

PURPOSE:
  The engine is pure computation over value objects. Callers build an
  Account from invoice data, the calculator fills in RetentionAmount, the
  scheduler fills in ScheduledReleaseDate. When a release happens the caller
  builds a Release and the status engine recomputes ReleasedAmount,
  BalanceAmount and Status. Reporting (aging, summary, alerts) runs over the
  full collection independently.

KEY CONCEPTS IN THIS FILE (types.go):
  - Account:  one withholding record tied to a single invoice/contract line
  - Release:  one disbursement against exactly one Account
  - Policy:   reusable retention template (flat or tiered, optional tranches)
  - Alert:    derived notice (due, overdue, warranty expiring), never stored
                as the source of truth

LIFECYCLE:
  HELD -> PARTIALLY_RELEASED -> FULLY_RELEASED, or FORFEITED from any state.
  Status is derived from amounts (status.go) except FORFEITED, which is an
  explicit, sticky decision (Forfeit in release.go).

CONCURRENCY:
  Functions in this package are synchronous and keep no state between calls.
  They cannot detect a lost update: two releases validated against the same
  balance will both pass. Multi-writer callers must wrap
  "read balance -> validate -> persist release -> recompute" in a store
  transaction or optimistic version check. Service (service.go) does this
  with TxStore.WithTx plus Account.Version.

SEE ALSO:
  - calculator.go: retention amount computation
  - scheduler.go:  release dates and tranche schedules
  - release.go:    release validation and application
  - aging.go:      aging buckets and summaries
*/
package retention

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/retention-engine/generic"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type AccountID string
type ReleaseID string
type PolicyID string

// =============================================================================
// TAGGED VARIANTS
// =============================================================================

// ReleaseType selects the rule used to schedule a release.
type ReleaseType string

const (
	ReleaseOnCompletion   ReleaseType = "ON_COMPLETION"
	ReleaseTimeBased      ReleaseType = "TIME_BASED"
	ReleaseMilestoneBased ReleaseType = "MILESTONE_BASED"
	ReleaseWarrantyEnd    ReleaseType = "WARRANTY_END"
)

func (r ReleaseType) IsValid() bool {
	switch r {
	case ReleaseOnCompletion, ReleaseTimeBased, ReleaseMilestoneBased, ReleaseWarrantyEnd:
		return true
	}
	return false
}

// Status is the lifecycle state of an Account.
type Status string

const (
	StatusHeld              Status = "HELD"
	StatusPartiallyReleased Status = "PARTIALLY_RELEASED"
	StatusFullyReleased     Status = "FULLY_RELEASED"
	StatusForfeited         Status = "FORFEITED"
)

// AllStatuses in lifecycle order.
var AllStatuses = []Status{StatusHeld, StatusPartiallyReleased, StatusFullyReleased, StatusForfeited}

func (s Status) IsValid() bool {
	for _, known := range AllStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// RetentionType says who holds the money. It only affects reporting.
type RetentionType string

const (
	Receivable RetentionType = "RECEIVABLE" // owed to us by a customer
	Payable    RetentionType = "PAYABLE"    // owed by us to a supplier
)

func (t RetentionType) IsValid() bool { return t == Receivable || t == Payable }

// AlertType classifies a derived notice.
type AlertType string

const (
	AlertReleaseDue       AlertType = "RELEASE_DUE"
	AlertOverdue          AlertType = "OVERDUE"
	AlertWarrantyExpiring AlertType = "WARRANTY_EXPIRING"
)

type AlertStatus string

const (
	AlertActive AlertStatus = "ACTIVE"
)

// ScheduleAnchor decides the base date of each tranche after the first.
type ScheduleAnchor string

const (
	// AnchorPrevious chains tranches: each offset starts at the previous
	// tranche's release date. This is the default.
	AnchorPrevious ScheduleAnchor = "previous"
	// AnchorOrigin offsets every tranche from the retention date.
	AnchorOrigin ScheduleAnchor = "origin"
)

// =============================================================================
// ACCOUNT
// =============================================================================

// Account is one withholding record tied to a single invoice/contract line.
//
// RetentionAmount is a snapshot frozen at creation. It is never recomputed
// from RetentionPercentage afterwards. Tiered accounts carry their effective
// rate, or the first bracket's rate when nothing was retained.
type Account struct {
	ID            AccountID
	ProjectID     string
	PartyID       string
	InvoiceID     string
	InvoiceNumber string
	PolicyID      PolicyID // optional template the terms came from

	InvoiceAmount       decimal.Decimal
	RetentionPercentage decimal.Decimal
	RetentionAmount     decimal.Decimal
	RetentionDate       generic.TimePoint

	ReleaseType           ReleaseType
	DefectLiabilityPeriod int // days, TIME_BASED
	WarrantyPeriod        int // months, WARRANTY_END
	ScheduledReleaseDate  generic.TimePoint

	RetentionType RetentionType
	Status        Status

	ReleasedAmount decimal.Decimal
	BalanceAmount  decimal.Decimal

	ForfeitedAt   generic.TimePoint
	ForfeitReason string
	Notes         string

	// Version is bumped on every persisted update (optimistic locking).
	Version   int
	CreatedAt time.Time
	UpdatedAt time.Time
}

// AccountInput is what a caller supplies to create an Account.
// Zero-valued terms are filled from Policy when one is given.
type AccountInput struct {
	ID            AccountID
	ProjectID     string
	PartyID       string
	InvoiceID     string
	InvoiceNumber string

	InvoiceAmount       decimal.Decimal
	RetentionPercentage decimal.Decimal
	Tiers               []Tier // progressive retention instead of a flat percentage
	RetentionDate       generic.TimePoint

	ReleaseType           ReleaseType
	DefectLiabilityPeriod int
	WarrantyPeriod        int
	RetentionType         RetentionType
	Notes                 string

	Policy *Policy
}

// =============================================================================
// RELEASE
// =============================================================================

// Release is one disbursement against an Account.
type Release struct {
	ID                 ReleaseID
	RetentionAccountID AccountID
	ReleaseNumber      string // REL-YYYYMM-NNN
	ReleaseAmount      decimal.Decimal
	ReleaseDate        generic.TimePoint
	ReleaseType        ReleaseType // which policy event triggered this tranche
	Notes              string
	CreatedAt          time.Time
}

// =============================================================================
// POLICY
// =============================================================================

// Tier is one progressive bracket: Percentage applies to the slice of the
// total between Threshold and the next tier's Threshold.
type Tier struct {
	Threshold  decimal.Decimal
	Percentage decimal.Decimal
}

// Tranche is one step of a multi-stage release schedule.
type Tranche struct {
	Percentage decimal.Decimal
	EventType  ReleaseType
	DaysAfter  int
}

// Policy is a reusable retention template.
type Policy struct {
	ID                    PolicyID
	Name                  string
	Description           string
	RetentionPercentage   decimal.Decimal
	Tiers                 []Tier
	ReleaseType           ReleaseType
	DefectLiabilityPeriod int
	WarrantyPeriod        int
	ReleaseSchedule       []Tranche
	ScheduleAnchor        ScheduleAnchor
	IsDefault             bool
	IsActive              bool
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

func (p Policy) IsTiered() bool { return len(p.Tiers) > 0 }

func (p Policy) anchor() ScheduleAnchor {
	if p.ScheduleAnchor == AnchorOrigin {
		return AnchorOrigin
	}
	return AnchorPrevious
}

// =============================================================================
// DERIVED VALUES
// =============================================================================

// ScheduledTranche is one computed step of a release schedule.
type ScheduledTranche struct {
	Sequence    int
	Percentage  decimal.Decimal
	Amount      decimal.Decimal
	EventType   ReleaseType
	ReleaseDate generic.TimePoint
}

// Alert is a recomputed notice about an Account.
type Alert struct {
	AccountID            AccountID
	ProjectID            string
	PartyID              string
	RetentionType        RetentionType
	AlertType            AlertType
	AlertDate            generic.TimePoint
	ScheduledReleaseDate generic.TimePoint
	DaysUntilRelease     int
	BalanceAmount        decimal.Decimal
	Status               AlertStatus
	Message              string
}

// ValidationResult collects human-readable validation failures.
// Validation never panics or returns an error.
type ValidationResult struct {
	Valid  bool
	Errors []string
}

func newValidationResult(errs []string) ValidationResult {
	return ValidationResult{Valid: len(errs) == 0, Errors: errs}
}
