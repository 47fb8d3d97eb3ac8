package retention

import (
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/warp/retention-engine/generic"
)

// MaxRetentionPercentage is the business cap on retention. Inputs above it
// are rejected, never clamped.
var MaxRetentionPercentage = decimal.NewFromInt(20)

// =============================================================================
// POLICY
// =============================================================================

// ValidateRetentionPolicy checks a policy template before it is stored or applied.
func ValidateRetentionPolicy(p Policy) ValidationResult {
	var errs []string

	if p.Name == "" {
		errs = append(errs, "Policy name is required")
	}

	if p.IsTiered() {
		errs = append(errs, ValidateTiers(p.Tiers)...)
	} else {
		errs = append(errs, validatePercentage(p.RetentionPercentage)...)
	}

	switch {
	case p.ReleaseType == "":
		errs = append(errs, "Release type is required")
	case !p.ReleaseType.IsValid():
		errs = append(errs, fmt.Sprintf("Unknown release type %q", p.ReleaseType))
	case p.ReleaseType == ReleaseTimeBased && len(p.ReleaseSchedule) == 0 && p.DefectLiabilityPeriod <= 0:
		errs = append(errs, "Defect liability period must be greater than 0 days for time-based release")
	}

	if p.DefectLiabilityPeriod < 0 {
		errs = append(errs, "Defect liability period cannot be negative")
	}
	if p.WarrantyPeriod < 0 {
		errs = append(errs, "Warranty period cannot be negative")
	}
	if p.ScheduleAnchor != "" && p.ScheduleAnchor != AnchorPrevious && p.ScheduleAnchor != AnchorOrigin {
		errs = append(errs, fmt.Sprintf("Unknown schedule anchor %q", p.ScheduleAnchor))
	}

	errs = append(errs, validateTranches(p.ReleaseSchedule)...)

	return newValidationResult(errs)
}

func validatePercentage(pct decimal.Decimal) []string {
	switch {
	case pct.IsZero():
		return []string{"Retention percentage is required"}
	case pct.IsNegative():
		return []string{"Retention percentage must be greater than 0"}
	case pct.GreaterThan(MaxRetentionPercentage):
		return []string{fmt.Sprintf("Retention percentage cannot exceed %s%%", MaxRetentionPercentage)}
	}
	return nil
}

// ValidateTiers checks progressive brackets: strictly ascending, non-negative
// thresholds, every percentage within (0, 20].
func ValidateTiers(tiers []Tier) []string {
	var errs []string
	if checkTierOrder(tiers) != nil {
		errs = append(errs, "Tiers must be sorted by ascending threshold and must not overlap")
	}
	for i, t := range tiers {
		if t.Threshold.IsNegative() {
			errs = append(errs, fmt.Sprintf("Tier %d: threshold cannot be negative", i+1))
		}
		for _, msg := range validatePercentage(t.Percentage) {
			errs = append(errs, fmt.Sprintf("Tier %d: %s", i+1, msg))
		}
	}
	return errs
}

func validateTranches(tranches []Tranche) []string {
	if len(tranches) == 0 {
		return nil
	}
	var errs []string
	total := decimal.Zero
	for i, t := range tranches {
		if !t.Percentage.IsPositive() {
			errs = append(errs, fmt.Sprintf("Tranche %d: percentage must be greater than 0", i+1))
		}
		if !t.EventType.IsValid() {
			errs = append(errs, fmt.Sprintf("Tranche %d: unknown event type %q", i+1, t.EventType))
		}
		if t.DaysAfter < 0 {
			errs = append(errs, fmt.Sprintf("Tranche %d: days after cannot be negative", i+1))
		}
		total = total.Add(t.Percentage)
	}
	if !total.Equal(generic.Hundred) {
		errs = append(errs, fmt.Sprintf("Tranche percentages must total 100%%, got %s%%", total))
	}
	return errs
}

// =============================================================================
// ACCOUNT
// =============================================================================

// ValidateAccountInput checks creation input. asOf is "today": retention
// cannot be dated in the future.
func ValidateAccountInput(in AccountInput, asOf generic.TimePoint) ValidationResult {
	var errs []string

	if in.ProjectID == "" {
		errs = append(errs, "Project is required")
	}
	if in.PartyID == "" {
		errs = append(errs, "Party is required")
	}
	if in.InvoiceAmount.IsNegative() {
		errs = append(errs, "Invoice amount cannot be negative")
	}

	if len(in.Tiers) > 0 {
		errs = append(errs, ValidateTiers(in.Tiers)...)
	} else {
		errs = append(errs, validatePercentage(in.RetentionPercentage)...)
	}

	switch {
	case in.RetentionDate.IsZero():
		errs = append(errs, "Retention date is required")
	case in.RetentionDate.After(asOf):
		errs = append(errs, "Retention date cannot be in the future")
	}

	switch {
	case in.ReleaseType == "":
		errs = append(errs, "Release type is required")
	case !in.ReleaseType.IsValid():
		errs = append(errs, fmt.Sprintf("Unknown release type %q", in.ReleaseType))
	case in.ReleaseType == ReleaseTimeBased && in.DefectLiabilityPeriod <= 0:
		errs = append(errs, "Defect liability period must be greater than 0 days for time-based release")
	}
	if in.WarrantyPeriod < 0 {
		errs = append(errs, "Warranty period cannot be negative")
	}

	if !in.RetentionType.IsValid() {
		errs = append(errs, "Retention type must be RECEIVABLE or PAYABLE")
	}

	return newValidationResult(errs)
}

// =============================================================================
// ACCOUNT CREATION
// =============================================================================

// ResolveTerms fills zero-valued terms of in from its policy, if any.
func ResolveTerms(in AccountInput) AccountInput {
	p := in.Policy
	if p == nil {
		return in
	}
	if in.RetentionPercentage.IsZero() && len(in.Tiers) == 0 {
		if p.IsTiered() {
			in.Tiers = append([]Tier(nil), p.Tiers...)
		} else {
			in.RetentionPercentage = p.RetentionPercentage
		}
	}
	if in.ReleaseType == "" {
		in.ReleaseType = p.ReleaseType
	}
	if in.DefectLiabilityPeriod == 0 {
		in.DefectLiabilityPeriod = p.DefectLiabilityPeriod
	}
	if in.WarrantyPeriod == 0 {
		in.WarrantyPeriod = p.WarrantyPeriod
	}
	return in
}

// NewAccount validates in and builds a HELD account with its retention
// amount snapshotted and its release date scheduled. The returned account is
// only meaningful when the result is valid.
func NewAccount(in AccountInput, asOf generic.TimePoint) (Account, ValidationResult) {
	in = ResolveTerms(in)
	result := ValidateAccountInput(in, asOf)
	if !result.Valid {
		return Account{}, result
	}

	percentage := in.RetentionPercentage
	amount := CalculateRetentionAmount(in.InvoiceAmount, percentage)
	if len(in.Tiers) > 0 {
		// Tier order was validated above.
		amount, _ = CalculateTieredRetention(in.InvoiceAmount, in.Tiers)
		percentage = EffectivePercentage(amount, in.InvoiceAmount)
		if percentage.IsZero() {
			// Nothing retained yet: record the first bracket's rate.
			percentage = in.Tiers[0].Percentage
		}
	}

	account := Account{
		ID:                    in.ID,
		ProjectID:             in.ProjectID,
		PartyID:               in.PartyID,
		InvoiceID:             in.InvoiceID,
		InvoiceNumber:         in.InvoiceNumber,
		InvoiceAmount:         in.InvoiceAmount,
		RetentionPercentage:   percentage,
		RetentionAmount:       amount,
		RetentionDate:         in.RetentionDate,
		ReleaseType:           in.ReleaseType,
		DefectLiabilityPeriod: in.DefectLiabilityPeriod,
		WarrantyPeriod:        in.WarrantyPeriod,
		RetentionType:         in.RetentionType,
		Status:                StatusHeld,
		ReleasedAmount:        decimal.Zero,
		BalanceAmount:         amount,
		Notes:                 in.Notes,
	}
	if in.Policy != nil {
		account.PolicyID = in.Policy.ID
	}
	account.ScheduledReleaseDate = ScheduleAccount(account)

	return account, result
}
