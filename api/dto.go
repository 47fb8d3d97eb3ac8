/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. The domain types in
  retention/ carry no JSON tags; these types are the external contract.

NAMING CONVENTION:
  - *DTO:      Response types returned to clients
  - *Request:  Request body types from clients
  - *Response: Complex response wrappers

AMOUNTS:
  Request amounts are generic.FlexAmount: numbers, numeric strings and
  "1,000,000" all decode, anything else decodes to zero and is caught by
  validation. Response amounts are decimal strings with 2 places.

DATES:
  generic.TimePoint, "YYYY-MM-DD" on the wire.

SEE ALSO:
  - handlers.go: Uses these types
  - factory/policy.go: PolicyJSON, which doubles as the policy DTO
*/
package api

import (
	"github.com/shopspring/decimal"

	"github.com/warp/retention-engine/generic"
	"github.com/warp/retention-engine/retention"
)

// =============================================================================
// ACCOUNTS
// =============================================================================

// AccountDTO represents a retention account in API responses.
type AccountDTO struct {
	ID                    string            `json:"id"`
	ProjectID             string            `json:"project_id"`
	PartyID               string            `json:"party_id"`
	InvoiceID             string            `json:"invoice_id,omitempty"`
	InvoiceNumber         string            `json:"invoice_number,omitempty"`
	PolicyID              string            `json:"policy_id,omitempty"`
	InvoiceAmount         string            `json:"invoice_amount"`
	RetentionPercentage   string            `json:"retention_percentage"`
	RetentionAmount       string            `json:"retention_amount"`
	RetentionDate         generic.TimePoint `json:"retention_date"`
	ReleaseType           string            `json:"release_type"`
	DefectLiabilityPeriod int               `json:"defect_liability_period,omitempty"`
	WarrantyPeriod        int               `json:"warranty_period,omitempty"`
	ScheduledReleaseDate  generic.TimePoint `json:"scheduled_release_date"`
	RetentionType         string            `json:"retention_type"`
	Status                string            `json:"status"`
	ReleasedAmount        string            `json:"released_amount"`
	BalanceAmount         string            `json:"balance_amount"`
	ReleasePercentage     string            `json:"release_percentage"`
	ForfeitedAt           generic.TimePoint `json:"forfeited_at,omitempty"`
	ForfeitReason         string            `json:"forfeit_reason,omitempty"`
	Notes                 string            `json:"notes,omitempty"`
	Version               int               `json:"version"`
}

// CreateAccountRequest is the request to open a retention account.
// Either retention_percentage, tiers or policy_id supplies the terms.
type CreateAccountRequest struct {
	ID                    string             `json:"id,omitempty"`
	ProjectID             string             `json:"project_id"`
	PartyID               string             `json:"party_id"`
	InvoiceID             string             `json:"invoice_id,omitempty"`
	InvoiceNumber         string             `json:"invoice_number,omitempty"`
	PolicyID              string             `json:"policy_id,omitempty"`
	InvoiceAmount         generic.FlexAmount `json:"invoice_amount"`
	RetentionPercentage   generic.FlexAmount `json:"retention_percentage"`
	Tiers                 []TierDTO          `json:"tiers,omitempty"`
	RetentionDate         generic.TimePoint  `json:"retention_date"`
	ReleaseType           string             `json:"release_type,omitempty"`
	DefectLiabilityPeriod int                `json:"defect_liability_period,omitempty"`
	WarrantyPeriod        int                `json:"warranty_period,omitempty"`
	RetentionType         string             `json:"retention_type"`
	Notes                 string             `json:"notes,omitempty"`
}

// TierDTO is one progressive bracket in a request.
type TierDTO struct {
	Threshold  generic.FlexAmount `json:"threshold"`
	Percentage generic.FlexAmount `json:"percentage"`
}

// ForfeitRequest is the body of POST /api/accounts/{id}/forfeit.
type ForfeitRequest struct {
	Reason string `json:"reason"`
}

// =============================================================================
// RELEASES
// =============================================================================

// ReleaseDTO represents a release in API responses.
type ReleaseDTO struct {
	ID            string            `json:"id"`
	AccountID     string            `json:"retention_account_id"`
	ReleaseNumber string            `json:"release_number"`
	ReleaseAmount string            `json:"release_amount"`
	ReleaseDate   generic.TimePoint `json:"release_date"`
	ReleaseType   string            `json:"release_type,omitempty"`
	Notes         string            `json:"notes,omitempty"`
}

// SubmitReleaseRequest is the body of POST /api/accounts/{id}/releases.
type SubmitReleaseRequest struct {
	ReleaseNumber string             `json:"release_number,omitempty"`
	ReleaseAmount generic.FlexAmount `json:"release_amount"`
	ReleaseDate   generic.TimePoint  `json:"release_date"`
	ReleaseType   string             `json:"release_type,omitempty"`
	Notes         string             `json:"notes,omitempty"`
}

// SubmitReleaseResponse returns the recorded release and the account after it.
type SubmitReleaseResponse struct {
	Release ReleaseDTO `json:"release"`
	Account AccountDTO `json:"account"`
}

// ScheduledTrancheDTO is one step of a computed release schedule.
type ScheduledTrancheDTO struct {
	Sequence    int               `json:"sequence"`
	Percentage  string            `json:"percentage"`
	Amount      string            `json:"amount"`
	EventType   string            `json:"event_type"`
	ReleaseDate generic.TimePoint `json:"release_date"`
}

// =============================================================================
// REPORTS
// =============================================================================

// BucketDTO is one aging bucket.
type BucketDTO struct {
	Count  int    `json:"count"`
	Amount string `json:"amount"`
}

// AgingDTO is the aging report.
type AgingDTO struct {
	AsOf       generic.TimePoint `json:"as_of"`
	Current    BucketDTO         `json:"current"`
	ThirtyDays BucketDTO         `json:"thirty_days"`
	SixtyDays  BucketDTO         `json:"sixty_days"`
	NinetyDays BucketDTO         `json:"ninety_days"`
	Overdue    BucketDTO         `json:"overdue"`
	Total      BucketDTO         `json:"total"`
}

// TotalsDTO sums one partition of accounts.
type TotalsDTO struct {
	Count    int    `json:"count"`
	Retained string `json:"retained"`
	Released string `json:"released"`
	Balance  string `json:"balance"`
}

// SummaryDTO is the portfolio summary.
type SummaryDTO struct {
	TotalHeld     string               `json:"total_held"`
	TotalReleased string               `json:"total_released"`
	TotalBalance  string               `json:"total_balance"`
	Receivables   TotalsDTO            `json:"receivables"`
	Payables      TotalsDTO            `json:"payables"`
	ByStatus      map[string]TotalsDTO `json:"by_status"`
}

// AlertDTO is a derived notice.
type AlertDTO struct {
	AccountID            string            `json:"retention_account_id"`
	ProjectID            string            `json:"project_id"`
	PartyID              string            `json:"party_id"`
	RetentionType        string            `json:"retention_type"`
	AlertType            string            `json:"alert_type"`
	AlertDate            generic.TimePoint `json:"alert_date"`
	ScheduledReleaseDate generic.TimePoint `json:"scheduled_release_date"`
	DaysUntilRelease     int               `json:"days_until_release"`
	BalanceAmount        string            `json:"balance_amount"`
	Status               string            `json:"status"`
	Message              string            `json:"message"`
}

// =============================================================================
// CALCULATOR
// =============================================================================

// CalculateRequest drives the live calculator. Tiers, when present, take
// precedence over retention_percentage.
type CalculateRequest struct {
	InvoiceAmount       generic.FlexAmount `json:"invoice_amount"`
	RetentionPercentage generic.FlexAmount `json:"retention_percentage"`
	Tiers               []TierDTO          `json:"tiers,omitempty"`
}

// CalculateResponse is the calculator output.
type CalculateResponse struct {
	InvoiceAmount           string `json:"invoice_amount"`
	RetentionAmount         string `json:"retention_amount"`
	AmountAfterRetention    string `json:"amount_after_retention"`
	EffectivePercentage     string `json:"effective_percentage"`
	FormattedRetention      string `json:"formatted_retention"`
	FormattedAfterRetention string `json:"formatted_after_retention"`
}

// =============================================================================
// SCENARIOS AND ERRORS
// =============================================================================

// ScenarioDTO describes a demo scenario.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// LoadScenarioRequest is the body of POST /api/scenarios/load.
type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id"`
}

// ErrorResponse is returned for all errors.
type ErrorResponse struct {
	Error   string   `json:"error"`
	Details string   `json:"details,omitempty"`
	Errors  []string `json:"errors,omitempty"`
}

// =============================================================================
// CONVERSIONS
// =============================================================================

func money(d decimal.Decimal) string { return d.StringFixed(2) }

func toAccountDTO(a retention.Account) AccountDTO {
	return AccountDTO{
		ID:                    string(a.ID),
		ProjectID:             a.ProjectID,
		PartyID:               a.PartyID,
		InvoiceID:             a.InvoiceID,
		InvoiceNumber:         a.InvoiceNumber,
		PolicyID:              string(a.PolicyID),
		InvoiceAmount:         money(a.InvoiceAmount),
		RetentionPercentage:   a.RetentionPercentage.String(),
		RetentionAmount:       money(a.RetentionAmount),
		RetentionDate:         a.RetentionDate,
		ReleaseType:           string(a.ReleaseType),
		DefectLiabilityPeriod: a.DefectLiabilityPeriod,
		WarrantyPeriod:        a.WarrantyPeriod,
		ScheduledReleaseDate:  a.ScheduledReleaseDate,
		RetentionType:         string(a.RetentionType),
		Status:                string(a.Status),
		ReleasedAmount:        money(a.ReleasedAmount),
		BalanceAmount:         money(a.BalanceAmount),
		ReleasePercentage:     retention.CalculateReleasePercentage(a.ReleasedAmount, a.RetentionAmount).String(),
		ForfeitedAt:           a.ForfeitedAt,
		ForfeitReason:         a.ForfeitReason,
		Notes:                 a.Notes,
		Version:               a.Version,
	}
}

func toReleaseDTO(r retention.Release) ReleaseDTO {
	return ReleaseDTO{
		ID:            string(r.ID),
		AccountID:     string(r.RetentionAccountID),
		ReleaseNumber: r.ReleaseNumber,
		ReleaseAmount: money(r.ReleaseAmount),
		ReleaseDate:   r.ReleaseDate,
		ReleaseType:   string(r.ReleaseType),
		Notes:         r.Notes,
	}
}

func toBucketDTO(b retention.AgingBucket) BucketDTO {
	return BucketDTO{Count: b.Count, Amount: money(b.Amount)}
}

func toTotalsDTO(t retention.Totals) TotalsDTO {
	return TotalsDTO{
		Count:    t.Count,
		Retained: money(t.Retained),
		Released: money(t.Released),
		Balance:  money(t.Balance),
	}
}

func toAlertDTO(a retention.Alert) AlertDTO {
	return AlertDTO{
		AccountID:            string(a.AccountID),
		ProjectID:            a.ProjectID,
		PartyID:              a.PartyID,
		RetentionType:        string(a.RetentionType),
		AlertType:            string(a.AlertType),
		AlertDate:            a.AlertDate,
		ScheduledReleaseDate: a.ScheduledReleaseDate,
		DaysUntilRelease:     a.DaysUntilRelease,
		BalanceAmount:        money(a.BalanceAmount),
		Status:               string(a.Status),
		Message:              a.Message,
	}
}

func toTiers(dtos []TierDTO) []retention.Tier {
	if len(dtos) == 0 {
		return nil
	}
	tiers := make([]retention.Tier, len(dtos))
	for i, t := range dtos {
		tiers[i] = retention.Tier{Threshold: t.Threshold.Decimal, Percentage: t.Percentage.Decimal}
	}
	return tiers
}

func (req CreateAccountRequest) toInput() retention.AccountInput {
	return retention.AccountInput{
		ID:                    retention.AccountID(req.ID),
		ProjectID:             req.ProjectID,
		PartyID:               req.PartyID,
		InvoiceID:             req.InvoiceID,
		InvoiceNumber:         req.InvoiceNumber,
		InvoiceAmount:         req.InvoiceAmount.Decimal,
		RetentionPercentage:   req.RetentionPercentage.Decimal,
		Tiers:                 toTiers(req.Tiers),
		RetentionDate:         req.RetentionDate,
		ReleaseType:           retention.ReleaseType(req.ReleaseType),
		DefectLiabilityPeriod: req.DefectLiabilityPeriod,
		WarrantyPeriod:        req.WarrantyPeriod,
		RetentionType:         retention.RetentionType(req.RetentionType),
		Notes:                 req.Notes,
	}
}
