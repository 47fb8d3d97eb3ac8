/*
handlers.go - HTTP API handlers for the retention engine

PURPOSE:
  Exposes retention.Service via REST API. Handles HTTP request/response,
  JSON serialization, and delegates to the service.

ENDPOINTS:
  Accounts:
    GET    /api/accounts                   List accounts (?project_id, party_id, retention_type, status)
    POST   /api/accounts                   Open an account
    GET    /api/accounts/{id}              Get account
    DELETE /api/accounts/{id}              Delete account without releases
    POST   /api/accounts/{id}/forfeit      Forfeit the remaining balance
    GET    /api/accounts/{id}/schedule     Release schedule (?policy_id overrides)

  Releases:
    GET    /api/accounts/{id}/releases     Release history
    POST   /api/accounts/{id}/releases     Record a release

  Policies:
    GET    /api/policies                   List policies
    POST   /api/policies                   Create or replace a policy from JSON
    GET    /api/policies/{id}              Get policy

  Reports:
    GET    /api/reports/aging              Aging buckets
    GET    /api/reports/summary            Portfolio totals
    GET    /api/alerts                     Derived alerts (same filters as accounts)

  Calculator:
    POST   /api/calculate                  Flat or tiered retention preview

REQUEST FLOW:
  1. Parse HTTP request
  2. Call the service (validation happens there)
  3. Serialize response
  4. Map errors to status codes (writeServiceError)

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, rejected releases, inactive policies
  - 404: Resource not found
  - 409: Conflict (account has releases, duplicate ids, lost update)
  - 500: Internal errors

SECURITY NOTE:
  No authentication or authorization. All endpoints are public.

SEE ALSO:
  - dto.go: Request/response data structures
  - scenarios.go: Demo scenario loaders
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/warp/retention-engine/factory"
	"github.com/warp/retention-engine/generic"
	"github.com/warp/retention-engine/retention"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Store is the persistence the API needs: transactions for the service and
// Reset for demo scenarios.
type Store interface {
	retention.TxStore
	Reset(ctx context.Context) error
}

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store         Store
	Service       *retention.Service
	PolicyFactory *factory.PolicyFactory
	AlertOptions  retention.AlertOptions

	logger *zap.Logger

	mu              sync.Mutex
	currentScenario string
}

// NewHandler creates a new handler with the given store.
func NewHandler(store Store, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		Store:         store,
		Service:       retention.NewService(store, logger),
		PolicyFactory: factory.NewPolicyFactory(),
		logger:        logger.Named("api"),
	}
}

// =============================================================================
// ACCOUNT HANDLERS
// =============================================================================

// ListAccounts returns accounts matching the query filter.
func (h *Handler) ListAccounts(w http.ResponseWriter, r *http.Request) {
	accounts, err := h.Service.ListAccounts(r.Context(), filterFromQuery(r))
	if err != nil {
		writeServiceError(w, "Failed to list accounts", err)
		return
	}

	dtos := make([]AccountDTO, len(accounts))
	for i, a := range accounts {
		dtos[i] = toAccountDTO(a)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetAccount returns a single account.
func (h *Handler) GetAccount(w http.ResponseWriter, r *http.Request) {
	account, err := h.Service.GetAccount(r.Context(), accountID(r))
	if err != nil {
		writeServiceError(w, "Failed to get account", err)
		return
	}
	writeJSON(w, http.StatusOK, toAccountDTO(account))
}

// CreateAccount opens a retention account. When the request names no policy
// and carries neither a percentage nor tiers, the default policy is applied.
func (h *Handler) CreateAccount(w http.ResponseWriter, r *http.Request) {
	var req CreateAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	ctx := r.Context()
	in := req.toInput()
	policyID := retention.PolicyID(req.PolicyID)

	if policyID == "" && in.RetentionPercentage.IsZero() && len(in.Tiers) == 0 {
		policy, err := h.Service.DefaultPolicy(ctx)
		switch {
		case err == nil:
			policyID = policy.ID
		case !errors.Is(err, retention.ErrPolicyNotFound):
			writeServiceError(w, "Failed to load default policy", err)
			return
		}
	}

	account, err := h.Service.CreateAccount(ctx, in, policyID)
	if err != nil {
		writeServiceError(w, "Failed to create account", err)
		return
	}
	AccountsCreated.Inc()

	writeJSON(w, http.StatusCreated, toAccountDTO(account))
}

// DeleteAccount removes an account that has no releases.
func (h *Handler) DeleteAccount(w http.ResponseWriter, r *http.Request) {
	if err := h.Service.DeleteAccount(r.Context(), accountID(r)); err != nil {
		writeServiceError(w, "Failed to delete account", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ForfeitAccount moves an account to FORFEITED.
func (h *Handler) ForfeitAccount(w http.ResponseWriter, r *http.Request) {
	var req ForfeitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	account, err := h.Service.ForfeitAccount(r.Context(), accountID(r), req.Reason)
	if err != nil {
		writeServiceError(w, "Failed to forfeit account", err)
		return
	}
	AccountsForfeited.Inc()

	writeJSON(w, http.StatusOK, toAccountDTO(account))
}

// GetSchedule expands the account's release schedule.
func (h *Handler) GetSchedule(w http.ResponseWriter, r *http.Request) {
	policyID := retention.PolicyID(r.URL.Query().Get("policy_id"))

	tranches, err := h.Service.Schedule(r.Context(), accountID(r), policyID)
	if err != nil {
		writeServiceError(w, "Failed to build schedule", err)
		return
	}

	dtos := make([]ScheduledTrancheDTO, len(tranches))
	for i, t := range tranches {
		dtos[i] = ScheduledTrancheDTO{
			Sequence:    t.Sequence,
			Percentage:  t.Percentage.String(),
			Amount:      money(t.Amount),
			EventType:   string(t.EventType),
			ReleaseDate: t.ReleaseDate,
		}
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// RELEASE HANDLERS
// =============================================================================

// ListReleases returns an account's release history.
func (h *Handler) ListReleases(w http.ResponseWriter, r *http.Request) {
	releases, err := h.Service.ListReleases(r.Context(), accountID(r))
	if err != nil {
		writeServiceError(w, "Failed to list releases", err)
		return
	}

	dtos := make([]ReleaseDTO, len(releases))
	for i, rel := range releases {
		dtos[i] = toReleaseDTO(rel)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// SubmitRelease records a release against the account's current balance.
// A lost update is retried once.
func (h *Handler) SubmitRelease(w http.ResponseWriter, r *http.Request) {
	var req SubmitReleaseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	ctx := r.Context()
	id := accountID(r)
	in := retention.ReleaseInput{
		ReleaseNumber: req.ReleaseNumber,
		ReleaseAmount: req.ReleaseAmount,
		ReleaseDate:   req.ReleaseDate,
		ReleaseType:   retention.ReleaseType(req.ReleaseType),
		Notes:         req.Notes,
	}

	account, release, err := h.Service.SubmitRelease(ctx, id, in)
	if retention.IsRetryable(err) {
		// Another writer updated the account first. One retry re-reads
		// the balance and validates again.
		h.logger.Warn("release lost a concurrent update, retrying", zap.String("account_id", string(id)))
		account, release, err = h.Service.SubmitRelease(ctx, id, in)
	}
	if err != nil {
		if errors.Is(err, retention.ErrReleaseRejected) {
			ReleasesRejected.Inc()
		}
		writeServiceError(w, "Release not recorded", err)
		return
	}
	ReleasesRecorded.Inc()

	writeJSON(w, http.StatusCreated, SubmitReleaseResponse{
		Release: toReleaseDTO(release),
		Account: toAccountDTO(account),
	})
}

// =============================================================================
// POLICY HANDLERS
// =============================================================================

// ListPolicies returns all policies.
func (h *Handler) ListPolicies(w http.ResponseWriter, r *http.Request) {
	policies, err := h.Service.ListPolicies(r.Context())
	if err != nil {
		writeServiceError(w, "Failed to list policies", err)
		return
	}

	dtos := make([]factory.PolicyJSON, len(policies))
	for i, p := range policies {
		dtos[i] = h.PolicyFactory.ToJSON(p)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetPolicy returns a single policy.
func (h *Handler) GetPolicy(w http.ResponseWriter, r *http.Request) {
	policy, err := h.Service.GetPolicy(r.Context(), retention.PolicyID(chi.URLParam(r, "id")))
	if err != nil {
		writeServiceError(w, "Failed to get policy", err)
		return
	}
	writeJSON(w, http.StatusOK, h.PolicyFactory.ToJSON(policy))
}

// CreatePolicy creates or replaces a policy from its JSON template.
func (h *Handler) CreatePolicy(w http.ResponseWriter, r *http.Request) {
	var req factory.PolicyJSON
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	policy, err := h.PolicyFactory.FromJSON(req)
	if err != nil {
		writeServiceError(w, "Invalid policy", err)
		return
	}

	saved, err := h.Service.SavePolicy(r.Context(), policy)
	if err != nil {
		writeServiceError(w, "Failed to save policy", err)
		return
	}
	writeJSON(w, http.StatusCreated, h.PolicyFactory.ToJSON(saved))
}

// =============================================================================
// REPORT HANDLERS
// =============================================================================

// GetAging returns the aging report as of today.
func (h *Handler) GetAging(w http.ResponseWriter, r *http.Request) {
	aging, err := h.Service.Aging(r.Context(), filterFromQuery(r))
	if err != nil {
		writeServiceError(w, "Failed to build aging report", err)
		return
	}

	writeJSON(w, http.StatusOK, AgingDTO{
		AsOf:       h.Service.Today(),
		Current:    toBucketDTO(aging.Current),
		ThirtyDays: toBucketDTO(aging.ThirtyDays),
		SixtyDays:  toBucketDTO(aging.SixtyDays),
		NinetyDays: toBucketDTO(aging.NinetyDays),
		Overdue:    toBucketDTO(aging.Overdue),
		Total:      toBucketDTO(aging.Total),
	})
}

// GetSummary returns portfolio totals.
func (h *Handler) GetSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.Service.Summary(r.Context(), filterFromQuery(r))
	if err != nil {
		writeServiceError(w, "Failed to build summary", err)
		return
	}
	writeJSON(w, http.StatusOK, toSummaryDTO(summary))
}

// ListAlerts returns alerts derived as of today for the filtered accounts.
func (h *Handler) ListAlerts(w http.ResponseWriter, r *http.Request) {
	alerts, err := h.Service.Alerts(r.Context(), filterFromQuery(r), h.AlertOptions)
	if err != nil {
		writeServiceError(w, "Failed to derive alerts", err)
		return
	}

	dtos := make([]AlertDTO, len(alerts))
	for i, a := range alerts {
		dtos[i] = toAlertDTO(a)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// CALCULATOR
// =============================================================================

// Calculate previews retention for an invoice amount without storing anything.
func (h *Handler) Calculate(w http.ResponseWriter, r *http.Request) {
	var req CalculateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	invoice := req.InvoiceAmount.Decimal
	pct := req.RetentionPercentage.Decimal
	amount := retention.CalculateRetentionAmount(invoice, pct)
	after := retention.CalculateAmountAfterRetention(invoice, pct)
	if tiers := toTiers(req.Tiers); len(tiers) > 0 {
		var err error
		if amount, err = retention.CalculateTieredRetention(invoice, tiers); err != nil {
			writeServiceError(w, "Invalid tiers", err)
			return
		}
		after = generic.Round2(invoice.Sub(amount))
	}

	writeJSON(w, http.StatusOK, CalculateResponse{
		InvoiceAmount:           money(invoice),
		RetentionAmount:         money(amount),
		AmountAfterRetention:    money(after),
		EffectivePercentage:     retention.EffectivePercentage(amount, invoice).String(),
		FormattedRetention:      generic.FormatCurrency(amount),
		FormattedAfterRetention: generic.FormatCurrency(after),
	})
}

// Health reports liveness.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// =============================================================================
// HELPERS
// =============================================================================

func accountID(r *http.Request) retention.AccountID {
	return retention.AccountID(chi.URLParam(r, "id"))
}

func filterFromQuery(r *http.Request) retention.AccountFilter {
	q := r.URL.Query()
	return retention.AccountFilter{
		ProjectID:     q.Get("project_id"),
		PartyID:       q.Get("party_id"),
		RetentionType: retention.RetentionType(q.Get("retention_type")),
		Status:        retention.Status(q.Get("status")),
	}
}

func toSummaryDTO(s retention.Summary) SummaryDTO {
	byStatus := make(map[string]TotalsDTO, len(s.ByStatus))
	for st, t := range s.ByStatus {
		byStatus[string(st)] = toTotalsDTO(t)
	}
	return SummaryDTO{
		TotalHeld:     money(s.TotalHeld),
		TotalReleased: money(s.TotalReleased),
		TotalBalance:  money(s.TotalBalance),
		Receivables:   toTotalsDTO(s.Receivables),
		Payables:      toTotalsDTO(s.Payables),
		ByStatus:      byStatus,
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeServiceError maps service errors to status codes. Validation and
// rejection errors also list their individual messages.
func writeServiceError(w http.ResponseWriter, message string, err error) {
	status := http.StatusInternalServerError
	switch {
	case retention.IsNotFound(err):
		status = http.StatusNotFound
	case retention.IsConflict(err):
		status = http.StatusConflict
	case retention.IsClientError(err):
		status = http.StatusBadRequest
	}

	resp := ErrorResponse{Error: message, Details: err.Error()}
	var validation *retention.ValidationError
	var rejected *retention.ReleaseRejectedError
	switch {
	case errors.As(err, &validation):
		resp.Errors = validation.Errors
	case errors.As(err, &rejected):
		resp.Errors = rejected.Errors
	}
	writeJSON(w, status, resp)
}
