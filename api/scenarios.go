/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:

	Provides pre-built scenarios that populate the store with realistic
	retention data. Each scenario installs the preset policies, opens
	accounts and records releases that demonstrate specific features.

AVAILABLE SCENARIOS:

	standard-portfolio: Time-based 5% retention across receivables and
	                    payables, one account overdue, one partly released
	warranty-split:     50/50 completion / warranty tranches, warranty
	                    about to expire
	tiered-contract:    Progressive 10/5/3 retention, one account fully
	                    released, one forfeited

HOW SCENARIOS WORK:
 1. Reset store (clear all data)
 2. Save preset policies via factory (std-5-dlp is the default)
 3. Open accounts through the service, dated relative to Service.Today
 4. Record releases through the service

Every write goes through retention.Service, so scenario data obeys the same
validation as API traffic.

USAGE VIA API:

	POST /api/scenarios/load
	{"scenario_id": "warranty-split"}

ADDING NEW SCENARIOS:
 1. Add to 'scenarios' slice with ID, name, description
 2. Create loader function: loadXxxScenario(ctx)
 3. Add case to LoadScenarioByID

NOTE:

	Scenarios reset the store. Only use in development/demo environments.

SEE ALSO:
  - handlers.go: Account and release handlers
  - factory/presets.go: Policy templates
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/warp/retention-engine/generic"
	"github.com/warp/retention-engine/retention"
)

// ErrUnknownScenario is returned for scenario ids not in the catalogue.
var ErrUnknownScenario = errors.New("unknown scenario")

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

var scenarios = []ScenarioDTO{
	{
		ID:          "standard-portfolio",
		Name:        "Standard Portfolio",
		Description: "5% time-based retention on receivables and payables, one overdue, one partly released",
	},
	{
		ID:          "warranty-split",
		Name:        "Warranty Split",
		Description: "10% retention released half at completion, half at warranty end (expiring soon)",
	},
	{
		ID:          "tiered-contract",
		Name:        "Tiered Contract",
		Description: "Progressive 10/5/3 retention, one account fully released and one forfeited",
	},
}

// ListScenarios returns available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// GetCurrentScenario returns the currently loaded scenario, if any.
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	current := h.currentScenario
	h.mu.Unlock()

	for _, s := range scenarios {
		if s.ID == current {
			writeJSON(w, http.StatusOK, s)
			return
		}
	}
	writeJSON(w, http.StatusOK, nil)
}

// LoadScenario loads a predefined scenario.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	if err := h.LoadScenarioByID(r.Context(), req.ScenarioID); err != nil {
		if errors.Is(err, ErrUnknownScenario) {
			writeError(w, http.StatusBadRequest, "Unknown scenario", err)
			return
		}
		writeServiceError(w, "Failed to load scenario", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "loaded", "scenario": req.ScenarioID})
}

// ResetStore clears all data.
func (h *Handler) ResetStore(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if err := h.Store.Reset(r.Context()); err != nil {
		writeServiceError(w, "Failed to reset store", err)
		return
	}
	h.currentScenario = ""
	writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

// LoadScenarioByID resets the store and loads scenario id.
func (h *Handler) LoadScenarioByID(ctx context.Context, id string) error {
	var load func(context.Context) error
	switch id {
	case "standard-portfolio":
		load = h.loadStandardPortfolioScenario
	case "warranty-split":
		load = h.loadWarrantySplitScenario
	case "tiered-contract":
		load = h.loadTieredContractScenario
	default:
		return fmt.Errorf("%w: %q", ErrUnknownScenario, id)
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if err := h.Store.Reset(ctx); err != nil {
		return fmt.Errorf("reset store: %w", err)
	}
	h.currentScenario = ""

	if err := h.installPresets(ctx); err != nil {
		return err
	}
	if err := load(ctx); err != nil {
		return fmt.Errorf("scenario %s: %w", id, err)
	}

	h.currentScenario = id
	h.logger.Info("scenario loaded", zap.String("scenario", id))
	return nil
}

// =============================================================================
// SCENARIO LOADERS
// =============================================================================

func (h *Handler) loadStandardPortfolioScenario(ctx context.Context) error {
	today := h.Service.Today()

	// Retention taken 400 days ago on a 365-day DLP: overdue by 35 days.
	if _, err := h.Service.CreateAccount(ctx, retention.AccountInput{
		ID:            "ret-1001",
		ProjectID:     "harbour-bridge",
		PartyID:       "acme-builders",
		InvoiceID:     "inv-1001",
		InvoiceNumber: "INV-1001",
		InvoiceAmount: generic.MustParseDecimal("2000000"),
		RetentionDate: today.AddDays(-400),
		RetentionType: retention.Receivable,
	}, "std-5-dlp"); err != nil {
		return err
	}

	// Payable to a supplier, 200 days old, one interim release.
	if _, err := h.Service.CreateAccount(ctx, retention.AccountInput{
		ID:            "ret-1002",
		ProjectID:     "harbour-bridge",
		PartyID:       "steelworks-ltd",
		InvoiceID:     "inv-1002",
		InvoiceNumber: "PO-1002",
		InvoiceAmount: generic.MustParseDecimal("800000"),
		RetentionDate: today.AddDays(-200),
		RetentionType: retention.Payable,
	}, "std-5-dlp"); err != nil {
		return err
	}
	if _, _, err := h.Service.SubmitRelease(ctx, "ret-1002", retention.ReleaseInput{
		ReleaseAmount: generic.NewFlexAmount(generic.MustParseDecimal("10000")),
		ReleaseDate:   today,
		ReleaseType:   retention.ReleaseTimeBased,
		Notes:         "Interim release after snagging inspection",
	}); err != nil {
		return err
	}

	// Fresh invoice at the default policy's 5%.
	_, err := h.Service.CreateAccount(ctx, retention.AccountInput{
		ID:            "ret-1003",
		ProjectID:     "riverside-school",
		PartyID:       "acme-builders",
		InvoiceID:     "inv-1003",
		InvoiceNumber: "INV-1003",
		InvoiceAmount: generic.MustParseDecimal("450000"),
		RetentionDate: today.AddDays(-10),
		RetentionType: retention.Receivable,
	}, "std-5-dlp")
	return err
}

func (h *Handler) loadWarrantySplitScenario(ctx context.Context) error {
	today := h.Service.Today()

	// Completed 12 months minus 20 days ago: warranty ends in about 20 days.
	account, err := h.Service.CreateAccount(ctx, retention.AccountInput{
		ID:             "ret-2001",
		ProjectID:      "north-clinic",
		PartyID:        "medbuild-co",
		InvoiceID:      "inv-2001",
		InvoiceNumber:  "INV-2001",
		InvoiceAmount:  generic.MustParseDecimal("1200000"),
		RetentionDate:  today.AddMonths(-12).AddDays(20),
		ReleaseType:    retention.ReleaseWarrantyEnd,
		WarrantyPeriod: 12,
		RetentionType:  retention.Receivable,
	}, "split-10-warranty")
	if err != nil {
		return err
	}

	// First tranche (50%) was released at completion.
	half := generic.Round2(account.RetentionAmount.Div(generic.MustParseDecimal("2")))
	_, _, err = h.Service.SubmitRelease(ctx, account.ID, retention.ReleaseInput{
		ReleaseAmount: generic.NewFlexAmount(half),
		ReleaseDate:   account.RetentionDate,
		ReleaseType:   retention.ReleaseOnCompletion,
		Notes:         "Practical completion certificate issued",
	})
	return err
}

func (h *Handler) loadTieredContractScenario(ctx context.Context) error {
	today := h.Service.Today()

	// 10M contract: 100k + 200k + 150k = 450k retained, released in two steps.
	big, err := h.Service.CreateAccount(ctx, retention.AccountInput{
		ID:            "ret-3001",
		ProjectID:     "metro-line-4",
		PartyID:       "tunnelworks",
		InvoiceID:     "inv-3001",
		InvoiceNumber: "INV-3001",
		InvoiceAmount: generic.MustParseDecimal("10000000"),
		RetentionDate: today.AddDays(-120),
		RetentionType: retention.Receivable,
	}, "tiered-progressive")
	if err != nil {
		return err
	}
	for _, amount := range []string{"300000", "150000"} {
		if _, _, err := h.Service.SubmitRelease(ctx, big.ID, retention.ReleaseInput{
			ReleaseAmount: generic.NewFlexAmount(generic.MustParseDecimal(amount)),
			ReleaseDate:   today.AddDays(-30),
			ReleaseType:   retention.ReleaseOnCompletion,
		}); err != nil {
			return err
		}
	}

	// Subcontractor walked off site; retention is kept.
	small, err := h.Service.CreateAccount(ctx, retention.AccountInput{
		ID:            "ret-3002",
		ProjectID:     "metro-line-4",
		PartyID:       "quickfix-electrical",
		InvoiceID:     "inv-3002",
		InvoiceNumber: "PO-3002",
		InvoiceAmount: generic.MustParseDecimal("600000"),
		RetentionDate: today.AddDays(-75),
		RetentionType: retention.Payable,
	}, "tiered-progressive")
	if err != nil {
		return err
	}
	_, err = h.Service.ForfeitAccount(ctx, small.ID, "Subcontractor abandoned defect repairs")
	return err
}

// installPresets saves the built-in policies.
func (h *Handler) installPresets(ctx context.Context) error {
	presets, err := h.PolicyFactory.Presets()
	if err != nil {
		return err
	}
	for _, p := range presets {
		if _, err := h.Service.SavePolicy(ctx, p); err != nil {
			return fmt.Errorf("save preset %s: %w", p.ID, err)
		}
	}
	return nil
}
