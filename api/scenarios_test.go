/*
scenarios_test.go - Unit tests for demo scenarios

PURPOSE:
	Tests that each scenario sets up the expected state:
	- Preset policies are installed
	- Accounts carry the expected amounts and statuses
	- Reports and alerts see what the scenario promises
*/
package api

import (
	"context"
	"net/http"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/retention-engine/retention"
)

func TestScenario_StandardPortfolio(t *testing.T) {
	// GIVEN: Standard portfolio scenario
	// WHEN: Loading the scenario
	// THEN: Three accounts exist, one overdue and one partly released
	h, _ := setupTestHandler(t)
	ctx := context.Background()

	require.NoError(t, h.LoadScenarioByID(ctx, "standard-portfolio"))

	policies, err := h.Service.ListPolicies(ctx)
	require.NoError(t, err)
	assert.Len(t, policies, 3)

	accounts, err := h.Service.ListAccounts(ctx, retention.AccountFilter{})
	require.NoError(t, err)
	require.Len(t, accounts, 3)

	partial, err := h.Service.GetAccount(ctx, "ret-1002")
	require.NoError(t, err)
	assert.Equal(t, retention.StatusPartiallyReleased, partial.Status)
	assert.Equal(t, "30000.00", partial.BalanceAmount.StringFixed(2))

	aging, err := h.Service.Aging(ctx, retention.AccountFilter{})
	require.NoError(t, err)
	assert.Equal(t, 1, aging.Overdue.Count)
	assert.Equal(t, "100000.00", aging.Overdue.Amount.StringFixed(2))
	assert.Equal(t, 1, aging.NinetyDays.Count)
	assert.Equal(t, 1, aging.Current.Count)

	alerts, err := h.Service.Alerts(ctx, retention.AccountFilter{}, retention.AlertOptions{})
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	assert.Equal(t, retention.AlertOverdue, alerts[0].AlertType)
	assert.Equal(t, retention.AccountID("ret-1001"), alerts[0].AccountID)
	assert.Equal(t, -35, alerts[0].DaysUntilRelease)
}

func TestScenario_WarrantySplit(t *testing.T) {
	h, router := setupTestHandler(t)
	ctx := context.Background()

	require.NoError(t, h.LoadScenarioByID(ctx, "warranty-split"))

	account, err := h.Service.GetAccount(ctx, "ret-2001")
	require.NoError(t, err)
	assert.Equal(t, "120000.00", account.RetentionAmount.StringFixed(2))
	assert.Equal(t, "60000.00", account.BalanceAmount.StringFixed(2))
	assert.Equal(t, retention.StatusPartiallyReleased, account.Status)

	alerts, err := h.Service.Alerts(ctx, retention.AccountFilter{}, retention.AlertOptions{WarrantyNoticeDays: 30})
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	assert.Equal(t, retention.AlertWarrantyExpiring, alerts[0].AlertType)

	schedule := decodeBody[[]ScheduledTrancheDTO](t, do(t, router, http.MethodGet, "/api/accounts/ret-2001/schedule", nil))
	require.Len(t, schedule, 2)
	assert.Equal(t, "60000.00", schedule[1].Amount)
}

func TestScenario_TieredContract(t *testing.T) {
	h, _ := setupTestHandler(t)
	ctx := context.Background()

	require.NoError(t, h.LoadScenarioByID(ctx, "tiered-contract"))

	big, err := h.Service.GetAccount(ctx, "ret-3001")
	require.NoError(t, err)
	assert.Equal(t, "450000.00", big.RetentionAmount.StringFixed(2))
	assert.Equal(t, retention.StatusFullyReleased, big.Status)

	releases, err := h.Service.ListReleases(ctx, "ret-3001")
	require.NoError(t, err)
	require.Len(t, releases, 2)
	assert.Equal(t, "REL-202406-001", releases[0].ReleaseNumber)
	assert.Equal(t, "REL-202406-002", releases[1].ReleaseNumber)

	small, err := h.Service.GetAccount(ctx, "ret-3002")
	require.NoError(t, err)
	assert.Equal(t, retention.StatusForfeited, small.Status)
	assert.Equal(t, "60000.00", small.BalanceAmount.StringFixed(2))

	summary, err := h.Service.Summary(ctx, retention.AccountFilter{})
	require.NoError(t, err)
	assert.Equal(t, "510000.00", summary.TotalHeld.StringFixed(2))
	assert.Equal(t, 1, summary.ByStatus[retention.StatusForfeited].Count)

	// Forfeited balances are not aged.
	aging, err := h.Service.Aging(ctx, retention.AccountFilter{})
	require.NoError(t, err)
	assert.Equal(t, 0, aging.Total.Count)
}

func TestScenario_ReloadReplacesData(t *testing.T) {
	h, router := setupTestHandler(t)
	ctx := context.Background()

	require.NoError(t, h.LoadScenarioByID(ctx, "standard-portfolio"))
	require.NoError(t, h.LoadScenarioByID(ctx, "tiered-contract"))

	accounts, err := h.Service.ListAccounts(ctx, retention.AccountFilter{})
	require.NoError(t, err)
	assert.Len(t, accounts, 2)

	current := decodeBody[ScenarioDTO](t, do(t, router, http.MethodGet, "/api/scenarios/current", nil))
	assert.Equal(t, "tiered-contract", current.ID)
}

func TestScenario_HTTP(t *testing.T) {
	_, router := setupTestHandler(t)

	list := decodeBody[[]ScenarioDTO](t, do(t, router, http.MethodGet, "/api/scenarios", nil))
	assert.Len(t, list, 3)

	rec := do(t, router, http.MethodPost, "/api/scenarios/load", LoadScenarioRequest{ScenarioID: "nope"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, router, http.MethodPost, "/api/scenarios/load", LoadScenarioRequest{ScenarioID: "standard-portfolio"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	aging := decodeBody[AgingDTO](t, do(t, router, http.MethodGet, "/api/reports/aging", nil))
	assert.Equal(t, "2024-06-30", aging.AsOf.String())
	assert.Equal(t, "100000.00", aging.Overdue.Amount)
	assert.Equal(t, "152500.00", aging.Total.Amount)

	summary := decodeBody[SummaryDTO](t, do(t, router, http.MethodGet, "/api/reports/summary?retention_type=PAYABLE", nil))
	assert.Equal(t, "40000.00", summary.TotalHeld)
	assert.Equal(t, "10000.00", summary.TotalReleased)

	alerts := decodeBody[[]AlertDTO](t, do(t, router, http.MethodGet, "/api/alerts", nil))
	require.Len(t, alerts, 1)
	assert.Equal(t, "OVERDUE", alerts[0].AlertType)
	assert.Equal(t, "RECEIVABLE", alerts[0].RetentionType)

	payable := decodeBody[[]AlertDTO](t, do(t, router, http.MethodGet, "/api/alerts?retention_type=PAYABLE", nil))
	assert.Empty(t, payable)

	require.Equal(t, http.StatusOK, do(t, router, http.MethodPost, "/api/scenarios/reset", nil).Code)
	accounts := decodeBody[[]AccountDTO](t, do(t, router, http.MethodGet, "/api/accounts", nil))
	assert.Empty(t, accounts)
}

// =============================================================================
// ALERT SCANNER
// =============================================================================

func TestAlertScanner_RunNow(t *testing.T) {
	// GIVEN: The standard portfolio (one overdue account)
	h, _ := setupTestHandler(t)
	ctx := context.Background()
	require.NoError(t, h.LoadScenarioByID(ctx, "standard-portfolio"))

	// WHEN: Scanning once
	scanner := NewAlertScanner(h.Service, retention.AlertOptions{}, nil)
	alerts := scanner.RunNow(ctx)

	// THEN: The alert gauge reflects the scan
	require.Len(t, alerts, 1)
	assert.Equal(t, float64(1), testutil.ToFloat64(ActiveAlerts.WithLabelValues(string(retention.AlertOverdue))))
	assert.Equal(t, float64(0), testutil.ToFloat64(ActiveAlerts.WithLabelValues(string(retention.AlertReleaseDue))))
	assert.Equal(t, float64(30000), testutil.ToFloat64(OutstandingBalance.WithLabelValues(string(retention.Payable))))
}

func TestAlertScanner_StartStop(t *testing.T) {
	h, _ := setupTestHandler(t)

	scanner := NewAlertScanner(h.Service, retention.AlertOptions{}, nil)
	scanner.Start()
	scanner.Start() // second start is a no-op
	scanner.Stop()
	scanner.Stop() // second stop is a no-op

	disabled := NewAlertScanner(h.Service, retention.AlertOptions{}, nil)
	disabled.Enabled = false
	disabled.Start()
	disabled.Stop()
}
