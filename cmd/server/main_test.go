package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/retention-engine/factory"
	"github.com/warp/retention-engine/generic"
	"github.com/warp/retention-engine/retention"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestPoliciesPresets_PrintsCatalog(t *testing.T) {
	t.Setenv("RETENTION_DATABASE_PATH", "memory")

	out, err := execute(t, "policies", "presets")
	require.NoError(t, err)

	policies, err := factory.NewPolicyFactory().LoadCatalog(strings.NewReader(out))
	require.NoError(t, err)
	assert.Len(t, policies, 3)
}

func TestPoliciesImport_SQLite(t *testing.T) {
	// GIVEN: A catalog file and a SQLite database in a temp dir
	dir := t.TempDir()
	catalog := filepath.Join(dir, "catalog.yaml")
	require.NoError(t, os.WriteFile(catalog, []byte(`
policies:
  - id: std-5
    name: Standard 5%
    retention_percentage: 5
    release_type: TIME_BASED
    defect_liability_period: 365
    is_default: true
`), 0o600))
	t.Setenv("RETENTION_DATABASE_PATH", filepath.Join(dir, "retention.db"))
	t.Setenv("RETENTION_LOGGING_LEVEL", "error")

	// WHEN: Importing, then listing
	out, err := execute(t, "policies", "import", "-f", catalog)
	require.NoError(t, err)
	assert.Contains(t, out, "Imported 1 policies")

	out, err = execute(t, "policies", "list")
	require.NoError(t, err)

	// THEN: The stored policy comes back
	policies, err := factory.NewPolicyFactory().LoadCatalog(strings.NewReader(out))
	require.NoError(t, err)
	require.Len(t, policies, 1)
	assert.Equal(t, retention.PolicyID("std-5"), policies[0].ID)
	assert.True(t, policies[0].IsDefault)
}

func TestPrintAging(t *testing.T) {
	var buf bytes.Buffer
	aging := retention.Aging{
		Overdue: retention.AgingBucket{Count: 1, Amount: generic.MustParseDecimal("100000")},
		Total:   retention.AgingBucket{Count: 1, Amount: generic.MustParseDecimal("100000")},
	}

	printAging(&buf, generic.NewTimePoint(2024, time.June, 30), aging)

	out := buf.String()
	assert.Contains(t, out, "as of 2024-06-30")
	assert.Contains(t, out, "100,000.00")
	assert.Contains(t, out, "Overdue")
}

func TestPrintAlerts_Empty(t *testing.T) {
	var buf bytes.Buffer
	printAlerts(&buf, nil)
	assert.Equal(t, "No alerts.\n", buf.String())
}

func TestReports_AgainstLoadedScenario(t *testing.T) {
	// GIVEN: The standard portfolio in a SQLite database
	t.Setenv("RETENTION_DATABASE_PATH", filepath.Join(t.TempDir(), "retention.db"))
	t.Setenv("RETENTION_LOGGING_LEVEL", "error")

	out, err := execute(t, "scenario", "load", "standard-portfolio")
	require.NoError(t, err)
	assert.Contains(t, out, "Loaded scenario standard-portfolio")

	// WHEN/THEN: Aging sees the overdue receivable and all three balances
	out, err = execute(t, "report", "aging")
	require.NoError(t, err)
	assert.Contains(t, out, "100,000.00")
	assert.Contains(t, out, "152,500.00")

	// Summary honours --type
	out, err = execute(t, "report", "summary", "--type", "PAYABLE")
	require.NoError(t, err)
	assert.Contains(t, out, "Held:     40,000.00")
	assert.Contains(t, out, "Balance:  30,000.00")

	// Alerts honour --type: the only overdue account is a receivable
	out, err = execute(t, "report", "alerts", "--type", "PAYABLE")
	require.NoError(t, err)
	assert.Equal(t, "No alerts.\n", out)

	out, err = execute(t, "report", "alerts", "--type", "RECEIVABLE")
	require.NoError(t, err)
	assert.Contains(t, out, "OVERDUE")
	assert.Contains(t, out, "ret-1001")

	out, err = execute(t, "report", "alerts", "--type", "", "--project", "no-such-project")
	require.NoError(t, err)
	assert.Equal(t, "No alerts.\n", out)
}
