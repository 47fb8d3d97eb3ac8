package factory_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/retention-engine/factory"
	"github.com/warp/retention-engine/retention"
)

func TestParsePolicy_Flat(t *testing.T) {
	f := factory.NewPolicyFactory()

	p, err := f.ParsePolicy(factory.StandardTimeBasedJSON("std", "Standard", 5, 90))
	require.NoError(t, err)

	assert.Equal(t, retention.PolicyID("std"), p.ID)
	assert.Equal(t, "5", p.RetentionPercentage.String())
	assert.Equal(t, retention.ReleaseTimeBased, p.ReleaseType)
	assert.Equal(t, 90, p.DefectLiabilityPeriod)
	assert.True(t, p.IsActive, "active unless stated otherwise")
}

func TestParsePolicy_StringAmounts(t *testing.T) {
	p, err := factory.NewPolicyFactory().ParsePolicy(`{
		"id": "s", "name": "Strings", "retention_percentage": "7.5",
		"release_type": "ON_COMPLETION", "is_active": false
	}`)
	require.NoError(t, err)
	assert.Equal(t, "7.5", p.RetentionPercentage.String())
	assert.False(t, p.IsActive)
}

func TestParsePolicy_Invalid(t *testing.T) {
	f := factory.NewPolicyFactory()

	_, err := f.ParsePolicy(`{not json`)
	assert.Error(t, err)

	_, err = f.ParsePolicy(factory.StandardTimeBasedJSON("bad", "Too much", 30, 90))
	require.ErrorIs(t, err, retention.ErrValidation)
	assert.Contains(t, err.Error(), "cannot exceed 20%")
}

func TestParsePolicy_TiersAndSchedule(t *testing.T) {
	f := factory.NewPolicyFactory()

	tiered, err := f.ParsePolicy(factory.TieredJSON("t", "Tiered"))
	require.NoError(t, err)
	require.Len(t, tiered.Tiers, 3)
	assert.Equal(t, "1000000", tiered.Tiers[1].Threshold.String())

	split, err := f.ParsePolicy(factory.CompletionWarrantyJSON("w", "Split", 10, 12))
	require.NoError(t, err)
	require.Len(t, split.ReleaseSchedule, 2)
	assert.Equal(t, retention.ReleaseWarrantyEnd, split.ReleaseSchedule[1].EventType)
}

func TestToJSON_RoundTrip(t *testing.T) {
	f := factory.NewPolicyFactory()
	original, err := f.ParsePolicy(factory.CompletionWarrantyJSON("w", "Split", 10, 12))
	require.NoError(t, err)

	again, err := f.FromJSON(f.ToJSON(original))
	require.NoError(t, err)
	assert.Equal(t, original.Name, again.Name)
	assert.True(t, original.RetentionPercentage.Equal(again.RetentionPercentage))
	assert.Len(t, again.ReleaseSchedule, 2)
}

// =============================================================================
// CATALOG
// =============================================================================

const catalogYAML = `
policies:
  - id: std-5
    name: Standard 5%
    retention_percentage: 5
    release_type: TIME_BASED
    defect_liability_period: 365
    is_default: true
  - id: tiered
    name: Tiered
    release_type: ON_COMPLETION
    tiers:
      - {threshold: 0, percentage: 10}
      - {threshold: "1,000,000", percentage: 5}
`

func TestLoadCatalog(t *testing.T) {
	policies, err := factory.NewPolicyFactory().LoadCatalog(strings.NewReader(catalogYAML))
	require.NoError(t, err)
	require.Len(t, policies, 2)

	assert.True(t, policies[0].IsDefault)
	assert.Equal(t, 365, policies[0].DefectLiabilityPeriod)
	assert.Equal(t, "1000000", policies[1].Tiers[1].Threshold.String())
}

func TestLoadCatalog_Rejects(t *testing.T) {
	f := factory.NewPolicyFactory()

	_, err := f.LoadCatalog(strings.NewReader("policies:\n  - id: a\n    name: A\n    colour: blue\n"))
	assert.Error(t, err, "unknown fields are rejected")

	dup := "policies:\n" +
		"  - {id: a, name: A, retention_percentage: 5, release_type: ON_COMPLETION}\n" +
		"  - {id: a, name: B, retention_percentage: 5, release_type: ON_COMPLETION}\n"
	_, err = f.LoadCatalog(strings.NewReader(dup))
	assert.ErrorIs(t, err, retention.ErrDuplicateID)

	_, err = f.LoadCatalog(strings.NewReader("policies:\n  - {name: A}\n"))
	assert.Error(t, err)

	policies, err := f.LoadCatalog(strings.NewReader(""))
	assert.NoError(t, err)
	assert.Empty(t, policies)
}

func TestWriteCatalog_RoundTrip(t *testing.T) {
	f := factory.NewPolicyFactory()
	presets, err := f.Presets()
	require.NoError(t, err)
	require.Len(t, presets, 3)
	assert.True(t, presets[0].IsDefault)

	var buf bytes.Buffer
	require.NoError(t, f.WriteCatalog(&buf, presets))

	loaded, err := f.LoadCatalog(&buf)
	require.NoError(t, err)
	require.Len(t, loaded, 3)
	assert.Equal(t, presets[2].Name, loaded[2].Name)
	assert.Len(t, loaded[2].Tiers, 3)
}
