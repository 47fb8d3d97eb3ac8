package retention_test

import (
	"math"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/retention-engine/generic"
	"github.com/warp/retention-engine/retention"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func date(y int, m time.Month, d int) generic.TimePoint { return generic.NewTimePoint(y, m, d) }

func assertDec(t *testing.T, want string, got decimal.Decimal, msgAndArgs ...any) {
	t.Helper()
	assert.True(t, dec(want).Equal(got), append([]any{"want %s, got %s", want, got.String()}, msgAndArgs...)...)
}

func standardTiers() []retention.Tier {
	return []retention.Tier{
		{Threshold: dec("0"), Percentage: dec("10")},
		{Threshold: dec("1000000"), Percentage: dec("5")},
		{Threshold: dec("5000000"), Percentage: dec("3")},
	}
}

// =============================================================================
// FLAT RETENTION
// =============================================================================

func TestCalculateRetentionAmount(t *testing.T) {
	assertDec(t, "50000", retention.CalculateRetentionAmount(dec("1000000"), dec("5")))
	assertDec(t, "16.67", retention.CalculateRetentionAmount(dec("333.33"), dec("5")), "rounded to cents")
	assertDec(t, "0", retention.CalculateRetentionAmount(decimal.Zero, dec("10")))
}

func TestCalculateRetentionAmountFromInput_PermissiveParse(t *testing.T) {
	// GIVEN: half-typed form input
	// THEN: garbage counts as zero, no panic
	assertDec(t, "0", retention.CalculateRetentionAmountFromInput(nil, "10"))
	assertDec(t, "0", retention.CalculateRetentionAmountFromInput("abc", 10))
	assertDec(t, "0", retention.CalculateRetentionAmountFromInput(100000, math.NaN()))
	assertDec(t, "10000", retention.CalculateRetentionAmountFromInput("100,000", "10"))
}

func TestCalculateAmountAfterRetention(t *testing.T) {
	assertDec(t, "950000", retention.CalculateAmountAfterRetention(dec("1000000"), dec("5")))
}

func TestCalculateBalanceAndReleasePercentage(t *testing.T) {
	assertDec(t, "30000", retention.CalculateBalanceAmount(dec("50000"), dec("20000")))
	assertDec(t, "40", retention.CalculateReleasePercentage(dec("20000"), dec("50000")))
	assertDec(t, "0", retention.CalculateReleasePercentage(dec("20000"), decimal.Zero), "no divide by zero")
}

// =============================================================================
// TIERED RETENTION
// =============================================================================

func TestCalculateTieredRetention_MarginalBrackets(t *testing.T) {
	// GIVEN: 10% up to 1M, 5% up to 5M, 3% beyond
	// WHEN: total is 2M
	// THEN: 1M x 10% + 1M x 5% = 150,000, not 2M x 5%
	got, err := retention.CalculateTieredRetention(dec("2000000"), standardTiers())
	require.NoError(t, err)
	assertDec(t, "150000", got)
}

func TestCalculateTieredRetention_LastTierUnbounded(t *testing.T) {
	// 1M x 10% + 4M x 5% + 5M x 3% = 100k + 200k + 150k
	got, err := retention.CalculateTieredRetention(dec("10000000"), standardTiers())
	require.NoError(t, err)
	assertDec(t, "450000", got)
}

func TestCalculateTieredRetention_WithinFirstTier(t *testing.T) {
	got, err := retention.CalculateTieredRetention(dec("500000"), standardTiers())
	require.NoError(t, err)
	assertDec(t, "50000", got)
}

func TestCalculateTieredRetention_BelowFirstThresholdIsNotRetained(t *testing.T) {
	tiers := []retention.Tier{{Threshold: dec("1000"), Percentage: dec("10")}}
	got, err := retention.CalculateTieredRetention(dec("1500"), tiers)
	require.NoError(t, err)
	assertDec(t, "50", got)

	got, err = retention.CalculateTieredRetention(dec("800"), tiers)
	require.NoError(t, err)
	assertDec(t, "0", got)
}

func TestCalculateTieredRetention_RejectsUnsortedOrOverlapping(t *testing.T) {
	unsorted := []retention.Tier{
		{Threshold: dec("1000000"), Percentage: dec("5")},
		{Threshold: dec("0"), Percentage: dec("10")},
	}
	_, err := retention.CalculateTieredRetention(dec("2000000"), unsorted)
	assert.ErrorIs(t, err, retention.ErrUnsortedTiers)

	overlapping := []retention.Tier{
		{Threshold: dec("0"), Percentage: dec("10")},
		{Threshold: dec("0"), Percentage: dec("5")},
	}
	_, err = retention.CalculateTieredRetention(dec("2000000"), overlapping)
	assert.ErrorIs(t, err, retention.ErrUnsortedTiers)
}

func TestCalculateTieredRetention_NoTiers(t *testing.T) {
	got, err := retention.CalculateTieredRetention(dec("2000000"), nil)
	require.NoError(t, err)
	assert.True(t, got.IsZero())
}
