package retention_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/retention-engine/retention"
)

func heldAccount(amount string) retention.Account {
	return retention.Account{
		ID:              "acc-1",
		RetentionAmount: dec(amount),
		BalanceAmount:   dec(amount),
		ReleasedAmount:  decimal.Zero,
		RetentionDate:   date(2024, time.January, 1),
		ReleaseType:     retention.ReleaseTimeBased,
		Status:          retention.StatusHeld,
	}
}

func release(amount string, day int) retention.Release {
	return retention.Release{
		RetentionAccountID: "acc-1",
		ReleaseAmount:      dec(amount),
		ReleaseDate:        date(2024, time.April, day),
	}
}

// =============================================================================
// STATUS
// =============================================================================

func TestDeriveStatus(t *testing.T) {
	assert.Equal(t, retention.StatusHeld, retention.DeriveStatus(dec("100"), decimal.Zero, dec("100")))
	assert.Equal(t, retention.StatusPartiallyReleased, retention.DeriveStatus(dec("100"), dec("40"), dec("60")))
	assert.Equal(t, retention.StatusFullyReleased, retention.DeriveStatus(dec("100"), dec("100"), decimal.Zero))
	assert.Equal(t, retention.StatusHeld, retention.DeriveStatus(decimal.Zero, decimal.Zero, decimal.Zero), "empty account")
}

func TestResolveStatus_ForfeitedIsSticky(t *testing.T) {
	got := retention.ResolveStatus(retention.StatusForfeited, dec("100"), dec("100"), decimal.Zero)
	assert.Equal(t, retention.StatusForfeited, got)
	assert.True(t, got.IsTerminal())
	assert.False(t, retention.StatusPartiallyReleased.IsTerminal())
}

// =============================================================================
// VALIDATION
// =============================================================================

func TestValidateRetentionRelease_WithinBalance(t *testing.T) {
	result := retention.ValidateRetentionRelease(release("20000", 1), heldAccount("50000"), nil)
	assert.True(t, result.Valid)
	assert.Empty(t, result.Errors)
}

func TestValidateRetentionRelease_ExceedsBalance(t *testing.T) {
	// GIVEN: 50,000 held and 50,000 already released
	existing := []retention.Release{release("50000", 1)}

	// WHEN: releasing a further 0.01
	result := retention.ValidateRetentionRelease(release("0.01", 2), heldAccount("50000"), existing)

	// THEN: rejected, computed from the releases not the stored balance
	assert.False(t, result.Valid)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "exceeds available balance")
}

func TestValidateRetentionRelease_CollectsAllErrors(t *testing.T) {
	account := heldAccount("100")
	account.Status = retention.StatusForfeited

	r := retention.Release{RetentionAccountID: "other", ReleaseAmount: dec("-5"), ReleaseType: "NOPE"}
	result := retention.ValidateRetentionRelease(r, account, nil)

	assert.False(t, result.Valid)
	assert.Len(t, result.Errors, 5)
}

func TestValidateRetentionRelease_IgnoresOtherAccountsReleases(t *testing.T) {
	foreign := release("50000", 1)
	foreign.RetentionAccountID = "acc-2"

	result := retention.ValidateRetentionRelease(release("50000", 2), heldAccount("50000"), []retention.Release{foreign})
	assert.True(t, result.Valid)
}

// =============================================================================
// APPLICATION
// =============================================================================

func TestApplyRelease_PartialThenFull(t *testing.T) {
	account := heldAccount("50000")

	account, releases, result := retention.ApplyRelease(account, nil, release("20000", 1))
	require.True(t, result.Valid)
	assert.Equal(t, retention.StatusPartiallyReleased, account.Status)
	assertDec(t, "20000", account.ReleasedAmount)
	assertDec(t, "30000", account.BalanceAmount)
	assert.Equal(t, retention.ReleaseTimeBased, releases[0].ReleaseType, "defaults to account release type")

	account, releases, result = retention.ApplyRelease(account, releases, release("30000", 2))
	require.True(t, result.Valid)
	assert.Equal(t, retention.StatusFullyReleased, account.Status)
	assertDec(t, "0", account.BalanceAmount)
	assert.Len(t, releases, 2)
}

func TestApplyRelease_RejectedLeavesStateUnchanged(t *testing.T) {
	account := heldAccount("50000")
	existing := []retention.Release{release("50000", 1)}
	account = retention.Recompute(account, existing)

	got, releases, result := retention.ApplyRelease(account, existing, release("1", 2))

	assert.False(t, result.Valid)
	assert.Equal(t, account, got)
	assert.Equal(t, existing, releases)
}

func TestRecompute_OrderIndependent(t *testing.T) {
	a := []retention.Release{release("10000", 1), release("15000", 2), release("5000", 3)}
	b := []retention.Release{a[2], a[0], a[1]}

	ra := retention.Recompute(heldAccount("50000"), a)
	rb := retention.Recompute(heldAccount("50000"), b)

	assert.True(t, ra.BalanceAmount.Equal(rb.BalanceAmount))
	assert.True(t, ra.ReleasedAmount.Equal(rb.ReleasedAmount))
	assert.Equal(t, ra.Status, rb.Status)
	assertDec(t, "20000", ra.BalanceAmount)
}

func TestApplyRelease_StatusNeverRegresses(t *testing.T) {
	rank := map[retention.Status]int{
		retention.StatusHeld:              0,
		retention.StatusPartiallyReleased: 1,
		retention.StatusFullyReleased:     2,
	}

	account := heldAccount("100")
	var releases []retention.Release
	for day, amt := range []string{"10", "25", "0.5", "64.5"} {
		before := account.Status
		var result retention.ValidationResult
		account, releases, result = retention.ApplyRelease(account, releases, release(amt, day+1))
		require.True(t, result.Valid)
		assert.GreaterOrEqual(t, rank[account.Status], rank[before])
		assert.False(t, account.BalanceAmount.IsNegative())
	}
	assert.Equal(t, retention.StatusFullyReleased, account.Status)
}

func TestForfeit(t *testing.T) {
	account := retention.Forfeit(heldAccount("500"), date(2024, time.June, 1), "defects not remedied")

	assert.Equal(t, retention.StatusForfeited, account.Status)
	assert.Equal(t, "2024-06-01", account.ForfeitedAt.String())
	assertDec(t, "500", account.BalanceAmount, "amounts are untouched")

	result := retention.ValidateRetentionRelease(release("1", 1), account, nil)
	assert.False(t, result.Valid)
}

// =============================================================================
// NUMBERING
// =============================================================================

func TestGenerateReleaseNumber(t *testing.T) {
	asOf := date(2024, time.March, 15)

	assert.Equal(t, "REL-202403-001", retention.GenerateReleaseNumber(nil, asOf))

	existing := []string{"REL-202403-001", "REL-202403-007", "REL-202402-099", "REL-202403-garbage"}
	assert.Equal(t, "REL-202403-008", retention.GenerateReleaseNumber(existing, asOf))

	assert.Equal(t, "REL-202404-001", retention.GenerateReleaseNumber(existing, date(2024, time.April, 1)),
		"sequence restarts each month")
}
