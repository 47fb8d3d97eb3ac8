package sqlite_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/retention-engine/generic"
	"github.com/warp/retention-engine/retention"
	"github.com/warp/retention-engine/store/sqlite"
)

func newStore(t *testing.T) *sqlite.Store {
	t.Helper()
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func account(id string, retained generic.TimePoint) retention.Account {
	return retention.Account{
		ID:                    retention.AccountID(id),
		ProjectID:             "proj-1",
		PartyID:               "party-1",
		InvoiceID:             "inv-" + id,
		InvoiceAmount:         decimal.RequireFromString("1000000.50"),
		RetentionPercentage:   decimal.RequireFromString("5"),
		RetentionAmount:       decimal.RequireFromString("50000.03"),
		RetentionDate:         retained,
		ReleaseType:           retention.ReleaseTimeBased,
		DefectLiabilityPeriod: 90,
		ScheduledReleaseDate:  retained.AddDays(90),
		RetentionType:         retention.Receivable,
		Status:                retention.StatusHeld,
		ReleasedAmount:        decimal.Zero,
		BalanceAmount:         decimal.RequireFromString("50000.03"),
		Version:               1,
	}
}

func release(id, accountID, number string, amount string, on generic.TimePoint) retention.Release {
	return retention.Release{
		ID:                 retention.ReleaseID(id),
		RetentionAccountID: retention.AccountID(accountID),
		ReleaseNumber:      number,
		ReleaseAmount:      decimal.RequireFromString(amount),
		ReleaseDate:        on,
		ReleaseType:        retention.ReleaseTimeBased,
	}
}

// =============================================================================
// ACCOUNTS
// =============================================================================

func TestAccount_CreateAndGet(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)

	a := account("a1", generic.NewTimePoint(2024, time.January, 1))
	require.NoError(t, store.CreateAccount(ctx, a))

	got, err := store.GetAccount(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, "proj-1", got.ProjectID)
	assert.Equal(t, "50000.03", got.RetentionAmount.String(), "decimals survive as text")
	assert.Equal(t, "2024-01-01", got.RetentionDate.String())
	assert.Equal(t, "2024-03-31", got.ScheduledReleaseDate.String())
	assert.True(t, got.ForfeitedAt.IsZero())
	assert.Equal(t, retention.StatusHeld, got.Status)
	assert.Equal(t, 1, got.Version)

	assert.ErrorIs(t, store.CreateAccount(ctx, a), retention.ErrDuplicateID)

	_, err = store.GetAccount(ctx, "missing")
	assert.ErrorIs(t, err, retention.ErrAccountNotFound)
}

func TestAccount_UpdateIsVersionChecked(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)

	a := account("a1", generic.NewTimePoint(2024, time.January, 1))
	require.NoError(t, store.CreateAccount(ctx, a))

	// GIVEN: two writers read version 1
	first, second := a, a
	first.Notes = "first"
	second.Notes = "second"

	// WHEN: both write
	require.NoError(t, store.UpdateAccount(ctx, first))
	err := store.UpdateAccount(ctx, second)

	// THEN: the second loses
	assert.ErrorIs(t, err, retention.ErrConcurrentModification)

	got, err := store.GetAccount(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, "first", got.Notes)
	assert.Equal(t, 2, got.Version)

	missing := account("nope", generic.NewTimePoint(2024, time.January, 1))
	assert.ErrorIs(t, store.UpdateAccount(ctx, missing), retention.ErrAccountNotFound)
}

func TestAccount_ListFiltersAndOrders(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)

	late := account("late", generic.NewTimePoint(2024, time.March, 1))
	early := account("early", generic.NewTimePoint(2024, time.January, 1))
	payable := account("payable", generic.NewTimePoint(2024, time.February, 1))
	payable.RetentionType = retention.Payable
	payable.ProjectID = "proj-2"

	for _, a := range []retention.Account{late, early, payable} {
		require.NoError(t, store.CreateAccount(ctx, a))
	}

	all, err := store.ListAccounts(ctx, retention.AccountFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, retention.AccountID("early"), all[0].ID)
	assert.Equal(t, retention.AccountID("late"), all[2].ID)

	receivables, err := store.ListAccounts(ctx, retention.AccountFilter{RetentionType: retention.Receivable})
	require.NoError(t, err)
	assert.Len(t, receivables, 2)

	proj2, err := store.ListAccounts(ctx, retention.AccountFilter{ProjectID: "proj-2"})
	require.NoError(t, err)
	require.Len(t, proj2, 1)
	assert.Equal(t, retention.AccountID("payable"), proj2[0].ID)
}

func TestAccount_Delete(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)

	require.NoError(t, store.CreateAccount(ctx, account("a1", generic.NewTimePoint(2024, time.January, 1))))
	require.NoError(t, store.DeleteAccount(ctx, "a1"))
	assert.ErrorIs(t, store.DeleteAccount(ctx, "a1"), retention.ErrAccountNotFound)
}

// =============================================================================
// RELEASES
// =============================================================================

func TestRelease_AppendAndList(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	require.NoError(t, store.CreateAccount(ctx, account("a1", generic.NewTimePoint(2024, time.January, 1))))

	later := release("r1", "a1", "REL-202404-001", "100.10", generic.NewTimePoint(2024, time.April, 20))
	sooner := release("r2", "a1", "REL-202404-002", "200", generic.NewTimePoint(2024, time.April, 5))
	require.NoError(t, store.AppendRelease(ctx, later))
	require.NoError(t, store.AppendRelease(ctx, sooner))

	releases, err := store.ListReleases(ctx, "a1")
	require.NoError(t, err)
	require.Len(t, releases, 2)
	assert.Equal(t, retention.ReleaseID("r2"), releases[0].ID, "ordered by release date")
	assert.Equal(t, "100.1", releases[1].ReleaseAmount.String())

	dup := release("r3", "a1", "REL-202404-001", "1", generic.NewTimePoint(2024, time.April, 21))
	assert.ErrorIs(t, store.AppendRelease(ctx, dup), retention.ErrDuplicateReleaseNumber)

	orphan := release("r4", "ghost", "REL-202404-009", "1", generic.NewTimePoint(2024, time.April, 21))
	assert.ErrorIs(t, store.AppendRelease(ctx, orphan), retention.ErrAccountNotFound)
}

func TestRelease_NumbersByPrefix(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	require.NoError(t, store.CreateAccount(ctx, account("a1", generic.NewTimePoint(2024, time.January, 1))))
	require.NoError(t, store.CreateAccount(ctx, account("a2", generic.NewTimePoint(2024, time.January, 1))))

	on := generic.NewTimePoint(2024, time.April, 1)
	require.NoError(t, store.AppendRelease(ctx, release("r1", "a1", "REL-202403-004", "1", on)))
	require.NoError(t, store.AppendRelease(ctx, release("r2", "a1", "REL-202404-001", "1", on)))
	require.NoError(t, store.AppendRelease(ctx, release("r3", "a2", "REL-202404-002", "1", on)))

	numbers, err := store.ReleaseNumbers(ctx, "REL-202404-")
	require.NoError(t, err)
	assert.Equal(t, []string{"REL-202404-001", "REL-202404-002"}, numbers)
}

// =============================================================================
// POLICIES
// =============================================================================

func TestPolicy_SaveRoundTripsTiersAndSchedule(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)

	p := retention.Policy{
		ID:          "tiered",
		Name:        "Tiered",
		ReleaseType: retention.ReleaseOnCompletion,
		Tiers: []retention.Tier{
			{Threshold: decimal.Zero, Percentage: decimal.NewFromInt(10)},
			{Threshold: decimal.NewFromInt(1000000), Percentage: decimal.NewFromInt(5)},
		},
		WarrantyPeriod: 12,
		ReleaseSchedule: []retention.Tranche{
			{Percentage: decimal.NewFromInt(50), EventType: retention.ReleaseOnCompletion},
			{Percentage: decimal.NewFromInt(50), EventType: retention.ReleaseWarrantyEnd},
		},
		ScheduleAnchor: retention.AnchorOrigin,
		IsActive:       true,
	}
	require.NoError(t, store.SavePolicy(ctx, p))

	got, err := store.GetPolicy(ctx, "tiered")
	require.NoError(t, err)
	require.Len(t, got.Tiers, 2)
	assert.True(t, got.Tiers[1].Threshold.Equal(decimal.NewFromInt(1000000)))
	require.Len(t, got.ReleaseSchedule, 2)
	assert.Equal(t, retention.ReleaseWarrantyEnd, got.ReleaseSchedule[1].EventType)
	assert.Equal(t, retention.AnchorOrigin, got.ScheduleAnchor)
	assert.True(t, got.IsActive)
	assert.False(t, got.IsDefault)

	// Upsert
	p.Name = "Tiered v2"
	p.IsActive = false
	require.NoError(t, store.SavePolicy(ctx, p))
	policies, err := store.ListPolicies(ctx)
	require.NoError(t, err)
	require.Len(t, policies, 1)
	assert.Equal(t, "Tiered v2", policies[0].Name)
	assert.False(t, policies[0].IsActive)

	_, err = store.GetPolicy(ctx, "missing")
	assert.ErrorIs(t, err, retention.ErrPolicyNotFound)
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

func TestWithTx_RollsBackOnError(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	require.NoError(t, store.CreateAccount(ctx, account("a1", generic.NewTimePoint(2024, time.January, 1))))

	boom := errors.New("boom")
	err := store.WithTx(ctx, func(tx retention.Store) error {
		r := release("r1", "a1", "REL-202404-001", "10", generic.NewTimePoint(2024, time.April, 1))
		if err := tx.AppendRelease(ctx, r); err != nil {
			return err
		}
		// reads inside the transaction see its own writes
		releases, err := tx.ListReleases(ctx, "a1")
		if err != nil {
			return err
		}
		if len(releases) != 1 {
			return errors.New("release not visible inside tx")
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	releases, err := store.ListReleases(ctx, "a1")
	require.NoError(t, err)
	assert.Empty(t, releases)
}

func TestWithTx_Commits(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)

	err := store.WithTx(ctx, func(tx retention.Store) error {
		return tx.CreateAccount(ctx, account("a1", generic.NewTimePoint(2024, time.January, 1)))
	})
	require.NoError(t, err)

	_, err = store.GetAccount(ctx, "a1")
	assert.NoError(t, err)
}

func TestReset(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	require.NoError(t, store.CreateAccount(ctx, account("a1", generic.NewTimePoint(2024, time.January, 1))))

	require.NoError(t, store.Reset(ctx))
	accounts, err := store.ListAccounts(ctx, retention.AccountFilter{})
	require.NoError(t, err)
	assert.Empty(t, accounts)
}
