package memory_test

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
	"github.com/warp/retention-engine/store/memory"
)

func account(id string, day int) retention.Account {
	return retention.Account{
		ID:              retention.AccountID(id),
		ProjectID:       "proj-1",
		PartyID:         "party-1",
		RetentionAmount: decimal.NewFromInt(1000),
		BalanceAmount:   decimal.NewFromInt(1000),
		RetentionDate:   generic.NewTimePoint(2024, time.January, day),
		RetentionType:   retention.Receivable,
		Status:          retention.StatusHeld,
		Version:         1,
	}
}

func release(id, number string, day int) retention.Release {
	return retention.Release{
		ID:                 retention.ReleaseID(id),
		RetentionAccountID: "a1",
		ReleaseNumber:      number,
		ReleaseAmount:      decimal.NewFromInt(10),
		ReleaseDate:        generic.NewTimePoint(2024, time.April, day),
	}
}

func TestMemory_VersionCheck(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	a := account("a1", 1)
	require.NoError(t, store.CreateAccount(ctx, a))
	assert.ErrorIs(t, store.CreateAccount(ctx, a), retention.ErrDuplicateID)

	require.NoError(t, store.UpdateAccount(ctx, a))
	assert.ErrorIs(t, store.UpdateAccount(ctx, a), retention.ErrConcurrentModification)

	got, err := store.GetAccount(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, 2, got.Version)
}

func TestMemory_ReleasesOrderedByDate(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	require.NoError(t, store.CreateAccount(ctx, account("a1", 1)))

	require.NoError(t, store.AppendRelease(ctx, release("r1", "REL-202404-001", 20)))
	require.NoError(t, store.AppendRelease(ctx, release("r2", "REL-202404-002", 5)))
	require.NoError(t, store.AppendRelease(ctx, release("r3", "REL-202404-003", 20)))
	assert.ErrorIs(t, store.AppendRelease(ctx, release("r4", "REL-202404-001", 21)), retention.ErrDuplicateReleaseNumber)

	releases, err := store.ListReleases(ctx, "a1")
	require.NoError(t, err)
	require.Len(t, releases, 3)
	assert.Equal(t, retention.ReleaseID("r2"), releases[0].ID)
	assert.Equal(t, retention.ReleaseID("r1"), releases[1].ID, "equal dates keep insertion order")
	assert.Equal(t, retention.ReleaseID("r3"), releases[2].ID)

	numbers, err := store.ReleaseNumbers(ctx, "REL-202404-")
	require.NoError(t, err)
	assert.Equal(t, []string{"REL-202404-001", "REL-202404-002", "REL-202404-003"}, numbers)
}

func TestMemory_ListAccountsFiltered(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	b := account("b", 2)
	b.PartyID = "party-2"
	require.NoError(t, store.CreateAccount(ctx, b))
	require.NoError(t, store.CreateAccount(ctx, account("a", 3)))

	all, err := store.ListAccounts(ctx, retention.AccountFilter{})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, retention.AccountID("b"), all[0].ID, "ordered by retention date")

	party2, err := store.ListAccounts(ctx, retention.AccountFilter{PartyID: "party-2"})
	require.NoError(t, err)
	assert.Len(t, party2, 1)
}

func TestMemory_WithTxRollsBack(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	require.NoError(t, store.CreateAccount(ctx, account("a1", 1)))

	boom := errors.New("boom")
	err := store.WithTx(ctx, func(tx retention.Store) error {
		require.NoError(t, tx.AppendRelease(ctx, release("r1", "REL-202404-001", 1)))
		a, err := tx.GetAccount(ctx, "a1")
		require.NoError(t, err)
		require.NoError(t, tx.UpdateAccount(ctx, a))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	releases, err := store.ListReleases(ctx, "a1")
	require.NoError(t, err)
	assert.Empty(t, releases)

	numbers, err := store.ReleaseNumbers(ctx, "REL-")
	require.NoError(t, err)
	assert.Empty(t, numbers, "release number freed by rollback")

	a, err := store.GetAccount(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, 1, a.Version)
}

func TestMemory_Policies(t *testing.T) {
	ctx := context.Background()
	store := memory.New()

	require.NoError(t, store.SavePolicy(ctx, retention.Policy{ID: "p2", Name: "Zeta"}))
	require.NoError(t, store.SavePolicy(ctx, retention.Policy{ID: "p1", Name: "Alpha"}))

	policies, err := store.ListPolicies(ctx)
	require.NoError(t, err)
	require.Len(t, policies, 2)
	assert.Equal(t, "Alpha", policies[0].Name)

	_, err = store.GetPolicy(ctx, "missing")
	assert.ErrorIs(t, err, retention.ErrPolicyNotFound)
}
