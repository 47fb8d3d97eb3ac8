/*
store.go - Persistence interface for accounts, releases and policies

PURPOSE:
  The engine never performs I/O. Callers fetch records through a Store,
  pass them to the pure functions, and persist what comes back.

KEY INTERFACES:
  Store:   CRUD for accounts and policies, append + query for releases
  TxStore: Store plus WithTx for atomic read-validate-write sequences

RELEASES ARE APPEND-ONLY:
  There is no UpdateRelease or DeleteRelease. An account's released amount
  is always the sum of its release rows.

OPTIMISTIC LOCKING:
  UpdateAccount succeeds only if the stored Version equals account.Version,
  and stores Version+1. A mismatch returns ErrConcurrentModification.

IMPLEMENTATIONS:
  - store/sqlite/sqlite.go: SQLite
  - store/memory/memory.go: in-memory, for tests and dev
*/
package retention

import "context"

// AccountFilter narrows ListAccounts. Empty fields match everything.
type AccountFilter struct {
	ProjectID     string
	PartyID       string
	RetentionType RetentionType
	Status        Status
}

// Matches reports whether a passes the filter.
func (f AccountFilter) Matches(a Account) bool {
	return (f.ProjectID == "" || f.ProjectID == a.ProjectID) &&
		(f.PartyID == "" || f.PartyID == a.PartyID) &&
		(f.RetentionType == "" || f.RetentionType == a.RetentionType) &&
		(f.Status == "" || f.Status == a.Status)
}

// Store handles persistence of retention records.
type Store interface {
	// CreateAccount inserts a new account. Returns ErrDuplicateID if the id exists.
	CreateAccount(ctx context.Context, a Account) error

	// UpdateAccount writes a with an optimistic version check.
	UpdateAccount(ctx context.Context, a Account) error

	// GetAccount returns ErrAccountNotFound when missing.
	GetAccount(ctx context.Context, id AccountID) (Account, error)

	ListAccounts(ctx context.Context, filter AccountFilter) ([]Account, error)

	// DeleteAccount removes an account. Callers must check for releases first.
	DeleteAccount(ctx context.Context, id AccountID) error

	// AppendRelease records a release. Returns ErrDuplicateReleaseNumber on reuse.
	AppendRelease(ctx context.Context, r Release) error

	// ListReleases returns an account's releases ordered by release date.
	ListReleases(ctx context.Context, accountID AccountID) ([]Release, error)

	// ReleaseNumbers returns every release number starting with prefix.
	ReleaseNumbers(ctx context.Context, prefix string) ([]string, error)

	// SavePolicy inserts or replaces a policy.
	SavePolicy(ctx context.Context, p Policy) error

	// GetPolicy returns ErrPolicyNotFound when missing.
	GetPolicy(ctx context.Context, id PolicyID) (Policy, error)

	ListPolicies(ctx context.Context) ([]Policy, error)
}

// TxStore wraps Store with transaction support.
type TxStore interface {
	Store

	// WithTx executes fn within a transaction.
	// If fn returns error, the transaction is rolled back.
	WithTx(ctx context.Context, fn func(Store) error) error
}
