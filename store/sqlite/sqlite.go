/*
Package sqlite provides a SQLite-backed implementation of retention.TxStore.

PURPOSE:
  Persists retention accounts, their releases and policy templates. In
  production the same patterns apply to PostgreSQL with minor SQL dialect
  differences.

KEY TABLES:
  retention_accounts:  One row per withholding; version column for optimistic locking
  retention_releases:  Append-only disbursements, release_number is UNIQUE
  retention_policies:  Templates; tiers and tranche schedule kept as JSON

APPEND-ONLY ENFORCEMENT:
  No UPDATE or DELETE statements touch retention_releases. An account can
  only be deleted while it has no releases (enforced by the service and by
  the foreign key).

AMOUNTS AND DATES:
  Decimals are stored as TEXT (decimal.String) so nothing passes through
  float64. Business dates are stored as YYYY-MM-DD, audit times as RFC3339.

CONCURRENCY:
  Uses sync.RWMutex for thread-safety and a single connection, so ":memory:"
  databases see one schema. WithTx holds the write lock for the whole
  transaction; the Store it hands out runs every statement on the sql.Tx.

WAL MODE:
  Opened with WAL (Write-Ahead Logging): readers don't block the writer.

USAGE:
  store, err := sqlite.New("./data/retention.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  svc := retention.NewService(store, logger)

MIGRATION:
  Schema is auto-migrated on New().

SEE ALSO:
  - retention/store.go: Interface definitions
  - store/memory/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/mattn/go-sqlite3"

	"github.com/warp/retention-engine/generic"
	"github.com/warp/retention-engine/retention"
)

// Store implements retention.TxStore using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

var _ retention.TxStore = (*Store)(nil)

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS retention_policies (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		description TEXT,
		retention_percentage TEXT NOT NULL,
		tiers_json TEXT,
		release_type TEXT NOT NULL,
		defect_liability_period INTEGER NOT NULL DEFAULT 0,
		warranty_period INTEGER NOT NULL DEFAULT 0,
		schedule_json TEXT,
		schedule_anchor TEXT,
		is_default INTEGER NOT NULL DEFAULT 0,
		is_active INTEGER NOT NULL DEFAULT 1,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS retention_accounts (
		id TEXT PRIMARY KEY,
		project_id TEXT NOT NULL,
		party_id TEXT NOT NULL,
		invoice_id TEXT,
		invoice_number TEXT,
		policy_id TEXT,
		invoice_amount TEXT NOT NULL,
		retention_percentage TEXT NOT NULL,
		retention_amount TEXT NOT NULL,
		retention_date TEXT NOT NULL,
		release_type TEXT NOT NULL,
		defect_liability_period INTEGER NOT NULL DEFAULT 0,
		warranty_period INTEGER NOT NULL DEFAULT 0,
		scheduled_release_date TEXT,
		retention_type TEXT NOT NULL,
		status TEXT NOT NULL,
		released_amount TEXT NOT NULL,
		balance_amount TEXT NOT NULL,
		forfeited_at TEXT,
		forfeit_reason TEXT,
		notes TEXT,
		version INTEGER NOT NULL,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_retention_accounts_project
		ON retention_accounts(project_id);
	CREATE INDEX IF NOT EXISTS idx_retention_accounts_party
		ON retention_accounts(party_id);
	CREATE INDEX IF NOT EXISTS idx_retention_accounts_status
		ON retention_accounts(status);

	-- Append-only
	CREATE TABLE IF NOT EXISTS retention_releases (
		id TEXT PRIMARY KEY,
		retention_account_id TEXT NOT NULL REFERENCES retention_accounts(id),
		release_number TEXT NOT NULL UNIQUE,
		release_amount TEXT NOT NULL,
		release_date TEXT NOT NULL,
		release_type TEXT,
		notes TEXT,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_retention_releases_account_date
		ON retention_releases(retention_account_id, release_date);
	`

	_, err := s.db.Exec(schema)
	return err
}

// execer is satisfied by both *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// =============================================================================
// ACCOUNTS
// =============================================================================

const accountColumns = `id, project_id, party_id, invoice_id, invoice_number, policy_id,
	invoice_amount, retention_percentage, retention_amount, retention_date,
	release_type, defect_liability_period, warranty_period, scheduled_release_date,
	retention_type, status, released_amount, balance_amount,
	forfeited_at, forfeit_reason, notes, version, created_at, updated_at`

func (s *Store) CreateAccount(ctx context.Context, a retention.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return createAccount(ctx, s.db, a)
}

func createAccount(ctx context.Context, db execer, a retention.Account) error {
	query := `INSERT INTO retention_accounts (` + accountColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := db.ExecContext(ctx, query,
		a.ID, a.ProjectID, a.PartyID, nullString(a.InvoiceID), nullString(a.InvoiceNumber), nullString(string(a.PolicyID)),
		a.InvoiceAmount.String(), a.RetentionPercentage.String(), a.RetentionAmount.String(), a.RetentionDate.String(),
		a.ReleaseType, a.DefectLiabilityPeriod, a.WarrantyPeriod, nullString(a.ScheduledReleaseDate.String()),
		a.RetentionType, a.Status, a.ReleasedAmount.String(), a.BalanceAmount.String(),
		nullString(a.ForfeitedAt.String()), nullString(a.ForfeitReason), nullString(a.Notes),
		a.Version, formatTime(a.CreatedAt), formatTime(a.UpdatedAt),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return retention.ErrDuplicateID
		}
		return fmt.Errorf("failed to create account: %w", err)
	}
	return nil
}

func (s *Store) UpdateAccount(ctx context.Context, a retention.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return updateAccount(ctx, s.db, a)
}

// updateAccount writes a only if the stored version still equals a.Version.
func updateAccount(ctx context.Context, db execer, a retention.Account) error {
	query := `
		UPDATE retention_accounts SET
			project_id = ?, party_id = ?, invoice_id = ?, invoice_number = ?, policy_id = ?,
			invoice_amount = ?, retention_percentage = ?, retention_amount = ?, retention_date = ?,
			release_type = ?, defect_liability_period = ?, warranty_period = ?, scheduled_release_date = ?,
			retention_type = ?, status = ?, released_amount = ?, balance_amount = ?,
			forfeited_at = ?, forfeit_reason = ?, notes = ?,
			version = version + 1, updated_at = ?
		WHERE id = ? AND version = ?
	`

	res, err := db.ExecContext(ctx, query,
		a.ProjectID, a.PartyID, nullString(a.InvoiceID), nullString(a.InvoiceNumber), nullString(string(a.PolicyID)),
		a.InvoiceAmount.String(), a.RetentionPercentage.String(), a.RetentionAmount.String(), a.RetentionDate.String(),
		a.ReleaseType, a.DefectLiabilityPeriod, a.WarrantyPeriod, nullString(a.ScheduledReleaseDate.String()),
		a.RetentionType, a.Status, a.ReleasedAmount.String(), a.BalanceAmount.String(),
		nullString(a.ForfeitedAt.String()), nullString(a.ForfeitReason), nullString(a.Notes),
		formatTime(a.UpdatedAt),
		a.ID, a.Version,
	)
	if err != nil {
		return fmt.Errorf("failed to update account: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		// Either gone or someone else bumped the version.
		if _, err := getAccount(ctx, db, a.ID); err != nil {
			return err
		}
		return retention.ErrConcurrentModification
	}
	return nil
}

func (s *Store) GetAccount(ctx context.Context, id retention.AccountID) (retention.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getAccount(ctx, s.db, id)
}

func getAccount(ctx context.Context, db execer, id retention.AccountID) (retention.Account, error) {
	row := db.QueryRowContext(ctx, "SELECT "+accountColumns+" FROM retention_accounts WHERE id = ?", id)
	a, err := scanAccount(row)
	if errors.Is(err, sql.ErrNoRows) {
		return retention.Account{}, retention.ErrAccountNotFound
	}
	return a, err
}

func (s *Store) ListAccounts(ctx context.Context, filter retention.AccountFilter) ([]retention.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return listAccounts(ctx, s.db, filter)
}

func listAccounts(ctx context.Context, db execer, filter retention.AccountFilter) ([]retention.Account, error) {
	var (
		where []string
		args  []any
	)
	if filter.ProjectID != "" {
		where, args = append(where, "project_id = ?"), append(args, filter.ProjectID)
	}
	if filter.PartyID != "" {
		where, args = append(where, "party_id = ?"), append(args, filter.PartyID)
	}
	if filter.RetentionType != "" {
		where, args = append(where, "retention_type = ?"), append(args, filter.RetentionType)
	}
	if filter.Status != "" {
		where, args = append(where, "status = ?"), append(args, filter.Status)
	}

	query := "SELECT " + accountColumns + " FROM retention_accounts"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY retention_date, id"

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var accounts []retention.Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}

func (s *Store) DeleteAccount(ctx context.Context, id retention.AccountID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return deleteAccount(ctx, s.db, id)
}

func deleteAccount(ctx context.Context, db execer, id retention.AccountID) error {
	res, err := db.ExecContext(ctx, "DELETE FROM retention_accounts WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete account: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return retention.ErrAccountNotFound
	}
	return nil
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row rowScanner) (retention.Account, error) {
	var (
		a                                                    retention.Account
		invoiceID, invoiceNumber, policyID                   sql.NullString
		invoiceAmount, percentage, amount, released, balance string
		retentionDate                                        string
		scheduled, forfeitedAt, forfeitReason, notes         sql.NullString
		createdAt, updatedAt                                 string
	)

	err := row.Scan(
		&a.ID, &a.ProjectID, &a.PartyID, &invoiceID, &invoiceNumber, &policyID,
		&invoiceAmount, &percentage, &amount, &retentionDate,
		&a.ReleaseType, &a.DefectLiabilityPeriod, &a.WarrantyPeriod, &scheduled,
		&a.RetentionType, &a.Status, &released, &balance,
		&forfeitedAt, &forfeitReason, &notes, &a.Version, &createdAt, &updatedAt,
	)
	if err != nil {
		return retention.Account{}, err
	}

	a.InvoiceID = invoiceID.String
	a.InvoiceNumber = invoiceNumber.String
	a.PolicyID = retention.PolicyID(policyID.String)
	a.InvoiceAmount = generic.MustParseDecimal(invoiceAmount)
	a.RetentionPercentage = generic.MustParseDecimal(percentage)
	a.RetentionAmount = generic.MustParseDecimal(amount)
	a.ReleasedAmount = generic.MustParseDecimal(released)
	a.BalanceAmount = generic.MustParseDecimal(balance)
	a.RetentionDate, _ = generic.ParseDate(retentionDate)
	a.ScheduledReleaseDate, _ = generic.ParseDate(scheduled.String)
	a.ForfeitedAt, _ = generic.ParseDate(forfeitedAt.String)
	a.ForfeitReason = forfeitReason.String
	a.Notes = notes.String
	a.CreatedAt = parseTime(createdAt)
	a.UpdatedAt = parseTime(updatedAt)
	return a, nil
}

// =============================================================================
// RELEASES (append-only)
// =============================================================================

const releaseColumns = `id, retention_account_id, release_number, release_amount,
	release_date, release_type, notes, created_at`

func (s *Store) AppendRelease(ctx context.Context, r retention.Release) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return appendRelease(ctx, s.db, r)
}

func appendRelease(ctx context.Context, db execer, r retention.Release) error {
	query := `INSERT INTO retention_releases (` + releaseColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := db.ExecContext(ctx, query,
		r.ID, r.RetentionAccountID, r.ReleaseNumber, r.ReleaseAmount.String(),
		r.ReleaseDate.String(), nullString(string(r.ReleaseType)), nullString(r.Notes),
		formatTime(r.CreatedAt),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			if strings.Contains(err.Error(), "release_number") {
				return retention.ErrDuplicateReleaseNumber
			}
			return retention.ErrDuplicateID
		}
		if isForeignKeyError(err) {
			return retention.ErrAccountNotFound
		}
		return fmt.Errorf("failed to append release: %w", err)
	}
	return nil
}

func (s *Store) ListReleases(ctx context.Context, accountID retention.AccountID) ([]retention.Release, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return listReleases(ctx, s.db, accountID)
}

func listReleases(ctx context.Context, db execer, accountID retention.AccountID) ([]retention.Release, error) {
	rows, err := db.QueryContext(ctx,
		"SELECT "+releaseColumns+" FROM retention_releases WHERE retention_account_id = ? ORDER BY release_date, rowid",
		accountID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var releases []retention.Release
	for rows.Next() {
		var (
			r                   retention.Release
			amount, releaseDate string
			releaseType, notes  sql.NullString
			createdAt           string
		)
		if err := rows.Scan(&r.ID, &r.RetentionAccountID, &r.ReleaseNumber, &amount,
			&releaseDate, &releaseType, &notes, &createdAt); err != nil {
			return nil, err
		}
		r.ReleaseAmount = generic.MustParseDecimal(amount)
		r.ReleaseDate, _ = generic.ParseDate(releaseDate)
		r.ReleaseType = retention.ReleaseType(releaseType.String)
		r.Notes = notes.String
		r.CreatedAt = parseTime(createdAt)
		releases = append(releases, r)
	}
	return releases, rows.Err()
}

func (s *Store) ReleaseNumbers(ctx context.Context, prefix string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return releaseNumbers(ctx, s.db, prefix)
}

func releaseNumbers(ctx context.Context, db execer, prefix string) ([]string, error) {
	rows, err := db.QueryContext(ctx,
		"SELECT release_number FROM retention_releases WHERE substr(release_number, 1, ?) = ? ORDER BY release_number",
		len(prefix), prefix,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var numbers []string
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, err
		}
		numbers = append(numbers, n)
	}
	return numbers, rows.Err()
}

// =============================================================================
// POLICIES
// =============================================================================

const policyColumns = `id, name, description, retention_percentage, tiers_json, release_type,
	defect_liability_period, warranty_period, schedule_json, schedule_anchor,
	is_default, is_active, created_at, updated_at`

func (s *Store) SavePolicy(ctx context.Context, p retention.Policy) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return savePolicy(ctx, s.db, p)
}

func savePolicy(ctx context.Context, db execer, p retention.Policy) error {
	tiersJSON, err := marshalOptional(p.Tiers, len(p.Tiers))
	if err != nil {
		return fmt.Errorf("failed to encode tiers: %w", err)
	}
	scheduleJSON, err := marshalOptional(p.ReleaseSchedule, len(p.ReleaseSchedule))
	if err != nil {
		return fmt.Errorf("failed to encode release schedule: %w", err)
	}

	query := `
		INSERT INTO retention_policies (` + policyColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			description = excluded.description,
			retention_percentage = excluded.retention_percentage,
			tiers_json = excluded.tiers_json,
			release_type = excluded.release_type,
			defect_liability_period = excluded.defect_liability_period,
			warranty_period = excluded.warranty_period,
			schedule_json = excluded.schedule_json,
			schedule_anchor = excluded.schedule_anchor,
			is_default = excluded.is_default,
			is_active = excluded.is_active,
			updated_at = excluded.updated_at
	`

	_, err = db.ExecContext(ctx, query,
		p.ID, p.Name, nullString(p.Description), p.RetentionPercentage.String(), tiersJSON, p.ReleaseType,
		p.DefectLiabilityPeriod, p.WarrantyPeriod, scheduleJSON, nullString(string(p.ScheduleAnchor)),
		p.IsDefault, p.IsActive, formatTime(p.CreatedAt), formatTime(p.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to save policy: %w", err)
	}
	return nil
}

func (s *Store) GetPolicy(ctx context.Context, id retention.PolicyID) (retention.Policy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getPolicy(ctx, s.db, id)
}

func getPolicy(ctx context.Context, db execer, id retention.PolicyID) (retention.Policy, error) {
	row := db.QueryRowContext(ctx, "SELECT "+policyColumns+" FROM retention_policies WHERE id = ?", id)
	p, err := scanPolicy(row)
	if errors.Is(err, sql.ErrNoRows) {
		return retention.Policy{}, retention.ErrPolicyNotFound
	}
	return p, err
}

func (s *Store) ListPolicies(ctx context.Context) ([]retention.Policy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return listPolicies(ctx, s.db)
}

func listPolicies(ctx context.Context, db execer) ([]retention.Policy, error) {
	rows, err := db.QueryContext(ctx, "SELECT "+policyColumns+" FROM retention_policies ORDER BY name")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var policies []retention.Policy
	for rows.Next() {
		p, err := scanPolicy(rows)
		if err != nil {
			return nil, err
		}
		policies = append(policies, p)
	}
	return policies, rows.Err()
}

func scanPolicy(row rowScanner) (retention.Policy, error) {
	var (
		p                                retention.Policy
		description, tiersJSON, schedule sql.NullString
		anchor                           sql.NullString
		percentage, createdAt, updatedAt string
	)
	err := row.Scan(&p.ID, &p.Name, &description, &percentage, &tiersJSON, &p.ReleaseType,
		&p.DefectLiabilityPeriod, &p.WarrantyPeriod, &schedule, &anchor,
		&p.IsDefault, &p.IsActive, &createdAt, &updatedAt)
	if err != nil {
		return retention.Policy{}, err
	}

	p.Description = description.String
	p.RetentionPercentage = generic.MustParseDecimal(percentage)
	p.ScheduleAnchor = retention.ScheduleAnchor(anchor.String)
	if tiersJSON.Valid {
		if err := json.Unmarshal([]byte(tiersJSON.String), &p.Tiers); err != nil {
			return retention.Policy{}, fmt.Errorf("policy %s: bad tiers: %w", p.ID, err)
		}
	}
	if schedule.Valid {
		if err := json.Unmarshal([]byte(schedule.String), &p.ReleaseSchedule); err != nil {
			return retention.Policy{}, fmt.Errorf("policy %s: bad release schedule: %w", p.ID, err)
		}
	}
	p.CreatedAt = parseTime(createdAt)
	p.UpdatedAt = parseTime(updatedAt)
	return p, nil
}

// =============================================================================
// TRANSACTIONAL STORE (retention.TxStore interface)
// =============================================================================

// WithTx executes a function within a database transaction.
func (s *Store) WithTx(ctx context.Context, fn func(store retention.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&txStore{tx: sqlTx}); err != nil {
		return err
	}

	return sqlTx.Commit()
}

type txStore struct {
	tx *sql.Tx
}

func (ts *txStore) CreateAccount(ctx context.Context, a retention.Account) error {
	return createAccount(ctx, ts.tx, a)
}

func (ts *txStore) UpdateAccount(ctx context.Context, a retention.Account) error {
	return updateAccount(ctx, ts.tx, a)
}

func (ts *txStore) GetAccount(ctx context.Context, id retention.AccountID) (retention.Account, error) {
	return getAccount(ctx, ts.tx, id)
}

func (ts *txStore) ListAccounts(ctx context.Context, filter retention.AccountFilter) ([]retention.Account, error) {
	return listAccounts(ctx, ts.tx, filter)
}

func (ts *txStore) DeleteAccount(ctx context.Context, id retention.AccountID) error {
	return deleteAccount(ctx, ts.tx, id)
}

func (ts *txStore) AppendRelease(ctx context.Context, r retention.Release) error {
	return appendRelease(ctx, ts.tx, r)
}

func (ts *txStore) ListReleases(ctx context.Context, accountID retention.AccountID) ([]retention.Release, error) {
	return listReleases(ctx, ts.tx, accountID)
}

func (ts *txStore) ReleaseNumbers(ctx context.Context, prefix string) ([]string, error) {
	return releaseNumbers(ctx, ts.tx, prefix)
}

func (ts *txStore) SavePolicy(ctx context.Context, p retention.Policy) error {
	return savePolicy(ctx, ts.tx, p)
}

func (ts *txStore) GetPolicy(ctx context.Context, id retention.PolicyID) (retention.Policy, error) {
	return getPolicy(ctx, ts.tx, id)
}

func (ts *txStore) ListPolicies(ctx context.Context) ([]retention.Policy, error) {
	return listPolicies(ctx, ts.tx)
}

// =============================================================================
// UTILITIES
// =============================================================================

// Reset clears all data (for testing/demo).
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tables := []string{"retention_releases", "retention_accounts", "retention_policies"}
	for _, table := range tables {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return err
		}
	}
	return nil
}

// Helper functions

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func marshalOptional(v any, n int) (sql.NullString, error) {
	if n == 0 {
		return sql.NullString{}, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(b), Valid: true}, nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		t = time.Now()
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339Nano, s)
	return t
}

func isUniqueConstraintError(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}

func isForeignKeyError(err error) bool {
	var sqliteErr sqlite3.Error
	return errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintForeignKey
}
