// Package memory provides an in-memory retention.TxStore (for testing/dev).
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/warp/retention-engine/retention"
)

// =============================================================================
// MEMORY STORE
// =============================================================================

type Store struct {
	mu    sync.RWMutex
	state state
}

type state struct {
	accounts       map[retention.AccountID]retention.Account
	releases       map[retention.AccountID][]retention.Release
	releaseNumbers map[string]bool
	policies       map[retention.PolicyID]retention.Policy
}

func newState() state {
	return state{
		accounts:       make(map[retention.AccountID]retention.Account),
		releases:       make(map[retention.AccountID][]retention.Release),
		releaseNumbers: make(map[string]bool),
		policies:       make(map[retention.PolicyID]retention.Policy),
	}
}

func New() *Store {
	return &Store{state: newState()}
}

var _ retention.TxStore = (*Store)(nil)

func (m *Store) CreateAccount(ctx context.Context, a retention.Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.createAccount(a)
}

func (m *Store) UpdateAccount(ctx context.Context, a retention.Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.updateAccount(a)
}

func (m *Store) GetAccount(ctx context.Context, id retention.AccountID) (retention.Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.getAccount(id)
}

func (m *Store) ListAccounts(ctx context.Context, filter retention.AccountFilter) ([]retention.Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.listAccounts(filter), nil
}

func (m *Store) DeleteAccount(ctx context.Context, id retention.AccountID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.deleteAccount(id)
}

func (m *Store) AppendRelease(ctx context.Context, r retention.Release) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.appendRelease(r)
}

func (m *Store) ListReleases(ctx context.Context, id retention.AccountID) ([]retention.Release, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.listReleases(id), nil
}

func (m *Store) ReleaseNumbers(ctx context.Context, prefix string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.numbers(prefix), nil
}

func (m *Store) SavePolicy(ctx context.Context, p retention.Policy) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.policies[p.ID] = p
	return nil
}

func (m *Store) GetPolicy(ctx context.Context, id retention.PolicyID) (retention.Policy, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.getPolicy(id)
}

func (m *Store) ListPolicies(ctx context.Context) ([]retention.Policy, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.listPolicies(), nil
}

// Reset clears all data.
func (m *Store) Reset(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = newState()
	return nil
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

// WithTx executes fn within a transaction.
// For memory store, this is simulated with a snapshot + rollback on error.
// The write lock is held for the whole of fn, which serialises transactions.
func (m *Store) WithTx(ctx context.Context, fn func(retention.Store) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	snapshot := m.state.clone()
	if err := fn(&txView{s: &m.state}); err != nil {
		m.state = snapshot
		return err
	}
	return nil
}

// txView runs against the locked state without re-acquiring the mutex.
type txView struct {
	s *state
}

func (v *txView) CreateAccount(_ context.Context, a retention.Account) error {
	return v.s.createAccount(a)
}
func (v *txView) UpdateAccount(_ context.Context, a retention.Account) error {
	return v.s.updateAccount(a)
}
func (v *txView) GetAccount(_ context.Context, id retention.AccountID) (retention.Account, error) {
	return v.s.getAccount(id)
}
func (v *txView) ListAccounts(_ context.Context, f retention.AccountFilter) ([]retention.Account, error) {
	return v.s.listAccounts(f), nil
}
func (v *txView) DeleteAccount(_ context.Context, id retention.AccountID) error {
	return v.s.deleteAccount(id)
}
func (v *txView) AppendRelease(_ context.Context, r retention.Release) error {
	return v.s.appendRelease(r)
}
func (v *txView) ListReleases(_ context.Context, id retention.AccountID) ([]retention.Release, error) {
	return v.s.listReleases(id), nil
}
func (v *txView) ReleaseNumbers(_ context.Context, prefix string) ([]string, error) {
	return v.s.numbers(prefix), nil
}
func (v *txView) SavePolicy(_ context.Context, p retention.Policy) error {
	v.s.policies[p.ID] = p
	return nil
}
func (v *txView) GetPolicy(_ context.Context, id retention.PolicyID) (retention.Policy, error) {
	return v.s.getPolicy(id)
}
func (v *txView) ListPolicies(_ context.Context) ([]retention.Policy, error) {
	return v.s.listPolicies(), nil
}

// =============================================================================
// STATE OPERATIONS (caller holds the lock)
// =============================================================================

func (s *state) createAccount(a retention.Account) error {
	if _, ok := s.accounts[a.ID]; ok {
		return retention.ErrDuplicateID
	}
	s.accounts[a.ID] = a
	return nil
}

func (s *state) updateAccount(a retention.Account) error {
	stored, ok := s.accounts[a.ID]
	if !ok {
		return retention.ErrAccountNotFound
	}
	if stored.Version != a.Version {
		return retention.ErrConcurrentModification
	}
	a.Version++
	s.accounts[a.ID] = a
	return nil
}

func (s *state) getAccount(id retention.AccountID) (retention.Account, error) {
	a, ok := s.accounts[id]
	if !ok {
		return retention.Account{}, retention.ErrAccountNotFound
	}
	return a, nil
}

func (s *state) listAccounts(filter retention.AccountFilter) []retention.Account {
	result := make([]retention.Account, 0, len(s.accounts))
	for _, a := range s.accounts {
		if filter.Matches(a) {
			result = append(result, a)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].RetentionDate.Equal(result[j].RetentionDate) {
			return result[i].RetentionDate.Before(result[j].RetentionDate)
		}
		return result[i].ID < result[j].ID
	})
	return result
}

func (s *state) deleteAccount(id retention.AccountID) error {
	if _, ok := s.accounts[id]; !ok {
		return retention.ErrAccountNotFound
	}
	delete(s.accounts, id)
	return nil
}

func (s *state) appendRelease(r retention.Release) error {
	if s.releaseNumbers[r.ReleaseNumber] {
		return retention.ErrDuplicateReleaseNumber
	}
	rs := s.releases[r.RetentionAccountID]

	// Keep ordered by release date; equal dates keep insertion order.
	i := sort.Search(len(rs), func(i int) bool {
		return rs[i].ReleaseDate.After(r.ReleaseDate)
	})
	rs = append(rs, retention.Release{})
	copy(rs[i+1:], rs[i:])
	rs[i] = r
	s.releases[r.RetentionAccountID] = rs

	s.releaseNumbers[r.ReleaseNumber] = true
	return nil
}

func (s *state) listReleases(id retention.AccountID) []retention.Release {
	return append([]retention.Release(nil), s.releases[id]...)
}

func (s *state) numbers(prefix string) []string {
	var out []string
	for n := range s.releaseNumbers {
		if strings.HasPrefix(n, prefix) {
			out = append(out, n)
		}
	}
	sort.Strings(out)
	return out
}

func (s *state) getPolicy(id retention.PolicyID) (retention.Policy, error) {
	p, ok := s.policies[id]
	if !ok {
		return retention.Policy{}, retention.ErrPolicyNotFound
	}
	return p, nil
}

func (s *state) listPolicies() []retention.Policy {
	result := make([]retention.Policy, 0, len(s.policies))
	for _, p := range s.policies {
		result = append(result, p)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result
}

func (s *state) clone() state {
	c := newState()
	for k, v := range s.accounts {
		c.accounts[k] = v
	}
	for k, v := range s.releases {
		c.releases[k] = append([]retention.Release(nil), v...)
	}
	for k, v := range s.releaseNumbers {
		c.releaseNumbers[k] = v
	}
	for k, v := range s.policies {
		c.policies[k] = v
	}
	return c
}
