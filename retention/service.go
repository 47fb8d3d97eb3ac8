/*
service.go - Persistence boundary around the pure engine

PURPOSE:
  Service is the caller the engine assumes: it reads authoritative state
  from a TxStore, runs the pure functions, and writes the results back.

WHY A TRANSACTION PER RELEASE:
  ValidateRetentionRelease trusts the releases it is given. If two release
  requests read the same balance concurrently, both would pass. SubmitRelease
  therefore runs
    load account -> load releases -> validate -> append release -> update account
  inside WithTx, and UpdateAccount's version check rejects a writer that
  raced past the transaction boundary (ErrConcurrentModification).

DELETION:
  DeleteAccount refuses accounts that have releases; deleting them would
  orphan release history.
*/
package retention

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/warp/retention-engine/generic"
)

// Service coordinates the engine with a store.
type Service struct {
	store  TxStore
	logger *zap.Logger

	// Today and NewID are replaceable for tests.
	Today func() generic.TimePoint
	NewID func() string
}

// NewService creates a service. A nil logger disables logging.
func NewService(store TxStore, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		store:  store,
		logger: logger.Named("retention"),
		Today:  generic.Today,
		NewID:  uuid.NewString,
	}
}

// =============================================================================
// ACCOUNTS
// =============================================================================

// CreateAccount validates in, snapshots the retention amount and persists the
// account. When in.Policy is nil but policyID is set, the policy is loaded.
func (s *Service) CreateAccount(ctx context.Context, in AccountInput, policyID PolicyID) (Account, error) {
	if in.Policy == nil && policyID != "" {
		p, err := s.store.GetPolicy(ctx, policyID)
		if err != nil {
			return Account{}, err
		}
		if !p.IsActive {
			return Account{}, fmt.Errorf("%w: %s", ErrPolicyInactive, p.ID)
		}
		in.Policy = &p
	}

	account, result := NewAccount(in, s.Today())
	if !result.Valid {
		return Account{}, &ValidationError{Subject: "account", Errors: result.Errors}
	}
	if account.ID == "" {
		account.ID = AccountID(s.NewID())
	}
	now := time.Now().UTC()
	account.CreatedAt, account.UpdatedAt = now, now
	account.Version = 1

	if err := s.store.CreateAccount(ctx, account); err != nil {
		return Account{}, err
	}

	s.logger.Info("retention account created",
		zap.String("account_id", string(account.ID)),
		zap.String("project_id", account.ProjectID),
		zap.String("retention_amount", account.RetentionAmount.StringFixed(2)),
		zap.String("scheduled_release", account.ScheduledReleaseDate.String()),
	)
	return account, nil
}

func (s *Service) GetAccount(ctx context.Context, id AccountID) (Account, error) {
	return s.store.GetAccount(ctx, id)
}

func (s *Service) ListAccounts(ctx context.Context, filter AccountFilter) ([]Account, error) {
	return s.store.ListAccounts(ctx, filter)
}

func (s *Service) ListReleases(ctx context.Context, id AccountID) ([]Release, error) {
	if _, err := s.store.GetAccount(ctx, id); err != nil {
		return nil, err
	}
	return s.store.ListReleases(ctx, id)
}

// DeleteAccount removes an account that has no releases.
func (s *Service) DeleteAccount(ctx context.Context, id AccountID) error {
	return s.store.WithTx(ctx, func(st Store) error {
		if _, err := st.GetAccount(ctx, id); err != nil {
			return err
		}
		releases, err := st.ListReleases(ctx, id)
		if err != nil {
			return err
		}
		if len(releases) > 0 {
			return &AccountHasReleasesError{AccountID: id, Releases: len(releases)}
		}
		if err := st.DeleteAccount(ctx, id); err != nil {
			return err
		}
		s.logger.Info("retention account deleted", zap.String("account_id", string(id)))
		return nil
	})
}

// ForfeitAccount moves an account to FORFEITED. Forfeiting twice is an error.
func (s *Service) ForfeitAccount(ctx context.Context, id AccountID, reason string) (Account, error) {
	var out Account
	err := s.store.WithTx(ctx, func(st Store) error {
		account, err := st.GetAccount(ctx, id)
		if err != nil {
			return err
		}
		if account.Status == StatusForfeited {
			return fmt.Errorf("%w: %s", ErrAccountForfeited, id)
		}

		account = Forfeit(account, s.Today(), reason)
		account.UpdatedAt = time.Now().UTC()
		if err := st.UpdateAccount(ctx, account); err != nil {
			return err
		}
		account.Version++
		out = account
		return nil
	})
	if err != nil {
		return Account{}, err
	}

	s.logger.Warn("retention forfeited",
		zap.String("account_id", string(id)),
		zap.String("balance", out.BalanceAmount.StringFixed(2)),
		zap.String("reason", reason),
	)
	return out, nil
}

// =============================================================================
// RELEASES
// =============================================================================

// ReleaseInput describes a requested release.
type ReleaseInput struct {
	ReleaseNumber string // generated when empty
	ReleaseAmount generic.FlexAmount
	ReleaseDate   generic.TimePoint
	ReleaseType   ReleaseType
	Notes         string
}

// SubmitRelease validates and records a release against the account's
// balance as it stands inside the transaction.
func (s *Service) SubmitRelease(ctx context.Context, id AccountID, in ReleaseInput) (Account, Release, error) {
	var (
		outAccount Account
		outRelease Release
	)

	err := s.store.WithTx(ctx, func(st Store) error {
		account, err := st.GetAccount(ctx, id)
		if err != nil {
			return err
		}
		existing, err := st.ListReleases(ctx, id)
		if err != nil {
			return err
		}

		release := Release{
			ID:                 ReleaseID(s.NewID()),
			RetentionAccountID: id,
			ReleaseNumber:      in.ReleaseNumber,
			ReleaseAmount:      in.ReleaseAmount.Decimal,
			ReleaseDate:        in.ReleaseDate,
			ReleaseType:        in.ReleaseType,
			Notes:              in.Notes,
			CreatedAt:          time.Now().UTC(),
		}

		updated, releases, result := ApplyRelease(account, existing, release)
		if !result.Valid {
			return &ReleaseRejectedError{AccountID: id, Errors: result.Errors}
		}
		release = releases[len(releases)-1]

		if release.ReleaseNumber == "" {
			today := s.Today()
			numbers, err := st.ReleaseNumbers(ctx, ReleaseNumberPrefix(today))
			if err != nil {
				return err
			}
			release.ReleaseNumber = GenerateReleaseNumber(numbers, today)
		}

		if err := st.AppendRelease(ctx, release); err != nil {
			return err
		}
		updated.UpdatedAt = time.Now().UTC()
		if err := st.UpdateAccount(ctx, updated); err != nil {
			return err
		}
		updated.Version++

		outAccount, outRelease = updated, release
		return nil
	})
	if err != nil {
		var rejected *ReleaseRejectedError
		if errors.As(err, &rejected) {
			s.logger.Info("release rejected",
				zap.String("account_id", string(id)),
				zap.Strings("errors", rejected.Errors),
			)
		}
		return Account{}, Release{}, err
	}

	s.logger.Info("release recorded",
		zap.String("account_id", string(id)),
		zap.String("release_number", outRelease.ReleaseNumber),
		zap.String("amount", outRelease.ReleaseAmount.StringFixed(2)),
		zap.String("balance", outAccount.BalanceAmount.StringFixed(2)),
		zap.String("status", string(outAccount.Status)),
	)
	return outAccount, outRelease, nil
}

// =============================================================================
// SCHEDULES AND REPORTS
// =============================================================================

// Schedule expands the release schedule for an account. policyID overrides
// the account's own policy; with neither, the account's terms are used.
func (s *Service) Schedule(ctx context.Context, id AccountID, policyID PolicyID) ([]ScheduledTranche, error) {
	account, err := s.store.GetAccount(ctx, id)
	if err != nil {
		return nil, err
	}
	if policyID == "" {
		policyID = account.PolicyID
	}

	var policy Policy
	if policyID != "" {
		if policy, err = s.store.GetPolicy(ctx, policyID); err != nil {
			return nil, err
		}
	}
	return GenerateReleaseSchedule(account, policy), nil
}

func (s *Service) Aging(ctx context.Context, filter AccountFilter) (Aging, error) {
	accounts, err := s.store.ListAccounts(ctx, filter)
	if err != nil {
		return Aging{}, err
	}
	return GetRetentionAging(accounts, s.Today()), nil
}

func (s *Service) Summary(ctx context.Context, filter AccountFilter) (Summary, error) {
	accounts, err := s.store.ListAccounts(ctx, filter)
	if err != nil {
		return Summary{}, err
	}
	return CalculateRetentionSummary(accounts), nil
}

// Alerts derives alerts as of today for the accounts matching filter.
func (s *Service) Alerts(ctx context.Context, filter AccountFilter, opts AlertOptions) ([]Alert, error) {
	accounts, err := s.store.ListAccounts(ctx, filter)
	if err != nil {
		return nil, err
	}
	return DeriveAlerts(accounts, s.Today(), opts), nil
}

// =============================================================================
// POLICIES
// =============================================================================

// SavePolicy validates and stores a policy. Marking a policy default clears
// the flag on every other policy.
func (s *Service) SavePolicy(ctx context.Context, p Policy) (Policy, error) {
	if result := ValidateRetentionPolicy(p); !result.Valid {
		return Policy{}, &ValidationError{Subject: "policy", Errors: result.Errors}
	}
	if p.ID == "" {
		p.ID = PolicyID(s.NewID())
	}
	now := time.Now().UTC()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now

	err := s.store.WithTx(ctx, func(st Store) error {
		if p.IsDefault {
			others, err := st.ListPolicies(ctx)
			if err != nil {
				return err
			}
			for _, other := range others {
				if other.ID != p.ID && other.IsDefault {
					other.IsDefault = false
					other.UpdatedAt = now
					if err := st.SavePolicy(ctx, other); err != nil {
						return err
					}
				}
			}
		}
		return st.SavePolicy(ctx, p)
	})
	if err != nil {
		return Policy{}, err
	}

	s.logger.Info("retention policy saved", zap.String("policy_id", string(p.ID)), zap.String("name", p.Name))
	return p, nil
}

func (s *Service) GetPolicy(ctx context.Context, id PolicyID) (Policy, error) {
	return s.store.GetPolicy(ctx, id)
}

func (s *Service) ListPolicies(ctx context.Context) ([]Policy, error) {
	return s.store.ListPolicies(ctx)
}

// DefaultPolicy returns the active policy flagged default.
func (s *Service) DefaultPolicy(ctx context.Context) (Policy, error) {
	policies, err := s.store.ListPolicies(ctx)
	if err != nil {
		return Policy{}, err
	}
	for _, p := range policies {
		if p.IsDefault && p.IsActive {
			return p, nil
		}
	}
	return Policy{}, ErrPolicyNotFound
}
