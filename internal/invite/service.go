// Package invite implements the invite and claim workflow: issuing program
// invitations (account provisioning, profile upsert, password-set token,
// email dispatch) and claiming a profile after sign-in.
package invite

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/bridgepoint-app/bridgepoint/internal/auth"
	"github.com/bridgepoint-app/bridgepoint/internal/mail"
	"github.com/bridgepoint-app/bridgepoint/internal/metrics"
	"github.com/bridgepoint-app/bridgepoint/internal/store"
)

// Store is the persistence surface the workflow needs.
type Store interface {
	GetAccountByEmail(ctx context.Context, email string) (store.Account, error)
	CreateAccount(ctx context.Context, p store.CreateAccountParams) (store.Account, error)
	GetProfileByEmail(ctx context.Context, kind store.ProfileKind, email string) (store.Profile, error)
	GetProfileByInviteCode(ctx context.Context, kind store.ProfileKind, code string) (store.Profile, error)
	UpsertInviteProfile(ctx context.Context, p store.UpsertInviteProfileParams) (store.Profile, error)
	ClaimProfile(ctx context.Context, p store.ClaimProfileParams) error
	SetProfileInviteCode(ctx context.Context, kind store.ProfileKind, id uuid.UUID, code string) error
	ListProfilesMissingInviteCode(ctx context.Context, kind store.ProfileKind) ([]store.Profile, error)
	CreatePasswordSetupToken(ctx context.Context, p store.CreatePasswordSetupTokenParams) (store.PasswordSetupToken, error)
}

type Options struct {
	BaseURL  string
	TokenTTL time.Duration
	Workers  int
	Logger   *slog.Logger
}

type Service struct {
	store    Store
	mailer   mail.Mailer
	baseURL  string
	tokenTTL time.Duration
	workers  int
	logger   *slog.Logger
	now      func() time.Time
}

func NewService(st Store, mailer mail.Mailer, opts Options) *Service {
	if opts.TokenTTL <= 0 {
		opts.TokenTTL = time.Hour
	}
	if opts.Workers <= 0 {
		opts.Workers = 4
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Service{
		store:    st,
		mailer:   mailer,
		baseURL:  opts.BaseURL,
		tokenTTL: opts.TokenTTL,
		workers:  opts.Workers,
		logger:   opts.Logger,
		now:      time.Now,
	}
}

// User-facing action messages. Claim failures stay deliberately vague about
// internals.
const (
	msgAlreadyClaimed = "This profile has already been claimed."
	msgNoProfile      = "No matching profile was found."
	msgTryAgain       = "Something went wrong. Please try again."
)

type IssueParams struct {
	Email string
	Name  string
	Role  auth.Role
}

// Issued describes a successfully issued invitation.
type Issued struct {
	Email      string
	Role       auth.Role
	InviteCode string
	SetupLink  string
}

func kindForRole(role auth.Role) (store.ProfileKind, bool) {
	switch role {
	case auth.RoleParticipant:
		return store.KindParticipant, true
	case auth.RoleMentor:
		return store.KindMentor, true
	}
	return "", false
}

func roleForKind(kind store.ProfileKind) auth.Role {
	if kind == store.KindMentor {
		return auth.RoleMentor
	}
	return auth.RoleParticipant
}

// Issue provisions everything one invitation needs. It is safe to re-run for
// the same email: the existing account is reused, the profile row is upserted
// by email, and a fresh code and token replace the previous ones.
func (s *Service) Issue(ctx context.Context, p IssueParams) (Issued, error) {
	email := auth.NormalizeEmail(p.Email)
	if email == "" {
		return Issued{}, errors.New("invite: email is required")
	}
	kind, ok := kindForRole(p.Role)
	if !ok {
		return Issued{}, fmt.Errorf("invite: role %q is not invitable", p.Role)
	}

	account, err := s.ensureAccount(ctx, email, p.Role)
	if err != nil {
		metrics.InvitesIssuedTotal.WithLabelValues(string(p.Role), "error").Inc()
		return Issued{}, err
	}

	code, err := NewCode()
	if err != nil {
		metrics.InvitesIssuedTotal.WithLabelValues(string(p.Role), "error").Inc()
		return Issued{}, err
	}
	profile, err := s.store.UpsertInviteProfile(ctx, store.UpsertInviteProfileParams{
		Kind:       kind,
		Email:      email,
		Name:       p.Name,
		InviteCode: code,
	})
	if err != nil {
		metrics.InvitesIssuedTotal.WithLabelValues(string(p.Role), "error").Inc()
		return Issued{}, fmt.Errorf("invite: upsert profile: %w", err)
	}

	rawToken, tokenHash, err := NewSetupToken()
	if err != nil {
		metrics.InvitesIssuedTotal.WithLabelValues(string(p.Role), "error").Inc()
		return Issued{}, err
	}
	if _, err := s.store.CreatePasswordSetupToken(ctx, store.CreatePasswordSetupTokenParams{
		AccountID: account.ID,
		TokenHash: tokenHash,
		ExpiresAt: s.now().Add(s.tokenTTL),
	}); err != nil {
		metrics.InvitesIssuedTotal.WithLabelValues(string(p.Role), "error").Inc()
		return Issued{}, fmt.Errorf("invite: create setup token: %w", err)
	}

	link := s.baseURL + "/invite/accept?token=" + rawToken
	if err := s.mailer.SendInvite(ctx, mail.Invite{
		To:        email,
		Name:      profile.Name,
		Role:      string(p.Role),
		Link:      link,
		Code:      code,
		ExpiresIn: s.tokenTTL,
	}); err != nil {
		metrics.InvitesIssuedTotal.WithLabelValues(string(p.Role), "error").Inc()
		return Issued{}, fmt.Errorf("invite: send email: %w", err)
	}

	metrics.InvitesIssuedTotal.WithLabelValues(string(p.Role), "ok").Inc()
	s.logger.Info("invite issued", "email", email, "role", string(p.Role))
	return Issued{Email: email, Role: p.Role, InviteCode: code, SetupLink: link}, nil
}

// ensureAccount reuses the directory account for the email or creates one
// with an unusable random password; the invitee sets a real password through
// the token link. A create that loses a concurrent race falls back to the
// winner's row.
func (s *Service) ensureAccount(ctx context.Context, email string, role auth.Role) (store.Account, error) {
	account, err := s.store.GetAccountByEmail(ctx, email)
	if err == nil {
		return account, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return store.Account{}, fmt.Errorf("invite: lookup account: %w", err)
	}

	placeholder, err := NewCode()
	if err != nil {
		return store.Account{}, err
	}
	hash, err := auth.HashPassword(placeholder)
	if err != nil {
		return store.Account{}, err
	}
	account, err = s.store.CreateAccount(ctx, store.CreateAccountParams{
		Email:        email,
		PasswordHash: hash,
		Role:         string(role),
		IsActive:     true,
	})
	if err != nil {
		if store.IsUniqueViolation(err) {
			return s.store.GetAccountByEmail(ctx, email)
		}
		return store.Account{}, fmt.Errorf("invite: create account: %w", err)
	}
	return account, nil
}

// IssueResult is the per-recipient outcome of a bulk issue.
type IssueResult struct {
	Email   string `json:"email"`
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// IssueBulk issues invitations concurrently with a bounded worker count.
// One failing recipient never aborts the rest; every input yields a result
// at the matching index.
func (s *Service) IssueBulk(ctx context.Context, items []IssueParams) []IssueResult {
	results := make([]IssueResult, len(items))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for i, item := range items {
		g.Go(func() error {
			email := auth.NormalizeEmail(item.Email)
			if _, err := s.Issue(ctx, item); err != nil {
				s.logger.Error("bulk invite failed", "email", email, "error", err)
				results[i] = IssueResult{Email: email, Error: msgTryAgain}
				return nil
			}
			results[i] = IssueResult{Email: email, Success: true}
			return nil
		})
	}
	g.Wait()
	return results
}

type ClaimParams struct {
	AccountID  int64
	Email      string
	InviteCode string
}

// ClaimResult is the action-shaped outcome of a claim attempt.
type ClaimResult struct {
	Success bool      `json:"success"`
	Role    auth.Role `json:"role,omitempty"`
	Error   string    `json:"error,omitempty"`
}

// Claim links the signed-in account to its program profile. Matching order:
// participant by email, mentor by email, then participant by invite code,
// mentor by invite code. Re-claiming a profile already linked to the same
// account succeeds; a profile linked to a different account is a conflict.
func (s *Service) Claim(ctx context.Context, p ClaimParams) ClaimResult {
	email := auth.NormalizeEmail(p.Email)

	profile, found, err := s.matchProfile(ctx, email, p.InviteCode)
	if err != nil {
		s.logger.Error("claim lookup failed", "email", email, "error", err)
		metrics.ClaimsTotal.WithLabelValues("error").Inc()
		return ClaimResult{Error: msgTryAgain}
	}
	if !found {
		metrics.ClaimsTotal.WithLabelValues("no_match").Inc()
		return ClaimResult{Error: msgNoProfile}
	}
	if profile.AccountID != nil && *profile.AccountID != p.AccountID {
		metrics.ClaimsTotal.WithLabelValues("conflict").Inc()
		return ClaimResult{Error: msgAlreadyClaimed}
	}

	err = s.store.ClaimProfile(ctx, store.ClaimProfileParams{
		Kind:        profile.Kind,
		ID:          profile.ID,
		AccountID:   p.AccountID,
		AuthEmail:   email,
		LastLoginAt: s.now(),
	})
	if err != nil {
		// A zero-row update means another account won the claim between the
		// read and the write.
		if errors.Is(err, store.ErrNotFound) {
			metrics.ClaimsTotal.WithLabelValues("conflict").Inc()
			return ClaimResult{Error: msgAlreadyClaimed}
		}
		s.logger.Error("claim write failed", "email", email, "error", err)
		metrics.ClaimsTotal.WithLabelValues("error").Inc()
		return ClaimResult{Error: msgTryAgain}
	}

	role := roleForKind(profile.Kind)
	metrics.ClaimsTotal.WithLabelValues("success").Inc()
	s.logger.Info("profile claimed", "email", email, "role", string(role))
	return ClaimResult{Success: true, Role: role}
}

func (s *Service) matchProfile(ctx context.Context, email, code string) (store.Profile, bool, error) {
	if email != "" {
		for _, kind := range store.ProfileKinds {
			p, err := s.store.GetProfileByEmail(ctx, kind, email)
			if err == nil {
				return p, true, nil
			}
			if !errors.Is(err, store.ErrNotFound) {
				return store.Profile{}, false, err
			}
		}
	}
	if code != "" {
		for _, kind := range store.ProfileKinds {
			p, err := s.store.GetProfileByInviteCode(ctx, kind, code)
			if err == nil {
				return p, true, nil
			}
			if !errors.Is(err, store.ErrNotFound) {
				return store.Profile{}, false, err
			}
		}
	}
	return store.Profile{}, false, nil
}

// BackfillSummary reports one backfill run.
type BackfillSummary struct {
	Updated int
	Failed  int
}

// BackfillCodes assigns invite codes to profiles that predate code issuance.
// Safe to re-run; rows that already carry a code are untouched.
func (s *Service) BackfillCodes(ctx context.Context) (BackfillSummary, error) {
	var summary BackfillSummary
	for _, kind := range store.ProfileKinds {
		profiles, err := s.store.ListProfilesMissingInviteCode(ctx, kind)
		if err != nil {
			return summary, fmt.Errorf("invite: list %s profiles: %w", kind, err)
		}
		for _, p := range profiles {
			code, err := NewCode()
			if err != nil {
				return summary, err
			}
			if err := s.store.SetProfileInviteCode(ctx, kind, p.ID, code); err != nil {
				s.logger.Error("backfill code failed", "kind", string(kind), "email", p.Email, "error", err)
				summary.Failed++
				continue
			}
			summary.Updated++
		}
	}
	return summary, nil
}
