package settings

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/text/currency"
	"golang.org/x/text/language"

	"github.com/covenant-cm/covenant/internal/authz"
	"github.com/covenant-cm/covenant/internal/shared"
)

// RepositoryPort defines data access methods for settings.
type RepositoryPort interface {
	Get(ctx context.Context, orgID string) (Settings, error)
	Upsert(ctx context.Context, s Settings) (Settings, error)
}

// Service handles settings business logic.
type Service struct {
	repo     RepositoryPort
	resolver *authz.Resolver
	audit    *shared.AuditLogger
}

// NewService builds Service instance. audit may be nil in tests.
func NewService(repo RepositoryPort, resolver *authz.Resolver, audit *shared.AuditLogger) *Service {
	return &Service{repo: repo, resolver: resolver, audit: audit}
}

// Get returns the settings of an organization, falling back to the
// defaults when nothing was saved yet.
func (s *Service) Get(ctx context.Context, sub authz.Subject, orgID string) (Settings, error) {
	if orgID == "" {
		orgID = sub.OrganizationID
	}
	if !s.allowed(sub, authz.ActionRead, orgID) {
		return Settings{}, shared.ErrForbidden
	}
	stored, err := s.repo.Get(ctx, orgID)
	if errors.Is(err, shared.ErrNotFound) {
		return Defaults(orgID), nil
	}
	if err != nil {
		return Settings{}, err
	}
	return stored, nil
}

// Update validates and saves the settings of an organization.
func (s *Service) Update(ctx context.Context, sub authz.Subject, in Settings) (Settings, error) {
	if in.OrganizationID == "" {
		in.OrganizationID = sub.OrganizationID
	}
	if !s.allowed(sub, authz.ActionUpdate, in.OrganizationID) {
		return Settings{}, shared.ErrForbidden
	}
	if err := validate(&in); err != nil {
		return Settings{}, err
	}
	saved, err := s.repo.Upsert(ctx, in)
	if err != nil {
		return Settings{}, err
	}
	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			ActorID:  sub.UserID,
			Action:   "settings.update",
			Entity:   "organization_settings",
			EntityID: saved.OrganizationID,
		})
	}
	return saved, nil
}

// ExpiryWindow returns the warning window of an organization in days,
// read without an authorization check for background jobs.
func (s *Service) ExpiryWindow(ctx context.Context, orgID string) (int, bool, error) {
	stored, err := s.repo.Get(ctx, orgID)
	if errors.Is(err, shared.ErrNotFound) {
		d := Defaults(orgID)
		return d.ExpiryWarningDays, d.NotifyOnExpiry, nil
	}
	if err != nil {
		return 0, false, err
	}
	return stored.ExpiryWarningDays, stored.NotifyOnExpiry, nil
}

func (s *Service) allowed(sub authz.Subject, action authz.Action, orgID string) bool {
	if !s.resolver.CanAccessOrganization(sub.Role, sub.OrganizationID, orgID) {
		return false
	}
	return s.resolver.HasPermission(sub.Role, authz.KindSettings, action)
}

func validate(in *Settings) error {
	if in.DefaultCurrency != "" {
		unit, err := currency.ParseISO(in.DefaultCurrency)
		if err != nil {
			return fmt.Errorf("%w: unknown currency %q", shared.ErrValidation, in.DefaultCurrency)
		}
		in.DefaultCurrency = unit.String()
	} else {
		in.DefaultCurrency = Defaults("").DefaultCurrency
	}
	if in.Locale != "" {
		tag, err := language.Parse(in.Locale)
		if err != nil {
			return fmt.Errorf("%w: unknown locale %q", shared.ErrValidation, in.Locale)
		}
		in.Locale = tag.String()
	} else {
		in.Locale = Defaults("").Locale
	}
	if in.ExpiryWarningDays < 1 || in.ExpiryWarningDays > 365 {
		return fmt.Errorf("%w: expiry warning days must be between 1 and 365", shared.ErrValidation)
	}
	return nil
}
