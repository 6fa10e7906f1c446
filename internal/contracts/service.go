package contracts

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/currency"

	"github.com/covenant-cm/covenant/internal/authz"
	"github.com/covenant-cm/covenant/internal/shared"
)

// RepositoryPort defines data access methods for contracts.
type RepositoryPort interface {
	Get(ctx context.Context, id string) (Contract, error)
	List(ctx context.Context, f ListFilters, page, perPage int) ([]Contract, int, error)
	Create(ctx context.Context, c Contract) (Contract, error)
	Update(ctx context.Context, c Contract) (Contract, error)
	Delete(ctx context.Context, id string) error
	MarkExpired(ctx context.Context, now time.Time) ([]Expired, error)
	ListExpiringSoon(ctx context.Context, now time.Time, window time.Duration) ([]Contract, error)
}

// Service handles contract business logic.
type Service struct {
	repo     RepositoryPort
	resolver *authz.Resolver
	audit    *shared.AuditLogger
	clock    func() time.Time
}

// NewService builds Service instance. audit may be nil in tests.
func NewService(repo RepositoryPort, resolver *authz.Resolver, audit *shared.AuditLogger) *Service {
	return &Service{
		repo:     repo,
		resolver: resolver,
		audit:    audit,
		clock:    func() time.Time { return time.Now().UTC() },
	}
}

// Get returns one contract the subject may read. Access may be direct,
// inherited through the owning project, or blanket for organization
// scope roles.
func (s *Service) Get(ctx context.Context, sub authz.Subject, id string) (Contract, error) {
	c, err := s.repo.Get(ctx, id)
	if err != nil {
		return Contract{}, err
	}
	if !s.resolver.Allowed(sub, authz.ActionRead, contractRef(c)) {
		return Contract{}, shared.ErrForbidden
	}
	return c, nil
}

// List returns contracts visible to the subject. For assigned scope
// roles the query is restricted to assigned contracts plus contracts
// under assigned projects, mirroring the scope predicate.
func (s *Service) List(ctx context.Context, sub authz.Subject, f ListFilters, page, perPage int) ([]Contract, shared.Pagination, error) {
	if f.OrganizationID == "" {
		f.OrganizationID = sub.OrganizationID
	}
	if !s.resolver.CanAccessOrganization(sub.Role, sub.OrganizationID, f.OrganizationID) {
		return nil, shared.Pagination{}, shared.ErrForbidden
	}
	if !s.resolver.HasPermission(sub.Role, authz.KindContracts, authz.ActionRead) {
		return nil, shared.Pagination{}, shared.ErrForbidden
	}

	if sub.Role == authz.RoleManager || sub.Role == authz.RoleUser {
		f.Restricted = true
		f.ProjectIDs, f.ContractIDs = assignedIDs(sub.Assignments)
		if len(f.ProjectIDs) == 0 && len(f.ContractIDs) == 0 {
			return []Contract{}, shared.NewPagination(page, perPage, 0), nil
		}
	}

	items, total, err := s.repo.List(ctx, f, page, perPage)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return items, shared.NewPagination(page, perPage, total), nil
}

// Create registers a contract. Managers may create contracts under
// their assigned projects; the transitive scope rule makes that work
// without a per-contract assignment.
func (s *Service) Create(ctx context.Context, sub authz.Subject, c Contract) (Contract, error) {
	if err := s.normalize(&c); err != nil {
		return Contract{}, err
	}
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.OrganizationID == "" {
		c.OrganizationID = sub.OrganizationID
	}
	if c.Status == "" {
		c.Status = StatusDraft
	}
	if !s.resolver.Allowed(sub, authz.ActionCreate, contractRef(c)) {
		return Contract{}, shared.ErrForbidden
	}
	created, err := s.repo.Create(ctx, c)
	if err != nil {
		return Contract{}, err
	}
	s.record(ctx, sub, "contract.create", created.ID)
	return created, nil
}

// Update rewrites a contract. Status changes must follow the allowed
// transition table; user-role subjects need an explicit edit
// permission.
func (s *Service) Update(ctx context.Context, sub authz.Subject, c Contract) (Contract, error) {
	if err := s.normalize(&c); err != nil {
		return Contract{}, err
	}
	existing, err := s.repo.Get(ctx, c.ID)
	if err != nil {
		return Contract{}, err
	}
	c.OrganizationID = existing.OrganizationID
	c.ProjectID = existing.ProjectID

	ref := contractRef(existing)
	if !s.resolver.Allowed(sub, authz.ActionUpdate, ref) && !s.resolver.CanModify(sub, ref) {
		return Contract{}, shared.ErrForbidden
	}
	if c.Status == "" {
		c.Status = existing.Status
	}
	if !CanTransition(existing.Status, c.Status) {
		return Contract{}, fmt.Errorf("%w: cannot move contract from %s to %s", shared.ErrValidation, existing.Status, c.Status)
	}
	updated, err := s.repo.Update(ctx, c)
	if err != nil {
		return Contract{}, err
	}
	s.record(ctx, sub, "contract.update", updated.ID)
	return updated, nil
}

// Delete removes a contract the subject may delete.
func (s *Service) Delete(ctx context.Context, sub authz.Subject, id string) error {
	existing, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if !s.resolver.Allowed(sub, authz.ActionDelete, contractRef(existing)) {
		return shared.ErrForbidden
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.record(ctx, sub, "contract.delete", id)
	return nil
}

// ExpireOverdue flips active contracts whose end date has passed.
// Called by the background expiry scan, not by request handlers.
func (s *Service) ExpireOverdue(ctx context.Context) ([]Expired, error) {
	return s.repo.MarkExpired(ctx, s.clock())
}

// ExpiringSoon returns active contracts ending within the window.
func (s *Service) ExpiringSoon(ctx context.Context, window time.Duration) ([]Contract, error) {
	return s.repo.ListExpiringSoon(ctx, s.clock(), window)
}

func (s *Service) record(ctx context.Context, sub authz.Subject, action, entityID string) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  sub.UserID,
		Action:   action,
		Entity:   "contract",
		EntityID: entityID,
	})
}

func (s *Service) normalize(c *Contract) error {
	c.Title = strings.TrimSpace(c.Title)
	if c.Category == "" {
		c.Category = CategoryOther
	}
	if !ValidCategory(c.Category) {
		return fmt.Errorf("%w: unknown contract category %q", shared.ErrValidation, c.Category)
	}
	if c.Status != "" && !ValidStatus(c.Status) {
		return fmt.Errorf("%w: unknown contract status %q", shared.ErrValidation, c.Status)
	}
	if c.Type == "" {
		c.Type = TypeExpense
	}
	if c.Type != TypeIncome && c.Type != TypeExpense {
		return fmt.Errorf("%w: unknown economic type %q", shared.ErrValidation, c.Type)
	}
	if c.Currency != "" {
		unit, err := currency.ParseISO(c.Currency)
		if err != nil {
			return fmt.Errorf("%w: unknown currency %q", shared.ErrValidation, c.Currency)
		}
		c.Currency = unit.String()
	}
	if c.Amount < 0 {
		return fmt.Errorf("%w: amount must not be negative", shared.ErrValidation)
	}
	if !c.EndDate.IsZero() && !c.StartDate.IsZero() && c.EndDate.Before(c.StartDate) {
		return fmt.Errorf("%w: end date precedes start date", shared.ErrValidation)
	}
	return nil
}

func contractRef(c Contract) authz.ResourceRef {
	return authz.ResourceRef{
		Kind:           authz.KindContracts,
		ID:             c.ID,
		OrganizationID: c.OrganizationID,
		ProjectID:      c.ProjectID,
	}
}

func assignedIDs(assignments []authz.Assignment) (projectIDs, contractIDs []string) {
	seenP := make(map[string]struct{})
	seenC := make(map[string]struct{})
	for _, a := range assignments {
		for _, id := range a.ProjectIDs {
			if _, ok := seenP[id]; !ok {
				seenP[id] = struct{}{}
				projectIDs = append(projectIDs, id)
			}
		}
		for _, id := range a.ContractIDs {
			if _, ok := seenC[id]; !ok {
				seenC[id] = struct{}{}
				contractIDs = append(contractIDs, id)
			}
		}
	}
	return projectIDs, contractIDs
}
