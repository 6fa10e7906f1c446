package orgs

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/covenant-cm/covenant/internal/authz"
	"github.com/covenant-cm/covenant/internal/shared"
)

// RepositoryPort defines data access methods for organizations.
type RepositoryPort interface {
	Get(ctx context.Context, id string) (Organization, error)
	List(ctx context.Context, onlyID string, page, perPage int) ([]Organization, int, error)
	Create(ctx context.Context, org Organization) (Organization, error)
	Update(ctx context.Context, org Organization) (Organization, error)
	Delete(ctx context.Context, id string) error
}

// Service handles organization business logic. Every operation takes
// the acting subject and enforces the authorization rules before
// touching storage.
type Service struct {
	repo     RepositoryPort
	resolver *authz.Resolver
	audit    *shared.AuditLogger
}

// NewService builds Service instance. audit may be nil in tests.
func NewService(repo RepositoryPort, resolver *authz.Resolver, audit *shared.AuditLogger) *Service {
	return &Service{repo: repo, resolver: resolver, audit: audit}
}

// Get returns one organization the subject may read.
func (s *Service) Get(ctx context.Context, sub authz.Subject, id string) (Organization, error) {
	if !s.resolver.Allowed(sub, authz.ActionRead, orgRef(id)) {
		return Organization{}, shared.ErrForbidden
	}
	return s.repo.Get(ctx, id)
}

// List returns organizations visible to the subject. Global roles see
// everything; everyone else sees only their own organization.
func (s *Service) List(ctx context.Context, sub authz.Subject, page, perPage int) ([]Organization, shared.Pagination, error) {
	if !s.resolver.HasPermission(sub.Role, authz.KindOrganizations, authz.ActionRead) {
		return nil, shared.Pagination{}, shared.ErrForbidden
	}
	onlyID := sub.OrganizationID
	if sub.Role == authz.RoleSuperAdmin {
		onlyID = ""
	}
	items, total, err := s.repo.List(ctx, onlyID, page, perPage)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return items, shared.NewPagination(page, perPage, total), nil
}

// Create registers a new organization.
func (s *Service) Create(ctx context.Context, sub authz.Subject, org Organization) (Organization, error) {
	org.Name = strings.TrimSpace(org.Name)
	if org.ID == "" {
		org.ID = uuid.NewString()
	}
	if !s.resolver.Allowed(sub, authz.ActionCreate, orgRef(org.ID)) {
		return Organization{}, shared.ErrForbidden
	}
	created, err := s.repo.Create(ctx, org)
	if err != nil {
		return Organization{}, err
	}
	s.record(ctx, sub, "organization.create", created.ID)
	return created, nil
}

// Update rewrites an organization the subject may update.
func (s *Service) Update(ctx context.Context, sub authz.Subject, org Organization) (Organization, error) {
	org.Name = strings.TrimSpace(org.Name)
	if !s.resolver.Allowed(sub, authz.ActionUpdate, orgRef(org.ID)) {
		return Organization{}, shared.ErrForbidden
	}
	updated, err := s.repo.Update(ctx, org)
	if err != nil {
		return Organization{}, err
	}
	s.record(ctx, sub, "organization.update", updated.ID)
	return updated, nil
}

// Delete removes an organization; only global scope roles hold delete.
func (s *Service) Delete(ctx context.Context, sub authz.Subject, id string) error {
	if !s.resolver.Allowed(sub, authz.ActionDelete, orgRef(id)) {
		return shared.ErrForbidden
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.record(ctx, sub, "organization.delete", id)
	return nil
}

func (s *Service) record(ctx context.Context, sub authz.Subject, action, entityID string) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  sub.UserID,
		Action:   action,
		Entity:   "organization",
		EntityID: entityID,
	})
}

func orgRef(id string) authz.ResourceRef {
	return authz.ResourceRef{Kind: authz.KindOrganizations, ID: id, OrganizationID: id}
}
