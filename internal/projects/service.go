package projects

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/covenant-cm/covenant/internal/authz"
	"github.com/covenant-cm/covenant/internal/shared"
)

// RepositoryPort defines data access methods for projects.
type RepositoryPort interface {
	Get(ctx context.Context, id string) (Project, error)
	List(ctx context.Context, f ListFilters, page, perPage int) ([]Project, int, error)
	Create(ctx context.Context, p Project) (Project, error)
	Update(ctx context.Context, p Project) (Project, error)
	Delete(ctx context.Context, id string) error
}

// Service handles project business logic.
type Service struct {
	repo     RepositoryPort
	resolver *authz.Resolver
	audit    *shared.AuditLogger
}

// NewService builds Service instance. audit may be nil in tests.
func NewService(repo RepositoryPort, resolver *authz.Resolver, audit *shared.AuditLogger) *Service {
	return &Service{repo: repo, resolver: resolver, audit: audit}
}

// Get returns one project the subject may read. The authorization check
// runs against the stored organization, not caller supplied input.
func (s *Service) Get(ctx context.Context, sub authz.Subject, id string) (Project, error) {
	p, err := s.repo.Get(ctx, id)
	if err != nil {
		return Project{}, err
	}
	if !s.resolver.Allowed(sub, authz.ActionRead, projectRef(p)) {
		return Project{}, shared.ErrForbidden
	}
	return p, nil
}

// List returns projects visible to the subject. Assigned scope roles
// are narrowed to their assigned project ids before the query runs.
func (s *Service) List(ctx context.Context, sub authz.Subject, orgID string, status Status, page, perPage int) ([]Project, shared.Pagination, error) {
	if orgID == "" {
		orgID = sub.OrganizationID
	}
	if !s.resolver.CanAccessOrganization(sub.Role, sub.OrganizationID, orgID) {
		return nil, shared.Pagination{}, shared.ErrForbidden
	}
	if !s.resolver.HasPermission(sub.Role, authz.KindProjects, authz.ActionRead) {
		return nil, shared.Pagination{}, shared.ErrForbidden
	}

	filters := ListFilters{OrganizationID: orgID, Status: status}
	if sub.Role == authz.RoleManager || sub.Role == authz.RoleUser {
		ids := assignedProjectIDs(sub.Assignments)
		if len(ids) == 0 {
			return []Project{}, shared.NewPagination(page, perPage, 0), nil
		}
		filters.IDs = ids
	}

	items, total, err := s.repo.List(ctx, filters, page, perPage)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return items, shared.NewPagination(page, perPage, total), nil
}

// Create registers a project in the given organization.
func (s *Service) Create(ctx context.Context, sub authz.Subject, p Project) (Project, error) {
	if err := normalize(&p); err != nil {
		return Project{}, err
	}
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.OrganizationID == "" {
		p.OrganizationID = sub.OrganizationID
	}
	if !s.resolver.Allowed(sub, authz.ActionCreate, projectRef(p)) {
		return Project{}, shared.ErrForbidden
	}
	created, err := s.repo.Create(ctx, p)
	if err != nil {
		return Project{}, err
	}
	s.record(ctx, sub, "project.create", created.ID)
	return created, nil
}

// Update rewrites a project. For user-role subjects an explicit edit
// permission on the project is required even when it is visible.
func (s *Service) Update(ctx context.Context, sub authz.Subject, p Project) (Project, error) {
	if err := normalize(&p); err != nil {
		return Project{}, err
	}
	existing, err := s.repo.Get(ctx, p.ID)
	if err != nil {
		return Project{}, err
	}
	p.OrganizationID = existing.OrganizationID
	ref := projectRef(existing)
	if !s.resolver.Allowed(sub, authz.ActionUpdate, ref) && !s.resolver.CanModify(sub, ref) {
		return Project{}, shared.ErrForbidden
	}
	updated, err := s.repo.Update(ctx, p)
	if err != nil {
		return Project{}, err
	}
	s.record(ctx, sub, "project.update", updated.ID)
	return updated, nil
}

// Delete removes a project the subject may delete.
func (s *Service) Delete(ctx context.Context, sub authz.Subject, id string) error {
	existing, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if !s.resolver.Allowed(sub, authz.ActionDelete, projectRef(existing)) {
		return shared.ErrForbidden
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.record(ctx, sub, "project.delete", id)
	return nil
}

func (s *Service) record(ctx context.Context, sub authz.Subject, action, entityID string) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  sub.UserID,
		Action:   action,
		Entity:   "project",
		EntityID: entityID,
	})
}

func normalize(p *Project) error {
	p.Name = strings.TrimSpace(p.Name)
	if p.Status == "" {
		p.Status = StatusPlanning
	}
	if p.Priority == "" {
		p.Priority = PriorityMedium
	}
	if !ValidStatus(p.Status) {
		return fmt.Errorf("%w: unknown project status %q", shared.ErrValidation, p.Status)
	}
	if !ValidPriority(p.Priority) {
		return fmt.Errorf("%w: unknown project priority %q", shared.ErrValidation, p.Priority)
	}
	return nil
}

func projectRef(p Project) authz.ResourceRef {
	return authz.ResourceRef{Kind: authz.KindProjects, ID: p.ID, OrganizationID: p.OrganizationID}
}

func assignedProjectIDs(assignments []authz.Assignment) []string {
	seen := make(map[string]struct{})
	var ids []string
	for _, a := range assignments {
		for _, id := range a.ProjectIDs {
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			ids = append(ids, id)
		}
	}
	return ids
}
