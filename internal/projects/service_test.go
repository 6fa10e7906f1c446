package projects

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/covenant-cm/covenant/internal/authz"
	"github.com/covenant-cm/covenant/internal/shared"
)

type memoryRepo struct {
	projects map[string]Project
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{projects: make(map[string]Project)}
}

func (r *memoryRepo) Get(ctx context.Context, id string) (Project, error) {
	p, ok := r.projects[id]
	if !ok {
		return Project{}, shared.ErrNotFound
	}
	return p, nil
}

func (r *memoryRepo) List(ctx context.Context, f ListFilters, page, perPage int) ([]Project, int, error) {
	allowed := map[string]struct{}{}
	for _, id := range f.IDs {
		allowed[id] = struct{}{}
	}
	var out []Project
	for _, p := range r.projects {
		if p.OrganizationID != f.OrganizationID {
			continue
		}
		if f.IDs != nil {
			if _, ok := allowed[p.ID]; !ok {
				continue
			}
		}
		if f.Status != "" && p.Status != f.Status {
			continue
		}
		out = append(out, p)
	}
	return out, len(out), nil
}

func (r *memoryRepo) Create(ctx context.Context, p Project) (Project, error) {
	r.projects[p.ID] = p
	return p, nil
}

func (r *memoryRepo) Update(ctx context.Context, p Project) (Project, error) {
	if _, ok := r.projects[p.ID]; !ok {
		return Project{}, shared.ErrNotFound
	}
	r.projects[p.ID] = p
	return p, nil
}

func (r *memoryRepo) Delete(ctx context.Context, id string) error {
	if _, ok := r.projects[id]; !ok {
		return shared.ErrNotFound
	}
	delete(r.projects, id)
	return nil
}

func newTestService() (*Service, *memoryRepo) {
	repo := newMemoryRepo()
	return NewService(repo, authz.NewResolver(), nil), repo
}

func subject(role authz.Role, org string, assignments ...authz.Assignment) authz.Subject {
	return authz.Subject{UserID: "u-test", Role: role, OrganizationID: org, Assignments: assignments}
}

func TestGetChecksStoredOrganization(t *testing.T) {
	svc, repo := newTestService()
	repo.projects["p-1"] = Project{ID: "p-1", OrganizationID: "org-2", Name: "other org"}

	admin := subject(authz.RoleOrgAdmin, "org-1")
	_, err := svc.Get(context.Background(), admin, "p-1")
	require.ErrorIs(t, err, shared.ErrForbidden)
}

func TestListNarrowsToAssignments(t *testing.T) {
	svc, repo := newTestService()
	repo.projects["p-1"] = Project{ID: "p-1", OrganizationID: "org-1", Status: StatusActive}
	repo.projects["p-2"] = Project{ID: "p-2", OrganizationID: "org-1", Status: StatusActive}

	user := subject(authz.RoleUser, "org-1", authz.Assignment{ProjectIDs: []string{"p-1"}})
	items, _, err := svc.List(context.Background(), user, "", "", 1, 20)
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.Equal(t, "p-1", items[0].ID)

	admin := subject(authz.RoleOrgAdmin, "org-1")
	items, _, err = svc.List(context.Background(), admin, "", "", 1, 20)
	require.NoError(t, err)
	require.Len(t, items, 2)
}

func TestListWithoutAssignmentsIsEmpty(t *testing.T) {
	svc, repo := newTestService()
	repo.projects["p-1"] = Project{ID: "p-1", OrganizationID: "org-1"}

	user := subject(authz.RoleUser, "org-1")
	items, pagination, err := svc.List(context.Background(), user, "", "", 1, 20)
	require.NoError(t, err)
	require.Empty(t, items)
	require.Zero(t, pagination.Total)
}

func TestListCrossOrganizationDenied(t *testing.T) {
	svc, _ := newTestService()
	admin := subject(authz.RoleOrgAdmin, "org-1")
	_, _, err := svc.List(context.Background(), admin, "org-2", "", 1, 20)
	require.ErrorIs(t, err, shared.ErrForbidden)
}

func TestCreateRoles(t *testing.T) {
	svc, _ := newTestService()

	admin := subject(authz.RoleOrgAdmin, "org-1")
	created, err := svc.Create(context.Background(), admin, Project{Name: "Expansion"})
	require.NoError(t, err)
	require.Equal(t, "org-1", created.OrganizationID)
	require.Equal(t, StatusPlanning, created.Status)
	require.Equal(t, PriorityMedium, created.Priority)

	// Managers lack create on projects.
	manager := subject(authz.RoleManager, "org-1", authz.Assignment{ProjectIDs: []string{"p-1"}})
	_, err = svc.Create(context.Background(), manager, Project{Name: "Nope"})
	require.ErrorIs(t, err, shared.ErrForbidden)
}

func TestCreateRejectsUnknownStatus(t *testing.T) {
	svc, _ := newTestService()
	admin := subject(authz.RoleOrgAdmin, "org-1")
	_, err := svc.Create(context.Background(), admin, Project{Name: "X", Status: "archived"})
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestUpdateAssignedManager(t *testing.T) {
	svc, repo := newTestService()
	repo.projects["p-1"] = Project{ID: "p-1", OrganizationID: "org-1", Name: "Before", Status: StatusActive, Priority: PriorityHigh}

	manager := subject(authz.RoleManager, "org-1", authz.Assignment{ProjectIDs: []string{"p-1"}})
	updated, err := svc.Update(context.Background(), manager, Project{ID: "p-1", Name: "After", Status: StatusActive, Priority: PriorityHigh})
	require.NoError(t, err)
	require.Equal(t, "After", updated.Name)

	unassigned := subject(authz.RoleManager, "org-1", authz.Assignment{ProjectIDs: []string{"p-9"}})
	_, err = svc.Update(context.Background(), unassigned, Project{ID: "p-1", Name: "Blocked"})
	require.ErrorIs(t, err, shared.ErrForbidden)
}

func TestUpdateUserNeedsFineEdit(t *testing.T) {
	svc, repo := newTestService()
	repo.projects["p-1"] = Project{ID: "p-1", OrganizationID: "org-1", Name: "Before"}

	viewOnly := subject(authz.RoleUser, "org-1", authz.Assignment{ProjectIDs: []string{"p-1"}})
	_, err := svc.Update(context.Background(), viewOnly, Project{ID: "p-1", Name: "Blocked"})
	require.ErrorIs(t, err, shared.ErrForbidden)

	editor := subject(authz.RoleUser, "org-1", authz.Assignment{
		ProjectIDs: []string{"p-1"},
		Permissions: []authz.AssignmentPermission{{
			Kind: authz.KindProjects, ResourceID: "p-1", Actions: []authz.FineAction{authz.FineEdit},
		}},
	})
	updated, err := svc.Update(context.Background(), editor, Project{ID: "p-1", Name: "After"})
	require.NoError(t, err)
	require.Equal(t, "After", updated.Name)
}

func TestDeleteRequiresOrgAdmin(t *testing.T) {
	svc, repo := newTestService()
	repo.projects["p-1"] = Project{ID: "p-1", OrganizationID: "org-1"}

	manager := subject(authz.RoleManager, "org-1", authz.Assignment{ProjectIDs: []string{"p-1"}})
	require.ErrorIs(t, svc.Delete(context.Background(), manager, "p-1"), shared.ErrForbidden)

	admin := subject(authz.RoleOrgAdmin, "org-1")
	require.NoError(t, svc.Delete(context.Background(), admin, "p-1"))
}
