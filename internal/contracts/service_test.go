package contracts

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/covenant-cm/covenant/internal/authz"
	"github.com/covenant-cm/covenant/internal/shared"
)

type memoryRepo struct {
	contracts map[string]Contract
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{contracts: make(map[string]Contract)}
}

func (r *memoryRepo) Get(ctx context.Context, id string) (Contract, error) {
	c, ok := r.contracts[id]
	if !ok {
		return Contract{}, shared.ErrNotFound
	}
	return c, nil
}

func (r *memoryRepo) List(ctx context.Context, f ListFilters, page, perPage int) ([]Contract, int, error) {
	projects := map[string]struct{}{}
	for _, id := range f.ProjectIDs {
		projects[id] = struct{}{}
	}
	direct := map[string]struct{}{}
	for _, id := range f.ContractIDs {
		direct[id] = struct{}{}
	}
	var out []Contract
	for _, c := range r.contracts {
		if c.OrganizationID != f.OrganizationID {
			continue
		}
		if f.Restricted {
			_, viaProject := projects[c.ProjectID]
			_, viaContract := direct[c.ID]
			if !viaProject && !viaContract {
				continue
			}
		}
		if f.ProjectID != "" && c.ProjectID != f.ProjectID {
			continue
		}
		if f.Status != "" && c.Status != f.Status {
			continue
		}
		if f.Category != "" && c.Category != f.Category {
			continue
		}
		out = append(out, c)
	}
	return out, len(out), nil
}

func (r *memoryRepo) Create(ctx context.Context, c Contract) (Contract, error) {
	c.Version = 1
	r.contracts[c.ID] = c
	return c, nil
}

func (r *memoryRepo) Update(ctx context.Context, c Contract) (Contract, error) {
	existing, ok := r.contracts[c.ID]
	if !ok {
		return Contract{}, shared.ErrNotFound
	}
	c.Version = existing.Version + 1
	r.contracts[c.ID] = c
	return c, nil
}

func (r *memoryRepo) Delete(ctx context.Context, id string) error {
	if _, ok := r.contracts[id]; !ok {
		return shared.ErrNotFound
	}
	delete(r.contracts, id)
	return nil
}

func (r *memoryRepo) MarkExpired(ctx context.Context, now time.Time) ([]Expired, error) {
	var expired []Expired
	for id, c := range r.contracts {
		if c.Status == StatusActive && !c.EndDate.IsZero() && c.EndDate.Before(now) {
			c.Status = StatusExpired
			r.contracts[id] = c
			expired = append(expired, Expired{ID: id, OrganizationID: c.OrganizationID})
		}
	}
	return expired, nil
}

func (r *memoryRepo) ListExpiringSoon(ctx context.Context, now time.Time, window time.Duration) ([]Contract, error) {
	var out []Contract
	for _, c := range r.contracts {
		if c.Status == StatusActive && !c.EndDate.IsZero() && c.EndDate.After(now) && c.EndDate.Before(now.Add(window)) {
			out = append(out, c)
		}
	}
	return out, nil
}

func newTestService() (*Service, *memoryRepo) {
	repo := newMemoryRepo()
	return NewService(repo, authz.NewResolver(), nil), repo
}

func subject(role authz.Role, org string, assignments ...authz.Assignment) authz.Subject {
	return authz.Subject{UserID: "u-test", Role: role, OrganizationID: org, Assignments: assignments}
}

func seedContract(repo *memoryRepo, id, org, project string, status Status) Contract {
	c := Contract{
		ID:             id,
		OrganizationID: org,
		ProjectID:      project,
		Title:          "Contract " + id,
		Category:       CategoryServices,
		Type:           TypeExpense,
		Status:         status,
		Amount:         120000,
		Currency:       "EUR",
		Version:        1,
	}
	repo.contracts[id] = c
	return c
}

func TestGetInheritsProjectAssignment(t *testing.T) {
	svc, repo := newTestService()
	seedContract(repo, "c-1", "org-1", "p-1", StatusActive)

	// A project assignment opens every contract under that project.
	manager := subject(authz.RoleManager, "org-1", authz.Assignment{ProjectIDs: []string{"p-1"}})
	c, err := svc.Get(context.Background(), manager, "c-1")
	require.NoError(t, err)
	require.Equal(t, "c-1", c.ID)

	unassigned := subject(authz.RoleManager, "org-1", authz.Assignment{ProjectIDs: []string{"p-2"}})
	_, err = svc.Get(context.Background(), unassigned, "c-1")
	require.ErrorIs(t, err, shared.ErrForbidden)
}

func TestGetDirectContractAssignment(t *testing.T) {
	svc, repo := newTestService()
	seedContract(repo, "c-1", "org-1", "p-1", StatusActive)

	user := subject(authz.RoleUser, "org-1", authz.Assignment{ContractIDs: []string{"c-1"}})
	_, err := svc.Get(context.Background(), user, "c-1")
	require.NoError(t, err)
}

func TestGetChecksStoredOrganization(t *testing.T) {
	svc, repo := newTestService()
	seedContract(repo, "c-1", "org-2", "p-1", StatusActive)

	admin := subject(authz.RoleOrgAdmin, "org-1")
	_, err := svc.Get(context.Background(), admin, "c-1")
	require.ErrorIs(t, err, shared.ErrForbidden)
}

func TestListRestrictsAssignedScopes(t *testing.T) {
	svc, repo := newTestService()
	seedContract(repo, "c-1", "org-1", "p-1", StatusActive)
	seedContract(repo, "c-2", "org-1", "p-2", StatusActive)
	seedContract(repo, "c-3", "org-1", "p-3", StatusActive)

	user := subject(authz.RoleUser, "org-1", authz.Assignment{
		ProjectIDs:  []string{"p-1"},
		ContractIDs: []string{"c-3"},
	})
	items, pagination, err := svc.List(context.Background(), user, ListFilters{}, 1, 20)
	require.NoError(t, err)
	require.Len(t, items, 2)
	require.Equal(t, 2, pagination.Total)

	admin := subject(authz.RoleOrgAdmin, "org-1")
	items, _, err = svc.List(context.Background(), admin, ListFilters{}, 1, 20)
	require.NoError(t, err)
	require.Len(t, items, 3)
}

func TestListWithoutAssignmentsIsEmpty(t *testing.T) {
	svc, repo := newTestService()
	seedContract(repo, "c-1", "org-1", "p-1", StatusActive)

	user := subject(authz.RoleUser, "org-1")
	items, pagination, err := svc.List(context.Background(), user, ListFilters{}, 1, 20)
	require.NoError(t, err)
	require.Empty(t, items)
	require.Zero(t, pagination.Total)
}

func TestCreateManagerUnderAssignedProject(t *testing.T) {
	svc, _ := newTestService()

	manager := subject(authz.RoleManager, "org-1", authz.Assignment{ProjectIDs: []string{"p-1"}})
	created, err := svc.Create(context.Background(), manager, Contract{
		Title: "Hosting", ProjectID: "p-1", Currency: "usd",
	})
	require.NoError(t, err)
	require.Equal(t, "org-1", created.OrganizationID)
	require.Equal(t, StatusDraft, created.Status)
	require.Equal(t, CategoryOther, created.Category)
	require.Equal(t, "USD", created.Currency)

	_, err = svc.Create(context.Background(), manager, Contract{Title: "Hosting", ProjectID: "p-9"})
	require.ErrorIs(t, err, shared.ErrForbidden)
}

func TestCreateUserDenied(t *testing.T) {
	svc, _ := newTestService()
	user := subject(authz.RoleUser, "org-1", authz.Assignment{ProjectIDs: []string{"p-1"}})
	_, err := svc.Create(context.Background(), user, Contract{Title: "Nope", ProjectID: "p-1"})
	require.ErrorIs(t, err, shared.ErrForbidden)
}

func TestCreateValidation(t *testing.T) {
	svc, _ := newTestService()
	admin := subject(authz.RoleOrgAdmin, "org-1")

	_, err := svc.Create(context.Background(), admin, Contract{Title: "X", Category: "barter"})
	require.ErrorIs(t, err, shared.ErrValidation)

	_, err = svc.Create(context.Background(), admin, Contract{Title: "X", Currency: "ZZZ"})
	require.ErrorIs(t, err, shared.ErrValidation)

	_, err = svc.Create(context.Background(), admin, Contract{Title: "X", Amount: -1})
	require.ErrorIs(t, err, shared.ErrValidation)

	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	_, err = svc.Create(context.Background(), admin, Contract{Title: "X", StartDate: start, EndDate: start.AddDate(0, -1, 0)})
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestUpdateEnforcesStatusTransitions(t *testing.T) {
	svc, repo := newTestService()
	seedContract(repo, "c-1", "org-1", "p-1", StatusDraft)
	admin := subject(authz.RoleOrgAdmin, "org-1")

	_, err := svc.Update(context.Background(), admin, Contract{ID: "c-1", Title: "C", Status: StatusActive})
	require.ErrorIs(t, err, shared.ErrValidation)

	updated, err := svc.Update(context.Background(), admin, Contract{ID: "c-1", Title: "C", Status: StatusReview})
	require.NoError(t, err)
	require.Equal(t, StatusReview, updated.Status)
	require.Equal(t, 2, updated.Version)
}

func TestUpdateUserNeedsFineEdit(t *testing.T) {
	svc, repo := newTestService()
	seedContract(repo, "c-1", "org-1", "p-1", StatusDraft)

	viewOnly := subject(authz.RoleUser, "org-1", authz.Assignment{ContractIDs: []string{"c-1"}})
	_, err := svc.Update(context.Background(), viewOnly, Contract{ID: "c-1", Title: "Blocked"})
	require.ErrorIs(t, err, shared.ErrForbidden)

	editor := subject(authz.RoleUser, "org-1", authz.Assignment{
		ContractIDs: []string{"c-1"},
		Permissions: []authz.AssignmentPermission{{
			Kind: authz.KindContracts, ResourceID: "c-1", Actions: []authz.FineAction{authz.FineEdit},
		}},
	})
	updated, err := svc.Update(context.Background(), editor, Contract{ID: "c-1", Title: "After"})
	require.NoError(t, err)
	require.Equal(t, "After", updated.Title)
}

func TestDeleteRequiresOrgAdmin(t *testing.T) {
	svc, repo := newTestService()
	seedContract(repo, "c-1", "org-1", "p-1", StatusDraft)

	manager := subject(authz.RoleManager, "org-1", authz.Assignment{ProjectIDs: []string{"p-1"}})
	require.ErrorIs(t, svc.Delete(context.Background(), manager, "c-1"), shared.ErrForbidden)

	admin := subject(authz.RoleOrgAdmin, "org-1")
	require.NoError(t, svc.Delete(context.Background(), admin, "c-1"))
}

func TestExpireOverdue(t *testing.T) {
	svc, repo := newTestService()
	now := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	svc.clock = func() time.Time { return now }

	overdue := seedContract(repo, "c-1", "org-1", "p-1", StatusActive)
	overdue.EndDate = now.AddDate(0, 0, -1)
	repo.contracts["c-1"] = overdue

	current := seedContract(repo, "c-2", "org-1", "p-1", StatusActive)
	current.EndDate = now.AddDate(0, 1, 0)
	repo.contracts["c-2"] = current

	expired, err := svc.ExpireOverdue(context.Background())
	require.NoError(t, err)
	require.Equal(t, []Expired{{ID: "c-1", OrganizationID: "org-1"}}, expired)
	require.Equal(t, StatusExpired, repo.contracts["c-1"].Status)
	require.Equal(t, StatusActive, repo.contracts["c-2"].Status)
}

func TestWriteCSVLocalizedAmounts(t *testing.T) {
	items := []Contract{{
		ID:       "c-1",
		Title:    "Hosting",
		Category: CategoryServices,
		Type:     TypeExpense,
		Status:   StatusActive,
		Amount:   1234567,
		Currency: "USD",
	}}

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, items, "en"))
	out := buf.String()
	require.Contains(t, out, "ID,Title,Project")
	require.Contains(t, out, "Hosting")
	require.True(t, strings.Contains(out, "1,234,567"), "expected grouped digits, got %q", out)

	var bufDE bytes.Buffer
	require.NoError(t, WriteCSV(&bufDE, items, "de"))
	require.Contains(t, bufDE.String(), "1.234.567")
}
