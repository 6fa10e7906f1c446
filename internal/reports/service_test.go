package reports

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/covenant-cm/covenant/internal/authz"
	"github.com/covenant-cm/covenant/internal/shared"
)

type memoryRepo struct {
	projectCalls  int
	contractCalls int
}

func (r *memoryRepo) ProjectStats(ctx context.Context, orgID string) (ProjectStats, error) {
	r.projectCalls++
	return ProjectStats{Total: 3, ByStatus: map[string]int{"active": 2, "completed": 1}}, nil
}

func (r *memoryRepo) ContractStats(ctx context.Context, orgID string, now time.Time, window time.Duration) (ContractStats, error) {
	r.contractCalls++
	return ContractStats{
		Total:                  5,
		ByStatus:               map[string]int{"active": 4, "draft": 1},
		ActiveAmountByCurrency: map[string]int64{"EUR": 250000},
		ExpiringSoon:           2,
	}, nil
}

func newTestService(t *testing.T, withCache bool) (*Service, *memoryRepo) {
	t.Helper()
	repo := &memoryRepo{}
	var cache *Cache
	if withCache {
		mr := miniredis.RunT(t)
		client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		cache = NewCache(client, time.Minute)
	}
	return NewService(repo, authz.NewResolver(), cache, nil, 0), repo
}

func subject(role authz.Role, org string) authz.Subject {
	return authz.Subject{UserID: "u-test", Role: role, OrganizationID: org}
}

func TestSummaryRequiresReportsRead(t *testing.T) {
	svc, _ := newTestService(t, false)

	// The user role has no reports grant at all.
	_, err := svc.OrganizationSummary(context.Background(), subject(authz.RoleUser, "org-1"), "")
	require.ErrorIs(t, err, shared.ErrForbidden)

	summary, err := svc.OrganizationSummary(context.Background(), subject(authz.RoleManager, "org-1"), "")
	require.NoError(t, err)
	require.Equal(t, "org-1", summary.OrganizationID)
	require.Equal(t, 3, summary.Projects.Total)
	require.Equal(t, int64(250000), summary.Contracts.ActiveAmountByCurrency["EUR"])
	require.Equal(t, 2, summary.Contracts.ExpiringSoon)
}

func TestSummaryCrossOrganizationDenied(t *testing.T) {
	svc, _ := newTestService(t, false)
	_, err := svc.OrganizationSummary(context.Background(), subject(authz.RoleOrgAdmin, "org-1"), "org-2")
	require.ErrorIs(t, err, shared.ErrForbidden)

	// Global scope crosses organizations freely.
	summary, err := svc.OrganizationSummary(context.Background(), subject(authz.RoleSuperAdmin, "org-1"), "org-2")
	require.NoError(t, err)
	require.Equal(t, "org-2", summary.OrganizationID)
}

func TestSummaryCached(t *testing.T) {
	svc, repo := newTestService(t, true)
	admin := subject(authz.RoleOrgAdmin, "org-1")

	_, err := svc.OrganizationSummary(context.Background(), admin, "")
	require.NoError(t, err)
	_, err = svc.OrganizationSummary(context.Background(), admin, "")
	require.NoError(t, err)
	require.Equal(t, 1, repo.projectCalls)
	require.Equal(t, 1, repo.contractCalls)
}

func TestInvalidateBumpsVersion(t *testing.T) {
	svc, repo := newTestService(t, true)
	admin := subject(authz.RoleOrgAdmin, "org-1")

	_, err := svc.OrganizationSummary(context.Background(), admin, "")
	require.NoError(t, err)
	require.NoError(t, svc.Invalidate(context.Background()))
	_, err = svc.OrganizationSummary(context.Background(), admin, "")
	require.NoError(t, err)
	require.Equal(t, 2, repo.projectCalls)
}

func TestSummaryWithoutCacheRecomputes(t *testing.T) {
	svc, repo := newTestService(t, false)
	admin := subject(authz.RoleOrgAdmin, "org-1")

	_, err := svc.OrganizationSummary(context.Background(), admin, "")
	require.NoError(t, err)
	_, err = svc.OrganizationSummary(context.Background(), admin, "")
	require.NoError(t, err)
	require.Equal(t, 2, repo.projectCalls)
}
