package settings

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/covenant-cm/covenant/internal/authz"
	"github.com/covenant-cm/covenant/internal/shared"
)

type memoryRepo struct {
	rows map[string]Settings
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{rows: make(map[string]Settings)}
}

func (r *memoryRepo) Get(ctx context.Context, orgID string) (Settings, error) {
	s, ok := r.rows[orgID]
	if !ok {
		return Settings{}, shared.ErrNotFound
	}
	return s, nil
}

func (r *memoryRepo) Upsert(ctx context.Context, s Settings) (Settings, error) {
	s.UpdatedAt = time.Now().UTC()
	r.rows[s.OrganizationID] = s
	return s, nil
}

func newTestService() (*Service, *memoryRepo) {
	repo := newMemoryRepo()
	return NewService(repo, authz.NewResolver(), nil), repo
}

func subject(role authz.Role, org string) authz.Subject {
	return authz.Subject{UserID: "u-test", Role: role, OrganizationID: org}
}

func TestGetReturnsDefaultsWhenUnset(t *testing.T) {
	svc, _ := newTestService()
	s, err := svc.Get(context.Background(), subject(authz.RoleOrgAdmin, "org-1"), "")
	require.NoError(t, err)
	require.Equal(t, "org-1", s.OrganizationID)
	require.Equal(t, "EUR", s.DefaultCurrency)
	require.Equal(t, 30, s.ExpiryWarningDays)
}

func TestGetDeniedForUnknownRoleAndCrossOrg(t *testing.T) {
	svc, _ := newTestService()

	_, err := svc.Get(context.Background(), authz.Subject{Role: "auditor", OrganizationID: "org-1"}, "")
	require.ErrorIs(t, err, shared.ErrForbidden)

	_, err = svc.Get(context.Background(), subject(authz.RoleOrgAdmin, "org-1"), "org-2")
	require.ErrorIs(t, err, shared.ErrForbidden)
}

func TestUpdateRoundTrip(t *testing.T) {
	svc, _ := newTestService()
	admin := subject(authz.RoleOrgAdmin, "org-1")

	saved, err := svc.Update(context.Background(), admin, Settings{
		DefaultCurrency:   "usd",
		Locale:            "es-ES",
		ExpiryWarningDays: 14,
		NotifyOnExpiry:    true,
	})
	require.NoError(t, err)
	require.Equal(t, "USD", saved.DefaultCurrency)
	require.Equal(t, "es-ES", saved.Locale)

	got, err := svc.Get(context.Background(), admin, "")
	require.NoError(t, err)
	require.Equal(t, 14, got.ExpiryWarningDays)
}

func TestUpdateValidation(t *testing.T) {
	svc, _ := newTestService()
	admin := subject(authz.RoleOrgAdmin, "org-1")

	_, err := svc.Update(context.Background(), admin, Settings{DefaultCurrency: "ZZZ", ExpiryWarningDays: 14})
	require.ErrorIs(t, err, shared.ErrValidation)

	_, err = svc.Update(context.Background(), admin, Settings{Locale: "not a locale", ExpiryWarningDays: 14})
	require.ErrorIs(t, err, shared.ErrValidation)

	_, err = svc.Update(context.Background(), admin, Settings{ExpiryWarningDays: 0})
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestDeniedForManager(t *testing.T) {
	svc, _ := newTestService()
	// Settings are an administration surface; managers hold no grant.
	manager := subject(authz.RoleManager, "org-1")

	_, err := svc.Get(context.Background(), manager, "")
	require.ErrorIs(t, err, shared.ErrForbidden)

	_, err = svc.Update(context.Background(), manager, Settings{ExpiryWarningDays: 14})
	require.ErrorIs(t, err, shared.ErrForbidden)
}
