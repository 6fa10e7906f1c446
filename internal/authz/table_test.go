package authz

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHasPermissionUnknownRole(t *testing.T) {
	r := NewResolver()
	require.False(t, r.HasPermission("nonexistent_role", KindContracts, ActionRead))
}

func TestHasPermissionUnknownKind(t *testing.T) {
	r := NewResolver()
	require.False(t, r.HasPermission(RoleSuperAdmin, ResourceKind("widgets"), ActionRead))
}

func TestGrantsAreNotDerivedFromLevel(t *testing.T) {
	r := NewResolver()

	// Org admin sits above manager in the hierarchy but still lacks
	// delete on users; grants are declared per role, not inherited.
	require.False(t, r.HasPermission(RoleOrgAdmin, KindUsers, ActionDelete))
	require.True(t, r.HasPermission(RoleOrgAdmin, KindUsers, ActionUpdate))

	// Manager has no settings grant at all.
	require.False(t, r.HasPermission(RoleManager, KindSettings, ActionRead))

	// User role is read only on its two kinds.
	require.True(t, r.HasPermission(RoleUser, KindContracts, ActionRead))
	require.False(t, r.HasPermission(RoleUser, KindContracts, ActionUpdate))
	require.False(t, r.HasPermission(RoleUser, KindOrganizations, ActionRead))
}

func TestZeroResolverDeniesEverything(t *testing.T) {
	var r *Resolver
	require.False(t, r.HasPermission(RoleSuperAdmin, KindContracts, ActionRead))
	require.False(t, r.CanAccessOrganization(RoleSuperAdmin, "org-1", "org-1"))
}

func TestNewResolverWithRolesRejectsDuplicateGrant(t *testing.T) {
	_, err := NewResolverWithRoles([]RoleSpec{{
		ID: "custom",
		Grants: []Grant{
			{Kind: KindContracts, Actions: []Action{ActionRead}},
			{Kind: KindContracts, Actions: []Action{ActionUpdate}},
		},
	}})
	require.Error(t, err)
}

func TestNewResolverWithRolesRejectsDuplicateRole(t *testing.T) {
	_, err := NewResolverWithRoles([]RoleSpec{{ID: "custom"}, {ID: "custom"}})
	require.Error(t, err)
}

func TestDisplayNameFallsBackToID(t *testing.T) {
	r := NewResolver()
	require.Equal(t, "Manager", r.DisplayName(RoleManager))
	require.Equal(t, "ghost", r.DisplayName("ghost"))
}

func TestRolesOrderedByAuthority(t *testing.T) {
	r := NewResolver()
	roles := r.Roles()
	require.Len(t, roles, 4)
	for i := 1; i < len(roles); i++ {
		require.Less(t, roles[i-1].Level, roles[i].Level)
	}
}
