package authz

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSuperAdminCrossesOrganizations(t *testing.T) {
	r := NewResolver()

	// For every grant the super admin holds, the action must succeed
	// across organization boundaries.
	spec, ok := r.RoleByID(RoleSuperAdmin)
	require.True(t, ok)
	for _, grant := range spec.Grants {
		for _, action := range grant.Actions {
			target := ResourceRef{Kind: grant.Kind, ID: "res-1", OrganizationID: "org-b"}
			require.True(t, r.CanPerformAction(RoleSuperAdmin, action, "org-a", target, nil),
				"super_admin should perform %s on %s across orgs", action, grant.Kind)
		}
	}
}

func TestCanPerformActionShortCircuitsOnCapability(t *testing.T) {
	r := NewResolver()

	// User role never holds delete, so scope is irrelevant.
	target := ResourceRef{Kind: KindContracts, ID: "c-1", OrganizationID: "org-1"}
	require.False(t, r.CanPerformAction(RoleUser, ActionDelete, "org-1", target, []Assignment{{ContractIDs: []string{"c-1"}}}))
}

func TestCanPerformActionContractThreadsProjectID(t *testing.T) {
	r := NewResolver()
	assignments := []Assignment{{ProjectIDs: []string{"p-1"}}}

	// The dispatch path carries the owning project so inherited access
	// applies without a direct contract assignment.
	target := ResourceRef{Kind: KindContracts, ID: "c-9", OrganizationID: "org-1", ProjectID: "p-1"}
	require.True(t, r.CanPerformAction(RoleUser, ActionRead, "org-1", target, assignments))

	target.ProjectID = "p-2"
	require.False(t, r.CanPerformAction(RoleUser, ActionRead, "org-1", target, assignments))
}

func TestCanPerformActionFallbackKinds(t *testing.T) {
	r := NewResolver()

	// users/reports/settings fall back to the organization predicate.
	usersRef := ResourceRef{Kind: KindUsers, ID: "u-1", OrganizationID: "org-1"}
	require.True(t, r.CanPerformAction(RoleOrgAdmin, ActionRead, "org-1", usersRef, nil))
	require.False(t, r.CanPerformAction(RoleOrgAdmin, ActionRead, "org-2", usersRef, nil))

	reportsRef := ResourceRef{Kind: KindReports, OrganizationID: "org-1"}
	require.True(t, r.CanPerformAction(RoleManager, ActionRead, "org-1", reportsRef, nil))
	require.False(t, r.CanPerformAction(RoleUser, ActionRead, "org-1", reportsRef, nil))
}

func TestCanPerformActionOrganizationTarget(t *testing.T) {
	r := NewResolver()

	// For organization targets the resource id doubles as the org id.
	ref := ResourceRef{Kind: KindOrganizations, ID: "org-1"}
	require.True(t, r.CanPerformAction(RoleOrgAdmin, ActionUpdate, "org-1", ref, nil))
	require.False(t, r.CanPerformAction(RoleOrgAdmin, ActionUpdate, "org-2", ref, nil))
	require.False(t, r.CanPerformAction(RoleOrgAdmin, ActionDelete, "org-1", ref, nil))
}

func TestFinePermissionsDefaultEmpty(t *testing.T) {
	require.Empty(t, FinePermissions([]Assignment{}, KindProjects, "proj-1"))
	require.Empty(t, FinePermissions(nil, KindContracts, "c-1"))
	require.Empty(t, FinePermissions([]Assignment{{
		Permissions: []AssignmentPermission{{Kind: KindContracts, ResourceID: "c-1", Actions: []FineAction{FineEdit}}},
	}}, KindProjects, "c-1"))
}

func TestManagerEndToEnd(t *testing.T) {
	r := NewResolver()
	sub := Subject{
		UserID:         "u-7",
		Role:           RoleManager,
		OrganizationID: "acme",
		Assignments: []Assignment{{
			OrganizationID: "acme",
			ProjectIDs:     []string{"p1"},
			Permissions: []AssignmentPermission{{
				Kind: KindProjects, ResourceID: "p1", Actions: []FineAction{FineEdit},
			}},
		}},
	}

	target := ResourceRef{Kind: KindProjects, ID: "p1", OrganizationID: "acme"}
	require.True(t, r.Allowed(sub, ActionUpdate, target))
	require.Equal(t, []FineAction{FineEdit}, FinePermissions(sub.Assignments, KindProjects, "p1"))
}

func TestCanModify(t *testing.T) {
	r := NewResolver()

	editable := Subject{
		Role:           RoleUser,
		OrganizationID: "org-1",
		Assignments: []Assignment{{
			ProjectIDs: []string{"p1"},
			Permissions: []AssignmentPermission{{
				Kind: KindProjects, ResourceID: "p1", Actions: []FineAction{FineView, FineEdit},
			}},
		}},
	}
	viewOnly := Subject{
		Role:           RoleUser,
		OrganizationID: "org-1",
		Assignments:    []Assignment{{ProjectIDs: []string{"p1"}}},
	}
	admin := Subject{Role: RoleOrgAdmin, OrganizationID: "org-1"}

	target := ResourceRef{Kind: KindProjects, ID: "p1", OrganizationID: "org-1"}
	require.True(t, r.CanModify(editable, target))
	// Visible but no explicit edit entry means read only.
	require.False(t, r.CanModify(viewOnly, target))
	require.True(t, r.CanModify(admin, target))
}
