package authz

// CanPerformAction is the top level dispatch: the role must grant the
// action in principle, and the matching scope predicate must admit the
// specific target instance. Kinds without their own predicate (users,
// reports, settings) deliberately fall back to the organization
// predicate as the conservative default.
func (r *Resolver) CanPerformAction(role Role, action Action, subjectOrg string, target ResourceRef, assignments []Assignment) bool {
	if !r.HasPermission(role, target.Kind, action) {
		return false
	}
	switch target.Kind {
	case KindOrganizations:
		return r.CanAccessOrganization(role, subjectOrg, target.orgID())
	case KindProjects:
		return r.CanAccessProject(role, subjectOrg, target.OrganizationID, assignments, target.ID)
	case KindContracts:
		return r.CanAccessContract(role, subjectOrg, target.OrganizationID, target.ProjectID, assignments, target.ID)
	default:
		return r.CanAccessOrganization(role, subjectOrg, target.OrganizationID)
	}
}

// Allowed answers the full check for a subject. It is the form callers
// inside the platform use; CanPerformAction remains for callers that
// assemble the pieces themselves.
func (r *Resolver) Allowed(sub Subject, action Action, target ResourceRef) bool {
	return r.CanPerformAction(sub.Role, action, sub.OrganizationID, target, sub.Assignments)
}

// CanModify layers the fine-grained assignment vocabulary on top of the
// coarse check. For user-role subjects an explicit "edit" entry for the
// exact resource is required; visibility without one means read only.
// Other roles fall through to their role-level update grant.
func (r *Resolver) CanModify(sub Subject, target ResourceRef) bool {
	if !r.Allowed(sub, ActionRead, target) {
		return false
	}
	if sub.Role == RoleUser && target.ID != "" {
		fine := FinePermissions(sub.Assignments, target.Kind, target.ID)
		for _, a := range fine {
			if a == FineEdit {
				return true
			}
		}
		return false
	}
	return r.HasPermission(sub.Role, target.Kind, ActionUpdate)
}

// FinePermissions extracts the fine action set recorded for one
// project or contract instance. An empty result means visible but not
// editable, which is the default whenever no explicit entry exists.
func FinePermissions(assignments []Assignment, kind ResourceKind, resourceID string) []FineAction {
	if resourceID == "" {
		return nil
	}
	for _, a := range assignments {
		for _, p := range a.Permissions {
			if p.Kind == kind && p.ResourceID == resourceID {
				out := make([]FineAction, len(p.Actions))
				copy(out, p.Actions)
				return out
			}
		}
	}
	return nil
}

// orgID returns the owning organization for scope checks. When the
// target is itself an organization the resource id doubles as the
// organization id.
func (t ResourceRef) orgID() string {
	if t.OrganizationID != "" {
		return t.OrganizationID
	}
	if t.Kind == KindOrganizations {
		return t.ID
	}
	return ""
}
