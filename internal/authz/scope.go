package authz

// Scope predicates decide whether a role that already holds an action in
// principle may apply it to one specific resource instance. They form a
// three level containment chain: organization, then project, then
// contract. Every predicate fails closed on unknown roles or missing
// identifiers.

// CanAccessOrganization is the base predicate the others funnel through.
// Super admins cross organization boundaries; everyone else must belong
// to the target organization.
func (r *Resolver) CanAccessOrganization(role Role, subjectOrg, targetOrg string) bool {
	if _, ok := r.RoleByID(role); !ok {
		return false
	}
	if role == RoleSuperAdmin {
		return true
	}
	return subjectOrg != "" && subjectOrg == targetOrg
}

// CanAccessProject reports whether the subject may touch the given
// project. Organization containment is mandatory for every role below
// super admin; assignment membership alone never crosses it. Assigned
// scope roles additionally need the project listed in one of their
// assignments.
func (r *Resolver) CanAccessProject(role Role, subjectOrg, projectOrg string, assignments []Assignment, projectID string) bool {
	if _, ok := r.RoleByID(role); !ok {
		return false
	}
	if role == RoleSuperAdmin {
		return true
	}
	if subjectOrg == "" || subjectOrg != projectOrg {
		return false
	}
	switch role {
	case RoleOrgAdmin:
		return true
	case RoleManager, RoleUser:
		if len(assignments) == 0 || projectID == "" {
			return false
		}
		return assignmentsContainProject(assignments, projectID)
	}
	return false
}

// CanAccessContract reports whether the subject may touch the given
// contract. Structure mirrors CanAccessProject with one addition: for
// assigned scope roles, access is inherited transitively through the
// contract's owning project, so a contract never needs its own
// assignment entry when its project is already assigned.
func (r *Resolver) CanAccessContract(role Role, subjectOrg, contractOrg, contractProjectID string, assignments []Assignment, contractID string) bool {
	if _, ok := r.RoleByID(role); !ok {
		return false
	}
	if role == RoleSuperAdmin {
		return true
	}
	if subjectOrg == "" || subjectOrg != contractOrg {
		return false
	}
	switch role {
	case RoleOrgAdmin:
		return true
	case RoleManager, RoleUser:
		if len(assignments) == 0 {
			return false
		}
		if contractID != "" && assignmentsContainContract(assignments, contractID) {
			return true
		}
		if contractProjectID != "" && assignmentsContainProject(assignments, contractProjectID) {
			return true
		}
		return false
	}
	return false
}

func assignmentsContainProject(assignments []Assignment, projectID string) bool {
	for _, a := range assignments {
		for _, id := range a.ProjectIDs {
			if id == projectID {
				return true
			}
		}
	}
	return false
}

func assignmentsContainContract(assignments []Assignment, contractID string) bool {
	for _, a := range assignments {
		for _, id := range a.ContractIDs {
			if id == contractID {
				return true
			}
		}
	}
	return false
}
