package authz

import (
	"errors"
	"fmt"
)

// builtinRoles is the capability table shipped with the platform. Grants
// are declared independently per role; nothing is inherited between
// levels, so a higher role can legitimately lack an action a lower role
// has.
var builtinRoles = []RoleSpec{
	{
		ID:          RoleSuperAdmin,
		DisplayName: "Super Administrator",
		Level:       1,
		Scope:       ScopeGlobal,
		Grants: []Grant{
			{Kind: KindOrganizations, Actions: []Action{ActionCreate, ActionRead, ActionUpdate, ActionDelete, ActionManage}, Scope: ScopeGlobal},
			{Kind: KindProjects, Actions: []Action{ActionCreate, ActionRead, ActionUpdate, ActionDelete, ActionManage}, Scope: ScopeGlobal},
			{Kind: KindContracts, Actions: []Action{ActionCreate, ActionRead, ActionUpdate, ActionDelete, ActionManage}, Scope: ScopeGlobal},
			{Kind: KindUsers, Actions: []Action{ActionCreate, ActionRead, ActionUpdate, ActionDelete, ActionManage}, Scope: ScopeGlobal},
			{Kind: KindReports, Actions: []Action{ActionRead, ActionCreate}, Scope: ScopeGlobal},
			{Kind: KindSettings, Actions: []Action{ActionRead, ActionUpdate}, Scope: ScopeGlobal},
		},
	},
	{
		ID:          RoleOrgAdmin,
		DisplayName: "Organization Administrator",
		Level:       2,
		Scope:       ScopeOrganization,
		Grants: []Grant{
			{Kind: KindOrganizations, Actions: []Action{ActionRead, ActionUpdate}, Scope: ScopeOrganization},
			{Kind: KindProjects, Actions: []Action{ActionCreate, ActionRead, ActionUpdate, ActionDelete, ActionManage}, Scope: ScopeOrganization},
			{Kind: KindContracts, Actions: []Action{ActionCreate, ActionRead, ActionUpdate, ActionDelete, ActionManage}, Scope: ScopeOrganization},
			{Kind: KindUsers, Actions: []Action{ActionCreate, ActionRead, ActionUpdate}, Scope: ScopeOrganization},
			{Kind: KindReports, Actions: []Action{ActionRead, ActionCreate}, Scope: ScopeOrganization},
			{Kind: KindSettings, Actions: []Action{ActionRead, ActionUpdate}, Scope: ScopeOrganization},
		},
	},
	{
		ID:          RoleManager,
		DisplayName: "Manager",
		Level:       3,
		Scope:       ScopeAssigned,
		Grants: []Grant{
			{Kind: KindProjects, Actions: []Action{ActionRead, ActionUpdate}, Scope: ScopeAssigned},
			{Kind: KindContracts, Actions: []Action{ActionCreate, ActionRead, ActionUpdate}, Scope: ScopeAssigned},
			{Kind: KindUsers, Actions: []Action{ActionRead}, Scope: ScopeOrganization},
			{Kind: KindReports, Actions: []Action{ActionRead}, Scope: ScopeOrganization},
		},
	},
	{
		ID:          RoleUser,
		DisplayName: "User",
		Level:       4,
		Scope:       ScopeAssigned,
		Grants: []Grant{
			{Kind: KindProjects, Actions: []Action{ActionRead}, Scope: ScopeAssigned},
			{Kind: KindContracts, Actions: []Action{ActionRead}, Scope: ScopeAssigned},
		},
	},
}

// Resolver answers authorization questions against an immutable role
// capability table. The zero value denies everything; construct with
// NewResolver.
type Resolver struct {
	roles   map[Role]RoleSpec
	ordered []RoleSpec
}

// NewResolver builds a Resolver over the built-in role table.
func NewResolver() *Resolver {
	r, err := NewResolverWithRoles(builtinRoles)
	if err != nil {
		// The built-in table is validated by tests; reaching this
		// means the constants above are inconsistent.
		panic(err)
	}
	return r
}

// NewResolverWithRoles builds a Resolver from an explicit role table.
// Each role may declare at most one grant per resource kind.
func NewResolverWithRoles(specs []RoleSpec) (*Resolver, error) {
	roles := make(map[Role]RoleSpec, len(specs))
	ordered := make([]RoleSpec, 0, len(specs))
	for _, spec := range specs {
		if spec.ID == "" {
			return nil, errors.New("authz: role id required")
		}
		if _, ok := roles[spec.ID]; ok {
			return nil, fmt.Errorf("authz: duplicate role %q", spec.ID)
		}
		seen := make(map[ResourceKind]struct{}, len(spec.Grants))
		for _, grant := range spec.Grants {
			if _, ok := seen[grant.Kind]; ok {
				return nil, fmt.Errorf("authz: role %q declares %q twice", spec.ID, grant.Kind)
			}
			seen[grant.Kind] = struct{}{}
		}
		roles[spec.ID] = spec
		ordered = append(ordered, spec)
	}
	return &Resolver{roles: roles, ordered: ordered}, nil
}

// RoleByID returns the role definition, or false when unknown.
func (r *Resolver) RoleByID(id Role) (RoleSpec, bool) {
	if r == nil {
		return RoleSpec{}, false
	}
	spec, ok := r.roles[id]
	return spec, ok
}

// DisplayName resolves a role's human readable name, falling back to
// the raw identifier for unknown roles.
func (r *Resolver) DisplayName(id Role) string {
	if spec, ok := r.RoleByID(id); ok {
		return spec.DisplayName
	}
	return string(id)
}

// Roles returns the role table in declaration order.
func (r *Resolver) Roles() []RoleSpec {
	if r == nil {
		return nil
	}
	out := make([]RoleSpec, len(r.ordered))
	copy(out, r.ordered)
	return out
}

// HasPermission reports whether the role grants the action on the
// resource kind in principle, independent of any specific instance.
// Unknown roles and kinds degrade to false.
func (r *Resolver) HasPermission(role Role, kind ResourceKind, action Action) bool {
	spec, ok := r.RoleByID(role)
	if !ok {
		return false
	}
	for _, grant := range spec.Grants {
		if grant.Kind != kind {
			continue
		}
		for _, a := range grant.Actions {
			if a == action {
				return true
			}
		}
		return false
	}
	return false
}
