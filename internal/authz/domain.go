// Package authz implements role and scope based authorization for the
// Covenant platform. Decisions are pure functions of the acting subject,
// the target resource and the requested action; every ambiguous or
// malformed input resolves to denial.
package authz

// Role identifies one of the statically defined authorization tiers.
type Role string

// Role identifiers, from highest to lowest authority.
const (
	RoleSuperAdmin Role = "super_admin"
	RoleOrgAdmin   Role = "org_admin"
	RoleManager    Role = "manager"
	RoleUser       Role = "user"
)

// ResourceKind categorizes the thing being protected.
type ResourceKind string

// Protected resource kinds.
const (
	KindOrganizations ResourceKind = "organizations"
	KindProjects      ResourceKind = "projects"
	KindContracts     ResourceKind = "contracts"
	KindUsers         ResourceKind = "users"
	KindReports       ResourceKind = "reports"
	KindSettings      ResourceKind = "settings"
)

// Action is the coarse role-level action vocabulary.
type Action string

// Role-level actions.
const (
	ActionCreate Action = "create"
	ActionRead   Action = "read"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
	ActionManage Action = "manage"
)

// FineAction is the narrower vocabulary used by per-resource assignment
// overrides. It is only meaningful for assigned-scope roles; blanket
// scopes never consult it.
type FineAction string

// Assignment-level actions.
const (
	FineView FineAction = "view"
	FineEdit FineAction = "edit"
)

// Scope describes the breadth at which a role's grants apply.
type Scope string

// Grant scopes.
const (
	ScopeGlobal       Scope = "global"
	ScopeOrganization Scope = "organization"
	ScopeAssigned     Scope = "assigned"
)

// Grant declares the actions a role may perform on one resource kind.
type Grant struct {
	Kind    ResourceKind
	Actions []Action
	Scope   Scope
}

// RoleSpec is the immutable definition of a role.
type RoleSpec struct {
	ID          Role
	DisplayName string
	// Level orders roles hierarchically; a lower number means more
	// authority. Grants are declared independently per role and are
	// never derived from Level.
	Level  int
	Scope  Scope
	Grants []Grant
}

// AssignmentPermission is a fine-grained override for a single project
// or contract instance.
type AssignmentPermission struct {
	Kind       ResourceKind `json:"kind"`
	ResourceID string       `json:"resource_id"`
	Actions    []FineAction `json:"actions"`
}

// Assignment grants a subject visibility over specific project and
// contract instances beyond what the role's blanket scope allows.
// Organization containment is still mandatory; an assignment never
// reaches across organizations.
type Assignment struct {
	OrganizationID string                 `json:"organization_id,omitempty"`
	ProjectIDs     []string               `json:"project_ids,omitempty"`
	ContractIDs    []string               `json:"contract_ids,omitempty"`
	Permissions    []AssignmentPermission `json:"permissions,omitempty"`
}

// Subject is the acting entity at authorization time.
type Subject struct {
	UserID         string       `json:"user_id"`
	Role           Role         `json:"role"`
	OrganizationID string       `json:"organization_id"`
	Assignments    []Assignment `json:"assignments,omitempty"`
}

// ResourceRef identifies the target of an authorization check. For
// contracts ProjectID carries the owning project so assignment access
// can be inherited through it; it is empty for every other kind.
type ResourceRef struct {
	Kind           ResourceKind
	ID             string
	OrganizationID string
	ProjectID      string
}
