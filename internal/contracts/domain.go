// Package contracts manages contract records, the leaf level of the
// organization - project - contract containment chain.
package contracts

import "time"

// Status enumerates contract lifecycle states.
type Status string

// Contract statuses.
const (
	StatusDraft     Status = "draft"
	StatusReview    Status = "review"
	StatusApproved  Status = "approved"
	StatusActive    Status = "active"
	StatusExpired   Status = "expired"
	StatusCancelled Status = "cancelled"
	StatusRenewed   Status = "renewed"
)

// Category enumerates contract categories.
type Category string

// Contract categories.
const (
	CategoryServices        Category = "services"
	CategoryPurchases       Category = "purchases"
	CategorySales           Category = "sales"
	CategoryLease           Category = "lease"
	CategoryLabor           Category = "labor"
	CategoryConfidentiality Category = "confidentiality"
	CategoryConsulting      Category = "consulting"
	CategoryMaintenance     Category = "maintenance"
	CategorySupply          Category = "supply"
	CategoryOther           Category = "other"
)

// EconomicType classifies a contract's cash flow direction.
type EconomicType string

// Economic types.
const (
	TypeIncome  EconomicType = "income"
	TypeExpense EconomicType = "expense"
)

// Contract is a single agreement with a counterparty.
type Contract struct {
	ID             string       `json:"id"`
	OrganizationID string       `json:"organization_id"`
	ProjectID      string       `json:"project_id"`
	CounterpartyID string       `json:"counterparty_id,omitempty"`
	Title          string       `json:"title"`
	Description    string       `json:"description,omitempty"`
	Category       Category     `json:"category"`
	Type           EconomicType `json:"type"`
	Status         Status       `json:"status"`
	Amount         int64        `json:"amount"`
	Currency       string       `json:"currency"`
	StartDate      time.Time    `json:"start_date"`
	EndDate        time.Time    `json:"end_date"`
	Version        int          `json:"version"`
	CreatedAt      time.Time    `json:"created_at"`
	UpdatedAt      time.Time    `json:"updated_at"`
}

// Expired identifies a contract flipped to expired by the scan.
type Expired struct {
	ID             string
	OrganizationID string
}

// ValidStatus reports whether s is a known status.
func ValidStatus(s Status) bool {
	switch s {
	case StatusDraft, StatusReview, StatusApproved, StatusActive, StatusExpired, StatusCancelled, StatusRenewed:
		return true
	}
	return false
}

// ValidCategory reports whether c is a known category.
func ValidCategory(c Category) bool {
	switch c {
	case CategoryServices, CategoryPurchases, CategorySales, CategoryLease, CategoryLabor,
		CategoryConfidentiality, CategoryConsulting, CategoryMaintenance, CategorySupply, CategoryOther:
		return true
	}
	return false
}

// statusTransitions lists the allowed next states per status. Expiry is
// also driven by the background scan when the end date passes.
var statusTransitions = map[Status][]Status{
	StatusDraft:    {StatusReview, StatusCancelled},
	StatusReview:   {StatusDraft, StatusApproved, StatusCancelled},
	StatusApproved: {StatusActive, StatusCancelled},
	StatusActive:   {StatusExpired, StatusCancelled, StatusRenewed},
	StatusExpired:  {StatusRenewed},
	StatusRenewed:  {StatusActive},
}

// CanTransition reports whether a contract may move from one status to
// another. Identical states are allowed so full updates need no special
// casing.
func CanTransition(from, to Status) bool {
	if from == to {
		return true
	}
	for _, next := range statusTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}
