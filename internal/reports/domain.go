// Package reports aggregates contract and project figures per
// organization.
package reports

import "time"

// ProjectStats summarises the projects of one organization.
type ProjectStats struct {
	Total    int            `json:"total"`
	ByStatus map[string]int `json:"by_status"`
}

// ContractStats summarises the contracts of one organization. Amounts
// are grouped by currency because they cannot be added across
// currencies.
type ContractStats struct {
	Total                  int              `json:"total"`
	ByStatus               map[string]int   `json:"by_status"`
	ActiveAmountByCurrency map[string]int64 `json:"active_amount_by_currency"`
	ExpiringSoon           int              `json:"expiring_soon"`
}

// Summary is the cached per-organization report payload.
type Summary struct {
	OrganizationID string        `json:"organization_id"`
	GeneratedAt    time.Time     `json:"generated_at"`
	Projects       ProjectStats  `json:"projects"`
	Contracts      ContractStats `json:"contracts"`
}
