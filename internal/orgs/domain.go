// Package orgs manages counterparty and owning organizations.
package orgs

import "time"

// Organization is a company the platform tracks, either the tenant
// itself or a contract counterparty.
type Organization struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	TaxID     string    `json:"tax_id,omitempty"`
	Industry  string    `json:"industry,omitempty"`
	Country   string    `json:"country,omitempty"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
