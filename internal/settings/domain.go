// Package settings stores per-organization preferences.
package settings

import "time"

// Settings holds the tunable preferences of one organization. A row is
// created lazily with defaults on first read.
type Settings struct {
	OrganizationID    string    `json:"organization_id"`
	DefaultCurrency   string    `json:"default_currency"`
	Locale            string    `json:"locale"`
	ExpiryWarningDays int       `json:"expiry_warning_days"`
	NotifyOnExpiry    bool      `json:"notify_on_expiry"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// Defaults returns the settings applied to organizations that never
// saved any.
func Defaults(orgID string) Settings {
	return Settings{
		OrganizationID:    orgID,
		DefaultCurrency:   "EUR",
		Locale:            "en",
		ExpiryWarningDays: 30,
		NotifyOnExpiry:    true,
	}
}
