// Package identity resolves API credentials into authorization
// subjects. It owns the users, api_tokens and user_assignments tables
// and keeps a Redis snapshot of each subject so hot paths avoid the
// database.
package identity

import (
	"time"

	"github.com/covenant-cm/covenant/internal/authz"
)

// User is a platform account.
type User struct {
	ID             string     `json:"id"`
	Email          string     `json:"email"`
	Name           string     `json:"name"`
	Role           authz.Role `json:"role"`
	OrganizationID string     `json:"organization_id"`
	Active         bool       `json:"active"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// Token is the stored half of an API credential. Only the bcrypt hash
// of the secret is persisted; the raw secret is shown once at issue
// time.
type Token struct {
	ID         string
	UserID     string
	SecretHash string
	ExpiresAt  time.Time
	RevokedAt  *time.Time
	CreatedAt  time.Time
}

// Expired reports whether the token is past its expiry.
func (t Token) Expired(now time.Time) bool {
	return !t.ExpiresAt.IsZero() && now.After(t.ExpiresAt)
}

// Revoked reports whether the token has been revoked.
func (t Token) Revoked() bool {
	return t.RevokedAt != nil
}
