package settings

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/covenant-cm/covenant/internal/shared"
)

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Get fetches the settings row of an organization.
func (r *Repository) Get(ctx context.Context, orgID string) (Settings, error) {
	var s Settings
	err := r.pool.QueryRow(ctx,
		`SELECT organization_id, default_currency, locale, expiry_warning_days, notify_on_expiry, updated_at
		 FROM organization_settings WHERE organization_id = $1`, orgID).
		Scan(&s.OrganizationID, &s.DefaultCurrency, &s.Locale, &s.ExpiryWarningDays, &s.NotifyOnExpiry, &s.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Settings{}, shared.ErrNotFound
	}
	if err != nil {
		return Settings{}, err
	}
	return s, nil
}

// Upsert writes the settings row of an organization.
func (r *Repository) Upsert(ctx context.Context, s Settings) (Settings, error) {
	err := r.pool.QueryRow(ctx,
		`INSERT INTO organization_settings (organization_id, default_currency, locale, expiry_warning_days, notify_on_expiry, updated_at)
		 VALUES ($1, $2, $3, $4, $5, NOW())
		 ON CONFLICT (organization_id) DO UPDATE SET
		   default_currency = EXCLUDED.default_currency,
		   locale = EXCLUDED.locale,
		   expiry_warning_days = EXCLUDED.expiry_warning_days,
		   notify_on_expiry = EXCLUDED.notify_on_expiry,
		   updated_at = NOW()
		 RETURNING updated_at`,
		s.OrganizationID, s.DefaultCurrency, s.Locale, s.ExpiryWarningDays, s.NotifyOnExpiry).
		Scan(&s.UpdatedAt)
	if err != nil {
		return Settings{}, err
	}
	return s, nil
}
