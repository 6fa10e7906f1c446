package orgs

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
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

// Get fetches an organization by id.
func (r *Repository) Get(ctx context.Context, id string) (Organization, error) {
	row := r.pool.QueryRow(ctx, `SELECT id, name, tax_id, industry, country, active, created_at, updated_at FROM organizations WHERE id = $1`, id)
	return scanOrganization(row)
}

// List returns organizations, optionally restricted to one id (the
// subject's own organization for non-global roles).
func (r *Repository) List(ctx context.Context, onlyID string, page, perPage int) ([]Organization, int, error) {
	var total int
	countQuery := `SELECT COUNT(*) FROM organizations`
	listQuery := `SELECT id, name, tax_id, industry, country, active, created_at, updated_at FROM organizations ORDER BY name LIMIT $1 OFFSET $2`
	args := []any{perPage, shared.Offset(page, perPage)}
	if onlyID != "" {
		countQuery = `SELECT COUNT(*) FROM organizations WHERE id = $1`
		listQuery = `SELECT id, name, tax_id, industry, country, active, created_at, updated_at FROM organizations WHERE id = $3 ORDER BY name LIMIT $1 OFFSET $2`
		args = append(args, onlyID)
	}

	if onlyID != "" {
		if err := r.pool.QueryRow(ctx, countQuery, onlyID).Scan(&total); err != nil {
			return nil, 0, err
		}
	} else {
		if err := r.pool.QueryRow(ctx, countQuery).Scan(&total); err != nil {
			return nil, 0, err
		}
	}

	rows, err := r.pool.Query(ctx, listQuery, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var out []Organization
	for rows.Next() {
		org, err := scanOrganization(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, org)
	}
	return out, total, rows.Err()
}

// Create inserts a new organization.
func (r *Repository) Create(ctx context.Context, org Organization) (Organization, error) {
	row := r.pool.QueryRow(ctx,
		`INSERT INTO organizations (id, name, tax_id, industry, country, active, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW())
		 RETURNING id, name, tax_id, industry, country, active, created_at, updated_at`,
		org.ID, org.Name, org.TaxID, org.Industry, org.Country, org.Active)
	created, err := scanOrganization(row)
	if err != nil {
		return Organization{}, mapUniqueViolation(err)
	}
	return created, nil
}

// Update rewrites mutable fields.
func (r *Repository) Update(ctx context.Context, org Organization) (Organization, error) {
	row := r.pool.QueryRow(ctx,
		`UPDATE organizations SET name = $2, tax_id = $3, industry = $4, country = $5, active = $6, updated_at = NOW()
		 WHERE id = $1
		 RETURNING id, name, tax_id, industry, country, active, created_at, updated_at`,
		org.ID, org.Name, org.TaxID, org.Industry, org.Country, org.Active)
	updated, err := scanOrganization(row)
	if err != nil {
		return Organization{}, mapUniqueViolation(err)
	}
	return updated, nil
}

// Delete removes an organization. Returns shared.ErrNotFound when
// nothing was deleted.
func (r *Repository) Delete(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM organizations WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func scanOrganization(row pgx.Row) (Organization, error) {
	var org Organization
	err := row.Scan(&org.ID, &org.Name, &org.TaxID, &org.Industry, &org.Country, &org.Active, &org.CreatedAt, &org.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Organization{}, shared.ErrNotFound
	}
	return org, err
}

func mapUniqueViolation(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return shared.ErrDuplicate
	}
	return err
}
