package contracts

import (
	"context"
	"errors"
	"strconv"
	"time"

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

const contractColumns = `id, organization_id, project_id, counterparty_id, title, description, category, type, status, amount, currency, start_date, end_date, version, created_at, updated_at`

// Get fetches a contract by id.
func (r *Repository) Get(ctx context.Context, id string) (Contract, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+contractColumns+` FROM contracts WHERE id = $1`, id)
	return scanContract(row)
}

// ListFilters narrow contract listings.
type ListFilters struct {
	OrganizationID string
	// ProjectIDs / ContractIDs restrict the result for assigned scope
	// subjects: a contract matches when its project or its own id is
	// listed. Both nil means no assignment restriction.
	ProjectIDs  []string
	ContractIDs []string
	Restricted  bool
	ProjectID   string
	Status      Status
	Category    Category
}

// List returns contracts matching the filters, newest first.
func (r *Repository) List(ctx context.Context, f ListFilters, page, perPage int) ([]Contract, int, error) {
	where := `WHERE organization_id = $1`
	args := []any{f.OrganizationID}
	if f.Restricted {
		args = append(args, f.ProjectIDs, f.ContractIDs)
		where += ` AND (project_id = ANY($2) OR id = ANY($3))`
	}
	if f.ProjectID != "" {
		args = append(args, f.ProjectID)
		where += ` AND project_id = $` + strconv.Itoa(len(args))
	}
	if f.Status != "" {
		args = append(args, f.Status)
		where += ` AND status = $` + strconv.Itoa(len(args))
	}
	if f.Category != "" {
		args = append(args, f.Category)
		where += ` AND category = $` + strconv.Itoa(len(args))
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM contracts `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, perPage, shared.Offset(page, perPage))
	query := `SELECT ` + contractColumns + ` FROM contracts ` + where +
		` ORDER BY created_at DESC LIMIT $` + strconv.Itoa(len(args)-1) + ` OFFSET $` + strconv.Itoa(len(args))
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var out []Contract
	for rows.Next() {
		c, err := scanContract(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, c)
	}
	return out, total, rows.Err()
}

// Create inserts a new contract at version 1.
func (r *Repository) Create(ctx context.Context, c Contract) (Contract, error) {
	row := r.pool.QueryRow(ctx,
		`INSERT INTO contracts (id, organization_id, project_id, counterparty_id, title, description, category, type, status, amount, currency, start_date, end_date, version, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, 1, NOW(), NOW())
		 RETURNING `+contractColumns,
		c.ID, c.OrganizationID, c.ProjectID, c.CounterpartyID, c.Title, c.Description, c.Category, c.Type, c.Status, c.Amount, c.Currency, c.StartDate, c.EndDate)
	created, err := scanContract(row)
	if err != nil {
		return Contract{}, mapUniqueViolation(err)
	}
	return created, nil
}

// Update rewrites mutable fields and bumps the version.
func (r *Repository) Update(ctx context.Context, c Contract) (Contract, error) {
	row := r.pool.QueryRow(ctx,
		`UPDATE contracts SET counterparty_id = $2, title = $3, description = $4, category = $5, type = $6, status = $7, amount = $8, currency = $9, start_date = $10, end_date = $11, version = version + 1, updated_at = NOW()
		 WHERE id = $1
		 RETURNING `+contractColumns,
		c.ID, c.CounterpartyID, c.Title, c.Description, c.Category, c.Type, c.Status, c.Amount, c.Currency, c.StartDate, c.EndDate)
	return scanContract(row)
}

// Delete removes a contract.
func (r *Repository) Delete(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM contracts WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// MarkExpired flips active contracts whose end date has passed and
// returns the affected contracts. Used by the background expiry scan.
func (r *Repository) MarkExpired(ctx context.Context, now time.Time) ([]Expired, error) {
	rows, err := r.pool.Query(ctx,
		`UPDATE contracts SET status = $1, version = version + 1, updated_at = NOW()
		 WHERE status = $2 AND end_date < $3
		 RETURNING id, organization_id`,
		StatusExpired, StatusActive, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Expired
	for rows.Next() {
		var e Expired
		if err := rows.Scan(&e.ID, &e.OrganizationID); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// ListExpiringSoon returns active contracts ending within the window.
func (r *Repository) ListExpiringSoon(ctx context.Context, now time.Time, window time.Duration) ([]Contract, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+contractColumns+` FROM contracts WHERE status = $1 AND end_date >= $2 AND end_date < $3 ORDER BY end_date`,
		StatusActive, now, now.Add(window))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Contract
	for rows.Next() {
		c, err := scanContract(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func scanContract(row pgx.Row) (Contract, error) {
	var c Contract
	err := row.Scan(&c.ID, &c.OrganizationID, &c.ProjectID, &c.CounterpartyID, &c.Title, &c.Description, &c.Category, &c.Type, &c.Status, &c.Amount, &c.Currency, &c.StartDate, &c.EndDate, &c.Version, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Contract{}, shared.ErrNotFound
	}
	return c, err
}

func mapUniqueViolation(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return shared.ErrDuplicate
	}
	return err
}
