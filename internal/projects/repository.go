package projects

import (
	"context"
	"errors"
	"strconv"
	"time"

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

const projectColumns = `id, organization_id, name, description, status, priority, start_date, end_date, created_at, updated_at`

// Get fetches a project by id.
func (r *Repository) Get(ctx context.Context, id string) (Project, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+projectColumns+` FROM projects WHERE id = $1`, id)
	return scanProject(row)
}

// ListFilters narrow project listings.
type ListFilters struct {
	OrganizationID string
	// IDs restricts the result to an explicit set, used for assigned
	// scope subjects. Nil means no restriction.
	IDs    []string
	Status Status
}

// List returns projects matching the filters, newest first.
func (r *Repository) List(ctx context.Context, f ListFilters, page, perPage int) ([]Project, int, error) {
	where := `WHERE organization_id = $1`
	args := []any{f.OrganizationID}
	if f.IDs != nil {
		args = append(args, f.IDs)
		where += ` AND id = ANY($2)`
	}
	if f.Status != "" {
		args = append(args, f.Status)
		where += ` AND status = $` + strconv.Itoa(len(args))
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM projects `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, perPage, shared.Offset(page, perPage))
	query := `SELECT ` + projectColumns + ` FROM projects ` + where +
		` ORDER BY created_at DESC LIMIT $` + strconv.Itoa(len(args)-1) + ` OFFSET $` + strconv.Itoa(len(args))
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var out []Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, p)
	}
	return out, total, rows.Err()
}

// Create inserts a new project.
func (r *Repository) Create(ctx context.Context, p Project) (Project, error) {
	row := r.pool.QueryRow(ctx,
		`INSERT INTO projects (id, organization_id, name, description, status, priority, start_date, end_date, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW(), NOW())
		 RETURNING `+projectColumns,
		p.ID, p.OrganizationID, p.Name, p.Description, p.Status, p.Priority, p.StartDate, nullableTime(p.EndDate))
	return scanProject(row)
}

// Update rewrites mutable fields.
func (r *Repository) Update(ctx context.Context, p Project) (Project, error) {
	row := r.pool.QueryRow(ctx,
		`UPDATE projects SET name = $2, description = $3, status = $4, priority = $5, start_date = $6, end_date = $7, updated_at = NOW()
		 WHERE id = $1
		 RETURNING `+projectColumns,
		p.ID, p.Name, p.Description, p.Status, p.Priority, p.StartDate, nullableTime(p.EndDate))
	return scanProject(row)
}

// Delete removes a project.
func (r *Repository) Delete(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM projects WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func scanProject(row pgx.Row) (Project, error) {
	var (
		p       Project
		endDate *time.Time
	)
	err := row.Scan(&p.ID, &p.OrganizationID, &p.Name, &p.Description, &p.Status, &p.Priority, &p.StartDate, &endDate, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Project{}, shared.ErrNotFound
	}
	if endDate != nil {
		p.EndDate = *endDate
	}
	return p, err
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

