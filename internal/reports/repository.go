package reports

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository runs the aggregate queries behind the summary report.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// ProjectStats counts projects per status.
func (r *Repository) ProjectStats(ctx context.Context, orgID string) (ProjectStats, error) {
	stats := ProjectStats{ByStatus: make(map[string]int)}
	rows, err := r.pool.Query(ctx,
		`SELECT status, COUNT(*) FROM projects WHERE organization_id = $1 GROUP BY status`, orgID)
	if err != nil {
		return ProjectStats{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return ProjectStats{}, err
		}
		stats.ByStatus[status] = count
		stats.Total += count
	}
	return stats, rows.Err()
}

// ContractStats counts contracts per status, sums active amounts per
// currency and counts contracts ending within the window.
func (r *Repository) ContractStats(ctx context.Context, orgID string, now time.Time, expiryWindow time.Duration) (ContractStats, error) {
	stats := ContractStats{
		ByStatus:               make(map[string]int),
		ActiveAmountByCurrency: make(map[string]int64),
	}

	rows, err := r.pool.Query(ctx,
		`SELECT status, COUNT(*) FROM contracts WHERE organization_id = $1 GROUP BY status`, orgID)
	if err != nil {
		return ContractStats{}, err
	}
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			rows.Close()
			return ContractStats{}, err
		}
		stats.ByStatus[status] = count
		stats.Total += count
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return ContractStats{}, err
	}

	rows, err = r.pool.Query(ctx,
		`SELECT currency, COALESCE(SUM(amount), 0)
		 FROM contracts
		 WHERE organization_id = $1 AND status = 'active'
		 GROUP BY currency`, orgID)
	if err != nil {
		return ContractStats{}, err
	}
	for rows.Next() {
		var cur string
		var sum int64
		if err := rows.Scan(&cur, &sum); err != nil {
			rows.Close()
			return ContractStats{}, err
		}
		stats.ActiveAmountByCurrency[cur] = sum
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return ContractStats{}, err
	}

	err = r.pool.QueryRow(ctx,
		`SELECT COUNT(*)
		 FROM contracts
		 WHERE organization_id = $1 AND status = 'active'
		   AND end_date IS NOT NULL AND end_date > $2 AND end_date <= $3`,
		orgID, now, now.Add(expiryWindow)).Scan(&stats.ExpiringSoon)
	if err != nil {
		return ContractStats{}, err
	}
	return stats, nil
}
