package identity

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/covenant-cm/covenant/internal/authz"
	"github.com/covenant-cm/covenant/internal/platform/db"
	"github.com/covenant-cm/covenant/internal/shared"
)

// Repository provides PostgreSQL backed persistence for identities.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// FindUser fetches an active user by id.
func (r *Repository) FindUser(ctx context.Context, id string) (User, error) {
	row := r.pool.QueryRow(ctx, `SELECT id, email, name, role, organization_id, active, created_at, updated_at FROM users WHERE id = $1`, id)
	var u User
	if err := row.Scan(&u.ID, &u.Email, &u.Name, &u.Role, &u.OrganizationID, &u.Active, &u.CreatedAt, &u.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, shared.ErrNotFound
		}
		return User{}, err
	}
	return u, nil
}

// ListUsers returns users belonging to the organization, newest first.
func (r *Repository) ListUsers(ctx context.Context, orgID string) ([]User, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, email, name, role, organization_id, active, created_at, updated_at FROM users WHERE organization_id = $1 ORDER BY created_at DESC`, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var users []User
	for rows.Next() {
		var u User
		if err := rows.Scan(&u.ID, &u.Email, &u.Name, &u.Role, &u.OrganizationID, &u.Active, &u.CreatedAt, &u.UpdatedAt); err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// FindToken fetches an API token by its public id.
func (r *Repository) FindToken(ctx context.Context, id string) (Token, error) {
	row := r.pool.QueryRow(ctx, `SELECT id, user_id, secret_hash, expires_at, revoked_at, created_at FROM api_tokens WHERE id = $1`, id)
	var t Token
	if err := row.Scan(&t.ID, &t.UserID, &t.SecretHash, &t.ExpiresAt, &t.RevokedAt, &t.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Token{}, shared.ErrNotFound
		}
		return Token{}, err
	}
	return t, nil
}

// CreateToken persists a new API token.
func (r *Repository) CreateToken(ctx context.Context, t Token) error {
	_, err := r.pool.Exec(ctx, `INSERT INTO api_tokens (id, user_id, secret_hash, expires_at, created_at) VALUES ($1, $2, $3, $4, NOW())`, t.ID, t.UserID, t.SecretHash, t.ExpiresAt)
	return err
}

// RevokeToken marks the token revoked. Returns shared.ErrNotFound when
// the token does not exist.
func (r *Repository) RevokeToken(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `UPDATE api_tokens SET revoked_at = NOW() WHERE id = $1 AND revoked_at IS NULL`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// ListAssignments loads a user's assignments in stored order.
func (r *Repository) ListAssignments(ctx context.Context, userID string) ([]authz.Assignment, error) {
	rows, err := r.pool.Query(ctx, `SELECT organization_id, project_ids, contract_ids, permissions FROM user_assignments WHERE user_id = $1 ORDER BY position`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var assignments []authz.Assignment
	for rows.Next() {
		var (
			a        authz.Assignment
			rawPerms []byte
		)
		if err := rows.Scan(&a.OrganizationID, &a.ProjectIDs, &a.ContractIDs, &rawPerms); err != nil {
			return nil, err
		}
		if len(rawPerms) > 0 {
			if err := json.Unmarshal(rawPerms, &a.Permissions); err != nil {
				return nil, err
			}
		}
		assignments = append(assignments, a)
	}
	return assignments, rows.Err()
}

// ReplaceAssignments rewrites the user's assignment list atomically.
func (r *Repository) ReplaceAssignments(ctx context.Context, userID string, assignments []authz.Assignment) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM user_assignments WHERE user_id = $1`, userID); err != nil {
			return err
		}
		for i, a := range assignments {
			perms, err := json.Marshal(a.Permissions)
			if err != nil {
				return err
			}
			if _, err := tx.Exec(ctx,
				`INSERT INTO user_assignments (user_id, organization_id, project_ids, contract_ids, permissions, position) VALUES ($1, $2, $3, $4, $5, $6)`,
				userID, a.OrganizationID, a.ProjectIDs, a.ContractIDs, perms, i,
			); err != nil {
				return err
			}
		}
		return nil
	})
}

// ListUserIDs returns ids of active users, used by cache warmup.
func (r *Repository) ListUserIDs(ctx context.Context) ([]string, error) {
	rows, err := r.pool.Query(ctx, `SELECT id FROM users WHERE active`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
