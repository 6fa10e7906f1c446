package identity

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/covenant-cm/covenant/internal/authz"
	"github.com/covenant-cm/covenant/internal/shared"
)

// tokenPrefix marks Covenant API tokens; the raw form is
// cvt_<token id>.<secret>.
const tokenPrefix = "cvt_"

// RepositoryPort defines data access methods for identities.
type RepositoryPort interface {
	FindUser(ctx context.Context, id string) (User, error)
	ListUsers(ctx context.Context, orgID string) ([]User, error)
	FindToken(ctx context.Context, id string) (Token, error)
	CreateToken(ctx context.Context, t Token) error
	RevokeToken(ctx context.Context, id string) error
	ListAssignments(ctx context.Context, userID string) ([]authz.Assignment, error)
	ReplaceAssignments(ctx context.Context, userID string, assignments []authz.Assignment) error
	ListUserIDs(ctx context.Context) ([]string, error)
}

// Service resolves credentials into subjects and manages API tokens.
type Service struct {
	repo   RepositoryPort
	cache  *SubjectCache
	logger *slog.Logger
	clock  func() time.Time
}

// NewService builds a Service instance. cache may be nil.
func NewService(repo RepositoryPort, cache *SubjectCache, logger *slog.Logger) *Service {
	return &Service{
		repo:   repo,
		cache:  cache,
		logger: logger,
		clock:  func() time.Time { return time.Now().UTC() },
	}
}

// Subject resolves the authorization subject for a user, preferring the
// cached snapshot.
func (s *Service) Subject(ctx context.Context, userID string) (*authz.Subject, error) {
	if sub, ok := s.cache.Get(ctx, userID); ok {
		return sub, nil
	}
	sub, err := s.loadSubject(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := s.cache.Set(ctx, sub); err != nil && s.logger != nil {
		s.logger.Warn("cache subject", slog.Any("error", err))
	}
	return sub, nil
}

// Authenticate verifies a raw bearer token and resolves its subject.
// Every failure mode collapses to shared.ErrInvalidToken.
func (s *Service) Authenticate(ctx context.Context, raw string) (*authz.Subject, error) {
	tokenID, secret, err := splitToken(raw)
	if err != nil {
		return nil, shared.ErrInvalidToken
	}
	token, err := s.repo.FindToken(ctx, tokenID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, shared.ErrInvalidToken
		}
		return nil, err
	}
	if token.Revoked() || token.Expired(s.clock()) {
		return nil, shared.ErrInvalidToken
	}
	if err := bcrypt.CompareHashAndPassword([]byte(token.SecretHash), []byte(secret)); err != nil {
		return nil, shared.ErrInvalidToken
	}
	sub, err := s.Subject(ctx, token.UserID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, shared.ErrInvalidToken
		}
		return nil, err
	}
	return sub, nil
}

// IssueToken mints an API token for the user and returns the raw
// credential, which is never stored or shown again.
func (s *Service) IssueToken(ctx context.Context, userID string, ttl time.Duration) (string, error) {
	user, err := s.repo.FindUser(ctx, userID)
	if err != nil {
		return "", err
	}
	if !user.Active {
		return "", shared.ErrForbidden
	}

	secretBytes := make([]byte, 24)
	if _, err := rand.Read(secretBytes); err != nil {
		return "", fmt.Errorf("identity: token secret: %w", err)
	}
	secret := hex.EncodeToString(secretBytes)

	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("identity: hash secret: %w", err)
	}

	token := Token{
		ID:         uuid.NewString(),
		UserID:     user.ID,
		SecretHash: string(hash),
	}
	if ttl > 0 {
		token.ExpiresAt = s.clock().Add(ttl)
	}
	if err := s.repo.CreateToken(ctx, token); err != nil {
		return "", err
	}
	return tokenPrefix + token.ID + "." + secret, nil
}

// RevokeToken revokes an API token by its public id.
func (s *Service) RevokeToken(ctx context.Context, tokenID string) error {
	return s.repo.RevokeToken(ctx, tokenID)
}

// ListUsers returns the organization's users.
func (s *Service) ListUsers(ctx context.Context, orgID string) ([]User, error) {
	return s.repo.ListUsers(ctx, orgID)
}

// User fetches a single user record.
func (s *Service) User(ctx context.Context, id string) (User, error) {
	return s.repo.FindUser(ctx, id)
}

// TokenOwner resolves the user an API token belongs to.
func (s *Service) TokenOwner(ctx context.Context, tokenID string) (User, error) {
	token, err := s.repo.FindToken(ctx, tokenID)
	if err != nil {
		return User{}, err
	}
	return s.repo.FindUser(ctx, token.UserID)
}

// Assignments returns a user's raw assignment list.
func (s *Service) Assignments(ctx context.Context, userID string) ([]authz.Assignment, error) {
	return s.repo.ListAssignments(ctx, userID)
}

// SetAssignments replaces a user's assignments and invalidates the
// cached subject snapshot.
func (s *Service) SetAssignments(ctx context.Context, userID string, assignments []authz.Assignment) error {
	if _, err := s.repo.FindUser(ctx, userID); err != nil {
		return err
	}
	if err := s.repo.ReplaceAssignments(ctx, userID, assignments); err != nil {
		return err
	}
	if err := s.cache.Invalidate(ctx, userID); err != nil && s.logger != nil {
		s.logger.Warn("invalidate subject", slog.String("user_id", userID), slog.Any("error", err))
	}
	return nil
}

// WarmSubjects rebuilds the snapshot for active users, up to limit when
// limit is positive. Used by the
// background warmup job; failures on individual users are logged and
// skipped.
func (s *Service) WarmSubjects(ctx context.Context, limit int) (int, error) {
	ids, err := s.repo.ListUserIDs(ctx)
	if err != nil {
		return 0, err
	}
	if limit > 0 && len(ids) > limit {
		ids = ids[:limit]
	}
	warmed := 0
	for _, id := range ids {
		sub, err := s.loadSubject(ctx, id)
		if err != nil {
			if s.logger != nil {
				s.logger.Warn("warm subject", slog.String("user_id", id), slog.Any("error", err))
			}
			continue
		}
		if err := s.cache.Set(ctx, sub); err != nil {
			if s.logger != nil {
				s.logger.Warn("warm subject cache", slog.String("user_id", id), slog.Any("error", err))
			}
			continue
		}
		warmed++
	}
	return warmed, nil
}

func (s *Service) loadSubject(ctx context.Context, userID string) (*authz.Subject, error) {
	user, err := s.repo.FindUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !user.Active {
		return nil, shared.ErrForbidden
	}
	sub := &authz.Subject{
		UserID:         user.ID,
		Role:           user.Role,
		OrganizationID: user.OrganizationID,
	}
	// Blanket scope roles never consult assignments; skip the extra
	// query for them.
	if user.Role == authz.RoleManager || user.Role == authz.RoleUser {
		assignments, err := s.repo.ListAssignments(ctx, user.ID)
		if err != nil {
			return nil, err
		}
		sub.Assignments = assignments
	}
	return sub, nil
}

func splitToken(raw string) (id, secret string, err error) {
	raw = strings.TrimSpace(raw)
	if !strings.HasPrefix(raw, tokenPrefix) {
		return "", "", errors.New("identity: missing token prefix")
	}
	rest := strings.TrimPrefix(raw, tokenPrefix)
	id, secret, ok := strings.Cut(rest, ".")
	if !ok || id == "" || secret == "" {
		return "", "", errors.New("identity: malformed token")
	}
	return id, secret, nil
}
