package reports

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/covenant-cm/covenant/internal/authz"
	"github.com/covenant-cm/covenant/internal/shared"
)

// RepositoryPort defines the aggregate queries the service needs.
type RepositoryPort interface {
	ProjectStats(ctx context.Context, orgID string) (ProjectStats, error)
	ContractStats(ctx context.Context, orgID string, now time.Time, expiryWindow time.Duration) (ContractStats, error)
}

// Service builds and caches per-organization summaries.
type Service struct {
	repo         RepositoryPort
	resolver     *authz.Resolver
	cache        *Cache
	logger       *slog.Logger
	expiryWindow time.Duration
	group        singleflight.Group
	clock        func() time.Time
}

// NewService builds Service instance. cache may be nil, in which case
// every call recomputes the summary.
func NewService(repo RepositoryPort, resolver *authz.Resolver, cache *Cache, logger *slog.Logger, expiryWindow time.Duration) *Service {
	if expiryWindow <= 0 {
		expiryWindow = 30 * 24 * time.Hour
	}
	return &Service{
		repo:         repo,
		resolver:     resolver,
		cache:        cache,
		logger:       logger,
		expiryWindow: expiryWindow,
		clock:        func() time.Time { return time.Now().UTC() },
	}
}

// OrganizationSummary returns the summary for one organization.
// Concurrent requests for the same key share a single build.
func (s *Service) OrganizationSummary(ctx context.Context, sub authz.Subject, orgID string) (Summary, error) {
	if orgID == "" {
		orgID = sub.OrganizationID
	}
	if !s.resolver.CanAccessOrganization(sub.Role, sub.OrganizationID, orgID) {
		return Summary{}, shared.ErrForbidden
	}
	if !s.resolver.HasPermission(sub.Role, authz.KindReports, authz.ActionRead) {
		return Summary{}, shared.ErrForbidden
	}

	key, err := s.cache.BuildKey(ctx, "reports", "summary", orgID)
	if err != nil {
		return Summary{}, err
	}
	result, err, sharedBuild := s.group.Do(key, func() (interface{}, error) {
		var summary Summary
		err := s.cache.FetchJSON(ctx, key, &summary, func(ctx context.Context) (interface{}, error) {
			return s.build(ctx, orgID)
		})
		return summary, err
	})
	if err != nil {
		return Summary{}, err
	}
	if sharedBuild && s.logger != nil {
		s.logger.Debug("summary build shared", slog.String("key", key))
	}
	return result.(Summary), nil
}

// Invalidate drops every cached summary. Contract and project writes
// and the expiry scan call this.
func (s *Service) Invalidate(ctx context.Context) error {
	return s.cache.Bump(ctx)
}

func (s *Service) build(ctx context.Context, orgID string) (Summary, error) {
	projects, err := s.repo.ProjectStats(ctx, orgID)
	if err != nil {
		return Summary{}, err
	}
	contracts, err := s.repo.ContractStats(ctx, orgID, s.clock(), s.expiryWindow)
	if err != nil {
		return Summary{}, err
	}
	return Summary{
		OrganizationID: orgID,
		GeneratedAt:    s.clock(),
		Projects:       projects,
		Contracts:      contracts,
	}, nil
}
