package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/covenant-cm/covenant/internal/authz"
)

const subjectKeyPrefix = "identity:subject:"

// SubjectCache stores resolved subject snapshots in Redis so token
// checks do not hit PostgreSQL on every request. A nil cache (or nil
// client) degrades to pass-through.
type SubjectCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewSubjectCache instantiates the cache helper.
func NewSubjectCache(client *redis.Client, ttl time.Duration) *SubjectCache {
	return &SubjectCache{client: client, ttl: ttl}
}

// Get loads a cached subject, returning found=false on miss or any
// Redis failure so callers always fall back to the repository.
func (c *SubjectCache) Get(ctx context.Context, userID string) (*authz.Subject, bool) {
	if c == nil || c.client == nil || userID == "" {
		return nil, false
	}
	raw, err := c.client.Get(ctx, subjectKey(userID)).Bytes()
	if err != nil {
		return nil, false
	}
	var sub authz.Subject
	if err := json.Unmarshal(raw, &sub); err != nil {
		return nil, false
	}
	return &sub, true
}

// Set stores the subject snapshot with the configured TTL.
func (c *SubjectCache) Set(ctx context.Context, sub *authz.Subject) error {
	if c == nil || c.client == nil {
		return nil
	}
	if sub == nil || sub.UserID == "" {
		return errors.New("identity: subject with user id required")
	}
	raw, err := json.Marshal(sub)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, subjectKey(sub.UserID), raw, c.ttl).Err()
}

// Invalidate drops the snapshot for one user, e.g. after an assignment
// or role change.
func (c *SubjectCache) Invalidate(ctx context.Context, userID string) error {
	if c == nil || c.client == nil || userID == "" {
		return nil
	}
	return c.client.Del(ctx, subjectKey(userID)).Err()
}

func subjectKey(userID string) string {
	return fmt.Sprintf("%s%s", subjectKeyPrefix, userID)
}
