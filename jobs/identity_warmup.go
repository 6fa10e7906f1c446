package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/covenant-cm/covenant/internal/identity"
	jobmetrics "github.com/covenant-cm/covenant/internal/jobs"
)

// IdentityWarmupJob pre-populates the subject cache so the first
// request after a deploy does not pay the database round trips.
type IdentityWarmupJob struct {
	Identity *identity.Service
	Logger   *slog.Logger
	Metrics  *jobmetrics.Metrics
	clock    func() time.Time
}

// NewIdentityWarmupJob wires dependencies for the warmup handler.
func NewIdentityWarmupJob(identitySvc *identity.Service, logger *slog.Logger, metrics *jobmetrics.Metrics) *IdentityWarmupJob {
	return &IdentityWarmupJob{
		Identity: identitySvc,
		Logger:   logger,
		Metrics:  metrics,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle processes identity warmup tasks.
func (j *IdentityWarmupJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil {
		return errors.New("identity warmup: handler not configured")
	}
	if j.Identity == nil {
		return errors.New("identity warmup: identity service not configured")
	}
	var payload IdentityWarmupPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}

	tracker := j.metrics().Track(TaskIdentityWarmup)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	start := j.now()
	logger := j.logger()
	logger.Info("starting identity warmup")

	warmed, err := j.Identity.WarmSubjects(ctx, payload.Limit)
	if err != nil {
		resultErr = err
		logger.Error("warm subjects", slog.Any("error", err))
		return resultErr
	}

	logger.Info("completed identity warmup",
		slog.Int("subjects", warmed),
		slog.Duration("duration", time.Since(start)),
	)
	return resultErr
}

func (j *IdentityWarmupJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskIdentityWarmup))
	}
	return slog.Default().With(slog.String("job", TaskIdentityWarmup))
}

func (j *IdentityWarmupJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}

func (j *IdentityWarmupJob) now() time.Time {
	if j.clock != nil {
		return j.clock()
	}
	return time.Now().UTC()
}
