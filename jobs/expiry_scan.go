package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/hibiken/asynq"

	"github.com/covenant-cm/covenant/internal/contracts"
	jobmetrics "github.com/covenant-cm/covenant/internal/jobs"
	"github.com/covenant-cm/covenant/internal/reports"
	"github.com/covenant-cm/covenant/internal/settings"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

// ExpiryScanJob flips overdue contracts to expired and queues a digest
// of contracts approaching their end date.
type ExpiryScanJob struct {
	Contracts *contracts.Service
	Settings  *settings.Service
	Reports   *reports.Service
	Mailer    *Client
	Logger    *slog.Logger
	Metrics   *jobmetrics.Metrics
	clock     func() time.Time
}

// NewExpiryScanJob wires dependencies for the expiry scan handler.
func NewExpiryScanJob(contractsSvc *contracts.Service, settingsSvc *settings.Service, reportsSvc *reports.Service, mailer *Client, logger *slog.Logger, metrics *jobmetrics.Metrics) *ExpiryScanJob {
	return &ExpiryScanJob{
		Contracts: contractsSvc,
		Settings:  settingsSvc,
		Reports:   reportsSvc,
		Mailer:    mailer,
		Logger:    logger,
		Metrics:   metrics,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle executes the expiry scan logic.
func (j *ExpiryScanJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil {
		return errors.New("expiry scan: handler not configured")
	}
	if j.Contracts == nil {
		return errors.New("expiry scan: contracts service not configured")
	}
	var payload ExpiryScanPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}

	tracker := j.metrics().Track(TaskContractsExpiryScan)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	start := j.now()
	logger := j.logger()
	logger.Info("starting expiry scan")

	expired, err := j.Contracts.ExpireOverdue(ctx)
	if err != nil {
		resultErr = err
		logger.Error("expire overdue contracts", slog.Any("error", err))
		return resultErr
	}
	perOrg := make(map[string]int)
	for _, e := range expired {
		perOrg[e.OrganizationID]++
	}
	for org, count := range perOrg {
		j.metrics().AddExpired(org, count)
		logger.Info("contracts expired",
			slog.String("organization_id", org),
			slog.Int("count", count),
		)
	}

	notified, err := j.notifyExpiring(ctx, payload, logger)
	if err != nil {
		resultErr = err
		return resultErr
	}

	if len(expired) > 0 && j.Reports != nil {
		if err := j.Reports.Invalidate(ctx); err != nil {
			logger.Warn("invalidate report cache", slog.Any("error", err))
		}
	}

	logger.Info("completed expiry scan",
		slog.Int("expired", len(expired)),
		slog.Int("notices", notified),
		slog.Duration("duration", time.Since(start)),
	)
	return resultErr
}

// notifyExpiring groups soon-to-expire contracts per organization and
// queues one digest email per organization that opted in.
func (j *ExpiryScanJob) notifyExpiring(ctx context.Context, payload ExpiryScanPayload, logger *slog.Logger) (int, error) {
	if j.Mailer == nil || payload.NotifyAddress == "" {
		return 0, nil
	}

	window := 365 * 24 * time.Hour
	if payload.NoticeWindowDays > 0 {
		window = time.Duration(payload.NoticeWindowDays) * 24 * time.Hour
	}
	expiring, err := j.Contracts.ExpiringSoon(ctx, window)
	if err != nil {
		logger.Error("load expiring contracts", slog.Any("error", err))
		return 0, err
	}
	if len(expiring) == 0 {
		return 0, nil
	}

	byOrg := make(map[string][]contracts.Contract)
	for _, c := range expiring {
		byOrg[c.OrganizationID] = append(byOrg[c.OrganizationID], c)
	}

	now := j.now()
	notified := 0
	for org, list := range byOrg {
		days := 30
		notify := true
		if j.Settings != nil {
			if d, n, err := j.Settings.ExpiryWindow(ctx, org); err == nil {
				days, notify = d, n
			} else {
				logger.Warn("load organization settings", slog.String("organization_id", org), slog.Any("error", err))
			}
		}
		if !notify && payload.NoticeWindowDays == 0 {
			continue
		}
		cutoff := now.Add(time.Duration(days) * 24 * time.Hour)
		if payload.NoticeWindowDays > 0 {
			cutoff = now.Add(window)
		}

		var lines []string
		for _, c := range list {
			if c.EndDate.After(cutoff) {
				continue
			}
			lines = append(lines, fmt.Sprintf("%s (%s) ends %s", c.Title, c.ID, c.EndDate.Format("2006-01-02")))
		}
		if len(lines) == 0 {
			continue
		}
		_, err := j.Mailer.EnqueueSendEmail(ctx, SendEmailPayload{
			To:      payload.NotifyAddress,
			Subject: fmt.Sprintf("Contracts expiring soon for organization %s", org),
			Body:    strings.Join(lines, "\n"),
		})
		if err != nil {
			logger.Error("queue expiry notice", slog.String("organization_id", org), slog.Any("error", err))
			return notified, err
		}
		notified++
	}
	return notified, nil
}

func (j *ExpiryScanJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskContractsExpiryScan))
	}
	return slog.Default().With(slog.String("job", TaskContractsExpiryScan))
}

func (j *ExpiryScanJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}

func (j *ExpiryScanJob) now() time.Time {
	if j.clock != nil {
		return j.clock()
	}
	return time.Now().UTC()
}
