// Package jobs runs periodic maintenance for the credential store.
package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/rs/zerolog"

	"github.com/edvin/authcore/internal/metrics"
)

// Purger deletes codes and tokens that expired before a cutoff.
// store.Store implementations satisfy it.
type Purger interface {
	PurgeExpired(ctx context.Context, before time.Time) (int64, error)
}

// Scheduler runs the expired-credential purge on a fixed interval.
type Scheduler struct {
	scheduler gocron.Scheduler
	purger    Purger
	retention time.Duration
	logger    zerolog.Logger
	now       func() time.Time
}

// NewScheduler registers the purge job. Rows are deleted once they have been
// expired for longer than retention, which keeps recently expired tokens
// around for replay detection and support lookups.
func NewScheduler(purger Purger, interval, retention time.Duration, logger zerolog.Logger) (*Scheduler, error) {
	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("create scheduler: %w", err)
	}

	js := &Scheduler{
		scheduler: s,
		purger:    purger,
		retention: retention,
		logger:    logger.With().Str("component", "jobs").Logger(),
		now:       time.Now,
	}

	_, err = s.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(js.Purge, context.Background()),
		gocron.WithName("purge-expired-credentials"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return nil, fmt.Errorf("register purge job: %w", err)
	}
	return js, nil
}

func (js *Scheduler) Start() {
	js.logger.Info().Msg("starting background job scheduler")
	js.scheduler.Start()
}

func (js *Scheduler) Stop() error {
	js.logger.Info().Msg("stopping background job scheduler")
	return js.scheduler.Shutdown()
}

// Purge deletes credentials that expired more than the retention period ago.
func (js *Scheduler) Purge(ctx context.Context) error {
	cutoff := js.now().Add(-js.retention)
	n, err := js.purger.PurgeExpired(ctx, cutoff)
	if err != nil {
		js.logger.Error().Err(err).Msg("purge expired credentials failed")
		return err
	}
	metrics.CredentialsPurged.Add(float64(n))
	js.logger.Info().Int64("deleted", n).Time("cutoff", cutoff).Msg("purged expired credentials")
	return nil
}
