package worker

import (
	"context"
	"time"

	"trackbook/internal/events"
	"trackbook/internal/metrics"

	"github.com/rs/zerolog"
)

// SweeperStore is the storage surface the scheduled sweeps run against.
type SweeperStore interface {
	MarkEventsStarted(ctx context.Context, now time.Time) (int64, error)
	MarkEventsEnded(ctx context.Context, now time.Time) (int64, error)
	PurgeStaleUnpaidPayments(ctx context.Context, cutoff time.Time) (int64, error)
}

// Sweeper runs the periodic maintenance passes: the lifecycle sweep that
// moves events through started and ended, and the purge sweep that drops
// abandoned unpaid checkouts. Each pass retries with backoff before giving
// up until the next tick.
type Sweeper struct {
	store             SweeperStore
	eventBus          *events.EventBus
	retryPolicy       RetryPolicy
	lifecycleInterval time.Duration
	purgeInterval     time.Duration
	retention         time.Duration
	logger            *zerolog.Logger
}

func NewSweeper(store SweeperStore, eventBus *events.EventBus, retry RetryPolicy, lifecycleInterval, purgeInterval, retention time.Duration, logger *zerolog.Logger) *Sweeper {
	if retry.MaxRetries == 0 {
		retry.MaxRetries = 3
	}
	if retry.InitialDelay == 0 {
		retry.InitialDelay = 2 * time.Second
	}
	if retry.MaxDelay == 0 {
		retry.MaxDelay = 30 * time.Second
	}
	if retry.BackoffFactor == 0 {
		retry.BackoffFactor = 2
	}
	if lifecycleInterval <= 0 {
		lifecycleInterval = time.Hour
	}
	if purgeInterval <= 0 {
		purgeInterval = 24 * time.Hour
	}
	if retention <= 0 {
		retention = 72 * time.Hour
	}

	return &Sweeper{
		store:             store,
		eventBus:          eventBus,
		retryPolicy:       retry,
		lifecycleInterval: lifecycleInterval,
		purgeInterval:     purgeInterval,
		retention:         retention,
		logger:            logger,
	}
}

// Start blocks until ctx is canceled, running both sweeps on their
// intervals. A sweep also runs immediately on startup to catch up after
// downtime.
func (s *Sweeper) Start(ctx context.Context) {
	s.logger.Info().
		Dur("lifecycle_interval", s.lifecycleInterval).
		Dur("purge_interval", s.purgeInterval).
		Msg("sweeper started")

	s.runWithRetry(ctx, "lifecycle", s.SweepLifecycle)
	s.runWithRetry(ctx, "purge", s.SweepPurge)

	lifecycleTicker := time.NewTicker(s.lifecycleInterval)
	purgeTicker := time.NewTicker(s.purgeInterval)
	defer lifecycleTicker.Stop()
	defer purgeTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("sweeper stopped")
			return
		case <-lifecycleTicker.C:
			s.runWithRetry(ctx, "lifecycle", s.SweepLifecycle)
		case <-purgeTicker.C:
			s.runWithRetry(ctx, "purge", s.SweepPurge)
		}
	}
}

func (s *Sweeper) runWithRetry(ctx context.Context, name string, sweep func(context.Context) error) {
	for attempt := 1; attempt <= s.retryPolicy.MaxRetries; attempt++ {
		err := sweep(ctx)
		if err == nil {
			return
		}
		s.logger.Error().Err(err).Str("sweep", name).Int("attempt", attempt).Msg("sweep failed")

		if attempt == s.retryPolicy.MaxRetries {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(s.retryPolicy.NextDelay(attempt)):
		}
	}
}

// SweepLifecycle advances event statuses by wall clock. Transitions are
// monotonic: the guarded updates never move an event backwards, so running
// the sweep twice is harmless.
func (s *Sweeper) SweepLifecycle(ctx context.Context) error {
	now := time.Now()

	started, err := s.store.MarkEventsStarted(ctx, now)
	if err != nil {
		return err
	}
	ended, err := s.store.MarkEventsEnded(ctx, now)
	if err != nil {
		return err
	}

	metrics.AddSweep("started", started)
	metrics.AddSweep("ended", ended)

	if started > 0 || ended > 0 {
		_ = s.eventBus.PublishJSON(events.EventStatusChanged, map[string]int64{
			"started": started,
			"ended":   ended,
		})
		s.logger.Info().Int64("started", started).Int64("ended", ended).Msg("lifecycle sweep applied")
	}
	return nil
}

// SweepPurge drops unpaid payments and promotions older than the retention
// window. Bookings stay; only the abandoned checkout records go.
func (s *Sweeper) SweepPurge(ctx context.Context) error {
	cutoff := time.Now().Add(-s.retention)

	purged, err := s.store.PurgeStaleUnpaidPayments(ctx, cutoff)
	if err != nil {
		return err
	}

	metrics.AddSweep("purged", purged)
	if purged > 0 {
		s.logger.Info().Int64("purged", purged).Time("cutoff", cutoff).Msg("purge sweep applied")
	}
	return nil
}
