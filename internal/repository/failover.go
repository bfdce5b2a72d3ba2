package repository

import (
	"context"
	"sync/atomic"
	"time"

	"trackbook/internal/models"

	"github.com/rs/zerolog"
)

// FailoverAvailabilityCache serves from the primary cache until it errors,
// then falls back to the secondary and probes the primary again after a
// minute.
type FailoverAvailabilityCache struct {
	primary   AvailabilityCache
	fallback  AvailabilityCache
	logger    *zerolog.Logger
	isDown    atomic.Bool
	lastCheck time.Time
}

func NewFailoverAvailabilityCache(primary, fallback AvailabilityCache, logger *zerolog.Logger) *FailoverAvailabilityCache {
	return &FailoverAvailabilityCache{
		primary:  primary,
		fallback: fallback,
		logger:   logger,
	}
}

func (r *FailoverAvailabilityCache) markDown(err error) {
	r.logger.Error().Err(err).Msg("Primary cache failed, falling back to memory")
	r.isDown.Store(true)
	r.lastCheck = time.Now()
}

func (r *FailoverAvailabilityCache) GetAvailability(ctx context.Context, slotID int64, date string) (*models.Availability, error) {
	if !r.isDown.Load() {
		av, err := r.primary.GetAvailability(ctx, slotID, date)
		if err == nil {
			return av, nil
		}
		r.markDown(err)
	}

	// Try to recover after 1 minute
	if r.isDown.Load() && time.Since(r.lastCheck) > time.Minute {
		av, err := r.primary.GetAvailability(ctx, slotID, date)
		if err == nil {
			r.isDown.Store(false)
			return av, nil
		}
		r.lastCheck = time.Now()
	}

	return r.fallback.GetAvailability(ctx, slotID, date)
}

func (r *FailoverAvailabilityCache) SetAvailability(ctx context.Context, av *models.Availability) error {
	if !r.isDown.Load() {
		err := r.primary.SetAvailability(ctx, av)
		if err == nil {
			return nil
		}
		r.markDown(err)
	}
	return r.fallback.SetAvailability(ctx, av)
}

func (r *FailoverAvailabilityCache) InvalidateAvailability(ctx context.Context, slotID int64, date string) error {
	if !r.isDown.Load() {
		err := r.primary.InvalidateAvailability(ctx, slotID, date)
		if err == nil {
			return nil
		}
		r.markDown(err)
	}
	return r.fallback.InvalidateAvailability(ctx, slotID, date)
}

func (r *FailoverAvailabilityCache) MarkSessionSeen(ctx context.Context, sessionID string) error {
	if !r.isDown.Load() {
		err := r.primary.MarkSessionSeen(ctx, sessionID)
		if err == nil {
			return nil
		}
		r.markDown(err)
	}
	return r.fallback.MarkSessionSeen(ctx, sessionID)
}

func (r *FailoverAvailabilityCache) SessionSeen(ctx context.Context, sessionID string) (bool, error) {
	if !r.isDown.Load() {
		seen, err := r.primary.SessionSeen(ctx, sessionID)
		if err == nil {
			return seen, nil
		}
		r.markDown(err)
	}
	return r.fallback.SessionSeen(ctx, sessionID)
}
