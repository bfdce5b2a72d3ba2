package database

import (
	"context"
	"testing"
	"time"

	"trackbook/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func eventStatus(t *testing.T, db *DB, id int64) string {
	t.Helper()
	event, err := db.GetEvent(context.Background(), id)
	require.NoError(t, err)
	return event.Status
}

func TestLifecycleSweeps(t *testing.T) {
	ctx := context.Background()

	t.Run("OpenEventStarts", func(t *testing.T) {
		db := newTestDB(t)
		event := createTestEvent(t, db, time.Now().Add(-time.Hour), time.Now().Add(time.Hour))

		n, err := db.MarkEventsStarted(ctx, time.Now())
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)
		assert.Equal(t, models.EventStatusStarted, eventStatus(t, db, event.ID))
	})

	t.Run("FullEventStarts", func(t *testing.T) {
		db := newTestDB(t)
		event := createTestEvent(t, db, time.Now().Add(-time.Hour), time.Now().Add(time.Hour))
		_, err := db.ExecContext(ctx, `UPDATE events SET status = ? WHERE id = ?`, models.EventStatusFull, event.ID)
		require.NoError(t, err)

		n, err := db.MarkEventsStarted(ctx, time.Now())
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)
		assert.Equal(t, models.EventStatusStarted, eventStatus(t, db, event.ID))
	})

	t.Run("FutureEventUntouched", func(t *testing.T) {
		db := newTestDB(t)
		event := createTestEvent(t, db, time.Now().Add(time.Hour), time.Now().Add(2*time.Hour))

		n, err := db.MarkEventsStarted(ctx, time.Now())
		require.NoError(t, err)
		assert.Zero(t, n)
		assert.Equal(t, models.EventStatusOpen, eventStatus(t, db, event.ID))
	})

	t.Run("OnlyStartedEventsEnd", func(t *testing.T) {
		db := newTestDB(t)
		event := createTestEvent(t, db, time.Now().Add(-2*time.Hour), time.Now().Add(-time.Hour))

		// Still open: the end sweep alone must not touch it.
		n, err := db.MarkEventsEnded(ctx, time.Now())
		require.NoError(t, err)
		assert.Zero(t, n)
		assert.Equal(t, models.EventStatusOpen, eventStatus(t, db, event.ID))

		_, err = db.MarkEventsStarted(ctx, time.Now())
		require.NoError(t, err)

		n, err = db.MarkEventsEnded(ctx, time.Now())
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)
		assert.Equal(t, models.EventStatusEnded, eventStatus(t, db, event.ID))
	})

	t.Run("SweepIsIdempotent", func(t *testing.T) {
		db := newTestDB(t)
		event := createTestEvent(t, db, time.Now().Add(-2*time.Hour), time.Now().Add(-time.Hour))

		_, err := db.MarkEventsStarted(ctx, time.Now())
		require.NoError(t, err)
		_, err = db.MarkEventsEnded(ctx, time.Now())
		require.NoError(t, err)

		// Rerunning both sweeps must not move the event anywhere.
		n, err := db.MarkEventsStarted(ctx, time.Now())
		require.NoError(t, err)
		assert.Zero(t, n)
		n, err = db.MarkEventsEnded(ctx, time.Now())
		require.NoError(t, err)
		assert.Zero(t, n)
		assert.Equal(t, models.EventStatusEnded, eventStatus(t, db, event.ID))
	})
}

func TestTrackStatus(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	track := createTestTrack(t, db)

	require.NoError(t, db.SetTrackStatus(ctx, track.ID, models.TrackStatusDeactivated))
	stored, err := db.GetTrack(ctx, track.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TrackStatusDeactivated, stored.Status)

	active, err := db.ListActiveTracks(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, active)

	require.NoError(t, db.SetTrackStatus(ctx, track.ID, models.TrackStatusActive))
	active, err = db.ListActiveTracks(ctx, "karting")
	require.NoError(t, err)
	assert.Len(t, active, 1)

	assert.ErrorIs(t, db.SetTrackStatus(ctx, 9999, models.TrackStatusActive), ErrTrackNotFound)
}
