package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"trackbook/internal/models"
)

func (db *DB) CreateEvent(ctx context.Context, event *models.Event) error {
	moreInfo, err := models.EncodeMoreInfo(event.MoreInfo)
	if err != nil {
		return fmt.Errorf("failed to encode more_info: %w", err)
	}

	query := `INSERT INTO events (
				host_id, name, address, longitude, latitude, description,
				start_at, end_at, more_info, status, created_at, updated_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	now := time.Now()
	result, err := db.ExecContext(ctx, query,
		event.HostID,
		event.Name,
		event.Address,
		event.Longitude,
		event.Latitude,
		event.Description,
		event.StartAt,
		event.EndAt,
		moreInfo,
		models.EventStatusOpen,
		now,
		now,
	)
	if err != nil {
		return fmt.Errorf("failed to create event: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	event.ID = id
	event.Status = models.EventStatusOpen
	event.CreatedAt = now
	event.UpdatedAt = now

	return nil
}

func (db *DB) GetEvent(ctx context.Context, id int64) (*models.Event, error) {
	query := `SELECT id, host_id, name, address, longitude, latitude, description,
	                 start_at, end_at, more_info, status, created_at, updated_at
	          FROM events WHERE id = ?`

	var event models.Event
	var moreInfo string
	err := db.QueryRowContext(ctx, query, id).Scan(
		&event.ID, &event.HostID, &event.Name, &event.Address,
		&event.Longitude, &event.Latitude, &event.Description,
		&event.StartAt, &event.EndAt, &moreInfo, &event.Status,
		&event.CreatedAt, &event.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrEventNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get event: %w", err)
	}

	event.MoreInfo, err = models.DecodeMoreInfo(moreInfo)
	if err != nil {
		return nil, fmt.Errorf("failed to decode more_info: %w", err)
	}
	return &event, nil
}

func (db *DB) ListEventsByHost(ctx context.Context, hostID int64) ([]*models.Event, error) {
	query := `SELECT id, host_id, name, address, longitude, latitude, description,
	                 start_at, end_at, more_info, status, created_at, updated_at
	          FROM events WHERE host_id = ? ORDER BY created_at DESC`

	rows, err := db.QueryContext(ctx, query, hostID)
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	defer rows.Close()

	var events []*models.Event
	for rows.Next() {
		e := &models.Event{}
		var moreInfo string
		err := rows.Scan(
			&e.ID, &e.HostID, &e.Name, &e.Address,
			&e.Longitude, &e.Latitude, &e.Description,
			&e.StartAt, &e.EndAt, &moreInfo, &e.Status,
			&e.CreatedAt, &e.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		if e.MoreInfo, err = models.DecodeMoreInfo(moreInfo); err != nil {
			return nil, fmt.Errorf("failed to decode more_info: %w", err)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

func (db *DB) DeleteEvent(ctx context.Context, id int64) error {
	result, err := db.ExecContext(ctx, `DELETE FROM events WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete event: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrEventNotFound
	}
	return nil
}

// MarkEventsStarted advances events whose start time has passed. The status
// guard keeps the sweep from clobbering a concurrent transition: only open
// and full events move to started.
func (db *DB) MarkEventsStarted(ctx context.Context, now time.Time) (int64, error) {
	query := `UPDATE events SET status = ?, updated_at = ?
	          WHERE start_at <= ? AND status IN (?, ?)`
	result, err := db.ExecContext(ctx, query,
		models.EventStatusStarted, now, now,
		models.EventStatusOpen, models.EventStatusFull,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to mark events started: %w", err)
	}
	return result.RowsAffected()
}

// MarkEventsEnded advances started events whose end time has passed.
func (db *DB) MarkEventsEnded(ctx context.Context, now time.Time) (int64, error) {
	query := `UPDATE events SET status = ?, updated_at = ?
	          WHERE end_at <= ? AND status = ?`
	result, err := db.ExecContext(ctx, query,
		models.EventStatusEnded, now, now, models.EventStatusStarted,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to mark events ended: %w", err)
	}
	return result.RowsAffected()
}

// Track methods

func (db *DB) CreateTrack(ctx context.Context, track *models.Track) error {
	days, err := models.EncodeDays(track.TrackDays)
	if err != nil {
		return fmt.Errorf("failed to encode track days: %w", err)
	}

	query := `INSERT INTO tracks (
				host_id, name, category, address, longitude, latitude,
				description, track_days, total_track_day_in_month, status,
				created_at, updated_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	now := time.Now()
	result, err := db.ExecContext(ctx, query,
		track.HostID,
		track.Name,
		track.Category,
		track.Address,
		track.Longitude,
		track.Latitude,
		track.Description,
		days,
		track.TotalTrackDayInMonth,
		models.TrackStatusDeactivated,
		now,
		now,
	)
	if err != nil {
		return fmt.Errorf("failed to create track: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	track.ID = id
	track.Status = models.TrackStatusDeactivated
	track.CreatedAt = now
	track.UpdatedAt = now

	return nil
}

func (db *DB) GetTrack(ctx context.Context, id int64) (*models.Track, error) {
	query := `SELECT id, host_id, name, category, address, longitude, latitude,
	                 description, track_days, total_track_day_in_month, status,
	                 created_at, updated_at
	          FROM tracks WHERE id = ?`

	var track models.Track
	var days string
	err := db.QueryRowContext(ctx, query, id).Scan(
		&track.ID, &track.HostID, &track.Name, &track.Category, &track.Address,
		&track.Longitude, &track.Latitude, &track.Description,
		&days, &track.TotalTrackDayInMonth, &track.Status,
		&track.CreatedAt, &track.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrTrackNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get track: %w", err)
	}

	track.TrackDays, err = models.DecodeDays(days)
	if err != nil {
		return nil, fmt.Errorf("failed to decode track days: %w", err)
	}
	return &track, nil
}

func (db *DB) ListTracksByHost(ctx context.Context, hostID int64) ([]*models.Track, error) {
	return db.listTracks(ctx, `host_id = ?`, hostID)
}

func (db *DB) ListActiveTracks(ctx context.Context, category string) ([]*models.Track, error) {
	if category != "" {
		return db.listTracks(ctx, `status = ? AND category = ?`, models.TrackStatusActive, category)
	}
	return db.listTracks(ctx, `status = ?`, models.TrackStatusActive)
}

func (db *DB) listTracks(ctx context.Context, where string, args ...any) ([]*models.Track, error) {
	query := `SELECT id, host_id, name, category, address, longitude, latitude,
	                 description, track_days, total_track_day_in_month, status,
	                 created_at, updated_at
	          FROM tracks WHERE ` + where + ` ORDER BY created_at DESC`

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list tracks: %w", err)
	}
	defer rows.Close()

	var tracks []*models.Track
	for rows.Next() {
		t := &models.Track{}
		var days string
		err := rows.Scan(
			&t.ID, &t.HostID, &t.Name, &t.Category, &t.Address,
			&t.Longitude, &t.Latitude, &t.Description,
			&days, &t.TotalTrackDayInMonth, &t.Status,
			&t.CreatedAt, &t.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan track: %w", err)
		}
		if t.TrackDays, err = models.DecodeDays(days); err != nil {
			return nil, fmt.Errorf("failed to decode track days: %w", err)
		}
		tracks = append(tracks, t)
	}
	return tracks, rows.Err()
}

// UpdateTrackDays stores the recurrence days together with the recomputed
// day count and activates the track in one statement.
func (db *DB) UpdateTrackDays(ctx context.Context, trackID int64, days []string, totalDayInMonth int) error {
	encoded, err := models.EncodeDays(days)
	if err != nil {
		return fmt.Errorf("failed to encode track days: %w", err)
	}

	query := `UPDATE tracks SET track_days = ?, total_track_day_in_month = ?,
	          status = ?, updated_at = ? WHERE id = ?`
	result, err := db.ExecContext(ctx, query,
		encoded, totalDayInMonth, models.TrackStatusActive, time.Now(), trackID,
	)
	if err != nil {
		return fmt.Errorf("failed to update track days: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrTrackNotFound
	}
	return nil
}

func (db *DB) SetTrackStatus(ctx context.Context, trackID int64, status string) error {
	result, err := db.ExecContext(ctx,
		`UPDATE tracks SET status = ?, updated_at = ? WHERE id = ?`,
		status, time.Now(), trackID,
	)
	if err != nil {
		return fmt.Errorf("failed to set track status: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrTrackNotFound
	}
	return nil
}
