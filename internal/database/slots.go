package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"trackbook/internal/models"
)

func (db *DB) CreateEventSlot(ctx context.Context, slot *models.EventSlot) error {
	query := `INSERT INTO event_slots (
				event_id, host_id, slot_no, price, currency, max_people,
				current_people, description, status, created_at, updated_at
			) VALUES (?, ?, ?, ?, ?, ?, 0, ?, ?, ?, ?)`
	now := time.Now()
	result, err := db.ExecContext(ctx, query,
		slot.EventID,
		slot.HostID,
		slot.SlotNo,
		slot.Price,
		slot.Currency,
		slot.MaxPeople,
		slot.Description,
		models.SlotStatusOpen,
		now,
		now,
	)
	if err != nil {
		return fmt.Errorf("failed to create event slot: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	slot.ID = id
	slot.CurrentPeople = 0
	slot.Status = models.SlotStatusOpen
	slot.CreatedAt = now
	slot.UpdatedAt = now

	return nil
}

func (db *DB) GetEventSlot(ctx context.Context, id int64) (*models.EventSlot, error) {
	query := `SELECT id, event_id, host_id, slot_no, price, currency, max_people,
	                 current_people, description, status, created_at, updated_at
	          FROM event_slots WHERE id = ?`

	var slot models.EventSlot
	err := db.QueryRowContext(ctx, query, id).Scan(
		&slot.ID, &slot.EventID, &slot.HostID, &slot.SlotNo,
		&slot.Price, &slot.Currency, &slot.MaxPeople, &slot.CurrentPeople,
		&slot.Description, &slot.Status, &slot.CreatedAt, &slot.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSlotNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get event slot: %w", err)
	}
	return &slot, nil
}

func (db *DB) ListEventSlots(ctx context.Context, eventID int64) ([]*models.EventSlot, error) {
	query := `SELECT id, event_id, host_id, slot_no, price, currency, max_people,
	                 current_people, description, status, created_at, updated_at
	          FROM event_slots WHERE event_id = ? ORDER BY slot_no`

	rows, err := db.QueryContext(ctx, query, eventID)
	if err != nil {
		return nil, fmt.Errorf("failed to list event slots: %w", err)
	}
	defer rows.Close()

	var slots []*models.EventSlot
	for rows.Next() {
		s := &models.EventSlot{}
		err := rows.Scan(
			&s.ID, &s.EventID, &s.HostID, &s.SlotNo,
			&s.Price, &s.Currency, &s.MaxPeople, &s.CurrentPeople,
			&s.Description, &s.Status, &s.CreatedAt, &s.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan event slot: %w", err)
		}
		slots = append(slots, s)
	}
	return slots, rows.Err()
}

// EventCapacity returns the aggregate capacity and occupancy across all
// slots of an event.
func (db *DB) EventCapacity(ctx context.Context, eventID int64) (maxPeople, currentPeople int, err error) {
	query := `SELECT COALESCE(SUM(max_people), 0), COALESCE(SUM(current_people), 0)
	          FROM event_slots WHERE event_id = ?`
	err = db.QueryRowContext(ctx, query, eventID).Scan(&maxPeople, &currentPeople)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to get event capacity: %w", err)
	}
	return maxPeople, currentPeople, nil
}

// CheckEventSlotAvailability is a pure read of remaining seats. The write
// path re-validates inside the reservation transaction; this exists for
// read-side display and pre-flight checks only.
func (db *DB) CheckEventSlotAvailability(ctx context.Context, slotID int64, seats int) (bool, int, error) {
	slot, err := db.GetEventSlot(ctx, slotID)
	if err != nil {
		return false, 0, err
	}
	remaining := slot.Remaining()
	return seats <= remaining, remaining, nil
}

func (db *DB) UpdateEventSlotPrice(ctx context.Context, slotID int64, price float64) error {
	result, err := db.ExecContext(ctx,
		`UPDATE event_slots SET price = ?, updated_at = ? WHERE id = ?`,
		price, time.Now(), slotID,
	)
	if err != nil {
		return fmt.Errorf("failed to update slot price: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrSlotNotFound
	}
	return nil
}

func (db *DB) DeleteEventSlot(ctx context.Context, slotID int64) error {
	result, err := db.ExecContext(ctx, `DELETE FROM event_slots WHERE id = ?`, slotID)
	if err != nil {
		return fmt.Errorf("failed to delete event slot: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrSlotNotFound
	}
	return nil
}

// Track slot methods

func (db *DB) CreateTrackSlot(ctx context.Context, slot *models.TrackSlot) error {
	query := `INSERT INTO track_slots (
				track_id, host_id, day, slot_no, start_time, end_time,
				price, currency, max_people, description, created_at, updated_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	now := time.Now()
	result, err := db.ExecContext(ctx, query,
		slot.TrackID,
		slot.HostID,
		slot.Day,
		slot.SlotNo,
		slot.StartTime,
		slot.EndTime,
		slot.Price,
		slot.Currency,
		slot.MaxPeople,
		slot.Description,
		now,
		now,
	)
	if err != nil {
		return fmt.Errorf("failed to create track slot: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	slot.ID = id
	slot.CreatedAt = now
	slot.UpdatedAt = now

	return nil
}

func (db *DB) GetTrackSlot(ctx context.Context, id int64) (*models.TrackSlot, error) {
	query := `SELECT id, track_id, host_id, day, slot_no, start_time, end_time,
	                 price, currency, max_people, description, created_at, updated_at
	          FROM track_slots WHERE id = ?`

	var slot models.TrackSlot
	err := db.QueryRowContext(ctx, query, id).Scan(
		&slot.ID, &slot.TrackID, &slot.HostID, &slot.Day, &slot.SlotNo,
		&slot.StartTime, &slot.EndTime, &slot.Price, &slot.Currency,
		&slot.MaxPeople, &slot.Description, &slot.CreatedAt, &slot.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSlotNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get track slot: %w", err)
	}
	return &slot, nil
}

func (db *DB) ListTrackSlotsByDay(ctx context.Context, trackID int64, day string) ([]*models.TrackSlot, error) {
	query := `SELECT id, track_id, host_id, day, slot_no, start_time, end_time,
	                 price, currency, max_people, description, created_at, updated_at
	          FROM track_slots WHERE track_id = ? AND day = ? ORDER BY start_time`

	rows, err := db.QueryContext(ctx, query, trackID, day)
	if err != nil {
		return nil, fmt.Errorf("failed to list track slots: %w", err)
	}
	defer rows.Close()

	var slots []*models.TrackSlot
	for rows.Next() {
		s := &models.TrackSlot{}
		err := rows.Scan(
			&s.ID, &s.TrackID, &s.HostID, &s.Day, &s.SlotNo,
			&s.StartTime, &s.EndTime, &s.Price, &s.Currency,
			&s.MaxPeople, &s.Description, &s.CreatedAt, &s.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan track slot: %w", err)
		}
		slots = append(slots, s)
	}
	return slots, rows.Err()
}

func (db *DB) DeleteTrackSlot(ctx context.Context, slotID int64) error {
	result, err := db.ExecContext(ctx, `DELETE FROM track_slots WHERE id = ?`, slotID)
	if err != nil {
		return fmt.Errorf("failed to delete track slot: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrSlotNotFound
	}
	return nil
}

// BookedSeatsOnDate sums seats already committed for a track slot on a
// calendar date. Occupancy for recurring slots is scoped per date, not
// stored on the slot row.
func (db *DB) BookedSeatsOnDate(ctx context.Context, slotID int64, date time.Time) (int, error) {
	query := `SELECT COALESCE(SUM(num_people), 0) FROM bookings
	          WHERE track_slot_id = ? AND date = ?`
	var booked int
	err := db.QueryRowContext(ctx, query, slotID, date.Format("2006-01-02")).Scan(&booked)
	if err != nil {
		return 0, fmt.Errorf("failed to get booked seats: %w", err)
	}
	return booked, nil
}

// TrackSlotAvailability returns per-slot remaining seats for a track on a
// calendar date.
func (db *DB) TrackSlotAvailability(ctx context.Context, trackID int64, date time.Time, day string) ([]*models.Availability, []*models.TrackSlot, error) {
	slots, err := db.ListTrackSlotsByDay(ctx, trackID, day)
	if err != nil {
		return nil, nil, err
	}

	var availability []*models.Availability
	for _, slot := range slots {
		booked, err := db.BookedSeatsOnDate(ctx, slot.ID, date)
		if err != nil {
			return nil, nil, err
		}
		availability = append(availability, &models.Availability{
			SlotID:    slot.ID,
			Date:      date,
			Booked:    booked,
			Available: slot.MaxPeople - booked,
		})
	}
	return availability, slots, nil
}
