package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"trackbook/internal/models"
)

// ReserveEventSeats commits a batch of one-seat bookings against an event
// slot as a single transaction: status re-check, capacity re-check, booking
// inserts, occupancy increment and status flips all succeed or none do.
// Seats requested equals len(bookings).
func (db *DB) ReserveEventSeats(ctx context.Context, eventID, slotID int64, bookings []*models.Booking) error {
	if len(bookings) == 0 {
		return errors.New("no bookings to reserve")
	}
	seats := len(bookings)

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Re-read parent status inside the transaction.
	var eventStatus string
	err = tx.QueryRowContext(ctx, `SELECT status FROM events WHERE id = ?`, eventID).Scan(&eventStatus)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrEventNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to read event in tx: %w", err)
	}
	if eventStatus != models.EventStatusOpen {
		return ErrBusinessClosed
	}

	// Re-read occupancy inside the transaction. The earlier read outside is
	// advisory only; concurrent reservations may have landed since.
	var maxPeople, currentPeople int
	err = tx.QueryRowContext(ctx,
		`SELECT max_people, current_people FROM event_slots WHERE id = ? AND event_id = ?`,
		slotID, eventID,
	).Scan(&maxPeople, &currentPeople)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrSlotNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to read slot in tx: %w", err)
	}

	if currentPeople+seats > maxPeople {
		return &CapacityError{Remaining: maxPeople - currentPeople}
	}

	for _, booking := range bookings {
		if err := insertBookingTx(ctx, tx, booking); err != nil {
			return fmt.Errorf("failed to insert booking in tx: %w", err)
		}
	}

	// Increment occupancy with a write-time guard. The guard cannot fire
	// after the in-tx read above, but it keeps the counter invariant
	// enforced at the single point of mutation.
	result, err := tx.ExecContext(ctx,
		`UPDATE event_slots
		 SET current_people = current_people + ?,
		     status = CASE WHEN current_people + ? = max_people THEN ? ELSE status END,
		     updated_at = ?
		 WHERE id = ? AND current_people + ? <= max_people`,
		seats, seats, models.SlotStatusBooked, time.Now(), slotID, seats,
	)
	if err != nil {
		return fmt.Errorf("failed to increment occupancy: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrConcurrentModification
	}

	// Flip the parent to full when aggregate capacity is exhausted.
	var totalMax, totalCurrent int
	err = tx.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(max_people), 0), COALESCE(SUM(current_people), 0)
		 FROM event_slots WHERE event_id = ?`, eventID,
	).Scan(&totalMax, &totalCurrent)
	if err != nil {
		return fmt.Errorf("failed to read aggregate capacity: %w", err)
	}
	if totalMax > 0 && totalCurrent == totalMax {
		_, err = tx.ExecContext(ctx,
			`UPDATE events SET status = ?, updated_at = ? WHERE id = ? AND status = ?`,
			models.EventStatusFull, time.Now(), eventID, models.EventStatusOpen,
		)
		if err != nil {
			return fmt.Errorf("failed to mark event full: %w", err)
		}
	}

	return tx.Commit()
}

// CreateTrackBookingWithLock books seats on a recurring track slot for one
// calendar date. Seats already consumed on that date are re-summed inside
// the transaction so concurrent bookings cannot oversell.
func (db *DB) CreateTrackBookingWithLock(ctx context.Context, booking *models.Booking, maxPeople int) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	var booked int
	err = tx.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(num_people), 0) FROM bookings WHERE track_slot_id = ? AND date = ?`,
		booking.TrackSlotID, booking.StartAt.Format("2006-01-02"),
	).Scan(&booked)
	if err != nil {
		return fmt.Errorf("failed to sum booked seats in tx: %w", err)
	}

	if booked+booking.NumPeople > maxPeople {
		return &CapacityError{Remaining: maxPeople - booked}
	}

	if err := insertBookingTx(ctx, tx, booking); err != nil {
		return fmt.Errorf("failed to insert booking in tx: %w", err)
	}

	return tx.Commit()
}

func insertBookingTx(ctx context.Context, tx *sql.Tx, booking *models.Booking) error {
	moreInfo, err := models.EncodeAnswers(booking.MoreInfo)
	if err != nil {
		return fmt.Errorf("failed to encode answers: %w", err)
	}

	query := `INSERT INTO bookings (
				user_id, host_id, event_id, event_slot_id, track_id, track_slot_id,
				date, start_at, end_at, price, currency, num_people, booking_for,
				more_info, status, created_at, updated_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	now := time.Now()
	result, err := tx.ExecContext(ctx, query,
		booking.UserID,
		booking.HostID,
		nullableID(booking.EventID),
		nullableID(booking.EventSlotID),
		nullableID(booking.TrackID),
		nullableID(booking.TrackSlotID),
		booking.StartAt.Format("2006-01-02"),
		booking.StartAt,
		booking.EndAt,
		booking.Price,
		booking.Currency,
		booking.NumPeople,
		booking.BookingFor,
		moreInfo,
		models.BookingStatusUnpaid,
		now,
		now,
	)
	if err != nil {
		return err
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	booking.ID = id
	booking.Status = models.BookingStatusUnpaid
	booking.CreatedAt = now
	booking.UpdatedAt = now

	return nil
}

func nullableID(id int64) any {
	if id == 0 {
		return nil
	}
	return id
}

const bookingColumns = `id, user_id, host_id, COALESCE(event_id, 0),
	COALESCE(event_slot_id, 0), COALESCE(track_id, 0), COALESCE(track_slot_id, 0),
	start_at, end_at, price, currency, num_people, COALESCE(booking_for, ''),
	more_info, status, created_at, updated_at`

func scanBooking(row interface{ Scan(dest ...any) error }) (*models.Booking, error) {
	b := &models.Booking{}
	var moreInfo string
	err := row.Scan(
		&b.ID, &b.UserID, &b.HostID, &b.EventID, &b.EventSlotID,
		&b.TrackID, &b.TrackSlotID, &b.StartAt, &b.EndAt,
		&b.Price, &b.Currency, &b.NumPeople, &b.BookingFor,
		&moreInfo, &b.Status, &b.CreatedAt, &b.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if b.MoreInfo, err = models.DecodeAnswers(moreInfo); err != nil {
		return nil, fmt.Errorf("failed to decode answers: %w", err)
	}
	return b, nil
}

func (db *DB) GetBooking(ctx context.Context, id int64) (*models.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE id = ?`
	booking, err := scanBooking(db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrBookingNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get booking: %w", err)
	}
	return booking, nil
}

// ListUserBookings returns a user's event or track bookings, upcoming by
// default or past when history is set.
func (db *DB) ListUserBookings(ctx context.Context, userID int64, businessType string, history bool) ([]*models.Booking, error) {
	var conds []string
	args := []any{userID}

	conds = append(conds, "user_id = ?")
	if history {
		conds = append(conds, "end_at < ?")
	} else {
		conds = append(conds, "end_at >= ?")
	}
	args = append(args, time.Now())

	if businessType == models.BusinessTypeEvent {
		conds = append(conds, "event_id IS NOT NULL")
	} else {
		conds = append(conds, "track_id IS NOT NULL")
	}

	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE ` +
		strings.Join(conds, " AND ") + ` ORDER BY start_at DESC`
	return db.queryBookings(ctx, query, args...)
}

// ListSlotParticipants returns all bookings placed against one bookable unit.
func (db *DB) ListSlotParticipants(ctx context.Context, eventSlotID, trackSlotID int64) ([]*models.Booking, error) {
	if eventSlotID != 0 {
		query := `SELECT ` + bookingColumns + ` FROM bookings WHERE event_slot_id = ? ORDER BY created_at`
		return db.queryBookings(ctx, query, eventSlotID)
	}
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE track_slot_id = ? ORDER BY created_at`
	return db.queryBookings(ctx, query, trackSlotID)
}

// ListHostBookingsByDateRange returns a host's bookings between two dates,
// used by the report export.
func (db *DB) ListHostBookingsByDateRange(ctx context.Context, hostID int64, start, end time.Time) ([]*models.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings
	          WHERE host_id = ? AND date >= ? AND date <= ?
	          ORDER BY start_at, created_at`
	return db.queryBookings(ctx, query,
		hostID, start.Format("2006-01-02"), end.Format("2006-01-02"))
}

func (db *DB) queryBookings(ctx context.Context, query string, args ...any) ([]*models.Booking, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query bookings: %w", err)
	}
	defer rows.Close()

	var bookings []*models.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan booking: %w", err)
		}
		bookings = append(bookings, b)
	}
	return bookings, rows.Err()
}
