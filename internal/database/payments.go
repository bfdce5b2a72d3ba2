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

// CreatePayment records a pending checkout together with the bookings it
// covers. The session id is unique; a second insert with the same id fails
// with ErrDuplicateSession.
func (db *DB) CreatePayment(ctx context.Context, payment *models.Payment) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	query := `INSERT INTO payments (
				user_id, host_id, business_type, event_id, track_id,
				amount, currency, checkout_session_id, payment_intent_id,
				is_promotion, status, created_at, updated_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	now := time.Now()
	result, err := tx.ExecContext(ctx, query,
		payment.UserID,
		payment.HostID,
		payment.BusinessType,
		nullableID(payment.EventID),
		nullableID(payment.TrackID),
		payment.Amount,
		payment.Currency,
		payment.CheckoutSessionID,
		payment.PaymentIntentID,
		payment.IsPromotion,
		models.PaymentStatusUnpaid,
		now,
		now,
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return ErrDuplicateSession
		}
		return fmt.Errorf("failed to create payment: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	payment.ID = id
	payment.Status = models.PaymentStatusUnpaid
	payment.CreatedAt = now
	payment.UpdatedAt = now

	for _, bookingID := range payment.BookingIDs {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO payment_bookings (payment_id, booking_id) VALUES (?, ?)`,
			id, bookingID,
		)
		if err != nil {
			return fmt.Errorf("failed to link booking %d: %w", bookingID, err)
		}
	}

	return tx.Commit()
}

func (db *DB) GetPaymentBySession(ctx context.Context, sessionID string) (*models.Payment, error) {
	query := `SELECT id, user_id, host_id, business_type,
	                 COALESCE(event_id, 0), COALESCE(track_id, 0),
	                 amount, currency, checkout_session_id,
	                 COALESCE(payment_intent_id, ''), is_promotion, status,
	                 created_at, updated_at
	          FROM payments WHERE checkout_session_id = ?`

	var p models.Payment
	err := db.QueryRowContext(ctx, query, sessionID).Scan(
		&p.ID, &p.UserID, &p.HostID, &p.BusinessType,
		&p.EventID, &p.TrackID, &p.Amount, &p.Currency,
		&p.CheckoutSessionID, &p.PaymentIntentID, &p.IsPromotion,
		&p.Status, &p.CreatedAt, &p.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrPaymentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get payment: %w", err)
	}

	if p.BookingIDs, err = db.paymentBookingIDs(ctx, p.ID); err != nil {
		return nil, err
	}
	return &p, nil
}

// HasPendingPayment reports whether an unpaid payment already links the
// booking. Stale sessions are released when the purge sweep deletes them.
func (db *DB) HasPendingPayment(ctx context.Context, bookingID int64) (bool, error) {
	var n int
	err := db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM payments p
		 JOIN payment_bookings pb ON pb.payment_id = p.id
		 WHERE pb.booking_id = ? AND p.status = ?`,
		bookingID, models.PaymentStatusUnpaid,
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("failed to check pending payments: %w", err)
	}
	return n > 0, nil
}

func (db *DB) paymentBookingIDs(ctx context.Context, paymentID int64) ([]int64, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT booking_id FROM payment_bookings WHERE payment_id = ? ORDER BY booking_id`,
		paymentID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query payment bookings: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan booking id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ReconcilePayment marks a checkout session succeeded and flips its related
// records to paid, all in one transaction. A session already reconciled is a
// no-op: the stored payment is returned with alreadyProcessed set and nothing
// is written, so webhook redelivery cannot double-apply.
func (db *DB) ReconcilePayment(ctx context.Context, sessionID, paymentIntentID string) (*models.Payment, bool, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	var p models.Payment
	err = tx.QueryRowContext(ctx,
		`SELECT id, user_id, host_id, business_type,
		        COALESCE(event_id, 0), COALESCE(track_id, 0),
		        amount, currency, checkout_session_id,
		        COALESCE(payment_intent_id, ''), is_promotion, status,
		        created_at, updated_at
		 FROM payments WHERE checkout_session_id = ?`, sessionID,
	).Scan(
		&p.ID, &p.UserID, &p.HostID, &p.BusinessType,
		&p.EventID, &p.TrackID, &p.Amount, &p.Currency,
		&p.CheckoutSessionID, &p.PaymentIntentID, &p.IsPromotion,
		&p.Status, &p.CreatedAt, &p.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, ErrPaymentNotFound
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read payment in tx: %w", err)
	}

	if p.Status == models.PaymentStatusSucceeded {
		return &p, true, nil
	}

	now := time.Now()
	_, err = tx.ExecContext(ctx,
		`UPDATE payments SET status = ?, payment_intent_id = ?, updated_at = ? WHERE id = ?`,
		models.PaymentStatusSucceeded, paymentIntentID, now, p.ID,
	)
	if err != nil {
		return nil, false, fmt.Errorf("failed to mark payment succeeded: %w", err)
	}

	if p.IsPromotion {
		_, err = tx.ExecContext(ctx,
			`UPDATE promotions SET status = ?, updated_at = ? WHERE checkout_session_id = ?`,
			models.PromotionStatusPaid, now, sessionID,
		)
		if err != nil {
			return nil, false, fmt.Errorf("failed to mark promotion paid: %w", err)
		}
	} else {
		_, err = tx.ExecContext(ctx,
			`UPDATE bookings SET status = ?, updated_at = ?
			 WHERE id IN (SELECT booking_id FROM payment_bookings WHERE payment_id = ?)`,
			models.BookingStatusPaid, now, p.ID,
		)
		if err != nil {
			return nil, false, fmt.Errorf("failed to mark bookings paid: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, false, err
	}

	p.Status = models.PaymentStatusSucceeded
	p.PaymentIntentID = paymentIntentID
	p.UpdatedAt = now
	if p.BookingIDs, err = db.paymentBookingIDs(ctx, p.ID); err != nil {
		return nil, false, err
	}
	return &p, false, nil
}

// Promotion methods

func (db *DB) CreatePromotion(ctx context.Context, promo *models.Promotion) error {
	query := `INSERT INTO promotions (
				host_id, track_id, checkout_session_id, banner_image,
				expired_at, status, created_at, updated_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	now := time.Now()
	result, err := db.ExecContext(ctx, query,
		promo.HostID,
		promo.TrackID,
		promo.CheckoutSessionID,
		promo.BannerImage,
		promo.ExpiredAt,
		models.PromotionStatusUnpaid,
		now,
		now,
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return ErrDuplicateSession
		}
		return fmt.Errorf("failed to create promotion: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	promo.ID = id
	promo.Status = models.PromotionStatusUnpaid
	promo.CreatedAt = now
	promo.UpdatedAt = now

	return nil
}

// ListPaidPromotions returns promotions that are paid and not yet expired.
func (db *DB) ListPaidPromotions(ctx context.Context, now time.Time) ([]*models.Promotion, error) {
	query := `SELECT id, host_id, track_id, checkout_session_id, banner_image,
	                 expired_at, status, created_at, updated_at
	          FROM promotions WHERE status = ? AND expired_at > ?
	          ORDER BY created_at DESC`

	rows, err := db.QueryContext(ctx, query, models.PromotionStatusPaid, now)
	if err != nil {
		return nil, fmt.Errorf("failed to list promotions: %w", err)
	}
	defer rows.Close()

	var promos []*models.Promotion
	for rows.Next() {
		p := &models.Promotion{}
		err := rows.Scan(
			&p.ID, &p.HostID, &p.TrackID, &p.CheckoutSessionID,
			&p.BannerImage, &p.ExpiredAt, &p.Status,
			&p.CreatedAt, &p.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan promotion: %w", err)
		}
		promos = append(promos, p)
	}
	return promos, rows.Err()
}

// PurgeStaleUnpaidPayments deletes unpaid payments and promotions last
// touched before cutoff. Bookings are kept; only the abandoned checkout
// records go.
func (db *DB) PurgeStaleUnpaidPayments(ctx context.Context, cutoff time.Time) (int64, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	_, err = tx.ExecContext(ctx,
		`DELETE FROM payment_bookings WHERE payment_id IN (
			SELECT id FROM payments WHERE status = ? AND updated_at < ?
		)`, models.PaymentStatusUnpaid, cutoff,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to purge payment links: %w", err)
	}

	result, err := tx.ExecContext(ctx,
		`DELETE FROM payments WHERE status = ? AND updated_at < ?`,
		models.PaymentStatusUnpaid, cutoff,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to purge payments: %w", err)
	}
	purged, _ := result.RowsAffected()

	promoResult, err := tx.ExecContext(ctx,
		`DELETE FROM promotions WHERE status = ? AND updated_at < ?`,
		models.PromotionStatusUnpaid, cutoff,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to purge promotions: %w", err)
	}
	promoPurged, _ := promoResult.RowsAffected()

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return purged + promoPurged, nil
}
