package database

import (
	"context"
	"testing"
	"time"

	"trackbook/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func reserveTestBookings(t *testing.T, db *DB, n int) []int64 {
	t.Helper()
	ctx := context.Background()
	event := createTestEvent(t, db, time.Now().Add(24*time.Hour), time.Now().Add(26*time.Hour))
	slot := createTestEventSlot(t, db, event.ID, 10, 10)

	bookings := eventBookings(1, n)
	for _, b := range bookings {
		b.EventID, b.EventSlotID = event.ID, slot.ID
	}
	require.NoError(t, db.ReserveEventSeats(ctx, event.ID, slot.ID, bookings))

	ids := make([]int64, n)
	for i, b := range bookings {
		ids[i] = b.ID
	}
	return ids
}

func newTestPayment(sessionID string, bookingIDs []int64) *models.Payment {
	return &models.Payment{
		UserID:            1,
		HostID:            100,
		BusinessType:      models.BusinessTypeEvent,
		EventID:           1,
		BookingIDs:        bookingIDs,
		Amount:            20,
		Currency:          "gbp",
		CheckoutSessionID: sessionID,
	}
}

func TestCreatePayment(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	ids := reserveTestBookings(t, db, 2)

	payment := newTestPayment("cs_001", ids)
	require.NoError(t, db.CreatePayment(ctx, payment))
	assert.NotZero(t, payment.ID)
	assert.Equal(t, models.PaymentStatusUnpaid, payment.Status)

	stored, err := db.GetPaymentBySession(ctx, "cs_001")
	require.NoError(t, err)
	assert.Equal(t, ids, stored.BookingIDs)

	// Session ids are unique.
	dup := newTestPayment("cs_001", ids)
	assert.ErrorIs(t, db.CreatePayment(ctx, dup), ErrDuplicateSession)

	_, err = db.GetPaymentBySession(ctx, "cs_missing")
	assert.ErrorIs(t, err, ErrPaymentNotFound)
}

func TestHasPendingPayment(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	ids := reserveTestBookings(t, db, 1)

	pending, err := db.HasPendingPayment(ctx, ids[0])
	require.NoError(t, err)
	assert.False(t, pending)

	require.NoError(t, db.CreatePayment(ctx, newTestPayment("cs_pending", ids)))
	pending, err = db.HasPendingPayment(ctx, ids[0])
	require.NoError(t, err)
	assert.True(t, pending)

	// Reconciling the session clears the pending state.
	_, _, err = db.ReconcilePayment(ctx, "cs_pending", "pi_1")
	require.NoError(t, err)
	pending, err = db.HasPendingPayment(ctx, ids[0])
	require.NoError(t, err)
	assert.False(t, pending)
}

func TestReconcilePayment(t *testing.T) {
	ctx := context.Background()

	t.Run("MarksBookingsPaidOnce", func(t *testing.T) {
		db := newTestDB(t)
		ids := reserveTestBookings(t, db, 2)
		require.NoError(t, db.CreatePayment(ctx, newTestPayment("cs_100", ids)))

		payment, alreadyProcessed, err := db.ReconcilePayment(ctx, "cs_100", "pi_abc")
		require.NoError(t, err)
		assert.False(t, alreadyProcessed)
		assert.Equal(t, models.PaymentStatusSucceeded, payment.Status)
		assert.Equal(t, "pi_abc", payment.PaymentIntentID)

		for _, id := range ids {
			booking, err := db.GetBooking(ctx, id)
			require.NoError(t, err)
			assert.Equal(t, models.BookingStatusPaid, booking.Status)
		}

		// Redelivery is a no-op: the intent id from the first delivery wins.
		payment, alreadyProcessed, err = db.ReconcilePayment(ctx, "cs_100", "pi_other")
		require.NoError(t, err)
		assert.True(t, alreadyProcessed)
		assert.Equal(t, "pi_abc", payment.PaymentIntentID)
	})

	t.Run("UnknownSession", func(t *testing.T) {
		db := newTestDB(t)
		_, _, err := db.ReconcilePayment(ctx, "cs_unknown", "pi_x")
		assert.ErrorIs(t, err, ErrPaymentNotFound)
	})

	t.Run("PromotionBranch", func(t *testing.T) {
		db := newTestDB(t)
		track := createTestTrack(t, db)

		payment := &models.Payment{
			UserID:            200,
			HostID:            200,
			BusinessType:      models.BusinessTypeTrack,
			TrackID:           track.ID,
			Amount:            20,
			Currency:          "gbp",
			CheckoutSessionID: "cs_promo",
			IsPromotion:       true,
		}
		require.NoError(t, db.CreatePayment(ctx, payment))
		require.NoError(t, db.CreatePromotion(ctx, &models.Promotion{
			HostID:            200,
			TrackID:           track.ID,
			CheckoutSessionID: "cs_promo",
			BannerImage:       "banner.png",
			ExpiredAt:         time.Now().AddDate(0, 0, models.PromotionDurationDays),
		}))

		_, alreadyProcessed, err := db.ReconcilePayment(ctx, "cs_promo", "pi_promo")
		require.NoError(t, err)
		assert.False(t, alreadyProcessed)

		promos, err := db.ListPaidPromotions(ctx, time.Now())
		require.NoError(t, err)
		require.Len(t, promos, 1)
		assert.Equal(t, models.PromotionStatusPaid, promos[0].Status)
	})
}

func TestListPaidPromotions_ExcludesExpired(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	track := createTestTrack(t, db)

	promo := &models.Promotion{
		HostID:            200,
		TrackID:           track.ID,
		CheckoutSessionID: "cs_expired",
		BannerImage:       "banner.png",
		ExpiredAt:         time.Now().Add(-time.Hour),
	}
	require.NoError(t, db.CreatePromotion(ctx, promo))
	_, err := db.ExecContext(ctx, `UPDATE promotions SET status = ? WHERE id = ?`, models.PromotionStatusPaid, promo.ID)
	require.NoError(t, err)

	promos, err := db.ListPaidPromotions(ctx, time.Now())
	require.NoError(t, err)
	assert.Empty(t, promos)
}

func TestPurgeStaleUnpaidPayments(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	ids := reserveTestBookings(t, db, 1)

	stale := newTestPayment("cs_stale", ids)
	require.NoError(t, db.CreatePayment(ctx, stale))
	fresh := newTestPayment("cs_fresh", nil)
	require.NoError(t, db.CreatePayment(ctx, fresh))
	paid := newTestPayment("cs_paid", nil)
	require.NoError(t, db.CreatePayment(ctx, paid))
	_, _, err := db.ReconcilePayment(ctx, "cs_paid", "pi_1")
	require.NoError(t, err)

	// Age the stale payment past retention.
	old := time.Now().Add(-100 * time.Hour)
	_, err = db.ExecContext(ctx, `UPDATE payments SET updated_at = ? WHERE checkout_session_id = ?`, old, "cs_stale")
	require.NoError(t, err)

	purged, err := db.PurgeStaleUnpaidPayments(ctx, time.Now().Add(-72*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), purged)

	_, err = db.GetPaymentBySession(ctx, "cs_stale")
	assert.ErrorIs(t, err, ErrPaymentNotFound)

	// Unpaid but fresh and succeeded payments survive.
	_, err = db.GetPaymentBySession(ctx, "cs_fresh")
	assert.NoError(t, err)
	_, err = db.GetPaymentBySession(ctx, "cs_paid")
	assert.NoError(t, err)

	// The booking behind the purged payment is kept and freed for a new
	// checkout.
	booking, err := db.GetBooking(ctx, ids[0])
	require.NoError(t, err)
	assert.Equal(t, models.BookingStatusUnpaid, booking.Status)
	pending, err := db.HasPendingPayment(ctx, ids[0])
	require.NoError(t, err)
	assert.False(t, pending)
}
