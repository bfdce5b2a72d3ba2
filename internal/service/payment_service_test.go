package service

import (
	"context"
	"fmt"
	"io"
	"testing"
	"time"

	"trackbook/internal/database"
	"trackbook/internal/events"
	"trackbook/internal/gateway"
	"trackbook/internal/models"
	"trackbook/internal/repository"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testWebhookSecret = "whsec_test"

// fakeGateway hands out deterministic session ids without network calls.
type fakeGateway struct {
	calls  int
	lastID string
	err    error
}

func (f *fakeGateway) CreateCheckoutSession(_ context.Context, params gateway.CheckoutParams) (*gateway.CheckoutSession, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.calls++
	f.lastID = fmt.Sprintf("cs_test_%d", f.calls)
	return &gateway.CheckoutSession{
		ID:  f.lastID,
		URL: "https://checkout.test/" + f.lastID,
	}, nil
}

// countingMailer records how many confirmation emails went out.
type countingMailer struct {
	sends int
}

func (m *countingMailer) SendPaymentConfirmation(context.Context, *models.Payment) error {
	m.sends++
	return nil
}

func newTestPaymentService(t *testing.T) (*PaymentService, *database.DB, *fakeGateway) {
	t.Helper()
	logger := zerolog.New(io.Discard)
	db, err := database.NewDB(":memory:", &logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	gw := &fakeGateway{}
	cache := repository.NewMemoryAvailabilityCache(time.Minute, time.Hour)
	svc := NewPaymentService(db, gw, cache, events.NewEventBus(), nil, nil, testWebhookSecret, 5.0, 2.9, &logger)
	return svc, db, gw
}

func seedUnpaidBookings(t *testing.T, db *database.DB, userID int64, n int) []int64 {
	t.Helper()
	ctx := context.Background()
	event := &models.Event{
		HostID:  100,
		Name:    "Night Race",
		Address: "1 Park Lane",
		StartAt: time.Now().Add(24 * time.Hour),
		EndAt:   time.Now().Add(26 * time.Hour),
	}
	require.NoError(t, db.CreateEvent(ctx, event))
	slot := &models.EventSlot{
		EventID: event.ID, HostID: 100, SlotNo: "A1",
		Price: 10, Currency: "gbp", MaxPeople: 10,
	}
	require.NoError(t, db.CreateEventSlot(ctx, slot))

	bookings := make([]*models.Booking, n)
	for i := range bookings {
		bookings[i] = &models.Booking{
			UserID: userID, HostID: 100,
			EventID: event.ID, EventSlotID: slot.ID,
			StartAt: event.StartAt, EndAt: event.EndAt,
			Price: 10, Currency: "gbp", NumPeople: 1,
		}
	}
	require.NoError(t, db.ReserveEventSeats(ctx, event.ID, slot.ID, bookings))

	ids := make([]int64, n)
	for i, b := range bookings {
		ids[i] = b.ID
	}
	return ids
}

func completedPayload(sessionID, intentID string) []byte {
	return []byte(fmt.Sprintf(
		`{"type":"checkout.session.completed","data":{"object":{"id":"%s","payment_intent":"%s"}}}`,
		sessionID, intentID,
	))
}

func TestComputeFees(t *testing.T) {
	svc, _, _ := newTestPaymentService(t)

	fees := svc.ComputeFees(100.00)
	assert.Equal(t, int64(10000), fees.Amount)
	assert.Equal(t, int64(500), fees.PlatformFee)
	assert.Equal(t, int64(10500), fees.Payable)
	assert.Equal(t, int64(305), fees.GatewayFee)
	assert.Equal(t, int64(347), fees.PlatformNet)
	assert.Equal(t, int64(9847), fees.HostNet)
}

func TestCreateBookingCheckout(t *testing.T) {
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		svc, db, gw := newTestPaymentService(t)
		ids := seedUnpaidBookings(t, db, 1, 2)

		result, err := svc.CreateBookingCheckout(ctx, 1, ids)
		require.NoError(t, err)
		assert.Equal(t, gw.lastID, result.Payment.CheckoutSessionID)
		assert.Equal(t, 20.0, result.Payment.Amount)
		assert.Equal(t, models.PaymentStatusUnpaid, result.Payment.Status)
		assert.Contains(t, result.CheckoutURL, gw.lastID)

		stored, err := db.GetPaymentBySession(ctx, gw.lastID)
		require.NoError(t, err)
		assert.Equal(t, ids, stored.BookingIDs)
	})

	t.Run("RejectsForeignBooking", func(t *testing.T) {
		svc, db, _ := newTestPaymentService(t)
		ids := seedUnpaidBookings(t, db, 1, 1)

		_, err := svc.CreateBookingCheckout(ctx, 2, ids)
		assert.ErrorIs(t, err, database.ErrBookingNotFound)
	})

	t.Run("RejectsPaidBooking", func(t *testing.T) {
		svc, db, gw := newTestPaymentService(t)
		ids := seedUnpaidBookings(t, db, 1, 1)

		_, err := svc.CreateBookingCheckout(ctx, 1, ids)
		require.NoError(t, err)
		_, _, err = db.ReconcilePayment(ctx, gw.lastID, "pi_1")
		require.NoError(t, err)

		_, err = svc.CreateBookingCheckout(ctx, 1, ids)
		assert.ErrorIs(t, err, database.ErrAlreadyPaid)
	})

	t.Run("RejectsSecondCheckoutWhileFirstPending", func(t *testing.T) {
		svc, db, _ := newTestPaymentService(t)
		ids := seedUnpaidBookings(t, db, 1, 1)

		_, err := svc.CreateBookingCheckout(ctx, 1, ids)
		require.NoError(t, err)

		// The first session is still unpaid; opening a second one for the
		// same booking could charge the user twice.
		_, err = svc.CreateBookingCheckout(ctx, 1, ids)
		assert.ErrorIs(t, err, database.ErrPendingCheckout)
	})

	t.Run("RejectsEmpty", func(t *testing.T) {
		svc, _, _ := newTestPaymentService(t)
		_, err := svc.CreateBookingCheckout(ctx, 1, nil)
		assert.ErrorIs(t, err, database.ErrBookingNotFound)
	})
}

func TestHandleWebhook(t *testing.T) {
	ctx := context.Background()
	now := time.Now()

	t.Run("ReconcilesAndIsIdempotent", func(t *testing.T) {
		logger := zerolog.New(io.Discard)
		db, err := database.NewDB(":memory:", &logger)
		require.NoError(t, err)
		t.Cleanup(func() { db.Close() })

		gw := &fakeGateway{}
		mailer := &countingMailer{}
		cache := repository.NewMemoryAvailabilityCache(time.Minute, time.Hour)
		svc := NewPaymentService(db, gw, cache, events.NewEventBus(), nil, mailer, testWebhookSecret, 5.0, 2.9, &logger)

		ids := seedUnpaidBookings(t, db, 1, 2)
		_, err = svc.CreateBookingCheckout(ctx, 1, ids)
		require.NoError(t, err)

		payload := completedPayload(gw.lastID, "pi_live")
		header := gateway.SignPayload(payload, testWebhookSecret, now)

		require.NoError(t, svc.HandleWebhook(ctx, payload, header))
		for _, id := range ids {
			booking, err := db.GetBooking(ctx, id)
			require.NoError(t, err)
			assert.Equal(t, models.BookingStatusPaid, booking.Status)
		}

		// Redelivery succeeds without changing anything, and the
		// confirmation email goes out exactly once.
		require.NoError(t, svc.HandleWebhook(ctx, payload, header))
		payment, err := db.GetPaymentBySession(ctx, gw.lastID)
		require.NoError(t, err)
		assert.Equal(t, "pi_live", payment.PaymentIntentID)
		assert.Equal(t, 1, mailer.sends)
	})

	t.Run("RejectsBadSignature", func(t *testing.T) {
		svc, _, _ := newTestPaymentService(t)
		payload := completedPayload("cs_x", "pi_x")
		err := svc.HandleWebhook(ctx, payload, gateway.SignPayload(payload, "whsec_wrong", now))
		assert.ErrorIs(t, err, gateway.ErrInvalidSignature)
	})

	t.Run("IgnoresOtherEventTypes", func(t *testing.T) {
		svc, _, _ := newTestPaymentService(t)
		payload := []byte(`{"type":"checkout.session.expired","data":{"object":{"id":"cs_x"}}}`)
		assert.NoError(t, svc.HandleWebhook(ctx, payload, gateway.SignPayload(payload, testWebhookSecret, now)))
	})

	t.Run("UnknownSessionFails", func(t *testing.T) {
		svc, _, _ := newTestPaymentService(t)
		payload := completedPayload("cs_missing", "pi_x")
		err := svc.HandleWebhook(ctx, payload, gateway.SignPayload(payload, testWebhookSecret, now))
		assert.ErrorIs(t, err, database.ErrPaymentNotFound)
	})
}

func TestCreatePromotionCheckout(t *testing.T) {
	ctx := context.Background()
	now := time.Now()

	svc, db, gw := newTestPaymentService(t)
	track := &models.Track{HostID: 200, Name: "Riverside", Category: "karting", Address: "2 River Road"}
	require.NoError(t, db.CreateTrack(ctx, track))

	result, err := svc.CreatePromotionCheckout(ctx, 200, track.ID, "banner.png")
	require.NoError(t, err)
	assert.True(t, result.Payment.IsPromotion)
	assert.Equal(t, PromotionPrice, result.Payment.Amount)

	// Paying the session makes the promotion live for 30 days.
	payload := completedPayload(gw.lastID, "pi_promo")
	require.NoError(t, svc.HandleWebhook(ctx, payload, gateway.SignPayload(payload, testWebhookSecret, now)))

	promos, err := db.ListPaidPromotions(ctx, now)
	require.NoError(t, err)
	require.Len(t, promos, 1)
	assert.Equal(t, models.PromotionStatusPaid, promos[0].Status)
	assert.WithinDuration(t, now.AddDate(0, 0, models.PromotionDurationDays), promos[0].ExpiredAt, time.Minute)

	// Missing banner is rejected before any session is created.
	_, err = svc.CreatePromotionCheckout(ctx, 200, track.ID, "")
	assert.ErrorIs(t, err, database.ErrMissingFields)
}
