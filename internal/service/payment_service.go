package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"trackbook/internal/database"
	"trackbook/internal/events"
	"trackbook/internal/gateway"
	"trackbook/internal/metrics"
	"trackbook/internal/models"
	"trackbook/internal/notify"
	"trackbook/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// PromotionPrice is the flat fee for a 30-day banner placement, in major
// currency units.
const PromotionPrice = 20.00

// PaymentStore is the storage surface for checkout and reconciliation.
type PaymentStore interface {
	GetBooking(ctx context.Context, id int64) (*models.Booking, error)
	CreatePayment(ctx context.Context, payment *models.Payment) error
	GetPaymentBySession(ctx context.Context, sessionID string) (*models.Payment, error)
	HasPendingPayment(ctx context.Context, bookingID int64) (bool, error)
	ReconcilePayment(ctx context.Context, sessionID, paymentIntentID string) (*models.Payment, bool, error)
	CreatePromotion(ctx context.Context, promo *models.Promotion) error
}

// CheckoutGateway creates hosted checkout sessions.
type CheckoutGateway interface {
	CreateCheckoutSession(ctx context.Context, params gateway.CheckoutParams) (*gateway.CheckoutSession, error)
}

// Mailer sends the post-reconciliation confirmation email.
type Mailer interface {
	SendPaymentConfirmation(ctx context.Context, payment *models.Payment) error
}

type PaymentService struct {
	store          PaymentStore
	gateway        CheckoutGateway
	cache          repository.AvailabilityCache
	eventBus       *events.EventBus
	notifier       *notify.Publisher
	mailer         Mailer
	webhookSecret  string
	platformFeePct decimal.Decimal
	gatewayFeePct  decimal.Decimal
	logger         *zerolog.Logger
}

func NewPaymentService(
	store PaymentStore,
	gw CheckoutGateway,
	cache repository.AvailabilityCache,
	eventBus *events.EventBus,
	notifier *notify.Publisher,
	mailer Mailer,
	webhookSecret string,
	platformFeePct, gatewayFeePct float64,
	logger *zerolog.Logger,
) *PaymentService {
	return &PaymentService{
		store:          store,
		gateway:        gw,
		cache:          cache,
		eventBus:       eventBus,
		notifier:       notifier,
		mailer:         mailer,
		webhookSecret:  webhookSecret,
		platformFeePct: decimal.NewFromFloat(platformFeePct),
		gatewayFeePct:  decimal.NewFromFloat(gatewayFeePct),
		logger:         logger,
	}
}

// FeeBreakdown is the minor-unit split of one checkout. The gateway fee is
// shared half and half between the platform and the host.
type FeeBreakdown struct {
	Amount      int64 // booking total
	PlatformFee int64 // platform cut on top
	Payable     int64 // what the customer is charged
	GatewayFee  int64 // provider fee on the payable amount
	PlatformNet int64
	HostNet     int64
}

// ComputeFees derives the minor-unit charge for a booking total in major
// units.
func (s *PaymentService) ComputeFees(amount float64) FeeBreakdown {
	hundred := decimal.NewFromInt(100)

	cents := decimal.NewFromFloat(amount).Mul(hundred).Round(0)
	platformFee := cents.Mul(s.platformFeePct).Div(hundred).Round(0)
	payable := cents.Add(platformFee)
	gatewayFee := payable.Mul(s.gatewayFeePct).Div(hundred).Round(0)
	halfGatewayFee := gatewayFee.Div(decimal.NewFromInt(2)).Round(0)

	return FeeBreakdown{
		Amount:      cents.IntPart(),
		PlatformFee: platformFee.IntPart(),
		Payable:     payable.IntPart(),
		GatewayFee:  gatewayFee.IntPart(),
		PlatformNet: platformFee.Sub(halfGatewayFee).IntPart(),
		HostNet:     cents.Sub(halfGatewayFee).IntPart(),
	}
}

// CheckoutResult couples the stored payment with the provider redirect URL.
type CheckoutResult struct {
	Payment     *models.Payment
	CheckoutURL string
	Fees        FeeBreakdown
}

// CreateBookingCheckout opens a checkout session covering one or more
// unpaid bookings belonging to the same user, host and currency.
func (s *PaymentService) CreateBookingCheckout(ctx context.Context, userID int64, bookingIDs []int64) (*CheckoutResult, error) {
	if len(bookingIDs) == 0 {
		return nil, database.ErrBookingNotFound
	}

	var (
		total        = decimal.Zero
		hostID       int64
		currency     string
		businessType string
		eventID      int64
		trackID      int64
	)
	for _, id := range bookingIDs {
		booking, err := s.store.GetBooking(ctx, id)
		if err != nil {
			return nil, err
		}
		if booking.UserID != userID {
			return nil, database.ErrBookingNotFound
		}
		if booking.Status == models.BookingStatusPaid {
			return nil, database.ErrAlreadyPaid
		}
		pending, err := s.store.HasPendingPayment(ctx, id)
		if err != nil {
			return nil, err
		}
		if pending {
			return nil, database.ErrPendingCheckout
		}
		if hostID == 0 {
			hostID = booking.HostID
			currency = booking.Currency
			if booking.IsEventBooking() {
				businessType = models.BusinessTypeEvent
				eventID = booking.EventID
			} else {
				businessType = models.BusinessTypeTrack
				trackID = booking.TrackID
			}
		} else if booking.HostID != hostID || booking.Currency != currency {
			return nil, database.ErrMixedBookings
		}
		total = total.Add(decimal.NewFromFloat(booking.Price))
	}

	if !models.SupportedCurrencies[strings.ToLower(currency)] {
		return nil, database.ErrUnsupportedCurrency
	}

	fees := s.ComputeFees(total.InexactFloat64())

	session, err := s.gateway.CreateCheckoutSession(ctx, gateway.CheckoutParams{
		AmountMinorUnits: fees.Payable,
		Currency:         strings.ToLower(currency),
		Description:      fmt.Sprintf("%d booking(s)", len(bookingIDs)),
		Reference:        uuid.NewString(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create checkout session: %w", err)
	}

	payment := &models.Payment{
		UserID:            userID,
		HostID:            hostID,
		BusinessType:      businessType,
		EventID:           eventID,
		TrackID:           trackID,
		BookingIDs:        bookingIDs,
		Amount:            total.Round(2).InexactFloat64(),
		Currency:          strings.ToLower(currency),
		CheckoutSessionID: session.ID,
	}
	if err := s.store.CreatePayment(ctx, payment); err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("session_id", session.ID).
		Int64("user_id", userID).
		Int64("payable", fees.Payable).
		Msg("checkout session created")

	return &CheckoutResult{Payment: payment, CheckoutURL: session.URL, Fees: fees}, nil
}

// CreatePromotionCheckout opens a checkout session for a flat-fee 30-day
// banner placement on a track.
func (s *PaymentService) CreatePromotionCheckout(ctx context.Context, hostID, trackID int64, bannerImage string) (*CheckoutResult, error) {
	if bannerImage == "" {
		return nil, database.ErrMissingFields
	}

	fees := s.ComputeFees(PromotionPrice)

	session, err := s.gateway.CreateCheckoutSession(ctx, gateway.CheckoutParams{
		AmountMinorUnits: fees.Payable,
		Currency:         "gbp",
		Description:      "track promotion",
		Reference:        uuid.NewString(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create checkout session: %w", err)
	}

	payment := &models.Payment{
		UserID:            hostID,
		HostID:            hostID,
		BusinessType:      models.BusinessTypeTrack,
		TrackID:           trackID,
		Amount:            PromotionPrice,
		Currency:          "gbp",
		CheckoutSessionID: session.ID,
		IsPromotion:       true,
	}
	if err := s.store.CreatePayment(ctx, payment); err != nil {
		return nil, err
	}

	promo := &models.Promotion{
		HostID:            hostID,
		TrackID:           trackID,
		CheckoutSessionID: session.ID,
		BannerImage:       bannerImage,
		ExpiredAt:         time.Now().AddDate(0, 0, models.PromotionDurationDays),
	}
	if err := s.store.CreatePromotion(ctx, promo); err != nil {
		return nil, err
	}

	return &CheckoutResult{Payment: payment, CheckoutURL: session.URL, Fees: fees}, nil
}

// HandleWebhook verifies and applies one webhook delivery. Redelivered
// events reconcile to a no-op, so the provider may retry freely.
func (s *PaymentService) HandleWebhook(ctx context.Context, payload []byte, signatureHeader string) error {
	if err := gateway.VerifySignature(payload, signatureHeader, s.webhookSecret, gateway.DefaultTolerance, time.Now()); err != nil {
		metrics.IncWebhook("invalid_signature")
		s.logger.Warn().Err(err).Msg("webhook signature rejected")
		return err
	}

	event, err := gateway.ParseEvent(payload)
	if err != nil {
		metrics.IncWebhook("error")
		return err
	}

	if event.Type != gateway.EventCheckoutCompleted {
		metrics.IncWebhook("ignored")
		s.logger.Debug().Str("type", event.Type).Msg("webhook type ignored")
		return nil
	}

	sessionID := event.Data.Object.ID
	intentID := event.Data.Object.PaymentIntent

	// Fast duplicate check from cache; the database reconciliation below is
	// the real idempotency guarantee.
	if seen, err := s.cache.SessionSeen(ctx, sessionID); err == nil && seen {
		metrics.IncWebhook("duplicate")
		return nil
	}

	payment, alreadyProcessed, err := s.store.ReconcilePayment(ctx, sessionID, intentID)
	if err != nil {
		metrics.IncWebhook("error")
		return err
	}
	if alreadyProcessed {
		metrics.IncWebhook("duplicate")
		s.logger.Info().Str("session_id", sessionID).Msg("webhook redelivery ignored")
		return nil
	}

	metrics.IncWebhook("processed")
	if err := s.cache.MarkSessionSeen(ctx, sessionID); err != nil {
		s.logger.Warn().Err(err).Msg("failed to cache session id")
	}

	s.afterReconciliation(ctx, payment)
	return nil
}

func (s *PaymentService) afterReconciliation(ctx context.Context, payment *models.Payment) {
	_ = s.eventBus.PublishJSON(events.EventPaymentReconciled, events.PaymentPayload{
		PaymentID:         payment.ID,
		CheckoutSessionID: payment.CheckoutSessionID,
		UserID:            payment.UserID,
		HostID:            payment.HostID,
		Amount:            payment.Amount,
		Currency:          payment.Currency,
		IsPromotion:       payment.IsPromotion,
	})
	if payment.IsPromotion {
		_ = s.eventBus.PublishJSON(events.EventPromotionPaid, events.PaymentPayload{
			PaymentID: payment.ID,
			HostID:    payment.HostID,
		})
	}

	kind := notify.KindPaymentReceived
	subject := "Payment received"
	if payment.IsPromotion {
		kind = notify.KindPromotionLive
		subject = "Promotion is live"
	}
	body := fmt.Sprintf("Payment of %.2f %s confirmed.", payment.Amount, strings.ToUpper(payment.Currency))
	for _, recipient := range []int64{payment.UserID, payment.HostID} {
		if err := s.notifier.Publish(ctx, notify.Message{
			RecipientID: recipient,
			Kind:        kind,
			Subject:     subject,
			Body:        body,
		}); err != nil {
			s.logger.Warn().Err(err).Int64("recipient", recipient).Msg("failed to publish notification")
		}
	}

	// Confirmation email is best effort.
	if s.mailer != nil {
		if err := s.mailer.SendPaymentConfirmation(ctx, payment); err != nil {
			s.logger.Warn().Err(err).Str("session_id", payment.CheckoutSessionID).Msg("failed to send confirmation email")
		}
	}

	s.logger.Info().
		Str("session_id", payment.CheckoutSessionID).
		Int64("payment_id", payment.ID).
		Bool("promotion", payment.IsPromotion).
		Msg("payment reconciled")
}
