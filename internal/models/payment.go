package models

import "time"

// Payment is one external checkout session. The checkout session id is
// globally unique and is the join key the asynchronous webhook uses to
// locate the payment and its bookings.
type Payment struct {
	ID                int64     `json:"id"`
	UserID            int64     `json:"user_id"`
	HostID            int64     `json:"host_id"`
	BusinessType      string    `json:"business_type"`
	EventID           int64     `json:"event_id,omitempty"`
	TrackID           int64     `json:"track_id,omitempty"`
	BookingIDs        []int64   `json:"booking_ids,omitempty"`
	Amount            float64   `json:"amount"`
	Currency          string    `json:"currency"`
	CheckoutSessionID string    `json:"checkout_session_id"`
	PaymentIntentID   string    `json:"payment_intent_id,omitempty"`
	IsPromotion       bool      `json:"is_promotion"`
	Status            string    `json:"status"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// Promotion is a host-purchased banner placement for a track, keyed to a
// checkout session like a booking payment and carrying its own expiry.
type Promotion struct {
	ID                int64     `json:"id"`
	HostID            int64     `json:"host_id"`
	TrackID           int64     `json:"track_id"`
	CheckoutSessionID string    `json:"checkout_session_id"`
	BannerImage       string    `json:"banner_image"`
	ExpiredAt         time.Time `json:"expired_at"`
	Status            string    `json:"status"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}
