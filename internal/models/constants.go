package models

// Event lifecycle. Transitions are monotonic: open → full → started → ended,
// with full skippable when capacity was never exhausted.
const (
	EventStatusOpen    = "open"
	EventStatusFull    = "full"
	EventStatusStarted = "started"
	EventStatusEnded   = "ended"
)

// Slot status. A slot is booked iff current_people == max_people.
const (
	SlotStatusOpen   = "open"
	SlotStatusBooked = "booked"
)

// Track status, host-controlled.
const (
	TrackStatusActive      = "active"
	TrackStatusDeactivated = "deactivated"
)

// Booking payment status. Flips unpaid → paid exactly once, only through
// payment reconciliation.
const (
	BookingStatusUnpaid = "unpaid"
	BookingStatusPaid   = "paid"
)

// Payment (checkout session) status.
const (
	PaymentStatusUnpaid    = "unpaid"
	PaymentStatusSucceeded = "succeeded"
)

const (
	PromotionStatusUnpaid = "unpaid"
	PromotionStatusPaid   = "paid"
)

const (
	BusinessTypeEvent = "event"
	BusinessTypeTrack = "track"
)

const (
	RoleUser  = "USER"
	RoleHost  = "HOST"
	RoleAdmin = "ADMIN"
)

const (
	// PromotionDurationDays is how long a paid promotion stays visible.
	PromotionDurationDays = 30

	// DefaultPaymentRetentionHours is how long an unpaid payment survives
	// before the sweeper purges it.
	DefaultPaymentRetentionHours = 72

	// AvailabilityCacheTTL seconds a remaining-seats snapshot stays cached.
	AvailabilityCacheTTL = 60

	// SessionCacheTTL seconds a processed checkout session id stays cached.
	SessionCacheTTL = 24 * 60 * 60
)

// SupportedCurrencies mirrors what the payment gateway accepts.
var SupportedCurrencies = map[string]bool{
	"gbp": true,
	"usd": true,
	"eur": true,
}
