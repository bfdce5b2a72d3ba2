package models

import (
	"encoding/json"
	"time"
)

// Answer is a booking-time response to one of the event's dynamic form
// fields.
type Answer struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// Booking is one reservation for one user against one bookable unit. The
// price is captured at booking time and never changes afterwards, even if
// the slot price does.
type Booking struct {
	ID          int64     `json:"id"`
	UserID      int64     `json:"user_id"`
	HostID      int64     `json:"host_id"`
	EventID     int64     `json:"event_id,omitempty"`
	EventSlotID int64     `json:"event_slot_id,omitempty"`
	TrackID     int64     `json:"track_id,omitempty"`
	TrackSlotID int64     `json:"track_slot_id,omitempty"`
	StartAt     time.Time `json:"start_at"`
	EndAt       time.Time `json:"end_at"`
	Price       float64   `json:"price"`
	Currency    string    `json:"currency"`
	NumPeople   int       `json:"num_people"`
	BookingFor  string    `json:"booking_for,omitempty"`
	MoreInfo    []Answer  `json:"more_info,omitempty"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// IsEventBooking reports whether the booking targets an event slot rather
// than a track slot.
func (b *Booking) IsEventBooking() bool {
	return b.EventID != 0
}

// EncodeAnswers serializes booking answers for storage.
func EncodeAnswers(answers []Answer) (string, error) {
	if len(answers) == 0 {
		return "[]", nil
	}
	raw, err := json.Marshal(answers)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

// DecodeAnswers parses stored booking answers.
func DecodeAnswers(raw string) ([]Answer, error) {
	if raw == "" || raw == "[]" {
		return nil, nil
	}
	var answers []Answer
	if err := json.Unmarshal([]byte(raw), &answers); err != nil {
		return nil, err
	}
	return answers, nil
}
