package models

import "time"

// EventSlot is a purchasable capacity window inside an event. Occupancy is
// tracked on the row itself and mutated only inside a reservation
// transaction.
type EventSlot struct {
	ID            int64     `json:"id"`
	EventID       int64     `json:"event_id"`
	HostID        int64     `json:"host_id"`
	SlotNo        string    `json:"slot_no"`
	Price         float64   `json:"price"`
	Currency      string    `json:"currency"`
	MaxPeople     int       `json:"max_people"`
	CurrentPeople int       `json:"current_people"`
	Description   string    `json:"description"`
	Status        string    `json:"status"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Remaining returns how many seats are still free.
func (s *EventSlot) Remaining() int {
	return s.MaxPeople - s.CurrentPeople
}

// TrackSlot is a recurring weekday time window on a track. Occupancy is
// scoped per calendar date and computed by summing bookings for that date,
// so the slot row carries no counter.
type TrackSlot struct {
	ID          int64     `json:"id"`
	TrackID     int64     `json:"track_id"`
	HostID      int64     `json:"host_id"`
	Day         string    `json:"day"`
	SlotNo      string    `json:"slot_no"`
	StartTime   string    `json:"start_time"`
	EndTime     string    `json:"end_time"`
	Price       float64   `json:"price"`
	Currency    string    `json:"currency"`
	MaxPeople   int       `json:"max_people"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Availability is a remaining-seats snapshot for one bookable unit, used by
// read paths and the cache layer.
type Availability struct {
	SlotID    int64     `json:"slot_id"`
	Date      time.Time `json:"date,omitempty"`
	Booked    int       `json:"booked"`
	Available int       `json:"available"`
}
