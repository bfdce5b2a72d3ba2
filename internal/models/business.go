package models

import (
	"encoding/json"
	"time"
)

// MoreInfoField is one dynamic form field a host attaches to an event.
// Attendees answer these fields at booking time.
type MoreInfoField struct {
	Label     string `json:"label"`
	FieldType string `json:"field_type,omitempty"`
}

// Event is a one-off gathering with capacity-limited slots.
type Event struct {
	ID          int64           `json:"id"`
	HostID      int64           `json:"host_id"`
	Name        string          `json:"name"`
	Address     string          `json:"address"`
	Longitude   float64         `json:"longitude"`
	Latitude    float64         `json:"latitude"`
	Description string          `json:"description"`
	StartAt     time.Time       `json:"start_at"`
	EndAt       time.Time       `json:"end_at"`
	MoreInfo    []MoreInfoField `json:"more_info,omitempty"`
	Status      string          `json:"status"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// IsBookable reports whether the event still accepts reservations.
func (e *Event) IsBookable() bool {
	return e.Status == EventStatusOpen
}

// Track is a recurring venue bookable by weekday time slots.
type Track struct {
	ID                   int64     `json:"id"`
	HostID               int64     `json:"host_id"`
	Name                 string    `json:"name"`
	Category             string    `json:"category"`
	Address              string    `json:"address"`
	Longitude            float64   `json:"longitude"`
	Latitude             float64   `json:"latitude"`
	Description          string    `json:"description"`
	TrackDays            []string  `json:"track_days,omitempty"`
	TotalTrackDayInMonth int       `json:"total_track_day_in_month"`
	Status               string    `json:"status"`
	CreatedAt            time.Time `json:"created_at"`
	UpdatedAt            time.Time `json:"updated_at"`
}

// EncodeMoreInfo serializes the dynamic form fields for storage.
func EncodeMoreInfo(fields []MoreInfoField) (string, error) {
	if len(fields) == 0 {
		return "[]", nil
	}
	raw, err := json.Marshal(fields)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

// DecodeMoreInfo parses stored dynamic form fields.
func DecodeMoreInfo(raw string) ([]MoreInfoField, error) {
	if raw == "" {
		return nil, nil
	}
	var fields []MoreInfoField
	if err := json.Unmarshal([]byte(raw), &fields); err != nil {
		return nil, err
	}
	return fields, nil
}

// EncodeDays serializes track recurrence days for storage.
func EncodeDays(days []string) (string, error) {
	if len(days) == 0 {
		return "[]", nil
	}
	raw, err := json.Marshal(days)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

// DecodeDays parses stored track recurrence days.
func DecodeDays(raw string) ([]string, error) {
	if raw == "" {
		return nil, nil
	}
	var days []string
	if err := json.Unmarshal([]byte(raw), &days); err != nil {
		return nil, err
	}
	return days, nil
}
