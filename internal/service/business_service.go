package service

import (
	"context"
	"strings"
	"time"

	"trackbook/internal/database"
	"trackbook/internal/models"

	"github.com/rs/zerolog"
)

// BusinessStore is the storage surface for host-side catalogue management.
type BusinessStore interface {
	CreateEvent(ctx context.Context, event *models.Event) error
	GetEvent(ctx context.Context, id int64) (*models.Event, error)
	ListEventsByHost(ctx context.Context, hostID int64) ([]*models.Event, error)
	CreateEventSlot(ctx context.Context, slot *models.EventSlot) error
	ListEventSlots(ctx context.Context, eventID int64) ([]*models.EventSlot, error)
	CreateTrack(ctx context.Context, track *models.Track) error
	GetTrack(ctx context.Context, id int64) (*models.Track, error)
	ListTracksByHost(ctx context.Context, hostID int64) ([]*models.Track, error)
	ListActiveTracks(ctx context.Context, category string) ([]*models.Track, error)
	CreateTrackSlot(ctx context.Context, slot *models.TrackSlot) error
	UpdateTrackDays(ctx context.Context, trackID int64, days []string, totalDayInMonth int) error
	SetTrackStatus(ctx context.Context, trackID int64, status string) error
}

type BusinessService struct {
	store  BusinessStore
	logger *zerolog.Logger
}

func NewBusinessService(store BusinessStore, logger *zerolog.Logger) *BusinessService {
	return &BusinessService{store: store, logger: logger}
}

func (s *BusinessService) CreateEvent(ctx context.Context, event *models.Event) error {
	if event.Name == "" || event.Address == "" {
		return database.ErrMissingFields
	}
	if !event.EndAt.After(event.StartAt) {
		return database.ErrInvalidTimeRange
	}
	if event.StartAt.Before(time.Now()) {
		return database.ErrPastDate
	}

	if err := s.store.CreateEvent(ctx, event); err != nil {
		return err
	}
	s.logger.Info().Int64("event_id", event.ID).Int64("host_id", event.HostID).Msg("event created")
	return nil
}

func (s *BusinessService) CreateEventSlot(ctx context.Context, slot *models.EventSlot) error {
	if slot.MaxPeople < 1 {
		return database.ErrInvalidSeats
	}
	if !models.SupportedCurrencies[strings.ToLower(slot.Currency)] {
		return database.ErrUnsupportedCurrency
	}
	slot.Currency = strings.ToLower(slot.Currency)

	event, err := s.store.GetEvent(ctx, slot.EventID)
	if err != nil {
		return err
	}
	if event.Status == models.EventStatusStarted || event.Status == models.EventStatusEnded {
		return database.ErrBusinessClosed
	}
	slot.HostID = event.HostID

	return s.store.CreateEventSlot(ctx, slot)
}

func (s *BusinessService) CreateTrack(ctx context.Context, track *models.Track) error {
	if track.Name == "" || track.Category == "" {
		return database.ErrMissingFields
	}
	if err := s.store.CreateTrack(ctx, track); err != nil {
		return err
	}
	s.logger.Info().Int64("track_id", track.ID).Int64("host_id", track.HostID).Msg("track created")
	return nil
}

func (s *BusinessService) CreateTrackSlot(ctx context.Context, slot *models.TrackSlot) error {
	if slot.MaxPeople < 1 {
		return database.ErrInvalidSeats
	}
	if !models.SupportedCurrencies[strings.ToLower(slot.Currency)] {
		return database.ErrUnsupportedCurrency
	}
	slot.Currency = strings.ToLower(slot.Currency)

	if !validWeekday(slot.Day) {
		return database.ErrWrongDay
	}
	slot.Day = canonicalWeekday(slot.Day)

	// Parse once up front so a bad window is rejected at creation, not at
	// booking time.
	if _, _, err := slotWindow(time.Now(), slot.StartTime, slot.EndTime); err != nil {
		return err
	}

	track, err := s.store.GetTrack(ctx, slot.TrackID)
	if err != nil {
		return err
	}
	slot.HostID = track.HostID

	return s.store.CreateTrackSlot(ctx, slot)
}

// SetTrackDays stores the weekly recurrence, recomputes how many bookable
// days the current month holds and activates the track.
func (s *BusinessService) SetTrackDays(ctx context.Context, trackID int64, days []string, now time.Time) error {
	if len(days) == 0 {
		return database.ErrWrongDay
	}
	canonical := make([]string, 0, len(days))
	for _, day := range days {
		if !validWeekday(day) {
			return database.ErrWrongDay
		}
		canonical = append(canonical, canonicalWeekday(day))
	}

	total := TotalTrackDaysInMonth(canonical, now)
	return s.store.UpdateTrackDays(ctx, trackID, canonical, total)
}

func (s *BusinessService) DeactivateTrack(ctx context.Context, trackID int64) error {
	return s.store.SetTrackStatus(ctx, trackID, models.TrackStatusDeactivated)
}

func (s *BusinessService) ActivateTrack(ctx context.Context, trackID int64) error {
	track, err := s.store.GetTrack(ctx, trackID)
	if err != nil {
		return err
	}
	if len(track.TrackDays) == 0 {
		return database.ErrWrongDay
	}
	return s.store.SetTrackStatus(ctx, trackID, models.TrackStatusActive)
}

func (s *BusinessService) ListHostEvents(ctx context.Context, hostID int64) ([]*models.Event, error) {
	return s.store.ListEventsByHost(ctx, hostID)
}

func (s *BusinessService) ListHostTracks(ctx context.Context, hostID int64) ([]*models.Track, error) {
	return s.store.ListTracksByHost(ctx, hostID)
}

// SearchTracks returns active tracks, optionally filtered by category.
func (s *BusinessService) SearchTracks(ctx context.Context, category string) ([]*models.Track, error) {
	return s.store.ListActiveTracks(ctx, category)
}

func (s *BusinessService) ListEventSlots(ctx context.Context, eventID int64) ([]*models.EventSlot, error) {
	return s.store.ListEventSlots(ctx, eventID)
}

// TotalTrackDaysInMonth counts how many calendar days of now's month fall
// on one of the given weekdays.
func TotalTrackDaysInMonth(days []string, now time.Time) int {
	wanted := make(map[string]bool, len(days))
	for _, day := range days {
		wanted[canonicalWeekday(day)] = true
	}

	year, month, _ := now.Date()
	loc := now.Location()
	first := time.Date(year, month, 1, 0, 0, 0, 0, loc)

	total := 0
	for d := first; d.Month() == month; d = d.AddDate(0, 0, 1) {
		if wanted[d.Weekday().String()] {
			total++
		}
	}
	return total
}

var weekdays = map[string]string{
	"monday":    "Monday",
	"tuesday":   "Tuesday",
	"wednesday": "Wednesday",
	"thursday":  "Thursday",
	"friday":    "Friday",
	"saturday":  "Saturday",
	"sunday":    "Sunday",
}

func validWeekday(day string) bool {
	_, ok := weekdays[strings.ToLower(day)]
	return ok
}

func canonicalWeekday(day string) string {
	return weekdays[strings.ToLower(day)]
}
