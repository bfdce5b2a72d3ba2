package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"trackbook/internal/database"
	"trackbook/internal/events"
	"trackbook/internal/metrics"
	"trackbook/internal/models"
	"trackbook/internal/notify"
	"trackbook/internal/repository"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// ReservationStore is the storage surface the reservation flow needs.
type ReservationStore interface {
	GetEvent(ctx context.Context, id int64) (*models.Event, error)
	GetEventSlot(ctx context.Context, id int64) (*models.EventSlot, error)
	GetTrack(ctx context.Context, id int64) (*models.Track, error)
	GetTrackSlot(ctx context.Context, id int64) (*models.TrackSlot, error)
	ReserveEventSeats(ctx context.Context, eventID, slotID int64, bookings []*models.Booking) error
	CreateTrackBookingWithLock(ctx context.Context, booking *models.Booking, maxPeople int) error
	BookedSeatsOnDate(ctx context.Context, slotID int64, date time.Time) (int, error)
	TrackSlotAvailability(ctx context.Context, trackID int64, date time.Time, day string) ([]*models.Availability, []*models.TrackSlot, error)
	EventCapacity(ctx context.Context, eventID int64) (int, int, error)
}

type ReservationService struct {
	store    ReservationStore
	cache    repository.AvailabilityCache
	eventBus *events.EventBus
	notifier *notify.Publisher
	logger   *zerolog.Logger
}

func NewReservationService(store ReservationStore, cache repository.AvailabilityCache, eventBus *events.EventBus, notifier *notify.Publisher, logger *zerolog.Logger) *ReservationService {
	return &ReservationService{
		store:    store,
		cache:    cache,
		eventBus: eventBus,
		notifier: notifier,
		logger:   logger,
	}
}

// Attendee is one seat in a group reservation with its per-person answers.
type Attendee struct {
	BookingFor string
	Answers    []models.Answer
}

// JoinEventRequest asks for one seat per attendee on a single event slot.
type JoinEventRequest struct {
	UserID      int64
	EventID     int64
	EventSlotID int64
	Attendees   []Attendee
}

// JoinEvent reserves one seat per attendee atomically. Either every
// attendee gets a booking or the whole request is rejected; a capacity
// rejection reports the exact number of seats still free.
func (s *ReservationService) JoinEvent(ctx context.Context, req JoinEventRequest) ([]*models.Booking, error) {
	if len(req.Attendees) == 0 {
		return nil, database.ErrInvalidSeats
	}

	event, err := s.store.GetEvent(ctx, req.EventID)
	if err != nil {
		return nil, err
	}
	if !event.IsBookable() {
		return nil, database.ErrBusinessClosed
	}

	slot, err := s.store.GetEventSlot(ctx, req.EventSlotID)
	if err != nil {
		return nil, err
	}
	if slot.EventID != req.EventID {
		return nil, database.ErrSlotNotFound
	}

	if err := validateAnswers(event.MoreInfo, req.Attendees); err != nil {
		return nil, err
	}

	prices := splitPrice(slot.Price, len(req.Attendees))

	bookings := make([]*models.Booking, 0, len(req.Attendees))
	for i, attendee := range req.Attendees {
		bookings = append(bookings, &models.Booking{
			UserID:      req.UserID,
			HostID:      event.HostID,
			EventID:     event.ID,
			EventSlotID: slot.ID,
			StartAt:     event.StartAt,
			EndAt:       event.EndAt,
			Price:       prices[i],
			Currency:    slot.Currency,
			NumPeople:   1,
			BookingFor:  attendee.BookingFor,
			MoreInfo:    attendee.Answers,
		})
	}

	if err := s.store.ReserveEventSeats(ctx, event.ID, slot.ID, bookings); err != nil {
		if _, ok := database.IsCapacityError(err); ok {
			metrics.IncCapacityRejection(models.BusinessTypeEvent)
		}
		return nil, err
	}

	metrics.IncBooking(models.BusinessTypeEvent)
	s.afterReservation(ctx, bookings, models.BusinessTypeEvent, slot.ID, event.StartAt)

	return bookings, nil
}

// BookTrackSlotRequest asks for seats on a recurring track slot for one
// calendar date.
type BookTrackSlotRequest struct {
	UserID      int64
	TrackID     int64
	TrackSlotID int64
	Date        time.Time
	NumPeople   int
	BookingFor  string
	Answers     []models.Answer
}

// BookTrackSlot reserves seats on a track slot for a specific date.
func (s *ReservationService) BookTrackSlot(ctx context.Context, req BookTrackSlotRequest) (*models.Booking, error) {
	if req.NumPeople < 1 {
		return nil, database.ErrInvalidSeats
	}
	if req.Date.Before(time.Now().AddDate(0, 0, -1)) {
		return nil, database.ErrPastDate
	}

	track, err := s.store.GetTrack(ctx, req.TrackID)
	if err != nil {
		return nil, err
	}
	if track.Status != models.TrackStatusActive {
		return nil, database.ErrBusinessClosed
	}

	slot, err := s.store.GetTrackSlot(ctx, req.TrackSlotID)
	if err != nil {
		return nil, err
	}
	if slot.TrackID != req.TrackID {
		return nil, database.ErrSlotNotFound
	}
	if !strings.EqualFold(slot.Day, req.Date.Weekday().String()) {
		return nil, database.ErrWrongDay
	}

	startAt, endAt, err := slotWindow(req.Date, slot.StartTime, slot.EndTime)
	if err != nil {
		return nil, err
	}

	price := decimal.NewFromFloat(slot.Price).
		Mul(decimal.NewFromInt(int64(req.NumPeople))).
		Round(2)

	booking := &models.Booking{
		UserID:      req.UserID,
		HostID:      track.HostID,
		TrackID:     track.ID,
		TrackSlotID: slot.ID,
		StartAt:     startAt,
		EndAt:       endAt,
		Price:       price.InexactFloat64(),
		Currency:    slot.Currency,
		NumPeople:   req.NumPeople,
		BookingFor:  req.BookingFor,
		MoreInfo:    req.Answers,
	}

	if err := s.store.CreateTrackBookingWithLock(ctx, booking, slot.MaxPeople); err != nil {
		if _, ok := database.IsCapacityError(err); ok {
			metrics.IncCapacityRejection(models.BusinessTypeTrack)
		}
		return nil, err
	}

	metrics.IncBooking(models.BusinessTypeTrack)
	s.afterReservation(ctx, []*models.Booking{booking}, models.BusinessTypeTrack, slot.ID, req.Date)

	return booking, nil
}

// TrackAvailability returns remaining seats per slot of a track on a date,
// refreshing the cache as it goes. The cache is a read-side convenience;
// booking always re-checks inside the transaction.
func (s *ReservationService) TrackAvailability(ctx context.Context, trackID int64, date time.Time) ([]*models.Availability, []*models.TrackSlot, error) {
	day := date.Weekday().String()
	availability, slots, err := s.store.TrackSlotAvailability(ctx, trackID, date, day)
	if err != nil {
		return nil, nil, err
	}
	for _, av := range availability {
		if err := s.cache.SetAvailability(ctx, av); err != nil {
			s.logger.Warn().Err(err).Int64("slot_id", av.SlotID).Msg("failed to cache availability")
		}
	}
	return availability, slots, nil
}

// EventOccupancy returns aggregate capacity and occupancy for an event.
func (s *ReservationService) EventOccupancy(ctx context.Context, eventID int64) (maxPeople, currentPeople int, err error) {
	return s.store.EventCapacity(ctx, eventID)
}

func (s *ReservationService) afterReservation(ctx context.Context, bookings []*models.Booking, businessType string, slotID int64, date time.Time) {
	first := bookings[0]
	seats := 0
	ids := make([]int64, 0, len(bookings))
	for _, b := range bookings {
		seats += b.NumPeople
		ids = append(ids, b.ID)
	}

	_ = s.eventBus.PublishJSON(events.EventReservationCommitted, events.ReservationPayload{
		BookingIDs:   ids,
		UserID:       first.UserID,
		HostID:       first.HostID,
		BusinessType: businessType,
		SlotID:       slotID,
		Seats:        seats,
		Date:         date,
	})

	if err := s.cache.InvalidateAvailability(ctx, slotID, date.Format("2006-01-02")); err != nil {
		s.logger.Warn().Err(err).Int64("slot_id", slotID).Msg("failed to invalidate availability cache")
	}

	// Notifications are best effort; a broker outage must not fail a
	// committed reservation.
	body := fmt.Sprintf("Reservation confirmed for %d seat(s) on %s.", seats, date.Format("2006-01-02"))
	for _, recipient := range []int64{first.UserID, first.HostID} {
		if err := s.notifier.Publish(ctx, notify.Message{
			RecipientID: recipient,
			Kind:        notify.KindBookingConfirmed,
			Subject:     "Booking confirmed",
			Body:        body,
		}); err != nil {
			s.logger.Warn().Err(err).Int64("recipient", recipient).Msg("failed to publish notification")
		}
	}

	s.logger.Info().
		Int64("user_id", first.UserID).
		Str("type", businessType).
		Int("seats", seats).
		Msg("reservation committed")
}

// splitPrice divides a slot price across n one-seat bookings so the parts
// round to 2 decimal places and sum back to the original.
func splitPrice(total float64, n int) []float64 {
	totalDec := decimal.NewFromFloat(total)
	per := totalDec.Div(decimal.NewFromInt(int64(n))).Round(2)

	prices := make([]float64, n)
	for i := 0; i < n-1; i++ {
		prices[i] = per.InexactFloat64()
	}
	last := totalDec.Sub(per.Mul(decimal.NewFromInt(int64(n - 1))))
	prices[n-1] = last.Round(2).InexactFloat64()
	return prices
}

func validateAnswers(fields []models.MoreInfoField, attendees []Attendee) error {
	if len(fields) == 0 {
		return nil
	}
	for _, attendee := range attendees {
		answered := make(map[string]bool, len(attendee.Answers))
		for _, answer := range attendee.Answers {
			answered[answer.Label] = true
		}
		for _, field := range fields {
			if !answered[field.Label] {
				return fmt.Errorf("missing answer for field %q", field.Label)
			}
		}
	}
	return nil
}

func slotWindow(date time.Time, startTime, endTime string) (time.Time, time.Time, error) {
	start, err := time.Parse("15:04", startTime)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid slot start time: %w", err)
	}
	end, err := time.Parse("15:04", endTime)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid slot end time: %w", err)
	}
	if !end.After(start) {
		return time.Time{}, time.Time{}, database.ErrInvalidTimeRange
	}

	y, m, d := date.Date()
	loc := date.Location()
	startAt := time.Date(y, m, d, start.Hour(), start.Minute(), 0, 0, loc)
	endAt := time.Date(y, m, d, end.Hour(), end.Minute(), 0, 0, loc)
	return startAt, endAt, nil
}
