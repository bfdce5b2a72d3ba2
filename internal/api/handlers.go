package api

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"time"

	"trackbook/internal/models"
	"trackbook/internal/service"
)

func pathID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	return id, err == nil && id > 0
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

func (s *HTTPServer) handleCreateEvent(w http.ResponseWriter, r *http.Request) {
	var event models.Event
	if !decodeBody(w, r, &event) {
		return
	}
	if err := s.business.CreateEvent(r.Context(), &event); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, event)
}

func (s *HTTPServer) handleCreateEventSlot(w http.ResponseWriter, r *http.Request) {
	eventID, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid event id")
		return
	}
	var slot models.EventSlot
	if !decodeBody(w, r, &slot) {
		return
	}
	slot.EventID = eventID
	if err := s.business.CreateEventSlot(r.Context(), &slot); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, slot)
}

func (s *HTTPServer) handleListEventSlots(w http.ResponseWriter, r *http.Request) {
	eventID, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid event id")
		return
	}
	slots, err := s.business.ListEventSlots(r.Context(), eventID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"slots": slots})
}

func (s *HTTPServer) handleEventOccupancy(w http.ResponseWriter, r *http.Request) {
	eventID, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid event id")
		return
	}
	maxPeople, currentPeople, err := s.reservations.EventOccupancy(r.Context(), eventID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{
		"max_people":     maxPeople,
		"current_people": currentPeople,
		"remaining":      maxPeople - currentPeople,
	})
}

func (s *HTTPServer) handleCreateTrack(w http.ResponseWriter, r *http.Request) {
	var track models.Track
	if !decodeBody(w, r, &track) {
		return
	}
	if err := s.business.CreateTrack(r.Context(), &track); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, track)
}

func (s *HTTPServer) handleSearchTracks(w http.ResponseWriter, r *http.Request) {
	tracks, err := s.business.SearchTracks(r.Context(), r.URL.Query().Get("category"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"tracks": tracks})
}

func (s *HTTPServer) handleCreateTrackSlot(w http.ResponseWriter, r *http.Request) {
	trackID, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid track id")
		return
	}
	var slot models.TrackSlot
	if !decodeBody(w, r, &slot) {
		return
	}
	slot.TrackID = trackID
	if err := s.business.CreateTrackSlot(r.Context(), &slot); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, slot)
}

func (s *HTTPServer) handleSetTrackDays(w http.ResponseWriter, r *http.Request) {
	trackID, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid track id")
		return
	}
	var body struct {
		Days []string `json:"days"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	if err := s.business.SetTrackDays(r.Context(), trackID, body.Days, time.Now()); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": models.TrackStatusActive})
}

func (s *HTTPServer) handleDeactivateTrack(w http.ResponseWriter, r *http.Request) {
	trackID, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid track id")
		return
	}
	if err := s.business.DeactivateTrack(r.Context(), trackID); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": models.TrackStatusDeactivated})
}

func (s *HTTPServer) handleActivateTrack(w http.ResponseWriter, r *http.Request) {
	trackID, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid track id")
		return
	}
	if err := s.business.ActivateTrack(r.Context(), trackID); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": models.TrackStatusActive})
}

func (s *HTTPServer) handleTrackAvailability(w http.ResponseWriter, r *http.Request) {
	trackID, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid track id")
		return
	}
	date, err := time.Parse("2006-01-02", r.URL.Query().Get("date"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid date format; expected YYYY-MM-DD")
		return
	}

	availability, slots, err := s.reservations.TrackAvailability(r.Context(), trackID, date)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"availability": availability,
		"slots":        slots,
	})
}

func (s *HTTPServer) handleJoinEvent(w http.ResponseWriter, r *http.Request) {
	var body struct {
		UserID      int64 `json:"user_id"`
		EventID     int64 `json:"event_id"`
		EventSlotID int64 `json:"event_slot_id"`
		Attendees   []struct {
			BookingFor string          `json:"booking_for"`
			Answers    []models.Answer `json:"answers"`
		} `json:"attendees"`
	}
	if !decodeBody(w, r, &body) {
		return
	}

	req := service.JoinEventRequest{
		UserID:      body.UserID,
		EventID:     body.EventID,
		EventSlotID: body.EventSlotID,
	}
	for _, a := range body.Attendees {
		req.Attendees = append(req.Attendees, service.Attendee{BookingFor: a.BookingFor, Answers: a.Answers})
	}

	bookings, err := s.reservations.JoinEvent(r.Context(), req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"bookings": bookings})
}

func (s *HTTPServer) handleBookTrackSlot(w http.ResponseWriter, r *http.Request) {
	var body struct {
		UserID      int64           `json:"user_id"`
		TrackID     int64           `json:"track_id"`
		TrackSlotID int64           `json:"track_slot_id"`
		Date        string          `json:"date"`
		NumPeople   int             `json:"num_people"`
		BookingFor  string          `json:"booking_for"`
		Answers     []models.Answer `json:"answers"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	date, err := time.Parse("2006-01-02", body.Date)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid date format; expected YYYY-MM-DD")
		return
	}

	booking, err := s.reservations.BookTrackSlot(r.Context(), service.BookTrackSlotRequest{
		UserID:      body.UserID,
		TrackID:     body.TrackID,
		TrackSlotID: body.TrackSlotID,
		Date:        date,
		NumPeople:   body.NumPeople,
		BookingFor:  body.BookingFor,
		Answers:     body.Answers,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, booking)
}

func (s *HTTPServer) handleBookingCheckout(w http.ResponseWriter, r *http.Request) {
	var body struct {
		UserID     int64   `json:"user_id"`
		BookingIDs []int64 `json:"booking_ids"`
	}
	if !decodeBody(w, r, &body) {
		return
	}

	result, err := s.payments.CreateBookingCheckout(r.Context(), body.UserID, body.BookingIDs)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"checkout_url": result.CheckoutURL,
		"session_id":   result.Payment.CheckoutSessionID,
		"payable":      result.Fees.Payable,
	})
}

func (s *HTTPServer) handlePromotionCheckout(w http.ResponseWriter, r *http.Request) {
	var body struct {
		HostID      int64  `json:"host_id"`
		TrackID     int64  `json:"track_id"`
		BannerImage string `json:"banner_image"`
	}
	if !decodeBody(w, r, &body) {
		return
	}

	result, err := s.payments.CreatePromotionCheckout(r.Context(), body.HostID, body.TrackID, body.BannerImage)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"checkout_url": result.CheckoutURL,
		"session_id":   result.Payment.CheckoutSessionID,
		"payable":      result.Fees.Payable,
	})
}

func (s *HTTPServer) handleWebhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read body")
		return
	}
	if err := s.payments.HandleWebhook(r.Context(), payload, r.Header.Get("Webhook-Signature")); err != nil {
		writeError(w, http.StatusBadRequest, "webhook rejected")
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (s *HTTPServer) handleExportBookings(w http.ResponseWriter, r *http.Request) {
	hostID, err := strconv.ParseInt(r.URL.Query().Get("host_id"), 10, 64)
	if err != nil || hostID <= 0 {
		writeError(w, http.StatusBadRequest, "host_id is required")
		return
	}
	start, err := time.Parse("2006-01-02", r.URL.Query().Get("start"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid start date; expected YYYY-MM-DD")
		return
	}
	end, err := time.Parse("2006-01-02", r.URL.Query().Get("end"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid end date; expected YYYY-MM-DD")
		return
	}

	filePath, err := s.exporter.HostBookingsReport(r.Context(), hostID, start, end)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"file": filePath})
}
