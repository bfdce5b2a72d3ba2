package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"trackbook/internal/database"
	"trackbook/internal/export"
	"trackbook/internal/service"

	"github.com/rs/zerolog"
)

// HTTPServer exposes the booking platform over a lightweight HTTP API.
type HTTPServer struct {
	reservations *service.ReservationService
	business     *service.BusinessService
	payments     *service.PaymentService
	exporter     *export.Exporter
	server       *http.Server
	logger       *zerolog.Logger
}

func NewHTTPServer(port int, reservations *service.ReservationService, business *service.BusinessService, payments *service.PaymentService, exporter *export.Exporter, logger *zerolog.Logger) *HTTPServer {
	srv := &HTTPServer{
		reservations: reservations,
		business:     business,
		payments:     payments,
		exporter:     exporter,
		logger:       logger,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/events", srv.handleCreateEvent)
	mux.HandleFunc("POST /api/v1/events/{id}/slots", srv.handleCreateEventSlot)
	mux.HandleFunc("GET /api/v1/events/{id}/slots", srv.handleListEventSlots)
	mux.HandleFunc("GET /api/v1/events/{id}/occupancy", srv.handleEventOccupancy)
	mux.HandleFunc("POST /api/v1/tracks", srv.handleCreateTrack)
	mux.HandleFunc("GET /api/v1/tracks", srv.handleSearchTracks)
	mux.HandleFunc("POST /api/v1/tracks/{id}/slots", srv.handleCreateTrackSlot)
	mux.HandleFunc("PUT /api/v1/tracks/{id}/days", srv.handleSetTrackDays)
	mux.HandleFunc("POST /api/v1/tracks/{id}/deactivate", srv.handleDeactivateTrack)
	mux.HandleFunc("POST /api/v1/tracks/{id}/activate", srv.handleActivateTrack)
	mux.HandleFunc("GET /api/v1/tracks/{id}/availability", srv.handleTrackAvailability)
	mux.HandleFunc("POST /api/v1/reservations/event", srv.handleJoinEvent)
	mux.HandleFunc("POST /api/v1/reservations/track", srv.handleBookTrackSlot)
	mux.HandleFunc("POST /api/v1/checkout/bookings", srv.handleBookingCheckout)
	mux.HandleFunc("POST /api/v1/checkout/promotions", srv.handlePromotionCheckout)
	mux.HandleFunc("POST /api/v1/webhooks/checkout", srv.handleWebhook)
	mux.HandleFunc("GET /api/v1/exports/bookings", srv.handleExportBookings)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	srv.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           srv.loggingMiddleware(mux),
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      15 * time.Second,
	}
	return srv
}

func (s *HTTPServer) Start() error {
	s.logger.Info().Str("addr", s.server.Addr).Msg("HTTP API listening")
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *HTTPServer) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *HTTPServer) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Dur("elapsed", time.Since(start)).
			Msg("http request")
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// writeServiceError maps domain errors onto HTTP statuses. Capacity
// rejections surface as 409 with the literal remaining-seat message.
func writeServiceError(w http.ResponseWriter, err error) {
	if capErr, ok := database.IsCapacityError(err); ok {
		writeError(w, http.StatusConflict, capErr.Error())
		return
	}

	switch {
	case errors.Is(err, database.ErrEventNotFound),
		errors.Is(err, database.ErrTrackNotFound),
		errors.Is(err, database.ErrSlotNotFound),
		errors.Is(err, database.ErrBookingNotFound),
		errors.Is(err, database.ErrPaymentNotFound),
		errors.Is(err, database.ErrPromotionNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, database.ErrBusinessClosed),
		errors.Is(err, database.ErrAlreadyPaid),
		errors.Is(err, database.ErrPendingCheckout),
		errors.Is(err, database.ErrConcurrentModification),
		errors.Is(err, database.ErrDuplicateSession):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, database.ErrPastDate),
		errors.Is(err, database.ErrWrongDay),
		errors.Is(err, database.ErrInvalidSeats),
		errors.Is(err, database.ErrInvalidTimeRange),
		errors.Is(err, database.ErrMissingFields),
		errors.Is(err, database.ErrMixedBookings),
		errors.Is(err, database.ErrUnsupportedCurrency):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
