package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"trackbook/internal/database"
	"trackbook/internal/events"
	"trackbook/internal/export"
	"trackbook/internal/gateway"
	"trackbook/internal/repository"
	"trackbook/internal/service"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubGateway struct {
	sessions int
}

func (g *stubGateway) CreateCheckoutSession(context.Context, gateway.CheckoutParams) (*gateway.CheckoutSession, error) {
	g.sessions++
	id := fmt.Sprintf("cs_%d", g.sessions)
	return &gateway.CheckoutSession{ID: id, URL: "https://checkout.test/" + id}, nil
}

func newTestServer(t *testing.T) *HTTPServer {
	t.Helper()
	logger := zerolog.New(io.Discard)
	db, err := database.NewDB(":memory:", &logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	cache := repository.NewMemoryAvailabilityCache(time.Minute, time.Hour)
	bus := events.NewEventBus()
	reservations := service.NewReservationService(db, cache, bus, nil, &logger)
	business := service.NewBusinessService(db, &logger)
	payments := service.NewPaymentService(db, &stubGateway{}, cache, bus, nil, nil, "whsec_test", 5.0, 2.9, &logger)
	exporter := export.NewExporter(db, t.TempDir(), &logger)

	return NewHTTPServer(0, reservations, business, payments, exporter, &logger)
}

func doJSON(t *testing.T, srv *HTTPServer, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	srv.server.Handler.ServeHTTP(rec, req)
	return rec
}

func TestHealthz(t *testing.T) {
	srv := newTestServer(t)
	rec := doJSON(t, srv, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}

func TestEventBookingFlow(t *testing.T) {
	srv := newTestServer(t)
	start := time.Now().Add(24 * time.Hour).UTC().Format(time.RFC3339)
	end := time.Now().Add(26 * time.Hour).UTC().Format(time.RFC3339)

	rec := doJSON(t, srv, http.MethodPost, "/api/v1/events", fmt.Sprintf(
		`{"host_id":100,"name":"Night Race","address":"1 Park Lane","start_at":"%s","end_at":"%s"}`, start, end))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var event struct {
		ID int64 `json:"id"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &event))

	rec = doJSON(t, srv, http.MethodPost, fmt.Sprintf("/api/v1/events/%d/slots", event.ID),
		`{"slot_no":"A1","price":10,"currency":"gbp","max_people":2}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var slot struct {
		ID int64 `json:"id"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &slot))

	rec = doJSON(t, srv, http.MethodPost, "/api/v1/reservations/event", fmt.Sprintf(
		`{"user_id":1,"event_id":%d,"event_slot_id":%d,"attendees":[{"booking_for":"alice"}]}`, event.ID, slot.ID))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	// Asking for more seats than remain is a conflict carrying the
	// remaining count.
	rec = doJSON(t, srv, http.MethodPost, "/api/v1/reservations/event", fmt.Sprintf(
		`{"user_id":2,"event_id":%d,"event_slot_id":%d,"attendees":[{},{}]}`, event.ID, slot.ID))
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), "1 seats available")

	rec = doJSON(t, srv, http.MethodGet, fmt.Sprintf("/api/v1/events/%d/occupancy", event.ID), "")
	require.Equal(t, http.StatusOK, rec.Code)
	var occupancy struct {
		MaxPeople     int `json:"max_people"`
		CurrentPeople int `json:"current_people"`
		Remaining     int `json:"remaining"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &occupancy))
	assert.Equal(t, 2, occupancy.MaxPeople)
	assert.Equal(t, 1, occupancy.CurrentPeople)
	assert.Equal(t, 1, occupancy.Remaining)
}

func TestHandlerValidation(t *testing.T) {
	srv := newTestServer(t)

	t.Run("RejectsUnknownFields", func(t *testing.T) {
		rec := doJSON(t, srv, http.MethodPost, "/api/v1/events", `{"bogus":true}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("RejectsBadPathID", func(t *testing.T) {
		rec := doJSON(t, srv, http.MethodPost, "/api/v1/events/zero/slots", `{}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("RejectsBadDate", func(t *testing.T) {
		rec := doJSON(t, srv, http.MethodPost, "/api/v1/reservations/track",
			`{"user_id":1,"track_id":1,"track_slot_id":1,"date":"06/06/2026","num_people":1}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("UnknownEventIs404", func(t *testing.T) {
		rec := doJSON(t, srv, http.MethodGet, "/api/v1/events/9999/occupancy", "")
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("UnsignedWebhookRejected", func(t *testing.T) {
		rec := doJSON(t, srv, http.MethodPost, "/api/v1/webhooks/checkout", `{"type":"checkout.session.completed"}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestSignedWebhookAccepted(t *testing.T) {
	srv := newTestServer(t)

	payload := []byte(`{"type":"checkout.session.expired","data":{"object":{"id":"cs_x"}}}`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/checkout", strings.NewReader(string(payload)))
	req.Header.Set("Webhook-Signature", gateway.SignPayload(payload, "whsec_test", time.Now()))
	rec := httptest.NewRecorder()
	srv.server.Handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}
