package gateway

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVerifySignature(t *testing.T) {
	secret := "whsec_test"
	payload := []byte(`{"type":"checkout.session.completed","data":{"object":{"id":"cs_1","payment_intent":"pi_1"}}}`)
	now := time.Now()

	t.Run("Valid", func(t *testing.T) {
		header := SignPayload(payload, secret, now)
		assert.NoError(t, VerifySignature(payload, header, secret, DefaultTolerance, now))
	})

	t.Run("TamperedPayload", func(t *testing.T) {
		header := SignPayload(payload, secret, now)
		tampered := append([]byte(nil), payload...)
		tampered[len(tampered)-2] = 'x'
		assert.ErrorIs(t, VerifySignature(tampered, header, secret, DefaultTolerance, now), ErrInvalidSignature)
	})

	t.Run("WrongSecret", func(t *testing.T) {
		header := SignPayload(payload, "whsec_other", now)
		assert.ErrorIs(t, VerifySignature(payload, header, secret, DefaultTolerance, now), ErrInvalidSignature)
	})

	t.Run("StaleTimestamp", func(t *testing.T) {
		header := SignPayload(payload, secret, now.Add(-10*time.Minute))
		assert.ErrorIs(t, VerifySignature(payload, header, secret, DefaultTolerance, now), ErrStaleTimestamp)
	})

	t.Run("FutureTimestamp", func(t *testing.T) {
		header := SignPayload(payload, secret, now.Add(10*time.Minute))
		assert.ErrorIs(t, VerifySignature(payload, header, secret, DefaultTolerance, now), ErrStaleTimestamp)
	})

	t.Run("MalformedHeader", func(t *testing.T) {
		assert.ErrorIs(t, VerifySignature(payload, "", secret, DefaultTolerance, now), ErrInvalidSignature)
		assert.ErrorIs(t, VerifySignature(payload, "v1=abc", secret, DefaultTolerance, now), ErrInvalidSignature)
		assert.ErrorIs(t, VerifySignature(payload, "t=notanumber,v1=abc", secret, DefaultTolerance, now), ErrInvalidSignature)
	})

	t.Run("SecondSignatureAccepted", func(t *testing.T) {
		ts := fmt.Sprintf("%d", now.Unix())
		header := fmt.Sprintf("t=%s,v1=deadbeef,v1=%s", ts, ComputeSignature(payload, ts, secret))
		assert.NoError(t, VerifySignature(payload, header, secret, DefaultTolerance, now))
	})
}

func TestParseEvent(t *testing.T) {
	payload := []byte(`{"type":"checkout.session.completed","data":{"object":{"id":"cs_9","payment_intent":"pi_9"}}}`)
	event, err := ParseEvent(payload)
	require.NoError(t, err)
	assert.Equal(t, EventCheckoutCompleted, event.Type)
	assert.Equal(t, "cs_9", event.Data.Object.ID)
	assert.Equal(t, "pi_9", event.Data.Object.PaymentIntent)

	_, err = ParseEvent([]byte("{not json"))
	assert.Error(t, err)
}
