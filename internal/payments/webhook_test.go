package payments

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const webhookSecret = "whsec_test"

func TestVerifySignatureRoundTrip(t *testing.T) {
	payload := []byte(`{"type": "payment_intent.succeeded"}`)
	header := SignPayload(payload, webhookSecret, time.Now())

	assert.NoError(t, VerifySignature(payload, header, webhookSecret, DefaultSignatureTolerance))
}

func TestVerifySignatureWrongSecret(t *testing.T) {
	payload := []byte(`{}`)
	header := SignPayload(payload, "whsec_other", time.Now())

	assert.ErrorIs(t, VerifySignature(payload, header, webhookSecret, DefaultSignatureTolerance), ErrInvalidSignature)
}

func TestVerifySignatureTamperedPayload(t *testing.T) {
	payload := []byte(`{"amount": 100}`)
	header := SignPayload(payload, webhookSecret, time.Now())

	tampered := []byte(`{"amount": 999}`)
	assert.ErrorIs(t, VerifySignature(tampered, header, webhookSecret, DefaultSignatureTolerance), ErrInvalidSignature)
}

func TestVerifySignatureStaleTimestamp(t *testing.T) {
	payload := []byte(`{}`)
	header := SignPayload(payload, webhookSecret, time.Now().Add(-10*time.Minute))

	assert.ErrorIs(t, VerifySignature(payload, header, webhookSecret, DefaultSignatureTolerance), ErrStaleSignature)
}

func TestVerifySignatureMalformedHeader(t *testing.T) {
	payload := []byte(`{}`)

	for _, header := range []string{
		"",
		"garbage",
		"t=notanumber,v1=abcd",
		"t=1712000000",
		"v1=abcd",
	} {
		err := VerifySignature(payload, header, webhookSecret, DefaultSignatureTolerance)
		assert.Error(t, err, "header %q", header)
	}
}

func TestParseEvent(t *testing.T) {
	payload := []byte(`{
		"id": "evt_1",
		"type": "payment_intent.payment_failed",
		"data": {
			"object": {
				"id": "pi_123",
				"status": "requires_payment_method",
				"last_payment_error": {"message": "Your card was declined."}
			}
		}
	}`)

	event, err := ParseEvent(payload)
	require.NoError(t, err)
	assert.Equal(t, EventIntentFailed, event.Type)
	assert.Equal(t, "pi_123", event.Data.Object.ID)
	require.NotNil(t, event.Data.Object.LastPaymentError)
	assert.Equal(t, "Your card was declined.", event.Data.Object.LastPaymentError.Message)
}

func TestParseEventRejectsGarbage(t *testing.T) {
	_, err := ParseEvent([]byte("not json"))
	assert.Error(t, err)

	_, err = ParseEvent([]byte(`{"id": "evt_1"}`))
	assert.Error(t, err, "missing event type")
}
