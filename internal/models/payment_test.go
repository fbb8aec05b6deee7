package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPaymentStatusTerminal(t *testing.T) {
	assert.False(t, PaymentStatusPending.Terminal())
	assert.False(t, PaymentStatusProcessing.Terminal())
	assert.True(t, PaymentStatusSucceeded.Terminal())
	assert.True(t, PaymentStatusFailed.Terminal())
	assert.True(t, PaymentStatusCanceled.Terminal())
}

func TestTransitionPendingToSucceeded(t *testing.T) {
	p := Payment{Status: PaymentStatusPending}

	require.NoError(t, p.Transition(PaymentStatusSucceeded))
	assert.Equal(t, PaymentStatusSucceeded, p.Status)
	require.NotNil(t, p.CompletedAt)
}

func TestTransitionThroughProcessing(t *testing.T) {
	p := Payment{Status: PaymentStatusPending}

	require.NoError(t, p.Transition(PaymentStatusProcessing))
	assert.Equal(t, PaymentStatusProcessing, p.Status)
	assert.Nil(t, p.CompletedAt)

	require.NoError(t, p.Transition(PaymentStatusFailed))
	assert.Equal(t, PaymentStatusFailed, p.Status)
	assert.NotNil(t, p.CompletedAt)
}

func TestTransitionOutOfTerminalIsRejected(t *testing.T) {
	for _, terminal := range []PaymentStatus{PaymentStatusSucceeded, PaymentStatusFailed, PaymentStatusCanceled} {
		p := Payment{Status: terminal}

		err := p.Transition(PaymentStatusSucceeded)
		var terr *ErrTerminalPayment
		require.ErrorAs(t, err, &terr, "from %s", terminal)
		assert.Equal(t, terminal, terr.Status)
		assert.Equal(t, terminal, p.Status, "status must not move")
	}
}

func TestTransitionBackToPendingIsRejected(t *testing.T) {
	p := Payment{Status: PaymentStatusProcessing}

	require.Error(t, p.Transition(PaymentStatusPending))
	assert.Equal(t, PaymentStatusProcessing, p.Status)
}

func TestDuplicateSucceededIsIdempotent(t *testing.T) {
	p := Payment{Status: PaymentStatusPending}

	require.NoError(t, p.Transition(PaymentStatusSucceeded))
	first := p.CompletedAt

	// Replayed webhook
	err := p.Transition(PaymentStatusSucceeded)
	var terr *ErrTerminalPayment
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, first, p.CompletedAt)
}
