package webhooks

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSentTrackerIsBounded(t *testing.T) {
	tr := newSentTracker(3)
	for i := 0; i < 3; i++ {
		tr.add(fmt.Sprintf("k%d", i))
	}
	assert.Equal(t, 3, tr.size())
	assert.True(t, tr.has("k0"))

	tr.add("k3")
	assert.Equal(t, 1, tr.size())
	assert.False(t, tr.has("k0"))
	assert.True(t, tr.has("k3"))
}

func TestFailedEmailIsSentOnRedelivery(t *testing.T) {
	h := newHarness(t)
	f, e := h.manualHold(t)
	evt := event(t, PaymentIntentSucceeded, map[string]any{
		"id":             "pi_1",
		"object":         "payment_intent",
		"status":         "succeeded",
		"payment_method": "pm_1",
		"metadata":       meta(f, e),
	})

	h.emails.err = assert.AnError
	h.deliver(t, evt)
	got := h.entry(t, e.ID)
	require.True(t, got.IsCaptured())
	assert.Nil(t, got.PaymentConfirmationAt, "a failed send gives the claim back")
	assert.Empty(t, h.emails.payment)

	h.emails.err = nil
	h.deliver(t, evt)
	h.deliver(t, evt)
	assert.Len(t, h.emails.payment, 1)
	assert.NotNil(t, h.entry(t, e.ID).PaymentConfirmationAt)
}
