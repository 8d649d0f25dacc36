package payments

import (
	"bookpay/src/types"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

var now = time.Date(2026, 5, 1, 9, 30, 0, 0, time.UTC)

func TestPlanScheduleThreshold(t *testing.T) {
	start := now.Add(6*24*time.Hour + time.Minute)
	s := PlanSchedule(start, start.Add(time.Hour), now)
	assert.False(t, s.ShouldPreAuthNow)
	assert.True(t, s.IsFarTerm())
	assert.Equal(t, 7, s.DaysUntil)
	assert.Equal(t, start.Add(-6*24*time.Hour), s.PreAuthAt)
	assert.Equal(t, start.Add(time.Hour), s.CaptureAt)

	start = now.Add(6*24*time.Hour - time.Minute)
	s = PlanSchedule(start, start.Add(time.Hour), now)
	assert.True(t, s.ShouldPreAuthNow)
	assert.Equal(t, now, s.PreAuthAt)
	assert.Equal(t, 6, s.DaysUntil)
}

func TestPlanSchedulePastStart(t *testing.T) {
	start := now.Add(-2 * time.Hour)
	s := PlanSchedule(start, start.Add(time.Hour), now)
	assert.True(t, s.ShouldPreAuthNow)
	assert.Equal(t, now, s.PreAuthAt)
	assert.Equal(t, start.Add(time.Hour), s.CaptureAt)
}

func TestPlanScheduleNormalizesToUTC(t *testing.T) {
	loc := time.FixedZone("UTC+8", 8*60*60)
	start := time.Date(2026, 6, 1, 10, 0, 0, 0, loc)
	s := PlanSchedule(start, start.Add(90*time.Minute), now)

	rpc := s.RPC()
	assert.Equal(t, "2026-05-26T02:00:00Z", rpc.PreAuthDate)
	assert.Equal(t, "2026-06-01T03:30:00Z", rpc.CaptureDate)
	assert.False(t, rpc.ShouldPreAuthNow)
}

func TestSubmitMessageVariants(t *testing.T) {
	seen := map[string]bool{}
	for _, far := range []bool{true, false} {
		for _, method := range []types.PaymentMethod{types.METHOD_ONLINE, types.METHOD_OFFLINE} {
			for _, deposit := range []bool{true, false} {
				msg := SubmitMessage(MessageInput{
					FarTerm:       far,
					Method:        method,
					HasDeposit:    deposit,
					ChargeCents:   10000,
					DepositCents:  2080,
					BalanceCents:  8020,
					InPersonCents: 9900,
					PreAuthAt:     now.Add(48 * time.Hour),
					AppointmentAt: now.Add(8 * 24 * time.Hour),
				})
				assert.NotEmpty(t, msg)
				if deposit {
					assert.Contains(t, msg, "$20.80")
					assert.Contains(t, msg, "$80.20")
				}
				seen[msg] = true
			}
		}
	}
	assert.Len(t, seen, 8)
}
