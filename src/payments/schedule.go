package payments

import (
	"math"
	"time"
)

// PreAuthLeadDays is how far ahead of an appointment a hold is placed.
// Card authorizations expire after about seven days.
const PreAuthLeadDays = 6

const AuthorizationLifetime = 7 * 24 * time.Hour

type Schedule struct {
	PreAuthAt        time.Time
	CaptureAt        time.Time
	ShouldPreAuthNow bool
	DaysUntil        int
}

// PlanSchedule decides when to authorize and capture a booking that runs
// from start to end, as seen at now.
func PlanSchedule(start, end, now time.Time) Schedule {
	days := int(math.Ceil(start.Sub(now).Hours() / 24))
	s := Schedule{
		CaptureAt: end.UTC(),
		DaysUntil: days,
	}
	if days > PreAuthLeadDays {
		s.PreAuthAt = start.Add(-PreAuthLeadDays * 24 * time.Hour).UTC()
		return s
	}
	s.PreAuthAt = now.UTC()
	s.ShouldPreAuthNow = true
	return s
}

// IsFarTerm reports whether the hold has to be deferred.
func (s Schedule) IsFarTerm() bool {
	return !s.ShouldPreAuthNow
}

type ScheduleRPC struct {
	PreAuthDate      string `json:"pre_auth_date"`
	CaptureDate      string `json:"capture_date"`
	ShouldPreAuthNow bool   `json:"should_pre_auth_now"`
}

// RPC renders the schedule the way calculate_payment_schedule returns it.
func (s Schedule) RPC() ScheduleRPC {
	return ScheduleRPC{
		PreAuthDate:      s.PreAuthAt.UTC().Format(time.RFC3339),
		CaptureDate:      s.CaptureAt.UTC().Format(time.RFC3339),
		ShouldPreAuthNow: s.ShouldPreAuthNow,
	}
}

// ScheduleFunctionSQL installs calculate_payment_schedule on postgres. It
// applies the same rule as PlanSchedule.
const ScheduleFunctionSQL = `
CREATE OR REPLACE FUNCTION calculate_payment_schedule(appointment_start timestamptz, appointment_end timestamptz)
RETURNS json AS $$
DECLARE
	days_until integer;
	pre_auth timestamptz;
	pre_auth_now boolean;
BEGIN
	days_until := ceil(extract(epoch FROM (appointment_start - now())) / 86400.0);
	IF days_until > 6 THEN
		pre_auth := appointment_start - interval '6 days';
		pre_auth_now := false;
	ELSE
		pre_auth := now();
		pre_auth_now := true;
	END IF;
	RETURN json_build_object(
		'pre_auth_date', to_char(pre_auth AT TIME ZONE 'UTC', 'YYYY-MM-DD"T"HH24:MI:SS"Z"'),
		'capture_date', to_char(appointment_end AT TIME ZONE 'UTC', 'YYYY-MM-DD"T"HH24:MI:SS"Z"'),
		'should_pre_auth_now', pre_auth_now
	);
END;
$$ LANGUAGE plpgsql STABLE;
`
