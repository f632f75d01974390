package booking

import (
	"errors"
	"fmt"
	"strings"

	"opdportal/services/api"
)

// DailyLimitCode is the structured code the backend returns when a patient
// already holds the maximum number of OPD bookings for the day.
const DailyLimitCode = "DAILY_LIMIT_EXCEEDED"

// dailyLimitMarker is matched against the message of backends that do not
// send DailyLimitCode yet.
const dailyLimitMarker = "2 OPD"

var (
	ErrWrongPhase      = errors.New("wizard is not accepting edits")
	ErrUnknownDoctor   = errors.New("doctor is not offered for the selected department")
	ErrUnknownSlot     = errors.New("time slot is not offered by the selected doctor")
	ErrInvalidDate     = errors.New("appointment date must be YYYY-MM-DD and not in the past")
	ErrSubmitInFlight  = errors.New("a booking is already being submitted")
	ErrIncompleteDraft = errors.New("booking draft is incomplete")
)

// StepError is returned when an action is not valid at the wizard's current
// step.
type StepError struct {
	Step    Step
	Message string
}

func (e *StepError) Error() string {
	return fmt.Sprintf("step %d (%s): %s", e.Step, e.Step, e.Message)
}

func newStepError(step Step, msg string) error {
	return &StepError{Step: step, Message: msg}
}

// IsDailyLimitExceeded reports whether a submit failure is the daily booking
// limit business rule.
func IsDailyLimitExceeded(err error) bool {
	if err == nil {
		return false
	}
	var apiErr *api.Error
	if errors.As(err, &apiErr) && apiErr.Code == DailyLimitCode {
		return true
	}
	return strings.Contains(api.Message(err), dailyLimitMarker)
}
