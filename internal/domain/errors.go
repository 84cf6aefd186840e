package domain

import (
	"errors"
	"fmt"
)

var (
	ErrSalonClosed             = errors.New("salon is closed on this date")
	ErrSalonNotFound           = errors.New("salon not found")
	ErrAppointmentNotFound     = errors.New("appointment not found")
	ErrDuplicatePendingRequest = errors.New("client already has a pending request at this salon")
	ErrSlotAlreadyConfirmed    = errors.New("slot is already confirmed for another client")
	ErrBackendFailure          = errors.New("backend data service unavailable")
	ErrRaceLostAtConfirm       = errors.New("slot was confirmed for another client in the meantime")

	ErrInvalidRequest         = errors.New("invalid request")
	ErrInvalidSchedule        = errors.New("invalid schedule")
	ErrSlotInPast             = errors.New("slot is in the past")
	ErrSlotNotOffered         = errors.New("time is not an offered slot for this date")
	ErrDateTooFar             = errors.New("date is too far in the future")
	ErrTooManyRequests        = errors.New("too many booking requests")
	ErrInvalidTransition      = errors.New("status transition not allowed")
	ErrAppointmentWithdrawn   = errors.New("client already cancelled this request")
	ErrForbidden              = errors.New("actor is not allowed to perform this action")
	ErrCancelTooLate          = errors.New("appointment can no longer be cancelled by the client")
	ErrConcurrentModification = errors.New("appointment was modified concurrently")
)

var known = []error{
	ErrSalonClosed, ErrSalonNotFound, ErrAppointmentNotFound, ErrDuplicatePendingRequest,
	ErrSlotAlreadyConfirmed, ErrBackendFailure, ErrRaceLostAtConfirm, ErrInvalidRequest,
	ErrInvalidSchedule, ErrSlotInPast, ErrSlotNotOffered, ErrDateTooFar, ErrTooManyRequests,
	ErrInvalidTransition, ErrAppointmentWithdrawn, ErrForbidden, ErrCancelTooLate,
	ErrConcurrentModification,
}

// IsKnown reports whether err carries one of the sentinel errors above.
func IsKnown(err error) bool {
	for _, k := range known {
		if errors.Is(err, k) {
			return true
		}
	}
	return false
}

// Backend wraps a store failure as ErrBackendFailure unless it already is a
// sentinel, keeping the cause in the chain.
func Backend(op string, err error) error {
	if err == nil {
		return nil
	}
	if IsKnown(err) {
		return err
	}
	return fmt.Errorf("%s: %w: %w", op, ErrBackendFailure, err)
}

var codes = map[error]string{
	ErrSalonClosed:             "salon_closed",
	ErrSalonNotFound:           "salon_not_found",
	ErrAppointmentNotFound:     "appointment_not_found",
	ErrDuplicatePendingRequest: "duplicate_pending_request",
	ErrSlotAlreadyConfirmed:    "slot_already_confirmed",
	ErrBackendFailure:          "backend_failure",
	ErrRaceLostAtConfirm:       "race_lost_at_confirm",
	ErrInvalidRequest:          "invalid_request",
	ErrInvalidSchedule:         "invalid_schedule",
	ErrSlotInPast:              "slot_in_past",
	ErrSlotNotOffered:          "slot_not_offered",
	ErrDateTooFar:              "date_too_far",
	ErrTooManyRequests:         "too_many_requests",
	ErrInvalidTransition:       "invalid_transition",
	ErrAppointmentWithdrawn:    "appointment_withdrawn",
	ErrForbidden:               "forbidden",
	ErrCancelTooLate:           "cancel_too_late",
	ErrConcurrentModification:  "concurrent_modification",
}

// Code returns a stable snake_case identifier for err's sentinel, or
// "internal" when err carries none.
func Code(err error) string {
	for _, k := range known {
		if errors.Is(err, k) {
			return codes[k]
		}
	}
	return "internal"
}
