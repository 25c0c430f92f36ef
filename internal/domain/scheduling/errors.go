package scheduling

import "errors"

// Booking rejections. Every failed validation returns exactly one of these.
var (
	ErrStartTimeInvalid       = errors.New("the requested appointment doesn't start on a permitted minute")
	ErrOutsideWorkingHours    = errors.New("the requested appointment is outside of clinic working hours")
	ErrPastDeadline           = errors.New("the requested appointment is past the booking deadline")
	ErrOverlap                = errors.New("the requested appointment overlaps an already scheduled appointment")
	ErrUnknownAppointmentType = errors.New("unknown appointment type")
)

var validationErrors = []error{
	ErrStartTimeInvalid,
	ErrOutsideWorkingHours,
	ErrPastDeadline,
	ErrOverlap,
	ErrUnknownAppointmentType,
}

// IsValidationError reports whether err is a booking rejection rather than a
// failure of a collaborator.
func IsValidationError(err error) bool {
	for _, target := range validationErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
