package scheduling

import (
	"context"
	"time"
)

// AppointmentStore loads and persists appointments.
//
// GetScheduledAppointmentsByDate returns the appointments that start on the
// calendar date of date, interpreted in date's location. A nil slice means
// no appointments. SaveAppointment reports whether the appointment was
// persisted; false with a nil error means the store declined it.
type AppointmentStore interface {
	GetScheduledAppointmentsByDate(ctx context.Context, date time.Time) ([]*Appointment, error)
	SaveAppointment(ctx context.Context, a *Appointment) (bool, error)
}
