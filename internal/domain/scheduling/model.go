package scheduling

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// AppointmentType is the closed set of appointment kinds offered by the clinic.
// Each kind has a fixed duration; see Duration.
type AppointmentType int

const (
	InitialConsultation AppointmentType = iota + 1
	Standard
	CheckIn
)

var appointmentTypeNames = map[AppointmentType]string{
	InitialConsultation: "initial_consultation",
	Standard:            "standard",
	CheckIn:             "check_in",
}

// AppointmentTypes returns every appointment type in declaration order.
func AppointmentTypes() []AppointmentType {
	return []AppointmentType{InitialConsultation, Standard, CheckIn}
}

// Duration returns the fixed length of an appointment of this type.
// Unknown types have a zero duration.
func (t AppointmentType) Duration() time.Duration {
	switch t {
	case InitialConsultation:
		return 90 * time.Minute
	case Standard:
		return 60 * time.Minute
	case CheckIn:
		return 30 * time.Minute
	}
	return 0
}

// Valid reports whether t is one of the declared appointment types.
func (t AppointmentType) Valid() bool {
	_, ok := appointmentTypeNames[t]
	return ok
}

func (t AppointmentType) String() string {
	if name, ok := appointmentTypeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("appointment_type(%d)", int(t))
}

// ParseAppointmentType maps a type name such as "standard" to its AppointmentType.
func ParseAppointmentType(s string) (AppointmentType, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for t, n := range appointmentTypeNames {
		if n == name {
			return t, nil
		}
	}
	return 0, fmt.Errorf("%w %q", ErrUnknownAppointmentType, s)
}

func (t AppointmentType) MarshalText() ([]byte, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("%w %d", ErrUnknownAppointmentType, int(t))
	}
	return []byte(t.String()), nil
}

func (t *AppointmentType) UnmarshalText(b []byte) error {
	parsed, err := ParseAppointmentType(string(b))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// Appointment is a booked (or requested) visit. The end of an appointment is
// never stored; it is always Start plus the duration of Type.
type Appointment struct {
	ID    uuid.UUID
	Start time.Time
	Type  AppointmentType
}

// NewAppointment creates an appointment with a fresh ID.
func NewAppointment(start time.Time, t AppointmentType) *Appointment {
	return &Appointment{ID: uuid.New(), Start: start, Type: t}
}

// End returns the instant the appointment finishes.
func (a *Appointment) End() time.Time {
	return a.Start.Add(a.Type.Duration())
}

// Overlaps reports whether a and other intersect as half-open [Start, End)
// intervals. Touching boundaries do not overlap.
func (a *Appointment) Overlaps(other *Appointment) bool {
	return other.Start.Before(a.End()) && other.End().After(a.Start)
}

type appointmentJSON struct {
	ID    uuid.UUID       `json:"id"`
	Start time.Time       `json:"start"`
	End   time.Time       `json:"end"`
	Type  AppointmentType `json:"type"`
}

func (a Appointment) MarshalJSON() ([]byte, error) {
	return json.Marshal(appointmentJSON{
		ID:    a.ID,
		Start: a.Start,
		End:   a.End(),
		Type:  a.Type,
	})
}

// UnmarshalJSON accepts the marshalled form; "end" is ignored because it is
// derived from the type.
func (a *Appointment) UnmarshalJSON(b []byte) error {
	var v appointmentJSON
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	a.ID = v.ID
	a.Start = v.Start
	a.Type = v.Type
	return nil
}
