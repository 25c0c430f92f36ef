package scheduling

import (
	"encoding/json"
	"errors"
	"testing"
	"time"
)

func TestAppointmentType_Duration(t *testing.T) {
	tests := []struct {
		typ  AppointmentType
		want time.Duration
	}{
		{InitialConsultation, 90 * time.Minute},
		{Standard, 60 * time.Minute},
		{CheckIn, 30 * time.Minute},
		{AppointmentType(0), 0},
		{AppointmentType(42), 0},
	}

	for _, tt := range tests {
		if got := tt.typ.Duration(); got != tt.want {
			t.Errorf("%s.Duration() = %s, want %s", tt.typ, got, tt.want)
		}
	}
}

func TestAppointmentTypes_AllValidWithPositiveDuration(t *testing.T) {
	types := AppointmentTypes()
	if len(types) != 3 {
		t.Fatalf("expected 3 appointment types, got %d", len(types))
	}
	for _, typ := range types {
		if !typ.Valid() {
			t.Errorf("%s should be valid", typ)
		}
		if typ.Duration() <= 0 {
			t.Errorf("%s should have a positive duration", typ)
		}
	}
}

func TestParseAppointmentType(t *testing.T) {
	tests := []struct {
		in      string
		want    AppointmentType
		wantErr bool
	}{
		{"initial_consultation", InitialConsultation, false},
		{"standard", Standard, false},
		{"check_in", CheckIn, false},
		{"  Standard ", Standard, false},
		{"CHECK_IN", CheckIn, false},
		{"", 0, true},
		{"surgery", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseAppointmentType(tt.in)
			if tt.wantErr {
				if !errors.Is(err, ErrUnknownAppointmentType) {
					t.Fatalf("expected ErrUnknownAppointmentType, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %s, want %s", got, tt.want)
			}
		})
	}
}

func TestAppointmentType_String(t *testing.T) {
	if got := Standard.String(); got != "standard" {
		t.Errorf("got %q, want standard", got)
	}
	if got := AppointmentType(9).String(); got != "appointment_type(9)" {
		t.Errorf("got %q for an unknown type", got)
	}
}

func TestAppointmentType_MarshalTextRejectsUnknown(t *testing.T) {
	if _, err := AppointmentType(0).MarshalText(); !errors.Is(err, ErrUnknownAppointmentType) {
		t.Fatalf("expected ErrUnknownAppointmentType, got %v", err)
	}
}

func TestAppointment_End(t *testing.T) {
	start := time.Date(2026, 3, 3, 9, 30, 0, 0, time.UTC)
	a := NewAppointment(start, InitialConsultation)

	if want := time.Date(2026, 3, 3, 11, 0, 0, 0, time.UTC); !a.End().Equal(want) {
		t.Errorf("End() = %s, want %s", a.End(), want)
	}
	if a.ID.String() == "00000000-0000-0000-0000-000000000000" {
		t.Error("expected NewAppointment to assign an ID")
	}
}

func TestAppointment_Overlaps(t *testing.T) {
	base := time.Date(2026, 3, 3, 0, 0, 0, 0, time.UTC)
	existing := appt(base, 10, 0, Standard) // 10:00-11:00

	tests := []struct {
		name string
		a    *Appointment
		want bool
	}{
		{"identical", appt(base, 10, 0, Standard), true},
		{"starts inside", appt(base, 10, 30, Standard), true},
		{"ends inside", appt(base, 9, 30, Standard), true},
		{"contains", appt(base, 9, 30, InitialConsultation), true},
		{"contained", appt(base, 10, 0, CheckIn), true},
		{"ends at start", appt(base, 9, 0, Standard), false},
		{"starts at end", appt(base, 11, 0, Standard), false},
		{"well before", appt(base, 7, 0, CheckIn), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.a.Overlaps(existing); got != tt.want {
				t.Errorf("Overlaps() = %v, want %v", got, tt.want)
			}
			if got := existing.Overlaps(tt.a); got != tt.want {
				t.Errorf("Overlaps() is not symmetric: got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestAppointment_Overlaps_AcrossOffsets(t *testing.T) {
	utc := time.Date(2026, 3, 3, 17, 0, 0, 0, time.UTC)
	local := time.Date(2026, 3, 3, 10, 30, 0, 0, time.FixedZone("", -7*3600)) // 17:30Z

	if !NewAppointment(utc, Standard).Overlaps(NewAppointment(local, CheckIn)) {
		t.Error("expected appointments at the same instant in different offsets to overlap")
	}
}

func TestAppointment_JSON(t *testing.T) {
	start := time.Date(2026, 3, 3, 9, 0, 0, 0, time.FixedZone("", 2*3600))
	a := NewAppointment(start, CheckIn)

	data, err := json.Marshal(a)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var raw map[string]string
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("unmarshal raw: %v", err)
	}
	if raw["type"] != "check_in" {
		t.Errorf("type = %q, want check_in", raw["type"])
	}
	if raw["start"] != "2026-03-03T09:00:00+02:00" {
		t.Errorf("start = %q", raw["start"])
	}
	if raw["end"] != "2026-03-03T09:30:00+02:00" {
		t.Errorf("end = %q", raw["end"])
	}
	if raw["id"] != a.ID.String() {
		t.Errorf("id = %q, want %s", raw["id"], a.ID)
	}

	var back Appointment
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if back.ID != a.ID || back.Type != a.Type || !back.Start.Equal(a.Start) {
		t.Errorf("decoded %+v, want %+v", back, *a)
	}
}

func TestAppointment_UnmarshalJSON_UnknownType(t *testing.T) {
	var a Appointment
	err := json.Unmarshal([]byte(`{"start":"2026-03-03T09:00:00Z","type":"surgery"}`), &a)
	if !errors.Is(err, ErrUnknownAppointmentType) {
		t.Fatalf("expected ErrUnknownAppointmentType, got %v", err)
	}
}

func TestIsValidationError(t *testing.T) {
	for _, err := range []error{ErrStartTimeInvalid, ErrOutsideWorkingHours, ErrPastDeadline, ErrOverlap, ErrUnknownAppointmentType} {
		if !IsValidationError(err) {
			t.Errorf("%v should be a validation error", err)
		}
	}
	if IsValidationError(errors.New("connection refused")) {
		t.Error("a store error is not a validation error")
	}
	if IsValidationError(nil) {
		t.Error("nil is not a validation error")
	}
}
