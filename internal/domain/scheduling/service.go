package scheduling

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"
)

const dateLayout = "2006-01-02"

// Scheduler finds bookable appointment times and books appointments for a
// single clinic. It holds no mutable state; concurrent use is safe as long as
// the store and clock are.
type Scheduler struct {
	store  AppointmentStore
	clock  Clock
	cfg    SchedulerConfig
	logger zerolog.Logger
}

func NewScheduler(store AppointmentStore, clock Clock, cfg SchedulerConfig, logger zerolog.Logger) *Scheduler {
	cfg.StartMinutes = append([]int(nil), cfg.StartMinutes...)
	return &Scheduler{
		store:  store,
		clock:  clock,
		cfg:    cfg,
		logger: logger.With().Str("component", "scheduler").Logger(),
	}
}

// Config returns a copy of the rules the scheduler enforces.
func (s *Scheduler) Config() SchedulerConfig {
	cfg := s.cfg
	cfg.StartMinutes = append([]int(nil), s.cfg.StartMinutes...)
	return cfg
}

// GetAvailableAppointmentTimes returns the start times on date at which an
// appointment of type t could be booked. Slots are packed back to back from
// the end of each existing appointment (or opening time) and must finish by
// closing time. Times earlier than now plus the booking lead time are left
// out. The result is in ascending order; an empty result is not an error.
func (s *Scheduler) GetAvailableAppointmentTimes(ctx context.Context, date time.Time, t AppointmentType) ([]time.Time, error) {
	if !t.Valid() {
		return nil, ErrUnknownAppointmentType
	}

	existing, err := s.store.GetScheduledAppointmentsByDate(ctx, date)
	if err != nil {
		return nil, fmt.Errorf("load appointments for %s: %w", date.Format(dateLayout), err)
	}
	ordered := sortedByStart(existing)

	duration := t.Duration()
	closing := s.cfg.ClosingTime.On(date)
	previousEnd := s.cfg.OpeningTime.On(date)
	earliest := s.clock.Now().Add(s.cfg.BookingLeadTime)

	available := []time.Time{}
	fillGap := func(gapEnd time.Time) {
		if gapEnd.After(closing) {
			gapEnd = closing
		}
		fits := int(gapEnd.Sub(previousEnd) / duration)
		for i := 0; i < fits; i++ {
			start := previousEnd.Add(time.Duration(i) * duration)
			if start.Before(earliest) {
				continue
			}
			available = append(available, start)
		}
	}

	for _, a := range ordered {
		fillGap(a.Start)
		// A contained appointment must not pull previousEnd backwards.
		if end := a.End(); end.After(previousEnd) {
			previousEnd = end
		}
	}
	fillGap(closing)

	s.logger.Info().
		Str("date", date.Format(dateLayout)).
		Stringer("type", t).
		Int("count", len(available)).
		Msg("found available appointment times")

	return available, nil
}

// BookAnAppointment validates a and, if it passes, hands it to the store. The
// returned bool is whatever the store reports. A validation failure is
// returned as one of the Err* rejections and nothing is saved.
func (s *Scheduler) BookAnAppointment(ctx context.Context, a *Appointment) (bool, error) {
	if err := s.ValidateAppointment(ctx, a); err != nil {
		return false, err
	}

	saved, err := s.store.SaveAppointment(ctx, a)
	if err != nil {
		return false, fmt.Errorf("save appointment %s: %w", a.ID, err)
	}
	s.logger.Info().
		Str("appointment_id", a.ID.String()).
		Time("start", a.Start).
		Stringer("type", a.Type).
		Bool("saved", saved).
		Msg("appointment booking processed")
	return saved, nil
}

// GetDailyAppointments returns the appointments scheduled on date. A store
// reporting nothing yields an empty, non-nil slice.
func (s *Scheduler) GetDailyAppointments(ctx context.Context, date time.Time) ([]*Appointment, error) {
	appointments, err := s.store.GetScheduledAppointmentsByDate(ctx, date)
	if err != nil {
		return nil, fmt.Errorf("load appointments for %s: %w", date.Format(dateLayout), err)
	}
	s.logger.Info().
		Str("date", date.Format(dateLayout)).
		Int("count", len(appointments)).
		Msg("found daily appointments")
	if appointments == nil {
		return []*Appointment{}, nil
	}
	return appointments, nil
}

// ValidateAppointment runs the booking checks in order and returns the first
// rejection: start minute, working hours, booking deadline, overlap.
func (s *Scheduler) ValidateAppointment(ctx context.Context, a *Appointment) error {
	if a == nil || !a.Type.Valid() {
		return s.reject(ErrUnknownAppointmentType, a)
	}
	if !s.cfg.PermitsStartMinute(a.Start.Minute()) {
		return s.reject(ErrStartTimeInvalid, a)
	}
	if !s.withinWorkingHours(a) {
		return s.reject(ErrOutsideWorkingHours, a)
	}
	if a.Start.Before(s.clock.Now().Add(s.cfg.BookingLeadTime)) {
		return s.reject(ErrPastDeadline, a)
	}

	scheduled, err := s.store.GetScheduledAppointmentsByDate(ctx, a.Start)
	if err != nil {
		return fmt.Errorf("load appointments for overlap check: %w", err)
	}
	for _, e := range scheduled {
		if e != nil && a.Overlaps(e) {
			return s.reject(ErrOverlap, a)
		}
	}
	return nil
}

// withinWorkingHours measures the end from the start's midnight so an
// appointment running past midnight is never mistaken for an early one.
func (s *Scheduler) withinWorkingHours(a *Appointment) bool {
	if TimeOfDayOf(a.Start) < s.cfg.OpeningTime {
		return false
	}
	return TimeOfDay(a.End().Sub(StartOfDay(a.Start))) <= s.cfg.ClosingTime
}

func (s *Scheduler) reject(reason error, a *Appointment) error {
	evt := s.logger.Warn().Str("reason", reason.Error())
	if a != nil {
		evt = evt.Time("start", a.Start).Stringer("type", a.Type)
	}
	evt.Msg("appointment rejected")
	return reason
}

func sortedByStart(appointments []*Appointment) []*Appointment {
	ordered := make([]*Appointment, 0, len(appointments))
	for _, a := range appointments {
		if a != nil {
			ordered = append(ordered, a)
		}
	}
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Start.Before(ordered[j].Start)
	})
	return ordered
}
