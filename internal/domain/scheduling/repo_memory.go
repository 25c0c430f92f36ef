package scheduling

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore is an in-process AppointmentStore. Like the Postgres store it
// refuses a second appointment with the same start instant.
type MemoryStore struct {
	mu           sync.RWMutex
	appointments map[string]Appointment // appointment ID -> appointment
	starts       map[int64]string       // start (unix nanos) -> appointment ID
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		appointments: make(map[string]Appointment),
		starts:       make(map[int64]string),
	}
}

// GetScheduledAppointmentsByDate returns copies of the appointments starting
// on date's calendar day, ordered by start.
func (m *MemoryStore) GetScheduledAppointmentsByDate(_ context.Context, date time.Time) ([]*Appointment, error) {
	from := StartOfDay(date)
	to := from.AddDate(0, 0, 1)

	m.mu.RLock()
	defer m.mu.RUnlock()

	var results []*Appointment
	for _, a := range m.appointments {
		if a.Start.Before(from) || !a.Start.Before(to) {
			continue
		}
		appt := a
		results = append(results, &appt)
	}

	sort.Slice(results, func(i, j int) bool {
		return results[i].Start.Before(results[j].Start)
	})
	return results, nil
}

// SaveAppointment stores a copy of a. It returns false when an appointment
// with the same ID or start already exists.
func (m *MemoryStore) SaveAppointment(_ context.Context, a *Appointment) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := a.Start.UnixNano()
	if _, exists := m.appointments[a.ID.String()]; exists {
		return false, nil
	}
	if _, taken := m.starts[key]; taken {
		return false, nil
	}
	m.appointments[a.ID.String()] = *a
	m.starts[key] = a.ID.String()
	return true, nil
}

// Len returns the number of stored appointments.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.appointments)
}
