package cache

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/clinic/scheduler/internal/domain/scheduling"
)

const (
	appointmentKeyPrefix = "clinic:appointments:"
	// generationKey is outside the day-key pattern so a flush keeps it.
	generationKey = "clinic:appointments-generation"
)

// AppointmentKey is the cache key for one calendar day. The offset is part of
// the key because the same date covers a different instant range in each
// offset.
func AppointmentKey(date time.Time) string {
	return appointmentKeyPrefix + date.Format("2006-01-02Z07:00")
}

// backend is the subset of Cache the appointment decorator relies on.
type backend interface {
	IsAvailable() bool
	get(ctx context.Context, key string, dest any) bool
	set(ctx context.Context, key string, value any)
	del(ctx context.Context, key string) error
	deletePattern(ctx context.Context, pattern string) error
	generation(ctx context.Context, key string) (int64, bool)
	incr(ctx context.Context, key string) error
}

// AppointmentStore is a read-through cache in front of another
// scheduling.AppointmentStore. A successful save drops every cached day, since
// the new appointment may fall on any cached date under some offset.
//
// Every save bumps a generation counter in Redis before flushing. A read that
// missed only keeps what it cached if the counter did not move while it was
// querying the inner store.
type AppointmentStore struct {
	inner  scheduling.AppointmentStore
	cache  backend
	logger zerolog.Logger
	// dirty is set when an invalidation could not reach Redis. Cached days
	// are ignored until a flush succeeds.
	dirty atomic.Bool
}

var _ scheduling.AppointmentStore = (*AppointmentStore)(nil)

func NewAppointmentStore(inner scheduling.AppointmentStore, c *Cache) *AppointmentStore {
	return &AppointmentStore{inner: inner, cache: c, logger: c.logger}
}

func (s *AppointmentStore) GetScheduledAppointmentsByDate(ctx context.Context, date time.Time) ([]*scheduling.Appointment, error) {
	if !s.fresh(ctx) {
		return s.inner.GetScheduledAppointmentsByDate(ctx, date)
	}

	key := AppointmentKey(date)
	var cached []*scheduling.Appointment
	if s.cache.get(ctx, key, &cached) {
		s.logger.Debug().Str("key", key).Int("count", len(cached)).Msg("appointments cache hit")
		return cached, nil
	}

	gen, ok := s.cache.generation(ctx, generationKey)

	appointments, err := s.inner.GetScheduledAppointmentsByDate(ctx, date)
	if err != nil {
		return nil, err
	}
	if appointments == nil {
		appointments = []*scheduling.Appointment{}
	}
	if !ok {
		return appointments, nil
	}

	s.cache.set(ctx, key, appointments)
	if after, ok := s.cache.generation(ctx, generationKey); !ok || after != gen {
		s.logger.Debug().Str("key", key).Msg("appointments changed during read, discarding cached day")
		s.discard(ctx, key)
	}
	return appointments, nil
}

func (s *AppointmentStore) SaveAppointment(ctx context.Context, a *scheduling.Appointment) (bool, error) {
	saved, err := s.inner.SaveAppointment(ctx, a)
	if err != nil || !saved {
		return saved, err
	}
	// A failed bump trips the breaker, and dirty covers the rest.
	_ = s.cache.incr(ctx, generationKey)
	s.dirty.Store(true)
	s.fresh(ctx)
	return true, nil
}

// discard removes one day written by a read that raced a save. If Redis
// cannot be reached the whole cache is flushed on the next read instead.
func (s *AppointmentStore) discard(ctx context.Context, key string) {
	if err := s.cache.del(ctx, key); err != nil {
		s.dirty.Store(true)
	}
}

// fresh flushes pending invalidations and reports whether the cache may be
// read.
func (s *AppointmentStore) fresh(ctx context.Context) bool {
	if !s.cache.IsAvailable() {
		return false
	}
	if !s.dirty.Swap(false) {
		return true
	}
	if err := s.cache.deletePattern(ctx, appointmentKeyPrefix+"*"); err != nil {
		s.dirty.Store(true)
		return false
	}
	return true
}
