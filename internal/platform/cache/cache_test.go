package cache

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/clinic/scheduler/internal/domain/scheduling"
)

type fakeStore struct {
	appointments []*scheduling.Appointment
	saveResult   bool
	getCalls     int
	saveCalls    int
	// onGet runs inside the read, after the appointments were loaded.
	onGet func()
}

func (f *fakeStore) GetScheduledAppointmentsByDate(_ context.Context, _ time.Time) ([]*scheduling.Appointment, error) {
	f.getCalls++
	appointments := f.appointments
	if f.onGet != nil {
		f.onGet()
	}
	return appointments, nil
}

func (f *fakeStore) SaveAppointment(_ context.Context, _ *scheduling.Appointment) (bool, error) {
	f.saveCalls++
	return f.saveResult, nil
}

// memoryBackend keeps cache entries in maps so the decorator can be driven
// without Redis.
type memoryBackend struct {
	data     map[string][]byte
	counters map[string]int64
	afterSet func()
}

func newMemoryBackend() *memoryBackend {
	return &memoryBackend{data: map[string][]byte{}, counters: map[string]int64{}}
}

func (m *memoryBackend) IsAvailable() bool { return true }

func (m *memoryBackend) get(_ context.Context, key string, dest any) bool {
	data, ok := m.data[key]
	if !ok {
		return false
	}
	return json.Unmarshal(data, dest) == nil
}

func (m *memoryBackend) set(_ context.Context, key string, value any) {
	data, _ := json.Marshal(value)
	m.data[key] = data
	if m.afterSet != nil {
		m.afterSet()
	}
}

func (m *memoryBackend) del(_ context.Context, key string) error {
	delete(m.data, key)
	return nil
}

func (m *memoryBackend) deletePattern(_ context.Context, pattern string) error {
	prefix := strings.TrimSuffix(pattern, "*")
	for key := range m.data {
		if strings.HasPrefix(key, prefix) {
			delete(m.data, key)
		}
	}
	return nil
}

func (m *memoryBackend) generation(_ context.Context, key string) (int64, bool) {
	return m.counters[key], true
}

func (m *memoryBackend) incr(_ context.Context, key string) error {
	m.counters[key]++
	return nil
}

func newMemoryStore(inner *fakeStore) (*AppointmentStore, *memoryBackend) {
	mem := newMemoryBackend()
	return &AppointmentStore{inner: inner, cache: mem, logger: zerolog.Nop()}, mem
}

// unreachableClient points at a port nothing listens on, so every command
// fails fast with a connection error.
func unreachableClient() *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 200 * time.Millisecond,
		MaxRetries:  -1,
	})
}

func TestAppointmentKey(t *testing.T) {
	tests := []struct {
		name string
		date time.Time
		want string
	}{
		{"utc", time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC), "clinic:appointments:2026-03-02Z"},
		{"positive offset", time.Date(2026, 3, 2, 0, 0, 0, 0, time.FixedZone("", 2*3600)), "clinic:appointments:2026-03-02+02:00"},
		{"negative offset", time.Date(2026, 3, 2, 0, 0, 0, 0, time.FixedZone("", -7*3600)), "clinic:appointments:2026-03-02-07:00"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := AppointmentKey(tt.date); got != tt.want {
				t.Errorf("AppointmentKey() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestNew_EmptyURLDisablesCache(t *testing.T) {
	c, err := New(context.Background(), Config{}, zerolog.Nop())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.IsAvailable() {
		t.Error("expected cache without URL to be unavailable")
	}
	if err := c.Ping(context.Background()); err != nil {
		t.Errorf("expected disabled cache to report healthy, got %v", err)
	}
	if err := c.Close(); err != nil {
		t.Errorf("unexpected close error: %v", err)
	}
}

func TestNew_MalformedURL(t *testing.T) {
	if _, err := New(context.Background(), Config{URL: "http://not-redis"}, zerolog.Nop()); err == nil {
		t.Error("expected error for malformed redis url")
	}
}

func TestAppointmentStore_PassthroughWhenDisabled(t *testing.T) {
	c, _ := New(context.Background(), Config{}, zerolog.Nop())
	appt := scheduling.NewAppointment(time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC), scheduling.Standard)
	inner := &fakeStore{appointments: []*scheduling.Appointment{appt}, saveResult: true}
	store := NewAppointmentStore(inner, c)
	ctx := context.Background()
	date := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 2; i++ {
		got, err := store.GetScheduledAppointmentsByDate(ctx, date)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(got) != 1 || got[0].ID != appt.ID {
			t.Fatalf("expected inner appointments, got %v", got)
		}
	}
	if inner.getCalls != 2 {
		t.Errorf("expected every read to reach the inner store, got %d calls", inner.getCalls)
	}

	saved, err := store.SaveAppointment(ctx, appt)
	if err != nil || !saved {
		t.Fatalf("expected save to pass through, got %v, %v", saved, err)
	}
	if inner.saveCalls != 1 {
		t.Errorf("expected 1 inner save, got %d", inner.saveCalls)
	}
}

func TestAppointmentStore_RedisErrorTripsBreaker(t *testing.T) {
	c := NewWithClient(unreachableClient(), Config{RetryAfter: time.Minute}, zerolog.Nop())
	defer c.Close()

	inner := &fakeStore{}
	store := NewAppointmentStore(inner, c)
	ctx := context.Background()

	got, err := store.GetScheduledAppointmentsByDate(ctx, time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("expected redis failure to be hidden, got %v", err)
	}
	if got == nil {
		t.Error("expected a non-nil slice from the inner store")
	}
	if inner.getCalls != 1 {
		t.Errorf("expected the inner store to be consulted, got %d calls", inner.getCalls)
	}
	if c.IsAvailable() {
		t.Error("expected cache to be disabled after a redis error")
	}
}

func TestCache_BreakerReopensAfterRetryAfter(t *testing.T) {
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	c := NewWithClient(unreachableClient(), Config{RetryAfter: 30 * time.Second}, zerolog.Nop())
	defer c.Close()
	c.now = func() time.Time { return now }

	c.trip()
	if c.IsAvailable() {
		t.Fatal("expected cache to be unavailable right after tripping")
	}

	now = now.Add(31 * time.Second)
	if !c.IsAvailable() {
		t.Error("expected cache to be available once RetryAfter has passed")
	}
}

func TestAppointmentStore_FailedInvalidationStaysDirty(t *testing.T) {
	c := NewWithClient(unreachableClient(), Config{RetryAfter: time.Minute}, zerolog.Nop())
	defer c.Close()

	inner := &fakeStore{saveResult: true}
	store := NewAppointmentStore(inner, c)

	appt := scheduling.NewAppointment(time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC), scheduling.CheckIn)
	saved, err := store.SaveAppointment(context.Background(), appt)
	if err != nil || !saved {
		t.Fatalf("expected save to succeed, got %v, %v", saved, err)
	}
	if !store.dirty.Load() {
		t.Error("expected store to remember the pending invalidation")
	}
}

func TestAppointmentStore_RejectedSaveDoesNotInvalidate(t *testing.T) {
	c, _ := New(context.Background(), Config{}, zerolog.Nop())
	inner := &fakeStore{saveResult: false}
	store := NewAppointmentStore(inner, c)

	appt := scheduling.NewAppointment(time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC), scheduling.CheckIn)
	saved, err := store.SaveAppointment(context.Background(), appt)
	if err != nil || saved {
		t.Fatalf("expected false without error, got %v, %v", saved, err)
	}
	if store.dirty.Load() {
		t.Error("expected no pending invalidation for an unsaved appointment")
	}
}

func TestAppointmentStore_MissIsCached(t *testing.T) {
	appt := scheduling.NewAppointment(time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC), scheduling.Standard)
	inner := &fakeStore{appointments: []*scheduling.Appointment{appt}}
	store, mem := newMemoryStore(inner)
	ctx := context.Background()
	date := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 2; i++ {
		got, err := store.GetScheduledAppointmentsByDate(ctx, date)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(got) != 1 || got[0].ID != appt.ID {
			t.Fatalf("read %d: got %v", i, got)
		}
	}
	if inner.getCalls != 1 {
		t.Errorf("expected the second read to be a hit, got %d inner reads", inner.getCalls)
	}
	if _, ok := mem.data[AppointmentKey(date)]; !ok {
		t.Error("expected the day to be cached")
	}
}

func TestAppointmentStore_SaveDuringReadIsNotCached(t *testing.T) {
	inner := &fakeStore{saveResult: true}
	store, mem := newMemoryStore(inner)
	ctx := context.Background()
	date := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	booked := scheduling.NewAppointment(time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC), scheduling.Standard)

	// The read loads an empty day, then the booking commits before the
	// read stores its result.
	inner.onGet = func() {
		inner.onGet = nil
		inner.appointments = []*scheduling.Appointment{booked}
		if saved, err := store.SaveAppointment(ctx, booked); err != nil || !saved {
			t.Fatalf("expected save to succeed, got %v, %v", saved, err)
		}
	}

	got, err := store.GetScheduledAppointmentsByDate(ctx, date)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected the read to return what it loaded, got %v", got)
	}
	if _, ok := mem.data[AppointmentKey(date)]; ok {
		t.Fatal("expected the stale day not to stay cached")
	}

	got, err = store.GetScheduledAppointmentsByDate(ctx, date)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 || got[0].ID != booked.ID {
		t.Errorf("expected the booked appointment on the next read, got %v", got)
	}
	if inner.getCalls != 2 {
		t.Errorf("expected the next read to reach the inner store, got %d reads", inner.getCalls)
	}
}

func TestAppointmentStore_SaveBetweenSetAndCheckIsDiscarded(t *testing.T) {
	inner := &fakeStore{saveResult: true}
	store, mem := newMemoryStore(inner)
	ctx := context.Background()
	date := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

	// The counter moves after the stale day is written. The flush is
	// skipped here so only the generation check can remove the entry.
	mem.afterSet = func() {
		mem.afterSet = nil
		mem.counters[generationKey]++
	}

	if _, err := store.GetScheduledAppointmentsByDate(ctx, date); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := mem.data[AppointmentKey(date)]; ok {
		t.Error("expected the day written during a save to be discarded")
	}
	if store.dirty.Load() {
		t.Error("expected a successful delete to leave no pending flush")
	}
}
