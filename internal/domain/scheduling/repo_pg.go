package scheduling

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

// =========== Appointment Store ===========

type appointmentStorePG struct{ db queryable }

// NewAppointmentStorePG returns a Postgres-backed AppointmentStore. db is
// usually a *pgxpool.Pool.
func NewAppointmentStorePG(db queryable) AppointmentStore {
	return &appointmentStorePG{db: db}
}

const apptCols = `id, start_time, utc_offset_minutes, type`

func (r *appointmentStorePG) scanAppointment(row pgx.Row) (*Appointment, error) {
	var (
		a             Appointment
		offsetMinutes int
		typeName      string
	)
	if err := row.Scan(&a.ID, &a.Start, &offsetMinutes, &typeName); err != nil {
		return nil, err
	}
	t, err := ParseAppointmentType(typeName)
	if err != nil {
		return nil, fmt.Errorf("appointment %s: %w", a.ID, err)
	}
	a.Type = t
	a.Start = a.Start.In(fixedZone(offsetMinutes))
	return &a, nil
}

func (r *appointmentStorePG) GetScheduledAppointmentsByDate(ctx context.Context, date time.Time) ([]*Appointment, error) {
	from := StartOfDay(date)
	to := from.AddDate(0, 0, 1)

	rows, err := r.db.Query(ctx, `SELECT `+apptCols+` FROM appointment
		WHERE start_time >= $1 AND start_time < $2 ORDER BY start_time`, from, to)
	if err != nil {
		return nil, fmt.Errorf("query appointments for %s: %w", date.Format(dateLayout), err)
	}
	defer rows.Close()

	var items []*Appointment
	for rows.Next() {
		a, err := r.scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, a)
	}
	return items, rows.Err()
}

// SaveAppointment inserts a. The unique index on start_time turns a
// concurrent booking of the same start into a false result rather than an
// error.
func (r *appointmentStorePG) SaveAppointment(ctx context.Context, a *Appointment) (bool, error) {
	_, offsetSeconds := a.Start.Zone()
	tag, err := r.db.Exec(ctx, `
		INSERT INTO appointment (id, start_time, utc_offset_minutes, type)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT DO NOTHING`,
		a.ID, a.Start, offsetSeconds/60, a.Type.String())
	if err != nil {
		return false, fmt.Errorf("insert appointment %s: %w", a.ID, err)
	}
	return tag.RowsAffected() == 1, nil
}

func fixedZone(offsetMinutes int) *time.Location {
	if offsetMinutes == 0 {
		return time.UTC
	}
	sign := '+'
	m := offsetMinutes
	if m < 0 {
		sign = '-'
		m = -m
	}
	return time.FixedZone(fmt.Sprintf("UTC%c%02d:%02d", sign, m/60, m%60), offsetMinutes*60)
}
