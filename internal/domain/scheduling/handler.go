package scheduling

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/clinic/scheduler/internal/platform/auth"
	"github.com/clinic/scheduler/pkg/pagination"
)

type Handler struct {
	scheduler *Scheduler
	loc       *time.Location
}

// NewHandler creates the HTTP adapter. loc is the offset used for date-only
// requests that do not carry utc_offset.
func NewHandler(scheduler *Scheduler, loc *time.Location) *Handler {
	if loc == nil {
		loc = time.UTC
	}
	return &Handler{scheduler: scheduler, loc: loc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	readGroup := api.Group("", auth.RequireRole(auth.RoleReceptionist, auth.RoleClinician))
	readGroup.GET("/appointment-types", h.ListAppointmentTypes)
	readGroup.GET("/clinic-hours", h.GetClinicHours)
	readGroup.GET("/available-times", h.GetAvailableTimes)
	readGroup.GET("/appointments", h.ListDailyAppointments)

	writeGroup := api.Group("", auth.RequireRole(auth.RoleReceptionist))
	writeGroup.POST("/appointments", h.BookAppointment)
}

type appointmentTypeResponse struct {
	Type            AppointmentType `json:"type"`
	DurationMinutes int             `json:"duration_minutes"`
}

type clinicHoursResponse struct {
	OpeningTime        string `json:"opening_time"`
	ClosingTime        string `json:"closing_time"`
	StartMinutes       []int  `json:"start_minutes"`
	BookingLeadMinutes int    `json:"booking_lead_minutes"`
	DefaultUTCOffset   string `json:"default_utc_offset"`
}

type availableTimesResponse struct {
	Date  string          `json:"date"`
	Type  AppointmentType `json:"type"`
	Times []time.Time     `json:"times"`
}

type bookingRequest struct {
	Start time.Time       `json:"start"`
	Type  AppointmentType `json:"type"`
}

// rejection is the body returned for a refused booking.
type rejection struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

var rejectionCodes = []struct {
	err    error
	code   string
	status int
}{
	{ErrUnknownAppointmentType, "unknown_appointment_type", http.StatusBadRequest},
	{ErrStartTimeInvalid, "start_time_invalid", http.StatusUnprocessableEntity},
	{ErrOutsideWorkingHours, "outside_working_hours", http.StatusUnprocessableEntity},
	{ErrPastDeadline, "past_deadline", http.StatusUnprocessableEntity},
	{ErrOverlap, "overlap", http.StatusConflict},
}

func (h *Handler) ListAppointmentTypes(c echo.Context) error {
	types := AppointmentTypes()
	out := make([]appointmentTypeResponse, 0, len(types))
	for _, t := range types {
		out = append(out, appointmentTypeResponse{Type: t, DurationMinutes: int(t.Duration() / time.Minute)})
	}
	return c.JSON(http.StatusOK, out)
}

func (h *Handler) GetClinicHours(c echo.Context) error {
	cfg := h.scheduler.Config()
	return c.JSON(http.StatusOK, clinicHoursResponse{
		OpeningTime:        cfg.OpeningTime.String(),
		ClosingTime:        cfg.ClosingTime.String(),
		StartMinutes:       cfg.StartMinutes,
		BookingLeadMinutes: int(cfg.BookingLeadTime / time.Minute),
		DefaultUTCOffset:   time.Date(2000, 1, 1, 0, 0, 0, 0, h.loc).Format("Z07:00"),
	})
}

func (h *Handler) GetAvailableTimes(c echo.Context) error {
	date, err := h.dateParam(c)
	if err != nil {
		return err
	}
	t, err := ParseAppointmentType(c.QueryParam("type"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	times, err := h.scheduler.GetAvailableAppointmentTimes(c.Request().Context(), date, t)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, availableTimesResponse{
		Date:  date.Format(dateLayout),
		Type:  t,
		Times: times,
	})
}

func (h *Handler) ListDailyAppointments(c echo.Context) error {
	date, err := h.dateParam(c)
	if err != nil {
		return err
	}
	appointments, err := h.scheduler.GetDailyAppointments(c.Request().Context(), date)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	pg := pagination.FromContext(c)
	return c.JSON(http.StatusOK, pagination.NewResponse(pagination.Page(appointments, pg), len(appointments), pg.Limit, pg.Offset))
}

func (h *Handler) BookAppointment(c echo.Context) error {
	var req bookingRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.Start.IsZero() {
		return echo.NewHTTPError(http.StatusBadRequest, "start is required")
	}

	appt := NewAppointment(req.Start, req.Type)
	saved, err := h.scheduler.BookAnAppointment(c.Request().Context(), appt)
	if err != nil {
		for _, r := range rejectionCodes {
			if errors.Is(err, r.err) {
				return echo.NewHTTPError(r.status, rejection{Code: r.code, Message: err.Error()})
			}
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if !saved {
		return echo.NewHTTPError(http.StatusConflict, rejection{
			Code:    "not_persisted",
			Message: "the appointment could not be saved",
		})
	}
	return c.JSON(http.StatusCreated, appt)
}

func (h *Handler) dateParam(c echo.Context) (time.Time, error) {
	loc := h.loc
	if off := c.QueryParam("utc_offset"); off != "" {
		parsed, err := ParseUTCOffset(off)
		if err != nil {
			return time.Time{}, echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		loc = parsed
	}
	raw := c.QueryParam("date")
	if raw == "" {
		return time.Time{}, echo.NewHTTPError(http.StatusBadRequest, "date query parameter is required")
	}
	date, err := ParseDate(raw, loc)
	if err != nil {
		return time.Time{}, echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return date, nil
}
