package scheduling

import (
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/hospital/frontdesk/internal/domain/identity"
	"github.com/hospital/frontdesk/internal/platform/apperr"
	"github.com/hospital/frontdesk/internal/platform/auth"
	"github.com/hospital/frontdesk/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes mounts slot listing and the template on public, everything
// else on the authenticated api group behind the policy.
func (h *Handler) RegisterRoutes(public *echo.Group, api *echo.Group, policy *auth.Policy) {
	public.GET("/doctors/:id/slots", h.ListAvailableSlots)
	public.GET("/doctors/:id/availability", h.ListWeeklyAvailability)

	api.POST("/doctors/:id/availability", h.CreateWeeklyAvailability, policy.Authorize("availability", "write"))
	api.PUT("/availability/:id", h.UpdateWeeklyAvailability, policy.Authorize("availability", "write"))
	api.DELETE("/availability/:id", h.DeleteWeeklyAvailability, policy.Authorize("availability", "write"))

	api.GET("/doctors/:id/dashboard", h.DoctorDashboard, policy.Authorize("dashboard", "read"))
	api.GET("/doctors/:id/time-slots", h.ListTimeSlots, policy.Authorize("timeslot", "read"))
	api.POST("/doctors/:id/time-slots/rebuild", h.RebuildTimeSlots, policy.Authorize("timeslot", "rebuild"))

	api.POST("/appointments", h.CreateAppointment, policy.Authorize("appointment", "create"))
	api.GET("/appointments", h.ListAppointments, policy.Authorize("appointment", "read"))
	api.GET("/appointments/:id", h.GetAppointment, policy.Authorize("appointment", "read"))
	api.POST("/appointments/:id/reschedule", h.RescheduleAppointment, policy.Authorize("appointment", "reschedule"))
	api.POST("/appointments/:id/status", h.TransitionStatus, policy.Authorize("appointment", "transition"))
	api.DELETE("/appointments/:id", h.CancelAppointment, policy.Authorize("appointment", "cancel"))
}

func (h *Handler) actor(c echo.Context) (identity.Actor, error) {
	p, ok := auth.PrincipalFromContext(c.Request().Context())
	if !ok {
		return identity.Actor{}, echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
	}
	actor, err := h.svc.Actor(c.Request().Context(), p)
	if err != nil {
		return identity.Actor{}, apperr.HTTPError(err)
	}
	return actor, nil
}

func parseID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	return id, nil
}

func parseDateParam(c echo.Context, name string, required bool) (*Date, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		if required {
			return nil, echo.NewHTTPError(http.StatusBadRequest, name+" is required")
		}
		return nil, nil
	}
	d, err := ParseDate(raw)
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return &d, nil
}

// -- Availability --

func (h *Handler) ListAvailableSlots(c echo.Context) error {
	doctorID, err := parseID(c)
	if err != nil {
		return err
	}
	date, err := parseDateParam(c, "date", true)
	if err != nil {
		return err
	}
	slots, err := h.svc.ListAvailableSlots(c.Request().Context(), doctorID, *date)
	if err != nil {
		return apperr.HTTPError(err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"doctor_id":       doctorID,
		"date":            date,
		"available_slots": slots,
	})
}

func (h *Handler) ListWeeklyAvailability(c echo.Context) error {
	doctorID, err := parseID(c)
	if err != nil {
		return err
	}
	windows, err := h.svc.ListWeeklyAvailability(c.Request().Context(), doctorID)
	if err != nil {
		return apperr.HTTPError(err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"data": windows, "total": len(windows)})
}

func (h *Handler) CreateWeeklyAvailability(c echo.Context) error {
	actor, err := h.actor(c)
	if err != nil {
		return err
	}
	doctorID, err := parseID(c)
	if err != nil {
		return err
	}
	var in AvailabilityInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	w, err := h.svc.CreateWeeklyAvailability(c.Request().Context(), actor, doctorID, in)
	if err != nil {
		return apperr.HTTPError(err)
	}
	return c.JSON(http.StatusCreated, w)
}

func (h *Handler) UpdateWeeklyAvailability(c echo.Context) error {
	actor, err := h.actor(c)
	if err != nil {
		return err
	}
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var in AvailabilityInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	w, err := h.svc.UpdateWeeklyAvailability(c.Request().Context(), actor, id, in)
	if err != nil {
		return apperr.HTTPError(err)
	}
	return c.JSON(http.StatusOK, w)
}

func (h *Handler) DeleteWeeklyAvailability(c echo.Context) error {
	actor, err := h.actor(c)
	if err != nil {
		return err
	}
	id, err := parseID(c)
	if err != nil {
		return err
	}
	if err := h.svc.DeleteWeeklyAvailability(c.Request().Context(), actor, id); err != nil {
		return apperr.HTTPError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

// -- Doctor views --

func (h *Handler) DoctorDashboard(c echo.Context) error {
	actor, err := h.actor(c)
	if err != nil {
		return err
	}
	doctorID, err := parseID(c)
	if err != nil {
		return err
	}
	d, err := h.svc.DoctorDashboard(c.Request().Context(), actor, doctorID)
	if err != nil {
		return apperr.HTTPError(err)
	}
	return c.JSON(http.StatusOK, d)
}

func (h *Handler) ListTimeSlots(c echo.Context) error {
	actor, err := h.actor(c)
	if err != nil {
		return err
	}
	doctorID, err := parseID(c)
	if err != nil {
		return err
	}
	date, err := parseDateParam(c, "date", true)
	if err != nil {
		return err
	}
	slots, err := h.svc.ListTimeSlots(c.Request().Context(), actor, doctorID, *date)
	if err != nil {
		return apperr.HTTPError(err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"data": slots, "total": len(slots)})
}

func (h *Handler) RebuildTimeSlots(c echo.Context) error {
	actor, err := h.actor(c)
	if err != nil {
		return err
	}
	doctorID, err := parseID(c)
	if err != nil {
		return err
	}
	date, err := parseDateParam(c, "date", true)
	if err != nil {
		return err
	}
	slots, err := h.svc.RebuildTimeSlots(c.Request().Context(), actor, doctorID, *date)
	if err != nil {
		return apperr.HTTPError(err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"data": slots, "total": len(slots)})
}

// -- Appointments --

func (h *Handler) CreateAppointment(c echo.Context) error {
	actor, err := h.actor(c)
	if err != nil {
		return err
	}
	var req CreateAppointmentRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	a, err := h.svc.CreateAppointment(c.Request().Context(), actor, req)
	if err != nil {
		return apperr.HTTPError(err)
	}
	return c.JSON(http.StatusCreated, a)
}

func (h *Handler) ListAppointments(c echo.Context) error {
	actor, err := h.actor(c)
	if err != nil {
		return err
	}
	pg := pagination.FromContext(c)
	f := AppointmentFilter{Limit: pg.Limit, Offset: pg.Offset}

	if v := c.QueryParam("doctor_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid doctor_id")
		}
		f.DoctorID = &id
	}
	if v := c.QueryParam("patient_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid patient_id")
		}
		f.PatientID = &id
	}
	if v := c.QueryParam("status"); v != "" {
		for _, raw := range strings.Split(v, ",") {
			st, err := ParseStatus(raw)
			if err != nil {
				return apperr.HTTPError(err)
			}
			f.Status = append(f.Status, st)
		}
	}
	if f.From, err = parseDateParam(c, "date_from", false); err != nil {
		return err
	}
	if f.To, err = parseDateParam(c, "date_to", false); err != nil {
		return err
	}

	appts, total, err := h.svc.ListAppointments(c.Request().Context(), actor, f)
	if err != nil {
		return apperr.HTTPError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(appts, total, pg))
}

func (h *Handler) GetAppointment(c echo.Context) error {
	actor, err := h.actor(c)
	if err != nil {
		return err
	}
	id, err := parseID(c)
	if err != nil {
		return err
	}
	a, err := h.svc.GetAppointment(c.Request().Context(), actor, id)
	if err != nil {
		return apperr.HTTPError(err)
	}
	return c.JSON(http.StatusOK, a)
}

type rescheduleRequest struct {
	Date *Date      `json:"appointment_date"`
	Time *TimeOfDay `json:"appointment_time"`
}

func (h *Handler) RescheduleAppointment(c echo.Context) error {
	actor, err := h.actor(c)
	if err != nil {
		return err
	}
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var req rescheduleRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.Date == nil || req.Time == nil {
		return echo.NewHTTPError(http.StatusBadRequest, "appointment_date and appointment_time are required")
	}
	a, err := h.svc.RescheduleAppointment(c.Request().Context(), actor, id, *req.Date, *req.Time)
	if err != nil {
		return apperr.HTTPError(err)
	}
	return c.JSON(http.StatusOK, a)
}

type statusRequest struct {
	Status string  `json:"status"`
	Notes  *string `json:"notes"`
}

func (h *Handler) TransitionStatus(c echo.Context) error {
	actor, err := h.actor(c)
	if err != nil {
		return err
	}
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var req statusRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	a, err := h.svc.TransitionStatus(c.Request().Context(), actor, id, req.Status, req.Notes)
	if err != nil {
		return apperr.HTTPError(err)
	}
	return c.JSON(http.StatusOK, a)
}

type cancelRequest struct {
	Reason *string `json:"reason" query:"reason"`
}

func (h *Handler) CancelAppointment(c echo.Context) error {
	actor, err := h.actor(c)
	if err != nil {
		return err
	}
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var req cancelRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.CancelAppointment(c.Request().Context(), actor, id, req.Reason); err != nil {
		return apperr.HTTPError(err)
	}
	return c.NoContent(http.StatusNoContent)
}
