package identity

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/hospital/frontdesk/internal/platform/apperr"
	"github.com/hospital/frontdesk/internal/platform/auth"
	"github.com/hospital/frontdesk/pkg/pagination"
)

type Handler struct {
	dir *Directory
}

func NewHandler(dir *Directory) *Handler {
	return &Handler{dir: dir}
}

// RegisterRoutes mounts the public doctor listing on public and the profile
// endpoints on the authenticated api group.
func (h *Handler) RegisterRoutes(public *echo.Group, api *echo.Group) {
	public.GET("/doctors", h.ListDoctors)
	public.GET("/doctors/:id", h.GetDoctor)

	api.GET("/me", h.Me)
	api.POST("/doctors", h.CreateDoctor, auth.RequireRole(auth.RoleAdmin))
	api.POST("/patients", h.CreatePatient, auth.RequireRole(auth.RoleStaff))
	api.GET("/patients/:id", h.GetPatient, auth.RequireRole(auth.RoleStaff))
}

func (h *Handler) ListDoctors(c echo.Context) error {
	pg := pagination.FromContext(c)
	doctors, total, err := h.dir.ListDoctors(c.Request().Context(), pg.Limit, pg.Offset)
	if err != nil {
		return apperr.HTTPError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(doctors, total, pg))
}

func (h *Handler) GetDoctor(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	doc, err := h.dir.GetDoctor(c.Request().Context(), id)
	if err != nil {
		return apperr.HTTPError(err)
	}
	return c.JSON(http.StatusOK, doc.Summary())
}

// Me reports how the caller's token resolves: role plus owned profile ids.
func (h *Handler) Me(c echo.Context) error {
	p, _ := auth.PrincipalFromContext(c.Request().Context())
	actor, err := h.dir.ResolveActor(c.Request().Context(), p)
	if err != nil {
		return apperr.HTTPError(err)
	}
	return c.JSON(http.StatusOK, actor)
}

type createDoctorRequest struct {
	UserID          string  `json:"user_id"`
	FirstName       string  `json:"first_name"`
	LastName        string  `json:"last_name"`
	Specialization  string  `json:"specialization"`
	LicenseNumber   string  `json:"license_number"`
	ExperienceYears int     `json:"experience_years"`
	ConsultationFee float64 `json:"consultation_fee"`
	IsAvailable     *bool   `json:"is_available"`
}

func (h *Handler) CreateDoctor(c echo.Context) error {
	var req createDoctorRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	doc := &Doctor{
		UserID:          req.UserID,
		FirstName:       req.FirstName,
		LastName:        req.LastName,
		Specialization:  req.Specialization,
		LicenseNumber:   req.LicenseNumber,
		ExperienceYears: req.ExperienceYears,
		ConsultationFee: req.ConsultationFee,
		IsAvailable:     req.IsAvailable == nil || *req.IsAvailable,
	}
	if err := h.dir.CreateDoctor(c.Request().Context(), doc); err != nil {
		return apperr.HTTPError(err)
	}
	return c.JSON(http.StatusCreated, doc)
}

func (h *Handler) CreatePatient(c echo.Context) error {
	var p Patient
	if err := c.Bind(&p); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.dir.CreatePatient(c.Request().Context(), &p); err != nil {
		return apperr.HTTPError(err)
	}
	return c.JSON(http.StatusCreated, p)
}

func (h *Handler) GetPatient(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	p, err := h.dir.GetPatient(c.Request().Context(), id)
	if err != nil {
		return apperr.HTTPError(err)
	}
	return c.JSON(http.StatusOK, p)
}
