package vitals

import (
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/cuidasalud/cuidasalud/internal/platform/auth"
	"github.com/cuidasalud/cuidasalud/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	staff := api.Group("", auth.RequireRole("admin", "physician", "nurse"))
	staff.POST("/measurements", h.CreateMeasurement)
	staff.GET("/measurements", h.ListMeasurements)
	staff.GET("/measurements/:id", h.GetMeasurement)
	staff.POST("/measurements/:id/details", h.AddDetail)
	staff.POST("/measurements/:id/claim", h.ClaimAlert)
	staff.POST("/measurements/:id/state", h.SetAlertState)

	staff.GET("/alerts", h.ListAlerts)
	staff.GET("/alerts/caregiver/:id", h.ListCaregiverAlerts)

	staff.GET("/patients/:id/ranges", h.ListRanges)
	staff.POST("/patients/:id/ranges", h.CreateRange)
}

func (h *Handler) CreateMeasurement(c echo.Context) error {
	var in MeasurementInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	m, err := h.svc.CreateMeasurement(c.Request().Context(), &in)
	if err != nil {
		return alertError(err)
	}
	return c.JSON(http.StatusCreated, m)
}

func (h *Handler) GetMeasurement(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	m, err := h.svc.GetMeasurement(c.Request().Context(), id)
	if err != nil {
		return alertError(err)
	}
	return c.JSON(http.StatusOK, m)
}

func (h *Handler) ListMeasurements(c echo.Context) error {
	pg := pagination.FromContext(c)

	var patientID *uuid.UUID
	if raw := c.QueryParam("patient_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid patient_id")
		}
		patientID = &id
	}

	ms, total, err := h.svc.ListMeasurements(c.Request().Context(), patientID, pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(ms, total, pg.Limit, pg.Offset))
}

func (h *Handler) AddDetail(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var in DetailInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	d, err := h.svc.EvaluateDetail(c.Request().Context(), id, &in)
	if err != nil {
		return alertError(err)
	}
	return c.JSON(http.StatusCreated, d)
}

func (h *Handler) ClaimAlert(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	staffID := auth.UserIDFromContext(c.Request().Context())
	if staffID == "" {
		return echo.NewHTTPError(http.StatusUnauthorized, "no authenticated user")
	}
	m, err := h.svc.Claim(c.Request().Context(), id, staffID)
	if err != nil {
		return alertError(err)
	}
	return c.JSON(http.StatusOK, m)
}

type stateRequest struct {
	State AlertState `json:"state"`
}

func (h *Handler) SetAlertState(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var req stateRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	m, err := h.svc.SetTerminal(c.Request().Context(), id, req.State)
	if err != nil {
		return alertError(err)
	}
	return c.JSON(http.StatusOK, m)
}

func (h *Handler) ListAlerts(c echo.Context) error {
	pg := pagination.FromContext(c)

	var f AlertFilter
	if raw := c.QueryParam("patient_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid patient_id")
		}
		f.PatientID = &id
	}
	if raw := c.QueryParam("state"); raw != "" {
		st := AlertState(raw)
		switch st {
		case StateNew, StateInProgress, StateResolved, StateIgnored:
			f.State = &st
		default:
			return echo.NewHTTPError(http.StatusBadRequest, "invalid state")
		}
	}
	if raw := c.QueryParam("claimed_by"); raw != "" {
		f.ClaimedBy = &raw
	}
	f.ActiveOnly = c.QueryParam("active") == "true"

	ms, total, err := h.svc.ListAlerts(c.Request().Context(), f, pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(ms, total, pg.Limit, pg.Offset))
}

func (h *Handler) ListCaregiverAlerts(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	activeOnly := c.QueryParam("active") != "false"
	ms, err := h.svc.ListAlertsForCaregiver(c.Request().Context(), id, activeOnly)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, ms)
}

type rangeRequest struct {
	ParameterID   uuid.UUID  `json:"parameter_id"`
	MinNormal     float64    `json:"min_normal"`
	MaxNormal     float64    `json:"max_normal"`
	MinCritico    *float64   `json:"min_critico,omitempty"`
	MaxCritico    *float64   `json:"max_critico,omitempty"`
	VigenciaDesde *time.Time `json:"vigencia_desde,omitempty"`
}

func (h *Handler) CreateRange(c echo.Context) error {
	patientID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var req rangeRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	pr := &PatientRange{
		PatientID:   patientID,
		ParameterID: req.ParameterID,
		MinNormal:   req.MinNormal,
		MaxNormal:   req.MaxNormal,
		MinCritico:  req.MinCritico,
		MaxCritico:  req.MaxCritico,
		DefinedBy:   auth.UserIDFromContext(c.Request().Context()),
	}
	if req.VigenciaDesde != nil {
		pr.VigenciaDesde = *req.VigenciaDesde
	} else {
		pr.VigenciaDesde = time.Now().UTC()
	}

	if err := h.svc.CreateRange(c.Request().Context(), pr); err != nil {
		return alertError(err)
	}
	return c.JSON(http.StatusCreated, pr)
}

func (h *Handler) ListRanges(c echo.Context) error {
	patientID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	ranges, err := h.svc.ListRanges(c.Request().Context(), patientID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, ranges)
}

// alertError maps domain sentinels to HTTP status codes.
func alertError(err error) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, ErrNoAlert),
		errors.Is(err, ErrAlreadyTerminal),
		errors.Is(err, ErrClaimConflict):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, ErrInvalidTarget), errors.Is(err, ErrConfig):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	default:
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
}
