package status

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/labstack/echo/v4"

	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/orchestrator"
	"github.com/Ramsey-B/clover/pkg/utils"
)

// Service is the slice of the orchestrator the operator endpoints read from.
type Service interface {
	Statistics() models.Statistics
	Explanation(identityKey string) (models.Explanation, bool)
	Explanations() []models.Explanation
	Retrigger(ctx context.Context, identityKey string, force bool) (models.Summary, error)
}

// DeliveryInfo describes how reports leave the service.
type DeliveryInfo struct {
	Enabled           bool    `json:"enabled"`
	WebhookConfigured bool    `json:"webhook_configured"`
	Threshold         float64 `json:"confidence_threshold"`
}

type Handler struct {
	svc       Service
	delivery  DeliveryInfo
	version   string
	startTime time.Time
}

func NewHandler(svc Service, delivery DeliveryInfo, version string) *Handler {
	return &Handler{
		svc:       svc,
		delivery:  delivery,
		version:   version,
		startTime: time.Now(),
	}
}

// Register mounts the routes. The operator middleware guards every route that exposes
// or acts on a single client; /status only reports counts and stays open.
func (h *Handler) Register(g *echo.Group, operator ...echo.MiddlewareFunc) {
	g.GET("/status", h.Status)
	g.GET("/matches", h.ListMatches, operator...)
	g.GET("/matches/:email", h.GetMatch, operator...)
	g.POST("/matches/:email/retrigger", h.Retrigger, operator...)
}

type StatusResponse struct {
	Status     string            `json:"status"`
	Version    string            `json:"version"`
	Uptime     string            `json:"uptime"`
	Statistics models.Statistics `json:"statistics"`
	Delivery   DeliveryInfo      `json:"delivery"`
}

func (h *Handler) Status(c echo.Context) error {
	return c.JSON(http.StatusOK, StatusResponse{
		Status:     "running",
		Version:    h.version,
		Uptime:     time.Since(h.startTime).Round(time.Second).String(),
		Statistics: h.svc.Statistics(),
		Delivery:   h.delivery,
	})
}

type MatchListResponse struct {
	Matches []models.Explanation `json:"matches"`
	Count   int                  `json:"count"`
}

func (h *Handler) ListMatches(c echo.Context) error {
	matches := h.svc.Explanations()
	if matches == nil {
		matches = []models.Explanation{}
	}
	return c.JSON(http.StatusOK, MatchListResponse{Matches: matches, Count: len(matches)})
}

type MatchRequest struct {
	Email string `param:"email" validate:"required"`
}

func (h *Handler) GetMatch(c echo.Context) error {
	req, err := utils.BindRequest[MatchRequest](c)
	if err != nil {
		return err
	}

	explanation, ok := h.svc.Explanation(req.Email)
	if !ok {
		return httperror.NewHTTPError(http.StatusNotFound, "no match result for "+req.Email)
	}
	return c.JSON(http.StatusOK, explanation)
}

type RetriggerRequest struct {
	Email string `param:"email" validate:"required"`
}

// Retrigger re-runs matching for an identity. Delivery is forced unless ?force=false is passed.
func (h *Handler) Retrigger(c echo.Context) error {
	req, err := utils.BindRequest[RetriggerRequest](c)
	if err != nil {
		return err
	}

	force := true
	if raw := c.QueryParam("force"); raw != "" {
		force, err = strconv.ParseBool(raw)
		if err != nil {
			return httperror.NewHTTPError(http.StatusBadRequest, "force must be a boolean")
		}
	}

	summary, err := h.svc.Retrigger(c.Request().Context(), req.Email, force)
	if err != nil {
		if errors.Is(err, orchestrator.ErrUnknownIdentity) {
			return httperror.NewHTTPError(http.StatusNotFound, "no submissions stored for "+req.Email)
		}
		if httperror.IsHTTPError(err) {
			return err
		}
		return httperror.WrapError(http.StatusInternalServerError, err)
	}
	return c.JSON(http.StatusOK, summary)
}
