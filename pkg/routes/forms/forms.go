package forms

import (
	"context"
	"errors"
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/labstack/echo/v4"

	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/orchestrator"
	"github.com/Ramsey-B/clover/pkg/reqctx"
	"github.com/Ramsey-B/clover/pkg/utils"
)

// Receiver accepts a raw form submission of one kind.
type Receiver interface {
	Receive(ctx context.Context, kind models.Kind, raw map[string]any) (models.Summary, error)
}

type Handler struct {
	receiver Receiver
}

func NewHandler(receiver Receiver) *Handler {
	return &Handler{receiver: receiver}
}

// Register mounts the intake endpoints. The /webhook paths are the names the form relays post to.
func (h *Handler) Register(g *echo.Group) {
	g.POST("/ff", h.FactFind)
	g.POST("/webhook/fact-find", h.FactFind)
	g.POST("/automation", h.Automation)
	g.POST("/webhook/automation-form", h.Automation)
}

func (h *Handler) FactFind(c echo.Context) error {
	return h.receive(c, models.KindFactFind)
}

func (h *Handler) Automation(c echo.Context) error {
	return h.receive(c, models.KindAutomation)
}

func (h *Handler) receive(c echo.Context, kind models.Kind) error {
	fields, err := utils.BindFields(c)
	if err != nil {
		return err
	}

	ctx := reqctx.SetFormKind(c.Request().Context(), string(kind))
	summary, err := h.receiver.Receive(ctx, kind, fields)
	if err != nil {
		if errors.Is(err, orchestrator.ErrRejectedSubmission) {
			return httperror.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		if httperror.IsHTTPError(err) {
			return err
		}
		return httperror.WrapError(http.StatusInternalServerError, err)
	}

	return c.JSON(http.StatusOK, summary)
}
