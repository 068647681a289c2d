package deliveries

import (
	"context"
	"errors"
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/labstack/echo/v4"

	"github.com/Ramsey-B/clover/pkg/normalizers"
	"github.com/Ramsey-B/clover/pkg/redis"
	"github.com/Ramsey-B/clover/pkg/utils"
)

const defaultLimit = 100

// DeadLetterReader lists failed deliveries.
type DeadLetterReader interface {
	List(ctx context.Context, count int64) ([]redis.DLQEntry, error)
	ListByIdentity(ctx context.Context, identityKey string, count int64) ([]redis.DLQEntry, error)
	Count(ctx context.Context) (int64, error)
	Delete(ctx context.Context, messageID string) error
}

type Handler struct {
	dlq DeadLetterReader
}

// NewHandler creates the failed delivery handler. A nil reader reports the queue as disabled.
func NewHandler(dlq DeadLetterReader) *Handler {
	return &Handler{dlq: dlq}
}

func (h *Handler) Register(g *echo.Group, operator ...echo.MiddlewareFunc) {
	g.GET("/deliveries/failed", h.ListFailed, operator...)
	g.DELETE("/deliveries/failed/:id", h.DeleteFailed, operator...)
}

type ListFailedRequest struct {
	Email string `query:"email" validate:"omitempty,email"`
	Limit int64  `query:"limit" validate:"omitempty,min=1,max=1000"`
}

type ListFailedResponse struct {
	Enabled bool             `json:"enabled"`
	Total   int64            `json:"total"`
	Entries []redis.DLQEntry `json:"entries"`
}

func (h *Handler) ListFailed(c echo.Context) error {
	req, err := utils.BindRequest[ListFailedRequest](c)
	if err != nil {
		return err
	}

	if h.dlq == nil {
		return c.JSON(http.StatusOK, ListFailedResponse{Entries: []redis.DLQEntry{}})
	}

	limit := req.Limit
	if limit == 0 {
		limit = defaultLimit
	}

	ctx := c.Request().Context()
	var entries []redis.DLQEntry
	if req.Email != "" {
		entries, err = h.dlq.ListByIdentity(ctx, normalizers.NormalizeEmail(req.Email), limit)
	} else {
		entries, err = h.dlq.List(ctx, limit)
	}
	if err != nil {
		return httperror.NewHTTPError(http.StatusBadGateway, "failed to read dead letter queue")
	}

	total, err := h.dlq.Count(ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusBadGateway, "failed to read dead letter queue")
	}

	if entries == nil {
		entries = []redis.DLQEntry{}
	}
	return c.JSON(http.StatusOK, ListFailedResponse{Enabled: true, Total: total, Entries: entries})
}

type DeleteFailedRequest struct {
	ID string `param:"id" validate:"required"`
}

// DeleteFailed drops an entry once an operator has dealt with it.
func (h *Handler) DeleteFailed(c echo.Context) error {
	req, err := utils.BindRequest[DeleteFailedRequest](c)
	if err != nil {
		return err
	}

	if h.dlq == nil {
		return httperror.NewHTTPError(http.StatusNotFound, "dead letter queue is not configured")
	}

	if err := h.dlq.Delete(c.Request().Context(), req.ID); err != nil {
		if errors.Is(err, redis.ErrEntryNotFound) {
			return httperror.NewHTTPError(http.StatusNotFound, err.Error())
		}
		return httperror.NewHTTPError(http.StatusBadGateway, "failed to delete dead letter entry")
	}
	return c.NoContent(http.StatusNoContent)
}
