package middleware

import (
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/Ramsey-B/clover/pkg/reqctx"
)

const (
	// HeaderFormSource identifies the relay that posted a form, e.g. "gravity-forms"
	HeaderFormSource = "X-Form-Source"
	// SourceWebhook is the source recorded when no header is sent
	SourceWebhook = "webhook"
)

func Context() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) (err error) {
			req := c.Request()

			requestID := req.Header.Get(echo.HeaderXRequestID)
			if requestID == "" {
				requestID = uuid.New().String()
			}
			c.Response().Header().Set(echo.HeaderXRequestID, requestID)

			source := req.Header.Get(HeaderFormSource)
			if source == "" {
				source = SourceWebhook
			}

			ctx := req.Context()
			ctx = reqctx.SetRequestID(ctx, requestID)
			ctx = reqctx.SetMethod(ctx, req.Method)
			ctx = reqctx.SetRoute(ctx, req.URL.Path)
			ctx = reqctx.SetRemoteIP(ctx, c.RealIP())
			ctx = reqctx.SetReferer(ctx, req.Referer())
			ctx = reqctx.SetSource(ctx, source)

			c.SetRequest(req.WithContext(ctx))

			return next(c)
		}
	}
}
