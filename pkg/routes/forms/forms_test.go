package forms

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/Gobusters/ectologger"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/clover/pkg/middleware"
	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/orchestrator"
	"github.com/Ramsey-B/clover/pkg/reqctx"
)

type fakeReceiver struct {
	kind   models.Kind
	raw    map[string]any
	source string
	err    error
}

func (f *fakeReceiver) Receive(ctx context.Context, kind models.Kind, raw map[string]any) (models.Summary, error) {
	f.kind = kind
	f.raw = raw
	f.source = reqctx.GetSource(ctx)
	if f.err != nil {
		return models.Summary{}, f.err
	}
	return models.Summary{Status: models.SummaryStatusWaiting, IdentityKey: "dan@x.nz"}, nil
}

func newServer(r Receiver) *echo.Echo {
	e := echo.New()
	e.HTTPErrorHandler = middleware.Error(ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {}))
	e.Use(middleware.Context())
	NewHandler(r).Register(e.Group(""))
	return e
}

func TestReceiveRoutes(t *testing.T) {
	tests := []struct {
		path string
		kind models.Kind
	}{
		{"/ff", models.KindFactFind},
		{"/webhook/fact-find", models.KindFactFind},
		{"/automation", models.KindAutomation},
		{"/webhook/automation-form", models.KindAutomation},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			recv := &fakeReceiver{}
			e := newServer(recv)

			req := httptest.NewRequest(http.MethodPost, tt.path, strings.NewReader(`{"219":"dan@x.nz","380":0}`))
			req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
			req.Header.Set(middleware.HeaderFormSource, "gravity-forms")
			rec := httptest.NewRecorder()
			e.ServeHTTP(rec, req)

			require.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, tt.kind, recv.kind)
			assert.Equal(t, map[string]any{"219": "dan@x.nz", "380": 0.0}, recv.raw)
			assert.Equal(t, "gravity-forms", recv.source)

			var summary models.Summary
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &summary))
			assert.Equal(t, models.SummaryStatusWaiting, summary.Status)
		})
	}
}

func TestReceiveFormEncoded(t *testing.T) {
	recv := &fakeReceiver{}
	e := newServer(recv)

	body := url.Values{"3": {"dan@x.nz"}, "39": {"Couple"}}.Encode()
	req := httptest.NewRequest(http.MethodPost, "/automation", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationForm)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, map[string]any{"3": "dan@x.nz", "39": "Couple"}, recv.raw)
	assert.Equal(t, middleware.SourceWebhook, recv.source)
}

func TestReceiveErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
		err  error
		code int
	}{
		{name: "empty body", body: "", code: http.StatusBadRequest},
		{name: "not an object", body: `[1,2]`, code: http.StatusBadRequest},
		{name: "null", body: `null`, code: http.StatusBadRequest},
		{name: "rejected", body: `{}`, err: fmt.Errorf("%w: missing email", orchestrator.ErrRejectedSubmission), code: http.StatusBadRequest},
		{name: "storage failure", body: `{}`, err: errors.New("archive down"), code: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newServer(&fakeReceiver{err: tt.err})

			req := httptest.NewRequest(http.MethodPost, "/ff", strings.NewReader(tt.body))
			req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
			rec := httptest.NewRecorder()
			e.ServeHTTP(rec, req)

			assert.Equal(t, tt.code, rec.Code)
			var resp middleware.ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.NotEmpty(t, resp.RequestID)
		})
	}
}
