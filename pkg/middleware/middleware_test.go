package middleware

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/clover/pkg/reqctx"
)

func noopLogger() ectologger.Logger {
	return ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
}

func TestContext(t *testing.T) {
	tests := []struct {
		name          string
		headers       map[string]string
		wantRequestID string
		wantSource    string
	}{
		{
			name:       "generates request id and defaults source",
			wantSource: SourceWebhook,
		},
		{
			name: "keeps caller values",
			headers: map[string]string{
				echo.HeaderXRequestID: "req-42",
				HeaderFormSource:      "gravity-forms",
			},
			wantRequestID: "req-42",
			wantSource:    "gravity-forms",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := echo.New()
			e.Use(Context())

			var gotRequestID, gotSource, gotMethod, gotRoute string
			e.POST("/ff", func(c echo.Context) error {
				ctx := c.Request().Context()
				gotRequestID = reqctx.GetRequestID(ctx)
				gotSource = reqctx.GetSource(ctx)
				gotMethod = reqctx.GetMethod(ctx)
				gotRoute = reqctx.GetRoute(ctx)
				return c.NoContent(http.StatusOK)
			})

			req := httptest.NewRequest(http.MethodPost, "/ff", nil)
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			rec := httptest.NewRecorder()
			e.ServeHTTP(rec, req)

			require.Equal(t, http.StatusOK, rec.Code)
			assert.NotEmpty(t, gotRequestID)
			if tt.wantRequestID != "" {
				assert.Equal(t, tt.wantRequestID, gotRequestID)
			}
			assert.Equal(t, gotRequestID, rec.Header().Get(echo.HeaderXRequestID))
			assert.Equal(t, tt.wantSource, gotSource)
			assert.Equal(t, http.MethodPost, gotMethod)
			assert.Equal(t, "/ff", gotRoute)
		})
	}
}

func TestError(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		wantCode    int
		wantMessage string
	}{
		{
			name:        "plain error",
			err:         errors.New("boom"),
			wantCode:    http.StatusInternalServerError,
			wantMessage: "Internal Server Error",
		},
		{
			name:        "echo error",
			err:         echo.NewHTTPError(http.StatusNotFound, "no such route"),
			wantCode:    http.StatusNotFound,
			wantMessage: "no such route",
		},
		{
			name:        "http error",
			err:         httperror.NewHTTPError(http.StatusBadRequest, "missing email"),
			wantCode:    http.StatusBadRequest,
			wantMessage: "missing email",
		},
		{
			name:        "wrapped http error",
			err:         fmt.Errorf("receive: %w", httperror.NewHTTPError(http.StatusNotFound, "no match for identity")),
			wantCode:    http.StatusNotFound,
			wantMessage: "no match for identity",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := echo.New()
			e.HTTPErrorHandler = Error(noopLogger())
			e.Use(Context())
			e.GET("/fail", func(c echo.Context) error { return tt.err })

			req := httptest.NewRequest(http.MethodGet, "/fail", nil)
			req.Header.Set(echo.HeaderXRequestID, "req-7")
			rec := httptest.NewRecorder()
			e.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantCode, rec.Code)

			var body ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tt.wantMessage, body.Message)
			assert.Equal(t, "req-7", body.RequestID)
		})
	}
}

func TestLogger(t *testing.T) {
	var (
		mu       sync.Mutex
		messages []ectologger.EctoLogMessage
	)
	logger := ectologger.NewEctoLogger(func(msg ectologger.EctoLogMessage) {
		mu.Lock()
		defer mu.Unlock()
		messages = append(messages, msg)
	})

	e := echo.New()
	e.HTTPErrorHandler = Error(noopLogger())
	e.Use(Context())
	e.Use(Logger(logger))
	e.POST("/automation", func(c echo.Context) error {
		return c.NoContent(http.StatusAccepted)
	})
	e.POST("/ff", func(c echo.Context) error {
		return httperror.NewHTTPError(http.StatusBadRequest, "rejected")
	})

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/automation", nil))
	assert.Equal(t, http.StatusAccepted, rec.Code)

	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/ff", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, messages, 2)
	assert.Equal(t, "Request", messages[0].Message)
	assert.Equal(t, http.StatusAccepted, messages[0].Fields["status"])
	assert.Equal(t, "/automation", messages[0].Fields["route"])
	assert.Equal(t, SourceWebhook, messages[0].Fields["source"])
	assert.Equal(t, http.StatusBadRequest, messages[1].Fields["status"])
}
