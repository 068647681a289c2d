package status

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Gobusters/ectologger"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/clover/pkg/middleware"
	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/orchestrator"
)

type fakeService struct {
	explanations map[string]models.Explanation
	retriggerKey string
	force        bool
	err          error
}

func (f *fakeService) Statistics() models.Statistics {
	return models.Statistics{TotalIdentities: 2, TotalFactFinds: 2, TotalAutomationForms: 1}
}

func (f *fakeService) Explanation(identityKey string) (models.Explanation, bool) {
	e, ok := f.explanations[identityKey]
	return e, ok
}

func (f *fakeService) Explanations() []models.Explanation {
	var out []models.Explanation
	for _, e := range f.explanations {
		out = append(out, e)
	}
	return out
}

func (f *fakeService) Retrigger(_ context.Context, identityKey string, force bool) (models.Summary, error) {
	f.retriggerKey = identityKey
	f.force = force
	if f.err != nil {
		return models.Summary{}, f.err
	}
	return models.Summary{Status: models.SummaryStatusMatched, IdentityKey: identityKey, Matched: true, Delivered: true}, nil
}

func newServer(svc Service) *echo.Echo {
	e := echo.New()
	e.HTTPErrorHandler = middleware.Error(ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {}))
	NewHandler(svc, DeliveryInfo{Enabled: true, WebhookConfigured: true, Threshold: 0.6}, "test").Register(e.Group(""))
	return e
}

func do(e *echo.Echo, method, target string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(method, target, nil))
	return rec
}

func TestStatus(t *testing.T) {
	rec := do(newServer(&fakeService{}), http.MethodGet, "/status")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp StatusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "running", resp.Status)
	assert.Equal(t, "test", resp.Version)
	assert.Equal(t, 2, resp.Statistics.TotalIdentities)
	assert.True(t, resp.Delivery.WebhookConfigured)
	assert.InDelta(t, 0.6, resp.Delivery.Threshold, 1e-9)
}

func TestMatches(t *testing.T) {
	svc := &fakeService{explanations: map[string]models.Explanation{
		"a@x.nz": {IdentityKey: "a@x.nz", Confidence: 0.9, Confident: true, Reasons: []string{"Email match: a@x.nz"}},
	}}
	e := newServer(svc)

	t.Run("list", func(t *testing.T) {
		rec := do(e, http.MethodGet, "/matches")
		require.Equal(t, http.StatusOK, rec.Code)
		var resp MatchListResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, 1, resp.Count)
		assert.Equal(t, "a@x.nz", resp.Matches[0].IdentityKey)
	})

	t.Run("empty list", func(t *testing.T) {
		rec := do(newServer(&fakeService{}), http.MethodGet, "/matches")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"matches":[],"count":0}`, rec.Body.String())
	})

	t.Run("found", func(t *testing.T) {
		rec := do(e, http.MethodGet, "/matches/a@x.nz")
		require.Equal(t, http.StatusOK, rec.Code)
		var resp models.Explanation
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, []string{"Email match: a@x.nz"}, resp.Reasons)
	})

	t.Run("missing", func(t *testing.T) {
		rec := do(e, http.MethodGet, "/matches/nobody@x.nz")
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestRetrigger(t *testing.T) {
	tests := []struct {
		name      string
		target    string
		err       error
		code      int
		wantForce bool
	}{
		{name: "forced by default", target: "/matches/a@x.nz/retrigger", code: http.StatusOK, wantForce: true},
		{name: "unforced", target: "/matches/a@x.nz/retrigger?force=false", code: http.StatusOK, wantForce: false},
		{name: "bad force", target: "/matches/a@x.nz/retrigger?force=maybe", code: http.StatusBadRequest},
		{name: "unknown identity", target: "/matches/a@x.nz/retrigger", err: orchestrator.ErrUnknownIdentity, code: http.StatusNotFound, wantForce: true},
		{name: "failure", target: "/matches/a@x.nz/retrigger", err: errors.New("boom"), code: http.StatusInternalServerError, wantForce: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &fakeService{err: tt.err}
			rec := do(newServer(svc), http.MethodPost, tt.target)

			assert.Equal(t, tt.code, rec.Code)
			if tt.code == http.StatusBadRequest {
				assert.Empty(t, svc.retriggerKey)
				return
			}
			assert.Equal(t, "a@x.nz", svc.retriggerKey)
			assert.Equal(t, tt.wantForce, svc.force)
		})
	}
}
