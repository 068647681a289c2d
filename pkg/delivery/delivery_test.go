package delivery

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/clover/pkg/httpclient"
	"github.com/Ramsey-B/clover/pkg/models"
)

func testLogger() ectologger.Logger {
	return ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
}

func testReport() *models.Report {
	record := &models.MergedRecord{
		IdentityKey:      "dan@x.nz",
		CaseID:           "27236",
		Fields:           models.Fields{"144": "Dan", "145": "Brown"},
		FactFindID:       "ff-1",
		AutomationFormID: "af-1",
		IsCouple:         true,
	}
	result := &models.MatchResult{Confidence: 0.9, Reasons: []string{"Email match: dan@x.nz", "Case ID present: 27236"}}
	generated := map[string]models.Section{
		"scope_of_advice": {
			ID:                   "scope_of_advice",
			RecommendationStatus: "coverage_needed",
			Data: map[string]any{
				"products_in_scope": []string{"Life Insurance", "Trauma Cover"},
				"sections":          map[string]any{"limitations": "none"},
			},
		},
	}
	return BuildReport(record, result, generated)
}

func newSender(cfg SenderConfig) *WebhookSender {
	s := NewWebhookSender(cfg, httpclient.NewClient(httpclient.DefaultConfig(), testLogger()), testLogger())
	s.sleep = func(ctx context.Context, d time.Duration) error { return ctx.Err() }
	return s
}

func TestBuildReport(t *testing.T) {
	report := testReport()

	assert.NotEmpty(t, report.ReportID)
	assert.Equal(t, "dan@x.nz", report.IdentityKey)
	assert.Equal(t, "Dan Brown", report.ClientName)
	assert.Equal(t, "27236", report.CaseID)
	assert.True(t, report.IsCouple)
	assert.Equal(t, 0.9, report.MatchConfidence)
	assert.Len(t, report.MatchReasons, 2)
	assert.False(t, report.GeneratedAt.IsZero())
}

func TestBuildReportWithoutResult(t *testing.T) {
	report := BuildReport(&models.MergedRecord{Fields: models.Fields{}}, nil, nil)
	assert.NotNil(t, report.Sections)
	assert.Empty(t, report.MatchReasons)
}

func TestPayload(t *testing.T) {
	payload := Payload(testReport())

	assert.Equal(t, "dan@x.nz", payload["client_email"])
	assert.Equal(t, "27236", payload["case_id"])
	assert.Equal(t, "Email match: dan@x.nz; Case ID present: 27236", payload["match_reasons"])
	assert.Equal(t, "Life Insurance, Trauma Cover", payload["scope_of_advice_products_in_scope"])
	assert.Equal(t, "none", payload["scope_of_advice_sections_limitations"])
	assert.Equal(t, "coverage_needed", payload["scope_of_advice_recommendation_status"])
	assert.Equal(t, PayloadVersion, payload["payload_version"])
}

func TestFlatten(t *testing.T) {
	out := Flatten(map[string]any{
		"a":      map[string]any{"b": map[string]any{"c": 1}},
		"list":   []any{"x", 2.0, true},
		"nested": []any{map[string]any{"k": "v"}},
		"people": []map[string]any{{"label": "Jane"}},
		"plain":  "value",
	}, "")

	assert.Equal(t, map[string]any{
		"a_b_c":  1,
		"list":   "x, 2, true",
		"nested": `[{"k":"v"}]`,
		"people": `[{"label":"Jane"}]`,
		"plain":  "value",
	}, out)
}

func TestSendSucceeds(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	outcome := newSender(SenderConfig{Enabled: true, WebhookURL: srv.URL, MaxAttempts: 3}).Send(context.Background(), testReport())

	assert.True(t, outcome.Attempted)
	assert.True(t, outcome.Delivered)
	assert.Equal(t, StatusDelivered, outcome.Status)
	assert.Equal(t, 1, outcome.Attempts)
	assert.Equal(t, "dan@x.nz", got["client_email"])
}

func TestSendRetriesThenSucceeds(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	outcome := newSender(SenderConfig{Enabled: true, WebhookURL: srv.URL, MaxAttempts: 3}).Send(context.Background(), testReport())

	assert.True(t, outcome.Delivered)
	assert.Equal(t, 3, outcome.Attempts)
	assert.Equal(t, http.StatusAccepted, outcome.StatusCode)
}

func TestSendExhaustsRetries(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	outcome := newSender(SenderConfig{Enabled: true, WebhookURL: srv.URL, MaxAttempts: 2}).Send(context.Background(), testReport())

	assert.True(t, outcome.Attempted)
	assert.False(t, outcome.Delivered)
	assert.Equal(t, StatusFailed, outcome.Status)
	assert.Equal(t, 2, outcome.Attempts)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
	assert.True(t, errors.Is(outcome.Err, ErrDeliveryFailed))
	assert.Contains(t, outcome.Message, "status 204")
}

func TestSendNotAttempted(t *testing.T) {
	tests := []struct {
		name   string
		config SenderConfig
		want   string
	}{
		{"disabled", SenderConfig{Enabled: false, WebhookURL: "http://example.invalid"}, StatusDisabled},
		{"no url", SenderConfig{Enabled: true}, StatusNotConfigured},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			outcome := newSender(tt.config).Send(context.Background(), testReport())
			assert.False(t, outcome.Attempted)
			assert.False(t, outcome.Delivered)
			assert.Equal(t, tt.want, outcome.Status)
		})
	}
}

func TestSenderConfigBudget(t *testing.T) {
	tests := []struct {
		name   string
		config SenderConfig
		want   time.Duration
	}{
		{"defaults", SenderConfig{}, httpclient.DefaultTimeout},
		{"single attempt", SenderConfig{Timeout: 10 * time.Second, MaxAttempts: 1, RetryDelay: time.Minute}, 10 * time.Second},
		{"retries with delay", SenderConfig{Timeout: 30 * time.Second, MaxAttempts: 3, RetryDelay: 5 * time.Second}, 100 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.config.Budget())
		})
	}
}

func TestSendGivesUpOnHungWebhook(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	start := time.Now()
	outcome := newSender(SenderConfig{Enabled: true, WebhookURL: srv.URL, Timeout: 50 * time.Millisecond, MaxAttempts: 2}).
		Send(context.Background(), testReport())

	assert.False(t, outcome.Delivered)
	assert.Equal(t, StatusFailed, outcome.Status)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestSleepContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Error(t, sleepContext(ctx, time.Hour))
	assert.NoError(t, sleepContext(context.Background(), time.Millisecond))
}
