package matching

import (
	"context"
	"testing"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/clover/pkg/models"
)

var t0 = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

type fakeStore map[string][]*models.Submission

func (f fakeStore) AllOfKind(identityKey string, kind models.Kind) []*models.Submission {
	out := []*models.Submission{}
	for _, s := range f[identityKey] {
		if s.Kind == kind {
			out = append(out, s)
		}
	}
	return out
}

func newTestMatcher(t *testing.T, store Store, cfg Config) *Matcher {
	t.Helper()
	m, err := NewMatcher(store, cfg, ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {}))
	require.NoError(t, err)
	m.now = func() time.Time { return t0 }
	return m
}

func boolPtr(b bool) *bool { return &b }

func factFind(email string, at time.Time) *models.Submission {
	return &models.Submission{ID: "ff-" + email, Kind: models.KindFactFind, IdentityKey: email, SubmittedAt: at, Fields: models.Fields{}}
}

func automation(email string, at time.Time) *models.Submission {
	return &models.Submission{ID: "af-" + email, Kind: models.KindAutomation, IdentityKey: email, SubmittedAt: at, Fields: models.Fields{}}
}

func TestEvaluateIdentityGate(t *testing.T) {
	m := newTestMatcher(t, fakeStore{}, DefaultConfig())

	ff := factFind("dan@x.nz", t0)
	ff.CaseID = "27236"
	ff.IsCouple = boolPtr(true)
	ff.ExistingCover = map[string]float64{"main.life": 500000}

	af := automation("dan@y.nz", t0)
	af.IsCouple = boolPtr(true)
	af.ExistingCover = map[string]float64{"main.life": 500000}

	result := m.Evaluate(models.Pair{FactFind: ff, Automation: af})

	assert.Equal(t, 0.0, result.Confidence)
	assert.False(t, result.Confident)
	require.Len(t, result.Reasons, 1)
	assert.Contains(t, result.Reasons[0], "Email mismatch: dan@x.nz vs dan@y.nz")
	assert.Contains(t, result.Reasons[0], "near miss")
}

func TestEvaluateIdentityMismatchFarApart(t *testing.T) {
	m := newTestMatcher(t, fakeStore{}, DefaultConfig())
	result := m.Evaluate(models.Pair{FactFind: factFind("a@x.nz", t0), Automation: automation("zebra@other.com", t0)})

	require.Len(t, result.Reasons, 1)
	assert.Equal(t, "Email mismatch: a@x.nz vs zebra@other.com", result.Reasons[0])
}

func TestEvaluateCaseInsensitiveIdentity(t *testing.T) {
	m := newTestMatcher(t, fakeStore{}, DefaultConfig())

	ff := factFind("a@x.nz", t0)
	ff.CaseID = "1"
	ff.IsCouple = boolPtr(false)
	af := automation("A@X.NZ", t0.Add(24*time.Hour))
	af.IsCouple = boolPtr(false)

	result := m.Evaluate(models.Pair{FactFind: ff, Automation: af})

	assert.Equal(t, "Email match: a@x.nz", result.Reasons[0])
	// identity, couple, case id, timing; no comparable amounts
	assert.InDelta(t, 0.9, result.Confidence, 1e-9)
	assert.True(t, result.Confident)
	assert.Len(t, result.Reasons, 5)
	assert.Equal(t, "No comparable insurance amounts: no match bonus", result.Reasons[4])
}

func TestEvaluateSignals(t *testing.T) {
	tests := []struct {
		name       string
		ffCouple   *bool
		afCouple   *bool
		caseID     string
		gap        time.Duration
		ffCover    map[string]float64
		afCover    map[string]float64
		want       float64
		wantReason string
	}{
		{
			name:       "everything agrees",
			ffCouple:   boolPtr(true),
			afCouple:   boolPtr(true),
			caseID:     "27236",
			gap:        24 * time.Hour,
			ffCover:    map[string]float64{"main.life": 500000},
			afCover:    map[string]float64{"main.life": 510000},
			want:       1.0,
			wantReason: "Insurance amounts consistent (1 compared)",
		},
		{
			name:       "couple status disagrees",
			ffCouple:   boolPtr(true),
			afCouple:   boolPtr(false),
			caseID:     "27236",
			gap:        24 * time.Hour,
			want:       0.7,
			wantReason: "Couple status disagrees: fact find says couple, automation form says single",
		},
		{
			name:       "couple status unknown on one side",
			ffCouple:   nil,
			afCouple:   boolPtr(true),
			gap:        24 * time.Hour,
			want:       0.7,
			wantReason: "Couple status unknown on fact find: half bonus",
		},
		{
			name:       "couple status unknown on both",
			gap:        24 * time.Hour,
			want:       0.7,
			wantReason: "Couple status unknown on both forms: half bonus",
		},
		{
			name:       "half timing",
			ffCouple:   boolPtr(false),
			afCouple:   boolPtr(false),
			gap:        10 * 24 * time.Hour,
			want:       0.75,
			wantReason: "Forms submitted 10.0 days apart: half timing bonus",
		},
		{
			name:       "beyond timing window",
			ffCouple:   boolPtr(false),
			afCouple:   boolPtr(false),
			caseID:     "1",
			gap:        40 * 24 * time.Hour,
			want:       0.8,
			wantReason: "Forms submitted 40.0 days apart: beyond 30 day window (concerning)",
		},
		{
			name:       "amounts differ",
			ffCouple:   boolPtr(false),
			afCouple:   boolPtr(false),
			gap:        time.Hour,
			ffCover:    map[string]float64{"main.life": 500000, "main.trauma": 100000},
			afCover:    map[string]float64{"main.life": 500000, "main.trauma": 60000},
			want:       0.8,
			wantReason: "Insurance amounts differ by 40%: no match bonus",
		},
		{
			name:       "no case id",
			ffCouple:   boolPtr(false),
			afCouple:   boolPtr(false),
			gap:        time.Hour,
			want:       0.8,
			wantReason: "No case ID on fact find: no bonus",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newTestMatcher(t, fakeStore{}, DefaultConfig())

			ff := factFind("dan@x.nz", t0)
			ff.IsCouple = tt.ffCouple
			ff.CaseID = tt.caseID
			ff.ExistingCover = tt.ffCover
			af := automation("dan@x.nz", t0.Add(tt.gap))
			af.IsCouple = tt.afCouple
			af.ExistingCover = tt.afCover

			result := m.Evaluate(models.Pair{FactFind: ff, Automation: af})

			assert.InDelta(t, tt.want, result.Confidence, 1e-9)
			assert.Contains(t, result.Reasons, tt.wantReason)
			assert.Len(t, result.Reasons, 5)
			assert.Len(t, result.Signals, 5)
		})
	}
}

func TestThresholdBoundary(t *testing.T) {
	tests := []struct {
		name          string
		caseWeight    float64
		wantConfident bool
	}{
		{"exactly at threshold", 0.1, true},
		{"just under threshold", 0.0999, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.Weights = []Weight{
				{Signal: SignalIdentity, Weight: 0.5},
				{Signal: SignalCoupleStatus, Weight: 0},
				{Signal: SignalCaseID, Weight: tt.caseWeight},
				{Signal: SignalTiming, Weight: 0},
				{Signal: SignalInsuranceAmounts, Weight: 0},
			}
			m := newTestMatcher(t, fakeStore{}, cfg)

			ff := factFind("a@x.nz", t0)
			ff.CaseID = "9"
			result := m.Evaluate(models.Pair{FactFind: ff, Automation: automation("a@x.nz", t0)})

			assert.InDelta(t, 0.5+tt.caseWeight, result.Confidence, 1e-9)
			assert.Equal(t, tt.wantConfident, result.Confident)
			// zero weighted signals are skipped entirely
			assert.Len(t, result.Reasons, 2)
		})
	}
}

func TestTimingDecay(t *testing.T) {
	m := newTestMatcher(t, fakeStore{}, DefaultConfig())

	score := func(gap time.Duration) float64 {
		ff := factFind("a@x.nz", t0)
		ff.IsCouple = boolPtr(true)
		af := automation("a@x.nz", t0.Add(gap))
		af.IsCouple = boolPtr(true)
		return m.Evaluate(models.Pair{FactFind: ff, Automation: af}).Confidence
	}

	assert.Greater(t, score(5*24*time.Hour), score(35*24*time.Hour))
}

func TestFindCandidate(t *testing.T) {
	ff := factFind("dan@x.nz", t0)
	ff.CaseID = "27236"
	store := fakeStore{"dan@x.nz": {ff}}
	m := newTestMatcher(t, store, DefaultConfig())

	af := automation("dan@x.nz", t0.Add(24*time.Hour))
	first := m.FindCandidate(context.Background(), af)
	require.NotNil(t, first)
	assert.Same(t, ff, first.FactFind)
	assert.Same(t, af, first.AutomationForm)

	// repeated evaluation of an unchanged pair is stable
	for i := 0; i < 5; i++ {
		again := m.FindCandidate(context.Background(), af)
		assert.Equal(t, first.Confidence, again.Confidence)
		assert.Equal(t, first.Reasons, again.Reasons)
	}
}

func TestFindCandidateWaiting(t *testing.T) {
	m := newTestMatcher(t, fakeStore{}, DefaultConfig())
	assert.Nil(t, m.FindCandidate(context.Background(), factFind("solo@x.nz", t0)))
	assert.Nil(t, m.FindCandidate(context.Background(), nil))
}

func TestSelectCandidate(t *testing.T) {
	older := automation("a@x.nz", t0)
	newer := automation("a@x.nz", t0.Add(time.Hour))
	tiedLater := automation("a@x.nz", t0.Add(time.Hour))

	assert.Nil(t, SelectCandidate(nil))
	assert.Same(t, newer, SelectCandidate([]*models.Submission{older, newer}))
	assert.Same(t, newer, SelectCandidate([]*models.Submission{newer, older}))
	assert.Same(t, tiedLater, SelectCandidate([]*models.Submission{older, newer, tiedLater}))
}

func TestConfigValidate(t *testing.T) {
	assert.NoError(t, DefaultConfig().Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"threshold above one", func(c *Config) { c.Threshold = 1.5 }},
		{"identity not first", func(c *Config) { c.Weights[0], c.Weights[1] = c.Weights[1], c.Weights[0] }},
		{"unknown signal", func(c *Config) { c.Weights = append(c.Weights, Weight{Signal: "postcode", Weight: 0.1}) }},
		{"duplicate signal", func(c *Config) { c.Weights = append(c.Weights, Weight{Signal: SignalTiming, Weight: 0.1}) }},
		{"negative weight", func(c *Config) { c.Weights[2].Weight = -0.1 }},
		{"windows inverted", func(c *Config) { c.PartialTimingWindow = time.Hour }},
		{"negative tolerance", func(c *Config) { c.AmountTolerance = -1 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())

			_, err := NewMatcher(fakeStore{}, cfg, ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {}))
			assert.Error(t, err)
		})
	}
}
