// Package matching pairs fact finds with automation forms and scores how confident
// the pairing is.
package matching

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/tracing"
)

// confidencePrecision is the number of decimal places confidence is rounded to.
const confidencePrecision = 1e6

// Store is the read side of the record store the matcher needs.
type Store interface {
	AllOfKind(identityKey string, kind models.Kind) []*models.Submission
}

// Matcher finds the counterpart of a new submission and scores the pair.
type Matcher struct {
	store  Store
	config Config
	scorer *Scorer
	logger ectologger.Logger
	now    func() time.Time
}

// NewMatcher creates a matcher. The config is validated up front so scoring itself
// never fails.
func NewMatcher(store Store, config Config, logger ectologger.Logger) (*Matcher, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid matcher config: %w", err)
	}
	return &Matcher{
		store:  store,
		config: config,
		scorer: NewScorer(),
		logger: logger,
		now:    time.Now,
	}, nil
}

// Config returns the matcher's weight table and threshold.
func (m *Matcher) Config() Config {
	return m.config
}

// IsConfident reports whether a confidence clears the acceptance threshold.
func (m *Matcher) IsConfident(confidence float64) bool {
	return confidence >= m.config.Threshold
}

// FindCandidate looks up the newest opposite-kind submission for the same identity and
// scores it against sub. It returns nil while the other half has not arrived.
func (m *Matcher) FindCandidate(ctx context.Context, sub *models.Submission) *models.MatchResult {
	ctx, span := tracing.StartSpan(ctx, "matching.Matcher.FindCandidate")
	defer span.End()

	if sub == nil {
		return nil
	}

	candidate := SelectCandidate(m.store.AllOfKind(sub.IdentityKey, sub.Kind.Opposite()))
	if candidate == nil {
		m.logger.WithContext(ctx).WithFields(map[string]any{
			"identity_key": sub.IdentityKey,
			"kind":         sub.Kind,
		}).Debug("No candidate yet, waiting for the other form")
		return nil
	}

	pair, err := models.NewPair(sub, candidate)
	if err != nil {
		// unreachable: the candidate is always the opposite kind
		m.logger.WithContext(ctx).WithError(err).Error("Failed to pair submissions")
		return nil
	}

	result := m.Evaluate(pair)

	m.logger.WithContext(ctx).WithFields(map[string]any{
		"identity_key":       sub.IdentityKey,
		"fact_find_id":       pair.FactFind.ID,
		"automation_form_id": pair.Automation.ID,
		"confidence":         result.Confidence,
		"confident":          result.Confident,
		"reasons":            len(result.Reasons),
	}).Info("Match evaluated")

	return result
}

// Evaluate scores a pair against the weight table. It is a pure function of the pair
// and the config apart from the evaluation timestamp.
func (m *Matcher) Evaluate(pair models.Pair) *models.MatchResult {
	result := &models.MatchResult{
		FactFind:       pair.FactFind,
		AutomationForm: pair.Automation,
		EvaluatedAt:    m.now().UTC(),
		Reasons:        []string{},
	}

	total := 0.0
	for _, w := range m.config.Weights {
		if w.Weight == 0 {
			continue
		}
		ev := evaluators[w.Signal](m, pair)
		if ev.gate && ev.fraction == 0 {
			result.Confidence = 0
			result.Confident = false
			result.Reasons = []string{ev.reason}
			result.Signals = []models.SignalScore{{Signal: string(w.Signal), Weight: w.Weight, Reason: ev.reason}}
			return result
		}

		contribution := w.Weight * ev.fraction
		total += contribution
		result.Reasons = append(result.Reasons, ev.reason)
		result.Signals = append(result.Signals, models.SignalScore{
			Signal:       string(w.Signal),
			Weight:       w.Weight,
			Contribution: contribution,
			Reason:       ev.reason,
		})
	}

	result.Confidence = math.Round(math.Min(total, 1.0)*confidencePrecision) / confidencePrecision
	result.Confident = m.IsConfident(result.Confidence)
	return result
}

// SelectCandidate returns the most recently submitted submission. Ties, including
// missing submission times, go to the most recently inserted one.
func SelectCandidate(subs []*models.Submission) *models.Submission {
	var best *models.Submission
	for _, s := range subs {
		if best == nil || !s.SubmittedAt.Before(best.SubmittedAt) {
			best = s
		}
	}
	return best
}
