// Package orchestrator runs one submission through recording, matching, merging,
// section generation and delivery.
package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru"

	"github.com/Ramsey-B/clover/pkg/delivery"
	"github.com/Ramsey-B/clover/pkg/events"
	"github.com/Ramsey-B/clover/pkg/fingerprint"
	"github.com/Ramsey-B/clover/pkg/forms"
	"github.com/Ramsey-B/clover/pkg/matching"
	"github.com/Ramsey-B/clover/pkg/merging"
	"github.com/Ramsey-B/clover/pkg/metrics"
	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/normalizers"
	"github.com/Ramsey-B/clover/pkg/recordstore"
	"github.com/Ramsey-B/clover/pkg/redis"
	"github.com/Ramsey-B/clover/pkg/reqctx"
	"github.com/Ramsey-B/clover/pkg/sections"
	"github.com/Ramsey-B/clover/pkg/tracing"
)

// DefaultExplanationCacheSize bounds the number of identities whose latest match
// explanation is kept for the status query.
const DefaultExplanationCacheSize = 1000

var (
	// ErrRejectedSubmission is returned when a submission carries no usable identity.
	// It never reaches the record store.
	ErrRejectedSubmission = errors.New("submission rejected")

	// ErrUnknownIdentity is returned by Retrigger when nothing is stored for the key.
	ErrUnknownIdentity = errors.New("no submissions stored for identity")
)

// Sender delivers an assembled report. delivery.WebhookSender satisfies it.
type Sender interface {
	Send(ctx context.Context, report *models.Report) delivery.Outcome
}

// Archive is the persistence collaborator. The postgres submission repository
// satisfies it.
type Archive interface {
	Save(ctx context.Context, sub *models.Submission) error
	ListAll(ctx context.Context) ([]*models.Submission, error)
}

// DeadLetters keeps reports whose delivery failed.
type DeadLetters interface {
	Add(ctx context.Context, entry *redis.DLQEntry) (string, error)
}

// Option configures optional collaborators.
type Option func(*Orchestrator)

// WithArchive persists every accepted submission before it is recorded.
func WithArchive(a Archive) Option {
	return func(o *Orchestrator) { o.archive = a }
}

// WithLedger replaces the in-memory delivered-pair ledger.
func WithLedger(l Ledger) Option {
	return func(o *Orchestrator) { o.ledger = l }
}

// WithDeadLetters pushes failed deliveries to a dead letter queue.
func WithDeadLetters(d DeadLetters) Option {
	return func(o *Orchestrator) { o.deadLetters = d }
}

// WithEmitter publishes match lifecycle events.
func WithEmitter(e *events.Emitter) Option {
	return func(o *Orchestrator) { o.emitter = e }
}

// WithExplanationCacheSize bounds the explanation cache.
func WithExplanationCacheSize(size int) Option {
	return func(o *Orchestrator) { o.cacheSize = size }
}

// WithClock overrides the receipt clock.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// Orchestrator owns the record store and drives every submission through the core.
type Orchestrator struct {
	logger   ectologger.Logger
	store    *recordstore.Store
	matcher  *matching.Matcher
	merger   *merging.Engine
	registry *sections.Registry
	sender   Sender

	archive     Archive
	ledger      Ledger
	deadLetters DeadLetters
	emitter     *events.Emitter

	cacheSize    int
	explanations *lru.Cache
	now          func() time.Time

	locks    sync.Map // identity key -> *sync.Mutex
	inFlight sync.Map // pair fingerprint -> struct{}
}

// New creates an orchestrator. The store must be the one the matcher reads from.
func New(
	logger ectologger.Logger,
	store *recordstore.Store,
	matcher *matching.Matcher,
	merger *merging.Engine,
	registry *sections.Registry,
	sender Sender,
	opts ...Option,
) (*Orchestrator, error) {
	if store == nil || matcher == nil || merger == nil || registry == nil || sender == nil {
		return nil, errors.New("orchestrator requires a store, matcher, merger, section registry and sender")
	}

	o := &Orchestrator{
		logger:    logger,
		store:     store,
		matcher:   matcher,
		merger:    merger,
		registry:  registry,
		sender:    sender,
		cacheSize: DefaultExplanationCacheSize,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.ledger == nil {
		o.ledger = NewMemoryLedger()
	}

	cache, err := lru.New(o.cacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create explanation cache: %w", err)
	}
	o.explanations = cache

	return o, nil
}

// Receive parses a raw form payload and runs it through OnSubmissionReceived. Parse
// failures are reported as ErrRejectedSubmission.
func (o *Orchestrator) Receive(ctx context.Context, kind models.Kind, raw map[string]any) (models.Summary, error) {
	return o.receive(ctx, "", kind, raw)
}

// receive parses and records a form. A non-empty id replaces the generated one so a
// redelivered payload resolves to the submission it already produced.
func (o *Orchestrator) receive(ctx context.Context, id string, kind models.Kind, raw map[string]any) (models.Summary, error) {
	ctx, span := tracing.StartSpan(ctx, "orchestrator.Orchestrator.Receive")
	defer span.End()

	sub, err := forms.Parse(kind, raw, o.now().UTC())
	if err != nil {
		return o.reject(ctx, kind, err)
	}
	if id != "" {
		sub.ID = id
	}
	return o.OnSubmissionReceived(ctx, sub)
}

// OnSubmissionReceived records a submission, looks for its counterpart and, when the
// pair is confident, merges and delivers it. A delivery failure is reported in the
// summary and never undoes the recording.
func (o *Orchestrator) OnSubmissionReceived(ctx context.Context, sub *models.Submission) (models.Summary, error) {
	ctx, span := tracing.StartSpan(ctx, "orchestrator.Orchestrator.OnSubmissionReceived")
	defer span.End()

	if sub == nil {
		return o.reject(ctx, "", errors.New("submission is nil"))
	}

	sub = sub.Clone()
	sub.IdentityKey = normalizers.NormalizeEmail(sub.IdentityKey)
	if sub.IdentityKey == "" {
		return o.reject(ctx, sub.Kind, forms.ErrMissingIdentity)
	}
	if !sub.Kind.Valid() {
		return o.reject(ctx, sub.Kind, fmt.Errorf("unknown form kind %q", sub.Kind))
	}
	if sub.ID == "" {
		sub.ID = uuid.New().String()
	}
	if sub.ReceivedAt.IsZero() {
		sub.ReceivedAt = o.now().UTC()
	}
	if sub.SubmittedAt.IsZero() {
		sub.SubmittedAt = sub.ReceivedAt
	}

	log := o.logger.WithContext(ctx).WithFields(map[string]any{
		"identity_key":  sub.IdentityKey,
		"kind":          sub.Kind,
		"submission_id": sub.ID,
	})

	unlock := o.lock(sub.IdentityKey)
	locked := true
	defer func() {
		if locked {
			unlock()
		}
	}()

	if o.archive != nil {
		if err := o.archive.Save(ctx, sub); err != nil {
			log.WithError(err).Error("Failed to archive submission")
			return models.Summary{}, err
		}
	}
	switch err := o.store.Add(sub); {
	case errors.Is(err, recordstore.ErrDuplicateSubmission):
		// matching still runs: the first copy may have stopped before delivering
		metrics.RecordSubmission(string(sub.Kind), "duplicate")
		log.Info("Submission already recorded")
	case err != nil:
		log.WithError(err).Error("Failed to record submission")
		return models.Summary{}, err
	default:
		metrics.RecordSubmission(string(sub.Kind), "accepted")
		metrics.StoredIdentities.Set(float64(len(o.store.IdentityKeys())))
		log.Info("Submission recorded")
		o.emitEvent(ctx, func() error { return o.emitter.EmitSubmissionReceived(ctx, sub, reqctx.GetSource(ctx)) })
	}

	summary := models.Summary{
		Status:       models.SummaryStatusWaiting,
		IdentityKey:  sub.IdentityKey,
		SubmissionID: sub.ID,
	}

	result := o.matcher.FindCandidate(ctx, sub)
	if result == nil {
		return summary, nil
	}

	prepared, err := o.evaluate(ctx, result, &summary)
	if err != nil || prepared == nil {
		return summary, err
	}

	unlock()
	locked = false

	o.deliver(ctx, prepared, false, &summary)
	return summary, nil
}

// Retrigger re-runs matching for an identity from stored submissions alone. With
// force set the delivered-pair ledger is bypassed.
func (o *Orchestrator) Retrigger(ctx context.Context, identityKey string, force bool) (models.Summary, error) {
	ctx, span := tracing.StartSpan(ctx, "orchestrator.Orchestrator.Retrigger")
	defer span.End()

	key := normalizers.NormalizeEmail(identityKey)
	summary := models.Summary{Status: models.SummaryStatusWaiting, IdentityKey: key}

	unlock := o.lock(key)
	factFind := matching.SelectCandidate(o.store.AllOfKind(key, models.KindFactFind))
	automation := matching.SelectCandidate(o.store.AllOfKind(key, models.KindAutomation))
	if factFind == nil && automation == nil {
		unlock()
		return summary, fmt.Errorf("%w: %s", ErrUnknownIdentity, key)
	}
	if factFind == nil || automation == nil {
		unlock()
		return summary, nil
	}

	pair := models.Pair{FactFind: factFind, Automation: automation}
	result := o.matcher.Evaluate(pair)

	o.logger.WithContext(ctx).WithFields(map[string]any{
		"identity_key": key,
		"confidence":   result.Confidence,
		"confident":    result.Confident,
		"force":        force,
	}).Info("Match retriggered")

	prepared, err := o.evaluate(ctx, result, &summary)
	unlock()
	if err != nil || prepared == nil {
		return summary, err
	}

	o.deliver(ctx, prepared, force, &summary)
	return summary, nil
}

// Rehydrate loads archived submissions into the record store without matching or
// delivering them. It returns the number of submissions loaded.
func (o *Orchestrator) Rehydrate(ctx context.Context) (int, error) {
	ctx, span := tracing.StartSpan(ctx, "orchestrator.Orchestrator.Rehydrate")
	defer span.End()

	if o.archive == nil {
		return 0, nil
	}

	subs, err := o.archive.ListAll(ctx)
	if err != nil {
		o.logger.WithContext(ctx).WithError(err).Error("Failed to load archived submissions")
		return 0, err
	}

	loaded := 0
	for _, sub := range subs {
		if err := o.store.Add(sub); err != nil {
			o.logger.WithContext(ctx).WithError(err).WithField("submission_id", sub.ID).Warn("Skipping archived submission")
			continue
		}
		loaded++
	}
	metrics.StoredIdentities.Set(float64(len(o.store.IdentityKeys())))

	o.logger.WithContext(ctx).WithFields(map[string]any{
		"loaded":     loaded,
		"identities": len(o.store.IdentityKeys()),
	}).Info("Record store rehydrated")

	return loaded, nil
}

// Statistics returns record store statistics.
func (o *Orchestrator) Statistics() models.Statistics {
	return o.store.Statistics()
}

// Explanation returns the most recent match explanation for an identity. An identity
// that dropped out of the cache is re-scored from its stored pair; that evaluation is
// not recorded and triggers nothing.
func (o *Orchestrator) Explanation(identityKey string) (models.Explanation, bool) {
	key := normalizers.NormalizeEmail(identityKey)
	if v, ok := o.explanations.Get(key); ok {
		return v.(models.Explanation), true
	}

	factFind := matching.SelectCandidate(o.store.AllOfKind(key, models.KindFactFind))
	automation := matching.SelectCandidate(o.store.AllOfKind(key, models.KindAutomation))
	if factFind == nil || automation == nil {
		return models.Explanation{}, false
	}
	return o.matcher.Evaluate(models.Pair{FactFind: factFind, Automation: automation}).Explain(), true
}

// Explanations returns every cached explanation sorted by identity key.
func (o *Orchestrator) Explanations() []models.Explanation {
	keys := o.explanations.Keys()
	out := make([]models.Explanation, 0, len(keys))
	for _, k := range keys {
		if v, ok := o.explanations.Peek(k); ok {
			out = append(out, v.(models.Explanation))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].IdentityKey < out[j].IdentityKey })
	return out
}

// pendingDelivery is a merged pair ready for delivery.
type pendingDelivery struct {
	record      *models.MergedRecord
	report      *models.Report
	fingerprint string
}

// evaluate records a match result and, when it is confident, merges the pair and
// builds its report. It must run under the identity lock.
func (o *Orchestrator) evaluate(ctx context.Context, result *models.MatchResult, summary *models.Summary) (*pendingDelivery, error) {
	o.store.RecordMatch(result)
	explanation := result.Explain()
	o.explanations.Add(explanation.IdentityKey, explanation)
	metrics.RecordMatch(result.Confident, result.Confidence)
	o.emitEvent(ctx, func() error { return o.emitter.EmitMatchEvaluated(ctx, result) })

	summary.Confidence = result.Confidence
	summary.Reasons = result.Reasons
	if !result.Confident {
		summary.Status = models.SummaryStatusUnconfident
		return nil, nil
	}

	pair := models.Pair{FactFind: result.FactFind, Automation: result.AutomationForm}
	record, err := o.merger.MergePair(ctx, pair, result)
	if err != nil {
		o.logger.WithContext(ctx).WithError(err).Error("Failed to merge pair")
		return nil, err
	}

	summary.Status = models.SummaryStatusMatched
	summary.Matched = true

	now := o.now().UTC()
	generated := o.registry.GenerateAll(sections.InputFor(record, now))
	report := delivery.BuildReport(record, result, generated)
	fp := fingerprint.Pair(pair.FactFind, pair.Automation, record.Fields)

	o.emitEvent(ctx, func() error { return o.emitter.EmitRecordMerged(ctx, record, fp) })

	return &pendingDelivery{record: record, report: report, fingerprint: fp}, nil
}

// deliver sends a prepared report unless the same pair was already delivered. It runs
// outside the identity lock and is detached from the caller's cancellation: a webhook
// client that hangs up mid-retry must not cut the retries short or skip the dead letter.
// The sender bounds its own run time.
func (o *Orchestrator) deliver(ctx context.Context, p *pendingDelivery, force bool, summary *models.Summary) {
	ctx = context.WithoutCancel(ctx)
	ctx, span := tracing.StartSpan(ctx, "orchestrator.Orchestrator.deliver")
	defer span.End()

	log := o.logger.WithContext(ctx).WithFields(map[string]any{
		"identity_key": p.record.IdentityKey,
		"fingerprint":  p.fingerprint,
		"report_id":    p.report.ReportID,
	})

	if _, busy := o.inFlight.LoadOrStore(p.fingerprint, struct{}{}); busy {
		log.Debug("Delivery of this pair already in progress, skipping")
		summary.Status = models.SummaryStatusDuplicate
		return
	}
	defer o.inFlight.Delete(p.fingerprint)

	if !force {
		delivered, err := o.ledger.Delivered(ctx, p.fingerprint)
		if err != nil {
			log.WithError(err).Warn("Delivery ledger unavailable, delivering anyway")
		}
		if delivered {
			log.Debug("Pair already delivered unchanged, skipping")
			summary.Status = models.SummaryStatusDuplicate
			return
		}
	}

	outcome := o.sender.Send(ctx, p.report)
	summary.Delivered = outcome.Delivered
	summary.DeliveryStatus = outcome.Status

	if outcome.Delivered {
		if err := o.ledger.MarkDelivered(ctx, p.fingerprint); err != nil {
			log.WithError(err).Warn("Failed to record delivered pair")
		}
		return
	}

	if !outcome.Attempted {
		log.WithField("delivery_status", outcome.Status).Debug("Delivery not attempted")
		return
	}

	summary.DeliveryError = outcome.Message
	o.deadLetter(ctx, p, outcome)
	o.emitEvent(ctx, func() error {
		return o.emitter.EmitDeliveryFailed(ctx, p.report, p.fingerprint, outcome.Attempts, outcome.StatusCode, outcome.Message)
	})
}

func (o *Orchestrator) deadLetter(ctx context.Context, p *pendingDelivery, outcome delivery.Outcome) {
	if o.deadLetters == nil {
		return
	}

	payload, err := json.Marshal(delivery.Payload(p.report))
	if err != nil {
		o.logger.WithContext(ctx).WithError(err).Error("Failed to encode dead letter payload")
		return
	}

	reason := redis.ReasonRetriesExhausted
	if outcome.StatusCode >= 400 && outcome.StatusCode < 500 {
		reason = redis.ReasonRejected
	}

	entry := &redis.DLQEntry{
		IdentityKey:      p.record.IdentityKey,
		FactFindID:       p.record.FactFindID,
		AutomationFormID: p.record.AutomationFormID,
		Fingerprint:      p.fingerprint,
		Payload:          payload,
		Reason:           reason,
		ErrorMessage:     outcome.Message,
		Attempts:         outcome.Attempts,
		TraceID:          tracing.GetTraceID(ctx),
	}
	if _, err := o.deadLetters.Add(ctx, entry); err != nil {
		o.logger.WithContext(ctx).WithError(err).Error("Failed to dead letter report")
	}
}

func (o *Orchestrator) reject(ctx context.Context, kind models.Kind, reason error) (models.Summary, error) {
	metrics.RecordSubmission(string(kind), "rejected")
	o.logger.WithContext(ctx).WithError(reason).WithField("kind", kind).Warn("Submission rejected")
	return models.Summary{}, fmt.Errorf("%w: %w", ErrRejectedSubmission, reason)
}

// emitEvent publishes an event. Failures are logged by the emitter and never fail the
// orchestration.
func (o *Orchestrator) emitEvent(ctx context.Context, emit func() error) {
	if !o.emitter.Enabled() {
		return
	}
	if err := emit(); err != nil {
		o.logger.WithContext(ctx).WithError(err).Debug("Event not published")
	}
}

func (o *Orchestrator) lock(identityKey string) func() {
	v, _ := o.locks.LoadOrStore(identityKey, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}
