// Package events handles event emission for match lifecycle changes
package events

import (
	"context"
	"encoding/json"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/tracing"
)

// SchemaVersion is the current event schema version
const SchemaVersion = "1.0"

// Publisher writes one encoded event. kafka.Producer satisfies it.
type Publisher interface {
	PublishEvent(ctx context.Context, key, eventType, schemaVersion string, value []byte) error
}

// Emitter handles event emission for clover. A nil publisher disables emission, so a
// nil-safe Emitter can always be called.
type Emitter struct {
	publisher Publisher
	logger    ectologger.Logger
}

// NewEmitter creates a new event emitter
func NewEmitter(publisher Publisher, logger ectologger.Logger) *Emitter {
	return &Emitter{
		publisher: publisher,
		logger:    logger,
	}
}

// Enabled reports whether events are published anywhere.
func (e *Emitter) Enabled() bool {
	return e != nil && e.publisher != nil
}

// EmitSubmissionReceived emits a submission received event
func (e *Emitter) EmitSubmissionReceived(ctx context.Context, sub *models.Submission, source string) error {
	if !e.Enabled() || sub == nil {
		return nil
	}
	ctx, span := tracing.StartSpan(ctx, "events.Emitter.EmitSubmissionReceived")
	defer span.End()

	event := &SubmissionReceivedEvent{
		BaseEvent:    NewBaseEvent(EventTypeSubmissionReceived, sub.IdentityKey),
		SubmissionID: sub.ID,
		Kind:         sub.Kind,
		CaseID:       sub.CaseID,
		SubmittedAt:  sub.SubmittedAt,
		Source:       source,
	}

	return e.emit(ctx, sub.IdentityKey, event.EventType, event)
}

// EmitMatchEvaluated emits a match evaluated event
func (e *Emitter) EmitMatchEvaluated(ctx context.Context, result *models.MatchResult) error {
	if !e.Enabled() || result == nil {
		return nil
	}
	ctx, span := tracing.StartSpan(ctx, "events.Emitter.EmitMatchEvaluated")
	defer span.End()

	explanation := result.Explain()
	event := &MatchEvaluatedEvent{
		BaseEvent:        NewBaseEvent(EventTypeMatchEvaluated, explanation.IdentityKey),
		FactFindID:       explanation.FactFindID,
		AutomationFormID: explanation.AutomationFormID,
		Confidence:       result.Confidence,
		Confident:        result.Confident,
		Reasons:          result.Reasons,
		Signals:          result.Signals,
	}

	return e.emit(ctx, explanation.IdentityKey, event.EventType, event)
}

// EmitRecordMerged emits a record merged event
func (e *Emitter) EmitRecordMerged(ctx context.Context, record *models.MergedRecord, fingerprint string) error {
	if !e.Enabled() || record == nil {
		return nil
	}
	ctx, span := tracing.StartSpan(ctx, "events.Emitter.EmitRecordMerged")
	defer span.End()

	event := &RecordMergedEvent{
		BaseEvent:        NewBaseEvent(EventTypeRecordMerged, record.IdentityKey),
		FactFindID:       record.FactFindID,
		AutomationFormID: record.AutomationFormID,
		Fingerprint:      fingerprint,
		FieldCount:       len(record.Fields),
		Conflicts:        record.Conflicts,
		IsCouple:         record.IsCouple,
		Confidence:       record.SourceConfidence,
	}

	return e.emit(ctx, record.IdentityKey, event.EventType, event)
}

// EmitDeliveryFailed emits a delivery failed event
func (e *Emitter) EmitDeliveryFailed(ctx context.Context, report *models.Report, fingerprint string, attempts, statusCode int, message string) error {
	if !e.Enabled() || report == nil {
		return nil
	}
	ctx, span := tracing.StartSpan(ctx, "events.Emitter.EmitDeliveryFailed")
	defer span.End()

	event := &DeliveryFailedEvent{
		BaseEvent:    NewBaseEvent(EventTypeDeliveryFailed, report.IdentityKey),
		ReportID:     report.ReportID,
		Fingerprint:  fingerprint,
		Attempts:     attempts,
		StatusCode:   statusCode,
		ErrorMessage: message,
	}

	return e.emit(ctx, report.IdentityKey, event.EventType, event)
}

func (e *Emitter) emit(ctx context.Context, key string, eventType EventType, event any) error {
	data, err := json.Marshal(event)
	if err != nil {
		e.logger.WithContext(ctx).WithError(err).Errorf("Failed to encode %s event", eventType)
		return err
	}

	if err := e.publisher.PublishEvent(ctx, key, string(eventType), SchemaVersion, data); err != nil {
		e.logger.WithContext(ctx).WithError(err).Errorf("Failed to emit %s event", eventType)
		return err
	}

	return nil
}
