package events

import (
	"time"

	"github.com/google/uuid"

	"github.com/Ramsey-B/clover/pkg/models"
)

// EventType defines the type of event
type EventType string

const (
	EventTypeSubmissionReceived EventType = "submission.received"
	EventTypeMatchEvaluated     EventType = "match.evaluated"
	EventTypeRecordMerged       EventType = "record.merged"
	EventTypeDeliveryFailed     EventType = "delivery.failed"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventType     EventType `json:"event_type"`
	SchemaVersion string    `json:"schema_version"`
	IdentityKey   string    `json:"identity_key"`
	Timestamp     time.Time `json:"timestamp"`
	CorrelationID string    `json:"correlation_id,omitempty"`
}

// SubmissionReceivedEvent is emitted once a submission is recorded
type SubmissionReceivedEvent struct {
	BaseEvent
	SubmissionID string      `json:"submission_id"`
	Kind         models.Kind `json:"kind"`
	CaseID       string      `json:"case_id,omitempty"`
	SubmittedAt  time.Time   `json:"submitted_at"`
	Source       string      `json:"source,omitempty"`
}

// MatchEvaluatedEvent is emitted for every scored pair, confident or not
type MatchEvaluatedEvent struct {
	BaseEvent
	FactFindID       string               `json:"fact_find_id"`
	AutomationFormID string               `json:"automation_form_id"`
	Confidence       float64              `json:"confidence"`
	Confident        bool                 `json:"confident"`
	Reasons          []string             `json:"reasons"`
	Signals          []models.SignalScore `json:"signals,omitempty"`
}

// RecordMergedEvent is emitted when a confident pair is merged
type RecordMergedEvent struct {
	BaseEvent
	FactFindID       string                 `json:"fact_find_id"`
	AutomationFormID string                 `json:"automation_form_id"`
	Fingerprint      string                 `json:"fingerprint"`
	FieldCount       int                    `json:"field_count"`
	Conflicts        []models.FieldConflict `json:"conflicts,omitempty"`
	IsCouple         bool                   `json:"is_couple"`
	Confidence       float64                `json:"confidence"`
}

// DeliveryFailedEvent is emitted when a report could not be delivered
type DeliveryFailedEvent struct {
	BaseEvent
	ReportID     string `json:"report_id"`
	Fingerprint  string `json:"fingerprint"`
	Attempts     int    `json:"attempts"`
	StatusCode   int    `json:"status_code,omitempty"`
	ErrorMessage string `json:"error_message"`
}

// NewBaseEvent creates a base event with common fields
func NewBaseEvent(eventType EventType, identityKey string) BaseEvent {
	return BaseEvent{
		EventType:     eventType,
		SchemaVersion: SchemaVersion,
		IdentityKey:   identityKey,
		Timestamp:     time.Now().UTC(),
		CorrelationID: uuid.New().String(),
	}
}
