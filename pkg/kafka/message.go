package kafka

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Ramsey-B/clover/pkg/models"
)

// Header keys understood on the ingress topic.
const (
	HeaderFormKind    = "form_kind"
	HeaderSource      = "source"
	HeaderEventType   = "event_type"
	HeaderSchema      = "schema_version"
	HeaderTraceParent = "traceparent"
	HeaderTraceState  = "tracestate"
)

// ErrMalformedMessage is returned when a message can never be turned into a form.
var ErrMalformedMessage = errors.New("malformed form message")

// IncomingMessage wraps a raw Kafka message with parsed headers
type IncomingMessage struct {
	Key       string
	Value     []byte
	Headers   map[string]string
	Partition int
	Offset    int64
	Timestamp time.Time
	Topic     string

	// Trace context (extracted from Kafka headers)
	TraceParent string
	TraceState  string

	// Parsed content
	Form *FormMessage
}

// FormMessage is one form relayed through the ingress topic.
type FormMessage struct {
	Kind   models.Kind    `json:"kind"`
	Source string         `json:"source,omitempty"`
	Fields map[string]any `json:"fields"`
}

type formEnvelope struct {
	Kind   string          `json:"kind"`
	Source string          `json:"source"`
	Fields json.RawMessage `json:"fields"`
}

// ParseFormMessage parses the value as a form. Two shapes are accepted: an envelope
// {"kind": ..., "fields": {...}}, or a bare field object whose kind is carried in the
// form_kind header. The envelope kind wins over the header.
func (m *IncomingMessage) ParseFormMessage() error {
	var env formEnvelope
	if err := json.Unmarshal(m.Value, &env); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}

	rawKind := env.Kind
	if rawKind == "" {
		rawKind = m.Headers[HeaderFormKind]
	}
	kind, err := models.ParseKind(rawKind)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}

	fields := map[string]any{}
	if len(env.Fields) > 0 && string(env.Fields) != "null" {
		if err := json.Unmarshal(env.Fields, &fields); err != nil {
			return fmt.Errorf("%w: fields: %v", ErrMalformedMessage, err)
		}
	} else {
		if err := json.Unmarshal(m.Value, &fields); err != nil {
			return fmt.Errorf("%w: %v", ErrMalformedMessage, err)
		}
		delete(fields, "kind")
		delete(fields, "source")
	}

	source := env.Source
	if source == "" {
		source = m.Headers[HeaderSource]
	}
	if source == "" {
		source = "kafka"
	}

	m.Form = &FormMessage{Kind: kind, Source: source, Fields: fields}
	return nil
}

// EventType returns the event_type header, if any.
func (m *IncomingMessage) EventType() string {
	return m.Headers[HeaderEventType]
}
