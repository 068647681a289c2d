package orchestrator

import (
	"context"
	"errors"
	"fmt"

	"github.com/Ramsey-B/clover/pkg/kafka"
	"github.com/Ramsey-B/clover/pkg/reqctx"
)

// HandleMessage is the kafka.MessageHandler for the form ingress topic. Rejected
// submissions are marked permanent so the consumer commits them instead of retrying.
// The submission ID comes from the message position, so a redelivered message maps
// onto the submission its first delivery recorded.
func (o *Orchestrator) HandleMessage(ctx context.Context, msg *kafka.IncomingMessage) error {
	if msg.Form == nil {
		return kafka.Permanent(errors.New("message carries no form"))
	}

	ctx = reqctx.SetSource(ctx, msg.Form.Source)
	ctx = reqctx.SetFormKind(ctx, string(msg.Form.Kind))

	summary, err := o.receive(ctx, MessageSubmissionID(msg), msg.Form.Kind, msg.Form.Fields)
	if err != nil {
		if errors.Is(err, ErrRejectedSubmission) {
			return kafka.Permanent(err)
		}
		return err
	}

	o.logger.WithContext(ctx).WithFields(map[string]any{
		"identity_key": summary.IdentityKey,
		"status":       summary.Status,
		"offset":       msg.Offset,
	}).Debug("Form message processed")
	return nil
}

// MessageSubmissionID names the submission a topic message produces.
func MessageSubmissionID(msg *kafka.IncomingMessage) string {
	return fmt.Sprintf("kafka:%s:%d:%d", msg.Topic, msg.Partition, msg.Offset)
}
