package models

// SummaryStatus describes where an identity key sits after a submission was processed.
type SummaryStatus string

const (
	// SummaryStatusWaiting means only one side of the pair has arrived.
	SummaryStatusWaiting SummaryStatus = "waiting"
	// SummaryStatusUnconfident means a candidate exists but scored below the threshold.
	SummaryStatusUnconfident SummaryStatus = "unconfident"
	// SummaryStatusMatched means the pair was confident and handed to delivery.
	SummaryStatusMatched SummaryStatus = "matched"
	// SummaryStatusDuplicate means the pair was confident but had already been delivered unchanged.
	SummaryStatusDuplicate SummaryStatus = "duplicate"
)

// Summary is returned to the caller of every orchestration step.
type Summary struct {
	Status         SummaryStatus `json:"status"`
	IdentityKey    string        `json:"identity_key"`
	SubmissionID   string        `json:"submission_id,omitempty"`
	Matched        bool          `json:"matched"`
	Confidence     float64       `json:"confidence"`
	Delivered      bool          `json:"delivered"`
	DeliveryStatus string        `json:"delivery_status,omitempty"`
	Reasons        []string      `json:"reasons,omitempty"`
	DeliveryError  string        `json:"delivery_error,omitempty"`
}
