package models

import "time"

// SignalScore records how one matching signal contributed to a confidence score.
type SignalScore struct {
	Signal       string  `json:"signal"`
	Weight       float64 `json:"weight"`
	Contribution float64 `json:"contribution"`
	Reason       string  `json:"reason"`
}

// MatchResult is the outcome of one matching attempt for an identity key.
type MatchResult struct {
	Confidence     float64       `json:"confidence"`
	Confident      bool          `json:"confident"`
	Reasons        []string      `json:"reasons"`
	Signals        []SignalScore `json:"signals,omitempty"`
	FactFind       *Submission   `json:"-"`
	AutomationForm *Submission   `json:"-"`
	EvaluatedAt    time.Time     `json:"evaluated_at"`
}

// Explanation is the operator facing view of a MatchResult.
type Explanation struct {
	IdentityKey      string        `json:"identity_key"`
	Confidence       float64       `json:"confidence"`
	Confident        bool          `json:"confident"`
	Reasons          []string      `json:"reasons"`
	Signals          []SignalScore `json:"signals,omitempty"`
	FactFindID       string        `json:"fact_find_id,omitempty"`
	AutomationFormID string        `json:"automation_form_id,omitempty"`
	EvaluatedAt      time.Time     `json:"evaluated_at"`
}

func (r *MatchResult) Explain() Explanation {
	e := Explanation{
		Confidence:  r.Confidence,
		Confident:   r.Confident,
		Reasons:     r.Reasons,
		Signals:     r.Signals,
		EvaluatedAt: r.EvaluatedAt,
	}
	if r.FactFind != nil {
		e.IdentityKey = r.FactFind.IdentityKey
		e.FactFindID = r.FactFind.ID
	}
	if r.AutomationForm != nil {
		e.AutomationFormID = r.AutomationForm.ID
		if e.IdentityKey == "" {
			e.IdentityKey = r.AutomationForm.IdentityKey
		}
	}
	return e
}

// FieldConflict records a key where both sides carried a meaningful, differing value.
type FieldConflict struct {
	Field        string `json:"field"`
	BaseValue    any    `json:"base_value"`
	OverlayValue any    `json:"overlay_value"`
	Resolution   string `json:"resolution"`
}

// MergedRecord is the reconciled field set handed to section generation and delivery.
type MergedRecord struct {
	IdentityKey      string          `json:"identity_key"`
	CaseID           string          `json:"case_id,omitempty"`
	Fields           Fields          `json:"fields"`
	SourceConfidence float64         `json:"source_confidence"`
	FactFindID       string          `json:"fact_find_id"`
	AutomationFormID string          `json:"automation_form_id"`
	Conflicts        []FieldConflict `json:"conflicts,omitempty"`
	IsCouple         bool            `json:"is_couple"`
}

// Statistics summarises the record store for the status query.
type Statistics struct {
	TotalFactFinds       int     `json:"total_fact_finds"`
	TotalAutomationForms int     `json:"total_automation_forms"`
	TotalIdentities      int     `json:"total_identities"`
	MatchesEvaluated     int     `json:"matches_evaluated"`
	ConfidentMatches     int     `json:"confident_matches"`
	AverageConfidence    float64 `json:"average_confidence"`
	FactFindOnly         int     `json:"fact_find_only"`
	AutomationOnly       int     `json:"automation_only"`
}
