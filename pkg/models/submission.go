package models

import (
	"fmt"
	"strings"
	"time"
)

// Kind discriminates the two form variants a client produces.
type Kind string

const (
	KindFactFind   Kind = "fact_find"
	KindAutomation Kind = "automation"
)

// Opposite returns the kind a submission of this kind is paired with.
func (k Kind) Opposite() Kind {
	if k == KindFactFind {
		return KindAutomation
	}
	return KindFactFind
}

func (k Kind) Valid() bool {
	return k == KindFactFind || k == KindAutomation
}

// ParseKind accepts the kind spellings used by form relays and queue headers.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "fact_find", "factfind", "fact-find", "ff":
		return KindFactFind, nil
	case "automation", "automation_form", "automation-form", "af":
		return KindAutomation, nil
	}
	return "", fmt.Errorf("unknown form kind %q", s)
}

// Fields is an opaque mapping of form field identifiers to raw values.
type Fields map[string]any

// Clone returns a shallow copy. Values are scalars so a shallow copy is a full copy
// for every payload the relays send.
func (f Fields) Clone() Fields {
	out := make(Fields, len(f))
	for k, v := range f {
		out[k] = v
	}
	return out
}

// Submission is one received form instance. It is never mutated after it has been
// accepted into the record store.
type Submission struct {
	ID             string             `json:"id"`
	Kind           Kind               `json:"kind"`
	IdentityKey    string             `json:"identity_key"`
	CaseID         string             `json:"case_id,omitempty"`
	Fields         Fields             `json:"fields"`
	SubmittedAt    time.Time          `json:"submitted_at"`
	ReceivedAt     time.Time          `json:"received_at"`
	IsCouple       *bool              `json:"is_couple,omitempty"`
	PartnerPresent bool               `json:"partner_present"`
	ExistingCover  map[string]float64 `json:"existing_cover,omitempty"`
}

// CoupleStatus reports whether the submission describes a couple. known is false
// when the form carried neither a relationship answer nor partner details.
func (s *Submission) CoupleStatus() (couple bool, known bool) {
	if s.IsCouple != nil {
		return *s.IsCouple, true
	}
	if s.PartnerPresent {
		return true, true
	}
	return false, false
}

// Clone returns a deep copy of the submission.
func (s *Submission) Clone() *Submission {
	c := *s
	c.Fields = s.Fields.Clone()
	if s.IsCouple != nil {
		v := *s.IsCouple
		c.IsCouple = &v
	}
	if s.ExistingCover != nil {
		c.ExistingCover = make(map[string]float64, len(s.ExistingCover))
		for k, v := range s.ExistingCover {
			c.ExistingCover[k] = v
		}
	}
	return &c
}

// Pair holds one submission of each kind. The fact find is always the merge base and
// the automation form is always the overlay, whatever order they arrived in.
type Pair struct {
	FactFind   *Submission
	Automation *Submission
}

// NewPair orders two submissions of opposite kinds into a Pair.
func NewPair(a, b *Submission) (Pair, error) {
	if a == nil || b == nil {
		return Pair{}, fmt.Errorf("pair requires two submissions")
	}
	switch {
	case a.Kind == KindFactFind && b.Kind == KindAutomation:
		return Pair{FactFind: a, Automation: b}, nil
	case a.Kind == KindAutomation && b.Kind == KindFactFind:
		return Pair{FactFind: b, Automation: a}, nil
	}
	return Pair{}, fmt.Errorf("pair requires one %s and one %s submission, got %s and %s", KindFactFind, KindAutomation, a.Kind, b.Kind)
}
