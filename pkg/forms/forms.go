// Package forms turns raw form relay payloads into submissions.
package forms

import (
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/normalizers"
)

// ErrMissingIdentity is returned when a payload carries no usable email address.
var ErrMissingIdentity = errors.New("identity email missing or invalid")

// DateCreatedField is the relay metadata key holding the original submission time.
const DateCreatedField = "date_created"

var validate = validator.New()

// Lookup returns the value stored under id, falling back to its "f"-prefixed spelling.
func Lookup(fields models.Fields, id string) (any, bool) {
	if v, ok := fields[id]; ok {
		return v, true
	}
	v, ok := fields["f"+id]
	return v, ok
}

// LookupString returns the trimmed string form of a field, or "".
func LookupString(fields models.Fields, id string) string {
	v, _ := Lookup(fields, id)
	return normalizers.String(v)
}

// IdentityKey extracts the normalized identity key for a payload of the given kind.
func IdentityKey(kind models.Kind, fields models.Fields) (string, error) {
	l, ok := layouts[kind]
	if !ok {
		return "", fmt.Errorf("unknown form kind %q", kind)
	}
	raw := LookupString(fields, l.email)
	if raw == "" {
		raw = normalizers.String(fields["email"])
	}
	key := normalizers.Apply(raw, "nemail")
	if key == "" {
		return "", ErrMissingIdentity
	}
	if err := validate.Var(key, "email"); err != nil {
		return "", fmt.Errorf("%w: %q", ErrMissingIdentity, key)
	}
	return key, nil
}

// Parse builds a Submission from a relay payload. The payload is copied; the field map
// on the returned submission is never shared with the caller.
func Parse(kind models.Kind, raw map[string]any, receivedAt time.Time) (*models.Submission, error) {
	l, ok := layouts[kind]
	if !ok {
		return nil, fmt.Errorf("unknown form kind %q", kind)
	}
	fields := models.Fields(raw).Clone()

	key, err := IdentityKey(kind, fields)
	if err != nil {
		return nil, err
	}

	submittedAt := receivedAt.UTC()
	if ts, ok := normalizers.Date(fields[DateCreatedField]); ok {
		submittedAt = ts
	}

	sub := &models.Submission{
		ID:          uuid.New().String(),
		Kind:        kind,
		IdentityKey: key,
		Fields:      fields,
		SubmittedAt: submittedAt,
		ReceivedAt:  receivedAt.UTC(),
	}
	if l.caseID != "" {
		sub.CaseID = LookupString(fields, l.caseID)
	}
	if v, ok := Lookup(fields, l.couple); ok {
		sub.IsCouple = l.coupleParser(v)
	}
	for _, id := range l.partnerFields {
		if LookupString(fields, id) != "" {
			sub.PartnerPresent = true
			break
		}
	}
	for cover, id := range l.existingCover {
		v, ok := Lookup(fields, id)
		if !ok {
			continue
		}
		if amount, ok := normalizers.Amount(v); ok {
			if sub.ExistingCover == nil {
				sub.ExistingCover = make(map[string]float64)
			}
			sub.ExistingCover[cover] = amount
		}
	}

	return sub, nil
}
