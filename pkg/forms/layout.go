package forms

import (
	"strings"

	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/normalizers"
)

// Cover keys identify an existing-cover amount for one person, shared by both form kinds
// so the matcher can compare like with like.
const (
	CoverMainLife   = "main.life"
	CoverMainTrauma = "main.trauma"
)

// layout describes where the identity and matching signals live on one form kind.
type layout struct {
	email         string
	caseID        string
	couple        string
	coupleParser  func(any) *bool
	partnerFields []string
	existingCover map[string]string
}

var layouts = map[models.Kind]layout{
	models.KindFactFind: {
		email:         "219",
		caseID:        "516",
		couple:        "8",
		coupleParser:  relationshipStatus,
		partnerFields: []string{"146", "147"},
		existingCover: map[string]string{
			CoverMainLife:   "344",
			CoverMainTrauma: "348",
		},
	},
	models.KindAutomation: {
		email:        "3",
		couple:       "39",
		coupleParser: coupleSelector,
		existingCover: map[string]string{
			CoverMainLife:   "11",
			CoverMainTrauma: "15",
		},
	},
}

var coupleRelationships = []string{"married", "defacto", "de facto", "civil union", "partner", "couple"}

// relationshipStatus reads the fact find relationship question. Any answer that is not a
// partnered status is treated as single.
func relationshipStatus(v any) *bool {
	s := strings.ToLower(normalizers.String(v))
	if s == "" {
		return nil
	}
	for _, status := range coupleRelationships {
		if strings.Contains(s, status) {
			return boolPtr(true)
		}
	}
	return boolPtr(false)
}

// coupleSelector reads the automation form "who is this advice for" question.
func coupleSelector(v any) *bool {
	if b, ok := v.(bool); ok {
		return boolPtr(b)
	}
	s := strings.ToLower(normalizers.String(v))
	switch s {
	case "":
		return nil
	case "yes", "true", "couple":
		return boolPtr(true)
	case "no", "false", "single", "just me", "myself", "individual":
		return boolPtr(false)
	}
	if strings.Contains(s, "partner") || strings.Contains(s, "couple") {
		return boolPtr(true)
	}
	return nil
}

func boolPtr(b bool) *bool {
	return &b
}
