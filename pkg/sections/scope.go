package sections

import (
	"fmt"
	"strings"

	"github.com/Ramsey-B/clover/pkg/forms"
	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/normalizers"
)

type product struct {
	field string
	name  string
}

// products are the automation form's scope checkboxes, in display order.
var products = []product{
	{"5.1", "Life Insurance"},
	{"5.2", "Income Protection"},
	{"5.3", "Trauma Cover"},
	{"5.4", "Health Insurance"},
	{"5.5", "Total Permanent Disability (TPD)"},
	{"5.6", "ACC Top-Up"},
}

type limitation struct {
	field       string
	code        string
	description string
	// affects lists the products a limitation explains; nil means any product
	affects []string
}

var limitations = []limitation{
	{"6.1", "employer_medical", "Medical cover provided through employer", []string{"Health Insurance"}},
	{"6.2", "no_debt_strong_assets", "No debt and strong asset base eliminates need for life cover", []string{"Life Insurance"}},
	{"6.3", "budget_limitations", "Budget constraints limit insurance options", nil},
	{"6.4", "self_insure", "Client has sufficient assets to self-insure risks", []string{"Income Protection", "Trauma Cover", "Health Insurance"}},
	{"6.5", "no_dependants", "No financial dependants requiring protection", []string{"Life Insurance"}},
	{"6.6", "uninsurable_occupation", "Occupation is not insurable or has significant loadings", []string{"Income Protection", "Total Permanent Disability (TPD)"}},
	{"6.7", "other", "Other reasons (see notes)", nil},
}

const (
	scopeNotesField     = "7"
	maxListedLimitation = 3
	maxLimitationNotes  = 100
)

// ScopeOfAdviceSection splits products into in and out of scope and explains the
// limitations behind the exclusions.
func ScopeOfAdviceSection(in Input) models.Section {
	inScope := []string{}
	outOfScope := []string{}
	for _, p := range products {
		if checked(in.Fields, p.field) {
			inScope = append(inScope, p.name)
		} else {
			outOfScope = append(outOfScope, p.name)
		}
	}

	active := []limitation{}
	for _, l := range limitations {
		if checked(in.Fields, l.field) {
			active = append(active, l)
		}
	}
	limitationNotes := str(in.Fields, scopeNotesField)

	activeOut := make([]map[string]any, 0, len(active))
	mapping := map[string]any{}
	for _, l := range active {
		activeOut = append(activeOut, map[string]any{"code": l.code, "description": l.description})
		if affected := affectedProducts(l, outOfScope); len(affected) > 0 {
			mapping[l.code] = affected
		}
	}

	content := map[string]any{
		"limitations":  limitationsContent(active, limitationNotes),
		"in_scope":     inScopeContent(inScope),
		"out_of_scope": outOfScopeContent(outOfScope, len(active) > 0),
	}
	if date, ok := normalizers.Date(lookupRaw(in.Fields, forms.DateCreatedField)); ok {
		content["form_submission_date"] = date.Format("Monday, 02 January 2006")
	}

	return models.Section{
		ID:                   ScopeOfAdvice,
		RecommendationStatus: recommendation(false, len(inScope) > 0, false),
		Data: map[string]any{
			"client_name":                in.ClientName,
			"is_couple":                  in.IsCouple,
			"products_in_scope":          inScope,
			"products_out_of_scope":      outOfScope,
			"active_limitations":         activeOut,
			"limitation_product_mapping": mapping,
			"limitation_notes":           limitationNotes,
			"sections":                   content,
		},
	}
}

func affectedProducts(l limitation, outOfScope []string) []string {
	if l.affects == nil {
		return outOfScope
	}
	out := []string{}
	for _, p := range l.affects {
		for _, o := range outOfScope {
			if p == o {
				out = append(out, p)
				break
			}
		}
	}
	return out
}

func limitationsContent(active []limitation, notes string) string {
	if len(active) == 0 {
		return "No specific limitations have been identified that restrict the scope of insurance advice."
	}

	descriptions := make([]string, 0, maxListedLimitation)
	for i, l := range active {
		if i == maxListedLimitation {
			break
		}
		descriptions = append(descriptions, l.description)
	}
	text := strings.Join(descriptions, "; ")
	if extra := len(active) - maxListedLimitation; extra > 0 {
		text += fmt.Sprintf(" and %d other factor(s)", extra)
	}
	if notes != "" {
		if r := []rune(notes); len(r) > maxLimitationNotes {
			notes = string(r[:maxLimitationNotes])
		}
		text += ". Additional notes: " + notes
	}
	return "Scope limitations: " + text
}

func inScopeContent(inScope []string) string {
	if len(inScope) == 0 {
		return "No insurance products are currently being advised on based on the assessment."
	}
	return fmt.Sprintf("The following insurance products are included in this advice: %s.", strings.Join(inScope, ", "))
}

func outOfScopeContent(outOfScope []string, limited bool) string {
	if len(outOfScope) == 0 {
		return "All standard insurance product categories have been included in this advice with no exclusions."
	}
	reason := "based on needs analysis"
	if limited {
		reason = "due to identified limitations"
	}
	return fmt.Sprintf("The following products are not included in this advice %s: %s.", reason, strings.Join(outOfScope, ", "))
}
