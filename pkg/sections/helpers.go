package sections

import (
	"fmt"
	"strings"

	"github.com/Ramsey-B/clover/pkg/forms"
	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/normalizers"
)

// Recommendation statuses.
const (
	StatusBothNeedCoverage = "both_need_coverage"
	StatusMainOnly         = "main_only_needs_coverage"
	StatusPartnerOnly      = "partner_only_needs_coverage"
	StatusNoCoverageNeeded = "no_coverage_needed"
	StatusCoverageNeeded   = "coverage_needed"
)

const (
	noAdditionalNotes   = "No additional notes"
	textBlockLabelWidth = 25
	textBlockValueWidth = 15
)

var textBlockRule = strings.Repeat("-", 45)

// recommendation maps who needs cover to a status. Singles only ever get coverage_needed
// or no_coverage_needed.
func recommendation(isCouple, main, partner bool) string {
	if !isCouple {
		if main {
			return StatusCoverageNeeded
		}
		return StatusNoCoverageNeeded
	}
	switch {
	case main && partner:
		return StatusBothNeedCoverage
	case main:
		return StatusMainOnly
	case partner:
		return StatusPartnerOnly
	default:
		return StatusNoCoverageNeeded
	}
}

func str(fields models.Fields, id string) string {
	return forms.LookupString(fields, id)
}

func amount(fields models.Fields, id string) int64 {
	v, _ := forms.Lookup(fields, id)
	return normalizers.WholeAmount(v)
}

func checked(fields models.Fields, id string) bool {
	v, ok := forms.Lookup(fields, id)
	if !ok {
		return false
	}
	yes, known := normalizers.YesNo(v)
	if known {
		return yes
	}
	// checkbox fields sometimes carry the option label instead of a marker
	return normalizers.String(v) != ""
}

func notes(fields models.Fields, id string) string {
	if n := str(fields, id); n != "" {
		return n
	}
	return noAdditionalNotes
}

// anyPresent reports whether any of the ids holds a non-empty value.
func anyPresent(fields models.Fields, ids ...string) bool {
	for _, id := range ids {
		if str(fields, id) != "" {
			return true
		}
	}
	return false
}

type fieldKind int

const (
	currencyField fieldKind = iota
	numberField
	textField
	yesNoField
)

type blockField struct {
	label string
	id    string
	kind  fieldKind
}

// textBlock renders the non-empty fields as an aligned table under title. It returns
// "" when no field has a value.
func textBlock(fields models.Fields, title string, layout []blockField) string {
	var lines []string
	for _, f := range layout {
		value := ""
		switch f.kind {
		case currencyField:
			if n := amount(fields, f.id); n > 0 {
				value = normalizers.FormatCurrency(n)
			}
		case numberField:
			if n := amount(fields, f.id); n > 0 {
				value = fmt.Sprintf("%d", n)
			}
		case textField:
			value = str(fields, f.id)
		case yesNoField:
			if yes, _ := normalizers.YesNo(lookupRaw(fields, f.id)); yes {
				value = "Yes"
			}
		}
		if value == "" {
			continue
		}
		lines = append(lines, fmt.Sprintf("%-*s %*s", textBlockLabelWidth, f.label, textBlockValueWidth, value))
	}
	if len(lines) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString(title)
	b.WriteString("\n")
	b.WriteString(textBlockRule)
	for _, l := range lines {
		b.WriteString("\n")
		b.WriteString(l)
	}
	b.WriteString("\n")
	b.WriteString(textBlockRule)
	return b.String()
}

func lookupRaw(fields models.Fields, id string) any {
	v, _ := forms.Lookup(fields, id)
	return v
}

// ClientName is the main person's full name, falling back to the automation form's
// email field.
func ClientName(fields models.Fields) string {
	name := strings.TrimSpace(str(fields, "144") + " " + str(fields, "145"))
	if name != "" {
		return name
	}
	return str(fields, "3")
}
