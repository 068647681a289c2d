package sections

import (
	"fmt"
	"strings"

	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/normalizers"
)

type lifeFields struct {
	debt, income, education, final, other, assets, kiwisaver, total string
}

var (
	mainLife    = lifeFields{"380", "381", "382", "383", "384", "386", "388", "389"}
	partnerLife = lifeFields{"391", "392", "393", "394", "395", "397", "399", "400"}
)

type lifeNeeds struct {
	components map[string]any
	lines      []string
}

// LifeInsuranceSection computes needs minus offsets for each person. An explicit total
// cover figure is reported alongside the calculated net.
func LifeInsuranceSection(in Input) models.Section {
	isCouple := in.IsCouple || anyPresent(in.Fields, "391", "392", "393", "394", "395", "397", "399", "400")

	main := lifeNeedsFor(in.Fields, mainLife)
	data := map[string]any{
		"client_name":             in.ClientName,
		"is_couple":               isCouple,
		"life_insurance_main":     main.components,
		"main_needs_insurance":    len(main.components) > 0,
		"main_summary_text":       lifeSummary("Main Person", main),
		"needs_analysis_notes":    str(in.Fields, "504"),
		"partner_summary_text":    "",
		"partner_needs_insurance": false,
	}

	partnerNeeds := false
	if isCouple {
		partner := lifeNeedsFor(in.Fields, partnerLife)
		partnerNeeds = len(partner.components) > 0
		data["life_insurance_partner"] = partner.components
		data["partner_needs_insurance"] = partnerNeeds
		data["partner_summary_text"] = lifeSummary("Partner", partner)
	}

	return models.Section{
		ID:                   LifeInsurance,
		RecommendationStatus: recommendation(isCouple, len(main.components) > 0, partnerNeeds),
		Data:                 data,
	}
}

func lifeNeedsFor(fields models.Fields, f lifeFields) lifeNeeds {
	n := lifeNeeds{components: map[string]any{}}

	add := func(key, label string, value int64) {
		if value <= 0 {
			return
		}
		n.components[key] = value
		n.components[key+"_formatted"] = normalizers.FormatCurrency(value)
		if label != "" {
			n.lines = append(n.lines, fmt.Sprintf("  %s: %s", label, normalizers.FormatCurrency(value)))
		}
	}

	debt := amount(fields, f.debt)
	income := amount(fields, f.income)
	education := amount(fields, f.education)
	final := amount(fields, f.final)
	other := amount(fields, f.other)
	assets := amount(fields, f.assets)
	kiwisaver := amount(fields, f.kiwisaver)

	add("debt_repayment", "Debt Repayment", debt)
	add("replacement_income", "Income Replacement", income)
	add("child_education", "Child Education", education)
	add("final_expenses", "Final Expenses", final)
	add("other_considerations", "Other", other)

	needs := debt + income + education + final + other
	offsets := assets + kiwisaver
	add("total_needs", "Total Needs", needs)

	if offsets > 0 {
		n.lines = append(n.lines, "  Less Offsets:")
		if assets > 0 {
			n.lines = append(n.lines, "    Assets: "+normalizers.FormatCurrency(assets))
		}
		if kiwisaver > 0 {
			n.lines = append(n.lines, "    KiwiSaver: "+normalizers.FormatCurrency(kiwisaver))
		}
	}
	add("assets_offset", "", assets)
	add("kiwisaver_offset", "", kiwisaver)
	add("total_offsets", "", offsets)

	net := needs - offsets
	if net < 0 {
		net = 0
	}
	add("net_coverage_required", "Net Coverage Required", net)
	add("total_cover_needed", "Total Cover Needed", amount(fields, f.total))

	if len(n.components) > 0 {
		n.components["needs_life_insurance"] = true
	}
	return n
}

func lifeSummary(label string, n lifeNeeds) string {
	if len(n.components) == 0 {
		return label + ": No life insurance needed"
	}
	return strings.Join(append([]string{label + " Life Insurance Needs:"}, n.lines...), "\n")
}
