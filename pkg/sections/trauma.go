package sections

import (
	"github.com/Ramsey-B/clover/pkg/models"
)

type traumaFields struct {
	income, expenses, debt, medical, childcare, buyback, tpd, childTrauma, total string
}

var (
	mainTrauma    = traumaFields{"402", "486", "403", "404", "405", "406", "407", "408", "409"}
	partnerTrauma = traumaFields{"411", "487", "412", "413", "414", "415", "416", "417", "418"}
)

// TraumaInsuranceSection itemises trauma needs per person. An explicit total wins over
// the sum of the components.
func TraumaInsuranceSection(in Input) models.Section {
	isCouple := in.IsCouple
	data := map[string]any{
		"client_name":  in.ClientName,
		"trauma_notes": str(in.Fields, "506"),
	}

	main := traumaFor(in.Fields, mainTrauma, "main_", data)
	partner := int64(0)
	if isCouple {
		partner = traumaFor(in.Fields, partnerTrauma, "partner_", data)
		data["combined_trauma_coverage"] = main + partner
		data["both_need_trauma"] = main > 0 && partner > 0
	}
	data["is_couple"] = isCouple

	total := main + partner
	switch {
	case total == 0:
		data["trauma_coverage_level"] = "none"
	case total < 100000:
		data["trauma_coverage_level"] = "basic"
	case total < 300000:
		data["trauma_coverage_level"] = "moderate"
	default:
		data["trauma_coverage_level"] = "comprehensive"
	}

	data["includes_income_support"] = amount(in.Fields, mainTrauma.income) > 0 || amount(in.Fields, mainTrauma.expenses) > 0
	data["includes_medical_costs"] = amount(in.Fields, mainTrauma.medical) > 0
	data["includes_childcare"] = amount(in.Fields, mainTrauma.childcare) > 0
	data["includes_tpd_addon"] = amount(in.Fields, mainTrauma.tpd) > 0
	data["includes_child_trauma"] = amount(in.Fields, mainTrauma.childTrauma) > 0

	return models.Section{
		ID:                   TraumaInsurance,
		RecommendationStatus: recommendation(isCouple, main > 0, partner > 0),
		Data:                 data,
	}
}

// traumaFor writes the prefixed components into data and returns the person's total.
func traumaFor(fields models.Fields, f traumaFields, prefix string, data map[string]any) int64 {
	components := []struct {
		key string
		id  string
	}{
		{"replacement_income", f.income},
		{"replacement_expenses", f.expenses},
		{"debt_repayment", f.debt},
		{"medical_bills", f.medical},
		{"childcare_assistance", f.childcare},
		{"buyback_option", f.buyback},
		{"tpd_addon", f.tpd},
		{"additional_child_trauma", f.childTrauma},
	}

	var calculated int64
	for _, c := range components {
		v := amount(fields, c.id)
		data[prefix+c.key] = v
		calculated += v
	}

	total := amount(fields, f.total)
	if total == 0 {
		total = calculated
	}
	data[prefix+"total_trauma"] = total
	data[prefix+"needs_trauma"] = total > 0
	return total
}
