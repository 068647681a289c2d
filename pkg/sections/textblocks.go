package sections

import (
	"github.com/Ramsey-B/clover/pkg/models"
)

var (
	mainIncomeProtection = []blockField{
		{"Monthly Mortgage", "420", currencyField},
		{"Living Expenses", "421", currencyField},
		{"Max Insurable Income", "422", currencyField},
		{"Income Type", "423", textField},
		{"LOE/MRC Type", "424", textField},
		{"ACC Offsets", "425", currencyField},
		{"Savings", "427", currencyField},
		{"Leave Entitlements $", "428", currencyField},
		{"Leave Entitlements Weeks", "429", numberField},
		{"Wait Period (weeks)", "430", numberField},
		{"Claim Period (years)", "431", numberField},
	}
	partnerIncomeProtection = []blockField{
		{"Monthly Mortgage", "433", currencyField},
		{"Living Expenses", "434", currencyField},
		{"Max Insurable Income", "435", currencyField},
		{"Income Type", "436", textField},
		{"LOE/MRC Type", "437", textField},
		{"ACC Offsets", "438", currencyField},
		{"Savings", "440", currencyField},
		{"Leave Entitlements $", "441", currencyField},
		{"Leave Entitlements Weeks", "442", numberField},
		{"Wait Period (weeks)", "443", numberField},
		{"Claim Period (years)", "444", numberField},
	}

	mainHealth = []blockField{
		{"Private Care Access", "449", yesNoField},
		{"Specialists/Tests", "450", yesNoField},
		{"Non-Pharmac Drugs", "451", yesNoField},
		{"Dental/Optical/Physio", "452", yesNoField},
		{"Base Excess", "453", currencyField},
		{"Child Coverage", "454", yesNoField},
	}
	partnerHealth = []blockField{
		{"Private Care Access", "456", yesNoField},
		{"Specialists/Tests", "457", yesNoField},
		{"Non-Pharmac Drugs", "458", yesNoField},
		{"Dental/Optical/Physio", "459", yesNoField},
		{"Base Excess", "460", currencyField},
		{"Child Coverage", "461", yesNoField},
	}

	mainAccident    = []blockField{{"Accident Cover Relevant", "446", yesNoField}}
	partnerAccident = []blockField{{"Accident Cover Relevant", "447", yesNoField}}
)

type textBlockSection struct {
	id           string
	mainTitle    string
	partnerTitle string
	main         []blockField
	partner      []blockField
	emptyText    string
	notesField   string
}

func (s textBlockSection) generate(in Input) models.Section {
	isCouple := in.IsCouple || anyPresent(in.Fields, ids(s.partner)...)

	mainText := textBlock(in.Fields, s.mainTitle, s.main)
	partnerText := ""
	if isCouple {
		partnerText = textBlock(in.Fields, s.partnerTitle, s.partner)
	}

	mainNeeds, partnerNeeds := mainText != "", partnerText != ""
	if !mainNeeds {
		mainText = s.emptyText
	}

	sectionNotes := noAdditionalNotes
	if s.notesField != "" {
		sectionNotes = notes(in.Fields, s.notesField)
	}

	return models.Section{
		ID:                   s.id,
		RecommendationStatus: recommendation(isCouple, mainNeeds, partnerNeeds),
		Data: map[string]any{
			"client_name":      in.ClientName,
			"is_couple":        isCouple,
			s.id + "_main":     mainText,
			s.id + "_partner":  partnerText,
			s.id + "_notes":    sectionNotes,
			"main_has_data":    mainNeeds,
			"partner_has_data": partnerNeeds,
		},
	}
}

func ids(layout []blockField) []string {
	out := make([]string, len(layout))
	for i, f := range layout {
		out[i] = f.id
	}
	return out
}

var (
	incomeProtection = textBlockSection{
		id:           IncomeProtection,
		mainTitle:    "MAIN PERSON INCOME PROTECTION",
		partnerTitle: "PARTNER INCOME PROTECTION",
		main:         mainIncomeProtection,
		partner:      partnerIncomeProtection,
		emptyText:    "No income protection data",
		notesField:   "508",
	}
	healthInsurance = textBlockSection{
		id:           HealthInsurance,
		mainTitle:    "MAIN PERSON HEALTH INSURANCE",
		partnerTitle: "PARTNER HEALTH INSURANCE",
		main:         mainHealth,
		partner:      partnerHealth,
		emptyText:    "No health insurance data",
		notesField:   "510",
	}
	accidentalInjury = textBlockSection{
		id:           AccidentalInjury,
		mainTitle:    "MAIN PERSON ACCIDENTAL INJURY",
		partnerTitle: "PARTNER ACCIDENTAL INJURY",
		main:         mainAccident,
		partner:      partnerAccident,
		emptyText:    "No accidental injury coverage needed",
	}
)

// IncomeProtectionSection renders income protection inputs as text blocks.
func IncomeProtectionSection(in Input) models.Section { return incomeProtection.generate(in) }

// HealthInsuranceSection renders health insurance preferences as text blocks.
func HealthInsuranceSection(in Input) models.Section { return healthInsurance.generate(in) }

// AccidentalInjurySection records whether accident cover is relevant for each person.
func AccidentalInjurySection(in Input) models.Section { return accidentalInjury.generate(in) }
