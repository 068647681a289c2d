package sections

import (
	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/normalizers"
)

type personFields struct {
	firstName, dob, occupation, salary, employer, selfEmployed, hours, will string
	fallbackLabel                                                           string
}

var (
	mainPerson = personFields{
		firstName: "144", dob: "94", occupation: "6", salary: "10", employer: "277",
		selfEmployed: "276", hours: "275", will: "26", fallbackLabel: "Client",
	}
	partnerPerson = personFields{
		firstName: "146", dob: "95", occupation: "40", salary: "42", employer: "297",
		selfEmployed: "483", hours: "295", will: "300", fallbackLabel: "Partner",
	}
)

// PersonalInformationSection summarises each person in the household.
func PersonalInformationSection(in Input) models.Section {
	people := []map[string]any{person(in, mainPerson)}

	isCouple := in.IsCouple || anyPresent(in.Fields, "146", "147")
	if isCouple {
		people = append(people, person(in, partnerPerson))
	}

	return models.Section{
		ID: PersonalInformation,
		Data: map[string]any{
			"client_name": in.ClientName,
			"is_couple":   isCouple,
			"household":   map[string]any{"people": people},
			"format":      map[string]any{"currency": "NZD", "locale": "en-NZ"},
		},
	}
}

func person(in Input, p personFields) map[string]any {
	label := str(in.Fields, p.firstName)
	if label == "" {
		label = p.fallbackLabel
	}

	age := 0
	if dob, ok := normalizers.Date(lookupRaw(in.Fields, p.dob)); ok {
		age = normalizers.Age(dob, in.Now)
	}

	selfEmployed, _ := normalizers.YesNo(lookupRaw(in.Fields, p.selfEmployed))
	employer := str(in.Fields, p.employer)
	if selfEmployed || employer == "" {
		employer = "Self-Employed"
	}

	return map[string]any{
		"label":                 label,
		"age":                   age,
		"occupation":            str(in.Fields, p.occupation),
		"employer":              employer,
		"salary_before_tax_nzd": amount(in.Fields, p.salary),
		"employment_status":     employmentStatus(selfEmployed, lookupRaw(in.Fields, p.hours)),
		"will_epa_status":       willStatus(lookupRaw(in.Fields, p.will)),
	}
}

func employmentStatus(selfEmployed bool, hours any) string {
	if selfEmployed {
		return "Self-Employed"
	}
	if h, ok := normalizers.Amount(hours); ok && h > 0 && h < 30 {
		return "Part-time"
	}
	return "Fulltime"
}

func willStatus(v any) string {
	yes, known := normalizers.YesNo(v)
	switch {
	case !known:
		return ""
	case yes:
		return "In Place"
	default:
		return "Not In Place"
	}
}
