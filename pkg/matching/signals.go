package matching

import (
	"fmt"
	"sort"

	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/normalizers"
)

// nearMissSimilarity is the Jaro-Winkler score above which a mismatched email is
// reported as a probable typo.
const nearMissSimilarity = 0.9

// evaluation is one signal's score as a fraction of its weight, with the explanation.
type evaluation struct {
	fraction float64
	reason   string
	// gate stops scoring when the fraction is zero
	gate bool
}

type evaluator func(m *Matcher, pair models.Pair) evaluation

var evaluators = map[Signal]evaluator{
	SignalIdentity:         evaluateIdentity,
	SignalCoupleStatus:     evaluateCoupleStatus,
	SignalCaseID:           evaluateCaseID,
	SignalTiming:           evaluateTiming,
	SignalInsuranceAmounts: evaluateInsuranceAmounts,
}

func evaluateIdentity(m *Matcher, pair models.Pair) evaluation {
	a := normalizers.NormalizeEmail(pair.FactFind.IdentityKey)
	b := normalizers.NormalizeEmail(pair.Automation.IdentityKey)
	if a != "" && m.scorer.ExactMatch(a, b, false) == 1.0 {
		return evaluation{fraction: 1, reason: fmt.Sprintf("Email match: %s", a), gate: true}
	}

	reason := fmt.Sprintf("Email mismatch: %s vs %s", a, b)
	if sim := m.scorer.JaroWinkler(a, b); sim >= nearMissSimilarity {
		reason = fmt.Sprintf("%s (near miss, similarity %.2f)", reason, sim)
	}
	return evaluation{fraction: 0, reason: reason, gate: true}
}

func evaluateCoupleStatus(_ *Matcher, pair models.Pair) evaluation {
	ffCouple, ffKnown := pair.FactFind.CoupleStatus()
	afCouple, afKnown := pair.Automation.CoupleStatus()

	switch {
	case ffKnown && afKnown && ffCouple == afCouple:
		return evaluation{fraction: 1, reason: fmt.Sprintf("Couple status agrees: %s", coupleLabel(ffCouple))}
	case ffKnown && afKnown:
		return evaluation{fraction: 0, reason: fmt.Sprintf("Couple status disagrees: fact find says %s, automation form says %s", coupleLabel(ffCouple), coupleLabel(afCouple))}
	case !ffKnown && !afKnown:
		return evaluation{fraction: 0.5, reason: "Couple status unknown on both forms: half bonus"}
	case !ffKnown:
		return evaluation{fraction: 0.5, reason: "Couple status unknown on fact find: half bonus"}
	default:
		return evaluation{fraction: 0.5, reason: "Couple status unknown on automation form: half bonus"}
	}
}

func coupleLabel(couple bool) string {
	if couple {
		return "couple"
	}
	return "single"
}

func evaluateCaseID(_ *Matcher, pair models.Pair) evaluation {
	if pair.FactFind.CaseID != "" {
		return evaluation{fraction: 1, reason: fmt.Sprintf("Case ID present: %s", pair.FactFind.CaseID)}
	}
	return evaluation{fraction: 0, reason: "No case ID on fact find: no bonus"}
}

func evaluateTiming(m *Matcher, pair models.Pair) evaluation {
	a, b := pair.FactFind.SubmittedAt, pair.Automation.SubmittedAt
	if a.IsZero() || b.IsZero() {
		return evaluation{fraction: 0, reason: "Submission time unknown: no timing bonus"}
	}

	diff := a.Sub(b)
	if diff < 0 {
		diff = -diff
	}
	days := diff.Hours() / 24

	score := m.scorer.TieredProximity(a, b, m.config.FullTimingWindow, m.config.PartialTimingWindow)
	switch score {
	case 1.0:
		return evaluation{fraction: 1, reason: fmt.Sprintf("Forms submitted %.1f days apart", days)}
	case 0.5:
		return evaluation{fraction: 0.5, reason: fmt.Sprintf("Forms submitted %.1f days apart: half timing bonus", days)}
	default:
		window := m.config.PartialTimingWindow.Hours() / 24
		return evaluation{fraction: 0, reason: fmt.Sprintf("Forms submitted %.1f days apart: beyond %.0f day window (concerning)", days, window)}
	}
}

func evaluateInsuranceAmounts(m *Matcher, pair models.Pair) evaluation {
	keys := make([]string, 0)
	for k := range pair.FactFind.ExistingCover {
		if _, ok := pair.Automation.ExistingCover[k]; ok {
			keys = append(keys, k)
		}
	}
	if len(keys) == 0 {
		return evaluation{fraction: 0, reason: "No comparable insurance amounts: no match bonus"}
	}
	sort.Strings(keys)

	worst := 0.0
	for _, k := range keys {
		v := m.scorer.RelativeVariance(pair.FactFind.ExistingCover[k], pair.Automation.ExistingCover[k])
		if v > worst {
			worst = v
		}
	}

	if worst > m.config.AmountTolerance {
		return evaluation{fraction: 0, reason: fmt.Sprintf("Insurance amounts differ by %.0f%%: no match bonus", worst*100)}
	}
	return evaluation{fraction: 1, reason: fmt.Sprintf("Insurance amounts consistent (%d compared)", len(keys))}
}
