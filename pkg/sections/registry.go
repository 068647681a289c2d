// Package sections turns a merged record into the report sections the downstream
// automation platform renders.
package sections

import (
	"fmt"
	"time"

	"github.com/Ramsey-B/clover/pkg/models"
)

// Section ids, in report order.
const (
	PersonalInformation = "personal_information"
	LifeInsurance       = "life_insurance"
	TraumaInsurance     = "trauma_insurance"
	IncomeProtection    = "income_protection"
	HealthInsurance     = "health_insurance"
	AccidentalInjury    = "accidental_injury"
	ScopeOfAdvice       = "scope_of_advice"
)

// Input is what every generator sees. Fields is the merged record and must not be
// modified.
type Input struct {
	Fields     models.Fields
	IsCouple   bool
	ClientName string
	Now        time.Time
}

// Generator builds one section. Generators are pure and total: any field map, including
// an empty one, produces a section.
type Generator func(in Input) models.Section

// Registry holds generators in registration order.
type Registry struct {
	order      []string
	generators map[string]Generator
}

// NewRegistry returns a registry with every built-in section.
func NewRegistry() *Registry {
	r := &Registry{generators: make(map[string]Generator)}
	r.Register(PersonalInformation, PersonalInformationSection)
	r.Register(LifeInsurance, LifeInsuranceSection)
	r.Register(TraumaInsurance, TraumaInsuranceSection)
	r.Register(IncomeProtection, IncomeProtectionSection)
	r.Register(HealthInsurance, HealthInsuranceSection)
	r.Register(AccidentalInjury, AccidentalInjurySection)
	r.Register(ScopeOfAdvice, ScopeOfAdviceSection)
	return r
}

// Register adds or replaces a generator. Replacing keeps the original position.
func (r *Registry) Register(id string, g Generator) {
	if _, exists := r.generators[id]; !exists {
		r.order = append(r.order, id)
	}
	r.generators[id] = g
}

// IDs returns the registered section ids in order.
func (r *Registry) IDs() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Generate runs one generator by id.
func (r *Registry) Generate(id string, in Input) (models.Section, error) {
	g, ok := r.generators[id]
	if !ok {
		return models.Section{}, fmt.Errorf("unknown section %q", id)
	}
	return g(in), nil
}

// GenerateAll runs every generator.
func (r *Registry) GenerateAll(in Input) map[string]models.Section {
	out := make(map[string]models.Section, len(r.order))
	for _, id := range r.order {
		section := r.generators[id](in)
		section.ID = id
		out[id] = section
	}
	return out
}

// InputFor builds generator input from a merged record.
func InputFor(record *models.MergedRecord, now time.Time) Input {
	return Input{
		Fields:     record.Fields,
		IsCouple:   record.IsCouple,
		ClientName: ClientName(record.Fields),
		Now:        now,
	}
}
