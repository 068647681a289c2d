package merging

import (
	"context"
	"fmt"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/tracing"
)

// Engine produces merged records for confident pairs.
type Engine struct {
	logger ectologger.Logger
}

// NewEngine creates a new merge engine
func NewEngine(logger ectologger.Logger) *Engine {
	return &Engine{logger: logger}
}

// MergePair merges a pair with the fact find as base and the automation form as
// overlay. The source submissions are read, never written.
func (e *Engine) MergePair(ctx context.Context, pair models.Pair, result *models.MatchResult) (*models.MergedRecord, error) {
	ctx, span := tracing.StartSpan(ctx, "merging.Engine.MergePair")
	defer span.End()

	if pair.FactFind == nil || pair.Automation == nil {
		return nil, fmt.Errorf("merge requires both a fact find and an automation form")
	}

	fields, conflicts := MergeWithConflicts(pair.FactFind.Fields, pair.Automation.Fields)

	record := &models.MergedRecord{
		IdentityKey:      pair.FactFind.IdentityKey,
		CaseID:           pair.FactFind.CaseID,
		Fields:           fields,
		FactFindID:       pair.FactFind.ID,
		AutomationFormID: pair.Automation.ID,
		Conflicts:        conflicts,
		IsCouple:         coupleStatus(pair),
	}
	if result != nil {
		record.SourceConfidence = result.Confidence
	}

	e.logger.WithContext(ctx).WithFields(map[string]any{
		"identity_key":       record.IdentityKey,
		"fact_find_id":       record.FactFindID,
		"automation_form_id": record.AutomationFormID,
		"field_count":        len(fields),
		"conflict_count":     len(conflicts),
	}).Debug("Merged submission pair")

	return record, nil
}

// coupleStatus follows the merge policy: a known automation answer wins over the
// fact find.
func coupleStatus(pair models.Pair) bool {
	if couple, known := pair.Automation.CoupleStatus(); known {
		return couple
	}
	couple, _ := pair.FactFind.CoupleStatus()
	return couple
}
