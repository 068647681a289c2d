// Package delivery assembles reports and pushes them to the downstream automation
// platform.
package delivery

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/sections"
)

// PayloadVersion is bumped when the flattened payload shape changes.
const PayloadVersion = "1.0"

// BuildReport assembles the report for a merged pair.
func BuildReport(record *models.MergedRecord, result *models.MatchResult, generated map[string]models.Section) *models.Report {
	report := &models.Report{
		ReportID:         uuid.New().String(),
		IdentityKey:      record.IdentityKey,
		CaseID:           record.CaseID,
		ClientName:       sections.ClientName(record.Fields),
		IsCouple:         record.IsCouple,
		FactFindID:       record.FactFindID,
		AutomationFormID: record.AutomationFormID,
		Sections:         generated,
		GeneratedAt:      time.Now().UTC(),
		MatchReasons:     []string{},
	}
	if report.Sections == nil {
		report.Sections = map[string]models.Section{}
	}
	if result != nil {
		report.MatchConfidence = result.Confidence
		report.MatchReasons = append(report.MatchReasons, result.Reasons...)
	}
	return report
}

// Payload flattens a report into the single-level map the automation platform maps
// fields from.
func Payload(report *models.Report) map[string]any {
	payload := map[string]any{
		"report_id":          report.ReportID,
		"client_email":       report.IdentityKey,
		"client_name":        report.ClientName,
		"case_id":            report.CaseID,
		"is_couple":          report.IsCouple,
		"match_confidence":   report.MatchConfidence,
		"match_reasons":      strings.Join(report.MatchReasons, "; "),
		"fact_find_id":       report.FactFindID,
		"automation_form_id": report.AutomationFormID,
		"generated_at":       report.GeneratedAt.Format(time.RFC3339),
		"payload_version":    PayloadVersion,
		"source":             "clover",
	}

	for id, section := range report.Sections {
		for k, v := range Flatten(section.Data, id) {
			payload[k] = v
		}
		if section.RecommendationStatus != "" {
			payload[id+"_recommendation_status"] = section.RecommendationStatus
		}
	}
	return payload
}
