package models

import "time"

// Section is the output of one section generator.
type Section struct {
	ID                   string         `json:"section_id"`
	RecommendationStatus string         `json:"recommendation_status,omitempty"`
	Data                 map[string]any `json:"data"`
}

// Report is the payload assembled for the downstream automation platform.
type Report struct {
	ReportID         string             `json:"report_id"`
	IdentityKey      string             `json:"email"`
	CaseID           string             `json:"case_id,omitempty"`
	ClientName       string             `json:"client_name"`
	IsCouple         bool               `json:"is_couple"`
	MatchConfidence  float64            `json:"match_confidence"`
	MatchReasons     []string           `json:"match_reasons"`
	FactFindID       string             `json:"fact_find_id"`
	AutomationFormID string             `json:"automation_form_id"`
	Sections         map[string]Section `json:"sections"`
	GeneratedAt      time.Time          `json:"generated_at"`
}
