// Package recordstore holds every accepted submission for the life of the process.
package recordstore

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/Ramsey-B/clover/pkg/models"
)

var (
	ErrNilSubmission = errors.New("submission is nil")
	ErrInvalidKind   = errors.New("submission kind is invalid")
	ErrEmptyIdentity = errors.New("submission identity key is empty")

	// ErrDuplicateSubmission is returned when a submission with the same ID is already stored.
	ErrDuplicateSubmission = errors.New("submission already recorded")
)

type entry struct {
	submissions map[models.Kind][]*models.Submission
}

// Store is an append-only, lock-guarded store of submissions keyed by identity key and
// kind. A single store is owned by the orchestrator and passed explicitly to readers.
type Store struct {
	mu      sync.RWMutex
	entries map[string]*entry

	matchesEvaluated int
	confidentMatches int
	confidenceTotal  float64
}

// New creates an empty store.
func New() *Store {
	return &Store{
		entries: make(map[string]*entry),
	}
}

// Add appends a copy of the submission. Earlier submissions for the same identity and
// kind are kept. Adding an ID that is already stored fails with ErrDuplicateSubmission.
func (s *Store) Add(sub *models.Submission) error {
	if sub == nil {
		return ErrNilSubmission
	}
	if !sub.Kind.Valid() {
		return ErrInvalidKind
	}
	if sub.IdentityKey == "" {
		return ErrEmptyIdentity
	}

	stored := sub.Clone()

	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[stored.IdentityKey]
	if !ok {
		e = &entry{submissions: make(map[models.Kind][]*models.Submission, 2)}
		s.entries[stored.IdentityKey] = e
	}
	for _, existing := range e.submissions[stored.Kind] {
		if stored.ID != "" && existing.ID == stored.ID {
			return fmt.Errorf("%w: %s", ErrDuplicateSubmission, stored.ID)
		}
	}
	e.submissions[stored.Kind] = append(e.submissions[stored.Kind], stored)
	return nil
}

// AllOfKind returns the submissions for an identity and kind, oldest first. The
// returned slice is a copy; the submissions themselves must be treated as read-only.
func (s *Store) AllOfKind(identityKey string, kind models.Kind) []*models.Submission {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.entries[identityKey]
	if !ok {
		return []*models.Submission{}
	}
	subs := e.submissions[kind]
	out := make([]*models.Submission, len(subs))
	copy(out, subs)
	return out
}

// IdentityKeys returns every identity with at least one submission, sorted.
func (s *Store) IdentityKeys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make([]string, 0, len(s.entries))
	for k := range s.entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// RecordMatch folds one evaluated match into the running statistics.
func (s *Store) RecordMatch(result *models.MatchResult) {
	if result == nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.matchesEvaluated++
	s.confidenceTotal += result.Confidence
	if result.Confident {
		s.confidentMatches++
	}
}

// Statistics returns counts over the whole store.
func (s *Store) Statistics() models.Statistics {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := models.Statistics{
		TotalIdentities:  len(s.entries),
		MatchesEvaluated: s.matchesEvaluated,
		ConfidentMatches: s.confidentMatches,
	}
	if s.matchesEvaluated > 0 {
		stats.AverageConfidence = s.confidenceTotal / float64(s.matchesEvaluated)
	}

	for _, e := range s.entries {
		ff := len(e.submissions[models.KindFactFind])
		af := len(e.submissions[models.KindAutomation])
		stats.TotalFactFinds += ff
		stats.TotalAutomationForms += af
		switch {
		case ff > 0 && af == 0:
			stats.FactFindOnly++
		case af > 0 && ff == 0:
			stats.AutomationOnly++
		}
	}

	return stats
}
