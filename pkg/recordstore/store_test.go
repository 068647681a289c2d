package recordstore

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/clover/pkg/models"
)

func submission(id string, kind models.Kind, key string) *models.Submission {
	return &models.Submission{
		ID:          id,
		Kind:        kind,
		IdentityKey: key,
		Fields:      models.Fields{"380": 0.0},
		SubmittedAt: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestAddAppendsInOrder(t *testing.T) {
	store := New()
	require.NoError(t, store.Add(submission("ff-1", models.KindFactFind, "a@x.nz")))
	require.NoError(t, store.Add(submission("ff-2", models.KindFactFind, "a@x.nz")))
	require.NoError(t, store.Add(submission("af-1", models.KindAutomation, "a@x.nz")))

	ffs := store.AllOfKind("a@x.nz", models.KindFactFind)
	require.Len(t, ffs, 2)
	assert.Equal(t, "ff-1", ffs[0].ID)
	assert.Equal(t, "ff-2", ffs[1].ID)

	afs := store.AllOfKind("a@x.nz", models.KindAutomation)
	require.Len(t, afs, 1)
	assert.Equal(t, "af-1", afs[0].ID)
}

func TestAllOfKindUnknownIdentity(t *testing.T) {
	store := New()
	got := store.AllOfKind("nobody@x.nz", models.KindFactFind)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestAddRejectsInvalid(t *testing.T) {
	store := New()
	assert.ErrorIs(t, store.Add(nil), ErrNilSubmission)
	assert.ErrorIs(t, store.Add(submission("x", models.Kind("quote"), "a@x.nz")), ErrInvalidKind)
	assert.ErrorIs(t, store.Add(submission("x", models.KindFactFind, "")), ErrEmptyIdentity)
	assert.Empty(t, store.IdentityKeys())
}

func TestAddRejectsDuplicateID(t *testing.T) {
	store := New()
	require.NoError(t, store.Add(submission("kafka:forms:0:7", models.KindFactFind, "a@x.nz")))

	err := store.Add(submission("kafka:forms:0:7", models.KindFactFind, "a@x.nz"))
	assert.ErrorIs(t, err, ErrDuplicateSubmission)
	assert.Len(t, store.AllOfKind("a@x.nz", models.KindFactFind), 1)
	assert.Equal(t, 1, store.Statistics().TotalFactFinds)

	require.NoError(t, store.Add(submission("kafka:forms:0:8", models.KindFactFind, "a@x.nz")))
	assert.Len(t, store.AllOfKind("a@x.nz", models.KindFactFind), 2)
}

func TestStoredSubmissionsAreIsolated(t *testing.T) {
	store := New()
	sub := submission("ff-1", models.KindFactFind, "a@x.nz")
	require.NoError(t, store.Add(sub))

	sub.Fields["380"] = 99.0
	stored := store.AllOfKind("a@x.nz", models.KindFactFind)
	assert.Equal(t, 0.0, stored[0].Fields["380"])
}

func TestStatistics(t *testing.T) {
	store := New()
	require.NoError(t, store.Add(submission("ff-1", models.KindFactFind, "solo@x.nz")))
	require.NoError(t, store.Add(submission("af-1", models.KindAutomation, "adviser@x.nz")))
	require.NoError(t, store.Add(submission("ff-2", models.KindFactFind, "pair@x.nz")))
	require.NoError(t, store.Add(submission("af-2", models.KindAutomation, "pair@x.nz")))

	store.RecordMatch(&models.MatchResult{Confidence: 0.9, Confident: true})
	store.RecordMatch(&models.MatchResult{Confidence: 0.5})
	store.RecordMatch(nil)

	stats := store.Statistics()
	assert.Equal(t, 2, stats.TotalFactFinds)
	assert.Equal(t, 2, stats.TotalAutomationForms)
	assert.Equal(t, 3, stats.TotalIdentities)
	assert.Equal(t, 2, stats.MatchesEvaluated)
	assert.Equal(t, 1, stats.ConfidentMatches)
	assert.InDelta(t, 0.7, stats.AverageConfidence, 1e-9)
	assert.Equal(t, 1, stats.FactFindOnly)
	assert.Equal(t, 1, stats.AutomationOnly)
}

func TestConcurrentAdds(t *testing.T) {
	store := New()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			key := fmt.Sprintf("client-%d@x.nz", i%5)
			_ = store.Add(submission(fmt.Sprintf("ff-%d", i), models.KindFactFind, key))
			_ = store.AllOfKind(key, models.KindFactFind)
		}(i)
	}
	wg.Wait()

	stats := store.Statistics()
	assert.Equal(t, 50, stats.TotalFactFinds)
	assert.Equal(t, 5, stats.TotalIdentities)
	assert.Len(t, store.IdentityKeys(), 5)
}
