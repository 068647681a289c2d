package fingerprint

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Ramsey-B/clover/pkg/models"
)

func TestGenerateIsOrderIndependent(t *testing.T) {
	a := map[string]any{"b": 1.0, "a": map[string]any{"y": "2", "x": []any{"1", true}}}
	b := map[string]any{"a": map[string]any{"x": []any{"1", true}, "y": "2"}, "b": 1.0}

	assert.Equal(t, Generate(a), Generate(b))
	assert.Len(t, Generate(a), 64)
	assert.NotEqual(t, Generate(a), Generate(map[string]any{"b": 2.0}))
}

func TestGenerateWithExclusions(t *testing.T) {
	base := map[string]any{"name": "Jane", "meta": map[string]any{"version": 1.0, "owner": "x"}}
	changed := map[string]any{"name": "Jane", "meta": map[string]any{"version": 2.0, "owner": "x"}}

	assert.NotEqual(t, Generate(base), Generate(changed))
	assert.Equal(t,
		GenerateWithExclusions(base, map[string]bool{"meta.version": true}),
		GenerateWithExclusions(changed, map[string]bool{"meta.version": true}),
	)
	assert.Equal(t,
		GenerateWithExclusions(base, map[string]bool{"meta": true}),
		GenerateWithExclusions(map[string]any{"name": "Jane"}, nil),
	)
}

func TestPair(t *testing.T) {
	ff := &models.Submission{ID: "ff-1", IdentityKey: "a@x.nz"}
	af := &models.Submission{ID: "af-1", IdentityKey: "a@x.nz"}
	resubmitted := &models.Submission{ID: "af-2", IdentityKey: "a@x.nz"}

	merged := models.Fields{"380": 50000.0, "date_created": "2025-01-01 10:00:00"}
	sameAnswersLater := models.Fields{"380": 50000.0, "date_created": "2025-01-03 10:00:00"}
	newAnswers := models.Fields{"380": 75000.0, "date_created": "2025-01-03 10:00:00"}

	first := Pair(ff, af, merged)
	assert.Equal(t, first, Pair(ff, resubmitted, sameAnswersLater))
	assert.NotEqual(t, first, Pair(ff, resubmitted, newAnswers))
	assert.NotEqual(t, first, Pair(&models.Submission{IdentityKey: "b@x.nz"}, af, merged))
}
