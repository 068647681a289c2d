package merging

import (
	"context"
	"testing"

	"github.com/Gobusters/ectologger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/clover/pkg/models"
)

func TestIsMeaningful(t *testing.T) {
	tests := []struct {
		name  string
		value any
		want  bool
	}{
		{"nil", nil, false},
		{"empty string", "", false},
		{"false", false, false},
		{"true", true, true},
		{"zero float", 0.0, true},
		{"zero int", 0, true},
		{"whitespace", " ", true},
		{"text", "Janet", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsMeaningful(tt.value))
		})
	}
}

func TestMerge(t *testing.T) {
	tests := []struct {
		name    string
		base    models.Fields
		overlay models.Fields
		want    models.Fields
	}{
		{
			name:    "zero in base survives absent overlay key",
			base:    models.Fields{"380": 0},
			overlay: models.Fields{},
			want:    models.Fields{"380": 0},
		},
		{
			name:    "empty overlay string does not override",
			base:    models.Fields{"144": "Jane"},
			overlay: models.Fields{"144": ""},
			want:    models.Fields{"144": "Jane"},
		},
		{
			name:    "meaningful overlay string overrides",
			base:    models.Fields{"144": "Jane"},
			overlay: models.Fields{"144": "Janet"},
			want:    models.Fields{"144": "Janet"},
		},
		{
			name:    "false overlay does not override",
			base:    models.Fields{"276": true},
			overlay: models.Fields{"276": false},
			want:    models.Fields{"276": true},
		},
		{
			name:    "nil overlay does not override",
			base:    models.Fields{"8": "Married"},
			overlay: models.Fields{"8": nil},
			want:    models.Fields{"8": "Married"},
		},
		{
			name:    "zero overlay overrides",
			base:    models.Fields{"344": 500000.0},
			overlay: models.Fields{"344": 0.0},
			want:    models.Fields{"344": 0.0},
		},
		{
			name:    "overlay type wins when meaningful",
			base:    models.Fields{"10": "85,000"},
			overlay: models.Fields{"10": 90000.0},
			want:    models.Fields{"10": 90000.0},
		},
		{
			name:    "overlay only keys are added",
			base:    models.Fields{"219": "a@x.nz"},
			overlay: models.Fields{"39": "couple", "40": ""},
			want:    models.Fields{"219": "a@x.nz", "39": "couple"},
		},
		{
			name:    "both empty",
			base:    models.Fields{},
			overlay: models.Fields{},
			want:    models.Fields{},
		},
		{
			name:    "nil maps",
			base:    nil,
			overlay: nil,
			want:    models.Fields{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Merge(tt.base, tt.overlay))
		})
	}
}

func TestMergeDoesNotMutateInputs(t *testing.T) {
	base := models.Fields{"144": "Jane", "380": 50000.0}
	overlay := models.Fields{"144": "Janet", "380": ""}

	merged := Merge(base, overlay)
	merged["new"] = "value"

	assert.Equal(t, models.Fields{"144": "Jane", "380": 50000.0}, base)
	assert.Equal(t, models.Fields{"144": "Janet", "380": ""}, overlay)
}

func TestMergeWithConflicts(t *testing.T) {
	base := models.Fields{"144": "Jane", "145": "Smith", "344": 500000.0, "8": "Married"}
	overlay := models.Fields{"144": "Janet", "145": "Smith", "344": "500000", "8": ""}

	merged, conflicts := MergeWithConflicts(base, overlay)

	assert.Equal(t, "Janet", merged["144"])
	assert.Equal(t, "Married", merged["8"])
	require.Len(t, conflicts, 2)
	assert.Equal(t, "144", conflicts[0].Field)
	assert.Equal(t, "Jane", conflicts[0].BaseValue)
	assert.Equal(t, "Janet", conflicts[0].OverlayValue)
	assert.Equal(t, ResolutionOverlay, conflicts[0].Resolution)
	// same digits, different type is still a change of value
	assert.Equal(t, "344", conflicts[1].Field)
}

func TestEngineMergePair(t *testing.T) {
	engine := NewEngine(ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {}))
	couple := true

	ff := &models.Submission{ID: "ff-1", Kind: models.KindFactFind, IdentityKey: "a@x.nz", Fields: models.Fields{"380": 50000.0}, IsCouple: &couple}
	af := &models.Submission{ID: "af-1", Kind: models.KindAutomation, IdentityKey: "a@x.nz", Fields: models.Fields{"380": ""}}

	// arrival order must not change the roles
	pair, err := models.NewPair(af, ff)
	require.NoError(t, err)

	record, err := engine.MergePair(context.Background(), pair, &models.MatchResult{Confidence: 0.9})
	require.NoError(t, err)

	assert.Equal(t, 50000.0, record.Fields["380"])
	assert.Equal(t, "a@x.nz", record.IdentityKey)
	assert.Equal(t, "ff-1", record.FactFindID)
	assert.Equal(t, "af-1", record.AutomationFormID)
	assert.Equal(t, 0.9, record.SourceConfidence)
	assert.True(t, record.IsCouple)
	assert.Equal(t, "", af.Fields["380"])
}

func TestEngineMergePairRequiresBothSides(t *testing.T) {
	engine := NewEngine(ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {}))
	_, err := engine.MergePair(context.Background(), models.Pair{}, nil)
	assert.Error(t, err)
}
