// Package merging reconciles a fact find and an automation form into one field set.
package merging

import (
	"fmt"
	"sort"

	"github.com/Ramsey-B/clover/pkg/models"
)

// ResolutionOverlay marks a conflict resolved in favour of the automation form.
const ResolutionOverlay = "overlay"

// IsMeaningful reports whether an overlay value carries information. Absent values,
// empty strings and boolean false do not. Numeric zero does.
func IsMeaningful(v any) bool {
	switch val := v.(type) {
	case nil:
		return false
	case string:
		return val != ""
	case bool:
		return val
	default:
		return true
	}
}

// Merge layers overlay onto base. Base values are only replaced by meaningful overlay
// values; keys only in base pass through. Neither input is modified.
func Merge(base, overlay models.Fields) models.Fields {
	merged, _ := MergeWithConflicts(base, overlay)
	return merged
}

// MergeWithConflicts merges like Merge and also reports every key where both sides
// held a meaningful value and the overlay replaced a different base value.
func MergeWithConflicts(base, overlay models.Fields) (models.Fields, []models.FieldConflict) {
	merged := make(models.Fields, len(base)+len(overlay))
	for k, v := range base {
		merged[k] = v
	}

	var conflicts []models.FieldConflict
	for k, v := range overlay {
		if !IsMeaningful(v) {
			continue
		}
		if prev, ok := base[k]; ok && IsMeaningful(prev) && !sameValue(prev, v) {
			conflicts = append(conflicts, models.FieldConflict{
				Field:        k,
				BaseValue:    prev,
				OverlayValue: v,
				Resolution:   ResolutionOverlay,
			})
		}
		merged[k] = v
	}

	sort.Slice(conflicts, func(i, j int) bool {
		return conflicts[i].Field < conflicts[j].Field
	})
	return merged, conflicts
}

func sameValue(a, b any) bool {
	return fmt.Sprintf("%T:%v", a, a) == fmt.Sprintf("%T:%v", b, b)
}
