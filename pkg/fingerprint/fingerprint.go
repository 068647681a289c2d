// Package fingerprint derives stable content hashes used to recognise a pair that has
// already been delivered.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
	"strings"

	"github.com/Ramsey-B/clover/pkg/models"
)

// VolatileFields are form keys that change on every resubmission without changing the
// client's answers.
var VolatileFields = map[string]bool{
	"id":           true,
	"entry_id":     true,
	"date_created": true,
	"date_updated": true,
	"source_url":   true,
}

// Generate creates a deterministic fingerprint for a map.
// The fingerprint is a SHA256 hash of the canonicalized JSON.
func Generate(data map[string]any) string {
	return GenerateWithExclusions(data, nil)
}

// GenerateWithExclusions creates a fingerprint excluding the given dot-notation paths.
// Excluding a parent path excludes everything beneath it.
func GenerateWithExclusions(data map[string]any, excludeFields map[string]bool) string {
	var b strings.Builder
	canonicalize(&b, data, excludeFields, "")

	hash := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(hash[:])
}

// Pair fingerprints a matched pair by who it is about and what the merged record says.
// Submission ids are left out so a resubmission with identical answers hashes the same.
func Pair(factFind, automation *models.Submission, merged models.Fields) string {
	data := map[string]any{
		"fields": map[string]any(merged),
	}
	if factFind != nil {
		data["fact_find_identity"] = factFind.IdentityKey
	}
	if automation != nil {
		data["automation_identity"] = automation.IdentityKey
	}

	exclude := make(map[string]bool, len(VolatileFields))
	for k := range VolatileFields {
		exclude["fields."+k] = true
	}
	return GenerateWithExclusions(data, exclude)
}

func canonicalize(b *strings.Builder, data any, excludeFields map[string]bool, currentPath string) {
	switch v := data.(type) {
	case map[string]any:
		canonicalizeMap(b, v, excludeFields, currentPath)
	case models.Fields:
		canonicalizeMap(b, v, excludeFields, currentPath)
	case []any:
		b.WriteByte('[')
		for i, item := range v {
			if i > 0 {
				b.WriteByte(',')
			}
			// array elements share their parent's path
			canonicalize(b, item, excludeFields, currentPath)
		}
		b.WriteByte(']')
	default:
		raw, _ := json.Marshal(v)
		b.Write(raw)
	}
}

func canonicalizeMap(b *strings.Builder, m map[string]any, excludeFields map[string]bool, currentPath string) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	b.WriteByte('{')
	first := true
	for _, k := range keys {
		fieldPath := k
		if currentPath != "" {
			fieldPath = currentPath + "." + k
		}
		if shouldExclude(fieldPath, excludeFields) {
			continue
		}

		if !first {
			b.WriteByte(',')
		}
		first = false
		keyJSON, _ := json.Marshal(k)
		b.Write(keyJSON)
		b.WriteByte(':')
		canonicalize(b, m[k], excludeFields, fieldPath)
	}
	b.WriteByte('}')
}

func shouldExclude(fieldPath string, excludeFields map[string]bool) bool {
	if len(excludeFields) == 0 {
		return false
	}
	if excludeFields[fieldPath] {
		return true
	}
	for excluded := range excludeFields {
		if strings.HasPrefix(fieldPath, excluded+".") {
			return true
		}
	}
	return false
}
