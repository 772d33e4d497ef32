package deid

import (
	"fmt"
	"regexp"

	"github.com/google/uuid"

	"github.com/astrahealth/deid/internal/platform/detect"
)

// Record is a schema-free patient record or payer payload: named fields
// whose values are strings, numbers, nested objects, or arrays, exactly as
// decoded from JSON. The field set is deployment-specific; the engines never
// assume a particular shape.
type Record map[string]interface{}

// MappingEntry associates one placeholder token with the original value it
// replaced. Entries live only in the mapping store under their record
// identifier; the engines never retain them beyond a single operation.
type MappingEntry struct {
	Placeholder string            `json:"placeholder"`
	Value       string            `json:"value"`
	Type        detect.EntityType `json:"type"`
}

// MappingInfo describes a stored mapping set without exposing the mapped
// values. Served by the mapping inspection endpoint.
type MappingInfo struct {
	RecordID   string   `json:"record_id"`
	EntryCount int      `json:"entry_count"`
	Types      []string `json:"types"`
}

// PlaceholderPattern matches any placeholder-shaped token, known or forged:
// [[TAG#seq:idhex8]], e.g. [[NAME#1:1b9d6bcd]]. The doubled brackets keep
// tokens from colliding with natural text or markup echoed by payers.
var PlaceholderPattern = regexp.MustCompile(`\[\[[A-Z]+#\d+:[0-9a-f]{8}\]\]`)

// newPlaceholder builds the token for the seq-th entity of a type within
// one record. The identifier prefix ties every token to its record, which
// keeps tokens globally unique across records.
func newPlaceholder(t detect.EntityType, seq int, id uuid.UUID) string {
	return fmt.Sprintf("[[%s#%d:%s]]", t.Tag(), seq, id.String()[:8])
}
