// Package detect classifies PII spans in free text and structured field
// values using an ordered table of regex rules. The rule-based detector is
// one implementation of the Detector capability; a model-based NER detector
// can satisfy the same interface.
package detect

import (
	"regexp"
	"sort"
)

// EntityType classifies the kind of sensitive data found.
type EntityType string

// Supported PII entity types, in detection priority order. The most
// format-specific rules come first so that, for example, an SSN is never
// half-claimed by the looser phone rule. The capitalized-name rule is the
// loosest and runs last; the sensitive-phrase rule is a catch-all for
// treatment recommendations in clinical notes.
const (
	EntitySSN       EntityType = "ssn"
	EntityPhone     EntityType = "phone"
	EntityEmail     EntityType = "email"
	EntityDOB       EntityType = "dob"
	EntityAddress   EntityType = "address"
	EntityName      EntityType = "name"
	EntitySensitive EntityType = "sensitive"
)

// Tag returns the uppercase tag used inside placeholder tokens.
func (t EntityType) Tag() string {
	switch t {
	case EntitySSN:
		return "SSN"
	case EntityPhone:
		return "PHONE"
	case EntityEmail:
		return "EMAIL"
	case EntityDOB:
		return "DOB"
	case EntityAddress:
		return "ADDRESS"
	case EntityName:
		return "NAME"
	case EntitySensitive:
		return "SENSITIVE"
	}
	return "PII"
}

// Match is a detected PII span within a single text value. Offsets are byte
// offsets into the scanned string; End is exclusive.
type Match struct {
	Type  EntityType
	Start int
	End   int
	Value string
}

// Detector finds PII spans in a text value. Implementations must be pure:
// no side effects, empty result (never an error) when nothing matches, and
// non-overlapping matches.
type Detector interface {
	Detect(text string) []Match
}

// rule pairs a compiled regex with its entity type.
type rule struct {
	re         *regexp.Regexp
	entityType EntityType
}

// RuleDetector is the regex-based Detector. Rules are tried in priority
// order; a span claimed by a higher-priority rule removes any overlapping
// candidate from lower-priority rules, so no character is masked twice.
type RuleDetector struct {
	rules []rule
}

// NewRuleDetector builds a detector with the default rule set: SSN, phone,
// email, date of birth, street address, full name, and treatment-phrase
// patterns. Values the rules do not cover pass through undetected; that is
// a documented accuracy limitation of pattern-based detection, not an error.
func NewRuleDetector() *RuleDetector {
	specs := []struct {
		expr       string
		entityType EntityType
	}{
		{`\b\d{3}-\d{2}-\d{4}\b|\b\d{9}\b`, EntitySSN},
		{`(?:\+?1[-.\s])?\(?\d{3}\)?[-.\s]\d{3}[-.\s]?\d{4}\b`, EntityPhone},
		{`\b[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}\b`, EntityEmail},
		{`\b\d{4}-\d{2}-\d{2}\b|\b\d{2}[-/]\d{2}[-/]\d{4}\b`, EntityDOB},
		{`\b\d+\s+(?:[A-Za-z]+\s+){1,4}(?:Street|St|Avenue|Ave|Road|Rd|Boulevard|Blvd|Lane|Ln|Drive|Dr|Court|Ct)\b`, EntityAddress},
		{`\b[A-Z][a-z]+\s[A-Z][a-z]+\b`, EntityName},
		{`(?i)\b(?:[a-z][a-z-]+\s+){0,2}(?:therapy|chemotherapy|dialysis|transplant|counseling)\b`, EntitySensitive},
	}

	d := &RuleDetector{rules: make([]rule, 0, len(specs))}
	for _, s := range specs {
		d.rules = append(d.rules, rule{re: regexp.MustCompile(s.expr), entityType: s.entityType})
	}
	return d
}

// Detect scans text with every rule in priority order and returns the
// surviving matches sorted by start offset. Within one rule, matches are
// accepted leftmost-first.
func (d *RuleDetector) Detect(text string) []Match {
	if text == "" {
		return nil
	}

	var matches []Match
	for _, r := range d.rules {
		for _, loc := range r.re.FindAllStringIndex(text, -1) {
			if overlaps(matches, loc[0], loc[1]) {
				continue
			}
			matches = append(matches, Match{
				Type:  r.entityType,
				Start: loc[0],
				End:   loc[1],
				Value: text[loc[0]:loc[1]],
			})
		}
	}

	sort.Slice(matches, func(i, j int) bool { return matches[i].Start < matches[j].Start })
	return matches
}

// overlaps reports whether [start,end) intersects any already-claimed span.
func overlaps(claimed []Match, start, end int) bool {
	for _, m := range claimed {
		if start < m.End && end > m.Start {
			return true
		}
	}
	return false
}
