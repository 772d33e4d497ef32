// Package deid implements reversible de-identification of patient records.
// Masking detects PII in a record, replaces each value with a placeholder
// token, and stores the token-to-value mapping under a fresh record
// identifier. Remapping restores the original values into any payload that
// echoes those tokens, such as a payer response built from a masked record.
package deid

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/astrahealth/deid/internal/platform/audit"
	"github.com/astrahealth/deid/internal/platform/auth"
	"github.com/astrahealth/deid/internal/platform/detect"
)

type Service struct {
	detector detect.Detector
	repo     MappingRepository
	audit    audit.Recorder
	log      zerolog.Logger
}

func NewService(detector detect.Detector, repo MappingRepository, rec audit.Recorder, log zerolog.Logger) *Service {
	return &Service{detector: detector, repo: repo, audit: rec, log: log}
}

// MaskResult is the outcome of one masking operation.
type MaskResult struct {
	RecordID   uuid.UUID
	Masked     Record
	EntryCount int
}

// Mask de-identifies a record. It returns the masked copy and the identifier
// under which the mapping set was stored. The input record is not modified.
// Masking is atomic: if the mapping set cannot be persisted, no masked record
// is returned and nothing is stored.
func (s *Service) Mask(ctx context.Context, record Record) (*MaskResult, error) {
	id := uuid.New()
	tk := newTokenizer(id, s.detector)
	masked := tk.maskMap(record)

	if err := s.repo.Put(ctx, id, tk.entries); err != nil {
		s.record(ctx, audit.ActionMask, id, len(tk.entries), err)
		return nil, fmt.Errorf("persist mapping set: %w", err)
	}
	s.record(ctx, audit.ActionMask, id, len(tk.entries), nil)
	s.log.Info().
		Str("record_id", id.String()).
		Int("entries", len(tk.entries)).
		Msg("record masked")
	return &MaskResult{RecordID: id, Masked: masked, EntryCount: len(tk.entries)}, nil
}

// Remap restores original values into a payload by replacing every
// placeholder from the identified mapping set. Tokens that look like
// placeholders but belong to no entry are left untouched and reported as
// warnings. The mapping set is not consumed; Remap can be repeated and
// always yields the same result.
func (s *Service) Remap(ctx context.Context, id uuid.UUID, payload Record) (Record, []string, error) {
	entries, err := s.repo.Get(ctx, id)
	if err != nil {
		s.record(ctx, audit.ActionRemap, id, 0, err)
		return nil, nil, fmt.Errorf("load mapping set %s: %w", id, err)
	}

	rs := newRestorer(entries)
	restored := rs.restoreMap(payload)
	warnings := rs.warnings()

	s.record(ctx, audit.ActionRemap, id, len(entries), nil)
	s.log.Info().
		Str("record_id", id.String()).
		Int("entries", len(entries)).
		Int("unknown_tokens", len(warnings)).
		Msg("payload remapped")
	return restored, warnings, nil
}

// Info describes a stored mapping set without disclosing any mapped value.
func (s *Service) Info(ctx context.Context, id uuid.UUID) (*MappingInfo, error) {
	entries, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load mapping set %s: %w", id, err)
	}
	seen := make(map[string]bool)
	var types []string
	for _, e := range entries {
		tag := e.Type.Tag()
		if !seen[tag] {
			seen[tag] = true
			types = append(types, tag)
		}
	}
	sort.Strings(types)
	return &MappingInfo{RecordID: id.String(), EntryCount: len(entries), Types: types}, nil
}

// Purge deletes a mapping set. Afterwards the masked record can never be
// restored; remap attempts fail with ErrNotFound.
func (s *Service) Purge(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		s.record(ctx, audit.ActionPurge, id, 0, err)
		return fmt.Errorf("purge mapping set %s: %w", id, err)
	}
	s.record(ctx, audit.ActionPurge, id, 0, nil)
	return nil
}

func (s *Service) record(ctx context.Context, action audit.Action, id uuid.UUID, count int, opErr error) {
	if s.audit == nil {
		return
	}
	ev := audit.Event{
		RecordID:   id,
		Action:     action,
		Actor:      auth.UserIDFromContext(ctx),
		EntryCount: count,
		Outcome:    audit.OutcomeSuccess,
	}
	if opErr != nil {
		ev.Outcome = audit.OutcomeFailure
		ev.Detail = opErr.Error()
	}
	if err := s.audit.Record(ctx, ev); err != nil {
		s.log.Warn().Err(err).Str("record_id", id.String()).Msg("disclosure trail write failed")
	}
}

// tokenizer walks one record, replacing detected spans with placeholder
// tokens and accumulating the mapping entries. A detected value that appears
// more than once in the record reuses its placeholder, so equal inputs stay
// equal in the masked output.
type tokenizer struct {
	id       uuid.UUID
	detector detect.Detector
	entries  []MappingEntry
	seq      map[detect.EntityType]int
	byValue  map[string]string
}

func newTokenizer(id uuid.UUID, d detect.Detector) *tokenizer {
	return &tokenizer{
		id:       id,
		detector: d,
		seq:      make(map[detect.EntityType]int),
		byValue:  make(map[string]string),
	}
}

// maskMap visits keys in sorted order so that placeholder sequence numbers
// are deterministic for a given record.
func (tk *tokenizer) maskMap(m map[string]interface{}) Record {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make(Record, len(m))
	for _, k := range keys {
		out[k] = tk.maskValue(m[k])
	}
	return out
}

func (tk *tokenizer) maskValue(v interface{}) interface{} {
	switch val := v.(type) {
	case string:
		return tk.maskText(val)
	case map[string]interface{}:
		return map[string]interface{}(tk.maskMap(val))
	case Record:
		return tk.maskMap(val)
	case []interface{}:
		out := make([]interface{}, len(val))
		for i, item := range val {
			out[i] = tk.maskValue(item)
		}
		return out
	default:
		// Numbers, booleans, and nulls carry no detectable spans.
		return v
	}
}

func (tk *tokenizer) maskText(text string) string {
	matches := tk.knownMatches(text)
	for _, m := range tk.detector.Detect(text) {
		if !spanOverlaps(matches, m.Start, m.End) {
			matches = append(matches, m)
		}
	}
	if len(matches) == 0 {
		return text
	}
	sort.Slice(matches, func(i, j int) bool { return matches[i].Start < matches[j].Start })
	var b strings.Builder
	last := 0
	for _, m := range matches {
		b.WriteString(text[last:m.Start])
		b.WriteString(tk.placeholderFor(m))
		last = m.End
	}
	b.WriteString(text[last:])
	return b.String()
}

// knownMatches claims occurrences of values mapped earlier in the walk, so
// a value caught in a structured field stays consistent when it reappears
// inside free text that the rules would segment differently ("Jane Doe" in
// the name field versus "Patient Jane Doe reports" in a note).
func (tk *tokenizer) knownMatches(text string) []detect.Match {
	var out []detect.Match
	for _, e := range tk.entries {
		for idx := 0; ; {
			j := strings.Index(text[idx:], e.Value)
			if j < 0 {
				break
			}
			start := idx + j
			end := start + len(e.Value)
			if !spanOverlaps(out, start, end) {
				out = append(out, detect.Match{Type: e.Type, Start: start, End: end, Value: e.Value})
			}
			idx = end
		}
	}
	return out
}

func spanOverlaps(ms []detect.Match, start, end int) bool {
	for _, m := range ms {
		if start < m.End && m.Start < end {
			return true
		}
	}
	return false
}

func (tk *tokenizer) placeholderFor(m detect.Match) string {
	key := string(m.Type) + "\x00" + m.Value
	if ph, ok := tk.byValue[key]; ok {
		return ph
	}
	tk.seq[m.Type]++
	ph := newPlaceholder(m.Type, tk.seq[m.Type], tk.id)
	tk.byValue[key] = ph
	tk.entries = append(tk.entries, MappingEntry{Placeholder: ph, Value: m.Value, Type: m.Type})
	return ph
}

// restorer walks a payload, substituting original values for known
// placeholders and collecting any placeholder-shaped token it cannot map.
type restorer struct {
	entries []MappingEntry
	known   map[string]bool
	unknown map[string]bool
}

func newRestorer(entries []MappingEntry) *restorer {
	known := make(map[string]bool, len(entries))
	for _, e := range entries {
		known[e.Placeholder] = true
	}
	return &restorer{entries: entries, known: known, unknown: make(map[string]bool)}
}

func (rs *restorer) restoreMap(m map[string]interface{}) Record {
	out := make(Record, len(m))
	for k, v := range m {
		out[k] = rs.restoreValue(v)
	}
	return out
}

func (rs *restorer) restoreValue(v interface{}) interface{} {
	switch val := v.(type) {
	case string:
		return rs.restoreText(val)
	case map[string]interface{}:
		return map[string]interface{}(rs.restoreMap(val))
	case Record:
		return rs.restoreMap(val)
	case []interface{}:
		out := make([]interface{}, len(val))
		for i, item := range val {
			out[i] = rs.restoreValue(item)
		}
		return out
	default:
		return v
	}
}

func (rs *restorer) restoreText(text string) string {
	// Collect unrecognized tokens before substitution; a restored value
	// could itself look token-shaped and must not trigger a warning.
	for _, tok := range PlaceholderPattern.FindAllString(text, -1) {
		if !rs.known[tok] {
			rs.unknown[tok] = true
		}
	}
	for _, e := range rs.entries {
		text = strings.ReplaceAll(text, e.Placeholder, e.Value)
	}
	return text
}

func (rs *restorer) warnings() []string {
	if len(rs.unknown) == 0 {
		return nil
	}
	out := make([]string, 0, len(rs.unknown))
	for tok := range rs.unknown {
		out = append(out, "unrecognized token left in place: "+tok)
	}
	sort.Strings(out)
	return out
}
