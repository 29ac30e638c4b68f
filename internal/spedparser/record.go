// =============================================================================
// SPED Toolkit - Record Model
// =============================================================================
//
// This module turns a raw SPED line into a typed, field-indexed record.
// SPED lines look like:
//
//   |C100|0|1|F001|55|00|1|123|3524...|15012025|...|
//
// Splitting on '|' yields an empty first element and an empty last element.
// Both are kept so that field positions match the published layout, where
// position 1 is always the record type ("registro").
//
// =============================================================================

package spedparser

import "strings"

// Separator is the SPED field separator.
const Separator = "|"

// minSegments is the minimum number of '|' segments of a structural line.
// "|X|" splits into ["", "X", ""].
const minSegments = 3

// =============================================================================
// RECORD STRUCTURE
// =============================================================================

// Record represents one structural SPED line.
type Record struct {
	// Registro is the record type code (e.g. "C170").
	Registro string

	// Fields holds every '|' segment, including the empty leading and
	// trailing segments. Fields[1] == Registro.
	Fields []string

	// Raw is the line exactly as read (without the line terminator).
	// It is used for verbatim passthrough.
	Raw string
}

// Parse reports whether line is a structural record and, if so, returns it.
//
// A structural line starts with '|' (after surrounding whitespace is
// removed) and has at least three segments. Anything else is "not a
// record"; callers decide whether to pass it through or drop it.
func Parse(line string) (Record, bool) {
	trimmed := strings.TrimSpace(line)
	if !strings.HasPrefix(trimmed, Separator) {
		return Record{}, false
	}

	fields := strings.Split(trimmed, Separator)
	if len(fields) < minSegments {
		return Record{}, false
	}

	return Record{
		Registro: fields[1],
		Fields:   fields,
		Raw:      line,
	}, true
}

// Len returns the number of segments in the record.
func (r Record) Len() int {
	return len(r.Fields)
}

// Has reports whether position i exists in the record.
func (r Record) Has(i int) bool {
	return i >= 0 && i < len(r.Fields)
}

// Field returns the segment at position i, or "" when it does not exist.
func (r Record) Field(i int) string {
	if !r.Has(i) {
		return ""
	}
	return r.Fields[i]
}

// WithField returns a copy of the record with position i replaced.
// The second return value is false when i is out of range.
func (r Record) WithField(i int, value string) (Record, bool) {
	if !r.Has(i) {
		return r, false
	}

	fields := make([]string, len(r.Fields))
	copy(fields, r.Fields)
	fields[i] = value

	out := Record{Registro: fields[1], Fields: fields}
	out.Raw = out.String()
	return out, true
}

// String joins the segments back into a SPED line.
func (r Record) String() string {
	return strings.Join(r.Fields, Separator)
}

// Format builds a SPED line from a record type and its values.
//
// Example: Format("9900", "C100", "12") == "|9900|C100|12|"
func Format(registro string, values ...string) string {
	var b strings.Builder
	b.WriteString(Separator)
	b.WriteString(registro)
	b.WriteString(Separator)
	for _, v := range values {
		b.WriteString(v)
		b.WriteString(Separator)
	}
	return b.String()
}
