package spedparser

import "time"

// DateLayout is the SPED date format (DDMMYYYY).
const DateLayout = "02012006"

// documentDatePositions holds, per document record type, the position of
// the date used to decide whether the document belongs to a period.
var documentDatePositions = map[string]int{
	"C100": 11,
	"C300": 4,
	"C350": 10,
	"C405": 2,
	"C500": 12,
	"C600": 11,
	"C700": 11,
	"D100": 12,
	"D300": 4,
	"D350": 10,
	"D400": 5,
	"D500": 11,
	"D600": 11,
	"D700": 10,
}

// DatePosition returns the date field position of a document record type.
func DatePosition(registro string) (int, bool) {
	pos, ok := documentDatePositions[registro]
	return pos, ok
}

// ParseDate parses a DDMMYYYY date. It returns false for anything that is
// not exactly eight characters or is not a valid calendar date.
func ParseDate(s string) (time.Time, bool) {
	if len(s) != len(DateLayout) {
		return time.Time{}, false
	}
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// FormatDate formats t as DDMMYYYY.
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}

// DateOnly drops the clock part of t, keeping its calendar date in UTC.
func DateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// InRange reports whether d falls in [start, end], comparing calendar dates.
func InRange(d, start, end time.Time) bool {
	d, start, end = DateOnly(d), DateOnly(start), DateOnly(end)
	return !d.Before(start) && !d.After(end)
}
