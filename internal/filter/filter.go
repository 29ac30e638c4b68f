// =============================================================================
// SPED Toolkit - Date-Range Filter
// =============================================================================
//
// This module narrows a SPED file down to a period. It performs a single
// forward pass and decides, per line, whether the line is kept:
//
//   - The 0000 header has its period dates rewritten to the requested range.
//   - Lines outside blocks C and D pass through verbatim, keeping the
//     input's line terminator (CRLF or LF) on every output line.
//   - In blocks C and D, a document parent (C100, D100, ...) is kept when its
//     date is inside the range, and its dateless child lines inherit that
//     decision until the next parent, opener or closer.
//   - Block 9 is dropped and regenerated from the lines actually written
//     (see trailer.go).
//
// Malformed and non-structural lines are discarded silently.
//
// =============================================================================

package filter

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/ginjaninja78/sped-toolkit/internal/spedparser"
	"golang.org/x/text/transform"
)

// ErrInvalidRange is returned when the end date precedes the start date.
var ErrInvalidRange = errors.New("end date is before start date")

// headerRegistro is the file header record type.
const headerRegistro = "0000"

// Positions of the period start/end dates in the 0000 header.
const (
	headerStartField = 4
	headerEndField   = 5
)

// minStructuralLength is the shortest line the filter treats as a record.
const minStructuralLength = 7

// =============================================================================
// OPTIONS AND RESULT
// =============================================================================

// Options configures a filter run.
type Options struct {
	// Start and End are the inclusive period bounds. Only the calendar
	// date is used.
	Start time.Time
	End   time.Time

	// Encoding is the character encoding of both input and output.
	// Default: "latin-1"
	Encoding string

	// Progress, when set, receives completion percentages.
	Progress spedparser.ProgressFunc
}

// Result is the outcome of a filter run.
type Result struct {
	// Success is true when the output file was fully written.
	Success bool

	// Message is a human-readable summary or error description.
	Message string

	// Err is the underlying error when Success is false.
	Err error

	// Stats holds the line counters of the pass.
	Stats Stats
}

// Stats counts what a filter pass read and wrote.
type Stats struct {
	// LinesRead is the number of input lines read.
	LinesRead int

	// LinesWritten is the number of lines in the output, trailer included.
	LinesWritten int

	// RecordCounts is the per-registro count used to regenerate block 9.
	RecordCounts Counts
}

// =============================================================================
// FILE ENTRY POINT
// =============================================================================

// FilterByDate filters inputPath into outputPath.
//
// The input location is validated before the output is created. If the
// pass fails after the output was created, the partial output is removed.
func FilterByDate(ctx context.Context, inputPath, outputPath string, opts Options) Result {
	fail := func(err error) Result {
		return Result{Success: false, Message: err.Error(), Err: err}
	}

	if opts.End.Before(opts.Start) {
		return fail(ErrInvalidRange)
	}

	enc, err := spedparser.LookupEncoding(opts.Encoding)
	if err != nil {
		return fail(err)
	}

	reader, err := spedparser.Open(inputPath, enc)
	if err != nil {
		return fail(err)
	}
	defer reader.Close()

	out, err := os.Create(outputPath)
	if err != nil {
		return fail(fmt.Errorf("failed to create output: %w", err))
	}

	progress := spedparser.NewProgress(ctx, opts.Progress, inputPath)
	encoded := transform.NewWriter(out, enc.NewEncoder())

	stats, err := run(reader, encoded, opts, progress)
	if err == nil {
		err = encoded.Close()
	}
	if closeErr := out.Close(); err == nil && closeErr != nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(outputPath)
		return Result{Success: false, Message: err.Error(), Err: err, Stats: stats}
	}

	progress.Done()
	return Result{
		Success: true,
		Message: fmt.Sprintf("Success! %d lines written.", stats.LinesWritten),
		Stats:   stats,
	}
}

// Filter runs the filter over an already-decoded stream and writes plain
// text to w. Encoding is the caller's concern.
func Filter(ctx context.Context, r io.Reader, w io.Writer, opts Options) (Stats, error) {
	return run(spedparser.NewReader(r, nil), w, opts, spedparser.NewProgressTotal(ctx, opts.Progress, 0))
}

// =============================================================================
// MAIN PASS
// =============================================================================

// state is the per-run state of the filter pass.
type state struct {
	start, end time.Time
	tracker    *spedparser.Tracker
	keepDoc    bool
	firstLine  bool
	stats      Stats
	out        *bufio.Writer

	// eol is the input's line terminator, reused for every output line.
	eol string
}

func run(reader *spedparser.Reader, w io.Writer, opts Options, progress *spedparser.Progress) (Stats, error) {
	if opts.End.Before(opts.Start) {
		return Stats{}, ErrInvalidRange
	}

	s := &state{
		start:     spedparser.DateOnly(opts.Start),
		end:       spedparser.DateOnly(opts.End),
		tracker:   spedparser.NewTracker(),
		firstLine: true,
		stats:     Stats{RecordCounts: Counts{}},
		out:       bufio.NewWriter(w),
	}

	for reader.Next() {
		s.stats.LinesRead++
		if err := progress.Tick(s.stats.LinesRead); err != nil {
			return s.stats, err
		}
		s.eol = reader.Terminator()

		if err := s.handle(reader.Line()); err != nil {
			return s.stats, err
		}
	}
	if err := reader.Err(); err != nil {
		return s.stats, err
	}

	if err := writeTrailer(s.out, reader.Terminator(), s.stats.RecordCounts, &s.stats.LinesWritten); err != nil {
		return s.stats, err
	}
	if err := s.out.Flush(); err != nil {
		return s.stats, fmt.Errorf("failed to flush output: %w", err)
	}

	return s.stats, nil
}

// handle applies the retention rules to one line.
func (s *state) handle(line string) error {
	rec, ok := spedparser.Parse(line)
	if !ok || len(strings.TrimSpace(line)) < minStructuralLength {
		return nil
	}

	if s.firstLine {
		s.firstLine = false
		if rec.Registro == headerRegistro {
			s.tracker.Open(spedparser.Block0)
			return s.write(rec.Registro, s.rewriteHeader(rec))
		}
	}

	switch s.tracker.Advance(rec.Registro) {
	case spedparser.Block9:
		return nil
	case spedparser.BlockC, spedparser.BlockD:
		if s.retain(rec) {
			return s.write(rec.Registro, line)
		}
		return nil
	default:
		return s.write(rec.Registro, line)
	}
}

// retain decides whether a line of block C or D is kept.
func (s *state) retain(rec spedparser.Record) bool {
	if pos, ok := spedparser.DatePosition(rec.Registro); ok {
		s.keepDoc = false
		if d, ok := spedparser.ParseDate(rec.Field(pos)); ok && spedparser.InRange(d, s.start, s.end) {
			s.keepDoc = true
		}
		return s.keepDoc
	}

	if spedparser.IsStructural(rec.Registro) {
		s.keepDoc = false
		return true
	}

	return s.keepDoc
}

// rewriteHeader sets the header period to the requested range. When the
// header is too short to carry both dates it is returned unmodified.
func (s *state) rewriteHeader(rec spedparser.Record) string {
	out, ok := rec.WithField(headerStartField, spedparser.FormatDate(s.start))
	if !ok {
		return rec.Raw
	}
	out, ok = out.WithField(headerEndField, spedparser.FormatDate(s.end))
	if !ok {
		return rec.Raw
	}
	return out.String()
}

// write emits one kept line and counts it.
func (s *state) write(registro, line string) error {
	if _, err := s.out.WriteString(line + s.eol); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	s.stats.LinesWritten++
	s.stats.RecordCounts.Add(registro)
	return nil
}
