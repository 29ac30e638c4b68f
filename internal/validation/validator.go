// =============================================================================
// SPED Toolkit - Trailer Validation Engine
// =============================================================================
//
// This module checks that the block 9 trailer of a SPED file describes the
// file it closes. It is the read-only counterpart of the trailer rebuilt by
// the date filter and is typically run on a filter output before it is
// delivered.
//
// VALIDATION RULES:
//   1. Every |9900|REG|N| must declare the real number of REG lines.
//   2. |9990|N| must equal the number of block 9 lines (9999 included).
//   3. |9999|N| must equal the number of record lines in the file.
//   4. A record type present in the file without a 9900 row is reported as
//      a warning (9900, 9990 and 9999 themselves are exempt).
//
// ERROR HANDLING:
//   - Errors are collected, not returned immediately.
//   - Each error carries the registro, the declared value and the line.
//   - Only I/O failures and cancellation are returned as Go errors.
//
// =============================================================================

package validation

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/ginjaninja78/sped-toolkit/internal/spedparser"
)

// Severity levels.
const (
	SeverityError   = "error"
	SeverityWarning = "warning"
)

// Rules reported in ValidationError.Rule.
const (
	RuleRecordCount  = "record_count"
	RuleBlockCount   = "block9_count"
	RuleFileCount    = "file_count"
	RuleMissingCount = "missing_9900"
	RuleDuplicate    = "duplicate_9900"
	RuleNumber       = "number_format"
	RuleMissing      = "missing_trailer"
)

const (
	regCount       = "9900"
	regBlock9Close = "9990"
	regFileEnd     = "9999"
	block9Prefix   = "9"
)

// =============================================================================
// VALIDATION ERROR TYPES
// =============================================================================

// ValidationError represents a single trailer inconsistency.
type ValidationError struct {
	// Severity is SeverityError or SeverityWarning.
	Severity string

	// Registro is the record type the finding is about.
	Registro string

	// Value is the declared value, when there is one.
	Value string

	// Rule is the validation rule that was violated.
	Rule string

	// Message is a human-readable error message.
	Message string

	// LineNumber is the line of the offending trailer record, or 0 when the
	// finding is about a missing record.
	LineNumber int
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	where := "file"
	if e.LineNumber > 0 {
		where = fmt.Sprintf("line %d", e.LineNumber)
	}
	return fmt.Sprintf("[%s] %s, Registro '%s': %s (value: '%s')",
		strings.ToUpper(e.Severity),
		where,
		e.Registro,
		e.Message,
		e.Value,
	)
}

// =============================================================================
// VALIDATION RESULT
// =============================================================================

// ValidationResult contains the results of validation.
type ValidationResult struct {
	// IsValid is true if there are no fatal errors.
	IsValid bool

	// Errors contains all findings (including warnings).
	Errors []*ValidationError

	ErrorCount   int
	WarningCount int

	// LinesValidated is the number of record lines seen.
	LinesValidated int
}

// =============================================================================
// VALIDATOR
// =============================================================================

// ValidationOptions contains options for validation.
type ValidationOptions struct {
	// StopOnFirstError stops collecting after the first fatal error.
	// Default: false
	StopOnFirstError bool

	// TreatWarningsAsErrors makes warnings invalidate the file.
	// Default: false
	TreatWarningsAsErrors bool

	// Encoding of the SPED input. Default: "latin-1"
	Encoding string
}

// DefaultValidationOptions returns the default validation options.
func DefaultValidationOptions() ValidationOptions {
	return ValidationOptions{Encoding: spedparser.DefaultEncoding}
}

// Validator checks SPED trailers.
type Validator struct {
	options ValidationOptions
}

// NewValidator creates a new Validator instance.
func NewValidator() *Validator {
	return &Validator{options: DefaultValidationOptions()}
}

// NewValidatorWithOptions creates a new Validator with custom options.
func NewValidatorWithOptions(options ValidationOptions) *Validator {
	return &Validator{options: options}
}

// Validate checks the trailer of the file at path with default options.
func Validate(ctx context.Context, path string) (*ValidationResult, error) {
	return NewValidator().ValidateFile(ctx, path)
}

// ValidateFile checks the trailer of the file at path.
func (v *Validator) ValidateFile(ctx context.Context, path string) (*ValidationResult, error) {
	enc, err := spedparser.LookupEncoding(v.options.Encoding)
	if err != nil {
		return nil, err
	}

	reader, err := spedparser.Open(path, enc)
	if err != nil {
		return nil, err
	}
	defer reader.Close()

	return v.validate(ctx, reader)
}

// ValidateReader checks the trailer of an already-decoded stream.
func (v *Validator) ValidateReader(ctx context.Context, r io.Reader) (*ValidationResult, error) {
	return v.validate(ctx, spedparser.NewReader(r, nil))
}

// declaration is one trailer value read from the file.
type declaration struct {
	value string
	line  int
}

// tally is what one pass over the file collects.
type tally struct {
	counts     map[string]int
	declared   map[string]declaration
	duplicates []*ValidationError
	block9     int
	records    int
	blockClose *declaration
	fileEnd    *declaration
}

func (v *Validator) validate(ctx context.Context, reader *spedparser.Reader) (*ValidationResult, error) {
	t := &tally{
		counts:   make(map[string]int),
		declared: make(map[string]declaration),
	}
	progress := spedparser.NewProgressTotal(ctx, nil, 0)

	for reader.Next() {
		if err := progress.Tick(reader.LineNumber()); err != nil {
			return nil, err
		}
		t.add(reader.Line(), reader.LineNumber())
	}
	if err := reader.Err(); err != nil {
		return nil, err
	}

	result := &ValidationResult{
		IsValid:        true,
		Errors:         make([]*ValidationError, 0),
		LinesValidated: t.records,
	}
	for _, finding := range t.findings() {
		if !v.record(result, finding) {
			break
		}
	}
	return result, nil
}

// record adds one finding to result and reports whether collection
// continues.
func (v *Validator) record(result *ValidationResult, finding *ValidationError) bool {
	result.Errors = append(result.Errors, finding)

	if finding.Severity == SeverityError {
		result.ErrorCount++
		result.IsValid = false
		return !v.options.StopOnFirstError
	}

	result.WarningCount++
	if v.options.TreatWarningsAsErrors {
		result.IsValid = false
	}
	return true
}

func (t *tally) add(line string, lineNumber int) {
	rec, ok := spedparser.Parse(line)
	if !ok {
		return
	}

	t.records++
	t.counts[rec.Registro]++
	if strings.HasPrefix(rec.Registro, block9Prefix) {
		t.block9++
	}

	switch rec.Registro {
	case regCount:
		reg := rec.Field(2)
		if prev, dup := t.declared[reg]; dup {
			t.duplicates = append(t.duplicates, &ValidationError{
				Severity:   SeverityError,
				Registro:   reg,
				Value:      rec.Field(3),
				Rule:       RuleDuplicate,
				Message:    fmt.Sprintf("9900 row repeats the count declared on line %d", prev.line),
				LineNumber: lineNumber,
			})
			return
		}
		t.declared[reg] = declaration{value: rec.Field(3), line: lineNumber}
	case regBlock9Close:
		t.blockClose = &declaration{value: rec.Field(2), line: lineNumber}
	case regFileEnd:
		t.fileEnd = &declaration{value: rec.Field(2), line: lineNumber}
	}
}

// findings evaluates the collected tally in a stable order: 9900 rows by
// registro, then 9990, then 9999, then missing 9900 rows.
func (t *tally) findings() []*ValidationError {
	out := append([]*ValidationError{}, t.duplicates...)

	for _, reg := range sortedKeys(t.declared) {
		d := t.declared[reg]
		if f := checkNumber(reg, d, t.counts[reg], RuleRecordCount,
			"9900 declares %d lines, file has %d"); f != nil {
			out = append(out, f)
		}
	}

	out = append(out, checkTrailer(regBlock9Close, t.blockClose, t.block9, RuleBlockCount,
		"9990 declares %d block 9 lines, file has %d")...)
	out = append(out, checkTrailer(regFileEnd, t.fileEnd, t.records, RuleFileCount,
		"9999 declares %d lines, file has %d")...)

	for _, reg := range sortedKeys(t.counts) {
		if reg == regCount || reg == regBlock9Close || reg == regFileEnd {
			continue
		}
		if _, ok := t.declared[reg]; !ok {
			out = append(out, &ValidationError{
				Severity: SeverityWarning,
				Registro: reg,
				Rule:     RuleMissingCount,
				Message:  fmt.Sprintf("no 9900 row for %d line(s) of this record type", t.counts[reg]),
			})
		}
	}

	return out
}

func checkTrailer(reg string, d *declaration, actual int, rule, format string) []*ValidationError {
	if d == nil {
		return []*ValidationError{{
			Severity: SeverityError,
			Registro: reg,
			Rule:     RuleMissing,
			Message:  fmt.Sprintf("record %s is missing", reg),
		}}
	}
	if f := checkNumber(reg, *d, actual, rule, format); f != nil {
		return []*ValidationError{f}
	}
	return nil
}

func checkNumber(reg string, d declaration, actual int, rule, format string) *ValidationError {
	declared, err := strconv.Atoi(strings.TrimSpace(d.value))
	if err != nil {
		return &ValidationError{
			Severity:   SeverityError,
			Registro:   reg,
			Value:      d.value,
			Rule:       RuleNumber,
			Message:    "declared count is not a number",
			LineNumber: d.line,
		}
	}
	if declared != actual {
		return &ValidationError{
			Severity:   SeverityError,
			Registro:   reg,
			Value:      d.value,
			Rule:       rule,
			Message:    fmt.Sprintf(format, declared, actual),
			LineNumber: d.line,
		}
	}
	return nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// =============================================================================
// ERROR FORMATTING
// =============================================================================

// FormatErrors formats validation errors for display or logging.
func FormatErrors(errors []*ValidationError) string {
	if len(errors) == 0 {
		return "No validation errors."
	}

	var builder strings.Builder

	builder.WriteString(fmt.Sprintf("Validation completed with %d finding(s):\n\n", len(errors)))

	for i, err := range errors {
		builder.WriteString(fmt.Sprintf("%d. %s\n", i+1, err.Error()))
	}

	return builder.String()
}

// WriteErrorLog writes validation errors to a log file.
//
// PARAMETERS:
//   - errors: The validation errors to write.
//   - filePath: The path to the output file.
//
// RETURNS:
//   - An error if writing fails.
func WriteErrorLog(errors []*ValidationError, filePath string) error {
	file, err := os.Create(filePath)
	if err != nil {
		return fmt.Errorf("failed to create error log: %w", err)
	}
	defer file.Close()

	writer := bufio.NewWriter(file)
	fmt.Fprintf(writer, "SPED trailer validation - %s\n", time.Now().Format("2006-01-02 15:04:05"))
	writer.WriteString(strings.Repeat("=", 60) + "\n\n")
	writer.WriteString(FormatErrors(errors))

	if err := writer.Flush(); err != nil {
		return fmt.Errorf("failed to write error log: %w", err)
	}
	return file.Close()
}
