// =============================================================================
// SPED Toolkit - Runner Module
// =============================================================================
//
// This module runs SPED operations as jobs. A job names one operation over
// one input file; the runner executes it, logs the outcome to the session,
// and records it in the run history.
//
// OPERATIONS:
//   filter     - date-range filter with trailer rebuild (text output)
//   keys       - access-key extraction (text output)
//   aggregate  - tax aggregation rendered to an XLSX report
//   validate   - trailer validation (error log written only on findings)
//
// CONCURRENCY:
//   Jobs share no state, so RunAll runs them on a bounded pool of
//   goroutines. Results come back in job order.
//
// =============================================================================

package runner

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/ginjaninja78/sped-toolkit/internal/aggregator"
	"github.com/ginjaninja78/sped-toolkit/internal/filter"
	"github.com/ginjaninja78/sped-toolkit/internal/history"
	"github.com/ginjaninja78/sped-toolkit/internal/keys"
	"github.com/ginjaninja78/sped-toolkit/internal/report"
	"github.com/ginjaninja78/sped-toolkit/internal/spedparser"
	"github.com/ginjaninja78/sped-toolkit/internal/validation"
	"github.com/google/uuid"
)

// Operation names a job type.
type Operation string

const (
	OpFilter    Operation = "filter"
	OpKeys      Operation = "keys"
	OpAggregate Operation = "aggregate"
	OpValidate  Operation = "validate"
)

// Extension returns the output file extension of op.
func (op Operation) Extension() string {
	switch op {
	case OpAggregate:
		return ".xlsx"
	case OpValidate:
		return ".log"
	default:
		return ".txt"
	}
}

// ParseOperation resolves an operation name.
func ParseOperation(name string) (Operation, error) {
	switch op := Operation(name); op {
	case OpFilter, OpKeys, OpAggregate, OpValidate:
		return op, nil
	}
	return "", fmt.Errorf("unknown operation %q", name)
}

// =============================================================================
// JOB AND RESULT
// =============================================================================

// Job is one operation over one input file.
type Job struct {
	Operation  Operation
	InputPath  string
	OutputPath string

	// Start and End bound the filter period. Ignored by other operations.
	Start time.Time
	End   time.Time

	// Progress, when set, receives completion percentages.
	Progress spedparser.ProgressFunc
}

// Result is the outcome of a job.
type Result struct {
	Job   Job
	RunID string

	Success bool
	Message string
	Error   error

	// OutputFile is empty when the job produced no file, e.g. an empty
	// aggregation or a clean validation.
	OutputFile string

	Stats ProcessingStats

	// Keys is the combined access-key list of a keys job.
	Keys []string

	// Validation is the result of a validate job.
	Validation *validation.ValidationResult
}

// ProcessingStats contains statistics about a job.
type ProcessingStats struct {
	LinesRead    int
	LinesWritten int

	// Rows is the number of aggregation rows or validation findings.
	Rows int

	ProcessingTime time.Duration
}

// =============================================================================
// RUNNER
// =============================================================================

// Recorder stores finished runs.
type Recorder interface {
	Record(run history.Run) error
}

// Options configures a Runner.
type Options struct {
	Logger   Logger
	Recorder Recorder

	SessionID string
	User      string

	// Encoding of SPED inputs. Default: "latin-1"
	Encoding string
}

// Runner executes jobs.
type Runner struct {
	logger    Logger
	recorder  Recorder
	sessionID string
	user      string
	encoding  string
}

// New creates a Runner. A nil Logger discards log output and a nil
// Recorder disables the run history.
func New(opts Options) *Runner {
	r := &Runner{
		logger:    opts.Logger,
		recorder:  opts.Recorder,
		sessionID: opts.SessionID,
		user:      opts.User,
		encoding:  opts.Encoding,
	}
	if r.logger == nil {
		r.logger = nopLogger{}
	}
	return r
}

// Run executes job and records its outcome.
func (r *Runner) Run(ctx context.Context, job Job) Result {
	startTime := time.Now()
	result := Result{Job: job, RunID: uuid.New().String()}

	r.logger.Info("Starting %s: %s", job.Operation, job.InputPath)

	switch job.Operation {
	case OpFilter:
		r.runFilter(ctx, job, &result)
	case OpKeys:
		r.runKeys(ctx, job, &result)
	case OpAggregate:
		r.runAggregate(ctx, job, &result)
	case OpValidate:
		r.runValidate(ctx, job, &result)
	default:
		result.Error = fmt.Errorf("unknown operation %q", job.Operation)
		result.Message = result.Error.Error()
	}

	result.Stats.ProcessingTime = time.Since(startTime)

	if result.Success {
		r.logger.Info("Finished %s: %s (%s)", job.Operation, result.Message, result.Stats.ProcessingTime.Round(time.Millisecond))
	} else {
		r.logger.Error("Failed %s on %s: %v", job.Operation, job.InputPath, result.Error)
	}

	r.record(result, startTime)
	return result
}

// RunAll runs jobs on at most concurrency goroutines and returns their
// results in job order.
func (r *Runner) RunAll(ctx context.Context, jobs []Job, concurrency int) []Result {
	if concurrency < 1 {
		concurrency = 1
	}

	results := make([]Result, len(jobs))
	sem := make(chan struct{}, concurrency)
	var wg sync.WaitGroup

	for i, job := range jobs {
		wg.Add(1)
		go func(i int, job Job) {
			defer wg.Done()

			sem <- struct{}{}
			defer func() { <-sem }()

			results[i] = r.Run(ctx, job)
		}(i, job)
	}

	wg.Wait()
	return results
}

// =============================================================================
// OPERATIONS
// =============================================================================

func (r *Runner) runFilter(ctx context.Context, job Job, result *Result) {
	res := filter.FilterByDate(ctx, job.InputPath, job.OutputPath, filter.Options{
		Start:    job.Start,
		End:      job.End,
		Encoding: r.encoding,
		Progress: r.progress(job),
	})

	result.Success = res.Success
	result.Message = res.Message
	result.Error = res.Err
	result.Stats.LinesRead = res.Stats.LinesRead
	result.Stats.LinesWritten = res.Stats.LinesWritten
	if res.Success {
		result.OutputFile = job.OutputPath
	}
}

func (r *Runner) runKeys(ctx context.Context, job Job, result *Result) {
	res := keys.Extract(ctx, job.InputPath, job.OutputPath, keys.Options{
		Encoding: r.encoding,
		Progress: r.progress(job),
	})

	result.Success = res.Success
	result.Message = res.Message
	result.Error = res.Err
	result.Keys = res.Keys
	result.Stats.LinesRead = res.LinesRead
	result.Stats.LinesWritten = len(res.Keys)
	if res.Success {
		result.OutputFile = job.OutputPath
		r.logger.Debug("Extracted %d NFe and %d CTe keys", len(res.NFe), len(res.CTe))
	}
}

func (r *Runner) runAggregate(ctx context.Context, job Job, result *Result) {
	table, err := aggregator.Aggregate(ctx, job.InputPath, aggregator.Options{
		Encoding: r.encoding,
		Progress: r.progress(job),
	})
	if err != nil {
		result.Error = err
		result.Message = "Error: " + err.Error()
		return
	}

	result.Stats.Rows = table.Len()

	err = report.WriteTable(job.OutputPath, table)
	switch {
	case errors.Is(err, report.ErrEmptyTable):
		result.Success = true
		result.Message = "No qualifying records: no report to generate."
	case err != nil:
		os.Remove(job.OutputPath)
		result.Error = err
		result.Message = "Error: " + err.Error()
	default:
		result.Success = true
		result.OutputFile = job.OutputPath
		result.Message = fmt.Sprintf("Success! %d rows aggregated.", table.Len())
	}
}

func (r *Runner) runValidate(ctx context.Context, job Job, result *Result) {
	validator := validation.NewValidatorWithOptions(validation.ValidationOptions{Encoding: r.encoding})

	res, err := validator.ValidateFile(ctx, job.InputPath)
	if err != nil {
		result.Error = err
		result.Message = "Error: " + err.Error()
		return
	}

	result.Validation = res
	result.Stats.LinesRead = res.LinesValidated
	result.Stats.Rows = len(res.Errors)

	for _, finding := range res.Errors {
		r.logger.Warn("Validation finding: %s", finding.Error())
	}

	if len(res.Errors) > 0 && job.OutputPath != "" {
		if err := validation.WriteErrorLog(res.Errors, job.OutputPath); err != nil {
			result.Error = err
			result.Message = "Error: " + err.Error()
			return
		}
		result.OutputFile = job.OutputPath
	}

	if !res.IsValid {
		result.Error = fmt.Errorf("trailer validation failed with %d error(s)", res.ErrorCount)
		result.Message = result.Error.Error()
		return
	}

	result.Success = true
	result.Message = fmt.Sprintf("Trailer is consistent (%d warning(s)).", res.WarningCount)
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

// progress wraps the job's callback so checkpoints also reach the log. A
// job without a callback gets none, which spares the line-count pre-scan.
func (r *Runner) progress(job Job) spedparser.ProgressFunc {
	if job.Progress == nil {
		return nil
	}
	return func(percent int) {
		r.logger.Debug("%s %s: %d%%", job.Operation, job.InputPath, percent)
		job.Progress(percent)
	}
}

func (r *Runner) record(result Result, startTime time.Time) {
	if r.recorder == nil {
		return
	}

	run := history.Run{
		ID:           result.RunID,
		SessionID:    r.sessionID,
		User:         r.user,
		Operation:    string(result.Job.Operation),
		InputPath:    result.Job.InputPath,
		OutputPath:   result.OutputFile,
		Success:      result.Success,
		Message:      result.Message,
		LinesRead:    result.Stats.LinesRead,
		LinesWritten: result.Stats.LinesWritten,
		StartedAt:    startTime,
		FinishedAt:   startTime.Add(result.Stats.ProcessingTime),
	}

	if err := r.recorder.Record(run); err != nil {
		r.logger.Warn("Failed to record run %s: %v", result.RunID, err)
	}
}
