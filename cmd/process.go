// =============================================================================
// SPED Toolkit - Process Command
// =============================================================================
//
// This file defines the 'process' command, which runs the toolkit over every
// SPED file in the input directory.
//
// COMMAND USAGE:
//   sped process [flags]
//
// FLAGS:
//   --start, --end : Also filter every file to this period (DDMMYYYY)
//   --pattern      : Glob for input files (default *.txt)
//   --recursive    : Scan subdirectories of the input directory
//   --validate     : Also validate every file's trailer
//   --dry-run      : List the jobs without running them
//
// PROCESSING PIPELINE:
//   1. Load configuration and start the session
//   2. Discover SPED files in the input directory
//   3. Build jobs: keys and aggregate always, filter and validate on request
//   4. Run the jobs on a pool of max_concurrency workers
//   5. Print per-job outcomes and write the processing summary
//   6. Archive inputs whose jobs all succeeded (archive_on_success)
//
// =============================================================================

package cmd

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/ginjaninja78/sped-toolkit/internal/runner"
	"github.com/ginjaninja78/sped-toolkit/pkg/utils"
	"github.com/spf13/cobra"
)

// =============================================================================
// COMMAND FLAGS
// =============================================================================

var processFlags struct {
	start     string
	end       string
	pattern   string
	recursive bool
	validate  bool
	dryRun    bool
}

// =============================================================================
// PROCESS COMMAND DEFINITION
// =============================================================================

var processCmd = &cobra.Command{
	Use:   "process",
	Short: "Process every SPED file in the input directory",
	Long: `The process command scans the input directory for SPED files and runs
key extraction and aggregation on each of them, plus filtering when --start
and --end are given and trailer validation with --validate.

Jobs run concurrently, up to max_concurrency at once. A failed job does not
stop the others.

On completion:
  - Outputs are placed in the output directory
  - A processing summary is written to the output directory
  - With archive_on_success, inputs whose jobs all succeeded are moved to
    the input archive; other inputs stay where they are`,

	RunE: func(cmd *cobra.Command, args []string) error {
		return runProcess(cmd)
	},
}

func init() {
	rootCmd.AddCommand(processCmd)

	processCmd.Flags().StringVar(&processFlags.start, "start", "", "Filter period start (DDMMYYYY)")
	processCmd.Flags().StringVar(&processFlags.end, "end", "", "Filter period end (DDMMYYYY)")
	processCmd.Flags().StringVar(&processFlags.pattern, "pattern", utils.DefaultPattern, "Glob for input files")
	processCmd.Flags().BoolVarP(&processFlags.recursive, "recursive", "r", false, "Scan subdirectories of the input directory")
	processCmd.Flags().BoolVar(&processFlags.validate, "validate", false, "Also validate each file's trailer")
	processCmd.Flags().BoolVar(&processFlags.dryRun, "dry-run", false, "List the jobs without running them")

	processCmd.MarkFlagsRequiredTogether("start", "end")
}

// =============================================================================
// MAIN PROCESSING FUNCTION
// =============================================================================

func runProcess(cmd *cobra.Command) error {
	startTime := time.Now()

	// =========================================================================
	// STEP 1: LOAD CONFIGURATION
	// =========================================================================

	fmt.Println("=== SPED Toolkit ===")

	var start, end time.Time
	filtering := processFlags.start != ""
	if filtering {
		var err error
		if start, err = parseDateFlag("start", processFlags.start); err != nil {
			return err
		}
		if end, err = parseDateFlag("end", processFlags.end); err != nil {
			return err
		}
	}

	a, err := setupApp()
	if err != nil {
		return err
	}
	defer a.Close()

	fm := utils.NewFileManager(a.config.InputDir, a.config.OutputDir, a.config.InputArchiveDir)
	fm.ArchiveOnSuccess = a.config.ArchiveOnSuccess
	fm.UseTimestampSubdirs = a.config.UseTimestampSubdirs
	if err := fm.EnsureDirectories(); err != nil {
		return err
	}

	// =========================================================================
	// STEP 2: DISCOVER INPUT FILES
	// =========================================================================

	var inputFiles []string
	if processFlags.recursive {
		inputFiles, err = fm.DiscoverInputFilesRecursive(processFlags.pattern)
	} else {
		inputFiles, err = fm.DiscoverInputFiles(processFlags.pattern)
	}
	if err != nil {
		return fmt.Errorf("failed to discover input files: %w", err)
	}

	if len(inputFiles) == 0 {
		fmt.Println("No SPED files found in the input directory.")
		a.session.Info("No input files in %s", a.config.InputDir)
		return nil
	}

	fmt.Printf("Found %d file(s) to process\n", len(inputFiles))
	a.session.Info("Processing %d file(s) from %s", len(inputFiles), a.config.InputDir)

	// =========================================================================
	// STEP 3: BUILD JOBS
	// =========================================================================

	operations := []runner.Operation{runner.OpKeys, runner.OpAggregate}
	if filtering {
		operations = append([]runner.Operation{runner.OpFilter}, operations...)
	}
	if processFlags.validate {
		operations = append(operations, runner.OpValidate)
	}

	var jobs []runner.Job
	for _, input := range inputFiles {
		for _, op := range operations {
			output, err := a.outputPath("", input, op)
			if err != nil {
				return err
			}
			jobs = append(jobs, runner.Job{
				Operation:  op,
				InputPath:  input,
				OutputPath: output,
				Start:      start,
				End:        end,
			})
		}
	}

	if processFlags.dryRun {
		for _, job := range jobs {
			fmt.Printf("  %-9s %s -> %s\n", job.Operation, job.InputPath, job.OutputPath)
		}
		return nil
	}

	// =========================================================================
	// STEP 4: RUN JOBS
	// =========================================================================

	fmt.Printf("Running %d job(s), %d at a time...\n", len(jobs), a.config.MaxConcurrency)
	results := a.runner.RunAll(cmd.Context(), jobs, a.config.MaxConcurrency)

	// =========================================================================
	// STEP 5: COLLECT RESULTS AND ARCHIVE
	// =========================================================================

	summary := utils.ProcessingSummary{StartTime: startTime, TotalFiles: len(inputFiles)}
	failed := make(map[string]bool)

	for _, result := range results {
		summary.Add(utils.JobInfo{
			Operation:   string(result.Job.Operation),
			InputFile:   result.Job.InputPath,
			OutputFile:  result.OutputFile,
			Success:     result.Success,
			Message:     result.Message,
			LinesRead:   result.Stats.LinesRead,
			ProcessTime: result.Stats.ProcessingTime,
		})

		name := filepath.Base(result.Job.InputPath)
		switch {
		case result.Success && result.OutputFile != "":
			fmt.Printf("  ✓ %-9s %s -> %s\n", result.Job.Operation, name, filepath.Base(result.OutputFile))
		case result.Success:
			fmt.Printf("  ✓ %-9s %s: %s\n", result.Job.Operation, name, result.Message)
		default:
			failed[result.Job.InputPath] = true
			fmt.Printf("  ✗ %-9s %s: %s\n", result.Job.Operation, name, result.Message)
		}
	}

	if fm.ArchiveOnSuccess && cmd.Context().Err() == nil {
		for _, input := range inputFiles {
			if failed[input] {
				continue
			}
			archived, err := fm.ArchiveInputFile(input)
			if err != nil {
				a.session.Warn("Failed to archive %s: %v", input, err)
				continue
			}
			summary.Archived++
			a.session.Info("Archived %s to %s", input, archived)
		}
	}

	summary.EndTime = time.Now()

	summaryPath, err := utils.WriteSummaryLog(summary, a.config.OutputDir)
	if err != nil {
		a.session.Warn("Failed to write processing summary: %v", err)
	}

	// =========================================================================
	// STEP 6: PRINT SUMMARY
	// =========================================================================

	fmt.Println("\n=== Processing Complete ===")
	fmt.Printf("Total files:     %d\n", summary.TotalFiles)
	fmt.Printf("Jobs:            %d\n", summary.TotalJobs)
	fmt.Printf("Successful:      %d\n", summary.Successful)
	fmt.Printf("Errors:          %d\n", summary.Failed)
	fmt.Printf("Archived:        %d\n", summary.Archived)
	fmt.Printf("Time elapsed:    %s\n", summary.EndTime.Sub(startTime).Round(time.Millisecond))
	if summaryPath != "" {
		fmt.Printf("Summary:         %s\n", summaryPath)
	}

	a.session.Info("Batch finished: %d/%d job(s) succeeded", summary.Successful, summary.TotalJobs)

	if summary.Failed > 0 {
		return fmt.Errorf("%d job(s) failed", summary.Failed)
	}
	return nil
}
