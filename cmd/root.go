// =============================================================================
// SPED Toolkit - Root Command
// =============================================================================
//
// This file defines the root command for the Cobra CLI. All other commands
// are attached to it.
//
// COBRA CLI STRUCTURE:
//   rootCmd (sped)
//   ├── filterCmd    (sped filter)
//   ├── keysCmd      (sped keys)
//   ├── aggregateCmd (sped aggregate)
//   ├── validateCmd  (sped validate)
//   ├── processCmd   (sped process)
//   ├── historyCmd   (sped history)
//   └── versionCmd   (sped version)
//
// CONFIGURATION:
//   The root command owns the global flags. Commands that run jobs call
//   setupApp, which loads the configuration, starts the session log, opens
//   the run history and builds the runner.
//
// =============================================================================

package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/ginjaninja78/sped-toolkit/internal/config"
	"github.com/ginjaninja78/sped-toolkit/internal/history"
	"github.com/ginjaninja78/sped-toolkit/internal/runner"
	"github.com/ginjaninja78/sped-toolkit/internal/spedparser"
	"github.com/ginjaninja78/sped-toolkit/pkg/utils"
	"github.com/spf13/cobra"
)

// =============================================================================
// GLOBAL VARIABLES
// =============================================================================

// cfgFile holds the path to the main configuration file.
var cfgFile string

// envFile holds the path to a .env file with SPED_* overrides.
var envFile string

// verbose forces debug logging and echoes the session log to stderr.
var verbose bool

// userName is recorded in the session log and the run history.
var userName string

// =============================================================================
// ROOT COMMAND DEFINITION
// =============================================================================

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "sped",
	Short: "SPED Toolkit - Filter, extract and aggregate SPED fiscal files",
	Long: `SPED Toolkit processes SPED EFD flat files (pipe-delimited fiscal
bookkeeping files).

Key Features:
  - Date-range filtering with a rebuilt block 9 trailer
  - NFe/CTe access-key extraction
  - PIS/COFINS aggregation by CFOP, CST and rate, rendered to XLSX
  - Trailer consistency validation
  - Batch processing with a bounded worker pool and run history

Example Usage:
  sped filter --input sped.txt --start 01012025 --end 31012025
  sped keys --input sped.txt
  sped aggregate --input sped.txt --output report.xlsx
  sped process                       # Process every file in the input directory`,

	SilenceUsage: true,

	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

// =============================================================================
// EXECUTE FUNCTION
// =============================================================================

// Execute runs the root command. This is called by main.main(). An interrupt
// cancels the running jobs at their next progress checkpoint.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}

// =============================================================================
// INITIALIZATION
// =============================================================================

func init() {
	rootCmd.PersistentFlags().StringVar(
		&cfgFile,
		"config",
		"config.yaml",
		"Path to the main configuration file",
	)

	rootCmd.PersistentFlags().StringVar(
		&envFile,
		"env-file",
		"",
		"Path to a .env file with SPED_* overrides (default .env if present)",
	)

	rootCmd.PersistentFlags().BoolVarP(
		&verbose,
		"verbose",
		"v",
		false,
		"Enable debug logging and echo the session log to stderr",
	)

	rootCmd.PersistentFlags().StringVar(
		&userName,
		"user",
		os.Getenv("USER"),
		"User name recorded in the session log and run history",
	)
}

// =============================================================================
// APPLICATION SETUP
// =============================================================================

// app bundles what a job-running command needs.
type app struct {
	config  *config.MainConfig
	session *runner.Session
	history *history.Connection
	runs    *history.Runs
	runner  *runner.Runner
}

// setupApp loads the configuration and starts a session.
//
// RETURNS:
//   - The application context. The caller must call Close.
//   - An error if the configuration, session log or history cannot be opened.
func setupApp() (*app, error) {
	cfg, err := config.Load(cfgFile, envFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	level := cfg.LogLevel
	if verbose {
		level = "debug"
	}

	session, err := runner.StartSession(cfg.LogDir, userName, level, verbose)
	if err != nil {
		return nil, err
	}

	conn, err := history.Open(cfg.HistoryDB)
	if err != nil {
		session.Error("Run history unavailable: %v", err)
		session.End()
		return nil, err
	}

	runs := history.NewRuns(conn)
	a := &app{
		config:  cfg,
		session: session,
		history: conn,
		runs:    runs,
		runner: runner.New(runner.Options{
			Logger:    session,
			Recorder:  runs,
			SessionID: session.ID,
			User:      userName,
			Encoding:  cfg.Encoding,
		}),
	}

	session.Debug("Config: input=%s output=%s encoding=%s concurrency=%d",
		cfg.InputDir, cfg.OutputDir, cfg.Encoding, cfg.MaxConcurrency)
	return a, nil
}

// Close ends the session and closes the run history.
func (a *app) Close() {
	if err := a.history.Close(); err != nil {
		a.session.Warn("Failed to close run history: %v", err)
	}
	a.session.End()
}

// outputPath returns explicit when set, or a generated name in the output
// directory.
func (a *app) outputPath(explicit, input string, op runner.Operation) (string, error) {
	if explicit != "" {
		return explicit, nil
	}

	if err := os.MkdirAll(a.config.OutputDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	name := utils.GenerateOutputFileName(a.config.OutputNameFormat, map[string]string{
		"original":  utils.BaseName(input),
		"operation": string(op),
	}, op.Extension())
	return filepath.Join(a.config.OutputDir, name), nil
}

// =============================================================================
// SINGLE-FILE JOBS
// =============================================================================

// runSingle runs one job over input and prints its outcome.
func runSingle(ctx context.Context, job runner.Job, output string) error {
	a, err := setupApp()
	if err != nil {
		return err
	}
	defer a.Close()

	job.OutputPath, err = a.outputPath(output, job.InputPath, job.Operation)
	if err != nil {
		return err
	}
	if !verbose {
		job.Progress = printProgress
	}

	result := a.runner.Run(ctx, job)
	fmt.Println()
	fmt.Println(result.Message)
	if result.OutputFile != "" {
		fmt.Printf("Output: %s\n", result.OutputFile)
	}

	if !result.Success {
		return fmt.Errorf("%s failed", job.Operation)
	}
	return nil
}

// printProgress redraws a percentage on the current terminal line.
func printProgress(percent int) {
	fmt.Printf("\rProgress: %3d%%", percent)
}

// parseDateFlag parses a DDMMYYYY command line date.
func parseDateFlag(name, value string) (time.Time, error) {
	t, ok := spedparser.ParseDate(value)
	if !ok {
		return time.Time{}, fmt.Errorf("--%s: %q is not a DDMMYYYY date", name, value)
	}
	return t, nil
}
