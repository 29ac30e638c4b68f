// =============================================================================
// SPED Toolkit - Validate Command
// =============================================================================
//
// COMMAND USAGE:
//   sped validate --input sped.txt [--output findings.log]
//
// Validate checks the block 9 trailer of a SPED file against the lines the
// file actually holds. Findings are logged to the session, printed, and
// written to the error log. A clean file produces no error log.
//
// =============================================================================

package cmd

import (
	"fmt"

	"github.com/ginjaninja78/sped-toolkit/internal/runner"
	"github.com/ginjaninja78/sped-toolkit/internal/validation"
	"github.com/spf13/cobra"
)

var validateFlags struct {
	input  string
	output string
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check the block 9 trailer of a SPED file",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := setupApp()
		if err != nil {
			return err
		}
		defer a.Close()

		job := runner.Job{Operation: runner.OpValidate, InputPath: validateFlags.input}
		if job.OutputPath, err = a.outputPath(validateFlags.output, job.InputPath, job.Operation); err != nil {
			return err
		}

		result := a.runner.Run(cmd.Context(), job)
		if result.Validation != nil && len(result.Validation.Errors) > 0 {
			fmt.Print(validation.FormatErrors(result.Validation.Errors))
			fmt.Printf("\nError log: %s\n", result.OutputFile)
		}
		fmt.Println(result.Message)

		if !result.Success {
			return fmt.Errorf("validation failed")
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)

	validateCmd.Flags().StringVarP(&validateFlags.input, "input", "i", "", "SPED file to check")
	validateCmd.Flags().StringVarP(&validateFlags.output, "output", "o", "", "Error log (default: generated in the output directory)")
	validateCmd.MarkFlagRequired("input")
}
