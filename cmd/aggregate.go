package cmd

import (
	"github.com/ginjaninja78/sped-toolkit/internal/runner"
	"github.com/spf13/cobra"
)

var aggregateFlags struct {
	input  string
	output string
}

var aggregateCmd = &cobra.Command{
	Use:   "aggregate",
	Short: "Aggregate PIS/COFINS by block, CFOP, CST and rate into an XLSX report",
	Long: `Aggregate sums the item records C170, A170, D101, D105, D501 and D505 by
block, CFOP, CST and rate of PIS and COFINS, and writes one row per key to
the "Consolidacao CST_CFOP" sheet of an XLSX workbook. No workbook is written
when the file has no qualifying records.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSingle(cmd.Context(), runner.Job{
			Operation: runner.OpAggregate,
			InputPath: aggregateFlags.input,
		}, aggregateFlags.output)
	},
}

func init() {
	rootCmd.AddCommand(aggregateCmd)

	aggregateCmd.Flags().StringVarP(&aggregateFlags.input, "input", "i", "", "SPED file to read")
	aggregateCmd.Flags().StringVarP(&aggregateFlags.output, "output", "o", "", "XLSX report (default: generated in the output directory)")
	aggregateCmd.MarkFlagRequired("input")
}
