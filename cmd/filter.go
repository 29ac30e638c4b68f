// =============================================================================
// SPED Toolkit - Filter Command
// =============================================================================
//
// COMMAND USAGE:
//   sped filter --input sped.txt --start 01012025 --end 31012025 [--output f.txt]
//
// The output keeps the header blocks, the documents dated inside the period
// and their child records, and ends with a rebuilt block 9 trailer.
//
// =============================================================================

package cmd

import (
	"github.com/ginjaninja78/sped-toolkit/internal/runner"
	"github.com/spf13/cobra"
)

var filterFlags struct {
	input  string
	output string
	start  string
	end    string
}

var filterCmd = &cobra.Command{
	Use:   "filter",
	Short: "Filter a SPED file to a date range",
	Long: `Filter keeps the documents of a SPED file whose date falls inside
[--start, --end] and rewrites the 0000 period and the block 9 trailer to match.
Dates use the SPED layout DDMMYYYY.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		start, err := parseDateFlag("start", filterFlags.start)
		if err != nil {
			return err
		}
		end, err := parseDateFlag("end", filterFlags.end)
		if err != nil {
			return err
		}

		return runSingle(cmd.Context(), runner.Job{
			Operation: runner.OpFilter,
			InputPath: filterFlags.input,
			Start:     start,
			End:       end,
		}, filterFlags.output)
	},
}

func init() {
	rootCmd.AddCommand(filterCmd)

	filterCmd.Flags().StringVarP(&filterFlags.input, "input", "i", "", "SPED file to filter")
	filterCmd.Flags().StringVarP(&filterFlags.output, "output", "o", "", "Output file (default: generated in the output directory)")
	filterCmd.Flags().StringVar(&filterFlags.start, "start", "", "First day of the period (DDMMYYYY)")
	filterCmd.Flags().StringVar(&filterFlags.end, "end", "", "Last day of the period (DDMMYYYY)")

	filterCmd.MarkFlagRequired("input")
	filterCmd.MarkFlagRequired("start")
	filterCmd.MarkFlagRequired("end")
}
