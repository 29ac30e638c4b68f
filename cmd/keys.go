package cmd

import (
	"github.com/ginjaninja78/sped-toolkit/internal/runner"
	"github.com/spf13/cobra"
)

var keysFlags struct {
	input  string
	output string
}

// keysCmd extracts the access keys of inbound NFe (C100) and CTe (D100)
// documents.
var keysCmd = &cobra.Command{
	Use:   "keys",
	Short: "Extract NFe and CTe access keys from a SPED file",
	Long: `Keys collects the 44-digit access keys of inbound documents (C100 for
NFe, D100 for CTe) and writes them in two sections, CTe first, NFe second.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSingle(cmd.Context(), runner.Job{
			Operation: runner.OpKeys,
			InputPath: keysFlags.input,
		}, keysFlags.output)
	},
}

func init() {
	rootCmd.AddCommand(keysCmd)

	keysCmd.Flags().StringVarP(&keysFlags.input, "input", "i", "", "SPED file to read")
	keysCmd.Flags().StringVarP(&keysFlags.output, "output", "o", "", "Key file (default: generated in the output directory)")
	keysCmd.MarkFlagRequired("input")
}
