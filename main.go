// =============================================================================
// SPED Toolkit - Main Entry Point
// =============================================================================
//
// USAGE:
//   sped filter     - Filter a SPED file to a date range
//   sped keys       - Extract NFe/CTe access keys
//   sped aggregate  - Aggregate PIS/COFINS into an XLSX report
//   sped validate   - Check the block 9 trailer
//   sped process    - Run the toolkit over the input directory
//   sped history    - List recent runs
//   sped version    - Display the application version
//
// ARCHITECTURE:
//   - cmd/       : CLI command definitions (Cobra)
//   - internal/  : SPED engine, runner, history, report and configuration
//   - pkg/       : Shared file utilities
//
// =============================================================================

package main

import (
	"github.com/ginjaninja78/sped-toolkit/cmd"
)

func main() {
	cmd.Execute()
}
