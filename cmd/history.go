package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/ginjaninja78/sped-toolkit/internal/config"
	"github.com/ginjaninja78/sped-toolkit/internal/history"
	"github.com/spf13/cobra"
)

var historyFlags struct {
	limit   int
	session string
}

// historyCmd lists recorded runs. It reads the history database directly
// and does not start a session.
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recent runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgFile, envFile)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		conn, err := history.Open(cfg.HistoryDB)
		if err != nil {
			return err
		}
		defer conn.Close()

		runs := history.NewRuns(conn)

		var list []*history.Run
		if historyFlags.session != "" {
			list, err = runs.BySession(historyFlags.session)
		} else {
			list, err = runs.Recent(historyFlags.limit)
		}
		if err != nil {
			return err
		}

		if len(list) == 0 {
			fmt.Println("No runs recorded.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "STARTED\tUSER\tOPERATION\tRESULT\tDURATION\tINPUT\tOUTPUT")
		for _, run := range list {
			status := "ok"
			if !run.Success {
				status = "FAILED"
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
				run.StartedAt.Local().Format("2006-01-02 15:04:05"),
				run.User,
				run.Operation,
				status,
				run.Duration().Round(time.Millisecond),
				run.InputPath,
				run.OutputPath)
		}
		return w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(historyCmd)

	historyCmd.Flags().IntVarP(&historyFlags.limit, "limit", "n", 20, "Number of runs to list")
	historyCmd.Flags().StringVar(&historyFlags.session, "session", "", "List the runs of one session instead")
}
