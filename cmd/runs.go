package main

import (
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
)

var runsLimit int

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List recent ingest runs and their outcomes",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate("runs"); err != nil {
			return err
		}

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		reports, err := st.ListReports(ctx, runsLimit)
		if err != nil {
			return eris.Wrap(err, "list ingest runs")
		}

		if len(reports) == 0 {
			fmt.Println("no ingest runs recorded")
			return nil
		}

		for _, r := range reports {
			fmt.Printf("%s  zip=%s  attempted=%d succeeded=%d failed=%d  %s\n",
				r.RunID, r.ZipCode, r.Attempted, r.Succeeded, r.Failed,
				r.StartedAt.Format("2006-01-02 15:04:05"))
			for _, f := range r.Failures {
				fmt.Printf("    %-18s %s: %s\n", f.Kind, f.Input, f.Reason)
			}
		}
		return nil
	},
}

func init() {
	runsCmd.Flags().IntVar(&runsLimit, "limit", 20, "max runs to list")
	rootCmd.AddCommand(runsCmd)
}
