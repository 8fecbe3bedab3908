package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/propwatch/appraisal-cli/internal/spatial"
)

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Build the coordinate index over stored addresses",
	Long:  "Inserts one index entry per stored coordinate that has none yet. Safe to re-run; ids keep increasing across passes.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate("index"); err != nil {
			return err
		}

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		n, err := spatial.NewBuilder(st).Build(ctx)
		if err != nil {
			return eris.Wrap(err, "build coordinate index")
		}

		zap.L().Info("coordinate index built", zap.Int("inserted", n))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(indexCmd)
}
