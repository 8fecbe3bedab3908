package main

import (
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/propwatch/appraisal-cli/internal/importer"
)

var importShp bool

var importCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Import extracted address records into the store",
	Long:  "Loads addresses produced by the geographic extract: either the flat text dump (default) or a county address-point shapefile (--shp).",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		path := args[0]

		if err := cfg.Validate("import"); err != nil {
			return err
		}

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		var res *importer.Result
		if importShp {
			res, err = importer.ImportShapefile(ctx, path, st)
		} else {
			f, openErr := os.Open(path)
			if openErr != nil {
				return eris.Wrapf(openErr, "open %s", path)
			}
			defer f.Close()
			res, err = importer.ImportLines(ctx, f, st)
		}
		if err != nil {
			return eris.Wrap(err, "import addresses")
		}

		zap.L().Info("import finished",
			zap.String("file", path),
			zap.Int("imported", res.Imported),
			zap.Int("skipped", res.Skipped),
		)
		return nil
	},
}

func init() {
	importCmd.Flags().BoolVar(&importShp, "shp", false, "input is an address-point shapefile")
	rootCmd.AddCommand(importCmd)
}
