package main

import (
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/propwatch/appraisal-cli/internal/normalize"
	"github.com/propwatch/appraisal-cli/internal/pipeline"
	"github.com/propwatch/appraisal-cli/internal/resolve"
	"github.com/propwatch/appraisal-cli/pkg/appraiser"
)

var ingestWorkers int

var ingestCmd = &cobra.Command{
	Use:   "ingest <zipcode>",
	Short: "Fetch and persist property records for every address in a zip code",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := cfg.Validate("ingest"); err != nil {
			return err
		}

		zipCode := args[0]

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		inputs, err := st.AddressesByZip(ctx, zipCode)
		if err != nil {
			return eris.Wrapf(err, "list addresses for %s", zipCode)
		}
		if len(inputs) == 0 {
			zap.L().Info("no addresses for zip code", zap.String("zip", zipCode))
			return nil
		}

		opts := []appraiser.Option{
			appraiser.WithRateLimit(cfg.Appraiser.RateLimit),
			appraiser.WithMaxRetries(cfg.Appraiser.MaxRetries),
		}
		if cfg.Appraiser.BaseURL != "" {
			opts = append(opts, appraiser.WithBaseURL(cfg.Appraiser.BaseURL))
		}
		if cfg.Appraiser.TimeoutSecs > 0 {
			opts = append(opts, appraiser.WithHTTPClient(httpClientWithTimeout(cfg.Appraiser.TimeoutSecs)))
		}
		source := appraiser.NewClient(opts...)

		workers := cfg.Ingest.Workers
		if ingestWorkers > 0 {
			workers = ingestWorkers
		}

		p := pipeline.New(resolve.NewResolver(source), source, st, pipeline.Options{
			Workers:         workers,
			QueueDepth:      cfg.Ingest.QueueDepth,
			ResidentialOnly: cfg.Ingest.ResidentialOnly,
			RequireLand:     cfg.Ingest.RequireLand,
			Normalize:       normalize.Policy{DropFrontage: cfg.Normalize.DropFrontage},
		})

		report, err := p.Run(ctx, zipCode, inputs)
		if err != nil {
			return eris.Wrap(err, "ingest run")
		}

		zap.L().Info("ingest report",
			zap.String("run_id", report.RunID),
			zap.Int("attempted", report.Attempted),
			zap.Int("succeeded", report.Succeeded),
			zap.Int("failed", report.Failed),
			zap.Duration("elapsed", report.FinishedAt.Sub(report.StartedAt)),
		)
		return nil
	},
}

func init() {
	ingestCmd.Flags().IntVar(&ingestWorkers, "workers", 0, "worker pool size (default from config)")
	rootCmd.AddCommand(ingestCmd)
}

func httpClientWithTimeout(secs int) *http.Client {
	return &http.Client{Timeout: time.Duration(secs) * time.Second}
}
