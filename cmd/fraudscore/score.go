package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/mbd888/fraudscore/internal/artifact"
	"github.com/mbd888/fraudscore/internal/config"
	"github.com/mbd888/fraudscore/internal/ingest"
	"github.com/mbd888/fraudscore/internal/logging"
	"github.com/mbd888/fraudscore/internal/pipeline"
)

func scoreCmd() *cobra.Command {
	var (
		part    ingest.Partition
		version int
		out     string
	)
	cmd := &cobra.Command{
		Use:   "score",
		Short: "Score a transaction file with a published model",
		Long: `Loads an artifact version (the latest by default) and writes one
TransactionID,isFraud row per input transaction, in input order.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScore(cmd.Context(), part, version, out)
		},
	}

	f := cmd.Flags()
	f.StringVar(&part.TransactionPath, "transactions", "", "Transaction CSV")
	f.StringVar(&part.IdentityPath, "identity", "", "Identity CSV")
	f.IntVar(&version, "version", 0, "Artifact version (0 for latest)")
	f.StringVarP(&out, "output", "o", "", "Write predictions here instead of stdout")
	_ = cmd.MarkFlagRequired("transactions")

	return cmd
}

func runScore(ctx context.Context, part ingest.Partition, version int, out string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := logging.New(cfg.LogLevel, cfg.LogFormat)

	store, db, err := artifact.Open(cfg.DatabaseURL, cfg.ArtifactDir, cfg.ArtifactKeep, logger)
	if err != nil {
		return err
	}
	if db != nil {
		defer func() { _ = db.Close() }()
	}

	art, rec, err := artifact.Load(ctx, store, version)
	if err != nil {
		return fmt.Errorf("load artifact: %w", err)
	}
	logger.Info("model loaded", "version", rec.Version, "run_id", rec.RunID)

	t, err := ingest.Load(part, ingest.ReadOptions{Categorical: ingest.DefaultCategorical})
	if err != nil {
		return fmt.Errorf("read transactions: %w", err)
	}

	preds, err := pipeline.Score(logging.WithLogger(ctx, logger), art, t)
	if err != nil {
		return err
	}
	logger.Info("scored", "rows", len(preds))

	return writeFile(out, func(w io.Writer) error {
		return pipeline.WriteSubmission(w, preds)
	})
}
