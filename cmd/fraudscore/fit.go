package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/mbd888/fraudscore/internal/artifact"
	"github.com/mbd888/fraudscore/internal/config"
	"github.com/mbd888/fraudscore/internal/ingest"
	"github.com/mbd888/fraudscore/internal/logging"
	"github.com/mbd888/fraudscore/internal/metrics"
	"github.com/mbd888/fraudscore/internal/pipeline"
	"github.com/mbd888/fraudscore/internal/traces"
)

type fitOptions struct {
	train       ingest.Partition
	score       ingest.Partition
	pipeline    string
	maxRows     int
	report      string
	submission  string
	skipPublish bool
}

func fitCmd() *cobra.Command {
	var o fitOptions
	cmd := &cobra.Command{
		Use:   "fit",
		Short: "Train a model and publish it to the artifact store",
		Long: `Reads the labeled train partition (and optionally the unlabeled scoring
partition, which contributes to population statistics), trains every
configured model family under cross-validation, and publishes the resulting
artifact as a new version. The training report is written as JSON.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFit(cmd.Context(), o)
		},
	}

	f := cmd.Flags()
	f.StringVar(&o.train.TransactionPath, "train", "", "Train transaction CSV")
	f.StringVar(&o.train.IdentityPath, "train-identity", "", "Train identity CSV")
	f.StringVar(&o.score.TransactionPath, "score", "", "Scoring transaction CSV")
	f.StringVar(&o.score.IdentityPath, "score-identity", "", "Scoring identity CSV")
	f.StringVarP(&o.pipeline, "config", "c", "", "Pipeline YAML (default $PIPELINE_CONFIG)")
	f.IntVar(&o.maxRows, "max-rows", 0, "Read at most this many rows per file")
	f.StringVarP(&o.report, "report", "o", "", "Write the report here instead of stdout")
	f.StringVar(&o.submission, "submission", "", "Write scoring-partition predictions as CSV")
	f.BoolVar(&o.skipPublish, "no-publish", false, "Train and report without saving the artifact")
	_ = cmd.MarkFlagRequired("train")

	return cmd
}

func runFit(ctx context.Context, o fitOptions) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := logging.New(cfg.LogLevel, cfg.LogFormat)

	shutdown, err := traces.Init(ctx, cfg.OTLPEndpoint, logger)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer func() { _ = shutdown(context.Background()) }()

	pcfg, err := loadPipelineConfig(o.pipeline, cfg)
	if err != nil {
		return err
	}
	if o.submission != "" && o.score.TransactionPath == "" {
		return fmt.Errorf("--submission needs --score")
	}

	read := ingest.ReadOptions{Categorical: ingest.DefaultCategorical, MaxRows: o.maxRows}
	train, err := ingest.Load(o.train, read)
	if err != nil {
		return fmt.Errorf("read train partition: %w", err)
	}
	logger.Info("train partition loaded", "rows", train.NumRows(), "columns", train.NumCols())

	opts := []pipeline.Option{pipeline.WithConfig(pcfg), pipeline.WithLogger(logger)}
	if o.score.TransactionPath != "" {
		score, err := ingest.Load(o.score, read)
		if err != nil {
			return fmt.Errorf("read scoring partition: %w", err)
		}
		logger.Info("scoring partition loaded", "rows", score.NumRows(), "columns", score.NumCols())
		opts = append(opts, pipeline.WithScoringPopulation(score))
	}

	sinks := metrics.Multi{metrics.LogSink{Logger: logger}}
	var push *metrics.PushSink
	if cfg.PushgatewayURL != "" {
		push = metrics.NewPushSink(cfg.PushgatewayURL, "fraudscore_fit", nil)
		sinks = append(sinks, push)
	}
	opts = append(opts, pipeline.WithSink(sinks))

	art, rep, err := pipeline.Fit(ctx, train, opts...)
	if err != nil {
		return err
	}

	if push != nil {
		if err := push.Flush(ctx); err != nil {
			logger.Warn("pushgateway flush failed", "error", err)
		}
	}

	if !o.skipPublish {
		if err := publish(ctx, cfg, art, logger); err != nil {
			return err
		}
	}

	if o.submission != "" {
		if err := writeFile(o.submission, func(w io.Writer) error {
			return pipeline.WriteSubmission(w, rep.Predictions)
		}); err != nil {
			return fmt.Errorf("write submission: %w", err)
		}
		logger.Info("submission written", "path", o.submission, "rows", len(rep.Predictions))
	}

	return writeJSON(o.report, rep)
}

func loadPipelineConfig(path string, cfg *config.Config) (pipeline.Config, error) {
	if path == "" {
		path = cfg.PipelineConfig
	}
	pcfg := pipeline.DefaultConfig()
	if path != "" {
		var err error
		if pcfg, err = pipeline.LoadConfig(path); err != nil {
			return pipeline.Config{}, err
		}
	}
	if cfg.MaxFoldConcurrency > 0 {
		pcfg.CV.MaxConcurrency = cfg.MaxFoldConcurrency
	}
	return pcfg, nil
}

func publish(ctx context.Context, cfg *config.Config, art *pipeline.Artifact, logger *slog.Logger) error {
	store, db, err := artifact.Open(cfg.DatabaseURL, cfg.ArtifactDir, cfg.ArtifactKeep, logger)
	if err != nil {
		return err
	}
	if db != nil {
		defer func() { _ = db.Close() }()
	}
	rec, err := artifact.Publish(ctx, store, art)
	if err != nil {
		return err
	}
	logger.Info("artifact published",
		"version", rec.Version,
		"id", rec.ID,
		"run_id", rec.RunID,
		"oof_auc", rec.OOFAUC,
		"bytes", len(rec.Blob),
	)
	return nil
}

// writeFile runs fn against path, or stdout when path is empty.
func writeFile(path string, fn func(io.Writer) error) error {
	if path == "" {
		return fn(os.Stdout)
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := fn(f); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func writeJSON(path string, v any) error {
	return writeFile(path, func(w io.Writer) error {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	})
}
