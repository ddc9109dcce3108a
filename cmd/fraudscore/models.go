package main

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/mbd888/fraudscore/internal/artifact"
	"github.com/mbd888/fraudscore/internal/config"
	"github.com/mbd888/fraudscore/internal/logging"
)

func modelsCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "models",
		Short: "List published artifact versions, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
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

			recs, err := store.List(cmd.Context())
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON("", recs)
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "VERSION\tRUN\tOOF AUC\tCREATED")
			for _, r := range recs {
				fmt.Fprintf(w, "%d\t%s\t%.5f\t%s\n", r.Version, r.RunID, float64(r.OOFAUC), r.CreatedAt.Format(time.RFC3339))
			}
			return w.Flush()
		},
	}
	cmd.Flags().BoolVarP(&asJSON, "json", "j", false, "Output as JSON")
	return cmd
}
