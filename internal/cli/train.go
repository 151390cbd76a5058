package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"propfinder/server/internal/estimator"
)

func newTrainCmd() *cobra.Command {
	var (
		kind  string
		force bool
	)

	cmd := &cobra.Command{
		Use:   "train",
		Short: "Train and store a price model",
		Long:  "Load the stored model artifact of the given kind, training one when none exists. With --force a new run is always trained and saved.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrain(cmd, kind, force)
		},
	}

	cmd.Flags().StringVar(&kind, "kind", "", "model kind (ensemble|knn, default: MODEL_KIND)")
	cmd.Flags().BoolVar(&force, "force", false, "train a new run even if an artifact exists")

	return cmd
}

type trainResult struct {
	RunID     string            `json:"run_id"`
	Kind      estimator.Kind    `json:"kind"`
	Trained   bool              `json:"trained"`
	Metrics   estimator.Metrics `json:"metrics"`
	TrainedAt time.Time         `json:"trained_at"`
}

func runTrain(cmd *cobra.Command, kindFlag string, force bool) error {
	cfg, logger, err := loadSettings(cmd)
	if err != nil {
		return err
	}
	if kindFlag == "" {
		kindFlag = cfg.Model.Kind
	}
	kind, err := estimator.ParseKind(kindFlag)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	ds, err := loadDataset(ctx, cfg, logger)
	if err != nil {
		return err
	}

	db, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer closeDB(db, logger)

	opts := cfg.EstimatorOptions()
	opts.Kind = kind

	var bundle *estimator.Bundle
	trained := force
	if force {
		bundle, err = estimator.Train(ds.Samples, opts)
		if err != nil {
			return err
		}
		if err := db.Save(ctx, bundle); err != nil {
			return err
		}
	} else {
		before, err := db.ListArtifacts(ctx, string(kind))
		if err != nil {
			return err
		}
		bundle, err = estimator.LoadOrTrain(ctx, db, kind, ds.Samples, opts, logger)
		if err != nil {
			return err
		}
		trained = len(before) == 0
	}

	result := trainResult{
		RunID:     bundle.RunID,
		Kind:      bundle.Kind,
		Trained:   trained,
		Metrics:   bundle.Metrics,
		TrainedAt: bundle.TrainedAt,
	}
	if isJSON() {
		return printJSON(cmd.OutOrStdout(), result)
	}

	out := cmd.OutOrStdout()
	verb := "Loaded"
	if trained {
		verb = "Trained"
	}
	fmt.Fprintf(out, "%s %s model %s\n", verb, result.Kind, result.RunID)
	fmt.Fprintf(out, "  Train:  %d samples\n", result.Metrics.TrainSize)
	fmt.Fprintf(out, "  Test:   %d samples\n", result.Metrics.TestSize)
	fmt.Fprintf(out, "  RMSE:   %.2f\n", result.Metrics.RMSE)
	fmt.Fprintf(out, "  R²:     %.4f\n", result.Metrics.R2)
	return nil
}
