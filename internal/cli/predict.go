package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"propfinder/server/internal/api"
	"propfinder/server/internal/estimator"
	"propfinder/server/internal/format"
	"propfinder/server/internal/models"
)

func newPredictCmd() *cobra.Command {
	var (
		input models.PredictionInput
		size  float64
		bhk   float64
		kind  string
	)

	cmd := &cobra.Command{
		Use:   "predict",
		Short: "Estimate a property price",
		Long:  "Estimate a price with the stored model, training one first if none exists. Omitted features are imputed from the training data.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("size") {
				input.Size = &size
			}
			if cmd.Flags().Changed("bhk") {
				input.Bedrooms = &bhk
			}
			return runPredict(cmd, kind, input)
		},
	}

	cmd.Flags().Float64Var(&size, "size", 0, "size in sqft")
	cmd.Flags().Float64Var(&bhk, "bhk", 0, "bedroom count")
	cmd.Flags().StringVar(&input.City, "city", "", "city")
	cmd.Flags().StringVar(&input.PropertyType, "type", "", "property type")
	cmd.Flags().StringVar(&kind, "kind", "", "model kind (ensemble|knn, default: MODEL_KIND)")

	return cmd
}

func runPredict(cmd *cobra.Command, kindFlag string, input models.PredictionInput) error {
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

	bundle, err := estimator.LoadOrTrain(ctx, db, kind, ds.Samples, cfg.EstimatorOptions(), logger)
	if err != nil {
		return err
	}

	price, err := bundle.Predict(input)
	if err != nil {
		return err
	}

	resp := api.PredictResponse{
		PredictedPrice: price,
		FormattedPrice: format.Price(price),
		RunID:          bundle.RunID,
		Kind:           string(bundle.Kind),
	}
	if isJSON() {
		return printJSON(cmd.OutOrStdout(), resp)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Estimated price: %s (%s model %s)\n", resp.FormattedPrice, resp.Kind, resp.RunID)
	return nil
}
