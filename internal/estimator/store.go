package estimator

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"propfinder/server/internal/logging"
	"propfinder/server/internal/models"
)

// Store persists bundles. Latest returns ErrNotFound when no bundle of the
// kind has been saved.
type Store interface {
	Latest(ctx context.Context, kind Kind) (*Bundle, error)
	Save(ctx context.Context, bundle *Bundle) error
}

// LoadOrTrain returns the newest stored bundle of kind. Only a missing
// artifact triggers training; a corrupt or mismatched one is returned as an
// error.
func LoadOrTrain(ctx context.Context, store Store, kind Kind, samples []models.TrainingSample, opts Options, logger *logrus.Logger) (*Bundle, error) {
	logger = logging.OrDefault(logger)

	bundle, err := store.Latest(ctx, kind)
	if err == nil {
		logger.WithFields(logrus.Fields{
			"kind":       kind,
			"run_id":     bundle.RunID,
			"trained_at": bundle.TrainedAt,
		}).Info("Loaded model artifact")
		return bundle, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	logger.WithFields(logrus.Fields{
		"kind":    kind,
		"samples": len(samples),
	}).Info("No model artifact found, training")

	opts.Kind = kind
	bundle, err = Train(samples, opts)
	if err != nil {
		return nil, err
	}
	if err := store.Save(ctx, bundle); err != nil {
		return nil, fmt.Errorf("failed to save model artifact: %w", err)
	}

	logger.WithFields(logrus.Fields{
		"kind":       kind,
		"run_id":     bundle.RunID,
		"train_size": bundle.Metrics.TrainSize,
		"test_size":  bundle.Metrics.TestSize,
		"rmse":       bundle.Metrics.RMSE,
		"r2":         bundle.Metrics.R2,
	}).Info("Trained model artifact")
	return bundle, nil
}
