package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"propfinder/server/internal/api"
	"propfinder/server/internal/estimator"
	"propfinder/server/internal/processor"
	"propfinder/server/internal/queue"
	"propfinder/server/internal/search"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd() *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		Long:  "Load the dataset, load or train the price models, then serve the search page, the JSON API and POST /predict.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, port)
		},
	}

	cmd.Flags().IntVar(&port, "port", 0, "port to listen on (default: PORT)")

	return cmd
}

func runServe(cmd *cobra.Command, port int) error {
	cfg, logger, err := loadSettings(cmd)
	if err != nil {
		return err
	}
	logger.SetOutput(os.Stdout)
	if port != 0 {
		cfg.Server.Port = port
	}
	if logger.GetLevel() < logrus.DebugLevel {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ds, err := loadDataset(ctx, cfg, logger)
	if err != nil {
		return err
	}
	catalog := search.NewCatalog(ds.Records)

	db, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer closeDB(db, logger)

	kind, err := estimator.ParseKind(cfg.Model.Kind)
	if err != nil {
		return err
	}
	opts := cfg.EstimatorOptions()
	predictor, err := estimator.LoadOrTrain(ctx, db, kind, ds.Samples, opts, logger)
	if err != nil {
		return fmt.Errorf("loading %s model: %w", kind, err)
	}
	recommender := predictor
	if kind != estimator.KindKNN {
		recommender, err = estimator.LoadOrTrain(ctx, db, estimator.KindKNN, ds.Samples, opts, logger)
		if err != nil {
			return fmt.Errorf("loading %s model: %w", estimator.KindKNN, err)
		}
	}

	predictionQueue := queue.NewPredictionQueue(cfg.BatchProcessing.QueueSize, logger)
	batchProcessor := processor.NewBatchProcessor(db.GetDB(), predictionQueue, cfg, logger)
	batchProcessor.Start()
	predictionQueue.Start()

	handler := api.NewHandler(api.Dependencies{
		Catalog:     catalog,
		Predictor:   predictor,
		Recommender: recommender,
		Projection:  cfg.PriceProjection(),
		Audit:       predictionQueue,
		History:     db,
	}, logger)
	router := api.NewRouter(handler, cfg.Server.AllowedOrigins, logger)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Infof("Starting server on port %d", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	var runErr error
	select {
	case runErr = <-serverErr:
		if runErr != nil {
			runErr = fmt.Errorf("server failed: %w", runErr)
		}
	case <-ctx.Done():
		logger.Info("Shutting down server")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("Server shutdown failed")
	}

	if err := predictionQueue.Close(); err != nil {
		logger.WithError(err).Warn("Failed to close prediction queue")
	}
	predictionQueue.Wait()
	batchProcessor.Stop()

	logger.Info("Server stopped")
	return runErr
}
