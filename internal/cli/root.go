// Package cli defines the cobra command tree for propfinder.
package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"propfinder/server/config"
	"propfinder/server/internal/cleaning"
	"propfinder/server/internal/database"
	"propfinder/server/internal/dataset"
	"propfinder/server/internal/logging"
)

var (
	flagFormat   string
	flagLogLevel string
	flagDataset  string
	flagDB       string
)

// NewRootCmd creates the root cobra command with global flags.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "propfinder",
		Short:         "Search property listings and estimate prices",
		Long:          "Serve, search and price a real-estate listings dataset. Settings come from the environment; flags override them.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if flagFormat != "text" && flagFormat != "json" {
				return fmt.Errorf("unknown format %q (text|json)", flagFormat)
			}
			return nil
		},
	}

	root.PersistentFlags().StringVar(&flagFormat, "format", "text", "output format (text|json)")
	root.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "log level (default: LOG_LEVEL)")
	root.PersistentFlags().StringVar(&flagDataset, "dataset", "", "dataset CSV path (default: DATASET_PATH)")
	root.PersistentFlags().StringVar(&flagDB, "db", "", "SQLite database path (default: DATABASE_PATH)")

	root.AddCommand(
		newServeCmd(),
		newTrainCmd(),
		newSearchCmd(),
		newPredictCmd(),
	)

	return root
}

// loadSettings reads the environment and applies the global flags. Logs go
// to stderr so command output stays parseable.
func loadSettings(cmd *cobra.Command) (*config.Config, *logrus.Logger, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, nil, err
	}
	if flagDataset != "" {
		cfg.Dataset.Path = flagDataset
		cfg.Dataset.PostgresDSN = ""
	}
	if flagDB != "" {
		cfg.Database.Path = flagDB
	}
	if flagLogLevel != "" {
		cfg.LogLevel = flagLogLevel
	}

	logger := logging.New(cfg.LogLevel)
	logger.SetOutput(cmd.ErrOrStderr())
	return cfg, logger, nil
}

// newSource picks PostgreSQL when a DSN is configured and the CSV file
// otherwise.
func newSource(cfg *config.Config, logger *logrus.Logger) (dataset.Source, func(), error) {
	if cfg.Dataset.PostgresDSN != "" {
		source, err := dataset.NewPostgresSource(cfg.Dataset.PostgresDSN, cfg.Dataset.PostgresTable, logger)
		if err != nil {
			return nil, nil, err
		}
		return source, func() {
			if err := source.Close(); err != nil {
				logger.WithError(err).Warn("Failed to close dataset database")
			}
		}, nil
	}
	return &dataset.CSVSource{Path: cfg.Dataset.Path, Logger: logger}, func() {}, nil
}

func loadDataset(ctx context.Context, cfg *config.Config, logger *logrus.Logger) (*cleaning.Dataset, error) {
	source, closeSource, err := newSource(cfg, logger)
	if err != nil {
		return nil, err
	}
	defer closeSource()

	ds, err := source.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading dataset from %s: %w", source, err)
	}
	logger.WithFields(logrus.Fields{
		"source":  source.String(),
		"rows":    ds.Report.Rows,
		"loaded":  ds.Report.Loaded,
		"skipped": ds.Report.Skipped,
		"samples": ds.Report.Samples,
	}).Info("Dataset loaded")
	return ds, nil
}

// openDatabase opens the artifact database and runs migrations.
func openDatabase(cfg *config.Config) (*database.Database, error) {
	if dir := filepath.Dir(cfg.Database.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}
	db, err := database.NewDatabase(cfg.Database.Path)
	if err != nil {
		return nil, err
	}
	if err := db.RunMigrations(); err != nil {
		closeDB(db, nil)
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return db, nil
}

// closeDB closes the database, logging any error.
func closeDB(db *database.Database, logger *logrus.Logger) {
	if err := db.Close(); err != nil {
		logging.OrDefault(logger).WithError(err).Warn("Failed to close database")
	}
}

// isJSON returns true if the --format flag is set to json.
func isJSON() bool {
	return flagFormat == "json"
}
