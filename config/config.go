package config

import (
	"fmt"

	"github.com/caarlos0/env/v6"
	"github.com/sirupsen/logrus"

	"propfinder/server/internal/estimator"
	"propfinder/server/internal/presentation"
)

type Config struct {
	Server struct {
		Port int `env:"PORT" envDefault:"5250"`

		// Origins allowed by the CORS middleware; "*" allows any
		AllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envDefault:"*" envSeparator:","`
	}

	Dataset struct {
		Path string `env:"DATASET_PATH" envDefault:"data/properties.csv"`

		// When set, raw rows are read from PostgreSQL instead of the CSV
		PostgresDSN   string `env:"DATASET_POSTGRES_DSN"`
		PostgresTable string `env:"DATASET_POSTGRES_TABLE" envDefault:"properties"`
	}

	Database struct {
		Path string `env:"DATABASE_PATH" envDefault:"data/propfinder.db"`
	}

	Model struct {
		Kind           string  `env:"MODEL_KIND" envDefault:"ensemble"`
		Trees          int     `env:"MODEL_TREES" envDefault:"100"`
		MaxDepth       int     `env:"MODEL_MAX_DEPTH" envDefault:"12"`
		MinSamplesLeaf int     `env:"MODEL_MIN_SAMPLES_LEAF" envDefault:"1"`
		BoostingStages int     `env:"MODEL_BOOSTING_STAGES" envDefault:"100"`
		BoostingDepth  int     `env:"MODEL_BOOSTING_DEPTH" envDefault:"3"`
		LearningRate   float64 `env:"MODEL_LEARNING_RATE" envDefault:"0.1"`
		Neighbours     int     `env:"MODEL_NEIGHBOURS" envDefault:"5"`
		Seed           uint64  `env:"MODEL_SEED" envDefault:"42"`
		TestFraction   float64 `env:"MODEL_TEST_FRACTION" envDefault:"0.2"`
	}

	Projection struct {
		AppreciationRate float64 `env:"APPRECIATION_RATE" envDefault:"0.05"`
		Years            int     `env:"PROJECTION_YEARS" envDefault:"5"`
	}

	// BatchProcessing configuration for the prediction audit log
	BatchProcessing struct {
		// Number of queued batches before pushes are rejected
		QueueSize int `env:"BATCH_QUEUE_SIZE" envDefault:"256"`

		// Maximum number of logs to accumulate before writing
		MaxBatchSize int `env:"BATCH_MAX_SIZE" envDefault:"100"`

		// Maximum time to wait before writing a non-full batch (in seconds)
		MaxBatchWaitTime int `env:"BATCH_WAIT_TIME" envDefault:"5"`

		// Maximum number of retries for failed batches
		MaxRetries int `env:"BATCH_MAX_RETRIES" envDefault:"3"`

		// Delay between retries in seconds
		RetryDelay int `env:"BATCH_RETRY_DELAY" envDefault:"1"`
	}

	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
}

func LoadConfig() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid PORT %d", c.Server.Port)
	}
	if c.Dataset.Path == "" && c.Dataset.PostgresDSN == "" {
		return fmt.Errorf("either DATASET_PATH or DATASET_POSTGRES_DSN is required")
	}
	if c.Database.Path == "" {
		return fmt.Errorf("DATABASE_PATH is required")
	}
	if _, err := estimator.ParseKind(c.Model.Kind); err != nil {
		return fmt.Errorf("invalid MODEL_KIND: %w", err)
	}
	if c.Model.TestFraction < 0 || c.Model.TestFraction >= 1 {
		return fmt.Errorf("MODEL_TEST_FRACTION must be in [0, 1), got %v", c.Model.TestFraction)
	}
	if c.Model.Trees < 1 || c.Model.BoostingStages < 1 || c.Model.Neighbours < 1 {
		return fmt.Errorf("MODEL_TREES, MODEL_BOOSTING_STAGES and MODEL_NEIGHBOURS must be positive")
	}
	if c.Model.LearningRate <= 0 {
		return fmt.Errorf("MODEL_LEARNING_RATE must be positive, got %v", c.Model.LearningRate)
	}
	if c.Projection.AppreciationRate <= -1 {
		return fmt.Errorf("APPRECIATION_RATE must be greater than -1, got %v", c.Projection.AppreciationRate)
	}
	if c.Projection.Years < 0 {
		return fmt.Errorf("PROJECTION_YEARS must not be negative, got %d", c.Projection.Years)
	}
	if c.BatchProcessing.QueueSize < 1 || c.BatchProcessing.MaxBatchSize < 1 {
		return fmt.Errorf("BATCH_QUEUE_SIZE and BATCH_MAX_SIZE must be positive")
	}
	if c.BatchProcessing.MaxRetries < 0 || c.BatchProcessing.RetryDelay < 0 || c.BatchProcessing.MaxBatchWaitTime < 1 {
		return fmt.Errorf("invalid batch processing settings")
	}
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("invalid LOG_LEVEL: %w", err)
	}
	return nil
}

// EstimatorOptions maps the model settings onto training options.
func (c *Config) EstimatorOptions() estimator.Options {
	opts := estimator.DefaultOptions()
	opts.Kind = estimator.Kind(c.Model.Kind)
	opts.Forest.Trees = c.Model.Trees
	opts.Forest.Tree.MaxDepth = c.Model.MaxDepth
	opts.Forest.Tree.MinSamplesLeaf = c.Model.MinSamplesLeaf
	opts.Boosting.Stages = c.Model.BoostingStages
	opts.Boosting.Tree.MaxDepth = c.Model.BoostingDepth
	opts.Boosting.LearningRate = c.Model.LearningRate
	opts.Neighbours = c.Model.Neighbours
	opts.Seed = c.Model.Seed
	opts.TestFraction = c.Model.TestFraction
	return opts
}

// PriceProjection is the appreciation applied to card prices.
func (c *Config) PriceProjection() presentation.Projection {
	return presentation.Projection{Rate: c.Projection.AppreciationRate, Years: c.Projection.Years}
}
