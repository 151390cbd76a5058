// Package database persists model artifacts and the prediction audit log in
// SQLite through gorm.
package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"propfinder/server/internal/estimator"
	"propfinder/server/internal/models"
)

type Database struct {
	db *gorm.DB
}

func NewDatabase(dbPath string) (*Database, error) {
	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite allows a single writer; the audit processor and training share it
	if err := db.Exec("PRAGMA busy_timeout = 5000").Error; err != nil {
		return nil, fmt.Errorf("failed to configure database: %w", err)
	}

	return &Database{db: db}, nil
}

func (d *Database) Close() error {
	sqlDB, err := d.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (d *Database) GetDB() *gorm.DB {
	return d.db
}

func (d *Database) RunMigrations() error {
	if err := d.db.AutoMigrate(&models.ModelArtifact{}, &models.PredictionLog{}); err != nil {
		return fmt.Errorf("failed to migrate tables: %w", err)
	}
	return nil
}

// Latest returns the newest bundle of kind. A row whose columns disagree
// with its payload is reported as a load error rather than skipped.
func (d *Database) Latest(ctx context.Context, kind estimator.Kind) (*estimator.Bundle, error) {
	var artifact models.ModelArtifact
	err := d.db.WithContext(ctx).
		Where("kind = ?", string(kind)).
		Order("created_at DESC").
		Order("rowid DESC").
		First(&artifact).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, estimator.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query model artifact: %w", err)
	}

	if artifact.SchemaVersion != estimator.SchemaVersion {
		return nil, &estimator.ModelLoadError{
			RunID:  artifact.RunID,
			Reason: fmt.Sprintf("schema version %d, expected %d", artifact.SchemaVersion, estimator.SchemaVersion),
		}
	}

	bundle, err := estimator.Unmarshal(artifact.Payload)
	if err != nil {
		return nil, err
	}
	if bundle.RunID != artifact.RunID || bundle.Fingerprint != artifact.Fingerprint || string(bundle.Kind) != artifact.Kind {
		return nil, &estimator.ModelLoadError{RunID: artifact.RunID, Reason: "artifact row does not match its payload"}
	}
	return bundle, nil
}

// Save stores bundle as the newest artifact of its kind.
func (d *Database) Save(ctx context.Context, bundle *estimator.Bundle) error {
	payload, err := bundle.Marshal()
	if err != nil {
		return err
	}
	metrics, err := json.Marshal(bundle.Metrics)
	if err != nil {
		return fmt.Errorf("failed to marshal metrics: %w", err)
	}

	artifact := models.ModelArtifact{
		RunID:         bundle.RunID,
		Kind:          string(bundle.Kind),
		SchemaVersion: bundle.SchemaVersion,
		Fingerprint:   bundle.Fingerprint,
		Metrics:       string(metrics),
		Payload:       payload,
	}
	if err := d.db.WithContext(ctx).Create(&artifact).Error; err != nil {
		return fmt.Errorf("failed to save model artifact: %w", err)
	}
	return nil
}

// ListArtifacts returns artifact metadata, newest first, without payloads.
func (d *Database) ListArtifacts(ctx context.Context, kind string) ([]models.ModelArtifact, error) {
	query := d.db.WithContext(ctx).
		Select("run_id", "kind", "schema_version", "fingerprint", "metrics", "created_at").
		Order("created_at DESC")
	if kind != "" {
		query = query.Where("kind = ?", kind)
	}

	var artifacts []models.ModelArtifact
	if err := query.Find(&artifacts).Error; err != nil {
		return nil, fmt.Errorf("failed to list model artifacts: %w", err)
	}
	return artifacts, nil
}

// InsertPredictionLogs writes a batch of audit rows using tx, which may be a
// transaction.
func InsertPredictionLogs(tx *gorm.DB, logs []*models.PredictionLog) error {
	if len(logs) == 0 {
		return nil
	}
	if err := tx.CreateInBatches(logs, 100).Error; err != nil {
		return fmt.Errorf("failed to insert prediction logs: %w", err)
	}
	return nil
}

// GetRecentPredictions returns the newest audit rows.
func (d *Database) GetRecentPredictions(ctx context.Context, limit int) ([]models.PredictionLog, error) {
	var logs []models.PredictionLog
	err := d.db.WithContext(ctx).
		Order("created_at DESC").
		Limit(limit).
		Find(&logs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query prediction logs: %w", err)
	}
	return logs, nil
}
