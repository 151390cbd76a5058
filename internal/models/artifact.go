package models

import "time"

// ModelArtifact is one persisted training run.
type ModelArtifact struct {
	RunID         string    `gorm:"primaryKey;type:varchar(36)" json:"run_id"`
	Kind          string    `gorm:"type:varchar(20);not null;index:idx_model_artifacts_kind_created" json:"kind"`
	SchemaVersion int       `gorm:"not null" json:"schema_version"`
	Fingerprint   string    `gorm:"type:varchar(64);not null" json:"fingerprint"`
	Metrics       string    `gorm:"type:text" json:"metrics"`
	Payload       []byte    `gorm:"not null" json:"-"`
	CreatedAt     time.Time `gorm:"autoCreateTime;index:idx_model_artifacts_kind_created" json:"created_at"`
}

func (ModelArtifact) TableName() string {
	return "model_artifacts"
}

// PredictionLog records a single /predict call for auditing.
type PredictionLog struct {
	ID             string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	RunID          string    `gorm:"type:varchar(36);index" json:"run_id"`
	Kind           string    `gorm:"type:varchar(20)" json:"kind"`
	City           string    `json:"city"`
	PropertyType   string    `json:"property_type"`
	Size           *float64  `json:"size"`
	Bedrooms       *float64  `json:"bedrooms"`
	PredictedPrice float64   `json:"predicted_price"`
	Error          string    `json:"error,omitempty"`
	CreatedAt      time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (PredictionLog) TableName() string {
	return "prediction_logs"
}
