package estimator

import (
	"errors"
	"fmt"
)

var (
	ErrModelLoad  = errors.New("model load error")
	ErrPrediction = errors.New("prediction error")

	// ErrNotFound is returned by a Store that holds no artifact for a kind.
	ErrNotFound = errors.New("model artifact not found")
)

// ModelLoadError means a persisted artifact cannot be used as-is. It is
// fatal: a mismatched artifact is never silently replaced.
type ModelLoadError struct {
	RunID  string
	Reason string
	Err    error
}

func (e *ModelLoadError) Error() string {
	msg := "failed to load model"
	if e.RunID != "" {
		msg += " " + e.RunID
	}
	msg += ": " + e.Reason
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ModelLoadError) Unwrap() error {
	return e.Err
}

func (e *ModelLoadError) Is(target error) bool {
	return target == ErrModelLoad
}

// PredictionError reports an input the model cannot score.
type PredictionError struct {
	Reason string
}

func (e *PredictionError) Error() string {
	return fmt.Sprintf("prediction failed: %s", e.Reason)
}

func (e *PredictionError) Is(target error) bool {
	return target == ErrPrediction
}
