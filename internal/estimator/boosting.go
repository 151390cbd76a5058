package estimator

import (
	"fmt"
	"math/rand/v2"

	"propfinder/server/internal/stats"
)

// Boosting is least-squares gradient boosting: each stage fits a shallow
// tree to the current residuals.
type Boosting struct {
	Fingerprint  string  `json:"fingerprint"`
	Width        int     `json:"width"`
	Init         float64 `json:"init"`
	LearningRate float64 `json:"learning_rate"`
	Trees        []*Tree `json:"trees"`
}

type BoostingParams struct {
	Stages       int        `json:"stages"`
	LearningRate float64    `json:"learning_rate"`
	Tree         TreeParams `json:"tree"`
}

func fitBoosting(x [][]float64, y []float64, params BoostingParams, rng *rand.Rand) *Boosting {
	n := len(y)
	b := &Boosting{
		Width:        len(x[0]),
		Init:         stats.Mean(y),
		LearningRate: params.LearningRate,
		Trees:        make([]*Tree, 0, params.Stages),
	}

	current := make([]float64, n)
	residuals := make([]float64, n)
	idx := make([]int, n)
	for i := range current {
		current[i] = b.Init
		idx[i] = i
	}

	for s := 0; s < params.Stages; s++ {
		for i := range residuals {
			residuals[i] = y[i] - current[i]
		}
		tree := fitTree(x, residuals, idx, params.Tree, rng)
		for i := range current {
			current[i] += b.LearningRate * tree.Predict(x[i])
		}
		b.Trees = append(b.Trees, tree)
	}
	return b
}

func (b *Boosting) Predict(row []float64) float64 {
	out := b.Init
	for _, t := range b.Trees {
		out += b.LearningRate * t.Predict(row)
	}
	return out
}

func (b *Boosting) validate() error {
	if b.LearningRate <= 0 {
		return fmt.Errorf("boosting learning rate must be positive, got %v", b.LearningRate)
	}
	for i, t := range b.Trees {
		if err := t.validate(b.Width); err != nil {
			return fmt.Errorf("boosting stage %d: %w", i, err)
		}
	}
	return nil
}
