package estimator

import (
	"fmt"
	"math/rand/v2"
)

// Forest averages trees grown on bootstrap resamples.
type Forest struct {
	Fingerprint string  `json:"fingerprint"`
	Width       int     `json:"width"`
	Trees       []*Tree `json:"trees"`
}

type ForestParams struct {
	Trees int        `json:"trees"`
	Tree  TreeParams `json:"tree"`
}

func fitForest(x [][]float64, y []float64, params ForestParams, rng *rand.Rand) *Forest {
	n := len(y)
	f := &Forest{Width: len(x[0]), Trees: make([]*Tree, 0, params.Trees)}
	for t := 0; t < params.Trees; t++ {
		idx := make([]int, n)
		for i := range idx {
			idx[i] = rng.IntN(n)
		}
		f.Trees = append(f.Trees, fitTree(x, y, idx, params.Tree, rng))
	}
	return f
}

func (f *Forest) Predict(row []float64) float64 {
	var sum float64
	for _, t := range f.Trees {
		sum += t.Predict(row)
	}
	return sum / float64(len(f.Trees))
}

func (f *Forest) validate() error {
	if len(f.Trees) == 0 {
		return fmt.Errorf("forest has no trees")
	}
	for i, t := range f.Trees {
		if err := t.validate(f.Width); err != nil {
			return fmt.Errorf("forest tree %d: %w", i, err)
		}
	}
	return nil
}
