package estimator

import (
	"fmt"
	"sort"
)

// KNN predicts the mean price of the K closest training rows by Euclidean
// distance.
type KNN struct {
	Fingerprint string      `json:"fingerprint"`
	Width       int         `json:"width"`
	K           int         `json:"k"`
	X           [][]float64 `json:"x"`
	Y           []float64   `json:"y"`
}

func fitKNN(x [][]float64, y []float64, k int) *KNN {
	m := &KNN{Width: len(x[0]), K: k, X: make([][]float64, len(x)), Y: make([]float64, len(y))}
	for i, row := range x {
		m.X[i] = append([]float64(nil), row...)
	}
	copy(m.Y, y)
	return m
}

type neighbour struct {
	dist  float64
	index int
}

func (m *KNN) Predict(row []float64) float64 {
	neighbours := make([]neighbour, len(m.X))
	for i, other := range m.X {
		var d float64
		for j := range row {
			diff := row[j] - other[j]
			d += diff * diff
		}
		neighbours[i] = neighbour{dist: d, index: i}
	}
	// Ties resolve to the earlier training row.
	sort.SliceStable(neighbours, func(a, b int) bool { return neighbours[a].dist < neighbours[b].dist })

	k := min(m.K, len(neighbours))
	var sum float64
	for _, nb := range neighbours[:k] {
		sum += m.Y[nb.index]
	}
	return sum / float64(k)
}

func (m *KNN) validate() error {
	if m.K < 1 {
		return fmt.Errorf("knn needs k >= 1, got %d", m.K)
	}
	if len(m.X) == 0 || len(m.X) != len(m.Y) {
		return fmt.Errorf("knn has %d rows and %d targets", len(m.X), len(m.Y))
	}
	for i, row := range m.X {
		if len(row) != m.Width {
			return fmt.Errorf("knn row %d has %d features, expected %d", i, len(row), m.Width)
		}
	}
	return nil
}
