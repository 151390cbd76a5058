package stats

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMedian(t *testing.T) {
	assert.Equal(t, 0.0, Median(nil))
	assert.Equal(t, 3.0, Median([]float64{5, 1, 3}))
	assert.Equal(t, 2.5, Median([]float64{4, 1, 3, 2}))

	values := []float64{3, 1, 2}
	Median(values)
	assert.Equal(t, []float64{3, 1, 2}, values, "input must not be reordered")
}

func TestMeanStd(t *testing.T) {
	mean, std := MeanStd([]float64{2, 4, 4, 4, 5, 5, 7, 9})
	assert.InDelta(t, 5.0, mean, 1e-12)
	assert.InDelta(t, 2.0, std, 1e-12)

	mean, std = MeanStd([]float64{7})
	assert.Equal(t, 7.0, mean)
	assert.Equal(t, 0.0, std)
}

func TestMode(t *testing.T) {
	assert.Equal(t, "Pune", Mode([]string{"Pune", "Mumbai", "Pune", ""}))
	assert.Equal(t, "Delhi", Mode([]string{"Mumbai", "Delhi"}), "ties resolve alphabetically")
	assert.Equal(t, "", Mode([]string{"", ""}))
}

func TestRMSEAndR2(t *testing.T) {
	actual := []float64{1, 2, 3, 4}
	assert.Equal(t, 0.0, RMSE(actual, actual))
	assert.Equal(t, 1.0, R2(actual, actual))

	predicted := []float64{2, 3, 4, 5}
	assert.InDelta(t, 1.0, RMSE(predicted, actual), 1e-12)
	assert.InDelta(t, 0.2, R2(predicted, actual), 1e-12)

	// Worse than predicting the mean goes negative.
	assert.InDelta(t, -3.0, R2([]float64{4, 3, 2, 1}, actual), 1e-12)
}

func TestR2_DegenerateTargets(t *testing.T) {
	assert.Equal(t, 0.0, R2(nil, nil))
	assert.Equal(t, 0.0, R2([]float64{1, 2, 3}, []float64{5, 5, 5}))
	assert.Equal(t, 0.0, R2([]float64{7}, []float64{5}))
	assert.Equal(t, 0.0, RMSE(nil, nil))
}
