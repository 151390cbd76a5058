package estimator

import (
	"context"
	"errors"
	"fmt"
	"math"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"propfinder/server/internal/models"
)

func ptr(v float64) *float64 {
	return &v
}

// syntheticSamples prices Mumbai at four times Pune and villas at a premium.
func syntheticSamples(n int) []models.TrainingSample {
	samples := make([]models.TrainingSample, 0, n)
	for i := 0; i < n; i++ {
		city, rate := "Pune", 5000.0
		if i%2 == 1 {
			city, rate = "Mumbai", 20000.0
		}
		kind, premium := "Flat", 0.0
		if i%3 == 0 {
			kind, premium = "Villa", 1000000.0
		}
		size := 500 + float64(i%10)*100
		bhk := float64(1 + i%3)
		samples = append(samples, models.TrainingSample{
			Size:         ptr(size),
			Bedrooms:     ptr(bhk),
			City:         city,
			PropertyType: kind,
			Price:        size*rate + premium,
		})
	}
	return samples
}

func fastOptions(kind Kind) Options {
	opts := DefaultOptions()
	opts.Kind = kind
	opts.Forest.Trees = 15
	opts.Boosting.Stages = 40
	return opts
}

func TestFitPreprocessor_ImputesWithMedianAndMode(t *testing.T) {
	samples := []models.TrainingSample{
		{Size: ptr(1000), Bedrooms: ptr(2), City: "Pune", PropertyType: "Flat", Price: 1},
		{Size: ptr(2000), Bedrooms: ptr(3), City: "Pune", PropertyType: "Villa", Price: 2},
		{Size: nil, Bedrooms: nil, City: "", PropertyType: "Flat", Price: 3},
		{Size: ptr(3000), Bedrooms: ptr(4), City: "Mumbai", PropertyType: "", Price: 4},
	}

	pre, rows, err := FitPreprocessor(samples, EncodingLabel)
	require.NoError(t, err)
	require.Len(t, rows, 4)

	assert.Equal(t, 2000.0, pre.Medians[0])
	assert.Equal(t, 3.0, pre.Medians[1])
	assert.Equal(t, "Pune", pre.Modes[0])
	assert.Equal(t, "Flat", pre.Modes[1])
	assert.Equal(t, []string{"Mumbai", "Pune"}, pre.Categories[0])
	assert.Equal(t, []string{"Flat", "Villa"}, pre.Categories[1])
	assert.Equal(t, 4, pre.Width())

	// Every label-encoded column is standardized.
	for j := 0; j < pre.Width(); j++ {
		var sum float64
		for _, row := range rows {
			sum += row[j]
		}
		assert.InDelta(t, 0, sum/4, 1e-9, "column %d mean", j)
	}
}

func TestFitPreprocessor_ConstantColumnKeepsUnitScale(t *testing.T) {
	samples := []models.TrainingSample{
		{Size: ptr(1000), Bedrooms: ptr(2), City: "Pune", PropertyType: "Flat", Price: 1},
		{Size: ptr(1000), Bedrooms: ptr(2), City: "Pune", PropertyType: "Flat", Price: 2},
	}
	pre, rows, err := FitPreprocessor(samples, EncodingLabel)
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 1, 1, 1}, pre.Stds)
	assert.Equal(t, []float64{0, 0, 0, 0}, rows[0])
}

func TestFitPreprocessor_Errors(t *testing.T) {
	_, _, err := FitPreprocessor(nil, EncodingLabel)
	assert.Error(t, err)

	_, _, err = FitPreprocessor(syntheticSamples(3), Encoding("ordinal"))
	assert.Error(t, err)
}

func TestTransform_UnseenCategories(t *testing.T) {
	samples := syntheticSamples(12)

	t.Run("label encoding uses the sentinel", func(t *testing.T) {
		pre, _, err := FitPreprocessor(samples, EncodingLabel)
		require.NoError(t, err)

		row, err := pre.Transform(models.PredictionInput{Size: ptr(1000), Bedrooms: ptr(2), City: "Atlantis", PropertyType: "Flat"})
		require.NoError(t, err)
		expected := (UnseenLabel - pre.Means[2]) / pre.Stds[2]
		assert.InDelta(t, expected, row[2], 1e-12)
	})

	t.Run("one-hot encoding yields a zero block", func(t *testing.T) {
		pre, _, err := FitPreprocessor(samples, EncodingOneHot)
		require.NoError(t, err)
		assert.Equal(t, 2+2+2, pre.Width())

		row, err := pre.Transform(models.PredictionInput{Size: ptr(1000), Bedrooms: ptr(2), City: "Atlantis", PropertyType: "Flat"})
		require.NoError(t, err)
		assert.Equal(t, []float64{0, 0}, row[2:4])
		assert.Equal(t, []float64{1, 0}, row[4:6])
	})
}

func TestTransform_InvalidInput(t *testing.T) {
	pre, _, err := FitPreprocessor(syntheticSamples(12), EncodingLabel)
	require.NoError(t, err)

	tests := []struct {
		name  string
		input models.PredictionInput
	}{
		{"negative size", models.PredictionInput{Size: ptr(-5), Bedrooms: ptr(2)}},
		{"zero size", models.PredictionInput{Size: ptr(0), Bedrooms: ptr(2)}},
		{"NaN size", models.PredictionInput{Size: ptr(math.NaN()), Bedrooms: ptr(2)}},
		{"infinite size", models.PredictionInput{Size: ptr(math.Inf(1)), Bedrooms: ptr(2)}},
		{"zero bedrooms", models.PredictionInput{Size: ptr(1000), Bedrooms: ptr(0)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := pre.Transform(tt.input)
			assert.ErrorIs(t, err, ErrPrediction)

			var predErr *PredictionError
			assert.ErrorAs(t, err, &predErr)
		})
	}
}

func TestTransform_MissingFieldsAreImputed(t *testing.T) {
	pre, _, err := FitPreprocessor(syntheticSamples(12), EncodingLabel)
	require.NoError(t, err)

	imputed, err := pre.Transform(models.PredictionInput{})
	require.NoError(t, err)
	explicit, err := pre.Transform(models.PredictionInput{
		Size:         ptr(pre.Medians[0]),
		Bedrooms:     ptr(pre.Medians[1]),
		City:         pre.Modes[0],
		PropertyType: pre.Modes[1],
	})
	require.NoError(t, err)
	assert.Equal(t, explicit, imputed)
}

func TestTree_SplitsOnStep(t *testing.T) {
	x := [][]float64{{1}, {2}, {3}, {4}}
	y := []float64{10, 10, 20, 20}

	tree := fitTree(x, y, []int{0, 1, 2, 3}, TreeParams{MaxDepth: 1, MinSamplesSplit: 2, MinSamplesLeaf: 1}, nil)
	require.Len(t, tree.Nodes, 3)
	assert.Equal(t, 2.5, tree.Nodes[0].Threshold)
	assert.Equal(t, 10.0, tree.Predict([]float64{1.5}))
	assert.Equal(t, 20.0, tree.Predict([]float64{3.9}))
	assert.NoError(t, tree.validate(1))
}

func TestTree_RespectsMinSamplesLeaf(t *testing.T) {
	x := [][]float64{{1}, {2}, {3}, {4}}
	y := []float64{0, 0, 0, 100}

	tree := fitTree(x, y, []int{0, 1, 2, 3}, TreeParams{MinSamplesSplit: 2, MinSamplesLeaf: 2}, nil)
	assert.Equal(t, 2.5, tree.Nodes[0].Threshold)
	assert.Equal(t, 50.0, tree.Predict([]float64{4}))
}

func TestTree_ConstantTargetIsLeaf(t *testing.T) {
	x := [][]float64{{1}, {2}, {3}}
	tree := fitTree(x, []float64{7, 7, 7}, []int{0, 1, 2}, TreeParams{MinSamplesSplit: 2, MinSamplesLeaf: 1}, nil)
	require.Len(t, tree.Nodes, 1)
	assert.Equal(t, 7.0, tree.Predict([]float64{100}))
}

func TestBoosting_ConstantTarget(t *testing.T) {
	x := [][]float64{{1}, {2}, {3}}
	b := fitBoosting(x, []float64{5, 5, 5}, BoostingParams{Stages: 3, LearningRate: 0.1, Tree: TreeParams{MaxDepth: 3, MinSamplesSplit: 2, MinSamplesLeaf: 1}}, nil)
	assert.Equal(t, 5.0, b.Predict([]float64{2}))
}

func TestKNN_AveragesNearest(t *testing.T) {
	m := fitKNN([][]float64{{0}, {1}, {10}}, []float64{1, 2, 100}, 2)
	assert.Equal(t, 1.5, m.Predict([]float64{0.4}))

	// k larger than the training set averages everything.
	m.K = 10
	assert.InDelta(t, 103.0/3, m.Predict([]float64{0}), 1e-9)
}

func TestTrain_Ensemble(t *testing.T) {
	bundle, err := Train(syntheticSamples(80), fastOptions(KindEnsemble))
	require.NoError(t, err)
	require.NoError(t, bundle.Validate())

	assert.Equal(t, KindEnsemble, bundle.Kind)
	assert.NotEmpty(t, bundle.RunID)
	assert.NotNil(t, bundle.Forest)
	assert.NotNil(t, bundle.Boosting)
	assert.Nil(t, bundle.KNN)
	assert.Equal(t, 64, bundle.Metrics.TrainSize)
	assert.Equal(t, 16, bundle.Metrics.TestSize)
	assert.Greater(t, bundle.Metrics.R2, 0.5)

	pune, err := bundle.Predict(models.PredictionInput{Size: ptr(1000), Bedrooms: ptr(2), City: "Pune", PropertyType: "Flat"})
	require.NoError(t, err)
	mumbai, err := bundle.Predict(models.PredictionInput{Size: ptr(1000), Bedrooms: ptr(2), City: "Mumbai", PropertyType: "Flat"})
	require.NoError(t, err)
	assert.Greater(t, mumbai, pune)
}

func TestTrain_EnsembleIsMeanOfModels(t *testing.T) {
	bundle, err := Train(syntheticSamples(40), fastOptions(KindEnsemble))
	require.NoError(t, err)

	input := models.PredictionInput{Size: ptr(800), Bedrooms: ptr(2), City: "Pune", PropertyType: "Villa"}
	row, err := bundle.Preprocessor.Transform(input)
	require.NoError(t, err)

	price, err := bundle.Predict(input)
	require.NoError(t, err)
	assert.InDelta(t, (bundle.Forest.Predict(row)+bundle.Boosting.Predict(row))/2, price, 1e-6)
}

func TestTrain_UnseenCityReturnsResult(t *testing.T) {
	for _, kind := range []Kind{KindEnsemble, KindKNN} {
		t.Run(string(kind), func(t *testing.T) {
			bundle, err := Train(syntheticSamples(40), fastOptions(kind))
			require.NoError(t, err)

			price, err := bundle.Predict(models.PredictionInput{Size: ptr(1000), Bedrooms: ptr(2), City: "Atlantis", PropertyType: "Castle"})
			require.NoError(t, err)
			assert.False(t, math.IsNaN(price))
			assert.Greater(t, price, 0.0)
		})
	}
}

func TestTrain_KNNRefitsOnAllSamples(t *testing.T) {
	samples := syntheticSamples(30)
	bundle, err := Train(samples, fastOptions(KindKNN))
	require.NoError(t, err)

	assert.Equal(t, EncodingOneHot, bundle.Preprocessor.Encoding)
	assert.Len(t, bundle.KNN.Y, 30)
	assert.Equal(t, 5, bundle.KNN.K)
	assert.Equal(t, 24, bundle.Metrics.TrainSize)
	assert.Equal(t, 6, bundle.Metrics.TestSize)
}

func TestTrain_Deterministic(t *testing.T) {
	input := models.PredictionInput{Size: ptr(900), Bedrooms: ptr(2), City: "Mumbai", PropertyType: "Flat"}

	first, err := Train(syntheticSamples(40), fastOptions(KindEnsemble))
	require.NoError(t, err)
	second, err := Train(syntheticSamples(40), fastOptions(KindEnsemble))
	require.NoError(t, err)

	a, err := first.Predict(input)
	require.NoError(t, err)
	b, err := second.Predict(input)
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.NotEqual(t, first.RunID, second.RunID)
}

func TestTrain_SingleSampleSkipsHoldout(t *testing.T) {
	bundle, err := Train(syntheticSamples(1), fastOptions(KindEnsemble))
	require.NoError(t, err)
	assert.Equal(t, Metrics{TrainSize: 1}, bundle.Metrics)
}

func TestTrain_Errors(t *testing.T) {
	_, err := Train(nil, DefaultOptions())
	assert.Error(t, err)

	opts := DefaultOptions()
	opts.Kind = "svm"
	_, err = Train(syntheticSamples(10), opts)
	assert.Error(t, err)

	samples := syntheticSamples(10)
	samples[3].Price = math.NaN()
	_, err = Train(samples, DefaultOptions())
	assert.Error(t, err)
}

func TestBundle_MarshalRoundTrip(t *testing.T) {
	for _, kind := range []Kind{KindEnsemble, KindKNN} {
		t.Run(string(kind), func(t *testing.T) {
			bundle, err := Train(syntheticSamples(30), fastOptions(kind))
			require.NoError(t, err)

			data, err := bundle.Marshal()
			require.NoError(t, err)
			loaded, err := Unmarshal(data)
			require.NoError(t, err)

			input := models.PredictionInput{Size: ptr(700), Bedrooms: ptr(1), City: "Pune", PropertyType: "Flat"}
			want, err := bundle.Predict(input)
			require.NoError(t, err)
			got, err := loaded.Predict(input)
			require.NoError(t, err)
			assert.Equal(t, want, got)
			assert.Equal(t, bundle.RunID, loaded.RunID)
		})
	}
}

func TestBundle_ValidateRejectsMismatches(t *testing.T) {
	tests := []struct {
		name   string
		tamper func(b *Bundle)
	}{
		{"schema version", func(b *Bundle) { b.SchemaVersion = SchemaVersion + 1 }},
		{"preprocessor changed", func(b *Bundle) { b.Preprocessor.Medians[0]++ }},
		{"encoder swapped", func(b *Bundle) { b.Preprocessor.Categories[0] = []string{"Delhi", "Pune"} }},
		{"model fitted elsewhere", func(b *Bundle) { b.Boosting.Fingerprint = "deadbeef" }},
		{"width mismatch", func(b *Bundle) { b.Forest.Width = 9 }},
		{"missing model", func(b *Bundle) { b.Forest = nil }},
		{"missing preprocessor", func(b *Bundle) { b.Preprocessor = nil }},
		{"unknown kind", func(b *Bundle) { b.Kind = "svm" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bundle, err := Train(syntheticSamples(20), fastOptions(KindEnsemble))
			require.NoError(t, err)

			tt.tamper(bundle)
			err = bundle.Validate()
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrModelLoad)

			data, err := bundle.Marshal()
			require.NoError(t, err)
			_, err = Unmarshal(data)
			assert.ErrorIs(t, err, ErrModelLoad)
		})
	}
}

func TestUnmarshal_Corrupt(t *testing.T) {
	_, err := Unmarshal([]byte("{not json"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrModelLoad)

	var loadErr *ModelLoadError
	require.ErrorAs(t, err, &loadErr)
	assert.Equal(t, "corrupt artifact", loadErr.Reason)
}

func TestParseKind(t *testing.T) {
	kind, err := ParseKind("knn")
	require.NoError(t, err)
	assert.Equal(t, KindKNN, kind)

	_, err = ParseKind("forest")
	assert.Error(t, err)
}

// MockStore is a mock implementation of the Store interface
type MockStore struct {
	mock.Mock
}

func (m *MockStore) Latest(ctx context.Context, kind Kind) (*Bundle, error) {
	args := m.Called(ctx, kind)
	bundle, _ := args.Get(0).(*Bundle)
	return bundle, args.Error(1)
}

func (m *MockStore) Save(ctx context.Context, bundle *Bundle) error {
	args := m.Called(ctx, bundle)
	return args.Error(0)
}

func TestLoadOrTrain(t *testing.T) {
	ctx := context.Background()
	logger := logrus.New()
	samples := syntheticSamples(20)

	t.Run("returns stored bundle", func(t *testing.T) {
		stored, err := Train(samples, fastOptions(KindKNN))
		require.NoError(t, err)

		store := new(MockStore)
		store.On("Latest", ctx, KindKNN).Return(stored, nil)

		bundle, err := LoadOrTrain(ctx, store, KindKNN, samples, fastOptions(KindKNN), logger)
		require.NoError(t, err)
		assert.Same(t, stored, bundle)
		store.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
	})

	t.Run("trains and saves when missing", func(t *testing.T) {
		store := new(MockStore)
		store.On("Latest", ctx, KindEnsemble).Return(nil, ErrNotFound)
		store.On("Save", ctx, mock.MatchedBy(func(b *Bundle) bool { return b.Kind == KindEnsemble })).Return(nil)

		// Options carry the wrong kind; the requested kind wins.
		bundle, err := LoadOrTrain(ctx, store, KindEnsemble, samples, fastOptions(KindKNN), logger)
		require.NoError(t, err)
		assert.Equal(t, KindEnsemble, bundle.Kind)
		store.AssertExpectations(t)
	})

	t.Run("mismatched artifact is fatal", func(t *testing.T) {
		store := new(MockStore)
		store.On("Latest", ctx, KindEnsemble).Return(nil, &ModelLoadError{Reason: "fingerprint mismatch"})

		_, err := LoadOrTrain(ctx, store, KindEnsemble, samples, fastOptions(KindEnsemble), logger)
		assert.ErrorIs(t, err, ErrModelLoad)
		store.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
	})

	t.Run("save failure is reported", func(t *testing.T) {
		store := new(MockStore)
		store.On("Latest", ctx, KindKNN).Return(nil, fmt.Errorf("wrapped: %w", ErrNotFound))
		store.On("Save", ctx, mock.Anything).Return(errors.New("disk full"))

		_, err := LoadOrTrain(ctx, store, KindKNN, samples, fastOptions(KindKNN), logger)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "disk full")
	})
}
