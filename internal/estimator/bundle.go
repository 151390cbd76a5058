// Package estimator trains, persists and serves the price regression models.
package estimator

import (
	"encoding/json"
	"fmt"
	"math"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"

	"propfinder/server/internal/models"
	"propfinder/server/internal/stats"
)

// SchemaVersion is bumped whenever the persisted bundle layout changes.
const SchemaVersion = 1

type Kind string

const (
	// KindEnsemble averages a random forest and a gradient-boosting model
	// behind label encoding.
	KindEnsemble Kind = "ensemble"
	// KindKNN is k-nearest-neighbours behind one-hot encoding.
	KindKNN Kind = "knn"
)

func ParseKind(s string) (Kind, error) {
	switch Kind(s) {
	case KindEnsemble, KindKNN:
		return Kind(s), nil
	}
	return "", fmt.Errorf("unknown model kind %q (want %q or %q)", s, KindEnsemble, KindKNN)
}

func (k Kind) encoding() Encoding {
	if k == KindKNN {
		return EncodingOneHot
	}
	return EncodingLabel
}

// Options control training. The zero value is not usable; start from
// DefaultOptions.
type Options struct {
	Kind         Kind           `json:"kind"`
	Forest       ForestParams   `json:"forest"`
	Boosting     BoostingParams `json:"boosting"`
	Neighbours   int            `json:"neighbours"`
	Seed         uint64         `json:"seed"`
	TestFraction float64        `json:"test_fraction"`
}

func DefaultOptions() Options {
	return Options{
		Kind: KindEnsemble,
		Forest: ForestParams{
			Trees: 100,
			Tree:  TreeParams{MaxDepth: 12, MinSamplesSplit: 2, MinSamplesLeaf: 1},
		},
		Boosting: BoostingParams{
			Stages:       100,
			LearningRate: 0.1,
			Tree:         TreeParams{MaxDepth: 3, MinSamplesSplit: 2, MinSamplesLeaf: 1},
		},
		Neighbours:   5,
		Seed:         42,
		TestFraction: 0.2,
	}
}

func (o Options) validate() error {
	if _, err := ParseKind(string(o.Kind)); err != nil {
		return err
	}
	if o.TestFraction < 0 || o.TestFraction >= 1 {
		return fmt.Errorf("test fraction must be in [0, 1), got %v", o.TestFraction)
	}
	switch o.Kind {
	case KindEnsemble:
		if o.Forest.Trees < 1 || o.Boosting.Stages < 1 {
			return fmt.Errorf("ensemble needs at least one tree and one boosting stage")
		}
		if o.Boosting.LearningRate <= 0 {
			return fmt.Errorf("learning rate must be positive, got %v", o.Boosting.LearningRate)
		}
	case KindKNN:
		if o.Neighbours < 1 {
			return fmt.Errorf("neighbours must be at least 1, got %d", o.Neighbours)
		}
	}
	return nil
}

// Metrics are measured on the held-out split. Both sizes are recorded so a
// run without a holdout is visible.
type Metrics struct {
	TrainSize int     `json:"train_size"`
	TestSize  int     `json:"test_size"`
	RMSE      float64 `json:"rmse"`
	R2        float64 `json:"r2"`
}

// Bundle is the persisted unit: the preprocessor and every model fitted
// behind it. It is only usable as a matched set.
type Bundle struct {
	SchemaVersion int           `json:"schema_version"`
	RunID         string        `json:"run_id"`
	Kind          Kind          `json:"kind"`
	Fingerprint   string        `json:"fingerprint"`
	Preprocessor  *Preprocessor `json:"preprocessor"`
	Forest        *Forest       `json:"forest,omitempty"`
	Boosting      *Boosting     `json:"boosting,omitempty"`
	KNN           *KNN          `json:"knn,omitempty"`
	Metrics       Metrics       `json:"metrics"`
	TrainedAt     time.Time     `json:"trained_at"`
}

// Train fits a bundle of opts.Kind. Metrics come from a seeded holdout
// split; the ensemble keeps the models fitted on the training split while
// KNN is refitted on every sample once scored.
func Train(samples []models.TrainingSample, opts Options) (*Bundle, error) {
	if err := opts.validate(); err != nil {
		return nil, fmt.Errorf("failed to train: %w", err)
	}
	if len(samples) == 0 {
		return nil, fmt.Errorf("failed to train: no samples")
	}
	for i, s := range samples {
		if !finite(s.Price) {
			return nil, fmt.Errorf("failed to train: sample %d has price %v", i, s.Price)
		}
	}

	rng := rand.New(rand.NewPCG(opts.Seed, opts.Seed^0x9e3779b97f4a7c15))
	train, test := split(samples, opts.TestFraction, rng)

	bundle, err := fit(train, opts, rng)
	if err != nil {
		return nil, err
	}

	bundle.Metrics = Metrics{TrainSize: len(train), TestSize: len(test)}
	if len(test) > 0 {
		predicted := make([]float64, len(test))
		actual := make([]float64, len(test))
		for i, s := range test {
			input := models.PredictionInput{Size: s.Size, Bedrooms: s.Bedrooms, City: s.City, PropertyType: s.PropertyType}
			if predicted[i], err = bundle.Predict(input); err != nil {
				return nil, fmt.Errorf("failed to score holdout: %w", err)
			}
			actual[i] = s.Price
		}
		bundle.Metrics.RMSE = stats.RMSE(predicted, actual)
		bundle.Metrics.R2 = stats.R2(predicted, actual)
	}

	if opts.Kind == KindKNN && len(test) > 0 {
		metrics := bundle.Metrics
		if bundle, err = fit(samples, opts, rng); err != nil {
			return nil, err
		}
		bundle.Metrics = metrics
	}
	return bundle, nil
}

func fit(samples []models.TrainingSample, opts Options, rng *rand.Rand) (*Bundle, error) {
	pre, x, err := FitPreprocessor(samples, opts.Kind.encoding())
	if err != nil {
		return nil, fmt.Errorf("failed to fit preprocessor: %w", err)
	}
	y := make([]float64, len(samples))
	for i, s := range samples {
		y[i] = s.Price
	}

	b := &Bundle{
		SchemaVersion: SchemaVersion,
		RunID:         uuid.NewString(),
		Kind:          opts.Kind,
		Fingerprint:   pre.Fingerprint(),
		Preprocessor:  pre,
		TrainedAt:     time.Now().UTC(),
	}

	switch opts.Kind {
	case KindEnsemble:
		b.Forest = fitForest(x, y, opts.Forest, rng)
		b.Forest.Fingerprint = b.Fingerprint
		b.Boosting = fitBoosting(x, y, opts.Boosting, rng)
		b.Boosting.Fingerprint = b.Fingerprint
	case KindKNN:
		b.KNN = fitKNN(x, y, opts.Neighbours)
		b.KNN.Fingerprint = b.Fingerprint
	}
	return b, nil
}

// split shuffles and holds out ceil(n*fraction) samples, keeping at least
// one for training.
func split(samples []models.TrainingSample, fraction float64, rng *rand.Rand) ([]models.TrainingSample, []models.TrainingSample) {
	n := len(samples)
	testSize := int(math.Ceil(float64(n) * fraction))
	if testSize >= n {
		testSize = n - 1
	}
	if testSize <= 0 {
		return samples, nil
	}

	order := rng.Perm(n)
	train := make([]models.TrainingSample, 0, n-testSize)
	test := make([]models.TrainingSample, 0, testSize)
	for i, idx := range order {
		if i < testSize {
			test = append(test, samples[idx])
		} else {
			train = append(train, samples[idx])
		}
	}
	return train, test
}

// Validate checks that the bundle is a matched, complete set. Every failure
// is a *ModelLoadError.
func (b *Bundle) Validate() error {
	fail := func(format string, args ...any) error {
		return &ModelLoadError{RunID: b.RunID, Reason: fmt.Sprintf(format, args...)}
	}

	if b.SchemaVersion != SchemaVersion {
		return fail("schema version %d, expected %d", b.SchemaVersion, SchemaVersion)
	}
	if _, err := ParseKind(string(b.Kind)); err != nil {
		return fail("%v", err)
	}
	if b.Preprocessor == nil {
		return fail("preprocessor is missing")
	}
	if err := b.Preprocessor.validate(); err != nil {
		return &ModelLoadError{RunID: b.RunID, Reason: "invalid preprocessor", Err: err}
	}
	if b.Preprocessor.Encoding != b.Kind.encoding() {
		return fail("%s model needs %s encoding, artifact has %s", b.Kind, b.Kind.encoding(), b.Preprocessor.Encoding)
	}
	if got := b.Preprocessor.Fingerprint(); got != b.Fingerprint {
		return fail("preprocessor fingerprint %s does not match %s", short(got), short(b.Fingerprint))
	}

	width := b.Preprocessor.Width()
	check := func(name, fingerprint string, modelWidth int, validate func() error) error {
		if fingerprint != b.Fingerprint {
			return fail("%s was fitted behind preprocessor %s, bundle has %s", name, short(fingerprint), short(b.Fingerprint))
		}
		if modelWidth != width {
			return fail("%s expects %d features, preprocessor produces %d", name, modelWidth, width)
		}
		if err := validate(); err != nil {
			return &ModelLoadError{RunID: b.RunID, Reason: "invalid " + name, Err: err}
		}
		return nil
	}

	switch b.Kind {
	case KindEnsemble:
		if b.Forest == nil || b.Boosting == nil {
			return fail("ensemble needs both forest and boosting models")
		}
		if err := check("forest", b.Forest.Fingerprint, b.Forest.Width, b.Forest.validate); err != nil {
			return err
		}
		return check("boosting", b.Boosting.Fingerprint, b.Boosting.Width, b.Boosting.validate)
	default:
		if b.KNN == nil {
			return fail("knn model is missing")
		}
		return check("knn", b.KNN.Fingerprint, b.KNN.Width, b.KNN.validate)
	}
}

func short(fingerprint string) string {
	if len(fingerprint) > 12 {
		return fingerprint[:12]
	}
	return fingerprint
}

// Predict scores one input. Invalid inputs and width mismatches return a
// *PredictionError.
func (b *Bundle) Predict(input models.PredictionInput) (float64, error) {
	row, err := b.Preprocessor.Transform(input)
	if err != nil {
		return 0, err
	}

	var price float64
	switch b.Kind {
	case KindEnsemble:
		if len(row) != b.Forest.Width || len(row) != b.Boosting.Width {
			return 0, &PredictionError{Reason: fmt.Sprintf("input has %d features, models expect %d", len(row), b.Forest.Width)}
		}
		price = (b.Forest.Predict(row) + b.Boosting.Predict(row)) / 2
	case KindKNN:
		if len(row) != b.KNN.Width {
			return 0, &PredictionError{Reason: fmt.Sprintf("input has %d features, model expects %d", len(row), b.KNN.Width)}
		}
		price = b.KNN.Predict(row)
	default:
		return 0, &PredictionError{Reason: fmt.Sprintf("unknown model kind %q", b.Kind)}
	}

	if !finite(price) {
		return 0, &PredictionError{Reason: "model produced a non-finite price"}
	}
	return price, nil
}

func (b *Bundle) Marshal() ([]byte, error) {
	data, err := json.Marshal(b)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal model bundle: %w", err)
	}
	return data, nil
}

// Unmarshal decodes and validates a persisted bundle.
func Unmarshal(data []byte) (*Bundle, error) {
	var b Bundle
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, &ModelLoadError{Reason: "corrupt artifact", Err: err}
	}
	if err := b.Validate(); err != nil {
		return nil, err
	}
	return &b, nil
}
