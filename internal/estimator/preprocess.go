package estimator

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math"
	"sort"

	"propfinder/server/internal/models"
	"propfinder/server/internal/stats"
)

// Encoding selects how categorical features become numbers.
type Encoding string

const (
	// EncodingLabel maps each category to its sorted index; unseen values
	// become -1. Codes are standardized with the numeric features.
	EncodingLabel Encoding = "label"
	// EncodingOneHot appends one indicator column per category; unseen
	// values produce an all-zero block. Indicators are not standardized.
	EncodingOneHot Encoding = "onehot"
)

// UnseenLabel is the code assigned to categories absent from training.
const UnseenLabel = -1

// Feature order: size, bedrooms, city, property type.
const (
	numericFeatures     = 2
	categoricalFeatures = 2
)

// Preprocessor imputes, encodes and standardizes prediction inputs. Its
// parameters are persisted with the models fitted on its output.
type Preprocessor struct {
	Encoding   Encoding                      `json:"encoding"`
	Medians    [numericFeatures]float64      `json:"medians"`
	Modes      [categoricalFeatures]string   `json:"modes"`
	Categories [categoricalFeatures][]string `json:"categories"`
	Means      []float64                     `json:"means"`
	Stds       []float64                     `json:"stds"`
}

// FitPreprocessor learns imputation, encoding and scaling parameters from
// samples and returns the transformed training matrix.
func FitPreprocessor(samples []models.TrainingSample, encoding Encoding) (*Preprocessor, [][]float64, error) {
	if encoding != EncodingLabel && encoding != EncodingOneHot {
		return nil, nil, fmt.Errorf("unknown encoding %q", encoding)
	}
	if len(samples) == 0 {
		return nil, nil, fmt.Errorf("no training samples")
	}

	p := &Preprocessor{Encoding: encoding}

	var sizes, bedrooms []float64
	var cities, types []string
	for _, s := range samples {
		if s.Size != nil {
			sizes = append(sizes, *s.Size)
		}
		if s.Bedrooms != nil {
			bedrooms = append(bedrooms, *s.Bedrooms)
		}
		cities = append(cities, s.City)
		types = append(types, s.PropertyType)
	}
	p.Medians = [numericFeatures]float64{stats.Median(sizes), stats.Median(bedrooms)}
	p.Modes = [categoricalFeatures]string{stats.Mode(cities), stats.Mode(types)}
	p.Categories = [categoricalFeatures][]string{
		categories(cities, p.Modes[0]),
		categories(types, p.Modes[1]),
	}

	rows := make([][]float64, len(samples))
	for i, s := range samples {
		rows[i] = p.encode(p.impute(s.Size, s.Bedrooms, s.City, s.PropertyType))
	}

	scaled := p.scaledColumns()
	p.Means = make([]float64, scaled)
	p.Stds = make([]float64, scaled)
	column := make([]float64, len(rows))
	for j := 0; j < scaled; j++ {
		for i, row := range rows {
			column[i] = row[j]
		}
		mean, std := stats.MeanStd(column)
		if std == 0 {
			std = 1
		}
		p.Means[j], p.Stds[j] = mean, std
	}

	for _, row := range rows {
		p.scale(row)
	}
	return p, rows, nil
}

func categories(values []string, mode string) []string {
	set := make(map[string]struct{})
	for _, v := range values {
		if v == "" {
			v = mode
		}
		if v != "" {
			set[v] = struct{}{}
		}
	}
	out := make([]string, 0, len(set))
	for v := range set {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

// Width is the number of columns Transform produces.
func (p *Preprocessor) Width() int {
	if p.Encoding == EncodingOneHot {
		return numericFeatures + len(p.Categories[0]) + len(p.Categories[1])
	}
	return numericFeatures + categoricalFeatures
}

func (p *Preprocessor) scaledColumns() int {
	if p.Encoding == EncodingOneHot {
		return numericFeatures
	}
	return numericFeatures + categoricalFeatures
}

type imputed struct {
	numeric     [numericFeatures]float64
	categorical [categoricalFeatures]string
}

func (p *Preprocessor) impute(size, bedrooms *float64, city, propertyType string) imputed {
	var row imputed
	row.numeric = p.Medians
	if size != nil {
		row.numeric[0] = *size
	}
	if bedrooms != nil {
		row.numeric[1] = *bedrooms
	}
	row.categorical = p.Modes
	if city != "" {
		row.categorical[0] = city
	}
	if propertyType != "" {
		row.categorical[1] = propertyType
	}
	return row
}

func (p *Preprocessor) encode(row imputed) []float64 {
	out := make([]float64, 0, p.Width())
	out = append(out, row.numeric[:]...)

	for j, value := range row.categorical {
		idx := sort.SearchStrings(p.Categories[j], value)
		known := idx < len(p.Categories[j]) && p.Categories[j][idx] == value

		if p.Encoding == EncodingLabel {
			if known {
				out = append(out, float64(idx))
			} else {
				out = append(out, UnseenLabel)
			}
			continue
		}

		block := make([]float64, len(p.Categories[j]))
		if known {
			block[idx] = 1
		}
		out = append(out, block...)
	}
	return out
}

func (p *Preprocessor) scale(row []float64) {
	for j := range p.Means {
		row[j] = (row[j] - p.Means[j]) / p.Stds[j]
	}
}

// Transform turns a prediction input into a model row. Missing numerics take
// the training median and missing categories the training mode.
func (p *Preprocessor) Transform(input models.PredictionInput) ([]float64, error) {
	if v := input.Size; v != nil && (!finite(*v) || *v <= 0) {
		return nil, &PredictionError{Reason: fmt.Sprintf("size must be a positive number, got %v", *v)}
	}
	if v := input.Bedrooms; v != nil && (!finite(*v) || *v < 1) {
		return nil, &PredictionError{Reason: fmt.Sprintf("bedroom count must be at least 1, got %v", *v)}
	}

	row := p.encode(p.impute(input.Size, input.Bedrooms, input.City, input.PropertyType))
	if len(row) != p.Width() {
		return nil, &PredictionError{Reason: fmt.Sprintf("encoded %d features, model expects %d", len(row), p.Width())}
	}
	p.scale(row)
	return row, nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// Known reports whether city and property type were seen in training.
func (p *Preprocessor) Known(city, propertyType string) (bool, bool) {
	has := func(values []string, v string) bool {
		i := sort.SearchStrings(values, v)
		return i < len(values) && values[i] == v
	}
	return has(p.Categories[0], city), has(p.Categories[1], propertyType)
}

// Fingerprint is a digest of every fitted parameter. Models record the
// fingerprint of the preprocessor they were trained behind.
func (p *Preprocessor) Fingerprint() string {
	data, err := json.Marshal(p)
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func (p *Preprocessor) validate() error {
	if p.Encoding != EncodingLabel && p.Encoding != EncodingOneHot {
		return fmt.Errorf("unknown encoding %q", p.Encoding)
	}
	if len(p.Means) != p.scaledColumns() || len(p.Stds) != p.scaledColumns() {
		return fmt.Errorf("scaler has %d/%d columns, expected %d", len(p.Means), len(p.Stds), p.scaledColumns())
	}
	for _, std := range p.Stds {
		if std == 0 || math.IsNaN(std) {
			return fmt.Errorf("scaler has a zero or NaN deviation")
		}
	}
	for j := range p.Categories {
		if !sort.StringsAreSorted(p.Categories[j]) {
			return fmt.Errorf("encoder categories are not sorted")
		}
	}
	return nil
}
