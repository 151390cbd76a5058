// Package search filters the in-memory property catalog.
package search

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"propfinder/server/internal/geometry"
)

var ErrInvalidQuery = errors.New("invalid query")

// InvalidQueryError describes a query input the user has to correct.
type InvalidQueryError struct {
	Field  string
	Input  string
	Reason string
}

func (e *InvalidQueryError) Error() string {
	if e.Input == "" {
		return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("invalid %s %q: %s", e.Field, e.Input, e.Reason)
}

func (e *InvalidQueryError) Is(target error) bool {
	return target == ErrInvalidQuery
}

// Range is an inclusive numeric interval.
type Range struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

func (r Range) Contains(v float64) bool {
	return v >= r.Min && v <= r.Max
}

// ParseSizeRange accepts "900-1100" or a single size V, which expands to
// [floor(0.9V), floor(1.1V)].
func ParseSizeRange(text string) (Range, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return Range{}, &InvalidQueryError{Field: "size", Reason: "a size or size range is required"}
	}

	if lower, upper, found := strings.Cut(trimmed, "-"); found {
		lo, err := parseSize(lower)
		if err != nil {
			return Range{}, &InvalidQueryError{Field: "size", Input: text, Reason: "range must look like 2000-3000"}
		}
		hi, err := parseSize(upper)
		if err != nil {
			return Range{}, &InvalidQueryError{Field: "size", Input: text, Reason: "range must look like 2000-3000"}
		}
		if lo > hi {
			return Range{}, &InvalidQueryError{Field: "size", Input: text, Reason: "lower bound exceeds upper bound"}
		}
		return Range{Min: lo, Max: hi}, nil
	}

	v, err := parseSize(trimmed)
	if err != nil {
		return Range{}, &InvalidQueryError{Field: "size", Input: text, Reason: "size must be a number"}
	}
	if v <= 0 {
		return Range{}, &InvalidQueryError{Field: "size", Input: text, Reason: "size must be positive"}
	}
	return Range{Min: math.Floor(0.9 * v), Max: math.Floor(1.1 * v)}, nil
}

func parseSize(text string) (float64, error) {
	v, err := strconv.ParseFloat(strings.ReplaceAll(strings.TrimSpace(text), ",", ""), 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0, fmt.Errorf("size out of range: %v", v)
	}
	return v, nil
}

// Query selects properties. City, type and bedrooms must match exactly.
type Query struct {
	City         string           `json:"city"`
	PropertyType string           `json:"property_type"`
	Bedrooms     int              `json:"bedrooms"`
	Size         Range            `json:"size"`
	Price        *Range           `json:"price,omitempty"`
	Name         string           `json:"name,omitempty"`
	Near         *geometry.Circle `json:"-"`
}

// NewQuery builds and validates a query from user input.
func NewQuery(city, propertyType string, bedrooms int, sizeText, name string) (Query, error) {
	size, err := ParseSizeRange(sizeText)
	if err != nil {
		return Query{}, err
	}

	q := Query{
		City:         strings.TrimSpace(city),
		PropertyType: strings.TrimSpace(propertyType),
		Bedrooms:     bedrooms,
		Size:         size,
		Name:         strings.TrimSpace(name),
	}
	if err := q.Validate(); err != nil {
		return Query{}, err
	}
	return q, nil
}

// ParseBedrooms reads a bedroom selector value such as "2" or "2 BHK".
func ParseBedrooms(text string) (int, error) {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return 0, &InvalidQueryError{Field: "bedrooms", Reason: "bedroom count is required"}
	}
	n, err := strconv.Atoi(fields[0])
	if err != nil {
		return 0, &InvalidQueryError{Field: "bedrooms", Input: text, Reason: "must be a whole number"}
	}
	return n, nil
}

func (q Query) Validate() error {
	if q.City == "" {
		return &InvalidQueryError{Field: "city", Reason: "city is required"}
	}
	if q.PropertyType == "" {
		return &InvalidQueryError{Field: "property type", Reason: "property type is required"}
	}
	if q.Bedrooms < 1 {
		return &InvalidQueryError{Field: "bedrooms", Input: strconv.Itoa(q.Bedrooms), Reason: "must be at least 1"}
	}
	if q.Size.Min > q.Size.Max {
		return &InvalidQueryError{Field: "size", Reason: "lower bound exceeds upper bound"}
	}
	if q.Price != nil && q.Price.Min > q.Price.Max {
		return &InvalidQueryError{Field: "price", Reason: "lower bound exceeds upper bound"}
	}
	return nil
}

// RecommendationQuery selects listings priced within ±20% of estimate, at
// any size.
func RecommendationQuery(city, propertyType string, bedrooms int, estimate float64) (Query, error) {
	if math.IsNaN(estimate) || math.IsInf(estimate, 0) || estimate <= 0 {
		return Query{}, &InvalidQueryError{Field: "estimate", Reason: "estimated price must be positive"}
	}

	q := Query{
		City:         strings.TrimSpace(city),
		PropertyType: strings.TrimSpace(propertyType),
		Bedrooms:     bedrooms,
		Size:         Range{Min: 0, Max: math.MaxFloat64},
		Price:        &Range{Min: 0.8 * estimate, Max: 1.2 * estimate},
	}
	if err := q.Validate(); err != nil {
		return Query{}, err
	}
	return q, nil
}
