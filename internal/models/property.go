package models

import (
	"errors"
	"fmt"
	"math"
)

var ErrInvalidProperty = errors.New("invalid property")

// Property is one cleaned listing from the dataset.
type Property struct {
	Name         string   `json:"name"`
	City         string   `json:"city"`
	PropertyType string   `json:"property_type"`
	Bedrooms     int      `json:"bedrooms"`
	Size         float64  `json:"size"`
	Price        float64  `json:"price"`
	Locality     string   `json:"locality"`
	Status       string   `json:"status"`
	Latitude     *float64 `json:"latitude"`
	Longitude    *float64 `json:"longitude"`
}

// NewProperty validates the cleaned invariants and returns the record unchanged.
func NewProperty(p Property) (Property, error) {
	if p.Bedrooms < 1 {
		return Property{}, fmt.Errorf("%w: bedrooms must be at least 1, got %d", ErrInvalidProperty, p.Bedrooms)
	}
	if !(p.Size > 0) || math.IsInf(p.Size, 0) {
		return Property{}, fmt.Errorf("%w: size must be a positive finite number, got %g", ErrInvalidProperty, p.Size)
	}
	if !(p.Price > 0) || math.IsInf(p.Price, 0) {
		return Property{}, fmt.Errorf("%w: price must be a positive finite number, got %g", ErrInvalidProperty, p.Price)
	}
	return p, nil
}

// PricePerArea returns price divided by size. The second value is false when
// size is not positive.
func (p Property) PricePerArea() (float64, bool) {
	if p.Size <= 0 {
		return 0, false
	}
	return p.Price / p.Size, true
}

func (p Property) HasLocation() bool {
	return p.Latitude != nil && p.Longitude != nil
}

type PropertyStats struct {
	TotalProperties int     `json:"total_properties"`
	AveragePrice    float64 `json:"average_price"`
	MedianPrice     float64 `json:"median_price"`
	PricePerSqft    float64 `json:"price_per_sqft"`
}

// PredictionInput is the feature vector accepted by the estimator. The JSON
// names follow the dataset columns so clients can post a CSV row shape.
type PredictionInput struct {
	Size         *float64 `json:"Size"`
	Bedrooms     *float64 `json:"No_of_BHK"`
	City         string   `json:"City_name"`
	PropertyType string   `json:"Property_type"`
}

// TrainingSample is a historical row whose price parsed. Size and bedrooms
// may be missing and are imputed during training.
type TrainingSample struct {
	Size         *float64
	Bedrooms     *float64
	City         string
	PropertyType string
	Price        float64
}
