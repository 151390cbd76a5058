// Package cleaning turns the raw text columns of the listings dataset into
// typed property records.
package cleaning

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

var ErrParse = errors.New("parse error")

// ParseError reports a field whose text could not be converted.
type ParseError struct {
	Field  string
	Input  string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("failed to parse %s %q: %s", e.Field, e.Input, e.Reason)
}

func (e *ParseError) Is(target error) bool {
	return target == ErrParse
}

const (
	crore = 1e7
	lakh  = 1e5
)

var (
	numberPattern  = regexp.MustCompile(`\d+(?:\.\d+)?`)
	leadingInteger = regexp.MustCompile(`^\s*(\d+)`)
	pricePattern   = regexp.MustCompile(`(?i)^\s*₹?\s*(\d[\d,]*(?:\.\d+)?|\.\d+)\s*(crores?|cr|lakhs?|lacs?|l)?\.?\s*$`)
)

// ParseSize reads an area such as "1,250 sq ft". Separators and the unit
// suffix are dropped.
func ParseSize(text string) (float64, error) {
	match := numberPattern.FindString(strings.ReplaceAll(text, ",", ""))
	if match == "" {
		return 0, &ParseError{Field: "size", Input: text, Reason: "no digits"}
	}
	value, err := strconv.ParseFloat(match, 64)
	if err != nil {
		return 0, &ParseError{Field: "size", Input: text, Reason: err.Error()}
	}
	return value, nil
}

// ParseBedroomCount reads the leading integer of values like "3 BHK".
func ParseBedroomCount(text string) (int, error) {
	match := leadingInteger.FindStringSubmatch(text)
	if match == nil {
		return 0, &ParseError{Field: "bedrooms", Input: text, Reason: "no leading integer"}
	}
	value, err := strconv.Atoi(match[1])
	if err != nil {
		return 0, &ParseError{Field: "bedrooms", Input: text, Reason: err.Error()}
	}
	return value, nil
}

// ParsePrice reads "1.5 Cr", "50 Lakh", "75 L" or a plain numeral like
// "1,234". A leading rupee sign is accepted. Scaled values are rounded to
// whole rupees.
func ParsePrice(text string) (float64, error) {
	match := pricePattern.FindStringSubmatch(text)
	if match == nil {
		return 0, &ParseError{Field: "price", Input: text, Reason: "not a price"}
	}

	value, err := strconv.ParseFloat(strings.ReplaceAll(match[1], ",", ""), 64)
	if err != nil {
		return 0, &ParseError{Field: "price", Input: text, Reason: err.Error()}
	}

	switch unit := strings.ToLower(match[2]); {
	case unit == "":
	case strings.HasPrefix(unit, "cr"):
		value = math.Round(value * crore)
	default:
		value = math.Round(value * lakh)
	}
	if math.IsInf(value, 0) {
		return 0, &ParseError{Field: "price", Input: text, Reason: "out of range"}
	}
	return value, nil
}

// Coordinate bounds in degrees.
const (
	MaxLatitude  = 90
	MaxLongitude = 180
)

// ParseCoordinate returns nil for blank or NaN cells. Values outside
// [-bound, bound] are rejected.
func ParseCoordinate(text string, bound float64) (*float64, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" || strings.EqualFold(trimmed, "nan") {
		return nil, nil
	}
	value, err := strconv.ParseFloat(trimmed, 64)
	if err != nil || math.IsNaN(value) || math.IsInf(value, 0) {
		return nil, &ParseError{Field: "coordinate", Input: text, Reason: "not a number"}
	}
	if value < -bound || value > bound {
		return nil, &ParseError{Field: "coordinate", Input: text, Reason: fmt.Sprintf("outside ±%g", bound)}
	}
	return &value, nil
}
