package api

import (
	"math"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"propfinder/server/internal/cleaning"
	"propfinder/server/internal/geometry"
	"propfinder/server/internal/models"
	"propfinder/server/internal/search"
)

// SearchParams are the query-string filters shared by the JSON endpoints
// and the HTML page.
type SearchParams struct {
	City     string `form:"city"`
	Type     string `form:"type"`
	Bedrooms string `form:"bhk"`
	Size     string `form:"size"`
	Name     string `form:"name"`
	MinPrice string `form:"min_price"`
	MaxPrice string `form:"max_price"`
	Lat      string `form:"lat"`
	Lng      string `form:"lng"`
	RadiusKm string `form:"radius_km"`
}

func queryFromRequest(c *gin.Context) (search.Query, error) {
	var params SearchParams
	if err := c.ShouldBindQuery(&params); err != nil {
		return search.Query{}, &search.InvalidQueryError{Field: "query", Reason: err.Error()}
	}
	return params.Query()
}

// Query validates the parameters into a search query.
func (p SearchParams) Query() (search.Query, error) {
	bedrooms, err := search.ParseBedrooms(p.Bedrooms)
	if err != nil {
		return search.Query{}, err
	}
	q, err := search.NewQuery(p.City, p.Type, bedrooms, p.Size, p.Name)
	if err != nil {
		return search.Query{}, err
	}

	if strings.TrimSpace(p.MinPrice) != "" || strings.TrimSpace(p.MaxPrice) != "" {
		var price search.Range
		if price.Min, err = priceBound(p.MinPrice, 0); err != nil {
			return search.Query{}, err
		}
		if price.Max, err = priceBound(p.MaxPrice, math.MaxFloat64); err != nil {
			return search.Query{}, err
		}
		q.Price = &price
	}

	if p.Lat != "" || p.Lng != "" || p.RadiusKm != "" {
		circle, err := circleFromParams(p.Lat, p.Lng, p.RadiusKm)
		if err != nil {
			return search.Query{}, err
		}
		q.Near = &circle
	}

	if err := q.Validate(); err != nil {
		return search.Query{}, err
	}
	return q, nil
}

// priceBound accepts the dataset's price notation, so "50 Lakh" works as a
// bound.
func priceBound(text string, fallback float64) (float64, error) {
	if strings.TrimSpace(text) == "" {
		return fallback, nil
	}
	v, err := cleaning.ParsePrice(text)
	if err != nil {
		return 0, &search.InvalidQueryError{Field: "price", Input: text, Reason: "must be a price such as 50 Lakh or 1.2 Cr"}
	}
	return v, nil
}

func circleFromParams(lat, lng, radius string) (geometry.Circle, error) {
	if lat == "" || lng == "" || radius == "" {
		return geometry.Circle{}, &search.InvalidQueryError{Field: "location", Reason: "lat, lng and radius_km must be given together"}
	}
	values := make([]float64, 3)
	for i, text := range []string{lat, lng, radius} {
		v, err := strconv.ParseFloat(strings.TrimSpace(text), 64)
		if err != nil {
			return geometry.Circle{}, &search.InvalidQueryError{Field: "location", Input: text, Reason: "must be a number"}
		}
		values[i] = v
	}
	circle, err := geometry.NewCircle(values[0], values[1], values[2])
	if err != nil {
		return geometry.Circle{}, &search.InvalidQueryError{Field: "location", Reason: err.Error()}
	}
	return circle, nil
}

// predictionFromRequest reads a complete feature vector from the query
// string. Unlike /predict, every field is required.
func predictionFromRequest(c *gin.Context) (models.PredictionInput, error) {
	city := strings.TrimSpace(c.Query("city"))
	propertyType := strings.TrimSpace(c.Query("type"))
	if city == "" {
		return models.PredictionInput{}, &search.InvalidQueryError{Field: "city", Reason: "city is required"}
	}
	if propertyType == "" {
		return models.PredictionInput{}, &search.InvalidQueryError{Field: "property type", Reason: "property type is required"}
	}

	bedrooms, err := search.ParseBedrooms(c.Query("bhk"))
	if err != nil {
		return models.PredictionInput{}, err
	}
	if bedrooms < 1 {
		return models.PredictionInput{}, &search.InvalidQueryError{Field: "bedrooms", Input: c.Query("bhk"), Reason: "must be at least 1"}
	}

	sizeText := c.Query("size")
	size, err := strconv.ParseFloat(strings.ReplaceAll(strings.TrimSpace(sizeText), ",", ""), 64)
	if err != nil || math.IsNaN(size) || math.IsInf(size, 0) || size <= 0 {
		return models.PredictionInput{}, &search.InvalidQueryError{Field: "size", Input: sizeText, Reason: "size must be a positive number"}
	}

	bhk := float64(bedrooms)
	return models.PredictionInput{Size: &size, Bedrooms: &bhk, City: city, PropertyType: propertyType}, nil
}
