// Package presentation maps property records to display payloads.
package presentation

import (
	"math"
	"net/url"
	"strconv"

	"github.com/mmcloughlin/geohash"

	"propfinder/server/internal/format"
	"propfinder/server/internal/models"
)

const geohashPrecision = 7

// Projection compounds a price at a fixed annual rate.
type Projection struct {
	Rate  float64 `json:"rate"`
	Years int     `json:"years"`
}

var DefaultProjection = Projection{Rate: 0.05, Years: 5}

// Future returns price × (1 + rate)^years.
func (p Projection) Future(price float64) float64 {
	return price * math.Pow(1+p.Rate, float64(p.Years))
}

// Card is the display payload for one property.
type Card struct {
	Name             string   `json:"name"`
	City             string   `json:"city"`
	PropertyType     string   `json:"property_type"`
	Bedrooms         int      `json:"bedrooms"`
	Size             float64  `json:"size"`
	SizeText         string   `json:"size_text"`
	Price            float64  `json:"price"`
	PriceText        string   `json:"price_text"`
	PricePerArea     float64  `json:"price_per_sqft"`
	PricePerAreaText string   `json:"price_per_sqft_text"`
	FuturePrice      float64  `json:"future_price"`
	FuturePriceText  string   `json:"future_price_text"`
	Locality         string   `json:"locality"`
	Status           string   `json:"status"`
	Latitude         *float64 `json:"latitude,omitempty"`
	Longitude        *float64 `json:"longitude,omitempty"`
	Geohash          string   `json:"geohash,omitempty"`
	MapURL           string   `json:"map_url,omitempty"`
}

// NewCard derives the display fields from p. p itself is not modified.
func NewCard(p models.Property, projection Projection) Card {
	card := Card{
		Name:         p.Name,
		City:         p.City,
		PropertyType: p.PropertyType,
		Bedrooms:     p.Bedrooms,
		Size:         p.Size,
		SizeText:     format.Area(p.Size),
		Price:        p.Price,
		PriceText:    format.Price(p.Price),
		Locality:     p.Locality,
		Status:       p.Status,
	}

	if perArea, ok := p.PricePerArea(); ok {
		card.PricePerArea = perArea
		card.PricePerAreaText = format.PerArea(perArea)
	} else {
		card.PricePerAreaText = "n/a"
	}

	card.FuturePrice = projection.Future(p.Price)
	card.FuturePriceText = format.Price(card.FuturePrice)

	if p.HasLocation() {
		lat, lng := *p.Latitude, *p.Longitude
		card.Latitude = &lat
		card.Longitude = &lng
		card.Geohash = geohash.EncodeWithPrecision(lat, lng, geohashPrecision)
		card.MapURL = MapURL(lat, lng)
	}

	return card
}

func NewCards(records []models.Property, projection Projection) []Card {
	cards := make([]Card, 0, len(records))
	for _, p := range records {
		cards = append(cards, NewCard(p, projection))
	}
	return cards
}

// MapURL links to the location on Google Maps.
func MapURL(lat, lng float64) string {
	q := strconv.FormatFloat(lat, 'f', -1, 64) + "," + strconv.FormatFloat(lng, 'f', -1, 64)
	return "https://www.google.com/maps?q=" + url.QueryEscape(q)
}
