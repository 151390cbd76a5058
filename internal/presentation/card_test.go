package presentation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"propfinder/server/internal/models"
)

func float(v float64) *float64 {
	return &v
}

func TestProjection_Future(t *testing.T) {
	assert.InDelta(t, 6381407.8125, DefaultProjection.Future(5000000), 1e-6)
	assert.Equal(t, 100.0, Projection{Rate: 0.1, Years: 0}.Future(100))
	assert.InDelta(t, 121.0, Projection{Rate: 0.1, Years: 2}.Future(100), 1e-9)
}

func TestNewCard(t *testing.T) {
	p := models.Property{
		Name:         "Green Acres",
		City:         "Pune",
		PropertyType: "Flat",
		Bedrooms:     2,
		Size:         1000,
		Price:        5000000,
		Locality:     "Baner",
		Status:       "Ready to move",
		Latitude:     float(18.559),
		Longitude:    float(73.7868),
	}

	card := NewCard(p, DefaultProjection)

	assert.Equal(t, "Green Acres", card.Name)
	assert.Equal(t, 5000.0, card.PricePerArea)
	assert.Equal(t, "₹5,000.00 per sqft", card.PricePerAreaText)
	assert.Equal(t, 5000000.0, card.Price)
	assert.Equal(t, "₹50.00 Lakh", card.PriceText)
	assert.Equal(t, "₹63.81 Lakh", card.FuturePriceText)
	assert.Equal(t, "1,000 sqft", card.SizeText)
	assert.Equal(t, "https://www.google.com/maps?q=18.559%2C73.7868", card.MapURL)
	assert.Len(t, card.Geohash, geohashPrecision)

	require.NotNil(t, card.Latitude)
	*card.Latitude = 0
	assert.Equal(t, 18.559, *p.Latitude, "card must not alias the record's coordinates")
}

func TestNewCard_ZeroSizeGuard(t *testing.T) {
	card := NewCard(models.Property{Name: "Plot", Price: 1000000}, DefaultProjection)
	assert.Equal(t, 0.0, card.PricePerArea)
	assert.Equal(t, "n/a", card.PricePerAreaText)
	assert.Empty(t, card.MapURL)
	assert.Empty(t, card.Geohash)
}

func TestNewCards(t *testing.T) {
	records := []models.Property{
		{Name: "A", Size: 500, Price: 2500000},
		{Name: "B", Size: 1000, Price: 15000000},
	}
	cards := NewCards(records, DefaultProjection)
	require.Len(t, cards, 2)
	assert.Equal(t, "₹1.50 Cr", cards[1].PriceText)
	assert.Equal(t, 15000.0, cards[1].PricePerArea)
	assert.Empty(t, NewCards(nil, DefaultProjection))
}
