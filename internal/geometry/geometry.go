// Package geometry provides the spatial helpers behind map views: radius
// filtering, bounds and GeoJSON export of result cards.
package geometry

import (
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
	"github.com/paulmach/orb/geojson"

	"propfinder/server/internal/models"
	"propfinder/server/internal/presentation"
)

// Circle is a search area around a point.
type Circle struct {
	Center   orb.Point
	RadiusKm float64
}

func NewCircle(lat, lng, radiusKm float64) (Circle, error) {
	if lat < -90 || lat > 90 || lng < -180 || lng > 180 {
		return Circle{}, fmt.Errorf("invalid center %v,%v", lat, lng)
	}
	if radiusKm <= 0 {
		return Circle{}, fmt.Errorf("radius must be positive, got %v", radiusKm)
	}
	return Circle{Center: orb.Point{lng, lat}, RadiusKm: radiusKm}, nil
}

// Contains reports whether p has a location inside the circle.
func (c Circle) Contains(p models.Property) bool {
	if !p.HasLocation() {
		return false
	}
	meters := geo.DistanceHaversine(c.Center, orb.Point{*p.Longitude, *p.Latitude})
	return meters <= c.RadiusKm*1000
}

// Bound returns the bounding box of located records. ok is false when none
// has coordinates.
func Bound(records []models.Property) (orb.Bound, bool) {
	var points orb.MultiPoint
	for _, p := range records {
		if p.HasLocation() {
			points = append(points, orb.Point{*p.Longitude, *p.Latitude})
		}
	}
	if len(points) == 0 {
		return orb.Bound{}, false
	}
	return points.Bound(), true
}

// FeatureCollection converts located cards to GeoJSON points. Cards without
// coordinates are left out.
func FeatureCollection(cards []presentation.Card) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, card := range cards {
		if card.Latitude == nil || card.Longitude == nil {
			continue
		}

		feature := geojson.NewFeature(orb.Point{*card.Longitude, *card.Latitude})
		feature.Properties["name"] = card.Name
		feature.Properties["city"] = card.City
		feature.Properties["property_type"] = card.PropertyType
		feature.Properties["bedrooms"] = card.Bedrooms
		feature.Properties["size"] = card.Size
		feature.Properties["price"] = card.Price
		feature.Properties["price_text"] = card.PriceText
		feature.Properties["price_per_sqft"] = card.PricePerArea
		feature.Properties["locality"] = card.Locality
		feature.Properties["geohash"] = card.Geohash
		feature.Properties["map_url"] = card.MapURL
		fc.Append(feature)
	}
	return fc
}
