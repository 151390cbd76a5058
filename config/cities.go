package config

import (
	"fmt"
	"regexp"
	"strings"

	"propfinder/server/internal/geometry"
	"propfinder/server/internal/models"
)

// City represents the map configuration for one dataset city
type City struct {
	Name       string    `json:"name"`
	Slug       string    `json:"slug"`
	Center     []float64 `json:"center"`
	ZoomLevel  int       `json:"zoom_level"`
	Properties int       `json:"properties"`
}

// DefaultCenter is used for cities without located listings
var (
	DefaultCenter    = []float64{20.5937, 78.9629}
	DefaultZoomLevel = 5
)

// CatalogReader is the read side of the property catalog
type CatalogReader interface {
	Cities() []string
	Records() []models.Property
}

// GetCityNames returns the distinct, non-empty city names in catalog order
func GetCityNames(reader CatalogReader) []string {
	seen := make(map[string]bool)
	names := make([]string, 0)
	for _, name := range reader.Cities() {
		name = strings.TrimSpace(name)
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		names = append(names, name)
	}
	return names
}

// GetCityConfig looks a city up by name or slug and centres it on its
// located listings
func GetCityConfig(reader CatalogReader, name string) (*City, error) {
	wanted := NormalizeCity(name)
	for _, city := range GetCityNames(reader) {
		if NormalizeCity(city) == wanted {
			cfg := cityConfig(city, reader.Records())
			return &cfg, nil
		}
	}
	return nil, fmt.Errorf("unknown city: %s", name)
}

// GetCities returns the configuration of every city
func GetCities(reader CatalogReader) []City {
	records := reader.Records()
	names := GetCityNames(reader)
	cities := make([]City, 0, len(names))
	for _, name := range names {
		cities = append(cities, cityConfig(name, records))
	}
	return cities
}

func cityConfig(name string, records []models.Property) City {
	var inCity []models.Property
	for _, p := range records {
		if p.City == name {
			inCity = append(inCity, p)
		}
	}

	city := City{
		Name:       name,
		Slug:       NormalizeCity(name),
		Center:     append([]float64(nil), DefaultCenter...),
		ZoomLevel:  DefaultZoomLevel,
		Properties: len(inCity),
	}

	bound, ok := geometry.Bound(inCity)
	if !ok {
		return city
	}
	center := bound.Center()
	city.Center = []float64{center.Lat(), center.Lon()}
	city.ZoomLevel = zoomFor(bound.Top()-bound.Bottom(), bound.Right()-bound.Left())
	return city
}

// zoomFor picks a map zoom that fits a span given in degrees
func zoomFor(latSpan, lngSpan float64) int {
	span := max(latSpan, lngSpan)
	switch {
	case span < 0.05:
		return 14
	case span < 0.2:
		return 13
	case span < 0.5:
		return 12
	case span < 1:
		return 11
	default:
		return 9
	}
}

var nonSlug = regexp.MustCompile(`[^a-z0-9]+`)

// NormalizeCity turns a display name into a URL slug
func NormalizeCity(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	name = strings.ReplaceAll(name, "'", "")
	name = nonSlug.ReplaceAllString(name, "-")
	return strings.Trim(name, "-")
}
