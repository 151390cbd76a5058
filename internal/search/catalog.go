package search

import (
	"sort"
	"strings"

	"propfinder/server/internal/models"
	"propfinder/server/internal/stats"
)

// Filter returns the records matching q, in input order. records is not
// modified.
func Filter(records []models.Property, q Query) []models.Property {
	name := strings.ToLower(q.Name)

	matched := make([]models.Property, 0)
	for _, p := range records {
		if p.City != q.City || p.PropertyType != q.PropertyType || p.Bedrooms != q.Bedrooms {
			continue
		}
		if !q.Size.Contains(p.Size) {
			continue
		}
		if q.Price != nil && !q.Price.Contains(p.Price) {
			continue
		}
		if name != "" && !strings.Contains(strings.ToLower(p.Name), name) {
			continue
		}
		if q.Near != nil && !q.Near.Contains(p) {
			continue
		}
		matched = append(matched, p)
	}
	return matched
}

// Options are the selector values offered to users.
type Options struct {
	Cities        []string `json:"cities"`
	PropertyTypes []string `json:"property_types"`
	Bedrooms      []int    `json:"bedrooms"`
}

func BuildOptions(records []models.Property) Options {
	cities := make(map[string]struct{})
	types := make(map[string]struct{})
	bedrooms := make(map[int]struct{})
	for _, p := range records {
		if p.City != "" {
			cities[p.City] = struct{}{}
		}
		if p.PropertyType != "" {
			types[p.PropertyType] = struct{}{}
		}
		bedrooms[p.Bedrooms] = struct{}{}
	}

	opts := Options{
		Cities:        sortedKeys(cities),
		PropertyTypes: sortedKeys(types),
		Bedrooms:      make([]int, 0, len(bedrooms)),
	}
	for n := range bedrooms {
		opts.Bedrooms = append(opts.Bedrooms, n)
	}
	sort.Ints(opts.Bedrooms)
	return opts
}

func sortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Summarize computes price statistics over records.
func Summarize(records []models.Property) models.PropertyStats {
	if len(records) == 0 {
		return models.PropertyStats{}
	}

	prices := make([]float64, 0, len(records))
	perArea := make([]float64, 0, len(records))
	for _, p := range records {
		prices = append(prices, p.Price)
		if v, ok := p.PricePerArea(); ok {
			perArea = append(perArea, v)
		}
	}

	return models.PropertyStats{
		TotalProperties: len(records),
		AveragePrice:    stats.Mean(prices),
		MedianPrice:     stats.Median(prices),
		PricePerSqft:    stats.Mean(perArea),
	}
}

// Catalog is the immutable record set loaded at startup. It is safe for
// concurrent readers.
type Catalog struct {
	records []models.Property
	options Options
}

func NewCatalog(records []models.Property) *Catalog {
	owned := make([]models.Property, len(records))
	copy(owned, records)
	return &Catalog{records: owned, options: BuildOptions(owned)}
}

func (c *Catalog) Len() int {
	return len(c.records)
}

// Records returns a copy of every record.
func (c *Catalog) Records() []models.Property {
	out := make([]models.Property, len(c.records))
	copy(out, c.records)
	return out
}

func (c *Catalog) Search(q Query) ([]models.Property, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	return Filter(c.records, q), nil
}

func (c *Catalog) Options() Options {
	return c.options
}

// Cities lists the distinct cities in the catalog.
func (c *Catalog) Cities() []string {
	out := make([]string, len(c.options.Cities))
	copy(out, c.options.Cities)
	return out
}

// Stats summarises the catalog, optionally restricted to one city
// (case-insensitive).
func (c *Catalog) Stats(city string) models.PropertyStats {
	if city == "" {
		return Summarize(c.records)
	}
	var subset []models.Property
	for _, p := range c.records {
		if strings.EqualFold(p.City, city) {
			subset = append(subset, p)
		}
	}
	return Summarize(subset)
}
