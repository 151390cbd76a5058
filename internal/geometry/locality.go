package geometry

import (
	"math"
	"sort"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
	"github.com/paulmach/orb/geojson"

	"propfinder/server/internal/models"
	"propfinder/server/internal/stats"
)

// Locality groups the located listings of one locality within a city.
type Locality struct {
	Name   string
	City   string
	Points []orb.Point
	Prices []float64
}

// GroupLocalities collects located records of city (case-insensitive) by
// locality name, sorted by name. Records without a locality are skipped.
func GroupLocalities(records []models.Property, city string) []Locality {
	byName := make(map[string]*Locality)
	for _, p := range records {
		if !strings.EqualFold(p.City, city) || p.Locality == "" || !p.HasLocation() {
			continue
		}
		loc, ok := byName[p.Locality]
		if !ok {
			loc = &Locality{Name: p.Locality, City: p.City}
			byName[p.Locality] = loc
		}
		loc.Points = append(loc.Points, orb.Point{*p.Longitude, *p.Latitude})
		loc.Prices = append(loc.Prices, p.Price)
	}

	out := make([]Locality, 0, len(byName))
	for _, loc := range byName {
		out = append(out, *loc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func cross(o, a, b orb.Point) float64 {
	return (a[0]-o[0])*(b[1]-o[1]) - (a[1]-o[1])*(b[0]-o[0])
}

// ConvexHull returns the closed, counter-clockwise hull of points using a
// monotone chain. It returns nil when fewer than three points are not
// collinear. points is not modified.
func ConvexHull(points []orb.Point) orb.Ring {
	pts := make([]orb.Point, len(points))
	copy(pts, points)
	sort.Slice(pts, func(i, j int) bool {
		if pts[i][0] != pts[j][0] {
			return pts[i][0] < pts[j][0]
		}
		return pts[i][1] < pts[j][1]
	})

	unique := pts[:0]
	for _, p := range pts {
		if len(unique) == 0 || p != unique[len(unique)-1] {
			unique = append(unique, p)
		}
	}
	if len(unique) < 3 {
		return nil
	}

	var lower, upper []orb.Point
	for _, p := range unique {
		for len(lower) >= 2 && cross(lower[len(lower)-2], lower[len(lower)-1], p) <= 0 {
			lower = lower[:len(lower)-1]
		}
		lower = append(lower, p)
	}
	for i := len(unique) - 1; i >= 0; i-- {
		p := unique[i]
		for len(upper) >= 2 && cross(upper[len(upper)-2], upper[len(upper)-1], p) <= 0 {
			upper = upper[:len(upper)-1]
		}
		upper = append(upper, p)
	}

	hull := append(lower[:len(lower)-1], upper[:len(upper)-1]...)
	if len(hull) < 3 {
		return nil
	}
	return append(orb.Ring(hull), hull[0])
}

// LocalityHulls outlines each locality of city that has at least three
// located listings as a GeoJSON polygon.
func LocalityHulls(records []models.Property, city string) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, loc := range GroupLocalities(records, city) {
		hull := ConvexHull(loc.Points)
		if hull == nil {
			continue
		}

		polygon := orb.Polygon{hull}
		feature := geojson.NewFeature(polygon)
		feature.Properties = geojson.Properties{
			"locality":     loc.Name,
			"city":         loc.City,
			"point_count":  len(loc.Points),
			"median_price": stats.Median(loc.Prices),
			"area_km2":     math.Abs(geo.Area(polygon)) / 1e6,
			"hull_type":    "convex",
		}
		fc.Append(feature)
	}
	return fc
}
