// Package metric provides the distance functions used as edge weights.
package metric

import (
	"fmt"
	"math"

	"github.com/paulmach/orb"
)

// EarthRadiusKm is the mean Earth radius used by the haversine metric.
const EarthRadiusKm = 6371.0

// Metric computes a symmetric, non-negative distance between two locations
type Metric interface {
	// Distance returns the distance between a and b
	Distance(a, b orb.Point) float64

	// Name identifies the metric
	Name() string
}

// Haversine is the great-circle distance on a sphere of the given radius.
// Points are orb.Point values in degrees ([lon, lat]); the result is in
// the unit of the radius.
type Haversine struct {
	radius float64
}

// NewHaversine returns the haversine metric in kilometers.
func NewHaversine() *Haversine {
	return NewHaversineRadius(EarthRadiusKm)
}

// NewHaversineRadius returns the haversine metric on a sphere of radius r.
func NewHaversineRadius(r float64) *Haversine {
	if r <= 0 || math.IsNaN(r) || math.IsInf(r, 0) {
		panic(fmt.Sprintf("radius must be positive and finite, got %v", r))
	}
	return &Haversine{radius: r}
}

// Distance computes the haversine distance between a and b
func (h *Haversine) Distance(a, b orb.Point) float64 {
	lat1, lon1 := degToRad(a.Lat()), degToRad(a.Lon())
	lat2, lon2 := degToRad(b.Lat()), degToRad(b.Lon())

	sinLat := math.Sin((lat2 - lat1) / 2)
	sinLon := math.Sin((lon2 - lon1) / 2)
	x := sinLat*sinLat + math.Cos(lat1)*math.Cos(lat2)*sinLon*sinLon
	// Rounding can push x a hair above 1 for antipodal points.
	x = math.Min(1, x)
	return 2 * h.radius * math.Asin(math.Sqrt(x))
}

// Name returns "haversine"
func (h *Haversine) Name() string { return "haversine" }

// Radius returns the sphere radius
func (h *Haversine) Radius() float64 { return h.radius }

// Euclidean treats longitude and latitude as planar x and y
type Euclidean struct{}

// NewEuclidean returns the planar metric
func NewEuclidean() *Euclidean { return &Euclidean{} }

// Distance computes the straight-line distance between a and b
func (Euclidean) Distance(a, b orb.Point) float64 {
	return math.Hypot(b[0]-a[0], b[1]-a[1])
}

// Name returns "euclidean"
func (Euclidean) Name() string { return "euclidean" }

// ByName resolves a metric name as used in configuration and requests.
// The empty name selects haversine.
func ByName(name string) (Metric, error) {
	switch name {
	case "", "haversine":
		return NewHaversine(), nil
	case "euclidean":
		return NewEuclidean(), nil
	default:
		return nil, fmt.Errorf("unknown metric %q", name)
	}
}

func degToRad(d float64) float64 {
	return d * math.Pi / 180
}
