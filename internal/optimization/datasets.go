package optimization

import (
	"fmt"
	"math"
)

// FrenchCities returns twenty French cities, in a fixed order.
func FrenchCities() []Point {
	return []Point{
		{Name: "Paris", Lat: 48.8566, Lon: 2.3522},
		{Name: "Marseille", Lat: 43.2965, Lon: 5.3698},
		{Name: "Lyon", Lat: 45.764, Lon: 4.8357},
		{Name: "Toulouse", Lat: 43.6047, Lon: 1.4442},
		{Name: "Nice", Lat: 43.7102, Lon: 7.262},
		{Name: "Nantes", Lat: 47.2184, Lon: -1.5536},
		{Name: "Strasbourg", Lat: 48.5734, Lon: 7.7521},
		{Name: "Montpellier", Lat: 43.6119, Lon: 3.8772},
		{Name: "Bordeaux", Lat: 44.8378, Lon: -0.5792},
		{Name: "Lille", Lat: 50.6292, Lon: 3.0573},
		{Name: "Rennes", Lat: 48.1173, Lon: -1.6778},
		{Name: "Reims", Lat: 49.2583, Lon: 4.0317},
		{Name: "Le Havre", Lat: 49.4944, Lon: 0.1079},
		{Name: "Saint-Étienne", Lat: 45.4397, Lon: 4.3872},
		{Name: "Toulon", Lat: 43.1242, Lon: 5.928},
		{Name: "Grenoble", Lat: 45.1885, Lon: 5.7245},
		{Name: "Dijon", Lat: 47.322, Lon: 5.0415},
		{Name: "Angers", Lat: 47.4784, Lon: -0.5632},
		{Name: "Nîmes", Lat: 43.8367, Lon: 4.3601},
		{Name: "Clermont-Ferrand", Lat: 45.7772, Lon: 3.087},
	}
}

// UnitSquare returns the corners of a one-degree square at the equator, in
// perimeter order.
func UnitSquare() []Point {
	return []Point{
		{Name: "A", Lat: 0, Lon: 0},
		{Name: "B", Lat: 0, Lon: 1},
		{Name: "C", Lat: 1, Lon: 1},
		{Name: "D", Lat: 1, Lon: 0},
	}
}

// RegularPolygon returns n vertices of a regular polygon of the given
// radius, in degrees, centered on (0, 0), in perimeter order. The
// perimeter order is the optimal tour for small radii.
func RegularPolygon(n int, radius float64) []Point {
	points := make([]Point, n)
	for i := range points {
		theta := 2 * math.Pi * float64(i) / float64(n)
		points[i] = Point{
			Name: fmt.Sprintf("P%02d", i),
			Lat:  radius * math.Sin(theta),
			Lon:  radius * math.Cos(theta),
		}
	}
	return points
}
