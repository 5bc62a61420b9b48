// Package geo provides the geographic value types and the Web Mercator style
// projection used to lay out static map tiles.
package geo

import (
	"fmt"
	"math"
)

// WorldSize is the edge length, in world pixels, of the whole map at zoom 0.
const WorldSize = 256.0

// maxSin bounds sin(lat) so the projection stays finite at the poles.
const maxSin = 0.9999

// Point is a position in world pixel space. X grows eastward and Y grows
// southward; both lie in [0, WorldSize] for valid Mercator latitudes.
type Point struct {
	X float64
	Y float64
}

// String returns the point as "x,y".
func (p Point) String() string {
	return fmt.Sprintf("%g,%g", p.X, p.Y)
}

// Projection converts between geographic coordinates and world pixels.
// It has no state; the zero value is ready to use from any goroutine.
type Projection struct{}

// FromLatLngToPoint projects a geographic coordinate into world pixel space.
func (Projection) FromLatLngToPoint(ll LatLng) Point {
	siny := math.Sin(ll.Lat * math.Pi / 180.0)
	siny = math.Min(math.Max(siny, -maxSin), maxSin)

	return Point{
		X: (ll.Lng + 180.0) / 360.0 * WorldSize,
		Y: (0.5 - math.Log((1+siny)/(1-siny))/(4*math.Pi)) * WorldSize,
	}
}

// FromPointToLatLng is the inverse of FromLatLngToPoint.
func (Projection) FromPointToLatLng(p Point) LatLng {
	lng := p.X/WorldSize*360.0 - 180.0

	// half of ln((1+siny)/(1-siny)), i.e. atanh(siny)
	u := (0.5 - p.Y/WorldSize) * 2 * math.Pi
	lat := (2*math.Atan(math.Exp(u)) - math.Pi/2) * 180.0 / math.Pi

	return LatLng{Lat: lat, Lng: lng}
}
