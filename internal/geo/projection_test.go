package geo

import (
	"math"
	"testing"
)

func TestProjectionKnownPoints(t *testing.T) {
	var proj Projection

	tests := []struct {
		name string
		in   LatLng
		want Point
	}{
		{"null island", LatLng{0, 0}, Point{128, 128}},
		{"west edge", LatLng{0, -180}, Point{0, 128}},
		{"east edge", LatLng{0, 180}, Point{256, 128}},
		{"quarter east", LatLng{0, 90}, Point{192, 128}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := proj.FromLatLngToPoint(tt.in)
			if math.Abs(got.X-tt.want.X) > 1e-9 || math.Abs(got.Y-tt.want.Y) > 1e-9 {
				t.Errorf("FromLatLngToPoint(%s) = %s, want %s", tt.in, got, tt.want)
			}
		})
	}
}

func TestProjectionRoundTrip(t *testing.T) {
	var proj Projection

	for lat := -84.5; lat < 85; lat += 3.25 {
		for lng := -180.0; lng <= 180; lng += 7.5 {
			in := LatLng{Lat: lat, Lng: lng}
			out := proj.FromPointToLatLng(proj.FromLatLngToPoint(in))

			if math.Abs(out.Lat-in.Lat) > 1e-9 || math.Abs(out.Lng-in.Lng) > 1e-9 {
				t.Fatalf("round trip of %s returned %s", in, out)
			}
		}
	}
}

func TestProjectionClampsPoles(t *testing.T) {
	var proj Projection

	north := proj.FromLatLngToPoint(LatLng{Lat: 90, Lng: 0})
	south := proj.FromLatLngToPoint(LatLng{Lat: -90, Lng: 0})

	if math.IsInf(north.Y, 0) || math.IsNaN(north.Y) || math.IsInf(south.Y, 0) || math.IsNaN(south.Y) {
		t.Fatalf("pole projection diverged: north=%s south=%s", north, south)
	}
	if north.Y >= 0 {
		t.Errorf("north pole Y = %f, want above the top edge (< 0)", north.Y)
	}
	if south.Y <= WorldSize {
		t.Errorf("south pole Y = %f, want below the bottom edge (> %f)", south.Y, WorldSize)
	}
	if math.Abs(north.Y+south.Y-WorldSize) > 1e-9 {
		t.Errorf("poles should be symmetric around the equator: %f + %f", north.Y, south.Y)
	}
}

func TestProjectionMatchesSlippyTiles(t *testing.T) {
	var proj Projection

	points := []LatLng{
		{Lat: 52.37, Lng: 9.73},     // Hanover
		{Lat: 37.78, Lng: -122.42},  // San Francisco
		{Lat: 35.69, Lng: 139.69},   // Tokyo
		{Lat: -33.87, Lng: 151.21},  // Sydney
		{Lat: 39.7, Lng: -82.8},     // Ohio
	}

	for _, zoom := range []int{1, 5, 10, 13} {
		for _, p := range points {
			pt := proj.FromLatLngToPoint(p)
			scale := math.Exp2(float64(zoom)) / WorldSize

			want := SlippyTile(p, zoom)
			gotX := uint32(math.Floor(pt.X * scale))
			gotY := uint32(math.Floor(pt.Y * scale))

			if gotX != want.X || gotY != want.Y {
				t.Errorf("zoom %d point %s: projection tile (%d,%d), maptile (%d,%d)",
					zoom, p, gotX, gotY, want.X, want.Y)
			}
		}
	}
}
