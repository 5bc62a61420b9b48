package grid

import (
	"fmt"
	"net/url"

	"github.com/MeKo-Tech/staticstitch/internal/geo"
)

// Tile is one cell of a grid together with the query fragment used to fetch it.
type Tile struct {
	URLParams string `json:"url_param_str"`
	X         int    `json:"x"`
	Y         int    `json:"y"`
}

// String returns the tile as "x,y".
func (t Tile) String() string {
	return fmt.Sprintf("%d,%d", t.X, t.Y)
}

// Center parses the center coordinate back out of the request parameters.
func (t Tile) Center() (geo.LatLng, error) {
	values, err := url.ParseQuery(t.URLParams)
	if err != nil {
		return geo.LatLng{}, fmt.Errorf("failed to parse params of tile %s: %w", t, err)
	}
	center := values.Get("center")
	if center == "" {
		return geo.LatLng{}, fmt.Errorf("tile %s has no center parameter", t)
	}
	return geo.ParseLatLng(center)
}

// Config is the snapshot of the options a grid was generated from.
type Config struct {
	Zoom      int        `json:"zoom"`
	Size      int        `json:"size"`
	Scale     int        `json:"scale"`
	Southwest geo.LatLng `json:"southwest"`
	Northeast geo.LatLng `json:"northeast"`
}

// Bounds returns the bounding box the grid covers.
func (c Config) Bounds() geo.LatLngBounds {
	return geo.NewBounds(c.Southwest, c.Northeast)
}

// CellSize returns the edge length of one tile in output pixels.
func (c Config) CellSize() int {
	return c.Size * c.Scale
}

// Tiles holds the two tile layers of a grid.
type Tiles struct {
	Primary []Tile `json:"primary"`
	Half    []Tile `json:"half"`
}

// Result is the output of Generate. It is not modified after creation.
type Result struct {
	Config Config `json:"config"`
	Tiles  Tiles  `json:"tiles"`
}

// Columns returns the width of the primary grid in tiles.
func (r *Result) Columns() int {
	n := 0
	for _, t := range r.Tiles.Primary {
		if t.X+1 > n {
			n = t.X + 1
		}
	}
	return n
}

// Rows returns the height of the primary grid in tiles.
func (r *Result) Rows() int {
	n := 0
	for _, t := range r.Tiles.Primary {
		if t.Y+1 > n {
			n = t.Y + 1
		}
	}
	return n
}

// Len returns the number of tiles in both layers.
func (r *Result) Len() int {
	return len(r.Tiles.Primary) + len(r.Tiles.Half)
}
