package store

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/paulmach/orb"

	"github.com/MeKo-Tech/staticstitch/internal/grid"
)

// Metadata describes the grid a tile archive was downloaded for.
type Metadata struct {
	Name    string
	Bounds  orb.Bound
	Zoom    int
	Size    int
	Scale   int
	Columns int
	Rows    int
}

// MetadataFromResult builds archive metadata for a generated grid.
func MetadataFromResult(name string, r *grid.Result) Metadata {
	return Metadata{
		Name:    name,
		Bounds:  r.Config.Bounds().Bound(),
		Zoom:    r.Config.Zoom,
		Size:    r.Config.Size,
		Scale:   r.Config.Scale,
		Columns: r.Columns(),
		Rows:    r.Rows(),
	}
}

// ToMap converts Metadata to name/value rows.
func (m Metadata) ToMap() map[string]string {
	result := map[string]string{
		"zoom":    strconv.Itoa(m.Zoom),
		"size":    strconv.Itoa(m.Size),
		"scale":   strconv.Itoa(m.Scale),
		"columns": strconv.Itoa(m.Columns),
		"rows":    strconv.Itoa(m.Rows),
	}

	if m.Name != "" {
		result["name"] = m.Name
	}
	if !m.Bounds.IsZero() {
		result["bounds"] = fmt.Sprintf("%.6f,%.6f,%.6f,%.6f",
			m.Bounds.Min.Lon(), m.Bounds.Min.Lat(), m.Bounds.Max.Lon(), m.Bounds.Max.Lat())
	}

	return result
}

// metadataFromMap parses rows written by ToMap. Unknown or malformed values
// are left at their zero value.
func metadataFromMap(values map[string]string) Metadata {
	meta := Metadata{Name: values["name"]}

	ints := map[string]*int{
		"zoom":    &meta.Zoom,
		"size":    &meta.Size,
		"scale":   &meta.Scale,
		"columns": &meta.Columns,
		"rows":    &meta.Rows,
	}
	for name, dst := range ints {
		if v, err := strconv.Atoi(values[name]); err == nil {
			*dst = v
		}
	}

	// "minLon,minLat,maxLon,maxLat"
	if v, ok := values["bounds"]; ok {
		parts := strings.Split(v, ",")
		if len(parts) == 4 {
			var f [4]float64
			ok := true
			for i, part := range parts {
				parsed, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
				if err != nil {
					ok = false
					break
				}
				f[i] = parsed
			}
			if ok {
				meta.Bounds = orb.Bound{Min: orb.Point{f[0], f[1]}, Max: orb.Point{f[2], f[3]}}
			}
		}
	}

	return meta
}
