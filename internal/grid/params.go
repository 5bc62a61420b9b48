package grid

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/MeKo-Tech/staticstitch/internal/geo"
)

// RequestParams builds the query fragment for a static map request centered
// on center. Parameters are emitted in a fixed order (center, zoom, scale,
// size, maptype) so generated files are stable. The fragment never carries a
// key or a style.
func RequestParams(center geo.LatLng, zoom, scale, size int, maptype string) string {
	var b strings.Builder

	write := func(key, value string) {
		if b.Len() > 0 {
			b.WriteByte('&')
		}
		b.WriteString(key)
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(value))
	}

	edge := strconv.Itoa(size)

	write("center", center.String())
	write("zoom", strconv.Itoa(zoom))
	write("scale", strconv.Itoa(scale))
	write("size", edge+"x"+edge)
	write("maptype", maptype)

	return b.String()
}
