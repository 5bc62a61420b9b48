package download

import (
	"fmt"
	"net/url"
	"strings"
)

// styleKeys are the query parameters copied from a styled static map URL.
var styleKeys = []string{"map_id", "style"}

// ExtractStyleParams returns the styling parameters of a static map URL
// (map_id and every style entry) as a query fragment. Other parameters such
// as center, size or key are dropped. An empty URL yields an empty fragment.
func ExtractStyleParams(styleURL string) (string, error) {
	styleURL = strings.TrimSpace(styleURL)
	if styleURL == "" {
		return "", nil
	}

	u, err := url.Parse(styleURL)
	if err != nil {
		return "", fmt.Errorf("failed to parse style url: %w", err)
	}

	values, err := url.ParseQuery(u.RawQuery)
	if err != nil {
		return "", fmt.Errorf("failed to parse style url query: %w", err)
	}

	var parts []string
	for _, key := range styleKeys {
		for _, v := range values[key] {
			parts = append(parts, key+"="+url.QueryEscape(v))
		}
	}

	return strings.Join(parts, "&"), nil
}
