package geo

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLatLng(t *testing.T) {
	tests := []struct {
		input   string
		want    LatLng
		wantErr bool
	}{
		{"39.1,-83.2", LatLng{39.1, -83.2}, false},
		{" 40.3 , -82.4 ", LatLng{40.3, -82.4}, false},
		{"0,0", LatLng{0, 0}, false},
		{"39.1", LatLng{}, true},
		{"39.1,-83.2,1", LatLng{}, true},
		{"north,-83.2", LatLng{}, true},
		{"39.1,west", LatLng{}, true},
		{"", LatLng{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseLatLng(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLatLngValidity(t *testing.T) {
	tests := []struct {
		in      LatLng
		valid   bool
		coerced LatLng
	}{
		{LatLng{0, 0}, true, LatLng{0, 0}},
		{LatLng{90, 180}, true, LatLng{90, 180}},
		{LatLng{-90, -180}, true, LatLng{-90, -180}},
		{LatLng{91, 0}, false, LatLng{90, 0}},
		{LatLng{0, -180.5}, false, LatLng{0, -180}},
		{LatLng{-95, 200}, false, LatLng{-90, 180}},
	}

	for _, tt := range tests {
		t.Run(tt.in.String(), func(t *testing.T) {
			assert.Equal(t, tt.valid, tt.in.IsValid())
			assert.Equal(t, tt.coerced, tt.in.CoerceToValid())
			assert.True(t, tt.in.CoerceToValid().IsValid())
		})
	}
}

func TestLatLngTextRoundTrip(t *testing.T) {
	in := LatLng{Lat: 39.1, Lng: -83.2}

	data, err := json.Marshal(in)
	require.NoError(t, err)
	assert.Equal(t, `"39.1,-83.2"`, string(data))

	var out LatLng
	require.NoError(t, json.Unmarshal(data, &out))
	assert.Equal(t, in, out)
}

func TestBoundsContains(t *testing.T) {
	b := NewBounds(LatLng{39.1, -83.2}, LatLng{40.3, -82.4})

	assert.True(t, b.Contains(LatLng{39.5, -83}))
	assert.True(t, b.Contains(b.Southwest), "southwest corner is inside")
	assert.True(t, b.Contains(b.Northeast), "northeast corner is inside")
	assert.True(t, b.Contains(LatLng{40.3, -83.2}), "northwest corner is inside")
	assert.False(t, b.Contains(LatLng{40.31, -83}))
	assert.False(t, b.Contains(LatLng{39.5, -82.39}))
	assert.False(t, b.Contains(LatLng{39.09, -83}))
}

func TestBoundsValidate(t *testing.T) {
	tests := []struct {
		name    string
		bounds  LatLngBounds
		wantErr bool
	}{
		{"ohio", NewBounds(LatLng{39.1, -83.2}, LatLng{40.3, -82.4}), false},
		{"inverted latitude", NewBounds(LatLng{40.3, -83.2}, LatLng{39.1, -82.4}), true},
		{"inverted longitude", NewBounds(LatLng{39.1, -82.4}, LatLng{40.3, -83.2}), true},
		{"zero height", NewBounds(LatLng{39.1, -83.2}, LatLng{39.1, -82.4}), true},
		{"zero width", NewBounds(LatLng{39.1, -83.2}, LatLng{40.3, -83.2}), true},
		{"southwest out of range", NewBounds(LatLng{-91, -83.2}, LatLng{40.3, -82.4}), true},
		{"northeast out of range", NewBounds(LatLng{39.1, -83.2}, LatLng{40.3, 181}), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.bounds.Validate()
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidBounds))
		})
	}
}

func TestBoundsOrb(t *testing.T) {
	b := NewBounds(LatLng{39.1, -83.2}, LatLng{40.3, -82.4})
	bound := b.Bound()

	assert.Equal(t, -83.2, bound.Min.Lon())
	assert.Equal(t, 39.1, bound.Min.Lat())
	assert.Equal(t, -82.4, bound.Max.Lon())
	assert.Equal(t, 40.3, bound.Max.Lat())
	assert.True(t, bound.Contains(LatLng{39.5, -83}.Point()))
}
