package airports

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aerowatch/uas-sighting-etl/internal/config"
	"github.com/aerowatch/uas-sighting-etl/internal/domain"
)

func usBounds() config.Bounds {
	return config.Bounds{LonMin: -125, LonMax: -65, LatMin: 25, LatMax: 50}
}

func TestLoad(t *testing.T) {
	d, err := Load()
	require.NoError(t, err)

	lax, ok := d.LookupIATA("LAX")
	require.True(t, ok)
	assert.Equal(t, "KLAX", lax.ICAO)
	assert.Equal(t, "CA", lax.State)
	assert.InDelta(t, 33.9416, lax.Lat, 0.001)
	assert.InDelta(t, -118.4085, lax.Lon, 0.001)
}

func TestDirectory_LookupIATA(t *testing.T) {
	d, err := Load()
	require.NoError(t, err)

	tests := []struct {
		code string
		ok   bool
	}{
		{"DEN", true},
		{"den", true},
		{" JFK ", true},
		{"XQZ", false},
		{"FBI", false},
		{"UAS", false},
		{"MDT", false}, // time zone outranks Harrisburg
		{"", false},
	}
	for _, tt := range tests {
		_, ok := d.LookupIATA(tt.code)
		assert.Equal(t, tt.ok, ok, "code %q", tt.code)
	}
}

func TestDirectory_ResolveICAO(t *testing.T) {
	d, err := Load()
	require.NoError(t, err)

	e, ok := d.ResolveICAO("KLAX")
	require.True(t, ok)
	assert.Equal(t, "LAX", e.IATA)

	e, ok = d.ResolveICAO("PANC")
	require.True(t, ok)
	assert.Equal(t, "ANC", e.IATA)

	_, ok = d.ResolveICAO("KING")
	assert.False(t, ok)

	_, ok = d.ResolveICAO("KMDT")
	assert.False(t, ok)
}

func TestDirectory_Nearest(t *testing.T) {
	d, err := Load()
	require.NoError(t, err)

	// Downtown Denver resolves to DEN.
	e, ok := d.Nearest(domain.Coordinate{Lon: -104.9903, Lat: 39.7392}, usBounds())
	require.True(t, ok)
	assert.Equal(t, "DEN", e.IATA)

	// Anchorage is outside the bounding box; the nearest in-bounds airport
	// is a lower-48 one, never ANC itself.
	e, ok = d.Nearest(domain.Coordinate{Lon: -149.9003, Lat: 61.2181}, usBounds())
	require.True(t, ok)
	assert.NotEqual(t, "ANC", e.IATA)
	assert.True(t, usBounds().Contains(e.Lon, e.Lat))
}

func TestDirectory_Nearest_NoneInBounds(t *testing.T) {
	d, err := Load()
	require.NoError(t, err)

	empty := config.Bounds{LonMin: 0, LonMax: 1, LatMin: 0, LatMax: 1}
	_, ok := d.Nearest(domain.Coordinate{Lon: 0.5, Lat: 0.5}, empty)
	assert.False(t, ok)
}

func TestBlacklisted(t *testing.T) {
	assert.True(t, Blacklisted("FAA"))
	assert.True(t, Blacklisted("pst"))
	assert.False(t, Blacklisted("LAX"))
}
