package Transformer

import (
	"errors"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeCRS(t *testing.T) {
	cases := map[string]string{
		"":                                    CRS84,
		"http://www.opengis.net/def/crs/OGC/1.3/CRS84": CRS84,
		"http://www.opengis.net/def/crs/EPSG/0/4326":   EPSG4326,
		"EPSG:3857":                                    EPSG3857,
		"epsg:900913":                                  EPSG3857,
		"EPSG:4523":                                    "EPSG:4523",
	}
	for in, want := range cases {
		assert.Equal(t, want, NormalizeCRS(in), in)
	}
}

func TestReprojectRoundTrip(t *testing.T) {
	p := orb.Point{13.4, 52.5}
	merc, err := Reproject(p, CRS84, EPSG3857)
	require.NoError(t, err)
	mp := merc.(orb.Point)
	assert.InDelta(t, 1491681.0, mp[0], 5)
	assert.InDelta(t, 6891041.0, mp[1], 5)

	back, err := Reproject(merc, EPSG3857, "http://www.opengis.net/def/crs/EPSG/0/4326")
	require.NoError(t, err)
	bp := back.(orb.Point)
	assert.InDelta(t, 13.4, bp[0], 1e-9)
	assert.InDelta(t, 52.5, bp[1], 1e-9)
}

func TestReprojectDoesNotMutateInput(t *testing.T) {
	ls := orb.LineString{{1, 1}, {2, 2}}
	_, err := Reproject(ls, EPSG4326, EPSG3857)
	require.NoError(t, err)
	assert.Equal(t, orb.LineString{{1, 1}, {2, 2}}, ls)
}

func TestReprojectUnsupported(t *testing.T) {
	_, err := Reproject(orb.Point{1, 2}, "EPSG:4523", EPSG3857)
	assert.True(t, errors.Is(err, ErrUnsupportedCRS))
}

func TestRound(t *testing.T) {
	g := Round(orb.Point{1.123456789, 2.987654321}, 3)
	assert.Equal(t, orb.Point{1.123, 2.988}, g)
	assert.Nil(t, Round(nil, 3))
	p := orb.Point{1.123456789, 2.987654321}
	assert.Equal(t, p, Round(p, 19))
	assert.Equal(t, p, Round(p, 400))
}
