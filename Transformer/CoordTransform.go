package Transformer

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/project"
)

// Canonical CRS names understood by Reproject.
const (
	CRS84    = "OGC:CRS84"
	EPSG4326 = "EPSG:4326"
	EPSG3857 = "EPSG:3857"
)

var ErrUnsupportedCRS = errors.New("unsupported CRS")

// NormalizeCRS maps the spellings used by OGC APIs and web maps onto the
// canonical names. Unknown values are returned upper-cased.
func NormalizeCRS(crs string) string {
	c := strings.TrimSpace(crs)
	if c == "" {
		return CRS84
	}
	lc := strings.ToLower(c)
	switch {
	case strings.HasSuffix(lc, "/ogc/1.3/crs84"), lc == "crs84", lc == "ogc:crs84", lc == "urn:ogc:def:crs:ogc:1.3:crs84":
		return CRS84
	case strings.HasSuffix(lc, "/epsg/0/4326"), lc == "epsg:4326", lc == "urn:ogc:def:crs:epsg::4326":
		return EPSG4326
	case strings.HasSuffix(lc, "/epsg/0/3857"), lc == "epsg:3857", lc == "epsg:900913", lc == "epsg:102100", lc == "urn:ogc:def:crs:epsg::3857":
		return EPSG3857
	}
	return strings.ToUpper(c)
}

// geographic CRSs are all handled in longitude/latitude order, the way
// GeoJSON stores them.
func geographic(crs string) bool {
	return crs == CRS84 || crs == EPSG4326
}

// Reproject returns a copy of g transformed from one CRS to another. The
// input is never modified.
func Reproject(g orb.Geometry, from, to string) (orb.Geometry, error) {
	if g == nil {
		return nil, nil
	}
	src, dst := NormalizeCRS(from), NormalizeCRS(to)
	out := orb.Clone(g)
	switch {
	case src == dst, geographic(src) && geographic(dst):
		return out, nil
	case geographic(src) && dst == EPSG3857:
		return project.Geometry(out, project.WGS84.ToMercator), nil
	case src == EPSG3857 && geographic(dst):
		return project.Geometry(out, project.Mercator.ToWGS84), nil
	}
	return nil, fmt.Errorf("%s -> %s: %w", src, dst, ErrUnsupportedCRS)
}

const maxDecimals = 15

// Round returns a copy of g with coordinates rounded to decimals places.
// A negative value, or one beyond what float64 can hold, leaves the
// coordinates untouched.
func Round(g orb.Geometry, decimals int) orb.Geometry {
	if g == nil || decimals < 0 || decimals > maxDecimals {
		return g
	}
	factor := int(math.Pow10(decimals))
	return orb.Round(orb.Clone(g), factor)
}

// DefaultPrecision returns the coordinate precision suited to a CRS:
// about 1 cm in both metric and geographic coordinates.
func DefaultPrecision(crs string) int {
	if geographic(NormalizeCRS(crs)) {
		return 7
	}
	return 2
}
