package builder

import (
	"encoding/json"
	"testing"

	"github.com/GrainArc/GeoEdit/Transformer"
	"github.com/GrainArc/GeoEdit/jsonvalue"
	"github.com/GrainArc/GeoEdit/mapkit"
	"github.com/GrainArc/GeoEdit/models"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var mercator = Options{MapProjection: Transformer.EPSG3857, StorageCRS: Transformer.CRS84, Precision: 7}

func baseFeature() *geojson.Feature {
	f := geojson.NewFeature(orb.Point{13.4, 52.5})
	f.ID = "F1"
	f.Properties = geojson.Properties{
		"name": "Main St",
		"a":    map[string]any{"b": 1.0, "keep": "me"},
	}
	return f
}

func TestBuildMergesNestedChange(t *testing.T) {
	sess := Session{
		Base:            baseFeature(),
		PropertyChanges: models.PropertyChanges{"a.b": jsonvalue.NumberValue(5)},
	}
	f, err := Build(sess, mercator)
	require.NoError(t, err)

	a := f.Properties["a"].(map[string]any)
	assert.Equal(t, 5.0, a["b"])
	assert.Equal(t, "me", a["keep"])
	assert.Equal(t, "Main St", f.Properties["name"])
	assert.Equal(t, "F1", f.ID)
	assert.Equal(t, orb.Point{13.4, 52.5}, f.Geometry)

	// the base feature is not touched
	assert.Equal(t, 1.0, sess.Base.Properties["a"].(map[string]any)["b"])
}

func TestBuildCreatesMissingObjects(t *testing.T) {
	f, err := Build(Session{
		PropertyChanges: models.PropertyChanges{"a.b.c": jsonvalue.StringValue("v")},
	}, mercator)
	require.NoError(t, err)
	data, err := json.Marshal(f.Properties)
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":{"b":{"c":"v"}}}`, string(data))
	assert.Nil(t, f.Geometry)
}

func TestBuildReprojectsGeometryChange(t *testing.T) {
	merc, err := Transformer.Reproject(orb.Point{10, 50}, Transformer.CRS84, Transformer.EPSG3857)
	require.NoError(t, err)

	f, err := Build(Session{
		Base:           baseFeature(),
		GeometryChange: mapkit.NewGeometry(merc),
	}, mercator)
	require.NoError(t, err)
	p := f.Geometry.(orb.Point)
	assert.InDelta(t, 10.0, p[0], 1e-7)
	assert.InDelta(t, 50.0, p[1], 1e-7)
}

func TestBuildNewFeatureHasNoID(t *testing.T) {
	f, err := Build(Session{GeometryChange: mapkit.NewGeometry(orb.Point{0, 0})}, mercator)
	require.NoError(t, err)
	data, err := json.Marshal(f)
	require.NoError(t, err)

	var body map[string]any
	require.NoError(t, json.Unmarshal(data, &body))
	_, hasID := body["id"]
	assert.False(t, hasID)
	assert.Equal(t, "Feature", body["type"])
}

func TestBuildUnsupportedCRS(t *testing.T) {
	_, err := Build(Session{GeometryChange: mapkit.NewGeometry(orb.Point{0, 0})},
		Options{MapProjection: Transformer.EPSG3857, StorageCRS: "EPSG:4523", Precision: 2})
	assert.ErrorIs(t, err, Transformer.ErrUnsupportedCRS)
}
