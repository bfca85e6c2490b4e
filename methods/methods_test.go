package methods

import (
	"testing"

	"github.com/GrainArc/GeoEdit/models"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

func TestCollectionSlug(t *testing.T) {
	assert.Equal(t, "dl", CollectionSlug("道路"))
	assert.Equal(t, "roadsdl", CollectionSlug("Roads 道路"))
	assert.Equal(t, "dl2023", CollectionSlug("2023道路"))
	assert.Equal(t, "collection", CollectionSlug("!!"))
}

func TestFeatureRowRoundTrip(t *testing.T) {
	f := geojson.NewFeature(orb.LineString{{1, 2}, {3, 4}})
	f.ID = "ignored"
	f.Properties["name"] = "Main St"
	f.Properties["address"] = map[string]any{"street": "Main"}

	row, err := FeatureToRow("roads", "F1", f, 3)
	require.NoError(t, err)
	assert.Equal(t, int64(3), row.Version)
	assert.NotEmpty(t, row.UpdatedAt)

	back, err := RowToFeature(row)
	require.NoError(t, err)
	assert.Equal(t, "F1", back.ID)
	assert.Equal(t, orb.LineString{{1, 2}, {3, 4}}, back.Geometry)
	assert.Equal(t, "Main", back.Properties["address"].(map[string]any)["street"])

	_, err = FeatureToRow("roads", "F2", geojson.NewFeature(nil), 1)
	assert.ErrorIs(t, err, ErrNoGeometry)
}

func TestFeatureETag(t *testing.T) {
	f := geojson.NewFeature(orb.Point{1, 2})
	a, err := FeatureToRow("roads", "F1", f, 1)
	require.NoError(t, err)
	b, err := FeatureToRow("roads", "F1", f, 2)
	require.NoError(t, err)

	etag := FeatureETag(a)
	assert.Equal(t, etag, FeatureETag(a))
	assert.NotEqual(t, etag, FeatureETag(b))
	assert.Equal(t, byte('"'), etag[0])

	assert.True(t, MatchETag(etag, etag))
	assert.True(t, MatchETag(`"x", `+etag, etag))
	assert.True(t, MatchETag("*", etag))
	assert.False(t, MatchETag("W/"+etag, etag))
	assert.False(t, MatchETag(FeatureETag(b), etag))
}

func TestBuildSchema(t *testing.T) {
	data, err := BuildSchema("Roads", []models.FieldDef{
		{Name: "name", Title: "Name"},
		{Name: "lanes", Type: "integer"},
		{Name: "address.street"},
		{Name: "address.geo.lat", Type: "number"},
	})
	require.NoError(t, err)

	assert.Equal(t, "Roads", gjson.GetBytes(data, "title").String())
	assert.Equal(t, "string", gjson.GetBytes(data, "properties.name.type").String())
	assert.Equal(t, "Name", gjson.GetBytes(data, "properties.name.title").String())
	assert.Equal(t, "integer", gjson.GetBytes(data, "properties.lanes.type").String())
	assert.Equal(t, "id", gjson.GetBytes(data, "properties.id.x-ogc-role").String())
	assert.True(t, gjson.GetBytes(data, "properties.id.readOnly").Bool())
	assert.Equal(t, "primary-geometry", gjson.GetBytes(data, "properties.geometry.x-ogc-role").String())
	assert.Equal(t, "#/$defs/address", gjson.GetBytes(data, `properties.address.\$ref`).String())
	assert.Equal(t, "#/$defs/address_geo", gjson.GetBytes(data, `\$defs.address.properties.geo.\$ref`).String())
	assert.Equal(t, "number", gjson.GetBytes(data, `\$defs.address_geo.properties.lat.type`).String())
}

func TestBuildSchemaRejects(t *testing.T) {
	for name, fields := range map[string][]models.FieldDef{
		"reserved":  {{Name: "id"}},
		"type":      {{Name: "name", Type: "date"}},
		"twice":     {{Name: "name"}, {Name: "name"}},
		"clash":     {{Name: "address"}, {Name: "address.street"}},
		"clash2":    {{Name: "address.street"}, {Name: "address"}},
		"empty":     {{Name: "address."}},
		"emptyhead": {{Name: ".street"}},
	} {
		_, err := BuildSchema("x", fields)
		assert.Error(t, err, name)
	}
}
