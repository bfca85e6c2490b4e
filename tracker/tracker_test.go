package tracker

import (
	"testing"

	"github.com/GrainArc/GeoEdit/jsonvalue"
	"github.com/GrainArc/GeoEdit/mapkit"
	"github.com/GrainArc/GeoEdit/models"
	"github.com/GrainArc/GeoEdit/store"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/stretchr/testify/assert"
)

func loaded(t *testing.T) (*store.Store, *Tracker) {
	t.Helper()
	s := models.NewSessionStore(nil)
	f := geojson.NewFeature(orb.Point{1, 2})
	f.ID = "F1"
	f.Properties = geojson.Properties{"name": "Main St", "addr": map[string]any{"no": 3.0}}
	store.Set(s, models.BaseFeatureKey, f)
	store.Set(s, models.StatusKey, models.StatusEdit)
	return s, New(s)
}

func setProp(s *store.Store, path string, v jsonvalue.Value) {
	store.Update(s, models.PropertyChangesKey, func(c models.PropertyChanges) models.PropertyChanges {
		return c.Set(path, v)
	})
}

func TestEmptySessionHasNoChanges(t *testing.T) {
	s := models.NewSessionStore(nil)
	assert.False(t, New(s).HasChanges())
}

func TestPropertyChangeAndRevert(t *testing.T) {
	s, tr := loaded(t)
	assert.False(t, tr.HasChanges())

	setProp(s, "name", jsonvalue.StringValue("Main Street"))
	assert.True(t, tr.IsDirty("name"))
	assert.True(t, tr.HasChanges())
	assert.Equal(t, []string{"name"}, tr.DirtyPaths())

	setProp(s, "name", jsonvalue.StringValue("Main St"))
	assert.False(t, tr.IsDirty("name"))
	assert.False(t, tr.HasChanges())
	assert.Empty(t, tr.DirtyPaths())
}

func TestNestedPath(t *testing.T) {
	s, tr := loaded(t)
	setProp(s, "addr.no", jsonvalue.NumberValue(3))
	assert.False(t, tr.IsDirty("addr.no"))
	setProp(s, "addr.no", jsonvalue.NumberValue(4))
	assert.True(t, tr.IsDirty("addr.no"))
	assert.False(t, tr.IsDirty("addr"))
}

func TestNullOnMissingPropertyIsClean(t *testing.T) {
	s, tr := loaded(t)
	setProp(s, "comment", jsonvalue.NullValue())
	assert.False(t, tr.IsDirty("comment"))
	setProp(s, "comment", jsonvalue.StringValue("x"))
	assert.True(t, tr.IsDirty("comment"))
}

func TestGeometryChangeCounts(t *testing.T) {
	s, tr := loaded(t)
	store.Set(s, models.GeometryChangeKey, mapkit.NewGeometry(orb.Point{5, 5}))
	assert.True(t, tr.HasChanges())
}

func TestAddModeAlwaysHasChanges(t *testing.T) {
	s := models.NewSessionStore(nil)
	store.Set(s, models.ModeKey, models.ModeAdd)
	assert.True(t, New(s).HasChanges())
}

func TestDirtyRequiresBase(t *testing.T) {
	s := models.NewSessionStore(nil)
	setProp(s, "name", jsonvalue.StringValue("x"))
	assert.False(t, New(s).IsDirty("name"))
}
