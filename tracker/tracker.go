// Package tracker answers whether an edit session has anything worth
// saving. Nothing is cached: every answer is recomputed from the base
// feature, so reverting a property makes it clean again.
package tracker

import (
	"github.com/GrainArc/GeoEdit/jsonvalue"
	"github.com/GrainArc/GeoEdit/models"
	"github.com/GrainArc/GeoEdit/store"
	"github.com/paulmach/orb/geojson"
)

// Tracker reads the session store.
type Tracker struct {
	s *store.Store
}

func New(s *store.Store) *Tracker {
	return &Tracker{s: s}
}

// IsDirty reports whether path holds a pending value that differs from
// the base feature.
func (t *Tracker) IsDirty(path string) bool {
	return IsDirty(store.Get(t.s, models.BaseFeatureKey), store.Get(t.s, models.PropertyChangesKey), path)
}

// HasChanges reports whether a save is warranted: always for a new
// feature, otherwise when the geometry or any property differs.
func (t *Tracker) HasChanges() bool {
	return HasChanges(
		store.Get(t.s, models.ModeKey),
		store.Get(t.s, models.BaseFeatureKey),
		store.Has(t.s, models.GeometryChangeKey),
		store.Get(t.s, models.PropertyChangesKey),
	)
}

// DirtyPaths lists the dirty property paths in sorted order.
func (t *Tracker) DirtyPaths() []string {
	base := store.Get(t.s, models.BaseFeatureKey)
	changes := store.Get(t.s, models.PropertyChangesKey)
	var out []string
	for _, p := range changes.Paths() {
		if IsDirty(base, changes, p) {
			out = append(out, p)
		}
	}
	return out
}

func IsDirty(base *geojson.Feature, changes models.PropertyChanges, path string) bool {
	if base == nil {
		return false
	}
	key := jsonvalue.ParsePath(path)
	v, ok := changes[key.String()]
	if !ok {
		return false
	}
	return !jsonvalue.Equal(v, BaseValue(base, key))
}

func HasChanges(mode models.Mode, base *geojson.Feature, geometryChanged bool, changes models.PropertyChanges) bool {
	if mode == models.ModeAdd {
		return true
	}
	if base == nil {
		return false
	}
	if geometryChanged {
		return true
	}
	for p := range changes {
		if IsDirty(base, changes, p) {
			return true
		}
	}
	return false
}

// BaseValue returns the base feature's value at path; missing values are
// null.
func BaseValue(base *geojson.Feature, path jsonvalue.Path) jsonvalue.Value {
	if base == nil || base.Properties == nil {
		return jsonvalue.NullValue()
	}
	v, _ := jsonvalue.Get(jsonvalue.FromAny(map[string]any(base.Properties)), path)
	return v
}
