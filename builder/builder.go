// Package builder assembles the wire representation of the feature being
// edited. It is pure: no network, no store writes, safe to call as often
// as the UI likes.
package builder

import (
	"fmt"

	"github.com/GrainArc/GeoEdit/Transformer"
	"github.com/GrainArc/GeoEdit/jsonvalue"
	"github.com/GrainArc/GeoEdit/mapkit"
	"github.com/GrainArc/GeoEdit/models"
	"github.com/GrainArc/GeoEdit/store"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// Session is the slice of an edit session a build depends on.
type Session struct {
	Base            *geojson.Feature
	GeometryChange  *mapkit.Geometry
	PropertyChanges models.PropertyChanges
}

// Options describe the projections on both sides of the wire.
type Options struct {
	// MapProjection is the CRS the edited geometry is held in.
	MapProjection string
	// StorageCRS is the collection's CRS.
	StorageCRS string
	// Precision is the number of decimals kept; negative keeps all.
	Precision int
}

// FromStore snapshots the fields Build needs.
func FromStore(s *store.Store) Session {
	return Session{
		Base:            store.Get(s, models.BaseFeatureKey),
		GeometryChange:  store.Get(s, models.GeometryChangeKey),
		PropertyChanges: store.Get(s, models.PropertyChangesKey),
	}
}

// Build returns the feature to send: the base feature with the pending
// geometry and property changes applied. A new feature carries no id.
func Build(sess Session, opts Options) (*geojson.Feature, error) {
	geom, err := buildGeometry(sess, opts)
	if err != nil {
		return nil, err
	}
	f := geojson.NewFeature(geom)
	if sess.Base != nil && sess.Base.ID != nil {
		f.ID = sess.Base.ID
	}
	f.Properties = BuildProperties(sess.Base, sess.PropertyChanges)
	return f, nil
}

func buildGeometry(sess Session, opts Options) (orb.Geometry, error) {
	if sess.GeometryChange == nil || sess.GeometryChange.Get() == nil {
		if sess.Base == nil {
			return nil, nil
		}
		return sess.Base.Geometry, nil
	}
	g, err := Transformer.Reproject(sess.GeometryChange.Get(), opts.MapProjection, opts.StorageCRS)
	if err != nil {
		return nil, fmt.Errorf("build geometry: %w", err)
	}
	return Transformer.Round(g, opts.Precision), nil
}

// BuildProperties copies the base properties and merges every change at
// its typed path. Sibling keys along a path are kept.
func BuildProperties(base *geojson.Feature, changes models.PropertyChanges) geojson.Properties {
	props := jsonvalue.ObjectValue(nil)
	if base != nil && base.Properties != nil {
		props = jsonvalue.FromAny(map[string]any(base.Properties))
	}
	for _, path := range changes.Paths() {
		props = jsonvalue.Set(props, jsonvalue.ParsePath(path), changes[path])
	}
	return geojson.Properties(props.AnyMap())
}
