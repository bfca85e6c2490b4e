package models

// models/edit_session.go

import (
	"fmt"
	"log/slog"
	"sort"

	"github.com/GrainArc/GeoEdit/jsonvalue"
	"github.com/GrainArc/GeoEdit/mapkit"
	"github.com/GrainArc/GeoEdit/store"
	"github.com/paulmach/orb/geojson"
)

// Mode is the armed map tool family.
type Mode string

const (
	ModeOff  Mode = "OFF"
	ModeEdit Mode = "EDIT"
	ModeAdd  Mode = "ADD"
)

// GeometryType is the draw type used in ADD mode; values are GeoJSON type
// names.
type GeometryType string

const (
	Point           GeometryType = "Point"
	LineString      GeometryType = "LineString"
	Polygon         GeometryType = "Polygon"
	MultiPoint      GeometryType = "MultiPoint"
	MultiLineString GeometryType = "MultiLineString"
	MultiPolygon    GeometryType = "MultiPolygon"
)

// GeometryTypes lists the drawable types in toolbar order.
var GeometryTypes = []GeometryType{Point, LineString, Polygon, MultiPoint, MultiLineString, MultiPolygon}

func (t GeometryType) Valid() bool {
	for _, g := range GeometryTypes {
		if g == t {
			return true
		}
	}
	return false
}

// Status is the lifecycle of the current edit.
type Status string

const (
	StatusIdle    Status = "IDLE"
	StatusCreate  Status = "CREATE"
	StatusEdit    Status = "EDIT"
	StatusSync    Status = "SYNC"
	StatusSuccess Status = "SUCCESS"
	StatusError   Status = "ERROR"
)

// Overlay is what the edit panel shows on top of its form.
type Overlay string

const (
	OverlayNone    Overlay = ""
	OverlayLoading Overlay = "loading"
	OverlayError   Overlay = "error"
)

// PropertyChanges maps a dotted property path to its pending value.
type PropertyChanges map[string]jsonvalue.Value

// Set returns a copy of c with path set to v.
func (c PropertyChanges) Set(path string, v jsonvalue.Value) PropertyChanges {
	out := make(PropertyChanges, len(c)+1)
	for k, e := range c {
		out[k] = e
	}
	out[jsonvalue.ParsePath(path).String()] = v
	return out
}

// Paths returns the changed paths in sorted order.
func (c PropertyChanges) Paths() []string {
	paths := make([]string, 0, len(c))
	for p := range c {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// Edit session keys. Everything an edit touches lives in one Store built
// by NewSessionStore.
var (
	ModeKey         = store.NewKey[Mode]("mode")
	GeometryTypeKey = store.NewKey[GeometryType]("geometryType")
	StatusKey       = store.NewKey[Status]("status")
	CollectionsKey  = store.NewKeyFunc[map[string]*CollectionDescriptor]("collections",
		func(m map[string]*CollectionDescriptor) any {
			ids := make([]string, 0, len(m))
			for id := range m {
				ids = append(ids, id)
			}
			sort.Strings(ids)
			return ids
		})
	ActiveCollectionKey = store.NewKey[string]("activeCollection")
	// BaseFeatureKey holds the server copy, in the collection's storage CRS.
	BaseFeatureKey = store.NewKey[*geojson.Feature]("baseFeature")
	// GeometryChangeKey holds the edited geometry in the map projection. It
	// is compared by revision since the geometry is edited in place.
	GeometryChangeKey = store.NewKeyFunc[*mapkit.Geometry]("geometryChange",
		func(g *mapkit.Geometry) any {
			if g == nil {
				return nil
			}
			return fmt.Sprintf("%p:%d", g, g.Revision())
		})
	PropertyChangesKey = store.NewKeyFunc[PropertyChanges]("propertyChanges",
		func(c PropertyChanges) any {
			m := make(map[string]any, len(c))
			for k, v := range c {
				m[k] = v.Any()
			}
			return m
		})
	ETagKey      = store.NewKey[string]("etag")
	LastErrorKey = store.NewKey[string]("lastError")
	OverlayKey   = store.NewKey[Overlay]("overlay")
	// GenerationKey identifies the current edit; it is bumped whenever an
	// edit starts or ends so late network responses can be recognised.
	GenerationKey = store.NewKey[uint64]("generation")
)

// SessionKeys returns every edit session key.
func SessionKeys() []store.AnyKey {
	return []store.AnyKey{
		ModeKey, GeometryTypeKey, StatusKey, CollectionsKey, ActiveCollectionKey,
		BaseFeatureKey, GeometryChangeKey, PropertyChangesKey, ETagKey,
		LastErrorKey, OverlayKey, GenerationKey,
	}
}

// NewSessionStore builds an empty edit session: mode OFF, draw type
// Point, status IDLE.
func NewSessionStore(logger *slog.Logger) *store.Store {
	s := store.New(logger, SessionKeys()...)
	store.Set(s, ModeKey, ModeOff)
	store.Set(s, GeometryTypeKey, Point)
	store.Set(s, StatusKey, StatusIdle)
	return s
}

// ClearEdit resets the fields of a single edit. Mode, draw type and the
// collection catalogue survive.
func ClearEdit(s *store.Store) {
	store.Clear(s, ActiveCollectionKey)
	store.Clear(s, BaseFeatureKey)
	store.Clear(s, GeometryChangeKey)
	store.Clear(s, PropertyChangesKey)
	store.Clear(s, ETagKey)
	store.Clear(s, LastErrorKey)
	store.Update(s, GenerationKey, func(g uint64) uint64 { return g + 1 })
}
