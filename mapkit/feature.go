// Package mapkit is the slice of a web-map library the editing engine
// talks to: features with revisioned geometries, vector sources, layers,
// interactions and controls. MemorySource and MemoryMap are headless
// implementations for tests and server-side hosts.
package mapkit

import (
	"sync"

	"github.com/paulmach/orb"
)

// Geometry wraps an orb geometry with a revision counter that increases on
// every change, so observers can detect in-place edits without comparing
// coordinates.
type Geometry struct {
	mu  sync.RWMutex
	g   orb.Geometry
	rev uint64
}

func NewGeometry(g orb.Geometry) *Geometry {
	return &Geometry{g: g, rev: 1}
}

// Get returns the current geometry. Callers must not mutate it; use Set.
func (g *Geometry) Get() orb.Geometry {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.g
}

// Set replaces the geometry and bumps the revision.
func (g *Geometry) Set(ng orb.Geometry) {
	g.mu.Lock()
	g.g = ng
	g.rev++
	g.mu.Unlock()
}

// Revision returns the change counter.
func (g *Geometry) Revision() uint64 {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.rev
}

// Type returns the GeoJSON type name, or "" for an empty geometry.
func (g *Geometry) Type() string {
	cur := g.Get()
	if cur == nil {
		return ""
	}
	return cur.GeoJSONType()
}

// Feature is a map feature. Collection names the REST collection it was
// loaded from; ID is empty for features that exist only on the client.
type Feature struct {
	ID         string
	Collection string
	Geometry   *Geometry
	Properties map[string]any
}

func NewFeature(collection, id string, g orb.Geometry, props map[string]any) *Feature {
	if props == nil {
		props = map[string]any{}
	}
	return &Feature{ID: id, Collection: collection, Geometry: NewGeometry(g), Properties: props}
}
