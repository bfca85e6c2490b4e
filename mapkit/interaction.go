package mapkit

import (
	"errors"
	"fmt"

	"github.com/paulmach/orb"
)

var (
	ErrInactive     = errors.New("interaction is not active")
	ErrGeometryType = errors.New("geometry type does not match the draw interaction")
	ErrNotEditable  = errors.New("feature is not in the modify source")
)

type EventType string

const (
	// EventDrawEnd carries a finished sketch in Geometry.
	EventDrawEnd EventType = "drawend"
	// EventClick carries the feature under the pointer.
	EventClick EventType = "click"
	// EventModifyEnd carries the edited Feature and its new Geometry.
	EventModifyEnd EventType = "modifyend"
)

// Event is a map browser event handed to interactions.
type Event struct {
	Type     EventType
	Feature  *Feature
	Geometry orb.Geometry
}

// Interaction is a map tool with an event-handling hook. HandleEvent
// returns false when the event was consumed and must not propagate.
type Interaction interface {
	Name() string
	Active() bool
	SetActive(active bool)
	HandleEvent(ev Event) bool
}

type base struct {
	name   string
	active bool
}

func (b *base) Name() string          { return b.name }
func (b *base) Active() bool          { return b.active }
func (b *base) SetActive(active bool) { b.active = active }

// Draw turns a finished sketch into a feature of one geometry type and
// adds it to its target source.
type Draw struct {
	base
	geomType string
	target   VectorSource
	onEnd    []func(*Feature)
}

// NewDraw creates a draw interaction for a GeoJSON geometry type name.
func NewDraw(geomType string, target VectorSource) *Draw {
	return &Draw{base: base{name: "draw-" + geomType}, geomType: geomType, target: target}
}

func (d *Draw) GeometryType() string { return d.geomType }

// OnDrawEnd registers a drawend listener.
func (d *Draw) OnDrawEnd(fn func(*Feature)) { d.onEnd = append(d.onEnd, fn) }

// Finish completes a sketch.
func (d *Draw) Finish(g orb.Geometry) (*Feature, error) {
	if !d.active {
		return nil, fmt.Errorf("%s: %w", d.name, ErrInactive)
	}
	if g == nil || g.GeoJSONType() != d.geomType {
		return nil, fmt.Errorf("%s: %w", d.name, ErrGeometryType)
	}
	f := NewFeature("", "", g, nil)
	d.target.AddFeature(f)
	for _, fn := range d.onEnd {
		fn(f)
	}
	return f, nil
}

func (d *Draw) HandleEvent(ev Event) bool {
	if ev.Type != EventDrawEnd || !d.active {
		return true
	}
	if _, err := d.Finish(ev.Geometry); err != nil {
		return true
	}
	return false
}

// Select picks a feature of its source on click.
type Select struct {
	base
	source   VectorSource
	onSelect []func(*Feature)
}

func NewSelect(source VectorSource) *Select {
	return &Select{base: base{name: "select"}, source: source}
}

func (s *Select) OnSelect(fn func(*Feature)) { s.onSelect = append(s.onSelect, fn) }

// Pick selects f.
func (s *Select) Pick(f *Feature) error {
	if !s.active {
		return fmt.Errorf("%s: %w", s.name, ErrInactive)
	}
	for _, fn := range s.onSelect {
		fn(f)
	}
	return nil
}

func (s *Select) HandleEvent(ev Event) bool {
	if ev.Type != EventClick || ev.Feature == nil || !s.active {
		return true
	}
	return s.Pick(ev.Feature) != nil
}

// Modify edits the geometry of features in its source.
type Modify struct {
	base
	source   VectorSource
	onModify []func(*Feature)
}

func NewModify(source VectorSource) *Modify {
	return &Modify{base: base{name: "modify"}, source: source}
}

func (m *Modify) OnModifyEnd(fn func(*Feature)) { m.onModify = append(m.onModify, fn) }

// Apply replaces the geometry of f, bumping its revision.
func (m *Modify) Apply(f *Feature, g orb.Geometry) error {
	if !m.active {
		return fmt.Errorf("%s: %w", m.name, ErrInactive)
	}
	found := false
	for _, cur := range m.source.Features() {
		if cur == f {
			found = true
			break
		}
	}
	if !found {
		return ErrNotEditable
	}
	f.Geometry.Set(g)
	for _, fn := range m.onModify {
		fn(f)
	}
	return nil
}

func (m *Modify) HandleEvent(ev Event) bool {
	if ev.Type != EventModifyEnd || ev.Feature == nil || !m.active {
		return true
	}
	return m.Apply(ev.Feature, ev.Geometry) != nil
}
