package mapkit

// StyleFunc styles a feature for rendering. The engine only passes it
// through to its layers.
type StyleFunc func(f *Feature) any

// Layer is a vector layer.
type Layer struct {
	Name   string
	Source VectorSource
	Style  StyleFunc
}

// Control is an on-map control; Render refreshes its presentation.
type Control interface {
	Name() string
	Render()
}

// Map is the host map the editor registers itself with.
type Map interface {
	AddLayer(l *Layer)
	AddInteraction(i Interaction)
	AddControl(c Control)
	// Projection is the map's working CRS, e.g. "EPSG:3857".
	Projection() string
}

// MemoryMap is a headless Map. Dispatch routes events to the active
// interactions, most recently added first, until one consumes it.
type MemoryMap struct {
	projection   string
	Layers       []*Layer
	Interactions []Interaction
	Controls     []Control
}

func NewMemoryMap(projection string) *MemoryMap {
	return &MemoryMap{projection: projection}
}

func (m *MemoryMap) AddLayer(l *Layer)            { m.Layers = append(m.Layers, l) }
func (m *MemoryMap) AddInteraction(i Interaction) { m.Interactions = append(m.Interactions, i) }
func (m *MemoryMap) AddControl(c Control)         { m.Controls = append(m.Controls, c) }
func (m *MemoryMap) Projection() string           { return m.projection }

func (m *MemoryMap) Dispatch(ev Event) {
	for i := len(m.Interactions) - 1; i >= 0; i-- {
		in := m.Interactions[i]
		if !in.Active() {
			continue
		}
		if !in.HandleEvent(ev) {
			return
		}
	}
}

// Layer returns the layer registered under name.
func (m *MemoryMap) Layer(name string) *Layer {
	for _, l := range m.Layers {
		if l.Name == name {
			return l
		}
	}
	return nil
}
