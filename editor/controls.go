package editor

import (
	"sync"

	"github.com/GrainArc/GeoEdit/jsonvalue"
	"github.com/GrainArc/GeoEdit/models"
	"github.com/GrainArc/GeoEdit/status"
	"github.com/GrainArc/GeoEdit/store"
	"github.com/GrainArc/GeoEdit/tracker"
)

// ToolbarState is what the toolbar shows.
type ToolbarState struct {
	Mode          models.Mode
	GeometryType  models.GeometryType
	GeometryTypes []models.GeometryType
	AddCollection string
	Collections   []string
	// Disabled greys out every button while a request is on the wire.
	Disabled  bool
	CanSwitch bool
}

// Toolbar is the on-map control with the add and edit buttons. It keeps
// its state in step with the session; a DOM layer renders it through
// OnChange.
type Toolbar struct {
	e *Editor

	mu        sync.RWMutex
	state     ToolbarState
	listeners []func(ToolbarState)
}

func newToolbar(e *Editor) *Toolbar {
	t := &Toolbar{e: e}
	e.s.On(store.ObserverFunc(func(string) { t.Render() }), true,
		models.ModeKey, models.GeometryTypeKey, models.StatusKey,
		models.ActiveCollectionKey, models.CollectionsKey)
	return t
}

func (t *Toolbar) Name() string { return "geoedit-toolbar" }

func (t *Toolbar) Render() {
	st := ToolbarState{
		Mode:          t.e.mode.Mode(),
		GeometryType:  store.Get(t.e.s, models.GeometryTypeKey),
		GeometryTypes: models.GeometryTypes,
		AddCollection: t.e.addCollection,
		Collections:   t.e.collectionIDs(),
		Disabled:      t.e.mode.Disabled(),
		CanSwitch:     t.e.mode.CanSwitch(),
	}
	t.mu.Lock()
	t.state = st
	listeners := t.listeners
	t.mu.Unlock()
	for _, fn := range listeners {
		fn(st)
	}
}

func (t *Toolbar) State() ToolbarState {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.state
}

// OnChange registers fn to be called after every render.
func (t *Toolbar) OnChange(fn func(ToolbarState)) {
	t.mu.Lock()
	t.listeners = append(t.listeners, fn)
	t.mu.Unlock()
}

// FieldState is one row of the edit form.
type FieldState struct {
	Path  string
	Title string
	Type  string
	Value string
	Dirty bool
}

// PanelState is what the edit panel shows.
type PanelState struct {
	Visible    bool
	Status     models.Status
	Collection string
	Label      string
	FeatureID  string
	Fields     []FieldState
	CanSave    bool
	CanDelete  bool
	CanCancel  bool
	Overlay    models.Overlay
	Error      string
}

// EditPanel is the on-map control holding the property form and the
// save, delete and cancel buttons.
type EditPanel struct {
	e *Editor

	mu        sync.RWMutex
	state     PanelState
	listeners []func(PanelState)
}

func newEditPanel(e *Editor) *EditPanel {
	p := &EditPanel{e: e}
	e.s.On(store.ObserverFunc(func(string) { p.Render() }), true,
		models.StatusKey, models.ModeKey, models.ActiveCollectionKey,
		models.BaseFeatureKey, models.GeometryChangeKey, models.PropertyChangesKey,
		models.OverlayKey, models.LastErrorKey, models.CollectionsKey)
	return p
}

func (p *EditPanel) Name() string { return "geoedit-panel" }

func (p *EditPanel) Render() {
	e := p.e
	st := PanelState{
		Status:  e.status.Status(),
		Overlay: store.Get(e.s, models.OverlayKey),
		Error:   store.Get(e.s, models.LastErrorKey),
	}
	coll := store.Get(e.s, models.ActiveCollectionKey)
	if desc := e.descriptor(coll); desc != nil {
		st.Visible = true
		st.Collection = desc.ID
		st.Label = desc.Label
		base := store.Get(e.s, models.BaseFeatureKey)
		changes := store.Get(e.s, models.PropertyChangesKey)
		st.FeatureID = featureID(base)
		for _, path := range desc.Paths() {
			spec := desc.Properties[path]
			v, ok := changes[path]
			if !ok {
				v = tracker.BaseValue(base, jsonvalue.ParsePath(path))
			}
			st.Fields = append(st.Fields, FieldState{
				Path:  path,
				Title: spec.Title,
				Type:  spec.Type,
				Value: v.String(),
				Dirty: tracker.IsDirty(base, changes, path),
			})
		}
		st.CanSave = e.status.Can(status.Save)
		st.CanDelete = e.status.Can(status.Delete)
		st.CanCancel = e.status.Can(status.Cancel)
	}
	p.mu.Lock()
	p.state = st
	listeners := p.listeners
	p.mu.Unlock()
	for _, fn := range listeners {
		fn(st)
	}
}

func (p *EditPanel) State() PanelState {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.state
}

// OnChange registers fn to be called after every render.
func (p *EditPanel) OnChange(fn func(PanelState)) {
	p.mu.Lock()
	p.listeners = append(p.listeners, fn)
	p.mu.Unlock()
}
