// Package interaction decides which map tools are armed. The logical mode
// (OFF, ADD, EDIT) changes only on explicit toolbar clicks; which
// interactions are active follows from the mode, the draw type and the
// edit status every time one of them changes.
package interaction

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/GrainArc/GeoEdit/mapkit"
	"github.com/GrainArc/GeoEdit/models"
	"github.com/GrainArc/GeoEdit/store"
)

var (
	ErrEditInProgress      = errors.New("an edit is in progress")
	ErrUnknownGeometryType = errors.New("unknown geometry type")
	ErrUnknownMode         = errors.New("unknown mode")
)

// Tools are the interactions the machine arms and disarms.
type Tools struct {
	Draws  map[models.GeometryType]*mapkit.Draw
	Select *mapkit.Select
	Modify *mapkit.Modify
}

// All returns every tool, draws in toolbar order.
func (t Tools) All() []mapkit.Interaction {
	var out []mapkit.Interaction
	for _, gt := range models.GeometryTypes {
		if d, ok := t.Draws[gt]; ok {
			out = append(out, d)
		}
	}
	if t.Select != nil {
		out = append(out, t.Select)
	}
	if t.Modify != nil {
		out = append(out, t.Modify)
	}
	return out
}

// ModeMachine owns the mode key and the activation of Tools.
type ModeMachine struct {
	s      *store.Store
	tools  Tools
	logger *slog.Logger
}

// NewModeMachine subscribes to the session store and arms tools for the
// current state right away.
func NewModeMachine(s *store.Store, tools Tools, logger *slog.Logger) *ModeMachine {
	if logger == nil {
		logger = slog.Default()
	}
	m := &ModeMachine{s: s, tools: tools, logger: logger}
	s.On(store.ObserverFunc(func(string) { m.arm() }), true,
		models.ModeKey, models.GeometryTypeKey, models.StatusKey, models.ActiveCollectionKey)
	return m
}

// Mode returns the logical mode.
func (m *ModeMachine) Mode() models.Mode {
	return store.Get(m.s, models.ModeKey)
}

// Disabled reports whether every control must render disabled: a save or
// delete is on the wire.
func (m *ModeMachine) Disabled() bool {
	return store.Get(m.s, models.StatusKey) == models.StatusSync
}

// CanSwitch reports whether a toolbar click would be accepted: only while
// no edit is in progress.
func (m *ModeMachine) CanSwitch() bool {
	return store.Get(m.s, models.StatusKey) == models.StatusIdle &&
		!store.Has(m.s, models.ActiveCollectionKey)
}

// Toggle handles a click on the ADD or EDIT control. Clicking the active
// mode turns editing off; clicking the other one switches to it.
func (m *ModeMachine) Toggle(mode models.Mode) error {
	if mode != models.ModeAdd && mode != models.ModeEdit {
		return fmt.Errorf("%q: %w", mode, ErrUnknownMode)
	}
	if !m.CanSwitch() {
		m.logger.Debug("mode change rejected", "mode", mode, "status", store.Get(m.s, models.StatusKey))
		return ErrEditInProgress
	}
	next := mode
	if m.Mode() == mode {
		next = models.ModeOff
	}
	store.Set(m.s, models.ModeKey, next)
	return nil
}

// SetGeometryType selects the draw type used in ADD mode.
func (m *ModeMachine) SetGeometryType(t models.GeometryType) error {
	if _, ok := m.tools.Draws[t]; !ok || !t.Valid() {
		return fmt.Errorf("%q: %w", t, ErrUnknownGeometryType)
	}
	if store.Get(m.s, models.GeometryTypeKey) != t && !m.CanSwitch() {
		return ErrEditInProgress
	}
	store.Set(m.s, models.GeometryTypeKey, t)
	return nil
}

// arm recomputes which interactions are active.
func (m *ModeMachine) arm() {
	mode := store.Get(m.s, models.ModeKey)
	status := store.Get(m.s, models.StatusKey)
	geomType := store.Get(m.s, models.GeometryTypeKey)
	selecting := store.Has(m.s, models.ActiveCollectionKey)

	for gt, d := range m.tools.Draws {
		d.SetActive(mode == models.ModeAdd && status == models.StatusIdle && gt == geomType)
	}
	if m.tools.Select != nil {
		m.tools.Select.SetActive(mode == models.ModeEdit && status == models.StatusIdle && !selecting)
	}
	if m.tools.Modify != nil {
		editing := status == models.StatusCreate || status == models.StatusEdit || status == models.StatusError
		m.tools.Modify.SetActive(mode != models.ModeOff && editing)
	}
}

// Active returns the names of the armed interactions.
func (m *ModeMachine) Active() []string {
	var names []string
	for _, in := range m.tools.All() {
		if in.Active() {
			names = append(names, in.Name())
		}
	}
	return names
}
