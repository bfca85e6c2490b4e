// Package status is the lifecycle of one edit: IDLE, then CREATE or EDIT
// while the user works, SYNC while a save or delete is on the wire, and
// SUCCESS or ERROR on completion.
package status

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/GrainArc/GeoEdit/models"
	"github.com/GrainArc/GeoEdit/store"
)

type Event string

const (
	DrawEnd     Event = "drawend"
	Loaded      Event = "loaded"
	Save        Event = "save"
	Delete      Event = "delete"
	Succeeded   Event = "succeeded"
	Failed      Event = "failed"
	Acknowledge Event = "acknowledge"
	Cancel      Event = "cancel"
)

var (
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrNoChanges         = errors.New("nothing to save")
	ErrNothingLoaded     = errors.New("no feature loaded")
)

// transitions lists the static targets. Acknowledge is resolved at fire
// time; Succeeded passes through SUCCESS to IDLE.
var transitions = map[models.Status]map[Event]models.Status{
	models.StatusIdle: {
		DrawEnd: models.StatusCreate,
		Loaded:  models.StatusEdit,
		Failed:  models.StatusError,
		Cancel:  models.StatusIdle,
	},
	models.StatusCreate: {
		Save:   models.StatusSync,
		Cancel: models.StatusIdle,
	},
	models.StatusEdit: {
		Save:   models.StatusSync,
		Delete: models.StatusSync,
		Cancel: models.StatusIdle,
	},
	models.StatusSync: {
		Succeeded: models.StatusSuccess,
		Failed:    models.StatusError,
	},
	models.StatusError: {
		Acknowledge: models.StatusIdle,
		Cancel:      models.StatusIdle,
	},
}

// Guards are consulted before guarded transitions.
type Guards struct {
	HasChanges func() bool
}

// Machine drives the status key of a session store.
type Machine struct {
	s      *store.Store
	guards Guards
	logger *slog.Logger
}

func NewMachine(s *store.Store, guards Guards, logger *slog.Logger) *Machine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Machine{s: s, guards: guards, logger: logger}
}

func (m *Machine) Status() models.Status {
	return store.Get(m.s, models.StatusKey)
}

// Can reports whether ev would be accepted now.
func (m *Machine) Can(ev Event) bool {
	_, err := m.target(ev)
	return err == nil
}

func (m *Machine) target(ev Event) (models.Status, error) {
	cur := m.Status()
	next, ok := transitions[cur][ev]
	if !ok {
		return cur, fmt.Errorf("%s on %s: %w", ev, cur, ErrInvalidTransition)
	}
	switch ev {
	case Save:
		if m.guards.HasChanges != nil && !m.guards.HasChanges() {
			return cur, ErrNoChanges
		}
	case Delete:
		if !store.Has(m.s, models.BaseFeatureKey) {
			return cur, ErrNothingLoaded
		}
	case Acknowledge:
		next = m.resume()
	}
	return next, nil
}

// resume is where an acknowledged error returns to: the edit that failed,
// with its pending changes intact.
func (m *Machine) resume() models.Status {
	switch {
	case store.Has(m.s, models.BaseFeatureKey):
		return models.StatusEdit
	case store.Get(m.s, models.ModeKey) == models.ModeAdd && store.Has(m.s, models.GeometryChangeKey):
		return models.StatusCreate
	}
	return models.StatusIdle
}

// Fire applies ev. Failed and Succeeded carry extra work; use Fail and
// Succeed for those.
func (m *Machine) Fire(ev Event) error {
	if ev == Failed || ev == Succeeded {
		return fmt.Errorf("%s: use Fail or Succeed: %w", ev, ErrInvalidTransition)
	}
	next, err := m.target(ev)
	if err != nil {
		return err
	}
	if ev == Acknowledge {
		store.Clear(m.s, models.LastErrorKey)
	}
	m.logger.Debug("status", "event", ev, "from", m.Status(), "to", next)
	store.Set(m.s, models.StatusKey, next)
	return nil
}

// Fail records msg and moves to ERROR.
func (m *Machine) Fail(msg string) error {
	next, err := m.target(Failed)
	if err != nil {
		return err
	}
	m.logger.Debug("status", "event", Failed, "from", m.Status(), "to", next, "error", msg)
	store.Set(m.s, models.LastErrorKey, msg)
	store.Set(m.s, models.StatusKey, next)
	return nil
}

// Succeed surfaces SUCCESS, clears the edit and settles in IDLE.
func (m *Machine) Succeed() error {
	next, err := m.target(Succeeded)
	if err != nil {
		return err
	}
	store.Set(m.s, models.StatusKey, next)
	models.ClearEdit(m.s)
	store.Set(m.s, models.StatusKey, models.StatusIdle)
	return nil
}
