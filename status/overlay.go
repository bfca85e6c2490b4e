package status

import (
	"time"

	"github.com/GrainArc/GeoEdit/models"
	"github.com/GrainArc/GeoEdit/store"
)

// Scheduler runs fn on the store's goroutine after d.
type Scheduler interface {
	AfterFunc(d time.Duration, fn func()) (stop func() bool)
}

// Overlay keeps the overlay key in step with the status: loading while
// SYNC, error while ERROR. The loading overlay lingers for the grace delay
// so a fast response does not flicker.
type Overlay struct {
	s     *store.Store
	sched Scheduler
	grace time.Duration
	stop  func() bool
}

func NewOverlay(s *store.Store, sched Scheduler, grace time.Duration) *Overlay {
	o := &Overlay{s: s, sched: sched, grace: grace}
	s.On(store.ObserverFunc(func(string) { o.update() }), true, models.StatusKey)
	return o
}

func (o *Overlay) update() {
	switch store.Get(o.s, models.StatusKey) {
	case models.StatusSync:
		o.cancelHide()
		store.Set(o.s, models.OverlayKey, models.OverlayLoading)
	case models.StatusError:
		o.cancelHide()
		store.Set(o.s, models.OverlayKey, models.OverlayError)
	default:
		switch store.Get(o.s, models.OverlayKey) {
		case models.OverlayLoading:
			if o.stop == nil {
				o.stop = o.sched.AfterFunc(o.grace, o.hide)
			}
		case models.OverlayError:
			store.Set(o.s, models.OverlayKey, models.OverlayNone)
		}
	}
}

func (o *Overlay) hide() {
	o.stop = nil
	st := store.Get(o.s, models.StatusKey)
	if st == models.StatusSync || st == models.StatusError {
		return
	}
	store.Set(o.s, models.OverlayKey, models.OverlayNone)
}

func (o *Overlay) cancelHide() {
	if o.stop != nil {
		o.stop()
		o.stop = nil
	}
}
