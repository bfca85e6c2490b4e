// Package store is the reactive state container behind an edit session.
//
// A Store holds a fixed set of typed keys. Writes run change detection and
// notify observers synchronously, in subscription order, once per detected
// change. A write issued by an observer while a notification is being
// delivered is queued and applied after that notification completes, so
// every observer sees a consistent, non-interleaved sequence of updates.
//
// A Store is not safe for concurrent use; it belongs to the goroutine that
// runs its Loop.
package store

import (
	"fmt"
	"log/slog"
)

// Observer is notified after the value of a subscribed key changed.
type Observer interface {
	Changed(key string)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(key string)

func (f ObserverFunc) Changed(key string) { f(key) }

// Subscription is returned by On.
type Subscription struct {
	s        *Store
	observer Observer
	keys     map[string]struct{}
	canceled bool
}

// Cancel stops further notifications. Safe to call from within a handler.
func (sub *Subscription) Cancel() {
	sub.canceled = true
}

type entry struct {
	value any
	hash  string
}

type pendingSet struct {
	d     *keyDef
	apply func(any) any
}

// Store is a keyed state container with change notification.
type Store struct {
	logger  *slog.Logger
	entries map[string]*entry
	defs    map[string]*keyDef
	subs    []*Subscription

	queue       []pendingSet
	dispatching bool
}

// New creates a store holding keys. Keys cannot be added later.
func New(logger *slog.Logger, keys ...AnyKey) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Store{
		logger:  logger,
		entries: make(map[string]*entry, len(keys)),
		defs:    make(map[string]*keyDef, len(keys)),
	}
	for _, k := range keys {
		d := k.def()
		if _, dup := s.defs[d.name]; dup {
			panic(fmt.Sprintf("store: duplicate key %q", d.name))
		}
		s.defs[d.name] = d
		e := &entry{value: d.zero}
		if d.fingerprint != nil {
			e.hash = d.hash(d.zero)
		}
		s.entries[d.name] = e
	}
	return s
}

func (s *Store) lookup(d *keyDef) *entry {
	e, ok := s.entries[d.name]
	if !ok || s.defs[d.name] != d {
		panic(fmt.Sprintf("store: undefined key %q", d.name))
	}
	return e
}

// Get returns the current value of k.
func Get[T any](s *Store, k Key[T]) T {
	v, _ := s.lookup(k.d).value.(T)
	return v
}

// Has reports whether k holds a non-empty value.
func Has[T any](s *Store, k Key[T]) bool {
	return !empty(s.lookup(k.d).value)
}

// Set stores v under k.
func Set[T any](s *Store, k Key[T], v T) {
	s.lookup(k.d)
	s.commit(pendingSet{d: k.d, apply: func(any) any { return v }})
}

// Update stores fn(previous) under k. fn must not mutate its argument.
func Update[T any](s *Store, k Key[T], fn func(T) T) {
	s.lookup(k.d)
	s.commit(pendingSet{d: k.d, apply: func(prev any) any {
		p, _ := prev.(T)
		return fn(p)
	}})
}

// Clear resets k to its zero value.
func Clear[T any](s *Store, k Key[T]) {
	var zero T
	Set(s, k, zero)
}

// On subscribes observer to keys. With invokeImmediately the observer is
// also called once right away with the first key.
func (s *Store) On(observer Observer, invokeImmediately bool, keys ...AnyKey) *Subscription {
	sub := &Subscription{s: s, observer: observer, keys: make(map[string]struct{}, len(keys))}
	for _, k := range keys {
		s.lookup(k.def())
		sub.keys[k.Name()] = struct{}{}
	}
	s.subs = append(s.subs, sub)
	if invokeImmediately && len(keys) > 0 {
		observer.Changed(keys[0].Name())
	}
	return sub
}

// Pending reports the number of writes queued behind the notification in
// progress.
func (s *Store) Pending() int { return len(s.queue) }

func (s *Store) commit(p pendingSet) {
	s.queue = append(s.queue, p)
	if s.dispatching {
		return
	}
	s.dispatching = true
	defer func() {
		s.dispatching = false
		s.queue = s.queue[:0]
	}()
	for len(s.queue) > 0 {
		next := s.queue[0]
		s.queue = s.queue[1:]
		s.apply(next)
	}
}

func (s *Store) apply(p pendingSet) {
	e := s.entries[p.d.name]
	old := e.value
	val := p.apply(old)

	var changed bool
	if p.d.fingerprint != nil {
		h := p.d.hash(val)
		changed = h == "" || h != e.hash
		e.hash = h
	} else {
		changed = old != val
	}
	e.value = val
	if !changed {
		return
	}
	s.logger.Debug("store changed", "key", p.d.name)

	subs := make([]*Subscription, len(s.subs))
	copy(subs, s.subs)
	for _, sub := range subs {
		if sub.canceled {
			continue
		}
		if _, ok := sub.keys[p.d.name]; ok {
			s.notify(sub, p.d.name)
		}
	}
	s.compact()
}

// notify delivers one change; a panicking observer is logged and the
// remaining observers and queued writes still run.
func (s *Store) notify(sub *Subscription, key string) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("store observer panicked", "key", key, "panic", r)
		}
	}()
	sub.observer.Changed(key)
}

func (s *Store) compact() {
	live := s.subs[:0]
	for _, sub := range s.subs {
		if !sub.canceled {
			live = append(live, sub)
		}
	}
	for i := len(live); i < len(s.subs); i++ {
		s.subs[i] = nil
	}
	s.subs = live
}
