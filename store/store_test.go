package store

import (
	"sort"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type revisioned struct {
	rev int
}

var (
	nameKey  = NewKey[string]("name")
	countKey = NewKey[int]("count")
	shapeKey = NewKeyFunc[*revisioned]("shape", func(r *revisioned) any {
		if r == nil {
			return nil
		}
		return r.rev
	})
	changesKey = NewKeyFunc[map[string]string]("changes", func(m map[string]string) any { return m })
)

func newTestStore() *Store {
	return New(nil, nameKey, countKey, shapeKey, changesKey)
}

func TestSetSameValueDoesNotNotify(t *testing.T) {
	s := newTestStore()
	calls := 0
	s.On(ObserverFunc(func(string) { calls++ }), false, nameKey)

	Set(s, nameKey, "roads")
	Set(s, nameKey, "roads")
	assert.Equal(t, 1, calls)

	Set(s, nameKey, "rivers")
	assert.Equal(t, 2, calls)
	assert.Equal(t, "rivers", Get(s, nameKey))
}

func TestUpdateUsesPreviousValue(t *testing.T) {
	s := newTestStore()
	Update(s, countKey, func(n int) int { return n + 1 })
	Update(s, countKey, func(n int) int { return n + 1 })
	assert.Equal(t, 2, Get(s, countKey))
}

func TestFingerprintComparator(t *testing.T) {
	s := newTestStore()
	calls := 0
	s.On(ObserverFunc(func(string) { calls++ }), false, shapeKey)

	g := &revisioned{rev: 1}
	Set(s, shapeKey, g)
	assert.Equal(t, 1, calls)

	// same pointer, same revision
	Set(s, shapeKey, g)
	assert.Equal(t, 1, calls)

	// mutated in place, revision bumped
	g.rev++
	Set(s, shapeKey, g)
	assert.Equal(t, 2, calls)

	// different object, same revision: no change by this comparator
	Set(s, shapeKey, &revisioned{rev: 2})
	assert.Equal(t, 2, calls)
}

func TestMapKeyComparesContent(t *testing.T) {
	s := newTestStore()
	calls := 0
	s.On(ObserverFunc(func(string) { calls++ }), false, changesKey)

	Set(s, changesKey, map[string]string{"name": "a"})
	Set(s, changesKey, map[string]string{"name": "a"})
	assert.Equal(t, 1, calls)
	assert.True(t, Has(s, changesKey))

	Set(s, changesKey, map[string]string{})
	assert.Equal(t, 2, calls)
	assert.False(t, Has(s, changesKey))
}

func TestHandlersRunInSubscriptionOrder(t *testing.T) {
	s := newTestStore()
	var order []string
	s.On(ObserverFunc(func(string) { order = append(order, "first") }), false, nameKey)
	s.On(ObserverFunc(func(string) { order = append(order, "second") }), false, nameKey)
	s.On(ObserverFunc(func(string) { order = append(order, "third") }), false, nameKey, countKey)

	Set(s, nameKey, "x")
	assert.Equal(t, []string{"first", "second", "third"}, order)
}

func TestMultiKeySubscription(t *testing.T) {
	s := newTestStore()
	var seen []string
	s.On(ObserverFunc(func(k string) { seen = append(seen, k) }), false, nameKey, countKey)

	Set(s, nameKey, "x")
	Set(s, countKey, 3)
	Set(s, shapeKey, &revisioned{rev: 9})
	sort.Strings(seen)
	assert.Equal(t, []string{"count", "name"}, seen)
}

func TestInvokeImmediately(t *testing.T) {
	s := newTestStore()
	Set(s, nameKey, "init")
	var got string
	s.On(ObserverFunc(func(string) { got = Get(s, nameKey) }), true, nameKey)
	assert.Equal(t, "init", got)
}

func TestReentrantSetIsQueued(t *testing.T) {
	s := newTestStore()
	var log []string

	s.On(ObserverFunc(func(string) {
		log = append(log, "a:name="+Get(s, nameKey))
		if Get(s, countKey) == 0 {
			Set(s, countKey, 1)
			// the queued write is not visible yet
			log = append(log, "a:pending")
			assert.Equal(t, 0, Get(s, countKey))
		}
	}), false, nameKey)
	s.On(ObserverFunc(func(string) {
		log = append(log, "b:name="+Get(s, nameKey))
	}), false, nameKey)
	s.On(ObserverFunc(func(string) {
		log = append(log, "c:count")
	}), false, countKey)

	Set(s, nameKey, "x")

	require.Equal(t, []string{"a:name=x", "a:pending", "b:name=x", "c:count"}, log)
	assert.Equal(t, 1, Get(s, countKey))
	assert.Zero(t, s.Pending())
}

func TestPanickingObserverDoesNotDropQueuedWrites(t *testing.T) {
	s := newTestStore()
	var log []string
	s.On(ObserverFunc(func(string) {
		Set(s, countKey, 1)
		panic("boom")
	}), false, nameKey)
	s.On(ObserverFunc(func(string) { log = append(log, "name") }), false, nameKey)
	s.On(ObserverFunc(func(string) { log = append(log, "count") }), false, countKey)

	assert.NotPanics(t, func() { Set(s, nameKey, "x") })
	assert.Equal(t, []string{"name", "count"}, log)
	assert.Equal(t, 1, Get(s, countKey))
	assert.Zero(t, s.Pending())
}

func TestCancelSubscription(t *testing.T) {
	s := newTestStore()
	calls := 0
	sub := s.On(ObserverFunc(func(string) { calls++ }), false, nameKey)
	Set(s, nameKey, "x")
	sub.Cancel()
	Set(s, nameKey, "y")
	assert.Equal(t, 1, calls)
}

func TestUndefinedKeyPanics(t *testing.T) {
	s := New(nil, nameKey)
	assert.Panics(t, func() { Set(s, countKey, 1) })
}

func TestLoopRunsPostedTasksInOrder(t *testing.T) {
	l := NewLoop()
	var order []int
	l.Post(func() {
		order = append(order, 1)
		l.Post(func() { order = append(order, 3) })
	})
	l.Post(func() { order = append(order, 2) })
	assert.Equal(t, 3, l.Drain())
	assert.Equal(t, []int{1, 2, 3}, order)
}

func TestLoopFlushWaitsForWork(t *testing.T) {
	l := NewLoop()
	var done atomic.Bool
	l.Go(func() func() {
		time.Sleep(10 * time.Millisecond)
		return func() { done.Store(true) }
	})
	l.AfterFunc(5*time.Millisecond, func() {})
	l.Flush()
	assert.True(t, done.Load())
}

func TestLoopAfterFuncStop(t *testing.T) {
	l := NewLoop()
	fired := false
	stop := l.AfterFunc(time.Hour, func() { fired = true })
	assert.True(t, stop())
	l.Flush()
	assert.False(t, fired)
}
