package scanner_test

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ValentinKolb/itemstore/lib/store"
	"github.com/ValentinKolb/itemstore/lib/store/scanner"
	gometrics "github.com/rcrowley/go-metrics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testLink uint64

func (l testLink) ID() uint64 { return uint64(l) }

// fakeOwner is a minimal store.IScannerOwner backed by a map
type fakeOwner struct {
	mu    sync.Mutex
	state store.State
	links map[uint64]store.Link
}

func newFakeOwner(ids ...uint64) *fakeOwner {
	o := &fakeOwner{state: store.StateStarted, links: make(map[uint64]store.Link)}
	for _, id := range ids {
		o.links[id] = testLink(id)
	}
	return o
}

func (o *fakeOwner) State() store.State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

func (o *fakeOwner) setState(s store.State) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.state = s
}

func (o *fakeOwner) FindByID(key uint64) (store.Link, bool, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	l, ok := o.links[key]
	return l, ok, nil
}

func (o *fakeOwner) Unregister(link store.Link) (bool, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	_, ok := o.links[link.ID()]
	delete(o.links, link.ID())
	return ok, nil
}

func (o *fakeOwner) has(id uint64) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	_, ok := o.links[id]
	return ok
}

func TestPeriodicRunsPasses(t *testing.T) {
	var calls atomic.Int32
	registry := gometrics.NewRegistry()
	s := scanner.New(store.ScannerExpirer, func(store.IScannerOwner, time.Time) error {
		calls.Add(1)
		return nil
	}, registry)

	s.Start(5*time.Millisecond, newFakeOwner())
	require.Eventually(t, func() bool { return calls.Load() >= 3 }, time.Second, time.Millisecond)
	s.Stop()

	stopped := calls.Load()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, stopped, calls.Load(), "no passes after Stop")
	assert.Equal(t, int64(stopped), s.Passes())

	timer, ok := registry.Get("scanner.expirer.pass").(gometrics.Timer)
	require.True(t, ok)
	assert.Equal(t, int64(stopped), timer.Count())
}

func TestPeriodicSkipsWhenNotStarted(t *testing.T) {
	var calls atomic.Int32
	owner := newFakeOwner()
	owner.setState(store.StateStarting)

	s := scanner.New(store.ScannerCacheLoader, func(store.IScannerOwner, time.Time) error {
		calls.Add(1)
		return nil
	}, nil)
	s.Start(time.Millisecond, owner)
	time.Sleep(20 * time.Millisecond)
	assert.Zero(t, calls.Load())

	owner.setState(store.StateStarted)
	require.Eventually(t, func() bool { return calls.Load() > 0 }, time.Second, time.Millisecond)
	s.Stop()
}

func TestPeriodicCountsFailures(t *testing.T) {
	s := scanner.New(store.ScannerDeliveryDelay, func(store.IScannerOwner, time.Time) error {
		return errors.New("boom")
	}, nil)
	s.Start(time.Millisecond, newFakeOwner())
	require.Eventually(t, func() bool { return s.Failures() > 0 }, time.Second, time.Millisecond)
	s.Stop()
}

func TestStopWithoutStart(t *testing.T) {
	s := scanner.New(store.ScannerExpirer, nil, nil)
	done := make(chan struct{})
	go func() {
		s.Stop()
		s.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Stop blocked on a scanner that was never started")
	}

	// a stopped scanner can not be started again
	s.Start(time.Millisecond, newFakeOwner())
	time.Sleep(10 * time.Millisecond)
	assert.Zero(t, s.Passes())
}

func TestFactory(t *testing.T) {
	pass := func(store.IScannerOwner, time.Time) error { return nil }
	factory := scanner.Factory(nil, scanner.Passes{store.ScannerExpirer: pass})

	for _, kind := range store.ScannerKinds {
		s, ok := factory(kind).(*scanner.Periodic)
		require.True(t, ok)
		assert.Equal(t, kind, s.Kind())
	}
}

func TestExpiryPass(t *testing.T) {
	owner := newFakeOwner(1, 2, 3)
	schedule := scanner.NewSchedule()
	now := time.Now()
	schedule.Add(1, now.Add(-time.Second))
	schedule.Add(2, now.Add(time.Hour))
	schedule.Add(4, now.Add(-time.Second)) // not registered

	require.NoError(t, scanner.ExpiryPass(schedule)(owner, now))

	assert.False(t, owner.has(1))
	assert.True(t, owner.has(2))
	assert.True(t, owner.has(3))
	assert.Equal(t, 1, schedule.Len())
}

func TestDelayPass(t *testing.T) {
	owner := newFakeOwner(1, 2)
	schedule := scanner.NewSchedule()
	now := time.Now()
	schedule.Add(2, now.Add(-2*time.Second))
	schedule.Add(1, now.Add(-time.Second))

	var delivered []uint64
	pass := scanner.DelayPass(schedule, func(link store.Link) {
		delivered = append(delivered, link.ID())
	})
	require.NoError(t, pass(owner, now))

	assert.Equal(t, []uint64{2, 1}, delivered, "earliest deadline first")
	assert.True(t, owner.has(1), "delivery does not unregister")
}
