package store_test

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ValentinKolb/itemstore/lib/index"
	"github.com/ValentinKolb/itemstore/lib/store"
	"github.com/ValentinKolb/itemstore/lib/store/persistence/memory"
	"github.com/ValentinKolb/itemstore/lib/store/txn"
	"github.com/ValentinKolb/itemstore/lib/store/xid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --------------------------------------------------------------------------
// Fakes
// --------------------------------------------------------------------------

type testLink struct {
	id   uint64
	name string
}

func (l *testLink) ID() uint64 { return l.id }

// recorder collects lifecycle events in the order they happen
type recorder struct {
	mu     sync.Mutex
	events []string
}

func (r *recorder) add(event string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *recorder) list() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.events...)
}

func (r *recorder) index(event string) int {
	for i, e := range r.list() {
		if e == event {
			return i
		}
	}
	return -1
}

// fakePersistence is a memory backend with event recording and failure injection
type fakePersistence struct {
	*memory.Backend
	rec *recorder

	startErr     error
	generatorErr error
	rootErr      error
	startGate    chan struct{} // Start blocks until closed (optional)
}

func (p *fakePersistence) Start() error {
	p.rec.add("persistence.start")
	if p.startGate != nil {
		<-p.startGate
	}
	if p.startErr != nil {
		return p.startErr
	}
	return p.Backend.Start()
}

func (p *fakePersistence) Stop() {
	p.rec.add("persistence.stop")
	p.Backend.Stop()
}

func (p *fakePersistence) UniqueKeyGenerator(name string, rangeSize uint64) (store.IUniqueKeyGenerator, error) {
	p.rec.add("generator." + name)
	if p.generatorErr != nil {
		return nil, p.generatorErr
	}
	return p.Backend.UniqueKeyGenerator(name, rangeSize)
}

func (p *fakePersistence) ReadRootRecord() (*store.RootRecord, error) {
	p.rec.add("root.read")
	if p.rootErr != nil {
		return nil, p.rootErr
	}
	return p.Backend.ReadRootRecord()
}

// fakeResolver wraps the default resolver with event recording
type fakeResolver struct {
	*txn.Resolver
	rec     *recorder
	openErr error
}

func (r *fakeResolver) Open(p store.IPersistence) error {
	r.rec.add("resolver.open")
	if r.openErr != nil {
		return r.openErr
	}
	return r.Resolver.Open(p)
}

func (r *fakeResolver) Close() {
	r.rec.add("resolver.close")
	r.Resolver.Close()
}

type fakeScanner struct {
	kind store.ScannerKind
	rec  *recorder
}

func (s *fakeScanner) Start(time.Duration, store.IScannerOwner) {
	s.rec.add("scanner.start." + string(s.kind))
}

func (s *fakeScanner) Stop() {
	s.rec.add("scanner.stop." + string(s.kind))
}

// harness wires a controller to fakes
type harness struct {
	rec         *recorder
	persistence *fakePersistence
	resolverErr error
	controller  *store.Controller
}

func newHarness(t *testing.T, opts ...memory.Option) *harness {
	t.Helper()
	h := &harness{rec: &recorder{}}
	h.persistence = &fakePersistence{Backend: memory.NewBackend(opts...), rec: h.rec}
	h.controller = store.NewController(store.Dependencies{
		Persistence: func(store.Config) (store.IPersistence, error) {
			return h.persistence, nil
		},
		Resolver: func() store.ITransactionResolver {
			return &fakeResolver{Resolver: txn.NewResolver(), rec: h.rec, openErr: h.resolverErr}
		},
		Scanners: func(kind store.ScannerKind) store.IScanner {
			return &fakeScanner{kind: kind, rec: h.rec}
		},
	})
	return h
}

func testConfig(impl index.Implementation) store.Config {
	conf := store.DefaultConfig()
	conf.Index.Implementation = impl
	conf.Index.Magnitude = 8
	conf.Index.Parallelism = 2
	conf.Index.Shards = 4
	conf.CacheLoaderInterval = time.Second
	return conf
}

func startedHarness(t *testing.T, impl index.Implementation) *harness {
	t.Helper()
	h := newHarness(t)
	require.NoError(t, h.controller.Initialize(testConfig(impl)))
	require.NoError(t, h.controller.Start())
	t.Cleanup(func() { _ = h.controller.Stop() })
	return h
}

// --------------------------------------------------------------------------
// Lifecycle
// --------------------------------------------------------------------------

func TestLifecycleTransitions(t *testing.T) {
	h := newHarness(t)
	c := h.controller

	assert.Equal(t, store.StateUninitialized, c.State())
	assert.True(t, store.IsCode(c.Start(), store.RetCInvalidState))
	assert.True(t, store.IsCode(c.Stop(), store.RetCInvalidState))
	assert.True(t, store.IsCode(c.Destroy(), store.RetCInvalidState))

	require.NoError(t, c.Initialize(testConfig(index.ImplDefault)))
	assert.Equal(t, store.StateStopped, c.State())
	assert.True(t, store.IsCode(c.Initialize(testConfig(index.ImplDefault)), store.RetCInvalidState))

	require.NoError(t, c.Start())
	assert.Equal(t, store.StateStarted, c.State())
	assert.Equal(t, store.HealthOK, c.Health())

	err := c.Start()
	assert.True(t, store.IsCode(err, store.RetCInvalidState))
	assert.Contains(t, err.Error(), "Started")
	assert.True(t, store.IsCode(c.Destroy(), store.RetCInvalidState))

	require.NoError(t, c.Stop())
	assert.Equal(t, store.StateStopped, c.State())
	require.NoError(t, c.Stop(), "stop is idempotent")

	require.NoError(t, c.Destroy())
	assert.Equal(t, store.StateUninitialized, c.State())
}

func TestStartupOrder(t *testing.T) {
	h := startedHarness(t, index.ImplDefault)

	assert.Equal(t, []string{
		"persistence.start",
		"generator.item-id",
		"generator.tick",
		"resolver.open",
		"root.read",
		"scanner.start.expirer",
		"scanner.start.delivery-delay",
		"scanner.start.cache-loader",
	}, h.rec.list())

	require.NoError(t, h.controller.Stop())

	// scanners are stopped first, concurrently
	events := h.rec.list()
	persistenceStop := h.rec.index("persistence.stop")
	require.Greater(t, persistenceStop, 0)
	for _, kind := range store.ScannerKinds {
		i := h.rec.index("scanner.stop." + string(kind))
		require.GreaterOrEqual(t, i, 0, "scanner %s stopped", kind)
		assert.Less(t, i, persistenceStop)
	}
	assert.Equal(t, "resolver.close", events[len(events)-1])
}

func TestDisabledScannersAreNotStarted(t *testing.T) {
	h := newHarness(t)
	conf := testConfig(index.ImplDefault)
	conf.ExpiryInterval = 0
	conf.CacheLoaderInterval = 0
	require.NoError(t, h.controller.Initialize(conf))
	require.NoError(t, h.controller.Start())
	defer h.controller.Stop()

	assert.Equal(t, -1, h.rec.index("scanner.start.expirer"))
	assert.Equal(t, -1, h.rec.index("scanner.start.cache-loader"))
	assert.GreaterOrEqual(t, h.rec.index("scanner.start.delivery-delay"), 0)
}

func TestStartupUnwind(t *testing.T) {
	h := newHarness(t)
	c := h.controller
	require.NoError(t, c.Initialize(testConfig(index.ImplDefault)))

	boom := errors.New("disk on fire")
	h.persistence.startErr = boom

	err := c.Start()
	require.Error(t, err)
	assert.True(t, store.IsCode(err, store.RetCInternalError))
	assert.ErrorIs(t, err, boom)

	assert.Equal(t, store.StateStopped, c.State())
	assert.Equal(t, store.HealthDegraded, c.Health())
	require.Len(t, c.StartupFailures(), 1)
	assert.ErrorIs(t, c.StartupError(), boom)
	assert.GreaterOrEqual(t, h.rec.index("persistence.stop"), 0, "backend is released")
	assert.Equal(t, -1, h.rec.index("generator.item-id"))

	// the hot path reports the first startup failure as cause
	err = c.Register(&testLink{id: 1})
	assert.True(t, store.IsCode(err, store.RetCStoreUnavailable))
	assert.ErrorIs(t, err, boom)

	_, _, err = c.FindByID(1)
	assert.ErrorIs(t, err, boom)

	// a later successful start resets failures and health
	h.persistence.startErr = nil
	require.NoError(t, c.Start())
	assert.Equal(t, store.HealthOK, c.Health())
	assert.Empty(t, c.StartupFailures())
	assert.NoError(t, c.StartupError())
	require.NoError(t, c.Stop())
}

func TestStartupUnwindOnGenerator(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.controller.Initialize(testConfig(index.ImplDefault)))
	h.persistence.generatorErr = errors.New("no keys left")

	err := h.controller.Start()
	assert.True(t, store.IsCode(err, store.RetCInternalError))
	assert.Equal(t, store.StateStopped, h.controller.State())
	assert.GreaterOrEqual(t, h.rec.index("persistence.stop"), 0)
	assert.Equal(t, -1, h.rec.index("resolver.open"))
}

func TestStartupUnwindOnResolver(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.controller.Initialize(testConfig(index.ImplDefault)))
	h.resolverErr = errors.New("log corrupted")

	err := h.controller.Start()
	assert.True(t, store.IsCode(err, store.RetCInternalError))
	assert.Equal(t, store.HealthDegraded, h.controller.Health())
	assert.GreaterOrEqual(t, h.rec.index("resolver.close"), 0)
	assert.GreaterOrEqual(t, h.rec.index("persistence.stop"), 0)
	assert.Equal(t, -1, h.rec.index("root.read"))
}

func TestRootRecordMissing(t *testing.T) {
	h := newHarness(t, memory.WithoutRoot())
	c := h.controller
	require.NoError(t, c.Initialize(testConfig(index.ImplDefault)))

	err := c.Start()
	require.Error(t, err)
	assert.True(t, store.IsCode(err, store.RetCRootRecordMissing))
	assert.Equal(t, store.StateStopped, c.State())
	assert.Equal(t, store.HealthDegraded, c.Health())
	assert.Equal(t, -1, h.rec.index("scanner.start.expirer"), "scanners are started last")
	assert.GreaterOrEqual(t, h.rec.index("resolver.close"), 0)

	_, err = c.TransactionFactory()
	assert.True(t, store.IsCode(err, store.RetCStoreUnavailable))
}

func TestStopDuringStartup(t *testing.T) {
	h := newHarness(t)
	c := h.controller
	require.NoError(t, c.Initialize(testConfig(index.ImplDefault)))
	h.persistence.startGate = make(chan struct{})

	result := make(chan error, 1)
	go func() { result <- c.Start() }()

	require.Eventually(t, func() bool { return c.State() == store.StateStarting }, time.Second, time.Millisecond)
	require.Eventually(t, func() bool { return h.rec.index("persistence.start") >= 0 }, time.Second, time.Millisecond)
	require.NoError(t, c.Stop())
	assert.Equal(t, store.StateStopped, c.State())

	close(h.persistence.startGate)
	err := <-result
	assert.True(t, store.IsCode(err, store.RetCInvalidState))
	assert.Equal(t, store.StateStopped, c.State())
	assert.GreaterOrEqual(t, h.rec.index("persistence.stop"), 0, "backend started by the aborted attempt is released")
	assert.Equal(t, -1, h.rec.index("scanner.start.expirer"))
}

// callbackScanner calls back into the controller while it is being stopped,
// like a pass that is still running when the store stops
type callbackScanner struct {
	owner    *store.Controller
	itemID   uint64
	inDoubt  []string
	stopErr  error
	stopped  chan struct{}
	stopOnce sync.Once
}

func (s *callbackScanner) Start(time.Duration, store.IScannerOwner) {}

func (s *callbackScanner) Stop() {
	s.stopOnce.Do(func() {
		s.itemID, s.stopErr = s.owner.NextItemID()
		s.inDoubt = s.owner.ListInDoubtTransactions()
		close(s.stopped)
	})
}

func TestStopWaitsForScannersWithoutLock(t *testing.T) {
	var c *store.Controller
	scanners := make([]*callbackScanner, 0, len(store.ScannerKinds))
	c = store.NewController(store.Dependencies{
		Persistence: func(store.Config) (store.IPersistence, error) {
			return memory.NewBackend(), nil
		},
		Resolver: func() store.ITransactionResolver { return txn.NewResolver() },
		Scanners: func(store.ScannerKind) store.IScanner {
			s := &callbackScanner{owner: c, stopped: make(chan struct{})}
			scanners = append(scanners, s)
			return s
		},
	})
	require.NoError(t, c.Initialize(testConfig(index.ImplDefault)))
	require.NoError(t, c.Start())
	require.NotEmpty(t, scanners)

	result := make(chan error, 1)
	go func() { result <- c.Stop() }()

	select {
	case err := <-result:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Stop did not return while a scanner called back into the controller")
	}

	assert.Equal(t, store.StateStopped, c.State())
	for _, s := range scanners {
		<-s.stopped
		assert.NoError(t, s.stopErr, "store is still started while scanners stop")
		assert.NotZero(t, s.itemID)
		assert.Empty(t, s.inDoubt)
	}
}

func TestReload(t *testing.T) {
	h := startedHarness(t, index.ImplStripedChain)
	c := h.controller

	_, ok := c.IndexSize()
	assert.True(t, ok)

	// no state check, no effect until the next start
	c.Reload(testConfig(index.ImplShardedNative))
	assert.Equal(t, store.StateStarted, c.State())
	_, ok = c.IndexSize()
	assert.True(t, ok)

	require.NoError(t, c.Stop())
	require.NoError(t, c.Start())
	_, ok = c.IndexSize()
	assert.False(t, ok, "sharded-native does not track its size")
	assert.Equal(t, index.ImplShardedNative, c.Config().Index.Implementation)
}

// --------------------------------------------------------------------------
// Hot Path
// --------------------------------------------------------------------------

func TestHotPath(t *testing.T) {
	impls := append([]index.Implementation{"no-such-index"}, index.Implementations...)
	for _, impl := range impls {
		t.Run(string(impl), func(t *testing.T) {
			h := startedHarness(t, impl)
			c := h.controller

			first := &testLink{id: 42, name: "first"}
			second := &testLink{id: 42, name: "second"}
			require.NoError(t, c.Register(first))
			require.NoError(t, c.Register(second))

			link, ok, err := c.FindByID(42)
			require.NoError(t, err)
			require.True(t, ok)
			assert.Same(t, second, link, "newest registration wins")

			link, ok, err = c.GetLink(42)
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, uint64(42), link.ID())

			if size, ok := c.IndexSize(); ok {
				assert.Equal(t, 2, size)
			} else {
				assert.Equal(t, index.ImplShardedNative, impl)
			}

			removed, err := c.Unregister(second)
			require.NoError(t, err)
			assert.True(t, removed)

			link, ok, err = c.FindByID(42)
			require.NoError(t, err)
			require.True(t, ok, "earlier registration survives")
			assert.Same(t, first, link)

			_, ok, err = c.FindByID(7)
			require.NoError(t, err)
			assert.False(t, ok)

			removed, err = c.Unregister(&testLink{id: 7})
			require.NoError(t, err)
			assert.False(t, removed)
		})
	}
}

func TestRegisterUnregisterPairing(t *testing.T) {
	for _, impl := range index.Implementations {
		t.Run(string(impl), func(t *testing.T) {
			c := startedHarness(t, impl).controller

			links := []*testLink{{id: 5, name: "A"}, {id: 5, name: "B"}, {id: 5, name: "C"}}
			for _, link := range links {
				require.NoError(t, c.Register(link))
			}

			// every Unregister uncovers the registration made before it
			for i := len(links) - 1; i >= 0; i-- {
				link, ok, err := c.FindByID(5)
				require.NoError(t, err)
				require.True(t, ok, "%d registrations left", i+1)
				assert.Same(t, links[i], link)

				removed, err := c.Unregister(links[i])
				require.NoError(t, err)
				assert.True(t, removed)
			}

			_, ok, err := c.FindByID(5)
			require.NoError(t, err)
			assert.False(t, ok)

			removed, err := c.Unregister(links[0])
			require.NoError(t, err)
			assert.False(t, removed)
		})
	}
}

func TestHotPathUnavailable(t *testing.T) {
	h := newHarness(t)
	c := h.controller

	err := c.Register(&testLink{id: 1})
	assert.True(t, store.IsCode(err, store.RetCStoreUnavailable))
	assert.ErrorIs(t, err, store.ErrUnavailable)
	assert.ErrorIs(t, err, store.NewError(store.RetCStoreUnavailable, ""))

	_, err = c.Unregister(&testLink{id: 1})
	assert.True(t, store.IsCode(err, store.RetCStoreUnavailable))
	_, _, err = c.GetLink(1)
	assert.True(t, store.IsCode(err, store.RetCStoreUnavailable))
	_, err = c.NextItemID()
	assert.True(t, store.IsCode(err, store.RetCStoreUnavailable))

	// the index is discarded on stop
	require.NoError(t, c.Initialize(testConfig(index.ImplDefault)))
	require.NoError(t, c.Start())
	require.NoError(t, c.Register(&testLink{id: 1}))
	require.NoError(t, c.Stop())
	require.NoError(t, c.Start())
	defer c.Stop()
	_, ok, err := c.FindByID(1)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestConcurrentHotPathAndLifecycle(t *testing.T) {
	h := startedHarness(t, index.ImplDefault)
	c := h.controller

	var stop atomic.Bool
	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := uint64(0); !stop.Load(); i++ {
				link := &testLink{id: uint64(w)<<32 | i}
				for _, err := range []error{
					c.Register(link),
					func() error { _, _, err := c.FindByID(link.id); return err }(),
					func() error { _, err := c.Unregister(link); return err }(),
				} {
					if err != nil && !store.IsCode(err, store.RetCStoreUnavailable) {
						t.Errorf("unexpected error: %v", err)
						return
					}
				}
			}
		}(w)
	}

	for i := 0; i < 20; i++ {
		require.NoError(t, c.Stop())
		require.NoError(t, c.Start())
	}
	stop.Store(true)
	wg.Wait()
	assert.Equal(t, store.StateStarted, c.State())
}

// --------------------------------------------------------------------------
// Generators, Transactions, Membership
// --------------------------------------------------------------------------

func TestGenerators(t *testing.T) {
	h := startedHarness(t, index.ImplDefault)
	c := h.controller

	a, err := c.NextItemID()
	require.NoError(t, err)
	b, err := c.NextItemID()
	require.NoError(t, err)
	assert.Greater(t, b, a)

	tick, err := c.NextTick()
	require.NoError(t, err)
	assert.Equal(t, uint64(1), tick)
}

func TestTransactions(t *testing.T) {
	h := newHarness(t)
	conf := testConfig(index.ImplDefault)
	conf.MaxTransactionSize = 2
	require.NoError(t, h.controller.Initialize(conf))
	require.NoError(t, h.controller.Start())
	defer h.controller.Stop()

	factory, err := h.controller.TransactionFactory()
	require.NoError(t, err)
	assert.Equal(t, 2, factory.MaxSize())

	tx := factory.NewTransaction()
	require.NoError(t, tx.Put(store.ItemRecord{ID: 1, StreamID: 9}))
	require.NoError(t, tx.Put(store.ItemRecord{ID: 2, StreamID: 9}))
	assert.ErrorIs(t, tx.Delete(3), store.ErrTransactionTooLarge)
	assert.Equal(t, 2, tx.Size())
	require.NoError(t, tx.Commit())
	assert.ErrorIs(t, tx.Commit(), store.ErrTransactionCompleted)
	assert.ErrorIs(t, tx.Put(store.ItemRecord{ID: 3}), store.ErrTransactionCompleted)

	items, err := h.persistence.ReadStream(9)
	require.NoError(t, err)
	assert.Len(t, items, 2)

	rolledBack := factory.NewTransaction()
	require.NoError(t, rolledBack.Delete(1))
	rolledBack.Rollback()
	items, err = h.persistence.ReadStream(9)
	require.NoError(t, err)
	assert.Len(t, items, 2)
}

func TestRebuildMembership(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.persistence.Backend.Start())
	require.NoError(t, h.persistence.Backend.Apply(store.Batch{Puts: []store.ItemRecord{
		{ID: 1, StreamID: 10},
		{ID: 2, StreamID: 10},
		{ID: 3, StreamID: 20},
		{ID: 4, StreamID: 20, Data: []byte("skip")},
	}}))

	c := h.controller
	_, err := c.RebuildMembership(func(store.ItemRecord) store.Link { return nil })
	assert.True(t, store.IsCode(err, store.RetCStoreUnavailable))

	require.NoError(t, c.Initialize(testConfig(index.ImplStripedChain)))
	require.NoError(t, c.Start())
	defer c.Stop()

	root, err := c.RootRecord()
	require.NoError(t, err)
	assert.Equal(t, []uint64{10, 20}, root.Streams)

	n, err := c.RebuildMembership(func(item store.ItemRecord) store.Link {
		if string(item.Data) == "skip" {
			return nil
		}
		return &testLink{id: item.ID}
	})
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	size, ok := c.IndexSize()
	require.True(t, ok)
	assert.Equal(t, 3, size)
	_, ok, err = c.FindByID(3)
	require.NoError(t, err)
	assert.True(t, ok)
}

// --------------------------------------------------------------------------
// Prepared Transactions
// --------------------------------------------------------------------------

func TestPreparedTransactionInvalidID(t *testing.T) {
	h := newHarness(t)
	c := h.controller

	for _, id := range []string{"", "not-a-valid-xid", "1:zz:00", "1:" + strings.Repeat("ab", 65) + ":"} {
		err := c.CommitPreparedTransaction(id)
		assert.True(t, store.IsCode(err, store.RetCInvalidTransactionID), "commit %q", id)
		err = c.RollbackPreparedTransaction(id)
		assert.True(t, store.IsCode(err, store.RetCInvalidTransactionID), "rollback %q", id)
	}

	// valid id without resolver is a no-op
	assert.NoError(t, c.CommitPreparedTransaction(xid.New(1).String()))
	assert.Nil(t, c.ListInDoubtTransactions())
}

func TestPreparedTransactionResolution(t *testing.T) {
	h := startedHarness(t, index.ImplDefault)
	c := h.controller

	factory, err := c.TransactionFactory()
	require.NoError(t, err)

	commit, rollback := xid.New(7), xid.New(7)
	tx := factory.NewTransaction()
	require.NoError(t, tx.Put(store.ItemRecord{ID: 1, StreamID: 5}))
	require.NoError(t, tx.Prepare(commit))
	tx = factory.NewTransaction()
	require.NoError(t, tx.Put(store.ItemRecord{ID: 2, StreamID: 5}))
	require.NoError(t, tx.Prepare(rollback))

	assert.ElementsMatch(t, []string{commit.String(), rollback.String()}, c.ListInDoubtTransactions())

	// in-doubt transactions survive a restart
	require.NoError(t, c.Stop())
	require.NoError(t, c.Start())
	assert.Len(t, c.ListInDoubtTransactions(), 2)

	require.NoError(t, c.CommitPreparedTransaction(commit.String()))
	require.NoError(t, c.RollbackPreparedTransaction(rollback.String()))
	assert.Empty(t, c.ListInDoubtTransactions())

	items, err := h.persistence.ReadStream(5)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, uint64(1), items[0].ID)

	err = c.CommitPreparedTransaction(commit.String())
	assert.ErrorIs(t, err, txn.ErrUnknownTransaction)
}

// --------------------------------------------------------------------------
// Metrics
// --------------------------------------------------------------------------

func TestMetrics(t *testing.T) {
	h := startedHarness(t, index.ImplDefault)
	c := h.controller

	require.NoError(t, c.Register(&testLink{id: 1}))
	require.NoError(t, c.Register(&testLink{id: 2}))
	_, _, err := c.FindByID(1)
	require.NoError(t, err)

	var buf bytes.Buffer
	c.WriteMetrics(&buf)
	out := buf.String()

	assert.Contains(t, out, "itemstore_register_total 2")
	assert.Contains(t, out, "itemstore_lookup_total 1")
	assert.Contains(t, out, "itemstore_index_entries 2")
	assert.Contains(t, out, fmt.Sprintf("itemstore_state %d", store.StateStarted))

	assert.Equal(t, int64(1), c.Timings().Get("store.start").(interface{ Count() int64 }).Count())
}

func TestConfigString(t *testing.T) {
	conf := store.DefaultConfig()
	out := conf.String()
	assert.Contains(t, out, "INDEX")
	assert.Contains(t, out, string(index.ImplDefault))
	assert.Contains(t, out, "cache-loader")
	assert.Contains(t, out, "disabled")
}
