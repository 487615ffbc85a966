package store

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ValentinKolb/itemstore/lib/index"
	"github.com/ValentinKolb/itemstore/lib/index/engines"
	"github.com/ValentinKolb/itemstore/lib/store/xid"
	"github.com/lni/dragonboat/v4/logger"
	"golang.org/x/sync/errgroup"
)

var log = logger.GetLogger("store")

// Names of the unique-key generators acquired on start
const (
	GeneratorItemID = "item-id"
	GeneratorTick   = "tick"
)

// --------------------------------------------------------------------------
// Controller
// --------------------------------------------------------------------------

// activeIndex wraps the index interface so it can be published atomically
type activeIndex struct {
	index.ILongKeyedIndex[Link]
}

// Controller owns the id index of a store and drives its lifecycle:
//
//	Uninitialized --Initialize--> Stopped --Start--> Starting --> Started
//	Started/Starting --Stop--> Stopped --Destroy--> Uninitialized
//
// The index is created fresh on every Start and discarded on every Stop.
//
// Thread-safety: All methods are thread-safe. Lifecycle operations are serialized by one lock,
// the hot path (Register, Unregister, FindByID, GetLink) only reads the atomic state.
type Controller struct {
	deps    Dependencies
	metrics *controllerMetrics

	// mu serializes lifecycle operations and guards every field below it
	mu     sync.Mutex
	state  atomic.Int32
	health atomic.Int32
	idx    atomic.Pointer[activeIndex]

	conf        Config
	persistence IPersistence
	itemIDs     IUniqueKeyGenerator
	ticks       IUniqueKeyGenerator
	resolver    ITransactionResolver
	root        *RootRecord
	txFactory   *TransactionFactory
	scanners    []IScanner

	failuresMu sync.Mutex
	failures   []error
}

// NewController creates a controller in the Uninitialized state
func NewController(deps Dependencies) *Controller {
	c := &Controller{deps: deps}
	c.metrics = newControllerMetrics(c, deps.Timings)
	return c
}

// --------------------------------------------------------------------------
// Lifecycle
// --------------------------------------------------------------------------

// Initialize stores the configuration and moves the controller from Uninitialized to Stopped
func (c *Controller) Initialize(conf Config) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if s := c.State(); s != StateUninitialized {
		return NewError(RetCInvalidState, fmt.Sprintf("can not initialize store in state %s", s))
	}
	c.conf = conf.withDefaults()
	c.state.Store(int32(StateStopped))
	log.Infof("store initialized (index %s, persistence %s)", c.conf.Index.Implementation, c.conf.Persistence)
	return nil
}

// Reload replaces the configuration without checking or changing the state.
// The new configuration takes effect on the next Start.
func (c *Controller) Reload(conf Config) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.conf = conf.withDefaults()
	log.Infof("store configuration reloaded")
}

// Config returns the current configuration
func (c *Controller) Config() Config {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conf
}

// Start runs the startup sequence. It is only legal in the Stopped state.
// If any step fails, the failure is recorded, everything that was started is torn
// down again, the health is degraded and the original error is returned.
func (c *Controller) Start() error {
	c.mu.Lock()
	if s := c.State(); s != StateStopped {
		c.mu.Unlock()
		return NewError(RetCInvalidState, fmt.Sprintf("can not start store in state %s", s))
	}
	c.state.Store(int32(StateStarting))
	conf := c.conf
	c.mu.Unlock()

	begin := time.Now()
	if err := c.startup(conf); err != nil {
		return err
	}
	c.metrics.startTime.UpdateSince(begin)
	log.Infof("store started in %s", time.Since(begin))
	return nil
}

// Stop tears the store down. It is legal in every state except Uninitialized
// and always ends in Stopped.
//
// The scanners are stopped without holding the lock, so a pass that is still
// running may call lock-taking methods such as NextItemID or RootRecord.
func (c *Controller) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if s := c.State(); s == StateUninitialized {
		return NewError(RetCInvalidState, fmt.Sprintf("can not stop store in state %s", s))
	}

	begin := time.Now()
	for scanners := c.detachScanners(); len(scanners) > 0; scanners = c.detachScanners() {
		c.mu.Unlock()
		stopScanners(scanners)
		c.mu.Lock()
	}

	// a concurrent Stop and Destroy may have completed while the lock was released
	if s := c.State(); s == StateUninitialized {
		return NewError(RetCInvalidState, fmt.Sprintf("store was destroyed while stopping (now %s)", s))
	}

	c.teardown()
	c.metrics.stopTime.UpdateSince(begin)
	log.Infof("store stopped")
	return nil
}

// Destroy moves the controller from Stopped back to Uninitialized
func (c *Controller) Destroy() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if s := c.State(); s != StateStopped {
		return NewError(RetCInvalidState, fmt.Sprintf("can not destroy store in state %s", s))
	}
	c.state.Store(int32(StateUninitialized))
	log.Infof("store destroyed")
	return nil
}

// startupResources holds everything created before the controller lock is taken.
// Nothing in here is visible to other goroutines until it is published.
type startupResources struct {
	idx         index.ILongKeyedIndex[Link]
	persistence IPersistence
	itemIDs     IUniqueKeyGenerator
	ticks       IUniqueKeyGenerator
}

// release stops what was created but never published
func (r *startupResources) release() {
	if r.idx != nil {
		r.idx.Clear()
	}
	if r.persistence != nil {
		r.persistence.Stop()
	}
}

func (c *Controller) startup(conf Config) error {
	c.health.Store(int32(HealthOK))
	c.clearFailures()

	res := &startupResources{}
	if err := c.prepareStartup(conf, res); err != nil {
		res.release()
		c.failStartup(err, true)
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	// a concurrent Stop may have intervened while the lock was not held
	if s := c.State(); s != StateStarting {
		res.release()
		err := NewError(RetCInvalidState, fmt.Sprintf("store left the starting state (now %s)", s))
		c.failStartup(err, false)
		return err
	}

	// from here on teardown is responsible for the resources
	c.persistence = res.persistence
	c.itemIDs = res.itemIDs
	c.ticks = res.ticks
	c.idx.Store(&activeIndex{res.idx})

	if err := c.finishStartup(conf); err != nil {
		c.teardown()
		c.failStartup(err, false)
		return err
	}

	c.state.Store(int32(StateStarted))
	return nil
}

// prepareStartup builds the index, starts the persistence backend and acquires the generators
func (c *Controller) prepareStartup(conf Config, res *startupResources) error {
	impl, ok := index.ParseImplementation(string(conf.Index.Implementation))
	if !ok {
		log.Warningf("unknown index implementation %q, falling back to %s", conf.Index.Implementation, impl)
	}
	conf.Index.Implementation = impl
	res.idx = engines.New[Link](conf.Index)
	log.Debugf("created index %s", conf.Index)

	if c.deps.Persistence == nil {
		return NewError(RetCInternalError, "no persistence backend configured")
	}
	p, err := c.deps.Persistence(conf)
	if err != nil {
		return WrapError(RetCInternalError, "failed to create persistence backend", err)
	}
	res.persistence = p
	if err := p.Start(); err != nil {
		return WrapError(RetCInternalError, "failed to start persistence backend", err)
	}

	if res.itemIDs, err = p.UniqueKeyGenerator(GeneratorItemID, conf.UniqueKeyRange); err != nil {
		return WrapError(RetCInternalError, fmt.Sprintf("failed to acquire generator %q", GeneratorItemID), err)
	}
	if res.ticks, err = p.UniqueKeyGenerator(GeneratorTick, conf.UniqueKeyRange); err != nil {
		return WrapError(RetCInternalError, fmt.Sprintf("failed to acquire generator %q", GeneratorTick), err)
	}
	return nil
}

// finishStartup must be called with c.mu held
func (c *Controller) finishStartup(conf Config) error {
	if c.deps.Resolver != nil {
		r := c.deps.Resolver()
		c.resolver = r
		if err := r.Open(c.persistence); err != nil {
			return WrapError(RetCInternalError, "failed to open transaction resolver", err)
		}
		if inDoubt := r.ListInDoubt(); len(inDoubt) > 0 {
			log.Warningf("%d prepared transactions are in doubt", len(inDoubt))
		}
	}

	root, err := c.persistence.ReadRootRecord()
	if err != nil {
		return WrapError(RetCInternalError, "failed to read root record", err)
	}
	if root == nil {
		return NewError(RetCRootRecordMissing, "persistence backend has no root record")
	}
	c.root = root

	c.txFactory = newTransactionFactory(c.persistence, c.resolver, conf.MaxTransactionSize)

	// scanners are started last
	if c.deps.Scanners != nil {
		for _, kind := range ScannerKinds {
			interval := conf.ScannerInterval(kind)
			if interval <= 0 {
				continue
			}
			s := c.deps.Scanners(kind)
			if s == nil {
				continue
			}
			s.Start(interval, c)
			c.scanners = append(c.scanners, s)
		}
	}
	return nil
}

// failStartup records a failed start attempt. If teardown is set, the controller
// lock is acquired and everything that was published is torn down.
func (c *Controller) failStartup(err error, teardown bool) {
	c.recordFailure(err)
	if teardown {
		c.mu.Lock()
		if c.State() == StateStarting {
			c.teardown()
		}
		c.mu.Unlock()
	}
	c.health.Store(int32(HealthDegraded))
	c.metrics.startFailures.Inc()
	log.Errorf("store failed to start: %v", err)
}

// detachScanners hands the running scanners to the caller, who has to stop
// them after releasing c.mu.
//
// Thread-safety: must be called with c.mu held.
func (c *Controller) detachScanners() []IScanner {
	scanners := c.scanners
	c.scanners = nil
	return scanners
}

// stopScanners stops all scanners concurrently and waits for them
func stopScanners(scanners []IScanner) {
	var g errgroup.Group
	for _, s := range scanners {
		g.Go(func() error {
			s.Stop()
			return nil
		})
	}
	_ = g.Wait()
}

// teardown releases everything the store holds and sets the state to Stopped.
// Every step tolerates a collaborator that was never created. Scanners are not
// touched, Stop detaches and stops them before.
//
// Thread-safety: must be called with c.mu held.
func (c *Controller) teardown() {
	if old := c.idx.Swap(nil); old != nil {
		old.Clear()
	}

	if c.persistence != nil {
		c.persistence.Stop()
		c.persistence = nil
	}
	c.itemIDs = nil
	c.ticks = nil
	c.txFactory = nil

	if c.resolver != nil {
		c.resolver.Close()
		c.resolver = nil
	}
	c.root = nil

	c.state.Store(int32(StateStopped))
}

// --------------------------------------------------------------------------
// Startup Failures & Health
// --------------------------------------------------------------------------

func (c *Controller) recordFailure(err error) {
	c.failuresMu.Lock()
	defer c.failuresMu.Unlock()
	c.failures = append(c.failures, err)
}

func (c *Controller) clearFailures() {
	c.failuresMu.Lock()
	defer c.failuresMu.Unlock()
	c.failures = nil
}

// StartupFailures returns the failures of the last start attempt in the order they occurred
func (c *Controller) StartupFailures() []error {
	c.failuresMu.Lock()
	defer c.failuresMu.Unlock()
	out := make([]error, len(c.failures))
	copy(out, c.failures)
	return out
}

// StartupError returns all failures of the last start attempt joined into one error (nil if there were none)
func (c *Controller) StartupError() error {
	return errors.Join(c.StartupFailures()...)
}

// firstFailure returns the first startup failure or ErrUnavailable
func (c *Controller) firstFailure() error {
	c.failuresMu.Lock()
	defer c.failuresMu.Unlock()
	if len(c.failures) > 0 {
		return c.failures[0]
	}
	return ErrUnavailable
}

// State returns the current lifecycle state
func (c *Controller) State() State {
	return State(c.state.Load())
}

// Health returns the current health
func (c *Controller) Health() Health {
	return Health(c.health.Load())
}

// --------------------------------------------------------------------------
// Hot Path
// --------------------------------------------------------------------------

// active returns the index if the store is started
func (c *Controller) active() (index.ILongKeyedIndex[Link], error) {
	if c.State() == StateStarted {
		if idx := c.idx.Load(); idx != nil {
			return idx.ILongKeyedIndex, nil
		}
	}
	c.metrics.unavailable.Inc()
	return nil, WrapError(RetCStoreUnavailable, "store is not available", c.firstFailure())
}

// Register makes the link findable by its id.
// Registering the same id twice keeps both links, the newer one is found first.
func (c *Controller) Register(link Link) error {
	idx, err := c.active()
	if err != nil {
		return err
	}
	idx.Put(link.ID(), link)
	c.metrics.registered.Inc()
	return nil
}

// Unregister removes one link with the id of the given link.
// It returns false if no link with that id was registered.
func (c *Controller) Unregister(link Link) (bool, error) {
	idx, err := c.active()
	if err != nil {
		return false, err
	}
	_, ok := idx.Remove(link.ID())
	if ok {
		c.metrics.unregistered.Inc()
	}
	return ok, nil
}

// FindByID returns the most recently registered link with the given id
func (c *Controller) FindByID(key uint64) (Link, bool, error) {
	idx, err := c.active()
	if err != nil {
		return nil, false, err
	}
	c.metrics.lookups.Inc()
	link, ok := idx.Get(key)
	return link, ok, nil
}

// GetLink is an alias of FindByID
func (c *Controller) GetLink(key uint64) (Link, bool, error) {
	return c.FindByID(key)
}

// IndexSize returns the number of registered links. The boolean is false if the
// store is not started or the active index does not track its size.
func (c *Controller) IndexSize() (int, bool) {
	idx := c.idx.Load()
	if idx == nil {
		return 0, false
	}
	return index.SizeOf[Link](idx.ILongKeyedIndex)
}

// --------------------------------------------------------------------------
// Started-only Accessors
// --------------------------------------------------------------------------

func (c *Controller) unavailable() error {
	return WrapError(RetCStoreUnavailable, "store is not available", c.firstFailure())
}

// NextItemID returns a fresh item id
func (c *Controller) NextItemID() (uint64, error) {
	return c.nextValue(func() IUniqueKeyGenerator { return c.itemIDs })
}

// NextTick returns a fresh tick
func (c *Controller) NextTick() (uint64, error) {
	return c.nextValue(func() IUniqueKeyGenerator { return c.ticks })
}

func (c *Controller) nextValue(gen func() IUniqueKeyGenerator) (uint64, error) {
	c.mu.Lock()
	g := gen()
	started := c.State() == StateStarted
	c.mu.Unlock()

	if !started || g == nil {
		return 0, c.unavailable()
	}
	return g.GetUniqueValue()
}

// TransactionFactory returns the transaction factory of the running store
func (c *Controller) TransactionFactory() (*TransactionFactory, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.State() != StateStarted || c.txFactory == nil {
		return nil, c.unavailable()
	}
	return c.txFactory, nil
}

// RootRecord returns a copy of the root record of the running store
func (c *Controller) RootRecord() (RootRecord, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.State() != StateStarted || c.root == nil {
		return RootRecord{}, c.unavailable()
	}
	root := *c.root
	root.Streams = append([]uint64(nil), c.root.Streams...)
	return root, nil
}

// RebuildMembership reads every stream listed in the root record and registers
// the link fn creates for each item. fn may return nil to skip an item.
// It returns the number of registered links.
func (c *Controller) RebuildMembership(fn func(item ItemRecord) Link) (int, error) {
	c.mu.Lock()
	p, root := c.persistence, c.root
	started := c.State() == StateStarted
	c.mu.Unlock()

	if !started || p == nil || root == nil {
		return 0, c.unavailable()
	}

	count := 0
	for _, streamID := range root.Streams {
		items, err := p.ReadStream(streamID)
		if err != nil {
			return count, fmt.Errorf("failed to read stream %d: %w", streamID, err)
		}
		for _, item := range items {
			link := fn(item)
			if link == nil {
				continue
			}
			if err := c.Register(link); err != nil {
				return count, err
			}
			count++
		}
	}
	log.Infof("rebuilt membership: %d links from %d streams", count, len(root.Streams))
	return count, nil
}

// --------------------------------------------------------------------------
// Prepared Transactions
// --------------------------------------------------------------------------

// CommitPreparedTransaction commits the in-doubt transaction with the given id.
// It is a no-op if the store has no resolver (e.g. it is not started).
func (c *Controller) CommitPreparedTransaction(id string) error {
	return c.resolvePrepared(id, true)
}

// RollbackPreparedTransaction rolls back the in-doubt transaction with the given id.
// It is a no-op if the store has no resolver (e.g. it is not started).
func (c *Controller) RollbackPreparedTransaction(id string) error {
	return c.resolvePrepared(id, false)
}

func (c *Controller) resolvePrepared(id string, commit bool) error {
	x, err := xid.Parse(id)
	if err != nil {
		return WrapError(RetCInvalidTransactionID, fmt.Sprintf("invalid transaction id %q", id), err)
	}

	c.mu.Lock()
	r := c.resolver
	c.mu.Unlock()

	if r == nil {
		return nil
	}
	if commit {
		err = r.Commit(x)
	} else {
		err = r.Rollback(x)
	}
	if err != nil {
		return err
	}
	log.Infof("resolved prepared transaction %s (commit=%t)", x, commit)
	return nil
}

// ListInDoubtTransactions returns the ids of all prepared transactions awaiting resolution
func (c *Controller) ListInDoubtTransactions() []string {
	c.mu.Lock()
	r := c.resolver
	c.mu.Unlock()

	if r == nil {
		return nil
	}
	inDoubt := r.ListInDoubt()
	out := make([]string, len(inDoubt))
	for i, x := range inDoubt {
		out[i] = x.String()
	}
	return out
}
