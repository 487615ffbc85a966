package memory

import (
	"cmp"
	"errors"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/ValentinKolb/itemstore/lib/store"
	"github.com/ValentinKolb/itemstore/lib/store/xid"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/puzpuzpuz/xsync/v3"
)

var log = logger.GetLogger("persistence")

// RootID is the id of the root record the backend creates
const RootID uint64 = 1

var (
	// ErrNotStarted is returned by every operation on a stopped backend
	ErrNotStarted = errors.New("memory backend is not started")
	// ErrUnknownTransaction is returned if a prepared transaction does not exist
	ErrUnknownTransaction = errors.New("prepared transaction not found")
	// ErrDuplicateTransaction is returned if a transaction id is prepared twice
	ErrDuplicateTransaction = errors.New("transaction already prepared")
)

// Option configures a Backend
type Option func(*Backend)

// WithoutRoot disables the creation of the root record on start
func WithoutRoot() Option {
	return func(b *Backend) {
		b.createRoot = false
	}
}

type prepared struct {
	xid   xid.XID
	batch store.Batch
}

// Backend is an in-memory store.IPersistence.
//
// Thread-safety: This type is thread-safe. Batches are applied under a write lock,
// so readers never observe a partially applied batch.
type Backend struct {
	createRoot bool
	started    atomic.Bool

	// mu makes batches atomic with respect to readers
	mu         sync.RWMutex
	root       *store.RootRecord
	items      *xsync.MapOf[uint64, store.ItemRecord]
	prepared   *xsync.MapOf[string, prepared]
	generators *xsync.MapOf[string, *generator]
}

// NewBackend creates a stopped backend
func NewBackend(opts ...Option) *Backend {
	b := &Backend{
		createRoot: true,
		items:      xsync.NewMapOf[uint64, store.ItemRecord](),
		prepared:   xsync.NewMapOf[string, prepared](),
		generators: xsync.NewMapOf[string, *generator](),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// --------------------------------------------------------------------------
// Interface Methods (docu see store.IPersistence)
// --------------------------------------------------------------------------

func (b *Backend) Start() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.root == nil && b.createRoot {
		b.root = &store.RootRecord{ID: RootID}
		log.Infof("created root record %d", RootID)
	}
	b.started.Store(true)
	return nil
}

func (b *Backend) Stop() {
	b.started.Store(false)
}

func (b *Backend) ReadRootRecord() (*store.RootRecord, error) {
	if !b.started.Load() {
		return nil, ErrNotStarted
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.root == nil {
		return nil, nil
	}
	root := &store.RootRecord{ID: b.root.ID, Streams: b.streams()}
	return root, nil
}

// streams returns the sorted ids of all streams with at least one item
func (b *Backend) streams() []uint64 {
	seen := make(map[uint64]struct{})
	b.items.Range(func(_ uint64, item store.ItemRecord) bool {
		seen[item.StreamID] = struct{}{}
		return true
	})
	out := make([]uint64, 0, len(seen))
	for id := range seen {
		out = append(out, id)
	}
	slices.Sort(out)
	return out
}

func (b *Backend) UniqueKeyGenerator(name string, _ uint64) (store.IUniqueKeyGenerator, error) {
	if !b.started.Load() {
		return nil, ErrNotStarted
	}
	gen, _ := b.generators.LoadOrCompute(name, func() *generator {
		return &generator{backend: b}
	})
	return gen, nil
}

func (b *Backend) ReadStream(streamID uint64) ([]store.ItemRecord, error) {
	if !b.started.Load() {
		return nil, ErrNotStarted
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	var out []store.ItemRecord
	b.items.Range(func(_ uint64, item store.ItemRecord) bool {
		if item.StreamID == streamID {
			out = append(out, item)
		}
		return true
	})
	slices.SortFunc(out, func(x, y store.ItemRecord) int {
		return cmp.Compare(x.ID, y.ID)
	})
	return out, nil
}

func (b *Backend) Apply(batch store.Batch) error {
	if !b.started.Load() {
		return ErrNotStarted
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.apply(batch)
	return nil
}

// apply must be called with b.mu held
func (b *Backend) apply(batch store.Batch) {
	for _, item := range batch.Puts {
		item.Data = slices.Clone(item.Data)
		b.items.Store(item.ID, item)
	}
	for _, id := range batch.Deletes {
		b.items.Delete(id)
	}
}

func (b *Backend) Prepare(x xid.XID, batch store.Batch) error {
	if !b.started.Load() {
		return ErrNotStarted
	}

	key := x.String()
	if _, loaded := b.prepared.LoadOrStore(key, prepared{xid: x, batch: batch}); loaded {
		return fmt.Errorf("%w: %s", ErrDuplicateTransaction, key)
	}
	return nil
}

func (b *Backend) ReadPrepared() ([]xid.XID, error) {
	if !b.started.Load() {
		return nil, ErrNotStarted
	}

	out := make([]xid.XID, 0, b.prepared.Size())
	b.prepared.Range(func(_ string, p prepared) bool {
		out = append(out, p.xid)
		return true
	})
	return out, nil
}

func (b *Backend) Complete(x xid.XID, commit bool) error {
	if !b.started.Load() {
		return ErrNotStarted
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	p, ok := b.prepared.LoadAndDelete(x.String())
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownTransaction, x)
	}
	if commit {
		b.apply(p.batch)
	}
	return nil
}

// Len returns the number of stored items
func (b *Backend) Len() int {
	return b.items.Size()
}

// --------------------------------------------------------------------------
// Unique Key Generator
// --------------------------------------------------------------------------

// generator hands out increasing values starting at 1. Its counter lives as long as the backend.
type generator struct {
	backend *Backend
	last    atomic.Uint64
}

func (g *generator) GetUniqueValue() (uint64, error) {
	if !g.backend.started.Load() {
		return 0, ErrNotStarted
	}
	return g.last.Add(1), nil
}
