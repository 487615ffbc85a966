package store

import (
	"time"

	"github.com/ValentinKolb/itemstore/lib/store/xid"
	gometrics "github.com/rcrowley/go-metrics"
)

// --------------------------------------------------------------------------
// Item Types
// --------------------------------------------------------------------------

// Link is the in-memory handle of a stored item (message, reference or stream).
// The store indexes links by their id but never owns them.
type Link interface {
	// ID returns the unique 64-bit identifier of the item
	ID() uint64
}

// RootRecord is the persistent anchor of a store. A store without a root record can not be started.
type RootRecord struct {
	ID      uint64
	Streams []uint64 // ids of all streams known to the backend
}

// ItemRecord is the persistent form of an item
type ItemRecord struct {
	ID       uint64
	StreamID uint64
	Data     []byte
}

// Batch is a set of changes that is applied atomically by the persistence backend
type Batch struct {
	Puts    []ItemRecord
	Deletes []uint64
}

// Len returns the number of changes in the batch
func (b Batch) Len() int {
	return len(b.Puts) + len(b.Deletes)
}

// --------------------------------------------------------------------------
// Collaborator Interfaces
// --------------------------------------------------------------------------

// IPersistence is the durable backend of the store.
// A backend is started when the store starts and stopped when it stops,
// it may be started again afterward (restart).
type IPersistence interface {
	// Start opens (or reopens) the backend.
	Start() (err error)
	// Stop closes the backend. Stop must be safe to call on a backend that was never started.
	Stop()
	// ReadRootRecord returns the root record, or nil (without error) if the backend has none.
	ReadRootRecord() (root *RootRecord, err error)
	// UniqueKeyGenerator returns the generator with the given name. The generator
	// reserves rangeSize values from the backend at a time.
	UniqueKeyGenerator(name string, rangeSize uint64) (gen IUniqueKeyGenerator, err error)
	// ReadStream returns all items of a stream.
	ReadStream(streamID uint64) (items []ItemRecord, err error)
	// Apply applies a batch atomically.
	Apply(batch Batch) (err error)
	// Prepare stores a batch as the first phase of a two-phase transaction.
	Prepare(x xid.XID, batch Batch) (err error)
	// ReadPrepared returns the ids of all prepared but not yet completed transactions.
	ReadPrepared() (xids []xid.XID, err error)
	// Complete commits (applies) or rolls back (discards) a prepared transaction.
	Complete(x xid.XID, commit bool) (err error)
}

// IUniqueKeyGenerator hands out unique, increasing values
type IUniqueKeyGenerator interface {
	GetUniqueValue() (value uint64, err error)
}

// ITransactionResolver resolves two-phase transactions that were prepared but not completed
type ITransactionResolver interface {
	// Open replays the in-doubt transactions of the backend.
	Open(p IPersistence) (err error)
	// Enlist makes a transaction that was prepared while the store is running known to the resolver.
	Enlist(x xid.XID)
	// Commit completes an in-doubt transaction by applying it.
	Commit(x xid.XID) (err error)
	// Rollback completes an in-doubt transaction by discarding it.
	Rollback(x xid.XID) (err error)
	// ListInDoubt returns all in-doubt transactions.
	ListInDoubt() (xids []xid.XID)
	// Close releases the resolver. It is not used afterward.
	Close()
}

// IScannerOwner is the view a background scanner has of the store.
// IScanner.Stop is called without the controller lock held, so a scanner may
// use any controller method while it is being stopped.
type IScannerOwner interface {
	State() State
	FindByID(key uint64) (link Link, ok bool, err error)
	Unregister(link Link) (removed bool, err error)
}

// IScanner is a background task (expiry, delivery delay, cache loading).
// Scanners are started after everything else when the store starts and stopped first when it stops.
type IScanner interface {
	Start(interval time.Duration, owner IScannerOwner)
	Stop()
}

// ScannerKind names the background scanners of the store
type ScannerKind string

const (
	ScannerExpirer       ScannerKind = "expirer"
	ScannerDeliveryDelay ScannerKind = "delivery-delay"
	ScannerCacheLoader   ScannerKind = "cache-loader"
)

// ScannerKinds lists all scanners in the order they are started
var ScannerKinds = []ScannerKind{ScannerExpirer, ScannerDeliveryDelay, ScannerCacheLoader}

// --------------------------------------------------------------------------
// Factories
// --------------------------------------------------------------------------

// PersistenceFactory creates the persistence backend for a configuration.
// It is called on every start.
type PersistenceFactory func(conf Config) (IPersistence, error)

// ResolverFactory creates a fresh transaction resolver. It is called on every start.
type ResolverFactory func() ITransactionResolver

// ScannerFactory creates a scanner. It is called on every start.
type ScannerFactory func(kind ScannerKind) IScanner

// Dependencies are the collaborators of a Controller. Persistence is required,
// a missing Resolver disables prepared transaction resolution and a missing
// Scanners factory disables all scanners.
type Dependencies struct {
	Persistence PersistenceFactory
	Resolver    ResolverFactory
	Scanners    ScannerFactory

	// Timings receives the lifecycle timers (nil = private registry)
	Timings gometrics.Registry
}
