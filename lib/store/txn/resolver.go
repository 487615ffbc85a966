package txn

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/ValentinKolb/itemstore/lib/store"
	"github.com/ValentinKolb/itemstore/lib/store/xid"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/puzpuzpuz/xsync/v3"
)

var log = logger.GetLogger("txn")

var (
	// ErrUnknownTransaction is returned if a transaction is not in doubt
	ErrUnknownTransaction = errors.New("unknown transaction")
	// ErrNotOpen is returned if the resolver is used before Open or after Close
	ErrNotOpen = errors.New("transaction resolver is not open")
)

// Resolver is the default store.ITransactionResolver.
//
// Thread-safety: This type is thread-safe.
type Resolver struct {
	mu          sync.RWMutex
	persistence store.IPersistence

	// in-doubt transactions by their canonical string form
	inDoubt *xsync.MapOf[string, xid.XID]
}

// NewResolver creates a resolver that is not yet open
func NewResolver() *Resolver {
	return &Resolver{
		inDoubt: xsync.NewMapOf[string, xid.XID](),
	}
}

// Factory is a store.ResolverFactory creating default resolvers
func Factory() store.ITransactionResolver {
	return NewResolver()
}

// --------------------------------------------------------------------------
// Interface Methods (docu see store.ITransactionResolver)
// --------------------------------------------------------------------------

func (r *Resolver) Open(p store.IPersistence) error {
	prepared, err := p.ReadPrepared()
	if err != nil {
		return fmt.Errorf("failed to read prepared transactions: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.persistence = p
	r.inDoubt.Clear()
	for _, x := range prepared {
		r.inDoubt.Store(x.String(), x)
	}
	if len(prepared) > 0 {
		log.Infof("replayed %d prepared transactions", len(prepared))
	}
	return nil
}

func (r *Resolver) Enlist(x xid.XID) {
	r.inDoubt.Store(x.String(), x)
}

func (r *Resolver) Commit(x xid.XID) error {
	return r.complete(x, true)
}

func (r *Resolver) Rollback(x xid.XID) error {
	return r.complete(x, false)
}

// complete removes the transaction from the in-doubt set first, so concurrent
// resolutions of the same id complete it only once
func (r *Resolver) complete(x xid.XID, commit bool) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.persistence == nil {
		return ErrNotOpen
	}

	key := x.String()
	if _, ok := r.inDoubt.LoadAndDelete(key); !ok {
		return fmt.Errorf("%w: %s", ErrUnknownTransaction, key)
	}
	if err := r.persistence.Complete(x, commit); err != nil {
		// still in doubt
		r.inDoubt.Store(key, x)
		return err
	}
	log.Debugf("completed transaction %s (commit=%t)", key, commit)
	return nil
}

func (r *Resolver) ListInDoubt() []xid.XID {
	out := make([]xid.XID, 0, r.inDoubt.Size())
	r.inDoubt.Range(func(_ string, x xid.XID) bool {
		out = append(out, x)
		return true
	})
	sort.Slice(out, func(i, j int) bool {
		return out[i].String() < out[j].String()
	})
	return out
}

func (r *Resolver) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.persistence = nil
	r.inDoubt.Clear()
}
