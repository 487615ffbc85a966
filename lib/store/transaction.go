package store

import (
	"fmt"
	"sync"

	"github.com/ValentinKolb/itemstore/lib/store/xid"
)

// TransactionFactory creates transactions that write to the persistence backend
// of a started store. The factory is replaced on every start.
type TransactionFactory struct {
	persistence IPersistence
	resolver    ITransactionResolver
	maxSize     int
}

func newTransactionFactory(p IPersistence, r ITransactionResolver, maxSize int) *TransactionFactory {
	return &TransactionFactory{
		persistence: p,
		resolver:    r,
		maxSize:     maxSize,
	}
}

// MaxSize returns the maximum number of changes per transaction
func (f *TransactionFactory) MaxSize() int {
	return f.maxSize
}

// NewTransaction creates a new, empty transaction
func (f *TransactionFactory) NewTransaction() *Transaction {
	return &Transaction{factory: f}
}

// Transaction buffers changes until it is committed, prepared or rolled back.
//
// Thread-safety: This type is thread-safe, but a transaction is usually owned by a single goroutine.
type Transaction struct {
	factory *TransactionFactory

	mu    sync.Mutex
	batch Batch
	done  bool
}

// Put adds a write of the item to the transaction
func (t *Transaction) Put(item ItemRecord) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.checkAdd(); err != nil {
		return err
	}
	t.batch.Puts = append(t.batch.Puts, item)
	return nil
}

// Delete adds the removal of an item to the transaction
func (t *Transaction) Delete(id uint64) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.checkAdd(); err != nil {
		return err
	}
	t.batch.Deletes = append(t.batch.Deletes, id)
	return nil
}

// checkAdd must be called with t.mu held
func (t *Transaction) checkAdd() error {
	if t.done {
		return ErrTransactionCompleted
	}
	if t.batch.Len() >= t.factory.maxSize {
		return fmt.Errorf("%w: limit is %d changes", ErrTransactionTooLarge, t.factory.maxSize)
	}
	return nil
}

// Size returns the number of changes in the transaction
func (t *Transaction) Size() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.batch.Len()
}

// Commit applies all changes in one step (one-phase commit)
func (t *Transaction) Commit() error {
	batch, err := t.complete()
	if err != nil {
		return err
	}
	if batch.Len() == 0 {
		return nil
	}
	return t.factory.persistence.Apply(batch)
}

// Prepare durably stores the changes as the first phase of a two-phase commit.
// The transaction is in doubt afterward until it is resolved with
// Controller.CommitPreparedTransaction or Controller.RollbackPreparedTransaction.
func (t *Transaction) Prepare(x xid.XID) error {
	if err := x.Validate(); err != nil {
		return WrapError(RetCInvalidTransactionID, "invalid transaction id", err)
	}
	batch, err := t.complete()
	if err != nil {
		return err
	}
	if err := t.factory.persistence.Prepare(x, batch); err != nil {
		return err
	}
	if t.factory.resolver != nil {
		t.factory.resolver.Enlist(x)
	}
	return nil
}

// Rollback discards all changes
func (t *Transaction) Rollback() {
	_, _ = t.complete()
}

// complete marks the transaction as done and returns its changes
func (t *Transaction) complete() (Batch, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.done {
		return Batch{}, ErrTransactionCompleted
	}
	t.done = true
	batch := t.batch
	t.batch = Batch{}
	return batch, nil
}
