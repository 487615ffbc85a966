package sqlite

import (
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"sync"

	"github.com/ValentinKolb/itemstore/lib/store"
	"github.com/ValentinKolb/itemstore/lib/store/xid"
	"github.com/lni/dragonboat/v4/logger"
	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

var log = logger.GetLogger("persistence")

// RootID is the id of the root record the backend creates
const RootID uint64 = 1

const (
	opPut    = 0
	opDelete = 1
)

var (
	// ErrNotStarted is returned by every operation on a stopped backend
	ErrNotStarted = errors.New("sqlite backend is not started")
	// ErrUnknownTransaction is returned if a prepared transaction does not exist
	ErrUnknownTransaction = errors.New("prepared transaction not found")
)

// Option configures a Backend
type Option func(*Backend)

// WithoutRoot disables the creation of the root record on start
func WithoutRoot() Option {
	return func(b *Backend) {
		b.createRoot = false
	}
}

// Backend is a store.IPersistence backed by a SQLite database file.
//
// Thread-safety: This type is thread-safe.
type Backend struct {
	path       string
	createRoot bool

	mu sync.RWMutex
	db *sql.DB
}

// NewBackend creates a stopped backend for the database at path. The file is created on the first start.
func NewBackend(path string, opts ...Option) *Backend {
	b := &Backend{
		path:       path,
		createRoot: true,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// --------------------------------------------------------------------------
// Lifecycle
// --------------------------------------------------------------------------

func (b *Backend) Start() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.db != nil {
		return nil
	}

	db, err := sql.Open("sqlite3", b.path)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return fmt.Errorf("failed to apply pragmas: %w", err)
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	if b.createRoot {
		if _, err := db.Exec("INSERT OR IGNORE INTO root (id) VALUES (?)", int64(RootID)); err != nil {
			db.Close()
			return fmt.Errorf("failed to create root record: %w", err)
		}
	}

	b.db = db
	log.Infof("opened sqlite database %s", b.path)
	return nil
}

func (b *Backend) Stop() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.db == nil {
		return
	}
	if err := b.db.Close(); err != nil {
		log.Warningf("failed to close sqlite database %s: %v", b.path, err)
	}
	b.db = nil
}

// applyPragmas sets required SQLite configuration.
func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}
	return nil
}

// withDB runs fn with the open database, holding the read lock so Stop waits for it
func (b *Backend) withDB(fn func(db *sql.DB) error) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.db == nil {
		return ErrNotStarted
	}
	return fn(b.db)
}

// inTx runs fn in a transaction and commits it if fn succeeds
func (b *Backend) inTx(fn func(tx *sql.Tx) error) error {
	return b.withDB(func(db *sql.DB) error {
		tx, err := db.Begin()
		if err != nil {
			return fmt.Errorf("failed to begin transaction: %w", err)
		}
		if err := fn(tx); err != nil {
			_ = tx.Rollback()
			return err
		}
		return tx.Commit()
	})
}

// --------------------------------------------------------------------------
// Interface Methods (docu see store.IPersistence)
// --------------------------------------------------------------------------

func (b *Backend) ReadRootRecord() (*store.RootRecord, error) {
	var root *store.RootRecord
	err := b.withDB(func(db *sql.DB) error {
		var id int64
		err := db.QueryRow("SELECT id FROM root ORDER BY id LIMIT 1").Scan(&id)
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to read root record: %w", err)
		}

		rows, err := db.Query("SELECT DISTINCT stream_id FROM items ORDER BY stream_id")
		if err != nil {
			return fmt.Errorf("failed to read streams: %w", err)
		}
		defer rows.Close()

		root = &store.RootRecord{ID: uint64(id)}
		for rows.Next() {
			var stream int64
			if err := rows.Scan(&stream); err != nil {
				return err
			}
			root.Streams = append(root.Streams, uint64(stream))
		}
		return rows.Err()
	})
	return root, err
}

func (b *Backend) UniqueKeyGenerator(name string, rangeSize uint64) (store.IUniqueKeyGenerator, error) {
	if rangeSize == 0 {
		rangeSize = 1
	}
	err := b.withDB(func(db *sql.DB) error {
		_, err := db.Exec("INSERT OR IGNORE INTO generators (name, next) VALUES (?, 1)", name)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create generator %q: %w", name, err)
	}
	return &generator{backend: b, name: name, rangeSize: rangeSize}, nil
}

func (b *Backend) ReadStream(streamID uint64) ([]store.ItemRecord, error) {
	var out []store.ItemRecord
	err := b.withDB(func(db *sql.DB) error {
		rows, err := db.Query("SELECT id, data FROM items WHERE stream_id = ? ORDER BY id", int64(streamID))
		if err != nil {
			return fmt.Errorf("failed to read stream %d: %w", streamID, err)
		}
		defer rows.Close()

		for rows.Next() {
			var id int64
			var data []byte
			if err := rows.Scan(&id, &data); err != nil {
				return err
			}
			out = append(out, store.ItemRecord{ID: uint64(id), StreamID: streamID, Data: data})
		}
		return rows.Err()
	})
	return out, err
}

func (b *Backend) Apply(batch store.Batch) error {
	return b.inTx(func(tx *sql.Tx) error {
		return applyBatch(tx, batch)
	})
}

func applyBatch(tx *sql.Tx, batch store.Batch) error {
	for _, item := range batch.Puts {
		if _, err := tx.Exec(
			"INSERT OR REPLACE INTO items (id, stream_id, data) VALUES (?, ?, ?)",
			int64(item.ID), int64(item.StreamID), item.Data,
		); err != nil {
			return fmt.Errorf("failed to write item %d: %w", item.ID, err)
		}
	}
	for _, id := range batch.Deletes {
		if _, err := tx.Exec("DELETE FROM items WHERE id = ?", int64(id)); err != nil {
			return fmt.Errorf("failed to delete item %d: %w", id, err)
		}
	}
	return nil
}

func (b *Backend) Prepare(x xid.XID, batch store.Batch) error {
	key := x.String()
	return b.inTx(func(tx *sql.Tx) error {
		if _, err := tx.Exec("INSERT INTO prepared (xid) VALUES (?)", key); err != nil {
			return fmt.Errorf("failed to prepare transaction %s: %w", key, err)
		}

		seq := 0
		for _, item := range batch.Puts {
			if _, err := tx.Exec(
				"INSERT INTO prepared_ops (xid, seq, op, item_id, stream_id, data) VALUES (?, ?, ?, ?, ?, ?)",
				key, seq, opPut, int64(item.ID), int64(item.StreamID), item.Data,
			); err != nil {
				return fmt.Errorf("failed to prepare transaction %s: %w", key, err)
			}
			seq++
		}
		for _, id := range batch.Deletes {
			if _, err := tx.Exec(
				"INSERT INTO prepared_ops (xid, seq, op, item_id) VALUES (?, ?, ?, ?)",
				key, seq, opDelete, int64(id),
			); err != nil {
				return fmt.Errorf("failed to prepare transaction %s: %w", key, err)
			}
			seq++
		}
		return nil
	})
}

func (b *Backend) ReadPrepared() ([]xid.XID, error) {
	var out []xid.XID
	err := b.withDB(func(db *sql.DB) error {
		rows, err := db.Query("SELECT xid FROM prepared ORDER BY xid")
		if err != nil {
			return fmt.Errorf("failed to read prepared transactions: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			var s string
			if err := rows.Scan(&s); err != nil {
				return err
			}
			x, err := xid.Parse(s)
			if err != nil {
				log.Warningf("skipping prepared transaction with malformed id %q: %v", s, err)
				continue
			}
			out = append(out, x)
		}
		return rows.Err()
	})
	return out, err
}

func (b *Backend) Complete(x xid.XID, commit bool) error {
	key := x.String()
	return b.inTx(func(tx *sql.Tx) error {
		batch, err := readPreparedBatch(tx, key)
		if err != nil {
			return err
		}
		if commit {
			if err := applyBatch(tx, batch); err != nil {
				return err
			}
		}
		res, err := tx.Exec("DELETE FROM prepared WHERE xid = ?", key)
		if err != nil {
			return fmt.Errorf("failed to complete transaction %s: %w", key, err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("%w: %s", ErrUnknownTransaction, key)
		}
		return nil
	})
}

func readPreparedBatch(tx *sql.Tx, key string) (store.Batch, error) {
	rows, err := tx.Query("SELECT op, item_id, stream_id, data FROM prepared_ops WHERE xid = ? ORDER BY seq", key)
	if err != nil {
		return store.Batch{}, fmt.Errorf("failed to read transaction %s: %w", key, err)
	}
	defer rows.Close()

	var batch store.Batch
	for rows.Next() {
		var op int
		var id int64
		var stream sql.NullInt64
		var data []byte
		if err := rows.Scan(&op, &id, &stream, &data); err != nil {
			return store.Batch{}, err
		}
		if op == opDelete {
			batch.Deletes = append(batch.Deletes, uint64(id))
		} else {
			batch.Puts = append(batch.Puts, store.ItemRecord{ID: uint64(id), StreamID: uint64(stream.Int64), Data: data})
		}
	}
	return batch, rows.Err()
}

// --------------------------------------------------------------------------
// Unique Key Generator
// --------------------------------------------------------------------------

// generator reserves rangeSize values per database round trip
type generator struct {
	backend   *Backend
	name      string
	rangeSize uint64

	mu    sync.Mutex
	next  uint64 // next value to hand out
	limit uint64 // first value not reserved
}

func (g *generator) GetUniqueValue() (uint64, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.next == g.limit {
		if err := g.reserve(); err != nil {
			return 0, err
		}
	}
	v := g.next
	g.next++
	return v, nil
}

// reserve must be called with g.mu held
func (g *generator) reserve() error {
	return g.backend.inTx(func(tx *sql.Tx) error {
		var next int64
		if err := tx.QueryRow("SELECT next FROM generators WHERE name = ?", g.name).Scan(&next); err != nil {
			return fmt.Errorf("failed to read generator %q: %w", g.name, err)
		}
		limit := uint64(next) + g.rangeSize
		if _, err := tx.Exec("UPDATE generators SET next = ? WHERE name = ?", int64(limit), g.name); err != nil {
			return fmt.Errorf("failed to reserve range of generator %q: %w", g.name, err)
		}
		g.next = uint64(next)
		g.limit = limit
		return nil
	})
}
