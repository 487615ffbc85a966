package persistence

import (
	"fmt"

	"github.com/ValentinKolb/itemstore/lib/store"
	"github.com/ValentinKolb/itemstore/lib/store/persistence/memory"
	"github.com/ValentinKolb/itemstore/lib/store/persistence/sqlite"
)

// New is a store.PersistenceFactory creating the backend named in the configuration
func New(conf store.Config) (store.IPersistence, error) {
	switch conf.Persistence {
	case store.PersistenceMemory, "":
		return memory.NewBackend(), nil
	case store.PersistenceSQLite:
		if conf.DataPath == "" {
			return nil, fmt.Errorf("the %s backend requires a data path", conf.Persistence)
		}
		return sqlite.NewBackend(conf.DataPath), nil
	default:
		return nil, fmt.Errorf("unknown persistence backend %q", conf.Persistence)
	}
}

// Shared returns a store.PersistenceFactory that always returns the same backend.
// This keeps the data of a memory backend across restarts of a store.
func Shared(conf store.Config) (store.PersistenceFactory, error) {
	p, err := New(conf)
	if err != nil {
		return nil, err
	}
	return func(store.Config) (store.IPersistence, error) {
		return p, nil
	}, nil
}
