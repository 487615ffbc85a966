package store

import (
	"fmt"
	"strings"
	"time"

	"github.com/ValentinKolb/itemstore/lib/index"
)

// Defaults for Config
const (
	DefaultMaxTransactionSize = 10_000
	DefaultUniqueKeyRange     = 1_000
)

// PersistenceType names a persistence backend
type PersistenceType string

const (
	PersistenceMemory PersistenceType = "memory"
	PersistenceSQLite PersistenceType = "sqlite"
)

// Config holds all configuration parameters of a store.
// The configuration is read when the store starts, changes made with Reload
// only take effect on the next start.
type Config struct {
	// Index selects and sizes the id index
	Index index.Config

	// Persistence parameters
	Persistence    PersistenceType
	DataPath       string
	UniqueKeyRange uint64 // values reserved per generator round trip

	// MaxTransactionSize is the maximum number of changes in a single transaction
	MaxTransactionSize int

	// Scanner intervals (0 = scanner disabled)
	ExpiryInterval        time.Duration
	DeliveryDelayInterval time.Duration
	CacheLoaderInterval   time.Duration
}

// DefaultConfig returns the default store configuration
func DefaultConfig() Config {
	return Config{
		Index:                 index.DefaultConfig(),
		Persistence:           PersistenceMemory,
		UniqueKeyRange:        DefaultUniqueKeyRange,
		MaxTransactionSize:    DefaultMaxTransactionSize,
		ExpiryInterval:        time.Second,
		DeliveryDelayInterval: time.Second,
		CacheLoaderInterval:   0,
	}
}

// withDefaults replaces unset values with their defaults
func (c Config) withDefaults() Config {
	if c.Index.Implementation == "" {
		c.Index.Implementation = index.ImplDefault
	}
	if c.Persistence == "" {
		c.Persistence = PersistenceMemory
	}
	if c.UniqueKeyRange == 0 {
		c.UniqueKeyRange = DefaultUniqueKeyRange
	}
	if c.MaxTransactionSize <= 0 {
		c.MaxTransactionSize = DefaultMaxTransactionSize
	}
	return c
}

// ScannerInterval returns the configured interval of a scanner
func (c Config) ScannerInterval(kind ScannerKind) time.Duration {
	switch kind {
	case ScannerExpirer:
		return c.ExpiryInterval
	case ScannerDeliveryDelay:
		return c.DeliveryDelayInterval
	case ScannerCacheLoader:
		return c.CacheLoaderInterval
	default:
		return 0
	}
}

// String returns a formatted string representation of the configuration
func (c Config) String() string {
	var sb strings.Builder

	// Create helper functions for consistent formatting
	addSection := func(title string) {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("%s\n", strings.ToUpper(title)))
	}

	addField := func(name, value string) {
		sb.WriteString(fmt.Sprintf("  %-22s: %s\n", name, value))
	}

	interval := func(d time.Duration) string {
		if d <= 0 {
			return "disabled"
		}
		return d.String()
	}

	// Index
	addSection("Index")
	addField("Implementation", string(c.Index.Implementation))
	addField("Capacity", fmt.Sprintf("%d", c.Index.Capacity()))
	if c.Index.Implementation == index.ImplShardedNative {
		addField("Shards", fmt.Sprintf("%d", c.Index.ShardCount()))
	} else {
		addField("Locks", fmt.Sprintf("%d", c.Index.LockCount()))
	}

	// Persistence
	addSection("Persistence")
	addField("Backend", string(c.Persistence))
	if c.Persistence != PersistenceMemory {
		addField("Data Path", c.DataPath)
	}
	addField("Unique Key Range", fmt.Sprintf("%d", c.UniqueKeyRange))

	// Transactions
	addSection("Transactions")
	addField("Max Size", fmt.Sprintf("%d", c.MaxTransactionSize))

	// Scanners
	addSection("Scanners")
	for _, kind := range ScannerKinds {
		addField(string(kind), interval(c.ScannerInterval(kind)))
	}

	return sb.String()
}
