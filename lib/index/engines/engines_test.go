package engines

import (
	"testing"

	"github.com/ValentinKolb/itemstore/lib/index"
)

func TestNew(t *testing.T) {
	tests := []struct {
		impl  index.Implementation
		sized bool
	}{
		{index.ImplStripedLinked, true},
		{index.ImplStripedChain, true},
		{index.ImplShardedNative, false},
		{"unknown", true},
		{"", true},
	}

	for _, tt := range tests {
		idx := New[string](index.Config{Implementation: tt.impl, Shards: 2})
		if idx == nil {
			t.Fatalf("Expected an index for %q", tt.impl)
		}
		if _, ok := index.SizeOf(idx); ok != tt.sized {
			t.Errorf("Expected sized=%v for %q, got %v", tt.sized, tt.impl, ok)
		}

		idx.Put(1, "one")
		if value, ok := idx.Get(1); !ok || value != "one" {
			t.Errorf("Expected %q index to work, got %q", tt.impl, value)
		}
	}
}
