package engines

import (
	"github.com/ValentinKolb/itemstore/lib/index"
	"github.com/ValentinKolb/itemstore/lib/index/engines/chain"
	"github.com/ValentinKolb/itemstore/lib/index/engines/sharded"
	"github.com/ValentinKolb/itemstore/lib/index/engines/striped"
)

// New creates an empty index of the implementation named in conf.
// Unknown implementations fall back to index.ImplDefault.
func New[V any](conf index.Config) index.ILongKeyedIndex[V] {
	impl, _ := index.ParseImplementation(string(conf.Implementation))
	switch impl {
	case index.ImplStripedChain:
		return chain.NewChainIndex[V](conf)
	case index.ImplShardedNative:
		return sharded.NewShardedIndex[V](conf)
	default:
		return striped.NewStripedIndex[V](conf)
	}
}
