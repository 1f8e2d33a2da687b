// Package txcache is the C4 transaction cache: a read-mostly, concurrency-
// safe map from txid to decoded transaction, fed by RawTxRow hits and
// daemon fallbacks alike so a hot txid is decoded once. Grounded on
// query.rs's TransactionCache, which holds an RwLock<HashMap> and tolerates
// two goroutines racing to load the same miss (both decode, the loser's
// result is simply discarded rather than deduplicated with a singleflight).
package txcache

import (
	"context"
	"sync"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
)

// Loader fetches and decodes a transaction on a cache miss.
type Loader func(ctx context.Context, txid chainhash.Hash) (*wire.MsgTx, error)

// Cache has no eviction: spec.md scopes it as a process-lifetime cache, and
// a production deployment is expected to bound memory by restarting rather
// than by an LRU policy here.
type Cache struct {
	mu     sync.RWMutex
	byTxid map[chainhash.Hash]*wire.MsgTx
}

func New() *Cache {
	return &Cache{byTxid: make(map[chainhash.Hash]*wire.MsgTx)}
}

// Get returns a cached transaction without triggering a load.
func (c *Cache) Get(txid chainhash.Hash) (*wire.MsgTx, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	tx, ok := c.byTxid[txid]
	return tx, ok
}

// Put inserts a transaction the caller already loaded, e.g. straight from a
// RawTxRow hit that never needed the daemon.
func (c *Cache) Put(txid chainhash.Hash, tx *wire.MsgTx) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.byTxid[txid] = tx
}

// GetOrLoad returns the cached transaction, or calls load under no lock and
// stores the result. Two callers racing on the same miss both invoke load;
// whichever stores last wins, and both return a valid transaction. This
// mirrors TransactionCache::get_or_else in query.rs, which accepts the same
// duplicate-load race rather than serializing all loads behind one lock.
func (c *Cache) GetOrLoad(ctx context.Context, txid chainhash.Hash, load Loader) (*wire.MsgTx, error) {
	if tx, ok := c.Get(txid); ok {
		return tx, nil
	}
	tx, err := load(ctx, txid)
	if err != nil {
		return nil, err
	}
	c.Put(txid, tx)
	return tx, nil
}

// Len reports the number of cached transactions, used by tests and health
// diagnostics.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.byTxid)
}
