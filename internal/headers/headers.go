// Package headers is the C3 header index: the in-memory record of which
// block hash sits at which height on the current best chain. It answers
// reorg-sensitive lookups — given a hash, is it still the block at its
// recorded height? — that GetTxStatus and GetBlockStatus depend on.
package headers

import (
	"sync"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/rawblock/scriptquery/pkg/chainmodels"
)

// Index holds the best-chain header list, ordered by height starting at
// whatever height the caller first populated (genesis need not be height
// zero for a pruned index).
//
// Writes come from the block-ingestion path, which is out of scope here;
// Index only needs to support the ingestion side rebuilding the tail on a
// reorg (Truncate + Append) and the read side's lookups.
type Index struct {
	mu       sync.RWMutex
	byHeight []chainmodels.HeaderEntry
	byHash   map[chainhash.Hash]int32 // hash -> height, rebuilt on mutation
}

func NewIndex() *Index {
	return &Index{byHash: make(map[chainhash.Hash]int32)}
}

// Append adds a new best-chain tip. The caller (ingestion) is responsible
// for calling Truncate first when extending after a reorg.
func (idx *Index) Append(entry chainmodels.HeaderEntry) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.byHeight = append(idx.byHeight, entry)
	idx.byHash[entry.Hash] = entry.Height
}

// Truncate drops every header at or above the given height, used to unwind
// the index before re-appending the new best-chain tail after a reorg.
func (idx *Index) Truncate(fromHeight int32) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	if len(idx.byHeight) == 0 {
		return
	}
	base := idx.byHeight[0].Height
	cut := int(fromHeight - base)
	if cut < 0 {
		cut = 0
	}
	if cut >= len(idx.byHeight) {
		return
	}
	for _, e := range idx.byHeight[cut:] {
		delete(idx.byHash, e.Hash)
	}
	idx.byHeight = idx.byHeight[:cut]
}

// GetByHeight returns the header currently best at the given height.
func (idx *Index) GetByHeight(height int32) (chainmodels.HeaderEntry, bool) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	if len(idx.byHeight) == 0 {
		return chainmodels.HeaderEntry{}, false
	}
	base := idx.byHeight[0].Height
	i := int(height - base)
	if i < 0 || i >= len(idx.byHeight) {
		return chainmodels.HeaderEntry{}, false
	}
	return idx.byHeight[i], true
}

// GetByHash looks up a hash's recorded height, then re-fetches by height:
// if the block at that height is no longer this hash (a reorg replaced
// it), the lookup reports not found. This two-step shape is what makes the
// index reorg-aware instead of trusting a stale hash->height mapping.
func (idx *Index) GetByHash(hash chainhash.Hash) (chainmodels.HeaderEntry, bool) {
	idx.mu.RLock()
	height, ok := idx.byHash[hash]
	idx.mu.RUnlock()
	if !ok {
		return chainmodels.HeaderEntry{}, false
	}
	entry, ok := idx.GetByHeight(height)
	if !ok || entry.Hash != hash {
		return chainmodels.HeaderEntry{}, false
	}
	return entry, true
}

// BestHeader returns the current chain tip.
func (idx *Index) BestHeader() (chainmodels.HeaderEntry, bool) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	if len(idx.byHeight) == 0 {
		return chainmodels.HeaderEntry{}, false
	}
	return idx.byHeight[len(idx.byHeight)-1], true
}

// BestHeight returns the height of the current chain tip, or -1 if the
// index is empty.
func (idx *Index) BestHeight() int32 {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	if len(idx.byHeight) == 0 {
		return -1
	}
	return idx.byHeight[len(idx.byHeight)-1].Height
}

// NextHash returns the hash of the block immediately after the given
// height on the best chain, used by GetBlockStatus.
func (idx *Index) NextHash(height int32) (chainhash.Hash, bool) {
	entry, ok := idx.GetByHeight(height + 1)
	if !ok {
		return chainhash.Hash{}, false
	}
	return entry.Hash, true
}
