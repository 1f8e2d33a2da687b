// Package mempool is the C5 mempool tracker: it rebuilds an in-memory
// row-family index over the daemon's current mempool on every refresh, so
// the query engine can scan it exactly like the persisted store. Grounded
// on internal/mempool/poller.go's ticker-driven refresh loop — we keep its
// shape (a background goroutine polling on a fixed interval, context-aware
// shutdown) and replace its CoinJoin-heuristic body with index building.
package mempool

import (
	"context"
	"encoding/hex"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/btcsuite/btcd/btcjson"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/rawblock/scriptquery/internal/daemon"
	"github.com/rawblock/scriptquery/internal/rowcodec"
	"github.com/rawblock/scriptquery/internal/store"
	"github.com/rawblock/scriptquery/pkg/chainmodels"
)

// PrevOutLookup reports whether a mempool input's previous output is known
// at all (cmd/server's implementation loads the parent transaction from the
// cache, the persisted store's RawTxRow, or the daemon, and checks the vout
// exists); the snapshot being built is not consulted. The tracker takes
// this as a callback rather than depending on the store/query packages
// directly, keeping the dependency graph one-directional. It does not
// resolve the scripthash or value the outpoint carries: TxInRow no longer
// stores either, so that resolution happens at query time against the
// materialized transaction (see internal/query), not at index-build time.
type PrevOutLookup func(ctx context.Context, out chainmodels.Outpoint) (found bool, err error)

// FeeBucket is one point in the descending fee-rate histogram the fee
// estimator walks.
type FeeBucket struct {
	FeeRateSatVB float64
	CumVsize     int64
}

// Tracker holds the current mempool snapshot behind a pointer swapped
// atomically on each refresh: readers take the shared lock just long
// enough to copy the pointer, then scan an immutable store with no lock
// held, matching the shared-lock-for-read / exclusive-lock-for-write
// discipline spec.md's concurrency model calls for.
type Tracker struct {
	daemon     daemon.Client
	lookupPrev PrevOutLookup

	mu        sync.RWMutex
	index     *store.MemStore
	histogram []FeeBucket
}

func NewTracker(d daemon.Client, lookupPrev PrevOutLookup) *Tracker {
	return &Tracker{
		daemon:     d,
		lookupPrev: lookupPrev,
		index:      store.NewMemStore(),
	}
}

// Snapshot returns the current mempool index for scanning. The returned
// store is never mutated in place after publication — Update always builds
// a fresh one — so callers may hold onto it across multiple scans without
// re-acquiring the tracker's lock.
func (t *Tracker) Snapshot() store.ReadStore {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.index
}

// FeeHistogram returns the fee-rate histogram built by the most recent
// Update, ordered highest fee rate first.
func (t *Tracker) FeeHistogram() []FeeBucket {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.histogram
}

// Run polls the daemon's mempool on a fixed interval until ctx is
// canceled, mirroring poller.go's ticker-driven loop.
func (t *Tracker) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	if err := t.Update(ctx); err != nil {
		log.Printf("[Tracker] initial refresh failed: %v", err)
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := t.Update(ctx); err != nil {
				log.Printf("[Tracker] refresh failed: %v", err)
			}
		}
	}
}

// Update rebuilds the mempool index from scratch. Building off to the side
// before publishing means a reader never observes a partially-rebuilt
// mempool, at the cost of redoing the whole scan every interval rather
// than diffing against the previous snapshot.
func (t *Tracker) Update(ctx context.Context) error {
	entries, err := t.daemon.GetRawMempoolVerbose(ctx)
	if err != nil {
		return fmt.Errorf("mempool: list entries: %w", err)
	}

	newIndex := store.NewMemStore()
	histogram := make([]FeeBucket, 0, len(entries))

	for txidHex, entry := range entries {
		txid, err := chainhash.NewHashFromStr(txidHex)
		if err != nil {
			log.Printf("[Tracker] skipping malformed txid %q: %v", txidHex, err)
			continue
		}

		height := chainmodels.HeightMempoolNoDeps
		if len(entry.Depends) > 0 {
			height = chainmodels.HeightMempoolHasDeps
		}

		verbose, err := t.daemon.GetRawTransactionVerbose(ctx, *txid)
		if err != nil {
			log.Printf("[Tracker] skipping %s: %v", txidHex, err)
			continue
		}

		if err := t.indexOutputs(newIndex, *txid, verbose.Vout); err != nil {
			log.Printf("[Tracker] output indexing failed for %s: %v", txidHex, err)
		}
		if err := t.indexInputs(ctx, newIndex, *txid, verbose.Vin); err != nil {
			log.Printf("[Tracker] input indexing failed for %s: %v", txidHex, err)
		}

		row := rowcodec.TxRow{Txid: *txid, Height: height}
		r := row.ToRow()
		newIndex.Put(r.Key, r.Value)

		if entry.Vsize > 0 {
			histogram = append(histogram, FeeBucket{
				FeeRateSatVB: entry.Fee * 1e8 / float64(entry.Vsize),
				CumVsize:     int64(entry.Vsize),
			})
		}
	}

	sort.Slice(histogram, func(i, j int) bool {
		return histogram[i].FeeRateSatVB > histogram[j].FeeRateSatVB
	})
	var cum int64
	for i := range histogram {
		cum += histogram[i].CumVsize
		histogram[i].CumVsize = cum
	}

	t.mu.Lock()
	t.index = newIndex
	t.histogram = histogram
	t.mu.Unlock()

	return nil
}

// indexOutputs writes one TxOutRow per output, under the scripthash it
// actually pays. No value is recorded here: a C6 scan re-derives it by
// materializing the transaction and decoding its outputs (see
// internal/query), so indexing only needs to know which scripthash-prefix
// pairs exist.
func (t *Tracker) indexOutputs(into *store.MemStore, txid chainhash.Hash, vouts []btcjson.Vout) error {
	for _, vout := range vouts {
		scriptBytes, err := hex.DecodeString(vout.ScriptPubKey.Hex)
		if err != nil {
			return fmt.Errorf("decode scriptPubKey for vout %d: %w", vout.N, err)
		}
		scripthash := rowcodec.ComputeScripthash(scriptBytes)
		r := rowcodec.NewTxOutRow(scripthash, txid).ToRow()
		into.Put(r.Key, r.Value)
	}
	return nil
}

// indexInputs writes one TxInRow per input, keyed on the outpoint it
// spends rather than on any scripthash. lookupPrev only confirms the
// outpoint is known (see PrevOutLookup) before bothering to index it; it
// does not need to resolve what
// the outpoint actually paid, since C6 rederives that at query time.
func (t *Tracker) indexInputs(ctx context.Context, into *store.MemStore, txid chainhash.Hash, vins []btcjson.Vin) error {
	for i, vin := range vins {
		if vin.IsCoinBase() {
			continue
		}
		prevTxid, err := chainhash.NewHashFromStr(vin.Txid)
		if err != nil {
			return fmt.Errorf("decode prevout txid for vin %d: %w", i, err)
		}
		outpoint := chainmodels.Outpoint{Txid: *prevTxid, Vout: vin.Vout}

		found, err := t.lookupPrev(ctx, outpoint)
		if err != nil {
			return fmt.Errorf("lookup prevout for vin %d: %w", i, err)
		}
		if !found {
			log.Printf("[Tracker] %s:%d spends unknown outpoint %s:%d", txid, i, prevTxid, outpoint.Vout)
			continue
		}

		r := rowcodec.NewTxInRow(*prevTxid, outpoint.Vout, txid).ToRow()
		into.Put(r.Key, r.Value)
	}
	return nil
}
