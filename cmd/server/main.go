package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"

	"github.com/rawblock/scriptquery/internal/amount"
	"github.com/rawblock/scriptquery/internal/api"
	"github.com/rawblock/scriptquery/internal/chainnet"
	"github.com/rawblock/scriptquery/internal/daemon"
	"github.com/rawblock/scriptquery/internal/headers"
	"github.com/rawblock/scriptquery/internal/mempool"
	"github.com/rawblock/scriptquery/internal/query"
	"github.com/rawblock/scriptquery/internal/rowcodec"
	"github.com/rawblock/scriptquery/internal/store"
	"github.com/rawblock/scriptquery/internal/txcache"
	"github.com/rawblock/scriptquery/internal/txwire"
	"github.com/rawblock/scriptquery/pkg/chainmodels"
)

const (
	mempoolRefreshInterval = 15 * time.Second
	headerSyncInterval     = 10 * time.Second
	hubPushInterval        = 5 * time.Second
)

func main() {
	log.Println("Starting scriptquery (address-indexed blockchain query core)...")

	// ─── Required Environment Variables ─────────────────────────────────
	// All credentials MUST come from environment variables. No fallback
	// defaults for security-sensitive values. Use a .env file for local
	// development: cp .env.example .env && edit .env
	// ────────────────────────────────────────────────────────────────────

	dbURL := requireEnv("DATABASE_URL")
	rs, err := store.Connect(dbURL)
	if err != nil {
		log.Fatalf("FATAL: failed to connect to index store: %v", err)
	}
	defer rs.Close()
	if err := rs.InitSchema(context.Background()); err != nil {
		log.Fatalf("FATAL: index schema init failed: %v", err)
	}

	btcHost := getEnvOrDefault("BTC_RPC_HOST", "localhost:8332")
	btcUser := requireEnv("BTC_RPC_USER")
	btcPass := requireEnv("BTC_RPC_PASS")
	daemonClient, err := daemon.NewRPCClient(daemon.Config{Host: btcHost, User: btcUser, Pass: btcPass})
	if err != nil {
		log.Fatalf("FATAL: failed to connect to daemon RPC: %v", err)
	}

	if n, err := strconv.Atoi(os.Getenv("TXID_PREFIX_LEN")); err == nil && n > 0 {
		rowcodec.PrefixLen = n
	}

	params, err := chainnet.Params(getEnvOrDefault("NETWORK", "mainnet"))
	if err != nil {
		log.Fatalf("FATAL: %v", err)
	}

	decoder, err := amount.NewDecoder(amount.Variant(getEnvOrDefault("CHAIN_VARIANT", string(amount.VariantTransparent))))
	if err != nil {
		log.Fatalf("FATAL: %v", err)
	}

	headerIndex := headers.NewIndex()
	txCache := txcache.New()

	tracker := mempool.NewTracker(daemonClient, prevOutLookupFor(daemonClient, rs, txCache))

	q := query.New(rs, tracker, headerIndex, daemonClient, txCache, decoder)
	hub := api.NewHub(q)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go tracker.Run(ctx, mempoolRefreshInterval)
	go syncHeaders(ctx, headerIndex, daemonClient, headerSyncInterval)
	go pushSubscriptions(ctx, hub, hubPushInterval)

	r := api.SetupRouter(rs, daemonClient, headerIndex, txCache, q, hub, params)

	port := getEnvOrDefault("PORT", "5339")
	log.Printf("scriptquery listening on :%s (network=%s)\n", port, params.Name)
	if err := r.Run(":" + port); err != nil {
		log.Fatalf("FATAL: server exited: %v", err)
	}
}

// prevOutLookupFor confirms a mempool input's previous output is known at
// all by fetching its transaction — the persisted store's RawTxRow first,
// the daemon otherwise — and checking the named vout exists. It resolves
// no scripthash or value here: TxInRow no longer carries either, so C6
// rederives both at query time against the materialized spending and
// funding transactions. Kept in cmd/server rather than internal/mempool so
// the tracker never needs to import internal/store's row-decoding helpers
// itself, preserving the one-directional dependency graph
// internal/mempool's PrevOutLookup doc comment calls for.
func prevOutLookupFor(d daemon.Client, rs store.ReadStore, txs *txcache.Cache) mempool.PrevOutLookup {
	load := func(ctx context.Context, txid chainhash.Hash) (*wire.MsgTx, error) {
		if rs != nil {
			rows, err := rs.Scan(ctx, rowcodec.FilterRawTxByTxid(txid))
			if err == nil {
				for _, row := range rows {
					r, err := rowcodec.RawTxRowFromRow(row)
					if err == nil && r.Txid == txid {
						return txwire.DecodeTx(r.Raw)
					}
				}
			}
		}
		raw, err := d.GetRawTransaction(ctx, txid)
		if err != nil {
			return nil, err
		}
		return txwire.DecodeTx(raw)
	}

	return func(ctx context.Context, out chainmodels.Outpoint) (bool, error) {
		tx, err := txs.GetOrLoad(ctx, out.Txid, load)
		if err != nil {
			// The prevout's own transaction is simply unavailable (pruned
			// node, bad daemon state) — the tracker logs this as an
			// unknown outpoint rather than failing the whole refresh.
			return false, nil
		}
		return int(out.Vout) < len(tx.TxOut), nil
	}
}

// syncHeaders keeps the header index caught up with the daemon's best
// chain on a fixed interval, the same ticker-driven background-loop shape
// the mempool tracker and the teacher's poller use. The block-ingestion
// path that would normally own this index's writes is out of scope
// (spec.md §1, "external collaborators"); this loop is the minimal
// bootstrap so the header-dependent endpoints (/blocks, /block-height,
// reorg-aware tx/block status) have something to read.
func syncHeaders(ctx context.Context, idx *headers.Index, d daemon.Client, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	if err := syncHeadersOnce(ctx, idx, d); err != nil {
		log.Printf("[HeaderSync] initial sync failed: %v", err)
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := syncHeadersOnce(ctx, idx, d); err != nil {
				log.Printf("[HeaderSync] sync failed: %v", err)
			}
		}
	}
}

func syncHeadersOnce(ctx context.Context, idx *headers.Index, d daemon.Client) error {
	tip, err := d.GetBlockCount(ctx)
	if err != nil {
		return fmt.Errorf("get chain tip: %w", err)
	}

	// Walk the recorded tip back while it disagrees with the daemon's
	// chain, truncating the stale tail before resuming forward sync.
	for {
		best, ok := idx.BestHeader()
		if !ok || best.Height == 0 {
			break
		}
		hash, err := d.GetBlockHash(ctx, int64(best.Height))
		if err != nil {
			return fmt.Errorf("get hash at height %d: %w", best.Height, err)
		}
		if hash == best.Hash {
			break
		}
		idx.Truncate(best.Height)
	}

	for height := idx.BestHeight() + 1; height <= int32(tip); height++ {
		hash, err := d.GetBlockHash(ctx, int64(height))
		if err != nil {
			return fmt.Errorf("get hash at height %d: %w", height, err)
		}
		block, err := d.GetBlockVerbose(ctx, hash)
		if err != nil {
			return fmt.Errorf("get block %s: %w", hash, err)
		}
		var prevHash chainhash.Hash
		if block.PreviousHash != "" {
			if ph, err := chainhash.NewHashFromStr(block.PreviousHash); err == nil {
				prevHash = *ph
			}
		}
		idx.Append(chainmodels.HeaderEntry{Height: height, Hash: hash, PrevHash: prevHash, Timestamp: block.Time})
	}
	return nil
}

// pushSubscriptions re-checks every websocket scripthash subscription on a
// fixed interval, decoupled from the mempool refresh interval since a
// confirmed-block update can change a status hash independently of any
// mempool activity.
func pushSubscriptions(ctx context.Context, hub *api.Hub, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			hub.PushUpdates(ctx)
		}
	}
}

// requireEnv reads a required environment variable and exits if it is not set.
// This prevents the binary from starting with missing critical configuration.
func requireEnv(key string) string {
	val := os.Getenv(key)
	if val == "" {
		log.Fatalf("FATAL: Required environment variable %s is not set. "+
			"Copy .env.example to .env and fill in your values: cp .env.example .env", key)
	}
	return val
}

// getEnvOrDefault returns the env var value or a safe default for non-secret settings.
func getEnvOrDefault(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}
