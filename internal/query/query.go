// Package query implements the C6 status engine and its C7 derived views:
// the algorithm that turns a scripthash into confirmed/mempool funding and
// spending records, and the balance/history/UTXO/merkle/tx-status
// operations built on top of it. Grounded on query.rs's Query struct and
// its confirmed_status/mempool_status/status methods.
package query

import (
	"context"
	"fmt"
	"log"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"golang.org/x/sync/errgroup"

	"github.com/rawblock/scriptquery/internal/amount"
	"github.com/rawblock/scriptquery/internal/daemon"
	"github.com/rawblock/scriptquery/internal/headers"
	"github.com/rawblock/scriptquery/internal/mempool"
	"github.com/rawblock/scriptquery/internal/rowcodec"
	"github.com/rawblock/scriptquery/internal/store"
	"github.com/rawblock/scriptquery/internal/txcache"
	"github.com/rawblock/scriptquery/internal/txwire"
	"github.com/rawblock/scriptquery/pkg/chainmodels"
)

// Query is the composition point for everything the HTTP surface needs: the
// persisted index, the live mempool snapshot, the header index for
// reorg-aware lookups, the daemon for fallback fetches, and the
// transaction cache shared across all of them.
type Query struct {
	store   store.ReadStore
	tracker *mempool.Tracker
	headers *headers.Index
	daemon  daemon.Client
	txs     *txcache.Cache
	decoder amount.Decoder
}

func New(s store.ReadStore, tracker *mempool.Tracker, h *headers.Index, d daemon.Client, txs *txcache.Cache, decoder amount.Decoder) *Query {
	return &Query{store: s, tracker: tracker, headers: h, daemon: d, txs: txs, decoder: decoder}
}

// txCandidate is a materialized (txid, height) pair recovered from a TxRow
// scan against a prefix carried by a TxOutRow or TxInRow. It is still only
// a candidate until its transaction is loaded and re-checked: the prefix
// scan can return more than one txid sharing the same leading bytes.
type txCandidate struct {
	Txid   chainhash.Hash
	Height int32
}

// GetStatus runs the C6 status algorithm: scan TxOutRow for funding
// candidates, materialize and filter them into real FundingOutputs, then
// for each FundingOutput scan TxInRow the same way for its spender. The
// confirmed and mempool funding scans are independent I/O against two
// different stores and run concurrently; the two spending scans depend on
// funding having already resolved (mempool spending checks against the
// union of confirmed and mempool funding, since an unconfirmed transaction
// can spend a confirmed output) but are themselves independent of each
// other and also run concurrently.
func (q *Query) GetStatus(ctx context.Context, scripthash [32]byte) (*Status, error) {
	var confirmedFunding, mempoolFunding []chainmodels.FundingOutput

	fg, fctx := errgroup.WithContext(ctx)
	fg.Go(func() error {
		var err error
		confirmedFunding, err = q.materializeFunding(fctx, q.store, scripthash)
		return err
	})
	fg.Go(func() error {
		var err error
		mempoolFunding, err = q.materializeFunding(fctx, q.tracker.Snapshot(), scripthash)
		return err
	})
	if err := fg.Wait(); err != nil {
		return nil, fmt.Errorf("query: get status: %w", err)
	}

	allFunding := make([]chainmodels.FundingOutput, 0, len(confirmedFunding)+len(mempoolFunding))
	allFunding = append(allFunding, confirmedFunding...)
	allFunding = append(allFunding, mempoolFunding...)

	var confirmedSpending, mempoolSpending []chainmodels.SpendingInput
	sg, sctx := errgroup.WithContext(ctx)
	sg.Go(func() error {
		var err error
		confirmedSpending, err = q.materializeSpending(sctx, q.store, confirmedFunding)
		return err
	})
	sg.Go(func() error {
		var err error
		mempoolSpending, err = q.materializeSpending(sctx, q.tracker.Snapshot(), allFunding)
		return err
	})
	if err := sg.Wait(); err != nil {
		return nil, fmt.Errorf("query: get status: %w", err)
	}

	return &Status{
		ConfirmedFunding:  confirmedFunding,
		ConfirmedSpending: confirmedSpending,
		MempoolFunding:    mempoolFunding,
		MempoolSpending:   mempoolSpending,
	}, nil
}

// materializeFunding runs steps 1-3 of the C6 algorithm against one store:
// scan TxOutRow for the scripthash's candidate txid prefixes, materialize
// each prefix's TxRow candidates, load their transactions, and keep only
// the outputs whose script actually hashes to scripthash — the prefix
// collision filter spec.md §9 says an implementer must not skip.
func (q *Query) materializeFunding(ctx context.Context, rs store.ReadStore, scripthash [32]byte) ([]chainmodels.FundingOutput, error) {
	rows, err := rs.Scan(ctx, rowcodec.FilterFundingByScripthash(scripthash))
	if err != nil {
		return nil, fmt.Errorf("scan funding: %w", err)
	}

	var funding []chainmodels.FundingOutput
	for _, row := range rows {
		out, err := rowcodec.TxOutRowFromRow(row)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCorruption, err)
		}

		candidates, err := q.candidatesByPrefix(ctx, rs, out.TxidPrefix)
		if err != nil {
			return nil, err
		}

		for _, c := range candidates {
			tx, err := q.loadTx(ctx, c.Txid)
			if err != nil {
				log.Printf("[Query] funding candidate %s unavailable: %v", c.Txid, err)
				continue
			}
			for vout, txout := range tx.TxOut {
				if rowcodec.ComputeScripthash(txout.PkScript) != scripthash {
					continue
				}
				funding = append(funding, chainmodels.FundingOutput{
					Txid:   c.Txid,
					Height: c.Height,
					Vout:   uint32(vout),
					Value:  q.decoder.Decode(amount.RawOutput{Plain: uint64(txout.Value)}),
				})
			}
		}
	}
	return funding, nil
}

// materializeSpending runs step 4 of the C6 algorithm for each already
// materialized FundingOutput: scan TxInRow by the funding outpoint,
// materialize candidate spenders the same way materializeFunding does, and
// keep only the ones whose inputs actually name this outpoint.
func (q *Query) materializeSpending(ctx context.Context, rs store.ReadStore, funding []chainmodels.FundingOutput) ([]chainmodels.SpendingInput, error) {
	var spending []chainmodels.SpendingInput
	for _, f := range funding {
		rows, err := rs.Scan(ctx, rowcodec.FilterSpendingByFundingOutpoint(f.Txid, f.Vout))
		if err != nil {
			return nil, fmt.Errorf("scan spending: %w", err)
		}

		verified := 0
		for _, row := range rows {
			in, err := rowcodec.TxInRowFromRow(row)
			if err != nil {
				return nil, fmt.Errorf("%w: %v", ErrCorruption, err)
			}

			candidates, err := q.candidatesByPrefix(ctx, rs, in.SpendingTxidPrefix)
			if err != nil {
				return nil, err
			}

			for _, c := range candidates {
				tx, err := q.loadTx(ctx, c.Txid)
				if err != nil {
					log.Printf("[Query] spending candidate %s unavailable: %v", c.Txid, err)
					continue
				}
				for _, vin := range tx.TxIn {
					if vin.PreviousOutPoint.Hash != f.Txid || vin.PreviousOutPoint.Index != f.Vout {
						continue
					}
					spending = append(spending, chainmodels.SpendingInput{
						Txid:    c.Txid,
						Height:  c.Height,
						Funding: chainmodels.Outpoint{Txid: f.Txid, Vout: f.Vout},
						Value:   f.Value,
					})
					verified++
				}
			}
		}
		if verified > 1 {
			log.Printf("[Query] outpoint %s:%d has %d verified spenders, expected at most 1", f.Txid, f.Vout, verified)
		}
	}
	return spending, nil
}

// candidatesByPrefix resolves a TxOutRow/TxInRow's txid prefix into
// materialized (txid, height) pairs via a TxRow scan. More than one may
// come back when two distinct txids share the prefix; every caller must
// still filter by loading and re-checking the actual transaction.
func (q *Query) candidatesByPrefix(ctx context.Context, rs store.ReadStore, prefix []byte) ([]txCandidate, error) {
	rows, err := rs.Scan(ctx, rowcodec.FilterTxByPrefix(prefix))
	if err != nil {
		return nil, fmt.Errorf("scan tx row: %w", err)
	}
	candidates := make([]txCandidate, 0, len(rows))
	for _, row := range rows {
		r, err := rowcodec.TxRowFromRow(row)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCorruption, err)
		}
		candidates = append(candidates, txCandidate{Txid: r.Txid, Height: r.Height})
	}
	return candidates, nil
}

// loadTx is C4: resolve a txid to its decoded transaction, checking the
// shared cache first, then the persisted store's RawTxRow, then falling
// back to the daemon. The persisted store is checked regardless of
// whether the candidate was found via the confirmed store or the mempool
// snapshot, since the mempool tracker does not itself persist raw
// transaction bytes.
func (q *Query) loadTx(ctx context.Context, txid chainhash.Hash) (*wire.MsgTx, error) {
	return q.txs.GetOrLoad(ctx, txid, func(ctx context.Context, txid chainhash.Hash) (*wire.MsgTx, error) {
		if q.store != nil {
			rows, err := q.store.Scan(ctx, rowcodec.FilterRawTxByTxid(txid))
			if err == nil {
				for _, row := range rows {
					r, err := rowcodec.RawTxRowFromRow(row)
					if err == nil && r.Txid == txid {
						return txwire.DecodeTx(r.Raw)
					}
				}
			}
		}
		raw, err := q.daemon.GetRawTransaction(ctx, txid)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUpstreamFetchFailed, err)
		}
		return txwire.DecodeTx(raw)
	})
}

// GetTxStatus answers whether txid still confirms at the height and block
// it was last indexed at, checking the header index so a stale caller
// finds out about a reorg instead of trusting a cached height. Grounded on
// query.rs's get_tx_status.
func (q *Query) GetTxStatus(ctx context.Context, txid chainhash.Hash) (*chainmodels.TransactionStatus, error) {
	row, found, err := q.lookupTxRow(ctx, q.store, txid)
	if err != nil {
		return nil, err
	}
	if !found {
		row, found, err = q.lookupTxRow(ctx, q.tracker.Snapshot(), txid)
		if err != nil {
			return nil, err
		}
		if !found {
			return nil, ErrNotIndexed
		}
		return &chainmodels.TransactionStatus{Confirmed: false}, nil
	}

	header, ok := q.headers.GetByHeight(row.Height)
	if !ok {
		return nil, fmt.Errorf("%w: height %d", ErrMissingHeader, row.Height)
	}
	if header.Hash != row.BlockHash {
		// The block once at this height was reorged out; the transaction
		// is no longer confirmed at the recorded position.
		return &chainmodels.TransactionStatus{Confirmed: false}, nil
	}
	return &chainmodels.TransactionStatus{
		Confirmed:   true,
		BlockHeight: row.Height,
		BlockHash:   row.BlockHash,
	}, nil
}

func (q *Query) lookupTxRow(ctx context.Context, rs store.ReadStore, txid chainhash.Hash) (rowcodec.TxRow, bool, error) {
	rows, err := rs.Scan(ctx, rowcodec.FilterTxByTxid(txid))
	if err != nil {
		return rowcodec.TxRow{}, false, fmt.Errorf("query: scan tx row: %w", err)
	}
	for _, row := range rows {
		r, err := rowcodec.TxRowFromRow(row)
		if err != nil {
			return rowcodec.TxRow{}, false, fmt.Errorf("%w: %v", ErrCorruption, err)
		}
		if r.Txid == txid {
			return r, true, nil
		}
	}
	return rowcodec.TxRow{}, false, nil
}

// GetBlockStatus reports whether hash is still on the best chain and, if
// so, the hash of the block after it. Supplemented from query.rs's
// get_block_status (dropped by the distillation, restored per SPEC_FULL.md).
func (q *Query) GetBlockStatus(hash chainhash.Hash) (*chainmodels.BlockStatus, error) {
	entry, ok := q.headers.GetByHash(hash)
	if !ok {
		return &chainmodels.BlockStatus{InBestChain: false}, nil
	}
	status := &chainmodels.BlockStatus{InBestChain: true, Height: entry.Height}
	if next, ok := q.headers.NextHash(entry.Height); ok {
		status.NextHash = &next
	}
	return status, nil
}

// Broadcast relays a raw transaction to the daemon.
func (q *Query) Broadcast(ctx context.Context, raw []byte) (chainhash.Hash, error) {
	txid, err := q.daemon.SendRawTransaction(ctx, raw)
	if err != nil {
		return chainhash.Hash{}, fmt.Errorf("%w: %v", ErrUpstreamFetchFailed, err)
	}
	return txid, nil
}

// UpdateMempool forces an immediate mempool refresh, used by the API layer
// right after a broadcast so the new transaction is visible without
// waiting for the tracker's next tick.
func (q *Query) UpdateMempool(ctx context.Context) error {
	return q.tracker.Update(ctx)
}

// FeeHistogram delegates to the mempool's fee histogram; see internal/feeest.
func (q *Query) FeeHistogram() []mempool.FeeBucket {
	return q.tracker.FeeHistogram()
}
