package api

import (
	"context"
	"fmt"

	"github.com/btcsuite/btcd/chaincfg/chainhash"

	"github.com/rawblock/scriptquery/internal/rowcodec"
	"github.com/rawblock/scriptquery/pkg/chainmodels"
)

// blockSummaryByHash answers /block/<hash>, preferring the persisted
// BlockMetaRow (written by the ingestion path this core does not own) and
// falling back to a live daemon fetch when the row hasn't been indexed yet
// — the same "index first, daemon as authoritative fallback" shape C9
// describes for transactions.
func (h *APIHandler) blockSummaryByHash(ctx context.Context, hash chainhash.Hash) (*chainmodels.BlockMeta, error) {
	if h.store != nil {
		rows, err := h.store.Scan(ctx, rowcodec.FilterBlockMetaByHash(hash))
		if err == nil {
			for _, row := range rows {
				r, err := rowcodec.BlockMetaRowFromRow(row)
				if err == nil && r.Hash == hash {
					return &chainmodels.BlockMeta{
						Hash: r.Hash, Height: r.Height, PrevHash: r.PrevHash,
						Timestamp: r.Timestamp, TxCount: r.TxCount, Size: r.Size, Weight: r.Weight,
					}, nil
				}
			}
		}
	}

	block, err := h.daemon.GetBlockVerbose(ctx, hash)
	if err != nil {
		return nil, fmt.Errorf("api: fetch block %s: %w", hash, err)
	}
	var prevHash chainhash.Hash
	if block.PreviousHash != "" {
		if ph, err := chainhash.NewHashFromStr(block.PreviousHash); err == nil {
			prevHash = *ph
		}
	}
	return &chainmodels.BlockMeta{
		Hash:      hash,
		Height:    int32(block.Height),
		PrevHash:  prevHash,
		Timestamp: block.Time,
		TxCount:   uint32(len(block.Tx)),
		Size:      uint32(block.Size),
		Weight:    uint32(block.Weight),
	}, nil
}

// blockSummaryByHeight resolves height to a hash via the header index, or
// the daemon when the index hasn't reached that height yet, then delegates
// to blockSummaryByHash.
func (h *APIHandler) blockSummaryByHeight(ctx context.Context, height int32) (*chainmodels.BlockMeta, error) {
	if entry, ok := h.headers.GetByHeight(height); ok {
		return h.blockSummaryByHash(ctx, entry.Hash)
	}
	hash, err := h.daemon.GetBlockHash(ctx, int64(height))
	if err != nil {
		return nil, fmt.Errorf("api: resolve height %d: %w", height, err)
	}
	return h.blockSummaryByHash(ctx, hash)
}
