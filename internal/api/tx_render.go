package api

import (
	"context"
	"encoding/hex"
	"fmt"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"

	"github.com/rawblock/scriptquery/internal/addresses"
	"github.com/rawblock/scriptquery/internal/daemon"
	"github.com/rawblock/scriptquery/internal/rowcodec"
	"github.com/rawblock/scriptquery/internal/store"
	"github.com/rawblock/scriptquery/internal/txcache"
	"github.com/rawblock/scriptquery/internal/txwire"
)

// renderedOutput is one transaction output, annotated with its script type
// and, where one decodes unambiguously, its address.
type renderedOutput struct {
	Value           uint64 `json:"value"`
	ScriptPubKeyHex string `json:"scriptpubkey"`
	Type            string `json:"scriptpubkey_type"`
	Address         string `json:"scriptpubkey_address,omitempty"`
}

// renderedInput is one transaction input, annotated with the output it
// spends once attachPrevouts has resolved it.
type renderedInput struct {
	Txid      string          `json:"txid"`
	Vout      uint32          `json:"vout"`
	Sequence  uint32          `json:"sequence"`
	ScriptSig string          `json:"scriptsig"`
	Witness   []string        `json:"witness,omitempty"`
	Prevout   *renderedOutput `json:"prevout,omitempty"`
}

type renderedTx struct {
	Txid     string           `json:"txid"`
	Version  int32            `json:"version"`
	Locktime uint32           `json:"locktime"`
	Size     int              `json:"size"`
	Vsize    int64            `json:"vsize"`
	Weight   int64            `json:"weight"`
	Inputs   []renderedInput  `json:"vin"`
	Outputs  []renderedOutput `json:"vout"`
}

// loadTx fetches a transaction by txid, preferring the RawTxRow family in
// the persisted store (when the ingestion path has written one) and
// falling back to the daemon, caching whichever source answers. Grounded
// on query.rs's get_transaction, which tries the index before the node.
func loadTx(ctx context.Context, rs store.ReadStore, txs *txcache.Cache, d daemon.Client, txid chainhash.Hash) (*wire.MsgTx, error) {
	return txs.GetOrLoad(ctx, txid, func(ctx context.Context, txid chainhash.Hash) (*wire.MsgTx, error) {
		if rs != nil {
			rows, err := rs.Scan(ctx, rowcodec.FilterRawTxByTxid(txid))
			if err == nil {
				for _, row := range rows {
					r, err := rowcodec.RawTxRowFromRow(row)
					if err != nil {
						continue
					}
					if r.Txid != txid {
						continue
					}
					return txwire.DecodeTx(r.Raw)
				}
			}
		}
		raw, err := d.GetRawTransaction(ctx, txid)
		if err != nil {
			return nil, err
		}
		return txwire.DecodeTx(raw)
	})
}

// renderTransaction builds the JSON-facing view of tx, with every input's
// prevout resolved by attachPrevouts.
func renderTransaction(ctx context.Context, rs store.ReadStore, txs *txcache.Cache, d daemon.Client, params *chaincfg.Params, txid chainhash.Hash, tx *wire.MsgTx) (*renderedTx, error) {
	out := &renderedTx{
		Txid:     txid.String(),
		Version:  tx.Version,
		Locktime: tx.LockTime,
		Size:     tx.SerializeSize(),
		Vsize:    txwire.TxVirtualSize(tx),
		Weight:   int64(tx.SerializeSizeStripped())*3 + int64(tx.SerializeSize()),
		Inputs:   make([]renderedInput, len(tx.TxIn)),
		Outputs:  make([]renderedOutput, len(tx.TxOut)),
	}

	for i, txout := range tx.TxOut {
		t, addr := addresses.Classify(txout.PkScript, params)
		out.Outputs[i] = renderedOutput{
			Value:           uint64(txout.Value),
			ScriptPubKeyHex: hex.EncodeToString(txout.PkScript),
			Type:            string(t),
			Address:         addr,
		}
	}

	for i, txin := range tx.TxIn {
		witness := make([]string, len(txin.Witness))
		for j, w := range txin.Witness {
			witness[j] = hex.EncodeToString(w)
		}
		out.Inputs[i] = renderedInput{
			Txid:      txin.PreviousOutPoint.Hash.String(),
			Vout:      txin.PreviousOutPoint.Index,
			Sequence:  txin.Sequence,
			ScriptSig: hex.EncodeToString(txin.SignatureScript),
			Witness:   witness,
		}
	}

	if err := attachPrevouts(ctx, rs, txs, d, params, tx, out); err != nil {
		return nil, fmt.Errorf("api: attach prevouts: %w", err)
	}
	return out, nil
}

// attachPrevouts resolves every input's prevout in one batched pass,
// grouped by previous txid so a transaction with many inputs spending the
// same previous transaction only fetches it once. Grounded on rest.rs's
// attach_txs_data, which does the same grouping for store locality.
func attachPrevouts(ctx context.Context, rs store.ReadStore, txs *txcache.Cache, d daemon.Client, params *chaincfg.Params, tx *wire.MsgTx, out *renderedTx) error {
	distinctPrevTxids := make(map[chainhash.Hash]struct{})
	for _, txin := range tx.TxIn {
		if isCoinbaseInput(txin) {
			continue
		}
		distinctPrevTxids[txin.PreviousOutPoint.Hash] = struct{}{}
	}

	prevTxs := make(map[chainhash.Hash]*wire.MsgTx, len(distinctPrevTxids))
	for prevTxid := range distinctPrevTxids {
		prevTx, err := loadTx(ctx, rs, txs, d, prevTxid)
		if err != nil {
			// A missing prevout is not fatal to rendering the rest of the
			// transaction; the input is simply left without a Prevout.
			continue
		}
		prevTxs[prevTxid] = prevTx
	}

	for i, txin := range tx.TxIn {
		if isCoinbaseInput(txin) {
			continue
		}
		prevTx, ok := prevTxs[txin.PreviousOutPoint.Hash]
		if !ok || int(txin.PreviousOutPoint.Index) >= len(prevTx.TxOut) {
			continue
		}
		prevOut := prevTx.TxOut[txin.PreviousOutPoint.Index]
		t, addr := addresses.Classify(prevOut.PkScript, params)
		out.Inputs[i].Prevout = &renderedOutput{
			Value:           uint64(prevOut.Value),
			ScriptPubKeyHex: hex.EncodeToString(prevOut.PkScript),
			Type:            string(t),
			Address:         addr,
		}
	}
	return nil
}

func isCoinbaseInput(txin *wire.TxIn) bool {
	return txin.PreviousOutPoint.Hash == chainhash.Hash{} && txin.PreviousOutPoint.Index == wire.MaxPrevOutIndex
}
