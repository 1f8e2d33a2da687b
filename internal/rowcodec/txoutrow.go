package rowcodec

import (
	"fmt"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/rawblock/scriptquery/internal/store"
)

// TxOutRow names a transaction prefix as a candidate funder of a
// scripthash. It carries no value: a scan only narrows candidates down to
// a txid prefix, so every hit must be materialized via TxRow/RawTxRow (C4)
// and its outputs re-checked against the scripthash before it can be
// trusted — the prefix collision filter query.rs's find_funding_outputs
// applies and spec §9 forbids skipping.
//
// Key:   TagTxOut ‖ scripthash(32) ‖ txid[0..PrefixLen]
// Value: empty
type TxOutRow struct {
	Scripthash [32]byte
	TxidPrefix []byte
}

// NewTxOutRow derives the row for a funding candidate from its full txid,
// keeping only the leading PrefixLen bytes in the stored key.
func NewTxOutRow(scripthash [32]byte, txid chainhash.Hash) TxOutRow {
	return TxOutRow{Scripthash: scripthash, TxidPrefix: txidPrefix(txid)}
}

func (r TxOutRow) ToRow() store.Row {
	key := make([]byte, 1+32+len(r.TxidPrefix))
	key[0] = TagTxOut
	copy(key[1:33], r.Scripthash[:])
	copy(key[33:], r.TxidPrefix)
	return store.Row{Key: key}
}

func TxOutRowFromRow(row store.Row) (TxOutRow, error) {
	wantLen := 1 + 32 + PrefixLen
	if len(row.Key) != wantLen || row.Key[0] != TagTxOut {
		return TxOutRow{}, fmt.Errorf("rowcodec: malformed TxOutRow key (len=%d)", len(row.Key))
	}
	var r TxOutRow
	copy(r.Scripthash[:], row.Key[1:33])
	r.TxidPrefix = append([]byte(nil), row.Key[33:]...)
	return r, nil
}

// FilterFundingByScripthash returns the scan prefix over every TxOutRow
// naming a scripthash: the first step of the C6 status algorithm.
func FilterFundingByScripthash(scripthash [32]byte) []byte {
	prefix := make([]byte, 1+32)
	prefix[0] = TagTxOut
	copy(prefix[1:], scripthash[:])
	return prefix
}
