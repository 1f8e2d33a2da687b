package rowcodec

import (
	"fmt"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/rawblock/scriptquery/internal/store"
)

// TxRow answers "what height and block did this txid confirm in" without
// touching the raw transaction. Its key deliberately does NOT embed the
// height: a lookup by txid has no height to key on ahead of time (mirrors
// query.rs's txrow_by_txid, which performs a point filter on the txid
// alone). We instead fold the first PrefixLen bytes of the txid into the
// key for scan locality and re-embed the full txid right after it, so a
// caller can narrow with FilterTxByTxid and then confirm the exact match
// from the decoded row without a second round-trip.
//
// Key:   TagTx ‖ txid[:PrefixLen] ‖ txid(32)
// Value: height(4 BE int32) ‖ blockhash(32)
type TxRow struct {
	Txid      chainhash.Hash
	Height    int32
	BlockHash chainhash.Hash
}

func (r TxRow) ToRow() store.Row {
	prefix := txidPrefix(r.Txid)
	key := make([]byte, 1+len(prefix)+32)
	key[0] = TagTx
	n := copy(key[1:], prefix)
	copy(key[1+n:], r.Txid[:])

	value := make([]byte, 4+32)
	putInt32(value[0:4], r.Height)
	copy(value[4:36], r.BlockHash[:])

	return store.Row{Key: key, Value: value}
}

func TxRowFromRow(row store.Row) (TxRow, error) {
	wantLen := 1 + PrefixLen + 32
	if len(row.Key) != wantLen || row.Key[0] != TagTx {
		return TxRow{}, fmt.Errorf("rowcodec: malformed TxRow key (len=%d)", len(row.Key))
	}
	if len(row.Value) != 36 {
		return TxRow{}, fmt.Errorf("rowcodec: malformed TxRow value (len=%d)", len(row.Value))
	}
	var r TxRow
	copy(r.Txid[:], row.Key[1+PrefixLen:1+PrefixLen+32])
	r.Height = getInt32(row.Value[0:4])
	copy(r.BlockHash[:], row.Value[4:36])
	return r, nil
}

// FilterTxByTxid returns the scan prefix that finds the TxRow(s) sharing a
// txid's leading bytes. Because PrefixLen is shorter than a full txid, more
// than one row can match; callers must compare the decoded Txid field
// against the full target txid before trusting a hit.
func FilterTxByTxid(txid chainhash.Hash) []byte {
	return FilterTxByPrefix(txidPrefix(txid))
}

// FilterTxByPrefix is FilterTxByTxid for a caller that only has a txid
// prefix on hand — namely C6, which recovers prefixes (not full txids)
// from TxOutRow/TxInRow candidates and must materialize the full
// (txid, height) pair via this same TxRow scan before it can trust them.
func FilterTxByPrefix(prefix []byte) []byte {
	key := make([]byte, 1+len(prefix))
	key[0] = TagTx
	copy(key[1:], prefix)
	return key
}
