package rowcodec

import (
	"fmt"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/rawblock/scriptquery/internal/store"
)

// RawTxRow holds the serialized transaction itself, keyed the same way as
// TxRow (prefix + full txid in the key, nothing in the value but the raw
// bytes) so both row families collision-filter identically.
//
// Key:   TagRawTx ‖ txid[:PrefixLen] ‖ txid(32)
// Value: raw transaction bytes
type RawTxRow struct {
	Txid chainhash.Hash
	Raw  []byte
}

func (r RawTxRow) ToRow() store.Row {
	prefix := txidPrefix(r.Txid)
	key := make([]byte, 1+len(prefix)+32)
	key[0] = TagRawTx
	n := copy(key[1:], prefix)
	copy(key[1+n:], r.Txid[:])

	return store.Row{Key: key, Value: append([]byte(nil), r.Raw...)}
}

func RawTxRowFromRow(row store.Row) (RawTxRow, error) {
	wantLen := 1 + PrefixLen + 32
	if len(row.Key) != wantLen || row.Key[0] != TagRawTx {
		return RawTxRow{}, fmt.Errorf("rowcodec: malformed RawTxRow key (len=%d)", len(row.Key))
	}
	var r RawTxRow
	copy(r.Txid[:], row.Key[1+PrefixLen:1+PrefixLen+32])
	r.Raw = append([]byte(nil), row.Value...)
	return r, nil
}

// FilterRawTxByTxid mirrors FilterTxByTxid for the raw-transaction row family.
func FilterRawTxByTxid(txid chainhash.Hash) []byte {
	prefix := make([]byte, 1+PrefixLen)
	prefix[0] = TagRawTx
	copy(prefix[1:], txidPrefix(txid))
	return prefix
}
