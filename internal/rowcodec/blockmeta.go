package rowcodec

import (
	"fmt"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/rawblock/scriptquery/internal/store"
)

// BlockMetaRow is the per-block summary the /block endpoints read instead
// of re-fetching the full block from the daemon.
//
// Key:   TagBlockMeta ‖ blockhash(32)
// Value: height(4 BE) ‖ prevhash(32) ‖ timestamp(8 BE) ‖ txCount(4 BE) ‖ size(4 BE) ‖ weight(4 BE)
type BlockMetaRow struct {
	Hash      chainhash.Hash
	Height    int32
	PrevHash  chainhash.Hash
	Timestamp int64
	TxCount   uint32
	Size      uint32
	Weight    uint32
}

func (r BlockMetaRow) ToRow() store.Row {
	key := make([]byte, 1+32)
	key[0] = TagBlockMeta
	copy(key[1:], r.Hash[:])

	value := make([]byte, 4+32+8+4+4+4)
	putInt32(value[0:4], r.Height)
	copy(value[4:36], r.PrevHash[:])
	putUint64(value[36:44], uint64(r.Timestamp))
	putUint32(value[44:48], r.TxCount)
	putUint32(value[48:52], r.Size)
	putUint32(value[52:56], r.Weight)

	return store.Row{Key: key, Value: value}
}

func BlockMetaRowFromRow(row store.Row) (BlockMetaRow, error) {
	if len(row.Key) != 1+32 || row.Key[0] != TagBlockMeta {
		return BlockMetaRow{}, fmt.Errorf("rowcodec: malformed BlockMetaRow key (len=%d)", len(row.Key))
	}
	if len(row.Value) != 56 {
		return BlockMetaRow{}, fmt.Errorf("rowcodec: malformed BlockMetaRow value (len=%d)", len(row.Value))
	}
	var r BlockMetaRow
	copy(r.Hash[:], row.Key[1:33])
	r.Height = getInt32(row.Value[0:4])
	copy(r.PrevHash[:], row.Value[4:36])
	r.Timestamp = int64(getUint64(row.Value[36:44]))
	r.TxCount = getUint32(row.Value[44:48])
	r.Size = getUint32(row.Value[48:52])
	r.Weight = getUint32(row.Value[52:56])
	return r, nil
}

// FilterBlockMetaByHash returns the exact key for a single block's summary.
func FilterBlockMetaByHash(hash chainhash.Hash) []byte {
	key := make([]byte, 1+32)
	key[0] = TagBlockMeta
	copy(key[1:], hash[:])
	return key
}
