// Package txwire wraps btcd's wire encoding for the two payloads the index
// and query engine move across process boundaries: a single transaction
// (stored raw in RawTxRow, returned by /tx/:hash/hex) and a full block
// (fetched from the daemon to build block metadata and scan its txs).
package txwire

import (
	"bytes"
	"fmt"

	"github.com/btcsuite/btcd/wire"
)

// DecodeTx parses a raw transaction as stored by RawTxRow or as returned
// raw by the daemon. A transaction with no inputs encodes its zero input
// count where the witness marker would sit, so when the witness-aware
// decode fails or leaves bytes unread, the non-witness decoding is tried.
func DecodeTx(raw []byte) (*wire.MsgTx, error) {
	tx := &wire.MsgTx{}
	r := bytes.NewReader(raw)
	err := tx.Deserialize(r)
	if err == nil && r.Len() == 0 {
		return tx, nil
	}
	legacy := &wire.MsgTx{}
	if lerr := legacy.DeserializeNoWitness(bytes.NewReader(raw)); lerr == nil {
		return legacy, nil
	}
	if err == nil {
		err = fmt.Errorf("%d trailing bytes", r.Len())
	}
	return nil, fmt.Errorf("txwire: decode tx: %w", err)
}

// EncodeTx serializes a transaction to the same wire format RawTxRow
// stores, so a re-encoded raw transaction round-trips byte for byte.
func EncodeTx(tx *wire.MsgTx) ([]byte, error) {
	var buf bytes.Buffer
	if err := tx.Serialize(&buf); err != nil {
		return nil, fmt.Errorf("txwire: encode tx: %w", err)
	}
	return buf.Bytes(), nil
}

// DecodeBlock parses a full raw block as fetched from the daemon.
func DecodeBlock(raw []byte) (*wire.MsgBlock, error) {
	block := &wire.MsgBlock{}
	if err := block.Deserialize(bytes.NewReader(raw)); err != nil {
		return nil, fmt.Errorf("txwire: decode block: %w", err)
	}
	return block, nil
}

// TxVirtualSize approximates vsize the way a SegWit-aware fee estimator
// needs: (weight + 3) / 4, weight = 3*base size + total size.
func TxVirtualSize(tx *wire.MsgTx) int64 {
	baseSize := tx.SerializeSizeStripped()
	totalSize := tx.SerializeSize()
	weight := int64(baseSize)*3 + int64(totalSize)
	return (weight + 3) / 4
}
