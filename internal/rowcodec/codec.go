// Package rowcodec encodes and decodes the index's row families: the
// lexicographically-ordered byte keys (and their values) the read store
// scans to answer a scripthash query. Every row family shares a one-byte
// tag prefix so a single key-value table (store.ReadStore) can hold them
// all without collision.
package rowcodec

import (
	"crypto/sha256"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

// Row family tags, the first byte of every key this package produces.
const (
	TagTxOut     byte = 'O' // scripthash -> funding txid prefix
	TagTxIn      byte = 'I' // funding outpoint -> spending txid prefix
	TagTx        byte = 'T' // txid -> height + blockhash
	TagRawTx     byte = 'R' // txid -> raw transaction bytes
	TagBlockMeta byte = 'M' // block hash -> block summary
)

// PrefixLen is the number of leading txid bytes folded into TxOutRow keys
// (after the scripthash) and TxInRow keys (after the funding outpoint) in
// place of the full txid, and into TxRow/RawTxRow keys ahead of the full
// txid. It trades key size for collision rate: a scan against a
// PrefixLen-byte prefix can return rows for more than one txid, so callers
// must re-check the full txid on every candidate (see FilterTxByTxid).
// 8 bytes keeps collisions astronomically unlikely while still shrinking
// keys versus a full 32-byte txid.
var PrefixLen = 8

// ComputeScripthash hashes a scriptPubKey into the 32-byte key the index
// addresses funding/spending rows by, matching Electrum's
// scripthash-from-script convention (SHA-256, not reversed at this layer —
// reversal for display is a client-side concern outside this package).
func ComputeScripthash(scriptPubKey []byte) [32]byte {
	return sha256.Sum256(scriptPubKey)
}

// txidPrefix returns the leading PrefixLen bytes of a txid in the order
// chainhash stores them (already reversed relative to RPC display order),
// so two txids sharing these bytes are genuinely adjacent in the index.
func txidPrefix(txid chainhash.Hash) []byte {
	b := txid[:]
	if PrefixLen > len(b) {
		return append([]byte(nil), b...)
	}
	return append([]byte(nil), b[:PrefixLen]...)
}

// putUint32 / putUint64 / putInt32 write big-endian integers so the byte
// encoding preserves numeric ordering, which row families that embed a
// height or index in the key rely on for range scans.
func putUint32(b []byte, v uint32) {
	b[0] = byte(v >> 24)
	b[1] = byte(v >> 16)
	b[2] = byte(v >> 8)
	b[3] = byte(v)
}

func getUint32(b []byte) uint32 {
	return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
}

func putUint64(b []byte, v uint64) {
	b[0] = byte(v >> 56)
	b[1] = byte(v >> 48)
	b[2] = byte(v >> 40)
	b[3] = byte(v >> 32)
	b[4] = byte(v >> 24)
	b[5] = byte(v >> 16)
	b[6] = byte(v >> 8)
	b[7] = byte(v)
}

func getUint64(b []byte) uint64 {
	return uint64(b[0])<<56 | uint64(b[1])<<48 | uint64(b[2])<<40 | uint64(b[3])<<32 |
		uint64(b[4])<<24 | uint64(b[5])<<16 | uint64(b[6])<<8 | uint64(b[7])
}

func putInt32(b []byte, v int32) {
	putUint32(b, uint32(v))
}

func getInt32(b []byte) int32 {
	return int32(getUint32(b))
}
