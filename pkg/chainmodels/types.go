// Package chainmodels holds the wire-level types shared across the index
// codec, the query engine, and the HTTP surface: outpoints, funding and
// spending records, header metadata, and the status/balance views derived
// from them.
package chainmodels

import "github.com/btcsuite/btcd/chaincfg/chainhash"

// Txid is a transaction hash, big-endian display order (chainhash already
// stores internal/reversed order; String() gives the familiar hex).
type Txid = chainhash.Hash

// Scripthash is the SHA-256 of a scriptPubKey, the index's addressing key.
type Scripthash [32]byte

// Outpoint names a single transaction output.
type Outpoint struct {
	Txid Txid
	Vout uint32
}

// Height carries the real confirmed height for a mined output/input, or one
// of the mempool sentinel values used while a transaction is unconfirmed:
// HeightMempoolNoDeps when every input it spends is itself confirmed, and
// HeightMempoolHasDeps when it spends at least one other unconfirmed
// output. Status.History and Status.Unspent order both sentinels before
// every real height, HeightMempoolHasDeps first.
type Height = int32

const (
	HeightMempoolNoDeps  Height = 0
	HeightMempoolHasDeps Height = -1
)

// FundingOutput is a single output that pays into a scripthash.
type FundingOutput struct {
	Txid   Txid
	Height Height
	Vout   uint32
	Value  uint64
}

// SpendingInput is a single input that spends a previously funded output.
type SpendingInput struct {
	Txid    Txid
	Height  Height
	Funding Outpoint
	Value   uint64
}

// HistoryEntry is one (height, txid) pair in a scripthash's confirmed or
// mempool history, ordered the way Status.History returns them.
type HistoryEntry struct {
	Height Height
	Txid   Txid
}

// UTXO is a single unspent output surfaced by Status.Unspent.
type UTXO struct {
	Outpoint Outpoint
	Height   Height
	Value    uint64
}

// HeaderEntry is one block header as held by the header index, keyed by
// both its height and hash for O(1) lookup either way.
type HeaderEntry struct {
	Height    int32
	Hash      chainhash.Hash
	PrevHash  chainhash.Hash
	Timestamp int64
}

// BlockMeta is the summary row persisted per block: enough to answer
// /block/:hash and /blocks without re-fetching the full block from the
// daemon.
type BlockMeta struct {
	Hash      chainhash.Hash
	Height    int32
	PrevHash  chainhash.Hash
	Timestamp int64
	TxCount   uint32
	Size      uint32
	Weight    uint32
}

// BlockStatus answers whether a block hash is still on the best chain, and
// names the next block if it is. Supplemented from query.rs's
// get_block_status (dropped by the distillation, restored here).
type BlockStatus struct {
	InBestChain bool
	Height      int32
	NextHash    *chainhash.Hash
}

// TransactionStatus answers whether a given txid still confirms at the
// height/blockhash it was last seen at, used to detect reorgs from a
// client-held cursor.
type TransactionStatus struct {
	Confirmed   bool
	BlockHeight int32
	BlockHash   chainhash.Hash
}
