package query

import "errors"

// Sentinel errors for the conditions spec.md §7 names. Wrapped with
// fmt.Errorf("...: %w", ...) at the call site the same way the teacher
// wraps RPC/DB errors, so errors.Is still matches through the wrapping.
var (
	// ErrNotIndexed means the requested scripthash, txid, or block has no
	// row in either the persisted store or the mempool snapshot.
	ErrNotIndexed = errors.New("query: not indexed")

	// ErrMissingHeader means a TxRow or BlockMeta row named a height or
	// blockhash the header index has no entry for, which should only
	// happen transiently during a reorg.
	ErrMissingHeader = errors.New("query: missing header")

	// ErrUpstreamFetchFailed wraps a daemon RPC failure on a fallback path
	// (merkle proof block fetch, broadcast).
	ErrUpstreamFetchFailed = errors.New("query: upstream fetch failed")

	// ErrCorruption means a row failed to decode, which should never
	// happen against a store this process itself wrote.
	ErrCorruption = errors.New("query: corrupted row")
)
