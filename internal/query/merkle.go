package query

import (
	"context"
	"fmt"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

// merklize hashes two sibling nodes with double SHA-256, the same folding
// step the block's merkle root itself is built from.
func merklize(left, right chainhash.Hash) chainhash.Hash {
	var buf [64]byte
	copy(buf[:32], left[:])
	copy(buf[32:], right[:])
	return chainhash.DoubleHashH(buf[:])
}

// GetMerkleProof returns the sibling hashes (bottom to top) that prove txid
// is included in the block at height, grounded on query.rs's
// get_merkle_proof: the tx list is fetched from the daemon by block hash,
// and at each level an odd count is handled by duplicating the last node,
// matching Bitcoin's own merkle tree construction.
func (q *Query) GetMerkleProof(ctx context.Context, txid chainhash.Hash, height int32) ([]chainhash.Hash, int, error) {
	header, ok := q.headers.GetByHeight(height)
	if !ok {
		return nil, 0, fmt.Errorf("%w: height %d", ErrMissingHeader, height)
	}

	block, err := q.daemon.GetBlockVerbose(ctx, header.Hash)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %v", ErrUpstreamFetchFailed, err)
	}

	level := make([]chainhash.Hash, len(block.Tx))
	pos := -1
	for i, txidHex := range block.Tx {
		h, err := chainhash.NewHashFromStr(txidHex)
		if err != nil {
			return nil, 0, fmt.Errorf("%w: malformed txid in block: %v", ErrCorruption, err)
		}
		level[i] = *h
		if *h == txid {
			pos = i
		}
	}
	if pos < 0 {
		return nil, 0, fmt.Errorf("%w: txid not found in block %s", ErrNotIndexed, header.Hash)
	}

	merklePos := pos
	var proof []chainhash.Hash
	for len(level) > 1 {
		if len(level)%2 == 1 {
			level = append(level, level[len(level)-1])
		}
		siblingIndex := pos ^ 1
		proof = append(proof, level[siblingIndex])

		next := make([]chainhash.Hash, len(level)/2)
		for i := 0; i < len(next); i++ {
			next[i] = merklize(level[2*i], level[2*i+1])
		}
		level = next
		pos /= 2
	}

	return proof, merklePos, nil
}
