package query

import (
	"context"
	"testing"

	"github.com/btcsuite/btcd/btcjson"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/rawblock/scriptquery/pkg/chainmodels"
)

func TestGetMerkleProofOddLengthDuplication(t *testing.T) {
	q, _, hidx, fd := newTestQuery(t)

	blockHash := hashOf(1)
	hidx.Append(chainmodels.HeaderEntry{Height: 300, Hash: blockHash})

	txids := []chainhash.Hash{hashOf(10), hashOf(11), hashOf(12)} // odd count
	txHex := make([]string, len(txids))
	for i, h := range txids {
		txHex[i] = h.String()
	}
	fd.blockVerbose[blockHash] = &btcjson.GetBlockVerboseResult{Tx: txHex}

	proof, pos, err := q.GetMerkleProof(context.Background(), txids[1], 300)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pos != 1 {
		t.Fatalf("got position %d, want 1", pos)
	}
	if len(proof) == 0 {
		t.Fatalf("expected a non-empty proof")
	}

	// Re-derive the merkle root from the proof and compare against an
	// independently computed root over the duplicated-last-leaf tree.
	level := append([]chainhash.Hash(nil), txids...)
	level = append(level, level[len(level)-1])
	root := merklize(merklize(level[0], level[1]), merklize(level[2], level[3]))

	cur := txids[1]
	idx := 1
	for _, sibling := range proof {
		if idx%2 == 0 {
			cur = merklize(cur, sibling)
		} else {
			cur = merklize(sibling, cur)
		}
		idx /= 2
	}
	if cur != root {
		t.Fatalf("recomputed root %x does not match expected %x", cur, root)
	}
}

func TestGetMerkleProofMissingHeader(t *testing.T) {
	q, _, _, _ := newTestQuery(t)
	if _, _, err := q.GetMerkleProof(context.Background(), hashOf(1), 999); err == nil {
		t.Fatalf("expected an error for an unindexed height")
	}
}
