package headers

import (
	"testing"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/rawblock/scriptquery/pkg/chainmodels"
)

func hashOf(b byte) chainhash.Hash {
	var h chainhash.Hash
	h[0] = b
	return h
}

func TestGetByHeightAndHash(t *testing.T) {
	idx := NewIndex()
	idx.Append(chainmodels.HeaderEntry{Height: 100, Hash: hashOf(1)})
	idx.Append(chainmodels.HeaderEntry{Height: 101, Hash: hashOf(2)})

	got, ok := idx.GetByHeight(101)
	if !ok || got.Hash != hashOf(2) {
		t.Fatalf("GetByHeight(101) = %+v, %v", got, ok)
	}

	got, ok = idx.GetByHash(hashOf(1))
	if !ok || got.Height != 100 {
		t.Fatalf("GetByHash(hashOf(1)) = %+v, %v", got, ok)
	}

	if _, ok := idx.GetByHeight(999); ok {
		t.Fatalf("expected miss for unindexed height")
	}
}

func TestReorgInvalidatesStaleHash(t *testing.T) {
	idx := NewIndex()
	idx.Append(chainmodels.HeaderEntry{Height: 100, Hash: hashOf(1)})
	oldTip := hashOf(2)
	idx.Append(chainmodels.HeaderEntry{Height: 101, Hash: oldTip})

	// Reorg: height 101 now belongs to a different block.
	idx.Truncate(101)
	idx.Append(chainmodels.HeaderEntry{Height: 101, Hash: hashOf(3)})

	if _, ok := idx.GetByHash(oldTip); ok {
		t.Fatalf("expected the superseded hash to no longer resolve")
	}
	got, ok := idx.GetByHash(hashOf(3))
	if !ok || got.Height != 101 {
		t.Fatalf("expected new tip to resolve at height 101, got %+v, %v", got, ok)
	}
}

func TestBestHeaderAndNextHash(t *testing.T) {
	idx := NewIndex()
	if h := idx.BestHeight(); h != -1 {
		t.Fatalf("expected -1 best height on empty index, got %d", h)
	}
	idx.Append(chainmodels.HeaderEntry{Height: 10, Hash: hashOf(1)})
	idx.Append(chainmodels.HeaderEntry{Height: 11, Hash: hashOf(2)})

	best, ok := idx.BestHeader()
	if !ok || best.Height != 11 {
		t.Fatalf("BestHeader() = %+v, %v", best, ok)
	}

	next, ok := idx.NextHash(10)
	if !ok || next != hashOf(2) {
		t.Fatalf("NextHash(10) = %x, %v", next, ok)
	}
	if _, ok := idx.NextHash(11); ok {
		t.Fatalf("expected no next hash past the tip")
	}
}
