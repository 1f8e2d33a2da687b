package api

import (
	"context"
	"testing"

	"github.com/btcsuite/btcd/btcjson"
	"github.com/btcsuite/btcd/chaincfg/chainhash"

	"github.com/rawblock/scriptquery/internal/rowcodec"
	"github.com/rawblock/scriptquery/internal/store"
)

// fakeDaemon is a hand-written daemon.Client fake, matching internal/mempool's
// testing-style preference for bespoke fakes over a mocking framework.
type fakeDaemon struct {
	raw        map[string][]byte
	rawVerbose map[string]*btcjson.TxRawResult
	blocks     map[string]*btcjson.GetBlockVerboseResult
	hashByHt   map[int64]chainhash.Hash
	tip        int64
	sent       []byte
	sendErr    error
}

func (f *fakeDaemon) GetRawTransaction(_ context.Context, txid chainhash.Hash) ([]byte, error) {
	if raw, ok := f.raw[txid.String()]; ok {
		return raw, nil
	}
	return nil, errNotFound
}

func (f *fakeDaemon) GetRawTransactionVerbose(_ context.Context, txid chainhash.Hash) (*btcjson.TxRawResult, error) {
	return f.rawVerbose[txid.String()], nil
}

func (f *fakeDaemon) GetRawMempool(context.Context) ([]chainhash.Hash, error) { return nil, nil }

func (f *fakeDaemon) GetRawMempoolVerbose(context.Context) (map[string]btcjson.GetMempoolEntryResult, error) {
	return nil, nil
}

func (f *fakeDaemon) GetBlock(context.Context, chainhash.Hash) ([]byte, error) { return nil, nil }

func (f *fakeDaemon) GetBlockVerbose(_ context.Context, hash chainhash.Hash) (*btcjson.GetBlockVerboseResult, error) {
	if b, ok := f.blocks[hash.String()]; ok {
		return b, nil
	}
	return nil, errNotFound
}

func (f *fakeDaemon) GetBlockHash(_ context.Context, height int64) (chainhash.Hash, error) {
	if h, ok := f.hashByHt[height]; ok {
		return h, nil
	}
	return chainhash.Hash{}, errNotFound
}

func (f *fakeDaemon) GetBlockCount(context.Context) (int64, error) { return f.tip, nil }

func (f *fakeDaemon) SendRawTransaction(_ context.Context, raw []byte) (chainhash.Hash, error) {
	if f.sendErr != nil {
		return chainhash.Hash{}, f.sendErr
	}
	f.sent = raw
	return chainhash.Hash{0xaa}, nil
}

func (f *fakeDaemon) EstimateSmartFeeSatVB(context.Context, int64) (float64, error) { return 0, nil }

type notFoundErr struct{}

func (notFoundErr) Error() string { return "not found" }

var errNotFound = notFoundErr{}

func hashOf(b byte) chainhash.Hash {
	var h chainhash.Hash
	h[0] = b
	return h
}

func TestBlockSummaryByHashPrefersStore(t *testing.T) {
	hash := hashOf(1)
	ms := store.NewMemStore()
	row := rowcodec.BlockMetaRow{Hash: hash, Height: 100, Timestamp: 123, TxCount: 2, Size: 500, Weight: 2000}
	r := row.ToRow()
	ms.Put(r.Key, r.Value)

	h := &APIHandler{store: ms, daemon: &fakeDaemon{}}
	meta, err := h.blockSummaryByHash(context.Background(), hash)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if meta.Height != 100 || meta.TxCount != 2 {
		t.Fatalf("unexpected meta from store: %+v", meta)
	}
}

func TestBlockSummaryByHashFallsBackToDaemon(t *testing.T) {
	hash := hashOf(2)
	fd := &fakeDaemon{
		blocks: map[string]*btcjson.GetBlockVerboseResult{
			hash.String(): {Height: 50, Time: 999, Tx: []string{"a", "b", "c"}, Size: 700, Weight: 2800},
		},
	}
	h := &APIHandler{store: store.NewMemStore(), daemon: fd}
	meta, err := h.blockSummaryByHash(context.Background(), hash)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if meta.Height != 50 || meta.TxCount != 3 {
		t.Fatalf("unexpected meta from daemon fallback: %+v", meta)
	}
}

func TestBlockSummaryByHashNotFound(t *testing.T) {
	h := &APIHandler{store: store.NewMemStore(), daemon: &fakeDaemon{}}
	if _, err := h.blockSummaryByHash(context.Background(), hashOf(9)); err == nil {
		t.Fatalf("expected error for unknown block")
	}
}
