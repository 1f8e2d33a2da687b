package api

import (
	"context"
	"testing"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"

	"github.com/rawblock/scriptquery/internal/rowcodec"
	"github.com/rawblock/scriptquery/internal/store"
	"github.com/rawblock/scriptquery/internal/txcache"
	"github.com/rawblock/scriptquery/internal/txwire"
)

func p2pkhScript(t *testing.T) []byte {
	t.Helper()
	pkHash := make([]byte, 20)
	pkHash[0] = 0x42
	script, err := txscript.NewScriptBuilder().
		AddOp(txscript.OP_DUP).AddOp(txscript.OP_HASH160).
		AddData(pkHash).
		AddOp(txscript.OP_EQUALVERIFY).AddOp(txscript.OP_CHECKSIG).
		Script()
	if err != nil {
		t.Fatalf("build script: %v", err)
	}
	return script
}

func putRawTx(t *testing.T, ms *store.MemStore, txid chainhash.Hash, tx *wire.MsgTx) {
	t.Helper()
	raw, err := txwire.EncodeTx(tx)
	if err != nil {
		t.Fatalf("encode tx: %v", err)
	}
	row := rowcodec.RawTxRow{Txid: txid, Raw: raw}.ToRow()
	ms.Put(row.Key, row.Value)
}

func TestRenderTransactionAttachesPrevouts(t *testing.T) {
	script := p2pkhScript(t)

	parent := wire.NewMsgTx(wire.TxVersion)
	parent.AddTxOut(wire.NewTxOut(5000, script))
	parentTxid := parent.TxHash()

	child := wire.NewMsgTx(wire.TxVersion)
	child.AddTxIn(wire.NewTxIn(wire.NewOutPoint(&parentTxid, 0), nil, nil))
	child.AddTxOut(wire.NewTxOut(4000, script))
	childTxid := child.TxHash()

	ms := store.NewMemStore()
	putRawTx(t, ms, parentTxid, parent)

	txs := txcache.New()
	fd := &fakeDaemon{}

	rendered, err := renderTransaction(context.Background(), ms, txs, fd, &chaincfg.MainNetParams, childTxid, child)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rendered.Inputs) != 1 {
		t.Fatalf("expected 1 input, got %d", len(rendered.Inputs))
	}
	if rendered.Inputs[0].Prevout == nil {
		t.Fatalf("expected prevout to be attached")
	}
	if rendered.Inputs[0].Prevout.Value != 5000 {
		t.Fatalf("unexpected prevout value: %+v", rendered.Inputs[0].Prevout)
	}
	if rendered.Inputs[0].Prevout.Type != "p2pkh" {
		t.Fatalf("unexpected prevout type: %+v", rendered.Inputs[0].Prevout)
	}
}

func TestRenderTransactionSkipsCoinbaseInput(t *testing.T) {
	script := p2pkhScript(t)

	coinbase := wire.NewMsgTx(wire.TxVersion)
	coinbase.AddTxIn(&wire.TxIn{
		PreviousOutPoint: wire.OutPoint{Index: wire.MaxPrevOutIndex},
		SignatureScript:  []byte{0x01, 0x02},
	})
	coinbase.AddTxOut(wire.NewTxOut(500000000, script))
	txid := coinbase.TxHash()

	txs := txcache.New()
	rendered, err := renderTransaction(context.Background(), store.NewMemStore(), txs, &fakeDaemon{}, &chaincfg.MainNetParams, txid, coinbase)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rendered.Inputs) != 1 {
		t.Fatalf("expected 1 input, got %d", len(rendered.Inputs))
	}
	if rendered.Inputs[0].Prevout != nil {
		t.Fatalf("coinbase input should have no prevout, got %+v", rendered.Inputs[0].Prevout)
	}
}

func TestLoadTxFallsBackToDaemonAndCaches(t *testing.T) {
	script := p2pkhScript(t)
	tx := wire.NewMsgTx(wire.TxVersion)
	tx.AddTxOut(wire.NewTxOut(1000, script))
	txid := tx.TxHash()

	raw, err := txwire.EncodeTx(tx)
	if err != nil {
		t.Fatalf("encode tx: %v", err)
	}

	txs := txcache.New()
	fd := &fakeDaemon{raw: map[string][]byte{txid.String(): raw}}

	got, err := loadTx(context.Background(), store.NewMemStore(), txs, fd, txid)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got.TxOut) != 1 || got.TxOut[0].Value != 1000 {
		t.Fatalf("unexpected decoded tx: %+v", got)
	}

	if cached, ok := txs.Get(txid); !ok || cached != got {
		t.Fatalf("expected loadTx to populate the cache")
	}
}
